package maintenance

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/cuemby/emberdb/pkg/command"
	"github.com/cuemby/emberdb/pkg/config"
	"github.com/cuemby/emberdb/pkg/keyspace"
	"github.com/cuemby/emberdb/pkg/log"
	"github.com/cuemby/emberdb/pkg/object"
)

// expireSampleSize bounds how many candidate keys freeMemoryIfNeeded
// samples per database before picking the nearest-to-expiry one
// (spec.md §4.F: "sample 3 random expiring keys").
const expireSampleSize = 3

// Snapshotter is the subset of pkg/rdb.Saver the maintenance task
// drives: starting saves and polling a background one for completion.
type Snapshotter interface {
	Save() error
	BackgroundSave() error
	PollCompletion() (done, ok bool, err error)
}

// ClientTable lets the maintenance task close idle connections without
// importing pkg/server, which owns the actual client registry.
type ClientTable interface {
	CloseIdle(timeout time.Duration) int
}

// ReplicaSync lets the maintenance task drive the replica-side
// reconnect loop without importing pkg/replication.
type ReplicaSync interface {
	NeedsReconnect() bool
	Reconnect() error
}

// Task holds everything one Tick needs. Every field but KS, Cfg, Disp,
// and Snap is optional; a nil collaborator just means that step of the
// tick is skipped, which is what a standalone single-node instance
// with no replicas and an in-process client table look like before
// pkg/server finishes wiring them in.
type Task struct {
	KS   *keyspace.Keyspace
	Cfg  *config.Config
	Disp *command.Dispatcher
	Snap Snapshotter

	Clients ClientTable
	Replica ReplicaSync

	// OnSaveDone is invoked whenever a background save completes,
	// successfully or not, implementing spec.md §4.F step 5's "notify
	// §4.H with success/failure" for the replication engine's
	// waiting-for-dump-end state transitions.
	OnSaveDone func(ok bool)
	// OnExpired is invoked with the number of keys the sampled
	// expiration pass reaped this tick, for the
	// emberdb_expired_keys_total counter.
	OnExpired func(n int)
	// OnEvicted is invoked once per key free_memory_if_needed evicts,
	// for the emberdb_evicted_keys_total counter.
	OnEvicted func()

	loops int
}

// New builds a Task wired to the given collaborators. Clients, Replica,
// OnSaveDone, and OnExpired are left nil; set them directly once those
// packages are wired in.
func New(ks *keyspace.Keyspace, cfg *config.Config, disp *command.Dispatcher, snap Snapshotter) *Task {
	return &Task{KS: ks, Cfg: cfg, Disp: disp, Snap: snap}
}

// Tick runs the 8-step periodic maintenance pass. Registered as
// pkg/reactor's OnTick callback.
func (t *Task) Tick() {
	t.loops++
	loop := t.loops
	taskLog := log.WithComponent("maintenance")

	object.GlobalAllocator().Refresh()

	if loop%5 == 0 {
		t.logDBSizes(taskLog)
	}

	if !t.Disp.SaveInProgress {
		for _, db := range t.KS.All() {
			db.MaybeShrink()
		}
	}

	if loop%10 == 0 && t.Clients != nil && t.Cfg != nil && t.Cfg.Timeout > 0 {
		closed := t.Clients.CloseIdle(time.Duration(t.Cfg.Timeout) * time.Second)
		if closed > 0 {
			taskLog.Debug().Int("closed", closed).Msg("closed idle clients")
		}
	}

	if t.Disp.SaveInProgress {
		t.pollBackgroundSave(taskLog)
	} else {
		t.maybeTriggerSave(taskLog)
	}

	reaped := 0
	for _, db := range t.KS.All() {
		reaped += db.SampleExpirations()
	}
	if reaped > 0 && t.OnExpired != nil {
		t.OnExpired(reaped)
	}

	if t.Replica != nil && t.Replica.NeedsReconnect() {
		if err := t.Replica.Reconnect(); err != nil {
			taskLog.Warn().Err(err).Msg("replica reconnect attempt failed")
		}
	}
}

// logDBSizes mirrors serverCron's "Show some info about non-empty
// databases" debug line: key count and TTL-bearing key count per
// non-empty database, every 5th tick.
func (t *Task) logDBSizes(taskLog zerolog.Logger) {
	for _, db := range t.KS.All() {
		used := db.Size()
		volatile := db.ExpiringCount()
		if used == 0 && volatile == 0 {
			continue
		}
		taskLog.Debug().Int("db", db.ID()).Int("keys", used).Int("volatile", volatile).Msg("database size")
	}
}

// FreeMemoryIfNeeded implements spec.md §4.F's free_memory_if_needed,
// wired as command.Dispatcher.FreeMemory. It returns at once when no
// maxmemory is configured; otherwise, while usage is over the limit, it
// drops free-list entries first and evicts a nearest-expiring key only
// once the free list is empty.
func (t *Task) FreeMemoryIfNeeded() {
	if t.Cfg == nil || t.Cfg.MaxMemory <= 0 {
		return
	}
	for object.GlobalAllocator().OverLimit(t.Cfg.MaxMemory) {
		if object.DiscardFreeListEntry() {
			continue
		}
		if !t.evictOneNearestExpiring() {
			return
		}
	}
}

func (t *Task) evictOneNearestExpiring() bool {
	evictedAny := false
	for _, db := range t.KS.All() {
		candidates := db.SampleExpiring(expireSampleSize)
		if len(candidates) == 0 {
			continue
		}
		best := candidates[0]
		bestWhen, _ := db.GetExpire(best)
		for _, key := range candidates[1:] {
			when, _ := db.GetExpire(key)
			if when.Before(bestWhen) {
				best, bestWhen = key, when
			}
		}
		db.Delete(best)
		evictedAny = true
		if t.OnEvicted != nil {
			t.OnEvicted()
		}
	}
	return evictedAny
}

func (t *Task) maybeTriggerSave(taskLog zerolog.Logger) {
	if t.Cfg == nil {
		return
	}
	now := time.Now().Unix()
	for _, rule := range t.Cfg.Save {
		if t.Disp.Dirty >= int64(rule.Changes) && now-t.Disp.LastSaveUnix > int64(rule.Seconds) {
			taskLog.Info().Int("changes", rule.Changes).Int("seconds", rule.Seconds).Msg("save rule triggered, starting background save")
			t.Disp.SaveInProgress = true
			if err := t.Snap.BackgroundSave(); err != nil {
				t.Disp.SaveInProgress = false
				taskLog.Warn().Err(err).Msg("background save failed to start")
			}
			return
		}
	}
}

func (t *Task) pollBackgroundSave(taskLog zerolog.Logger) {
	done, ok, err := t.Snap.PollCompletion()
	if !done {
		return
	}
	t.Disp.SaveInProgress = false
	if ok {
		t.Disp.Dirty = 0
		t.Disp.LastSaveUnix = time.Now().Unix()
		taskLog.Info().Msg("background save completed")
	} else {
		taskLog.Warn().Err(err).Msg("background save failed")
	}
	if t.OnSaveDone != nil {
		t.OnSaveDone(ok)
	}
}
