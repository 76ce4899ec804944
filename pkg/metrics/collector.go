package metrics

import (
	"strconv"
	"time"

	"github.com/cuemby/emberdb/pkg/command"
	"github.com/cuemby/emberdb/pkg/keyspace"
	"github.com/cuemby/emberdb/pkg/object"
)

// collectInterval matches pkg/reactor.TickInterval: these gauges are
// cheap to resample and don't need their own faster cadence.
const collectInterval = time.Second

// Collector periodically samples the gauges that have no single
// dispatch-time write site (connected clients, used memory, per-DB key
// counts, dirty counter, replica count) and pushes them into the
// package-level metric vars. CommandsProcessedTotal, ExpiredKeysTotal,
// and EvictedKeysTotal are updated inline by Sink instead.
type Collector struct {
	ks   *keyspace.Keyspace
	disp *command.Dispatcher

	// BlockedClients reports how many clients are currently suspended
	// mid-bulk-argument; optional, wired by pkg/server since pkg/metrics
	// doesn't own the client table.
	BlockedClients func() int

	stopCh chan struct{}
}

// NewCollector builds a Collector over ks and disp.
func NewCollector(ks *keyspace.Keyspace, disp *command.Dispatcher) *Collector {
	return &Collector{ks: ks, disp: disp, stopCh: make(chan struct{})}
}

// Start begins sampling on a ticker, in its own goroutine.
func (c *Collector) Start() {
	ticker := time.NewTicker(collectInterval)
	go func() {
		c.collect()
		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop halts the sampling goroutine.
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	if c.disp.ConnectedClients != nil {
		ConnectedClients.Set(float64(c.disp.ConnectedClients()))
	}
	if c.disp.ReplicaCount != nil {
		ReplicaCount.Set(float64(c.disp.ReplicaCount()))
	}
	if c.BlockedClients != nil {
		BlockedClients.Set(float64(c.BlockedClients()))
	}

	Dirty.Set(float64(c.disp.Dirty))
	LastSaveTimestampSeconds.Set(float64(c.disp.LastSaveUnix))
	UsedMemoryBytes.Set(float64(object.GlobalAllocator().UsedBytes()))

	for _, db := range c.ks.All() {
		KeyspaceKeys.WithLabelValues(strconv.Itoa(db.ID())).Set(float64(db.Size()))
	}
}
