/*
Package maintenance implements emberdb's periodic tick (spec.md §4.F),
run once per second by pkg/reactor's timer. Task.Tick is grounded on
original_source/redis.c's serverCron: refresh the memory gauge, log
per-DB sizes every 5th tick, opportunistically shrink tables when no
save is in flight, close idle clients every 10th tick, reap a finished
background save or consider starting a new one per the configured save
rules, sample a few expiring keys for reclamation, and kick a replica
reconnect attempt when one is pending.

Task depends on pkg/command, pkg/keyspace, pkg/config, and pkg/object
directly, plus three narrow interfaces (Snapshotter, ClientTable,
ReplicaSync) satisfied by pkg/rdb, pkg/server, and pkg/replication
respectively — keeping those packages from needing to import
maintenance back.
*/
package maintenance
