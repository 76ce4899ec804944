/*
Package replication implements spec.md §4.H: monitor fan-out, command
feed serialization, and the master-side and replica-side halves of the
SYNC state machine.

Master, attached to command.Dispatcher as its ReplicationSink, tracks
one *session.Session per attached replica and monitor. It implements
command.ReplicaController's opposite number for the master role (Feed,
FeedMonitors) and is driven by pkg/maintenance.Task.OnSaveDone for the
waiting-for-dump-start -> waiting-for-dump-end -> sending-bulk -> online
transitions spec.md §4.H describes.

Replica implements command.ReplicaController (SlaveOf) and
pkg/maintenance.ReplicaSync (NeedsReconnect, Reconnect) for the
must-connect/connected state machine on the replica side of a SLAVEOF
relationship. Reconnect runs the whole initial-sync handshake
synchronously on the single reactor goroutine, matching spec.md §5's
"blocking helpers use a bounded polling loop" — it is only ever invoked
from a maintenance tick, never concurrently with command dispatch.

Both halves depend on pkg/command and pkg/session directly (no import
cycle: neither of those packages imports pkg/replication) and reach the
snapshot layer through a narrow Snapshotter interface rather than
importing pkg/rdb, matching pkg/maintenance and pkg/command's existing
dependency-injection pattern.
*/
package replication
