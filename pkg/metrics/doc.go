/*
Package metrics exposes emberdb's Prometheus instrumentation and HTTP
health surface, per SPEC_FULL.md §6.4.

Metrics are plain package-level prometheus collectors registered at
init: ConnectedClients, BlockedClients, CommandsProcessedTotal and
CommandDurationSeconds (both labeled by command name), ExpiredKeysTotal,
EvictedKeysTotal, KeyspaceKeys (labeled by database index), Dirty,
LastSaveTimestampSeconds, ReplicaCount, and UsedMemoryBytes. Sink
implements command.MetricsSink and the counting half of
maintenance.Task's expiration/eviction hooks, so pkg/command and
pkg/maintenance never import prometheus themselves; Collector (see
collector.go) samples the remaining gauges once per tick, since values
like connected-client count have no single write site to hook.

Handler serves the Prometheus scrape endpoint. HealthHandler,
ReadyHandler, and LivenessHandler serve /health, /ready, and /live:
pkg/server registers the keyspace and reactor components as they come
up, and GetReadiness treats only those two as blocking for readiness —
other registered components (replication) are reported but never hold
the process out of rotation.
*/
package metrics
