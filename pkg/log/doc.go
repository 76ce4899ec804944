/*
Package log wraps zerolog to give emberdb structured, leveled logging:
a package-level Logger initialized once via Init, plus small helpers
for the common severities and for tagging a logger with a component
name.

emberdb's three severities come straight from the `loglevel` config
directive (spec.md §6): debug, notice, warning. zerolog has no separate
"notice" level, so notice maps onto zerolog's InfoLevel — the two are
the same "normal operational message" severity under different names.

	log.Init(log.Config{Level: log.NoticeLevel, Output: os.Stdout})
	log.Info("server started")
	connLog := log.WithComponent("reactor")
	connLog.Debug().Int("fd", fd).Msg("accepted connection")

Output defaults to stdout but can be redirected to an *os.File opened
against the `logfile` directive; JSONOutput selects zerolog's default
JSON encoder versus its human-readable ConsoleWriter.
*/
package log
