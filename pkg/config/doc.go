/*
Package config parses emberdb's configuration file: a line-oriented,
`#`-comment, one-directive-per-line grammar (spec.md §6). This grammar
is neither YAML, TOML, nor a flag set, so no library in the example
pack fits it — see DESIGN.md for why this is the one place emberdb
reaches for bufio.Scanner + strings.Fields instead of a third-party
parser.

Load returns a *Config pre-filled with spec.md §6's defaults, then
applies whatever directives the file contains on top of them. A file
argument is optional everywhere emberdb is invoked without one
(cmd/emberdb), matching `server [config-path]`.
*/
package config
