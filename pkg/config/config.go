package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// SaveRule is one entry of the `save <seconds> <changes>` directive:
// trigger a background save once at least Changes writes have
// accumulated and at least Seconds have passed since the last save.
type SaveRule struct {
	Seconds int
	Changes int
}

// Config holds every directive spec.md §6 recognizes, pre-filled with
// its documented defaults.
type Config struct {
	Timeout              int // idle timeout, seconds; 0 disables it
	Port                 int
	Bind                 string
	Save                 []SaveRule
	Dir                  string
	LogLevel             string // debug|notice|warning
	LogFile              string // "stdout" or a path
	Databases            int
	MaxClients           int
	MaxMemory            int64 // bytes; 0 = unlimited
	SlaveOfHost          string
	SlaveOfPort          int
	GlueOutputBuf        bool
	ShareObjects         bool
	ShareObjectsPoolSize int
	Daemonize            bool
	RequirePass          string
	PidFile              string
	DBFilename           string

	// MetricsAddr is an emberdb addition (not in spec.md's directive
	// list) for the Prometheus HTTP listener described in
	// SPEC_FULL.md §6.4. Empty disables the metrics server.
	MetricsAddr string
}

// Default returns a Config carrying exactly spec.md §6's defaults.
func Default() *Config {
	return &Config{
		Timeout:              300,
		Port:                 6379,
		Bind:                 "0.0.0.0",
		Save:                 []SaveRule{{3600, 1}, {300, 100}, {60, 10000}},
		Dir:                  ".",
		LogLevel:             "notice",
		LogFile:              "stdout",
		Databases:            16,
		MaxClients:           0,
		MaxMemory:            0,
		ShareObjects:         false,
		ShareObjectsPoolSize: 10000,
		PidFile:              "/var/run/emberdb.pid",
		DBFilename:           "dump.rdb",
		MetricsAddr:          ":9121",
	}
}

// Load reads directives from path on top of Default(). An empty path
// returns the defaults unchanged, matching "With no argument, built-in
// defaults" from spec.md §6.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %s: %w", path, err)
	}
	defer f.Close()

	savesCleared := false
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		directive := strings.ToLower(fields[0])
		args := fields[1:]

		if directive == "save" && !savesCleared {
			cfg.Save = nil
			savesCleared = true
		}

		if err := apply(cfg, directive, args); err != nil {
			return nil, fmt.Errorf("config: line %d: %w", lineNo, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	return cfg, nil
}

func apply(cfg *Config, directive string, args []string) error {
	need := func(n int) error {
		if len(args) < n {
			return fmt.Errorf("%s requires %d argument(s)", directive, n)
		}
		return nil
	}
	switch directive {
	case "timeout":
		if err := need(1); err != nil {
			return err
		}
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("timeout: %w", err)
		}
		cfg.Timeout = n
	case "port":
		if err := need(1); err != nil {
			return err
		}
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("port: %w", err)
		}
		cfg.Port = n
	case "bind":
		if err := need(1); err != nil {
			return err
		}
		cfg.Bind = args[0]
	case "save":
		if err := need(2); err != nil {
			return err
		}
		seconds, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("save seconds: %w", err)
		}
		changes, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("save changes: %w", err)
		}
		cfg.Save = append(cfg.Save, SaveRule{Seconds: seconds, Changes: changes})
	case "dir":
		if err := need(1); err != nil {
			return err
		}
		cfg.Dir = args[0]
	case "loglevel":
		if err := need(1); err != nil {
			return err
		}
		switch args[0] {
		case "debug", "notice", "warning":
			cfg.LogLevel = args[0]
		default:
			return fmt.Errorf("loglevel: unknown level %q", args[0])
		}
	case "logfile":
		if err := need(1); err != nil {
			return err
		}
		cfg.LogFile = args[0]
	case "databases":
		if err := need(1); err != nil {
			return err
		}
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("databases: %w", err)
		}
		cfg.Databases = n
	case "maxclients":
		if err := need(1); err != nil {
			return err
		}
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("maxclients: %w", err)
		}
		cfg.MaxClients = n
	case "maxmemory":
		if err := need(1); err != nil {
			return err
		}
		n, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("maxmemory: %w", err)
		}
		cfg.MaxMemory = n
	case "slaveof":
		if err := need(2); err != nil {
			return err
		}
		port, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("slaveof port: %w", err)
		}
		cfg.SlaveOfHost = args[0]
		cfg.SlaveOfPort = port
	case "glueoutputbuf":
		b, err := parseYesNo(directive, args)
		if err != nil {
			return err
		}
		cfg.GlueOutputBuf = b
	case "shareobjects":
		b, err := parseYesNo(directive, args)
		if err != nil {
			return err
		}
		cfg.ShareObjects = b
	case "shareobjectspoolsize":
		if err := need(1); err != nil {
			return err
		}
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("shareobjectspoolsize: %w", err)
		}
		cfg.ShareObjectsPoolSize = n
	case "daemonize":
		b, err := parseYesNo(directive, args)
		if err != nil {
			return err
		}
		cfg.Daemonize = b
	case "requirepass":
		if err := need(1); err != nil {
			return err
		}
		cfg.RequirePass = args[0]
	case "pidfile":
		if err := need(1); err != nil {
			return err
		}
		cfg.PidFile = args[0]
	case "dbfilename":
		if err := need(1); err != nil {
			return err
		}
		cfg.DBFilename = args[0]
	case "metrics-addr":
		if err := need(1); err != nil {
			return err
		}
		cfg.MetricsAddr = args[0]
	default:
		return fmt.Errorf("unknown directive %q", directive)
	}
	return nil
}

func parseYesNo(directive string, args []string) (bool, error) {
	if len(args) < 1 {
		return false, fmt.Errorf("%s requires 1 argument", directive)
	}
	switch args[0] {
	case "yes":
		return true, nil
	case "no":
		return false, nil
	default:
		return false, fmt.Errorf("%s: expected yes|no, got %q", directive, args[0])
	}
}

// PoolSize returns the interning pool capacity to use, honoring
// ShareObjects: disabled means a capacity of zero (see pkg/object.NewPool).
func (c *Config) PoolSize() int {
	if !c.ShareObjects {
		return 0
	}
	return c.ShareObjectsPoolSize
}
