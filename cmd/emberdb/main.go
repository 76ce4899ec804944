package main

import (
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cuemby/emberdb/pkg/config"
	"github.com/cuemby/emberdb/pkg/log"
	"github.com/cuemby/emberdb/pkg/metrics"
	"github.com/cuemby/emberdb/pkg/server"
)

var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	debug.SetTraceback("all")
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "emberdb [config-path]",
	Short: "emberdb - a single-threaded in-memory key-value store",
	Long: `emberdb is an in-memory key-value store with command dispatch,
keyspace expiration, snapshot persistence, and single-master
replication, run on one cooperative event loop.`,
	Version: Version,
	Args:    cobra.MaximumNArgs(1),
	RunE:    runServer,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"emberdb version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().String("log-level", "notice", "Log level (debug, notice, warning)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")

	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(versionCmd)
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")

	log.Init(log.Config{
		Level:      log.Level(logLevel),
		JSONOutput: logJSON,
	})
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the emberdb version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("emberdb version %s (commit %s, built %s)\n", Version, Commit, BuildTime)
	},
}

func runServer(cmd *cobra.Command, args []string) error {
	metrics.SetVersion(Version)

	cfg := config.Default()
	if len(args) == 1 {
		loaded, err := config.Load(args[0])
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	}

	if cmd.Flags().Changed("log-level") {
		cfg.LogLevel, _ = cmd.Flags().GetString("log-level")
	}
	logJSON, _ := cmd.Flags().GetBool("log-json")
	log.Init(log.Config{
		Level:      log.Level(cfg.LogLevel),
		JSONOutput: logJSON,
	})

	srv, err := server.New(cfg)
	if err != nil {
		return fmt.Errorf("build server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				errCh <- fmt.Errorf("server panicked: %v", r)
			}
		}()
		errCh <- srv.Run()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		log.Info("received shutdown signal")
	case err := <-errCh:
		if err != nil {
			log.Errorf("server stopped: %v", err)
		}
	}

	if err := srv.Close(); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	log.Info("shutdown complete")
	return nil
}
