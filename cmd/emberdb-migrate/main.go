package main

import (
	"crypto/sha256"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/cuemby/emberdb/pkg/keyspace"
	"github.com/cuemby/emberdb/pkg/rdb"
)

var (
	databases int
	dryRun    bool
	outPath   string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "emberdb-migrate <dump-file>",
	Short: "Re-save a dump file as the current snapshot format",
	Long: `emberdb-migrate loads a version-0 or version-1 dump file, re-saves
it as the current format, and writes a sidecar manifest recording the
format version, per-database key counts, and a checksum of the dump.`,
	Args: cobra.ExactArgs(1),
	RunE: runMigrate,
}

func init() {
	rootCmd.Flags().IntVar(&databases, "databases", 16, "Number of databases to allocate while loading")
	rootCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report what would happen without writing anything")
	rootCmd.Flags().StringVar(&outPath, "out", "", "Destination path for the re-saved dump (default: overwrite the input)")
}

type manifest struct {
	FormatVersion int         `yaml:"format_version"`
	SourcePath    string      `yaml:"source_path"`
	DestPath      string      `yaml:"dest_path"`
	KeyCounts     map[int]int `yaml:"key_counts"`
	TotalKeys     int         `yaml:"total_keys"`
	Checksum      string      `yaml:"sha256"`
	MigratedAt    string      `yaml:"migrated_at"`
}

func runMigrate(cmd *cobra.Command, args []string) error {
	srcPath := args[0]
	if _, err := os.Stat(srcPath); err != nil {
		return fmt.Errorf("dump file %s: %w", srcPath, err)
	}

	dest := outPath
	if dest == "" {
		dest = srcPath
	}

	fmt.Printf("emberdb-migrate: loading %s\n", srcPath)
	ks := keyspace.New(databases, 0)
	if err := rdb.Load(ks, srcPath); err != nil {
		return fmt.Errorf("load %s: %w", srcPath, err)
	}

	keyCounts := make(map[int]int)
	total := 0
	for _, db := range ks.All() {
		if db.Size() == 0 {
			continue
		}
		keyCounts[db.ID()] = db.Size()
		total += db.Size()
	}
	fmt.Printf("emberdb-migrate: loaded %d keys across %d databases\n", total, len(keyCounts))

	if dryRun {
		fmt.Println("emberdb-migrate: dry run, nothing written")
		return nil
	}

	saver := rdb.New(ks, dest)
	if err := saver.Save(); err != nil {
		return fmt.Errorf("save %s: %w", dest, err)
	}
	fmt.Printf("emberdb-migrate: wrote %s\n", dest)

	sum, err := checksumFile(dest)
	if err != nil {
		return fmt.Errorf("checksum %s: %w", dest, err)
	}

	m := manifest{
		FormatVersion: 1,
		SourcePath:    srcPath,
		DestPath:      dest,
		KeyCounts:     keyCounts,
		TotalKeys:     total,
		Checksum:      sum,
		MigratedAt:    time.Now().UTC().Format(time.RFC3339),
	}
	manifestPath := dest + ".manifest.yaml"
	if err := writeManifest(manifestPath, m); err != nil {
		return fmt.Errorf("write manifest %s: %w", manifestPath, err)
	}
	fmt.Printf("emberdb-migrate: wrote %s\n", manifestPath)
	return nil
}

func checksumFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", h.Sum(nil)), nil
}

func writeManifest(path string, m manifest) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Clean(path), data, 0644)
}
