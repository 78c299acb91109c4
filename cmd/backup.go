package cmd

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

type backupConfig struct {
	MongoURI string
	Database string
	OutDir   string
	Interval time.Duration
	Keep     int
}

func init() {
	rootCmd.AddCommand(newBackupCommand())
}

// newBackupCommand wraps mongodump + tar, the way the original cron script
// did. Without --interval it runs once, so cron-driven deployments keep
// working; with --interval it self-schedules.
func newBackupCommand() *cobra.Command {
	cfg := backupConfig{
		OutDir: "backups",
		Keep:   14,
	}

	backupCmd := &cobra.Command{
		Use:   "backup",
		Short: "Dump the exchange database and archive it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.MongoURI == "" {
				cfg.MongoURI = lookupEnv("CAMPEX_MONGO_URI")
			}
			if cfg.MongoURI == "" {
				return fmt.Errorf("missing mongo URI: set --mongo-uri or CAMPEX_MONGO_URI")
			}

			if cfg.Interval <= 0 {
				archive, err := runBackup(cmd.Context(), cfg)
				if err != nil {
					return err
				}
				cmd.Printf("Backup written to %s\n", archive)
				return nil
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			ticker := time.NewTicker(cfg.Interval)
			defer ticker.Stop()

			for {
				archive, err := runBackup(ctx, cfg)
				if err != nil {
					cmd.PrintErrf("backup failed: %v\n", err)
				} else {
					cmd.Printf("Backup written to %s\n", archive)
				}

				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
				}
			}
		},
	}

	backupCmd.Flags().StringVar(&cfg.MongoURI, "mongo-uri", "", "MongoDB connection URI. Can also be set via CAMPEX_MONGO_URI.")
	backupCmd.Flags().StringVar(&cfg.Database, "database", "", "Restrict the dump to one database.")
	backupCmd.Flags().StringVar(&cfg.OutDir, "out-dir", cfg.OutDir, "Directory archives are written to.")
	backupCmd.Flags().DurationVar(&cfg.Interval, "interval", 0, "Run continuously on this interval instead of once.")
	backupCmd.Flags().IntVar(&cfg.Keep, "keep", cfg.Keep, "Number of newest archives to retain; 0 disables pruning.")

	return backupCmd
}

func runBackup(ctx context.Context, cfg backupConfig) (string, error) {
	if err := os.MkdirAll(cfg.OutDir, 0o750); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}

	dumpDir, err := os.MkdirTemp("", "campex-dump-*")
	if err != nil {
		return "", fmt.Errorf("create dump directory: %w", err)
	}
	defer os.RemoveAll(dumpDir)

	dumpArgs := []string{"--uri", cfg.MongoURI, "--out", dumpDir}
	if cfg.Database != "" {
		dumpArgs = append(dumpArgs, "--db", cfg.Database)
	}

	dump := exec.CommandContext(ctx, "mongodump", dumpArgs...)
	dump.Stderr = os.Stderr
	if err := dump.Run(); err != nil {
		return "", fmt.Errorf("mongodump: %w", err)
	}

	archive := filepath.Join(cfg.OutDir, fmt.Sprintf("campex-%s.tar.gz", time.Now().UTC().Format("20060102-150405")))
	tarCmd := exec.CommandContext(ctx, "tar", "-czf", archive, "-C", dumpDir, ".")
	tarCmd.Stderr = os.Stderr
	if err := tarCmd.Run(); err != nil {
		_ = os.Remove(archive)
		return "", fmt.Errorf("tar: %w", err)
	}

	if cfg.Keep > 0 {
		if err := pruneBackups(cfg.OutDir, cfg.Keep); err != nil {
			return "", fmt.Errorf("prune old archives: %w", err)
		}
	}

	return archive, nil
}

func pruneBackups(dir string, keep int) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}

	var archives []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.Type().IsRegular() && strings.HasPrefix(name, "campex-") && strings.HasSuffix(name, ".tar.gz") {
			archives = append(archives, name)
		}
	}

	// Archive names embed a sortable UTC timestamp.
	sort.Sort(sort.Reverse(sort.StringSlice(archives)))

	for _, name := range archives[min(keep, len(archives)):] {
		if err := os.Remove(filepath.Join(dir, name)); err != nil {
			return err
		}
	}
	return nil
}
