package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"savesaver/internal/app"
	"savesaver/internal/config"

	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newApp reads the config and creates an App. The caller must defer a.Close().
// operation identifies the CLI command being run (e.g. "BackupNow", "Run").
func newApp(operation string) (*app.App, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	a, err := app.NewApp(cfg, operation)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}

	return a, nil
}

var rootCmd = &cobra.Command{
	Use:   "savesaver",
	Short: "Background save-game backup tool",
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg := config.NewConfig(defaults["base_dir"])

		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Base Dir: %s\n", defaults["base_dir"])
		fmt.Printf("Settings: %s\n", defaults["settings_path"])
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg, err := config.ReadFromFile(defaults["config_path"])
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		fmt.Printf("Configuration from %s:\n\n", defaults["config_path"])
		fmt.Printf("Base Dir:       %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:        %s\n", cfg.LogDir)
		fmt.Printf("Slot Prefix:    %s\n", cfg.SlotPrefix)
		fmt.Printf("Mirror Deletes: %t\n", cfg.MirrorDeletes)
		fmt.Printf("Ignore:         %v\n", cfg.Ignore)
		fmt.Printf("Retry:          %d attempts, %s backoff\n",
			cfg.Retry.Attempts, cfg.Retry.BackoffDuration())
		return nil
	},
}

// target command
var targetCmd = &cobra.Command{
	Use:   "target",
	Short: "Manage backup targets",
}

var targetAddCmd = &cobra.Command{
	Use:   "add NAME",
	Short: "Add or update a target",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		saveFolder, _ := cmd.Flags().GetString("save-folder")
		backupFolder, _ := cmd.Flags().GetString("backup-folder")

		a, err := newApp("AddTarget")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.AddTarget(args[0], saveFolder, backupFolder); err != nil {
			return fmt.Errorf("adding target: %w", err)
		}

		fmt.Printf("Target saved: %s\n", args[0])
		return nil
	},
}

var targetListCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured targets",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("ListTargets")
		if err != nil {
			return err
		}
		defer a.Close()

		targets := a.ListTargets()
		if len(targets) == 0 {
			fmt.Println("No targets configured.")
			return nil
		}

		for _, t := range targets {
			save := t.SaveFolder
			if save == "" {
				save = "(not set)"
			}
			fmt.Printf("%s\n  save:   %s\n  backup: %s\n", t.Name, save, t.BackupFolder)
		}
		return nil
	},
}

var targetRemoveCmd = &cobra.Command{
	Use:   "remove NAME",
	Short: "Remove a target (backups stay on disk)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("RemoveTarget")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.RemoveTarget(args[0]); err != nil {
			return fmt.Errorf("removing target: %w", err)
		}

		fmt.Printf("Target removed: %s\n", args[0])
		return nil
	},
}

// discover command
var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Search for save folders on this machine",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("Discover")
		if err != nil {
			return err
		}
		defer a.Close()

		candidates := a.Discover()
		if len(candidates) == 0 {
			fmt.Println("No save folders found.")
			return nil
		}

		for _, path := range candidates {
			fmt.Println(path)
		}
		return nil
	},
}

// backup command
var backupCmd = &cobra.Command{
	Use:   "backup TARGET",
	Short: "Back up every save slot of a target now",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("BackupNow")
		if err != nil {
			return err
		}
		defer a.Close()

		entries, err := a.BackupNow(args[0])
		if err != nil {
			return fmt.Errorf("backup failed: %w", err)
		}

		if len(entries) == 0 {
			fmt.Println("No save slots found.")
			return nil
		}
		for _, e := range entries {
			fmt.Printf("%s -> %s\n", e.SlotName, e.StoredPath)
		}
		return nil
	},
}

// snapshots command
var snapshotsCmd = &cobra.Command{
	Use:   "snapshots TARGET",
	Short: "List a target's stored snapshots",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("ListSnapshots")
		if err != nil {
			return err
		}
		defer a.Close()

		snaps, err := a.Snapshots(args[0])
		if err != nil {
			return err
		}

		if len(snaps) == 0 {
			fmt.Println("No snapshots.")
			return nil
		}

		var total int64
		for _, s := range snaps {
			total += s.Size
			fmt.Printf("%s  %s  slot:%s  %d bytes\n",
				s.Name,
				s.ModTime.Format("2006-01-02 15:04:05"),
				s.SlotName,
				s.Size,
			)
		}
		fmt.Printf("\n%d snapshot(s), %d bytes total\n", len(snaps), total)
		return nil
	},
}

// restore command
var restoreCmd = &cobra.Command{
	Use:   "restore TARGET SNAPSHOT",
	Short: "Copy a snapshot back into the live save folder",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("Restore")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Restore(args[0], args[1]); err != nil {
			return fmt.Errorf("restore failed: %w", err)
		}

		fmt.Printf("Restored %s\n", args[1])
		return nil
	},
}

// history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View recorded operations",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp("GetHistory")
		if err != nil {
			return err
		}
		defer a.Close()

		ops, err := a.History(limit)
		if err != nil {
			return err
		}

		if len(ops) == 0 {
			fmt.Println("No operations recorded.")
			return nil
		}

		for _, op := range ops {
			duration := ""
			if op.FinishedAt.Valid {
				d := op.FinishedAt.Time.Sub(op.StartedAt)
				duration = d.Truncate(time.Millisecond).String()
			}
			fmt.Printf("#%d  %-12s  %-12s  %s  %-8s  %s\n",
				op.ID,
				op.Operation,
				op.Target,
				op.StartedAt.Format("2006-01-02 15:04:05"),
				op.Status,
				duration,
			)
		}
		return nil
	},
}

// status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show target folders and backup sizes",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("GetStatus")
		if err != nil {
			return err
		}
		defer a.Close()

		statuses := a.Status()
		if len(statuses) == 0 {
			fmt.Println("No targets configured.")
			return nil
		}

		for _, s := range statuses {
			saveMark, backupMark := "missing", "missing"
			if s.SaveFolderOK {
				saveMark = "ok"
			}
			if s.BackupFolderOK {
				backupMark = "ok"
			}
			fmt.Printf("%s\n", s.Name)
			fmt.Printf("  save:   %s [%s]\n", s.SaveFolder, saveMark)
			fmt.Printf("  backup: %s [%s] (%d bytes)\n", s.BackupFolder, backupMark, s.BackupSize)
		}
		return nil
	},
}

// run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Watch every target and back up saves as they change",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("Run")
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		fmt.Println("Watching for save changes; press Ctrl-C to stop.")
		return a.Run(ctx)
	},
}

func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)

	targetCmd.AddCommand(targetAddCmd)
	targetAddCmd.Flags().String("save-folder", "", "Live save folder to watch")
	targetAddCmd.Flags().String("backup-folder", "", "Where snapshots are stored")
	targetCmd.AddCommand(targetListCmd)
	targetCmd.AddCommand(targetRemoveCmd)

	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(targetCmd)
	rootCmd.AddCommand(discoverCmd)
	rootCmd.AddCommand(backupCmd)
	rootCmd.AddCommand(snapshotsCmd)
	rootCmd.AddCommand(restoreCmd)
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntP("limit", "n", 50, "Maximum number of operations to show")
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(runCmd)
}
