package main

import (
	"fmt"
	"os"
	"strings"
	"syscall"
	"time"

	"ghmirror/internal/app"
	"ghmirror/internal/config"
	"ghmirror/internal/mirror"
	"ghmirror/internal/token"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newApp reads the config and creates a MirrorApp. The caller must defer app.Close().
// operation identifies the CLI command being run (e.g. "Sync", "Status").
func newApp(operation string, ov app.Overrides) (*app.MirrorApp, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	a, err := app.NewMirrorApp(cfg, operation, ov)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}

	return a, nil
}

var rootCmd = &cobra.Command{
	Use:   "ghmirror",
	Short: "Mirror a fixed manifest of GitHub files into a local directory",
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
		// Get application defaults
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		// Create config with defaults
		cfg := config.NewConfig(defaults["base_dir"])

		// Initialize config file
		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		// Generate the token-storage identity up front so `config token`
		// only has to encrypt.
		tokens := token.NewStore(cfg.Token.IdentityPath, cfg.Token.TokenPath)
		if err := tokens.GenerateIdentity(); err != nil {
			return fmt.Errorf("failed to generate token identity: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Base Dir: %s\n", defaults["base_dir"])
		fmt.Println("Add [[targets]] entries and set working_dir before running sync.")
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		// Get application defaults
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		// Read config
		cfg, err := config.ReadFromFile(defaults["config_path"])
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		// Display config
		fmt.Printf("Configuration from %s:\n\n", defaults["config_path"])
		fmt.Printf("Upstream URL: %s\n", cfg.UpstreamURL)
		fmt.Printf("Working Dir:  %s\n", cfg.WorkingDir)
		fmt.Printf("Workers:      %d\n", cfg.Workers)
		fmt.Printf("Base Dir:     %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:      %s\n", cfg.LogDir)
		fmt.Printf("Targets:      %d\n", len(cfg.Targets))
		for _, t := range cfg.Targets {
			fmt.Printf("  %s: %s\n", t.Repo, strings.Join(t.Path, "/"))
		}
		return nil
	},
}

var configTokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Store the GitHub API token (encrypted at rest)",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("SaveToken", app.Overrides{})
		if err != nil {
			return err
		}
		defer a.Close()

		fmt.Print("GitHub token: ")
		raw, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println()
		if err != nil {
			return fmt.Errorf("reading token: %w", err)
		}

		if err := a.SaveToken(string(raw)); err != nil {
			return fmt.Errorf("saving token: %w", err)
		}

		fmt.Println("Token stored.")
		return nil
	},
}

// sync command
var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Mirror all manifest targets",
	RunE: func(cmd *cobra.Command, args []string) error {
		workingDir, _ := cmd.Flags().GetString("working-dir")
		workers, _ := cmd.Flags().GetInt("workers")
		noHistory, _ := cmd.Flags().GetBool("no-history")

		a, err := newApp("Sync", app.Overrides{
			WorkingDir: workingDir,
			Workers:    workers,
			NoHistory:  noHistory,
		})
		if err != nil {
			return err
		}
		defer a.Close()

		outcomes, err := a.Sync(cmd.Context())
		if err != nil {
			return fmt.Errorf("sync failed: %w", err)
		}

		var synced, skipped, failed int
		for _, o := range outcomes {
			switch o.Status {
			case mirror.StatusSynced:
				synced++
			case mirror.StatusSkipped:
				skipped++
			case mirror.StatusFailed:
				failed++
			}
		}

		// Individual target failures are reported but do not affect the
		// process exit status.
		fmt.Printf("Synced %d, skipped %d, failed %d of %d target(s)\n",
			synced, skipped, failed, len(outcomes))
		return nil
	},
}

// status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "View local state of manifest targets",
	RunE: func(cmd *cobra.Command, args []string) error {
		workingDir, _ := cmd.Flags().GetString("working-dir")

		a, err := newApp("Status", app.Overrides{WorkingDir: workingDir, NoHistory: true})
		if err != nil {
			return err
		}
		defer a.Close()

		states, err := a.Status()
		if err != nil {
			return err
		}

		if len(states) == 0 {
			fmt.Println("No targets configured.")
			return nil
		}

		for _, s := range states {
			if s.Present {
				fmt.Printf("M  %s  %s  %d\n", s.Target.Dest, s.SHA[:min(12, len(s.SHA))], s.Size)
			} else {
				fmt.Printf("?  %s\n", s.Target.Dest)
			}
		}
		return nil
	},
}

// history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View sync operation history",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		outcomesOf, _ := cmd.Flags().GetInt64("outcomes")

		a, err := newApp("GetHistory", app.Overrides{})
		if err != nil {
			return err
		}
		defer a.Close()

		if outcomesOf > 0 {
			rows, err := a.Outcomes(outcomesOf)
			if err != nil {
				return err
			}
			if len(rows) == 0 {
				fmt.Println("No outcomes recorded for this operation.")
				return nil
			}
			for _, r := range rows {
				line := fmt.Sprintf("%-8s %s %s", r.Status, r.Repo, r.Path)
				if r.Message != "" {
					line += "  [" + r.Message + "]"
				}
				fmt.Println(line)
			}
			return nil
		}

		ops, err := a.History(limit)
		if err != nil {
			return err
		}

		if len(ops) == 0 {
			fmt.Println("No sync operations recorded.")
			return nil
		}

		for _, op := range ops {
			duration := ""
			if op.FinishedAt.Valid {
				d := op.FinishedAt.Time.Sub(op.StartedAt)
				duration = d.Truncate(time.Millisecond).String()
			}
			fmt.Printf("#%d  %-12s  %s  %-8s  %s\n",
				op.ID,
				op.Operation,
				op.StartedAt.Format("2006-01-02 15:04:05"),
				op.Status,
				duration,
			)
		}
		return nil
	},
}

func init() {
	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)
	configCmd.AddCommand(configTokenCmd)

	// root commands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(syncCmd)
	syncCmd.Flags().String("working-dir", "", "Mirror output directory")
	syncCmd.Flags().IntP("workers", "w", 0, "Number of concurrent downloading jobs")
	syncCmd.Flags().Bool("no-history", false, "Do not record this run in the history database")
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().String("working-dir", "", "Mirror output directory")
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntP("limit", "n", 50, "Maximum number of operations to show")
	historyCmd.Flags().Int64("outcomes", 0, "Show per-target outcomes of the given operation ID")
}
