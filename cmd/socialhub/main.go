// cmd/socialhub/main.go
//
// This is the entry point for the SocialHub terminal client.
// Run `socialhub` from a project directory to open the feed.
//
// Flow:
// 1. Load .env files, .socialhub/config.yaml and SOCIALHUB_* overrides
// 2. Apply command-line flags on top
// 3. Launch the TUI and block until the user quits

package main

import (
	"fmt"
	"os"
	"runtime"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/kingrea/socialhub/internal/config"
	"github.com/kingrea/socialhub/internal/tui"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		dir     string
		baseURL string
	)
	cmd := &cobra.Command{
		Use:           "socialhub",
		Short:         "Browse and post to a SocialHub feed from the terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(dir)
			if err != nil {
				return err
			}
			if baseURL != "" {
				if err := cfg.SetBaseURL(baseURL); err != nil {
					return err
				}
			}
			return run(cfg)
		},
	}
	cmd.PersistentFlags().StringVarP(&dir, "dir", "d", "", "project directory holding .socialhub (default: working directory)")
	cmd.Flags().StringVar(&baseURL, "base-url", "", "API origin, overrides config and SOCIALHUB_BASE_URL")

	cmd.AddCommand(initCmd(&dir), versionCmd())
	return cmd
}

func initCmd(dir *string) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create .socialhub/config.yaml and the logs directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := projectDir(*dir)
			if err != nil {
				return err
			}
			if err := config.InitAppDir(root); err != nil {
				return fmt.Errorf("initializing %s: %w", config.AppDir, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ initialized %s in %s\n", config.AppDir, root)
			return nil
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "socialhub %s (%s)\n", version, commit)
			fmt.Fprintf(out, "  Go version: %s\n", runtime.Version())
			fmt.Fprintf(out, "  OS/Arch:    %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}
}

func projectDir(dir string) (string, error) {
	if dir != "" {
		return dir, nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getting working directory: %w", err)
	}
	return cwd, nil
}

func loadConfig(dir string) (*config.Config, error) {
	root, err := projectDir(dir)
	if err != nil {
		return nil, err
	}
	if err := config.InitAppDir(root); err != nil {
		return nil, fmt.Errorf("initializing %s: %w", config.AppDir, err)
	}
	return config.NewConfig(root)
}

func run(cfg *config.Config) error {
	app, err := tui.NewApp(cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	// Mouse reporting lets a click on the backdrop dismiss the open modal.
	p := tea.NewProgram(app, tea.WithAltScreen(), tea.WithMouseCellMotion())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("running TUI: %w", err)
	}
	return nil
}
