package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"ctfboard/internal/app"
	"ctfboard/internal/devtools"
)

var (
	// Global flags
	configPath   string
	baseURL      string
	token        string
	dataDir      string
	logPath      string
	asciiOnly    bool
	categories   []string
	completed    bool
	notCompleted bool
	sortFlag     string
	styleVariant string

	// Demo flags
	scenario string
	fixture  string
	latency  time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "ctfboard",
	Short: "Terminal challenge board for CTFd-compatible backends",
	Long: `ctfboard shows the challenges of a CTF event as a filterable grid,
opens challenge details and hints, and submits answers.

Run without a subcommand to start the interactive board.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		return runBoard(cmd.Context(), cfg)
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the interactive board",
	Args:  cobra.NoArgs,
	RunE:  rootCmd.RunE,
}

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Run the board against a built-in fixture backend",
	Long: `demo starts an in-process backend serving a fixture board and opens
the interactive client against it. Scenarios preset the first dialog:
` + strings.Join(devtools.NewManager().Scenarios(), ", ") + `.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd, func(c *app.Config) {
			c.Demo.Enabled = true
			if cmd.Flags().Changed("scenario") {
				c.Demo.Scenario = scenario
			}
			if cmd.Flags().Changed("fixture") {
				c.Demo.Fixture = fixture
			}
			if cmd.Flags().Changed("latency") {
				c.Demo.Latency = latency
			}
		})
		if err != nil {
			return err
		}
		return runBoard(cmd.Context(), cfg)
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configPath, "config", "", "Path to a YAML config file")
	flags.StringVar(&baseURL, "url", "", "Backend base URL (CTFBOARD_URL)")
	flags.StringVar(&token, "token", "", "API access token (CTFBOARD_TOKEN)")
	flags.StringVar(&dataDir, "data-dir", "", "Directory for local state")
	flags.StringVar(&logPath, "log", "", "Write JSON logs to this file")
	flags.BoolVar(&asciiOnly, "ascii", false, "Use ASCII-only glyphs")
	flags.StringSliceVar(&categories, "category", nil, "Show only these categories (repeatable)")
	flags.BoolVar(&completed, "completed", false, "Show completed challenges only")
	flags.BoolVar(&notCompleted, "not-completed", false, "Show challenges not completed yet")
	flags.StringVar(&sortFlag, "sort", "", "Sort strategy: source, category, value, value_desc, name")
	flags.StringVar(&styleVariant, "style", "", "Color theme: modern_arcade, cozy_clean, retro_terminal")

	demoCmd.Flags().StringVar(&scenario, "scenario", "board", "Starting scenario")
	demoCmd.Flags().StringVar(&fixture, "fixture", "", "Fixture YAML to serve instead of the built-in board")
	demoCmd.Flags().DurationVar(&latency, "latency", 0, "Artificial delay added to every demo response")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(demoCmd)
	rootCmd.AddCommand(challengesCmd)
	rootCmd.AddCommand(submitCmd)
}

// loadConfig layers defaults, the config file, the environment and finally
// explicitly set flags.
func loadConfig(cmd *cobra.Command, extra ...func(*app.Config)) (app.Config, error) {
	cfg := app.DefaultConfig()
	if err := cfg.LoadConfigFile(configPath); err != nil {
		return cfg, err
	}
	if err := cfg.ApplyEnv(nil); err != nil {
		return cfg, err
	}

	flags := cmd.Flags()
	if flags.Changed("url") {
		cfg.URL = baseURL
	}
	if flags.Changed("token") {
		cfg.Token = token
	}
	if flags.Changed("data-dir") {
		cfg.DataDir = dataDir
	}
	if flags.Changed("log") {
		cfg.LogPath = logPath
	}
	if flags.Changed("ascii") {
		cfg.ASCIIOnly = asciiOnly
	}
	if flags.Changed("category") {
		cfg.Board.Categories = categories
	}
	if flags.Changed("completed") || flags.Changed("not-completed") {
		cfg.Board.Completion = nil
		cfg.Board.CompletionSet = true
		if completed {
			cfg.Board.Completion = append(cfg.Board.Completion, "completed")
		}
		if notCompleted {
			cfg.Board.Completion = append(cfg.Board.Completion, "not_completed")
		}
	}
	if flags.Changed("sort") {
		cfg.Board.Sort = sortFlag
	}
	if flags.Changed("style") {
		cfg.UI.StyleVariant = styleVariant
	}
	for _, fn := range extra {
		fn(&cfg)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func runBoard(ctx context.Context, cfg app.Config) error {
	a, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer a.Close()
	return a.Run(ctx)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
