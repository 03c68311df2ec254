package cli

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dyike/BriefCast/config"
	"github.com/dyike/BriefCast/internal/dataflows"
	"github.com/dyike/BriefCast/internal/debate"
	"github.com/dyike/BriefCast/internal/pipeline"
	"github.com/dyike/BriefCast/internal/script"
	"github.com/dyike/BriefCast/internal/server"
	"github.com/dyike/BriefCast/internal/tools"
)

// Version is set at build time with -ldflags.
var Version = "dev"

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	cfg := config.DefaultConfig()

	rootCmd := &cobra.Command{
		Use:   "briefcast",
		Short: "BriefCast - daily Korean market briefing scripts",
		Long: `BriefCast writes the script of a Korean daily US-market podcast.
An opening model summarizes the day, theme workers expand the headlines,
four experts debate each requested ticker, and a closing segment previews
the calendar.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.EnsureDirectories(); err != nil {
				return fmt.Errorf("failed to create directories: %w", err)
			}
			return nil
		},
	}

	rootCmd.AddCommand(newRunCmd(cfg))
	rootCmd.AddCommand(newDebateCmd(cfg))
	rootCmd.AddCommand(newPrefetchCmd(cfg))
	rootCmd.AddCommand(newServeCmd(cfg))
	rootCmd.AddCommand(newListCmd(cfg))
	rootCmd.AddCommand(newConfigCmd(cfg))
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func newRunCmd(cfg *config.Config) *cobra.Command {
	var (
		tickers string
		stage   string
		only    string
		yes     bool
	)
	cmd := &cobra.Command{
		Use:   "run [DATE]",
		Short: "Generate the briefing script for a date",
		Long: `Run the pipeline for DATE (YYYYMMDD or YYYY-MM-DD).
--stage stops after a stage (0 opening .. 3 closing) and only a full run
saves the final script. --only reruns one stage from its predecessor's
temp artifact. Without DATE the date and tickers are asked for.`,
		Example: `  briefcast run 20250307 --tickers AAPL,MSFT
  briefcast run 2025-03-07 --stage 1
  briefcast run 20250307 --only ticker --tickers NVDA`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := pipeline.Request{}
			var err error
			if req.Tickers, err = parseTickers(tickers); err != nil {
				return err
			}
			if len(args) == 1 {
				req.Date = args[0]
			} else {
				if req.Date, err = PromptForDate(); err != nil {
					return err
				}
				if !cmd.Flags().Changed("tickers") {
					if req.Tickers, err = PromptForTickers(); err != nil {
						return err
					}
				}
			}
			if req.Cutoff, err = pipeline.ParseStage(stage); err != nil {
				return err
			}
			if only != "" {
				s, err := pipeline.ParseStage(only)
				if err != nil {
					return err
				}
				req.Only = &s
			}
			if len(args) == 0 && !yes {
				ok, err := PromptForConfirmation(fmt.Sprintf("Generate %s with tickers [%s]?", req.Date, strings.Join(req.Tickers, ", ")))
				if err != nil || !ok {
					return err
				}
			}
			return runPipeline(cfg, req)
		},
	}
	cmd.Flags().StringVar(&tickers, "tickers", "", "Comma separated tickers to debate")
	cmd.Flags().StringVar(&stage, "stage", "3", "Last stage to run: 0..3 or a stage name")
	cmd.Flags().StringVar(&only, "only", "", "Run a single stage from the previous stage's artifact")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the confirmation prompt")
	return cmd
}

func runPipeline(cfg *config.Config, req pipeline.Request) error {
	ctx, cancel := signalContext()
	defer cancel()

	a, err := newApp(ctx, cfg, req.Full())
	if err != nil {
		return err
	}
	defer a.Close()

	st, err := a.orchestrator().Run(ctx, req)
	if st != nil {
		fmt.Print(RenderRunSummary(st))
	}
	if err != nil {
		return fmt.Errorf("run failed: %w", err)
	}
	if req.Full() {
		fmt.Println(completedStyle.Render("saved " + cfg.ScriptPath(st.Date)))
	}
	return nil
}

func newDebateCmd(cfg *config.Config) *cobra.Command {
	var maxRounds int
	cmd := &cobra.Command{
		Use:   "debate DATE TICKER",
		Short: "Run a single ticker debate and print the transcript",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			date, err := script.NormalizeDate(args[0])
			if err != nil {
				return err
			}
			ticker := dataflows.NormalizeSymbol(args[1])
			if err := dataflows.ValidateSymbol(ticker); err != nil {
				return err
			}

			ctx, cancel := signalContext()
			defer cancel()
			a, err := newApp(ctx, cfg, false)
			if err != nil {
				return err
			}
			defer a.Close()

			gw, err := tools.NewGateway(cfg, date, a.prices)
			if err != nil {
				return err
			}
			defer gw.Close()

			settings := debate.SettingsFromConfig(cfg)
			if maxRounds > 0 {
				settings = settings.WithMaxRounds(maxRounds)
			}
			engine := debate.NewEngine(gw, a.models, settings, debate.WithMaxIterations(cfg.WorkerMaxIterations))
			t, err := engine.Run(ctx, ticker)
			if err != nil {
				return err
			}
			path := cfg.StageArtifactPath("debate_" + ticker)
			if err := script.WriteJSON(path, t); err != nil {
				return err
			}
			fmt.Print(RenderTranscript(t))
			fmt.Println(pendingStyle.Render("transcript " + path))
			return nil
		},
	}
	cmd.Flags().IntVar(&maxRounds, "max-rounds", 0, "Override the maximum number of rounds")
	return cmd
}

func newPrefetchCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "prefetch DATE",
		Short: "Write the market context snapshot for a date",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			date, err := script.NormalizeDate(args[0])
			if err != nil {
				return err
			}
			day, err := script.ParseDate(date)
			if err != nil {
				return err
			}
			ctx, cancel := signalContext()
			defer cancel()
			a, err := newApp(ctx, cfg, false)
			if err != nil {
				return err
			}
			defer a.Close()

			mc := dataflows.BuildMarketContext(ctx, a.prices, day)
			path := filepath.Join(cfg.DateCacheDir(date), "market_context.json")
			if err := script.WriteJSON(path, mc); err != nil {
				return err
			}
			fmt.Print(RenderMarketContext(mc))
			fmt.Println(pendingStyle.Render("saved " + path))
			return nil
		},
	}
}

func newServeCmd(cfg *config.Config) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the podcast index, scripts and metrics over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()
			a, err := newApp(ctx, cfg, true)
			if err != nil {
				return err
			}
			defer a.Close()

			if mgr, err := config.NewManager(config.WithConfigPath(cfg.AppConfigPath)); err != nil {
				log.Printf("[Config] app config watch disabled: %v", err)
			} else if err := mgr.Watch(ctx, func(config.AppFile) {
				log.Printf("[Config] %s reloaded, %d keys applied", mgr.Path(), mgr.Apply(true))
			}); err != nil {
				log.Printf("[Config] app config watch disabled: %v", err)
			}

			if addr == "" {
				addr = cfg.ServeAddr
			}
			return server.New(cfg, a.index).Start(ctx, addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (defaults to SERVE_ADDR)")
	return cmd
}

func newListCmd(cfg *config.Config) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List indexed podcasts, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()
			a, err := newApp(ctx, cfg, true)
			if err != nil {
				return err
			}
			defer a.Close()
			items, err := a.index.List(ctx, limit)
			if err != nil {
				return err
			}
			fmt.Print(RenderPodcasts(items))
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum rows, 0 for all")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("BriefCast %s\n", Version)
		},
	}
}

func newConfigCmd(cfg *config.Config) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
		Long:  "Show the effective configuration and edit the env block of app.yaml",
	}
	manager := func() (*config.Manager, error) {
		return config.NewManager(config.WithConfigPath(cfg.AppConfigPath))
	}

	configCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Print(RenderConfig(cfg))
		},
	})

	configCmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Validate(); err != nil {
				fmt.Println(errorStyle.Render(err.Error()))
				return err
			}
			fmt.Println(completedStyle.Render("configuration ok"))
			return nil
		},
	})

	configCmd.AddCommand(&cobra.Command{
		Use:   "get [KEY]",
		Short: "Print app.yaml env entries",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := manager()
			if err != nil {
				return err
			}
			keys := m.Keys()
			if len(args) == 1 {
				keys = args
			}
			for _, k := range keys {
				if v, ok := m.Value(k); ok {
					fmt.Printf("%s=%s\n", k, v)
				}
			}
			return nil
		},
	})

	configCmd.AddCommand(&cobra.Command{
		Use:   "set KEY VALUE",
		Short: "Write an env entry into app.yaml",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := manager()
			if err != nil {
				return err
			}
			if err := m.Set(args[0], args[1]); err != nil {
				return err
			}
			fmt.Printf("%s updated in %s\n", args[0], m.Path())
			return nil
		},
	})

	configCmd.AddCommand(&cobra.Command{
		Use:   "unset KEY",
		Short: "Remove an env entry from app.yaml",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := manager()
			if err != nil {
				return err
			}
			return m.Unset(args[0])
		},
	})

	return configCmd
}
