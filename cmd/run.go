// File: cmd/run.go
package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/nathanhui97/autoflow/internal/action"
	"github.com/nathanhui97/autoflow/internal/config"
	"github.com/nathanhui97/autoflow/internal/dom/cdp"
	"github.com/nathanhui97/autoflow/internal/engine"
	"github.com/nathanhui97/autoflow/internal/gate"
	"github.com/nathanhui97/autoflow/internal/netwatch"
	"github.com/nathanhui97/autoflow/internal/observability"
	"github.com/nathanhui97/autoflow/internal/resolve"
	"github.com/nathanhui97/autoflow/internal/verify"
	"github.com/nathanhui97/autoflow/internal/workflow"
)

// newRunCmd creates and configures the `run` command.
func newRunCmd() *cobra.Command {
	var (
		startURL          string
		varFlags          []string
		continueOnFailure bool
		timeout           time.Duration
		out               string
	)

	runCmd := &cobra.Command{
		Use:   "run [workflows...]",
		Short: "Replays recorded workflow files against a live page",
		Args:  cobra.MinimumNArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if err := viper.BindPFlag("browser.headless", cmd.Flags().Lookup("headless")); err != nil {
				return err
			}
			return viper.BindPFlags(cmd.Flags())
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			// Flags override the config file with viper's usual precedence.
			if err := viper.Unmarshal(cfg); err != nil {
				return fmt.Errorf("failed to re-unmarshal config with flag overrides: %w", err)
			}

			vars, err := parseVars(varFlags)
			if err != nil {
				return err
			}
			cfg.Run = config.RunConfig{
				Workflows:         args,
				URL:               normalizeURL(startURL),
				Vars:              vars,
				ContinueOnFailure: continueOnFailure,
				Timeout:           timeout,
				Out:               out,
			}

			// Load every file up front so a malformed recording fails the
			// invocation before a browser ever starts.
			flows := make([]*workflow.Workflow, len(args))
			for i, path := range args {
				w, err := workflow.Load(path)
				if err != nil {
					return fmt.Errorf("workflow %s: %w", path, err)
				}
				flows[i] = w
			}

			browser, err := cdp.NewBrowser(ctx, cfg, logger)
			if err != nil {
				return fmt.Errorf("failed to start browser: %w", err)
			}
			defer func() {
				if err := browser.Close(context.Background()); err != nil {
					logger.Warn("browser shutdown", zap.Error(err))
				}
			}()

			logger.Info("starting replay",
				zap.Int("workflows", len(flows)),
				zap.String("url", cfg.Run.URL),
				zap.Bool("headless", cfg.Browser.Headless),
			)

			results := make([]engine.WorkflowResult, len(flows))
			g, gctx := errgroup.WithContext(ctx)
			g.SetLimit(cfg.Browser.Concurrency)
			for i, w := range flows {
				i, w := i, w
				g.Go(func() error {
					res, err := replayOne(gctx, browser, cfg, w, logger)
					if err != nil {
						return fmt.Errorf("workflow %s: %w", args[i], err)
					}
					results[i] = res
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}

			if err := writeResults(cfg.Run.Out, results); err != nil {
				return err
			}

			failed := 0
			for _, r := range results {
				if !r.OK {
					failed++
					logger.Error("workflow failed",
						zap.String("workflow", r.Workflow),
						zap.Int("completed", r.Completed),
						zap.Int("total", r.Total),
						zap.String("summary", r.Summary),
					)
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d workflows failed", failed, len(results))
			}
			logger.Info("replay complete", zap.Int("workflows", len(results)))
			return nil
		},
	}

	runCmd.Flags().StringVar(&startURL, "url", "", "page to navigate to before replaying (required)")
	runCmd.Flags().StringArrayVar(&varFlags, "var", nil, "runtime variable as name=value (repeatable)")
	runCmd.Flags().BoolVar(&continueOnFailure, "continue-on-failure", false, "keep executing after a failed step")
	runCmd.Flags().DurationVar(&timeout, "timeout", 5*time.Minute, "per-workflow replay budget")
	runCmd.Flags().StringVarP(&out, "out", "o", "", "file to write the JSON result report to (default stdout)")
	runCmd.Flags().Bool("headless", true, "run the browser headless")
	_ = runCmd.MarkFlagRequired("url")

	return runCmd
}

// replayOne runs one workflow in its own tab. A failed run is a normal
// result; the error return covers tab and navigation trouble only.
func replayOne(ctx context.Context, browser *cdp.Browser, cfg *config.Config, w *workflow.Workflow, logger *zap.Logger) (engine.WorkflowResult, error) {
	tab, err := browser.NewTab(ctx)
	if err != nil {
		return engine.WorkflowResult{}, err
	}
	defer tab.Close()

	eng := buildEngine(cfg, logger)

	if cfg.Network.Watch {
		watcher := netwatch.NewWatcher(logger)
		watcher.StaleAfter = cfg.Network.StaleAfter
		if err := watcher.Start(tab.Context()); err != nil {
			return engine.WorkflowResult{}, fmt.Errorf("network watcher: %w", err)
		}
		defer watcher.Stop()
		eng.AttachNetwork(watcher)
	}

	if err := tab.Navigate(ctx, cfg.Run.URL, cfg.Network.NavigationTimeout); err != nil {
		return engine.WorkflowResult{}, err
	}

	runCtx := ctx
	if cfg.Run.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, cfg.Run.Timeout)
		defer cancel()
	}

	log := logger.Named("run").With(zap.String("workflow", w.Name))
	opts := engine.Options{
		Vars:              cfg.Run.Vars,
		ContinueOnFailure: cfg.Run.ContinueOnFailure,
		Hooks: engine.Hooks{
			OnStepStart: func(i int, step workflow.UniversalStep) {
				log.Info("step start", zap.Int("index", i), zap.String("step", step.Label()))
			},
			OnStepDone: func(i int, res engine.StepResult) {
				log.Info("step done", zap.Int("index", i), zap.String("step", res.ID),
					zap.Bool("ok", res.OK), zap.Duration("elapsed", res.Elapsed))
			},
			OnError: func(i int, res engine.StepResult) {
				log.Warn("step failed", zap.Int("index", i), zap.String("step", res.ID),
					zap.String("error", res.Error))
			},
		},
	}

	return eng.Run(runCtx, tab.Page(), w, opts), nil
}

// buildEngine wires the replay stack from the resolved configuration. Each
// concurrent workflow gets its own engine so network attachment stays
// per-tab.
func buildEngine(cfg *config.Config, logger *zap.Logger) *engine.Engine {
	checker := gate.NewChecker(logger)
	waiter := verify.NewWaiter(logger)
	if cfg.Engine.PollInterval > 0 {
		waiter.Interval = cfg.Engine.PollInterval
	}
	resolver := resolve.NewResolver(logger)
	exec := action.NewExecutor(logger, checker, waiter, action.Config{
		VerifyWindow:   cfg.Engine.VerifyWindow,
		MenuWindow:     cfg.Engine.MenuWindow,
		ScrollAttempts: cfg.Engine.ScrollAttempts,
		ScrollPause:    cfg.Engine.ScrollPause,
	})
	return engine.New(logger, resolver, exec, waiter, engine.Config{
		ResolveTimeout:  cfg.Engine.ResolveTimeout,
		ResolveInterval: cfg.Engine.ResolveInterval,
		AutoPickBest:    cfg.Engine.AutoPickBest,
		QuietWindow:     cfg.Engine.QuietWindow,
		QuiesceTimeout:  cfg.Engine.QuiesceTimeout,
		RenderWindow:    cfg.Engine.RenderWindow,
		ExpectWindow:    cfg.Engine.ExpectWindow,
		StepPause:       cfg.Engine.StepPause,
	})
}

// parseVars turns repeated name=value flags into the runtime variable map.
func parseVars(flags []string) (map[string]string, error) {
	if len(flags) == 0 {
		return nil, nil
	}
	vars := make(map[string]string, len(flags))
	for _, f := range flags {
		name, value, ok := strings.Cut(f, "=")
		if !ok || strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("invalid --var %q, expected name=value", f)
		}
		vars[name] = value
	}
	return vars, nil
}

// normalizeURL defaults a bare host to https, matching what a user types.
func normalizeURL(u string) string {
	if u == "" || strings.Contains(u, "://") {
		return u
	}
	return "https://" + u
}

// writeResults renders the reports to the --out file, or stdout when no
// file was asked for.
func writeResults(out string, results []engine.WorkflowResult) error {
	data, err := engine.ReportAll(results)
	if err != nil {
		return fmt.Errorf("failed to render result report: %w", err)
	}
	if out == "" {
		fmt.Println(string(data))
		return nil
	}
	if err := os.WriteFile(out, data, 0o644); err != nil {
		return fmt.Errorf("failed to write result report: %w", err)
	}
	return nil
}
