package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"roboswarm/internal/config"
	"roboswarm/internal/lifecycle"
	"roboswarm/internal/logging"
	"roboswarm/internal/orchestrator"
	"roboswarm/internal/store"
	"roboswarm/internal/watch"
)

var (
	// Global flags
	verbose   bool
	workspace string

	// Logger
	logger *zap.Logger

	version = "0.3.0"
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "roboswarm",
	Short: "roboswarm - signal-driven agent dispatch",
	Long: `roboswarm watches tracked text for bracketed signal markers ([bb], [tp], ...)
and turns them into prioritized dispatch decisions against a concurrency-limited
pool of specialized agents.

It decides which agent type should run and whether capacity allows it;
execution belongs to the agent lifecycle collaborator.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zcfg := zap.NewProductionConfig()
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		if workspace == "" {
			workspace, err = os.Getwd()
			if err != nil {
				return err
			}
		}
		workspace, err = filepath.Abs(workspace)
		if err != nil {
			return err
		}
		return logging.Initialize(workspace)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
		logging.Close()
	},
}

// watchCmd runs the end-to-end monitoring loop.
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch configured roots and dispatch agents for detected signals",
	Long: `Monitors the configured source roots with fsnotify. Changed files flow
through the detection engine and the buffered event pipeline; surviving
signals are scored, capacity-gated, and dispatched to the lifecycle
collaborator. Stop with Ctrl-C; pending work is flushed on shutdown.`,
	RunE: runWatch,
}

// detectCmd scans a single file or stdin once.
var detectCmd = &cobra.Command{
	Use:   "detect [file]",
	Short: "Scan a file for signal markers and print them",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runDetect,
}

// dispatchCmd makes a one-shot decision for a signal code.
var dispatchCmd = &cobra.Command{
	Use:   "dispatch [code]",
	Short: "Make a spawn decision for a signal code against current capacity",
	Args:  cobra.ExactArgs(1),
	RunE:  runDispatch,
}

// statusCmd summarizes the session's dispatch history.
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show dispatch history and pipeline metrics",
	RunE:  runStatus,
}

// versionCmd prints the version.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the roboswarm version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("roboswarm %s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose console logging")
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", "", "workspace directory (default: cwd)")
	rootCmd.AddCommand(watchCmd, detectCmd, dispatchCmd, statusCmd, versionCmd)
}

// buildOrchestrator loads config and wires the pipeline with the in-process
// mock lifecycle. A real deployment injects its lifecycle adapter here.
func buildOrchestrator(withHistory bool) (*orchestrator.Orchestrator, *config.Config, *store.History, error) {
	cfg, err := config.Load(workspace)
	if err != nil {
		return nil, nil, nil, err
	}

	var history *store.History
	if withHistory {
		history, err = store.Open(workspace)
		if err != nil {
			return nil, nil, nil, err
		}
	}

	local := lifecycle.NewLocal()
	orch, err := orchestrator.New(cfg, workspace, local, orchestrator.Options{History: history})
	if err != nil {
		if history != nil {
			history.Close()
		}
		return nil, nil, nil, err
	}

	// Custom pattern packs load through the same validation path as runtime
	// registration.
	packPath := filepath.Join(workspace, ".roboswarm", "patterns.yaml")
	if n, err := orch.Engine().Catalog().LoadPatternPack(packPath); err != nil {
		logger.Warn("pattern pack rejected", zap.Error(err))
	} else if n > 0 {
		logger.Info("custom patterns loaded", zap.Int("count", n))
	}

	return orch, cfg, history, nil
}

func runWatch(cmd *cobra.Command, args []string) error {
	orch, cfg, history, err := buildOrchestrator(true)
	if err != nil {
		return err
	}
	defer func() {
		orch.Stop()
		if history != nil {
			history.Close()
		}
	}()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	watcher, err := watch.New(orch.Processor(), cfg.Watch.Roots, cfg.Watch.Extensions, cfg.WatchDebounce())
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Start(ctx); err != nil {
		return fmt.Errorf("start watcher: %w", err)
	}
	defer watcher.Stop()

	logger.Info("watching", zap.Strings("roots", cfg.Watch.Roots))

	go orch.Run(ctx)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutting down")
	cancel()
	return nil
}

func runDetect(cmd *cobra.Command, args []string) error {
	orch, _, _, err := buildOrchestrator(false)
	if err != nil {
		return err
	}
	defer orch.Stop()

	path := "stdin"
	var data []byte
	if len(args) == 1 {
		path = args[0]
		data, err = os.ReadFile(path)
	} else {
		data, err = readAll(os.Stdin)
	}
	if err != nil {
		return err
	}

	signals := orch.DetectSignals(path, string(data))
	if len(signals) == 0 {
		fmt.Println("no signals detected")
		return nil
	}
	for _, s := range signals {
		fmt.Printf("[%s] priority=%d  %s:%d:%d  %q\n", s.Type, s.Priority, s.Source, s.Position.Line, s.Position.Column, s.RawText)
	}
	return nil
}

func runDispatch(cmd *cobra.Command, args []string) error {
	orch, _, history, err := buildOrchestrator(true)
	if err != nil {
		return err
	}
	defer func() {
		orch.Stop()
		if history != nil {
			history.Close()
		}
	}()

	code := strings.Trim(args[0], "[]")
	signals := orch.DetectSignals("cli", "["+code+"]")
	if len(signals) == 0 {
		return fmt.Errorf("no signal detected for code %q", code)
	}

	decision, result := orch.DispatchSignal(cmd.Context(), signals[0])
	if !decision.ShouldSpawn {
		fmt.Printf("rejected: %s (alternatives: %s)\n", decision.Reason, strings.Join(decision.AlternativeAgents, ", "))
		return nil
	}
	if result != nil && result.Success {
		fmt.Printf("spawned %s (%s) priority=%d in %v\n", result.AgentID, decision.AgentType, decision.Priority, result.Duration)
	} else if result != nil {
		fmt.Printf("spawn failed: %s\n", result.Error)
	}
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	history, err := store.Open(workspace)
	if err != nil {
		return err
	}
	defer history.Close()

	summary, err := history.Summary()
	if err != nil {
		return err
	}
	if len(summary) == 0 {
		fmt.Println("no dispatch history")
	}
	for _, s := range summary {
		fmt.Printf("%-22s spawned=%d failed=%d\n", s.AgentType, s.Spawned, s.Failed)
	}

	recent, err := history.RecentDecisions(10)
	if err != nil {
		return err
	}
	if len(recent) > 0 {
		fmt.Println("\nrecent decisions:")
		for _, d := range recent {
			verdict := "rejected"
			if d.ShouldSpawn {
				verdict = "-> " + d.AgentType
			}
			fmt.Printf("  %s  [%s] p%d %s (%s)\n", d.CreatedAt.Format("15:04:05"), d.SignalType, d.Priority, verdict, d.Reason)
		}
	}
	return nil
}

func readAll(f *os.File) ([]byte, error) {
	info, err := f.Stat()
	if err == nil && info.Mode()&os.ModeCharDevice != 0 {
		return nil, fmt.Errorf("no input: pass a file or pipe content on stdin")
	}
	return io.ReadAll(f)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
