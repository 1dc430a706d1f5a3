// Command swarmexec runs task batches from the command line. Tasks are read
// from a JSON file, executed through the engine with caching and pooling,
// and the results are written as JSON records.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/hupe1980/swarmexec"
	"github.com/hupe1980/swarmexec/config"
	"github.com/hupe1980/swarmexec/core"
	"github.com/hupe1980/swarmexec/executor"
	executoranthropic "github.com/hupe1980/swarmexec/executor/anthropic"
	executoropenai "github.com/hupe1980/swarmexec/executor/openai"
	"github.com/hupe1980/swarmexec/logging"
	obs "github.com/hupe1980/swarmexec/observability/prometheus"
)

var version = "dev"

func main() {
	if err := buildRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "swarmexec",
		Short:        "Run task batches through a cached, pooled execution engine",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(buildRunCmd())
	rootCmd.AddCommand(buildVersionCmd())

	return rootCmd
}

func buildRunCmd() *cobra.Command {
	var (
		configFile  string
		tasksFile   string
		batchSize   int
		metricsAddr string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute a batch of tasks from a JSON file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(cmd.Context(), configFile, tasksFile, batchSize, metricsAddr)
		},
	}

	cmd.Flags().StringVarP(&configFile, "config", "c", "", "YAML config file path")
	cmd.Flags().StringVarP(&tasksFile, "tasks", "t", "", "JSON file containing task definitions")
	cmd.Flags().IntVarP(&batchSize, "batch-size", "b", 0, "tasks per parallel chunk (0 = all at once)")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address (e.g. :2112)")
	_ = cmd.MarkFlagRequired("tasks")

	return cmd
}

func buildVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the swarmexec version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("swarmexec %s\n", version)
		},
	}
}

// taskEntry is the on-disk task format accepted by the run command.
type taskEntry struct {
	ID         string         `json:"id"`
	Objective  string         `json:"objective"`
	Parameters map[string]any `json:"parameters"`
}

func runBatch(ctx context.Context, configFile, tasksFile string, batchSize int, metricsAddr string) error {
	cfg := &config.Config{}
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return err
		}
		cfg = loaded
	} else {
		cfg.Logging.Level = "info"
		cfg.Logging.Format = "json"
	}

	tasks, err := loadTasks(tasksFile)
	if err != nil {
		return err
	}

	logger := buildLogger(cfg.Logging)

	exec, err := buildExecutor(cfg.Executor)
	if err != nil {
		return err
	}

	sx := swarmexec.New(exec, func(o *swarmexec.Options) {
		o.EngineConfig = cfg.EngineConfig()
		o.Logger = logger
	})

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if metricsAddr != "" {
		shutdownMetrics, err := serveMetrics(ctx, metricsAddr, sx)
		if err != nil {
			return err
		}
		defer shutdownMetrics()
	}

	results, err := sx.RunBatch(ctx, tasks, batchSize)
	if err != nil {
		return fmt.Errorf("batch execution: %w", err)
	}

	if cfg.Output.Dir != "" {
		files := sx.Engine().FileManager()
		for _, r := range results {
			files.WriteRecord(filepath.Join(cfg.Output.Dir, r.TaskID+".json"), r)
		}
	}

	failed := 0
	for _, r := range results {
		if !r.Succeeded() {
			failed++
			logger.Warn("task failed", "task_id", r.TaskID, "error", r.Error)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := sx.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	m := sx.Metrics()
	logger.Info("batch complete",
		"tasks", len(results),
		"failed", failed,
		"executions", m.Executions,
		"cache_hit_rate", fmt.Sprintf("%.2f", m.CacheHitRate),
		"avg_execution", m.AverageExecution.String(),
	)

	if failed > 0 {
		return fmt.Errorf("%d of %d tasks failed", failed, len(results))
	}

	return nil
}

func loadTasks(path string) ([]core.Task, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tasks file: %w", err)
	}

	var entries []taskEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse tasks file: %w", err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("tasks file %s contains no tasks", path)
	}

	tasks := make([]core.Task, len(entries))
	for i, s := range entries {
		if s.Objective == "" {
			return nil, fmt.Errorf("task %d has no objective", i)
		}
		task := core.NewTask(s.Objective, s.Parameters)
		if s.ID != "" {
			task.ID = s.ID
		}
		tasks[i] = task
	}

	return tasks, nil
}

func buildLogger(cfg config.LoggingConfig) logging.Logger {
	level := logging.LogLevelInfo
	switch cfg.Level {
	case "debug":
		level = logging.LogLevelDebug
	case "warn":
		level = logging.LogLevelWarn
	case "error":
		level = logging.LogLevelError
	}

	return logging.NewLogger(&logging.LoggerConfig{
		Level:  level,
		Format: cfg.Format,
		Output: os.Stderr,
	})
}

func buildExecutor(cfg config.ExecutorConfig) (core.Executor, error) {
	switch cfg.Provider {
	case "anthropic":
		return executoranthropic.NewExecutor(func(o *executoranthropic.Options) {
			if cfg.Model != "" {
				o.Model = anthropic.Model(cfg.Model)
			}
			o.Temperature = cfg.Temperature
			o.MaxTokens = cfg.MaxTokens
			o.APIKey = cfg.APIKey
			o.System = cfg.System
		}), nil
	case "openai":
		return executoropenai.NewExecutor(func(o *executoropenai.Options) {
			if cfg.Model != "" {
				o.Model = cfg.Model
			}
			o.Temperature = cfg.Temperature
			o.MaxCompletionTokens = cfg.MaxTokens
			o.System = cfg.System
		}), nil
	case "":
		// Offline echo executor, useful for dry runs and demos.
		return executor.Func(func(ctx context.Context, task core.Task) (string, error) {
			return "echo: " + task.Objective, nil
		}), nil
	default:
		return nil, fmt.Errorf("unknown executor provider %q", cfg.Provider)
	}
}

func serveMetrics(ctx context.Context, addr string, sx *swarmexec.SwarmExec) (func(), error) {
	reg := prom.NewRegistry()

	poller, err := obs.NewSnapshotPoller(reg, time.Second)
	if err != nil {
		return nil, err
	}
	poller.AddEngine("swarmexec", sx.Engine())
	poller.Start(ctx)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	server := &http.Server{Addr: addr, Handler: mux}

	go func() {
		_ = server.ListenAndServe()
	}()

	return func() {
		poller.Stop()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}, nil
}
