// Package main provides the habitix binary entry point.
// Habitix is a goal coaching service: it turns a goal questionnaire
// into a day-by-day roadmap, tracks task completion with sequential
// day unlocking, and hosts persona chat.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	// Register LLM providers via init()
	_ "github.com/habitix/habitix/llm/providers"

	"github.com/habitix/habitix/api"
	"github.com/habitix/habitix/chat"
	"github.com/habitix/habitix/config"
	"github.com/habitix/habitix/llm"
	"github.com/habitix/habitix/notify"
	"github.com/habitix/habitix/progress"
	"github.com/habitix/habitix/roadmap"
	"github.com/habitix/habitix/storage"
)

const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "habitix"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		configPath string
		logLevel   string
	)

	cmd := &cobra.Command{
		Use:   "habitix",
		Short: "Goal coaching service",
		Long: `Habitix is a goal coaching service.

It generates day-by-day roadmaps for user goals via an LLM, tracks
task completion with sequential day unlocking, surfaces a daily task
dashboard, and hosts configurable coach personas for chat.

Goals are stored in NATS JetStream KV; progression milestones are
published as events for the notification consumer.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(configPath, logLevel)
		},
	}

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file path (YAML)")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	cmd.AddCommand(generateCmd(&configPath, &logLevel))

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("%s version %s (build: %s)\n", appName, Version, BuildTime)
		},
	})

	return cmd
}

// setupLogging configures the default slog logger.
func setupLogging(logLevel string) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(logLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}

func serve(configPath, logLevel string) error {
	logger := setupLogging(logLevel)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	registry, err := cfg.BuildRegistry()
	if err != nil {
		return fmt.Errorf("build model registry: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Hot-reload LLM routing when the config file changes.
	if configPath != "" {
		watcher, err := config.NewWatcher(configPath, registry, logger)
		if err != nil {
			return fmt.Errorf("create config watcher: %w", err)
		}
		if err := watcher.Start(ctx); err != nil {
			return fmt.Errorf("start config watcher: %w", err)
		}
		defer watcher.Stop()
	}

	nc, err := nats.Connect(cfg.NATS.URL,
		nats.Name(appName),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second))
	if err != nil {
		return fmt.Errorf("connect to NATS at %s: %w", cfg.NATS.URL, err)
	}
	defer nc.Close()

	js, err := jetstream.New(nc)
	if err != nil {
		return fmt.Errorf("create jetstream context: %w", err)
	}

	store, err := storage.NewStore(ctx, js)
	if err != nil {
		return fmt.Errorf("create store: %w", err)
	}

	if err := progress.EnsureEventStream(ctx, js); err != nil {
		return fmt.Errorf("ensure event stream: %w", err)
	}

	client := llm.NewClient(registry,
		llm.WithTimeout(cfg.LLM.Timeout),
		llm.WithRetryConfig(cfg.LLM.Retry),
		llm.WithLogger(logger))

	generatorOpts := []roadmap.Option{
		roadmap.WithTemperature(cfg.Generator.Temperature),
		roadmap.WithMaxTokens(cfg.Generator.MaxTokens),
		roadmap.WithLogger(logger),
	}
	if cfg.Generator.ScheduleDates {
		generatorOpts = append(generatorOpts, roadmap.WithStartDate(time.Now()))
	}
	generator := roadmap.NewGenerator(client, generatorOpts...)

	engine := progress.NewEngine(store,
		progress.WithPublisher(progress.NewJetStreamPublisher(js)),
		progress.WithMetrics(progress.NewMetrics(nil)),
		progress.WithLogger(logger))

	chatService := chat.NewService(store, client, chat.WithLogger(logger))

	notifier := notify.NewNotifier(js, &notify.LogSender{Logger: logger}, logger)
	if err := notifier.Start(ctx); err != nil {
		return fmt.Errorf("start notifier: %w", err)
	}
	defer notifier.Stop()

	server := api.NewServer(store, store, engine, generator, chatService,
		api.WithLogger(logger),
		api.WithAuthenticator(&api.HeaderAuthenticator{Header: cfg.Server.AuthHeader}))

	mux := http.NewServeMux()
	server.RegisterHTTPHandlers(cfg.Server.APIPrefix, mux)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		status := "ok"
		code := http.StatusOK
		if !nc.IsConnected() {
			status = "nats disconnected"
			code = http.StatusServiceUnavailable
		}
		w.WriteHeader(code)
		_, _ = w.Write([]byte(status))
	})

	httpServer := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 180 * time.Second, // LLM-backed handlers are slow
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Habitix ready",
			"version", Version,
			"addr", cfg.Server.Addr,
			"nats", cfg.NATS.URL)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutting down")
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}

	return nil
}

// generateCmd produces a roadmap for a goal described on the command
// line and prints it as JSON. Useful for prompt tuning without running
// the full service.
func generateCmd(configPath, logLevel *string) *cobra.Command {
	var (
		title         string
		duration      string
		hoursPerDay   int
		daysPerWeek   int
		preferredTime string
		motivation    string
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a roadmap for a goal and print it",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := setupLogging(*logLevel)

			cfg, err := config.Load(*configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			registry, err := cfg.BuildRegistry()
			if err != nil {
				return fmt.Errorf("build model registry: %w", err)
			}

			client := llm.NewClient(registry,
				llm.WithTimeout(cfg.LLM.Timeout),
				llm.WithRetryConfig(cfg.LLM.Retry),
				llm.WithLogger(logger))
			generator := roadmap.NewGenerator(client,
				roadmap.WithTemperature(cfg.Generator.Temperature),
				roadmap.WithMaxTokens(cfg.Generator.MaxTokens),
				roadmap.WithLogger(logger))

			days, err := generator.Generate(cmd.Context(), roadmap.GoalDescription{
				Title:         title,
				Duration:      duration,
				HoursPerDay:   hoursPerDay,
				DaysPerWeek:   daysPerWeek,
				PreferredTime: preferredTime,
				Motivation:    motivation,
			})
			if err != nil {
				return err
			}

			out, err := json.MarshalIndent(days, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "Goal title (required)")
	cmd.Flags().StringVar(&duration, "duration", "30 days", "Desired duration")
	cmd.Flags().IntVar(&hoursPerDay, "hours-per-day", 1, "Hours available per day")
	cmd.Flags().IntVar(&daysPerWeek, "days-per-week", 5, "Days available per week")
	cmd.Flags().StringVar(&preferredTime, "preferred-time", "", "Preferred time of day")
	cmd.Flags().StringVar(&motivation, "motivation", "", "Why this goal matters")
	_ = cmd.MarkFlagRequired("title")

	return cmd
}
