package commands

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/yairfalse/aurora-snapshot-copier/internal/errors"
	"github.com/yairfalse/aurora-snapshot-copier/internal/metrics"
	"github.com/yairfalse/aurora-snapshot-copier/internal/runner"
	"github.com/yairfalse/aurora-snapshot-copier/internal/scheduler"
)

func newServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Execute passes on a schedule and expose metrics",
		Long: `Serve executes one pass immediately and then on the configured cron schedule.
Prometheus metrics are exposed on /metrics at metrics.listen.`,
		Example: `  # Run daily at 3 AM
  snapcopier serve --schedule "0 3 * * *"

  # Expose metrics on another port
  snapcopier serve --listen :9191`,
		RunE: runServe,
	}

	cmd.Flags().String("schedule", "", "cron schedule (overrides the schedule setting)")
	cmd.Flags().String("listen", "", "metrics listen address (overrides metrics.listen)")
	cmd.Flags().Bool("skip-initial", false, "do not run a pass at startup")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	if v, _ := cmd.Flags().GetString("schedule"); v != "" {
		cfg.Schedule = v
	}
	if v, _ := cmd.Flags().GetString("listen"); v != "" {
		cfg.Metrics.Listen = v
	}
	if cfg.Schedule == "" {
		return errors.Configuration("serve requires a schedule").
			WithSolutions("Set schedule in the config file", "Pass --schedule \"0 3 * * *\"")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	opts, err := cfg.Options()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	provider, err := newProvider(ctx)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	r := runner.New(provider, log, metrics.New(registry))

	job := func(ctx context.Context) error {
		_, err := r.Run(ctx, opts)
		return err
	}
	s := scheduler.New(cfg.Schedule, job, log)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	mux.Handle("/healthz", healthHandler(s))
	server := &http.Server{
		Addr:              cfg.Metrics.Listen,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.WithField("listen", cfg.Metrics.Listen).Info("Serving metrics")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	if skip, _ := cmd.Flags().GetBool("skip-initial"); !skip {
		s.RunNow(ctx)
	}
	if err := s.Start(ctx); err != nil {
		return err
	}
	if next := s.NextRun(); next != nil {
		log.WithField("nextRun", next.Format(time.RFC3339)).Info("Waiting for next scheduled pass")
	}

	select {
	case <-ctx.Done():
	case err := <-serverErr:
		s.Stop()
		return errors.Wrap(errors.ErrorTypeConfiguration, err, "metrics server failed")
	}

	s.Stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// healthHandler reports 503 until the scheduler is started and after it stops
func healthHandler(s *scheduler.Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		if !s.IsRunning() {
			http.Error(w, "scheduler not running", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		if next := s.NextRun(); next != nil {
			fmt.Fprintf(w, "next run %s\n", next.Format(time.RFC3339))
		}
	}
}
