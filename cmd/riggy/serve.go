package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/banshee-data/riggy/internal/api"
	"github.com/banshee-data/riggy/internal/db"
	"github.com/banshee-data/riggy/internal/ingest"
	"github.com/banshee-data/riggy/internal/monitoring"
	"github.com/banshee-data/riggy/internal/session"
)

type serveOptions struct {
	session   sessionFlags
	sinks     sinkFlags
	listen    string
	dbPath    string
	autostart bool
}

func newServeCmd() *cobra.Command {
	o := &serveOptions{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP control surface, live chart and session archive",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.run(cmd)
		},
	}
	o.session.register(cmd)
	o.sinks.register(cmd)
	fs := cmd.Flags()
	fs.StringVarP(&o.listen, "listen", "l", ":8080", "HTTP listen address")
	fs.StringVar(&o.dbPath, "db", "riggy.db", "SQLite session archive (disabled when empty)")
	fs.BoolVar(&o.autostart, "autostart", false, "start a session immediately")
	return cmd
}

func (o *serveOptions) run(cmd *cobra.Command) error {
	if o.listen == "" {
		return errors.New("listen address is required")
	}
	cfg, err := o.session.resolve(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := ingest.NewMetrics(reg)

	player, pub, release, err := o.sinks.open(cfg)
	if err != nil {
		return err
	}
	defer release()

	mgrOpts := session.Options{
		Metrics: metrics,
		Sinks:   alertSinks(player, pub, o.sinks.natsSubject),
	}
	apiOpts := api.Options{
		Context:  ctx,
		Gatherer: reg,
		Defaults: cfg,
	}

	var archive *db.DB
	if o.dbPath != "" {
		archive, err = db.Open(o.dbPath)
		if err != nil {
			return err
		}
		defer archive.Close()
		mgrOpts.Archive = archive
		apiOpts.Archive = archive
	}

	mgr := session.NewManager(mgrOpts)
	apiOpts.Manager = mgr
	mux := api.NewServer(apiOpts).ServeMux()
	if archive != nil {
		if err := archive.AttachAdminRoutes(mux); err != nil {
			return err
		}
	}

	if o.autostart {
		if _, err := mgr.Start(ctx, &cfg); err != nil {
			return err
		}
	}

	server := &http.Server{
		Addr:              o.listen,
		Handler:           api.LoggingMiddleware(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}

	var wg sync.WaitGroup
	serveErr := make(chan error, 1)
	wg.Add(1)
	go func() {
		defer wg.Done()
		monitoring.Logf("HTTP server listening on %s", o.listen)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
			stop()
		}
	}()

	<-ctx.Done()
	monitoring.Logf("shutting down HTTP server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		monitoring.Logf("HTTP server shutdown error: %v", err)
		if err := server.Close(); err != nil {
			monitoring.Logf("HTTP server force close error: %v", err)
		}
	}
	wg.Wait()

	if err := mgr.Stop(); err != nil {
		monitoring.Logf("session ended with error: %v", err)
	}
	monitoring.Logf("Graceful shutdown complete")

	select {
	case err := <-serveErr:
		return err
	default:
		return nil
	}
}
