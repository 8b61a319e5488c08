package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/okian/chargeview/internal/fakebackend"
	"github.com/okian/chargeview/pkg/logger"
)

const (
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 5 * time.Second
)

func main() {
	cfg := fakebackend.DefaultConfig()
	var (
		addr    = flag.String("addr", ":5000", "Listen address")
		grow    = flag.Duration("grow", 0, "Append a new session at this interval (0 disables)")
		latency = flag.Duration("latency", 0, "Delay every response")
		fail    = flag.String("fail", "", "Endpoint path that always fails, e.g. /api/history")
	)
	flag.IntVar(&cfg.Devices, "devices", cfg.Devices, "Number of devices")
	flag.IntVar(&cfg.Sessions, "sessions", cfg.Sessions, "Number of history records")
	flag.IntVar(&cfg.Clusters, "clusters", cfg.Clusters, "Number of cluster labels")
	flag.Float64Var(&cfg.MalformedRatio, "malformed", cfg.MalformedRatio, "Share of malformed records")
	flag.Uint64Var(&cfg.Seed, "seed", cfg.Seed, "Generator seed")
	flag.Parse()

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	log := logger.Get().Named("fake-backend")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gen := fakebackend.NewGenerator(cfg)
	data := gen.Generate()
	fb := fakebackend.NewServer(data)
	fb.SetLatency(*latency)
	if *fail != "" {
		fb.SetFailing(*fail, true)
	}

	if *grow > 0 {
		go func() {
			ticker := time.NewTicker(*grow)
			defer ticker.Stop()
			next := cfg.Start.Add(time.Duration(cfg.Sessions) * cfg.Step)
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					more := fakebackend.NewGenerator(fakebackend.Config{
						Devices: cfg.Devices, Sessions: 1, Clusters: cfg.Clusters,
						StringIDRatio: cfg.StringIDRatio, Seed: uint64(next.Unix()),
						Start: next, Step: cfg.Step,
					}).Generate()
					fb.Append(more.History[0])
					next = next.Add(cfg.Step)
				}
			}
		}()
	}

	srv := &http.Server{Addr: *addr, Handler: fb.Handler(), ReadHeaderTimeout: readHeaderTimeout}
	go func() {
		log.Info(ctx, "fake backend listening",
			logger.String("addr", *addr),
			logger.Int("sessions", len(data.History)),
			logger.Int("assignments", len(data.Clusters)),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error(ctx, "server failed", logger.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	log.Info(shutdownCtx, "fake backend stopped")
}
