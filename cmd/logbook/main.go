package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/time/rate"

	"github.com/logbook-io/logbook/internal/config"
	"github.com/logbook-io/logbook/internal/server"
	"github.com/logbook-io/logbook/internal/storage"
	"github.com/logbook-io/logbook/internal/store"
)

func main() {
	configPath := flag.String("config", "logbook.yaml", "Path to YAML config file")
	addr := flag.String("addr", "", "Listen address (overrides config)")
	snapshotPath := flag.String("snapshot", "", "Path to the snapshot file (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Config error: %v", err)
	}
	if *snapshotPath != "" {
		cfg.Store.Path = *snapshotPath
	}
	listenAddr := cfg.Address()
	if *addr != "" {
		listenAddr = *addr
	}

	// Snapshot sealing is optional; without it the file is just a
	// compressed document.
	var sealer *storage.Sealer
	if cfg.Store.Seal {
		var generated bool
		sealer, generated, err = storage.NewSealer(cfg.Store.KeyPath)
		if err != nil {
			log.Fatalf("Master key error: %v", err)
		}
		if generated {
			log.Printf("Generated new master key at %s", cfg.Store.KeyPath)
		}
	}

	codec, err := storage.NewCodec(sealer)
	if err != nil {
		log.Fatalf("Codec error: %v", err)
	}

	st := store.New(cfg.Store.Path, codec)
	log.Printf("Store initialized. Snapshot: %s (sealed: %v)", cfg.Store.Path, cfg.Store.Seal)

	var limiter *rate.Limiter
	if cfg.Ingest.Rate > 0 {
		burst := cfg.Ingest.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.Ingest.Rate), burst)
		log.Printf("Ingest rate limit: %.1f req/s (burst %d)", cfg.Ingest.Rate, burst)
	}

	srv := server.NewServer(st, limiter)

	go func() {
		log.Printf("Listening on %s", listenAddr)
		if err := srv.Start(listenAddr); err != nil {
			log.Printf("Server stopped: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	sig := <-quit
	log.Printf("Received signal: %v. Shutting down...", sig)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	log.Println("logbook exited gracefully.")
}
