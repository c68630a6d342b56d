package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/ecashx/indexer/chainsource"
	"github.com/ecashx/indexer/config"
	"github.com/ecashx/indexer/indexer"
	"github.com/ecashx/indexer/query"
	"github.com/ecashx/indexer/store"
	"github.com/gcash/bchd/chaincfg"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		log.Fatalf("data dir: %v", err)
	}

	db, err := store.Open(cfg.DataDir)
	if err != nil {
		log.Fatalf("store: %v", err)
	}
	defer db.Close()

	source, err := newChainSource(cfg.ChainRPC)
	if err != nil {
		log.Fatalf("chain source: %v", err)
	}

	addrs := query.NewCashAddrCodec(&chaincfg.MainNetParams)
	svc := indexer.New(source, db, cfg.Workers, addrs)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Println("[indexer] starting")
		if err := svc.Run(ctx); err != nil && ctx.Err() == nil {
			log.Printf("[indexer] fatal: %v", err)
			stop()
		}
	}()

	mux := http.NewServeMux()
	registerHealthRoutes(mux, svc)
	mux.Handle("GET /metrics", promhttp.Handler())

	server := &http.Server{Addr: cfg.HTTPAddr, Handler: mux}
	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Printf("[http] listening on %s", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("[http] error: %v", err)
		}
	}()

	<-ctx.Done()
	server.Close()
	wg.Wait()
	log.Println("shutdown complete")
}

func registerHealthRoutes(mux *http.ServeMux, svc *indexer.Service) {
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("ok"))
	})

	mux.HandleFunc("GET /status", func(w http.ResponseWriter, _ *http.Request) {
		h, ok, err := svc.Query.LastBlockHeight()
		w.Header().Set("Content-Type", "application/json")
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			fmt.Fprintf(w, `{"error":%q}`, err.Error())
			return
		}
		if !ok {
			w.Write([]byte(`{"status":"running","lastBlockHeight":null}`))
			return
		}
		fmt.Fprintf(w, `{"status":"running","lastBlockHeight":%d}`, h)
	})
}

// newChainSource constructs the upstream node RPC client. The wire protocol
// against a real bchd/bchrpc node is explicitly out of scope for the core
// (spec.md §1 treats ChainSource as an abstract external collaborator); a
// production deployment supplies its own chainsource.Source implementation
// here.
func newChainSource(cfg config.ChainRPCConfig) (chainsource.Source, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("chainRpc.endpoint is not configured")
	}
	return nil, fmt.Errorf("no chainsource.Source implementation wired for endpoint %s: plug in a real node RPC client", cfg.Endpoint)
}
