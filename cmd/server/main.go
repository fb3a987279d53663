package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/keymaze/go-keymaze/internal/challenge"
	"github.com/keymaze/go-keymaze/internal/server"
)

func main() {
	var (
		configFile  = flag.String("config", "", "Path to YAML config file (empty = built-in defaults)")
		addr        = flag.String("addr", "", "Listen address (overrides config)")
		poolFile    = flag.String("pool", "", "Challenge pool YAML file (overrides config)")
		development = flag.Bool("dev", false, "Human-readable development logging")
	)
	flag.Parse()

	cfg, err := server.LoadConfig(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.Addr = *addr
	}
	if *poolFile != "" {
		cfg.PoolFile = *poolFile
	}
	if *development {
		cfg.Development = true
	}

	logger, err := newLogger(cfg.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()
	log := logger.Sugar()

	pool, err := challenge.LoadPool(cfg.PoolFile)
	if err != nil {
		log.Fatalw("load challenge pool", "path", cfg.PoolFile, "error", err)
	}

	store := challenge.NewMemoryStore()
	if err := store.AddChallenges(pool...); err != nil {
		log.Fatalw("seed challenge store", "error", err)
	}

	svc := challenge.NewService(store, time.Now, log)
	srv := server.New(svc, cfg, log)

	log.Infow("server listening",
		"addr", cfg.Addr,
		"challenges", len(pool),
		"rateLimit", cfg.RateLimit,
		"rateWindow", cfg.RateWindow.Duration,
	)
	if err := http.ListenAndServe(cfg.Addr, srv.Handler()); err != nil {
		log.Fatalw("server failed", "error", err)
	}
}

func newLogger(development bool) (*zap.Logger, error) {
	if development {
		return zap.NewDevelopmentConfig().Build()
	}
	return zap.NewProductionConfig().Build()
}
