package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/iov-one/cosign"
	"github.com/iov-one/cosign/cmd/cosignd/handlers"
	"github.com/iov-one/cosign/errors"
	"github.com/iov-one/cosign/node"
	"github.com/iov-one/cosign/store"
	"github.com/iov-one/cosign/x/broadcast"
	"github.com/iov-one/cosign/x/multisig"
	"github.com/iov-one/cosign/x/signing"
	"github.com/tendermint/tendermint/libs/log"
)

type configuration struct {
	HTTP    string `env:"HTTP" envDefault:":8000"`
	NodeURL string `env:"NODE_URL" envDefault:"http://localhost:1317"`
	// DBPath is the badger directory. Empty keeps everything in memory.
	DBPath           string        `env:"DB_PATH"`
	LogLevel         string        `env:"LOG_LEVEL" envDefault:"info"`
	BroadcastTimeout time.Duration `env:"BROADCAST_TIMEOUT" envDefault:"30s"`
	Assembly         string        `env:"ASSEMBLY" envDefault:"threshold"`
	CacheSize        int           `env:"IDENTITY_CACHE_SIZE" envDefault:"1024"`
	Debug            bool          `env:"DEBUG"`
}

func main() {
	var conf configuration
	if err := env.Parse(&conf); err != nil {
		fmt.Fprintf(os.Stderr, "configuration: %s\n", err)
		os.Exit(2)
	}

	logger := log.NewTMLogger(log.NewSyncWriter(os.Stdout)).
		With("module", "cosignd")
	level, err := log.AllowLevel(conf.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration: %s\n", err)
		os.Exit(2)
	}
	logger = log.NewFilter(logger, level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(cosign.WithLogger(ctx, logger), conf, logger); err != nil {
		logger.Error("cosignd", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, conf configuration, logger log.Logger) error {
	db, err := openDB(conf.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()

	nodeCli := node.NewClient(conf.NodeURL)
	resolver, err := multisig.NewResolver(db, nodeCli, conf.CacheSize)
	if err != nil {
		return err
	}
	coordinator, err := broadcast.NewCoordinator(db, nodeCli, broadcast.Config{
		Timeout:  conf.BroadcastTimeout,
		Assembly: broadcast.AssemblyPolicy(conf.Assembly),
	})
	if err != nil {
		return errors.Wrap(err, "broadcast")
	}

	engine := &handlers.Engine{
		DB:          db,
		Node:        nodeCli,
		Resolver:    resolver,
		Ledger:      signing.NewLedger(db),
		Coordinator: coordinator,
		Debug:       conf.Debug,
	}
	srv := &http.Server{
		Addr:              conf.HTTP,
		Handler:           handlers.NewRouter(engine, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", conf.HTTP, "node", conf.NodeURL, "version", cosign.Version())
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return errors.Wrap(err, "http server")
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), conf.BroadcastTimeout+5*time.Second)
	defer cancel()
	logger.Info("shutting down")
	return srv.Shutdown(shutdownCtx)
}

func openDB(path string) (store.DB, error) {
	if path == "" {
		return store.MemStore(), nil
	}
	db, err := store.OpenBadger(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	return db, nil
}
