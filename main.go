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
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/stevemurr/drapid/collection"
	"github.com/stevemurr/drapid/config"
	"github.com/stevemurr/drapid/handler"
	"github.com/stevemurr/drapid/hashtable"
	"github.com/stevemurr/drapid/logging"
	"github.com/stevemurr/drapid/metrics"
	"github.com/stevemurr/drapid/store"
)

// Build information, set via ldflags.
var Version = "dev"

func main() {
	if err := app().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func app() *cli.App {
	return &cli.App{
		Name:    "drapid",
		Usage:   "embeddable document store with linear-scan and hash-indexed strategies",
		Version: Version,
		Commands: []*cli.Command{
			serveCommand(),
			inspectCommand(),
		},
	}
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "serve a collection and a hash table over HTTP",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "YAML configuration file", EnvVars: []string{"DRAPID_CONFIG"}},
			&cli.StringFlag{Name: "addr", Usage: "listen address"},
			&cli.StringFlag{Name: "path", Usage: "collection snapshot path"},
			&cli.StringFlag{Name: "key", Usage: "collection primary key"},
			&cli.StringFlag{Name: "table-path", Usage: "hash table snapshot path"},
			&cli.IntFlag{Name: "table-size", Usage: "hash table slot count"},
			&cli.StringFlag{Name: "digest", Usage: "hash table digest (blake2b, murmur3)"},
			&cli.StringFlag{Name: "log-level", Usage: "debug, info, warn, error"},
			&cli.StringFlag{Name: "origins", Usage: "comma-separated CORS origins", Value: "*"},
		},
		Action: serve,
	}
}

func serve(c *cli.Context) error {
	cfg, err := config.NewLoader(config.WithConfigFile(c.String("config"))).Load(map[string]any{
		"server.addr":     c.String("addr"),
		"collection.path": c.String("path"),
		"collection.key":  c.String("key"),
		"table.path":      c.String("table-path"),
		"table.size":      c.Int("table-size"),
		"table.digest":    c.String("digest"),
		"log.level":       c.String("log-level"),
	})
	if err != nil {
		return err
	}

	logger := logging.New(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: os.Stderr})

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	col, err := collection.New(collection.Config{
		Path:    cfg.Collection.Path,
		Backend: cfg.Collection.Backend,
		Key:     cfg.Collection.Key,
		Logger:  logger.With("store", "collection"),
		Metrics: m,
	})
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	tbl, err := hashtable.New(hashtable.Config{
		Path:    cfg.Table.Path,
		Backend: cfg.Table.Backend,
		Key:     cfg.Table.Key,
		Size:    cfg.Table.Size,
		Digest:  cfg.Table.Digest,
		Logger:  logger.With("store", "hashtable"),
		Metrics: m,
	})
	if err != nil {
		return fmt.Errorf("failed to create hash table: %w", err)
	}
	if cfg.Table.Path != "" {
		tbl.Hydrate()
	}

	h := handler.New(col, tbl, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: corsMiddleware(h, strings.Split(c.String("origins"), ",")),
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("drapid starting", "addr", cfg.Server.Addr,
			"collection", cfg.Collection.Path, "table", cfg.Table.Path, "slots", tbl.Capacity())
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown", "error", err)
		}
	}

	return persistAll(logger, col, tbl, cfg)
}

// persistAll writes both snapshots concurrently. Stores without a path are
// skipped.
func persistAll(logger *slog.Logger, col *collection.Collection, tbl *hashtable.Table, cfg *config.Config) error {
	var g errgroup.Group
	if cfg.Collection.Path != "" {
		g.Go(func() error { return <-col.PersistAsync() })
	}
	if cfg.Table.Path != "" {
		g.Go(func() error { return <-tbl.PersistAsync() })
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("persist on shutdown: %w", err)
	}
	logger.Info("snapshots persisted")
	return nil
}

func inspectCommand() *cli.Command {
	return &cli.Command{
		Name:      "inspect",
		Usage:     "load a snapshot and report its status and record count",
		ArgsUsage: "PATH",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "kind", Usage: "collection or table", Value: "collection"},
			&cli.StringFlag{Name: "backend", Usage: "json, sqlite (default: from extension)"},
			&cli.StringFlag{Name: "key", Usage: "primary key", Value: "name"},
			&cli.IntFlag{Name: "size", Usage: "hash table slot count", Value: hashtable.DefaultSize},
			&cli.StringFlag{Name: "digest", Usage: "hash table digest", Value: "blake2b"},
		},
		Action: inspect,
	}
}

func inspect(c *cli.Context) error {
	path := c.Args().First()
	if path == "" {
		return fmt.Errorf("%w: inspect requires a snapshot path", store.ErrConfiguration)
	}

	var (
		status store.LoadStatus
		err    error
		count  int
	)
	switch c.String("kind") {
	case "collection":
		var col *collection.Collection
		col, err = collection.New(collection.Config{Path: path, Backend: c.String("backend"), Key: c.String("key")})
		if err != nil {
			return err
		}
		status, err = col.Hydrate()
		count = col.Len()
	case "table":
		var tbl *hashtable.Table
		tbl, err = hashtable.New(hashtable.Config{
			Path:    path,
			Backend: c.String("backend"),
			Key:     c.String("key"),
			Size:    c.Int("size"),
			Digest:  c.String("digest"),
		})
		if err != nil {
			return err
		}
		status, err = tbl.Hydrate()
		count = tbl.Count()
	default:
		return fmt.Errorf("%w: unknown kind %q (supported: collection, table)", store.ErrConfiguration, c.String("kind"))
	}

	report := map[string]any{"path": path, "status": status.String(), "records": count}
	if err != nil {
		report["error"] = err.Error()
	}
	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

// corsMiddleware wraps an http.Handler with CORS headers.
func corsMiddleware(next http.Handler, allowedOrigins []string) http.Handler {
	// Fast path: wildcard allows everything.
	allowAll := len(allowedOrigins) == 1 && allowedOrigins[0] == "*"

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowAll {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		} else if origin != "" {
			for _, o := range allowedOrigins {
				if strings.TrimSpace(o) == origin {
					w.Header().Set("Access-Control-Allow-Origin", origin)
					w.Header().Set("Vary", "Origin")
					break
				}
			}
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
