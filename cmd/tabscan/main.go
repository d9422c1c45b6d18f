// Command tabscan runs the shared-receipt ledger server.
package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/tabscan/tabscan/internal/api"
	"github.com/tabscan/tabscan/internal/config"
	"github.com/tabscan/tabscan/internal/eventlog"
	"github.com/tabscan/tabscan/internal/service"
	"github.com/tabscan/tabscan/internal/storage"
	"github.com/tabscan/tabscan/internal/storage/postgres"
	"github.com/tabscan/tabscan/internal/storage/sqlite"
	"github.com/tabscan/tabscan/pkg/logging"
)

func main() {
	root := &cobra.Command{
		Use:   "tabscan",
		Short: "Shared receipt ledger: publish a bill, share a link, let everyone claim their items",
	}
	root.AddCommand(serveCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			logging.Setup()

			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			return serve(cfg)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "tabscan.toml", "path to TOML config file")
	return cmd
}

func serve(cfg config.Config) error {
	store, logger, err := openStore(cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer store.Close()
	slog.Info("storage initialized", "driver", cfg.Storage.Driver)

	events := eventlog.NewWorker(logger, 100)
	events.Start()
	defer events.Shutdown()

	hub := api.NewHub()
	board := service.NewBoardService(store, events)
	claims := service.NewClaimService(store, hub, events)

	server := api.NewServer(board, claims, hub)
	if cfg.Metrics.Enabled {
		server.EnableMetrics()
	}

	// h2c allows HTTP/2 without TLS, so SSE streams multiplex cleanly
	// behind local proxies.
	handler := h2c.NewHandler(server.Handler(), &http2.Server{})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	slog.Info("server starting", "address", addr)
	if err := http.ListenAndServe(addr, handler); err != nil {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// openStore builds the configured storage backend. Both backends also
// implement the event log.
func openStore(cfg config.StorageConfig) (storage.Store, eventlog.Logger, error) {
	switch cfg.Driver {
	case "postgres":
		store, err := postgres.New(cfg.DSN)
		if err != nil {
			return nil, nil, err
		}
		return store, store, nil
	default:
		store, err := sqlite.New(cfg.Path)
		if err != nil {
			return nil, nil, err
		}
		return store, store, nil
	}
}
