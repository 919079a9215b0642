package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/inventory-csv-mapper/internal/archive"
	"github.com/ginjaninja78/inventory-csv-mapper/internal/mapping"
	"github.com/ginjaninja78/inventory-csv-mapper/internal/semantic"
	"github.com/ginjaninja78/inventory-csv-mapper/internal/store"
	"github.com/ginjaninja78/inventory-csv-mapper/internal/web"
)

var serveAddr string

// serveCmd runs the HTTP API until interrupted.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runServe(ctx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default from config)")
}

func runServe(ctx context.Context) error {
	cfg := appConfig
	addr := cfg.Server.Addr
	if serveAddr != "" {
		addr = serveAddr
	}

	sc := cfg.Semantic
	suggester, err := semantic.New(semantic.Options{
		Provider: sc.Provider,
		Endpoint: sc.Endpoint,
		Model:    sc.Model,
		APIKey:   sc.APIKey,
		Timeout:  sc.Timeout,
	})
	if err != nil {
		return err
	}

	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer st.Close()

	deps := web.Deps{
		Config: cfg,
		Mapper: mapping.NewMapper(suggester, sc.Timeout),
		Store:  st,
	}
	if cfg.Archive.Enabled {
		a, err := archive.New(ctx, cfg.Archive)
		if err != nil {
			slog.Warn("archive disabled", "error", err)
		} else {
			deps.Archiver = a
		}
	}

	srv := web.NewServer(deps)
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(addr)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
