package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/codewithboateng/confcheck/internal/api"
)

func newServeCmd(a *app) *cobra.Command {
	var (
		addr    string
		origins []string
		sel     ruleSelection
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve stored runs, findings and waivers as a JSON API",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				addr = a.cfg.Server.Addr
			}
			if len(origins) == 0 {
				origins = a.cfg.Server.AllowedOrigins
			}
			rs, _, err := sel.load(a)
			if err != nil {
				return usageErr(err)
			}
			db, err := a.openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			s := &api.Server{
				DB:              db,
				Users:           db,
				Rules:           rs,
				Logger:          slog.Default(),
				AllowedOrigins:  origins,
				SessionDuration: a.cfg.Server.SessionTTL,
			}
			ln, err := net.Listen("tcp", addr)
			if err != nil {
				return fmt.Errorf("listen %s: %w", addr, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "serving on http://%s/api/v1\n", ln.Addr())
			return serve(cmd.Context(), ln, s.Routes())
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from config, 127.0.0.1:8080)")
	cmd.Flags().StringSliceVar(&origins, "allow-origin", nil, "CORS origin allowed to call the API (repeatable)")
	sel.register(cmd)
	return cmd
}

// serve runs until ctx is canceled, then drains in-flight requests.
func serve(ctx context.Context, ln net.Listener, h http.Handler) error {
	srv := &http.Server{Handler: h, ReadHeaderTimeout: 10 * time.Second}
	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ln) }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		slog.Info("server stopped")
		return nil
	}
}
