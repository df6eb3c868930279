package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/khaledhikmat/fr-attendance/mode"
	"github.com/khaledhikmat/fr-attendance/service/broadcast"
	"github.com/khaledhikmat/fr-attendance/service/lgr"
)

var listenAddress string

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Run recognition for every discovered camera",
	Long: `Discovers cameras periodically and keeps one recognition session per camera.
Failed sessions are restarted on the next discovery round. With --listen, frames
are streamed to websocket viewers at /ws.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		svcs, cleanup, err := newServices(ctx, cfgSvc)
		if err != nil {
			return err
		}
		defer cleanup()

		addr := listenAddress
		if addr == "" {
			addr = cfgSvc.GetListenAddress()
		}
		if addr != "" {
			hub := broadcast.NewHub()
			go hub.Run(ctx)
			svcs.BroadcastSvc = hub

			srv := serveViewers(addr, hub)
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(shutdownCtx)
			}()
		}

		return mode.Monitor(ctx, svcs)
	},
}

func serveViewers(addr string, hub broadcast.IService) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", hub.ServeWS)

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		lgr.Logger.Info("serving viewers", slog.String("address", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lgr.Logger.Error("viewer server stopped", slog.Any("error", err))
		}
	}()
	return srv
}

func init() {
	monitorCmd.Flags().StringVar(&listenAddress, "listen", "", "address for the websocket viewer endpoint, e.g. :8090")
	rootCmd.AddCommand(monitorCmd)
}
