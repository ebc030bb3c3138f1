package main

import (
	"os/signal"
	"syscall"
	"time"

	"github.com/beamlink/beamlink/internal/logger"
	"github.com/beamlink/beamlink/internal/rendezvous/server"
	"github.com/spf13/cobra"
)

func main() {
	var (
		addr   string
		dbPath string
		ttl    time.Duration
	)

	cmd := &cobra.Command{
		Use:  `rendezvousd`,
		Long: `rendezvousd is the beamlink rendezvous service: session codes, room presence, and signal relay`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			log := logger.NewLogger()

			store, err := server.OpenStore(dbPath)
			if err != nil {
				return err
			}

			srv, err := server.NewServer(server.Config{Addr: addr, SessionTTL: ttl}, store, log)
			if err != nil {
				return err
			}

			go func() {
				<-ctx.Done()
				log.Info("Shutting down rendezvous server...")
				_ = srv.Close()
			}()

			if err := srv.Start(ctx); err != nil && ctx.Err() == nil {
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":7400", "listen address")
	cmd.Flags().StringVar(&dbPath, "db", "rendezvous.db", "session database path")
	cmd.Flags().DurationVar(&ttl, "ttl", 10*time.Minute, "session code lifetime")

	if err := cmd.Execute(); err != nil {
		log := logger.NewLogger()
		log.Fatal(err)
	}
}
