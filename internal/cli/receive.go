package cli

import (
	"os/signal"
	"strings"
	"syscall"

	"github.com/beamlink/beamlink/internal/artifact"
	"github.com/beamlink/beamlink/internal/session"
	"github.com/spf13/cobra"
)

var receiveCmd = &cobra.Command{
	Use:   "receive code",
	Short: "receive files using a session code",
	Long:  `receive joins the sender behind the given code and saves every file it streams into the download directory`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		code := strings.ToUpper(strings.TrimSpace(args[0]))

		ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.close()

		sink, err := artifact.NewDirSink(a.cfg.DownloadDir, a.log)
		if err != nil {
			return err
		}

		sess := session.NewReceiverSession(a.rdv, a.transport, sink, a.log, statusPrinter())
		defer func() { _ = sess.Close() }()

		if err := sess.Join(ctx, code); err != nil {
			return err
		}

		return sess.Run(ctx)
	},
}
