package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/beamlink/beamlink/internal/session"
	"github.com/spf13/cobra"
)

var sendCmd = &cobra.Command{
	Use:   "send file [file...]",
	Short: "share files with a session code",
	Long:  `send creates a session code, waits for a receiver to join, and streams the given files to it in order`,
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.close()

		sess := session.NewSenderSession(a.rdv, a.transport, a.log, statusPrinter())
		defer func() { _ = sess.Close() }()

		code, err := sess.Start(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Share this code: %s\n", code)

		if err := sess.WaitForPeer(ctx); err != nil {
			return err
		}

		for _, path := range args {
			file, f, err := openFile(path)
			if err != nil {
				return err
			}

			err = sess.SendFile(ctx, file)
			_ = f.Close()
			if err != nil {
				fmt.Fprintf(os.Stderr, "failed to send %s: %v\n", path, err)
				return err
			}
		}

		return nil
	},
}
