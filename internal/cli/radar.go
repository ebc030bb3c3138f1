package cli

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/beamlink/beamlink/internal/artifact"
	"github.com/beamlink/beamlink/internal/identity"
	"github.com/beamlink/beamlink/internal/protocol"
	"github.com/beamlink/beamlink/internal/session"
	"github.com/spf13/cobra"
)

var radarTarget string

var radarCmd = &cobra.Command{
	Use:   "radar [file...]",
	Short: "discover nearby peers and exchange files directly",
	Long: `radar joins the discovery room under a fresh ephemeral identity.
Without arguments it scans and receives; with --to and files it sends
to the named peer as soon as it appears`,
	RunE: func(cmd *cobra.Command, args []string) error {
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

		self := identity.New(a.address)
		fmt.Printf("You appear as: %s\n", self.DisplayName)

		onPeers := func(peers []protocol.PeerInfo) {
			if len(peers) == 0 {
				fmt.Println("No peers on the radar.")
				return
			}
			fmt.Println("Peers on the radar:")
			for _, p := range peers {
				fmt.Printf("  %-20s %s\n", p.DisplayName, p.ChannelAddress)
			}
		}

		sess := session.NewRadarSession(a.rdv, a.transport, sink, self, a.log, statusPrinter(), onPeers)
		if err := sess.Start(ctx); err != nil {
			return err
		}
		defer func() { _ = sess.Stop() }()

		if radarTarget != "" && len(args) > 0 {
			return radarSend(ctx, sess, args)
		}

		<-ctx.Done()
		return nil
	},
}

// radarSend waits for the target peer to show up, then streams the
// files to it.
func radarSend(ctx context.Context, sess *session.RadarSession, paths []string) error {
	address, err := waitForPeer(ctx, sess, radarTarget)
	if err != nil {
		return err
	}

	for _, path := range paths {
		file, f, err := openFile(path)
		if err != nil {
			return err
		}

		err = sess.SendTo(ctx, address, file)
		_ = f.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

func waitForPeer(ctx context.Context, sess *session.RadarSession, target string) (string, error) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		for _, p := range sess.Peers() {
			if p.ChannelAddress == target || strings.EqualFold(p.DisplayName, target) {
				return p.ChannelAddress, nil
			}
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return "", fmt.Errorf("peer %q never appeared on the radar", target)
		}
	}
}

func init() {
	radarCmd.Flags().StringVar(&radarTarget, "to", "", "display name or channel address of the peer to send to")
}
