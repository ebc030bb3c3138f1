package cli

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"

	"github.com/beamlink/beamlink/internal/channel/webrtc"
	"github.com/beamlink/beamlink/internal/config"
	"github.com/beamlink/beamlink/internal/logger"
	"github.com/beamlink/beamlink/internal/rendezvous"
	"github.com/beamlink/beamlink/internal/session"
	"github.com/beamlink/beamlink/internal/transfer"
	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"
	"github.com/sirupsen/logrus"
)

// app bundles the pieces every command needs.
type app struct {
	cfg       *config.Config
	log       *logrus.Logger
	rdv       *rendezvous.Client
	transport *webrtc.Transport
	address   string
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	log := logger.NewLogger()
	if cfg.Debug {
		log = logger.NewDebugLogger()
	}

	address := uuid.NewString()
	rdv, err := rendezvous.Dial(ctx, cfg.RendezvousAddr, address, log)
	if err != nil {
		return nil, err
	}

	transport := webrtc.New(rdv, cfg.STUNServers, log)
	go transport.Run(ctx)

	return &app{
		cfg:       cfg,
		log:       log,
		rdv:       rdv,
		transport: transport,
		address:   address,
	}, nil
}

func (a *app) close() {
	_ = a.transport.Close()
	_ = a.rdv.Close()
}

// openFile wraps a path into a transfer.File, sniffing the MIME type
// from the extension.
func openFile(path string) (transfer.File, *os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		return transfer.File{}, nil, err
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return transfer.File{}, nil, err
	}

	mimeType := mime.TypeByExtension(filepath.Ext(path))
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	return transfer.File{
		Name:     filepath.Base(path),
		Size:     uint64(info.Size()),
		MimeType: mimeType,
		Reader:   f,
	}, f, nil
}

// statusPrinter turns session status changes into console output with a
// progress bar during active transfers.
func statusPrinter() session.StatusFunc {
	var bar *progressbar.ProgressBar

	return func(st session.Status) {
		switch st.State {
		case session.StateSending, session.StateReceiving:
			if st.Message != "" {
				fmt.Println(st.Message)
			}
			if bar == nil {
				bar = progressbar.NewOptions(100,
					progressbar.OptionSetDescription("transfer"),
					progressbar.OptionClearOnFinish(),
				)
			}
			_ = bar.Set(st.Progress)
		default:
			if bar != nil {
				_ = bar.Finish()
				bar = nil
			}
			if st.Message != "" {
				fmt.Println(st.Message)
			}
		}
	}
}
