package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/beamlink/beamlink/internal/config"
	"github.com/beamlink/beamlink/internal/logger"
	"github.com/beamlink/beamlink/internal/relay"
	"github.com/spf13/cobra"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch code",
	Short: "look up a relayed file by its code",
	Long:  `fetch asks the cloud relay for the file stored behind a short code and prints its download link`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if cfg.RelayBaseURL == "" {
			return errors.New("relay_base_url is not configured")
		}

		client := relay.NewClient(cfg.RelayBaseURL, logger.NewLogger())

		record, err := client.FetchByCode(cmd.Context(), strings.ToUpper(strings.TrimSpace(args[0])))
		if err != nil {
			if errors.Is(err, relay.ErrCodeNotFound) {
				fmt.Println("invalid or expired code")
			}
			return err
		}

		fmt.Printf("%s (%d bytes, %s)\n", record.FileName, record.FileSize, record.MimeType)
		fmt.Println(record.DownloadURL)
		return nil
	},
}
