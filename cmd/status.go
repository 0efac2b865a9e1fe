package cmd

import (
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"github.com/liamg/printfind/printer"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var sendHex string

func init() {
	statusCmd.Flags().StringVarP(&sendHex, "send", "s", sendHex, "Raw bytes to send before reading status, as hex e.g. 100401")
	rootCmd.AddCommand(statusCmd)
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Discover the printer, open a session and print any status bytes it returns",
	Run: func(cmd *cobra.Command, args []string) {

		payload, err := hex.DecodeString(strings.ReplaceAll(sendHex, " ", ""))
		if err != nil {
			fmt.Printf("Invalid hex payload: %s\n", err)
			os.Exit(1)
		}

		cfg := loadSettings()

		ctx, cancel := signalContext()
		defer cancel()

		success, err := discover(ctx)
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}

		fmt.Printf("Printer found via %s at %s\n", success.Label, success.Endpoint.Address())

		session, err := printer.Dial(ctx, success.Endpoint, cfg.Timeout)
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
		defer session.Close()

		log.Debugf("Session open to %s", session.Endpoint().Address())

		if len(payload) > 0 {
			if err := session.SendCommand(payload); err != nil {
				fmt.Println(err)
				os.Exit(1)
			}
		}

		status, err := session.ReadStatus()
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}

		if len(status) == 0 {
			fmt.Println("No status bytes received")
			return
		}

		fmt.Printf("Status: %s\n", hex.EncodeToString(status))
	},
}
