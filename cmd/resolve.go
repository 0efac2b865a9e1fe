package cmd

import (
	"fmt"
	"net"
	"os"
	"strings"

	"github.com/liamg/printfind/resolve"
	"github.com/spf13/cobra"
)

var resolveKind string

func init() {
	resolveCmd.Flags().StringVarP(&resolveKind, "kind", "k", resolveKind, "Identifier kind: ip, hostname or mac. Detected from the value when omitted")
	rootCmd.AddCommand(resolveCmd)
}

var resolveCmd = &cobra.Command{
	Use:   "resolve <identifier>",
	Short: "Resolve an IP address, hostname or hardware address to an IP address",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {

		cfg := loadSettings()

		req, err := buildRequest(resolveKind, args[0])
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}

		ctx, cancel := signalContext()
		defer cancel()

		addr, err := cfg.Resolver().Resolve(ctx, req)
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}

		fmt.Println(addr)
	},
}

func buildRequest(kind string, value string) (resolve.Request, error) {
	switch strings.ToLower(kind) {
	case "ip", "address":
		return resolve.LiteralAddress(value), nil
	case "hostname", "host", "name":
		return resolve.Hostname(value), nil
	case "mac", "hw":
		return resolve.HardwareAddress(value), nil
	case "":
		if resolve.IsIPv4Literal(value) {
			return resolve.LiteralAddress(value), nil
		}
		if _, err := net.ParseMAC(value); err == nil {
			return resolve.HardwareAddress(value), nil
		}
		return resolve.Hostname(value), nil
	}
	return resolve.Request{}, fmt.Errorf("Unknown identifier kind '%s'", kind)
}
