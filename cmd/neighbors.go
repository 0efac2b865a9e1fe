package cmd

import (
	"fmt"
	"os"

	"github.com/liamg/printfind/resolve"
	"github.com/liamg/printfind/scan"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(neighborsCmd)
}

var neighborsCmd = &cobra.Command{
	Use:   "neighbors",
	Short: "List devices in the local neighbor (ARP) cache",
	Run: func(cmd *cobra.Command, args []string) {

		resolver := resolve.NewResolver()

		neighbors, err := resolver.ListNeighbors()
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}

		ctx, cancel := signalContext()
		defer cancel()

		resolver.NameNeighbors(ctx, neighbors)

		for _, neighbor := range neighbors {
			fmt.Printf("%s\t%s\t%s\t%s\n", scan.Pad(neighbor.IP, 16), scan.Pad(neighbor.MAC.String(), 18), scan.Pad(neighbor.Name, 24), neighbor.Manufacturer)
		}
	},
}
