package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/liamg/printfind/scan"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var portSelection string
var hideUnavailable bool

func init() {
	probeCmd.Flags().StringVarP(&portSelection, "ports", "P", portSelection, "Ports to probe. Comma separated, can use hyphens e.g. 9100,515,631. Defaults to known printer ports")
	probeCmd.Flags().BoolVarP(&hideUnavailable, "up-only", "u", hideUnavailable, "Omit output for endpoints which are not reachable")
	rootCmd.AddCommand(probeCmd)
}

var probeCmd = &cobra.Command{
	Use:   "probe [host...]",
	Short: "Probe hosts for open printer ports",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {

		cfg := loadSettings()

		ports, err := getPorts(portSelection)
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}

		candidates := []scan.Endpoint{}
		for _, host := range args {
			for _, p := range ports {
				ep, err := scan.NewEndpoint(host, p)
				if err != nil {
					fmt.Println(err)
					os.Exit(1)
				}
				candidates = append(candidates, ep)
			}
		}

		ctx, cancel := signalContext()
		defer cancel()

		prober, err := newProber(sourceAddress)
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}

		scanner := scan.NewScanner(prober, cfg.Timeout, cfg.Workers, append(cfg.ScanOptions(), scan.WithOrderedDelivery())...)

		startTime := time.Now()
		log.Debugf("Probing %d endpoints...", len(candidates))

		results, err := scanner.Scan(ctx, scan.ExplicitList(candidates...))
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}

		reachable := printResults(results)

		fmt.Printf("\n%d of %d endpoints reachable, probed in %s.\n", reachable, len(candidates), time.Since(startTime).String())
		if reachable == 0 {
			os.Exit(1)
		}
	},
}

func printResults(results <-chan scan.ProbeResult) int {
	reachable := 0
	for result := range results {
		if result.IsReachable() {
			reachable++
		} else if hideUnavailable {
			continue
		}
		fmt.Println(result.String())
	}
	return reachable
}
