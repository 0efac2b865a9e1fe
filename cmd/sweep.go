package cmd

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/liamg/printfind/scan"
	"github.com/spf13/cobra"
)

var completionOrder bool

func init() {
	sweepCmd.Flags().BoolVarP(&hideUnavailable, "up-only", "u", hideUnavailable, "Omit output for endpoints which are not reachable")
	sweepCmd.Flags().BoolVarP(&completionOrder, "unordered", "", completionOrder, "Print results as probes complete rather than in address order")
	rootCmd.AddCommand(sweepCmd)
}

var sweepCmd = &cobra.Command{
	Use:   "sweep <subnet> [start] [end]",
	Short: "Probe a range of addresses in a subnet, e.g. sweep 192.168.1 1 254",
	Args:  cobra.RangeArgs(1, 3),
	Run: func(cmd *cobra.Command, args []string) {

		cfg := loadSettings()

		bounds := []int{1, 254}
		for i, arg := range args[1:] {
			n, err := strconv.Atoi(arg)
			if err != nil {
				fmt.Printf("Invalid host number: '%s'\n", arg)
				os.Exit(1)
			}
			bounds[i] = n
		}

		spec, err := scan.Sweep(args[0], bounds[0], bounds[1], cfg.Port)
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}

		options := cfg.ScanOptions()
		if !completionOrder {
			options = append(options, scan.WithOrderedDelivery())
		}
		prober, err := newProber(sourceAddress)
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
		scanner := scan.NewScanner(prober, cfg.Timeout, cfg.Workers, options...)

		ctx, cancel := signalContext()
		defer cancel()

		startTime := time.Now()
		fmt.Printf("\nStarting sweep of %s at %s\n\n", spec, startTime.String())

		results, err := scanner.Scan(ctx, spec)
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}

		reachable := printResults(results)

		fmt.Printf("\n%d of %d hosts reachable. Sweep complete in %s.\n", reachable, spec.Len(), time.Since(startTime).String())
	},
}
