package cmd

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/liamg/printfind/config"
	"github.com/liamg/printfind/fallback"
	"github.com/liamg/printfind/scan"
	"github.com/liamg/printfind/version"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var debug bool
var timeoutMS int = 1000
var parallelism int = 32
var port int = scan.DefaultPort
var configPath string
var nameserver string
var rateLimit float64
var sourceAddress string
var versionRequested bool

var settings = config.NewViper()

func init() {
	rootCmd.PersistentFlags().BoolVarP(&versionRequested, "version", "", versionRequested, "Output version information and exit")
	rootCmd.PersistentFlags().BoolVarP(&debug, "verbose", "v", debug, "Enable verbose logging")
	rootCmd.PersistentFlags().IntVarP(&timeoutMS, "timeout-ms", "t", timeoutMS, "Probe timeout in MS")
	rootCmd.PersistentFlags().IntVarP(&parallelism, "workers", "w", parallelism, "Parallel probes to run")
	rootCmd.PersistentFlags().IntVarP(&port, "port", "p", port, "Printer port")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", configPath, "YAML discovery plan file")
	rootCmd.PersistentFlags().StringVarP(&nameserver, "nameserver", "", nameserver, "Resolve hostnames against this nameserver instead of the system resolver")
	rootCmd.PersistentFlags().Float64VarP(&rateLimit, "rate", "", rateLimit, "Maximum probes started per second (0 for unlimited)")
	rootCmd.PersistentFlags().StringVarP(&sourceAddress, "source", "", sourceAddress, "Local IP address to send probes from")

	rootCmd.PersistentFlags().String("ip", "", "Printer IP address")
	rootCmd.PersistentFlags().String("hostname", "", "Printer hostname")
	rootCmd.PersistentFlags().String("mac", "", "Printer hardware address, looked up in the local neighbor cache")
	rootCmd.PersistentFlags().String("subnet", "", "Subnet to sweep when other methods fail, e.g. 192.168.1")

	bind(config.KeyTimeoutMS, "timeout-ms")
	bind(config.KeyWorkers, "workers")
	bind(config.KeyPort, "port")
	bind(config.KeyConfig, "config")
	bind(config.KeyNameserver, "nameserver")
	bind(config.KeyRateLimit, "rate")
	bind(config.KeyIP, "ip")
	bind(config.KeyHostname, "hostname")
	bind(config.KeyMAC, "mac")
	bind(config.KeySubnet, "subnet")
}

func bind(key string, flag string) {
	if err := settings.BindPFlag(key, rootCmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

var rootCmd = &cobra.Command{
	Use:   "printfind",
	Short: "printfind locates network receipt printers",
	Long: `Locates a network printer by trying an ordered list of methods (explicit IP,
hostname, hardware address, subnet sweep) and reports the first reachable endpoint.

Methods come from a YAML plan file (--config) or from PRINTER_IP, PRINTER_HOSTNAME,
PRINTER_MAC and PRINTER_SUBNET, which may also be given as flags.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if debug {
			log.SetLevel(log.DebugLevel)
		}
	},
	Run: func(cmd *cobra.Command, args []string) {

		if versionRequested {
			v := version.Version
			if v == "" {
				v = "development version"
			}
			fmt.Printf("printfind %s\n", v)
			return
		}

		ctx, cancel := signalContext()
		defer cancel()

		startTime := time.Now()

		success, err := discover(ctx)
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}

		fmt.Printf("Printer found via %s at %s\n", success.Label, success.Endpoint.Address())
		log.Debugf("Discovery complete in %s", time.Since(startTime))
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}

func loadSettings() *config.Config {
	cfg, err := config.LoadSettings(settings)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	if err := validateSettings(cfg); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	return cfg
}

func validateSettings(cfg *config.Config) error {
	if cfg.Timeout <= 0 {
		return fmt.Errorf("Invalid timeout: %s", cfg.Timeout)
	}
	if cfg.Workers < 1 {
		return fmt.Errorf("Invalid number of workers: %d", cfg.Workers)
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return fmt.Errorf("Invalid port number: %d", cfg.Port)
	}
	return nil
}

// discover runs the configured fallback plan.
func discover(ctx context.Context) (fallback.Success, error) {
	cfg, err := config.Load(settings)
	if err != nil {
		return fallback.Success{}, err
	}

	plan, err := cfg.FallbackPlan()
	if err != nil {
		return fallback.Success{}, err
	}

	for i, entry := range plan {
		log.Debugf("Method %d: %s", i+1, entry)
	}

	prober, err := newProber(sourceAddress)
	if err != nil {
		return fallback.Success{}, err
	}

	chain := fallback.NewChain(prober, cfg.Resolver(), cfg.Workers, cfg.ScanOptions()...)
	return chain.TryInOrder(ctx, plan)
}

// newProber returns a connect prober, bound to source when it is set.
func newProber(source string) (*scan.ConnectProber, error) {
	prober := scan.NewConnectProber()
	if source == "" {
		return prober, nil
	}
	ip := net.ParseIP(source)
	if ip == nil {
		return nil, fmt.Errorf("Invalid source address: '%s'", source)
	}
	prober.LocalAddr = &net.TCPAddr{IP: ip}
	return prober, nil
}

func getPorts(selection string) ([]int, error) {
	if selection == "" {
		return scan.DefaultPorts, nil
	}
	ports := []int{}
	ranges := strings.Split(selection, ",")
	for _, r := range ranges {
		r = strings.TrimSpace(r)
		if strings.Contains(r, "-") {
			parts := strings.Split(r, "-")
			if len(parts) != 2 {
				return nil, fmt.Errorf("Invalid port selection segment: '%s'", r)
			}

			p1, err := strconv.Atoi(parts[0])
			if err != nil {
				return nil, fmt.Errorf("Invalid port number: '%s'", parts[0])
			}

			p2, err := strconv.Atoi(parts[1])
			if err != nil {
				return nil, fmt.Errorf("Invalid port number: '%s'", parts[1])
			}

			if p1 > p2 {
				return nil, fmt.Errorf("Invalid port range: %d-%d", p1, p2)
			}

			if p1 < 1 || p2 > 65535 {
				return nil, fmt.Errorf("Invalid port range: %d-%d", p1, p2)
			}

			for i := p1; i <= p2; i++ {
				ports = append(ports, i)
			}

		} else {
			if port, err := strconv.Atoi(r); err != nil || port < 1 || port > 65535 {
				return nil, fmt.Errorf("Invalid port number: '%s'", r)
			} else {
				ports = append(ports, port)
			}
		}
	}
	return ports, nil
}
