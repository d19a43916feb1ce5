// Command gramsim drives a gramctl Controller in isolation: it loads a YAML
// timing/geometry file, runs the core for a fixed number of cycles against
// an idle client load, and optionally serves the bandwidth monitor's
// Prometheus metrics over HTTP. It exists for timing validation and local
// experimentation, not as a full memory-system simulator (spec.md §1's
// "verification engine, not a cycle-accurate electrical simulator").
package main

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"gramctl/config"
	"gramctl/controller"
	"gramctl/crossbar"
	"gramctl/simlog"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "gramsim",
		Short: "Drive a gramctl DRAM controller core for a fixed number of cycles",
	}
	root.AddCommand(newRunCmd())
	return root
}

func newRunCmd() *cobra.Command {
	var (
		configPath string
		cycles     int
		metricsAddr string
		nports      int
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Tick the controller cycles times against an idle load",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSim(configPath, cycles, metricsAddr, nports)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "path to a gramsim YAML configuration (required)")
	cmd.Flags().IntVar(&cycles, "cycles", 1000, "number of controller cycles to run")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "if set, serve Prometheus metrics on this address (e.g. :9090) for the run's duration")
	cmd.Flags().IntVar(&nports, "nports", 1, "number of idle client ports to construct the crossbar with")
	_ = cmd.MarkFlagRequired("config")

	return cmd
}

func runSim(configPath string, cycles int, metricsAddr string, nports int) error {
	log, err := simlog.NewProduction()
	if err != nil {
		return fmt.Errorf("gramsim: build logger: %w", err)
	}
	defer log.Sync()

	phy, geom, timing, ctrl, err := config.LoadFile(configPath)
	if err != nil {
		return fmt.Errorf("gramsim: %w", err)
	}

	ports := make([]crossbar.Port, nports)
	for i := range ports {
		ports[i] = crossbar.Port{ID: i, Mode: crossbar.ModeBoth}
	}

	c, err := controller.New(controller.Config{
		Phy:       phy,
		Geom:      geom,
		Timing:    timing,
		Ctrl:      ctrl,
		ClkFreqHz: 100e6,
		Ports:     ports,
		Logger:    log,
	})
	if err != nil {
		return fmt.Errorf("gramsim: build controller: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(c.BandwidthMonitor())

	var srv *http.Server
	if metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		srv = &http.Server{Addr: metricsAddr, Handler: mux}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Infow("metrics server exited", "error", err.Error())
			}
		}()
		defer srv.Close()
	}

	idlePorts := make([]crossbar.ClientCmd, nports)
	wdata := make([][]byte, nports)
	wmask := make([][]byte, nports)
	lanes := phy.DFIDataBits / 8
	for i := range wdata {
		wdata[i] = make([]byte, lanes)
		wmask[i] = make([]byte, lanes)
	}

	start := time.Now()
	for i := 0; i < cycles; i++ {
		c.Tick(controller.TickInput{Ports: idlePorts, WriteData: wdata, WriteMask: wmask})
	}
	log.Infow("run complete", "cycles", cycles, "elapsed", time.Since(start).String())

	return nil
}
