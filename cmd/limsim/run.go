package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/azurexth/LimSim/internal/config"
	"github.com/azurexth/LimSim/internal/demand"
	"github.com/azurexth/LimSim/internal/network"
	"github.com/azurexth/LimSim/internal/sim"
	"github.com/azurexth/LimSim/internal/storage"
	"github.com/azurexth/LimSim/internal/util"
	"github.com/azurexth/LimSim/pkg/core"
)

var (
	netFile    string
	demandFile string
	runName    string
	dryRun     bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a live simulation and record it",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := bootstrap(cmd, map[string]string{
			"seed":     "sim.seed",
			"run-time": "sim.runTime",
			"storage":  "storage.type",
			"listen":   "server.listen",
		}); err != nil {
			return err
		}
		defer shutdownLogging()
		if cmd.Flags().Changed("listen") {
			viper.Set("server.enabled", true)
		}
		if dryRun {
			viper.Set("storage.type", StorageMemory)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runLive(ctx)
	},
}

func init() {
	runCmd.Flags().StringVar(&netFile, "net", "", "road network file (YAML)")
	runCmd.Flags().StringVar(&demandFile, "demand", "", "demand table (from,to,direction,rate)")
	runCmd.Flags().Int64("seed", 0, "random seed for demand generation")
	runCmd.Flags().Int64("run-time", 600, "number of ticks to simulate")
	runCmd.Flags().String("storage", StorageSQLite, "trace store: sqlite, postgres, redis or memory")
	runCmd.Flags().String("listen", ":8080", "serve the control API on this address")
	runCmd.Flags().StringVar(&runName, "name", "", "run name stored with the trace")
	runCmd.Flags().BoolVar(&dryRun, "dry-run", false, "keep the trace in memory")
	_ = runCmd.MarkFlagRequired("net")
	_ = runCmd.MarkFlagRequired("demand")
}

// runLive loads the inputs, builds the driver and runs it to the end.
func runLive(ctx context.Context) error {
	simCfg := config.GetSimConfig()
	storageCfg := config.GetStorageConfig()

	net, err := network.Load(netFile)
	if err != nil {
		return fmt.Errorf("load network: %w", err)
	}
	records, rowErrs, err := demand.LoadTable(demandFile)
	if err != nil {
		return fmt.Errorf("load demand: %w", err)
	}
	for _, rowErr := range rowErrs {
		Logger.Warn("Skipped demand row", "error", rowErr)
	}
	Logger.Info("Inputs loaded", "network", netFile, "roads", len(net.RoadIDs()), "demand", demandFile, "records", len(records))

	tracePath := util.TraceFileName(storageCfg.OutputDir, netFile, demandFile, simCfg.RunTime, simCfg.Seed, SessionStartTime)
	store, err := createStorageBackend(storageCfg, tracePath)
	if err != nil {
		return err
	}

	s, err := newSession(ctx)
	if err != nil {
		store.Close()
		return err
	}
	defer s.close()

	name := runName
	if name == "" {
		name = util.FileStem(tracePath)
	}
	info := &core.RunInfo{
		Name:      name,
		Network:   netFile,
		Demand:    demandFile,
		StartedAt: SessionStartTime.UTC(),
	}
	d, err := sim.NewDriver(sim.Options{
		Sim:       simCfg,
		Run:       info,
		Records:   records,
		Controls:  s.controls,
		Network:   net,
		Store:     store,
		Logger:    Logger,
		Observers: s.observers(),
	})
	if err != nil {
		store.Close()
		return err
	}

	if err := s.execute(ctx, "live", d, store, func() *core.RunInfo { return info }); err != nil {
		return err
	}
	if exp, ok := store.(storage.Exportable); ok && exp.ExportedFilePath() != "" {
		Logger.Info("Trace written", "path", exp.ExportedFilePath())
	}
	return nil
}
