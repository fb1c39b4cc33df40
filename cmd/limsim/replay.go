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
	"github.com/azurexth/LimSim/internal/focus"
	"github.com/azurexth/LimSim/internal/network"
	"github.com/azurexth/LimSim/internal/scene"
	"github.com/azurexth/LimSim/internal/sim"
	"github.com/azurexth/LimSim/pkg/core"
)

var (
	traceFile     string
	replayRunID   uint
	replayRunTime int64
	replayNetFile string
)

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Replay a recorded run",
	Long: "Replay a recorded run through the scene and viewer stream. " +
		"The network recorded with the run is used unless --net is given.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := bootstrap(cmd, map[string]string{
			"storage": "storage.type",
			"listen":  "server.listen",
		}); err != nil {
			return err
		}
		defer shutdownLogging()
		if cmd.Flags().Changed("listen") {
			viper.Set("server.enabled", true)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runReplay(ctx)
	},
}

func init() {
	replayCmd.Flags().StringVar(&traceFile, "trace", "", "sqlite trace file")
	replayCmd.Flags().UintVar(&replayRunID, "run-id", 0, "run to replay, 0 for the latest")
	replayCmd.Flags().Int64Var(&replayRunTime, "run-time", 0, "stop after this tick, 0 for the whole trace")
	replayCmd.Flags().StringVar(&replayNetFile, "net", "", "road network file, overrides the recorded one")
	replayCmd.Flags().String("storage", StorageSQLite, "trace store: sqlite, postgres or redis")
	replayCmd.Flags().String("listen", ":8080", "serve the control API on this address")
}

// peekRun reads the run metadata through a short-lived store.
func peekRun(storageCfg config.StorageConfig) (*core.RunInfo, error) {
	store, err := openReplayStorage(storageCfg, traceFile)
	if err != nil {
		return nil, err
	}
	defer store.Close()
	if err := store.Init(); err != nil {
		return nil, fmt.Errorf("init trace store: %w", err)
	}
	return store.OpenRun(replayRunID)
}

// runReplay resolves the network and plays the recorded run to its end.
func runReplay(ctx context.Context) error {
	storageCfg := config.GetStorageConfig()
	simCfg := config.GetSimConfig()

	netPath := replayNetFile
	if netPath == "" {
		info, err := peekRun(storageCfg)
		if err != nil {
			return fmt.Errorf("read run: %w", err)
		}
		if info.Network == "" {
			return fmt.Errorf("run %d has no recorded network, pass --net", info.ID)
		}
		netPath = info.Network
	}
	net, err := network.Load(netPath)
	if err != nil {
		return fmt.Errorf("load network: %w", err)
	}

	store, err := openReplayStorage(storageCfg, traceFile)
	if err != nil {
		return err
	}

	s, err := newSession(ctx)
	if err != nil {
		store.Close()
		return err
	}
	defer s.close()

	r, err := sim.NewReplayer(sim.ReplayOptions{
		RunID:         replayRunID,
		RunTime:       replayRunTime,
		ProgressEvery: simCfg.ProgressEvery,
		Controls:      s.controls,
		Network:       net,
		Scene:         scene.New(net, simCfg.SceneRadius),
		Resolver:      focus.NewResolver(simCfg.FocusRadius, Logger),
		Store:         store,
		Logger:        Logger,
		Observers:     s.observers(),
	})
	if err != nil {
		store.Close()
		return err
	}

	Logger.Info("Replaying", "trace", traceFile, "run", replayRunID, "network", netPath)
	return s.execute(ctx, "replay", r, store, r.Info)
}
