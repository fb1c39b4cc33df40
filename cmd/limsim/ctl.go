package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/azurexth/LimSim/internal/api"
	"github.com/azurexth/LimSim/internal/config"
	"github.com/azurexth/LimSim/pkg/streaming"
)

var ctlCmd = &cobra.Command{
	Use:   "ctl",
	Short: "Control a running simulation through its API",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := bindFlags(cmd, map[string]string{"server": "api.serverUrl"}); err != nil {
			return err
		}
		// the config file is optional here
		_ = config.Load(ConfigDir)
		return nil
	},
}

func init() {
	ctlCmd.PersistentFlags().String("server", "http://localhost:8080", "control API base URL")
	ctlCmd.AddCommand(
		&cobra.Command{
			Use:   "focus X Y",
			Short: "Move the focus to a point; the nearest vehicle becomes the ego",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				x, err := strconv.ParseFloat(strings.TrimSpace(args[0]), 64)
				if err != nil {
					return fmt.Errorf("invalid x %q: %w", args[0], err)
				}
				y, err := strconv.ParseFloat(strings.TrimSpace(args[1]), 64)
				if err != nil {
					return fmt.Errorf("invalid y %q: %w", args[1], err)
				}
				if err := ctlClient().Focus(x, y); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "focus requested at %g,%g\n", x, y)
				return nil
			},
		},
		&cobra.Command{
			Use:   "pause",
			Short: "Freeze vehicle motion",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := ctlClient().Pause(); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "paused")
				return nil
			},
		},
		&cobra.Command{
			Use:   "resume",
			Short: "Resume vehicle motion",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := ctlClient().Resume(); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "resumed")
				return nil
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "Print the run status as JSON",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				st, err := ctlClient().Status()
				if err != nil {
					return err
				}
				out, err := json.MarshalIndent(st, "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(out))
				return nil
			},
		},
		&cobra.Command{
			Use:   "watch",
			Short: "Stream viewer messages until the run ends",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
				defer stop()
				return ctlClient().Watch(ctx, func(env streaming.Envelope) error {
					fmt.Fprintln(cmd.OutOrStdout(), describeEnvelope(env))
					if env.Type == streaming.TypeRunEnded {
						return api.ErrStop
					}
					return nil
				})
			},
		},
	)
}

func ctlClient() *api.Client {
	return api.New(viper.GetString("api.serverUrl"))
}

// describeEnvelope renders one viewer message as a single line.
func describeEnvelope(env streaming.Envelope) string {
	switch env.Type {
	case streaming.TypeStatus:
		var st struct {
			Tick    int64 `json:"tick"`
			Running int   `json:"running"`
			EgoID   int64 `json:"egoId"`
			Paused  bool  `json:"paused"`
		}
		if err := json.Unmarshal(env.Payload, &st); err == nil {
			return fmt.Sprintf("status tick=%d running=%d ego=%d paused=%t", st.Tick, st.Running, st.EgoID, st.Paused)
		}
	case streaming.TypeFrame:
		return fmt.Sprintf("frame %d bytes", len(env.Payload))
	case streaming.TypeRunEnded:
		return "run ended"
	}
	if len(env.Payload) == 0 {
		return env.Type
	}
	return env.Type + " " + string(env.Payload)
}
