// Command limsim runs traffic simulations, records them to a trace store and
// replays recorded runs.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"github.com/azurexth/LimSim/internal/config"
	"github.com/azurexth/LimSim/internal/logging"
	intOtel "github.com/azurexth/LimSim/internal/otel"
	"github.com/azurexth/LimSim/internal/sim"
)

const AppName = "limsim"

var (
	SessionStartTime = time.Now()

	// ConfigDir holds limsim.cfg.json.
	ConfigDir string

	LogFilePath string
	LogFile     *os.File

	SlogManager  = logging.NewSlogManager()
	Logger       = SlogManager.Logger()
	ZLogger      = zerolog.Nop()
	OTelProvider *intOtel.Provider

	// currentRun feeds run and tick attributes to every log record.
	currentRun atomic.Pointer[sim.Context]
)

var rootCmd = &cobra.Command{
	Use:           AppName,
	Short:         "Traffic simulation with record and replay",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&ConfigDir, "config", ".", "directory containing "+config.FileName)
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.AddCommand(runCmd, replayCmd, ctlCmd)
}

// bindFlags binds the given flags of cmd to viper keys, flag name -> key.
// A bound flag overrides the config file only when it is set.
func bindFlags(cmd *cobra.Command, bindings map[string]string) error {
	for name, key := range bindings {
		flag := cmd.Flags().Lookup(name)
		if flag == nil {
			flag = cmd.InheritedFlags().Lookup(name)
		}
		if flag == nil {
			return fmt.Errorf("unknown flag %q", name)
		}
		if err := viper.BindPFlag(key, flag); err != nil {
			return fmt.Errorf("bind --%s: %w", name, err)
		}
	}
	return nil
}

// bootstrap binds flags, loads the config file and sets up logging. A
// missing config file is not fatal; defaults apply.
func bootstrap(cmd *cobra.Command, bindings map[string]string) error {
	bindings["log-level"] = "logLevel"
	if err := bindFlags(cmd, bindings); err != nil {
		return err
	}
	loadErr := config.Load(ConfigDir)
	if err := setupLogging(); err != nil {
		return err
	}
	if loadErr != nil {
		Logger.Warn("Failed to load config, using defaults!", "error", loadErr)
	} else {
		Logger.Info("Loaded config", "dir", ConfigDir)
	}
	return nil
}

// setupLogging opens the session log file and builds the slog and zerolog
// loggers, OTel and Graylog included when configured.
func setupLogging() error {
	logsDir := viper.GetString("logsDir")
	if err := os.MkdirAll(logsDir, 0o755); err != nil {
		return fmt.Errorf("create logs dir: %w", err)
	}

	LogFilePath = logging.LogFilePath(logsDir, AppName, SessionStartTime)
	if _, err := os.Stat(LogFilePath); err == nil {
		os.Rename(LogFilePath, LogFilePath+".old")
	}
	var err error
	LogFile, err = os.OpenFile(LogFilePath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o666)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}

	otelCfg := config.GetOTelConfig()
	OTelProvider, err = intOtel.New(intOtel.Config{
		Enabled:      otelCfg.Enabled,
		ServiceName:  otelCfg.ServiceName,
		BatchTimeout: otelCfg.BatchTimeout,
		LogWriter:    LogFile,
		Endpoint:     otelCfg.Endpoint,
		Insecure:     otelCfg.Insecure,
	})
	var otelErr error
	if err != nil {
		otelErr = err
		OTelProvider, _ = intOtel.New(intOtel.Config{})
	}
	var otelLogProvider *sdklog.LoggerProvider
	if OTelProvider.Enabled() {
		otelLogProvider = OTelProvider.LoggerProvider()
	}

	opts := []logging.Option{logging.WithContext(runLogAttrs)}
	var gelfErr error
	if viper.GetBool("graylog.enabled") {
		w, err := logging.NewGraylogWriter(viper.GetString("graylog.address"))
		if err != nil {
			gelfErr = err
		} else {
			opts = append(opts, logging.WithGELF(w))
		}
	}

	level := viper.GetString("logLevel")
	SlogManager.Setup(io.MultiWriter(os.Stderr, LogFile), level, otelLogProvider, opts...)
	Logger = SlogManager.Logger()
	ZLogger = newZeroLogger(LogFile, level)

	Logger.Info("Logging to file", "path", LogFilePath)
	if otelErr != nil {
		Logger.Error("Failed to initialize OTel provider", "error", otelErr)
	} else if OTelProvider.Enabled() {
		Logger.Info("OTel provider initialized", "endpoint", otelCfg.Endpoint)
	}
	if gelfErr != nil {
		Logger.Warn("Graylog disabled", "error", gelfErr)
	}
	return nil
}

// newZeroLogger builds the zerolog logger used by the dispatcher and the
// InfluxDB sink: colored console output plus plain text in the log file.
func newZeroLogger(file io.Writer, level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.TimestampFunc = func() time.Time {
		return time.Now().UTC()
	}

	mlw := zerolog.MultiLevelWriter(
		zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339},
		zerolog.ConsoleWriter{Out: file, TimeFormat: time.RFC3339, NoColor: true},
	)
	return zerolog.New(mlw).Level(lvl).With().Timestamp().Logger().
		Hook(zerolog.HookFunc(func(e *zerolog.Event, _ zerolog.Level, _ string) {
			if c := currentRun.Load(); c != nil {
				e.Uint("run", c.RunID).Int64("tick", c.Tick())
			}
		}))
}

func runLogAttrs() []slog.Attr {
	if c := currentRun.Load(); c != nil {
		return c.LogAttrs()
	}
	return nil
}

// shutdownLogging flushes OTel and closes the log file.
func shutdownLogging() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := SlogManager.Flush(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to flush logs: %v\n", err)
	}
	if OTelProvider != nil {
		if err := OTelProvider.Shutdown(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to shut down OTel: %v\n", err)
		}
	}
	if LogFile != nil {
		LogFile.Close()
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
