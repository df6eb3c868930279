package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/khaledhikmat/fr-attendance/service/config"
	"github.com/khaledhikmat/fr-attendance/service/lgr"
)

// Version is the application version.
const Version = "0.1.0"

var (
	// cfgSvc is built once flags are parsed and shared by subcommands
	cfgSvc     config.IService
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:          "frattendance",
	Short:        "Live face-recognition attendance client",
	Version:      Version,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Load env vars if we are in DEV mode
		if os.Getenv("RUN_TIME_ENV") == "dev" || os.Getenv("RUN_TIME_ENV") == "" {
			if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("error loading .env file: %w", err)
			}
		}

		var err error
		cfgSvc, err = config.NewFile(configPath)
		if err != nil {
			return err
		}

		level := cfgSvc.GetLogLevel()
		if logLevel != "" {
			level = logLevel
		}
		lgr.Init(level, cfgSvc.GetLogFile())
		lgr.Logger.Debug(
			"configuration loaded",
			slog.String("backend", cfgSvc.GetBackendURL()),
			slog.String("cameraSource", cfgSvc.GetCameraSource()),
			slog.String("recognizerSource", cfgSvc.GetRecognizerSource()),
			slog.Duration("pollInterval", cfgSvc.GetPollInterval()),
		)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		lgr.Close()
	},
}

func Execute() {
	// Create a context that listens for Ctrl+C (SIGINT) or Kill (SIGTERM)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "settings.yaml", "YAML settings file (missing file means defaults)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level override: debug, info, warn, error")
}
