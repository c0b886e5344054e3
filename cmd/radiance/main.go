// Command radiance runs the Radiance-Link device driver.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/commatea/Radiance-Link/pkg/api/rest"
	"github.com/commatea/Radiance-Link/pkg/bridge/mqtt"
	"github.com/commatea/Radiance-Link/pkg/config"
	"github.com/commatea/Radiance-Link/pkg/device"
	"github.com/commatea/Radiance-Link/pkg/logger"
	"github.com/commatea/Radiance-Link/pkg/persistence/sqlite"
)

var (
	version = "dev"
	commit  = "none"
)

var (
	configPath string
	logLevel   string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "radiance",
		Short: "Driver for Radiance-class video processors",
		Long:  "radiance connects to a Radiance-class video processor over serial or IP and exposes its state and command surface.",
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultConfigPath, "path to configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log level (debug, info, warn, error)")

	rootCmd.AddCommand(startCmd(), sendCmd(), versionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, *logger.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}

	log := logger.New(cfg.Log)
	logger.SetGlobal(log)
	return cfg, log, nil
}

func openManager(ctx context.Context, cfg *config.Config, log *logger.Logger) (*device.Manager, error) {
	manager, err := device.NewManager(ctx, cfg.Connection.Type, cfg.Connection.Reconnect, log)
	if err != nil {
		return nil, err
	}

	opts := device.OpenOptions{
		Port:     cfg.Connection.Port,
		Baudrate: cfg.Connection.Baudrate,
		Host:     cfg.Connection.Host,
		TCPPort:  cfg.Connection.TCPPort,
	}
	if err := manager.Open(ctx, opts); err != nil {
		return nil, err
	}
	return manager, nil
}

func startCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Connect to the device and run until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			manager, err := device.NewManager(ctx, cfg.Connection.Type, cfg.Connection.Reconnect, log)
			if err != nil {
				return err
			}

			if cfg.Journal.Enabled {
				journal, err := sqlite.Open(cfg.Journal.Path)
				if err != nil {
					return err
				}
				defer journal.Close()
				manager.SetJournal(journal)
			}

			if cfg.MQTT.Enabled {
				publisher, err := mqtt.NewPublisher(mqtt.Config{
					Broker:   cfg.MQTT.Broker,
					ClientID: cfg.MQTT.ClientID,
					Topic:    cfg.MQTT.Topic,
					Username: cfg.MQTT.Username,
					Password: cfg.MQTT.Password,
				}, log)
				if err != nil {
					return err
				}
				defer publisher.Close()
				manager.OnDeviceInfoChange(publisher.Publish)
			}

			if cfg.API.Enabled {
				server := rest.NewServer(cfg.API.Listen, manager, log)
				go func() {
					if err := server.Start(); err != nil {
						log.Error("HTTP API failed", "error", err)
					}
				}()
				defer server.Shutdown(context.Background())
			}

			opts := device.OpenOptions{
				Port:     cfg.Connection.Port,
				Baudrate: cfg.Connection.Baudrate,
				Host:     cfg.Connection.Host,
				TCPPort:  cfg.Connection.TCPPort,
			}
			if err := manager.Open(ctx, opts); err != nil {
				return err
			}
			defer manager.Close()

			log.Info("Driver started", "connection", cfg.Connection.Type)
			<-ctx.Done()
			log.Info("Shutting down")
			return nil
		},
	}
}

func sendCmd() *cobra.Command {
	var wait time.Duration

	cmd := &cobra.Command{
		Use:   "send COMMAND [COMMAND...]",
		Short: "Send one or more raw commands to the device",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			manager, err := openManager(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer manager.Close()

			if err := manager.SendCommand(ctx, args...); err != nil {
				return err
			}

			// Leave the connection open briefly so responses drain.
			select {
			case <-ctx.Done():
			case <-time.After(wait):
			}
			return nil
		},
	}

	cmd.Flags().DurationVar(&wait, "wait", 2*time.Second, "time to wait for responses before closing")
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("radiance %s (%s)\n", version, commit)
		},
	}
}
