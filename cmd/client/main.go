package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"github.com/openmined/syftdrop/internal/client/config"
	"github.com/openmined/syftdrop/internal/transfer"
	"github.com/openmined/syftdrop/internal/utils"
	"github.com/openmined/syftdrop/internal/version"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// console log level. The progress TUI raises it so log lines don't tear the screen.
var consoleLevel = new(slog.LevelVar)

var rootCmd = &cobra.Command{
	Use:     "syftdrop",
	Short:   "SyftDrop CLI",
	Long:    "Send large files as resumable chunked uploads and share a download link",
	Version: version.Detailed(),
}

func init() {
	addPersistentFlags(rootCmd)
}

func addPersistentFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().SortFlags = false
	cmd.PersistentFlags().StringP("config", "c", config.DefaultConfigPath, "SyftDrop config file")
	cmd.PersistentFlags().StringP("server", "s", config.DefaultServerURL, "SyftDrop server")
	cmd.PersistentFlags().StringP("data-dir", "d", config.DefaultDataDir, "SyftDrop data directory")
}

func main() {
	// TODO rotate the log file
	logFile := config.DefaultLogFilePath

	if err := utils.EnsureParent(logFile); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create log directory: %v\n", err)
		os.Exit(1)
	}

	// append, several commands may run against the same data dir
	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open log file: %v\n", err)
		os.Exit(1)
	}
	defer file.Close()

	consoleLevel.Set(slog.LevelInfo)
	stdoutHandler := tint.NewHandler(os.Stdout, &tint.Options{
		Level:      consoleLevel,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
		NoColor:    !isatty.IsTerminal(os.Stdout.Fd()),
	})
	fileHandler := slog.NewTextHandler(utils.NewLogInterceptor(file), &slog.HandlerOptions{
		Level: slog.LevelDebug,
		// the interceptor stamps the time
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey && len(groups) == 0 {
				return slog.Attr{}
			}
			return a
		},
	})
	slog.SetDefault(slog.New(utils.NewMultiLogHandler(stdoutHandler, fileHandler)))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// loadConfig merges the config file, SYFTDROP_* env vars and flags, in increasing priority
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	v := viper.New()

	configPath := config.DefaultConfigPath
	if f := cmd.Flag("config"); f != nil && f.Changed {
		configPath = f.Value.String()
	} else if envPath := os.Getenv("SYFTDROP_CONFIG_PATH"); envPath != "" {
		configPath = envPath
	}

	v.SetConfigFile(configPath)
	if filepath.Ext(configPath) == "" {
		v.SetConfigType("json")
	}
	if err := v.ReadInConfig(); err != nil {
		enoent := errors.Is(err, os.ErrNotExist)
		_, ok := err.(viper.ConfigFileNotFoundError)
		if !enoent && !ok {
			return nil, fmt.Errorf("config read '%s': %w", configPath, err)
		}
	}

	// every key needs a default for AutomaticEnv to reach Unmarshal
	v.SetDefault("server_url", config.DefaultServerURL)
	v.SetDefault("data_dir", config.DefaultDataDir)
	v.SetDefault("client_addr", config.DefaultClientAddr)
	v.SetDefault("client_token", "")
	v.SetDefault("chunk_size", transfer.DefaultChunkSize)
	v.SetDefault("concurrency", transfer.DefaultConcurrency)
	v.SetDefault("retry.max_retries", transfer.DefaultMaxRetries)
	v.SetDefault("retry.base_delay", transfer.DefaultBaseDelay)
	v.SetDefault("retry.max_delay", transfer.DefaultMaxDelay)

	for key, flag := range map[string]string{
		"server_url": "server",
		"data_dir":   "data-dir",
	} {
		if f := cmd.Flag(flag); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return nil, err
			}
		}
	}

	v.SetEnvPrefix("SYFTDROP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &config.Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config decode: %w", err)
	}
	cfg.Path = configPath

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
