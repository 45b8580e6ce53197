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

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"github.com/openmined/syftdrop/internal/server"
	"github.com/openmined/syftdrop/internal/server/blob"
	"github.com/openmined/syftdrop/internal/server/transfer"
	"github.com/openmined/syftdrop/internal/version"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const envPrefix = "SYFTDROP"

var home, _ = os.UserHomeDir()

var rootCmd = &cobra.Command{
	Use:     "syftdrop-server",
	Short:   "SyftDrop transfer server",
	Version: version.Detailed(),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		setupLogger(cfg.LogLevel)

		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}
		cmd.SilenceUsage = true

		srv, err := server.New(cfg)
		if err != nil {
			return err
		}

		defer slog.Info("Bye!")
		if err := srv.Start(cmd.Context()); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("server", "error", err)
			return err
		}
		return nil
	},
}

func init() {
	addFlags(rootCmd)
}

func addFlags(cmd *cobra.Command) {
	cmd.Flags().SortFlags = false
	cmd.Flags().StringP("config", "f", "", "Path to the config file (yaml, json or toml)")
	cmd.Flags().StringP("bind", "b", server.DefaultAddr, "Address to bind the server")
	cmd.Flags().StringP("public-url", "u", server.DefaultPublicURL, "Public url of the server, used in download links")
	cmd.Flags().StringP("cert", "c", "", "Path to the certificate file")
	cmd.Flags().StringP("key", "k", "", "Path to the key file")
	cmd.Flags().StringP("data-dir", "d", filepath.Join(home, ".syftdrop-server"), "Directory for the server state")
	cmd.Flags().Bool("memory-blob", false, "Keep objects in memory instead of S3 (development only)")
	cmd.Flags().String("log-level", "info", "Log level (debug, info, warn, error)")
}

func main() {
	setupLogger("info")

	// Setup root context with signal handling
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func setupLogger(level string) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}

	handler := tint.NewHandler(os.Stdout, &tint.Options{
		Level:      lvl,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
		NoColor:    !isatty.IsTerminal(os.Stdout.Fd()),
	})
	slog.SetDefault(slog.New(handler))
}

// loadConfig merges defaults, the config file, SYFTDROP_* env vars and flags, in increasing priority
func loadConfig(cmd *cobra.Command) (*server.Config, error) {
	// a missing .env is fine
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	if path, _ := cmd.Flags().GetString("config"); path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath(filepath.Join(home, ".syftdrop-server"))
		v.AddConfigPath("/etc/syftdrop")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config read '%s': %w", v.ConfigFileUsed(), err)
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.BindPFlag("http.addr", cmd.Flags().Lookup("bind"))
	v.BindPFlag("http.public_url", cmd.Flags().Lookup("public-url"))
	v.BindPFlag("http.cert_file", cmd.Flags().Lookup("cert"))
	v.BindPFlag("http.key_file", cmd.Flags().Lookup("key"))
	v.BindPFlag("data_dir", cmd.Flags().Lookup("data-dir"))
	v.BindPFlag("memory_blob", cmd.Flags().Lookup("memory-blob"))
	v.BindPFlag("log_level", cmd.Flags().Lookup("log-level"))

	var cfg server.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config decode: %w", err)
	}

	if dir, err := filepath.Abs(cfg.DataDir); err == nil {
		cfg.DataDir = dir
	}
	return &cfg, nil
}

// every key needs a default so that env vars are seen by Unmarshal
func setDefaults(v *viper.Viper) {
	tc := transfer.DefaultConfig()

	v.SetDefault("http.addr", server.DefaultAddr)
	v.SetDefault("http.public_url", server.DefaultPublicURL)
	v.SetDefault("http.cert_file", "")
	v.SetDefault("http.key_file", "")

	v.SetDefault("blob.bucket_name", "")
	v.SetDefault("blob.region", "us-east-1")
	v.SetDefault("blob.access_key", "")
	v.SetDefault("blob.secret_key", "")
	v.SetDefault("blob.endpoint", "")
	v.SetDefault("blob.use_accelerate", false)
	v.SetDefault("blob.download_expiry", blob.DefaultDownloadExpiry)

	v.SetDefault("auth.token_issuer", "")
	v.SetDefault("auth.upload_token_secret", "")

	v.SetDefault("email.enabled", false)
	v.SetDefault("email.sendgrid_api_key", "")
	v.SetDefault("email.from_email", "")
	v.SetDefault("email.from_name", "")

	v.SetDefault("transfer.max_file_size", tc.MaxFileSize)
	v.SetDefault("transfer.max_files", tc.MaxFiles)
	v.SetDefault("transfer.expiry", tc.Expiry)
	v.SetDefault("transfer.reap_interval", tc.ReapInterval)
	v.SetDefault("transfer.reap_concurrency", tc.ReapConcurrency)
	v.SetDefault("transfer.download_ttl", tc.DownloadTTL)
	v.SetDefault("transfer.download_cache", tc.DownloadCache)

	v.SetDefault("rate_limit.create", server.DefaultCreateRPS)
	v.SetDefault("data_dir", filepath.Join(home, ".syftdrop-server"))
	v.SetDefault("memory_blob", false)
	v.SetDefault("log_level", "info")
}
