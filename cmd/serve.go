package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	log "github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/eraycc/g4f-azure/pkg/config"
	"github.com/eraycc/g4f-azure/pkg/keypool"
	"github.com/eraycc/g4f-azure/pkg/logutil"
	"github.com/eraycc/g4f-azure/pkg/proxy"
	"github.com/eraycc/g4f-azure/pkg/store"
	"github.com/eraycc/g4f-azure/pkg/upstream"
	"github.com/eraycc/g4f-azure/pkg/version"
)

var (
	serveConfigPath string
	serveListenAddr string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the proxy server",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveConfigPath, "config", config.DefaultConfigPath(), "Path to the TOML config file")
	serveCmd.Flags().StringVar(&serveListenAddr, "listen-addr", "", "Listen address, overrides config")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(serveConfigPath)
	if err != nil {
		return err
	}
	if serveListenAddr != "" {
		cfg.ListenAddr = serveListenAddr
	}
	// --loglevel wins over the config file.
	if rootLogLevel == "" {
		if err := logutil.Configure(cfg.LogLevel); err != nil {
			return err
		}
	}

	var st store.Store = store.Nop{}
	if cfg.UseSQLite {
		sq, err := store.OpenSQLite(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer func() {
			if err := sq.Close(); err != nil {
				log.Warn("closing store", "error", err)
			}
		}()
		st = sq
		log.Info("sqlite store open", "path", cfg.DBPath)
	} else {
		log.Info("persistence disabled, credentials are memory-only")
	}

	client := upstream.NewClient(cfg.BaseURL)
	pool := keypool.NewManager(client, st, keypool.Options{
		MaxKeys:       cfg.MaxKeys,
		KeyExpiry:     cfg.KeyExpiry(),
		CatalogWindow: cfg.ModelCacheWindow(),
	})

	srv := proxy.NewServer(*cfg, pool, client)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("starting g4f-azure", "version", version.String(), "base_url", cfg.BaseURL)
	return srv.Run(ctx)
}
