// Package serve implements the serve sub-command.
package serve

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/msigvault/msig/api"
	"github.com/msigvault/msig/cmd/common"
	"github.com/msigvault/msig/config"
	"github.com/msigvault/msig/log"
	"github.com/msigvault/msig/storage"
	"github.com/msigvault/msig/storage/directory"
	"github.com/msigvault/msig/storage/migrations"
)

const (
	moduleName = "directory_service"
)

var (
	// Path to the configuration file.
	configFile string

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Serve the multisig directory API",
		Run:   runServer,
	}
)

func runServer(cmd *cobra.Command, args []string) {
	// Initialize config.
	cfg, err := config.InitConfig(configFile)
	if err != nil {
		log.NewDefaultLogger("init").Error("config init failed",
			"error", err,
		)
		os.Exit(1)
	}

	// Initialize common environment.
	if err = common.Init(cfg); err != nil {
		log.NewDefaultLogger("init").Error("init failed",
			"error", err,
		)
		os.Exit(1)
	}
	logger := common.RootLogger()

	if cfg.Server == nil {
		logger.Error("server config not provided")
		os.Exit(1)
	}

	service, err := Init(cfg.Server)
	if err != nil {
		os.Exit(1)
	}
	defer service.Shutdown()

	service.Start()
}

// Init wipes storage if asked to, applies migrations and creates the service.
func Init(cfg *config.ServerConfig) (*Service, error) {
	logger := common.RootLogger().WithModule(moduleName)

	logger.Info("initializing directory service", "endpoint", cfg.Endpoint)
	if cfg.Storage.WipeStorage {
		logger.Warn("wiping storage")
		if err := wipeStorage(cfg.Storage); err != nil {
			return nil, err
		}
		logger.Info("storage wiped")
	}

	if err := migrations.Up(cfg.Storage.Migrations, cfg.Storage.Endpoint, logger); err != nil {
		return nil, err
	}

	service, err := NewService(cfg)
	if err != nil {
		logger.Error("service failed to start",
			"error", err,
		)
		return nil, err
	}
	return service, nil
}

func wipeStorage(cfg *config.StorageConfig) error {
	logger := common.RootLogger().WithModule(moduleName)

	storage, err := common.NewClient(cfg, logger)
	if err != nil {
		return err
	}
	defer storage.Close()

	return storage.Wipe(context.Background())
}

// Service is the directory API service.
type Service struct {
	server *http.Server
	target storage.TargetStorage
	logger *log.Logger
}

// NewService creates a new directory API service.
func NewService(cfg *config.ServerConfig) (*Service, error) {
	logger := common.RootLogger().WithModule(moduleName)

	backing, err := common.NewClient(cfg.Storage, logger)
	if err != nil {
		return nil, err
	}
	handler := api.NewDirectoryAPI(directory.NewStore(backing, logger), logger).Router(cfg.CorsOrigins)

	return &Service{
		server: &http.Server{
			Addr:           cfg.Endpoint,
			Handler:        handler,
			ReadTimeout:    10 * time.Second,
			WriteTimeout:   10 * time.Second,
			MaxHeaderBytes: 1 << 20,
		},
		target: backing,
		logger: logger,
	}, nil
}

// Start starts the API service. It returns when the server stops.
func (s *Service) Start() {
	s.logger.Info("starting directory api service at " + s.server.Addr)
	s.logger.Error("shutting down",
		"error", s.server.ListenAndServe(),
	)
}

// Shutdown gracefully shuts down the service.
func (s *Service) Shutdown() {
	s.target.Close()
}

// Register registers the serve sub-command.
func Register(parentCmd *cobra.Command) {
	serveCmd.Flags().StringVar(&configFile, "config", "./config/server.yml", "path to the config.yml file")
	parentCmd.AddCommand(serveCmd)
}
