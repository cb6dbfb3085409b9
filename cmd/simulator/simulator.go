// Package simulator implements the simulator sub-command, a development
// contract host serving the multisig JSON-RPC protocol.
package simulator

import (
	"net/http"
	"os"
	"time"

	"github.com/raulk/clock"
	"github.com/spf13/cobra"

	"github.com/msigvault/msig/chain/simulator"
	"github.com/msigvault/msig/cmd/common"
	"github.com/msigvault/msig/config"
	"github.com/msigvault/msig/log"
)

const (
	moduleName = "simulator_service"
)

var (
	// Path to the configuration file.
	configFile string

	simulatorCmd = &cobra.Command{
		Use:   "simulator",
		Short: "Run an in-memory multisig contract host for development",
		Run:   runSimulator,
	}
)

func runSimulator(cmd *cobra.Command, args []string) {
	cfg, err := config.InitConfig(configFile)
	if err != nil {
		log.NewDefaultLogger("init").Error("config init failed",
			"error", err,
		)
		os.Exit(1)
	}
	if err = common.Init(cfg); err != nil {
		log.NewDefaultLogger("init").Error("init failed",
			"error", err,
		)
		os.Exit(1)
	}
	logger := common.RootLogger()

	if cfg.Simulator == nil {
		logger.Error("simulator config not provided")
		os.Exit(1)
	}

	service, err := NewService(cfg.Simulator)
	if err != nil {
		logger.Error("service failed to start", "error", err)
		os.Exit(1)
	}
	service.Start()
}

// Service serves one Simulator over HTTP.
type Service struct {
	server   *http.Server
	deployer string
	logger   *log.Logger
}

// NewService creates a simulator with one deployer contract.
func NewService(cfg *config.SimulatorConfig) (*Service, error) {
	logger := common.RootLogger().WithModule(moduleName)

	sim := simulator.New(clock.New(), logger)
	sim.SetConfirmAfter(cfg.ConfirmAfter)
	deployer := sim.AddDeployer()

	rpcServer, err := simulator.NewServer(sim)
	if err != nil {
		return nil, err
	}
	return &Service{
		server: &http.Server{
			Addr:              cfg.Endpoint,
			Handler:           rpcServer,
			ReadHeaderTimeout: 10 * time.Second,
		},
		deployer: deployer.String(),
		logger:   logger,
	}, nil
}

// Start serves until the listener fails.
func (s *Service) Start() {
	s.logger.Info("starting simulator at "+s.server.Addr, "deployer", s.deployer)
	s.logger.Error("shutting down",
		"error", s.server.ListenAndServe(),
	)
}

// Register registers the simulator sub-command.
func Register(parentCmd *cobra.Command) {
	simulatorCmd.Flags().StringVar(&configFile, "config", "./config/simulator.yml", "path to the config.yml file")
	parentCmd.AddCommand(simulatorCmd)
}
