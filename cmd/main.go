package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/imyashkale/mcpbridge/internal/config"
	"github.com/imyashkale/mcpbridge/internal/handlers"
	"github.com/imyashkale/mcpbridge/internal/logger"
	"github.com/imyashkale/mcpbridge/internal/oauth"
	"github.com/imyashkale/mcpbridge/internal/process"
	"github.com/imyashkale/mcpbridge/internal/registry"
	"github.com/imyashkale/mcpbridge/internal/router"
)

// tokenSweepInterval is how often expired bearer tokens are purged.
const tokenSweepInterval = time.Minute

func main() {

	// Load application configuration
	cfg := config.New()

	logger.Init(cfg.LogLevel)
	logger.WithFields(map[string]interface{}{
		"port":          cfg.Port,
		"auth_enabled":  cfg.AuthEnabled,
		"single_server": cfg.SingleServer,
	}).Info("Configuration loaded")

	// Initialize OAuth service and start the expired-token sweep
	authService := oauth.NewService(cfg.AuthEnabled, cfg.TrustedOrigins)
	sweeperStop := make(chan struct{})
	authService.StartSweeper(tokenSweepInterval, sweeperStop)
	logger.Info("OAuth service initialized")

	// Initialize server registry
	reg := registry.New()

	// Child-exit policy depends on the deployment variant: the single-server
	// wrapper takes the whole bridge down with its child, the multi-server
	// proxy just drops the dead entry and keeps serving.
	onExit := func(name string, code int, sig string) {
		if cfg.SingleServer {
			logger.WithFields(map[string]interface{}{
				"server": name,
				"code":   code,
				"signal": sig,
			}).Info("Wrapped server exited, shutting down bridge")
			os.Exit(code)
		}
		reg.Delete(name)
	}

	// Initialize handlers
	healthHandler := handlers.NewHealthHandler(reg, authService)
	mcpHandler := handlers.NewMCPHandler(reg, authService, onExit)
	sseHandler := handlers.NewSSEHandler(reg)
	oauthHandler := handlers.NewOAuthHandler(authService)
	logger.Info("Handlers initialized")

	// Setup router
	r := router.Setup(cfg.AllowedOrigin, authService, healthHandler, mcpHandler, sseHandler, oauthHandler)

	// Start preconfigured servers from the manifest, if any
	if cfg.ServersFile != "" {
		if err := startManifestServers(cfg, reg, authService, onExit); err != nil {
			logger.Fatalf("Failed to load server manifest: %v", err)
		}
	}

	// Setup graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan
		logger.Info("Shutting down bridge")

		close(sweeperStop)
		reg.StopAll()

		os.Exit(0)
	}()

	// Start server
	logger.Infof("Starting bridge on :%s", cfg.Port)
	if err := r.Run(":" + cfg.Port); err != nil {
		logger.Fatalf("Failed to start server: %v", err)
	}
}

// startManifestServers spawns every server declared in the YAML manifest.
// Individual spawn failures surface as error events and log lines, matching
// the behavior of a failed start request, so only manifest parse errors are
// returned.
func startManifestServers(cfg *config.Config, reg *registry.Registry, authService *oauth.Service, onExit process.ExitHandler) error {
	manifest, err := config.LoadServerManifest(cfg.ServersFile)
	if err != nil {
		return err
	}

	var eg errgroup.Group
	for _, entry := range manifest.Servers {
		entry := entry
		eg.Go(func() error {
			env := authService.InjectEnvironment(entry.Name, entry.Env)
			manager := process.New(entry.Name, entry.Command, entry.Args, env)
			manager.SetExitHandler(onExit)
			if addErr := reg.Add(manager); addErr != nil {
				logger.WithField("server", entry.Name).Warn("Skipping duplicate manifest entry")
				return nil
			}
			manager.Start()
			logger.WithFields(map[string]interface{}{
				"server":  entry.Name,
				"command": entry.Command,
			}).Info("Manifest server started")
			return nil
		})
	}
	return eg.Wait()
}
