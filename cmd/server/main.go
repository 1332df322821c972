package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/cbodonnell/worldgate/pkg/api"
	"github.com/cbodonnell/worldgate/pkg/config"
	"github.com/cbodonnell/worldgate/pkg/log"
	"github.com/cbodonnell/worldgate/pkg/network"
	"github.com/cbodonnell/worldgate/pkg/protocol"
	"github.com/cbodonnell/worldgate/pkg/repositories"
	"github.com/cbodonnell/worldgate/pkg/staticdata"
	"github.com/cbodonnell/worldgate/pkg/version"
	"github.com/cbodonnell/worldgate/pkg/workers"
	"github.com/cbodonnell/worldgate/pkg/world/global"
	"github.com/cbodonnell/worldgate/pkg/world/local"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Parse()
	if err != nil {
		panic(fmt.Sprintf("Failed to load configuration: %v", err))
	}

	gamePort := flag.Int("game-port", cfg.GamePort, "TCP port for game clients")
	apiPort := flag.Int("api-port", cfg.APIPort, "HTTP port for the account and admin API")
	logLevel := flag.String("log-level", cfg.LogLevel, "Log level")
	dataDir := flag.String("data-dir", cfg.DataDir, "Directory with the static data files (embedded defaults when empty)")
	flag.Parse()

	parsedLogLevel, err := log.ParseLogLevel(*logLevel)
	if err != nil {
		panic(fmt.Sprintf("Failed to parse log level: %v", err))
	}

	logger := log.New(os.Stdout, "", log.DefaultLoggerFlag, parsedLogLevel)
	log.SetDefaultLogger(logger)
	log.Info("Log level set to %s", parsedLogLevel)

	log.Info("Starting worldgate version %s", version.Get())

	var tables *staticdata.Tables
	if *dataDir != "" {
		tables, err = staticdata.Load(*dataDir)
	} else {
		tables, err = staticdata.Default()
	}
	if err != nil {
		panic(fmt.Sprintf("Failed to load static data: %v", err))
	}
	if _, ok := tables.Zone(cfg.DefaultZoneID); !ok {
		panic(fmt.Sprintf("Default zone %d is not in the zone table", cfg.DefaultZoneID))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repository, err := repositories.NewRepository(ctx, cfg.DatabaseURL)
	if err != nil {
		panic(fmt.Sprintf("Failed to open repository: %v", err))
	}
	defer repository.Close(context.Background())

	// The world keeps running after ctx is done so that closing
	// connections can still despawn and save their users.
	worldCtx, cancelWorld := context.WithCancel(context.Background())
	defer cancelWorld()

	inbox := global.NewInbox(global.DefaultInboxSize)

	persistencePool := workers.NewPersistenceWorkerPool(workers.NewPersistenceWorkerPoolOptions{
		Repository: repository,
		Global:     inbox,
		Workers:    cfg.PersistenceWorkers,
	})
	saveUserStateWorker := workers.NewSaveUserStateWorker(workers.NewSaveUserStateWorkerOptions{
		Repository: repository,
		Global:     inbox,
		Interval:   cfg.SaveInterval,
	})
	localWorldFactory := local.NewFactory(local.NewFactoryOptions{
		Global:   inbox,
		Loader:   local.StaticZoneLoader{Tables: tables},
		TickRate: cfg.TickRate,
	})
	globalWorld := global.NewGlobalWorld(global.NewGlobalWorldOptions{
		Tables:         tables,
		Factory:        localWorldFactory,
		Persistence:    persistencePool,
		Saver:          saveUserStateWorker,
		DefaultZoneID:  cfg.DefaultZoneID,
		Inbox:          inbox,
		TicketTimeout:  cfg.TicketTimeout,
		DespawnTimeout: cfg.DespawnTimeout,
		IdleGrace:      cfg.WorldIdleGrace,
	})

	wg := sync.WaitGroup{}
	for _, start := range []func(context.Context){
		persistencePool.Start,
		saveUserStateWorker.Start,
		globalWorld.Start,
	} {
		wg.Add(1)
		go func(start func(context.Context)) {
			defer wg.Done()
			start(worldCtx)
		}(start)
	}

	var tls *api.TLSConfig
	if cfg.TLSCert != "" {
		tls = &api.TLSConfig{CertFile: cfg.TLSCert, KeyFile: cfg.TLSKey}
	}
	apiServer := api.NewAPIServer(api.NewAPIServerOptions{
		Port:          *apiPort,
		TLS:           tls,
		AdminToken:    cfg.AdminToken,
		Repository:    repository,
		Status:        globalWorld,
		Tables:        tables,
		DefaultZoneID: cfg.DefaultZoneID,
	})
	go apiServer.Start()

	tcpServer := network.NewTCPServer(network.NewTCPServerOptions{
		Global: globalWorld,
		Tables: tables,
		Port:   strconv.Itoa(*gamePort),
		Options: network.ConnectionOptions{
			Handshake:    protocol.HandshakeOptions{Timeout: cfg.HandshakeTimeout},
			OutboxSize:   cfg.OutboxSize,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  cfg.IdleTimeout,
			AuthTimeout:  cfg.AuthTimeout,
			PongTimeout:  cfg.PongTimeout,
			RecordRate:   cfg.RecordRate,
			RecordBurst:  cfg.RecordBurst,
		},
	})
	if err := tcpServer.Start(ctx); err != nil {
		log.Error("Game server failed: %v", err)
	}

	log.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := apiServer.Stop(shutdownCtx); err != nil {
		log.Error("Failed to stop API server: %v", err)
	}
	waitForDespawns(shutdownCtx, globalWorld)

	cancelWorld()
	wg.Wait()
	log.Info("Shutdown complete")
}

// waitForDespawns polls the global world until every user was despawned, so
// their final locations reach the save worker.
func waitForDespawns(ctx context.Context, world *global.GlobalWorld) {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		status, err := world.Status(ctx)
		if err != nil {
			log.Warn("Gave up waiting for despawns: %v", err)
			return
		}
		if len(status.Users) == 0 {
			return
		}
		log.Debug("Waiting for %d users to despawn", len(status.Users))
		select {
		case <-ctx.Done():
			log.Warn("Gave up waiting for %d users to despawn", len(status.Users))
			return
		case <-ticker.C:
		}
	}
}
