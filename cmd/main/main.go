package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"chart-observer/src/config"
	"chart-observer/src/controller"
	"chart-observer/src/logger"
)

// -----------------------------------------------------------------------------

func main() {

	// Parse command line flags
	configPath := flag.String("config", "../../config/default.yaml", "path to config file")
	flag.Parse()

	// Load config from YAML file
	conf, err := config.NewConfig(*configPath)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	// Setup logger
	logFile := logger.SetupOutput(conf.LogFile)
	defer logFile.Close()
	appLogger := logger.NewLogger(conf.MConfig, conf.Name)

	// Setup components
	components, err := setupComponents(conf.MConfig, appLogger)
	if err != nil {
		appLogger.Critical("Failed to set up components: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start servers
	servers := startServers(components, conf.MConfig, appLogger)

	// Run the controller loop
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := components.Controller.Run(ctx); err != nil {
			appLogger.Error("Controller stopped: %v", err)
		}
	}()

	// Initial selection
	selection := resolveSelection(ctx, components.Loader, conf.DefaultSelection(), appLogger)
	if err := components.Controller.Select(selection); err != nil && !errors.Is(err, controller.ErrDisposed) {
		appLogger.Error("Initial selection %s failed: %v", selection, err)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down...")
	components.Controller.Dispose()
	cancel()
	wg.Wait()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	servers.Stop(shutdownCtx)

	appLogger.Info("Shutdown complete.")
}
