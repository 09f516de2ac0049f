package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chart-observer/src/backendsim"
	"chart-observer/src/config"
	"chart-observer/src/logger"
)

func main() {
	configPath := flag.String("config", "../../config/default.yaml", "path to config file")
	flag.Parse()

	conf, err := config.NewConfig(*configPath)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	logFile := logger.SetupOutput(conf.LogFile)
	defer logFile.Close()
	appLogger := logger.NewLogger(conf.MConfig, "BackendSim")

	sim := backendsim.NewServer(conf.MConfig, appLogger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sim.Run(ctx)

	go func() {
		if err := sim.Start(); err != nil {
			appLogger.Critical("Backend simulator failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down...")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	sim.Stop(shutdownCtx)
}
