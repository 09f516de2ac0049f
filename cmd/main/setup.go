package main

import (
	"context"
	"time"

	"chart-observer/src/controller"
	"chart-observer/src/data_source/snapshot"
	"chart-observer/src/data_source/stream"
	"chart-observer/src/grpc_control"
	"chart-observer/src/helpers"
	"chart-observer/src/logger"
	"chart-observer/src/models"
	"chart-observer/src/network"
	"chart-observer/src/series"
	"chart-observer/src/server"
)

const (
	symbolsRetries    = 3
	symbolsRetryDelay = time.Second
)

// components groups everything main wires together.
type components struct {
	Loader     *snapshot.Loader
	Subscriber *stream.Subscriber
	Chart      *server.ChartServer
	Health     *grpc_control.HealthReporter
	Controller *controller.Controller
}

// -----------------------------------------------------------------------------

// setupComponents builds the observer from the configuration
func setupComponents(config *models.MConfig, appLogger *logger.Logger) (*components, error) {
	networkManager, err := network.NewAsyncNetworkManager(config, appLogger.Named("NetworkManager"))
	if err != nil {
		return nil, err
	}
	loader := snapshot.NewLoader(config, networkManager, appLogger.Named("SnapshotLoader"))

	subscriber, err := stream.NewSubscriber(config, appLogger.Named("StreamSubscriber"))
	if err != nil {
		return nil, err
	}

	store := series.NewStore(config.Chart.MaxCandles, appLogger.Named("SeriesStore"))
	chart := server.NewChartServer(config, appLogger.Named("ChartServer"))
	health := grpc_control.NewHealthReporter(appLogger.Named("HealthReporter"))

	ctrl := controller.NewController(config, store, loader, subscriber, chart, appLogger.Named("Controller"))
	ctrl.Watchers = append(ctrl.Watchers, health)
	chart.SetCommandSink(ctrl)

	return &components{
		Loader:     loader,
		Subscriber: subscriber,
		Chart:      chart,
		Health:     health,
		Controller: ctrl,
	}, nil
}

// -----------------------------------------------------------------------------

// resolveSelection keeps the configured default when the backend lists it
func resolveSelection(ctx context.Context, loader *snapshot.Loader, preferred models.MSelection, appLogger *logger.Logger) models.MSelection {
	symbols, err := helpers.RetryWithBackoff(ctx, appLogger, "symbol listing", symbolsRetries, symbolsRetryDelay, loader.Symbols)
	if err != nil {
		appLogger.Warning("Could not list backend symbols, using %s: %v", preferred, err)
		return preferred
	}

	selection := snapshot.DefaultSelection(preferred, symbols)
	if selection != preferred {
		appLogger.Info("%s not offered by backend, starting with %s", preferred.Symbol, selection)
	}
	return selection
}
