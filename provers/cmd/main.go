package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/ardanlabs/conf/v3"
	"github.com/consensys/gnark/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/kysee/zk-bridge/provers"
	"github.com/kysee/zk-bridge/provers/types"
)

func main() {
	log := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if err := run(log); err != nil {
		log.Fatal().Err(err).Msg("relayer exited with error")
	}
}

func run(log zerolog.Logger) error {
	config, help, err := types.LoadConfig()
	if err != nil {
		if errors.Is(err, conf.ErrHelpWanted) {
			fmt.Println(help)
			return nil
		}
		return err
	}
	log.Info().Msgf("config:\n%v", config)

	// route gnark's compile and solver logs through the relayer logger
	logger.Set(log.Level(zerolog.WarnLevel))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	go func() {
		log.Info().Int("port", config.Metrics.Port).Msg("starting metrics server")
		http.Handle("/metrics", promhttp.Handler())
		if err := http.ListenAndServe(fmt.Sprintf(":%d", config.Metrics.Port), nil); err != nil {
			log.Error().Err(err).Msg("metrics server stopped")
		}
	}()

	return relayer.RelayerMain(ctx, config, prometheus.DefaultRegisterer, log)
}
