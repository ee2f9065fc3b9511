package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/vrischmann/envconfig"
)

func parseNonDfArg(arg string) (bool, bool) {
	switch arg {
	case "0":
		return false, true
	case "1":
		return true, true
	}
	return false, false
}

func main() {
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	var config Configuration
	if err := envconfig.Init(&config); err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	frr := NewFRRClient()
	network := NewSystemNetworkStrategy()

	switch len(os.Args) {
	case 1:
		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()
		daemon := NewDaemon(config, frr, network)
		if err := daemon.Run(ctx); err != nil {
			log.Fatal().Err(err).Msg("daemon failed")
		}
	case 3:
		nonDf, ok := parseNonDfArg(os.Args[2])
		if !ok {
			log.Fatal().Str("arg", os.Args[2]).Msg("desired role must be 0 (df) or 1 (non-df)")
		}
		handler := NewHandler(config, frr, network)
		if err := handler.Run(os.Args[1], nonDf); err != nil {
			log.Fatal().Err(err).Str("interface", os.Args[1]).Msg("df change handler failed")
		}
	default:
		log.Fatal().Msg("usage: vyos-evpn-sph [<interface> <non-df: 0|1>]")
	}
}
