// Command lemma-simulator serves a local fake of the Lambda and CloudWatch
// Logs APIs. Function URLs run commands on the host, so only use it for
// development and tests.
//
// Defaults come from LEMMA_SIM_* environment variables, flags override them.
//
//	lemma-simulator -addr :4566 &
//	lemma --endpoint-url http://localhost:4566 --region us-east-1 run ... -- id
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/dadevel/lemma/simulators/lambdasim"
)

func main() {
	cfg := lambdasim.ConfigFromEnv()
	addr := flag.String("addr", cfg.ListenAddr, "listen address")
	logLevel := flag.String("log-level", cfg.LogLevel, "log level (debug, info, warn, error)")
	pendingPolls := flag.Int("pending-polls", cfg.Options.PendingPolls, "status checks answered with Pending after create")
	failReason := flag.String("fail-reason", cfg.Options.FailReason, "settle new functions in Failed with this reason")
	pageSize := flag.Int("page-size", cfg.Options.PageSize, "functions per list page")
	flag.Parse()

	level, err := zerolog.ParseLevel(*logLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).
		With().Timestamp().Str("component", "lemma-simulator").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sim := lambdasim.New(lambdasim.Options{
		PendingPolls: *pendingPolls,
		FailReason:   *failReason,
		PageSize:     *pageSize,
	}, logger)
	if err := sim.ListenAndServe(ctx, *addr); err != nil {
		logger.Fatal().Err(err).Msg("server failed")
	}
}
