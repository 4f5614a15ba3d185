// Command lemma-handler is the entrypoint of the lemma container image. It
// serves function URL invocations through the Lambda runtime API.
//
// Configure with environment variables (set by `lemma create`):
//
//	LEMMA_API_KEY  bearer key expected from callers
//	LEMMA_TIMEOUT  default and maximum command timeout in seconds
//	LEMMA_LOG_LEVEL log level (default "info")
package main

import (
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/rs/zerolog"

	"github.com/dadevel/lemma/agent"
)

func main() {
	level, err := zerolog.ParseLevel(os.Getenv("LEMMA_LOG_LEVEL"))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	// Lambda ingests JSON log lines from stderr
	logger := zerolog.New(os.Stderr).
		Level(level).
		With().Timestamp().Str("component", "handler").Logger()

	config, err := agent.LoadHandlerConfig(os.Getenv)
	if err != nil {
		logger.Error().Err(err).Msg("invalid configuration")
		os.Exit(2)
	}

	handler := agent.NewHandler(config, logger)
	lambda.Start(handler.Serve)
}
