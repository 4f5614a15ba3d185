package lambdasim

import (
	"context"
	"errors"
	"net/http"
	"os"
	"strconv"
	"time"
)

// Config holds the simulator server configuration.
type Config struct {
	ListenAddr string
	LogLevel   string
	Options    Options
}

// ConfigFromEnv loads configuration from environment variables.
//
//	LEMMA_SIM_LISTEN_ADDR   listen address (default ":4566")
//	LEMMA_SIM_LOG_LEVEL     log level (default "info")
//	LEMMA_SIM_PENDING_POLLS status checks answered with Pending (default 1)
//	LEMMA_SIM_FAIL_REASON   settle new functions in Failed with this reason
//	LEMMA_SIM_PAGE_SIZE     functions per list page (default 50)
func ConfigFromEnv() Config {
	return Config{
		ListenAddr: envOrDefault("LEMMA_SIM_LISTEN_ADDR", ":4566"),
		LogLevel:   envOrDefault("LEMMA_SIM_LOG_LEVEL", "info"),
		Options: Options{
			PendingPolls: envInt("LEMMA_SIM_PENDING_POLLS", 1),
			FailReason:   os.Getenv("LEMMA_SIM_FAIL_REASON"),
			PageSize:     envInt("LEMMA_SIM_PAGE_SIZE", defaultPageSize),
		},
	}
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	n, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return n
}

// ListenAndServe serves the simulator on addr until ctx is cancelled or the
// listener fails.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:        addr,
		Handler:     s,
		ReadTimeout: 30 * time.Second,
		IdleTimeout: 120 * time.Second,
	}

	served := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", addr).Msg("starting lambda simulator")
		served <- srv.ListenAndServe()
	}()

	select {
	case err := <-served:
		return err
	case <-ctx.Done():
	}

	s.logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-served; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
