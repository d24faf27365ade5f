package fusion

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/openmosaic/fusion/internal/common/health"
	"github.com/openmosaic/fusion/internal/common/task"
	"github.com/openmosaic/fusion/internal/fusion/assembly"
	"github.com/openmosaic/fusion/internal/fusion/configuration"
	"github.com/openmosaic/fusion/internal/fusion/coordinator"
	"github.com/openmosaic/fusion/internal/fusion/forwarder"
	"github.com/openmosaic/fusion/internal/fusion/forwarding"
	"github.com/openmosaic/fusion/internal/fusion/repository"
	"github.com/openmosaic/fusion/internal/fusion/server"
)

// Serve wires the join engine together and runs it until ctx is cancelled:
// Redis-backed repositories, the join coordinator behind the intake API, the
// periodic forwarding pass, and the health and metrics endpoints.
func Serve(ctx context.Context, config *configuration.FusionConfig, healthChecks *health.MultiChecker) error {
	log.Info("Fusion aggregation service starting")
	defer log.Info("Fusion aggregation service shutting down")

	if err := validateConfig(config); err != nil {
		return err
	}

	startupCompleteCheck := health.NewStartupCompleteChecker()
	healthChecks.Add(startupCompleteCheck)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	db := redis.NewUniversalClient(config.Redis.AsUniversalOptions())
	defer func() {
		if err := db.Close(); err != nil {
			log.WithError(err).Error("failed to close Redis client")
		}
	}()
	healthChecks.Add(health.NewRedisChecker(db))

	joins := repository.NewRedisJoinRepository(db)
	partials := repository.NewRedisPartialRecordRepository(db)
	readiness := repository.NewRedisReadinessRepository(db)
	holds := repository.NewRedisHoldRepository(db)
	cleanup := repository.NewRedisCleanupRepository(db)

	joinCoordinator := coordinator.NewJoinCoordinator(joins, holds)
	aggregator := assembly.NewBatchAggregator(partials)

	fwd, err := newForwarder(config.Downstream)
	if err != nil {
		return err
	}
	pass := forwarding.NewPass(readiness, holds, aggregator, fwd, cleanup, config.MaxChunkSize, config.MaxInFlightChunks)

	taskManager := task.NewBackgroundTaskManager("fusion_")
	defer taskManager.StopAll(5 * time.Second)
	taskManager.Register(func() {
		if err := pass.Run(ctx); err != nil {
			log.WithError(err).Warn("forwarding pass failed, will retry on next interval")
		}
	}, config.ForwardInterval, "forward_pass")

	router := mux.NewRouter()
	submitServer := server.NewSubmitServer(joinCoordinator, holds, config.SubmitRetries)
	submitServer.RegisterRoutes(router)
	router.Handle("/health", health.NewHealthCheckHttpHandler(healthChecks)).Methods(http.MethodGet)

	g.Go(func() error {
		return runHttpServer(ctx, fmt.Sprintf(":%d", config.HttpPort), router, "intake")
	})

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	g.Go(func() error {
		return runHttpServer(ctx, fmt.Sprintf(":%d", config.MetricsPort), metricsMux, "metrics")
	})

	startupCompleteCheck.MarkComplete()
	return g.Wait()
}

func newForwarder(config configuration.DownstreamConfig) (forwarder.Forwarder, error) {
	switch config.Encoding {
	case configuration.EncodingJSON, "":
		return forwarder.NewJSONForwarder(config.BaseUrl, config.RequestTimeout), nil
	case configuration.EncodingBulk:
		return forwarder.NewBulkForwarder(config.BaseUrl, config.RequestTimeout), nil
	default:
		return nil, errors.Errorf("unknown downstream encoding %q", config.Encoding)
	}
}

func runHttpServer(ctx context.Context, addr string, handler http.Handler, name string) error {
	srv := &http.Server{Addr: addr, Handler: handler}
	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Warnf("%s server shutdown was not clean", name)
		}
	}()

	log.Infof("Serving %s on %s", name, addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return errors.Wrapf(err, "%s server failed", name)
	}
	<-shutdownDone
	return nil
}

func validateConfig(config *configuration.FusionConfig) error {
	if len(config.Redis.Addrs) == 0 {
		return errors.New("no Redis address configured")
	}
	if config.Downstream.BaseUrl == "" {
		return errors.New("no downstream base URL configured")
	}
	if config.MaxChunkSize <= 0 {
		return errors.New("maxChunkSize must be positive")
	}
	if config.ForwardInterval <= 0 {
		return errors.New("forwardInterval must be positive")
	}
	return nil
}
