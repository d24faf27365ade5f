package configuration

import (
	"time"

	"github.com/openmosaic/fusion/internal/common/config"
)

type FusionConfig struct {
	// Port for the intake HTTP API and health endpoint
	HttpPort uint16
	// Port for prometheus metrics
	MetricsPort uint16

	Redis      config.RedisConfig
	Downstream DownstreamConfig

	// Upper bound on records per forwarding call
	MaxChunkSize int
	// Interval between forwarding passes
	ForwardInterval time.Duration
	// Concurrent chunk forwards per pass
	MaxInFlightChunks int
	// Attempts for a producer submission when the store is unavailable
	SubmitRetries uint
}

type DownstreamConfig struct {
	BaseUrl string
	// "json" posts one JSON body per chunk to /ingest/{partition};
	// "bulk" posts newline-delimited action/document pairs to /_bulk
	Encoding       string
	RequestTimeout time.Duration
}

const (
	EncodingJSON = "json"
	EncodingBulk = "bulk"
)
