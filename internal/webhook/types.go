package webhook

import (
	"context"

	"github.com/mattjoyce/hubgate/internal/queue"
)

//go:generate mockgen -destination=mocks/mock_queuer.go -package=mocks github.com/mattjoyce/hubgate/internal/webhook JobQueuer

// JobQueuer defines the interface for enqueueing verified webhook deliveries.
type JobQueuer interface {
	Enqueue(ctx context.Context, req queue.EnqueueRequest) (queue.EnqueueResult, error)
}

// Config holds webhook server configuration.
type Config struct {
	Listen  string
	TLSCert string
	TLSKey  string

	// TrustForwardedProto accepts X-Forwarded-Proto: https as proof of a
	// secure connection.
	TrustForwardedProto bool
	// AllowInsecure treats every connection as secure.
	AllowInsecure bool

	Endpoints []EndpointConfig
}

// EndpointConfig defines a single webhook endpoint.
type EndpointConfig struct {
	// Path is the URL path for this webhook (e.g., "/webhooks/twitch")
	Path string

	// Receiver selects payload decoding: "twitch" or "generic"
	Receiver string

	// SecretRef names the shared secret; it is resolved on every request
	SecretRef string

	// SignatureHeader defaults to X-Hub-Signature
	SignatureHeader string

	// MaxBodySize is the maximum allowed request body size in bytes (default: 1MB)
	MaxBodySize int64

	// BufferThreshold is how much of the body is held in memory before
	// spilling to disk (default: 30KB)
	BufferThreshold int64
}

// TriggerResponse is the JSON response for accepted deliveries.
type TriggerResponse struct {
	JobID     string `json:"job_id"`
	Duplicate bool   `json:"duplicate"`
}

// ErrorResponse is the JSON response for rejected deliveries.
type ErrorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

// Default values
const (
	DefaultMaxBodySize = 1048576 // 1 MB
	DefaultReceiver    = ReceiverGeneric
)

// Receivers
const (
	ReceiverTwitch  = "twitch"
	ReceiverGeneric = "generic"
)
