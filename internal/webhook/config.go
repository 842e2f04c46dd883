package webhook

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mattjoyce/hubgate/internal/config"
)

// FromGlobalConfig converts config.WebhooksConfig to webhook.Config and
// parses size strings. Secrets stay as references.
func FromGlobalConfig(wc *config.WebhooksConfig) (Config, error) {
	if wc == nil {
		return Config{}, fmt.Errorf("webhooks config is nil")
	}

	cfg := Config{
		Listen:              wc.Listen,
		TLSCert:             wc.TLSCert,
		TLSKey:              wc.TLSKey,
		TrustForwardedProto: wc.TrustForwardedProto,
		AllowInsecure:       wc.AllowInsecure,
		Endpoints:           make([]EndpointConfig, len(wc.Endpoints)),
	}

	for i, ep := range wc.Endpoints {
		if ep.SecretRef == "" {
			return Config{}, fmt.Errorf("webhook endpoint %q: no secret_ref configured", ep.Path)
		}

		maxBodySize, err := parseSize(ep.MaxBodySize, DefaultMaxBodySize)
		if err != nil {
			return Config{}, fmt.Errorf("webhook endpoint %q: invalid max_body_size %q: %w", ep.Path, ep.MaxBodySize, err)
		}
		threshold, err := parseSize(ep.BufferThreshold, 0)
		if err != nil {
			return Config{}, fmt.Errorf("webhook endpoint %q: invalid buffer_threshold %q: %w", ep.Path, ep.BufferThreshold, err)
		}

		receiver := ep.Receiver
		if receiver == "" {
			receiver = DefaultReceiver
		}

		cfg.Endpoints[i] = EndpointConfig{
			Path:            ep.Path,
			Receiver:        receiver,
			SecretRef:       ep.SecretRef,
			SignatureHeader: ep.SignatureHeader,
			MaxBodySize:     maxBodySize,
			BufferThreshold: threshold,
		}
	}

	return cfg, nil
}

// parseSize parses size strings like "1MB", "30KB", "2048576" to bytes.
// Returns def if empty.
func parseSize(size string, def int64) (int64, error) {
	if size == "" {
		return def, nil
	}

	upper := strings.ToUpper(strings.TrimSpace(size))
	multiplier := int64(1)

	switch {
	case strings.HasSuffix(upper, "KB"):
		multiplier = 1024
		upper = strings.TrimSuffix(upper, "KB")
	case strings.HasSuffix(upper, "MB"):
		multiplier = 1024 * 1024
		upper = strings.TrimSuffix(upper, "MB")
	case strings.HasSuffix(upper, "GB"):
		multiplier = 1024 * 1024 * 1024
		upper = strings.TrimSuffix(upper, "GB")
	}

	value, err := strconv.ParseInt(strings.TrimSpace(upper), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size value: %w", err)
	}
	if value <= 0 {
		return 0, fmt.Errorf("size must be positive")
	}

	result := value * multiplier
	if result/multiplier != value {
		return 0, fmt.Errorf("size too large")
	}
	return result, nil
}
