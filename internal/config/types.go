package config

import "time"

// Config represents the complete hubgate configuration.
type Config struct {
	Service  ServiceConfig     `yaml:"service"`
	State    StateConfig       `yaml:"state"`
	Secrets  map[string]string `yaml:"secrets,omitempty"`
	Webhooks *WebhooksConfig   `yaml:"webhooks,omitempty"`

	// SourcePath is the absolute path the config was loaded from.
	SourcePath string `yaml:"-"`
}

// ServiceConfig defines core service settings.
type ServiceConfig struct {
	Name      string        `yaml:"name"`
	LogLevel  string        `yaml:"log_level" validate:"oneof=debug info warn error"`
	LogFormat string        `yaml:"log_format" validate:"oneof=json text"`
	DedupeTTL time.Duration `yaml:"dedupe_ttl" validate:"gte=0"`
}

// StateConfig defines state storage settings.
type StateConfig struct {
	Path string `yaml:"path" validate:"required"`
}

// WebhooksConfig defines webhook listener settings.
type WebhooksConfig struct {
	Listen  string `yaml:"listen" validate:"required,hostname_port"`
	TLSCert string `yaml:"tls_cert,omitempty" validate:"required_with=TLSKey"`
	TLSKey  string `yaml:"tls_key,omitempty" validate:"required_with=TLSCert"`

	// TrustForwardedProto treats X-Forwarded-Proto: https as a secure
	// connection. Enable only behind a TLS-terminating proxy.
	TrustForwardedProto bool `yaml:"trust_forwarded_proto,omitempty"`

	// AllowInsecure disables the secure connection requirement (local development).
	AllowInsecure bool `yaml:"allow_insecure,omitempty"`

	Endpoints []WebhookEndpoint `yaml:"endpoints" validate:"min=1,dive"`
}

// WebhookEndpoint defines a single webhook endpoint.
type WebhookEndpoint struct {
	Path            string `yaml:"path" validate:"required,startswith=/"`
	Receiver        string `yaml:"receiver" validate:"omitempty,oneof=twitch generic"`
	SecretRef       string `yaml:"secret_ref" validate:"required"`
	SignatureHeader string `yaml:"signature_header,omitempty"`
	MaxBodySize     string `yaml:"max_body_size,omitempty"`
	BufferThreshold string `yaml:"buffer_threshold,omitempty"`
}

// ChecksumManifest is the on-disk .checksums format.
type ChecksumManifest struct {
	Version     int               `yaml:"version"`
	GeneratedAt string            `yaml:"generated_at"`
	Hashes      map[string]string `yaml:"hashes"`
}

// Secret resolves a named secret. It satisfies signature.SecretSource.
func (c *Config) Secret(key string) (string, bool) {
	if c == nil || c.Secrets == nil {
		return "", false
	}
	v, ok := c.Secrets[key]
	return v, ok
}

// Defaults returns a Config with sensible defaults.
func Defaults() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:      "hubgate",
			LogLevel:  "info",
			LogFormat: "json",
			DedupeTTL: 24 * time.Hour,
		},
		State: StateConfig{
			Path: "./data/hubgate.db",
		},
		Secrets: make(map[string]string),
	}
}
