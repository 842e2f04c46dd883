// Package doctor reviews a loaded hubgate configuration for deployment
// problems that structural validation cannot see.
package doctor

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/mattjoyce/hubgate/internal/config"
	"github.com/mattjoyce/hubgate/internal/webhook"
)

// MinSecretLength is the shortest shared secret accepted without a warning.
const MinSecretLength = 16

// Result holds the outcome of a validation run.
type Result struct {
	Valid    bool    `json:"valid"`
	Errors   []Issue `json:"errors,omitempty"`
	Warnings []Issue `json:"warnings,omitempty"`
}

// Issue describes a single validation error or warning.
type Issue struct {
	Category string `json:"category"`
	Message  string `json:"message"`
	Field    string `json:"field,omitempty"`
}

// Doctor validates a loaded configuration.
type Doctor struct {
	cfg *config.Config
}

// New creates a Doctor from a loaded config.
func New(cfg *config.Config) *Doctor {
	return &Doctor{cfg: cfg}
}

// Validate runs all checks and returns a result.
func (d *Doctor) Validate() *Result {
	r := &Result{Valid: true}

	d.validateWebhooks(r)
	d.validateTransport(r)
	d.warnWeakSecrets(r)
	d.warnUnusedSecrets(r)

	r.Valid = len(r.Errors) == 0
	return r
}

func (d *Doctor) addError(r *Result, category, field, msg string) {
	r.Errors = append(r.Errors, Issue{Category: category, Field: field, Message: msg})
}

func (d *Doctor) addWarning(r *Result, category, field, msg string) {
	r.Warnings = append(r.Warnings, Issue{Category: category, Field: field, Message: msg})
}

// validateWebhooks checks endpoint sizes and path conflicts.
func (d *Doctor) validateWebhooks(r *Result) {
	if d.cfg.Webhooks == nil || len(d.cfg.Webhooks.Endpoints) == 0 {
		d.addWarning(r, "webhooks", "webhooks", "no webhook endpoints configured; system start will refuse to run")
		return
	}

	wc, err := webhook.FromGlobalConfig(d.cfg.Webhooks)
	if err != nil {
		d.addError(r, "webhooks", "webhooks.endpoints", err.Error())
		return
	}

	seen := make(map[string]int)
	for i, ep := range wc.Endpoints {
		field := fmt.Sprintf("webhooks.endpoints[%d]", i)

		normalized := strings.TrimSuffix(ep.Path, "/")
		if prevIdx, exists := seen[normalized]; exists {
			d.addError(r, "webhooks", field+".path",
				fmt.Sprintf("webhook path %q conflicts with webhooks.endpoints[%d]", ep.Path, prevIdx))
		}
		seen[normalized] = i

		if ep.BufferThreshold > ep.MaxBodySize {
			d.addWarning(r, "webhooks", field+".buffer_threshold",
				fmt.Sprintf("buffer_threshold (%d) exceeds max_body_size (%d); bodies never spill to disk", ep.BufferThreshold, ep.MaxBodySize))
		}
	}
}

// validateTransport checks that signed requests can arrive over a
// connection the receiver will accept as secure.
func (d *Doctor) validateTransport(r *Result) {
	wc := d.cfg.Webhooks
	if wc == nil {
		return
	}

	tls := wc.TLSCert != "" && wc.TLSKey != ""
	if tls {
		for field, path := range map[string]string{"webhooks.tls_cert": wc.TLSCert, "webhooks.tls_key": wc.TLSKey} {
			if _, err := os.Stat(path); err != nil {
				d.addError(r, "transport", field, fmt.Sprintf("cannot read %s: %v", path, err))
			}
		}
	}

	switch {
	case wc.AllowInsecure:
		d.addWarning(r, "transport", "webhooks.allow_insecure",
			"secure connection requirement disabled; signatures are checked over plain HTTP")
	case !tls && !wc.TrustForwardedProto:
		d.addError(r, "transport", "webhooks",
			"no TLS and trust_forwarded_proto is off; every signed request will be rejected as insecure")
	case tls && wc.TrustForwardedProto:
		d.addWarning(r, "transport", "webhooks.trust_forwarded_proto",
			"trust_forwarded_proto has no effect while serving TLS directly")
	}
}

// warnWeakSecrets flags short shared secrets. Values are never reported.
func (d *Doctor) warnWeakSecrets(r *Result) {
	for name, value := range d.cfg.Secrets {
		if len(value) < MinSecretLength {
			d.addWarning(r, "secrets", "secrets."+name,
				fmt.Sprintf("secret is shorter than %d bytes", MinSecretLength))
		}
	}
}

// warnUnusedSecrets warns about secrets no endpoint references.
func (d *Doctor) warnUnusedSecrets(r *Result) {
	used := make(map[string]bool)
	if d.cfg.Webhooks != nil {
		for _, ep := range d.cfg.Webhooks.Endpoints {
			used[ep.SecretRef] = true
		}
	}
	for name := range d.cfg.Secrets {
		if !used[name] {
			d.addWarning(r, "unused", "secrets."+name,
				fmt.Sprintf("secret %q is not referenced by any endpoint", name))
		}
	}
}

// FormatHuman returns a human-readable validation report.
func FormatHuman(r *Result) string {
	var b strings.Builder

	if r.Valid && len(r.Warnings) == 0 {
		b.WriteString("Configuration valid.\n")
		return b.String()
	}

	if r.Valid && len(r.Warnings) > 0 {
		b.WriteString("Configuration valid")
		fmt.Fprintf(&b, " (%d warning(s))\n", len(r.Warnings))
	}

	if !r.Valid {
		fmt.Fprintf(&b, "Configuration invalid (%d error(s), %d warning(s))\n", len(r.Errors), len(r.Warnings))
	}

	for _, e := range r.Errors {
		if e.Field != "" {
			fmt.Fprintf(&b, "  ERROR [%s] %s: %s\n", e.Category, e.Field, e.Message)
		} else {
			fmt.Fprintf(&b, "  ERROR [%s] %s\n", e.Category, e.Message)
		}
	}
	for _, w := range r.Warnings {
		if w.Field != "" {
			fmt.Fprintf(&b, "  WARN  [%s] %s: %s\n", w.Category, w.Field, w.Message)
		} else {
			fmt.Fprintf(&b, "  WARN  [%s] %s\n", w.Category, w.Message)
		}
	}

	return b.String()
}

// FormatJSON returns the result as indented JSON.
func FormatJSON(r *Result) (string, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
