// Package webhook implements the HTTP receiver for hub-signed notifications.
//
// Each configured endpoint is mounted behind a verification middleware that
// checks the X-Hub-Signature header (HMAC-SHA256 over the raw body) before the
// delivery is queued.
//
// # Security Model
//
// - Verification only runs over a secure connection (TLS, or a trusted
// X-Forwarded-Proto when running behind a proxy)
// - Digests compared with crypto/subtle (constant-time comparison)
// - Body size limits enforced before and during hashing
// - Bodies are buffered so hashing never consumes what the handler reads;
// large bodies spill to a temporary file
// - Secrets resolved by reference on every request and never logged
//
// # Configuration
//
//	webhooks:
//	  listen: "0.0.0.0:8443"
//	  tls_cert: /etc/hubgate/tls.crt
//	  tls_key: /etc/hubgate/tls.key
//	  endpoints:
//	    - path: /webhooks/twitch
//	      receiver: twitch
//	      secret_ref: twitch_secret
//	      max_body_size: 1MB
//	      buffer_threshold: 30KB
//
// # Error Responses
//
// - 400 Bad Request: malformed signature header or digest, invalid payload
// - 403 Forbidden: signature mismatch, or a plain-text connection
// - 404 Not Found: unknown webhook path
// - 413 Payload Too Large: body exceeds max_body_size
// - 500 Internal Server Error: secret missing or job enqueueing failed
//
// A request without the signature header is let through and queued with
// verification "skipped".
package webhook
