// Package signature verifies X-Hub-Signature HMAC headers on inbound webhooks.
//
// A sender signs the raw request body with HMAC-SHA256 using a pre-shared
// secret and sends the digest as:
//
//	X-Hub-Signature: sha256=<hex digest>
//
// # Components
//
//   - DecodeHex turns the hex portion of the header into raw bytes.
//   - Digester streams the request body through HMAC-SHA256 in fixed chunks,
//     then seeks the body back to offset 0.
//   - Equal compares digests in constant time (crypto/subtle).
//   - ParseHeader validates the <algorithm>=<digest> structure.
//   - Verifier runs the per-request policy and returns a Result.
//
// # Body handling
//
// The body is hashed as a stream and must be re-readable afterwards. Bodies
// that cannot seek are wrapped in a SpooledBody before the first read; it
// keeps consumed bytes in memory up to a threshold and spills the rest to a
// temporary file.
//
// The package never logs and never puts the secret or digest bytes into a
// Result. Callers decide how each Outcome is reported.
package signature
