// Package connection owns the retry policy around the secure session to an
// LwM2M server.
//
// The security adapter in package transport never retries on its own. This
// package supplies the caller side:
//   - Dialer opens a UDP socket, initializes the adapter for the configured
//     mode and polls the handshake until it completes or fails
//   - Backoff computes exponential retry delays with jitter
//   - Manager tracks the session state and retries in the background after
//     the service reports a loss
//
// # Retry Strategy
//
//  1. Initial delay: 10 seconds
//  2. Exponential increase: 20s, 40s, 80s, ...
//  3. Maximum delay: 15 minutes
//  4. Reset to the initial delay on a completed handshake
//
// # Jitter
//
// Devices of one fleet often lose power together. Each delay is spread by
//
//	actual_delay = base_delay + random(0, base_delay * 0.25)
package connection
