// Package transport secures the datagram channel between the device and its
// LwM2M server.
//
// A SecurityAdapter wraps a connected UDP socket. The handshake is started
// with StartConnectingNonBlocking and driven with ContinueConnecting until it
// stops returning StatusWantRead:
//
//	a := transport.NewDTLSAdapter(transport.DTLSOptions{})
//	if st := a.Init(sec); st < 0 { ... }
//	st := a.StartConnectingNonBlocking(conn)
//	for st == transport.StatusWantRead {
//		time.Sleep(10 * time.Millisecond)
//		st = a.ContinueConnecting()
//	}
//
// Every call returns a non-negative value on success (a byte count for
// SendMessage and Read) or a negative status code. The adapter never retries;
// reconnect policy belongs to the caller.
//
// # Security Modes
//
//   - ModePSK: DTLS 1.2 with a pre-shared key (coaps, port 5684)
//   - ModeCertificate: DTLS 1.2 with an X.509 client certificate
//   - ModeNoSec: plain CoAP (coap, port 5683), served by PlainAdapter
//
// DerivePSK derives per-device keys from a fleet master secret with HKDF.
//
// # Keep-Alive
//
// KeepAlive sends CoAP pings (empty confirmable messages) and expects a reset
// with the same message id. It keeps NAT bindings open and detects a silent
// server.
package transport
