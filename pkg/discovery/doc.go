// Package discovery advertises the LwM2M client on the local link with
// mDNS/DNS-SD and finds other clients.
//
// # Service (_lwm2m._udp)
//
// A device announces one instance of _lwm2m._udp while it runs. The
// instance name is the client endpoint name, shortened to the DNS label
// limit. The port is the local CoAP port the client listens on.
//
// TXT records:
//   - ep: client endpoint name (required)
//   - lwm2m: enabler version, e.g. "1.0" (required)
//   - b: binding mode, "U" for UDP (required)
//   - st: registration state ("registered", "offline")
//   - sec: security mode ("psk", "certificate", "nosec")
//   - mfr, mdl: manufacturer and model (optional)
//
// The registration state is updated in place when the server session goes
// up or down, so a commissioning tool can watch the fleet without talking
// to the server.
package discovery
