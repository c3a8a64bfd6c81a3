// Package uplink pushes object instance snapshots to a cloud endpoint.
//
// The uplink authenticates with an ES256 device token over a CoAP/DTLS
// connection and then POSTs SenML CBOR packs built from the local resource
// tree. It runs next to the LwM2M session and never touches the
// observation state of the nodes it reads.
package uplink
