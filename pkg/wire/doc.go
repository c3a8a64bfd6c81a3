// Package wire adapts CoAP messages for the LwM2M client.
//
// Messages are go-coap pool.Message values. This package decodes inbound
// datagrams, encodes outbound ones, and builds the responses and observe
// notifications the device sends:
//   - Decode/Encode: UDP datagram <-> message
//   - ResponseBuilder: one response per request, echoing token and message id
//   - BuildNotification: observe notification carrying token, sequence number
//     and payload
//
// # Content Formats
//
// LwM2M payloads use registered CoAP content formats. TLV (11542) is the only
// structured format the resource tree produces; plain text and opaque are
// used for single resource values.
//
// # Observe
//
// The Observe option carries 0 to register and 1 to deregister in requests.
// In responses and notifications it carries the observation sequence number,
// which go-coap encodes in the fewest bytes: 1 byte up to 255, 2 bytes above.
package wire
