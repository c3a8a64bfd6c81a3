// Package tlv implements the OMA LwM2M TLV binary encoding.
//
// TLV is the compact container format used to carry an object instance or a
// list of resources in CoAP payloads. Every entry starts with a type byte:
//
//	bit 7-6  identifier type
//	         00 object instance
//	         01 resource instance
//	         10 multiple resource
//	         11 resource with value
//	bit 5    identifier width (0 = 8 bit, 1 = 16 bit)
//	bit 4-3  length field width (00 = none, 01 = 8 bit, 10 = 16 bit, 11 = 24 bit)
//	bit 2-0  value length when the length field width is 00
//
// The identifier and length fields follow the type byte in network byte order,
// then the value itself. Object instances and multiple resources are
// containers: their value is a sequence of nested entries.
//
// The format is fixed by the protocol and must be reproduced bit-exactly for
// interoperability with existing servers. This package knows nothing about the
// resource tree; the model package maps resources onto Records.
package tlv
