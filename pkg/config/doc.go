// Package config loads the device description.
//
// A description is a YAML file naming the endpoint, the server, the
// credentials and the object tree the device exposes. Environment
// variables with the LWM2M_ prefix override scalar settings after an
// optional .env file has been loaded. BuildDevice turns the object
// section into a model.Device and TransportSecurity assembles the transport
// credentials.
package config
