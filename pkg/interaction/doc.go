// Package interaction serves CoAP requests against a device tree.
//
// The Dispatcher routes each request by URI path depth and method:
//
//   - /obj: GET reads every instance (with observe), POST creates an instance
//   - /obj/inst: GET reads, PUT writes values and attributes, DELETE removes
//   - /obj/inst/res: GET reads, PUT writes, POST executes
//   - /obj/inst/res/ri: GET and PUT on a single resource instance
//
// Every request gets exactly one response, built by the configured
// wire.ResponseBuilder:
//
//	d := interaction.NewDispatcher(device, wire.NewCoAPBuilder(), nil)
//	resp := d.HandleRequest(req)
//
// The Dispatcher is not safe for concurrent use; it shares the tree's
// single-threaded contract.
package interaction
