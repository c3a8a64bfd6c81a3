// Package service runs an LwM2M device against one server.
//
// DeviceService ties the lower-level packages together:
//   - the device tree (pkg/model) and its request dispatcher (pkg/interaction)
//   - the secure session, dialed through pkg/connection with the retry
//     policy owned by connection.Manager
//   - CoAP ping keep-alive (transport.KeepAlive)
//   - observe notifications built by wire.CoAPBuilder
//   - optional state persistence, mDNS announcement and telemetry uplink
//
// All tree access happens on a single event loop goroutine. Inbound
// datagrams, report timer expiries and local value updates are posted onto
// that loop, so the tree itself needs no locking.
//
// Example usage:
//
//	cfg := service.DefaultDeviceConfig()
//	cfg.Dialer = &connection.Dialer{Address: "lwm2m.example.com:5684", Security: sec}
//
//	svc, err := service.NewDeviceService(buildTree, cfg)
//	svc.Start(ctx)
//	defer svc.Stop()
//
//	svc.SetResourceValue(ctx, model.Path{"3303", "0", "5700"}, []byte("21.5"))
package service
