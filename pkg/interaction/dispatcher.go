package interaction

import (
	"errors"
	"log/slog"

	"github.com/plgd-dev/go-coap/v3/message/codes"
	"github.com/plgd-dev/go-coap/v3/message/pool"

	"github.com/mash-protocol/lwm2m-go/pkg/model"
	"github.com/mash-protocol/lwm2m-go/pkg/wire"
)

// Options configures a Dispatcher.
type Options struct {
	// Logger receives a debug line per request. Nil disables logging.
	Logger *slog.Logger

	// ObservationHandler is attached to nodes when an observation starts.
	// Nil keeps the tree-wide handler set on the device.
	ObservationHandler model.ObservationHandler
}

// Dispatcher serves requests against a device tree.
type Dispatcher struct {
	device  *model.Device
	builder wire.ResponseBuilder
	opts    Options
}

// NewDispatcher creates a dispatcher for device. A nil opts uses defaults.
func NewDispatcher(device *model.Device, builder wire.ResponseBuilder, opts *Options) *Dispatcher {
	d := &Dispatcher{
		device:  device,
		builder: builder,
	}
	if opts != nil {
		d.opts = *opts
	}
	return d
}

// HandleRequest processes one request and returns its response.
func (d *Dispatcher) HandleRequest(req *pool.Message) *pool.Message {
	path, err := wire.RequestPath(req)
	if err != nil {
		d.debug("invalid request path", "error", err)
		return d.respond(req, codes.BadRequest)
	}

	node, err := d.device.Lookup(path)
	if err != nil {
		d.debug("lookup failed", "path", path, "error", err)
		if errors.Is(err, model.ErrNotFound) {
			return d.respond(req, codes.NotFound)
		}
		return d.respond(req, codes.BadRequest)
	}

	var resp *pool.Message
	switch n := node.(type) {
	case *model.Object:
		resp = d.handleObject(req, n)
	case *model.ObjectInstance:
		resp = d.handleObjectInstance(req, n)
	case *model.Resource:
		resp = d.handleResource(req, n)
	case *model.ResourceInstance:
		resp = d.handleResourceInstance(req, n)
	default:
		resp = d.respond(req, codes.NotFound)
	}

	d.debug("request handled", "method", req.Code(), "path", path, "code", resp.Code())
	return resp
}

func (d *Dispatcher) handleObject(req *pool.Message, o *model.Object) *pool.Message {
	switch req.Code() {
	case codes.GET:
		return d.readObject(req, o)
	case codes.POST:
		return d.createObjectInstance(req, o)
	default:
		return d.respond(req, codes.MethodNotAllowed)
	}
}

func (d *Dispatcher) handleObjectInstance(req *pool.Message, oi *model.ObjectInstance) *pool.Message {
	switch req.Code() {
	case codes.GET:
		return d.readObjectInstance(req, oi)
	case codes.PUT:
		return d.writeObjectInstance(req, oi)
	case codes.POST:
		return d.respond(req, codes.NotImplemented)
	case codes.DELETE:
		return d.deleteObjectInstance(req, oi)
	default:
		return d.respond(req, codes.MethodNotAllowed)
	}
}

func (d *Dispatcher) handleResource(req *pool.Message, r *model.Resource) *pool.Message {
	switch req.Code() {
	case codes.GET:
		return d.readResource(req, r)
	case codes.PUT:
		return d.writeResource(req, r)
	case codes.POST:
		return d.executeResource(req, r)
	default:
		return d.respond(req, codes.MethodNotAllowed)
	}
}

func (d *Dispatcher) handleResourceInstance(req *pool.Message, ri *model.ResourceInstance) *pool.Message {
	switch req.Code() {
	case codes.GET:
		return d.readResourceInstance(req, ri)
	case codes.PUT:
		return d.writeResourceInstance(req, ri)
	default:
		return d.respond(req, codes.MethodNotAllowed)
	}
}

// respond builds the single response for req.
func (d *Dispatcher) respond(req *pool.Message, code codes.Code) *pool.Message {
	return d.builder.BuildResponse(req, code)
}

// observe applies the request's Observe option to node and stamps the
// observation number on resp when an observation starts.
func (d *Dispatcher) observe(req, resp *pool.Message, node model.Node, level model.ObservationLevel) {
	switch wire.RequestObserve(req) {
	case wire.ObserveStart:
		if !node.IsObservable() {
			return
		}
		node.SetUnderObservation(true, d.opts.ObservationHandler)
		node.AddObservationLevel(level)
		node.SetObservationToken(req.Token())
		resp.SetObserve(uint32(node.NextObservationNumber()))
		d.debug("observation started", "path", node.Path(), "level", level)
	case wire.ObserveStop:
		node.RemoveObservationLevel(level)
		node.SetUnderObservation(false, nil)
		d.debug("observation stopped", "path", node.Path(), "level", level)
	}
}

// applyAttributes hands a write-attribute query to node's report handler.
// A query that ends the observation (cancel) clears level and the token as
// an Observe stop does.
func (d *Dispatcher) applyAttributes(node model.Node, query string, level model.ObservationLevel) error {
	h := node.ReportHandler()
	if h == nil {
		return model.ErrOperationForbidden
	}
	if err := h.ApplyQuery(query); err != nil {
		return err
	}
	if node.IsUnderObservation() && !h.IsObserving() {
		node.RemoveObservationLevel(level)
		node.SetUnderObservation(false, nil)
		d.debug("observation cancelled", "path", node.Path(), "level", level)
	}
	return nil
}

func (d *Dispatcher) valueUpdated(node model.Node) {
	if h := node.ObservationHandler(); h != nil {
		h.ValueUpdated(node)
	}
}

func (d *Dispatcher) debug(msg string, args ...any) {
	if d.opts.Logger != nil {
		d.opts.Logger.Debug(msg, args...)
	}
}
