package interaction

import (
	"github.com/plgd-dev/go-coap/v3/message/codes"
	"github.com/plgd-dev/go-coap/v3/message/pool"

	"github.com/mash-protocol/lwm2m-go/pkg/model"
	"github.com/mash-protocol/lwm2m-go/pkg/wire"
)

func (d *Dispatcher) readObject(req *pool.Message, o *model.Object) *pool.Message {
	if !o.Operation().Allows(model.OpGet) {
		return d.respond(req, codes.BadRequest)
	}
	cf := wire.NegotiateFormat(req, o.ContentType())
	if cf != model.ContentFormatTLV {
		return d.respond(req, codes.UnsupportedMediaType)
	}
	payload, err := model.SerializeObject(o)
	if err != nil || len(payload) == 0 {
		d.debug("object has no payload", "path", o.Path(), "error", err)
		return d.respond(req, codes.UnsupportedMediaType)
	}

	resp := d.respond(req, codes.Content)
	d.observe(req, resp, o, model.LevelObject)
	wire.SetPayload(resp, cf, payload)
	return resp
}

func (d *Dispatcher) readObjectInstance(req *pool.Message, oi *model.ObjectInstance) *pool.Message {
	if !oi.Operation().Allows(model.OpGet) {
		return d.respond(req, codes.BadRequest)
	}
	cf := wire.NegotiateFormat(req, oi.ContentType())
	if cf != model.ContentFormatTLV {
		return d.respond(req, codes.UnsupportedMediaType)
	}
	payload, err := model.Serialize(oi.Resources())
	if err != nil || len(payload) == 0 {
		d.debug("object instance has no payload", "path", oi.Path(), "error", err)
		return d.respond(req, codes.UnsupportedMediaType)
	}

	resp := d.respond(req, codes.Content)
	d.observe(req, resp, oi, model.LevelInstance)
	wire.SetPayload(resp, cf, payload)
	return resp
}

func (d *Dispatcher) readResource(req *pool.Message, r *model.Resource) *pool.Message {
	if !r.Operation().Allows(model.OpGet) {
		return d.respond(req, codes.BadRequest)
	}
	cf := wire.NegotiateFormat(req, r.ContentType())

	var payload []byte
	switch cf {
	case model.ContentFormatTLV:
		var err error
		if payload, err = model.SerializeResource(r); err != nil {
			d.debug("resource serialization failed", "path", r.Path(), "error", err)
			return d.respond(req, codes.UnsupportedMediaType)
		}
	case model.ContentFormatText, model.ContentFormatOpaque:
		if r.SupportsMultipleInstances() {
			return d.respond(req, codes.UnsupportedMediaType)
		}
		payload = r.Value()
	default:
		return d.respond(req, codes.UnsupportedMediaType)
	}

	resp := d.respond(req, codes.Content)
	d.observe(req, resp, r, model.LevelResource)
	wire.SetPayload(resp, cf, payload)
	return resp
}

func (d *Dispatcher) readResourceInstance(req *pool.Message, ri *model.ResourceInstance) *pool.Message {
	if !ri.Operation().Allows(model.OpGet) {
		return d.respond(req, codes.BadRequest)
	}
	cf := wire.NegotiateFormat(req, ri.ContentType())

	var payload []byte
	switch cf {
	case model.ContentFormatTLV:
		var err error
		if payload, err = model.SerializeResourceInstance(ri); err != nil {
			return d.respond(req, codes.UnsupportedMediaType)
		}
	case model.ContentFormatText, model.ContentFormatOpaque:
		payload = ri.Value()
	default:
		return d.respond(req, codes.UnsupportedMediaType)
	}

	resp := d.respond(req, codes.Content)
	d.observe(req, resp, ri, model.LevelResource)
	wire.SetPayload(resp, cf, payload)
	return resp
}
