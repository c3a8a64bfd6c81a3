package interaction

import (
	"strconv"

	"github.com/plgd-dev/go-coap/v3/message"
	"github.com/plgd-dev/go-coap/v3/message/codes"
	"github.com/plgd-dev/go-coap/v3/message/pool"

	"github.com/mash-protocol/lwm2m-go/pkg/model"
	"github.com/mash-protocol/lwm2m-go/pkg/tlv"
	"github.com/mash-protocol/lwm2m-go/pkg/wire"
)

func (d *Dispatcher) writeObjectInstance(req *pool.Message, oi *model.ObjectInstance) *pool.Message {
	if !oi.Operation().Allows(model.OpPut) {
		return d.respond(req, codes.BadRequest)
	}

	code := codes.Changed
	updated := false

	body, err := wire.ReadBody(req)
	if err != nil {
		return d.respond(req, codes.BadRequest)
	}
	if len(body) > 0 {
		cf, ok := wire.RequestContentFormat(req)
		if ok && cf != model.ContentFormatTLV {
			return d.respond(req, codes.UnsupportedMediaType)
		}
		changed, err := model.DeserializeResources(body, oi.Resources())
		if err != nil {
			d.debug("object instance write rejected", "path", oi.Path(), "error", err)
			code = wire.CodeForError(err)
		} else if len(changed) > 0 {
			updated = true
		}
	}

	if query := wire.RequestQuery(req); query != "" {
		if err := d.applyAttributes(oi, query, model.LevelInstance); err != nil {
			d.debug("attributes rejected", "path", oi.Path(), "query", query, "error", err)
			code = codes.BadRequest
		} else {
			updated = true
		}
	}

	if updated {
		d.valueUpdated(oi)
	}
	return d.respond(req, code)
}

func (d *Dispatcher) deleteObjectInstance(req *pool.Message, oi *model.ObjectInstance) *pool.Message {
	if !oi.Operation().Allows(model.OpDelete) {
		return d.respond(req, codes.BadRequest)
	}
	if !oi.Parent().RemoveObjectInstance(oi.InstanceID()) {
		return d.respond(req, codes.NotFound)
	}
	return d.respond(req, codes.Deleted)
}

// createObjectInstance creates an instance from an object-instance payload.
// Resources named in the payload are created as dynamic opaque resources.
// An empty payload creates an empty instance with the lowest free id.
func (d *Dispatcher) createObjectInstance(req *pool.Message, o *model.Object) *pool.Message {
	if !o.Operation().Allows(model.OpPost) {
		return d.respond(req, codes.BadRequest)
	}
	body, err := wire.ReadBody(req)
	if err != nil {
		return d.respond(req, codes.BadRequest)
	}

	var oi *model.ObjectInstance
	if len(body) == 0 {
		oi = o.CreateObjectInstance()
	} else {
		if !tlv.IsObjectInstance(body) {
			return d.respond(req, codes.BadRequest)
		}
		records, err := tlv.Decode(body)
		if err != nil || len(records) != 1 {
			return d.respond(req, codes.BadRequest)
		}
		if oi = o.CreateObjectInstanceWithID(records[0].ID); oi == nil {
			return d.respond(req, codes.BadRequest)
		}
		for _, rec := range records[0].Children {
			if rec.Kind != tlv.KindResourceWithValue {
				continue
			}
			r := oi.CreateDynamicResource(strconv.Itoa(int(rec.ID)), "", model.TypeOpaque, true, false)
			if r != nil {
				r.SetValue(rec.Value)
			}
		}
	}
	if oi == nil {
		return d.respond(req, codes.InternalServerError)
	}

	resp := d.respond(req, codes.Created)
	for _, seg := range oi.Path() {
		resp.AddOptionString(message.LocationPath, seg)
	}
	d.debug("object instance created", "path", oi.Path())
	return resp
}

func (d *Dispatcher) writeResource(req *pool.Message, r *model.Resource) *pool.Message {
	if !r.Operation().Allows(model.OpPut) {
		return d.respond(req, codes.BadRequest)
	}

	code := codes.Changed
	updated := false

	body, err := wire.ReadBody(req)
	if err != nil {
		return d.respond(req, codes.BadRequest)
	}
	if len(body) > 0 {
		cf, ok := wire.RequestContentFormat(req)
		if !ok {
			cf = r.ContentType()
		}
		switch cf {
		case model.ContentFormatTLV:
			changed, err := model.DeserializeResource(body, r)
			if err != nil {
				d.debug("resource write rejected", "path", r.Path(), "error", err)
				code = wire.CodeForError(err)
			} else if len(changed) > 0 {
				updated = true
			}
		case model.ContentFormatText, model.ContentFormatOpaque:
			if r.IsStatic() || r.SupportsMultipleInstances() {
				return d.respond(req, codes.BadRequest)
			}
			updated = r.SetValue(body)
		default:
			return d.respond(req, codes.UnsupportedMediaType)
		}
	}

	if query := wire.RequestQuery(req); query != "" {
		if err := d.applyAttributes(r, query, model.LevelResource); err != nil {
			d.debug("attributes rejected", "path", r.Path(), "query", query, "error", err)
			code = codes.BadRequest
		} else {
			updated = true
		}
	}

	if updated {
		d.valueUpdated(r)
	}
	return d.respond(req, code)
}

func (d *Dispatcher) executeResource(req *pool.Message, r *model.Resource) *pool.Message {
	if !r.Operation().Allows(model.OpPost) {
		return d.respond(req, codes.BadRequest)
	}
	args, err := wire.ReadBody(req)
	if err != nil {
		return d.respond(req, codes.BadRequest)
	}
	if err := r.Execute(args); err != nil {
		d.debug("execute failed", "path", r.Path(), "error", err)
		return d.respond(req, wire.CodeForError(err))
	}
	return d.respond(req, codes.Changed)
}

func (d *Dispatcher) writeResourceInstance(req *pool.Message, ri *model.ResourceInstance) *pool.Message {
	if !ri.Operation().Allows(model.OpPut) || ri.IsStatic() {
		return d.respond(req, codes.BadRequest)
	}
	body, err := wire.ReadBody(req)
	if err != nil {
		return d.respond(req, codes.BadRequest)
	}

	cf, ok := wire.RequestContentFormat(req)
	if !ok {
		cf = ri.ContentType()
	}
	value := body
	switch cf {
	case model.ContentFormatTLV:
		records, err := tlv.Decode(body)
		if err != nil || len(records) != 1 ||
			records[0].Kind != tlv.KindResourceInstance || records[0].ID != ri.InstanceID() {
			return d.respond(req, codes.BadRequest)
		}
		value = records[0].Value
	case model.ContentFormatText, model.ContentFormatOpaque:
	default:
		return d.respond(req, codes.UnsupportedMediaType)
	}

	if ri.SetValue(value) {
		d.valueUpdated(ri)
	}
	return d.respond(req, codes.Changed)
}
