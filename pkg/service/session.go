package service

import (
	"time"

	"github.com/plgd-dev/go-coap/v3/message"
	"github.com/plgd-dev/go-coap/v3/message/codes"

	"github.com/mash-protocol/lwm2m-go/pkg/log"
	"github.com/mash-protocol/lwm2m-go/pkg/model"
	"github.com/mash-protocol/lwm2m-go/pkg/wire"
)

// handleDatagram processes one inbound datagram on the event loop.
func (s *DeviceService) handleDatagram(gen uint64, data []byte) {
	s.mu.RLock()
	current := s.sessionGen
	s.mu.RUnlock()
	if gen != current {
		return
	}

	if s.keepAlive != nil {
		s.keepAlive.Activity()
	}
	s.logFrame(log.DirectionIn, data)

	msg, err := wire.Decode(s.context(), data)
	if err != nil {
		s.logError(log.LayerWire, err, "decode")
		return
	}
	mid := uint16(msg.MessageID())

	switch {
	case msg.Type() == message.Reset:
		if path, ok := s.pending[mid]; ok {
			delete(s.pending, mid)
			s.cancelObservation(path)
			return
		}
		if s.keepAlive != nil {
			s.keepAlive.PongReceived(mid)
		}

	case msg.Type() == message.Acknowledgement:
		delete(s.pending, mid)

	case msg.Code() == codes.Empty:
		// CoAP ping from the server.
		if msg.Type() == message.Confirmable {
			_ = s.send(wire.BuildReset(s.context(), msg.MessageID()))
		}

	case isRequest(msg.Code()):
		s.logMessage(log.DirectionIn, msg, log.MessageTypeRequest, nil)
		start := time.Now()
		resp := s.dispatcher.HandleRequest(msg)
		elapsed := time.Since(start)
		if err := s.send(resp); err != nil {
			s.debugLog("response not sent", "error", err)
			return
		}
		s.logMessage(log.DirectionOut, resp, log.MessageTypeResponse, &elapsed)

	default:
		s.debugLog("ignoring message", "type", msg.Type(), "code", msg.Code())
	}
}

func isRequest(c codes.Code) bool {
	return c >= codes.GET && c <= codes.DELETE
}

// cancelObservation stops the observation on path after the server reset a
// notification.
func (s *DeviceService) cancelObservation(path model.Path) {
	node, err := s.device.Lookup(path)
	if err != nil {
		return
	}
	node.RemoveObservationLevel(model.LevelResource | model.LevelInstance | model.LevelObject)
	node.SetUnderObservation(false, nil)
	s.logState(log.StateEntityObservation, "OBSERVED", "CANCELLED", path.String())
	s.emitEvent(Event{Type: EventObservationCancelled, Path: path})
}

// ObservationToBeSent implements model.ObservationHandler. It builds the
// notification for node and sends it on the current session.
func (s *DeviceService) ObservationToBeSent(node model.Node) {
	if !node.IsUnderObservation() {
		return
	}
	cf, payload, err := notificationPayload(node)
	if err != nil {
		s.debugLog("notification skipped", "path", node.Path(), "error", err)
		return
	}

	confirmable := s.config.ConfirmableNotifications
	msg := s.builder.BuildNotification(s.context(), node.ObservationToken(), node.NextObservationNumber(), cf, payload, confirmable)
	if err := s.send(msg); err != nil {
		s.debugLog("notification not sent", "path", node.Path(), "error", err)
		return
	}
	s.logMessage(log.DirectionOut, msg, log.MessageTypeNotification, nil)
	if confirmable {
		s.pending[uint16(msg.MessageID())] = node.Path()
	}
	s.emitEvent(Event{Type: EventNotificationSent, Path: node.Path()})
}

// ValueUpdated implements model.ObservationHandler. Server writes are
// persisted.
func (s *DeviceService) ValueUpdated(node model.Node) {
	s.saveState()
	s.emitEvent(Event{Type: EventValueChanged, Path: node.Path()})
}

// ResourceToBeDeleted implements model.ObservationHandler.
func (s *DeviceService) ResourceToBeDeleted(path model.Path) {
	for mid, p := range s.pending {
		if hasPrefix(p, path) {
			delete(s.pending, mid)
		}
	}
	s.emitEvent(Event{Type: EventResourceDeleted, Path: path})
}

// RemovePath implements model.Linker. Removed instances leave the uplink
// schedule.
func (s *DeviceService) RemovePath(path model.Path) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.config.UplinkInstances[:0]
	for _, p := range s.config.UplinkInstances {
		if !hasPrefix(p, path) {
			kept = append(kept, p)
		}
	}
	s.config.UplinkInstances = kept
}

func hasPrefix(p, prefix model.Path) bool {
	if len(prefix) > len(p) {
		return false
	}
	for i := range prefix {
		if p[i] != prefix[i] {
			return false
		}
	}
	return true
}

// notificationPayload serializes node in its own content format. Nodes
// above resource level always use TLV.
func notificationPayload(node model.Node) (model.ContentFormat, []byte, error) {
	switch n := node.(type) {
	case *model.Object:
		b, err := model.SerializeObject(n)
		return model.ContentFormatTLV, b, err
	case *model.ObjectInstance:
		b, err := model.Serialize(n.Resources())
		return model.ContentFormatTLV, b, err
	case *model.Resource:
		if n.ContentType() == model.ContentFormatTLV || n.SupportsMultipleInstances() {
			b, err := model.SerializeResource(n)
			return model.ContentFormatTLV, b, err
		}
		return n.ContentType(), n.Value(), nil
	case *model.ResourceInstance:
		if n.ContentType() == model.ContentFormatTLV {
			b, err := model.SerializeResourceInstance(n)
			return model.ContentFormatTLV, b, err
		}
		return n.ContentType(), n.Value(), nil
	default:
		return 0, nil, model.ErrNotFound
	}
}

var (
	_ model.ObservationHandler = (*DeviceService)(nil)
	_ model.Linker             = (*DeviceService)(nil)
)
