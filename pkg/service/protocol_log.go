package service

import (
	"time"

	"github.com/plgd-dev/go-coap/v3/message/pool"

	"github.com/mash-protocol/lwm2m-go/pkg/log"
)

// logEvent stamps and forwards a protocol event. Safe from any goroutine.
func (s *DeviceService) logEvent(event log.Event) {
	if s.protocolLogger == nil {
		return
	}
	s.mu.RLock()
	connID := s.connID
	s.mu.RUnlock()

	event.Timestamp = time.Now()
	event.ConnectionID = connID
	event.Endpoint = s.device.Endpoint()
	event.RemoteAddr = s.config.Dialer.Address
	s.protocolLogger.Log(event)
}

func (s *DeviceService) logFrame(dir log.Direction, data []byte) {
	if s.protocolLogger == nil {
		return
	}
	s.logEvent(log.Event{
		Direction: dir,
		Layer:     log.LayerTransport,
		Category:  log.CategoryMessage,
		Frame:     log.NewFrameEvent(data),
	})
}

func (s *DeviceService) logMessage(dir log.Direction, msg *pool.Message, typ log.MessageType, processing *time.Duration) {
	if s.protocolLogger == nil {
		return
	}
	m := log.NewMessageEvent(msg, typ)
	m.ProcessingTime = processing
	s.logEvent(log.Event{
		Direction: dir,
		Layer:     log.LayerWire,
		Category:  log.CategoryMessage,
		Message:   m,
	})
}

func (s *DeviceService) logState(entity log.StateEntity, oldState, newState, reason string) {
	s.logEvent(log.Event{
		Layer:    log.LayerService,
		Category: log.CategoryState,
		StateChange: &log.StateChangeEvent{
			Entity:   entity,
			OldState: oldState,
			NewState: newState,
			Reason:   reason,
		},
	})
}

func (s *DeviceService) logError(layer log.Layer, err error, context string) {
	s.debugLog(context+" failed", "error", err)
	s.logEvent(log.Event{
		Layer:    layer,
		Category: log.CategoryError,
		Error: &log.ErrorEventData{
			Layer:   layer,
			Message: err.Error(),
			Context: context,
		},
	})
}
