package log

import (
	"bytes"
	"testing"
	"time"
)

func TestEventCBORRoundTrip(t *testing.T) {
	ts := time.Date(2026, 10, 15, 10, 15, 32, 123456789, time.UTC)
	original := Event{
		Timestamp:    ts,
		ConnectionID: "abc12345-def6-7890-abcd-ef1234567890",
		Direction:    DirectionOut,
		Layer:        LayerWire,
		Category:     CategoryMessage,
		Endpoint:     "urn:dev:os:sensor-01",
		RemoteAddr:   "192.0.2.10:5684",
	}

	data, err := EncodeEvent(original)
	if err != nil {
		t.Fatalf("EncodeEvent failed: %v", err)
	}
	decoded, err := DecodeEvent(data)
	if err != nil {
		t.Fatalf("DecodeEvent failed: %v", err)
	}

	if !decoded.Timestamp.Equal(original.Timestamp) {
		t.Errorf("Timestamp: got %v, want %v", decoded.Timestamp, original.Timestamp)
	}
	if decoded.ConnectionID != original.ConnectionID {
		t.Errorf("ConnectionID: got %q, want %q", decoded.ConnectionID, original.ConnectionID)
	}
	if decoded.Direction != original.Direction || decoded.Layer != original.Layer || decoded.Category != original.Category {
		t.Errorf("classification: got %v/%v/%v", decoded.Direction, decoded.Layer, decoded.Category)
	}
	if decoded.Endpoint != original.Endpoint {
		t.Errorf("Endpoint: got %q, want %q", decoded.Endpoint, original.Endpoint)
	}
	if decoded.RemoteAddr != original.RemoteAddr {
		t.Errorf("RemoteAddr: got %q, want %q", decoded.RemoteAddr, original.RemoteAddr)
	}
}

func TestMessageEventCBORRoundTrip(t *testing.T) {
	cf := uint16(11542)
	obs := uint32(300)
	elapsed := 1500 * time.Microsecond
	original := Event{
		Timestamp:    time.Now(),
		ConnectionID: "conn-1",
		Direction:    DirectionOut,
		Layer:        LayerWire,
		Category:     CategoryMessage,
		Message: &MessageEvent{
			Type:           MessageTypeNotification,
			MessageID:      0xBEEF,
			CoAPType:       1,
			Code:           69,
			Token:          []byte{0x01, 0x02},
			Path:           "/3303/0",
			ContentFormat:  &cf,
			Observe:        &obs,
			PayloadSize:    17,
			ProcessingTime: &elapsed,
		},
	}

	data, err := EncodeEvent(original)
	if err != nil {
		t.Fatalf("EncodeEvent failed: %v", err)
	}
	decoded, err := DecodeEvent(data)
	if err != nil {
		t.Fatalf("DecodeEvent failed: %v", err)
	}

	m := decoded.Message
	if m == nil {
		t.Fatal("Message is nil")
	}
	if m.Type != MessageTypeNotification || m.MessageID != 0xBEEF || m.Code != 69 {
		t.Errorf("header: got type=%v id=%#x code=%d", m.Type, m.MessageID, m.Code)
	}
	if !bytes.Equal(m.Token, []byte{0x01, 0x02}) {
		t.Errorf("Token: got %x", m.Token)
	}
	if m.Path != "/3303/0" {
		t.Errorf("Path: got %q", m.Path)
	}
	if m.ContentFormat == nil || *m.ContentFormat != cf {
		t.Errorf("ContentFormat: got %v, want %d", m.ContentFormat, cf)
	}
	if m.Observe == nil || *m.Observe != obs {
		t.Errorf("Observe: got %v, want %d", m.Observe, obs)
	}
	if m.ProcessingTime == nil || *m.ProcessingTime != elapsed {
		t.Errorf("ProcessingTime: got %v, want %v", m.ProcessingTime, elapsed)
	}
}

func TestPayloadEventsCBORRoundTrip(t *testing.T) {
	code := -3
	tests := []struct {
		name  string
		event Event
		check func(t *testing.T, e Event)
	}{
		{
			name: "frame",
			event: Event{
				Layer:    LayerTransport,
				Category: CategoryMessage,
				Frame:    &FrameEvent{Size: 600, Data: []byte{0x44, 0x02}, Truncated: true},
			},
			check: func(t *testing.T, e Event) {
				if e.Frame == nil || e.Frame.Size != 600 || !e.Frame.Truncated {
					t.Errorf("Frame: got %+v", e.Frame)
				}
			},
		},
		{
			name: "state change",
			event: Event{
				Layer:    LayerService,
				Category: CategoryState,
				StateChange: &StateChangeEvent{
					Entity:   StateEntityHandshake,
					OldState: "connecting",
					NewState: "connected",
				},
			},
			check: func(t *testing.T, e Event) {
				if e.StateChange == nil || e.StateChange.Entity != StateEntityHandshake || e.StateChange.NewState != "connected" {
					t.Errorf("StateChange: got %+v", e.StateChange)
				}
			},
		},
		{
			name: "error",
			event: Event{
				Layer:    LayerTransport,
				Category: CategoryError,
				Error:    &ErrorEventData{Layer: LayerTransport, Message: "handshake failed", Code: &code, Context: "connect"},
			},
			check: func(t *testing.T, e Event) {
				if e.Error == nil || e.Error.Message != "handshake failed" || e.Error.Code == nil || *e.Error.Code != code {
					t.Errorf("Error: got %+v", e.Error)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.event.Timestamp = time.Now()
			tt.event.ConnectionID = "conn-x"
			data, err := EncodeEvent(tt.event)
			if err != nil {
				t.Fatalf("EncodeEvent failed: %v", err)
			}
			decoded, err := DecodeEvent(data)
			if err != nil {
				t.Fatalf("DecodeEvent failed: %v", err)
			}
			tt.check(t, decoded)
		})
	}
}

func TestEncoderDecoderStream(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)
	for _, id := range []string{"a", "b"} {
		if err := enc.Encode(Event{Timestamp: time.Now(), ConnectionID: id}); err != nil {
			t.Fatalf("Encode failed: %v", err)
		}
	}

	dec := NewDecoder(&buf)
	var got []string
	for {
		var e Event
		if err := dec.Decode(&e); err != nil {
			break
		}
		got = append(got, e.ConnectionID)
	}
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("decoded ids = %v, want [a b]", got)
	}
}

func TestDecodeEventInvalid(t *testing.T) {
	if _, err := DecodeEvent([]byte{0xFF, 0x00}); err == nil {
		t.Error("DecodeEvent accepted garbage")
	}
}
