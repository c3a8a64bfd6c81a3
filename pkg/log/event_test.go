package log

import (
	"bytes"
	"context"
	"testing"

	"github.com/plgd-dev/go-coap/v3/message"
	"github.com/plgd-dev/go-coap/v3/message/codes"
	"github.com/plgd-dev/go-coap/v3/message/pool"
)

func TestEnumStrings(t *testing.T) {
	tests := []struct {
		got  string
		want string
	}{
		{DirectionIn.String(), "IN"},
		{DirectionOut.String(), "OUT"},
		{Direction(9).String(), "UNKNOWN"},
		{LayerTransport.String(), "TRANSPORT"},
		{LayerWire.String(), "WIRE"},
		{LayerService.String(), "SERVICE"},
		{Layer(9).String(), "UNKNOWN"},
		{CategoryMessage.String(), "MESSAGE"},
		{CategoryState.String(), "STATE"},
		{CategoryError.String(), "ERROR"},
		{Category(9).String(), "UNKNOWN"},
		{MessageTypeRequest.String(), "REQUEST"},
		{MessageTypeResponse.String(), "RESPONSE"},
		{MessageTypeNotification.String(), "NOTIFICATION"},
		{MessageType(9).String(), "UNKNOWN"},
		{StateEntityConnection.String(), "CONNECTION"},
		{StateEntityHandshake.String(), "HANDSHAKE"},
		{StateEntityObservation.String(), "OBSERVATION"},
		{StateEntity(9).String(), "UNKNOWN"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("String() = %q, want %q", tt.got, tt.want)
		}
	}
}

func TestNewFrameEvent(t *testing.T) {
	small := NewFrameEvent([]byte{0x40, 0x01, 0x12, 0x34})
	if small.Size != 4 || small.Truncated || len(small.Data) != 4 {
		t.Errorf("small frame = %+v", small)
	}

	large := NewFrameEvent(make([]byte, MaxFrameData+100))
	if large.Size != MaxFrameData+100 {
		t.Errorf("Size = %d, want %d", large.Size, MaxFrameData+100)
	}
	if !large.Truncated {
		t.Error("large frame not marked truncated")
	}
	if len(large.Data) != MaxFrameData {
		t.Errorf("len(Data) = %d, want %d", len(large.Data), MaxFrameData)
	}
}

func TestNewFrameEventCopies(t *testing.T) {
	data := []byte{1, 2, 3}
	f := NewFrameEvent(data)
	data[0] = 9
	if f.Data[0] != 1 {
		t.Error("FrameEvent shares the caller's buffer")
	}
}

func TestNewMessageEvent(t *testing.T) {
	msg := pool.NewMessage(context.Background())
	msg.SetCode(codes.PUT)
	msg.SetType(message.Confirmable)
	msg.SetMessageID(0x1234)
	msg.SetToken(message.Token{0xAB, 0xCD})
	if err := msg.SetPath("/3303/0/5700"); err != nil {
		t.Fatalf("SetPath: %v", err)
	}
	msg.AddQuery("pmin=5")
	msg.AddQuery("pmax=60")
	msg.SetObserve(0)
	msg.SetContentFormat(message.MediaType(11542))
	msg.SetBody(bytes.NewReader([]byte{0xC1, 0x00, '1'}))

	m := NewMessageEvent(msg, MessageTypeRequest)

	if m.Type != MessageTypeRequest {
		t.Errorf("Type = %v, want REQUEST", m.Type)
	}
	if m.MessageID != 0x1234 {
		t.Errorf("MessageID = %#x, want 0x1234", m.MessageID)
	}
	if m.CoAPType != uint8(message.Confirmable) {
		t.Errorf("CoAPType = %d, want %d", m.CoAPType, message.Confirmable)
	}
	if m.Code != uint8(codes.PUT) {
		t.Errorf("Code = %d, want %d", m.Code, codes.PUT)
	}
	if !bytes.Equal(m.Token, []byte{0xAB, 0xCD}) {
		t.Errorf("Token = %x", m.Token)
	}
	if m.Path != "/3303/0/5700" {
		t.Errorf("Path = %q", m.Path)
	}
	if m.Query != "pmin=5&pmax=60" {
		t.Errorf("Query = %q", m.Query)
	}
	if m.ContentFormat == nil || *m.ContentFormat != 11542 {
		t.Errorf("ContentFormat = %v, want 11542", m.ContentFormat)
	}
	if m.Observe == nil || *m.Observe != 0 {
		t.Errorf("Observe = %v, want 0", m.Observe)
	}
	if m.PayloadSize != 3 {
		t.Errorf("PayloadSize = %d, want 3", m.PayloadSize)
	}
	if got := m.CodeString(); got != codes.PUT.String() {
		t.Errorf("CodeString() = %q, want %q", got, codes.PUT.String())
	}
}

func TestNewMessageEventWithoutOptions(t *testing.T) {
	msg := pool.NewMessage(context.Background())
	msg.SetCode(codes.Content)
	msg.SetType(message.Acknowledgement)

	m := NewMessageEvent(msg, MessageTypeResponse)

	if m.Path != "" || m.Query != "" {
		t.Errorf("Path/Query = %q/%q, want empty", m.Path, m.Query)
	}
	if m.ContentFormat != nil {
		t.Errorf("ContentFormat = %v, want nil", *m.ContentFormat)
	}
	if m.Observe != nil {
		t.Errorf("Observe = %v, want nil", *m.Observe)
	}
}
