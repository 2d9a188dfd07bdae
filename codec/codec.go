// Package codec implements the self-describing binary wire format used to
// serialise settings overlays and whole transport messages (spec.md §6),
// grounded on yarpc's own encoding/x/gob package: encoding/gob is treated
// as a first-class, ecosystem-idiomatic RPC encoding there rather than a
// hand-rolled fallback, so the same choice is made here for MUSCLE3's
// settings overlay and message envelope.
package codec

import (
	"bytes"
	"encoding/gob"

	apitransport "github.com/muscle3/muscle3-go/api/transport"
	"github.com/muscle3/muscle3-go/ref"
	"github.com/muscle3/muscle3-go/settings"
)

func init() {
	// Registers settings.Map so it can also travel inside an
	// interface-typed value. The encoders in this file use concrete types
	// only (settings.Value is a plain struct), so they do not depend on
	// this registration.
	gob.Register(settings.Map{})
}

// EncodeSettings serialises a settings overlay for the wire. A nil or
// empty overlay encodes to a nil byte slice, so an unset overlay never
// forces a round trip through gob.
func EncodeSettings(m settings.Map) ([]byte, error) {
	if len(m) == 0 {
		return nil, nil
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(m); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeSettings reverses EncodeSettings. An empty payload decodes to a
// nil Map, not an error.
func DecodeSettings(data []byte) (settings.Map, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var m settings.Map
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&m); err != nil {
		return nil, err
	}
	return m, nil
}

// wireMessage mirrors apitransport.Message field for field but substitutes
// plain strings for ref.Reference, since Reference's unexported segment
// slice isn't gob-visible across package boundaries.
type wireMessage struct {
	Sender                 string
	Receiver               string
	Timestamp              float64
	HasNext                bool
	NextTimestamp          float64
	Overlay                []byte
	Payload                []byte
	PayloadIsConfiguration bool
}

// EncodeMessage serialises a full transport message, the framing used by
// transport/tcp to put a Message on a net.Conn.
func EncodeMessage(m *apitransport.Message) ([]byte, error) {
	w := wireMessage{
		Sender:                 m.Sender.String(),
		Receiver:               m.Receiver.String(),
		Timestamp:              m.Timestamp,
		Overlay:                m.Overlay,
		Payload:                m.Payload,
		PayloadIsConfiguration: m.PayloadIsConfiguration,
	}
	if m.NextTimestamp != nil {
		w.HasNext = true
		w.NextTimestamp = *m.NextTimestamp
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(w); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeMessage reverses EncodeMessage.
func DecodeMessage(data []byte) (*apitransport.Message, error) {
	var w wireMessage
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&w); err != nil {
		return nil, err
	}
	// An empty Reference encodes to "", which ref.Parse rejects; decode it
	// back to the empty Reference instead.
	var sender, receiver ref.Reference
	var err error
	if w.Sender != "" {
		if sender, err = ref.Parse(w.Sender); err != nil {
			return nil, err
		}
	}
	if w.Receiver != "" {
		if receiver, err = ref.Parse(w.Receiver); err != nil {
			return nil, err
		}
	}
	m := &apitransport.Message{
		Sender:                 sender,
		Receiver:               receiver,
		Timestamp:              w.Timestamp,
		Overlay:                w.Overlay,
		Payload:                w.Payload,
		PayloadIsConfiguration: w.PayloadIsConfiguration,
	}
	if w.HasNext {
		next := w.NextTimestamp
		m.NextTimestamp = &next
	}
	return m, nil
}
