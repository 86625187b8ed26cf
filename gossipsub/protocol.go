package gossipsub

import (
	"errors"
	"io"

	varint "github.com/multiformats/go-varint"
)

// This file is a concrete, optional wire encoding for Message: the
// core treats frames as already-decoded values (§6 says the on-wire
// encoding is external — "CBOR/protobuf/JSON are all acceptable"), so
// nothing in router.go/mesh.go/etc. calls into this file. It exists for
// a Transport implementation that needs actual bytes on a socket.
//
// The encoding is protobuf-wire-compatible (tag/varint/length-delimited
// framing) but hand-written rather than generated, the same approach
// this corpus's own pkg/lib/proto/noise/noise.pb.go takes for a
// hand-maintained payload with no protoc step — avoiding a dependency
// on generated code this module's retrieval pack does not actually
// contain. Field numbering below is this module's own schema, not a
// port of any single upstream .proto.
const (
	fieldKind       = 1
	fieldID         = 2
	fieldTimestamp  = 3
	fieldFrom       = 4
	fieldTo         = 5
	fieldTopic      = 6
	fieldContent    = 7
	fieldMessageIds = 8
)

const (
	wireVarint = 0
	wireBytes  = 2
)

var (
	// ErrTruncatedFrame indicates the buffer ended mid-field.
	ErrTruncatedFrame = errors.New("gossipsub: truncated wire frame")
	// ErrMalformedFrame indicates a tag or length could not be parsed.
	ErrMalformedFrame = errors.New("gossipsub: malformed wire frame")
)

func appendTag(buf []byte, field int, wireType int) []byte {
	tag := uint64(field<<3 | wireType)
	return append(buf, varint.ToUvarint(tag)...)
}

func appendVarintField(buf []byte, field int, v uint64) []byte {
	buf = appendTag(buf, field, wireVarint)
	return append(buf, varint.ToUvarint(v)...)
}

func appendBytesField(buf []byte, field int, data []byte) []byte {
	buf = appendTag(buf, field, wireBytes)
	buf = append(buf, varint.ToUvarint(uint64(len(data)))...)
	return append(buf, data...)
}

// EncodeMessage serializes msg into the wire format described above.
func EncodeMessage(msg *Message) []byte {
	buf := make([]byte, 0, 64+len(msg.Content))

	buf = appendVarintField(buf, fieldKind, uint64(msg.Kind))
	buf = appendBytesField(buf, fieldID, []byte(msg.Id))
	buf = appendVarintField(buf, fieldTimestamp, uint64(msg.Timestamp))

	if msg.From != nil {
		buf = appendBytesField(buf, fieldFrom, []byte(*msg.From))
	}
	if msg.To != nil {
		buf = appendBytesField(buf, fieldTo, []byte(*msg.To))
	}
	if msg.Topic != nil {
		buf = appendBytesField(buf, fieldTopic, []byte(*msg.Topic))
	}
	if msg.Content != nil {
		buf = appendBytesField(buf, fieldContent, msg.Content)
	}
	for _, id := range msg.MessageIds {
		buf = appendBytesField(buf, fieldMessageIds, []byte(id))
	}

	return buf
}

// DecodeMessage parses the format EncodeMessage produces.
func DecodeMessage(data []byte) (*Message, error) {
	msg := &Message{}
	i := 0

	for i < len(data) {
		tag, n, err := varint.FromUvarint(data[i:])
		if err != nil {
			return nil, ErrMalformedFrame
		}
		i += n

		field := int(tag >> 3)
		wireType := int(tag & 0x7)

		switch wireType {
		case wireVarint:
			v, n, err := varint.FromUvarint(data[i:])
			if err != nil {
				return nil, ErrMalformedFrame
			}
			i += n
			switch field {
			case fieldKind:
				msg.Kind = ControlKind(v)
			case fieldTimestamp:
				msg.Timestamp = int64(v)
			}

		case wireBytes:
			length, n, err := varint.FromUvarint(data[i:])
			if err != nil {
				return nil, ErrMalformedFrame
			}
			i += n
			if i+int(length) > len(data) {
				return nil, ErrTruncatedFrame
			}
			value := data[i : i+int(length)]
			i += int(length)

			switch field {
			case fieldID:
				msg.Id = MessageId(value)
			case fieldFrom:
				p := PeerId(value)
				msg.From = &p
			case fieldTo:
				p := PeerId(value)
				msg.To = &p
			case fieldTopic:
				t := Topic(value)
				msg.Topic = &t
			case fieldContent:
				cp := make([]byte, len(value))
				copy(cp, value)
				msg.Content = cp
			case fieldMessageIds:
				msg.MessageIds = append(msg.MessageIds, MessageId(value))
			}

		default:
			return nil, ErrMalformedFrame
		}
	}

	return msg, nil
}

// WriteMessage writes a varint-length-prefixed frame to w.
func WriteMessage(w io.Writer, msg *Message) error {
	data := EncodeMessage(msg)
	if _, err := w.Write(varint.ToUvarint(uint64(len(data)))); err != nil {
		return err
	}
	_, err := w.Write(data)
	return err
}

// ReadMessage reads one varint-length-prefixed frame from r.
func ReadMessage(r io.Reader) (*Message, error) {
	length, err := varint.ReadUvarint(byteReader{r})
	if err != nil {
		return nil, err
	}
	buf := make([]byte, length)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return DecodeMessage(buf)
}

// byteReader adapts an io.Reader to io.ByteReader for varint.ReadUvarint,
// which needs to read one byte at a time to find the varint's end.
type byteReader struct {
	r io.Reader
}

func (b byteReader) ReadByte() (byte, error) {
	var buf [1]byte
	_, err := io.ReadFull(b.r, buf[:])
	return buf[0], err
}
