// Package codec encodes outbound request frames and decodes inbound
// response frames, distinguishing a typed success payload from an error
// envelope. The wire carries no success/error discriminator tag; the
// active handler's expected response template is the only discriminator,
// which is why ResponseMatcher is threaded through TryDecodeResponse
// rather than decoding being handler-agnostic.
package codec

import (
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/sixtyeight/zeebe/pkg/kbin"
	"github.com/sixtyeight/zeebe/pkg/kerr"
)

// HeaderSize is the fixed width, in bytes, of every frame's header.
const HeaderSize = 8

// ErrorTemplateID is the reserved template id that marks a frame as an
// error envelope rather than a handler's success body. It can never be a
// real handler's expected success template.
const ErrorTemplateID uint16 = 0xFFFF

// ErrFrameTooShort is returned when a frame is smaller than HeaderSize.
var ErrFrameTooShort = errors.New("codec: frame shorter than header size")

// Header is the fixed-size prefix of every request/response frame.
type Header struct {
	BlockLength   uint16
	TemplateID    uint16
	SchemaID      uint16
	Version       uint16
}

// DecodeHeader reads the fixed-size header at offset 0 of data.
func DecodeHeader(data []byte) (Header, error) {
	if len(data) < HeaderSize {
		return Header{}, ErrFrameTooShort
	}
	r := kbin.Reader{Src: data[:HeaderSize]}
	h := Header{
		BlockLength: r.Uint16(),
		TemplateID:  r.Uint16(),
		SchemaID:    r.Uint16(),
		Version:     r.Uint16(),
	}
	return h, r.Complete()
}

// EncodeHeader appends h to w in wire order.
func EncodeHeader(w *kbin.Writer, h Header) {
	w.Uint16(h.BlockLength)
	w.Uint16(h.TemplateID)
	w.Uint16(h.SchemaID)
	w.Uint16(h.Version)
}

// ErrorEnvelope is the body layout used whenever a frame's template id does
// not match the active handler's expected success template.
type ErrorEnvelope struct {
	Code Code
	Data []byte
}

// Code is re-exported from pkg/kerr so callers of this package do not need
// a second import for the same concept.
type Code = kerr.Code

// Message decodes Data as UTF-8, falling back to a fabricated message if
// the bytes are not valid text.
func (e ErrorEnvelope) Message() string {
	if utf8.Valid(e.Data) {
		return string(e.Data)
	}
	return fmt.Sprintf("<%d bytes of non-utf8 error data>", len(e.Data))
}

// ResponseMatcher is the subset of the Handler capability set that the
// codec needs: whether an inbound header is this handler's expected
// success response, how to decode that success body, and which
// compression (if any) the handler expects for its bodies.
type ResponseMatcher interface {
	MatchesResponse(h Header) bool
	DecodeSuccess(body []byte, blockLength, schemaVersion uint16) (interface{}, error)
	Compression() Compression
}

// Decoded is the result of TryDecodeResponse: exactly one of Success or Err
// is set.
type Decoded struct {
	Success interface{}
	Err     *ErrorEnvelope
}

// TryDecodeResponse asks handler whether the frame's header matches its
// expected success template. On a match the success body is decoded with
// the handler's own DecodeSuccess; on a mismatch the body is decoded as an
// ErrorEnvelope. Either path applies the handler's declared compression to
// the body first.
func TryDecodeResponse(handler ResponseMatcher, frame []byte) (Decoded, error) {
	header, err := DecodeHeader(frame)
	if err != nil {
		return Decoded{}, err
	}
	body := frame[HeaderSize:]

	body, err = Decompress(handler.Compression(), body)
	if err != nil {
		return Decoded{}, fmt.Errorf("codec: decompressing body: %w", err)
	}

	if handler.MatchesResponse(header) {
		obj, err := handler.DecodeSuccess(body, header.BlockLength, header.Version)
		if err != nil {
			return Decoded{}, err
		}
		return Decoded{Success: obj}, nil
	}

	r := kbin.Reader{Src: body}
	code := Code(r.Int16())
	dataLen := r.Uint16()
	data := r.Span(int(dataLen))
	if err := r.Complete(); err != nil {
		return Decoded{}, fmt.Errorf("codec: decoding error envelope: %w", err)
	}
	// Copy out of the frame buffer: the caller may reuse/release it once
	// TryDecodeResponse returns.
	dataCopy := append([]byte(nil), data...)
	return Decoded{Err: &ErrorEnvelope{Code: code, Data: dataCopy}}, nil
}

// EncodeRequest frames body behind a header with the given template/schema
// ids, applying compression first.
func EncodeRequest(templateID, schemaID, version uint16, body []byte, compression Compression) ([]byte, error) {
	compressed, err := Compress(compression, body)
	if err != nil {
		return nil, fmt.Errorf("codec: compressing body: %w", err)
	}
	w := &kbin.Writer{Dst: make([]byte, 0, HeaderSize+len(compressed))}
	EncodeHeader(w, Header{
		BlockLength: uint16(len(compressed)),
		TemplateID:  templateID,
		SchemaID:    schemaID,
		Version:     version,
	})
	w.Span(compressed)
	return w.Dst, nil
}

// EncodeErrorEnvelope is provided for tests and fakes that need to
// synthesize a broker error response.
func EncodeErrorEnvelope(schemaID, version uint16, env ErrorEnvelope) []byte {
	var bw kbin.Writer
	bw.Int16(int16(env.Code))
	bw.Uint16(uint16(len(env.Data)))
	bw.Span(env.Data)

	out := &kbin.Writer{Dst: make([]byte, 0, HeaderSize+len(bw.Dst))}
	EncodeHeader(out, Header{
		BlockLength: uint16(len(bw.Dst)),
		TemplateID:  ErrorTemplateID,
		SchemaID:    schemaID,
		Version:     version,
	})
	out.Span(bw.Dst)
	return out.Dst
}
