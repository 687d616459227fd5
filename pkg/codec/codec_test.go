package codec

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/sixtyeight/zeebe/pkg/kbin"
)

type fakeMatcher struct {
	wantTemplate uint16
	compression  Compression
	decoded      interface{}
}

func (f fakeMatcher) MatchesResponse(h Header) bool { return h.TemplateID == f.wantTemplate }
func (f fakeMatcher) DecodeSuccess(body []byte, blockLength, schemaVersion uint16) (interface{}, error) {
	return f.decoded, nil
}
func (f fakeMatcher) Compression() Compression { return f.compression }

func TestEncodeDecodeHeaderRoundTrip(t *testing.T) {
	want := Header{BlockLength: 12, TemplateID: 7, SchemaID: 3, Version: 1}
	var w kbin.Writer
	EncodeHeader(&w, want)
	got, err := DecodeHeader(w.Dst)
	if err != nil {
		t.Fatalf("DecodeHeader: %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("header mismatch (-want +got):\n%s", diff)
	}
}

func TestTryDecodeResponseSuccess(t *testing.T) {
	frame, err := EncodeRequest(7, 3, 1, []byte("hello"), NoCompression)
	if err != nil {
		t.Fatalf("EncodeRequest: %v", err)
	}
	matcher := fakeMatcher{wantTemplate: 7, decoded: "decoded-object"}
	got, err := TryDecodeResponse(matcher, frame)
	if err != nil {
		t.Fatalf("TryDecodeResponse: %v", err)
	}
	if got.Err != nil {
		t.Fatalf("expected success, got error envelope: %+v", got.Err)
	}
	if got.Success != "decoded-object" {
		t.Fatalf("got %v, want decoded-object", got.Success)
	}
}

func TestTryDecodeResponseErrorEnvelope(t *testing.T) {
	env := ErrorEnvelope{Code: -2, Data: []byte("topic foo")}
	frame := EncodeErrorEnvelope(3, 1, env)
	matcher := fakeMatcher{wantTemplate: 7}
	got, err := TryDecodeResponse(matcher, frame)
	if err != nil {
		t.Fatalf("TryDecodeResponse: %v", err)
	}
	if got.Err == nil {
		t.Fatalf("expected error envelope, got success %v", got.Success)
	}
	if got.Err.Code != -2 || got.Err.Message() != "topic foo" {
		t.Fatalf("got %+v", got.Err)
	}
}

func TestCompressionRoundTrip(t *testing.T) {
	body := []byte("the quick brown fox jumps over the lazy dog, repeated for compressibility ")
	for i := 0; i < 4; i++ {
		body = append(body, body...)
	}
	for _, c := range []Compression{NoCompression, Snappy, LZ4, Zstd} {
		compressed, err := Compress(c, body)
		if err != nil {
			t.Fatalf("%s: Compress: %v", c, err)
		}
		out, err := Decompress(c, compressed)
		if err != nil {
			t.Fatalf("%s: Decompress: %v", c, err)
		}
		if diff := cmp.Diff(body, out); diff != "" {
			t.Fatalf("%s: round-trip mismatch (-want +got):\n%s", c, diff)
		}
	}
}
