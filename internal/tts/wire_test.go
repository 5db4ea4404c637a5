package tts

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
)

func TestParseTextMessage(t *testing.T) {
	data := []byte("X-RequestId:abc\r\nPath:audio.metadata\r\n\r\n{\"Metadata\":[]}")
	msg, err := parseTextMessage(data)
	if err != nil {
		t.Fatalf("parseTextMessage() error = %v", err)
	}
	if msg.path() != "audio.metadata" {
		t.Fatalf("path = %q, want audio.metadata", msg.path())
	}
	if msg.headers["X-RequestId"] != "abc" {
		t.Fatalf("X-RequestId = %q", msg.headers["X-RequestId"])
	}
	if string(msg.body) != `{"Metadata":[]}` {
		t.Fatalf("body = %q", msg.body)
	}
}

func TestParseTextMessageValueWithColon(t *testing.T) {
	data := []byte("X-Timestamp:Mon Jan 02 2006 15:04:05\r\nPath:response\r\n\r\n")
	msg, err := parseTextMessage(data)
	if err != nil {
		t.Fatalf("parseTextMessage() error = %v", err)
	}
	if msg.headers["X-Timestamp"] != "Mon Jan 02 2006 15:04:05" {
		t.Fatalf("X-Timestamp = %q", msg.headers["X-Timestamp"])
	}
}

func TestParseTextMessageMalformed(t *testing.T) {
	if _, err := parseTextMessage([]byte("Path:turn.start")); !errors.Is(err, ErrUnexpectedResponse) {
		t.Fatalf("expected ErrUnexpectedResponse for missing terminator, got %v", err)
	}
	if _, err := parseTextMessage([]byte("not a header\r\n\r\nbody")); !errors.Is(err, ErrUnexpectedResponse) {
		t.Fatalf("expected ErrUnexpectedResponse for malformed header, got %v", err)
	}
}

func binaryFrame(headers string, body []byte) []byte {
	var buf bytes.Buffer
	var lenBytes [2]byte
	binary.BigEndian.PutUint16(lenBytes[:], uint16(len(headers)))
	buf.Write(lenBytes[:])
	buf.WriteString(headers)
	buf.Write(body)
	return buf.Bytes()
}

func TestParseBinaryMessage(t *testing.T) {
	data := binaryFrame("Content-Type:audio/mpeg\r\nPath:audio", []byte{0xCA, 0xFE})
	headers, body, err := parseBinaryMessage(data)
	if err != nil {
		t.Fatalf("parseBinaryMessage() error = %v", err)
	}
	if headers["Content-Type"] != "audio/mpeg" {
		t.Fatalf("Content-Type = %q", headers["Content-Type"])
	}
	if !bytes.Equal(body, []byte{0xCA, 0xFE}) {
		t.Fatalf("body = %v", body)
	}
}

func TestParseBinaryMessageTruncated(t *testing.T) {
	if _, _, err := parseBinaryMessage([]byte{0x00}); !errors.Is(err, ErrUnexpectedResponse) {
		t.Fatalf("expected ErrUnexpectedResponse for missing length, got %v", err)
	}
	// Declared header length exceeds the available bytes.
	if _, _, err := parseBinaryMessage([]byte{0xFF, 0xFF, 'P'}); !errors.Is(err, ErrUnexpectedResponse) {
		t.Fatalf("expected ErrUnexpectedResponse for truncated header, got %v", err)
	}
}

func TestIsAudioContentType(t *testing.T) {
	if !isAudioContentType("audio/mpeg") || !isAudioContentType("audio/webm; codec=opus") {
		t.Fatalf("audio content types rejected")
	}
	if isAudioContentType("application/json") || isAudioContentType("") {
		t.Fatalf("non-audio content type accepted")
	}
}

func TestParseMetadata(t *testing.T) {
	body := []byte(`{"Metadata":[{"Type":"WordBoundary","Data":{"Offset":1000000,"Duration":500000,"text":{"Text":"hello"}}}]}`)
	entries, err := parseMetadata(body)
	if err != nil {
		t.Fatalf("parseMetadata() error = %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	e := entries[0]
	if e.Type != "WordBoundary" || e.Data.Offset != 1000000 || e.Data.Duration != 500000 || e.Data.Text.Text != "hello" {
		t.Fatalf("unexpected entry: %+v", e)
	}
}

func TestParseMetadataBadJSON(t *testing.T) {
	if _, err := parseMetadata([]byte("{")); !errors.Is(err, ErrUnexpectedResponse) {
		t.Fatalf("expected ErrUnexpectedResponse, got %v", err)
	}
}
