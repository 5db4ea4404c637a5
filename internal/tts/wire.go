package tts

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"strings"
)

// Frame paths the engine understands. Anything else is a protocol drift and
// aborts the whole request.
const (
	pathTurnStart     = "turn.start"
	pathTurnEnd       = "turn.end"
	pathAudio         = "audio"
	pathAudioMetadata = "audio.metadata"
	pathResponse      = "response"
)

var headerBodySeparator = []byte("\r\n\r\n")

// textMessage is a parsed text frame: colon-separated pseudo-header lines,
// a blank line, then the body.
type textMessage struct {
	headers map[string]string
	body    []byte
}

func (m textMessage) path() string {
	return m.headers["Path"]
}

// parseTextMessage splits a text frame into headers and body. Pure function
// of its input so the receive loop stays unit-testable without a socket.
func parseTextMessage(data []byte) (textMessage, error) {
	sep := bytes.Index(data, headerBodySeparator)
	if sep < 0 {
		return textMessage{}, fmt.Errorf("%w: text message without header terminator", ErrUnexpectedResponse)
	}
	headers, err := parseHeaders(data[:sep])
	if err != nil {
		return textMessage{}, err
	}
	return textMessage{headers: headers, body: data[sep+len(headerBodySeparator):]}, nil
}

// parseBinaryMessage splits a binary frame: a 2-byte big-endian header
// length, that many header bytes, then the raw body.
func parseBinaryMessage(data []byte) (map[string]string, []byte, error) {
	if len(data) < 2 {
		return nil, nil, fmt.Errorf("%w: binary message is missing the header length", ErrUnexpectedResponse)
	}
	headerLength := int(binary.BigEndian.Uint16(data[:2]))
	if len(data) < headerLength+2 {
		return nil, nil, fmt.Errorf("%w: binary message is shorter than its header length", ErrUnexpectedResponse)
	}
	headers, err := parseHeaders(data[2 : headerLength+2])
	if err != nil {
		return nil, nil, err
	}
	return headers, data[headerLength+2:], nil
}

func parseHeaders(block []byte) (map[string]string, error) {
	headers := make(map[string]string)
	for _, line := range bytes.Split(block, []byte("\r\n")) {
		if len(line) == 0 {
			continue
		}
		key, value, found := bytes.Cut(line, []byte(":"))
		if !found {
			return nil, fmt.Errorf("%w: malformed header line %q", ErrUnexpectedResponse, line)
		}
		headers[string(key)] = string(value)
	}
	return headers, nil
}

// isAudioContentType accepts any audio/* type; the codec varies with the
// requested output format.
func isAudioContentType(ct string) bool {
	return strings.HasPrefix(ct, "audio/")
}

// metadataEntry mirrors one element of the audio.metadata body. The nested
// "text" key really is lowercase on the wire.
type metadataEntry struct {
	Type string `json:"Type"`
	Data struct {
		Offset   int64 `json:"Offset"`
		Duration int64 `json:"Duration"`
		Text     struct {
			Text string `json:"Text"`
		} `json:"text"`
	} `json:"Data"`
}

type metadataPayload struct {
	Metadata []metadataEntry `json:"Metadata"`
}

func parseMetadata(body []byte) ([]metadataEntry, error) {
	var payload metadataPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: bad audio.metadata body: %v", ErrUnexpectedResponse, err)
	}
	return payload.Metadata, nil
}
