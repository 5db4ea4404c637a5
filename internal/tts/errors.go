package tts

import "errors"

var (
	// ErrUnknownResponse indicates a frame path or metadata type the engine
	// does not understand. The whole request is aborted because the protocol
	// has evidently drifted from what this client speaks.
	ErrUnknownResponse = errors.New("tts: unknown response from service")

	// ErrUnexpectedResponse indicates malformed framing, such as a truncated
	// binary header or a disallowed Content-Type.
	ErrUnexpectedResponse = errors.New("tts: unexpected response from service")

	// ErrWebSocket wraps transport-level failures reported by the connection.
	ErrWebSocket = errors.New("tts: websocket error")

	// ErrNoAudioReceived is raised after the last chunk when no turn of the
	// request produced any audio.
	ErrNoAudioReceived = errors.New("tts: no audio received, verify that your parameters are correct")

	// ErrStreamConsumed is returned when Stream is called on a session that
	// was already started. Sessions are single-use.
	ErrStreamConsumed = errors.New("tts: stream was already consumed")
)
