package tts

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/edgewire/readaloud/internal/logging"
	"github.com/edgewire/readaloud/internal/text"
)

// Boundary selects which timing metadata the service reports.
type Boundary string

const (
	BoundaryWord     Boundary = "word"
	BoundarySentence Boundary = "sentence"
)

const (
	defaultOutputFormat = "audio-24khz-48kbitrate-mono-mp3"

	// Average padding the encoder appends to the end of each turn's audio.
	// Empirically derived, not a protocol value, so Config can override it.
	defaultTrailingPadding = 875 * time.Millisecond

	defaultReceiveTimeout = 10 * time.Second
	defaultConnectTimeout = 10 * time.Second
)

// Config carries the per-request synthesis parameters. The zero value of
// every field falls back to a sensible default in New.
type Config struct {
	Voice  string // short ("en-US-AriaNeural") or long descriptive form
	Rate   string // sign + digits + "%"
	Volume string // sign + digits + "%"
	Pitch  string // sign + digits + "Hz"

	Boundary     Boundary // word (default) or sentence timing metadata
	OutputFormat string   // audio codec token sent in speech.config

	Proxy          string // optional HTTP proxy URL
	ReceiveTimeout time.Duration
	ConnectTimeout time.Duration

	// Endpoint overrides the service WebSocket URL, mainly for tests.
	Endpoint string

	// TrailingPadding overrides the per-turn offset padding.
	TrailingPadding time.Duration

	// TokenProvider overrides the anti-throttling token source, sharing one
	// clock-skew state across sessions.
	TokenProvider *TokenProvider
}

// Communicate drives one text-to-speech request: it chunks the input, runs
// one protocol turn per chunk over a fresh connection, and emits audio and
// timing events in order. A Communicate is single-use; its event stream can
// be consumed exactly once.
type Communicate struct {
	voice  string
	rate   string
	volume string
	pitch  string

	escaped []byte // sanitized + entity-escaped input text

	boundary     Boundary
	outputFormat string
	proxy        string

	receiveTimeout time.Duration
	connectTimeout time.Duration

	endpoint string
	padding  time.Duration
	drm      *TokenProvider

	// Turn state. offsetCompensation shifts each turn's reported offsets so
	// timing stays continuous across chunk boundaries; lastDurationOffset is
	// the end time of the most recent timing event.
	offsetCompensation time.Duration
	lastDurationOffset time.Duration

	mu      sync.Mutex
	started bool
	err     error
}

// New validates the configuration and prepares a synthesis session for the
// given text. All validation errors surface here, before any network I/O.
func New(input string, cfg Config) (*Communicate, error) {
	if cfg.Voice == "" {
		cfg.Voice = DefaultVoice
	}
	if cfg.Rate == "" {
		cfg.Rate = "+0%"
	}
	if cfg.Volume == "" {
		cfg.Volume = "+0%"
	}
	if cfg.Pitch == "" {
		cfg.Pitch = "+0Hz"
	}
	if cfg.Boundary == "" {
		cfg.Boundary = BoundaryWord
	}
	if cfg.Boundary != BoundaryWord && cfg.Boundary != BoundarySentence {
		return nil, fmt.Errorf("invalid boundary %q", cfg.Boundary)
	}
	if cfg.OutputFormat == "" {
		cfg.OutputFormat = defaultOutputFormat
	}
	if cfg.ReceiveTimeout == 0 {
		cfg.ReceiveTimeout = defaultReceiveTimeout
	}
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = defaultConnectTimeout
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultWSSURL
	}
	if cfg.TrailingPadding == 0 {
		cfg.TrailingPadding = defaultTrailingPadding
	}
	if cfg.TokenProvider == nil {
		cfg.TokenProvider = NewTokenProvider()
	}

	voice, err := normalizeVoice(cfg.Voice)
	if err != nil {
		return nil, err
	}
	if err := validateRate(cfg.Rate); err != nil {
		return nil, err
	}
	if err := validateVolume(cfg.Volume); err != nil {
		return nil, err
	}
	if err := validatePitch(cfg.Pitch); err != nil {
		return nil, err
	}
	if cfg.Proxy != "" {
		if _, err := url.Parse(cfg.Proxy); err != nil {
			return nil, fmt.Errorf("invalid proxy %q: %w", cfg.Proxy, err)
		}
	}

	return &Communicate{
		voice:          voice,
		rate:           cfg.Rate,
		volume:         cfg.Volume,
		pitch:          cfg.Pitch,
		escaped:        []byte(text.Escape(text.Sanitize(input))),
		boundary:       cfg.Boundary,
		outputFormat:   cfg.OutputFormat,
		proxy:          cfg.Proxy,
		receiveTimeout: cfg.ReceiveTimeout,
		connectTimeout: cfg.ConnectTimeout,
		endpoint:       cfg.Endpoint,
		padding:        cfg.TrailingPadding,
		drm:            cfg.TokenProvider,
	}, nil
}

// Stream starts the synthesis and returns the event channel. The channel is
// closed when the request finishes; the caller must then check Err for the
// terminal error. Cancelling ctx closes any live connection and ends the
// stream. Calling Stream twice returns ErrStreamConsumed.
func (c *Communicate) Stream(ctx context.Context) (<-chan ChunkEvent, error) {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return nil, ErrStreamConsumed
	}
	c.started = true
	c.mu.Unlock()

	events := make(chan ChunkEvent)
	go func() {
		defer close(events)
		if err := c.run(ctx, events); err != nil {
			c.mu.Lock()
			c.err = err
			c.mu.Unlock()
		}
	}()
	return events, nil
}

// Err reports the terminal error of the stream. Only valid once the channel
// returned by Stream has been closed.
func (c *Communicate) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *Communicate) run(ctx context.Context, events chan<- ChunkEvent) error {
	budget := calcMaxMesgSize(c.voice, c.rate, c.volume, c.pitch)
	splitter, err := text.NewSplitter(c.escaped, budget)
	if err != nil {
		return err
	}

	anyAudio := false
	for splitter.Next() {
		// Turns run strictly in order: the next turn's offsets depend on
		// the compensation finalized by this one.
		if err := c.runTurn(ctx, splitter.Bytes(), events, &anyAudio); err != nil {
			return err
		}
	}
	if err := splitter.Err(); err != nil {
		return err
	}
	if !anyAudio {
		return ErrNoAudioReceived
	}
	return nil
}

// runTurn processes one chunk over one freshly opened connection.
func (c *Communicate) runTurn(ctx context.Context, chunk []byte, events chan<- ChunkEvent, anyAudio *bool) error {
	connID := connectID()
	log := logging.WithConnection(connID)

	conn, err := c.dial(ctx, connID)
	if err != nil {
		return err
	}
	defer conn.Close()

	// Closing the connection is the only way to interrupt a blocked read,
	// so a watcher ties the connection lifetime to ctx.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-stop:
		}
	}()

	if err := c.sendSpeechConfig(conn); err != nil {
		return fmt.Errorf("%w: send speech.config: %v", ErrWebSocket, err)
	}
	if err := c.sendSSML(conn, chunk); err != nil {
		return fmt.Errorf("%w: send ssml: %v", ErrWebSocket, err)
	}
	log.Debugf("turn started, chunk of %d bytes", len(chunk))

	turnAudio := false
	for {
		if c.receiveTimeout > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(c.receiveTimeout))
		}
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("%w: %v", ErrWebSocket, err)
		}

		switch msgType {
		case websocket.TextMessage:
			msg, err := parseTextMessage(data)
			if err != nil {
				return err
			}
			switch msg.path() {
			case pathAudioMetadata:
				if err := c.handleMetadata(ctx, msg.body, events); err != nil {
					return err
				}
			case pathTurnEnd:
				c.offsetCompensation = c.lastDurationOffset + c.padding
				*anyAudio = *anyAudio || turnAudio
				log.Debugf("turn ended, audio=%v, compensation=%s", turnAudio, c.offsetCompensation)
				return nil
			case pathResponse, pathTurnStart:
				// Expected control frames, nothing to do.
			default:
				return fmt.Errorf("%w: path %q", ErrUnknownResponse, msg.path())
			}

		case websocket.BinaryMessage:
			headers, body, err := parseBinaryMessage(data)
			if err != nil {
				return err
			}
			if headers["Path"] != pathAudio {
				return fmt.Errorf("%w: binary message path %q", ErrUnexpectedResponse, headers["Path"])
			}
			contentType, ok := headers["Content-Type"]
			switch {
			case !ok && len(body) == 0:
				// End-of-audio marker, skip.
			case !ok:
				return fmt.Errorf("%w: binary message without Content-Type carries data", ErrUnexpectedResponse)
			case !isAudioContentType(contentType):
				return fmt.Errorf("%w: Content-Type %q", ErrUnexpectedResponse, contentType)
			default:
				turnAudio = true
				if err := emit(ctx, events, AudioChunk{Data: body}); err != nil {
					return err
				}
			}
		}
	}
}

func (c *Communicate) handleMetadata(ctx context.Context, body []byte, events chan<- ChunkEvent) error {
	entries, err := parseMetadata(body)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		switch entry.Type {
		case "WordBoundary", "SentenceBoundary":
			offset := ticksToDuration(entry.Data.Offset) + c.offsetCompensation
			duration := ticksToDuration(entry.Data.Duration)

			var ev ChunkEvent
			if entry.Type == "WordBoundary" {
				ev = WordBoundary{Offset: offset, Duration: duration, Text: entry.Data.Text.Text}
			} else {
				ev = SentenceBoundary{Offset: offset, Duration: duration, Text: entry.Data.Text.Text}
			}
			if err := emit(ctx, events, ev); err != nil {
				return err
			}
			c.lastDurationOffset = offset + duration
		case "SessionEnd":
			// End-of-session marker, skip.
		default:
			return fmt.Errorf("%w: metadata type %q", ErrUnknownResponse, entry.Type)
		}
	}
	return nil
}

// dial opens the connection for one turn. An HTTP 403 during the handshake
// means the anti-throttling token was rejected: the clock skew is corrected
// from the server's Date header, the token refreshed, and the dial retried
// exactly once. No events have been emitted at this point, so the retry can
// never duplicate output.
func (c *Communicate) dial(ctx context.Context, connID string) (*websocket.Conn, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: c.connectTimeout,
		Proxy:            http.ProxyFromEnvironment,
	}
	if c.proxy != "" {
		proxyURL, err := url.Parse(c.proxy)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy %q: %w", c.proxy, err)
		}
		dialer.Proxy = http.ProxyURL(proxyURL)
	}

	conn, resp, err := dialer.DialContext(ctx, c.requestURL(connID), c.handshakeHeader())
	if err == nil {
		return conn, nil
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		return nil, fmt.Errorf("%w: %v", ErrWebSocket, err)
	}

	logging.Debugf("handshake rejected with 403, refreshing token and retrying once")
	if skewErr := c.drm.HandleRestrictedResponse(resp); skewErr != nil {
		logging.Debugf("clock skew adjustment skipped: %v", skewErr)
	}
	c.drm.Refresh()

	conn, resp2, err2 := dialer.DialContext(ctx, c.requestURL(connectID()), c.handshakeHeader())
	if err2 == nil {
		return conn, nil
	}
	if resp2 != nil && resp2.StatusCode == http.StatusForbidden {
		// Still throttled: surface the original failure.
		return nil, fmt.Errorf("%w: %v", ErrWebSocket, err)
	}
	return nil, fmt.Errorf("%w: %v", ErrWebSocket, err2)
}

func (c *Communicate) requestURL(connID string) string {
	sep := "?"
	if strings.Contains(c.endpoint, "?") {
		sep = "&"
	}
	return c.endpoint + sep +
		"Sec-MS-GEC=" + c.drm.Token() +
		"&Sec-MS-GEC-Version=" + SecMSGECVersion +
		"&ConnectionId=" + connID
}

func (c *Communicate) handshakeHeader() http.Header {
	header := http.Header{}
	for k, v := range wssHeaders {
		header.Set(k, v)
	}
	return header
}

func (c *Communicate) sendSpeechConfig(conn *websocket.Conn) error {
	msg := fmt.Sprintf(
		"X-Timestamp:%s\r\n"+
			"Content-Type:application/json; charset=utf-8\r\n"+
			"Path:speech.config\r\n\r\n"+
			`{"context":{"synthesis":{"audio":{"metadataoptions":{`+
			`"sentenceBoundaryEnabled":%t,"wordBoundaryEnabled":%t},`+
			`"outputFormat":%q}}}}`+"\r\n",
		dateToString(time.Now()),
		c.boundary == BoundarySentence,
		c.boundary == BoundaryWord,
		c.outputFormat,
	)
	return conn.WriteMessage(websocket.TextMessage, []byte(msg))
}

func (c *Communicate) sendSSML(conn *websocket.Conn, chunk []byte) error {
	msg := ssmlHeadersPlusData(
		connectID(),
		dateToString(time.Now()),
		mkSSML(chunk, c.voice, c.rate, c.volume, c.pitch),
	)
	return conn.WriteMessage(websocket.TextMessage, []byte(msg))
}

func emit(ctx context.Context, events chan<- ChunkEvent, ev ChunkEvent) error {
	select {
	case events <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ticksToDuration converts the service's 100-nanosecond tick counts.
func ticksToDuration(ticks int64) time.Duration {
	return time.Duration(ticks * 100)
}

// DurationToTicks converts back to the service's tick unit, used when
// persisting boundary metadata in the upstream JSON format.
func DurationToTicks(d time.Duration) int64 {
	return d.Nanoseconds() / 100
}

type boundaryRecord struct {
	Type     string `json:"type"`
	Offset   int64  `json:"offset"`
	Duration int64  `json:"duration"`
	Text     string `json:"text"`
}

// Save streams the request to disk: audio bytes to audioPath and, when
// metadataPath is non-empty, one JSON object per boundary event (offsets and
// durations in 100ns ticks).
func (c *Communicate) Save(ctx context.Context, audioPath, metadataPath string) error {
	audio, err := os.Create(audioPath)
	if err != nil {
		return err
	}
	defer audio.Close()

	var metadata *json.Encoder
	if metadataPath != "" {
		f, err := os.Create(metadataPath)
		if err != nil {
			return err
		}
		defer f.Close()
		metadata = json.NewEncoder(f)
	}

	return c.save(ctx, audio, metadata)
}

// save runs the stream into the given sinks. A sink failure cancels the
// stream and drains the remaining events so the run goroutine exits and its
// connection is closed, rather than staying blocked on a reader that is gone.
func (c *Communicate) save(ctx context.Context, audio io.Writer, metadata *json.Encoder) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	events, err := c.Stream(ctx)
	if err != nil {
		return err
	}

	var sinkErr error
	for ev := range events {
		if sinkErr != nil {
			continue
		}
		if err := writeEvent(audio, metadata, ev); err != nil {
			sinkErr = err
			cancel()
		}
	}
	if sinkErr != nil {
		return sinkErr
	}
	return c.Err()
}

func writeEvent(audio io.Writer, metadata *json.Encoder, ev ChunkEvent) error {
	switch ev := ev.(type) {
	case AudioChunk:
		_, err := audio.Write(ev.Data)
		return err
	case WordBoundary:
		if metadata == nil {
			return nil
		}
		return metadata.Encode(boundaryRecord{
			Type:     "WordBoundary",
			Offset:   DurationToTicks(ev.Offset),
			Duration: DurationToTicks(ev.Duration),
			Text:     ev.Text,
		})
	case SentenceBoundary:
		if metadata == nil {
			return nil
		}
		return metadata.Encode(boundaryRecord{
			Type:     "SentenceBoundary",
			Offset:   DurationToTicks(ev.Offset),
			Duration: DurationToTicks(ev.Duration),
			Text:     ev.Text,
		})
	}
	return nil
}
