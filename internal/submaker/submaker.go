// Package submaker turns the timing events of a synthesis stream into a
// subtitle document. Feed boundary events as they arrive, optionally merge
// neighbouring cues, then render as SRT or WebVTT.
package submaker

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/edgewire/readaloud/internal/tts"
)

// ErrMixedBoundaries is returned when word and sentence events are fed into
// the same SubMaker. One composer handles one kind of timing.
var ErrMixedBoundaries = errors.New("submaker: cannot mix word and sentence boundaries")

// Cue is one subtitle entry. Start and End are absolute positions in the
// audio stream, Content is the spoken text.
type Cue struct {
	Index   int
	Start   time.Duration
	End     time.Duration
	Content string
}

type boundaryKind int

const (
	kindUnset boundaryKind = iota
	kindWord
	kindSentence
)

// SubMaker accumulates boundary events into cues.
type SubMaker struct {
	cues []Cue
	kind boundaryKind
}

func New() *SubMaker {
	return &SubMaker{}
}

// Feed records one timing event as a cue. Audio events are ignored so the
// whole stream can be piped through without filtering. Word and sentence
// boundaries cannot be mixed within one SubMaker.
func (s *SubMaker) Feed(ev tts.ChunkEvent) error {
	switch ev := ev.(type) {
	case tts.WordBoundary:
		if s.kind == kindSentence {
			return ErrMixedBoundaries
		}
		s.kind = kindWord
		s.append(ev.Offset, ev.Duration, ev.Text)
	case tts.SentenceBoundary:
		if s.kind == kindWord {
			return ErrMixedBoundaries
		}
		s.kind = kindSentence
		s.append(ev.Offset, ev.Duration, ev.Text)
	}
	return nil
}

func (s *SubMaker) append(offset, duration time.Duration, text string) {
	s.cues = append(s.cues, Cue{
		Index:   len(s.cues) + 1,
		Start:   offset,
		End:     offset + duration,
		Content: text,
	})
}

// Cues returns a copy of the accumulated cues in arrival order.
func (s *SubMaker) Cues() []Cue {
	out := make([]Cue, len(s.cues))
	copy(out, s.cues)
	return out
}

// MergeCues folds consecutive cues together until each merged cue holds at
// least words words, extending the end time and joining the text with single
// spaces. Cues are reindexed afterwards.
func (s *SubMaker) MergeCues(words int) error {
	if words <= 0 {
		return fmt.Errorf("submaker: words per cue must be positive, got %d", words)
	}
	if len(s.cues) == 0 {
		return nil
	}

	merged := make([]Cue, 0, len(s.cues)/words+1)
	var cur Cue
	var count int
	for _, cue := range s.cues {
		if count == 0 {
			cur = cue
		} else {
			cur.End = cue.End
			cur.Content += " " + cue.Content
		}
		count += len(strings.Fields(cue.Content))
		if count >= words {
			merged = append(merged, cur)
			count = 0
		}
	}
	if count > 0 {
		merged = append(merged, cur)
	}
	for i := range merged {
		merged[i].Index = i + 1
	}
	s.cues = merged
	return nil
}

// SRT renders the cues as an SRT document: index, comma-millisecond
// timestamps, content, blank line.
func (s *SubMaker) SRT() string {
	var b strings.Builder
	for _, cue := range composable(s.cues) {
		fmt.Fprintf(&b, "%d\n%s --> %s\n%s\n\n",
			cue.Index,
			srtTimestamp(cue.Start),
			srtTimestamp(cue.End),
			makeLegalContent(cue.Content))
	}
	return b.String()
}

// WebVTT renders the cues as a WebVTT document. Same cue model as SRT, only
// the header line and the millisecond delimiter differ.
func (s *SubMaker) WebVTT() string {
	var b strings.Builder
	b.WriteString("WEBVTT\n\n")
	for _, cue := range composable(s.cues) {
		fmt.Fprintf(&b, "%s --> %s\n%s\n\n",
			vttTimestamp(cue.Start),
			vttTimestamp(cue.End),
			escapeVTT(makeLegalContent(cue.Content)))
	}
	return b.String()
}

// composable sorts cues by start time, drops the ones that cannot be
// represented (no content, zero or negative span, negative start) and
// reindexes the survivors from 1.
func composable(cues []Cue) []Cue {
	out := make([]Cue, 0, len(cues))
	for _, cue := range cues {
		if strings.TrimSpace(cue.Content) == "" || cue.Start < 0 || cue.Start >= cue.End {
			continue
		}
		out = append(out, cue)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	for i := range out {
		out[i].Index = i + 1
	}
	return out
}

// makeLegalContent collapses blank lines inside a cue. A blank line would
// terminate the cue early in both grammars.
func makeLegalContent(content string) string {
	lines := strings.Split(strings.TrimSpace(content), "\n")
	kept := lines[:0]
	for _, line := range lines {
		if strings.TrimSpace(line) != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}

var vttEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

func escapeVTT(content string) string {
	return vttEscaper.Replace(content)
}

func srtTimestamp(d time.Duration) string {
	return timestamp(d, ",")
}

func vttTimestamp(d time.Duration) string {
	return timestamp(d, ".")
}

func timestamp(d time.Duration, msSep string) string {
	if d < 0 {
		d = 0
	}
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	sec := d / time.Second
	ms := (d - sec*time.Second) / time.Millisecond
	return fmt.Sprintf("%02d:%02d:%02d%s%03d", h, m, sec, msSep, ms)
}
