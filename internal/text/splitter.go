package text

import (
	"bytes"
	"errors"
	"strings"
	"unicode/utf8"
)

// ErrBudgetTooSmall is returned when the byte budget cannot hold a single
// codepoint or an unsplittable XML entity of the input.
var ErrBudgetTooSmall = errors.New("text: byte budget too small for input")

// Splitter cuts escaped text into chunks of at most a given byte length,
// preferring to break on newlines, then spaces. A chunk never ends inside a
// multi-byte UTF-8 sequence or inside an unterminated XML entity, since the
// output is embedded into an XML payload.
//
// Iteration follows the bufio.Scanner convention: call Next until it returns
// false, then check Err. A Splitter is single-use.
type Splitter struct {
	rest   []byte
	budget int
	cur    []byte
	err    error
	done   bool
}

// NewSplitter returns a Splitter over text with the given byte budget.
func NewSplitter(text []byte, budget int) (*Splitter, error) {
	if budget <= 0 {
		return nil, errors.New("text: byte budget must be greater than 0")
	}
	return &Splitter{rest: text, budget: budget}, nil
}

// Next advances to the next non-empty chunk.
func (s *Splitter) Next() bool {
	if s.err != nil || s.done {
		return false
	}

	for len(s.rest) > s.budget {
		splitAt, err := s.findSplit()
		if err != nil {
			s.err = err
			return false
		}

		chunk := bytes.TrimSpace(s.rest[:splitAt])
		if splitAt == 0 {
			// Guarantee forward progress even when the split point
			// collapsed to the start of the remainder.
			splitAt = 1
		}
		s.rest = s.rest[splitAt:]
		if len(chunk) > 0 {
			s.cur = chunk
			return true
		}
	}

	s.done = true
	if chunk := bytes.TrimSpace(s.rest); len(chunk) > 0 {
		s.cur = chunk
		return true
	}
	return false
}

// Bytes returns the chunk produced by the last successful call to Next. The
// slice aliases the input text and must not be modified.
func (s *Splitter) Bytes() []byte {
	return s.cur
}

// Text returns the chunk produced by the last successful call to Next.
func (s *Splitter) Text() string {
	return string(s.cur)
}

func (s *Splitter) Err() error {
	return s.err
}

// findSplit locates the split offset within the first budget bytes: the
// rightmost newline, else the rightmost space, else the rightmost UTF-8 rune
// boundary. The offset is then walked back past any unterminated entity.
func (s *Splitter) findSplit() (int, error) {
	window := s.rest[:s.budget]

	splitAt := bytes.LastIndexByte(window, '\n')
	if splitAt < 0 {
		splitAt = bytes.LastIndexByte(window, ' ')
	}
	if splitAt < 0 {
		splitAt = s.budget
		for splitAt > 0 && isContinuationByte(s.rest[splitAt]) {
			splitAt--
		}
		if splitAt == 0 {
			return 0, ErrBudgetTooSmall
		}
	}

	// Never cut an entity: an '&' with no terminating ';' before the split
	// point pushes the split point back before the '&'.
	for {
		amp := bytes.LastIndexByte(s.rest[:splitAt], '&')
		if amp < 0 {
			break
		}
		if bytes.IndexByte(s.rest[amp:splitAt], ';') >= 0 {
			break
		}
		splitAt = amp - 1
		if splitAt < 0 {
			return 0, ErrBudgetTooSmall
		}
		if splitAt == 0 {
			break
		}
	}

	// The entity walk lands one byte before the '&', which may fall inside a
	// multi-byte sequence. Retreat to the nearest rune boundary.
	for splitAt > 0 && isContinuationByte(s.rest[splitAt]) {
		splitAt--
	}

	return splitAt, nil
}

func isContinuationByte(b byte) bool {
	return b&0xC0 == 0x80
}

// Sanitize replaces characters the synthesis service rejects with spaces.
// The affected ranges are the C0 controls except tab, newline and carriage
// return; the vertical tab in particular is common in OCR-ed documents.
func Sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		if (r >= 0 && r <= 8) || r == 11 || r == 12 || (r >= 14 && r <= 31) {
			return ' '
		}
		return r
	}, s)
}

var escaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

// Escape substitutes the XML-reserved characters so the text can be embedded
// into an SSML payload.
func Escape(s string) string {
	return escaper.Replace(s)
}

// ValidUTF8 reports whether b is well-formed UTF-8. Exposed for callers that
// validate chunk invariants.
func ValidUTF8(b []byte) bool {
	return utf8.Valid(b)
}
