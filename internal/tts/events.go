package tts

import "time"

// ChunkEvent is one unit of synthesis output: either raw audio bytes or a
// timing marker aligning a word or sentence to an audio offset. The closed
// set of implementations makes switches over event kinds exhaustive.
type ChunkEvent interface {
	isChunkEvent()
}

// AudioChunk carries a slice of the synthesized audio stream.
type AudioChunk struct {
	Data []byte
}

// WordBoundary reports when a single word is spoken. Offset is absolute
// within the whole request, with cross-chunk compensation already applied.
type WordBoundary struct {
	Offset   time.Duration
	Duration time.Duration
	Text     string
}

// SentenceBoundary reports when a full sentence is spoken.
type SentenceBoundary struct {
	Offset   time.Duration
	Duration time.Duration
	Text     string
}

func (AudioChunk) isChunkEvent()       {}
func (WordBoundary) isChunkEvent()     {}
func (SentenceBoundary) isChunkEvent() {}
