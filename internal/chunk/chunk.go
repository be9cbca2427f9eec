// Package chunk splits a document body into overlapping byte-windowed
// chunks for embedding.
package chunk

import "unicode/utf8"

// Chunk is a contiguous slice of a document body, keyed by sequence number
// and byte offset, the unit of embedding.
type Chunk struct {
	Seq  int    // 0-based, dense
	Pos  int    // byte offset into the body
	Text string
}

// Config holds the chunker's size/overlap tunables.
type Config struct {
	Size    int // bytes per chunk
	Overlap int
}

// DefaultConfig returns 1000-byte chunks with 200 bytes of overlap.
func DefaultConfig() Config {
	return Config{Size: 1000, Overlap: 200}
}

// Split divides body into chunks of cfg.Size bytes with cfg.Overlap bytes
// of overlap between consecutive chunks. If body is no longer than
// cfg.Size, a single chunk spanning the whole body is returned. Chunk
// boundaries are always realigned to UTF-8 rune starts so multi-byte
// characters are never split across chunks.
func Split(body string, cfg Config) []Chunk {
	if cfg.Size <= 0 {
		cfg.Size = 1000
	}
	if cfg.Overlap < 0 || cfg.Overlap >= cfg.Size {
		cfg.Overlap = 0
	}

	if len(body) <= cfg.Size {
		if body == "" {
			return nil
		}
		return []Chunk{{Seq: 0, Pos: 0, Text: body}}
	}

	var chunks []Chunk
	seq := 0
	pos := 0
	step := cfg.Size - cfg.Overlap
	if step <= 0 {
		step = cfg.Size
	}

	for pos < len(body) {
		end := pos + cfg.Size
		if end > len(body) {
			end = len(body)
		}
		end = alignToRuneStart(body, end)
		start := alignToRuneStart(body, pos)

		chunks = append(chunks, Chunk{Seq: seq, Pos: start, Text: body[start:end]})
		seq++

		if end >= len(body) {
			break
		}
		pos += step
	}
	return chunks
}

// alignToRuneStart nudges i backwards until it lands on a UTF-8 rune
// boundary, so chunk slicing never splits a multi-byte character.
func alignToRuneStart(s string, i int) int {
	if i >= len(s) {
		return len(s)
	}
	for i > 0 && !utf8.RuneStart(s[i]) {
		i--
	}
	return i
}
