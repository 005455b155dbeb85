// Package splitter breaks an oversized reply into transport-safe chunks
// without destroying fenced code-block formatting.
package splitter

import (
	"strings"
	"unicode/utf8"
)

const fence = "```"

// Segment is one span of a lexed reply: either plain prose or the inside of
// a fenced code block.
type Segment struct {
	Code bool
	Text string
}

// Lex segments text on code fences. Segments alternate plain/code starting
// with plain; an unmatched trailing fence simply yields a final code segment.
// Empty segments are preserved so Split can stay a pure function of the lex.
func Lex(text string) []Segment {
	parts := strings.Split(text, fence)
	segs := make([]Segment, len(parts))
	for i, p := range parts {
		segs[i] = Segment{Code: i%2 == 1, Text: p}
	}
	return segs
}

// Split returns chunks of at most limit characters each. The limit counts
// runes, not bytes: the platform caps message length in characters, and a
// chunk must never end mid-rune or it arrives as mojibake. Code segments are
// re-wrapped in fences per emitted chunk; lines longer than the available
// budget are hard-split so no chunk is ever unsendable. Concatenating the
// chunks minus the added fences and split newlines reproduces the input.
//
// The limit must leave room for a pair of fences; callers configure it below
// the platform's real cap.
func Split(text string, limit int) []string {
	if limit <= 0 || utf8.RuneCountInString(text) <= limit {
		return []string{text}
	}
	if !strings.Contains(text, fence) {
		return chunkFixed(text, limit)
	}

	var out []string
	for _, seg := range Lex(text) {
		if seg.Text == "" {
			continue
		}
		if seg.Code {
			out = append(out, chunkCode(seg.Text, limit)...)
		} else {
			out = append(out, chunkFixed(seg.Text, limit)...)
		}
	}
	return out
}

// chunkFixed splits s into chunks of at most limit runes.
func chunkFixed(s string, limit int) []string {
	runes := []rune(s)
	var out []string
	for len(runes) > limit {
		out = append(out, string(runes[:limit]))
		runes = runes[limit:]
	}
	if len(runes) > 0 {
		out = append(out, string(runes))
	}
	return out
}

// chunkCode re-chunks the inside of a code block. Each emitted chunk gets
// its own opening and closing fence, so the content budget is the limit
// minus the fence overhead.
func chunkCode(s string, limit int) []string {
	budget := limit - 2*len(fence)
	if budget < 1 {
		budget = 1
	}

	lines := strings.Split(s, "\n")
	pieces := make([]string, 0, len(lines))
	for _, line := range lines {
		runes := []rune(line)
		for len(runes) > budget {
			pieces = append(pieces, string(runes[:budget]))
			runes = runes[budget:]
		}
		pieces = append(pieces, string(runes))
	}
	formatted := strings.Join(pieces, "\n")

	if utf8.RuneCountInString(formatted) <= budget {
		return []string{fence + formatted + fence}
	}

	chunks := chunkFixed(formatted, budget)
	out := make([]string, len(chunks))
	for i, c := range chunks {
		out[i] = fence + c + fence
	}
	return out
}
