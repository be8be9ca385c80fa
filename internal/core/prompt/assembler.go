// Package prompt builds the single prompt string sent to the answer provider.
package prompt

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultInstruction is the analyst instruction that opens every prompt.
const DefaultInstruction = "You are a professional document analyst. Answer based on the context.\n" +
	"If answer isn't in document, state that clearly. Be concise and accurate.\n\n"

const (
	contextHeader  = "Context:\n"
	questionHeader = "\n\nQuestion: "
	pageSeparator  = "\n"
)

// Assembler joins page texts and a question into one prompt.
//
// Budget is measured in runes. When the full prompt would exceed it, pages
// are kept whole from the start while they fit and the first page that does
// not fit is clipped at the last sentence (or word) boundary inside the room
// left. The question is never shortened and always ends the prompt.
type Assembler struct {
	Instruction string
	Budget      int // 0 disables truncation
}

// NewAssembler returns an Assembler using DefaultInstruction.
func NewAssembler(budget int) *Assembler {
	return &Assembler{Instruction: DefaultInstruction, Budget: budget}
}

// Build returns the prompt for pages and question.
func (a *Assembler) Build(pages []string, question string) string {
	context := a.Context(pages, question)

	var b strings.Builder
	b.Grow(len(a.Instruction) + len(contextHeader) + len(context) + len(questionHeader) + len(question))
	b.WriteString(a.Instruction)
	b.WriteString(contextHeader)
	b.WriteString(context)
	b.WriteString(questionHeader)
	b.WriteString(question)
	return b.String()
}

// Context returns the joined page text that fits next to question.
func (a *Assembler) Context(pages []string, question string) string {
	joined := strings.Join(pages, pageSeparator)
	if a.Budget <= 0 {
		return joined
	}

	fixed := runeLen(a.Instruction) + runeLen(contextHeader) + runeLen(questionHeader) + runeLen(question)
	room := a.Budget - fixed
	if room <= 0 {
		return ""
	}
	if runeLen(joined) <= room {
		return joined
	}

	// Keep whole pages while they fit, then clip the next one into what is left.
	var b strings.Builder
	used := 0
	hasText := false
	for i, p := range pages {
		sep := 0
		if i > 0 {
			sep = runeLen(pageSeparator)
		}
		if need := sep + runeLen(p); used+need <= room {
			if i > 0 {
				b.WriteString(pageSeparator)
			}
			b.WriteString(p)
			used += need
			hasText = hasText || strings.TrimSpace(p) != ""
			continue
		}

		if left := room - used - sep; left > 0 {
			// A mid-word cut is only worth it when nothing else made it in.
			if part := clip(p, left, !hasText); part != "" {
				if i > 0 {
					b.WriteString(pageSeparator)
				}
				b.WriteString(part)
			}
		}
		break
	}
	return b.String()
}

// clip shortens s to at most n runes, preferring to end on a sentence and
// then on a word boundary. Without either it cuts mid-word if hard is set and
// returns "" otherwise.
func clip(s string, n int, hard bool) string {
	if runeLen(s) <= n {
		return s
	}
	cut := s[:byteOffset(s, n)]

	if i := lastSentenceEnd(cut); i > 0 {
		return cut[:i]
	}
	if i := strings.LastIndexFunc(cut, unicode.IsSpace); i > 0 {
		return strings.TrimRightFunc(cut[:i], unicode.IsSpace)
	}
	if !hard {
		return ""
	}
	return cut
}

// lastSentenceEnd returns the byte index just past the last sentence
// terminator in s that is followed by whitespace or ends s, or -1.
func lastSentenceEnd(s string) int {
	for i := len(s) - 1; i >= 0; i-- {
		switch s[i] {
		case '.', '!', '?':
			if i == len(s)-1 {
				return i + 1
			}
			r, _ := utf8.DecodeRuneInString(s[i+1:])
			if unicode.IsSpace(r) {
				return i + 1
			}
		case '\n':
			return i
		}
	}
	return -1
}

func runeLen(s string) int { return utf8.RuneCountInString(s) }

// byteOffset returns the byte offset of the n-th rune of s.
func byteOffset(s string, n int) int {
	i := 0
	for off := range s {
		if i == n {
			return off
		}
		i++
	}
	return len(s)
}
