// Package shaper sits between the lexer and the parser, performing the
// one piece of stream-shaping the lexer can't do locally: coalescing
// adjacent STRING_LIT fragments (spec §4.3). A string literal's open/close
// quote or raw-brace anchors, its escaped characters, its interpolation
// boundaries and its plain content runs all surface from the lexer as a
// scattered run of STRING_LIT tokens (with WS possibly threaded between
// adjacent literals written on separate lines); the parser wants exactly
// one STRING_LIT per literal.
package shaper

import (
	"strings"

	"kaml/internal/lexer"
	"kaml/internal/span"
	"kaml/internal/token"
)

// Shaper wraps a Lexer, exposing a token interface with lookahead,
// push-back, skip, and the STRING_LIT/WS coalescing pass.
type Shaper struct {
	lx *lexer.Lexer

	// rawPending holds lexer tokens that were pulled ahead during a
	// coalescing scan but turned out not to belong to the run; they are
	// replayed before asking the lexer for anything new.
	rawPending []token.Token

	// shapedQueue holds already-shaped tokens waiting to be returned by
	// subsequent Next calls (e.g. the outer WS token that precedes or
	// follows a coalesced string run), plus anything pushed back by the
	// client via PushBack.
	shapedQueue []token.Token
}

// New wraps lx in a Shaper.
func New(lx *lexer.Lexer) *Shaper {
	return &Shaper{lx: lx}
}

func (s *Shaper) raw() token.Token {
	if len(s.rawPending) > 0 {
		t := s.rawPending[0]
		s.rawPending = s.rawPending[1:]
		return t
	}
	return s.lx.Next()
}

func (s *Shaper) unraw(t token.Token) {
	s.rawPending = append([]token.Token{t}, s.rawPending...)
}

// Next returns the next shaped token. When filterWS is true, WS tokens
// (including the outer WS tokens a coalesced run may produce) are
// silently skipped.
func (s *Shaper) Next(filterWS bool) token.Token {
	for {
		if len(s.shapedQueue) > 0 {
			t := s.shapedQueue[0]
			s.shapedQueue = s.shapedQueue[1:]
			if filterWS && t.Kind == token.WS {
				continue
			}
			return t
		}
		t := s.raw()
		if t.Kind == token.STRING_LIT {
			s.shapedQueue = append(s.shapedQueue, s.coalesce(t)...)
			continue
		}
		if filterWS && t.Kind == token.WS {
			continue
		}
		return t
	}
}

// PushBack places tok at the very front of the shaped stream, so the next
// Next call returns it.
func (s *Shaper) PushBack(tok token.Token) {
	s.shapedQueue = append([]token.Token{tok}, s.shapedQueue...)
}

// Lookahead returns the n-th upcoming shaped token (1-based) without
// consuming the stream. When filterWS is true, WS tokens are not counted,
// but they stay in the stream for later Next(false) calls.
func (s *Shaper) Lookahead(n int, filterWS bool) token.Token {
	buf := make([]token.Token, 0, n)
	var result token.Token
	for found := 0; found < n; {
		result = s.Next(false)
		buf = append(buf, result)
		if filterWS && result.Kind == token.WS {
			continue
		}
		found++
	}
	for i := len(buf) - 1; i >= 0; i-- {
		s.PushBack(buf[i])
	}
	return result
}

// Skip discards the next n tokens.
func (s *Shaper) Skip(n int) {
	for i := 0; i < n; i++ {
		s.Next(false)
	}
}

// coalesce implements spec §4.3's algorithm: starting from first (a
// STRING_LIT), gather the maximal run of following tokens whose kinds are
// only STRING_LIT or WS. Within that run, find the leftmost and rightmost
// STRING_LIT; every STRING_LIT between them contributes its text (in
// order) to one combined STRING_LIT, discarding any interior WS. Any WS
// tokens before the leftmost or after the rightmost STRING_LIT are
// concatenated into their own outer WS token(s), preceding/following the
// combined literal in the returned slice. The first non-STRING_LIT/WS
// token encountered ends the run and is pushed back for the next call.
func (s *Shaper) coalesce(first token.Token) []token.Token {
	run := []token.Token{first}
	for {
		t := s.raw()
		if t.Kind == token.STRING_LIT || t.Kind == token.WS {
			run = append(run, t)
			continue
		}
		s.unraw(t)
		break
	}

	leftIdx, rightIdx := -1, -1
	for i, t := range run {
		if t.Kind == token.STRING_LIT {
			if leftIdx == -1 {
				leftIdx = i
			}
			rightIdx = i
		}
	}

	var out []token.Token
	if leftIdx > 0 {
		out = append(out, mergeWS(run[:leftIdx]))
	}

	var sb strings.Builder
	for i := leftIdx; i <= rightIdx; i++ {
		if run[i].Kind == token.STRING_LIT {
			sb.WriteString(stringText(run[i]))
		}
	}
	text := sb.String()
	out = append(out, token.Token{
		Kind:   token.STRING_LIT,
		Lexeme: text,
		Value:  text,
		Span:   span.Span{Start: run[leftIdx].Span.Start, End: run[rightIdx].Span.End},
	})

	if rightIdx < len(run)-1 {
		out = append(out, mergeWS(run[rightIdx+1:]))
	}
	return out
}

func mergeWS(toks []token.Token) token.Token {
	var sb strings.Builder
	for _, t := range toks {
		sb.WriteString(t.Lexeme)
	}
	lex := sb.String()
	return token.Token{
		Kind:   token.WS,
		Lexeme: lex,
		Value:  lex,
		Span:   span.Span{Start: toks[0].Span.Start, End: toks[len(toks)-1].Span.End},
	}
}

func stringText(t token.Token) string {
	if s, ok := t.Value.(string); ok {
		return s
	}
	return t.Lexeme
}
