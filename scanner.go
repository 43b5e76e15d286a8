package pydsl

import (
	"bytes"
	"errors"
	"io"
	"os"
	"strings"
)

// Scanner turns source text into a stream of [Token] values. Create one
// with [Tokenize], [TokenizeString], or [TokenizeFile], then call
// [Scanner.Next] repeatedly until it returns [io.EOF].
//
// The stream always ends with an [EndMarker] token. Logical lines end with
// a [Newline] token; blank lines, comment-only lines, and line breaks
// inside open brackets produce [NL] instead. Indentation changes produce
// [Indent] and [Dedent] tokens measured with tab stops of 8 columns.
//
// The scanner reports lexical errors (unterminated string literals, a bad
// byte stream) as [*TokenError]. It does not judge structure: unclosed
// brackets and dedents that match no indentation level pass through as
// ordinary tokens for [ParseBlock] to report with their positions.
type Scanner struct {
	src *sourceReader

	queue []Token // scanned but not yet returned
	done  bool    // EndMarker has been queued
	err   error   // sticky

	line string // current physical line
	lnum int    // current line number (1-based)
	pos  int    // scan position within line

	indents   []int // indentation levels, expanded widths, always starts [0]
	depth     int   // open bracket nesting depth
	continued bool  // previous line ended with a backslash continuation
}

// Tokenize returns a Scanner reading source text from r.
// BOM and encoding-declaration comments are recognized per [Package pydsl].
func Tokenize(r io.Reader) *Scanner {
	return &Scanner{src: newSourceReader(r), indents: []int{0}}
}

// TokenizeString returns a Scanner for the given source text.
func TokenizeString(text string) *Scanner {
	return Tokenize(strings.NewReader(text))
}

// TokenizeFile returns a Scanner for the named file. The file is read
// eagerly; the returned Scanner holds no open handle.
func TokenizeFile(name string) (*Scanner, error) {
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, err
	}
	return Tokenize(bytes.NewReader(data)), nil
}

// Next returns the next token. After the [EndMarker] token has been
// returned, Next returns [io.EOF] forever. After any other error, Next
// returns that same error forever.
func (s *Scanner) Next() (Token, error) {
	for len(s.queue) == 0 {
		if s.err != nil {
			return Token{}, s.err
		}
		if s.done {
			s.err = io.EOF
			return Token{}, io.EOF
		}
		if err := s.scanLine(); err != nil {
			s.err = err
			return Token{}, err
		}
	}
	tok := s.queue[0]
	s.queue = s.queue[1:]
	return tok, nil
}

func (s *Scanner) emit(tok Token) {
	s.queue = append(s.queue, tok)
}

// scanLine consumes one physical line (string literals may pull in more)
// and queues the tokens found on it.
func (s *Scanner) scanLine() error {
	line, err := s.src.next()
	if err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	s.lnum++

	if line == "" {
		// End of input: close remaining indentation levels, then finish.
		at := Pos{Line: s.lnum, Col: 0}
		for range s.indents[1:] {
			s.emit(Token{Kind: Dedent, Start: at, End: at})
		}
		s.indents = s.indents[:1]
		s.emit(Token{Kind: EndMarker, Start: at, End: at})
		s.done = true
		return nil
	}

	s.line = line
	s.pos = 0

	if s.depth == 0 && !s.continued {
		if s.measureIndent() {
			return nil // blank or comment-only line, fully handled
		}
	} else {
		// Continuation lines contribute no indentation changes.
		s.continued = false
	}

	return s.scanTokens()
}

// measureIndent handles the start of a fresh logical line: it skips the
// leading whitespace, emits Indent/Dedent tokens for level changes, and
// short-circuits blank and comment-only lines. Reports whether the line
// was consumed entirely.
func (s *Scanner) measureIndent() bool {
	line := s.line
	col, pos := 0, 0
measure:
	for pos < len(line) {
		switch line[pos] {
		case ' ':
			col++
		case '\t':
			col = col/tabSize*tabSize + tabSize
		case '\f':
			col = 0
		default:
			break measure
		}
		pos++
	}
	s.pos = pos

	// Blank and comment-only lines have no indentation significance.
	if pos >= len(line) || line[pos] == '\n' || line[pos] == '\r' {
		s.emit(Token{
			Kind:  NL,
			Text:  line[pos:],
			Start: Pos{s.lnum, pos},
			End:   Pos{s.lnum, len(line)},
			Line:  line,
		})
		return true
	}
	if line[pos] == '#' {
		s.scanComment()
		rest := line[s.pos:]
		s.emit(Token{
			Kind:  NL,
			Text:  rest,
			Start: Pos{s.lnum, s.pos},
			End:   Pos{s.lnum, len(line)},
			Line:  line,
		})
		return true
	}

	top := s.indents[len(s.indents)-1]
	switch {
	case col > top:
		s.indents = append(s.indents, col)
		s.emit(Token{
			Kind:  Indent,
			Text:  line[:pos],
			Start: Pos{s.lnum, 0},
			End:   Pos{s.lnum, pos},
			Line:  line,
		})
	case col < top:
		at := Pos{s.lnum, pos}
		for len(s.indents) > 1 && col < s.indents[len(s.indents)-1] {
			s.indents = s.indents[:len(s.indents)-1]
			s.emit(Token{Kind: Dedent, Start: at, End: at, Line: line})
		}
		if col != s.indents[len(s.indents)-1] {
			// The width matches no outer level. The parser rejects the
			// dedent; record the level so scanning can continue.
			s.indents = append(s.indents, col)
		}
	}
	return false
}

// scanTokens scans the rest of the current line, s.pos onward.
func (s *Scanner) scanTokens() error {
	for s.pos < len(s.line) {
		line := s.line
		c := line[s.pos]
		switch {
		case c == ' ' || c == '\t' || c == '\f':
			s.pos++

		case c == '\n' || c == '\r':
			kind := Newline
			if s.depth > 0 {
				kind = NL
			}
			s.emit(Token{
				Kind:  kind,
				Text:  line[s.pos:],
				Start: Pos{s.lnum, s.pos},
				End:   Pos{s.lnum, len(line)},
				Line:  line,
			})
			s.pos = len(line)

		case c == '#':
			s.scanComment()

		case c == '\\' && restIsNewline(line[s.pos+1:]):
			// Explicit line continuation; no token, the backslash stays
			// in the Line text for Detokenize to find.
			s.continued = true
			s.pos = len(line)

		case isStringStart(line, s.pos):
			if err := s.scanString(); err != nil {
				return err
			}

		case isNameStart(c):
			s.scanName()

		case isDigit(c) || (c == '.' && s.pos+1 < len(line) && isDigit(line[s.pos+1])):
			s.scanNumber()

		default:
			s.scanOp()
		}
	}
	return nil
}

func restIsNewline(rest string) bool {
	switch rest {
	case "", "\n", "\r\n", "\r":
		return true
	}
	return false
}

func (s *Scanner) scanComment() {
	start := s.pos
	text := strings.TrimRight(s.line[start:], "\r\n")
	s.pos = start + len(text)
	s.emit(Token{
		Kind:  Comment,
		Text:  text,
		Start: Pos{s.lnum, start},
		End:   Pos{s.lnum, s.pos},
		Line:  s.line,
	})
}

func isNameStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c >= 0x80
}

func isNameChar(c byte) bool {
	return isNameStart(c) || isDigit(c)
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func (s *Scanner) scanName() {
	start := s.pos
	line := s.line
	for s.pos < len(line) && isNameChar(line[s.pos]) {
		s.pos++
	}
	s.emit(Token{
		Kind:  Name,
		Text:  line[start:s.pos],
		Start: Pos{s.lnum, start},
		End:   Pos{s.lnum, s.pos},
		Line:  line,
	})
}

func (s *Scanner) scanNumber() {
	start := s.pos
	line := s.line
	j := s.pos

	digits := func(valid func(byte) bool) {
		for j < len(line) && (valid(line[j]) || line[j] == '_') {
			j++
		}
	}

	if line[j] == '0' && j+1 < len(line) && isBaseMarker(line[j+1]) {
		base := line[j+1]
		j += 2
		switch base {
		case 'x', 'X':
			digits(isHexDigit)
		case 'o', 'O':
			digits(isDigit)
		case 'b', 'B':
			digits(func(c byte) bool { return c == '0' || c == '1' })
		}
	} else {
		digits(isDigit)
		if j < len(line) && line[j] == '.' {
			j++
			digits(isDigit)
		}
		if j < len(line) && (line[j] == 'e' || line[j] == 'E') {
			k := j + 1
			if k < len(line) && (line[k] == '+' || line[k] == '-') {
				k++
			}
			if k < len(line) && isDigit(line[k]) {
				j = k
				digits(isDigit)
			}
		}
	}
	// Long and imaginary suffixes.
	if j < len(line) && (line[j] == 'l' || line[j] == 'L' || line[j] == 'j' || line[j] == 'J') {
		j++
	}

	s.pos = j
	s.emit(Token{
		Kind:  Number,
		Text:  line[start:j],
		Start: Pos{s.lnum, start},
		End:   Pos{s.lnum, j},
		Line:  line,
	})
}

func isBaseMarker(c byte) bool {
	switch c {
	case 'x', 'X', 'o', 'O', 'b', 'B':
		return true
	}
	return false
}

func isHexDigit(c byte) bool {
	return isDigit(c) || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

// operators, longest first. Brackets are plain Op tokens; the parser
// tracks their nesting.
var operators = []string{
	"**=", "//=", ">>=", "<<=", "...",
	"**", "//", ">>", "<<", "<=", ">=", "==", "!=", "<>", "->",
	"+=", "-=", "*=", "/=", "%=", "&=", "|=", "^=", ":=",
	"+", "-", "*", "/", "%", "&", "|", "^", "~", "<", ">",
	"(", ")", "[", "]", "{", "}", ",", ":", ".", ";", "@", "=", "`",
}

func (s *Scanner) scanOp() {
	line := s.line
	start := s.pos
	for _, op := range operators {
		if strings.HasPrefix(line[start:], op) {
			s.pos = start + len(op)
			switch op {
			case "(", "[", "{":
				s.depth++
			case ")", "]", "}":
				if s.depth > 0 {
					s.depth--
				}
			}
			s.emit(Token{
				Kind:  Op,
				Text:  op,
				Start: Pos{s.lnum, start},
				End:   Pos{s.lnum, s.pos},
				Line:  line,
			})
			return
		}
	}
	// Not an operator we know: pass the byte through as an Error token so
	// the text survives a detokenize round trip.
	s.pos = start + 1
	s.emit(Token{
		Kind:  Error,
		Text:  line[start:s.pos],
		Start: Pos{s.lnum, start},
		End:   Pos{s.lnum, s.pos},
		Line:  line,
	})
}

// isStringStart reports whether line[pos:] begins a string literal: a
// quote, optionally preceded by one or two prefix letters (r, b, u in any
// case and order).
func isStringStart(line string, pos int) bool {
	return stringPrefixLen(line, pos) >= 0
}

// stringPrefixLen returns the length of the literal's prefix (0 for a bare
// quote) or -1 when line[pos:] does not start a string literal.
func stringPrefixLen(line string, pos int) int {
	n := 0
	for n < 2 && pos+n < len(line) && isPrefixLetter(line[pos+n]) {
		n++
	}
	if pos+n < len(line) && (line[pos+n] == '\'' || line[pos+n] == '"') {
		return n
	}
	return -1
}

func isPrefixLetter(c byte) bool {
	switch c {
	case 'r', 'R', 'b', 'B', 'u', 'U':
		return true
	}
	return false
}

// scanString scans a string literal starting at s.pos. Triple-quoted
// literals and single-quoted literals with escaped newlines may span
// physical lines; the extra lines are pulled from the source here and the
// token's Line field becomes their concatenation, matching the convention
// Detokenize relies on.
func (s *Scanner) scanString() error {
	startPos := Pos{s.lnum, s.pos}
	prefix := stringPrefixLen(s.line, s.pos)
	q := s.pos + prefix
	quote := s.line[q]

	closer := string(quote)
	if strings.HasPrefix(s.line[q:], strings.Repeat(string(quote), 3)) {
		closer = strings.Repeat(string(quote), 3)
	}
	triple := len(closer) == 3

	var text strings.Builder
	text.WriteString(s.line[s.pos:q])
	tokLine := s.line // grows if the literal spans lines

	cur := s.line
	j := q + len(closer)
	text.WriteString(closer)
	escapedNL := false

	for {
		if j >= len(cur) {
			if !triple && !escapedNL {
				return &TokenError{Pos: startPos, Message: "EOL while scanning string literal"}
			}
			next, err := s.src.next()
			if err != nil {
				return &TokenError{Pos: startPos, Message: "EOF in multi-line string"}
			}
			s.lnum++
			tokLine += next
			cur = next
			j = 0
			escapedNL = false
			continue
		}
		switch {
		case strings.HasPrefix(cur[j:], closer):
			text.WriteString(closer)
			j += len(closer)
			s.line = cur
			s.pos = j
			s.emit(Token{
				Kind:  String,
				Text:  text.String(),
				Start: startPos,
				End:   Pos{s.lnum, j},
				Line:  tokLine,
			})
			return nil
		case cur[j] == '\\':
			if j+1 < len(cur) {
				text.WriteString(cur[j : j+2])
				escapedNL = cur[j+1] == '\n'
				j += 2
			} else {
				text.WriteByte(cur[j])
				escapedNL = true
				j++
			}
		case cur[j] == '\n':
			if !triple {
				return &TokenError{Pos: startPos, Message: "EOL while scanning string literal"}
			}
			text.WriteByte('\n')
			j++
		default:
			text.WriteByte(cur[j])
			j++
		}
	}
}
