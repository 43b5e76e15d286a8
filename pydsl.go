// Package pydsl parses indentation-sensitive, expression-bracketed
// domain-specific languages with a Python-like surface syntax.
//
// The package recovers structure and preserves text; it never interprets
// meaning. Source text goes in, and two things come out: a tree of
// statements grouped by indentation and bracket nesting, and, from any
// token sequence, an exact reconstruction of the original text, optionally
// shifted to a different indentation level.
//
//	db = connect(dsn)
//	handlers = {
//	    "get":  fetch,
//	    "put":  store,
//	}
//	route "/users":
//	    auth required
//	    limit 100
//
// # Pipeline
//
// [Tokenize] (or [TokenizeString], [TokenizeFile]) turns source text into a
// stream of [Token] values. The scanner recognizes a UTF-8 byte-order marker
// and encoding-declaration comments (a `coding: name` comment on one of the
// first two blank-or-comment lines) and decodes the rest of the input
// accordingly.
//
// [ParseBlock] consumes the stream once and builds a [Block]: a list of
// (statement, nested block) pairs. Each [Statement] holds the tokens of one
// logical line; tokens between a matched bracket pair are wrapped in a
// [Subexpr] so bracket nesting is visible in the tree.
//
// [Flatten], [StripWhitespace], [Partition], and [RPartition] take trees and
// token sequences apart again. [Detokenize] turns any token sequence back
// into source text, preserving the original intra-line whitespace exactly.
//
// # Tokens
//
// Every token records its kind, its text, start and end positions, and the
// verbatim physical line it came from. Positions use 1-based lines and
// 0-based columns. The source line is what lets [Detokenize] reproduce tabs
// and runs of spaces instead of normalizing them.
//
// # Errors
//
// Structural and lexical errors are reported as [*TokenError] with a message
// and a source position. A parse error is fatal to the call: no partial tree
// is returned and there is no recovery. A token stream is consumed exactly
// once; callers that need several passes should materialize it with
// [ReadAll] first.
package pydsl

import (
	"errors"
	"fmt"
	"io"
)

// Kind classifies a [Token].
type Kind int

const (
	// EndMarker terminates every token stream. Its position is column 0 of
	// the line after the last physical line.
	EndMarker Kind = iota

	// Newline ends a logical line.
	Newline

	// NL is a newline that does not end a logical line: a blank line, a
	// comment-only line, or a line break inside an open bracket.
	NL

	// Indent opens an indentation level. Its text is the leading
	// whitespace of the line that introduced the level.
	Indent

	// Dedent closes an indentation level. It carries no text.
	Dedent

	// Comment is a `#` comment, without the trailing newline.
	Comment

	// Name is an identifier or keyword.
	Name

	// Number is an integer or floating-point literal.
	Number

	// String is a string literal, quotes and prefix included.
	String

	// Op is an operator or bracket.
	Op

	// Error is a character the scanner did not recognize, passed through
	// verbatim so that detokenizing remains lossless.
	Error
)

var kindNames = [...]string{
	EndMarker: "EndMarker",
	Newline:   "Newline",
	NL:        "NL",
	Indent:    "Indent",
	Dedent:    "Dedent",
	Comment:   "Comment",
	Name:      "Name",
	Number:    "Number",
	String:    "String",
	Op:        "Op",
	Error:     "Error",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindNames[k]
}

// Whitespace reports whether k is layout-only: a kind that carries no
// content of its own. [StripWhitespace] filters these kinds out.
func (k Kind) Whitespace() bool {
	switch k {
	case EndMarker, Newline, NL, Indent, Dedent, Comment:
		return true
	}
	return false
}

// Pos is a source position: 1-based line, 0-based column.
// Columns are byte offsets within the physical line.
type Pos struct {
	Line int
	Col  int
}

func (p Pos) String() string { return fmt.Sprintf("%d:%d", p.Line, p.Col) }

// Token is one lexical unit.
type Token struct {
	Kind  Kind
	Text  string
	Start Pos
	End   Pos

	// Line is the verbatim physical source line the token came from,
	// trailing newline included. For string literals spanning several
	// physical lines it is the concatenation of all of them. Detokenize
	// reads intra-line whitespace out of it.
	Line string
}

// Entry is one element of a [Statement]: either a [Token] or a [*Subexpr].
type Entry interface{ entry() }

func (Token) entry() {}

// Subexpr wraps the tokens inside one matched bracket pair, the bracket
// tokens themselves included. Nested pairs appear as nested Subexprs.
type Subexpr struct {
	Entries Statement
}

func (*Subexpr) entry() {}

// Statement holds the entries of one logical source line, its terminating
// Newline token included.
type Statement []Entry

// Clause pairs a statement with the block indented beneath it.
// Body is empty when the statement has no indented body.
type Clause struct {
	Stmt Statement
	Body Block
}

// Block is one indentation scope: an ordered list of clauses.
// The parser returns the top-level block; nested blocks hang off clauses.
type Block []Clause

// TokenError reports a structural or lexical parse error at a source
// position. All parse errors in this package are of this type.
type TokenError struct {
	Pos     Pos
	Message string
	Err     error // underlying error, if any
}

func (e *TokenError) Error() string {
	return fmt.Sprintf("%d:%d: %s", e.Pos.Line, e.Pos.Col, e.Message)
}

func (e *TokenError) Unwrap() error {
	return e.Err
}

// TokenSource is a stream of tokens ending with an [EndMarker] token
// followed by [io.EOF]. [*Scanner] is the canonical implementation.
type TokenSource interface {
	// Next returns the next token, or io.EOF after the end marker has
	// been returned.
	Next() (Token, error)
}

// ReadAll drains src into a slice. A token stream can be consumed only
// once; callers that need more than one pass over it should materialize it
// here first and then range over the slice.
func ReadAll(src TokenSource) ([]Token, error) {
	var toks []Token
	for {
		tok, err := src.Next()
		if errors.Is(err, io.EOF) {
			return toks, nil
		}
		if err != nil {
			return nil, err
		}
		toks = append(toks, tok)
	}
}

// Replay returns a TokenSource that replays a materialized token stream,
// as produced by [ReadAll]. The final token must be the stream's
// [EndMarker]; afterward Next returns [io.EOF].
func Replay(toks []Token) TokenSource {
	return &sliceSource{toks: toks}
}

type sliceSource struct {
	toks []Token
	pos  int
}

func (s *sliceSource) Next() (Token, error) {
	if s.pos >= len(s.toks) {
		return Token{}, io.EOF
	}
	tok := s.toks[s.pos]
	s.pos++
	return tok, nil
}

const tabSize = 8

// expandedWidth returns the display width of s with tab stops every
// tabSize columns, the way indentation levels are compared.
func expandedWidth(s string) int {
	w := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\t' {
			w = w/tabSize*tabSize + tabSize
		} else {
			w++
		}
	}
	return w
}
