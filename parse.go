package pydsl

import (
	"errors"
	"io"
	"slices"
	"strings"
)

var matchingOpen = map[string]string{")": "(", "]": "[", "}": "{"}

func isOpenBracket(tok Token) bool {
	return tok.Kind == Op && (tok.Text == "(" || tok.Text == "[" || tok.Text == "{")
}

// ParseBlock consumes src in a single pass and builds the statement tree.
//
// The returned [Block] lists the top-level clauses in source order; each
// clause's Body holds the block indented beneath its statement, and tokens
// between matched brackets are grouped into [Subexpr] entries. Statements
// never share structure: the caller owns the whole tree.
//
// ParseBlock reports, with positions:
//   - "unexpected indent" when an indent has no statement to attach to
//   - "unindent does not match any outer indentation level"
//   - "unmatched X" when a closing bracket does not pair with the open one
//   - "unclosed parentheses ..." when input ends inside brackets,
//     innermost first
//
// Lexical errors from src pass through unchanged. A stream that ends
// without an [EndMarker], or whose indents and dedents do not balance, is a
// bug in the token source and panics.
func ParseBlock(src TokenSource) (Block, error) {
	var (
		output Block
		scopes []*Block // enclosing blocks, innermost last
		saved  []*Statement
		parens []string // open bracket texts, innermost last
	)
	indents := []int{0}
	scope := &output
	var stmt Statement
	cur := &stmt

	for {
		tok, err := src.Next()
		if errors.Is(err, io.EOF) {
			panic("pydsl: token stream ended without EndMarker")
		}
		if err != nil {
			return nil, err
		}

		switch tok.Kind {
		case Dedent, EndMarker: // exiting a scope
			if tok.Kind == Dedent {
				prefix := tok.Line
				if tok.Start.Col <= len(prefix) {
					prefix = prefix[:tok.Start.Col]
				}
				if !slices.Contains(indents, expandedWidth(prefix)) {
					return nil, &TokenError{
						Pos:     tok.Start,
						Message: "unindent does not match any outer indentation level",
					}
				}
				indents = indents[:len(indents)-1]
			} else if len(parens) > 0 {
				return nil, &TokenError{
					Pos:     tok.Start,
					Message: "unclosed parentheses " + strings.Join(reversed(parens), " "),
				}
			}

			if len(stmt) > 0 {
				*scope = append(*scope, Clause{Stmt: stmt})
				stmt = nil
				cur = &stmt
			}
			if tok.Kind == Dedent {
				if len(scopes) == 0 {
					panic("pydsl: extra Dedent tokens")
				}
				scope = scopes[len(scopes)-1]
				scopes = scopes[:len(scopes)-1]
			} else {
				if len(scopes) > 0 {
					panic("pydsl: missing Dedent tokens")
				}
				return output, nil
			}

		case Indent:
			if len(*scope) == 0 {
				return nil, &TokenError{Pos: tok.Start, Message: "unexpected indent"}
			}
			scopes = append(scopes, scope)
			indents = append(indents, expandedWidth(tok.Text))
			// Fill in the block under the preceding statement.
			scope = &(*scope)[len(*scope)-1].Body

		default:
			switch {
			case isOpenBracket(tok):
				parens = append(parens, tok.Text)
				sub := &Subexpr{Entries: Statement{tok}}
				*cur = append(*cur, sub)
				saved = append(saved, cur)
				cur = &sub.Entries

			case tok.Kind == Op && matchingOpen[tok.Text] != "":
				if len(parens) == 0 || parens[len(parens)-1] != matchingOpen[tok.Text] {
					return nil, &TokenError{Pos: tok.Start, Message: "unmatched " + tok.Text}
				}
				parens = parens[:len(parens)-1]
				*cur = append(*cur, tok)
				cur = saved[len(saved)-1]
				saved = saved[:len(saved)-1]

			case tok.Kind == Newline && len(parens) == 0:
				*cur = append(*cur, tok)
				*scope = append(*scope, Clause{Stmt: stmt})
				stmt = nil
				cur = &stmt

			default:
				*cur = append(*cur, tok)
			}
		}
	}
}

// ParseString tokenizes and parses text in one call.
func ParseString(text string) (Block, error) {
	return ParseBlock(TokenizeString(text))
}

// ParseFile tokenizes and parses the named file in one call.
func ParseFile(name string) (Block, error) {
	s, err := TokenizeFile(name)
	if err != nil {
		return nil, err
	}
	return ParseBlock(s)
}

func reversed(ss []string) []string {
	out := slices.Clone(ss)
	slices.Reverse(out)
	return out
}
