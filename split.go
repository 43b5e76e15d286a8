package pydsl

import (
	"iter"
	"slices"
)

// Flatten yields the tokens of b in source order, depth-first: each
// clause's statement (subexpressions expanded in place) followed by the
// tokens of its nested block.
func Flatten(b Block) iter.Seq[Token] {
	return func(yield func(Token) bool) {
		flattenBlock(b, yield)
	}
}

// FlattenStatement yields the tokens of one statement, subexpressions
// expanded in place.
func FlattenStatement(s Statement) iter.Seq[Token] {
	return func(yield func(Token) bool) {
		flattenStatement(s, yield)
	}
}

func flattenBlock(b Block, yield func(Token) bool) bool {
	for _, c := range b {
		if !flattenStatement(c.Stmt, yield) {
			return false
		}
		if !flattenBlock(c.Body, yield) {
			return false
		}
	}
	return true
}

func flattenStatement(s Statement, yield func(Token) bool) bool {
	for _, e := range s {
		switch e := e.(type) {
		case Token:
			if !yield(e) {
				return false
			}
		case *Subexpr:
			if !flattenStatement(e.Entries, yield) {
				return false
			}
		}
	}
	return true
}

// StripWhitespace filters layout-only tokens (newlines, indents, dedents,
// comments, the end marker) out of toks. See [Kind.Whitespace].
func StripWhitespace(toks iter.Seq[Token]) iter.Seq[Token] {
	return func(yield func(Token) bool) {
		for tok := range toks {
			if !tok.Kind.Whitespace() {
				if !yield(tok) {
					return
				}
			}
		}
	}
}

// Separator selects the token a [Partition] or [RPartition] call splits
// at. Build one with [ByText] or [ByKind].
type Separator struct {
	text   string
	kind   Kind
	byKind bool
}

// ByText matches tokens whose text is exactly text.
func ByText(text string) Separator {
	return Separator{text: text}
}

// ByKind matches tokens of the given kind, regardless of text.
func ByKind(kind Kind) Separator {
	return Separator{kind: kind, byKind: true}
}

// Match reports whether tok is a separator token.
func (s Separator) Match(tok Token) bool {
	if s.byKind {
		return tok.Kind == s.kind
	}
	return tok.Text == s.text
}

// Partition splits toks at the first token matching sep. It returns the
// tokens before the match, the match itself (empty when there is none, in
// which case before holds everything), and the unconsumed remainder.
//
// The remainder is a lazy, single-use continuation over the original
// sequence: splitting repeatedly from the left by partitioning the
// remainder again stays linear in the total input. A remainder that is
// started need not be drained; one that is never invoked holds the pull
// iterator open until the garbage collector reclaims it, which is fine
// for in-memory token sequences but worth draining when the source is a
// live stream.
func Partition(toks iter.Seq[Token], sep Separator) (before, match []Token, rest iter.Seq[Token]) {
	next, stop := iter.Pull(toks)
	for {
		tok, ok := next()
		if !ok {
			stop()
			return before, nil, func(yield func(Token) bool) {}
		}
		if sep.Match(tok) {
			match = []Token{tok}
			break
		}
		before = append(before, tok)
	}
	rest = func(yield func(Token) bool) {
		defer stop()
		for {
			tok, ok := next()
			if !ok || !yield(tok) {
				return
			}
		}
	}
	return before, match, rest
}

// RPartition splits toks at the last token matching sep, returning the
// tokens before the match, the match itself (empty when there is none, in
// which case before holds everything), and the tokens after it.
//
// It reverses the input, partitions, and reverses the pieces back: linear
// per call, but quadratic when used to peel tokens repeatedly off the same
// growing side. Callers splitting left to right should iterate on
// [Partition]'s lazy remainder instead.
func RPartition(toks []Token, sep Separator) (before, match, after []Token) {
	rev := slices.Clone(toks)
	slices.Reverse(rev)

	revAfter, match, restSeq := Partition(slices.Values(rev), sep)
	if len(match) == 0 {
		return slices.Clone(toks), nil, nil
	}
	after = revAfter
	slices.Reverse(after)
	before = slices.Collect(restSeq)
	slices.Reverse(before)
	return before, match, after
}
