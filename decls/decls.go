// Package decls extracts declarations from parsed DSL blocks.
//
// A declaration is a top-level clause of the form
//
//	name[, name...] = expr [from context] [: indented block]
//
// For example:
//
//	cache = LRU(size) from stdlib.containers:
//	    evict oldest
//
// The package is a thin consumer of [blake.io/pydsl]: it works entirely
// through the public Block tree and the Partition/StripWhitespace
// utilities, and serves as usage guidance for them. Anything it can do,
// callers with different surface grammars can do the same way.
package decls

import (
	"slices"

	"blake.io/pydsl"
)

// Declaration is one parsed `name = expr` clause.
type Declaration struct {
	// Names are the declared names, in source order.
	Names []string

	// Expr holds the expression tokens between `=` and the end of the
	// statement, the trailing `from context` and `:` excluded.
	Expr []pydsl.Token

	// Context holds the tokens after `from`, empty when absent.
	Context []pydsl.Token

	// Body is the block indented beneath the declaration, if any.
	Body pydsl.Block

	// Pos is the position of the first token of the clause.
	Pos pydsl.Pos
}

// Extract reads a declaration out of every non-blank top-level clause of b.
// Clauses that do not fit the declaration form are reported as
// [*pydsl.TokenError] at the offending token.
func Extract(b pydsl.Block) ([]Declaration, error) {
	var out []Declaration
	for _, clause := range b {
		toks := slices.Collect(pydsl.StripWhitespace(pydsl.FlattenStatement(clause.Stmt)))
		if len(toks) == 0 {
			continue // comment-only or blank clause
		}
		d, err := parseDecl(toks, clause.Body)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

func parseDecl(toks []pydsl.Token, body pydsl.Block) (Declaration, error) {
	d := Declaration{Pos: toks[0].Start, Body: body}

	nameToks, eq, rest := pydsl.Partition(slices.Values(toks), pydsl.ByText("="))
	if len(eq) == 0 {
		return d, &pydsl.TokenError{Pos: d.Pos, Message: "expected '=' in declaration"}
	}

	names, err := parseNames(nameToks, eq[0])
	if err != nil {
		return d, err
	}
	d.Names = names

	expr := slices.Collect(rest)

	// A nested block implies a trailing colon; strip it.
	if len(body) > 0 {
		before, colon, after := pydsl.RPartition(expr, pydsl.ByText(":"))
		if len(colon) == 0 || len(after) > 0 {
			return d, &pydsl.TokenError{
				Pos:     eq[0].Start,
				Message: "expected ':' before indented block",
			}
		}
		expr = before
	}

	// Optional `from context` suffix. Only a top-level `from` counts; one
	// inside brackets is part of the expression.
	if head, from, ctx, ok := splitContext(expr); ok {
		if len(ctx) == 0 {
			return d, &pydsl.TokenError{Pos: from.Start, Message: "missing context after 'from'"}
		}
		d.Context = ctx
		expr = head
	}
	if len(expr) == 0 {
		return d, &pydsl.TokenError{Pos: eq[0].Start, Message: "missing expression after '='"}
	}
	d.Expr = expr
	return d, nil
}

// parseNames splits the left-hand side at commas, peeling from the left
// with Partition's lazy remainder.
func parseNames(toks []pydsl.Token, eq pydsl.Token) ([]string, error) {
	var names []string
	rest := slices.Values(toks)
	for {
		part, comma, r := pydsl.Partition(rest, pydsl.ByText(","))
		if len(part) != 1 || part[0].Kind != pydsl.Name {
			pos := eq.Start
			if len(part) > 0 {
				pos = part[0].Start
			} else if len(comma) > 0 {
				pos = comma[0].Start
			}
			return nil, &pydsl.TokenError{Pos: pos, Message: "expected name before '='"}
		}
		names = append(names, part[0].Text)
		if len(comma) == 0 {
			return names, nil
		}
		rest = r
	}
}

// splitContext splits expr at the first `from` name outside any brackets.
// The expression tokens arrive flattened, so bracket depth is recounted
// here. String literals cannot collide: their token text includes the
// quotes.
func splitContext(expr []pydsl.Token) (head []pydsl.Token, from pydsl.Token, ctx []pydsl.Token, ok bool) {
	depth := 0
	for i, tok := range expr {
		switch {
		case depth == 0 && tok.Kind == pydsl.Name && tok.Text == "from":
			return expr[:i], tok, expr[i+1:], true
		case tok.Kind == pydsl.Op:
			switch tok.Text {
			case "(", "[", "{":
				depth++
			case ")", "]", "}":
				depth--
			}
		}
	}
	return nil, pydsl.Token{}, nil, false
}
