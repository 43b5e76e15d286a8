package pydsl

import (
	"iter"
	"strings"
)

// Detokenize converts a token sequence back to source text.
//
// The sequence may be anything: a flattened [Block], one statement, or a
// fragment. Re-scanning the result yields an equivalent token sequence.
// Intra-line whitespace is copied verbatim from each token's recorded
// source line, so tabs and runs of spaces survive; leading indentation is
// re-emitted as spaces of the same display width.
//
// The column of the first non-whitespace token becomes the base indent,
// and every line is shifted left by it. indent then adds that many extra
// leading spaces to every output line, which is how a fragment gets
// re-embedded at a different nesting depth. Physical lines the scanner
// consumed but that are not represented in the sequence (for example after
// [StripWhitespace]) come out as blank backslash-continuation lines.
func Detokenize(tokens iter.Seq[Token], indent int) string {
	var b strings.Builder
	lr, lc := 0, 0 // last emitted line and column
	last := ""     // source line of the previous token
	baseIndent := -1

	for tok := range tokens {
		sr, sc := tok.Start.Line, tok.Start.Col

		// The first line of input is the first line of output.
		if lr == 0 {
			lr = sr
		}

		// Entering a new line: finish the previous physical line, then
		// stand in for any lines with no tokens of their own.
		if sr > lr {
			if last != "" {
				if len(last) > lc {
					b.WriteString(last[lc:])
				}
				lr++
			}
			if sr > lr {
				writeSpaces(&b, indent)
				for range sr - lr {
					b.WriteString("\\\n")
				}
			}
			lc = 0
		}

		if lc == 0 {
			// Start of an output line. Indents are bookkeeping only: the
			// first real token re-establishes the indentation below.
			if tok.Kind == Indent {
				continue
			}
			cur := expandedWidth(prefixOf(tok.Line, sc))
			if baseIndent < 0 && !tok.Kind.Whitespace() {
				baseIndent = cur
			} else if baseIndent >= 0 && cur >= baseIndent {
				writeSpaces(&b, cur-baseIndent)
			}
			if indent > 0 {
				switch tok.Kind {
				case Dedent, EndMarker, NL, Newline:
				default:
					writeSpaces(&b, indent)
				}
			}
		} else if sc > lc {
			// Mid-line: copy the gap verbatim from the token's own line.
			if sc <= len(tok.Line) && lc <= sc {
				b.WriteString(tok.Line[lc:sc])
			}
		}

		b.WriteString(tok.Text)
		lr, lc, last = tok.End.Line, tok.End.Col, tok.Line
	}
	return b.String()
}

func prefixOf(line string, col int) string {
	if col > len(line) {
		return line
	}
	return line[:col]
}

func writeSpaces(b *strings.Builder, n int) {
	for range n {
		b.WriteByte(' ')
	}
}
