package pydsl

import (
	"errors"
	"io"
	"testing"

	"kr.dev/diff"
)

// kindText is the shape most scanner tests compare: position checks live in
// TestTokenPositions, everything else only cares about kinds and texts.
type kindText struct {
	Kind Kind
	Text string
}

func scanKindTexts(t *testing.T, src string) []kindText {
	t.Helper()
	toks, err := ReadAll(TokenizeString(src))
	if err != nil {
		t.Fatalf("tokenize %q: %v", src, err)
	}
	out := make([]kindText, len(toks))
	for i, tok := range toks {
		out[i] = kindText{tok.Kind, tok.Text}
	}
	return out
}

func TestScanStatements(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []kindText
	}{
		{
			name:  "assignment",
			input: "x = 1\n",
			want: []kindText{
				{Name, "x"}, {Op, "="}, {Number, "1"}, {Newline, "\n"},
				{EndMarker, ""},
			},
		},
		{
			name:  "empty input",
			input: "",
			want:  []kindText{{EndMarker, ""}},
		},
		{
			name:  "blank and comment lines",
			input: "\n# note\n   \nx\n",
			want: []kindText{
				{NL, "\n"},
				{Comment, "# note"}, {NL, "\n"},
				{NL, "\n"},
				{Name, "x"}, {Newline, "\n"},
				{EndMarker, ""},
			},
		},
		{
			name:  "trailing comment",
			input: "x = 1  # note\n",
			want: []kindText{
				{Name, "x"}, {Op, "="}, {Number, "1"},
				{Comment, "# note"}, {Newline, "\n"},
				{EndMarker, ""},
			},
		},
		{
			name:  "indent and dedent",
			input: "if a:\n    b\nc\n",
			want: []kindText{
				{Name, "if"}, {Name, "a"}, {Op, ":"}, {Newline, "\n"},
				{Indent, "    "}, {Name, "b"}, {Newline, "\n"},
				{Dedent, ""},
				{Name, "c"}, {Newline, "\n"},
				{EndMarker, ""},
			},
		},
		{
			name:  "dedents at end of input",
			input: "if a:\n    if b:\n        c",
			want: []kindText{
				{Name, "if"}, {Name, "a"}, {Op, ":"}, {Newline, "\n"},
				{Indent, "    "}, {Name, "if"}, {Name, "b"}, {Op, ":"}, {Newline, "\n"},
				{Indent, "        "}, {Name, "c"},
				{Dedent, ""}, {Dedent, ""},
				{EndMarker, ""},
			},
		},
		{
			name:  "newlines inside brackets are NL",
			input: "f(a,\n  b)\n",
			want: []kindText{
				{Name, "f"}, {Op, "("}, {Name, "a"}, {Op, ","}, {NL, "\n"},
				{Name, "b"}, {Op, ")"}, {Newline, "\n"},
				{EndMarker, ""},
			},
		},
		{
			name:  "backslash continuation has no token",
			input: "a = 1 + \\\n    2\n",
			want: []kindText{
				{Name, "a"}, {Op, "="}, {Number, "1"}, {Op, "+"},
				{Number, "2"}, {Newline, "\n"},
				{EndMarker, ""},
			},
		},
		{
			name:  "tab indentation",
			input: "if a:\n\tb\n",
			want: []kindText{
				{Name, "if"}, {Name, "a"}, {Op, ":"}, {Newline, "\n"},
				{Indent, "\t"}, {Name, "b"}, {Newline, "\n"},
				{Dedent, ""},
				{EndMarker, ""},
			},
		},
		{
			name:  "unrecognized byte",
			input: "a ? b\n",
			want: []kindText{
				{Name, "a"}, {Error, "?"}, {Name, "b"}, {Newline, "\n"},
				{EndMarker, ""},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			diff.Test(t, t.Errorf, scanKindTexts(t, tt.input), tt.want)
		})
	}
}

func TestScanOperators(t *testing.T) {
	// Longest match wins.
	got := scanKindTexts(t, "a **= b // c >>= d ... e := f <> g -> h\n")
	want := []kindText{
		{Name, "a"}, {Op, "**="}, {Name, "b"}, {Op, "//"}, {Name, "c"},
		{Op, ">>="}, {Name, "d"}, {Op, "..."}, {Name, "e"}, {Op, ":="},
		{Name, "f"}, {Op, "<>"}, {Name, "g"}, {Op, "->"}, {Name, "h"},
		{Newline, "\n"}, {EndMarker, ""},
	}
	diff.Test(t, t.Errorf, got, want)
}

func TestScanNumbers(t *testing.T) {
	inputs := []string{
		"0", "7", "1_000", "0x1F", "0o17", "0b1010",
		"3.14", ".5", "10.", "1e10", "1e-5", "2.5e+3", "10L", "3j",
	}
	for _, in := range inputs {
		t.Run(in, func(t *testing.T) {
			got := scanKindTexts(t, in+"\n")
			want := []kindText{{Number, in}, {Newline, "\n"}, {EndMarker, ""}}
			diff.Test(t, t.Errorf, got, want)
		})
	}
}

func TestScanStrings(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string // text of the single expected String token
	}{
		{"single quotes", `x = 'ab'` + "\n", `'ab'`},
		{"double quotes", `x = "ab"` + "\n", `"ab"`},
		{"raw prefix", `x = r'a\b'` + "\n", `r'a\b'`},
		{"bytes prefix", `x = b"ab"` + "\n", `b"ab"`},
		{"two letter prefix", `x = rb'ab'` + "\n", `rb'ab'`},
		{"escaped quote", `x = 'a\'b'` + "\n", `'a\'b'`},
		{"embedded other quote", `x = "a'b"` + "\n", `"a'b"`},
		{"triple quoted", `x = '''ab'''` + "\n", `'''ab'''`},
		{"triple multi line", "x = '''a\nb'''\n", "'''a\nb'''"},
		{"escaped newline", "x = 'a\\\nb'\n", "'a\\\nb'"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			toks, err := ReadAll(TokenizeString(tt.input))
			if err != nil {
				t.Fatalf("tokenize: %v", err)
			}
			var strs []string
			for _, tok := range toks {
				if tok.Kind == String {
					strs = append(strs, tok.Text)
				}
			}
			diff.Test(t, t.Errorf, strs, []string{tt.want})
		})
	}
}

func TestScanStringErrors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantPos Pos
		wantMsg string
	}{
		{"unterminated", "x = 'ab\n", Pos{1, 4}, "EOL while scanning string literal"},
		{"unterminated at EOF", "x = 'ab", Pos{1, 4}, "EOL while scanning string literal"},
		{"open triple quote", "x = '''ab\n", Pos{1, 4}, "EOF in multi-line string"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadAll(TokenizeString(tt.input))
			var terr *TokenError
			if !errors.As(err, &terr) {
				t.Fatalf("got %v, want *TokenError", err)
			}
			diff.Test(t, t.Errorf, terr.Pos, tt.wantPos)
			diff.Test(t, t.Errorf, terr.Message, tt.wantMsg)
		})
	}
}

func TestTokenPositions(t *testing.T) {
	const src = "x = (1 +\n     2)\n"
	l1, l2 := "x = (1 +\n", "     2)\n"
	want := []Token{
		{Name, "x", Pos{1, 0}, Pos{1, 1}, l1},
		{Op, "=", Pos{1, 2}, Pos{1, 3}, l1},
		{Op, "(", Pos{1, 4}, Pos{1, 5}, l1},
		{Number, "1", Pos{1, 5}, Pos{1, 6}, l1},
		{Op, "+", Pos{1, 7}, Pos{1, 8}, l1},
		{NL, "\n", Pos{1, 8}, Pos{1, 9}, l1},
		{Number, "2", Pos{2, 5}, Pos{2, 6}, l2},
		{Op, ")", Pos{2, 6}, Pos{2, 7}, l2},
		{Newline, "\n", Pos{2, 7}, Pos{2, 8}, l2},
		{EndMarker, "", Pos{3, 0}, Pos{3, 0}, ""},
	}
	got, err := ReadAll(TokenizeString(src))
	if err != nil {
		t.Fatalf("tokenize: %v", err)
	}
	diff.Test(t, t.Errorf, got, want)
}

func TestMultiLineStringLine(t *testing.T) {
	// A literal spanning physical lines records their concatenation, so
	// Detokenize can recover whitespace around either end.
	toks, err := ReadAll(TokenizeString("s = '''a\nb''' + t\n"))
	if err != nil {
		t.Fatalf("tokenize: %v", err)
	}
	for _, tok := range toks {
		if tok.Kind == String {
			diff.Test(t, t.Errorf, tok.Line, "s = '''a\nb''' + t\n")
			diff.Test(t, t.Errorf, tok.Start, Pos{1, 4})
			diff.Test(t, t.Errorf, tok.End, Pos{2, 4})
			return
		}
	}
	t.Fatalf("no String token in %v", toks)
}

func TestNextAfterEndMarker(t *testing.T) {
	s := TokenizeString("x\n")
	for {
		tok, err := s.Next()
		if err != nil {
			t.Fatalf("unexpected error before EndMarker: %v", err)
		}
		if tok.Kind == EndMarker {
			break
		}
	}
	for range 3 {
		if _, err := s.Next(); !errors.Is(err, io.EOF) {
			t.Fatalf("Next after EndMarker = %v, want io.EOF", err)
		}
	}
}
