package decls

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"blake.io/pydsl"
)

// declSketch is the comparison shape: token slices reduced to their texts.
type declSketch struct {
	Names   []string
	Expr    string
	Context string
	Bodies  int
	Pos     pydsl.Pos
}

func sketch(ds []Declaration) []declSketch {
	out := make([]declSketch, len(ds))
	for i, d := range ds {
		out[i] = declSketch{
			Names:   d.Names,
			Expr:    joinTexts(d.Expr),
			Context: joinTexts(d.Context),
			Bodies:  len(d.Body),
			Pos:     d.Pos,
		}
	}
	return out
}

func joinTexts(toks []pydsl.Token) string {
	parts := make([]string, len(toks))
	for i, tok := range toks {
		parts[i] = tok.Text
	}
	return strings.Join(parts, " ")
}

func extract(t *testing.T, src string) []Declaration {
	t.Helper()
	block, err := pydsl.ParseString(src)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	ds, err := Extract(block)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	return ds
}

func TestExtract(t *testing.T) {
	const src = `# service wiring

name = "svc"
db, replica = connect(dsn, retries=3)

cache = LRU(size) from containers:
    evict oldest
    stats on
`
	got := sketch(extract(t, src))
	want := []declSketch{
		{
			Names: []string{"name"},
			Expr:  `"svc"`,
			Pos:   pydsl.Pos{Line: 3, Col: 0},
		},
		{
			Names: []string{"db", "replica"},
			Expr:  "connect ( dsn , retries = 3 )",
			Pos:   pydsl.Pos{Line: 4, Col: 0},
		},
		{
			Names:   []string{"cache"},
			Expr:    "LRU ( size )",
			Context: "containers",
			Bodies:  2,
			Pos:     pydsl.Pos{Line: 6, Col: 0},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("declarations mismatch (-want +got):\n%s", diff)
	}
}

func TestExtractSkipsBlankClauses(t *testing.T) {
	got := extract(t, "# only a comment\n\n")
	if len(got) != 0 {
		t.Errorf("got %d declarations, want 0", len(got))
	}
}

func TestExtractBodyWithoutContext(t *testing.T) {
	got := sketch(extract(t, "svc = server(port):\n    tls on\n"))
	want := []declSketch{{
		Names:  []string{"svc"},
		Expr:   "server ( port )",
		Bodies: 1,
		Pos:    pydsl.Pos{Line: 1, Col: 0},
	}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("declarations mismatch (-want +got):\n%s", diff)
	}
}

func TestExtractFromInsideBrackets(t *testing.T) {
	// A `from` nested in brackets belongs to the expression; only a
	// top-level `from` introduces a context.
	got := sketch(extract(t, "x = f(a, from)\ny = pick(from, 1) from menu\n"))
	want := []declSketch{
		{
			Names: []string{"x"},
			Expr:  "f ( a , from )",
			Pos:   pydsl.Pos{Line: 1, Col: 0},
		},
		{
			Names:   []string{"y"},
			Expr:    "pick ( from , 1 )",
			Context: "menu",
			Pos:     pydsl.Pos{Line: 2, Col: 0},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("declarations mismatch (-want +got):\n%s", diff)
	}
}

func TestExtractErrors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantPos pydsl.Pos
		wantMsg string
	}{
		{
			name:    "no equals",
			input:   "foo bar\n",
			wantPos: pydsl.Pos{Line: 1, Col: 0},
			wantMsg: "expected '=' in declaration",
		},
		{
			name:    "non-name target",
			input:   "1 = x\n",
			wantPos: pydsl.Pos{Line: 1, Col: 0},
			wantMsg: "expected name before '='",
		},
		{
			name:    "two tokens before equals",
			input:   "a b = x\n",
			wantPos: pydsl.Pos{Line: 1, Col: 0},
			wantMsg: "expected name before '='",
		},
		{
			name:    "missing expression",
			input:   "a =\n",
			wantPos: pydsl.Pos{Line: 1, Col: 2},
			wantMsg: "missing expression after '='",
		},
		{
			name:    "missing context",
			input:   "a = b from\n",
			wantPos: pydsl.Pos{Line: 1, Col: 6},
			wantMsg: "missing context after 'from'",
		},
		{
			name:    "body without colon",
			input:   "a = b\n    c\n",
			wantPos: pydsl.Pos{Line: 1, Col: 2},
			wantMsg: "expected ':' before indented block",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			block, err := pydsl.ParseString(tt.input)
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			_, err = Extract(block)
			terr, ok := err.(*pydsl.TokenError)
			if !ok {
				t.Fatalf("got %T (%v), want *pydsl.TokenError", err, err)
			}
			if terr.Pos != tt.wantPos {
				t.Errorf("pos = %s, want %s", terr.Pos, tt.wantPos)
			}
			if terr.Message != tt.wantMsg {
				t.Errorf("message = %q, want %q", terr.Message, tt.wantMsg)
			}
		})
	}
}
