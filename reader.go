package pydsl

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/transform"
)

// bom is the UTF-8 byte-order marker.
const bom = "\xef\xbb\xbf"

// Compiled once; detection runs on every stream.
var (
	// bareLine matches lines that may carry an encoding declaration:
	// blank or comment-only. Lines with real code never trigger
	// detection. The BOM is stripped before matching.
	bareLine = regexp.MustCompile(`^[ \t\f]*(?:#.*)?\r?\n?$`)

	// findEncoding locates the encoding name in a declaration comment.
	findEncoding = regexp.MustCompile(`coding[:=][ \t]*([-\w.]+)`)

	// codecAlias splits spellings like "iso8859-1" that Python codec
	// aliases accept but the IANA index does not; re-inserting the
	// hyphen after the leading letters gives the registered form.
	codecAlias = regexp.MustCompile(`^([a-z]+)(\d.*)$`)
)

// sourceReader yields the physical lines of a byte stream, applying BOM and
// encoding-declaration detection to the first two bare lines. Once an
// encoding is declared, the rest of the stream is decoded to UTF-8 through
// a decoding adapter; lines read before the declaration pass through raw.
type sourceReader struct {
	br      *bufio.Reader
	lno     int  // line number of the next line to be read (1-based)
	bom     bool // stream began with a UTF-8 BOM
	scanned bool // declaration scanning finished
	err     error
}

func newSourceReader(r io.Reader) *sourceReader {
	return &sourceReader{br: bufio.NewReader(r), lno: 1}
}

// next returns the next physical line, trailing newline included when
// present, or io.EOF when the stream is exhausted.
func (r *sourceReader) next() (string, error) {
	if r.err != nil {
		return "", r.err
	}
	line, err := r.br.ReadString('\n')
	if err != nil && line == "" {
		r.err = err
		return "", err
	}
	if !r.scanned {
		line, err = r.scan(line)
		if err != nil {
			r.err = err
			return "", err
		}
	}
	r.lno++
	return line, nil
}

// scan inspects one of the first two lines for a BOM or an encoding
// declaration. It returns the line to yield (BOM stripped) and switches the
// underlying reader to a decoding one when a non-trivial encoding is found.
func (r *sourceReader) scan(line string) (string, error) {
	if r.lno == 1 && strings.HasPrefix(line, bom) {
		r.bom = true
		line = line[len(bom):]
	}
	if !bareLine.MatchString(line) {
		// Real code before any declaration: stop looking.
		r.scanned = true
		return line, nil
	}

	if strings.Contains(line, "coding") {
		if m := findEncoding.FindStringSubmatchIndex(line); m != nil {
			name := line[m[2]:m[3]]
			if r.bom && !isUTF8Name(name) {
				return "", &TokenError{
					Pos:     Pos{Line: r.lno, Col: m[2]},
					Message: fmt.Sprintf("UTF-8 BOM, but %q encoding requested", name),
				}
			}
			if err := r.switchEncoding(name, Pos{Line: r.lno, Col: m[2]}); err != nil {
				return "", err
			}
			r.scanned = true
			return line, nil
		}
	}

	if r.lno >= 2 {
		r.scanned = true
	}
	return line, nil
}

// switchEncoding wraps the remaining stream in a decoder for the named
// encoding. The scanner keeps reading lines the same way and never learns
// that the bytes changed underneath it.
func (r *sourceReader) switchEncoding(name string, pos Pos) error {
	if isUTF8Name(name) {
		return nil
	}
	enc, err := lookupEncoding(name)
	if err != nil {
		return &TokenError{
			Pos:     pos,
			Message: fmt.Sprintf("unknown encoding %q", name),
			Err:     err,
		}
	}
	if enc == nil {
		return nil
	}
	r.br = bufio.NewReader(transform.NewReader(r.br, enc.NewDecoder()))
	return nil
}

func isUTF8Name(name string) bool {
	switch strings.ToLower(name) {
	case "utf8", "utf-8":
		return true
	}
	return false
}

// lookupEncoding resolves a declared encoding name to a decoder. Names are
// tried as written, lowercased, with separators stripped, and with a hyphen
// restored after the leading letters, so the common spellings ("latin-1",
// "Latin1", "ISO-8859-1", "iso8859-1") all resolve. A nil, nil return means
// the encoding is a UTF-8 alias and needs no decoding.
func lookupEncoding(name string) (encoding.Encoding, error) {
	lower := strings.ToLower(name)
	stripped := strings.Map(func(c rune) rune {
		if c == '-' || c == '_' || c == '.' {
			return -1
		}
		return c
	}, lower)
	switch stripped {
	case "utf8", "ascii", "usascii":
		return nil, nil
	}

	candidates := []string{name, lower, stripped}
	if m := codecAlias.FindStringSubmatch(lower); m != nil {
		h := m[1] + "-" + m[2]
		candidates = append(candidates, h, strings.ToUpper(h))
	}

	var firstErr error
	for _, candidate := range candidates {
		enc, err := ianaindex.IANA.Encoding(candidate)
		if err == nil && enc != nil {
			return enc, nil
		}
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if firstErr == nil {
		firstErr = errors.New("no decoder available")
	}
	return nil, firstErr
}
