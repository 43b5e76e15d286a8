// Command pydsl inspects and rewrites sources written in Python-like DSLs.
//
//	pydsl tokens [file]          dump the token stream
//	pydsl tree [file]            parse and print the block tree as JSON
//	pydsl reindent -n N [file]   re-emit the source shifted N columns right
//	pydsl decls [file]           extract name = expr declarations
//
// Each command reads the named file, or stdin when no file is given.
// Errors are reported as line:col: message and exit nonzero.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"blake.io/pydsl"
	"blake.io/pydsl/decls"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "pydsl",
		Short:         "Parsing toolkit for Python-like DSLs",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	rootCmd.AddCommand(newTokensCmd())
	rootCmd.AddCommand(newTreeCmd())
	rootCmd.AddCommand(newReindentCmd())
	rootCmd.AddCommand(newDeclsCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// input opens the file named in args, or stdin when args is empty.
func input(args []string) (io.ReadCloser, string, error) {
	if len(args) == 0 {
		return io.NopCloser(os.Stdin), "<stdin>", nil
	}
	f, err := os.Open(args[0])
	return f, args[0], err
}

// prefix adds the input name to parse errors so they print as
// file:line:col: message.
func prefix(name string, err error) error {
	var terr *pydsl.TokenError
	if errors.As(err, &terr) {
		return fmt.Errorf("%s:%w", name, err)
	}
	return err
}

func newTokensCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tokens [file]",
		Short: "Dump the token stream, one token per line",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, name, err := input(args)
			if err != nil {
				return err
			}
			defer r.Close()

			toks, err := pydsl.ReadAll(pydsl.Tokenize(r))
			if err != nil {
				return prefix(name, err)
			}
			w := cmd.OutOrStdout()
			for _, tok := range toks {
				fmt.Fprintf(w, "%s-%s\t%s\t%q\n", tok.Start, tok.End, tok.Kind, tok.Text)
			}
			return nil
		},
	}
}

func newTreeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tree [file]",
		Short: "Parse and print the block tree as JSON",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, name, err := input(args)
			if err != nil {
				return err
			}
			defer r.Close()

			block, err := pydsl.ParseBlock(pydsl.Tokenize(r))
			if err != nil {
				return prefix(name, err)
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(blockJSON(block))
		},
	}
}

func newReindentCmd() *cobra.Command {
	var n int
	c := &cobra.Command{
		Use:   "reindent [file]",
		Short: "Re-emit the source with extra leading indentation",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, name, err := input(args)
			if err != nil {
				return err
			}
			defer r.Close()

			toks, err := pydsl.ReadAll(pydsl.Tokenize(r))
			if err != nil {
				return prefix(name, err)
			}
			fmt.Fprint(cmd.OutOrStdout(), pydsl.Detokenize(slices.Values(toks), n))
			return nil
		},
	}
	c.Flags().IntVarP(&n, "indent", "n", 0, "extra columns of indentation")
	return c
}

func newDeclsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "decls [file]",
		Short: "Extract name = expr declarations",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, name, err := input(args)
			if err != nil {
				return err
			}
			defer r.Close()

			block, err := pydsl.ParseBlock(pydsl.Tokenize(r))
			if err != nil {
				return prefix(name, err)
			}
			ds, err := decls.Extract(block)
			if err != nil {
				return prefix(name, err)
			}
			w := cmd.OutOrStdout()
			for _, d := range ds {
				fmt.Fprintf(w, "%s\t%s\t= %s", d.Pos, strings.Join(d.Names, ", "), tokenText(d.Expr))
				if len(d.Context) > 0 {
					fmt.Fprintf(w, " from %s", tokenText(d.Context))
				}
				if len(d.Body) > 0 {
					fmt.Fprintf(w, " (+%d nested)", len(d.Body))
				}
				fmt.Fprintln(w)
			}
			return nil
		},
	}
}

func tokenText(toks []pydsl.Token) string {
	parts := make([]string, len(toks))
	for i, tok := range toks {
		parts[i] = tok.Text
	}
	return strings.Join(parts, " ")
}

// JSON shapes for the tree command. The library tree uses an interface for
// statement entries; these give it a stable serialized form.

type jsonClause struct {
	Stmt []jsonEntry  `json:"stmt"`
	Body []jsonClause `json:"body,omitempty"`
}

type jsonEntry struct {
	// Exactly one of Token and Sub is set.
	Kind  string      `json:"kind,omitempty"`
	Text  string      `json:"text,omitempty"`
	Start string      `json:"start,omitempty"`
	End   string      `json:"end,omitempty"`
	Sub   []jsonEntry `json:"sub,omitempty"`
}

func blockJSON(b pydsl.Block) []jsonClause {
	out := make([]jsonClause, len(b))
	for i, c := range b {
		out[i] = jsonClause{
			Stmt: statementJSON(c.Stmt),
			Body: blockJSON(c.Body),
		}
	}
	return out
}

func statementJSON(s pydsl.Statement) []jsonEntry {
	var out []jsonEntry
	for _, e := range s {
		switch e := e.(type) {
		case pydsl.Token:
			out = append(out, jsonEntry{
				Kind:  e.Kind.String(),
				Text:  e.Text,
				Start: e.Start.String(),
				End:   e.End.String(),
			})
		case *pydsl.Subexpr:
			out = append(out, jsonEntry{Sub: statementJSON(e.Entries)})
		}
	}
	return out
}
