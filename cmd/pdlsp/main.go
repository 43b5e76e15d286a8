// Command pdlsp is the Language Server Protocol server for Python-like
// DSL files parsed by blake.io/pydsl.
//
// It communicates over stdin/stdout and publishes parse errors (unclosed
// or mismatched brackets, bad indentation, malformed literals) as
// diagnostics while you type. Configure your editor to run pdlsp as the
// language server for your DSL's file extension.
//
// Structure is all it knows: there is no completion and no semantic
// analysis, because the underlying toolkit recovers structure and
// preserves text without interpreting meaning.
package main

import (
	"errors"
	"os"

	"github.com/tliron/commonlog"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
	"github.com/tliron/glsp/server"

	_ "github.com/tliron/commonlog/simple"

	"blake.io/pydsl"
)

const lsName = "pdlsp"

var version = "0.1.0"

var log = commonlog.GetLogger(lsName)

func main() {
	verbosity := 0
	for _, arg := range os.Args[1:] {
		if arg == "-v" || arg == "--verbose" {
			verbosity = 2
		}
	}
	commonlog.Configure(verbosity, nil)

	ls := newLSPServer()
	log.Noticef("%s %s listening on stdio", lsName, version)
	if err := ls.server.RunStdio(); err != nil {
		log.Criticalf("%v", err)
		os.Exit(1)
	}
}

type lspServer struct {
	handler protocol.Handler
	server  *server.Server
	docs    map[protocol.DocumentUri]string
}

func newLSPServer() *lspServer {
	ls := &lspServer{
		docs: make(map[protocol.DocumentUri]string),
	}
	ls.handler = protocol.Handler{
		Initialize:            ls.initialize,
		Initialized:           ls.initialized,
		Shutdown:              ls.shutdown,
		SetTrace:              ls.setTrace,
		TextDocumentDidOpen:   ls.didOpen,
		TextDocumentDidChange: ls.didChange,
		TextDocumentDidClose:  ls.didClose,
	}
	ls.server = server.NewServer(&ls.handler, lsName, false)
	return ls
}

func (ls *lspServer) initialize(ctx *glsp.Context, params *protocol.InitializeParams) (any, error) {
	capabilities := ls.handler.CreateServerCapabilities()
	capabilities.TextDocumentSync = &protocol.TextDocumentSyncOptions{
		OpenClose: boolPtr(true),
		Change:    syncKindPtr(protocol.TextDocumentSyncKindFull),
	}
	return protocol.InitializeResult{
		Capabilities: capabilities,
		ServerInfo: &protocol.InitializeResultServerInfo{
			Name:    lsName,
			Version: &version,
		},
	}, nil
}

func (ls *lspServer) initialized(ctx *glsp.Context, params *protocol.InitializedParams) error {
	return nil
}

func (ls *lspServer) shutdown(ctx *glsp.Context) error {
	return nil
}

func (ls *lspServer) setTrace(ctx *glsp.Context, params *protocol.SetTraceParams) error {
	protocol.SetTraceValue(params.Value)
	return nil
}

func (ls *lspServer) didOpen(ctx *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	ls.docs[params.TextDocument.URI] = params.TextDocument.Text
	ls.publishDiagnostics(ctx, params.TextDocument.URI)
	return nil
}

func (ls *lspServer) didChange(ctx *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	uri := params.TextDocument.URI
	if _, ok := ls.docs[uri]; !ok {
		return nil
	}
	for _, change := range params.ContentChanges {
		if whole, ok := change.(protocol.TextDocumentContentChangeEventWhole); ok {
			ls.docs[uri] = whole.Text
		}
	}
	ls.publishDiagnostics(ctx, uri)
	return nil
}

func (ls *lspServer) didClose(ctx *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	delete(ls.docs, params.TextDocument.URI)
	return nil
}

// publishDiagnostics reparses the document and reports the error, if any.
// An empty diagnostics list clears earlier markers.
func (ls *lspServer) publishDiagnostics(ctx *glsp.Context, uri protocol.DocumentUri) {
	diagnostics := []protocol.Diagnostic{}
	if d, ok := diagnoseText(ls.docs[uri]); ok {
		diagnostics = append(diagnostics, d)
	}
	ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: diagnostics,
	})
}

// diagnoseText parses text and converts a parse error to a diagnostic.
func diagnoseText(text string) (protocol.Diagnostic, bool) {
	_, err := pydsl.ParseString(text)
	if err == nil {
		return protocol.Diagnostic{}, false
	}

	var terr *pydsl.TokenError
	message := err.Error()
	pos := protocol.Position{}
	if errors.As(err, &terr) {
		message = terr.Message
		// LSP lines are 0-based; pydsl lines are 1-based.
		pos = protocol.Position{
			Line:      uint32(max(terr.Pos.Line-1, 0)),
			Character: uint32(max(terr.Pos.Col, 0)),
		}
	}

	severity := protocol.DiagnosticSeverityError
	source := lsName
	return protocol.Diagnostic{
		Range:    protocol.Range{Start: pos, End: protocol.Position{Line: pos.Line, Character: pos.Character + 1}},
		Severity: &severity,
		Source:   &source,
		Message:  message,
	}, true
}

func boolPtr(b bool) *bool { return &b }

func syncKindPtr(k protocol.TextDocumentSyncKind) *protocol.TextDocumentSyncKind { return &k }
