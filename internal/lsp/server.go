package lsp

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/leapstack-labs/oraclelint/internal/notifier"
	"github.com/leapstack-labs/oraclelint/internal/service"
)

// ErrExitWithoutShutdown is returned by Run when the client sent exit
// before shutdown. Editors expect the process to exit with status 1.
var ErrExitWithoutShutdown = errors.New("exit received before shutdown")

// Session is the lint session the server drives.
type Session interface {
	Activate(ctx context.Context, roots []string) error
	SetRoots(roots []string) error
	Lint(ctx context.Context, path, content string) ([]service.Diagnostic, error)
	Deactivate(ctx context.Context)
	LintOnChange() bool
	SetLintOnChange(enabled bool)
	SetStopOnExit(enabled bool)
	Notifier() *notifier.Notifier
}

// Server implements the Language Server Protocol on top of a lint Session.
type Server struct {
	documents *DocumentStore
	session   Session
	version   string

	// Workspace roots as filesystem paths
	roots   map[string]struct{}
	rootsMu sync.Mutex

	// I/O
	reader  *bufio.Reader
	writer  io.Writer
	writeMu sync.Mutex

	// Running lints by document URI
	lints   map[string]*lintJob
	lintsMu sync.Mutex
	lintWG  sync.WaitGroup

	logger *slog.Logger

	stateMu     sync.RWMutex
	initialized bool
	shutdown    bool
	exited      bool
}

// NewServer creates a new LSP server instance.
func NewServer(reader io.Reader, writer io.Writer, sess Session) *Server {
	return NewServerWithLogger(reader, writer, sess, nil)
}

// NewServerWithLogger creates a new LSP server instance with a custom logger.
func NewServerWithLogger(reader io.Reader, writer io.Writer, sess Session, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	return &Server{
		documents: NewDocumentStore(),
		session:   sess,
		roots:     make(map[string]struct{}),
		lints:     make(map[string]*lintJob),
		reader:    bufio.NewReader(reader),
		writer:    writer,
		logger:    logger,
	}
}

// SetVersion sets the version reported in the initialize response.
func (s *Server) SetVersion(v string) {
	s.version = v
}

// Run processes JSON-RPC messages until the client sends exit or closes
// the stream. Running lints are cancelled and awaited, then the session
// is deactivated before Run returns.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("PL/SQL lint LSP server starting")

	messages := s.session.Notifier().Subscribe()
	forwarded := make(chan struct{})
	go s.forwardMessages(messages, forwarded)
	defer func() {
		s.cancelLints()
		s.lintWG.Wait()
		s.session.Deactivate(context.WithoutCancel(ctx))
		s.session.Notifier().Unsubscribe(messages)
		<-forwarded
	}()

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		msg, err := s.readMessage()
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				s.logger.Info("Client disconnected")
				return nil
			}
			s.logger.Error("Error reading message", "error", err)
			continue
		}

		if err := s.handleMessage(ctx, msg); err != nil {
			s.logger.Error("Error handling message", "method", msg.Method, "error", err)
		}

		s.stateMu.RLock()
		exited, shutdown := s.exited, s.shutdown
		s.stateMu.RUnlock()
		if exited {
			if !shutdown {
				return ErrExitWithoutShutdown
			}
			return nil
		}
	}
}

// forwardMessages relays notifier messages as window/showMessage until
// messages is closed.
func (s *Server) forwardMessages(messages <-chan notifier.Message, done chan<- struct{}) {
	defer close(done)
	for msg := range messages {
		s.sendNotification("window/showMessage", &ShowMessageParams{
			Type:    toMessageType(msg.Level),
			Message: msg.Text,
		})
	}
}

func toMessageType(level notifier.Level) MessageType {
	switch level {
	case notifier.LevelError:
		return MessageTypeError
	case notifier.LevelWarning:
		return MessageTypeWarning
	default:
		return MessageTypeInfo
	}
}

// JSONRPCMessage represents a JSON-RPC 2.0 message.
type JSONRPCMessage struct {
	JSONRPC string           `json:"jsonrpc"`
	ID      *json.RawMessage `json:"id,omitempty"`
	Method  string           `json:"method,omitempty"`
	Params  json.RawMessage  `json:"params,omitempty"`
	Result  json.RawMessage  `json:"result,omitempty"`
	Error   *JSONRPCError    `json:"error,omitempty"`
}

// JSONRPCError represents a JSON-RPC error.
type JSONRPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// JSON-RPC error codes.
const (
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
)

// readMessage reads a JSON-RPC message from the input stream.
func (s *Server) readMessage() (*JSONRPCMessage, error) {
	var contentLength int
	for {
		line, err := s.reader.ReadString('\n')
		if err != nil {
			return nil, err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			break // End of headers
		}

		if strings.HasPrefix(line, "Content-Length: ") {
			lengthStr := strings.TrimPrefix(line, "Content-Length: ")
			contentLength, err = strconv.Atoi(lengthStr)
			if err != nil {
				return nil, fmt.Errorf("invalid Content-Length: %w", err)
			}
		}
	}

	if contentLength == 0 {
		return nil, fmt.Errorf("missing Content-Length header")
	}

	body := make([]byte, contentLength)
	if _, err := io.ReadFull(s.reader, body); err != nil {
		return nil, fmt.Errorf("error reading body: %w", err)
	}

	var msg JSONRPCMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return nil, fmt.Errorf("error parsing message: %w", err)
	}

	return &msg, nil
}

// sendResponse sends a JSON-RPC response.
func (s *Server) sendResponse(id *json.RawMessage, result any, err *JSONRPCError) {
	msg := JSONRPCMessage{
		JSONRPC: "2.0",
		ID:      id,
	}

	if err != nil {
		msg.Error = err
	} else {
		resultBytes, _ := json.Marshal(result)
		msg.Result = resultBytes
	}

	s.writeMessage(&msg)
}

// sendNotification sends a JSON-RPC notification (no ID).
func (s *Server) sendNotification(method string, params any) {
	msg := JSONRPCMessage{
		JSONRPC: "2.0",
		Method:  method,
	}

	if params != nil {
		paramsBytes, _ := json.Marshal(params)
		msg.Params = paramsBytes
	}

	s.writeMessage(&msg)
}

// writeMessage writes a JSON-RPC message to the output stream.
func (s *Server) writeMessage(msg *JSONRPCMessage) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	body, err := json.Marshal(msg)
	if err != nil {
		s.logger.Error("Error marshaling message", "error", err)
		return
	}

	header := fmt.Sprintf("Content-Length: %d\r\n\r\n", len(body))
	_, _ = s.writer.Write([]byte(header))
	_, _ = s.writer.Write(body)
}

// handleMessage dispatches a message to the appropriate handler.
func (s *Server) handleMessage(ctx context.Context, msg *JSONRPCMessage) error {
	s.logger.Debug("Received", "method", msg.Method)

	s.stateMu.RLock()
	shutdown := s.shutdown
	s.stateMu.RUnlock()
	if shutdown && msg.Method != "exit" {
		if msg.ID != nil {
			s.sendResponse(msg.ID, nil, &JSONRPCError{Code: codeInvalidRequest, Message: "server is shut down"})
		}
		return nil
	}

	switch msg.Method {
	case "initialize":
		return s.handleInitialize(msg)
	case "initialized":
		return s.handleInitialized(ctx)
	case "shutdown":
		return s.handleShutdown(ctx, msg)
	case "exit":
		return s.handleExit()
	case "textDocument/didOpen":
		return s.handleDidOpen(ctx, msg)
	case "textDocument/didClose":
		return s.handleDidClose(msg)
	case "textDocument/didChange":
		return s.handleDidChange(ctx, msg)
	case "textDocument/didSave":
		return s.handleDidSave(ctx, msg)
	case "workspace/didChangeWorkspaceFolders":
		return s.handleDidChangeWorkspaceFolders(ctx, msg)
	case "workspace/didChangeConfiguration":
		return s.handleDidChangeConfiguration(msg)
	default:
		if msg.ID != nil {
			s.sendResponse(msg.ID, nil, &JSONRPCError{
				Code:    codeMethodNotFound,
				Message: "Method not found: " + msg.Method,
			})
		}
		return nil
	}
}

// --- Lifecycle handlers ---

func (s *Server) handleInitialize(msg *JSONRPCMessage) error {
	var params InitializeParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		s.sendResponse(msg.ID, nil, &JSONRPCError{Code: codeInvalidParams, Message: err.Error()})
		return err
	}

	s.rootsMu.Lock()
	for _, folder := range params.WorkspaceFolders {
		s.roots[URIToPath(folder.URI)] = struct{}{}
	}
	if len(params.WorkspaceFolders) == 0 && params.RootURI != "" {
		s.roots[URIToPath(params.RootURI)] = struct{}{}
	}
	s.rootsMu.Unlock()
	s.logger.Info("Workspace roots", "roots", s.rootList())

	result := InitializeResult{
		Capabilities: ServerCapabilities{
			TextDocumentSync: &TextDocumentSyncOptions{
				OpenClose: true,
				Change:    TextDocumentSyncKindFull,
				Save:      &SaveOptions{IncludeText: true},
			},
			Workspace: &WorkspaceCapabilities{
				WorkspaceFolders: WorkspaceFoldersServerCapabilities{
					Supported:           true,
					ChangeNotifications: true,
				},
			},
		},
		ServerInfo: &ServerInfo{Name: "oraclelint", Version: s.version},
	}

	s.sendResponse(msg.ID, result, nil)
	return nil
}

func (s *Server) handleInitialized(ctx context.Context) error {
	s.stateMu.Lock()
	already := s.initialized
	s.initialized = true
	s.stateMu.Unlock()
	if already {
		return nil
	}

	if err := s.session.Activate(ctx, s.rootList()); err != nil {
		return fmt.Errorf("activate session: %w", err)
	}
	s.logger.Info("Server initialized")
	return nil
}

func (s *Server) handleShutdown(ctx context.Context, msg *JSONRPCMessage) error {
	s.stateMu.Lock()
	s.shutdown = true
	s.stateMu.Unlock()

	s.cancelLints()
	s.lintWG.Wait()
	s.session.Deactivate(ctx)

	s.sendResponse(msg.ID, nil, nil)
	s.logger.Info("Server shutdown")
	return nil
}

func (s *Server) handleExit() error {
	s.stateMu.Lock()
	s.exited = true
	s.stateMu.Unlock()

	s.logger.Info("Server exit")
	return nil
}

// --- Document handlers ---

func (s *Server) handleDidOpen(ctx context.Context, msg *JSONRPCMessage) error {
	var params DidOpenTextDocumentParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return err
	}

	s.documents.Open(params.TextDocument.URI, params.TextDocument.Text, params.TextDocument.Version)
	s.logger.Debug("Opened", "uri", params.TextDocument.URI)

	s.scheduleLint(ctx, params.TextDocument.URI)
	return nil
}

func (s *Server) handleDidClose(msg *JSONRPCMessage) error {
	var params DidCloseTextDocumentParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return err
	}

	s.documents.Close(params.TextDocument.URI)
	s.cancelLint(params.TextDocument.URI)
	s.logger.Debug("Closed", "uri", params.TextDocument.URI)

	s.clearDiagnostics(params.TextDocument.URI)
	return nil
}

func (s *Server) handleDidChange(ctx context.Context, msg *JSONRPCMessage) error {
	var params DidChangeTextDocumentParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return err
	}

	// Full sync: the last change holds the whole document.
	if len(params.ContentChanges) > 0 {
		lastChange := params.ContentChanges[len(params.ContentChanges)-1]
		s.documents.Update(params.TextDocument.URI, lastChange.Text, params.TextDocument.Version)
	}

	if s.session.LintOnChange() {
		s.scheduleLint(ctx, params.TextDocument.URI)
	}
	return nil
}

func (s *Server) handleDidSave(ctx context.Context, msg *JSONRPCMessage) error {
	var params DidSaveTextDocumentParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return err
	}

	uri := params.TextDocument.URI
	if params.Text != nil {
		if doc := s.documents.Get(uri); doc != nil {
			s.documents.Update(uri, *params.Text, doc.Version)
		}
	}
	s.logger.Debug("Saved", "uri", uri)

	s.scheduleLint(ctx, uri)
	return nil
}

// --- Workspace handlers ---

// handleDidChangeWorkspaceFolders re-syncs the session roots and relints
// every open document, since its deepest project config may have changed.
func (s *Server) handleDidChangeWorkspaceFolders(ctx context.Context, msg *JSONRPCMessage) error {
	var params DidChangeWorkspaceFoldersParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return err
	}

	s.rootsMu.Lock()
	for _, folder := range params.Event.Removed {
		delete(s.roots, URIToPath(folder.URI))
	}
	for _, folder := range params.Event.Added {
		s.roots[URIToPath(folder.URI)] = struct{}{}
	}
	s.rootsMu.Unlock()

	roots := s.rootList()
	s.logger.Info("Workspace roots changed", "roots", roots)
	err := s.session.SetRoots(roots)
	for _, uri := range s.documents.List() {
		s.scheduleLint(ctx, uri)
	}
	return err
}

// settingsSection is the key editors nest oraclelint settings under.
const settingsSection = "oraclelint"

func (s *Server) handleDidChangeConfiguration(msg *JSONRPCMessage) error {
	var params DidChangeConfigurationParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return err
	}
	settings, err := decodeSettings(params.Settings)
	if err != nil {
		return err
	}

	if settings.LintOnChange != nil {
		s.session.SetLintOnChange(*settings.LintOnChange)
	}
	if settings.StopOnExit != nil {
		s.session.SetStopOnExit(*settings.StopOnExit)
	}
	s.logger.Info("Configuration changed", "lint_on_change", s.session.LintOnChange())
	return nil
}

// decodeSettings reads the oraclelint section of raw, falling back to
// the top level when the section is absent.
func decodeSettings(raw json.RawMessage) (WorkspaceSettings, error) {
	var settings WorkspaceSettings
	if len(raw) == 0 || string(raw) == "null" {
		return settings, nil
	}

	var sections map[string]json.RawMessage
	if err := json.Unmarshal(raw, &sections); err != nil {
		return settings, fmt.Errorf("invalid settings: %w", err)
	}
	if section, ok := sections[settingsSection]; ok {
		raw = section
	}
	if err := json.Unmarshal(raw, &settings); err != nil {
		return settings, fmt.Errorf("invalid settings: %w", err)
	}
	return settings, nil
}

func (s *Server) rootList() []string {
	s.rootsMu.Lock()
	defer s.rootsMu.Unlock()

	roots := make([]string, 0, len(s.roots))
	for r := range s.roots {
		roots = append(roots, r)
	}
	sort.Strings(roots)
	return roots
}
