package lsp

import (
	"net/url"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// Document is an open text document in the editor.
type Document struct {
	URI     string // file:///path/to/pkg.sql
	Path    string // filesystem path the lint server sees
	Content string
	Version int
	Lines   []int // byte offsets of line starts
}

// DocumentStore holds the open documents.
type DocumentStore struct {
	mu        sync.RWMutex
	documents map[string]*Document
}

// NewDocumentStore creates a new document store.
func NewDocumentStore() *DocumentStore {
	return &DocumentStore{
		documents: make(map[string]*Document),
	}
}

// Open adds or replaces a document and returns a snapshot of it.
func (s *DocumentStore) Open(uri string, content string, version int) *Document {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc := &Document{
		URI:     uri,
		Path:    URIToPath(uri),
		Content: content,
		Version: version,
		Lines:   computeLineOffsets(content),
	}
	s.documents[uri] = doc
	snapshot := *doc
	return &snapshot
}

// Close removes a document from the store.
func (s *DocumentStore) Close(uri string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.documents, uri)
}

// Get returns a snapshot of the document, or nil if it is not open.
func (s *DocumentStore) Get(uri string) *Document {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.documents[uri]
	if !ok {
		return nil
	}
	snapshot := *doc
	return &snapshot
}

// Update replaces an open document's content. Updates for documents that
// are not open are ignored.
func (s *DocumentStore) Update(uri string, content string, version int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if doc, ok := s.documents[uri]; ok {
		doc.Content = content
		doc.Version = version
		doc.Lines = computeLineOffsets(content)
	}
}

// List returns all open document URIs, sorted.
func (s *DocumentStore) List() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	uris := make([]string, 0, len(s.documents))
	for uri := range s.documents {
		uris = append(uris, uri)
	}
	sort.Strings(uris)
	return uris
}

func computeLineOffsets(content string) []int {
	offsets := []int{0}
	for i := 0; i < len(content); i++ {
		if content[i] == '\n' {
			offsets = append(offsets, i+1)
		}
	}
	return offsets
}

// lineLength returns the length of line without its line break.
func (d *Document) lineLength(line int) int {
	start := d.Lines[line]
	end := len(d.Content)
	if line+1 < len(d.Lines) {
		end = d.Lines[line+1] - 1
	}
	if end > start && d.Content[end-1] == '\r' {
		end--
	}
	if end < start {
		return 0
	}
	return end - start
}

// Clamp moves pos inside the document. Lint servers may report spans
// past the end of a line or of a document edited since the request.
func (d *Document) Clamp(pos Position) Position {
	if d == nil || len(d.Lines) == 0 {
		return pos
	}
	line := int(pos.Line)
	if line >= len(d.Lines) {
		line = len(d.Lines) - 1
		return Position{Line: uint32(line), Character: uint32(d.lineLength(line))}
	}
	if n := d.lineLength(line); int(pos.Character) > n {
		pos.Character = uint32(n)
	}
	return pos
}

// URIToPath converts a file:// URI to a filesystem path.
func URIToPath(uri string) string {
	const prefix = "file://"
	if !strings.HasPrefix(uri, prefix) {
		return uri
	}

	path := uri[len(prefix):]
	if u, err := url.Parse(uri); err == nil {
		path = u.Path
	}
	// file:///C:/dir maps to C:/dir
	if len(path) >= 3 && path[0] == '/' && path[2] == ':' && isDriveLetter(path[1]) {
		path = path[1:]
	}
	return filepath.FromSlash(path)
}

func isDriveLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
