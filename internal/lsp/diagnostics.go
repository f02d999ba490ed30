package lsp

import (
	"context"
	"errors"
	"path/filepath"
	"strings"

	"github.com/leapstack-labs/oraclelint/internal/notifier"
	"github.com/leapstack-labs/oraclelint/internal/service"
)

// diagnosticSource labels every published diagnostic.
const diagnosticSource = "plsql-lint"

// lintJob is the running lint of one document.
type lintJob struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// scheduleLint lints uri's current content in the background and
// publishes the result. A lint already running for uri is cancelled and
// finishes before the new one starts, so a document never has two
// requests in flight.
func (s *Server) scheduleLint(ctx context.Context, uri string) {
	doc := s.documents.Get(uri)
	if doc == nil {
		return
	}

	lctx, cancel := context.WithCancel(ctx)
	job := &lintJob{cancel: cancel, done: make(chan struct{})}

	s.lintsMu.Lock()
	prev := s.lints[uri]
	s.lints[uri] = job
	s.lintWG.Add(1)
	s.lintsMu.Unlock()
	if prev != nil {
		prev.cancel()
	}

	go func() {
		defer s.lintWG.Done()
		defer close(job.done)
		defer cancel()
		if prev != nil {
			<-prev.done
		}
		s.lintDocument(lctx, uri, doc, job)
		s.finishLint(uri, job)
	}()
}

// lintDocument lints the doc snapshot and publishes the result unless
// job was cancelled or the document changed meanwhile. Lint failures are
// logged and leave the previous diagnostics in place.
func (s *Server) lintDocument(ctx context.Context, uri string, doc *Document, job *lintJob) {
	if ctx.Err() != nil {
		return
	}

	diags, err := s.session.Lint(ctx, doc.Path, doc.Content)
	if ctx.Err() != nil {
		s.logger.Debug("lint cancelled", "uri", uri, "version", doc.Version)
		return
	}
	if err != nil {
		s.logger.Warn("lint failed", "path", doc.Path, "error", err)
		if errors.Is(err, notifier.ErrMalformedResponse) {
			s.session.Notifier().Fail(err)
		}
		return
	}

	// Held while publishing so didClose cannot clear before a late publish.
	s.lintsMu.Lock()
	defer s.lintsMu.Unlock()
	if s.lints[uri] != job {
		return
	}
	// Drop results for a document edited while the request was in flight.
	current := s.documents.Get(uri)
	if current == nil || current.Version != doc.Version {
		s.logger.Debug("discarding stale diagnostics", "uri", uri, "version", doc.Version)
		return
	}

	version := doc.Version
	s.sendNotification("textDocument/publishDiagnostics", &PublishDiagnosticsParams{
		URI:         uri,
		Version:     &version,
		Diagnostics: toLSPDiagnostics(doc, diags),
	})
}

func (s *Server) finishLint(uri string, job *lintJob) {
	s.lintsMu.Lock()
	defer s.lintsMu.Unlock()
	if s.lints[uri] == job {
		delete(s.lints, uri)
	}
}

// cancelLint stops the running lint of uri, if any.
func (s *Server) cancelLint(uri string) {
	s.lintsMu.Lock()
	job := s.lints[uri]
	delete(s.lints, uri)
	s.lintsMu.Unlock()
	if job != nil {
		job.cancel()
	}
}

// cancelLints stops every running lint.
func (s *Server) cancelLints() {
	s.lintsMu.Lock()
	jobs := s.lints
	s.lints = make(map[string]*lintJob)
	s.lintsMu.Unlock()
	for _, job := range jobs {
		job.cancel()
	}
}

// clearDiagnostics removes published diagnostics for uri.
func (s *Server) clearDiagnostics(uri string) {
	s.sendNotification("textDocument/publishDiagnostics", &PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: []Diagnostic{},
	})
}

// toLSPDiagnostics converts lint server records for doc. Records that
// name another file are skipped.
func toLSPDiagnostics(doc *Document, diags []service.Diagnostic) []Diagnostic {
	out := make([]Diagnostic, 0, len(diags))
	for _, d := range diags {
		if d.Location.File != "" && !samePath(d.Location.File, doc.Path) {
			continue
		}
		out = append(out, toLSPDiagnostic(doc, d))
	}
	return out
}

func toLSPDiagnostic(doc *Document, d service.Diagnostic) Diagnostic {
	p := d.Location.Position
	start := doc.Clamp(Position{Line: nonNegative(p[0][0]), Character: nonNegative(p[0][1])})
	end := doc.Clamp(Position{Line: nonNegative(p[1][0]), Character: nonNegative(p[1][1])})
	if end.Line < start.Line || (end.Line == start.Line && end.Character < start.Character) {
		end = start
	}

	message := d.Excerpt
	if d.Description != "" {
		if message == "" {
			message = d.Description
		} else {
			message += "\n\n" + d.Description
		}
	}

	return Diagnostic{
		Range:    Range{Start: start, End: end},
		Severity: toLSPSeverity(d.Severity),
		Source:   diagnosticSource,
		Message:  message,
	}
}

func toLSPSeverity(severity string) DiagnosticSeverity {
	switch strings.ToLower(severity) {
	case service.SeverityError:
		return DiagnosticSeverityError
	case service.SeverityWarning:
		return DiagnosticSeverityWarning
	case service.SeverityInfo:
		return DiagnosticSeverityInformation
	default:
		return DiagnosticSeverityHint
	}
}

func nonNegative(n int) uint32 {
	if n < 0 {
		return 0
	}
	return uint32(n)
}

func samePath(a, b string) bool {
	return filepath.Clean(a) == filepath.Clean(b)
}
