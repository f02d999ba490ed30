package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/leapstack-labs/oraclelint/internal/cli/output"
	"github.com/leapstack-labs/oraclelint/internal/notifier"
	"github.com/leapstack-labs/oraclelint/internal/service"
	"github.com/leapstack-labs/oraclelint/internal/session"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// ErrLintFailed is returned when at least one error-severity diagnostic
// was reported.
var ErrLintFailed = errors.New("lint found errors")

// DefaultLintConcurrency bounds the number of files linted at once.
const DefaultLintConcurrency = 4

// LintOptions holds options for the lint command.
type LintOptions struct {
	Files       []string // Files to lint
	Roots       []string // Project roots; defaults to the working directory
	Concurrency int      // Maximum concurrent lint requests
}

// FileDiagnostic is a diagnostic attributed to the file it was found in.
// Line and column numbers are one-based.
type FileDiagnostic struct {
	File        string `json:"file"`
	Severity    string `json:"severity"`
	Line        int    `json:"line"`
	Column      int    `json:"column"`
	EndLine     int    `json:"end_line"`
	EndColumn   int    `json:"end_column"`
	Message     string `json:"message"`
	Description string `json:"description,omitempty"`
}

// NewLintCommand creates the lint command.
func NewLintCommand() *cobra.Command {
	opts := &LintOptions{}
	cmd := &cobra.Command{
		Use:   "lint <file>...",
		Short: "Lint PL/SQL files with the PL/SQL Lint Server",
		Long: `Send PL/SQL files to the PL/SQL Lint Server and report its findings.

Each file is linted with the filters of the .oraclelint.json of the
deepest project root containing it. The server is started first when
start_server is enabled and an install path is configured.

Output adapts to environment:
  - Terminal: Table with colored severities
  - Piped/Scripted: One line per finding (path:line:col: severity: message)
  - JSON: Machine-readable format

Exits with an error when any finding has error severity.`,
		Example: `  # Lint a single file
  oraclelint lint src/pkg_orders.pkb

  # Lint with an explicit project root
  oraclelint lint --root ./db src/*.sql

  # Output as JSON
  oraclelint lint src/pkg_orders.pkb -o json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Files = args
			return runLint(cmd, opts)
		},
	}

	cmd.Flags().StringSliceVar(&opts.Roots, "root", nil, "Project root directories (default: working directory)")
	cmd.Flags().IntVar(&opts.Concurrency, "concurrency", DefaultLintConcurrency, "Maximum number of files linted at once")

	return cmd
}

func runLint(cmd *cobra.Command, opts *LintOptions) error {
	cmdCtx := NewCommandContext(cmd)
	ctx := cmd.Context()

	roots, err := workingRoots(opts.Roots)
	if err != nil {
		return err
	}
	files, err := absPaths(opts.Files)
	if err != nil {
		return err
	}

	sess, cleanup := cmdCtx.NewSession(cmdCtx.Settings.SessionConfig())
	defer cleanup()

	if err := sess.Activate(ctx, roots); err != nil {
		cmdCtx.Logger.Debug("activation incomplete", "error", err)
	}
	if !sess.Manager().CheckAlive(ctx) {
		return fmt.Errorf("%w on port %d", notifier.ErrServiceUnreachable, cmdCtx.Settings.Port)
	}

	results, err := lintFiles(ctx, sess, files, opts.Concurrency)
	if err != nil {
		return err
	}

	if err := renderDiagnostics(cmdCtx.Renderer, results); err != nil {
		return err
	}

	for _, d := range results {
		if d.Severity == service.SeverityError {
			return ErrLintFailed
		}
	}
	return nil
}

// lintFiles lints files concurrently and returns all diagnostics sorted
// by file and position.
func lintFiles(ctx context.Context, sess *session.Controller, files []string, limit int) ([]FileDiagnostic, error) {
	if limit < 1 {
		limit = 1
	}

	perFile := make([][]FileDiagnostic, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for i, path := range files {
		g.Go(func() error {
			content, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", path, err)
			}
			diags, err := sess.Lint(gctx, path, string(content))
			if err != nil {
				return fmt.Errorf("failed to lint %s: %w", path, err)
			}
			perFile[i] = toFileDiagnostics(path, diags)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []FileDiagnostic
	for _, diags := range perFile {
		all = append(all, diags...)
	}
	sort.SliceStable(all, func(i, j int) bool {
		a, b := all[i], all[j]
		if a.File != b.File {
			return a.File < b.File
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		return a.Column < b.Column
	})
	return all, nil
}

func toFileDiagnostics(path string, diags []service.Diagnostic) []FileDiagnostic {
	out := make([]FileDiagnostic, 0, len(diags))
	for _, d := range diags {
		file := path
		if d.Location.File != "" {
			file = d.Location.File
		}
		pos := d.Location.Position
		out = append(out, FileDiagnostic{
			File:        file,
			Severity:    d.Severity,
			Line:        pos[0][0] + 1,
			Column:      pos[0][1] + 1,
			EndLine:     pos[1][0] + 1,
			EndColumn:   pos[1][1] + 1,
			Message:     d.Excerpt,
			Description: d.Description,
		})
	}
	return out
}

func renderDiagnostics(r *output.Renderer, diags []FileDiagnostic) error {
	switch r.EffectiveMode() {
	case output.ModeJSON:
		if diags == nil {
			diags = []FileDiagnostic{}
		}
		return r.JSON(diags)
	case output.ModeTable:
		renderDiagnosticsTable(r, diags)
	default:
		for _, d := range diags {
			r.Printf("%s:%d:%d: %s: %s\n", relPath(d.File), d.Line, d.Column, d.Severity, d.Message)
		}
	}
	return nil
}

func renderDiagnosticsTable(r *output.Renderer, diags []FileDiagnostic) {
	if len(diags) == 0 {
		r.Success("No problems found")
		return
	}

	title := cases.Title(language.English)
	styles := r.Styles()

	t := table.NewWriter()
	t.SetOutputMirror(r.Writer())
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"File", "Line", "Col", "Severity", "Message"})
	for _, d := range diags {
		severity := title.String(d.Severity)
		switch d.Severity {
		case service.SeverityError:
			severity = styles.Error.Render(severity)
		case service.SeverityWarning:
			severity = styles.Warning.Render(severity)
		default:
			severity = styles.Info.Render(severity)
		}
		t.AppendRow(table.Row{relPath(d.File), d.Line, d.Column, severity, d.Message})
	}
	t.Render()

	counts := make(map[string]int)
	for _, d := range diags {
		counts[d.Severity]++
	}
	var parts []string
	for _, sev := range []string{service.SeverityError, service.SeverityWarning, service.SeverityInfo} {
		if n := counts[sev]; n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, sev))
		}
	}
	r.Println(r.Muted(fmt.Sprintf("%d problems (%s)", len(diags), strings.Join(parts, ", "))))
}

func absPaths(paths []string) ([]string, error) {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve %s: %w", p, err)
		}
		out = append(out, abs)
	}
	return out, nil
}

// relPath shortens path relative to the working directory when it lies
// below it.
func relPath(path string) string {
	wd, err := os.Getwd()
	if err != nil {
		return path
	}
	rel, err := filepath.Rel(wd, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return path
	}
	return rel
}
