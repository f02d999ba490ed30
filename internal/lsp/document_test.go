package lsp

import (
	"path/filepath"
	"testing"
)

func TestDocumentStore_OpenGetClose(t *testing.T) {
	store := NewDocumentStore()

	uri := "file:///work/hr/emp_pkg.pkb"
	content := "CREATE OR REPLACE PACKAGE BODY emp_pkg AS END;"

	store.Open(uri, content, 1)

	doc := store.Get(uri)
	if doc == nil {
		t.Fatal("expected document to exist")
	}
	if doc.Path != filepath.FromSlash("/work/hr/emp_pkg.pkb") {
		t.Errorf("expected path /work/hr/emp_pkg.pkb, got %s", doc.Path)
	}
	if doc.Content != content {
		t.Errorf("expected content %q, got %q", content, doc.Content)
	}
	if doc.Version != 1 {
		t.Errorf("expected version 1, got %d", doc.Version)
	}

	store.Close(uri)
	if store.Get(uri) != nil {
		t.Error("expected document to be nil after close")
	}
}

func TestDocumentStore_Update(t *testing.T) {
	store := NewDocumentStore()

	uri := "file:///work/a.sql"
	store.Open(uri, "select 1 from dual;", 1)
	store.Update(uri, "select 2 from dual;\nselect 3 from dual;", 2)

	doc := store.Get(uri)
	if doc.Content != "select 2 from dual;\nselect 3 from dual;" {
		t.Errorf("unexpected content %q", doc.Content)
	}
	if doc.Version != 2 {
		t.Errorf("expected version 2, got %d", doc.Version)
	}
	if len(doc.Lines) != 2 {
		t.Errorf("expected 2 lines, got %d", len(doc.Lines))
	}

	store.Update("file:///work/closed.sql", "x", 1)
	if store.Get("file:///work/closed.sql") != nil {
		t.Error("update must not open documents")
	}
}

func TestDocumentStore_GetReturnsSnapshot(t *testing.T) {
	store := NewDocumentStore()
	uri := "file:///work/a.sql"
	store.Open(uri, "v1", 1)

	doc := store.Get(uri)
	store.Update(uri, "v2", 2)

	if doc.Content != "v1" {
		t.Errorf("snapshot changed to %q", doc.Content)
	}
}

func TestDocumentStore_List(t *testing.T) {
	store := NewDocumentStore()

	store.Open("file:///c.sql", "c", 1)
	store.Open("file:///a.sql", "a", 1)
	store.Open("file:///b.sql", "b", 1)

	uris := store.List()
	expected := []string{"file:///a.sql", "file:///b.sql", "file:///c.sql"}
	if len(uris) != len(expected) {
		t.Fatalf("expected %d URIs, got %d", len(expected), len(uris))
	}
	for i := range expected {
		if uris[i] != expected[i] {
			t.Errorf("uris[%d]: expected %s, got %s", i, expected[i], uris[i])
		}
	}
}

func TestComputeLineOffsets(t *testing.T) {
	tests := []struct {
		content  string
		expected []int
	}{
		{"", []int{0}},
		{"abc", []int{0}},
		{"a\nb", []int{0, 2}},
		{"\n\n\n", []int{0, 1, 2, 3}},
		{"begin\n  null;\nend;", []int{0, 6, 14}},
	}

	for _, tt := range tests {
		got := computeLineOffsets(tt.content)
		if len(got) != len(tt.expected) {
			t.Errorf("computeLineOffsets(%q): expected %v, got %v", tt.content, tt.expected, got)
			continue
		}
		for i := range got {
			if got[i] != tt.expected[i] {
				t.Errorf("computeLineOffsets(%q)[%d]: expected %d, got %d", tt.content, i, tt.expected[i], got[i])
			}
		}
	}
}

func TestDocument_Clamp(t *testing.T) {
	store := NewDocumentStore()
	doc := store.Open("file:///a.sql", "begin\r\n  null;\nend;", 1)

	tests := []struct {
		name string
		in   Position
		want Position
	}{
		{"inside", Position{Line: 1, Character: 2}, Position{Line: 1, Character: 2}},
		{"past line end", Position{Line: 0, Character: 40}, Position{Line: 0, Character: 5}},
		{"past last line", Position{Line: 9, Character: 0}, Position{Line: 2, Character: 4}},
		{"line end", Position{Line: 1, Character: 7}, Position{Line: 1, Character: 7}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := doc.Clamp(tt.in); got != tt.want {
				t.Errorf("Clamp(%v): expected %v, got %v", tt.in, tt.want, got)
			}
		})
	}
}

func TestURIToPath(t *testing.T) {
	tests := []struct {
		uri      string
		expected string
	}{
		{"file:///Users/test/pkg.sql", "/Users/test/pkg.sql"},
		{"file:///home/user/my%20schema/x.pks", "/home/user/my schema/x.pks"},
		{"file:///C:/oracle/hr/emp.sql", "C:/oracle/hr/emp.sql"},
		{"/already/a/path.sql", "/already/a/path.sql"},
	}

	for _, tt := range tests {
		path := URIToPath(tt.uri)
		if path != filepath.FromSlash(tt.expected) {
			t.Errorf("URIToPath(%q): expected %q, got %q", tt.uri, tt.expected, path)
		}
	}
}
