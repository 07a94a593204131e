package scanner

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for path, content := range files {
		fullPath := filepath.Join(root, path)
		if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
			t.Fatalf("Failed to create directory: %v", err)
		}
		if err := os.WriteFile(fullPath, []byte(content), 0644); err != nil {
			t.Fatalf("Failed to create file: %v", err)
		}
	}
}

func scanPaths(t *testing.T, opts Options, root string) []string {
	t.Helper()
	results, err := New(opts).Scan(root)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	var paths []string
	for _, f := range results {
		paths = append(paths, f.Path)
	}
	return paths
}

func TestScannerScan(t *testing.T) {
	tmpDir := t.TempDir()
	writeTree(t, tmpDir, map[string]string{
		"bell.yaml":              "qubits: 2",
		"ghz/ghz3.yml":           "qubits: 3",
		"ghz/README.md":          "# circuits",
		"notes.txt":              "",
		".hidden/secret.yaml":    "qubits: 1",
		"vendor/lib/c.yaml":      "qubits: 1",
		"UPPER.YAML":             "qubits: 1",
		".git/config":            "[core]",
		"deep/nested/dir/a.yaml": "qubits: 1",
	})

	got := scanPaths(t, DefaultOptions(), tmpDir)
	want := []string{"UPPER.YAML", "bell.yaml", "deep/nested/dir/a.yaml", "ghz/ghz3.yml"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Scan() = %v, want %v", got, want)
	}
}

func TestScannerWithGqtignore(t *testing.T) {
	tmpDir := t.TempDir()
	writeTree(t, tmpDir, map[string]string{
		".gqtignore": `# Ignore generated circuits
*.gen.yaml
# Ignore build directory
build/
!keep.gen.yaml
`,
		"a.yaml":               "",
		"a.gen.yaml":           "",
		"keep.gen.yaml":        "",
		"build/out.yaml":       "",
		"bench/.gqtignore":     "big/*.yaml\n",
		"bench/big/x.yaml":     "",
		"bench/small.yaml":     "",
		"other/big/y.yaml":     "",
		"bench/sub/b.yaml":     "",
		"bench/sub/c.gen.yaml": "",
	})

	got := scanPaths(t, DefaultOptions(), tmpDir)
	want := []string{"a.yaml", "bench/small.yaml", "bench/sub/b.yaml", "keep.gen.yaml", "other/big/y.yaml"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Scan() = %v, want %v", got, want)
	}
}

func TestScannerSkipHidden(t *testing.T) {
	tmpDir := t.TempDir()
	writeTree(t, tmpDir, map[string]string{
		"visible.yaml":      "",
		".hidden/file.yaml": "",
		".dotfile.yaml":     "",
	})

	opts := DefaultOptions()
	if got := scanPaths(t, opts, tmpDir); !reflect.DeepEqual(got, []string{"visible.yaml"}) {
		t.Errorf("SkipHidden=true: Scan() = %v", got)
	}

	opts.SkipHidden = false
	got := scanPaths(t, opts, tmpDir)
	want := []string{".dotfile.yaml", ".hidden/file.yaml", "visible.yaml"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("SkipHidden=false: Scan() = %v, want %v", got, want)
	}
}

func TestScannerExtensions(t *testing.T) {
	tmpDir := t.TempDir()
	writeTree(t, tmpDir, map[string]string{"a.yaml": "", "b.json": ""})

	opts := DefaultOptions()
	opts.Extensions = nil
	got := scanPaths(t, opts, tmpDir)
	if !reflect.DeepEqual(got, []string{"a.yaml", "b.json"}) {
		t.Errorf("Scan() = %v", got)
	}
}

func TestIgnorePatternMatch(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		base    string
		path    string
		isDir   bool
		want    bool
	}{
		{"simple name", "a.yaml", ".", "x/a.yaml", false, true},
		{"glob", "*.gen.yaml", ".", "x/y.gen.yaml", false, true},
		{"glob no match", "*.gen.yaml", ".", "x/y.yaml", false, false},
		{"directory pattern on file", "build/", ".", "build", false, false},
		{"directory pattern", "build/", ".", "x/build", true, true},
		{"anchored", "/top.yaml", ".", "top.yaml", false, true},
		{"anchored below root", "/top.yaml", ".", "x/top.yaml", false, false},
		{"inner slash anchors", "a/b.yaml", ".", "c/a/b.yaml", false, false},
		{"double star", "**/b.yaml", ".", "c/a/b.yaml", false, true},
		{"double star middle", "a/**/z.yaml", ".", "a/b/c/z.yaml", false, true},
		{"base scoped", "*.yaml", "sub", "sub/q.yaml", false, true},
		{"outside base", "*.yaml", "sub", "other/q.yaml", false, false},
		{"character class", "v[12].yaml", ".", "v2.yaml", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := ParseIgnorePattern(tt.pattern, tt.base)
			if got := p.Match(tt.path, tt.isDir); got != tt.want {
				t.Errorf("ParseIgnorePattern(%q, %q).Match(%q) = %v, want %v", tt.pattern, tt.base, tt.path, got, tt.want)
			}
		})
	}
}

func TestIgnoredLastMatchWins(t *testing.T) {
	patterns := []IgnorePattern{
		ParseIgnorePattern("*.yaml", "."),
		ParseIgnorePattern("!keep.yaml", "."),
	}
	if !Ignored(patterns, "drop.yaml", false) {
		t.Error("drop.yaml should be ignored")
	}
	if Ignored(patterns, "keep.yaml", false) {
		t.Error("keep.yaml should not be ignored")
	}
	if !ParseIgnorePattern("!keep.yaml", ".").IsNegation() {
		t.Error("IsNegation() = false")
	}
}
