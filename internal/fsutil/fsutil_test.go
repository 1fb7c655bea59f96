package fsutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestReadFileScoped_ReadsFile(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "a.txt")
	if err := os.WriteFile(p, []byte("hello"), 0o600); err != nil {
		t.Fatalf("write file: %v", err)
	}

	b, err := ReadFileScoped(p)
	if err != nil {
		t.Fatalf("ReadFileScoped error: %v", err)
	}
	if string(b) != "hello" {
		t.Fatalf("unexpected content: %q", string(b))
	}
}

func TestReadFileScoped_RejectsInvalidPath(t *testing.T) {
	for _, p := range []string{"", ".", string(filepath.Separator)} {
		if _, err := ReadFileScoped(p); err == nil {
			t.Fatalf("expected error for %q", p)
		}
	}
}

func TestReadFileScoped_NonexistentFile(t *testing.T) {
	p := filepath.Join(t.TempDir(), "does-not-exist.txt")
	if _, err := ReadFileScoped(p); err == nil {
		t.Error("expected error for nonexistent file")
	}
}

func TestReadCapped_SmallFileReadFully(t *testing.T) {
	p := filepath.Join(t.TempDir(), "wf.log")
	content := "one\ntwo\nthree\n"
	if err := os.WriteFile(p, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	data, capped, err := ReadCapped(p, 1024, 1)
	if err != nil {
		t.Fatalf("ReadCapped: %v", err)
	}
	if capped {
		t.Error("small file should not be capped")
	}
	if string(data) != content {
		t.Errorf("data = %q", data)
	}
}

func TestReadCapped_LargeFileKeepsLastLines(t *testing.T) {
	p := filepath.Join(t.TempDir(), "big.log")
	var sb strings.Builder
	for i := 0; i < 1000; i++ {
		fmt.Fprintf(&sb, "line %04d\n", i)
	}
	if err := os.WriteFile(p, []byte(sb.String()), 0o600); err != nil {
		t.Fatal(err)
	}

	data, capped, err := ReadCapped(p, 200, 5)
	if err != nil {
		t.Fatalf("ReadCapped: %v", err)
	}
	if !capped {
		t.Fatal("expected capped read")
	}
	lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	if len(lines) != 5 {
		t.Fatalf("got %d lines, want 5: %q", len(lines), data)
	}
	if lines[0] != "line 0995" || lines[4] != "line 0999" {
		t.Errorf("unexpected lines %q", lines)
	}
}

func TestReadCapped_WindowStartsMidLine(t *testing.T) {
	p := filepath.Join(t.TempDir(), "big.log")
	if err := os.WriteFile(p, []byte("aaaaaaaaaa\nbb\ncc\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	data, capped, err := ReadCapped(p, 10, 100)
	if err != nil {
		t.Fatalf("ReadCapped: %v", err)
	}
	if !capped {
		t.Fatal("expected capped read")
	}
	if string(data) != "bb\ncc\n" {
		t.Errorf("data = %q, want %q", data, "bb\ncc\n")
	}
}

func TestTailLines(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"a\nb\nc\n", 2, "b\nc\n"},
		{"a\nb\nc", 2, "b\nc"},
		{"a\nb\n", 5, "a\nb\n"},
		{"a\nb\n", 0, "a\nb\n"},
		{"", 3, ""},
	}
	for _, tt := range tests {
		if got := string(TailLines([]byte(tt.in), tt.n)); got != tt.want {
			t.Errorf("TailLines(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}
}
