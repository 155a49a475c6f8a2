package utils

import (
	"os"
	"path/filepath"
	"testing"
)

func TestStripEndSlash(t *testing.T) {
	var tests = []struct{ in, out string }{
		{"", ""},
		{"dist/", "dist"},
		{"dist", "dist"},
		{"/", ""},
	}
	for i, v := range tests {
		out := StripEndSlash(v.in)
		if v.out != out {
			t.Errorf("%d: expected %q, got %q", i, v.out, out)
		}
	}
}

func TestHasFileExt(t *testing.T) {
	var tests = []struct {
		in  string
		out bool
	}{
		{"index.js", true},
		{"index.JS", true},
		{"style.css", true},
		{"index.js.map", false},
		{"README", false},
	}
	for i, v := range tests {
		out := HasFileExt(v.in, []string{".js", ".css"})
		if v.out != out {
			t.Errorf("%d: %s: expected %v, got %v", i, v.in, v.out, out)
		}
	}
}

func TestIsInDir(t *testing.T) {
	dir := filepath.Join("project", "dist")
	var tests = []struct {
		in  string
		out bool
	}{
		{dir, true},
		{filepath.Join(dir, "index.js"), true},
		{filepath.Join("project", "src", "index.js"), false},
		{filepath.Join("project", "dist2"), false},
		{filepath.Join("project", "..dist"), false},
	}
	for i, v := range tests {
		out := IsInDir(v.in, dir)
		if v.out != out {
			t.Errorf("%d: %s: expected %v, got %v", i, v.in, v.out, out)
		}
	}
}

func TestIsIgnoredFile(t *testing.T) {
	var tests = []struct {
		in  string
		out bool
	}{
		{"src/index.js~", true},
		{"src/.DS_Store", true},
		{"src/index.js", false},
	}
	for i, v := range tests {
		out := IsIgnoredFile(v.in)
		if v.out != out {
			t.Errorf("%d: %s: expected %v, got %v", i, v.in, v.out, out)
		}
	}
}

func TestUnmarshalYAMLFile(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "config.yml")
	if err := os.WriteFile(filename, []byte("name: app\nentries: [a.js, b.js]\n"), 0644); err != nil {
		t.Fatalf("%s", err)
	}
	var c struct {
		Name    string   `yaml:"name"`
		Entries []string `yaml:"entries"`
	}
	if err := UnmarshalYAMLFile(filename, &c); err != nil {
		t.Fatalf("%s", err)
	}
	if c.Name != "app" || len(c.Entries) != 2 {
		t.Errorf("unexpected result: %+v", c)
	}
	if err := UnmarshalYAMLFile(filename+".missing", &c); !os.IsNotExist(err) {
		t.Errorf("expected not exist error, got %v", err)
	}
	if DirExist(filename) {
		t.Errorf("DirExist returned true for file")
	}
	if !DirExist(filepath.Dir(filename)) {
		t.Errorf("DirExist returned false for directory")
	}
}
