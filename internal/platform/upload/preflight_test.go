package upload

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTemp(t *testing.T, name string, size int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, make([]byte, size), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestOpen_AcceptsMatchingExtension(t *testing.T) {
	p := Preflight{Extensions: []string{".csv"}, MaxBytes: 1024}
	f, err := p.Open(writeTemp(t, "datos.csv", 10))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	f.Close()
}

func TestOpen_ExtensionIsCaseInsensitive(t *testing.T) {
	p := Preflight{Extensions: []string{".csv"}, MaxBytes: 1024}
	f, err := p.Open(writeTemp(t, "DATOS.CSV", 10))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	f.Close()
}

func TestOpen_RejectsWrongExtension(t *testing.T) {
	p := Preflight{Extensions: []string{".csv"}, MaxBytes: 1024}
	_, err := p.Open(writeTemp(t, "datos.xlsx", 10))
	if err == nil {
		t.Fatal("expected an extension error")
	}
	if !strings.Contains(err.Error(), ".csv") {
		t.Errorf("error should name the accepted extensions: %v", err)
	}
}

func TestOpen_RejectsOversizedFile(t *testing.T) {
	p := Preflight{Extensions: []string{".csv"}, MaxBytes: 100}
	if _, err := p.Open(writeTemp(t, "datos.csv", 200)); err == nil {
		t.Fatal("expected a size error")
	}
}

func TestOpen_MissingFile(t *testing.T) {
	p := Preflight{Extensions: []string{".csv"}, MaxBytes: 1024}
	if _, err := p.Open(filepath.Join(t.TempDir(), "nope.csv")); err == nil {
		t.Fatal("expected an error for a missing file")
	}
}

func TestOpen_NoSizeLimit(t *testing.T) {
	p := Preflight{Extensions: []string{".xlsx"}}
	f, err := p.Open(writeTemp(t, "ajustes.xlsx", 4096))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	f.Close()
}
