package codification

import (
	"strings"
	"testing"
)

func TestExportCSV(t *testing.T) {
	records := []Record{
		{"id": "r1", "batchId": "b1", "sexo": "F", "pesoGrdMedio": 1.5, "validacion": "OK"},
		{"id": "r2", "batchId": "b1", "sexo": "M", "pesoGrdMedio": nil, "diasDemora": float64(3)},
	}

	var sb strings.Builder
	if err := ExportCSV(&sb, records); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	lines := strings.Split(strings.TrimRight(sb.String(), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header + 2 rows, got %d lines", len(lines))
	}

	header := strings.Split(lines[0], ";")
	if header[0] != "id" || header[1] != "batchId" {
		t.Errorf("identity columns must come first, got %v", header[:2])
	}
	want := []string{"id", "batchId", "diasDemora", "pesoGrdMedio", "sexo", "validacion"}
	if len(header) != len(want) {
		t.Fatalf("expected columns %v, got %v", want, header)
	}
	for i := range want {
		if header[i] != want[i] {
			t.Errorf("column %d: expected %s, got %s", i, want[i], header[i])
		}
	}

	row1 := strings.Split(lines[1], ";")
	if row1[3] != "1.5" {
		t.Errorf("expected numeric cell 1.5, got %q", row1[3])
	}
	if row1[2] != "" {
		t.Errorf("expected empty cell for absent field, got %q", row1[2])
	}
	row2 := strings.Split(lines[2], ";")
	if row2[3] != "" {
		t.Errorf("expected empty cell for nil value, got %q", row2[3])
	}
	if row2[2] != "3" {
		t.Errorf("expected 3, got %q", row2[2])
	}
}

func TestExportCSV_Empty(t *testing.T) {
	var sb strings.Builder
	if err := ExportCSV(&sb, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sb.Len() != 0 {
		t.Errorf("expected no output for empty input, got %q", sb.String())
	}
}
