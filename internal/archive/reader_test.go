package archive

import (
	"archive/zip"
	"bytes"
	"errors"
	"testing"

	"github.com/kbo-data/importer/internal/apperrors"
)

func buildZip(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("failed to create entry %q: %v", name, err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatalf("failed to write entry %q: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("failed to close zip writer: %v", err)
	}
	return buf.Bytes()
}

func TestReadEntryNotFound(t *testing.T) {
	data := buildZip(t, map[string]string{"meta.csv": "variable,value\n"})
	a, err := Open(data)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	_, err = a.ReadEntry("missing.csv")
	if !errors.Is(err, apperrors.ErrEntryNotFound) {
		t.Fatalf("expected ErrEntryNotFound, got %v", err)
	}
}

func TestParseCSVLazyRowsInOrder(t *testing.T) {
	content := "EnterpriseNumber,Status\n0100.100.100,AC\n0200.200.200,ST\n"
	var rows [][]string
	err := ParseCSV([]byte(content), true, func(idx int, row []string, header []string) error {
		if idx != len(rows)+1 {
			t.Fatalf("expected row_sequence %d, got %d", len(rows)+1, idx)
		}
		rows = append(rows, row)
		return nil
	})
	if err != nil {
		t.Fatalf("ParseCSV: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0][0] != "0100.100.100" || rows[1][0] != "0200.200.200" {
		t.Fatalf("unexpected row contents: %v", rows)
	}
}

func TestParseMetadataRequiredKeys(t *testing.T) {
	content := "variable,value\nSnapshotDate,05-10-2025\nExtractNumber,140\nExtractType,full\n"
	meta, err := ParseMetadata([]byte(content))
	if err != nil {
		t.Fatalf("ParseMetadata: %v", err)
	}
	if meta.SnapshotDate != "2025-10-05" {
		t.Errorf("SnapshotDate = %q, want 2025-10-05", meta.SnapshotDate)
	}
	if meta.ExtractNumber != 140 {
		t.Errorf("ExtractNumber = %d, want 140", meta.ExtractNumber)
	}
	if meta.ExtractType != "full" {
		t.Errorf("ExtractType = %q, want full", meta.ExtractType)
	}
}

func TestParseMetadataMissingRequiredKeyFails(t *testing.T) {
	content := "variable,value\nExtractNumber,140\nExtractType,full\n"
	_, err := ParseMetadata([]byte(content))
	if !errors.Is(err, apperrors.ErrMetadataInvalid) {
		t.Fatalf("expected ErrMetadataInvalid, got %v", err)
	}
}

func TestParseMetadataRejectsBadExtractType(t *testing.T) {
	content := "variable,value\nSnapshotDate,05-10-2025\nExtractNumber,140\nExtractType,weird\n"
	_, err := ParseMetadata([]byte(content))
	if !errors.Is(err, apperrors.ErrMetadataInvalid) {
		t.Fatalf("expected ErrMetadataInvalid, got %v", err)
	}
}
