// Package archive implements the Archive Reader: random-access entry
// fetch against a ZIP of CSVs, lazy CSV row iteration, and metadata
// parsing. It is the only package that touches archive/zip and
// encoding/csv directly — no ecosystem ZIP/CSV library is idiomatic
// here, so this is a deliberate standard-library component.
package archive

import (
	"archive/zip"
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/kbo-data/importer/internal/apperrors"
)

// Metadata is the parsed contents of meta.csv.
type Metadata struct {
	SnapshotDate     string // YYYY-MM-DD, converted from DD-MM-YYYY
	ExtractNumber    int64
	ExtractType      string // "full" or "update"
	ExtractTimestamp string // optional
	Version          string // optional
}

// Archive wraps a ZIP's central directory for random-access entry reads.
// It permits at most one reader checked out at a time, matching the "not
// streamed end-to-end" contract: entries are fetched on demand, not all
// at once.
type Archive struct {
	zr *zip.Reader

	mu       sync.Mutex
	checkedOut bool
}

// Open parses the ZIP central directory from raw bytes. It does not read
// any entry contents yet.
func Open(data []byte) (*Archive, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrArchiveInvalid, err)
	}
	return &Archive{zr: zr}, nil
}

// ReadEntry returns the decompressed bytes of a named entry. It fails
// with ErrEntryNotFound when the entry is absent, which callers treat as
// "no changes for this table", not a failure.
func (a *Archive) ReadEntry(name string) ([]byte, error) {
	if !a.acquire() {
		return nil, fmt.Errorf("archive reader: another read is already in progress")
	}
	defer a.release()

	f, err := a.zr.Open(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrEntryNotFound, name)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read entry %q: %w", name, err)
	}
	return data, nil
}

func (a *Archive) acquire() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.checkedOut {
		return false
	}
	a.checkedOut = true
	return true
}

func (a *Archive) release() {
	a.mu.Lock()
	a.checkedOut = false
	a.mu.Unlock()
}

// Row is one parsed CSV record: column name (from the header) to raw
// string value, or nil for an empty field (empty field = null, per the
// CSV dialect contract).
type Row map[string][]byte

// ParseCSV returns a lazy iterator over the rows of an entry's bytes.
// The dialect is fixed: comma delimiter, double-quote text delimiter,
// `""` escape, UTF-8, optional BOM tolerated. yield is called once per
// row in source order (the basis for staging row_sequence); it may
// return an error to stop iteration early.
func ParseCSV(data []byte, hasHeader bool, yield func(rowIndex int, row []string, header []string) error) error {
	data = stripBOM(data)

	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = ','
	r.LazyQuotes = false
	r.FieldsPerRecord = -1

	var header []string
	if hasHeader {
		rec, err := r.Read()
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("failed to read csv header: %w", err)
		}
		header = rec
	}

	index := 0
	for {
		rec, err := r.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read csv row %d: %w", index+1, err)
		}
		index++
		if err := yield(index, rec, header); err != nil {
			return err
		}
	}
}

func stripBOM(data []byte) []byte {
	bom := []byte{0xEF, 0xBB, 0xBF}
	if bytes.HasPrefix(data, bom) {
		return data[len(bom):]
	}
	return data
}

// ParseMetadata parses the two-column variable,value meta.csv contents.
// Missing required keys (SnapshotDate, ExtractNumber, ExtractType) fail
// with ErrMetadataInvalid.
func ParseMetadata(data []byte) (Metadata, error) {
	values := map[string]string{}

	err := ParseCSV(data, true, func(_ int, row []string, _ []string) error {
		if len(row) < 2 {
			return nil
		}
		values[strings.TrimSpace(row[0])] = strings.TrimSpace(row[1])
		return nil
	})
	if err != nil {
		return Metadata{}, fmt.Errorf("%w: %v", apperrors.ErrMetadataInvalid, err)
	}

	snapshotDateRaw, ok := values["SnapshotDate"]
	if !ok || snapshotDateRaw == "" {
		return Metadata{}, fmt.Errorf("%w: missing SnapshotDate", apperrors.ErrMetadataInvalid)
	}
	snapshotDate, err := convertMetaDate(snapshotDateRaw)
	if err != nil {
		return Metadata{}, fmt.Errorf("%w: %v", apperrors.ErrMetadataInvalid, err)
	}

	extractNumberRaw, ok := values["ExtractNumber"]
	if !ok || extractNumberRaw == "" {
		return Metadata{}, fmt.Errorf("%w: missing ExtractNumber", apperrors.ErrMetadataInvalid)
	}
	extractNumber, err := strconv.ParseInt(extractNumberRaw, 10, 64)
	if err != nil {
		return Metadata{}, fmt.Errorf("%w: invalid ExtractNumber %q", apperrors.ErrMetadataInvalid, extractNumberRaw)
	}

	extractType, ok := values["ExtractType"]
	if !ok || (extractType != "full" && extractType != "update") {
		return Metadata{}, fmt.Errorf("%w: ExtractType must be 'full' or 'update', got %q", apperrors.ErrMetadataInvalid, extractType)
	}

	return Metadata{
		SnapshotDate:     snapshotDate,
		ExtractNumber:    extractNumber,
		ExtractType:      extractType,
		ExtractTimestamp: values["ExtractTimestamp"],
		Version:          values["Version"],
	}, nil
}

// convertMetaDate converts DD-MM-YYYY to YYYY-MM-DD.
func convertMetaDate(v string) (string, error) {
	parts := strings.Split(v, "-")
	if len(parts) != 3 {
		return "", fmt.Errorf("invalid date %q, expected DD-MM-YYYY", v)
	}
	return parts[2] + "-" + parts[1] + "-" + parts[0], nil
}
