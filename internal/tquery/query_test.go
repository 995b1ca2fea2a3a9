package tquery

import (
	"strings"
	"testing"
)

func TestCurrentQueryAllRows(t *testing.T) {
	query, args := TableQuery("enterprises", []string{"enterprise_number"}, "", "", Current())
	if args != nil {
		t.Fatalf("expected no args, got %v", args)
	}
	if !strings.Contains(query, "_is_current = true") {
		t.Fatalf("expected _is_current filter, got %q", query)
	}
}

func TestCurrentQuerySingleKey(t *testing.T) {
	query, args := TableQuery("enterprises", []string{"enterprise_number"}, "enterprise_number", "0100.100.100", Current())
	if len(args) != 1 || args[0] != "0100.100.100" {
		t.Fatalf("unexpected args: %v", args)
	}
	if !strings.Contains(query, "enterprise_number = ?") {
		t.Fatalf("expected key filter, got %q", query)
	}
}

func TestPointInTimeQueryUsesExtractWindow(t *testing.T) {
	query, args := TableQuery("enterprises", []string{"enterprise_number"}, "enterprise_number", "0100.100.100", PointInTime(140))
	if len(args) != 3 {
		t.Fatalf("expected 3 args (asOf, asOf, key), got %v", args)
	}
	if args[0] != int64(140) || args[2] != "0100.100.100" {
		t.Fatalf("unexpected args: %v", args)
	}
	if !strings.Contains(query, "ROW_NUMBER() OVER") || !strings.Contains(query, "_deleted_at_extract") {
		t.Fatalf("expected window-function reconstruction, got %q", query)
	}
}

func TestPointInTimeQueryPartitionsByCompositeKey(t *testing.T) {
	query, _ := TableQuery("denominations", []string{"id"}, "", "", PointInTime(10))
	if !strings.Contains(query, "PARTITION BY id") {
		t.Fatalf("expected partition by composite id, got %q", query)
	}
}
