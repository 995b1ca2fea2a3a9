package mapper

import "testing"

func TestColumnName(t *testing.T) {
	name, ok := ColumnName("EnterpriseNumber")
	if !ok || name != "enterprise_number" {
		t.Fatalf("got (%q, %v), want (enterprise_number, true)", name, ok)
	}

	if _, ok := ColumnName("NotARealColumn"); ok {
		t.Fatal("expected unknown column to be rejected")
	}
}

func TestTableName(t *testing.T) {
	name, ok := TableName("enterprise")
	if !ok || name != "enterprises" {
		t.Fatalf("got (%q, %v), want (enterprises, true)", name, ok)
	}
}

func TestConvertDate(t *testing.T) {
	cases := map[string]string{
		"05-10-2025": "2025-10-05",
		"not-a-date": "not-a-date",
		"":           "",
	}
	for in, want := range cases {
		if got := ConvertDate(in); got != want {
			t.Errorf("ConvertDate(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestEntityType(t *testing.T) {
	cases := map[string]string{
		"0100.100.100": "enterprise",
		"1.100.100.100": "establishment",
		"9.000.000.001": "establishment",
	}
	for in, want := range cases {
		if got := EntityType(in); got != want {
			t.Errorf("EntityType(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestComposeIDIsPureAndSensitiveToEachComponent(t *testing.T) {
	base := ComposeID("0100.100.100", "001", "2", ShortHash("ACME"))
	again := ComposeID("0100.100.100", "001", "2", ShortHash("ACME"))
	if base != again {
		t.Fatal("ComposeID must be a pure function of its inputs")
	}

	changedHash := ComposeID("0100.100.100", "001", "2", ShortHash("ACME NV"))
	if base == changedHash {
		t.Fatal("changing denomination text must change the composite ID")
	}
}

func TestShortHashIsEightHexChars(t *testing.T) {
	h := ShortHash("ACME")
	if len(h) != 8 {
		t.Fatalf("ShortHash length = %d, want 8", len(h))
	}
}
