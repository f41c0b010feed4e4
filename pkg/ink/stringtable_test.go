package ink

import "testing"

func TestStringTableInternDeduplicates(t *testing.T) {
	tbl := newStringTable()
	a := tbl.Intern("hello")
	b := tbl.Intern("hello")
	if a != b {
		t.Fatalf("interning the same content twice gave different refs: %d, %d", a, b)
	}
	if tbl.Get(a) != "hello" {
		t.Fatalf("Get(%d) = %q, want hello", a, tbl.Get(a))
	}
}

func TestStringTableInternDistinctContent(t *testing.T) {
	tbl := newStringTable()
	a := tbl.Intern("hello")
	b := tbl.Intern("world")
	if a == b {
		t.Fatal("distinct content should get distinct refs")
	}
}

func TestStringTableSweepReclaimsUnmarked(t *testing.T) {
	tbl := newStringTable()
	a := tbl.Intern("keep")
	b := tbl.Intern("drop")

	tbl.ResetMarks()
	tbl.Mark(a)
	freed := tbl.Sweep()

	if freed != 1 {
		t.Fatalf("freed = %d, want 1", freed)
	}
	if tbl.Get(a) != "keep" {
		t.Fatalf("marked entry should survive sweep, got %q", tbl.Get(a))
	}
	if tbl.Get(b) != "" {
		t.Fatalf("unmarked entry should be swept, got %q", tbl.Get(b))
	}
}

func TestStringTableFreedSlotIsReused(t *testing.T) {
	tbl := newStringTable()
	a := tbl.Intern("one")
	tbl.ResetMarks()
	tbl.Sweep()

	b := tbl.Intern("two")
	if b != a {
		t.Fatalf("expected freed slot %d to be reused, got %d", a, b)
	}
	if tbl.Get(b) != "two" {
		t.Fatalf("Get(%d) = %q, want two", b, tbl.Get(b))
	}
}

func TestStringTableGetInvalidRef(t *testing.T) {
	tbl := newStringTable()
	if tbl.Get(nilStringRef) != "" {
		t.Fatal("Get(nilStringRef) should return empty string")
	}
	if tbl.Get(stringRef(999)) != "" {
		t.Fatal("Get of out-of-range ref should return empty string")
	}
}

func TestStringTableRestoreEntryRoundTrips(t *testing.T) {
	tbl := newStringTable()
	tbl.restoreEntry(3, "loaded")
	if tbl.Get(3) != "loaded" {
		t.Fatalf("Get(3) = %q, want loaded", tbl.Get(3))
	}
	if ref, ok := tbl.byContent["loaded"]; !ok || ref != 3 {
		t.Fatalf("byContent not updated by restoreEntry: %v, %v", ref, ok)
	}
}
