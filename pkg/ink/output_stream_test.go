package ink

import "testing"

func newTestOutputStream() (*outputStream, *stringTable) {
	strs := newStringTable()
	lists := newListTable(nil)
	return newOutputStream(true, 0, strs, lists), strs
}

func str(strs *stringTable, s string) Value {
	return NewStringValue(strs.Intern(s))
}

func TestOutputStreamRenderPlainText(t *testing.T) {
	o, strs := newTestOutputStream()
	o.Append(str(strs, "Hello, "))
	o.Append(str(strs, "world."))
	if got := o.render(o.stack.All()); got != "Hello, world." {
		t.Fatalf("render = %q", got)
	}
}

func TestOutputStreamRenderNewline(t *testing.T) {
	o, strs := newTestOutputStream()
	o.Append(str(strs, "line one"))
	o.Append(newlineValue())
	o.Append(str(strs, "line two"))
	if got := o.render(o.stack.All()); got != "line one\nline two" {
		t.Fatalf("render = %q", got)
	}
}

func TestOutputStreamGlueJoinsAcrossWhitespace(t *testing.T) {
	o, strs := newTestOutputStream()
	o.Append(str(strs, "Lights flicker"))
	o.Append(newlineValue())
	o.Append(glueValue())
	o.Append(str(strs, " and hum softly."))
	if got := o.render(o.stack.All()); got != "Lights flickerand hum softly." {
		t.Fatalf("render = %q", got)
	}
}

func TestOutputStreamGlueTrimsBothSides(t *testing.T) {
	o, strs := newTestOutputStream()
	o.Append(str(strs, "a  "))
	o.Append(glueValue())
	o.Append(str(strs, "  b"))
	if got := o.render(o.stack.All()); got != "ab" {
		t.Fatalf("render = %q", got)
	}
}

func TestOutputStreamRenderTrimsOuterWhitespace(t *testing.T) {
	o, strs := newTestOutputStream()
	o.Append(newlineValue())
	o.Append(str(strs, "  text  "))
	o.Append(newlineValue())
	if got := o.render(o.stack.All()); got != "text" {
		t.Fatalf("render = %q", got)
	}
}

func TestOutputStreamMarkersDoNotRender(t *testing.T) {
	o, strs := newTestOutputStream()
	o.Append(functionStartValue())
	o.Append(str(strs, "visible"))
	o.Append(functionEndValue())
	if got := o.render(o.stack.All()); got != "visible" {
		t.Fatalf("render = %q", got)
	}
}

func TestOutputStreamTextPastSave(t *testing.T) {
	o, strs := newTestOutputStream()
	o.Append(str(strs, "before"))
	if err := o.Save(); err != nil {
		t.Fatalf("save: %v", err)
	}
	if o.TextPastSave() {
		t.Fatal("should report no text past save before anything new is appended")
	}
	o.Append(newlineValue())
	if o.TextPastSave() {
		t.Fatal("a newline alone should not count as non-whitespace text")
	}
	o.Append(str(strs, "after"))
	if !o.TextPastSave() {
		t.Fatal("non-whitespace text appended after save should be detected")
	}
}

func TestOutputStreamSaveRestoreRewindsRawBuffer(t *testing.T) {
	o, strs := newTestOutputStream()
	o.Append(str(strs, "kept"))
	if err := o.Save(); err != nil {
		t.Fatalf("save: %v", err)
	}
	o.Append(str(strs, "speculative"))
	if err := o.Restore(); err != nil {
		t.Fatalf("restore: %v", err)
	}
	if o.Len() != 1 {
		t.Fatalf("len after restore = %d, want 1", o.Len())
	}
	if got := o.render(o.stack.All()); got != "kept" {
		t.Fatalf("render after restore = %q", got)
	}
}

func TestOutputStreamDiscardDropsOldestPrefix(t *testing.T) {
	o, strs := newTestOutputStream()
	o.Append(str(strs, "one"))
	o.Append(newlineValue())
	o.Append(str(strs, "two"))
	o.Discard(2)
	if o.Len() != 1 {
		t.Fatalf("len after discard = %d, want 1", o.Len())
	}
	if got := o.render(o.stack.All()); got != "two" {
		t.Fatalf("render after discard = %q", got)
	}
}

func TestOutputStreamEndsWithAndEntriesSinceType(t *testing.T) {
	o, strs := newTestOutputStream()
	o.Append(str(strs, "text"))
	o.Append(newlineValue())
	if !o.EndsWith(TypeNewline) {
		t.Fatal("EndsWith(TypeNewline) should be true after appending a newline")
	}
	o.Append(str(strs, "more"))
	if n := o.EntriesSinceType(TypeNewline); n != 1 {
		t.Fatalf("EntriesSinceType(TypeNewline) = %d, want 1", n)
	}
	if n := o.EntriesSinceType(TypeGlue); n != -1 {
		t.Fatalf("EntriesSinceType(TypeGlue) = %d, want -1 (never occurs)", n)
	}
}
