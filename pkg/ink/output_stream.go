package ink

import "strings"

// outputStream is the append-only value buffer described in spec §4.4. It
// is built on a restorableStack[Value] so the Runner can save() before a
// speculative instruction sequence and restore()/forget() once it knows
// whether the speculation produced text.
//
// Glue and whitespace normalization happen only when the buffer is
// rendered (render), never at append time: the raw buffer keeps every
// value exactly as emitted so save/restore stays a byte-for-byte rewind.
type outputStream struct {
	stack  *restorableStack[Value]
	strs   *stringTable
	lists  *listTable
	rawTxt func(stringRef) string
}

func newOutputStream(dynamic bool, capacity int, strs *stringTable, lists *listTable) *outputStream {
	return &outputStream{
		stack: newRestorableStack[Value]("output stream", dynamic, capacity),
		strs:  strs,
		lists: lists,
	}
}

func (o *outputStream) Append(v Value) error { return o.stack.Push(v) }

func (o *outputStream) AppendAll(vs []Value) error {
	for _, v := range vs {
		if err := o.stack.Push(v); err != nil {
			return err
		}
	}
	return nil
}

func (o *outputStream) Peek() (Value, bool) { return o.stack.Peek() }

func (o *outputStream) Len() int { return o.stack.Len() }

// Discard removes the n oldest entries of the buffer (used once a line has
// been committed and rendered, to drop the consumed prefix).
func (o *outputStream) Discard(n int) {
	if n <= 0 {
		return
	}
	all := o.stack.All()
	if n >= len(all) {
		o.stack.Clear()
		return
	}
	rest := append([]Value(nil), all[n:]...)
	o.stack.Clear()
	for _, v := range rest {
		_ = o.stack.Push(v)
	}
}

func (o *outputStream) Clear() { o.stack.Clear() }

// Truncate drops every entry past position n, used by string/tag capture
// to remove the raw values that were folded into a captured value
// rather than left in the rendered stream.
func (o *outputStream) Truncate(n int) {
	all := o.stack.All()
	if n >= len(all) {
		return
	}
	kept := append([]Value(nil), all[:n]...)
	o.stack.Clear()
	for _, v := range kept {
		_ = o.stack.Push(v)
	}
}

func (o *outputStream) Save() error    { return o.stack.Save() }
func (o *outputStream) Restore() error { return o.stack.Restore() }
func (o *outputStream) Forget() error  { return o.stack.Forget() }
func (o *outputStream) Saved() bool    { return o.stack.Saved() }

// EndsWith reports whether the most recently appended raw entry (before
// any rendering normalization) has type t.
func (o *outputStream) EndsWith(t ValueType) bool {
	v, ok := o.stack.Peek()
	return ok && v.Type == t
}

// EntriesSinceType returns how many raw entries follow the last
// occurrence of type t, or -1 if t never occurs in the buffer.
func (o *outputStream) EntriesSinceType(t ValueType) int {
	all := o.stack.All()
	for i := len(all) - 1; i >= 0; i-- {
		if all[i].Type == t {
			return len(all) - 1 - i
		}
	}
	return -1
}

// TextPastSave reports whether, after the save cursor, the buffer
// contains at least one non-whitespace printable value. This is the
// predicate a Runner uses to decide whether a speculative function call
// produced committed text (spec §4.4).
func (o *outputStream) TextPastSave() bool {
	all := o.stack.All()
	start := o.stack.SaveLen()
	if start > len(all) {
		start = len(all)
	}
	for _, v := range all[start:] {
		if o.valuePrintsNonWhitespace(v) {
			return true
		}
	}
	return false
}

func (o *outputStream) valuePrintsNonWhitespace(v Value) bool {
	switch v.Type {
	case TypeString:
		return strings.TrimSpace(o.strs.Get(v.str)) != ""
	case TypeInt, TypeFloat, TypeBool, TypeUint32, TypeList:
		return true
	default:
		return false
	}
}

// textToken is a fragment used internally while rendering: either literal
// text, a newline marker, or a glue marker.
type textToken struct {
	kind tokenKind
	text string
}

type tokenKind uint8

const (
	tokenText tokenKind = iota
	tokenNewline
	tokenGlue
)

func (o *outputStream) tokenize(values []Value) []textToken {
	toks := make([]textToken, 0, len(values))
	for _, v := range values {
		switch v.Type {
		case TypeFunctionStart, TypeFunctionEnd, TypeThreadStart, TypeTagStart, TypeTagEnd:
			continue
		case TypeNewline:
			toks = append(toks, textToken{kind: tokenNewline})
		case TypeGlue:
			toks = append(toks, textToken{kind: tokenGlue})
		case TypeString:
			toks = append(toks, textToken{kind: tokenText, text: o.strs.Get(v.str)})
		case TypeList:
			toks = append(toks, textToken{kind: tokenText, text: o.lists.String(v.list)})
		case TypeInt:
			toks = append(toks, textToken{kind: tokenText, text: formatInt(v.i)})
		case TypeFloat:
			toks = append(toks, textToken{kind: tokenText, text: formatFloat(v.f)})
		case TypeBool:
			toks = append(toks, textToken{kind: tokenText, text: formatBool(v.b)})
		case TypeUint32:
			toks = append(toks, textToken{kind: tokenText, text: formatUint32(v.u)})
		default:
			// Diverts, variable pointers and none never contribute text.
		}
	}
	return toks
}

func isWhitespaceToken(t textToken) bool {
	return t.kind == tokenNewline || (t.kind == tokenText && strings.TrimSpace(t.text) == "")
}

// render applies the glue/whitespace normalization rules of spec §4.4 to
// values and returns the user-visible text. It is pure: it does not
// mutate the underlying buffer.
func (o *outputStream) render(values []Value) string {
	tokens := o.tokenize(values)
	var sb strings.Builder

	for i := 0; i < len(tokens); i++ {
		tok := tokens[i]
		switch tok.kind {
		case tokenGlue:
			trimTrailingWhitespace(&sb)
			i = skipWhitespaceTokens(tokens, i+1) - 1
		case tokenNewline:
			sb.WriteByte('\n')
		case tokenText:
			sb.WriteString(tok.text)
		}
	}

	return strings.Trim(sb.String(), " \t\n\r")
}

// trimTrailingWhitespace strips trailing spaces, tabs and newlines
// already written into sb, implementing glue's "remove adjacent
// whitespace" rule on the left-hand side.
func trimTrailingWhitespace(sb *strings.Builder) {
	s := sb.String()
	trimmed := strings.TrimRight(s, " \t\n\r")
	if len(trimmed) == len(s) {
		return
	}
	sb.Reset()
	sb.WriteString(trimmed)
}

// skipWhitespaceTokens advances past a run of newline/whitespace-only
// text tokens starting at i, mutating the first token with real content
// so its leading whitespace is stripped too, and returns the index at
// which processing should resume.
func skipWhitespaceTokens(tokens []textToken, i int) int {
	for i < len(tokens) {
		switch tokens[i].kind {
		case tokenNewline, tokenGlue:
			i++
			continue
		case tokenText:
			trimmed := strings.TrimLeft(tokens[i].text, " \t")
			if trimmed == "" {
				i++
				continue
			}
			tokens[i].text = trimmed
			return i
		}
	}
	return i
}

// mark flags every string/list referenced by the raw buffer as live, for
// the string/list table GC pass.
func (o *outputStream) mark() {
	for _, v := range o.stack.All() {
		switch v.Type {
		case TypeString:
			o.strs.Mark(v.str)
		case TypeList:
			o.lists.Mark(v.list)
		}
	}
}
