package ink

// tagClearKind selects how much of the accumulated tag set a boundary
// discards, modeled on the three-way clear in `runner_impl.h`
// (SPEC_FULL.md supplement 1): tagClearAll drops every tag,
// tagClearKeepGlobals keeps only global-level tags, and
// tagClearKeepChoice keeps global- and choice-level tags. Choose is the
// only caller and uses tagClearKeepGlobals; committing a line clears no
// tags.
type tagClearKind uint8

const (
	tagClearAll tagClearKind = iota
	tagClearKeepGlobals
	tagClearKeepChoice
)

// TagLevel is the accumulation scope a tag was collected under (spec
// §3's "tag ... level ∈ {global, knot/choice, line}").
type TagLevel uint8

const (
	TagLevelGlobal TagLevel = iota
	TagLevelChoice
	TagLevelLine
)

// tag is one interned tag reference plus the level it accumulates under.
type tag struct {
	text  stringRef
	level TagLevel
}

// Choice is one entry offered to the embedder at a choice point (spec
// §3, §6). Only Index and Text are exported: the source path used
// internally by Choose to resume execution is private, matching
// `include/choice.h`'s friend-only `path()` (SPEC_FULL.md supplement 4).
type Choice struct {
	index         int
	text          string
	sourcePath    divertTarget
	pathHash      uint64
	onceOnly      bool
	capturedStart string // text pushed back into output on Choose, per spec §4.5
	threadID      uint32
	tagStart      int // index into the runner's tag list where this choice's tags begin
	tagEnd        int
}

// Index returns this choice's position in the list it came from, stable
// for the lifetime of that list.
func (c Choice) Index() int { return c.index }

// Text returns the choice's display text (start text + choice-only
// text, per spec §4.5's "displayed" text rule).
func (c Choice) Text() string { return c.text }

// fallbackChoice is the single optional invisible-default slot (spec
// §4.5 "exactly one default is available"; SPEC_FULL.md supplement 3):
// a second invisible default reaching the same choice point without the
// first being consumed is a fatal contract violation, enforced by
// executioner.go refusing to overwrite an already-set slot.
type fallbackChoice struct {
	set    bool
	choice Choice
}
