package ink

import "sort"

// listDefID identifies one LIST declaration (e.g. `LIST Weekday = Mon, ...`).
type listDefID int32

// listItemID is an item's position within its defining list's declaration
// order; also used as the item's ordinal value minus one.
type listItemID int32

// ListDef is a read-only list declaration carried in the Story image.
type ListDef struct {
	Name  string
	Items []string // declaration order; index is the listItemID
}

// listItem names one concrete item: which list it was declared in, plus
// its position in that declaration.
type listItem struct {
	def  listDefID
	item listItemID
}

func (li listItem) less(o listItem) bool {
	if li.def != o.def {
		return li.def < o.def
	}
	return li.item < o.item
}

// listRef is a stable index into a listTable, analogous to stringRef.
type listRef int32

const nilListRef listRef = -1

// listTable stores list DEFINITIONS (read from the Story image, immutable)
// and list VALUES: sets of items, interned by content and garbage
// collected by mark/sweep exactly like stringTable, per spec §4.2.
type listTable struct {
	defs      []ListDef
	nameToDef map[string]listDefID

	entries   [][]listItem // canonical (sorted, deduped) item sets
	live      []bool
	marked    []bool
	byContent map[string]listRef
	free      []listRef
}

func newListTable(defs []ListDef) *listTable {
	t := &listTable{
		defs:      defs,
		nameToDef: make(map[string]listDefID, len(defs)),
		byContent: make(map[string]listRef),
	}
	for i, d := range defs {
		t.nameToDef[d.Name] = listDefID(i)
	}
	return t
}

// DefByName resolves a declared list's name to its id.
func (t *listTable) DefByName(name string) (listDefID, bool) {
	id, ok := t.nameToDef[name]
	return id, ok
}

// ItemByName resolves "ListName.ItemName" (or a bare "ItemName" when only
// one list declares it) to a listItem.
func (t *listTable) ItemByName(listName, itemName string) (listItem, bool) {
	if listName != "" {
		def, ok := t.nameToDef[listName]
		if !ok {
			return listItem{}, false
		}
		for idx, n := range t.defs[def].Items {
			if n == itemName {
				return listItem{def: def, item: listItemID(idx)}, true
			}
		}
		return listItem{}, false
	}
	var found listItem
	count := 0
	for defID, d := range t.defs {
		for idx, n := range d.Items {
			if n == itemName {
				found = listItem{def: listDefID(defID), item: listItemID(idx)}
				count++
			}
		}
	}
	if count == 1 {
		return found, true
	}
	return listItem{}, false
}

func canonicalize(items []listItem) []listItem {
	out := append([]listItem(nil), items...)
	sort.Slice(out, func(i, j int) bool { return out[i].less(out[j]) })
	dedup := out[:0]
	for i, it := range out {
		if i == 0 || it != dedup[len(dedup)-1] {
			dedup = append(dedup, it)
		}
	}
	return dedup
}

func contentKey(items []listItem) string {
	b := make([]byte, 0, len(items)*8)
	for _, it := range items {
		b = append(b, byte(it.def), byte(it.def>>8), byte(it.def>>16), byte(it.def>>24))
		b = append(b, byte(it.item), byte(it.item>>8), byte(it.item>>16), byte(it.item>>24))
	}
	return string(b)
}

// NewSet interns a (sorted, deduplicated) set of items and returns a
// stable reference to it.
func (t *listTable) NewSet(items []listItem) listRef {
	canon := canonicalize(items)
	key := contentKey(canon)
	if ref, ok := t.byContent[key]; ok && t.live[ref] {
		return ref
	}
	var ref listRef
	if n := len(t.free); n > 0 {
		ref = t.free[n-1]
		t.free = t.free[:n-1]
	} else {
		ref = listRef(len(t.entries))
		t.entries = append(t.entries, nil)
		t.live = append(t.live, false)
		t.marked = append(t.marked, false)
	}
	t.entries[ref] = canon
	t.live[ref] = true
	t.byContent[key] = ref
	return ref
}

func (t *listTable) items(ref listRef) []listItem {
	if ref < 0 || int(ref) >= len(t.entries) || !t.live[ref] {
		return nil
	}
	return t.entries[ref]
}

// Union returns a ∪ b.
func (t *listTable) Union(a, b listRef) listRef {
	return t.NewSet(append(append([]listItem(nil), t.items(a)...), t.items(b)...))
}

// Intersect returns a ∩ b.
func (t *listTable) Intersect(a, b listRef) listRef {
	bs := t.items(b)
	inB := make(map[listItem]struct{}, len(bs))
	for _, it := range bs {
		inB[it] = struct{}{}
	}
	var out []listItem
	for _, it := range t.items(a) {
		if _, ok := inB[it]; ok {
			out = append(out, it)
		}
	}
	return t.NewSet(out)
}

// Difference returns a \ b.
func (t *listTable) Difference(a, b listRef) listRef {
	bs := t.items(b)
	inB := make(map[listItem]struct{}, len(bs))
	for _, it := range bs {
		inB[it] = struct{}{}
	}
	var out []listItem
	for _, it := range t.items(a) {
		if _, ok := inB[it]; !ok {
			out = append(out, it)
		}
	}
	return t.NewSet(out)
}

// Invert returns, for every list definition touched by ref, the items of
// that definition not present in ref.
func (t *listTable) Invert(ref listRef) listRef {
	present := make(map[listItem]struct{})
	defsTouched := make(map[listDefID]struct{})
	for _, it := range t.items(ref) {
		present[it] = struct{}{}
		defsTouched[it.def] = struct{}{}
	}
	var out []listItem
	for def := range defsTouched {
		for idx := range t.defs[def].Items {
			it := listItem{def: def, item: listItemID(idx)}
			if _, ok := present[it]; !ok {
				out = append(out, it)
			}
		}
	}
	return t.NewSet(out)
}

// Count returns the number of items in ref.
func (t *listTable) Count(ref listRef) int { return len(t.items(ref)) }

// Min returns the lowest-valued item in ref.
func (t *listTable) Min(ref listRef) (listItem, bool) {
	items := t.items(ref)
	if len(items) == 0 {
		return listItem{}, false
	}
	m := items[0]
	for _, it := range items[1:] {
		if it.less(m) {
			m = it
		}
	}
	return m, true
}

// Max returns the highest-valued item in ref.
func (t *listTable) Max(ref listRef) (listItem, bool) {
	items := t.items(ref)
	if len(items) == 0 {
		return listItem{}, false
	}
	m := items[0]
	for _, it := range items[1:] {
		if m.less(it) {
			m = it
		}
	}
	return m, true
}

// Has reports whether every item of b is present in a (subset test,
// ink's `has`/`?` operator).
func (t *listTable) Has(a, b listRef) bool {
	return subset(t.items(a), t.items(b))
}

func subset(a, b []listItem) bool {
	present := make(map[listItem]struct{}, len(a))
	for _, it := range a {
		present[it] = struct{}{}
	}
	for _, it := range b {
		if _, ok := present[it]; !ok {
			return false
		}
	}
	return true
}

// Hasnt is the negation of Has (ink's `hasnt`/`!?` operator).
func (t *listTable) Hasnt(a, b listRef) bool { return !t.Has(a, b) }

// ValueOf returns an item's ordinal numeric value (1-based position in
// its declaration).
func (t *listTable) ValueOf(it listItem) int32 { return int32(it.item) + 1 }

// Range selects, from ref, every item whose ordinal value falls within
// [min, max] inclusive.
func (t *listTable) Range(ref listRef, min, max int32) listRef {
	var out []listItem
	for _, it := range t.items(ref) {
		v := t.ValueOf(it)
		if v >= min && v <= max {
			out = append(out, it)
		}
	}
	return t.NewSet(out)
}

// String renders ref as ink does: item short names in canonical
// (definition, ordinal) order, comma-separated.
func (t *listTable) String(ref listRef) string {
	items := t.items(ref)
	out := ""
	for i, it := range items {
		if i > 0 {
			out += ", "
		}
		out += t.defs[it.def].Items[it.item]
	}
	return out
}

func (t *listTable) ResetMarks() {
	for i := range t.marked {
		t.marked[i] = false
	}
}

func (t *listTable) Mark(ref listRef) {
	if ref >= 0 && int(ref) < len(t.marked) {
		t.marked[ref] = true
	}
}

func (t *listTable) Sweep() int {
	freed := 0
	for i := range t.entries {
		if t.live[i] && !t.marked[i] {
			delete(t.byContent, contentKey(t.entries[i]))
			t.entries[i] = nil
			t.live[i] = false
			t.free = append(t.free, listRef(i))
			freed++
		}
	}
	return freed
}

// liveEntries returns every live (ref, items) pair for snapshot encoding.
func (t *listTable) liveEntries() []struct {
	Ref   listRef
	Items []listItem
} {
	out := make([]struct {
		Ref   listRef
		Items []listItem
	}, 0, len(t.entries))
	for i, ok := range t.live {
		if ok {
			out = append(out, struct {
				Ref   listRef
				Items []listItem
			}{listRef(i), t.entries[i]})
		}
	}
	return out
}

func (t *listTable) restoreEntry(ref listRef, items []listItem) {
	for int(ref) >= len(t.entries) {
		t.entries = append(t.entries, nil)
		t.live = append(t.live, false)
		t.marked = append(t.marked, false)
	}
	t.entries[ref] = items
	t.live[ref] = true
	t.byContent[contentKey(items)] = ref
}
