package ink

import "github.com/inkgo-dev/inkgo/internal/wire"

// Snapshot format: a fixed-order binary encoding over internal/wire,
// chosen over encoding/gob per SPEC_FULL.md's Domain Stack section so
// every byte the format spends is one this file chose deliberately.
// Layout: magic, version, the Globals section (variables, visit
// counts, turn index, once-only set, RNG state), the shared string
// table's live entries, the shared list table's live entries, then one
// blob per Runner. A Runner's instruction pointer is stored as a
// (container id, offset) pair rather than a raw absolute ip (spec
// §4.7), so a snapshot taken against one build of a Story still
// resolves correctly if containers were laid out differently when it
// is loaded.
const (
	snapshotMagic   uint32 = 0x494e4b31 // "INK1"
	snapshotVersion uint32 = 1
)

// CreateSnapshot encodes globals and every runner sharing it into a
// single portable blob (spec §4.7, §6 `create_snapshot`). Runners not
// passed here are simply absent from the blob; loading it again
// reconstructs only what was given.
func CreateSnapshot(story *Story, globals *Globals, runners ...*Runner) []byte {
	globals.mu.RLock()
	defer globals.mu.RUnlock()

	w := wire.NewWriter()
	w.PutUint32(snapshotMagic)
	w.PutUint32(snapshotVersion)
	encodeGlobalsLocked(w, globals)
	encodeStringTable(w, globals.strings)
	encodeListTable(w, globals.lists)
	w.PutUint32(uint32(len(runners)))
	for _, r := range runners {
		encodeRunner(w, story, r)
	}
	return w.Bytes()
}

// CreateSnapshot encodes a snapshot of just r and the Globals it
// shares (spec §6 `runner.create_snapshot`).
func (r *Runner) CreateSnapshot() []byte {
	return CreateSnapshot(r.story, r.globals, r)
}

// LoadSnapshot decodes a blob produced by CreateSnapshot against story,
// returning a freshly reconstructed Globals plus every Runner it
// contained (spec §6 `snap_load`). The returned Globals is independent
// of whatever Globals produced the snapshot: mutating one has no
// effect on the other, which is what lets two runners loaded from the
// same snapshot diverge (spec §8's "snapshot mid-choice" scenario).
func LoadSnapshot(data []byte, story *Story) (*Globals, []*Runner, error) {
	r := wire.NewReader(data)

	magic, err := r.GetUint32()
	if err != nil {
		return nil, nil, &RecoverableError{Msg: ErrSnapshotCorrupt.Error()}
	}
	if magic != snapshotMagic {
		return nil, nil, &RecoverableError{Msg: ErrSnapshotCorrupt.Error()}
	}
	version, err := r.GetUint32()
	if err != nil {
		return nil, nil, &RecoverableError{Msg: ErrSnapshotCorrupt.Error()}
	}
	if version != snapshotVersion {
		return nil, nil, &RecoverableError{Msg: ErrSnapshotVersion.Error()}
	}

	g, err := decodeGlobals(r)
	if err != nil {
		return nil, nil, corruptErr(err)
	}
	g.lists = newListTable(story.Lists)
	if err := decodeStringTable(r, g.strings); err != nil {
		return nil, nil, corruptErr(err)
	}
	if err := decodeListTable(r, g.lists); err != nil {
		return nil, nil, corruptErr(err)
	}

	n, err := r.GetUint32()
	if err != nil {
		return nil, nil, corruptErr(err)
	}
	runners := make([]*Runner, n)
	for i := range runners {
		rn, err := decodeRunner(r, story, g)
		if err != nil {
			return nil, nil, corruptErr(err)
		}
		runners[i] = rn
	}
	return g, runners, nil
}

// LoadRunnerSnapshot is a convenience wrapper over LoadSnapshot for the
// common single-runner case.
func LoadRunnerSnapshot(data []byte, story *Story) (*Runner, error) {
	g, runners, err := LoadSnapshot(data, story)
	if err != nil {
		return nil, err
	}
	if len(runners) != 1 {
		return nil, &RecoverableError{Msg: ErrSnapshotCorrupt.Error() + ": expected exactly one runner"}
	}
	_ = g
	return runners[0], nil
}

func corruptErr(err error) error {
	return &RecoverableError{Msg: ErrSnapshotCorrupt.Error() + ": " + err.Error()}
}

func encodeGlobalsLocked(w *wire.Writer, g *Globals) {
	w.PutUint32(uint32(len(g.vars)))
	for name, v := range g.vars {
		w.PutUint32(name)
		encodeValue(w, v)
	}
	w.PutUint32(uint32(len(g.visitCounts)))
	for cid, n := range g.visitCounts {
		w.PutUint32(uint32(cid))
		w.PutInt32(n)
	}
	w.PutUint32(uint32(len(g.turnOfLastVisit)))
	for cid, n := range g.turnOfLastVisit {
		w.PutUint32(uint32(cid))
		w.PutInt32(n)
	}
	w.PutInt32(g.currentTurn)
	w.PutUint32(uint32(len(g.oncePicked)))
	for h := range g.oncePicked {
		w.PutUint64(h)
	}
	w.PutUint32(g.rng.state)
}

func decodeGlobals(r *wire.Reader) (*Globals, error) {
	g := &Globals{
		vars:            make(map[uint32]Value),
		visitCounts:     make(map[containerID]int32),
		turnOfLastVisit: make(map[containerID]int32),
		oncePicked:      make(map[uint64]struct{}),
		strings:         newStringTable(),
		rng:             &rng32{},
	}

	nVars, err := r.GetUint32()
	if err != nil {
		return nil, err
	}
	for i := uint32(0); i < nVars; i++ {
		name, err := r.GetUint32()
		if err != nil {
			return nil, err
		}
		v, err := decodeValue(r)
		if err != nil {
			return nil, err
		}
		g.vars[name] = v
	}

	nVisits, err := r.GetUint32()
	if err != nil {
		return nil, err
	}
	for i := uint32(0); i < nVisits; i++ {
		cid, err := r.GetUint32()
		if err != nil {
			return nil, err
		}
		n, err := r.GetInt32()
		if err != nil {
			return nil, err
		}
		g.visitCounts[containerID(cid)] = n
	}

	nTurns, err := r.GetUint32()
	if err != nil {
		return nil, err
	}
	for i := uint32(0); i < nTurns; i++ {
		cid, err := r.GetUint32()
		if err != nil {
			return nil, err
		}
		n, err := r.GetInt32()
		if err != nil {
			return nil, err
		}
		g.turnOfLastVisit[containerID(cid)] = n
	}

	g.currentTurn, err = r.GetInt32()
	if err != nil {
		return nil, err
	}

	nPicked, err := r.GetUint32()
	if err != nil {
		return nil, err
	}
	for i := uint32(0); i < nPicked; i++ {
		h, err := r.GetUint64()
		if err != nil {
			return nil, err
		}
		g.oncePicked[h] = struct{}{}
	}

	g.rng.state, err = r.GetUint32()
	if err != nil {
		return nil, err
	}
	return g, nil
}

func encodeStringTable(w *wire.Writer, t *stringTable) {
	entries := t.liveEntries()
	w.PutUint32(uint32(len(entries)))
	for _, e := range entries {
		w.PutInt32(int32(e.Ref))
		w.PutString(e.Text)
	}
}

func decodeStringTable(r *wire.Reader, t *stringTable) error {
	n, err := r.GetUint32()
	if err != nil {
		return err
	}
	for i := uint32(0); i < n; i++ {
		ref, err := r.GetInt32()
		if err != nil {
			return err
		}
		text, err := r.GetString()
		if err != nil {
			return err
		}
		t.restoreEntry(stringRef(ref), text)
	}
	return nil
}

func encodeListTable(w *wire.Writer, t *listTable) {
	entries := t.liveEntries()
	w.PutUint32(uint32(len(entries)))
	for _, e := range entries {
		w.PutInt32(int32(e.Ref))
		w.PutUint32(uint32(len(e.Items)))
		for _, it := range e.Items {
			w.PutInt32(int32(it.def))
			w.PutInt32(int32(it.item))
		}
	}
}

func decodeListTable(r *wire.Reader, t *listTable) error {
	n, err := r.GetUint32()
	if err != nil {
		return err
	}
	for i := uint32(0); i < n; i++ {
		ref, err := r.GetInt32()
		if err != nil {
			return err
		}
		cnt, err := r.GetUint32()
		if err != nil {
			return err
		}
		items := make([]listItem, cnt)
		for j := range items {
			def, err := r.GetInt32()
			if err != nil {
				return err
			}
			item, err := r.GetInt32()
			if err != nil {
				return err
			}
			items[j] = listItem{def: listDefID(def), item: listItemID(item)}
		}
		t.restoreEntry(listRef(ref), items)
	}
	return nil
}

func encodeValue(w *wire.Writer, v Value) {
	w.PutByte(byte(v.Type))
	switch v.Type {
	case TypeInt:
		w.PutInt32(v.i)
	case TypeFloat:
		w.PutFloat64(v.f)
	case TypeBool:
		w.PutBool(v.b)
	case TypeUint32:
		w.PutUint32(v.u)
	case TypeString:
		w.PutInt32(int32(v.str))
	case TypeList:
		w.PutInt32(int32(v.list))
	case TypeDivertTarget:
		encodeDivertTarget(w, v.target)
	case TypeDivertValue:
		encodeDivertTarget(w, v.target)
		w.PutBool(v.b)
	case TypeVariablePointer:
		w.PutUint32(v.varName)
		w.PutByte(byte(v.varScope))
		w.PutInt32(v.varIndex)
	default:
		// TypeNone and every output marker carry no payload.
	}
}

func decodeValue(r *wire.Reader) (Value, error) {
	tb, err := r.GetByte()
	if err != nil {
		return Value{}, err
	}
	t := ValueType(tb)
	switch t {
	case TypeInt:
		i, err := r.GetInt32()
		return Value{Type: t, i: i}, err
	case TypeFloat:
		f, err := r.GetFloat64()
		return Value{Type: t, f: f}, err
	case TypeBool:
		b, err := r.GetBool()
		return Value{Type: t, b: b}, err
	case TypeUint32:
		u, err := r.GetUint32()
		return Value{Type: t, u: u}, err
	case TypeString:
		ref, err := r.GetInt32()
		return Value{Type: t, str: stringRef(ref)}, err
	case TypeList:
		ref, err := r.GetInt32()
		return Value{Type: t, list: listRef(ref)}, err
	case TypeDivertTarget:
		target, err := decodeDivertTarget(r)
		return Value{Type: t, target: target}, err
	case TypeDivertValue:
		target, err := decodeDivertTarget(r)
		if err != nil {
			return Value{}, err
		}
		b, err := r.GetBool()
		return Value{Type: t, target: target, b: b}, err
	case TypeVariablePointer:
		name, err := r.GetUint32()
		if err != nil {
			return Value{}, err
		}
		scope, err := r.GetByte()
		if err != nil {
			return Value{}, err
		}
		idx, err := r.GetInt32()
		return Value{Type: t, varName: name, varScope: VarScopeHint(scope), varIndex: idx}, err
	default:
		return Value{Type: t}, nil
	}
}

func encodeDivertTarget(w *wire.Writer, d divertTarget) {
	w.PutUint32(uint32(d.container))
	w.PutInt32(int32(d.path))
}

func decodeDivertTarget(r *wire.Reader) (divertTarget, error) {
	cid, err := r.GetUint32()
	if err != nil {
		return divertTarget{}, err
	}
	p, err := r.GetInt32()
	if err != nil {
		return divertTarget{}, err
	}
	return divertTarget{container: containerID(cid), path: ip(p)}, nil
}

func encodeRunner(w *wire.Writer, story *Story, r *Runner) {
	cid, off := story.ContainerAt(r.ip)
	w.PutUint32(uint32(cid))
	w.PutInt32(off)

	w.PutBool(r.dead)
	w.PutBool(r.blocked)
	w.PutBool(r.evalMode)
	w.PutBool(r.stringMode)
	w.PutInt32(int32(r.linesCommitted))
	w.PutUint32(r.nextThreadID.Load())

	encodeValueStack(w, r.eval)
	encodeFrames(w, r.runtime.frames)
	encodeBindings(w, r.runtime.bindings)
	encodeValueStack(w, r.output.stack)
	encodeChoices(w, r.choices)

	w.PutBool(r.fallback.set)
	if r.fallback.set {
		encodeChoice(w, r.fallback.choice)
	}

	encodeTags(w, r.tags)
}

func decodeRunner(r *wire.Reader, story *Story, globals *Globals) (*Runner, error) {
	cid, err := r.GetUint32()
	if err != nil {
		return nil, err
	}
	off, err := r.GetInt32()
	if err != nil {
		return nil, err
	}

	rn := NewRunner(story, globals, DefaultConfig())
	rn.ip = story.OffsetIn(containerID(cid), off)

	if rn.dead, err = r.GetBool(); err != nil {
		return nil, err
	}
	if rn.blocked, err = r.GetBool(); err != nil {
		return nil, err
	}
	if rn.evalMode, err = r.GetBool(); err != nil {
		return nil, err
	}
	if rn.stringMode, err = r.GetBool(); err != nil {
		return nil, err
	}
	lines, err := r.GetInt32()
	if err != nil {
		return nil, err
	}
	rn.linesCommitted = int(lines)
	nextThread, err := r.GetUint32()
	if err != nil {
		return nil, err
	}
	rn.nextThreadID.Store(nextThread)

	if rn.eval, err = decodeValueStack(r, true, 0); err != nil {
		return nil, err
	}
	if rn.runtime.frames, err = decodeFrames(r); err != nil {
		return nil, err
	}
	if rn.runtime.bindings, err = decodeBindings(r); err != nil {
		return nil, err
	}
	outStack, err := decodeValueStack(r, true, 0)
	if err != nil {
		return nil, err
	}
	rn.output.stack = outStack
	if rn.choices, err = decodeChoices(r); err != nil {
		return nil, err
	}

	hasFallback, err := r.GetBool()
	if err != nil {
		return nil, err
	}
	if hasFallback {
		c, err := decodeChoice(r)
		if err != nil {
			return nil, err
		}
		rn.fallback = fallbackChoice{set: true, choice: c}
	}

	if rn.tags, err = decodeTags(r); err != nil {
		return nil, err
	}

	return rn, nil
}

func encodeValueStack(w *wire.Writer, s *restorableStack[Value]) {
	all := s.All()
	w.PutUint32(uint32(len(all)))
	for _, v := range all {
		encodeValue(w, v)
	}
}

func decodeValueStack(r *wire.Reader, dynamic bool, capacity int) (*restorableStack[Value], error) {
	n, err := r.GetUint32()
	if err != nil {
		return nil, err
	}
	s := newRestorableStack[Value]("restored value stack", dynamic, capacity)
	for i := uint32(0); i < n; i++ {
		v, err := decodeValue(r)
		if err != nil {
			return nil, err
		}
		_ = s.Push(v)
	}
	return s, nil
}

func encodeFrames(w *wire.Writer, s *restorableStack[Frame]) {
	all := s.All()
	w.PutUint32(uint32(len(all)))
	for _, f := range all {
		w.PutInt32(int32(f.ReturnIP))
		w.PutByte(byte(f.Kind))
		w.PutBool(f.EvalMode)
		w.PutBool(f.StringMode)
		w.PutInt32(int32(f.StackBase))
		w.PutUint32(f.ThreadID)
	}
}

func decodeFrames(r *wire.Reader) (*restorableStack[Frame], error) {
	n, err := r.GetUint32()
	if err != nil {
		return nil, err
	}
	s := newRestorableStack[Frame]("restored runtime.frames", true, 0)
	for i := uint32(0); i < n; i++ {
		retIP, err := r.GetInt32()
		if err != nil {
			return nil, err
		}
		kind, err := r.GetByte()
		if err != nil {
			return nil, err
		}
		evalMode, err := r.GetBool()
		if err != nil {
			return nil, err
		}
		stringMode, err := r.GetBool()
		if err != nil {
			return nil, err
		}
		base, err := r.GetInt32()
		if err != nil {
			return nil, err
		}
		threadID, err := r.GetUint32()
		if err != nil {
			return nil, err
		}
		_ = s.Push(Frame{
			ReturnIP:   ip(retIP),
			Kind:       FrameKind(kind),
			EvalMode:   evalMode,
			StringMode: stringMode,
			StackBase:  int(base),
			ThreadID:   threadID,
		})
	}
	return s, nil
}

func encodeBindings(w *wire.Writer, s *restorableStack[localBinding]) {
	all := s.All()
	w.PutUint32(uint32(len(all)))
	for _, b := range all {
		w.PutUint32(b.name)
		encodeValue(w, b.value)
	}
}

func decodeBindings(r *wire.Reader) (*restorableStack[localBinding], error) {
	n, err := r.GetUint32()
	if err != nil {
		return nil, err
	}
	s := newRestorableStack[localBinding]("restored runtime.locals", true, 0)
	for i := uint32(0); i < n; i++ {
		name, err := r.GetUint32()
		if err != nil {
			return nil, err
		}
		v, err := decodeValue(r)
		if err != nil {
			return nil, err
		}
		_ = s.Push(localBinding{name: name, value: v})
	}
	return s, nil
}

func encodeChoice(w *wire.Writer, c Choice) {
	w.PutInt32(int32(c.index))
	w.PutString(c.text)
	encodeDivertTarget(w, c.sourcePath)
	w.PutUint64(c.pathHash)
	w.PutBool(c.onceOnly)
	w.PutString(c.capturedStart)
	w.PutUint32(c.threadID)
	w.PutInt32(int32(c.tagStart))
	w.PutInt32(int32(c.tagEnd))
}

func decodeChoice(r *wire.Reader) (Choice, error) {
	index, err := r.GetInt32()
	if err != nil {
		return Choice{}, err
	}
	text, err := r.GetString()
	if err != nil {
		return Choice{}, err
	}
	sourcePath, err := decodeDivertTarget(r)
	if err != nil {
		return Choice{}, err
	}
	pathHash, err := r.GetUint64()
	if err != nil {
		return Choice{}, err
	}
	onceOnly, err := r.GetBool()
	if err != nil {
		return Choice{}, err
	}
	capturedStart, err := r.GetString()
	if err != nil {
		return Choice{}, err
	}
	threadID, err := r.GetUint32()
	if err != nil {
		return Choice{}, err
	}
	tagStart, err := r.GetInt32()
	if err != nil {
		return Choice{}, err
	}
	tagEnd, err := r.GetInt32()
	if err != nil {
		return Choice{}, err
	}
	return Choice{
		index:         int(index),
		text:          text,
		sourcePath:    sourcePath,
		pathHash:      pathHash,
		onceOnly:      onceOnly,
		capturedStart: capturedStart,
		threadID:      threadID,
		tagStart:      int(tagStart),
		tagEnd:        int(tagEnd),
	}, nil
}

func encodeChoices(w *wire.Writer, s *restorableStack[Choice]) {
	all := s.All()
	w.PutUint32(uint32(len(all)))
	for _, c := range all {
		encodeChoice(w, c)
	}
}

func decodeChoices(r *wire.Reader) (*restorableStack[Choice], error) {
	n, err := r.GetUint32()
	if err != nil {
		return nil, err
	}
	s := newRestorableStack[Choice]("restored choices", true, 0)
	for i := uint32(0); i < n; i++ {
		c, err := decodeChoice(r)
		if err != nil {
			return nil, err
		}
		_ = s.Push(c)
	}
	return s, nil
}

func encodeTags(w *wire.Writer, s *restorableStack[tag]) {
	all := s.All()
	w.PutUint32(uint32(len(all)))
	for _, t := range all {
		w.PutInt32(int32(t.text))
		w.PutByte(byte(t.level))
	}
}

func decodeTags(r *wire.Reader) (*restorableStack[tag], error) {
	n, err := r.GetUint32()
	if err != nil {
		return nil, err
	}
	s := newRestorableStack[tag]("restored tags", true, 0)
	for i := uint32(0); i < n; i++ {
		text, err := r.GetInt32()
		if err != nil {
			return nil, err
		}
		level, err := r.GetByte()
		if err != nil {
			return nil, err
		}
		_ = s.Push(tag{text: stringRef(text), level: TagLevel(level)})
	}
	return s, nil
}
