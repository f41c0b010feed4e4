package ink

import (
	"encoding/binary"
	"fmt"
)

// StoryBuilder hand-assembles a Story's bytecode image. It stands in for
// the ink source-language compiler, which spec.md places out of scope
// (§1 "Out of scope ... the source-language compiler that produces the
// bytecode"); tests and cmd/inkrun build stories with it
// instead of parsing ink source.
//
// Forward references (a choice or divert naming a knot defined later)
// are resolved at Build() time via a fixup list, the same two-pass
// approach any simple assembler uses.
type StoryBuilder struct {
	buf []byte

	strings     []string
	stringIndex map[string]uint32

	lists []ListDef

	containers      map[containerID]ContainerInfo
	pathIndex       map[string]containerID
	nextContainerID containerID
	openContainers  []containerID

	globalDefaults map[uint32]Value

	fixups []fixup
	err    error
}

type fixup struct {
	pos  ip // position of the 8-byte (container:u32, offset:i32) pair
	name string
}

func NewStoryBuilder() *StoryBuilder {
	return &StoryBuilder{
		stringIndex:    make(map[string]uint32),
		containers:     make(map[containerID]ContainerInfo),
		pathIndex:      make(map[string]containerID),
		globalDefaults: make(map[uint32]Value),
	}
}

func (b *StoryBuilder) fail(err error) *StoryBuilder {
	if b.err == nil {
		b.err = err
	}
	return b
}

func (b *StoryBuilder) pos() ip { return ip(len(b.buf)) }

func (b *StoryBuilder) emitByte(v byte) { b.buf = append(b.buf, v) }

func (b *StoryBuilder) emitOp(op Opcode) { b.emitByte(byte(op)) }

func (b *StoryBuilder) emitUint32(v uint32) {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	b.buf = append(b.buf, tmp[:]...)
}

func (b *StoryBuilder) emitInt32(v int32) { b.emitUint32(uint32(v)) }

func (b *StoryBuilder) emitFloat64(v float64) {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], float64bits(v))
	b.buf = append(b.buf, tmp[:]...)
}

// internString interns s into the Story's constant pool.
func (b *StoryBuilder) internString(s string) uint32 {
	if idx, ok := b.stringIndex[s]; ok {
		return idx
	}
	idx := uint32(len(b.strings))
	b.strings = append(b.strings, s)
	b.stringIndex[s] = idx
	return idx
}

// emitDivertPlaceholder writes a zeroed (container, offset) pair and
// queues it for resolution against name at Build() time.
func (b *StoryBuilder) emitDivertPlaceholder(name string) {
	pos := b.pos()
	b.emitUint32(0)
	b.emitInt32(0)
	b.fixups = append(b.fixups, fixup{pos: pos, name: name})
}

// Global registers a global variable's initial value, keyed by name.
func (b *StoryBuilder) Global(name string, v Value) *StoryBuilder {
	b.globalDefaults[hashName(name)] = v
	return b
}

// DefineList declares a LIST and its items in declaration order.
func (b *StoryBuilder) DefineList(name string, items ...string) *StoryBuilder {
	b.lists = append(b.lists, ListDef{Name: name, Items: items})
	return b
}

// Knot opens a named, visit-count-tracked container. Knot/EndKnot pairs
// do not nest in this builder; call EndKnot before opening another Knot.
func (b *StoryBuilder) Knot(name string) *StoryBuilder {
	if len(b.openContainers) != 0 {
		return b.fail(fmt.Errorf("ink: Knot(%q) called without a matching EndKnot", name))
	}
	b.nextContainerID++
	cid := b.nextContainerID
	b.containers[cid] = ContainerInfo{Name: name, Start: b.pos()}
	b.pathIndex[name] = cid
	b.openContainers = append(b.openContainers, cid)
	b.emitOp(OpContainerStart)
	b.emitUint32(uint32(cid))
	b.emitByte(1) // recordVisits flag, set for every knot
	return b
}

func (b *StoryBuilder) EndKnot() *StoryBuilder {
	if len(b.openContainers) == 0 {
		return b.fail(fmt.Errorf("ink: EndKnot() without a matching Knot()"))
	}
	cid := b.openContainers[len(b.openContainers)-1]
	b.openContainers = b.openContainers[:len(b.openContainers)-1]
	info := b.containers[cid]
	info.End = b.pos()
	info.RecordVisits = true
	b.containers[cid] = info
	b.emitOp(OpContainerEnd)
	b.emitUint32(uint32(cid))
	return b
}

// Text appends a literal run of text to the output stream.
func (b *StoryBuilder) Text(s string) *StoryBuilder {
	idx := b.internString(s)
	b.emitOp(OpPushStringConst)
	b.emitUint32(idx)
	b.emitOp(OpOut)
	return b
}

// Line is Text followed by a newline, the common case for a full ink
// line of plain prose.
func (b *StoryBuilder) Line(s string) *StoryBuilder {
	return b.Text(s).Newline()
}

func (b *StoryBuilder) Newline() *StoryBuilder {
	b.emitOp(OpNewline)
	return b
}

func (b *StoryBuilder) Glue() *StoryBuilder {
	b.emitOp(OpGlue)
	return b
}

// DivertTo emits an unconditional divert to a knot named later with Knot,
// or to the reserved name "END" / "DONE".
func (b *StoryBuilder) DivertTo(name string, recordVisits bool) *StoryBuilder {
	b.emitOp(OpDivert)
	b.emitDivertPlaceholder(name)
	if recordVisits {
		b.emitByte(1)
	} else {
		b.emitByte(0)
	}
	return b
}

// Done emits the `done` instruction (spec §4.6): suspends the current
// thread, or halts the story if no other thread is live.
func (b *StoryBuilder) Done() *StoryBuilder {
	b.emitOp(OpDone)
	return b
}

// ThreadTo forks a new thread starting at the named knot.
func (b *StoryBuilder) ThreadTo(name string) *StoryBuilder {
	b.emitOp(OpThread)
	b.emitDivertPlaceholder(name)
	return b
}

// CallExternal emits a call to an embedder-bound external function,
// popping argc values off the evaluation stack (pushed by the caller in
// left-to-right order before this call) and pushing its single result.
func (b *StoryBuilder) CallExternal(name string, argc int) *StoryBuilder {
	b.emitOp(OpCallExternal)
	b.emitUint32(hashName(name))
	if argc < 0 || argc > 255 {
		return b.fail(fmt.Errorf("ink: CallExternal(%q): argc %d out of range", name, argc))
	}
	b.emitByte(byte(argc))
	return b
}

// TunnelTo calls a knot as a tunnel: execution returns to the
// instruction after this one on `->->`.
func (b *StoryBuilder) TunnelTo(name string) *StoryBuilder {
	b.emitOp(OpTunnel)
	b.emitDivertPlaceholder(name)
	return b
}

// Return emits a function return.
func (b *StoryBuilder) Return() *StoryBuilder {
	b.emitOp(OpReturn)
	return b
}

// TunnelReturn emits a `->->` tunnel return.
func (b *StoryBuilder) TunnelReturn() *StoryBuilder {
	b.emitOp(OpTunnelReturn)
	return b
}

// SetVar pushes v and stores it into a global/local variable by name.
// redef additionally creates the variable if undefined.
func (b *StoryBuilder) SetVar(name string, v Value, redef bool) *StoryBuilder {
	b.pushLiteral(v)
	if redef {
		b.emitOp(OpRedefVar)
	} else {
		b.emitOp(OpSetVar)
	}
	b.emitUint32(hashName(name))
	return b
}

// PrintVar prints a variable's current value into the output; no newline
// is appended.
func (b *StoryBuilder) PrintVar(name string) *StoryBuilder {
	b.emitOp(OpGetVar)
	b.emitUint32(hashName(name))
	b.emitByte(byte(ScopeUnknown))
	b.emitOp(OpOut)
	return b
}

// PrintVisitCount prints a knot's visit count into the output; no
// newline is appended.
func (b *StoryBuilder) PrintVisitCount(knot string) *StoryBuilder {
	cid, ok := b.pathIndex[knot]
	if !ok {
		return b.fail(fmt.Errorf("ink: PrintVisitCount: unknown knot %q (declare it before referencing its visit count)", knot))
	}
	b.emitOp(OpVisitCount)
	b.emitUint32(uint32(cid))
	b.emitOp(OpOut)
	return b
}

func (b *StoryBuilder) pushLiteral(v Value) {
	switch v.Type {
	case TypeInt:
		b.emitOp(OpPushInt)
		b.emitInt32(v.i)
	case TypeFloat:
		b.emitOp(OpPushFloat)
		b.emitFloat64(v.f)
	case TypeBool:
		b.emitOp(OpPushBool)
		if v.b {
			b.emitByte(1)
		} else {
			b.emitByte(0)
		}
	case TypeString:
		b.emitOp(OpPushStringConst)
		b.emitUint32(uint32(v.str))
	default:
		b.fail(fmt.Errorf("ink: pushLiteral: unsupported literal type %s", v.Type))
	}
}

// ChoiceSpec configures one Choice() call.
type ChoiceSpec struct {
	StartText     string
	ChoiceOnly    string
	Target        string
	OnceOnly      bool
	Invisible     bool
	SourcePathTag string // disambiguates once-only identity when two choices share a target
}

// Choice emits a choice-generation instruction per spec §4.5.
func (b *StoryBuilder) Choice(spec ChoiceSpec) *StoryBuilder {
	var flags ChoiceFlags
	if spec.StartText != "" {
		flags |= ChoiceHasStartText
		idx := b.internString(spec.StartText)
		b.emitOp(OpPushStringConst)
		b.emitUint32(idx)
	}
	if spec.ChoiceOnly != "" {
		flags |= ChoiceHasChoiceOnlyText
		idx := b.internString(spec.ChoiceOnly)
		b.emitOp(OpPushStringConst)
		b.emitUint32(idx)
	}
	if spec.OnceOnly {
		flags |= ChoiceOnceOnly
	}
	if spec.Invisible {
		flags |= ChoiceIsInvisibleDefault
	}

	sourcePath := spec.SourcePathTag
	if sourcePath == "" {
		sourcePath = fmt.Sprintf("%s#%d", spec.Target, b.pos())
	}
	pathIdx := b.internString(sourcePath)

	b.emitOp(OpChoice)
	b.emitByte(byte(flags))
	b.emitDivertPlaceholder(spec.Target)
	b.emitUint32(pathIdx)
	return b
}

// End emits the terminal `end` instruction directly (for a Knot body
// that ends the story without an explicit divert to "END").
func (b *StoryBuilder) End() *StoryBuilder {
	b.emitOp(OpEnd)
	return b
}

// Build resolves every forward reference and returns the finished Story.
func (b *StoryBuilder) Build() (*Story, error) {
	if b.err != nil {
		return nil, b.err
	}
	if len(b.openContainers) != 0 {
		return nil, fmt.Errorf("ink: Build: %d knot(s) never closed with EndKnot", len(b.openContainers))
	}

	// Reserve a trailing END instruction reachable via the well-known
	// "END"/"DONE" path names, so `DivertTo("END", ...)` always resolves.
	// containerID 0 is reserved for "no container", so END gets its own
	// synthetic id rather than reusing it.
	endPos := b.pos()
	b.emitOp(OpEnd)
	b.nextContainerID++
	endCid := b.nextContainerID
	b.containers[endCid] = ContainerInfo{Name: "END", Start: endPos, End: endPos + 1}
	for _, alias := range []string{"END", "end", "DONE", "done"} {
		b.pathIndex[alias] = endCid
	}

	for _, fx := range b.fixups {
		cid, ok := b.pathIndex[fx.name]
		if !ok {
			return nil, fmt.Errorf("ink: Build: undefined divert target %q", fx.name)
		}
		info := b.containers[cid]
		binary.LittleEndian.PutUint32(b.buf[fx.pos:], uint32(cid))
		binary.LittleEndian.PutUint32(b.buf[fx.pos+4:], uint32(info.Start))
	}

	return &Story{
		Instructions:   b.buf,
		Strings:        b.strings,
		Lists:          b.lists,
		Containers:     b.containers,
		PathIndex:      b.pathIndex,
		GlobalDefaults: b.globalDefaults,
		Root:           0,
	}, nil
}
