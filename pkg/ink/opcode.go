package ink

// Opcode is the single-byte tag of every instruction in a Story's
// bytecode stream (spec §6: "opcode (u8 or varint, per image version),
// followed by operands per opcode").
//
// "x PUSH x x" style stack-picture comments below follow the convention
// widely used by bytecode VMs for documenting stack effect at a glance:
// values left of the opcode are consumed, values right of it remain.
type Opcode uint8

const (
	OpNop Opcode = iota // - NOP -

	// stack
	OpPop // x POP -
	OpDup // x DUP x x

	// literals
	OpPushInt              // - PUSH.INT i32
	OpPushFloat            // - PUSH.FLOAT f64
	OpPushBool             // - PUSH.BOOL u8
	OpPushStringConst      // - PUSH.STR strIdx:u32
	OpPushDivertTargetConst // - PUSH.DIVERT container:u32 offset:i32

	// arithmetic / logic / comparison
	OpBinaryOp // a b BINOP(op:u8) r
	OpUnaryOp  // a UNOP(op:u8) r

	// list ops
	OpListUnion      // a b LIST.UNION r
	OpListIntersect  // a b LIST.ISECT r
	OpListDifference // a b LIST.DIFF r
	OpListCount      // a LIST.COUNT i
	OpListMin        // a LIST.MIN r
	OpListMax        // a LIST.MAX r
	OpListRange      // a lo hi LIST.RANGE r
	OpListHas        // a b LIST.HAS bool
	OpListHasnt      // a b LIST.HASNT bool
	OpListInvert     // a LIST.INVERT r
	OpListValueOf    // a LIST.VALUEOF i

	// string ops
	OpStrConcat    // a b STR.CONCAT r
	OpStrSubstring // s start len STR.SUB r
	OpStrEquals    // a b STR.EQ bool

	// control flow
	OpDivert            // - DIVERT(container:u32 offset:i32 recordVisits:u8) -
	OpConditionalDivert // cond COND.DIVERT(container:u32 offset:i32 recordVisits:u8) -
	OpDivertToVar       // target DIVERT.VAR -
	OpFunctionCall      // - CALL(container:u32 offset:i32) -
	OpCallExternal      // a1..aN CALL.EXTERNAL(name:u32 argc:u8) r
	OpTunnel            // - TUNNEL(container:u32 offset:i32) -
	OpThread            // - THREAD(container:u32 offset:i32) -
	OpReturn            // - RETURN -
	OpTunnelReturn      // - TUNNEL.RETURN -
	OpEnd               // - END -
	OpDone              // - DONE -

	// variables
	OpGetVar      // - GETVAR(name:u32 scope:u8) v
	OpSetVar      // v SETVAR(name:u32) -
	OpRedefVar    // v REDEFVAR(name:u32) -
	OpPointerToVar // - PTRVAR(name:u32 scope:u8) p
	OpDereference // p DEREF v

	// choice generation
	OpChoice // [startText] [onlyText] [cond] CHOICE(flags:u8 container:u32 offset:i32 pathIdx:u32) -

	// output control
	OpStartEval   // - START.EVAL -
	OpEndEval     // - END.EVAL -
	OpStartString // - START.STR -
	OpEndString   // - END.STR s
	OpStartTag    // - START.TAG -
	OpEndTag      // - END.TAG -
	OpOut         // v OUT -
	OpNewline     // - NEWLINE -
	OpGlue        // - GLUE -
	OpVisitCount  // - VISITCOUNT(container:u32) i
	OpTurnsSince  // - TURNSSINCE(container:u32) i
	OpReadCount   // - READCOUNT(container:u32) i (alias of OpVisitCount)
	OpSeqShuffleIndex // count seed SEQSHUFFLE i

	// container boundary markers; no runtime effect in this
	// implementation beyond advancing ip. StoryBuilder uses them to
	// populate Story.Containers when a raw image is assembled/loaded, per
	// spec §6's requirement that boundaries be encoded in the stream.
	OpContainerStart // - CONTAINER.START(container:u32 flags:u8) -
	OpContainerEnd   // - CONTAINER.END(container:u32) -

	opcodeCount
)

func (op Opcode) String() string {
	names := [...]string{
		"nop", "pop", "dup",
		"push.int", "push.float", "push.bool", "push.str", "push.divert",
		"binop", "unop",
		"list.union", "list.isect", "list.diff", "list.count", "list.min", "list.max",
		"list.range", "list.has", "list.hasnt", "list.invert", "list.valueof",
		"str.concat", "str.sub", "str.eq",
		"divert", "cond.divert", "divert.var", "call", "call.external", "tunnel", "thread",
		"return", "tunnel.return", "end", "done",
		"getvar", "setvar", "redefvar", "ptrvar", "deref",
		"choice",
		"start.eval", "end.eval", "start.str", "end.str", "start.tag", "end.tag",
		"out", "newline", "glue", "visitcount", "turnssince", "readcount", "seqshuffle",
		"container.start", "container.end",
	}
	if int(op) < len(names) {
		return names[op]
	}
	return "unknown"
}

// ChoiceFlags encodes the optional pieces an OpChoice instruction's
// operands select among, per spec §4.5.
type ChoiceFlags uint8

const (
	ChoiceHasCondition ChoiceFlags = 1 << iota
	ChoiceHasStartText
	ChoiceHasChoiceOnlyText
	ChoiceIsInvisibleDefault
	ChoiceOnceOnly
)

func (f ChoiceFlags) has(bit ChoiceFlags) bool { return f&bit != 0 }
