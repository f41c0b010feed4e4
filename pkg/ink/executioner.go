package ink

import "fmt"

// stepOutcome reports what a single execOne() call produced, for the
// run loop in runner.go to classify against spec §4.6's stopping
// conditions.
type stepOutcome struct {
	// blocked is true once execution cannot proceed without input: the
	// story reached `end`, or `done` found no parent thread to resume.
	blocked bool
	// lineReady is true immediately after a top-level newline marker
	// was appended outside evaluation/string/tag mode.
	lineReady bool
}

func (r *Runner) popEval() (Value, error) {
	v, err := r.eval.Pop()
	if err != nil {
		return Value{}, &FatalError{Msg: "evaluation stack underflow", Err: err}
	}
	return v, nil
}

func (r *Runner) pushEval(v Value) error {
	if err := r.eval.Push(v); err != nil {
		return err
	}
	return nil
}

// execOne fetches and executes exactly one instruction at r.ip,
// implementing spec §4.5's per-opcode contracts. This is the
// Executioner component; it is implemented as Runner methods (rather
// than a separately instantiated type) because every opcode needs
// direct access to the same stacks, output stream, and globals the run
// loop in runner.go already owns — splitting that shared state across
// two mutually-referencing types added indirection without adding
// clarity. See DESIGN.md.
func (r *Runner) execOne() (stepOutcome, error) {
	cur := newCursor(r.story, r.ip)
	op, err := cur.readOpcode()
	if err != nil {
		return stepOutcome{}, err
	}
	r.traceOp(r.ip, op)

	jumped := false
	var out stepOutcome

	switch op {
	case OpNop:
		// no operands, no effect

	case OpPop:
		if _, err := r.popEval(); err != nil {
			return out, err
		}
	case OpDup:
		v, ok := r.eval.Peek()
		if !ok {
			return out, &FatalError{Msg: "dup on empty evaluation stack"}
		}
		if err := r.pushEval(v); err != nil {
			return out, err
		}

	case OpPushInt:
		v, err := cur.readInt32()
		if err != nil {
			return out, err
		}
		if err := r.pushEval(NewInt(v)); err != nil {
			return out, err
		}
	case OpPushFloat:
		v, err := cur.readFloat64()
		if err != nil {
			return out, err
		}
		if err := r.pushEval(NewFloat(v)); err != nil {
			return out, err
		}
	case OpPushBool:
		b, err := cur.readByte()
		if err != nil {
			return out, err
		}
		if err := r.pushEval(NewBool(b != 0)); err != nil {
			return out, err
		}
	case OpPushStringConst:
		idx, err := cur.readUint32()
		if err != nil {
			return out, err
		}
		ref := r.internConstString(idx)
		if err := r.pushEval(NewStringValue(ref)); err != nil {
			return out, err
		}
	case OpPushDivertTargetConst:
		dt, err := cur.readDivertTarget()
		if err != nil {
			return out, err
		}
		if err := r.pushEval(NewDivertTarget(dt)); err != nil {
			return out, err
		}

	case OpBinaryOp:
		opByte, err := cur.readByte()
		if err != nil {
			return out, err
		}
		b, err := r.popEval()
		if err != nil {
			return out, err
		}
		a, err := r.popEval()
		if err != nil {
			return out, err
		}
		res, err := Arith(BinaryOp(opByte), a, b)
		if err != nil {
			return out, err
		}
		if err := r.pushEval(res); err != nil {
			return out, err
		}
	case OpUnaryOp:
		opByte, err := cur.readByte()
		if err != nil {
			return out, err
		}
		a, err := r.popEval()
		if err != nil {
			return out, err
		}
		res, err := Unary(UnaryOp(opByte), a)
		if err != nil {
			return out, err
		}
		if err := r.pushEval(res); err != nil {
			return out, err
		}

	case OpListUnion, OpListIntersect, OpListDifference:
		b, err := r.popEval()
		if err != nil {
			return out, err
		}
		a, err := r.popEval()
		if err != nil {
			return out, err
		}
		if a.Type != TypeList || b.Type != TypeList {
			return out, &FatalError{Msg: "list op on non-list value"}
		}
		var res listRef
		switch op {
		case OpListUnion:
			res = r.globals.lists.Union(a.list, b.list)
		case OpListIntersect:
			res = r.globals.lists.Intersect(a.list, b.list)
		case OpListDifference:
			res = r.globals.lists.Difference(a.list, b.list)
		}
		if err := r.pushEval(NewListValue(res)); err != nil {
			return out, err
		}
	case OpListCount:
		a, err := r.popEval()
		if err != nil {
			return out, err
		}
		if a.Type != TypeList {
			return out, &FatalError{Msg: "list.count on non-list value"}
		}
		if err := r.pushEval(NewInt(int32(r.globals.lists.Count(a.list)))); err != nil {
			return out, err
		}
	case OpListMin, OpListMax:
		a, err := r.popEval()
		if err != nil {
			return out, err
		}
		if a.Type != TypeList {
			return out, &FatalError{Msg: "list min/max on non-list value"}
		}
		var it listItem
		var ok bool
		if op == OpListMin {
			it, ok = r.globals.lists.Min(a.list)
		} else {
			it, ok = r.globals.lists.Max(a.list)
		}
		if !ok {
			if err := r.pushEval(NewListValue(r.globals.lists.NewSet(nil))); err != nil {
				return out, err
			}
		} else if err := r.pushEval(NewListValue(r.globals.lists.NewSet([]listItem{it}))); err != nil {
			return out, err
		}
	case OpListRange:
		hi, err := r.popEval()
		if err != nil {
			return out, err
		}
		lo, err := r.popEval()
		if err != nil {
			return out, err
		}
		a, err := r.popEval()
		if err != nil {
			return out, err
		}
		if a.Type != TypeList {
			return out, &FatalError{Msg: "list.range on non-list value"}
		}
		res := r.globals.lists.Range(a.list, lo.AsInt(), hi.AsInt())
		if err := r.pushEval(NewListValue(res)); err != nil {
			return out, err
		}
	case OpListHas, OpListHasnt:
		b, err := r.popEval()
		if err != nil {
			return out, err
		}
		a, err := r.popEval()
		if err != nil {
			return out, err
		}
		if a.Type != TypeList || b.Type != TypeList {
			return out, &FatalError{Msg: "list has/hasnt on non-list value"}
		}
		var res bool
		if op == OpListHas {
			res = r.globals.lists.Has(a.list, b.list)
		} else {
			res = r.globals.lists.Hasnt(a.list, b.list)
		}
		if err := r.pushEval(NewBool(res)); err != nil {
			return out, err
		}
	case OpListInvert:
		a, err := r.popEval()
		if err != nil {
			return out, err
		}
		if a.Type != TypeList {
			return out, &FatalError{Msg: "list.invert on non-list value"}
		}
		if err := r.pushEval(NewListValue(r.globals.lists.Invert(a.list))); err != nil {
			return out, err
		}
	case OpListValueOf:
		a, err := r.popEval()
		if err != nil {
			return out, err
		}
		if a.Type != TypeList {
			return out, &FatalError{Msg: "list.valueof on non-list value"}
		}
		it, ok := r.globals.lists.Min(a.list)
		if !ok {
			return out, &FatalError{Msg: "list.valueof on empty list value"}
		}
		if err := r.pushEval(NewInt(r.globals.lists.ValueOf(it))); err != nil {
			return out, err
		}

	case OpStrConcat:
		b, err := r.popEval()
		if err != nil {
			return out, err
		}
		a, err := r.popEval()
		if err != nil {
			return out, err
		}
		if a.Type != TypeString || b.Type != TypeString {
			return out, &FatalError{Msg: "str.concat on non-string value"}
		}
		ref := r.globals.strings.Intern(r.globals.strings.Get(a.str) + r.globals.strings.Get(b.str))
		if err := r.pushEval(NewStringValue(ref)); err != nil {
			return out, err
		}
	case OpStrSubstring:
		length, err := r.popEval()
		if err != nil {
			return out, err
		}
		start, err := r.popEval()
		if err != nil {
			return out, err
		}
		s, err := r.popEval()
		if err != nil {
			return out, err
		}
		if s.Type != TypeString {
			return out, &FatalError{Msg: "str.sub on non-string value"}
		}
		text := []rune(r.globals.strings.Get(s.str))
		from := clampRange(int(start.AsInt()), 0, len(text))
		to := clampRange(from+int(length.AsInt()), from, len(text))
		ref := r.globals.strings.Intern(string(text[from:to]))
		if err := r.pushEval(NewStringValue(ref)); err != nil {
			return out, err
		}
	case OpStrEquals:
		b, err := r.popEval()
		if err != nil {
			return out, err
		}
		a, err := r.popEval()
		if err != nil {
			return out, err
		}
		if a.Type != TypeString || b.Type != TypeString {
			return out, &FatalError{Msg: "str.eq on non-string value"}
		}
		res := r.globals.strings.Get(a.str) == r.globals.strings.Get(b.str)
		if err := r.pushEval(NewBool(res)); err != nil {
			return out, err
		}

	case OpDivert:
		dt, err := cur.readDivertTarget()
		if err != nil {
			return out, err
		}
		recordByte, err := cur.readByte()
		if err != nil {
			return out, err
		}
		r.divertTo(dt, recordByte != 0)
		r.ip = dt.path
		jumped = true
	case OpConditionalDivert:
		dt, err := cur.readDivertTarget()
		if err != nil {
			return out, err
		}
		recordByte, err := cur.readByte()
		if err != nil {
			return out, err
		}
		cond, err := r.popEval()
		if err != nil {
			return out, err
		}
		truthy, err := cond.IsTruthy()
		if err != nil {
			return out, err
		}
		if truthy {
			r.divertTo(dt, recordByte != 0)
			r.ip = dt.path
			jumped = true
		}
	case OpDivertToVar:
		v, err := r.popEval()
		if err != nil {
			return out, err
		}
		if v.Type != TypeDivertTarget && v.Type != TypeDivertValue {
			return out, &FatalError{Msg: "divert.var on non-divert value"}
		}
		dt := v.AsDivertTarget()
		r.divertTo(dt, v.Type == TypeDivertValue && v.RecordVisits())
		r.ip = dt.path
		jumped = true

	case OpFunctionCall:
		dt, err := cur.readDivertTarget()
		if err != nil {
			return out, err
		}
		r.runtime.PushFrame(FrameFunction, cur.pos, r.evalMode, r.stringMode, 0)
		_ = r.output.Append(functionStartValue())
		r.ip = dt.path
		jumped = true
	case OpCallExternal:
		name, err := cur.readUint32()
		if err != nil {
			return out, err
		}
		argc, err := cur.readByte()
		if err != nil {
			return out, err
		}
		args := make([]Value, argc)
		for i := int(argc) - 1; i >= 0; i-- {
			v, err := r.popEval()
			if err != nil {
				return out, err
			}
			args[i] = v
		}
		binding, ok := r.externals[name]
		if !ok {
			return out, &FatalError{Msg: "call to unbound external function"}
		}
		if r.speculating && !binding.lookaheadSafe {
			fn := binding.fn
			callArgs := args
			callCtx := r.ctx
			r.pendingExternalCalls = append(r.pendingExternalCalls, func() error {
				_, err := fn(callCtx, callArgs)
				return err
			})
			if err := r.pushEval(NewNone()); err != nil {
				return out, err
			}
		} else {
			v, err := binding.fn(r.ctx, args)
			if err != nil {
				return out, &FatalError{Msg: "external function call failed", Err: err}
			}
			if err := r.pushEval(v); err != nil {
				return out, err
			}
		}
	case OpTunnel:
		dt, err := cur.readDivertTarget()
		if err != nil {
			return out, err
		}
		r.runtime.PushFrame(FrameTunnel, cur.pos, r.evalMode, r.stringMode, 0)
		r.ip = dt.path
		jumped = true
	case OpThread:
		dt, err := cur.readDivertTarget()
		if err != nil {
			return out, err
		}
		id := r.nextThreadID.Add(1)
		r.runtime.PushFrame(FrameThread, cur.pos, r.evalMode, r.stringMode, id)
		r.ip = dt.path
		jumped = true
	case OpReturn:
		f, err := r.runtime.PopFrame(FrameFunction)
		if err != nil {
			return out, err
		}
		r.evalMode = f.EvalMode
		r.stringMode = f.StringMode
		_ = r.output.Append(functionEndValue())
		r.ip = f.ReturnIP
		jumped = true
	case OpTunnelReturn:
		f, err := r.runtime.PopFrame(FrameTunnel)
		if err != nil {
			return out, err
		}
		r.evalMode = f.EvalMode
		r.stringMode = f.StringMode
		r.ip = f.ReturnIP
		jumped = true
	case OpEnd:
		out.blocked = true
	case OpDone:
		if f, ok := r.runtime.UnwindToThread(); ok {
			r.evalMode = f.EvalMode
			r.stringMode = f.StringMode
			r.ip = f.ReturnIP
			jumped = true
		} else {
			out.blocked = true
		}

	case OpGetVar:
		name, err := cur.readUint32()
		if err != nil {
			return out, err
		}
		scopeByte, err := cur.readByte()
		if err != nil {
			return out, err
		}
		v, err := r.getVar(name, VarScopeHint(scopeByte))
		if err != nil {
			return out, err
		}
		if err := r.pushEval(v); err != nil {
			return out, err
		}
	case OpSetVar:
		name, err := cur.readUint32()
		if err != nil {
			return out, err
		}
		v, err := r.popEval()
		if err != nil {
			return out, err
		}
		if err := r.setVar(name, v, false); err != nil {
			return out, err
		}
	case OpRedefVar:
		name, err := cur.readUint32()
		if err != nil {
			return out, err
		}
		v, err := r.popEval()
		if err != nil {
			return out, err
		}
		if err := r.setVar(name, v, true); err != nil {
			return out, err
		}
	case OpPointerToVar:
		name, err := cur.readUint32()
		if err != nil {
			return out, err
		}
		scopeByte, err := cur.readByte()
		if err != nil {
			return out, err
		}
		if err := r.pushEval(NewVariablePointerByName(name, VarScopeHint(scopeByte))); err != nil {
			return out, err
		}
	case OpDereference:
		p, err := r.popEval()
		if err != nil {
			return out, err
		}
		if p.Type != TypeVariablePointer {
			return out, &FatalError{Msg: "dereference of non-pointer value"}
		}
		var v Value
		if p.varScope == ScopeLocalStack {
			v, _ = r.runtime.BindingAt(int(p.varIndex))
		} else {
			v, err = r.getVar(p.varName, p.varScope)
			if err != nil {
				return out, err
			}
		}
		if err := r.pushEval(v); err != nil {
			return out, err
		}

	case OpChoice:
		if err := r.execChoice(cur); err != nil {
			return out, err
		}

	case OpStartEval:
		r.evalMode = true
	case OpEndEval:
		r.evalMode = false
	case OpStartString:
		r.stringMode = true
		r.stringCaptureStarts = append(r.stringCaptureStarts, r.output.Len())
	case OpEndString:
		v, err := r.endCapture(&r.stringCaptureStarts)
		if err != nil {
			return out, err
		}
		if len(r.stringCaptureStarts) == 0 {
			r.stringMode = false
		}
		ref := r.globals.strings.Intern(v)
		if err := r.pushEval(NewStringValue(ref)); err != nil {
			return out, err
		}
	case OpStartTag:
		r.tagCaptureStarts = append(r.tagCaptureStarts, r.output.Len())
	case OpEndTag:
		v, err := r.endCapture(&r.tagCaptureStarts)
		if err != nil {
			return out, err
		}
		ref := r.globals.strings.Intern(v)
		_ = r.tags.Push(tag{text: ref, level: r.currentTagLevel()})

	case OpOut:
		v, err := r.popEval()
		if err != nil {
			return out, err
		}
		if err := r.output.Append(v); err != nil {
			return out, err
		}
	case OpNewline:
		if err := r.output.Append(newlineValue()); err != nil {
			return out, err
		}
		if !r.evalMode && !r.stringMode && len(r.tagCaptureStarts) == 0 {
			out.lineReady = true
		}
	case OpGlue:
		if err := r.output.Append(glueValue()); err != nil {
			return out, err
		}
	case OpVisitCount, OpReadCount:
		cid, err := cur.readUint32()
		if err != nil {
			return out, err
		}
		if err := r.pushEval(NewInt(r.globals.VisitCount(containerID(cid)))); err != nil {
			return out, err
		}
	case OpTurnsSince:
		cid, err := cur.readUint32()
		if err != nil {
			return out, err
		}
		if err := r.pushEval(NewInt(r.globals.TurnsSince(containerID(cid)))); err != nil {
			return out, err
		}
	case OpSeqShuffleIndex:
		seed, err := r.popEval()
		if err != nil {
			return out, err
		}
		count, err := r.popEval()
		if err != nil {
			return out, err
		}
		r.globals.SeedRNG(uint32(seed.AsInt()))
		idx := r.globals.randIntn(count.AsInt())
		if err := r.pushEval(NewInt(idx)); err != nil {
			return out, err
		}

	case OpContainerStart:
		if _, err := cur.readUint32(); err != nil {
			return out, err
		}
		if _, err := cur.readByte(); err != nil {
			return out, err
		}
	case OpContainerEnd:
		if _, err := cur.readUint32(); err != nil {
			return out, err
		}

	default:
		return out, &FatalError{Msg: fmt.Sprintf("unimplemented opcode %s", op)}
	}

	if !jumped {
		r.ip = cur.pos
	}
	return out, nil
}

func clampRange(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func (r *Runner) internConstString(idx uint32) stringRef {
	if int(idx) < len(r.story.Strings) {
		return r.globals.strings.Intern(r.story.Strings[idx])
	}
	return nilStringRef
}

func (r *Runner) divertTo(dt divertTarget, recordVisits bool) {
	if recordVisits && dt.container != 0 {
		r.globals.RecordVisit(dt.container)
	}
}

// getVar implements spec §4.6's get_var scope resolution: GLOBAL looks
// only at Globals, LOCAL scans the runtime stack's current scope, and
// UNKNOWN tries local first then falls through to global.
func (r *Runner) getVar(name uint32, scope VarScopeHint) (Value, error) {
	switch scope {
	case ScopeGlobal:
		v, ok := r.globals.GetVar(name)
		if !ok {
			return Value{}, &FatalError{Msg: "get of undefined global variable", Err: ErrUndefinedVariable}
		}
		return v, nil
	case ScopeLocalStack:
		v, ok := r.runtime.FindLocal(name)
		if !ok {
			return Value{}, &FatalError{Msg: "get of undefined local variable", Err: ErrUndefinedVariable}
		}
		return v, nil
	default:
		if v, ok := r.runtime.FindLocal(name); ok {
			return v, nil
		}
		if v, ok := r.globals.GetVar(name); ok {
			return v, nil
		}
		return Value{}, &FatalError{Msg: "get of undefined variable", Err: ErrUndefinedVariable}
	}
}

// setVar implements spec §4.6's set_var/redef_var contract: a plain set
// must find the name already bound (locally, else globally) or it is a
// fatal contract violation; redef additionally creates it, as a local
// binding if currently inside a function/thread scope, otherwise as a
// global.
func (r *Runner) setVar(name uint32, v Value, redef bool) error {
	if _, ok := r.runtime.FindLocal(name); ok {
		r.runtime.SetLocal(name, v)
		return nil
	}
	if _, ok := r.globals.GetVar(name); ok {
		return r.globals.SetVar(name, v, false)
	}
	if !redef {
		return &FatalError{Msg: "set on undefined variable", Err: ErrUndefinedVariable}
	}
	for _, f := range r.runtime.frames.All() {
		if f.boundsLocalScope() {
			r.runtime.SetLocal(name, v)
			return nil
		}
	}
	return r.globals.SetVar(name, v, true)
}

// endCapture closes the innermost open start_string/start_tag capture,
// rendering and removing the raw output entries appended since it was
// opened.
func (r *Runner) endCapture(starts *[]int) (string, error) {
	n := len(*starts)
	if n == 0 {
		return "", &FatalError{Msg: "end capture without a matching start"}
	}
	start := (*starts)[n-1]
	*starts = (*starts)[:n-1]

	all := r.output.stack.All()
	if start > len(all) {
		start = len(all)
	}
	text := r.output.render(all[start:])
	r.output.Truncate(start)
	return text, nil
}

// execChoice implements spec §4.5's choice-generation contract,
// including the invisible-default single-slot rule and once-only
// filtering (the single-slot rule is SPEC_FULL.md supplement 3).
func (r *Runner) execChoice(cur *cursor) error {
	flagsByte, err := cur.readByte()
	if err != nil {
		return err
	}
	flags := ChoiceFlags(flagsByte)

	if flags.has(ChoiceHasCondition) {
		cond, err := r.popEval()
		if err != nil {
			return err
		}
		truthy, err := cond.IsTruthy()
		if err != nil {
			return err
		}
		if !truthy {
			// Still consume the remaining fixed operands so ip stays in sync.
			if _, err := cur.readDivertTarget(); err != nil {
				return err
			}
			if _, err := cur.readUint32(); err != nil {
				return err
			}
			return nil
		}
	}

	var choiceOnly, startText string
	if flags.has(ChoiceHasChoiceOnlyText) {
		v, err := r.popEval()
		if err != nil {
			return err
		}
		if v.Type == TypeString {
			choiceOnly = r.globals.strings.Get(v.str)
		}
	}
	if flags.has(ChoiceHasStartText) {
		v, err := r.popEval()
		if err != nil {
			return err
		}
		if v.Type == TypeString {
			startText = r.globals.strings.Get(v.str)
		}
	}

	dt, err := cur.readDivertTarget()
	if err != nil {
		return err
	}
	pathIdx, err := cur.readUint32()
	if err != nil {
		return err
	}
	sourcePath := ""
	if int(pathIdx) < len(r.story.Strings) {
		sourcePath = r.story.Strings[pathIdx]
	}
	pathHash := hashPath64(sourcePath)

	onceOnly := flags.has(ChoiceOnceOnly)
	if onceOnly && r.globals.IsPicked(pathHash) {
		return nil
	}

	c := Choice{
		text:          startText + choiceOnly,
		sourcePath:    dt,
		pathHash:      pathHash,
		onceOnly:      onceOnly,
		capturedStart: startText,
		threadID:      r.currentThreadID(),
	}

	if flags.has(ChoiceIsInvisibleDefault) {
		if r.fallback.set {
			return &FatalError{Msg: ErrDuplicateFallback.Error()}
		}
		r.fallback = fallbackChoice{set: true, choice: c}
		return nil
	}

	c.index = r.choices.Len()
	return r.choices.Push(c)
}
