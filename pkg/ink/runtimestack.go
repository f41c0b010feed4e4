package ink

// localBinding is one named LOCAL variable slot on the runtime stack.
// Unlike Globals' vars map, locals are positional: their lifetime is the
// enclosing Function/Thread frame, found by unwinding the binding list
// down to that frame's StackBase.
type localBinding struct {
	name  uint32
	value Value
}

// runtimeStack is the call/local-variable stack described by spec §4.6:
// a single restorable stack of diverted-control frames, each owning a
// run of local variable bindings above it. It is built on the same
// restorableStack primitive as every other speculative-capable
// container in this package (spec §4.3), applied twice — once per
// frame, once per binding — so save/restore/forget cover both in
// lockstep.
type runtimeStack struct {
	frames   *restorableStack[Frame]
	bindings *restorableStack[localBinding]
}

func newRuntimeStack() *runtimeStack {
	return &runtimeStack{
		frames:   newRestorableStack[Frame]("runtime.frames", true, 0),
		bindings: newRestorableStack[localBinding]("runtime.locals", true, 0),
	}
}

// PushFrame records a new diverted-control frame. StackBase is stamped
// from the current binding depth, so a later return unwinds exactly the
// locals pushed since this call.
func (s *runtimeStack) PushFrame(kind FrameKind, returnIP ip, evalMode, stringMode bool, threadID uint32) {
	s.frames.Push(Frame{
		ReturnIP:   returnIP,
		Kind:       kind,
		EvalMode:   evalMode,
		StringMode: stringMode,
		StackBase:  s.bindings.Len(),
		ThreadID:   threadID,
	})
}

// PeekFrame returns the innermost frame without popping it.
func (s *runtimeStack) PeekFrame() (Frame, bool) {
	return s.frames.Peek()
}

// Depth reports how many frames are currently open.
func (s *runtimeStack) Depth() int { return s.frames.Len() }

// PopFrame unwinds the innermost frame and every local binding pushed
// since it, enforcing spec §4.6/§7's rule that a return must match the
// frame kind it targets: OpReturn expects FrameFunction, OpTunnelReturn
// expects FrameTunnel. A mismatch is a fatal error, not a recoverable
// one, because it means the bytecode stream itself is inconsistent.
func (s *runtimeStack) PopFrame(want FrameKind) (Frame, error) {
	f, ok := s.frames.Peek()
	if !ok {
		return Frame{}, &FatalError{Msg: "return with no open frame"}
	}
	if f.Kind != want {
		return Frame{}, &FatalError{Msg: "frame kind mismatch on return: expected " + want.String() + ", found " + f.Kind.String()}
	}
	f, err := s.frames.Pop()
	if err != nil {
		return Frame{}, err
	}
	s.bindings.items = s.bindings.items[:f.StackBase]
	return f, nil
}

// localScopeStart returns the binding-stack floor a LOCAL lookup must
// not descend past: the StackBase of the nearest enclosing frame that
// bounds scope. Tunnel frames are transparent (spec §4.6: "a tunnel is
// transparent to variable scope"), so the search walks past them to the
// function or thread call beneath.
func (s *runtimeStack) localScopeStart() int {
	frames := s.frames.All()
	for i := len(frames) - 1; i >= 0; i-- {
		if frames[i].boundsLocalScope() {
			return frames[i].StackBase
		}
	}
	return 0
}

// FindLocal searches the current local scope (per localScopeStart) for
// name, innermost binding wins so shadowing within one tunnel chain
// behaves like reassignment.
func (s *runtimeStack) FindLocal(name uint32) (Value, bool) {
	floor := s.localScopeStart()
	bindings := s.bindings.All()
	for i := len(bindings) - 1; i >= floor; i-- {
		if bindings[i].name == name {
			return bindings[i].value, true
		}
	}
	return Value{}, false
}

// SetLocal overwrites an existing binding in scope if one exists,
// otherwise creates a new one at the top of the current scope.
func (s *runtimeStack) SetLocal(name uint32, v Value) {
	floor := s.localScopeStart()
	bindings := s.bindings.All()
	for i := len(bindings) - 1; i >= floor; i-- {
		if bindings[i].name == name {
			s.bindings.Set(i, localBinding{name: name, value: v})
			return
		}
	}
	s.bindings.Push(localBinding{name: name, value: v})
}

// UnwindToThread pops frames (discarding their local bindings) until it
// pops one of kind FrameThread, which it returns. It reports false if
// the stack empties without finding one — the signal `done` uses to
// decide the whole runner has finished rather than just one thread
// (spec §4.6: "if none, execution halts").
func (s *runtimeStack) UnwindToThread() (Frame, bool) {
	for s.frames.Len() > 0 {
		f, _ := s.frames.Pop()
		s.bindings.items = s.bindings.items[:f.StackBase]
		if f.Kind == FrameThread {
			return f, true
		}
	}
	return Frame{}, false
}

// BindingAt and SetBindingAt address a local binding by absolute stack
// position, for TypeVariablePointer values created with
// NewVariablePointerByIndex (spec §3: "variable pointer ... by stack
// slot").
func (s *runtimeStack) BindingAt(i int) (Value, bool) {
	b, ok := s.bindings.Get(i)
	if !ok {
		return Value{}, false
	}
	return b.value, true
}

func (s *runtimeStack) SetBindingAt(i int, v Value) bool {
	b, ok := s.bindings.Get(i)
	if !ok {
		return false
	}
	b.value = v
	return s.bindings.Set(i, b)
}

func (s *runtimeStack) Save() error {
	if err := s.frames.Save(); err != nil {
		return err
	}
	return s.bindings.Save()
}

func (s *runtimeStack) Restore() error {
	if err := s.frames.Restore(); err != nil {
		return err
	}
	return s.bindings.Restore()
}

func (s *runtimeStack) Forget() error {
	if err := s.frames.Forget(); err != nil {
		return err
	}
	return s.bindings.Forget()
}

func (s *runtimeStack) Saved() bool { return s.frames.Saved() }
