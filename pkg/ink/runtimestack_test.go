package ink

import "testing"

func TestRuntimeStackPushPopFrameRestoresLocals(t *testing.T) {
	s := newRuntimeStack()
	s.SetLocal(hashName("x"), NewInt(1))
	s.PushFrame(FrameFunction, ip(10), false, false, 0)
	s.SetLocal(hashName("y"), NewInt(2))

	if v, ok := s.FindLocal(hashName("y")); !ok || v.AsInt() != 2 {
		t.Fatalf("FindLocal(y) = %v, %v; want 2, true", v, ok)
	}

	f, err := s.PopFrame(FrameFunction)
	if err != nil {
		t.Fatalf("PopFrame: %v", err)
	}
	if f.ReturnIP != 10 {
		t.Fatalf("ReturnIP = %d, want 10", f.ReturnIP)
	}
	if _, ok := s.FindLocal(hashName("y")); ok {
		t.Fatal("local pushed inside the function frame should not survive its return")
	}
	if v, ok := s.FindLocal(hashName("x")); !ok || v.AsInt() != 1 {
		t.Fatalf("outer local x should survive the inner frame's return, got %v, %v", v, ok)
	}
}

func TestRuntimeStackReturnKindMismatchIsFatal(t *testing.T) {
	s := newRuntimeStack()
	s.PushFrame(FrameFunction, ip(0), false, false, 0)
	if _, err := s.PopFrame(FrameTunnel); err == nil {
		t.Fatal("expected a fatal error popping a function frame as a tunnel return")
	}
}

func TestRuntimeStackReturnWithNoOpenFrameIsFatal(t *testing.T) {
	s := newRuntimeStack()
	if _, err := s.PopFrame(FrameFunction); err == nil {
		t.Fatal("expected a fatal error returning with no open frame")
	}
}

func TestRuntimeStackTunnelIsTransparentToLocalScope(t *testing.T) {
	s := newRuntimeStack()
	s.PushFrame(FrameFunction, ip(0), false, false, 0)
	s.SetLocal(hashName("x"), NewInt(5))
	s.PushFrame(FrameTunnel, ip(1), false, false, 0)

	v, ok := s.FindLocal(hashName("x"))
	if !ok || v.AsInt() != 5 {
		t.Fatalf("a tunnel should see the enclosing function's locals, got %v, %v", v, ok)
	}

	s.SetLocal(hashName("x"), NewInt(9))
	if _, err := s.PopFrame(FrameTunnel); err != nil {
		t.Fatalf("PopFrame(tunnel): %v", err)
	}
	v, ok = s.FindLocal(hashName("x"))
	if !ok || v.AsInt() != 9 {
		t.Fatalf("mutating x through a tunnel should persist after its return, got %v, %v", v, ok)
	}
}

func TestRuntimeStackUnwindToThreadFindsNearestThread(t *testing.T) {
	s := newRuntimeStack()
	s.PushFrame(FrameFunction, ip(0), false, false, 0)
	s.PushFrame(FrameThread, ip(100), false, false, 7)
	s.PushFrame(FrameTunnel, ip(1), false, false, 0)

	f, ok := s.UnwindToThread()
	if !ok {
		t.Fatal("expected to find a thread frame")
	}
	if f.ThreadID != 7 || f.ReturnIP != 100 {
		t.Fatalf("unwound to %+v, want ThreadID 7 ReturnIP 100", f)
	}
	if s.Depth() != 1 {
		t.Fatalf("Depth() = %d, want 1 (only the outer function frame left)", s.Depth())
	}
}

func TestRuntimeStackUnwindToThreadReportsFalseWhenNoneOpen(t *testing.T) {
	s := newRuntimeStack()
	s.PushFrame(FrameFunction, ip(0), false, false, 0)
	s.PushFrame(FrameTunnel, ip(1), false, false, 0)

	_, ok := s.UnwindToThread()
	if ok {
		t.Fatal("expected no thread frame to be found")
	}
	if s.Depth() != 0 {
		t.Fatalf("Depth() = %d, want 0 (every frame consumed)", s.Depth())
	}
}

func TestRuntimeStackVariablePointerByIndex(t *testing.T) {
	s := newRuntimeStack()
	s.SetLocal(hashName("a"), NewInt(1))
	s.SetLocal(hashName("b"), NewInt(2))

	if v, ok := s.BindingAt(1); !ok || v.AsInt() != 2 {
		t.Fatalf("BindingAt(1) = %v, %v; want 2, true", v, ok)
	}
	if ok := s.SetBindingAt(1, NewInt(42)); !ok {
		t.Fatal("SetBindingAt(1, ...) should succeed")
	}
	if v, ok := s.BindingAt(1); !ok || v.AsInt() != 42 {
		t.Fatalf("BindingAt(1) after SetBindingAt = %v, %v; want 42, true", v, ok)
	}
}

func TestRuntimeStackSaveRestore(t *testing.T) {
	s := newRuntimeStack()
	s.PushFrame(FrameFunction, ip(0), false, false, 0)
	s.SetLocal(hashName("x"), NewInt(1))

	if err := s.Save(); err != nil {
		t.Fatalf("save: %v", err)
	}
	s.PushFrame(FrameTunnel, ip(1), false, false, 0)
	s.SetLocal(hashName("y"), NewInt(2))

	if err := s.Restore(); err != nil {
		t.Fatalf("restore: %v", err)
	}
	if s.Depth() != 1 {
		t.Fatalf("Depth() after restore = %d, want 1", s.Depth())
	}
	if _, ok := s.FindLocal(hashName("y")); ok {
		t.Fatal("local added after save should not survive restore")
	}
}
