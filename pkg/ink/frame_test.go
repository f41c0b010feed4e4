package ink

import "testing"

func TestFrameKindBoundsLocalScope(t *testing.T) {
	cases := []struct {
		kind FrameKind
		want bool
	}{
		{FrameFunction, true},
		{FrameThread, true},
		{FrameTunnel, false},
	}
	for _, c := range cases {
		f := Frame{Kind: c.kind}
		if got := f.boundsLocalScope(); got != c.want {
			t.Errorf("Frame{Kind: %v}.boundsLocalScope() = %v, want %v", c.kind, got, c.want)
		}
	}
}

func TestFrameKindString(t *testing.T) {
	if FrameFunction.String() != "function" {
		t.Errorf("FrameFunction.String() = %q", FrameFunction.String())
	}
	if FrameTunnel.String() != "tunnel" {
		t.Errorf("FrameTunnel.String() = %q", FrameTunnel.String())
	}
	if FrameThread.String() != "thread" {
		t.Errorf("FrameThread.String() = %q", FrameThread.String())
	}
}
