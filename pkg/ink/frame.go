package ink

// FrameKind distinguishes the three ways control can nest in the engine
// (spec §4.6). Functions and threads bound LOCAL variable scope; tunnels
// do not — a tunnel shares its caller's locals, which is why `->->` can
// return into the middle of a knot still holding that knot's variables.
type FrameKind uint8

const (
	FrameFunction FrameKind = iota
	FrameTunnel
	FrameThread
)

func (k FrameKind) String() string {
	switch k {
	case FrameFunction:
		return "function"
	case FrameTunnel:
		return "tunnel"
	case FrameThread:
		return "thread"
	default:
		return "unknown"
	}
}

// Frame records one level of diverted control: where to resume on
// return, what kind of call produced it (so OpReturn/OpTunnelReturn can
// refuse to unwind across a mismatched kind — spec §4.6/§7 "unwinding
// across an incompatible frame kind is a fatal error"), and the eval/
// string-mode flags and local-variable-stack base in effect at the call
// site, which must be restored verbatim on return.
type Frame struct {
	ReturnIP   ip
	Kind       FrameKind
	EvalMode   bool
	StringMode bool

	// StackBase is the depth of the runtime value stack at the moment
	// this frame was pushed. For Function and Thread frames it is also
	// the floor below which a LOCAL variable lookup must not descend;
	// Tunnel frames leave it set only for unwind bookkeeping and are
	// skipped by localScopeStart.
	StackBase int

	// ThreadID is nonzero for Thread frames, identifying which thread
	// owns the frames above it; currentThreadID reads it to stamp the
	// choices generated inside that thread. Zero for Function/Tunnel
	// frames.
	ThreadID uint32
}

// boundsLocalScope reports whether this frame kind stops an upward LOCAL
// variable search, per spec §4.6: "a tunnel is transparent to variable
// scope; a function or thread call is not."
func (f Frame) boundsLocalScope() bool {
	return f.Kind == FrameFunction || f.Kind == FrameThread
}
