package ink

// ip is an opaque offset into a Story's flat instruction stream. An ip is
// always either NullIP or within the image's executable range; nothing in
// this package constructs an ip from anything but a Story's own layout.
type ip int32

// NullIP is the zero-value-free sentinel used for "no instruction pointer",
// e.g. a Frame with no return address, or a divert target that failed to
// resolve.
const NullIP ip = -1

func (p ip) valid() bool { return p >= 0 }

// containerID identifies a knot, stitch, or other addressable container by
// a small number the StoryBuilder assigns in declaration order, starting
// at 1. 0 means "no container" (top level, outside any visit-counted
// scope).
type containerID uint32

// divertTarget names a place to jump to: the entry instruction of some
// container, plus the id of the innermost container that owns it (for
// visit-count bookkeeping). A divertTarget with path == NullIP is invalid.
type divertTarget struct {
	path      ip
	container containerID
}

func (d divertTarget) valid() bool { return d.path.valid() }
