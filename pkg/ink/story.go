package ink

// ContainerInfo describes one addressable knot/stitch/gather in the
// bytecode image: its instruction range and the container-boundary flags
// the compiler attached to it (spec §6, "Container boundaries are marked
// with start/end opcodes carrying container id and flags").
type ContainerInfo struct {
	Name            string
	Start           ip
	End             ip
	RecordVisits    bool
	RecordTurnIndex bool
	ContainsChoices bool
}

// Story is the read-only bytecode image: instructions, the constant
// string and list-definition pools, and the container index. A Story is
// immutable once built and is shared read-only across every Runner and
// Globals built from it (spec §2 component 6, §5).
type Story struct {
	Instructions []byte

	// Strings is the compile-time string constant pool. Unlike the
	// runtime stringTable, these never move and are never swept.
	Strings []string

	Lists []ListDef

	Containers map[containerID]ContainerInfo
	// PathIndex maps a dotted knot/stitch path (e.g. "chapter1.intro") to
	// the container that owns it, for move_to-by-name and choice source
	// paths.
	PathIndex map[string]containerID

	GlobalDefaults map[uint32]Value

	Root ip
}

// ResolvePath resolves a dotted knot/stitch path to a divert target.
func (s *Story) ResolvePath(path string) (divertTarget, bool) {
	cid, ok := s.PathIndex[path]
	if !ok {
		return divertTarget{}, false
	}
	info, ok := s.Containers[cid]
	if !ok {
		return divertTarget{}, false
	}
	return divertTarget{path: info.Start, container: cid}, true
}

// ContainerName returns the declared name of a container, or "" if cid is
// unknown (cid == 0 means "no container").
func (s *Story) ContainerName(cid containerID) string {
	return s.Containers[cid].Name
}

// ContainerAt resolves an absolute ip to the container that owns it
// plus an offset relative to that container's start, the form spec
// §4.7 requires a snapshot's ip fields to use ("ip encoded as container
// id + offset") so a snapshot stays meaningful if the image is
// recompiled with instructions shifted around.
func (s *Story) ContainerAt(p ip) (containerID, int32) {
	for cid, info := range s.Containers {
		if p >= info.Start && p < info.End {
			return cid, int32(p - info.Start)
		}
	}
	return 0, int32(p)
}

// OffsetIn is the inverse of ContainerAt.
func (s *Story) OffsetIn(cid containerID, off int32) ip {
	if cid == 0 {
		return ip(off)
	}
	info, ok := s.Containers[cid]
	if !ok {
		return ip(off)
	}
	return info.Start + ip(off)
}
