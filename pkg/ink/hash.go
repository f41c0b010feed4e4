package ink

import "hash/fnv"

// hashName computes the stable 32-bit hash used throughout the engine to
// name variables and external functions by value instead of by string,
// so the hot step loop never compares strings.
func hashName(s string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	return h.Sum32()
}

// hashPath64 is used for the once-only-choice path set, which spec §4.5
// keys by "a unique source path" per choice; a wider hash cuts collision
// risk for a set that can grow for the whole lifetime of a Globals.
func hashPath64(s string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return h.Sum64()
}
