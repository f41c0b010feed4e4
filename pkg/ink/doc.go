// Package ink is the runtime core of an interactive-narrative engine: it
// loads a compiled bytecode story and drives it through a stepwise
// "runner" that produces a stream of text lines interleaved with choice
// points.
//
// The package is organized around a small set of cooperating pieces:
//
//   - Value: a tagged union over numbers, strings, lists, diverts and
//     control markers (value.go).
//   - stringTable / listTable: interned, mark-and-sweep garbage
//     collected storage for text and list sets (stringtable.go, listtable.go).
//   - restorableStack: a generic save/restore/forget primitive used by
//     every speculative-capable container (restorable_stack.go).
//   - outputStream: the append-only value buffer with glue and
//     whitespace normalization (output_stream.go).
//   - Globals: shared mutable state (variables, visit counts, once-only
//     choice set) across every Runner built against one Story (globals.go).
//   - Story: the read-only bytecode image (story.go).
//   - executioner: per-opcode semantics (executioner.go).
//   - Runner: instruction pointer, frame/thread stacks, the main step
//     loop, and the embedder-facing API (runner.go).
//   - Snapshot: byte-exact serialization of all of the above (snapshot.go).
//
// None of this package calls into an OS thread, the network, or dynamic
// code loading; "threads" are a purely in-engine fork/join bookkeeping
// device built from frames on the runtime stack, not goroutines.
package ink
