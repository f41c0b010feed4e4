package ink

import (
	"context"
	"fmt"
	"io"
	"sync/atomic"
)

// ExternalFunc is an embedder-supplied function bound by name (spec §6
// `bind_external`). args are popped off the evaluation stack in call
// order; the returned Value is pushed back. lookaheadSafe marks whether
// the function may run during the line-boundary speculative lookahead;
// unsafe functions are deferred until the lookahead commits (spec §9
// "External-function lookahead safety"). ctx carries whatever
// cancellation/deadline the embedder set via SetContext, giving a hook
// for a slow external call without the core engine itself depending on
// OS concurrency.
type ExternalFunc func(ctx context.Context, args []Value) (Value, error)

type externalBinding struct {
	fn            ExternalFunc
	lookaheadSafe bool
}

// Runner drives one execution of a Story: instruction pointer, the
// runtime/eval stacks, the output stream, and the choice/tag
// accumulators (spec §2 component 8, §4.6). Multiple Runners may share
// one Globals; each Runner otherwise owns its own state.
type Runner struct {
	story   *Story
	globals *Globals
	cfg     Config

	ip ip

	eval    *restorableStack[Value]
	runtime *runtimeStack
	output  *outputStream
	choices *restorableStack[Choice]
	tags    *restorableStack[tag]

	fallback      fallbackChoice
	savedFallback fallbackChoice
	fallbackSaved bool

	speculating bool

	evalMode   bool
	stringMode bool

	dead    bool
	blocked bool

	linesCommitted int

	stringCaptureStarts []int
	tagCaptureStarts    []int

	nextThreadID atomic.Uint32

	externals map[uint32]externalBinding

	// ctx is passed to every ExternalFunc call; defaults to
	// context.Background() so embedders that never call SetContext see
	// ordinary unbounded calls.
	ctx context.Context

	// pendingExternalCalls queues unsafe external calls made during a
	// speculative lookahead (spec §9); they run for real once the
	// lookahead's changes are made permanent via forgetAll.
	pendingExternalCalls []func() error

	trace io.Writer
}

// NewRunner creates a Runner over story sharing globals (spec §6
// `story.new_runner(globals)`). Pass a fresh *Globals from
// NewGlobals(story) for an independent playthrough, or an existing one
// to have multiple Runners observe the same variables/visit counts.
func NewRunner(story *Story, globals *Globals, cfg Config) *Runner {
	r := &Runner{
		story:   story,
		globals: globals,
		cfg:     cfg,
		ip:      story.Root,
		eval:    newRestorableStack[Value]("eval stack", cfg.DynamicEvalStack, cfg.EvalStackCapacity),
		runtime: newRuntimeStack(),
		output:  newOutputStream(cfg.DynamicOutput, cfg.OutputCapacity, globals.strings, globals.lists),
		choices:   newRestorableStack[Choice]("choices", cfg.DynamicChoices, cfg.ChoicesCapacity),
		tags:      newRestorableStack[tag]("tags", true, 0),
		externals: make(map[uint32]externalBinding),
		ctx:       context.Background(),
	}
	if cfg.InitialRNGSeed != 0 {
		globals.SeedRNG(cfg.InitialRNGSeed)
	}
	return r
}

// SetTrace installs an io.Writer that receives one disassembled line per
// executed instruction, modeled on `runner_impl::_debug_stream`
// (SPEC_FULL.md supplement 5). Pass nil to disable.
func (r *Runner) SetTrace(w io.Writer) { r.trace = w }

// SetContext installs the context passed to every subsequent
// ExternalFunc call. Passing nil restores context.Background().
func (r *Runner) SetContext(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	r.ctx = ctx
}

func (r *Runner) traceOp(at ip, op Opcode) {
	if r.trace == nil {
		return
	}
	fmt.Fprintf(r.trace, "%06d %s\n", at, op)
}

// CanContinue reports whether the Runner can produce more text without
// further input (spec §6 `can_continue`).
func (r *Runner) CanContinue() bool { return !r.dead && !r.blocked }

// HasChoices reports whether a choice list is waiting to be chosen from.
func (r *Runner) HasChoices() bool { return r.choices.Len() > 0 }

// Choices returns the currently offered choices in presentation order.
func (r *Runner) Choices() []Choice { return append([]Choice(nil), r.choices.All()...) }

// HasTags reports whether any tags, of any level, have accumulated.
func (r *Runner) HasTags() bool { return r.tags.Len() > 0 }

// NumTags returns the number of currently accumulated tags.
func (r *Runner) NumTags() int { return r.tags.Len() }

// GetTag returns the text of the i'th accumulated tag.
func (r *Runner) GetTag(i int) (string, bool) {
	t, ok := r.tags.Get(i)
	if !ok {
		return "", false
	}
	return r.globals.strings.Get(t.text), true
}

// GlobalTags returns the text of every tag accumulated at global level.
func (r *Runner) GlobalTags() []string {
	var out []string
	for _, t := range r.tags.All() {
		if t.level == TagLevelGlobal {
			out = append(out, r.globals.strings.Get(t.text))
		}
	}
	return out
}

// SetRNGSeed reseeds the shared Globals' random generator (spec §6
// `set_rng_seed`).
func (r *Runner) SetRNGSeed(seed uint32) { r.globals.SeedRNG(seed) }

// BindExternal registers an embedder function under name, called when
// the story invokes a knot by that hashed name via an external-call
// instruction. lookaheadSafe controls whether it may run during
// speculative line lookahead (spec §6, §9).
func (r *Runner) BindExternal(name string, fn ExternalFunc, lookaheadSafe bool) {
	r.externals[hashName(name)] = externalBinding{fn: fn, lookaheadSafe: lookaheadSafe}
}

// MoveTo diverts execution to a named knot/stitch path (spec §6
// `move_to`). Per SPEC_FULL.md supplement 2, this clears any pending
// choice list — diverting abandons the choice point it interrupts.
func (r *Runner) MoveTo(path string) error {
	if r.dead {
		return ErrDead
	}
	target, ok := r.story.ResolvePath(path)
	if !ok {
		return &RecoverableError{Msg: ErrUnknownPath.Error() + ": " + path}
	}
	r.choices.Clear()
	r.fallback = fallbackChoice{}
	r.ip = target.path
	r.blocked = false
	return nil
}

// Choose selects choice i (spec §6 `choose`): clears the choice list,
// diverts to the chosen path, pushes its captured start text back into
// the output stream, records once-only state in Globals, advances the
// turn counter, and clears line-level tags while keeping global ones
// (SPEC_FULL.md supplement 1).
func (r *Runner) Choose(i int) error {
	if r.dead {
		return ErrDead
	}
	c, ok := r.choices.Get(i)
	if !ok {
		return &RecoverableError{Msg: ErrChoiceOutOfRange.Error()}
	}
	r.choices.Clear()
	r.clearTags(tagClearKeepGlobals)

	if c.onceOnly {
		r.globals.MarkPicked(c.pathHash)
	}
	if c.capturedStart != "" {
		ref := r.globals.strings.Intern(c.capturedStart)
		_ = r.output.Append(NewStringValue(ref))
	}
	r.globals.AdvanceTurn()
	r.ip = c.sourcePath.path
	r.blocked = false
	return nil
}

func (r *Runner) clearTags(kind tagClearKind) {
	switch kind {
	case tagClearAll:
		r.tags.Clear()
	case tagClearKeepGlobals:
		kept := make([]tag, 0, r.tags.Len())
		for _, t := range r.tags.All() {
			if t.level == TagLevelGlobal {
				kept = append(kept, t)
			}
		}
		r.tags.Clear()
		for _, t := range kept {
			_ = r.tags.Push(t)
		}
	case tagClearKeepChoice:
		kept := make([]tag, 0, r.tags.Len())
		for _, t := range r.tags.All() {
			if t.level == TagLevelGlobal || t.level == TagLevelChoice {
				kept = append(kept, t)
			}
		}
		r.tags.Clear()
		for _, t := range kept {
			_ = r.tags.Push(t)
		}
	}
}

// tryAutoFallback resolves the single invisible-default choice slot
// when execution has blocked with no normal choices presented, per
// spec §4.5: "Invisible defaults are ... selected iff, when execution
// ends with no normal choices presented, exactly one default is
// available." It reports whether it resumed execution.
func (r *Runner) tryAutoFallback() bool {
	if r.choices.Len() != 0 || !r.fallback.set {
		return false
	}
	fc := r.fallback.choice
	r.fallback = fallbackChoice{}
	if fc.capturedStart != "" {
		ref := r.globals.strings.Intern(fc.capturedStart)
		_ = r.output.Append(NewStringValue(ref))
	}
	r.ip = fc.sourcePath.path
	return true
}

func (r *Runner) currentTagLevel() TagLevel {
	if r.linesCommitted == 0 && r.runtime.Depth() == 0 {
		return TagLevelGlobal
	}
	return TagLevelLine
}

// currentThreadID returns the ThreadID of the innermost live thread
// frame, or 0 if execution has not forked (the implicit root thread).
func (r *Runner) currentThreadID() uint32 {
	frames := r.runtime.frames.All()
	for i := len(frames) - 1; i >= 0; i-- {
		if frames[i].Kind == FrameThread {
			return frames[i].ThreadID
		}
	}
	return 0
}

// GetLine runs until one user-visible line is ready, a choice point
// blocks for input, or the story ends (spec §6 `getline`, §4.6
// `advance_line`).
func (r *Runner) GetLine() (string, error) {
	if r.dead {
		return "", ErrDead
	}
	for {
		outcome, err := r.execOne()
		if err != nil {
			if fe, ok := err.(*FatalError); ok {
				r.dead = true
				return "", fe
			}
			if re, ok := err.(*ResourceError); ok {
				r.dead = true
				return "", re
			}
			return "", err
		}
		if outcome.blocked {
			if r.tryAutoFallback() {
				continue
			}
			r.blocked = true
			return r.commitLine(), nil
		}
		if outcome.lineReady {
			text, extend, err := r.detectChange()
			if err != nil {
				if fe, ok := err.(*FatalError); ok {
					r.dead = true
					return "", fe
				}
				if re, ok := err.(*ResourceError); ok {
					r.dead = true
					return "", re
				}
				return "", err
			}
			if !extend {
				return text, nil
			}
			continue
		}
	}
}

// GetAll drains every line available before the next choice point or
// the story's end (spec §6 `getall`), joined with newlines.
func (r *Runner) GetAll() (string, error) {
	var out string
	first := true
	for r.CanContinue() {
		line, err := r.GetLine()
		if err != nil {
			return out, err
		}
		if line == "" && !first {
			break
		}
		if !first {
			out += "\n"
		}
		out += line
		first = false
	}
	return out, nil
}

// commitLine renders whatever remains in the output stream, clears it,
// and returns the user-visible text.
func (r *Runner) commitLine() string {
	all := r.output.stack.All()
	text := r.output.render(all)
	r.output.Clear()
	if text != "" {
		r.linesCommitted++
	}
	return text
}

// saveAll opens a single, non-nested save point across every
// restorable container this Runner owns, for the speculative
// line-boundary lookahead (spec §4.6, §9).
func (r *Runner) saveAll() error {
	if err := r.eval.Save(); err != nil {
		return err
	}
	if err := r.runtime.Save(); err != nil {
		return err
	}
	if err := r.output.Save(); err != nil {
		return err
	}
	if err := r.choices.Save(); err != nil {
		return err
	}
	if err := r.tags.Save(); err != nil {
		return err
	}
	r.savedFallback = r.fallback
	r.fallbackSaved = true
	r.speculating = true
	return nil
}

func (r *Runner) restoreAll() {
	_ = r.eval.Restore()
	_ = r.runtime.Restore()
	_ = r.output.Restore()
	_ = r.choices.Restore()
	_ = r.tags.Restore()
	if r.fallbackSaved {
		r.fallback = r.savedFallback
		r.fallbackSaved = false
	}
	// Deferred unsafe external calls queued during a lookahead that got
	// rolled back must never run (spec §9).
	r.pendingExternalCalls = nil
	r.speculating = false
}

func (r *Runner) forgetAll() {
	_ = r.eval.Forget()
	_ = r.runtime.Forget()
	_ = r.output.Forget()
	_ = r.choices.Forget()
	_ = r.tags.Forget()
	r.fallbackSaved = false
	r.speculating = false
	pending := r.pendingExternalCalls
	r.pendingExternalCalls = nil
	for _, call := range pending {
		_ = call()
	}
}

// maxLookaheadSteps bounds the speculative run in detectChange so
// malformed bytecode that never produces a decisive signal (glue,
// printable text, a blocked state, or another line boundary) cannot
// spin the run loop forever.
const maxLookaheadSteps = 4096

// detectChange runs speculatively past a pending newline, re-stepping
// until it reaches a decisive signal, and classifies what happened per
// spec §4.6's line-detection algorithm: a sequence like `push "B"` then
// `out` takes two instructions before anything lands in the output
// stream, so the lookahead must be able to run more than one
// instruction under a single save point before deciding.
func (r *Runner) detectChange() (text string, extend bool, err error) {
	if err := r.saveAll(); err != nil {
		return "", false, err
	}
	beforeLen := r.output.Len()

	for i := 0; i < maxLookaheadSteps; i++ {
		outcome, stepErr := r.execOne()
		if stepErr != nil {
			r.restoreAll()
			if fe, ok := stepErr.(*FatalError); ok {
				return "", false, fe
			}
			return "", false, stepErr
		}

		switch {
		case r.output.EndsWith(TypeGlue):
			r.forgetAll()
			return "", true, nil
		case r.output.Len() > beforeLen && r.hasNonWhitespaceSince(beforeLen):
			r.forgetAll()
			return "", true, nil
		case outcome.blocked:
			if r.tryAutoFallback() {
				r.forgetAll()
				return "", true, nil
			}
			r.forgetAll()
			r.blocked = true
			return r.commitLine(), false, nil
		case outcome.lineReady:
			// A second newline reached with nothing printable in
			// between: the first newline is superseded by this one,
			// so commit as of right before it.
			r.restoreAll()
			return r.commitLine(), false, nil
		}
	}

	r.restoreAll()
	return r.commitLine(), false, nil
}

func (r *Runner) hasNonWhitespaceSince(since int) bool {
	all := r.output.stack.All()
	if since > len(all) {
		since = len(all)
	}
	for _, v := range all[since:] {
		if r.output.valuePrintsNonWhitespace(v) {
			return true
		}
	}
	return false
}

// markUsed marks every string/list this Runner still references as
// live, for Globals.GC's cooperative mark phase (spec §5, §9 "the mark
// phase of GC is cooperative: globals asks each runner to mark").
func (r *Runner) markUsed(strs *stringTable, lists *listTable) {
	r.output.mark()
	for _, c := range r.choices.All() {
		strs.Mark(stringRefOfText(strs, c.text))
	}
	for _, v := range r.eval.All() {
		markValue(v, strs, lists)
	}
	for _, b := range r.runtime.bindings.All() {
		markValue(b.value, strs, lists)
	}
	for _, t := range r.tags.All() {
		strs.Mark(t.text)
	}
}

// stringRefOfText is a best-effort remark helper: choice text is stored
// as a plain Go string (spec §3's "text_pointer" resolved eagerly at
// creation), so there is no live stringRef to mark unless it happens to
// still be interned under the same content; this keeps mark/sweep from
// panicking on a miss rather than pretending to mark something that may
// not exist.
func stringRefOfText(strs *stringTable, s string) stringRef {
	if s == "" {
		return nilStringRef
	}
	if ref, ok := strs.byContent[s]; ok {
		return ref
	}
	return nilStringRef
}
