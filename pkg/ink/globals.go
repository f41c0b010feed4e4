package ink

import "sync"

// Globals holds the mutable state shared by every Runner created against
// one Story: variables, per-container visit counts, the turn index, the
// set of already-picked once-only choice paths, the shared string/list
// tables, and the shared RNG (spec §3, §4.7). Writes from one Runner's
// step() are visible to every other Runner sharing this object as soon as
// that step() returns (spec §5); the core itself does no cross-goroutine
// locking beyond guarding this struct's own fields; an embedder driving
// runners from multiple OS threads must still serialize calls into the
// Story/Globals/Runner API itself.
type Globals struct {
	mu sync.RWMutex

	vars            map[uint32]Value
	visitCounts     map[containerID]int32
	turnOfLastVisit map[containerID]int32
	currentTurn     int32
	oncePicked      map[uint64]struct{}

	strings *stringTable
	lists   *listTable
	rng     *rng32
}

// NewGlobals creates a fresh Globals for story, with every global
// variable initialized from the story's declared defaults.
func NewGlobals(story *Story) *Globals {
	g := &Globals{
		vars:            make(map[uint32]Value, len(story.GlobalDefaults)),
		visitCounts:     make(map[containerID]int32),
		turnOfLastVisit: make(map[containerID]int32),
		oncePicked:      make(map[uint64]struct{}),
		strings:         newStringTable(),
		lists:           newListTable(story.Lists),
		rng:             newRNG(1),
	}
	for name, v := range story.GlobalDefaults {
		g.vars[name] = v
	}
	return g
}

func (g *Globals) GetVar(name uint32) (Value, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	v, ok := g.vars[name]
	return v, ok
}

// SetVar sets a global variable. redef additionally creates the variable
// if it does not already exist; otherwise setting an undefined global is
// the caller's error (spec §4.6, set_var contract).
func (g *Globals) SetVar(name uint32, v Value, redef bool) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !redef {
		if _, ok := g.vars[name]; !ok {
			return ErrUndefinedVariable
		}
	}
	g.vars[name] = v
	return nil
}

func (g *Globals) VisitCount(c containerID) int32 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.visitCounts[c]
}

func (g *Globals) TurnsSince(c containerID) int32 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	last, ok := g.turnOfLastVisit[c]
	if !ok {
		return -1
	}
	return g.currentTurn - last
}

// RecordVisit increments c's visit count and stamps the current turn
// index, per spec §8 invariant 5: exactly once per entry through a
// record_visits divert.
func (g *Globals) RecordVisit(c containerID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.visitCounts[c]++
	g.turnOfLastVisit[c] = g.currentTurn
}

// AdvanceTurn increments the turn index. The Runner calls this once per
// player Choose().
func (g *Globals) AdvanceTurn() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.currentTurn++
}

// MarkPicked records that a once-only choice at pathHash has been taken.
// Once recorded here, it is filtered from every Runner sharing this
// Globals (spec §8 invariant 4).
func (g *Globals) MarkPicked(pathHash uint64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.oncePicked[pathHash] = struct{}{}
}

func (g *Globals) IsPicked(pathHash uint64) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.oncePicked[pathHash]
	return ok
}

func (g *Globals) SeedRNG(seed uint32) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rng.Seed(seed)
}

func (g *Globals) nextRandom() uint32 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.rng.Next()
}

func (g *Globals) randIntn(n int32) int32 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.rng.Intn(n)
}

// GC runs a full mark/sweep pass over the shared string and list tables:
// it resets marks, asks every runner (plus the globals' own variables) to
// mark what they still reference, then sweeps. Per spec §5, this is
// embedder-triggered; nothing inside the package calls it automatically.
func (g *Globals) GC(runners ...*Runner) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.strings.ResetMarks()
	g.lists.ResetMarks()

	for _, v := range g.vars {
		markValue(v, g.strings, g.lists)
	}
	for _, r := range runners {
		r.markUsed(g.strings, g.lists)
	}

	g.strings.Sweep()
	g.lists.Sweep()
}

func markValue(v Value, strs *stringTable, lists *listTable) {
	switch v.Type {
	case TypeString:
		strs.Mark(v.str)
	case TypeList:
		lists.Mark(v.list)
	}
}
