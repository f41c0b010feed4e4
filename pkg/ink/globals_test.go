package ink

import "testing"

func testStoryWithGlobal(t *testing.T, name string, v Value) *Story {
	t.Helper()
	b := NewStoryBuilder()
	b.Global(name, v)
	b.Knot("start").DivertTo("END", false).EndKnot()
	story, err := b.Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	return story
}

func TestGlobalsVarDefaultsFromStory(t *testing.T) {
	story := testStoryWithGlobal(t, "gold", NewInt(100))
	g := NewGlobals(story)
	v, ok := g.GetVar(hashName("gold"))
	if !ok || v.AsInt() != 100 {
		t.Fatalf("GetVar(gold) = %v, %v; want 100, true", v, ok)
	}
}

func TestGlobalsSetVarRequiresRedefForUndefined(t *testing.T) {
	story := testStoryWithGlobal(t, "gold", NewInt(100))
	g := NewGlobals(story)

	if err := g.SetVar(hashName("silver"), NewInt(1), false); err != ErrUndefinedVariable {
		t.Fatalf("SetVar without redef on undefined var = %v, want ErrUndefinedVariable", err)
	}
	if err := g.SetVar(hashName("silver"), NewInt(1), true); err != nil {
		t.Fatalf("SetVar with redef: %v", err)
	}
	v, ok := g.GetVar(hashName("silver"))
	if !ok || v.AsInt() != 1 {
		t.Fatalf("GetVar(silver) after redef = %v, %v", v, ok)
	}
}

func TestGlobalsVisitCountAndTurnsSince(t *testing.T) {
	story := testStoryWithGlobal(t, "gold", NewInt(0))
	g := NewGlobals(story)
	var cid containerID = 1

	if n := g.TurnsSince(cid); n != -1 {
		t.Fatalf("TurnsSince before any visit = %d, want -1", n)
	}

	g.AdvanceTurn()
	g.RecordVisit(cid)
	if got := g.VisitCount(cid); got != 1 {
		t.Fatalf("VisitCount after one RecordVisit = %d, want 1", got)
	}

	g.AdvanceTurn()
	g.AdvanceTurn()
	if got := g.TurnsSince(cid); got != 2 {
		t.Fatalf("TurnsSince = %d, want 2", got)
	}

	g.RecordVisit(cid)
	if got := g.VisitCount(cid); got != 2 {
		t.Fatalf("VisitCount after second RecordVisit = %d, want 2", got)
	}
}

func TestGlobalsMarkPickedIsShared(t *testing.T) {
	story := testStoryWithGlobal(t, "gold", NewInt(0))
	g := NewGlobals(story)

	if g.IsPicked(42) {
		t.Fatal("nothing should be picked yet")
	}
	g.MarkPicked(42)
	if !g.IsPicked(42) {
		t.Fatal("MarkPicked should make IsPicked report true")
	}
	if g.IsPicked(43) {
		t.Fatal("a different hash must not be affected")
	}
}

func TestGlobalsRNGIsDeterministicForASeed(t *testing.T) {
	story := testStoryWithGlobal(t, "gold", NewInt(0))
	a := NewGlobals(story)
	b := NewGlobals(story)

	a.SeedRNG(12345)
	b.SeedRNG(12345)

	for i := 0; i < 10; i++ {
		av := a.nextRandom()
		bv := b.nextRandom()
		if av != bv {
			t.Fatalf("step %d: got %d and %d for the same seed", i, av, bv)
		}
	}
}

func TestGlobalsGCSweepsStringsNoRunnerMarks(t *testing.T) {
	story := testStoryWithGlobal(t, "gold", NewInt(0))
	g := NewGlobals(story)
	ref := g.strings.Intern("transient")
	if g.strings.Get(ref) != "transient" {
		t.Fatalf("Intern/Get round trip failed")
	}

	g.GC()

	if g.strings.Get(ref) != "" {
		t.Fatal("an unreferenced string should be reclaimed once no runner marks it")
	}
}

func TestGlobalsGCLeavesABlockedRunnerUsable(t *testing.T) {
	b := NewStoryBuilder()
	b.Knot("start").
		Line("kept alive by the output stream").
		Choice(ChoiceSpec{StartText: "Go on.", Target: "END"}).
		Done().
		EndKnot()
	story, err := b.Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	g := NewGlobals(story)
	runner := NewRunner(story, g, DefaultConfig())
	if _, err := runner.GetAll(); err != nil {
		t.Fatalf("GetAll: %v", err)
	}
	if !runner.HasChoices() {
		t.Fatal("expected a blocked choice point")
	}

	g.GC(runner)

	choices := runner.Choices()
	if len(choices) != 1 || choices[0].Text() != "Go on." {
		t.Fatalf("choice text should survive a GC pass unaffected: %+v", choices)
	}
}
