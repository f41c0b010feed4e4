package ink

import "testing"

func buildHelloWorldStory(t *testing.T) *Story {
	t.Helper()
	b := NewStoryBuilder()
	b.Knot("start").
		Line("Hello, world.").
		Line("A bytecode runner said that.").
		DivertTo("END", false).
		EndKnot()
	story, err := b.Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	return story
}

func TestRunnerPlainTextRunsToCompletion(t *testing.T) {
	story := buildHelloWorldStory(t)
	runner := NewRunner(story, NewGlobals(story), DefaultConfig())

	all, err := runner.GetAll()
	if err != nil {
		t.Fatalf("GetAll: %v", err)
	}
	want := "Hello, world.\nA bytecode runner said that."
	if all != want {
		t.Fatalf("GetAll() = %q, want %q", all, want)
	}
	if runner.CanContinue() {
		t.Fatal("runner should not be able to continue once the story ends")
	}
	if runner.HasChoices() {
		t.Fatal("a plain-text story should never offer choices")
	}
}

func buildBranchingStory(t *testing.T) *Story {
	t.Helper()
	b := NewStoryBuilder()
	b.Knot("start").
		Line("You stand at a crossroads.").
		Choice(ChoiceSpec{StartText: "Go north.", Target: "north"}).
		Choice(ChoiceSpec{StartText: "Go south.", Target: "south"}).
		Done().
		EndKnot()
	b.Knot("north").
		Line("The north road leads to the mountains.").
		DivertTo("END", false).
		EndKnot()
	b.Knot("south").
		Line("The south road leads to the sea.").
		DivertTo("END", false).
		EndKnot()
	story, err := b.Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	return story
}

func TestRunnerOffersChoicesAndResumesOnChoose(t *testing.T) {
	story := buildBranchingStory(t)
	runner := NewRunner(story, NewGlobals(story), DefaultConfig())

	if _, err := runner.GetAll(); err != nil {
		t.Fatalf("GetAll: %v", err)
	}
	if !runner.HasChoices() {
		t.Fatal("expected the runner to block on a choice point")
	}
	choices := runner.Choices()
	if len(choices) != 2 {
		t.Fatalf("len(Choices()) = %d, want 2", len(choices))
	}
	if choices[0].Text() != "Go north." || choices[1].Text() != "Go south." {
		t.Fatalf("unexpected choice texts: %q, %q", choices[0].Text(), choices[1].Text())
	}

	if err := runner.Choose(1); err != nil {
		t.Fatalf("Choose: %v", err)
	}
	all, err := runner.GetAll()
	if err != nil {
		t.Fatalf("GetAll after choose: %v", err)
	}
	if all != "Go south.The south road leads to the sea." {
		t.Fatalf("GetAll() after choosing south = %q", all)
	}
	if runner.HasChoices() {
		t.Fatal("choice list should be cleared after following a branch to its end")
	}
}

func TestRunnerChooseOutOfRangeIsRecoverable(t *testing.T) {
	story := buildBranchingStory(t)
	runner := NewRunner(story, NewGlobals(story), DefaultConfig())
	if _, err := runner.GetAll(); err != nil {
		t.Fatalf("GetAll: %v", err)
	}

	err := runner.Choose(99)
	if err == nil {
		t.Fatal("expected an error choosing an out-of-range index")
	}
	if _, ok := err.(*RecoverableError); !ok {
		t.Fatalf("expected *RecoverableError, got %T: %v", err, err)
	}
	if !runner.CanContinue() && !runner.HasChoices() {
		t.Fatal("a recoverable error must leave the runner's state usable")
	}
}

func buildThreadedGlueStory(t *testing.T) *Story {
	t.Helper()
	b := NewStoryBuilder()
	b.Knot("start").
		Text("Lights flicker").
		Glue().
		ThreadTo("flavor").
		Newline().
		DivertTo("END", false).
		EndKnot()
	b.Knot("flavor").
		Text(" and hum softly.").
		Done().
		EndKnot()
	story, err := b.Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	return story
}

func TestRunnerThreadForkGluesOutputAcrossBoundary(t *testing.T) {
	story := buildThreadedGlueStory(t)
	runner := NewRunner(story, NewGlobals(story), DefaultConfig())

	all, err := runner.GetAll()
	if err != nil {
		t.Fatalf("GetAll: %v", err)
	}
	want := "Lights flickerand hum softly."
	if all != want {
		t.Fatalf("GetAll() = %q, want %q", all, want)
	}
}

func buildOnceOnlyStory(t *testing.T) *Story {
	t.Helper()
	b := NewStoryBuilder()
	b.Knot("start").
		Line("A locked door blocks the way.").
		Choice(ChoiceSpec{StartText: "Try the door.", Target: "tried", OnceOnly: true}).
		Choice(ChoiceSpec{StartText: "Walk away.", Target: "away"}).
		Done().
		EndKnot()
	b.Knot("tried").
		Line("It's locked.").
		DivertTo("END", false).
		EndKnot()
	b.Knot("away").
		Line("You leave.").
		DivertTo("END", false).
		EndKnot()
	story, err := b.Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	return story
}

func TestRunnerOnceOnlyChoiceIsFilteredAcrossRunnersSharingGlobals(t *testing.T) {
	story := buildOnceOnlyStory(t)
	globals := NewGlobals(story)

	first := NewRunner(story, globals, DefaultConfig())
	if _, err := first.GetAll(); err != nil {
		t.Fatalf("GetAll: %v", err)
	}
	if len(first.Choices()) != 2 {
		t.Fatalf("expected 2 choices on first visit, got %d", len(first.Choices()))
	}
	if err := first.Choose(0); err != nil {
		t.Fatalf("Choose: %v", err)
	}
	if _, err := first.GetAll(); err != nil {
		t.Fatalf("GetAll after choose: %v", err)
	}

	second := NewRunner(story, globals, DefaultConfig())
	if _, err := second.GetAll(); err != nil {
		t.Fatalf("GetAll: %v", err)
	}
	choices := second.Choices()
	if len(choices) != 1 {
		t.Fatalf("expected the once-only choice to be filtered out on revisit, got %d choices", len(choices))
	}
	if choices[0].Text() != "Walk away." {
		t.Fatalf("remaining choice = %q, want %q", choices[0].Text(), "Walk away.")
	}
}

func buildGlobalVarStory(t *testing.T) *Story {
	t.Helper()
	b := NewStoryBuilder()
	b.Global("counter", NewInt(0))
	b.Knot("start").
		SetVar("counter", NewInt(41), false).
		PrintVar("counter").
		DivertTo("END", false).
		EndKnot()
	story, err := b.Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	return story
}

func TestRunnerSetVarAndPrintVar(t *testing.T) {
	story := buildGlobalVarStory(t)
	globals := NewGlobals(story)
	runner := NewRunner(story, globals, DefaultConfig())

	all, err := runner.GetAll()
	if err != nil {
		t.Fatalf("GetAll: %v", err)
	}
	if all != "41" {
		t.Fatalf("GetAll() = %q, want %q", all, "41")
	}
	v, ok := globals.GetVar(hashName("counter"))
	if !ok || v.AsInt() != 41 {
		t.Fatalf("globals var counter = %v, %v; want 41, true", v, ok)
	}
}

func TestRunnerSetVarOnUndefinedWithoutRedefIsError(t *testing.T) {
	b := NewStoryBuilder()
	b.Knot("start").
		SetVar("nope", NewInt(1), false).
		DivertTo("END", false).
		EndKnot()
	story, err := b.Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	runner := NewRunner(story, NewGlobals(story), DefaultConfig())
	if _, err := runner.GetAll(); err == nil {
		t.Fatal("expected an error setting an undefined variable without redef")
	}
}

func TestRunnerFatalDivisionByZeroDeadStatesTheRunner(t *testing.T) {
	b := NewStoryBuilder()
	b.Knot("start")
	b.emitOp(OpPushInt)
	b.emitInt32(1)
	b.emitOp(OpPushInt)
	b.emitInt32(0)
	b.emitOp(OpBinaryOp)
	b.emitByte(byte(OpDiv))
	b.emitOp(OpOut)
	b.EndKnot()
	story, err := b.Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	runner := NewRunner(story, NewGlobals(story), DefaultConfig())
	_, err = runner.GetAll()
	if err == nil {
		t.Fatal("expected a fatal error dividing by zero")
	}
	if _, ok := err.(*FatalError); !ok {
		t.Fatalf("expected *FatalError, got %T: %v", err, err)
	}
	if runner.CanContinue() {
		t.Fatal("runner should be dead after a fatal error")
	}
	if _, err := runner.GetLine(); err != ErrDead {
		t.Fatalf("GetLine on a dead runner = %v, want ErrDead", err)
	}
}

func TestRunnerPrintVisitCountBeforeAnyRecordingDivertReadsZero(t *testing.T) {
	b := NewStoryBuilder()
	b.Knot("start").
		PrintVisitCount("start").
		DivertTo("END", false).
		EndKnot()
	story, err := b.Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	runner := NewRunner(story, NewGlobals(story), DefaultConfig())

	all, err := runner.GetAll()
	if err != nil {
		t.Fatalf("GetAll: %v", err)
	}
	if all != "0" {
		t.Fatalf("GetAll() = %q, want %q", all, "0")
	}
}
