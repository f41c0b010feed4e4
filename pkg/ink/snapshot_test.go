package ink

import "testing"

func buildSnapshotBranchStory(t *testing.T) *Story {
	t.Helper()
	b := NewStoryBuilder()
	b.Global("travelled", NewInt(0))
	b.Knot("start").
		Line("The path splits ahead.").
		Choice(ChoiceSpec{StartText: "Take the left trail.", Target: "left", OnceOnly: true}).
		Choice(ChoiceSpec{StartText: "Take the right trail.", Target: "right", OnceOnly: true}).
		Done().
		EndKnot()
	b.Knot("left").
		SetVar("travelled", NewInt(1), false).
		Line("The left trail winds through pines.").
		DivertTo("END", false).
		EndKnot()
	b.Knot("right").
		SetVar("travelled", NewInt(2), false).
		Line("The right trail climbs a ridge.").
		DivertTo("END", false).
		EndKnot()
	story, err := b.Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	return story
}

func TestSnapshotRoundTripPreservesChoicePoint(t *testing.T) {
	story := buildSnapshotBranchStory(t)
	runner := NewRunner(story, NewGlobals(story), DefaultConfig())
	if _, err := runner.GetAll(); err != nil {
		t.Fatalf("GetAll: %v", err)
	}
	if !runner.HasChoices() {
		t.Fatal("expected a blocked choice point before snapshotting")
	}

	blob := runner.CreateSnapshot()
	loaded, err := LoadRunnerSnapshot(blob, story)
	if err != nil {
		t.Fatalf("LoadRunnerSnapshot: %v", err)
	}

	if !loaded.HasChoices() {
		t.Fatal("a restored runner should still have the pending choices")
	}
	choices := loaded.Choices()
	if len(choices) != 2 || choices[0].Text() != "Take the left trail." {
		t.Fatalf("unexpected restored choices: %+v", choices)
	}

	if err := loaded.Choose(0); err != nil {
		t.Fatalf("Choose on restored runner: %v", err)
	}
	all, err := loaded.GetAll()
	if err != nil {
		t.Fatalf("GetAll: %v", err)
	}
	if all != "Take the left trail.The left trail winds through pines." {
		t.Fatalf("GetAll() after restoring and choosing = %q", all)
	}
}

func TestSnapshotTwoLoadsDivergeIndependently(t *testing.T) {
	story := buildSnapshotBranchStory(t)
	runner := NewRunner(story, NewGlobals(story), DefaultConfig())
	if _, err := runner.GetAll(); err != nil {
		t.Fatalf("GetAll: %v", err)
	}

	blob := runner.CreateSnapshot()

	leftGlobals, leftRunners, err := LoadSnapshot(blob, story)
	if err != nil {
		t.Fatalf("LoadSnapshot (left): %v", err)
	}
	rightGlobals, rightRunners, err := LoadSnapshot(blob, story)
	if err != nil {
		t.Fatalf("LoadSnapshot (right): %v", err)
	}
	if leftGlobals == rightGlobals {
		t.Fatal("two independent LoadSnapshot calls must not share a Globals instance")
	}

	left := leftRunners[0]
	right := rightRunners[0]

	if err := left.Choose(0); err != nil {
		t.Fatalf("left Choose: %v", err)
	}
	if _, err := left.GetAll(); err != nil {
		t.Fatalf("left GetAll: %v", err)
	}
	if err := right.Choose(1); err != nil {
		t.Fatalf("right Choose: %v", err)
	}
	if _, err := right.GetAll(); err != nil {
		t.Fatalf("right GetAll: %v", err)
	}

	leftVal, ok := leftGlobals.GetVar(hashName("travelled"))
	if !ok || leftVal.AsInt() != 1 {
		t.Fatalf("left globals travelled = %v, %v; want 1, true", leftVal, ok)
	}
	rightVal, ok := rightGlobals.GetVar(hashName("travelled"))
	if !ok || rightVal.AsInt() != 2 {
		t.Fatalf("right globals travelled = %v, %v; want 2, true", rightVal, ok)
	}
}

func TestSnapshotCorruptDataIsRecoverable(t *testing.T) {
	story := buildSnapshotBranchStory(t)
	_, _, err := LoadSnapshot([]byte{1, 2, 3}, story)
	if err == nil {
		t.Fatal("expected an error loading garbage snapshot data")
	}
	if _, ok := err.(*RecoverableError); !ok {
		t.Fatalf("expected *RecoverableError, got %T: %v", err, err)
	}
}

func TestSnapshotVersionMismatchIsRecoverable(t *testing.T) {
	story := buildSnapshotBranchStory(t)
	runner := NewRunner(story, NewGlobals(story), DefaultConfig())
	if _, err := runner.GetAll(); err != nil {
		t.Fatalf("GetAll: %v", err)
	}
	blob := runner.CreateSnapshot()
	// Corrupt the version field (bytes 4..8) without touching the magic.
	bad := append([]byte(nil), blob...)
	bad[4] = 0xff

	_, _, err := LoadSnapshot(bad, story)
	if err == nil {
		t.Fatal("expected an error loading a snapshot with a mismatched version")
	}
	if _, ok := err.(*RecoverableError); !ok {
		t.Fatalf("expected *RecoverableError, got %T: %v", err, err)
	}
}

func TestSnapshotOfPlainTextStoryAfterCompletion(t *testing.T) {
	story := buildHelloWorldStory(t)
	runner := NewRunner(story, NewGlobals(story), DefaultConfig())
	if _, err := runner.GetAll(); err != nil {
		t.Fatalf("GetAll: %v", err)
	}
	if runner.CanContinue() {
		t.Fatal("expected the story to have finished")
	}

	blob := runner.CreateSnapshot()
	loaded, err := LoadRunnerSnapshot(blob, story)
	if err != nil {
		t.Fatalf("LoadRunnerSnapshot: %v", err)
	}
	if loaded.CanContinue() {
		t.Fatal("a restored finished runner should still be blocked")
	}
	if loaded.HasChoices() {
		t.Fatal("a finished plain-text story has no choices to restore")
	}
}
