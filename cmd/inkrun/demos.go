package main

import "github.com/inkgo-dev/inkgo/pkg/ink"

// buildHelloWorld is the smallest possible story: one knot, two lines,
// falling through to the implicit END.
func buildHelloWorld() (*ink.Story, error) {
	b := ink.NewStoryBuilder()
	b.Knot("start").
		Line("Hello, world.").
		Line("This is inkgo running a hand-assembled story.").
		DivertTo("END", false).
		EndKnot()
	return b.Build()
}

// buildBranchingChoices exercises OpChoice and a player-facing stop
// point: the knot calls Done() right after offering its two choices,
// which blocks execution until the embedder calls Choose.
func buildBranchingChoices() (*ink.Story, error) {
	b := ink.NewStoryBuilder()
	b.Knot("start").
		Line("You stand at a crossroads.").
		Choice(ink.ChoiceSpec{StartText: "Go north.", Target: "north"}).
		Choice(ink.ChoiceSpec{StartText: "Go south.", Target: "south"}).
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
	return b.Build()
}

// buildThreadedGlue exercises OpThread/OpDone and glue together: the
// forked "flavor" knot's text is glued onto the parent's text across
// the fork boundary, then Done() unwinds back to the parent, which
// continues with its own newline.
func buildThreadedGlue() (*ink.Story, error) {
	b := ink.NewStoryBuilder()
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
	return b.Build()
}

// buildSnapshotBranch is a once-only branch with a global variable
// each path updates, sized for the snapshot-branch example to
// snapshot mid-choice and show two Runners loaded from the same blob
// diverging independently.
func buildSnapshotBranch() (*ink.Story, error) {
	b := ink.NewStoryBuilder()
	b.Global("travelled", ink.NewInt(0))
	b.Knot("start").
		Line("The path splits ahead.").
		Choice(ink.ChoiceSpec{StartText: "Take the left trail.", Target: "left", OnceOnly: true}).
		Choice(ink.ChoiceSpec{StartText: "Take the right trail.", Target: "right", OnceOnly: true}).
		Done().
		EndKnot()
	b.Knot("left").
		SetVar("travelled", ink.NewInt(1), false).
		Line("The left trail winds through pines.").
		DivertTo("END", false).
		EndKnot()
	b.Knot("right").
		SetVar("travelled", ink.NewInt(2), false).
		Line("The right trail climbs a ridge.").
		DivertTo("END", false).
		EndKnot()
	return b.Build()
}
