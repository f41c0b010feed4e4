// Command inkrun drives an already-built ink.Story interactively from
// stdin/stdout, or replays a batch of independent self-play sessions
// concurrently. It deliberately does not compile ink source: spec.md
// places the source-language compiler out of scope, so inkrun only
// loads a story the in-module builder produced or a snapshot file
// saved by a previous run, mirroring inkcpp_cl's compile-then-run
// phase separation even though the compile half lives elsewhere
// (original_source/inkcpp_cl/inkcpp_cl.cpp; SPEC_FULL.md supplement 6).
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/inkgo-dev/inkgo/internal/batch"
	"github.com/inkgo-dev/inkgo/pkg/ink"
)

func main() {
	var (
		seed     = flag.Uint("seed", 0, "seed the story's random generator (0 leaves the default)")
		trace    = flag.Bool("trace", false, "write one disassembled line per executed instruction to stderr")
		snapFile = flag.String("snapshot", "", "load story state from a previously saved snapshot file")
		demo     = flag.String("demo", "hello-world", "built-in demo story to run when -snapshot is not given")
		selfplay = flag.Int("selfplay", 0, "run N independent self-play sessions concurrently instead of reading from stdin")
		workers  = flag.Int("workers", 0, "worker count for -selfplay (0 == runtime.NumCPU())")
	)
	flag.Parse()

	story, err := loadDemo(*demo)
	if err != nil {
		fmt.Fprintln(os.Stderr, "inkrun:", err)
		os.Exit(1)
	}

	if *selfplay > 0 {
		runSelfPlay(story, *selfplay, *workers, uint32(*seed))
		return
	}

	var runner *ink.Runner
	if *snapFile != "" {
		data, err := os.ReadFile(*snapFile)
		if err != nil {
			fmt.Fprintln(os.Stderr, "inkrun:", err)
			os.Exit(1)
		}
		runner, err = ink.LoadRunnerSnapshot(data, story)
		if err != nil {
			fmt.Fprintln(os.Stderr, "inkrun:", err)
			os.Exit(1)
		}
	} else {
		globals := ink.NewGlobals(story)
		cfg := ink.DefaultConfig()
		if *seed != 0 {
			cfg.InitialRNGSeed = uint32(*seed)
		}
		runner = ink.NewRunner(story, globals, cfg)
	}

	if *trace {
		runner.SetTrace(os.Stderr)
	}

	driveInteractive(runner)
}

// driveInteractive runs the classic getline/choose loop against
// stdin/stdout, modeled on romualdo's pkg/vm.go REPL loop and on
// original_source/inkcpp_cl/inkcpp_cl.cpp's `std::cin >> c` prompt
// (SPEC_FULL.md's Domain Stack entry for bufio).
func driveInteractive(runner *ink.Runner) {
	stdin := bufio.NewReader(os.Stdin)

	for runner.CanContinue() {
		line, err := runner.GetLine()
		if err != nil {
			fmt.Fprintln(os.Stderr, "inkrun:", err)
			os.Exit(1)
		}
		if line != "" {
			fmt.Println(line)
		}
	}

	for runner.HasChoices() {
		for _, c := range runner.Choices() {
			fmt.Printf("%d. %s\n", c.Index()+1, c.Text())
		}
		fmt.Print("> ")

		raw, err := stdin.ReadString('\n')
		if err != nil {
			return
		}
		raw = strings.TrimSpace(raw)
		choice, err := strconv.Atoi(raw)
		if err != nil || choice < 1 {
			fmt.Println("inkrun: enter a choice number")
			continue
		}
		if err := runner.Choose(choice - 1); err != nil {
			fmt.Println("inkrun:", err)
			continue
		}

		for runner.CanContinue() {
			line, err := runner.GetLine()
			if err != nil {
				fmt.Fprintln(os.Stderr, "inkrun:", err)
				os.Exit(1)
			}
			if line != "" {
				fmt.Println(line)
			}
		}
	}
}

// runSelfPlay drives n independent playthroughs of story concurrently,
// each with its own Globals, always picking the first offered choice
// until the story ends. It exists as a smoke-testing and fuzzing
// fixture: a bytecode image that deadlocks, panics, or never reaches
// `end` under automated play surfaces immediately across a batch
// instead of needing a human at the keyboard.
func runSelfPlay(story *ink.Story, n, workers int, seed uint32) {
	pool := batch.NewPool(workers)
	defer pool.Close()

	ctx := context.Background()
	results := make(chan string, n)

	for i := 0; i < n; i++ {
		i := i
		err := pool.Submit(ctx, func() {
			globals := ink.NewGlobals(story)
			cfg := ink.DefaultConfig()
			cfg.InitialRNGSeed = seed + uint32(i)
			runner := ink.NewRunner(story, globals, cfg)

			lines := 0
			for runner.CanContinue() || runner.HasChoices() {
				for runner.CanContinue() {
					if _, err := runner.GetLine(); err != nil {
						results <- fmt.Sprintf("session %d: error: %v", i, err)
						return
					}
					lines++
				}
				if runner.HasChoices() {
					if err := runner.Choose(0); err != nil {
						results <- fmt.Sprintf("session %d: error: %v", i, err)
						return
					}
				}
			}
			results <- fmt.Sprintf("session %d: ok, %d lines", i, lines)
		})
		if err != nil {
			fmt.Fprintln(os.Stderr, "inkrun:", err)
			os.Exit(1)
		}
	}

	for i := 0; i < n; i++ {
		fmt.Println(<-results)
	}
	fmt.Fprintln(os.Stderr, "inkrun: self-play", pool.Stats())
}

func loadDemo(name string) (*ink.Story, error) {
	switch name {
	case "hello-world":
		return buildHelloWorld()
	case "branching-choices":
		return buildBranchingChoices()
	case "threaded-glue":
		return buildThreadedGlue()
	case "snapshot-branch":
		return buildSnapshotBranch()
	default:
		return nil, fmt.Errorf("unknown -demo %q (want hello-world, branching-choices, threaded-glue, or snapshot-branch)", name)
	}
}
