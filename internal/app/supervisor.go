package app

import "context"

// maxGenerations caps the restart loop. After a pull the local and remote
// revisions match, so the second generation cannot request another restart;
// the cap turns that reasoning into a hard guarantee.
const maxGenerations = 2

// Builder constructs a fresh Orchestrator for one generation together with a
// cleanup that releases its resources (log sink, journal, open handles).
// Each generation gets fresh resources so a restart starts from a clean
// slate with the same original arguments.
type Builder func(generation int) (*Orchestrator, func(), error)

// Supervise runs the pipeline, re-running it once as a fresh logical run
// when self-update replaced the entry point. This supersedes the in-place
// process replacement the launcher used to do: resources are released
// between generations instead of being leaked into an exec.
func Supervise(ctx context.Context, build Builder) error {
	for generation := 0; generation < maxGenerations; generation++ {
		o, cleanup, err := build(generation)
		if err != nil {
			return err
		}
		restart, runErr := o.Run(ctx)
		cleanup()
		if runErr != nil {
			return runErr
		}
		if !restart {
			return nil
		}
	}
	return nil
}
