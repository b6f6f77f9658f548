// Package elevate runs commands with escalated privileges through an ordered
// chain of mechanisms. The chain depends on the run mode: a headless run can
// only use graphical helpers, an interactive run can use sudo. Mechanism
// failure or cancellation degrades to the next candidate; exhaustion prints a
// copy-pasteable remediation command and fails.
package elevate

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/example/camlaunch/internal/execx"
	"github.com/example/camlaunch/internal/runmode"
)

// ErrExhausted means no escalation mechanism could run the command. Nothing
// downstream can proceed without the elevated step, so callers treat this as
// fatal after printing the manual instructions.
var ErrExhausted = errors.New("no privilege escalation mechanism available")

// Mechanism is one way of running a command with elevated rights.
type Mechanism interface {
	Name() string
	// Available reports whether the mechanism can be attempted right now.
	// Checked fresh for every elevated command: an earlier installation
	// step may have added or removed a helper.
	Available(ctx context.Context) bool
	// Run executes the shell command elevated. An error covers both
	// mechanism failure and user cancellation.
	Run(ctx context.Context, command string) error
}

// Resolver picks and runs escalation mechanisms for one run mode.
type Resolver struct {
	runner execx.Runner
	mode   runmode.Mode
	out    io.Writer
	errw   io.Writer
	stdin  io.Reader

	// Openers are tried in order on the exhaustion path to hand the user a
	// terminal preloaded with the remediation command.
	Openers []TerminalOpener
}

// NewResolver creates a Resolver. stdin is attached to interactive credential
// prompts; out/errw receive progress and instructions.
func NewResolver(runner execx.Runner, mode runmode.Mode, stdin io.Reader, out, errw io.Writer) *Resolver {
	return &Resolver{
		runner: runner,
		mode:   mode,
		out:    out,
		errw:   errw,
		stdin:  stdin,
		Openers: []TerminalOpener{
			NewTmuxOpener(runner),
			NewXTermOpener(runner),
		},
	}
}

// mechanisms builds the candidate chain for the current mode. Built per call,
// never cached: availability changes as packages are installed.
func (r *Resolver) mechanisms() []Mechanism {
	if r.mode == runmode.Headless {
		return []Mechanism{
			&pkexecMechanism{runner: r.runner},
			&gksudoMechanism{runner: r.runner},
		}
	}
	return []Mechanism{
		&sudoPasswordless{runner: r.runner, out: r.out, errw: r.errw},
		&sudoPrompt{runner: r.runner, stdin: r.stdin, out: r.out, errw: r.errw},
	}
}

// RunElevated runs the shell command through the first working mechanism.
// On exhaustion it prints manual instructions, tries to open a terminal
// preloaded with the command, and returns ErrExhausted.
func (r *Resolver) RunElevated(ctx context.Context, command string) error {
	for _, m := range r.mechanisms() {
		if !m.Available(ctx) {
			continue
		}
		fmt.Fprintf(r.out, "Requesting elevated rights via %s...\n", m.Name())
		if err := m.Run(ctx, command); err != nil {
			fmt.Fprintf(r.errw, "%s %s failed: %v\n",
				color.New(color.FgYellow).Sprint("!"), m.Name(), err)
			continue
		}
		return nil
	}

	r.printManualInstructions(command)
	return ErrExhausted
}

func (r *Resolver) printManualInstructions(command string) {
	fmt.Fprintln(r.errw)
	fmt.Fprintf(r.errw, "%s Could not run the required command with elevated rights.\n",
		color.New(color.FgRed).Sprint("✗"))
	fmt.Fprintln(r.errw, "Please run the following in a terminal, then start the launcher again:")
	fmt.Fprintln(r.errw)
	fmt.Fprintf(r.errw, "    sudo sh -c '%s'\n", command)
	fmt.Fprintln(r.errw)

	for _, o := range r.Openers {
		if err := o.Open(context.Background(), fmt.Sprintf("sudo sh -c '%s'", command)); err == nil {
			fmt.Fprintf(r.out, "Opened a %s with the command prepared.\n", o.Name())
			return
		}
	}
}
