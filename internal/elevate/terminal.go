package elevate

import (
	"context"
	"fmt"

	"github.com/GianlucaP106/gotmux/gotmux"

	"github.com/example/camlaunch/internal/execx"
)

// TerminalOpener hands the user a terminal preloaded with a command. Used on
// the escalation exhaustion path so the remediation is one keypress away.
type TerminalOpener interface {
	Name() string
	Open(ctx context.Context, command string) error
}

// TmuxOpener types the command into a new window of the user's running tmux
// server. Window creation goes through gotmux; the literal keystrokes go
// through the tmux CLI (gotmux has no send-keys without execution).
type TmuxOpener struct {
	runner execx.Runner
}

// NewTmuxOpener creates a TmuxOpener.
func NewTmuxOpener(runner execx.Runner) *TmuxOpener {
	return &TmuxOpener{runner: runner}
}

func (o *TmuxOpener) Name() string { return "tmux window" }

// Open creates a window named camlaunch-fix in the first live session and
// types the command without pressing Enter, so the user confirms it.
func (o *TmuxOpener) Open(ctx context.Context, command string) error {
	tmux, err := gotmux.DefaultTmux()
	if err != nil {
		return fmt.Errorf("no tmux available: %w", err)
	}
	sessions, err := tmux.ListSessions()
	if err != nil {
		return fmt.Errorf("failed to list tmux sessions: %w", err)
	}
	if len(sessions) == 0 {
		return fmt.Errorf("no running tmux session")
	}

	window, err := sessions[0].NewWindow(&gotmux.NewWindowOptions{
		WindowName:  "camlaunch-fix",
		DoNotAttach: true,
	})
	if err != nil {
		return fmt.Errorf("failed to create tmux window: %w", err)
	}
	panes, err := window.ListPanes()
	if err != nil || len(panes) == 0 {
		return fmt.Errorf("failed to get pane of new window: %w", err)
	}

	return o.runner.Run(ctx, execx.Cmd{
		Name: "tmux",
		Args: []string{"send-keys", "-t", panes[0].Id, command},
	})
}

// XTermOpener spawns the desktop's default terminal emulator with the command
// running inside, held open until the user dismisses it.
type XTermOpener struct {
	runner execx.Runner
}

// NewXTermOpener creates an XTermOpener.
func NewXTermOpener(runner execx.Runner) *XTermOpener {
	return &XTermOpener{runner: runner}
}

func (o *XTermOpener) Name() string { return "terminal window" }

func (o *XTermOpener) Open(ctx context.Context, command string) error {
	if _, err := o.runner.LookPath("x-terminal-emulator"); err != nil {
		return fmt.Errorf("no terminal emulator found: %w", err)
	}
	held := fmt.Sprintf("%s; echo; echo 'Press Enter to close...'; read _", command)
	return o.runner.Start(ctx, execx.Cmd{
		Name: "x-terminal-emulator",
		Args: []string{"-e", "sh", "-c", held},
	})
}
