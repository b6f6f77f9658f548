package elevate

import (
	"context"
	"io"

	"github.com/example/camlaunch/internal/execx"
)

// pkexecMechanism is the polkit one-shot elevation helper. First choice for
// headless runs: it raises its own graphical authentication dialog.
type pkexecMechanism struct {
	runner execx.Runner
}

func (m *pkexecMechanism) Name() string { return "pkexec" }

func (m *pkexecMechanism) Available(ctx context.Context) bool {
	_, err := m.runner.LookPath("pkexec")
	return err == nil
}

func (m *pkexecMechanism) Run(ctx context.Context, command string) error {
	return m.runner.Run(ctx, execx.Cmd{
		Name: "pkexec",
		Args: []string{"sh", "-c", command},
	})
}

// gksudoMechanism is the legacy GUI sudo helper, kept for desktops that ship
// it instead of polkit.
type gksudoMechanism struct {
	runner execx.Runner
}

func (m *gksudoMechanism) Name() string { return "gksudo" }

func (m *gksudoMechanism) Available(ctx context.Context) bool {
	_, err := m.runner.LookPath("gksudo")
	return err == nil
}

func (m *gksudoMechanism) Run(ctx context.Context, command string) error {
	return m.runner.Run(ctx, execx.Cmd{
		Name: "gksudo",
		Args: []string{"--", "sh", "-c", command},
	})
}

// sudoPasswordless uses sudo only when it is already granted without a
// password, so an interactive run stays silent when it can.
type sudoPasswordless struct {
	runner execx.Runner
	out    io.Writer
	errw   io.Writer
}

func (m *sudoPasswordless) Name() string { return "sudo (passwordless)" }

func (m *sudoPasswordless) Available(ctx context.Context) bool {
	if _, err := m.runner.LookPath("sudo"); err != nil {
		return false
	}
	return m.runner.Run(ctx, execx.Cmd{Name: "sudo", Args: []string{"-n", "true"}}) == nil
}

func (m *sudoPasswordless) Run(ctx context.Context, command string) error {
	return m.runner.Run(ctx, execx.Cmd{
		Name:   "sudo",
		Args:   []string{"-n", "sh", "-c", command},
		Stdout: m.out,
		Stderr: m.errw,
	})
}

// sudoPrompt is the standard interactive credential prompt. Only ever part
// of the interactive chain; a headless run has no terminal to type into.
type sudoPrompt struct {
	runner execx.Runner
	stdin  io.Reader
	out    io.Writer
	errw   io.Writer
}

func (m *sudoPrompt) Name() string { return "sudo" }

func (m *sudoPrompt) Available(ctx context.Context) bool {
	_, err := m.runner.LookPath("sudo")
	return err == nil
}

func (m *sudoPrompt) Run(ctx context.Context, command string) error {
	return m.runner.Run(ctx, execx.Cmd{
		Name:   "sudo",
		Args:   []string{"sh", "-c", command},
		Stdin:  m.stdin,
		Stdout: m.out,
		Stderr: m.errw,
	})
}
