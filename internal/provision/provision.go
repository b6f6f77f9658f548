// Package provision makes the machine able to run the GUI: a Python 3
// runtime, a valid virtualenv, and the required packages inside it. Each
// ensure step retries exactly once after an elevated system install; a second
// failure is fatal and carries the manual remediation command.
package provision

import "context"

// Elevator runs a shell command with escalated privileges. Satisfied by
// elevate.Resolver; faked in tests.
type Elevator interface {
	RunElevated(ctx context.Context, command string) error
}
