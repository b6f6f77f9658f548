package execx

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Fake is a scriptable Runner for tests. Handler receives every invocation
// keyed as "name arg1 arg2 ..." and returns the stdout and error to report.
// A nil Handler succeeds with empty output.
type Fake struct {
	// Paths lists the executables LookPath resolves. nil resolves everything.
	Paths map[string]string
	// Handler scripts command outcomes.
	Handler func(c Cmd) (string, error)

	mu    sync.Mutex
	calls []string
}

// Key renders a command the way Fake records it.
func Key(c Cmd) string {
	return strings.Join(append([]string{c.Name}, c.Args...), " ")
}

func (f *Fake) record(c Cmd) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, Key(c))
}

// Calls returns every recorded invocation in order.
func (f *Fake) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// CallCount returns how many recorded invocations start with prefix.
func (f *Fake) CallCount(prefix string) int {
	n := 0
	for _, c := range f.Calls() {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

func (f *Fake) dispatch(c Cmd) (string, error) {
	f.record(c)
	if f.Handler == nil {
		return "", nil
	}
	return f.Handler(c)
}

// Run implements Runner.
func (f *Fake) Run(ctx context.Context, c Cmd) error {
	out, err := f.dispatch(c)
	if err == nil && c.Stdout != nil && out != "" {
		fmt.Fprint(c.Stdout, out)
	}
	return err
}

// Output implements Runner.
func (f *Fake) Output(ctx context.Context, c Cmd) (string, error) {
	return f.dispatch(c)
}

// Start implements Runner.
func (f *Fake) Start(ctx context.Context, c Cmd) error {
	_, err := f.dispatch(c)
	return err
}

// LookPath implements Runner.
func (f *Fake) LookPath(name string) (string, error) {
	if f.Paths == nil {
		return name, nil
	}
	if p, ok := f.Paths[name]; ok {
		return p, nil
	}
	return "", fmt.Errorf("%s not found on PATH", name)
}
