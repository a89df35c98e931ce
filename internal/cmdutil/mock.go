package cmdutil

import (
	"io"
	"strings"

	"github.com/osbuild/bootloader/pkg/runner"
)

// MockCall records one program invocation seen by MockRunner.
type MockCall struct {
	Name  string
	Args  []string
	Root  string
	Stdin string
}

func (c MockCall) String() string {
	return strings.Join(append([]string{c.Name}, c.Args...), " ")
}

// MockResult is what MockRunner answers for a program.
type MockResult struct {
	ExitCode int
	Output   string
	Err      error
}

// MockRunner records invocations instead of running anything. Results are
// queued per program name; programs without a queued result exit 0.
type MockRunner struct {
	Calls   []MockCall
	results map[string][]MockResult
}

func NewMockRunner() *MockRunner {
	return &MockRunner{results: make(map[string][]MockResult)}
}

// Expect queues res as the answer to the next invocation of name.
func (m *MockRunner) Expect(name string, res MockResult) {
	m.results[name] = append(m.results[name], res)
}

func (m *MockRunner) Run(c *runner.Cmd) (int, error) {
	call := MockCall{
		Name: c.Name,
		Args: append([]string(nil), c.Args...),
		Root: c.Root,
	}
	if c.Stdin != nil {
		data, err := io.ReadAll(c.Stdin)
		if err != nil {
			return -1, err
		}
		call.Stdin = string(data)
	}
	m.Calls = append(m.Calls, call)

	var res MockResult
	if queue := m.results[c.Name]; len(queue) > 0 {
		res, m.results[c.Name] = queue[0], queue[1:]
	}
	if c.Stdout != nil && res.Output != "" {
		if _, err := io.WriteString(c.Stdout, res.Output); err != nil {
			return -1, err
		}
	}
	return res.ExitCode, res.Err
}

// CmdLines returns every recorded invocation rendered as one line.
func (m *MockRunner) CmdLines() []string {
	lines := make([]string, 0, len(m.Calls))
	for _, c := range m.Calls {
		lines = append(lines, c.String())
	}
	return lines
}
