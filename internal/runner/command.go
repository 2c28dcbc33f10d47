package runner

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mattn/go-shellwords"
)

// ErrEmptyCommand is returned when a Command has no executable name.
var ErrEmptyCommand = errors.New("empty command")

// Command describes one scanner invocation.
//
// The wrapped tool is assumed to truncate or overwrite its own output file on
// every invocation. Retries reuse the same output path, and the Runner does
// not clean up what a failed attempt left behind.
type Command struct {
	// Name is the executable, looked up in PATH.
	Name string

	// Args are placed right after Name. They carry untrusted values such as
	// the target domain and artifact paths, one value per element.
	Args []string

	// Flags is the trusted flag text from the mode configuration. It is
	// tokenized with shell quoting rules, but no shell ever runs it, and it
	// is the only part rewritten by throttling.
	Flags string

	// Extra is appended after the tokenized flags (proxy, cookie header).
	Extra []string

	// Stdin is an optional file path fed to the process's standard input.
	Stdin string

	// Stdout is an optional file path that receives a copy of the process's
	// standard output, for tools that report findings on stdout.
	Stdout string
}

// Argv returns the full argument vector, Name included.
func (c Command) Argv() ([]string, error) {
	if strings.TrimSpace(c.Name) == "" {
		return nil, ErrEmptyCommand
	}
	parser := shellwords.NewParser()
	parser.ParseEnv = false
	parser.ParseBacktick = false
	flags, err := parser.Parse(c.Flags)
	if err != nil {
		return nil, fmt.Errorf("failed to tokenize flags %q: %w", c.Flags, err)
	}

	argv := make([]string, 0, 1+len(c.Args)+len(flags)+len(c.Extra))
	argv = append(argv, c.Name)
	argv = append(argv, c.Args...)
	argv = append(argv, flags...)
	argv = append(argv, c.Extra...)
	return argv, nil
}

// WithFlags returns a copy of c using flags as its flag text.
func (c Command) WithFlags(flags string) Command {
	c.Flags = flags
	return c
}

// String renders the command for logs. Elements containing spaces are quoted.
func (c Command) String() string {
	argv, err := c.Argv()
	if err != nil {
		return c.Name + " " + c.Flags
	}
	parts := make([]string, len(argv))
	for i, a := range argv {
		if a == "" || strings.ContainsAny(a, " \t\n'\"") {
			parts[i] = fmt.Sprintf("%q", a)
			continue
		}
		parts[i] = a
	}
	return strings.Join(parts, " ")
}
