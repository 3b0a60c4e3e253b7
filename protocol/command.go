// Package protocol implements the command grammar of the chat service: the
// declarative command descriptors and the parser that tokenizes input lines,
// resolves commands and validates argument arity. It performs no I/O and
// holds no session state.
package protocol

import (
	"errors"
	"strings"
)

// ErrArgCount is returned when the argument count falls outside a command's
// declared arity.
var ErrArgCount = errors.New("wrong number of arguments")

// Command is an immutable descriptor of one chat command together with the
// session-bound handler that executes it. If Greedy is set, the final
// argument consumes the remainder of the line verbatim, whitespace included;
// otherwise the remainder is split on whitespace into discrete tokens.
type Command struct {
	Name        string
	Description string
	Params      []string // argument names, optional ones beyond MinArgs
	MinArgs     int
	MaxArgs     int
	Greedy      bool
	Run         func(args []string) string
}

// Usage renders the usage hint, e.g. "Usage: /whisper <username> <message>".
func (c *Command) Usage() string {
	var b strings.Builder
	b.WriteString("Usage: /")
	b.WriteString(c.Name)
	for i, p := range c.Params {
		if i < c.MinArgs {
			b.WriteString(" <" + p + ">")
		} else {
			b.WriteString(" [" + p + "]")
		}
	}
	return b.String()
}

// SplitArgs tokenizes the remainder of an input line against the command's
// arity. An empty remainder yields zero tokens, never one empty token.
func (c *Command) SplitArgs(remainder string) ([]string, error) {
	var args []string
	if c.Greedy {
		args = splitN(remainder, c.MaxArgs)
	} else {
		args = strings.Fields(remainder)
	}
	if len(args) < c.MinArgs || len(args) > c.MaxArgs {
		return nil, ErrArgCount
	}
	return args, nil
}

// splitN splits on whitespace into at most n tokens; the final token keeps
// the rest of the string verbatim.
func splitN(s string, n int) []string {
	var out []string
	s = strings.TrimLeft(s, " \t")
	for len(s) > 0 {
		if len(out) == n-1 {
			out = append(out, s)
			return out
		}
		i := strings.IndexAny(s, " \t")
		if i < 0 {
			out = append(out, s)
			return out
		}
		out = append(out, s[:i])
		s = strings.TrimLeft(s[i:], " \t")
	}
	return out
}
