package protocol

import (
	"strings"
	"unicode"
)

// Parser maps command names to their session-bound descriptors. One parser is
// built per session; registration happens once, before the first line is read.
type Parser struct {
	commands map[string]*Command
}

func NewParser() *Parser {
	return &Parser{commands: make(map[string]*Command)}
}

// Register adds a command to the table. Names are matched case-insensitively.
func (p *Parser) Register(c *Command) {
	p.commands[strings.ToLower(c.Name)] = c
}

// Lookup resolves a command name case-insensitively.
func (p *Parser) Lookup(name string) (*Command, bool) {
	c, ok := p.commands[strings.ToLower(name)]
	return c, ok
}

// Sanitize strips non-printable characters from an input line. Tabs survive
// because they act as argument separators.
func Sanitize(line string) string {
	return strings.Map(func(r rune) rune {
		if r != '\t' && unicode.In(r, unicode.C) {
			return -1
		}
		return r
	}, line)
}

// SplitCommand splits a sanitized line into an optional leading command token
// (marked by a '/' prefix) and the remainder. A line without a command token
// returns an empty name; the session resolves that against its current state.
func SplitCommand(line string) (name, remainder string) {
	line = strings.TrimLeft(line, " \t")
	if !strings.HasPrefix(line, "/") {
		return "", line
	}
	line = line[1:]
	i := strings.IndexAny(line, " \t")
	if i < 0 {
		return line, ""
	}
	return line[:i], strings.TrimLeft(line[i:], " \t")
}
