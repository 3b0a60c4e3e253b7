package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeStripsNonPrintable(t *testing.T) {
	assert.Equal(t, "/shout hi", Sanitize("/shout\x00 h\x1bi\x7f"))
	assert.Equal(t, "keep\ttabs and spaces", Sanitize("keep\ttabs and spaces"))
	assert.Equal(t, "", Sanitize("\x00\x01\x02"))
}

func TestSplitCommand(t *testing.T) {
	cases := []struct {
		line, name, rest string
	}{
		{"/setname alice", "setname", "alice"},
		{"  /login alice secret", "login", "alice secret"},
		{"/exit", "exit", ""},
		{"/", "", ""},
		{"hello there", "", "hello there"},
		{"", "", ""},
		{"/WHISPER bob  hi  there", "WHISPER", "bob  hi  there"},
	}
	for _, tc := range cases {
		name, rest := SplitCommand(tc.line)
		assert.Equalf(t, tc.name, name, "line %q", tc.line)
		assert.Equalf(t, tc.rest, rest, "line %q", tc.line)
	}
}

func TestLookupIsCaseInsensitive(t *testing.T) {
	p := NewParser()
	p.Register(&Command{Name: "help"})

	for _, name := range []string{"help", "HELP", "HeLp"} {
		_, ok := p.Lookup(name)
		assert.Truef(t, ok, "lookup %q", name)
	}
	_, ok := p.Lookup("nope")
	assert.False(t, ok)
}

func TestSplitArgsArity(t *testing.T) {
	login := &Command{Name: "login", Params: []string{"username", "password"}, MinArgs: 2, MaxArgs: 2}

	args, err := login.SplitArgs("alice secret")
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "secret"}, args)

	_, err = login.SplitArgs("alice")
	assert.ErrorIs(t, err, ErrArgCount)
	_, err = login.SplitArgs("alice secret extra")
	assert.ErrorIs(t, err, ErrArgCount)
}

func TestSplitArgsEmptyRemainderYieldsZeroTokens(t *testing.T) {
	logout := &Command{Name: "logout"}
	args, err := logout.SplitArgs("")
	require.NoError(t, err)
	assert.Empty(t, args)

	args, err = logout.SplitArgs("   ")
	require.NoError(t, err)
	assert.Empty(t, args)
}

func TestGreedyLastArgumentKeepsWhitespace(t *testing.T) {
	whisper := &Command{
		Name: "whisper", Params: []string{"username", "message"},
		MinArgs: 2, MaxArgs: 2, Greedy: true,
	}
	args, err := whisper.SplitArgs("bob hello  spaced   world")
	require.NoError(t, err)
	assert.Equal(t, []string{"bob", "hello  spaced   world"}, args)

	shout := &Command{Name: "shout", Params: []string{"message"}, MinArgs: 0, MaxArgs: 1, Greedy: true}
	args, err = shout.SplitArgs("one two three")
	require.NoError(t, err)
	assert.Equal(t, []string{"one two three"}, args)

	args, err = shout.SplitArgs("")
	require.NoError(t, err)
	assert.Empty(t, args)
}

func TestUsageMarksOptionalParams(t *testing.T) {
	help := &Command{Name: "help", Params: []string{"command"}, MinArgs: 0, MaxArgs: 1}
	assert.Equal(t, "Usage: /help [command]", help.Usage())

	login := &Command{Name: "login", Params: []string{"username", "password"}, MinArgs: 2, MaxArgs: 2}
	assert.Equal(t, "Usage: /login <username> <password>", login.Usage())
}
