package server

import (
	"errors"
	"strings"
	"time"

	"echochamber/account"
	"echochamber/protocol"
)

// registerCommands builds the session's static command table once, binding
// every handler to this session. The active state decides which of these are
// currently callable.
func (s *Session) registerCommands() {
	for _, cmd := range []*protocol.Command{
		{
			Name:        "help",
			Description: "Either lists all available commands or gives info on a specific command.",
			Params:      []string{"command name"}, MinArgs: 0, MaxArgs: 1,
			Run: s.cmdHelp,
		},
		{
			Name:        "setname",
			Description: "Sets a username and connects to the default channel as a temporary account.",
			Params:      []string{"username"}, MinArgs: 1, MaxArgs: 1,
			Run: s.cmdSetname,
		},
		{
			Name:        "setpwd",
			Description: "Sets a password and makes the account permanent.",
			Params:      []string{"password"}, MinArgs: 1, MaxArgs: 1,
			Run: s.cmdSetpwd,
		},
		{
			Name:        "login",
			Description: "Log in to your account.",
			Params:      []string{"username", "password"}, MinArgs: 2, MaxArgs: 2,
			Run: s.cmdLogin,
		},
		{
			Name:        "logout",
			Description: "Logs out.",
			Run:         s.cmdLogout,
		},
		{
			Name:        "users",
			Description: "Lists online users.",
			Params:      []string{"channel"}, MinArgs: 0, MaxArgs: 1,
			Run: s.cmdUsers,
		},
		{
			Name:        "whisper",
			Description: "Sends a message to a specific user.",
			Params:      []string{"username", "message"}, MinArgs: 2, MaxArgs: 2, Greedy: true,
			Run: s.cmdWhisper,
		},
		{
			Name:        "shout",
			Description: "Sends a message to all in the channel.",
			Params:      []string{"message"}, MinArgs: 0, MaxArgs: 1, Greedy: true,
			Run: s.cmdShout,
		},
		{
			Name:        "befriend",
			Description: "Sends someone a friend request or accepts a request.",
			Params:      []string{"username"}, MinArgs: 1, MaxArgs: 1,
			Run: s.cmdBefriend,
		},
		{
			Name:        "unfriend",
			Description: "Removes someone from your friend list.",
			Params:      []string{"username"}, MinArgs: 1, MaxArgs: 1,
			Run: s.cmdUnfriend,
		},
		{
			Name:        "accept",
			Description: "Accepts a friend request.",
			Params:      []string{"username"}, MinArgs: 1, MaxArgs: 1,
			Run: s.cmdAccept,
		},
		{
			Name:        "refuse",
			Description: "Refuses a friend request.",
			Params:      []string{"username"}, MinArgs: 1, MaxArgs: 1,
			Run: s.cmdRefuse,
		},
		{
			Name:        "forget",
			Description: "Withdraws a friend request you sent.",
			Params:      []string{"username"}, MinArgs: 1, MaxArgs: 1,
			Run: s.cmdForget,
		},
		{
			Name:        "friends",
			Description: "List all friends and friend request statuses.",
			Run:         s.cmdFriends,
		},
		{
			Name:        "delete",
			Description: "Deletes your account.",
			Params:      []string{"password"}, MinArgs: 0, MaxArgs: 1,
			Run: s.cmdDelete,
		},
		{
			Name:        "cancel",
			Description: "Cancels delete.",
			Run:         s.cmdCancel,
		},
		{
			Name:        "accounts",
			Description: "Lists all accounts.",
			Run:         s.cmdAccounts,
		},
		{
			Name:        "sessions",
			Description: "Lists all sessions.",
			Run:         s.cmdSessions,
		},
		{
			Name:        "exit",
			Description: "Ends the current session.",
			Run:         s.cmdExit,
		},
	} {
		s.parser.Register(cmd)
	}
}

func (s *Session) cmdHelp(args []string) string {
	if len(args) == 0 {
		return "Available commands: " + strings.Join(stateCommands[s.state], ", ")
	}
	name := strings.ToLower(args[0])
	cmd, ok := s.parser.Lookup(name)
	if !ok || !s.state.allows(cmd.Name) {
		return "Error: No such command \"" + args[0] + "\""
	}
	return cmd.Description + " " + cmd.Usage()
}

func (s *Session) cmdSetname(args []string) string {
	acct, err := s.srv.registry.CreateTransient(args[0])
	if err != nil {
		return "Unable to create temporary account with nickname: " + args[0]
	}
	if _, err := acct.Login(s); err != nil {
		s.srv.registry.Delete(acct)
		return "Unable to create temporary account with nickname: " + args[0]
	}
	s.bindAccount(acct)
	s.state = stateTransient
	s.joinChannel(s.srv.channel)
	return ""
}

func (s *Session) cmdSetpwd(args []string) string {
	if err := s.Account().MakePermanent([]byte(args[0])); err != nil {
		s.log.Errorf("session %s: making account permanent: %v", s.id, err)
		return "Unable to set password"
	}
	s.state = stateLoggedIn
	return "Account now permanent"
}

func (s *Session) cmdLogin(args []string) string {
	acct, ok := s.srv.registry.Lookup(args[0])
	if !ok || !acct.CheckPassword([]byte(args[1])) {
		return "Incorrect username or password"
	}
	last, err := acct.Login(s)
	if err != nil {
		if errors.Is(err, account.ErrAlreadyOnline) {
			return "Account already logged in"
		}
		return "Incorrect username or password"
	}
	s.bindAccount(acct)
	s.joinChannel(s.srv.channel)
	s.state = stateLoggedIn
	lastLogin := "never"
	if !last.IsZero() {
		lastLogin = last.Format(time.RFC1123)
	}
	return "Login successful. Last login: " + lastLogin
}

func (s *Session) cmdLogout([]string) string {
	s.leaveChannel()
	s.unbindAccount()
	s.state = stateEntrance
	return "Returning to Entrance"
}

func (s *Session) cmdUsers(args []string) string {
	if len(args) == 1 && args[0] != s.srv.channel.Name() {
		return "No such channel"
	}
	var lines []string
	for _, member := range s.srv.channel.Sessions() {
		acct := member.Account()
		if acct == nil {
			continue
		}
		kind := "transient"
		if acct.Permanent() {
			kind = "permanent"
		}
		lines = append(lines, acct.Username()+" ("+kind+")")
	}
	return strings.Join(lines, "\n")
}

func (s *Session) cmdWhisper(args []string) string {
	target, ok := s.srv.registry.Lookup(args[0])
	if !ok {
		return "No account with username " + args[0] + " found"
	}
	peer, online := target.Peer()
	if !online {
		return "User " + target.Username() + " is not online"
	}
	peer.Deliver(s.Username() + " whispers: " + args[1])
	return "You whispered a message to " + target.Username()
}

func (s *Session) cmdShout(args []string) string {
	if len(args) == 0 || args[0] == "" {
		return ""
	}
	s.Channel().Shout(s, args[0])
	return ""
}

func (s *Session) cmdBefriend(args []string) string {
	target, ok := s.srv.registry.Lookup(args[0])
	if !ok {
		return "No account with username " + args[0] + " found"
	}
	acct := s.Account()
	switch {
	case target == acct:
		return "Get a life!"
	case !target.Permanent():
		return "You can only send friend requests to permanent accounts"
	case acct.Relations().HasFriend(target):
		return "You are already friends with " + target.Username()
	case acct.Relations().HasPendingSent(target):
		return "Friend request already sent"
	case acct.Relations().HasPendingReceived(target):
		acct.Relations().Add(target)
		return "You are now friends with " + target.Username()
	default:
		acct.Relations().Add(target)
		return "Friend request sent"
	}
}

func (s *Session) cmdUnfriend(args []string) string {
	target, ok := s.srv.registry.Lookup(args[0])
	if !ok {
		return "No account with username " + args[0] + " found"
	}
	s.Account().Relations().Remove(target)
	return "You removed " + target.Username() + " from your friend list"
}

func (s *Session) cmdAccept(args []string) string {
	target, ok := s.srv.registry.Lookup(args[0])
	if !ok {
		return "No account with username " + args[0] + " found"
	}
	acct := s.Account()
	if !acct.Relations().HasPendingReceived(target) {
		return "No friend request from " + target.Username()
	}
	acct.Relations().Add(target)
	return "You are now friends with " + target.Username()
}

func (s *Session) cmdRefuse(args []string) string {
	target, ok := s.srv.registry.Lookup(args[0])
	if !ok {
		return "No account with username " + args[0] + " found"
	}
	acct := s.Account()
	if !acct.Relations().HasPendingReceived(target) {
		return "No friend request from " + target.Username()
	}
	acct.Relations().Remove(target)
	return "Friend request from " + target.Username() + " refused"
}

func (s *Session) cmdForget(args []string) string {
	target, ok := s.srv.registry.Lookup(args[0])
	if !ok {
		return "No account with username " + args[0] + " found"
	}
	acct := s.Account()
	if !acct.Relations().HasPendingSent(target) {
		return "No pending friend request to " + target.Username()
	}
	acct.Relations().Remove(target)
	return "Friend request to " + target.Username() + " withdrawn"
}

func (s *Session) cmdFriends([]string) string {
	rel := s.Account().Relations()
	var b strings.Builder
	b.WriteString("Current friends:")
	for _, friend := range rel.Friends() {
		marker := "[OFFLINE]"
		if friend.Online() {
			marker = "[ONLINE]"
		}
		b.WriteString("\n\t" + friend.Username() + " " + marker)
	}
	b.WriteString("\nPending sent friend requests:")
	for _, pending := range rel.PendingSent() {
		b.WriteString("\n\t" + pending.Username())
	}
	b.WriteString("\nPending received friend requests:")
	for _, pending := range rel.PendingReceived() {
		b.WriteString("\n\t" + pending.Username())
	}
	return b.String()
}

func (s *Session) cmdDelete(args []string) string {
	switch s.state {
	case stateLoggedIn:
		s.state = stateDeleteConfirm
		return "This will delete your account!\nType /delete <password> to confirm!"
	case stateDeleteConfirm:
		acct := s.Account()
		if len(args) == 1 && acct.CheckPassword([]byte(args[0])) {
			s.leaveChannel()
			s.unbindAccount()
			s.srv.registry.Delete(acct)
			s.state = stateEntrance
			return "Account deleted. Returning to Entrance"
		}
		s.state = stateLoggedIn
		return "Missing or incorrect password. Cancelling deletion."
	}
	return ""
}

func (s *Session) cmdCancel([]string) string {
	s.state = stateLoggedIn
	return "Delete cancelled"
}

func (s *Session) cmdAccounts([]string) string {
	var lines []string
	for _, a := range s.srv.registry.Accounts() {
		channelName := ""
		if peer, ok := a.Peer(); ok {
			if sess, isSession := peer.(*Session); isSession {
				if ch := sess.Channel(); ch != nil {
					channelName = ch.String()
				}
			}
		}
		lines = append(lines, a.Info(channelName))
	}
	return strings.Join(lines, "\n")
}

func (s *Session) cmdSessions([]string) string {
	var lines []string
	for _, sess := range s.srv.Sessions() {
		lines = append(lines, sess.ID().String())
	}
	return strings.Join(lines, "\n")
}

func (s *Session) cmdExit([]string) string {
	s.state = stateExit
	return "Disconnected by server"
}
