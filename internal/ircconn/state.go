// Package ircconn implements the logger's IRC protocol state machine
// (spec §4.3): connection setup, NICK-collision recovery, NOTICE/PING/
// PONG handling, channel join, and silence/ping liveness tracking.
package ircconn

import (
	"fmt"
	"strconv"
	"strings"

	irc "gopkg.in/irc.v3"

	"github.com/rcowham/irclogd/internal/clock"
	"github.com/rcowham/irclogd/internal/ircmsg"
	"github.com/rcowham/irclogd/internal/spool"
)

// Stage is the logger's coarse protocol stage.
type Stage int

const (
	StageSetup Stage = iota
	StageJoined
)

// Liveness constants from spec §4.3.
const (
	MaxSilenceSeconds   = 60
	PongResponseTimeout = 20
)

// PingPhase distinguishes the two states of the Normal/Sent tagged union.
type PingPhase int

const (
	PingNormal PingPhase = iota
	PingSent
)

// PingState is the logger's silence/ping liveness tracker.
type PingState struct {
	Phase    PingPhase
	Deadline int64 // silence_deadline when Normal, giveup_deadline when Sent
}

// FatalKind enumerates the protocol conditions that abort the logger.
type FatalKind int

const (
	_ FatalKind = iota
	InvalidPassword
	CannotJoinChannel
	JoinedWrongChannel
	NoPingResponse
)

func (k FatalKind) String() string {
	switch k {
	case InvalidPassword:
		return "InvalidPassword"
	case CannotJoinChannel:
		return "CannotJoinChannel"
	case JoinedWrongChannel:
		return "JoinedWrongChannel"
	case NoPingResponse:
		return "NoPingResponse"
	default:
		return "unknown"
	}
}

// FatalError is a protocol condition spec §7 lists as fatal.
type FatalError struct {
	Kind   FatalKind
	Detail string
}

func (e *FatalError) Error() string {
	if e.Detail == "" {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

// Config parameterizes one logger connection.
type Config struct {
	User     string // nickname/user base name, unsuffixed
	Channel  string // channel name, without the leading '#'
	Password string // NickServ identify password; "" means none supplied
	Server   string // server address the keepalive PING's token names; "" falls back to User

	// MaxSilenceSeconds and PongResponseTimeout override the liveness
	// timers (spec §4.3, config-supplied per SPEC_FULL §1). Zero means
	// "use the package default".
	MaxSilenceSeconds   int
	PongResponseTimeout int
}

// StateMachine drives the logger's protocol. It is not safe for
// concurrent use — the logger is single-threaded by design (spec §5).
type StateMachine struct {
	cfg    Config
	clk    clock.Clock
	spool  *spool.Writer
	stage  Stage
	suffix uint16
	ping   PingState
}

// New returns a StateMachine in its initial Setup stage, with the
// silence timer armed from the current clock reading.
func New(cfg Config, clk clock.Clock, sw *spool.Writer) *StateMachine {
	if cfg.MaxSilenceSeconds == 0 {
		cfg.MaxSilenceSeconds = MaxSilenceSeconds
	}
	if cfg.PongResponseTimeout == 0 {
		cfg.PongResponseTimeout = PongResponseTimeout
	}
	return &StateMachine{
		cfg:   cfg,
		clk:   clk,
		spool: sw,
		stage: StageSetup,
		ping:  PingState{Phase: PingNormal, Deadline: clk.Now() + int64(cfg.MaxSilenceSeconds)},
	}
}

// Stage reports the current protocol stage, mostly for tests/diagnostics.
func (sm *StateMachine) Stage() Stage { return sm.stage }

// nickSuffixText renders the current suffix counter: empty for 0,
// otherwise its decimal text, appended directly to the nickname.
func (sm *StateMachine) nickSuffixText() string {
	if sm.suffix == 0 {
		return ""
	}
	return strconv.Itoa(int(sm.suffix))
}

func nickMessages(nick string) []*irc.Message {
	return []*irc.Message{
		{Command: "NICK", Params: []string{nick}},
		{Command: "USER", Params: []string{nick, "*", "*", nick}},
	}
}

// isToMe reports whether target names this client: "*", "$$*", or the
// unsuffixed user base name (spec §4.3's "to me" rule).
func (sm *StateMachine) isToMe(target string) bool {
	return target == "*" || target == "$$*" || target == sm.cfg.User
}

// OnRead must be called after every successful socket read, regardless
// of what (if anything) was parsed from it: it resets the silence timer.
func (sm *StateMachine) OnRead(readTime int64) {
	sm.ping = PingState{Phase: PingNormal, Deadline: readTime + int64(sm.cfg.MaxSilenceSeconds)}
}

// OnTimeout is called when the scheduler reports that the current
// ping-state deadline has been reached. In Normal phase it sends a PING
// and arms the give-up deadline; in Sent phase the peer failed to
// respond in time and the connection is fatally dead.
func (sm *StateMachine) OnTimeout(now int64) (*irc.Message, error) {
	switch sm.ping.Phase {
	case PingNormal:
		sm.ping = PingState{Phase: PingSent, Deadline: now + int64(sm.cfg.PongResponseTimeout)}
		return &irc.Message{Command: "PING", Params: []string{sm.pingToken()}}, nil
	case PingSent:
		return nil, &FatalError{Kind: NoPingResponse}
	default:
		return nil, fmt.Errorf("ircconn: unknown ping phase %v", sm.ping.Phase)
	}
}

// Deadline reports the timestamp the caller's scheduler should treat as
// the next timeout.
func (sm *StateMachine) Deadline() int64 { return sm.ping.Deadline }

// pingToken is the argument sent with a keepalive PING (spec §4.3): the
// server name when known, else the client's own nickname. Either way the
// value only needs to round-trip back in the server's PONG reply.
func (sm *StateMachine) pingToken() string {
	if sm.cfg.Server != "" {
		return sm.cfg.Server
	}
	return sm.cfg.User
}

// senderOf extracts the §4.3 sender-prefix-policy string for m.
func senderOf(m ircmsg.Message) string {
	if m.PrefixLimit == 0 {
		return "???"
	}
	return m.Prefix()
}

// HandleLine parses one raw line received at readTime and dispatches it
// per spec §4.3's table, returning any messages the caller should write
// back to the connection. A fatal condition is returned as a *FatalError;
// a malformed line is returned as whatever *ircmsg.ParseError Parse
// produced; a failure to write a PRIVMSG's spool entry is returned as the
// spool writer's error.
func (sm *StateMachine) HandleLine(line string, readTime int64) ([]*irc.Message, error) {
	msg, err := ircmsg.Parse(line)
	if err != nil {
		return nil, err
	}

	switch msg.Cmd.Kind {
	case ircmsg.CmdName:
		return sm.handleName(msg, readTime)
	case ircmsg.CmdCode:
		return sm.handleNumeric(msg, readTime)
	default:
		return nil, nil
	}
}

func (sm *StateMachine) handleName(msg ircmsg.Message, readTime int64) ([]*irc.Message, error) {
	name := msg.Cmd.Name(msg.Line)
	params := msg.Params().All()

	switch name {
	case "NOTICE":
		return sm.handleNotice(params)
	case "PING":
		return []*irc.Message{{Command: "PONG", Params: params}}, nil
	case "PONG":
		return nil, nil
	case "JOIN":
		return sm.handleJoin(params)
	case "PRIVMSG":
		return nil, sm.handlePrivmsg(msg, params, readTime)
	default:
		return nil, nil
	}
}

func (sm *StateMachine) handleNotice(params []string) ([]*irc.Message, error) {
	if len(params) < 2 || !sm.isToMe(params[0]) {
		return nil, nil
	}
	text := params[1]

	switch {
	case strings.HasPrefix(text, "*** No Ident response"):
		return nickMessages(sm.cfg.User), nil
	case strings.HasPrefix(text, "You are now identified for "):
		return []*irc.Message{{Command: "JOIN", Params: []string{"#" + sm.cfg.Channel}}}, nil
	case strings.HasPrefix(text, "Invalid password for "):
		return nil, &FatalError{Kind: InvalidPassword, Detail: text}
	default:
		return nil, nil
	}
}

func (sm *StateMachine) handleJoin(params []string) ([]*irc.Message, error) {
	if len(params) < 1 {
		return nil, nil
	}
	want := "#" + sm.cfg.Channel
	if params[0] != want {
		return nil, &FatalError{Kind: JoinedWrongChannel, Detail: params[0]}
	}
	sm.stage = StageJoined
	return nil, nil
}

func (sm *StateMachine) handlePrivmsg(msg ircmsg.Message, params []string, readTime int64) error {
	if len(params) < 2 || params[0] != "#"+sm.cfg.Channel {
		return nil
	}
	_, err := sm.spool.Write(spool.Entry{
		Timestamp: uint64(readTime),
		Sender:    senderOf(msg),
		Body:      []byte(params[1]),
	})
	return err
}

func (sm *StateMachine) handleNumeric(msg ircmsg.Message, readTime int64) ([]*irc.Message, error) {
	switch msg.Cmd.Code {
	case 376: // end of MOTD
		if sm.cfg.Password != "" {
			return []*irc.Message{{
				Command: "PRIVMSG",
				Params:  []string{"NickServ", "identify " + sm.cfg.Password},
			}}, nil
		}
		return []*irc.Message{{Command: "JOIN", Params: []string{"#" + sm.cfg.Channel}}}, nil
	case 433: // nick in use
		sm.suffix++ // uint16 arithmetic wraps modulo 2^16
		nick := sm.cfg.User + sm.nickSuffixText()
		return nickMessages(nick), nil
	case 477:
		return nil, &FatalError{Kind: CannotJoinChannel}
	default:
		_ = readTime
		return nil, nil
	}
}
