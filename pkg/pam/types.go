package pam

import "fmt"

// Item identifies a PAM item. Values follow the PAM ABI.
type Item int

// PAM items.
const (
	Service     Item = 1
	User        Item = 2
	Tty         Item = 3
	Rhost       Item = 4
	Conv        Item = 5
	AuthTok     Item = 6
	OldAuthTok  Item = 7
	Ruser       Item = 8
	UserPrompt  Item = 9
	FailDelay   Item = 10
	XDisplay    Item = 11
	XAuthData   Item = 12
	AuthTokType Item = 13
)

// Style is a PAM conversation message style.
type Style int

// PAM conversation styles.
const (
	PromptEchoOff Style = 1
	PromptEchoOn  Style = 2
	ErrorMsg      Style = 3
	TextInfo      Style = 4
)

// Flags is the bitmask passed to a PAM entry point. The bridge forwards it
// to the helper verbatim and never interprets individual bits itself.
type Flags int

// PAM flags.
const (
	Silent               Flags = 0x8000
	DisallowNullAuthTok  Flags = 0x0001
	EstablishCred        Flags = 0x0002
	DeleteCred           Flags = 0x0004
	ReinitializeCred     Flags = 0x0008
	RefreshCred          Flags = 0x0010
	ChangeExpiredAuthTok Flags = 0x0020
	PrelimCheck          Flags = 0x4000
	UpdateAuthTok        Flags = 0x2000
)

// Action is one of the six PAM module entry points.
type Action int

// PAM actions.
const (
	ActionAuthenticate Action = iota
	ActionAcctMgmt
	ActionChAuthTok
	ActionOpenSession
	ActionCloseSession
	ActionSetCred
)

var actionNames = map[Action]string{
	ActionAuthenticate: "authenticate",
	ActionAcctMgmt:     "acct_mgmt",
	ActionChAuthTok:    "chauthtok",
	ActionOpenSession:  "open_session",
	ActionCloseSession: "close_session",
	ActionSetCred:      "setcred",
}

// String returns the wire word for the action, as passed to the helper.
func (a Action) String() string {
	if name, ok := actionNames[a]; ok {
		return name
	}
	return fmt.Sprintf("unknown action %d", int(a))
}

// ParseAction maps an action wire word back to its Action value.
func ParseAction(s string) (Action, error) {
	for action, name := range actionNames {
		if name == s {
			return action, nil
		}
	}
	return 0, fmt.Errorf("unknown action %q", s)
}
