// Package bridgerpc implements the private RPC channel between the PAM
// bridge and the helper executable it spawns.
//
// The transport is a unix stream socket created in a fresh private
// directory. Every message is one record-marked frame (4-byte big-endian
// length followed by an XDR body). Calls carry the server GUID so a client
// that dialed a stale address is refused, and the server admits exactly one
// peer per action, authenticated by its socket credentials.
package bridgerpc

import "fmt"

// Method names exposed by the bridge. The table mirrors the PAM module API
// the helper is allowed to drive.
const (
	MethodSetItem    = "SetItem"
	MethodGetItem    = "GetItem"
	MethodSetEnv     = "SetEnv"
	MethodUnsetEnv   = "UnsetEnv"
	MethodGetEnv     = "GetEnv"
	MethodGetEnvList = "GetEnvList"
	MethodSetData    = "SetData"
	MethodUnsetData  = "UnsetData"
	MethodGetData    = "GetData"
	MethodPrompt     = "Prompt"
)

// Accept codes returned in reply frames. These are protocol-level results,
// distinct from the PAM status carried inside successful payloads.
const (
	AcceptSuccess       uint32 = 0
	AcceptUnknownMethod uint32 = 1
	AcceptInvalidArgs   uint32 = 2
	AcceptDenied        uint32 = 3
	AcceptSystemErr     uint32 = 4
)

// Call is the body of a request frame. Args holds the XDR encoding of the
// per-method argument struct.
type Call struct {
	Xid    uint32
	Guid   string
	Method string
	Args   []byte
}

// Reply is the body of a response frame. Data holds the XDR encoding of
// the per-method result struct and is empty unless Accept is
// AcceptSuccess.
type Reply struct {
	Xid    uint32
	Accept uint32
	ErrMsg string
	Data   []byte
}

// SetItemArgs are the arguments for SetItem.
type SetItemArgs struct {
	Item  int32
	Value string
}

// GetItemArgs are the arguments for GetItem.
type GetItemArgs struct {
	Item int32
}

// SetEnvArgs are the arguments for SetEnv.
type SetEnvArgs struct {
	Name  string
	Value string
}

// NameArgs are the arguments for the methods keyed by a plain name
// (UnsetEnv, GetEnv).
type NameArgs struct {
	Name string
}

// KeyArgs are the arguments for the data methods keyed by a module data
// key (UnsetData, GetData).
type KeyArgs struct {
	Key string
}

// SetDataArgs are the arguments for SetData.
type SetDataArgs struct {
	Key   string
	Value []byte
}

// PromptArgs are the arguments for Prompt.
type PromptArgs struct {
	Style int32
	Msg   string
}

// StatusResult is the payload of the setter methods: just the PAM status.
type StatusResult struct {
	Status int32
}

// StringResult is the payload of the string getters (GetItem, GetEnv,
// Prompt).
type StringResult struct {
	Status int32
	Value  string
}

// EnvListResult is the payload of GetEnvList.
type EnvListResult struct {
	Status int32
	Pairs  map[string]string
}

// DataResult is the payload of GetData. A missing key yields status
// NoModuleData and an empty Value: the wire format cannot express the
// absence of a payload directly.
type DataResult struct {
	Status int32
	Value  []byte
}

// ProtocolError is a protocol-level failure reported by the server
// (unknown method, malformed arguments, denied call). It is answered to
// the helper and never surfaces as a PAM status on the bridge side.
type ProtocolError struct {
	Accept uint32
	Msg    string
}

// Error implements the error interface.
func (e *ProtocolError) Error() string {
	return fmt.Sprintf("protocol error %d: %s", e.Accept, e.Msg)
}
