package bridgerpc

import (
	"fmt"
	"strings"

	"github.com/marmos91/pambridge/pkg/pam"
)

// dataKeyPrefix namespaces helper-owned module data so a helper cannot
// collide with the keys the bridge reserves for itself.
const dataKeyPrefix = "exec-bridge-data-"

// DataKey returns the namespaced module-data key used for a helper key.
func DataKey(key string) string {
	return dataKeyPrefix + key
}

// ProcedureHandler processes one RPC method against the PAM handle of the
// current action. It returns the XDR-encoded result payload, or a
// protocol-level error that is answered to the helper without touching
// the handle further.
type ProcedureHandler func(h pam.Handle, args []byte) ([]byte, *ProtocolError)

// Procedure contains metadata about an RPC method for dispatch.
type Procedure struct {
	// Name is the method name for logging.
	Name string

	// Handler is the function that processes this method.
	Handler ProcedureHandler
}

// DispatchTable maps method names to their handlers. Method names not in
// the table are answered with AcceptUnknownMethod.
var DispatchTable = map[string]*Procedure{
	MethodSetItem:    {Name: MethodSetItem, Handler: handleSetItem},
	MethodGetItem:    {Name: MethodGetItem, Handler: handleGetItem},
	MethodSetEnv:     {Name: MethodSetEnv, Handler: handleSetEnv},
	MethodUnsetEnv:   {Name: MethodUnsetEnv, Handler: handleUnsetEnv},
	MethodGetEnv:     {Name: MethodGetEnv, Handler: handleGetEnv},
	MethodGetEnvList: {Name: MethodGetEnvList, Handler: handleGetEnvList},
	MethodSetData:    {Name: MethodSetData, Handler: handleSetData},
	MethodUnsetData:  {Name: MethodUnsetData, Handler: handleUnsetData},
	MethodGetData:    {Name: MethodGetData, Handler: handleGetData},
	MethodPrompt:     {Name: MethodPrompt, Handler: handlePrompt},
}

// invalidArgs builds the protocol error for an argument decode failure.
func invalidArgs(method string, err error) *ProtocolError {
	return &ProtocolError{
		Accept: AcceptInvalidArgs,
		Msg:    fmt.Sprintf("%s: %v", method, err),
	}
}

// encodeResult marshals a result payload. A marshal failure means a bug in
// the result struct, so it surfaces as a protocol system error.
func encodeResult(method string, v any) ([]byte, *ProtocolError) {
	data, err := marshalBody(v)
	if err != nil {
		return nil, &ProtocolError{
			Accept: AcceptSystemErr,
			Msg:    fmt.Sprintf("%s: %v", method, err),
		}
	}
	return data, nil
}

func handleSetItem(h pam.Handle, args []byte) ([]byte, *ProtocolError) {
	var a SetItemArgs
	if err := unmarshalBody(args, &a); err != nil {
		return nil, invalidArgs(MethodSetItem, err)
	}

	status := pam.ToStatus(h.SetItem(pam.Item(a.Item), a.Value))
	return encodeResult(MethodSetItem, StatusResult{Status: int32(status)})
}

func handleGetItem(h pam.Handle, args []byte) ([]byte, *ProtocolError) {
	var a GetItemArgs
	if err := unmarshalBody(args, &a); err != nil {
		return nil, invalidArgs(MethodGetItem, err)
	}

	value, err := h.GetItem(pam.Item(a.Item))
	return encodeResult(MethodGetItem, StringResult{
		Status: int32(pam.ToStatus(err)),
		Value:  value,
	})
}

func handleSetEnv(h pam.Handle, args []byte) ([]byte, *ProtocolError) {
	var a SetEnvArgs
	if err := unmarshalBody(args, &a); err != nil {
		return nil, invalidArgs(MethodSetEnv, err)
	}

	status := pam.ToStatus(h.PutEnv(a.Name + "=" + a.Value))
	return encodeResult(MethodSetEnv, StatusResult{Status: int32(status)})
}

func handleUnsetEnv(h pam.Handle, args []byte) ([]byte, *ProtocolError) {
	var a NameArgs
	if err := unmarshalBody(args, &a); err != nil {
		return nil, invalidArgs(MethodUnsetEnv, err)
	}

	// A name containing "=" would silently turn the unset into a set once
	// it reaches pam_putenv. Refuse it before it gets there.
	if strings.Contains(a.Name, "=") {
		return nil, &ProtocolError{
			Accept: AcceptInvalidArgs,
			Msg:    fmt.Sprintf("invalid char found on env %s", a.Name),
		}
	}

	status := pam.ToStatus(h.PutEnv(a.Name))
	return encodeResult(MethodUnsetEnv, StatusResult{Status: int32(status)})
}

func handleGetEnv(h pam.Handle, args []byte) ([]byte, *ProtocolError) {
	var a NameArgs
	if err := unmarshalBody(args, &a); err != nil {
		return nil, invalidArgs(MethodGetEnv, err)
	}

	// pam_getenv has no failure mode: an unset variable is just empty.
	return encodeResult(MethodGetEnv, StringResult{
		Status: int32(pam.Success),
		Value:  h.GetEnv(a.Name),
	})
}

func handleGetEnvList(h pam.Handle, args []byte) ([]byte, *ProtocolError) {
	entries, err := h.GetEnvList()
	status := pam.Success
	if err != nil {
		status = pam.BufErr
	}

	pairs := make(map[string]string, len(entries))
	for _, entry := range entries {
		name, value, ok := strings.Cut(entry, "=")
		if !ok {
			// Malformed entries are skipped, not reported.
			continue
		}
		pairs[name] = value
	}

	return encodeResult(MethodGetEnvList, EnvListResult{
		Status: int32(status),
		Pairs:  pairs,
	})
}

func handleSetData(h pam.Handle, args []byte) ([]byte, *ProtocolError) {
	var a SetDataArgs
	if err := unmarshalBody(args, &a); err != nil {
		return nil, invalidArgs(MethodSetData, err)
	}

	status := pam.ToStatus(h.SetData(DataKey(a.Key), a.Value))
	return encodeResult(MethodSetData, StatusResult{Status: int32(status)})
}

func handleUnsetData(h pam.Handle, args []byte) ([]byte, *ProtocolError) {
	var a KeyArgs
	if err := unmarshalBody(args, &a); err != nil {
		return nil, invalidArgs(MethodUnsetData, err)
	}

	status := pam.ToStatus(h.SetData(DataKey(a.Key), nil))
	return encodeResult(MethodUnsetData, StatusResult{Status: int32(status)})
}

func handleGetData(h pam.Handle, args []byte) ([]byte, *ProtocolError) {
	var a KeyArgs
	if err := unmarshalBody(args, &a); err != nil {
		return nil, invalidArgs(MethodGetData, err)
	}

	value, err := h.GetData(DataKey(a.Key))
	status := pam.ToStatus(err)
	if value == nil {
		value = []byte{}
	}

	return encodeResult(MethodGetData, DataResult{
		Status: int32(status),
		Value:  value,
	})
}

func handlePrompt(h pam.Handle, args []byte) ([]byte, *ProtocolError) {
	var a PromptArgs
	if err := unmarshalBody(args, &a); err != nil {
		return nil, invalidArgs(MethodPrompt, err)
	}

	response, err := h.Prompt(pam.Style(a.Style), a.Msg)
	return encodeResult(MethodPrompt, StringResult{
		Status: int32(pam.ToStatus(err)),
		Value:  response,
	})
}
