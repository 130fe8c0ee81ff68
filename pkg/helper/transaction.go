// Package helper is the toolkit for bridge helper executables: a
// pam.Handle implementation speaking the bridge RPC protocol and a Run
// harness implementing the spawn contract.
package helper

import (
	"context"
	"strings"

	"github.com/marmos91/pambridge/internal/protocol/bridgerpc"
	"github.com/marmos91/pambridge/pkg/pam"
)

// Transaction drives the parent's PAM transaction over the RPC channel.
// It implements pam.Handle, so helper logic is written against the same
// interface the bridge dispatches on.
type Transaction struct {
	client *bridgerpc.Client
}

// Connect dials the bridge at the given connect address. The returned
// cleanup closes the channel.
func Connect(ctx context.Context, address string) (*Transaction, func(), error) {
	client, err := bridgerpc.Dial(ctx, address)
	if err != nil {
		return nil, nil, err
	}
	tx := &Transaction{client: client}
	return tx, func() { client.Close() }, nil
}

// statusErr converts a wire status into the error convention of
// pam.Handle: Success is nil, anything else is the status itself.
func statusErr(status int32) error {
	if pam.Status(status) == pam.Success {
		return nil
	}
	return pam.Status(status)
}

// SetItem implements pam.Handle.
func (tx *Transaction) SetItem(item pam.Item, value string) error {
	var res bridgerpc.StatusResult
	if err := tx.client.Call(bridgerpc.MethodSetItem,
		bridgerpc.SetItemArgs{Item: int32(item), Value: value}, &res); err != nil {
		return err
	}
	return statusErr(res.Status)
}

// GetItem implements pam.Handle.
func (tx *Transaction) GetItem(item pam.Item) (string, error) {
	var res bridgerpc.StringResult
	if err := tx.client.Call(bridgerpc.MethodGetItem,
		bridgerpc.GetItemArgs{Item: int32(item)}, &res); err != nil {
		return "", err
	}
	return res.Value, statusErr(res.Status)
}

// PutEnv implements pam.Handle with pam_putenv semantics: NAME=value sets,
// a bare NAME unsets.
func (tx *Transaction) PutEnv(nameVal string) error {
	name, value, isSet := strings.Cut(nameVal, "=")

	var res bridgerpc.StatusResult
	if isSet {
		if err := tx.client.Call(bridgerpc.MethodSetEnv,
			bridgerpc.SetEnvArgs{Name: name, Value: value}, &res); err != nil {
			return err
		}
		return statusErr(res.Status)
	}

	if err := tx.client.Call(bridgerpc.MethodUnsetEnv,
		bridgerpc.NameArgs{Name: name}, &res); err != nil {
		return err
	}
	return statusErr(res.Status)
}

// GetEnv implements pam.Handle. Like pam_getenv, an unset variable yields
// the empty string.
func (tx *Transaction) GetEnv(name string) string {
	var res bridgerpc.StringResult
	if err := tx.client.Call(bridgerpc.MethodGetEnv,
		bridgerpc.NameArgs{Name: name}, &res); err != nil {
		return ""
	}
	return res.Value
}

// GetEnvList implements pam.Handle.
func (tx *Transaction) GetEnvList() ([]string, error) {
	var res bridgerpc.EnvListResult
	if err := tx.client.Call(bridgerpc.MethodGetEnvList, nil, &res); err != nil {
		return nil, err
	}
	if err := statusErr(res.Status); err != nil {
		return nil, err
	}

	entries := make([]string, 0, len(res.Pairs))
	for name, value := range res.Pairs {
		entries = append(entries, name+"="+value)
	}
	return entries, nil
}

// SetData implements pam.Handle. A nil value unsets the key.
func (tx *Transaction) SetData(key string, data []byte) error {
	var res bridgerpc.StatusResult
	if data == nil {
		if err := tx.client.Call(bridgerpc.MethodUnsetData,
			bridgerpc.KeyArgs{Key: key}, &res); err != nil {
			return err
		}
		return statusErr(res.Status)
	}

	if err := tx.client.Call(bridgerpc.MethodSetData,
		bridgerpc.SetDataArgs{Key: key, Value: data}, &res); err != nil {
		return err
	}
	return statusErr(res.Status)
}

// GetData implements pam.Handle. A missing key yields pam.NoModuleData.
func (tx *Transaction) GetData(key string) ([]byte, error) {
	var res bridgerpc.DataResult
	if err := tx.client.Call(bridgerpc.MethodGetData,
		bridgerpc.KeyArgs{Key: key}, &res); err != nil {
		return nil, err
	}
	if err := statusErr(res.Status); err != nil {
		return nil, err
	}
	return res.Value, nil
}

// Prompt implements pam.Handle: one conversation round through the
// parent's conversation function.
func (tx *Transaction) Prompt(style pam.Style, msg string) (string, error) {
	var res bridgerpc.StringResult
	if err := tx.client.Call(bridgerpc.MethodPrompt,
		bridgerpc.PromptArgs{Style: int32(style), Msg: msg}, &res); err != nil {
		return "", err
	}
	return res.Value, statusErr(res.Status)
}

var _ pam.Handle = (*Transaction)(nil)
