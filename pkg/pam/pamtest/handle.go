// Package pamtest provides an in-memory pam.Handle for tests.
package pamtest

import (
	"strings"
	"sync"

	"github.com/marmos91/pambridge/pkg/pam"
)

// PromptCall records one conversation round issued against the handle.
type PromptCall struct {
	Style pam.Style
	Msg   string
}

// FakeHandle is a scriptable, thread-safe pam.Handle implementation.
//
// The PAM environment is kept as a raw entry list so tests can inject
// malformed entries (no "=") the way a real pam_getenvlist can surface
// them.
type FakeHandle struct {
	mu sync.Mutex

	items   map[pam.Item]string
	envList []string
	data    map[string][]byte

	// PromptResponses are consumed in order by Prompt. When exhausted,
	// Prompt returns an empty response.
	PromptResponses []string

	// PromptError, when set, is returned by every Prompt call.
	PromptError error

	prompts []PromptCall
}

// NewFakeHandle returns an empty FakeHandle.
func NewFakeHandle() *FakeHandle {
	return &FakeHandle{
		items: make(map[pam.Item]string),
		data:  make(map[string][]byte),
	}
}

// SetItem implements pam.Handle.
func (h *FakeHandle) SetItem(item pam.Item, value string) error {
	if item <= 0 {
		return pam.BadItem
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.items[item] = value
	return nil
}

// GetItem implements pam.Handle.
func (h *FakeHandle) GetItem(item pam.Item) (string, error) {
	if item <= 0 {
		return "", pam.BadItem
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.items[item], nil
}

// PutEnv implements pam.Handle with pam_putenv semantics.
func (h *FakeHandle) PutEnv(nameVal string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	name, _, isSet := strings.Cut(nameVal, "=")
	if name == "" {
		return pam.BadItem
	}
	idx := h.indexLocked(name)
	if !isSet {
		// Bare NAME deletes the variable.
		if idx < 0 {
			return pam.BadItem
		}
		h.envList = append(h.envList[:idx], h.envList[idx+1:]...)
		return nil
	}
	if idx >= 0 {
		h.envList[idx] = nameVal
		return nil
	}
	h.envList = append(h.envList, nameVal)
	return nil
}

// GetEnv implements pam.Handle.
func (h *FakeHandle) GetEnv(name string) string {
	h.mu.Lock()
	defer h.mu.Unlock()

	if idx := h.indexLocked(name); idx >= 0 {
		_, value, _ := strings.Cut(h.envList[idx], "=")
		return value
	}
	return ""
}

// GetEnvList implements pam.Handle.
func (h *FakeHandle) GetEnvList() ([]string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	list := make([]string, len(h.envList))
	copy(list, h.envList)
	return list, nil
}

// InjectRawEnv appends a raw entry to the environment without validation.
// Tests use it to simulate malformed entries.
func (h *FakeHandle) InjectRawEnv(entry string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.envList = append(h.envList, entry)
}

// SetData implements pam.Handle.
func (h *FakeHandle) SetData(key string, data []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if data == nil {
		delete(h.data, key)
		return nil
	}
	h.data[key] = append([]byte(nil), data...)
	return nil
}

// GetData implements pam.Handle.
func (h *FakeHandle) GetData(key string) ([]byte, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	data, ok := h.data[key]
	if !ok {
		return nil, pam.NoModuleData
	}
	return append([]byte(nil), data...), nil
}

// Prompt implements pam.Handle. Responses are consumed from
// PromptResponses in order.
func (h *FakeHandle) Prompt(style pam.Style, msg string) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.prompts = append(h.prompts, PromptCall{Style: style, Msg: msg})
	if h.PromptError != nil {
		return "", h.PromptError
	}
	if len(h.PromptResponses) == 0 {
		return "", nil
	}
	resp := h.PromptResponses[0]
	h.PromptResponses = h.PromptResponses[1:]
	return resp, nil
}

// Prompts returns the conversation rounds issued so far.
func (h *FakeHandle) Prompts() []PromptCall {
	h.mu.Lock()
	defer h.mu.Unlock()

	calls := make([]PromptCall, len(h.prompts))
	copy(calls, h.prompts)
	return calls
}

// DataKeys returns the keys currently stored, for teardown assertions.
func (h *FakeHandle) DataKeys() []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	keys := make([]string, 0, len(h.data))
	for k := range h.data {
		keys = append(keys, k)
	}
	return keys
}

func (h *FakeHandle) indexLocked(name string) int {
	for i, entry := range h.envList {
		entryName, _, ok := strings.Cut(entry, "=")
		if ok && entryName == name {
			return i
		}
	}
	return -1
}

var _ pam.Handle = (*FakeHandle)(nil)
