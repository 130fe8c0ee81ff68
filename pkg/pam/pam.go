// Package pam defines the narrow PAM contract the bridge is built against.
//
// The bridge never links against libpam directly. Instead it consumes a PAM
// handle through the Handle interface below, which mirrors the subset of the
// PAM module API the bridge actually needs: items, the PAM environment,
// per-handle module data and the conversation. The cgo glue that adapts a
// real pam_handle_t to this interface lives with the loader, outside this
// repository; tests plug in pamtest.FakeHandle.
package pam

// Handle is the module-side view of one PAM transaction.
//
// All methods are synchronous and must only be called from the goroutine
// that owns the PAM handle for the duration of one action. Methods that
// fail return a Status as the error value.
type Handle interface {
	// SetItem sets a PAM item to the given string value.
	SetItem(item Item, value string) error

	// GetItem retrieves a PAM item. An unset item yields an empty string
	// and a nil error.
	GetItem(item Item) (string, error)

	// PutEnv adds, changes or deletes a PAM environment variable.
	//
	// "NAME=value" sets a variable, "NAME=" sets it to the empty value and
	// a bare "NAME" deletes it, matching pam_putenv semantics.
	PutEnv(nameVal string) error

	// GetEnv returns the value of a PAM environment variable, or the empty
	// string if it is not set.
	GetEnv(name string) string

	// GetEnvList returns the raw PAM environment as "NAME=value" entries.
	GetEnvList() ([]string, error)

	// SetData stores an opaque payload under the given key for the
	// lifetime of the PAM handle.
	SetData(key string, data []byte) error

	// GetData returns a payload previously stored with SetData. A key
	// without data fails with NoModuleData.
	GetData(key string) ([]byte, error)

	// Prompt runs one PAM conversation round with the given style and
	// message and returns the response (empty for display-only styles).
	Prompt(style Style, msg string) (string, error)
}
