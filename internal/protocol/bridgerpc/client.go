package bridgerpc

import (
	"context"
	"fmt"
	"net"
	"sync"
)

// Client is the helper-side end of the RPC channel. Calls are serialized:
// the bridge answers one call at a time, in order.
type Client struct {
	conn net.Conn
	guid string

	mu  sync.Mutex
	xid uint32
}

// Dial connects to the server named by a connect address in the
// "unix:path=...,guid=..." format.
func Dial(ctx context.Context, address string) (*Client, error) {
	path, guid, err := ParseAddress(address)
	if err != nil {
		return nil, err
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", path)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", path, err)
	}

	return &Client{conn: conn, guid: guid}, nil
}

// Call invokes one method. args is the per-method argument struct (nil for
// methods without arguments) and result the per-method result struct.
// Protocol-level failures are returned as *ProtocolError.
func (c *Client) Call(method string, args, result any) error {
	var argBytes []byte
	if args != nil {
		var err error
		if argBytes, err = marshalBody(args); err != nil {
			return fmt.Errorf("%s: %w", method, err)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.xid++
	call := Call{
		Xid:    c.xid,
		Guid:   c.guid,
		Method: method,
		Args:   argBytes,
	}

	if err := writeFrame(c.conn, &call); err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}

	var reply Reply
	if err := readFrame(c.conn, &reply); err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	if reply.Xid != call.Xid {
		return fmt.Errorf("%s: reply xid %d does not match call xid %d",
			method, reply.Xid, call.Xid)
	}
	if reply.Accept != AcceptSuccess {
		return &ProtocolError{Accept: reply.Accept, Msg: reply.ErrMsg}
	}

	if result != nil {
		if err := unmarshalBody(reply.Data, result); err != nil {
			return fmt.Errorf("%s: %w", method, err)
		}
	}
	return nil
}

// Close tears down the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}
