package bridgerpc

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"net/url"
	"strings"

	xdr "github.com/rasky/go-xdr/xdr2"
)

// maxFrameSize bounds one record-marked frame. PAM traffic is tiny; a
// frame this large already means a confused or hostile peer.
const maxFrameSize = 1 << 20 // 1 MiB

// writeFrame XDR-encodes body and writes it as one record-marked frame:
// a 4-byte big-endian length followed by the encoded bytes.
func writeFrame(w io.Writer, body any) error {
	var buf bytes.Buffer
	if _, err := xdr.Marshal(&buf, body); err != nil {
		return fmt.Errorf("marshal frame body: %w", err)
	}
	if buf.Len() > maxFrameSize {
		return fmt.Errorf("frame too large: %d bytes", buf.Len())
	}

	frame := make([]byte, 4+buf.Len())
	binary.BigEndian.PutUint32(frame[0:4], uint32(buf.Len()))
	copy(frame[4:], buf.Bytes())

	if _, err := w.Write(frame); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// readFrame reads one record-marked frame and XDR-decodes it into body.
func readFrame(r io.Reader, body any) error {
	var header [4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return err
	}

	length := binary.BigEndian.Uint32(header[:])
	if length > maxFrameSize {
		return fmt.Errorf("frame too large: %d bytes", length)
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return fmt.Errorf("read frame body: %w", err)
	}

	if _, err := xdr.Unmarshal(bytes.NewReader(payload), body); err != nil {
		return fmt.Errorf("unmarshal frame body: %w", err)
	}
	return nil
}

// marshalBody XDR-encodes a per-method argument or result struct.
func marshalBody(v any) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := xdr.Marshal(&buf, v); err != nil {
		return nil, fmt.Errorf("marshal body: %w", err)
	}
	return buf.Bytes(), nil
}

// unmarshalBody decodes a per-method argument or result struct.
func unmarshalBody(data []byte, v any) error {
	if _, err := xdr.Unmarshal(bytes.NewReader(data), v); err != nil {
		return fmt.Errorf("unmarshal body: %w", err)
	}
	return nil
}

// FormatAddress builds the connect address handed to the helper:
// "unix:path=<socket path>,guid=<server guid>".
func FormatAddress(path, guid string) string {
	return fmt.Sprintf("unix:path=%s,guid=%s", url.PathEscape(path), guid)
}

// ParseAddress splits a connect address back into socket path and GUID.
func ParseAddress(address string) (path, guid string, err error) {
	rest, ok := strings.CutPrefix(address, "unix:")
	if !ok {
		return "", "", fmt.Errorf("unsupported address %q", address)
	}

	for _, part := range strings.Split(rest, ",") {
		key, value, ok := strings.Cut(part, "=")
		if !ok {
			return "", "", fmt.Errorf("malformed address component %q", part)
		}
		switch key {
		case "path":
			if path, err = url.PathUnescape(value); err != nil {
				return "", "", fmt.Errorf("malformed address path: %w", err)
			}
		case "guid":
			guid = value
		default:
			// Unknown components are ignored for forward compatibility.
		}
	}

	if path == "" {
		return "", "", fmt.Errorf("address %q carries no socket path", address)
	}
	return path, guid, nil
}
