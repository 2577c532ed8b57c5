package protocol

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"

	"quic-chat-system/internal/errors"
)

// MaxPayloadSize is the largest JSON payload a frame may carry. The 4-byte
// length header is not counted.
const MaxPayloadSize = 65536

// WriteFrame writes v as a length-prefixed JSON frame.
func WriteFrame(w io.Writer, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return errors.Wrap(err, errors.KindRequestInvalid)
	}
	if len(payload) > MaxPayloadSize {
		return errors.Newf(errors.KindRequestInvalid,
			"frame of %d bytes exceeds max allowed size", len(payload))
	}
	var header [4]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(payload)))
	if _, err := w.Write(header[:]); err != nil {
		return errors.Wrap(err, errors.KindDisconnected)
	}
	if _, err := w.Write(payload); err != nil {
		return errors.Wrap(err, errors.KindDisconnected)
	}
	return nil
}

// ReadFrame reads one length-prefixed frame and decodes it into v. A length
// header above MaxPayloadSize fails with KindRequestInvalid before any
// payload byte is consumed; the caller must stop reading the stream. EOF on
// the header or a short payload read surfaces as KindDisconnected.
func ReadFrame(r io.Reader, v any) error {
	var header [4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return errors.Wrap(err, errors.KindDisconnected)
	}
	length := binary.BigEndian.Uint32(header[:])
	if length > MaxPayloadSize {
		return errors.Newf(errors.KindRequestInvalid,
			"frame of %d bytes exceeds max allowed size", length)
	}
	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return errors.Wrap(err, errors.KindDisconnected)
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return errors.Newf(errors.KindRequestInvalid, "malformed JSON: %v", err)
	}
	return nil
}

// EncodeFrame returns the framed bytes for v without writing them. The
// notifier uses this to build the refresh marker once per fan-out.
func EncodeFrame(v any) ([]byte, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if len(payload) > MaxPayloadSize {
		return nil, fmt.Errorf("frame of %d bytes exceeds max allowed size", len(payload))
	}
	buf := make([]byte, 4+len(payload))
	binary.BigEndian.PutUint32(buf[:4], uint32(len(payload)))
	copy(buf[4:], payload)
	return buf, nil
}
