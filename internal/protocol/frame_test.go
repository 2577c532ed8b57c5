package protocol

import (
	"bytes"
	"encoding/binary"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quic-chat-system/internal/errors"
)

func TestFrameRoundTrip(t *testing.T) {
	token := "abc"
	req := Request{
		JWT:     &token,
		Command: Command{Type: CmdSendMessage, Data: []byte(`{"chat_id":1,"content":"hi"}`)},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, req))

	// Header carries the payload length, excluding itself.
	header := binary.BigEndian.Uint32(buf.Bytes()[:4])
	assert.Equal(t, int(header), buf.Len()-4)

	var decoded Request
	require.NoError(t, ReadFrame(&buf, &decoded))
	require.NotNil(t, decoded.JWT)
	assert.Equal(t, "abc", *decoded.JWT)
	assert.Equal(t, CmdSendMessage, decoded.Command.Type)
}

func TestReadFrameRejectsOversizedHeader(t *testing.T) {
	var buf bytes.Buffer
	var header [4]byte
	binary.BigEndian.PutUint32(header[:], MaxPayloadSize+1)
	buf.Write(header[:])

	var req Request
	err := ReadFrame(&buf, &req)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.KindRequestInvalid))
	assert.Contains(t, err.Error(), "exceeds max allowed size")
}

func TestWriteFrameRejectsOversizedPayload(t *testing.T) {
	big := strings.Repeat("x", MaxPayloadSize+1)
	err := WriteFrame(&bytes.Buffer{}, SendMessagePayload{ChatID: 1, Content: big})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.KindRequestInvalid))
}

func TestReadFrameEOFIsDisconnected(t *testing.T) {
	var req Request

	// EOF before the header completes.
	err := ReadFrame(bytes.NewReader([]byte{0, 0}), &req)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.KindDisconnected))

	// EOF mid-payload.
	var buf bytes.Buffer
	var header [4]byte
	binary.BigEndian.PutUint32(header[:], 10)
	buf.Write(header[:])
	buf.WriteString("short")
	err = ReadFrame(&buf, &req)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.KindDisconnected))
}

func TestReadFrameRejectsMalformedJSON(t *testing.T) {
	var buf bytes.Buffer
	payload := []byte("{not json")
	var header [4]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(payload)))
	buf.Write(header[:])
	buf.Write(payload)

	var req Request
	err := ReadFrame(&buf, &req)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.KindRequestInvalid))
}

func TestEncodeFrameMatchesWriteFrame(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, Refresh{}))

	encoded, err := EncodeFrame(Refresh{})
	require.NoError(t, err)
	assert.Equal(t, buf.Bytes(), encoded)

	// The refresh sentinel is the empty JSON object.
	assert.Equal(t, "{}", string(encoded[4:]))
}
