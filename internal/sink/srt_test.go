package sink

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/thibaultbee/streampack-go/internal/media"
)

func TestParseSRTAddr(t *testing.T) {
	addr, err := parseSRTAddr("srt://relay.example.com:9000?streamid=foo")
	require.NoError(t, err)
	require.Equal(t, "relay.example.com:9000", addr)
}

func TestParseSRTAddrRejectsNonSRTScheme(t *testing.T) {
	_, err := parseSRTAddr("rtmp://relay.example.com:9000")
	require.Error(t, err)
}

func TestParseSRTAddrRejectsMissingPort(t *testing.T) {
	_, err := parseSRTAddr("srt://relay.example.com")
	require.Error(t, err)
}

func TestSRTWriteBeforeOpenIsClosed(t *testing.T) {
	s := NewSRT(nil)
	_, err := s.Write(&media.Packet{Payload: []byte("x")})
	require.Error(t, err)
}
