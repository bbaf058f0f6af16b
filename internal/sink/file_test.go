package sink

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/thibaultbee/streampack-go/internal/config"
	"github.com/thibaultbee/streampack-go/internal/media"
)

func TestFileSinkWriteRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.ts")
	s := NewFile(nil)
	require.NoError(t, s.Open(config.SinkDescriptor{URI: path}))
	require.NoError(t, s.StartStream())

	n, err := s.Write(&media.Packet{Payload: []byte("hello")})
	require.NoError(t, err)
	require.Equal(t, 5, n)

	require.NoError(t, s.StopStream())
	require.NoError(t, s.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "hello", string(data))
}

func TestFileSinkWriteBeforeStreamingIsClosed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.ts")
	s := NewFile(nil)
	require.NoError(t, s.Open(config.SinkDescriptor{URI: path}))

	_, err := s.Write(&media.Packet{Payload: []byte("x")})
	require.Error(t, err)
}

func TestFileSinkReopenAfterClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.ts")
	s := NewFile(nil)
	require.NoError(t, s.Open(config.SinkDescriptor{URI: path}))
	require.NoError(t, s.Close())

	require.NoError(t, s.Open(config.SinkDescriptor{URI: path}))
	require.Equal(t, StateOpen, s.State())
}

func TestFileSinkTrimsFileScheme(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.ts")
	require.Equal(t, path, trimFileScheme("file://"+path))
	require.Equal(t, path, trimFileScheme(path))
}
