package sink

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/thibaultbee/streampack-go/internal/config"
	"github.com/thibaultbee/streampack-go/internal/media"
)

type bufCloser struct {
	bytes.Buffer
	closed bool
}

func (b *bufCloser) Close() error { b.closed = true; return nil }

func TestContentSinkWriteAndClose(t *testing.T) {
	var bc bufCloser
	opener := func(uri string) (io.WriteCloser, error) { return &bc, nil }

	s := NewContent(opener, nil)
	require.NoError(t, s.Open(config.SinkDescriptor{URI: "content://anything"}))
	require.NoError(t, s.StartStream())

	_, err := s.Write(&media.Packet{Payload: []byte("abc")})
	require.NoError(t, err)
	require.Equal(t, "abc", bc.String())

	require.NoError(t, s.Close())
	require.True(t, bc.closed)
}
