package streampack_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/thibaultbee/streampack-go/pkg/streampack"
)

func TestPipelineWritesToFileSink(t *testing.T) {
	out := filepath.Join(t.TempDir(), "out.ts")

	cfg := streampack.DefaultConfig()
	cfg.Muxer = streampack.MuxerTS
	cfg.Sinks = []streampack.SinkDescriptor{{Kind: streampack.SinkFile, URI: out}}

	p, err := streampack.New(cfg, nil, nil, nil)
	require.NoError(t, err)

	id, err := p.AddStream(streampack.MimeH264, streampack.VideoConfig{Mime: streampack.MimeH264}, streampack.AudioConfig{})
	require.NoError(t, err)
	require.NoError(t, p.StartStream())

	frame := streampack.NewFrame(id, streampack.MimeH264, []byte{0, 0, 0, 1, 0x65, 1, 2, 3}, 0)
	frame.IsKey = true
	require.NoError(t, p.Write(frame))

	require.Eventually(t, func() bool {
		info, err := os.Stat(out)
		return err == nil && info.Size() > 0
	}, time.Second, time.Millisecond)

	require.NoError(t, p.StopStream())
	require.NoError(t, p.Release())
}

func TestParseConfigAppliesDefaults(t *testing.T) {
	cfg, err := streampack.ParseConfig([]byte("sinks:\n  - kind: file\n    uri: /tmp/x.ts\n"))
	require.NoError(t, err)
	require.Equal(t, streampack.MuxerFMP4, cfg.Muxer)
	require.Equal(t, 20, cfg.ChannelCapacity)
}
