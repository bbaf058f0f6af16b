package sink

import "testing"

import "github.com/stretchr/testify/require"

func TestParseRTMPURL(t *testing.T) {
	scheme, host, app, key, err := parseRTMPURL("rtmp://live.example.com:1935/app/streamkey")
	require.NoError(t, err)
	require.Equal(t, "rtmp", scheme)
	require.Equal(t, "live.example.com:1935", host)
	require.Equal(t, "app", app)
	require.Equal(t, "streamkey", key)
}

func TestParseRTMPURLDefaultsPort(t *testing.T) {
	_, host, _, _, err := parseRTMPURL("rtmps://live.example.com/app/key")
	require.NoError(t, err)
	require.Equal(t, "live.example.com:1935", host)
}

func TestParseRTMPURLRejectsMissingApp(t *testing.T) {
	_, _, _, _, err := parseRTMPURL("rtmp://live.example.com/")
	require.Error(t, err)
}

func TestRTMPSchemesRecognized(t *testing.T) {
	for _, scheme := range []string{"rtmp", "rtmps", "rtmpe", "rtmpt", "rtmpte", "rtmpts", "rtmfp"} {
		require.True(t, rtmpSchemes[scheme], scheme)
	}
	require.False(t, rtmpSchemes["http"])
}

func TestFLVTagBodyStripsHeaderAndTrailer(t *testing.T) {
	body := []byte{0x17, 0x01, 0x00, 0x00, 0x00, 0xAA, 0xBB}
	header := []byte{9, 0, 0, byte(len(body)), 0, 0, 0, 0, 0, 0, 0}
	tagSize := uint32(len(header) + len(body))
	trailer := []byte{byte(tagSize >> 24), byte(tagSize >> 16), byte(tagSize >> 8), byte(tagSize)}
	tag := append(append(append([]byte{}, header...), body...), trailer...)

	require.Equal(t, body, FLVTagBody(tag))
}

func TestFLVTagBodyLeavesShortInputUnchanged(t *testing.T) {
	short := []byte{1, 2, 3}
	require.Equal(t, short, FLVTagBody(short))
}
