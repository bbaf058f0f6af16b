package mp4box

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeBoxHeader(t *testing.T) {
	body := []byte{1, 2, 3, 4}
	encoded := encodeBox("test", body)
	require.Equal(t, uint32(8+len(body)), binary.BigEndian.Uint32(encoded[:4]))
	require.Equal(t, "test", string(encoded[4:8]))
	require.Equal(t, body, encoded[8:])
}

func TestFtypRoundTripLayout(t *testing.T) {
	ftyp := DefaultFtyp()
	encoded := ftyp.Encode()
	size := binary.BigEndian.Uint32(encoded[:4])
	require.Equal(t, int(size), len(encoded))
	require.Equal(t, "ftyp", string(encoded[4:8]))
	require.Equal(t, "isom", string(encoded[8:12]))
}

func TestMoofTrafSampleCountMatchesMdat(t *testing.T) {
	entries := []TrunEntry{
		{SampleDuration: 3000, SampleSize: 10},
		{SampleDuration: 3000, SampleSize: 20},
	}
	trun := Trun{DataOffset: 8, Entries: entries}
	traf := Traf{
		Tfhd: Tfhd{TrackID: 1},
		Tfdt: Tfdt{BaseMediaDecodeTime: 0},
		Trun: trun,
	}
	moof := Moof{Mfhd: Mfhd{SequenceNumber: 1}, Trafs: []Traf{traf}}
	moofBytes := moof.Encode()

	mdat := Mdat{Data: make([]byte, 30)}
	mdatBytes := mdat.Encode()

	require.Equal(t, "moof", string(moofBytes[4:8]))
	require.Equal(t, "mdat", string(mdatBytes[4:8]))
	require.Equal(t, len(entries), len(trun.Entries))

	var total int
	for _, e := range entries {
		total += int(e.SampleSize)
	}
	require.Equal(t, total, len(mdat.Data))
}
