package pdu

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecoderFeedAllAtOnce(t *testing.T) {
	p1 := NewPing([]byte{1, 2, 3})
	p2 := NewOk()
	buf := append(p1.Serialize(), p2.Serialize()...)

	d := NewDecoder()
	d.Feed(buf)

	got1, ok := d.Next()
	require.True(t, ok)
	assert.Equal(t, p1, got1)

	got2, ok := d.Next()
	require.True(t, ok)
	assert.Equal(t, p2, got2)

	_, ok = d.Next()
	assert.False(t, ok)
}

func TestDecoderFeedByteByByte(t *testing.T) {
	p1 := NewPing([]byte{1, 2, 3})
	p2 := NewOk()
	buf := append(p1.Serialize(), p2.Serialize()...)

	d := NewDecoder()
	var got []PDU
	for _, b := range buf {
		d.Feed([]byte{b})
		for {
			p, ok := d.Next()
			if !ok {
				break
			}
			got = append(got, p)
		}
	}
	require.Len(t, got, 2)
	assert.Equal(t, p1, got[0])
	assert.Equal(t, p2, got[1])
}

func TestDecoderSkipsLeadingGarbageOneByteAtATime(t *testing.T) {
	p := NewOk()
	buf := append([]byte{0x00, 0xFF, 0x01}, p.Serialize()...)

	whole := NewDecoder()
	whole.Feed(buf)
	gotWhole, ok := whole.Next()
	require.True(t, ok)

	perByte := NewDecoder()
	var gotPerByte PDU
	found := false
	for _, b := range buf {
		perByte.Feed([]byte{b})
		if pp, ok := perByte.Next(); ok {
			gotPerByte = pp
			found = true
		}
	}
	require.True(t, found)
	assert.Equal(t, gotWhole, gotPerByte)
}
