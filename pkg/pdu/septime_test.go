package pdu

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeparationTimeRoundTrip(t *testing.T) {
	values := []uint32{0, 100, 200, 300, 400, 500, 600, 700, 800, 900, 1000, 2000, 3000, 4000, 5000, 6000}
	for _, v := range values {
		code, ok := MicrosToCode(v)
		require.True(t, ok, "value %d should be representable", v)
		assert.Equal(t, v, CodeToMicros(code), "round trip for %d", v)
	}
}

func TestSeparationByteRoundTrip(t *testing.T) {
	b, ok := EncodeSeparationByte(SeparationTimes{RXMicros: 0, TXMicros: 2000})
	require.True(t, ok)
	assert.Equal(t, byte(0x02), b)
	assert.Equal(t, SeparationTimes{RXMicros: 0, TXMicros: 2000}, DecodeSeparationByte(b))
}
