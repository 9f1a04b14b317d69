package psd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPackBitsDecode_LiteralRun(t *testing.T) {
	src := []byte{4, 10, 20, 30, 40, 50} // n=4 -> copy 5 literal bytes
	dst := make([]byte, 5)

	n, err := packBitsDecode(src, dst)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, []byte{10, 20, 30, 40, 50}, dst)
}

// Control bytes -127..-1 repeat the next source byte 1-n times (spec
// §4.6); this path was previously only exercised indirectly, never
// directly by a test, since psd_testutil_test.go's encoder only emits
// literal runs.
func TestPackBitsDecode_RepeatRun(t *testing.T) {
	src := []byte{0xFB, 99} // n=-5 -> repeat 99 six times
	dst := make([]byte, 6)

	n, err := packBitsDecode(src, dst)
	require.NoError(t, err)
	assert.Equal(t, 6, n)
	assert.Equal(t, []byte{99, 99, 99, 99, 99, 99}, dst)
}

// Control byte -128 is a documented no-op: it consumes no following
// byte and emits nothing, letting an encoder pad a row without
// affecting decoded output.
func TestPackBitsDecode_NoOp(t *testing.T) {
	src := []byte{0x80, 1, 1, 2} // no-op, then n=1 -> copy 2 literal bytes
	dst := make([]byte, 2)

	n, err := packBitsDecode(src, dst)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []byte{1, 2}, dst)
}

// encodePackBitsMixed PackBits-encodes data using a mix of literal and
// repeat runs (runs of 3+ identical bytes become a repeat run,
// everything else a literal run), unlike psd_testutil_test.go's
// encodeRLERow which only ever emits literal runs. Used here to round
// trip both control-byte families through the real decoder.
func encodePackBitsMixed(data []byte) []byte {
	var out []byte
	n := len(data)
	i := 0

	runAt := func(pos int) int {
		run := 1
		for pos+run < n && data[pos+run] == data[pos] && run < 128 {
			run++
		}
		return run
	}

	for i < n {
		if run := runAt(i); run >= 3 {
			out = append(out, byte(1-run), data[i])
			i += run
			continue
		}

		litStart := i
		for i < n && runAt(i) < 3 && i-litStart < 128 {
			i++
		}
		lit := data[litStart:i]
		out = append(out, byte(len(lit)-1))
		out = append(out, lit...)
	}
	return out
}

func TestPackBitsDecode_RoundTrip(t *testing.T) {
	cases := [][]byte{
		{1, 2, 3, 4, 5},
		{7, 7, 7, 7, 7, 7, 7, 7},
		{1, 2, 2, 2, 2, 2, 2, 3, 4},
		{9},
		repeatByte(0, 200),
	}

	for _, data := range cases {
		encoded := encodePackBitsMixed(data)
		dst := make([]byte, len(data))
		n, err := packBitsDecode(encoded, dst)
		require.NoError(t, err)
		assert.Equal(t, len(data), n)
		assert.Equal(t, data, dst)
	}
}

func repeatByte(b byte, n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = b
	}
	return out
}

// decompressRLE's per-row framing exercised end to end with a
// repeat-run-encoded channel, not just packBitsDecode in isolation.
func TestDecompressRLE_RepeatRunChannel(t *testing.T) {
	row := repeatByte(42, 6)
	encodedRow := encodePackBitsMixed(row)

	stored := make([]byte, 2+len(encodedRow))
	stored[0] = byte(len(encodedRow) >> 8)
	stored[1] = byte(len(encodedRow))
	copy(stored[2:], encodedRow)

	decoded, err := decompressRLE(ChannelRed, stored, 6, 1, 8, false)
	require.NoError(t, err)
	assert.Equal(t, row, decoded.Data)
}
