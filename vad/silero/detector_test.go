package silero

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestFrameBufferSplitsStream(t *testing.T) {
	buf := frameBuffer{size: 4}

	assert.Empty(t, buf.push([]float32{1, 2, 3}))
	frames := buf.push([]float32{4, 5, 6, 7, 8, 9})
	assert.Equal(t, [][]float32{{1, 2, 3, 4}, {5, 6, 7, 8}}, frames)
	assert.Equal(t, []float32{9}, buf.pending)

	buf.reset()
	assert.Empty(t, buf.pending)
}

func TestFrameBufferConservesSamples(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		buf := frameBuffer{size: frameSize}
		total, emitted := 0, 0
		for _, n := range rapid.SliceOf(rapid.IntRange(0, 2000)).Draw(t, "chunks") {
			total += n
			for _, frame := range buf.push(make([]float32, n)) {
				assert.Len(t, frame, frameSize)
				emitted += len(frame)
			}
		}
		assert.Equal(t, total, emitted+len(buf.pending))
		assert.Less(t, len(buf.pending), frameSize)
	})
}
