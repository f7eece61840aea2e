package audio

import (
	"errors"
	"math"
)

// ResamplePCMBytes converts interleaved 16-bit PCM between sample rates using
// linear interpolation per channel.
func ResamplePCMBytes(pcm []byte, channels, fromRate, toRate int) ([]byte, error) {
	if fromRate <= 0 || toRate <= 0 {
		return nil, errors.New("sample rates must be positive")
	}
	if channels <= 0 {
		return nil, errors.New("invalid number of channels")
	}
	if len(pcm) == 0 || fromRate == toRate {
		return pcm, nil
	}
	if len(pcm)%(2*channels) != 0 {
		return nil, errors.New("PCM data length doesn't match channel count")
	}

	in := BytesToSamples(pcm)
	inFrames := len(in) / channels
	outFrames := int(math.Round(float64(inFrames) * float64(toRate) / float64(fromRate)))
	if outFrames == 0 {
		return []byte{}, nil
	}

	out := make([]int16, outFrames*channels)
	step := float64(fromRate) / float64(toRate)
	for frame := 0; frame < outFrames; frame++ {
		pos := float64(frame) * step
		left := int(pos)
		if left >= inFrames-1 {
			left = inFrames - 1
		}
		right := left + 1
		if right >= inFrames {
			right = inFrames - 1
		}
		frac := pos - float64(left)
		for ch := 0; ch < channels; ch++ {
			a := float64(in[left*channels+ch])
			b := float64(in[right*channels+ch])
			out[frame*channels+ch] = clampSample(a + (b-a)*frac)
		}
	}
	return SamplesToBytes(out), nil
}

func clampSample(v float64) int16 {
	v = math.Round(v)
	if v > pcmMax {
		return pcmMax
	}
	if v < pcmMin {
		return pcmMin
	}
	return int16(v)
}
