package audio

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/zaf/g711"

	"practicekit/core"
)

const (
	pcmMax = 32767
	pcmMin = -32768
)

var errOddPCM = errors.New("PCM byte slice length must be even (16-bit samples)")

// codec moves one companded format to and from 16-bit PCM.
type codec struct {
	decode func([]byte) []byte
	encode func([]byte) []byte
}

var codecs = map[core.AudioEncodingFormat]codec{
	core.ULAW: {decode: g711.DecodeUlaw, encode: g711.EncodeUlaw},
	core.ALAW: {decode: g711.DecodeAlaw, encode: g711.EncodeAlaw},
}

// PCMBytesToULaw compands 16-bit PCM to G.711 µ-law.
func PCMBytesToULaw(pcm []byte) ([]byte, error) {
	if len(pcm)%2 != 0 {
		return nil, errOddPCM
	}
	return g711.EncodeUlaw(pcm), nil
}

// BytesToSamples decodes little endian 16-bit PCM.
func BytesToSamples(pcm []byte) []int16 {
	samples := make([]int16, len(pcm)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(pcm[i*2:]))
	}
	return samples
}

// SamplesToBytes encodes samples as little endian 16-bit PCM.
func SamplesToBytes(samples []int16) []byte {
	pcm := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(s))
	}
	return pcm
}

// SamplesToFloat32 scales samples into [-1, 1).
func SamplesToFloat32(samples []int16) []float32 {
	out := make([]float32, len(samples))
	for i, s := range samples {
		out[i] = float32(s) / 32768.0
	}
	return out
}

// ConvertAudioChunk re-encodes input to the target format, channel count and
// sample rate. 16-bit PCM is the intermediate representation. The input is
// returned unchanged when it already matches.
func ConvertAudioChunk(
	input core.AudioChunk,
	targetFormat core.AudioEncodingFormat,
	targetChannels int,
	targetSampleRate int,
) (core.AudioChunk, error) {
	if input.Data == nil {
		return core.AudioChunk{}, errors.New("audio chunk has no data")
	}
	if input.Format == targetFormat && input.Channels == targetChannels && input.SampleRate == targetSampleRate {
		return input, nil
	}

	pcm := *input.Data
	if input.Format != core.PCM {
		c, ok := codecs[input.Format]
		if !ok {
			return core.AudioChunk{}, fmt.Errorf("unsupported format for PCM conversion: %s", input.Format)
		}
		pcm = c.decode(pcm)
	}

	var err error
	if pcm, err = convertChannels(pcm, input.Channels, targetChannels); err != nil {
		return core.AudioChunk{}, err
	}
	if input.SampleRate != targetSampleRate {
		if pcm, err = ResamplePCMBytes(pcm, targetChannels, input.SampleRate, targetSampleRate); err != nil {
			return core.AudioChunk{}, err
		}
	}

	if targetFormat != core.PCM {
		c, ok := codecs[targetFormat]
		if !ok {
			return core.AudioChunk{}, fmt.Errorf("unsupported target format: %s", targetFormat)
		}
		if len(pcm)%2 != 0 {
			return core.AudioChunk{}, errOddPCM
		}
		pcm = c.encode(pcm)
	}

	out := input
	out.Data = &pcm
	out.Format = targetFormat
	out.Channels = targetChannels
	out.SampleRate = targetSampleRate
	return out, nil
}

// convertChannels maps interleaved PCM between mono and stereo. Stereo is
// folded to mono by averaging.
func convertChannels(pcm []byte, fromChannels, toChannels int) ([]byte, error) {
	switch {
	case fromChannels == toChannels:
		return pcm, nil
	case fromChannels == 1 && toChannels == 2:
		in := BytesToSamples(pcm)
		out := make([]int16, 0, len(in)*2)
		for _, s := range in {
			out = append(out, s, s)
		}
		return SamplesToBytes(out), nil
	case fromChannels == 2 && toChannels == 1:
		in := BytesToSamples(pcm)
		out := make([]int16, len(in)/2)
		for i := range out {
			out[i] = int16((int(in[2*i]) + int(in[2*i+1])) / 2)
		}
		return SamplesToBytes(out), nil
	}
	return nil, fmt.Errorf("unsupported channel conversion: %d to %d", fromChannels, toChannels)
}
