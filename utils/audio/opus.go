package audio

import (
	"fmt"

	"github.com/hraban/opus"
)

// maxOpusFrameMs is the longest frame an Opus packet can carry.
const maxOpusFrameMs = 120

// OpusDecoder turns Opus packets into 16-bit PCM. It is not safe for
// concurrent use; keep one per incoming track.
type OpusDecoder struct {
	decoder    *opus.Decoder
	sampleRate int
	channels   int
	buf        []int16
}

func NewOpusDecoder(sampleRate, channels int) (*OpusDecoder, error) {
	dec, err := opus.NewDecoder(sampleRate, channels)
	if err != nil {
		return nil, fmt.Errorf("create opus decoder: %w", err)
	}
	return &OpusDecoder{
		decoder:    dec,
		sampleRate: sampleRate,
		channels:   channels,
		buf:        make([]int16, sampleRate*maxOpusFrameMs/1000*channels),
	}, nil
}

// Decode returns little endian PCM for one packet.
func (d *OpusDecoder) Decode(packet []byte) ([]byte, error) {
	if len(packet) == 0 {
		return nil, fmt.Errorf("empty opus packet")
	}
	n, err := d.decoder.Decode(packet, d.buf)
	if err != nil {
		return nil, fmt.Errorf("decode opus packet: %w", err)
	}
	return SamplesToBytes(d.buf[:n*d.channels]), nil
}

func (d *OpusDecoder) SampleRate() int { return d.sampleRate }
func (d *OpusDecoder) Channels() int   { return d.channels }
