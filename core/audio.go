package core

import "time"

type AudioEncodingFormat int

const (
	PCM  AudioEncodingFormat = iota // 16-bit little endian linear PCM.
	ULAW                            // μ-law encoding format.
	ALAW                            // A-law encoding format.
)

func (f AudioEncodingFormat) String() string {
	switch f {
	case PCM:
		return "pcm"
	case ULAW:
		return "ulaw"
	case ALAW:
		return "alaw"
	default:
		return "unknown"
	}
}

type AudioChunk struct {
	Data       *[]byte             // Raw audio data.
	SampleRate int                 // Sample rate of the audio data.
	Channels   int                 // Number of audio channels.
	Format     AudioEncodingFormat // Encoding format of the audio data.
	Timestamp  time.Time           // Capture time of the first sample.
}

// GetDurationInSeconds reports the playback length of the chunk. Companded
// formats carry one byte per sample, PCM carries two.
func (ac *AudioChunk) GetDurationInSeconds() float64 {
	if ac.SampleRate == 0 || ac.Channels == 0 || ac.Data == nil {
		return 0.0
	}
	bytesPerSample := 2
	if ac.Format == ULAW || ac.Format == ALAW {
		bytesPerSample = 1
	}
	totalSamples := len(*ac.Data) / (bytesPerSample * ac.Channels)
	return float64(totalSamples) / float64(ac.SampleRate)
}

func (ac *AudioChunk) GetDuration() time.Duration {
	return time.Duration(ac.GetDurationInSeconds() * float64(time.Second))
}
