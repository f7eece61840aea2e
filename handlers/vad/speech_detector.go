package vad

import "time"

// speechDetector debounces per-frame speech decisions into speech start and
// end transitions.
type speechDetector struct {
	minSpeech  time.Duration
	minSilence time.Duration

	speaking   bool
	speechRun  time.Duration // continuous speech before the start transition
	silenceRun time.Duration // continuous silence while speaking
	utterance  time.Duration // speech accumulated since the start transition
}

func newSpeechDetector(minSpeech, minSilence time.Duration) *speechDetector {
	return &speechDetector{minSpeech: minSpeech, minSilence: minSilence}
}

// Update consumes one frame of length d. ended reports the speech duration
// of the utterance that just finished.
func (s *speechDetector) Update(isSpeech bool, d time.Duration) (started bool, ended bool, speech time.Duration) {
	if isSpeech {
		s.silenceRun = 0
		if s.speaking {
			s.utterance += d
			return false, false, 0
		}
		s.speechRun += d
		if s.speechRun >= s.minSpeech {
			s.speaking = true
			s.utterance = s.speechRun
			s.speechRun = 0
			return true, false, 0
		}
		return false, false, 0
	}

	if !s.speaking {
		s.speechRun = 0
		return false, false, 0
	}
	s.silenceRun += d
	if s.silenceRun < s.minSilence {
		return false, false, 0
	}
	speech = s.utterance
	s.speaking = false
	s.silenceRun = 0
	s.utterance = 0
	return false, true, speech
}

func (s *speechDetector) Speaking() bool {
	return s.speaking
}

func (s *speechDetector) Reset() {
	*s = speechDetector{minSpeech: s.minSpeech, minSilence: s.minSilence}
}
