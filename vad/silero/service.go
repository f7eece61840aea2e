package silero

import (
	"context"
	"fmt"

	"practicekit/core"
	"practicekit/utils/audio"
)

// Config holds configuration for the Silero VAD service
type Config struct {
	OnnxPath        string `json:"onnx_path"`
	OnnxRuntimePath string `json:"onnx_runtime_path"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() Config {
	return Config{
		OnnxPath:        "./external/models/silero_vad.onnx",
		OnnxRuntimePath: "./external/onnx/libonnxruntime.so",
	}
}

// SileroVadService adapts a Detector to the VAD handler's service contract.
type SileroVadService struct {
	config   Config
	detector *Detector
	logger   *core.Logger
}

func NewSileroVadService(config Config, logger *core.Logger) *SileroVadService {
	if logger == nil {
		logger = core.GetLogger()
	}
	return &SileroVadService{
		config: config,
		logger: logger.With(map[string]interface{}{"service": "silero_vad"}),
	}
}

func (s *SileroVadService) Initialize(ctx context.Context) error {
	if s.detector != nil {
		return nil
	}
	detector, err := NewDetector(s.config.OnnxPath, s.config.OnnxRuntimePath)
	if err != nil {
		return fmt.Errorf("create silero detector: %w", err)
	}
	s.detector = detector
	return nil
}

func (s *SileroVadService) Cleanup() error {
	if s.detector == nil {
		return nil
	}
	s.logger.Info("Cleaning up Silero VAD service")
	err := s.detector.Close()
	s.detector = nil
	return err
}

func (s *SileroVadService) Reset() error {
	if s.detector != nil {
		s.detector.Reset()
	}
	return nil
}

func (s *SileroVadService) ProcessAudio(input core.AudioChunk) (core.VADResult, error) {
	if s.detector == nil {
		return core.VADResult{}, fmt.Errorf("silero service not initialized")
	}
	converted, err := audio.ConvertAudioChunk(input, core.PCM, 1, modelSampleRate)
	if err != nil {
		return core.VADResult{}, fmt.Errorf("convert audio: %w", err)
	}
	samples := audio.SamplesToFloat32(audio.BytesToSamples(*converted.Data))
	confidence, ready, err := s.detector.Confidence(samples)
	if err != nil {
		return core.VADResult{}, err
	}
	return core.VADResult{Confidence: confidence, Ready: ready}, nil
}
