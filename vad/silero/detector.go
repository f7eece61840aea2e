package silero

import (
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// The ONNX runtime environment is process-wide and is never torn down; it
// does not survive being destroyed and re-created.
var (
	onnxEnvOnce sync.Once
	onnxEnvErr  error
)

const (
	modelSampleRate = 16000
	frameSize       = 512 // samples per inference at 16 kHz
	contextSize     = 64  // trailing samples carried into the next inference
	stateSize       = 2 * 1 * 128
)

// Detector runs the Silero voice activity model over 16 kHz mono audio. It
// is safe for concurrent use but keeps one recurrent state, so a Detector
// must serve a single audio stream.
type Detector struct {
	mu sync.Mutex

	modelPath string
	frames    frameBuffer

	session      *ort.AdvancedSession
	inputTensor  *ort.Tensor[float32]
	srTensor     *ort.Tensor[int64]
	stateTensor  *ort.Tensor[float32]
	outputTensor *ort.Tensor[float32]
	stateNTensor *ort.Tensor[float32]

	context []float32
}

// NewDetector loads the runtime library (once per process) and creates an
// inference session for the model.
func NewDetector(modelPath, runtimePath string) (*Detector, error) {
	onnxEnvOnce.Do(func() {
		ort.SetSharedLibraryPath(runtimePath)
		onnxEnvErr = ort.InitializeEnvironment()
	})
	if onnxEnvErr != nil {
		return nil, fmt.Errorf("initialize onnx environment: %w", onnxEnvErr)
	}

	d := &Detector{
		modelPath: modelPath,
		frames:    frameBuffer{size: frameSize},
		context:   make([]float32, contextSize),
	}
	if err := d.createSession(); err != nil {
		d.destroy()
		return nil, err
	}
	return d, nil
}

func (d *Detector) createSession() error {
	var err error
	if d.inputTensor, err = ort.NewEmptyTensor[float32](ort.NewShape(1, contextSize+frameSize)); err != nil {
		return fmt.Errorf("create input tensor: %w", err)
	}
	if d.srTensor, err = ort.NewTensor(ort.NewShape(1), []int64{modelSampleRate}); err != nil {
		return fmt.Errorf("create sr tensor: %w", err)
	}
	if d.stateTensor, err = ort.NewEmptyTensor[float32](ort.NewShape(2, 1, 128)); err != nil {
		return fmt.Errorf("create state tensor: %w", err)
	}
	if d.outputTensor, err = ort.NewEmptyTensor[float32](ort.NewShape(1, 1)); err != nil {
		return fmt.Errorf("create output tensor: %w", err)
	}
	if d.stateNTensor, err = ort.NewEmptyTensor[float32](ort.NewShape(2, 1, 128)); err != nil {
		return fmt.Errorf("create stateN tensor: %w", err)
	}

	d.session, err = ort.NewAdvancedSession(
		d.modelPath,
		[]string{"input", "sr", "state"},
		[]string{"output", "stateN"},
		[]ort.Value{d.inputTensor, d.srTensor, d.stateTensor},
		[]ort.Value{d.outputTensor, d.stateNTensor},
		nil,
	)
	if err != nil {
		return fmt.Errorf("create onnx session: %w", err)
	}
	return nil
}

// Confidence feeds samples to the model and returns the speech probability
// of the last complete frame. ready is false until a full frame has been seen.
func (d *Detector) Confidence(samples []float32) (confidence float32, ready bool, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.session == nil {
		return 0, false, fmt.Errorf("detector closed")
	}

	for _, frame := range d.frames.push(samples) {
		input := d.inputTensor.GetData()
		copy(input[:contextSize], d.context)
		copy(input[contextSize:], frame)

		if err := d.session.Run(); err != nil {
			return 0, false, fmt.Errorf("run inference: %w", err)
		}

		confidence = d.outputTensor.GetData()[0]
		ready = true
		copy(d.stateTensor.GetData(), d.stateNTensor.GetData())
		copy(d.context, input[len(input)-contextSize:])
	}
	return confidence, ready, nil
}

// Reset clears the recurrent state and any buffered samples.
func (d *Detector) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stateTensor != nil {
		clear(d.stateTensor.GetData())
	}
	clear(d.context)
	d.frames.reset()
}

func (d *Detector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.destroy()
	return nil
}

func (d *Detector) destroy() {
	if d.session != nil {
		d.session.Destroy()
		d.session = nil
	}
	destroyTensor(d.inputTensor)
	destroyTensor(d.srTensor)
	destroyTensor(d.stateTensor)
	destroyTensor(d.outputTensor)
	destroyTensor(d.stateNTensor)
	d.inputTensor, d.srTensor, d.stateTensor, d.outputTensor, d.stateNTensor = nil, nil, nil, nil, nil
}

func destroyTensor[T ort.TensorData](tensor *ort.Tensor[T]) {
	if tensor != nil {
		tensor.Destroy()
	}
}

// frameBuffer cuts an arbitrary sample stream into fixed-size frames.
type frameBuffer struct {
	size    int
	pending []float32
}

func (b *frameBuffer) push(samples []float32) [][]float32 {
	b.pending = append(b.pending, samples...)
	var frames [][]float32
	for len(b.pending) >= b.size {
		frame := make([]float32, b.size)
		copy(frame, b.pending[:b.size])
		frames = append(frames, frame)
		b.pending = b.pending[b.size:]
	}
	if len(b.pending) == 0 {
		b.pending = nil
	}
	return frames
}

func (b *frameBuffer) reset() {
	b.pending = nil
}
