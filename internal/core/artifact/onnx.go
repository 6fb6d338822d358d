package artifact

import (
	"fmt"
	"sync"

	"exoseek/internal/core/features"

	ort "github.com/yalue/onnxruntime_go"
)

// ort keeps one process wide environment; sessions are created against it
var (
	ortMu   sync.Mutex
	ortInit bool
)

func ensureORT(libPath string) error {
	ortMu.Lock()
	defer ortMu.Unlock()
	if ortInit || ort.IsInitialized() {
		ortInit = true
		return nil
	}
	if libPath != "" {
		ort.SetSharedLibraryPath(libPath)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("onnxruntime init: %w", err)
	}
	ortInit = true
	return nil
}

// ONNX scores rows through an onnxruntime session
// expects a float32 [1,n] input with NaN for missing and a [1,2] probability output
type ONNX struct {
	sess     *ort.DynamicAdvancedSession
	width    int
	probName string
}

var _ Model = (*ONNX)(nil)

func loadONNX(path string, opt Options) (*ONNX, error) {
	if err := ensureORT(opt.ORTLibraryPath); err != nil {
		return nil, err
	}

	inputs, outputs, err := ort.GetInputOutputInfo(path)
	if err != nil {
		return nil, fmt.Errorf("%w: onnx info: %v", ErrFormat, err)
	}
	if len(inputs) == 0 {
		return nil, fmt.Errorf("%w: onnx graph has no inputs", ErrFormat)
	}

	in := inputs[0]
	if opt.ONNXInput != "" {
		found := false
		for _, i := range inputs {
			if i.Name == opt.ONNXInput {
				in, found = i, true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("%w: onnx input %q not found", ErrFormat, opt.ONNXInput)
		}
	}
	width := 0
	if len(in.Dimensions) == 2 && in.Dimensions[1] > 0 {
		width = int(in.Dimensions[1])
	}

	probName := opt.ONNXProbOutput
	if probName == "" {
		probName = "probabilities"
	}
	found := false
	for _, o := range outputs {
		if o.Name == probName {
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("%w: onnx output %q not found", ErrFormat, probName)
	}

	sess, err := ort.NewDynamicAdvancedSession(path, []string{in.Name}, []string{probName}, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: onnx session: %v", ErrFormat, err)
	}
	return &ONNX{sess: sess, width: width, probName: probName}, nil
}

// PredictProba implements Model
func (o *ONNX) PredictProba(xs []features.Value) (float64, error) {
	if o.width > 0 && len(xs) != o.width {
		return 0, fmt.Errorf("%w: got %d columns, model expects %d", ErrShape, len(xs), o.width)
	}
	data := make([]float32, len(xs))
	for i, v := range xs {
		data[i] = float32(v.NaN())
	}

	input, err := ort.NewTensor(ort.NewShape(1, int64(len(xs))), data)
	if err != nil {
		return 0, err
	}
	defer func() { _ = input.Destroy() }()

	probs, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 2))
	if err != nil {
		return 0, err
	}
	defer func() { _ = probs.Destroy() }()

	if err := o.sess.Run([]ort.Value{input}, []ort.Value{probs}); err != nil {
		return 0, fmt.Errorf("onnx run: %w", err)
	}
	out := probs.GetData()
	if len(out) < 2 {
		return 0, fmt.Errorf("onnx: %s has %d values", o.probName, len(out))
	}
	return float64(out[1]), nil
}

// NumFeatures implements Model
func (o *ONNX) NumFeatures() int { return o.width }

// Features implements Model; onnx graphs here carry no column names
func (o *ONNX) Features() []features.Name { return nil }

// Kind implements Model
func (o *ONNX) Kind() string { return "onnx" }

// Close releases the session
func (o *ONNX) Close() error {
	if o == nil || o.sess == nil {
		return nil
	}
	err := o.sess.Destroy()
	o.sess = nil
	return err
}
