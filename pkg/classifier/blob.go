package classifier

import (
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

const blobVersion = 1

// Decoder rebuilds a model from its decoded blob fields.
type Decoder func(fields map[string]*structpb.Value) (Model, error)

// Decoders maps a model kind to its decoder.
var Decoders = map[string]Decoder{
	KindLinearSVM: decodeLinearSVM,
}

var marshalOpts = proto.MarshalOptions{Deterministic: true}

// Marshal implements Model. The blob is a protobuf Struct so that any
// protobuf-aware tool can inspect a persisted model.
func (m *LinearSVM) Marshal() ([]byte, error) {
	weights := make([]any, len(m.Weights))
	for i, w := range m.Weights {
		weights[i] = w
	}

	s, err := structpb.NewStruct(map[string]any{
		"kind":       KindLinearSVM,
		"version":    blobVersion,
		"dim":        len(m.Weights),
		"bias":       m.Bias,
		"weights":    weights,
		"iterations": m.Iterations,
		"converged":  m.Converged,
	})
	if err != nil {
		return nil, fmt.Errorf("building model struct: %w", err)
	}
	return marshalOpts.Marshal(s)
}

// Unmarshal decodes a blob written by Model.Marshal.
func Unmarshal(blob []byte) (Model, error) {
	s := &structpb.Struct{}
	if err := proto.Unmarshal(blob, s); err != nil {
		return nil, fmt.Errorf("decoding model blob: %w", err)
	}

	fields := s.GetFields()
	kind := fields["kind"].GetStringValue()
	dec, ok := Decoders[kind]
	if !ok {
		return nil, fmt.Errorf("unknown model kind %q", kind)
	}
	if v := int(fields["version"].GetNumberValue()); v != blobVersion {
		return nil, fmt.Errorf("unsupported %s blob version %d", kind, v)
	}
	return dec(fields)
}

func decodeLinearSVM(fields map[string]*structpb.Value) (Model, error) {
	list := fields["weights"].GetListValue().GetValues()
	if dim := int(fields["dim"].GetNumberValue()); dim != len(list) {
		return nil, fmt.Errorf("linear svm blob has %d weights, dim %d", len(list), dim)
	}

	m := &LinearSVM{
		Weights:    make([]float64, len(list)),
		Bias:       fields["bias"].GetNumberValue(),
		Iterations: int(fields["iterations"].GetNumberValue()),
		Converged:  fields["converged"].GetBoolValue(),
	}
	for i, v := range list {
		m.Weights[i] = v.GetNumberValue()
	}
	return m, nil
}
