// Package remote serves an evaluator.Evaluator over gRPC and provides the
// matching client. Messages are google.protobuf.Struct values, so no
// generated code is needed on either side.
package remote

import (
	"encoding/json"
	"errors"
	"fmt"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/banshee-data/pulsesim/internal/evaluator"
)

const (
	serviceName    = "pulsesim.evaluator.v1.Evaluator"
	evaluateMethod = "/" + serviceName + "/Evaluate"

	probabilitiesField = "probabilities"
)

// maxMsgSize allows long pulse lists and large parameter snapshots.
const maxMsgSize = 16 * 1024 * 1024

var errMalformedResponse = errors.New("malformed evaluator response")

func encodeRequest(req evaluator.Request) (*structpb.Struct, error) {
	raw, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	return structpb.NewStruct(m)
}

func decodeRequest(s *structpb.Struct) (evaluator.Request, error) {
	var req evaluator.Request
	raw, err := json.Marshal(s.AsMap())
	if err != nil {
		return req, fmt.Errorf("decode request: %w", err)
	}
	if err := json.Unmarshal(raw, &req); err != nil {
		return req, fmt.Errorf("decode request: %w", err)
	}
	return req, nil
}

func encodeResponse(probs map[string]float64) (*structpb.Struct, error) {
	fields := make(map[string]any, len(probs))
	for label, p := range probs {
		fields[label] = p
	}
	return structpb.NewStruct(map[string]any{probabilitiesField: fields})
}

func decodeResponse(s *structpb.Struct) (map[string]float64, error) {
	v, ok := s.GetFields()[probabilitiesField]
	if !ok {
		return nil, fmt.Errorf("%w: no %s field", errMalformedResponse, probabilitiesField)
	}
	sv := v.GetStructValue()
	if sv == nil {
		return nil, fmt.Errorf("%w: %s is not an object", errMalformedResponse, probabilitiesField)
	}
	out := make(map[string]float64, len(sv.GetFields()))
	for label, pv := range sv.GetFields() {
		n, ok := pv.GetKind().(*structpb.Value_NumberValue)
		if !ok {
			return nil, fmt.Errorf("%w: probability of %q is not a number", errMalformedResponse, label)
		}
		out[label] = n.NumberValue
	}
	return out, nil
}
