// Package predict validates request payloads and runs them through the
// loaded model.
package predict

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"heartrisk/deployment"
	"heartrisk/ml"
)

// Prediction is the outcome of one successful inference.
type Prediction struct {
	ClassIndex    int
	Label         string
	Confidence    float64
	Probabilities []float64
	Cached        bool
}

type Options struct {
	// BooleanFields are normalized with NormalizeBoolean before inference.
	BooleanFields []string
	// CacheSize bounds the result cache; 0 disables it.
	CacheSize int
}

type Service struct {
	artifacts *deployment.Artifacts
	booleans  map[string]bool
	inputs    []string
	cache     *lru.Cache[string, Prediction]
}

func NewService(artifacts *deployment.Artifacts, opts Options) (*Service, error) {
	s := &Service{
		artifacts: artifacts,
		booleans:  make(map[string]bool, len(opts.BooleanFields)),
		inputs:    artifacts.Model.InputFeatures(),
	}
	for _, field := range opts.BooleanFields {
		s.booleans[field] = true
	}
	if opts.CacheSize > 0 {
		cache, err := lru.New[string, Prediction](opts.CacheSize)
		if err != nil {
			return nil, err
		}
		s.cache = cache
	}
	return s, nil
}

func (s *Service) Features() []string { return s.artifacts.Features }

func (s *Service) Classes() []string { return s.artifacts.Classes }

// Missing returns the schema names absent from payload, in schema order.
func (s *Service) Missing(payload map[string]interface{}) []string {
	missing := make([]string, 0)
	for _, name := range s.artifacts.Features {
		if _, ok := payload[name]; !ok {
			missing = append(missing, name)
		}
	}
	return missing
}

// Predict validates payload and runs a single-row inference. Validation
// failures are ErrNoData or *MissingFieldsError; model failures are
// *InferenceError.
func (s *Service) Predict(ctx context.Context, payload map[string]interface{}) (*Prediction, error) {
	if payload == nil {
		return nil, ErrNoData
	}
	if missing := s.Missing(payload); len(missing) > 0 {
		return nil, &MissingFieldsError{Fields: missing}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// only schema columns reach the model
	columns := make(map[string]interface{}, len(s.artifacts.Features))
	for _, name := range s.artifacts.Features {
		value := payload[name]
		if s.booleans[name] {
			value = NormalizeBoolean(value)
		}
		columns[name] = value
	}
	row := make([]interface{}, len(s.inputs))
	for i, name := range s.inputs {
		row[i] = columns[name]
	}

	var key string
	if s.cache != nil {
		key = rowKey(row)
		if cached, ok := s.cache.Get(key); ok {
			cached.Cached = true
			return &cached, nil
		}
	}

	probs, err := s.artifacts.Model.PredictProba(row)
	if err != nil {
		return nil, &InferenceError{Err: err}
	}
	if len(probs) != len(s.artifacts.Classes) {
		return nil, &InferenceError{Err: fmt.Errorf("model returned %d probabilities for %d classes", len(probs), len(s.artifacts.Classes))}
	}

	idx := ml.Argmax(probs)
	p := Prediction{
		ClassIndex:    idx,
		Label:         s.artifacts.Classes[idx],
		Confidence:    probs[idx],
		Probabilities: probs,
	}
	if s.cache != nil {
		s.cache.Add(key, p)
	}
	return &p, nil
}

// rowKey renders a row with type tags so "1", 1 and true never collide.
func rowKey(row []interface{}) string {
	var b strings.Builder
	for _, value := range row {
		switch v := value.(type) {
		case nil:
			b.WriteString("n:")
		case bool:
			b.WriteString("b:" + strconv.FormatBool(v))
		case string:
			b.WriteString("s:" + strconv.Quote(v))
		case json.Number:
			b.WriteString("f:" + v.String())
		case float64:
			b.WriteString("f:" + strconv.FormatFloat(v, 'g', -1, 64))
		default:
			b.WriteString(fmt.Sprintf("x:%#v", v))
		}
		b.WriteByte(0x1f)
	}
	return b.String()
}
