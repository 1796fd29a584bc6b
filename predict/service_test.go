package predict

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math"
	"reflect"
	"testing"

	"heartrisk/deployment/deploymenttest"
)

func decode(t *testing.T, payload string) map[string]interface{} {
	t.Helper()
	dec := json.NewDecoder(bytes.NewReader([]byte(payload)))
	dec.UseNumber()
	var out map[string]interface{}
	if err := dec.Decode(&out); err != nil {
		t.Fatal(err)
	}
	return out
}

func newService(t *testing.T, opts Options) *Service {
	t.Helper()
	s, err := NewService(deploymenttest.Load(t), opts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return s
}

func TestPredictReferencePayload(t *testing.T) {
	s := newService(t, Options{BooleanFields: []string{"fbs"}})

	p, err := s.Predict(context.Background(), decode(t, deploymenttest.ReferencePayload))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.ClassIndex != 1 || p.Label != "very mild" {
		t.Fatalf("unexpected prediction %+v", p)
	}
	if math.Abs(p.Confidence-0.5) > 1e-9 {
		t.Fatalf("expected confidence 0.5, got %f", p.Confidence)
	}
	sum := 0.0
	for _, prob := range p.Probabilities {
		sum += prob
	}
	if math.Abs(sum-1) > 1e-9 {
		t.Fatalf("probabilities should sum to 1, got %f", sum)
	}
}

func TestPredictMissingFields(t *testing.T) {
	s := newService(t, Options{})

	payload := decode(t, deploymenttest.ReferencePayload)
	delete(payload, "age")
	delete(payload, "thal")
	payload["extra"] = "ignored"

	_, err := s.Predict(context.Background(), payload)
	var missing *MissingFieldsError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingFieldsError, got %v", err)
	}
	if !reflect.DeepEqual(missing.Fields, []string{"age", "thal"}) {
		t.Fatalf("unexpected missing fields %v", missing.Fields)
	}
	if !IsClientError(err) {
		t.Fatal("missing fields should be a client error")
	}
}

func TestPredictNoData(t *testing.T) {
	s := newService(t, Options{})
	_, err := s.Predict(context.Background(), nil)
	if !errors.Is(err, ErrNoData) {
		t.Fatalf("expected ErrNoData, got %v", err)
	}
}

func TestPredictUnmappedBooleanFailsInference(t *testing.T) {
	s := newService(t, Options{BooleanFields: []string{"fbs"}})

	payload := decode(t, deploymenttest.ReferencePayload)
	payload["fbs"] = "maybe"

	_, err := s.Predict(context.Background(), payload)
	var inference *InferenceError
	if !errors.As(err, &inference) {
		t.Fatalf("expected InferenceError, got %v", err)
	}
	if IsClientError(err) {
		t.Fatal("inference failures are not client errors")
	}
}

func TestPredictCache(t *testing.T) {
	s := newService(t, Options{BooleanFields: []string{"fbs"}, CacheSize: 4})
	payload := decode(t, deploymenttest.ReferencePayload)

	first, err := s.Predict(context.Background(), payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.Cached {
		t.Fatal("first prediction should not be cached")
	}

	// "False" and false normalize to the same row
	payload["fbs"] = false
	second, err := s.Predict(context.Background(), payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !second.Cached || second.Label != first.Label {
		t.Fatalf("expected cached prediction, got %+v", second)
	}
}

func TestPredictCancelledContext(t *testing.T) {
	s := newService(t, Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.Predict(ctx, decode(t, deploymenttest.ReferencePayload)); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestNormalizeBoolean(t *testing.T) {
	tests := []struct {
		in   interface{}
		want interface{}
	}{
		{"True", true},
		{"true", true},
		{"1", true},
		{true, true},
		{json.Number("1"), true},
		{"False", false},
		{"false", false},
		{"0", false},
		{false, false},
		{json.Number("0"), false},
		{"yes", nil},
		{"TRUE", nil},
		{json.Number("2"), nil},
		{nil, nil},
	}
	for _, tt := range tests {
		if got := NormalizeBoolean(tt.in); got != tt.want {
			t.Errorf("NormalizeBoolean(%#v) = %#v, want %#v", tt.in, got, tt.want)
		}
	}
}
