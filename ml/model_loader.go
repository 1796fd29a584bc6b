package ml

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
)

// ModelFormat identifies serialized pipeline artifacts.
const ModelFormat = "heartrisk-model"

// Pipeline chains a preprocessor and an estimator. It is safe for concurrent
// use once loaded.
type Pipeline struct {
	Type         string
	preprocessor *Preprocessor
	estimator    Estimator
}

type artifact struct {
	Format       string          `json:"format"`
	Version      int             `json:"version"`
	Preprocessor *Preprocessor   `json:"preprocessor"`
	Estimator    json.RawMessage `json:"estimator"`
}

type estimatorHeader struct {
	Type string `json:"type"`
}

func LoadModel(path string) (*Pipeline, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	model, err := ParseModel(payload)
	if err != nil {
		return nil, fmt.Errorf("parse model %s: %w", path, err)
	}
	return model, nil
}

func ParseModel(payload []byte) (*Pipeline, error) {
	var a artifact
	if err := json.Unmarshal(payload, &a); err != nil {
		return nil, err
	}
	if a.Format != ModelFormat {
		return nil, fmt.Errorf("unsupported model format %q", a.Format)
	}
	if a.Version != 1 {
		return nil, fmt.Errorf("unsupported model version %d", a.Version)
	}
	if a.Preprocessor == nil {
		return nil, errors.New("model has no preprocessor")
	}
	if err := a.Preprocessor.prepare(); err != nil {
		return nil, err
	}
	if len(a.Estimator) == 0 {
		return nil, errors.New("model has no estimator")
	}

	var header estimatorHeader
	if err := json.Unmarshal(a.Estimator, &header); err != nil {
		return nil, err
	}

	var estimator Estimator
	switch header.Type {
	case "decision_tree":
		model := &DecisionTree{}
		if err := json.Unmarshal(a.Estimator, model); err != nil {
			return nil, err
		}
		if err := model.validate(); err != nil {
			return nil, err
		}
		estimator = model
	case "random_forest":
		model := &RandomForest{}
		if err := json.Unmarshal(a.Estimator, model); err != nil {
			return nil, err
		}
		if err := model.validate(); err != nil {
			return nil, err
		}
		estimator = model
	case "logistic_regression":
		model := &LogisticRegression{}
		if err := json.Unmarshal(a.Estimator, model); err != nil {
			return nil, err
		}
		if err := model.validate(); err != nil {
			return nil, err
		}
		estimator = model
	default:
		return nil, fmt.Errorf("unsupported model type %q", header.Type)
	}

	if inputs := estimator.NumInputs(); inputs != 0 && inputs != a.Preprocessor.Width() {
		return nil, fmt.Errorf("estimator expects %d inputs, preprocessor produces %d", inputs, a.Preprocessor.Width())
	}

	return &Pipeline{
		Type:         header.Type,
		preprocessor: a.Preprocessor,
		estimator:    estimator,
	}, nil
}

func (p *Pipeline) NumClasses() int { return p.estimator.NumClasses() }

// InputFeatures lists the raw columns the model consumes, in its order.
func (p *Pipeline) InputFeatures() []string { return p.preprocessor.Names() }

func (p *Pipeline) PredictProba(row []interface{}) ([]float64, error) {
	x, err := p.preprocessor.Transform(row)
	if err != nil {
		return nil, err
	}
	probs, err := p.estimator.PredictProba(x)
	if err != nil {
		return nil, err
	}
	for i, prob := range probs {
		if math.IsNaN(prob) || math.IsInf(prob, 0) {
			return nil, fmt.Errorf("non-finite probability for class %d", i)
		}
	}
	return probs, nil
}

func (p *Pipeline) Predict(row []interface{}) (int, error) {
	probs, err := p.PredictProba(row)
	if err != nil {
		return 0, err
	}
	return Argmax(probs), nil
}
