package ml

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Feature kinds understood by the preprocessor.
const (
	KindNumeric     = "numeric"
	KindCategorical = "categorical"
	KindBoolean     = "boolean"
)

// ErrMissingValue is returned when a null reaches a feature without imputation.
var ErrMissingValue = errors.New("missing value")

// FeatureSpec describes how one raw input column is encoded.
type FeatureSpec struct {
	Name          string      `json:"name"`
	Kind          string      `json:"kind"`
	Categories    []string    `json:"categories,omitempty"`
	HandleUnknown string      `json:"handle_unknown,omitempty"`
	Mean          float64     `json:"mean,omitempty"`
	Scale         float64     `json:"scale,omitempty"`
	Impute        interface{} `json:"impute,omitempty"`
}

// Preprocessor turns a raw row into the estimator's numeric vector.
type Preprocessor struct {
	Features []FeatureSpec `json:"features"`

	categoryIndex []map[string]int
	width         int
}

func (p *Preprocessor) prepare() error {
	if len(p.Features) == 0 {
		return errors.New("preprocessor has no features")
	}
	seen := make(map[string]bool, len(p.Features))
	p.categoryIndex = make([]map[string]int, len(p.Features))
	p.width = 0
	for i, spec := range p.Features {
		if spec.Name == "" {
			return fmt.Errorf("feature %d has no name", i)
		}
		if seen[spec.Name] {
			return fmt.Errorf("duplicate feature %q", spec.Name)
		}
		seen[spec.Name] = true

		switch spec.Kind {
		case KindNumeric, KindBoolean:
			p.width++
		case KindCategorical:
			if len(spec.Categories) == 0 {
				return fmt.Errorf("categorical feature %q has no categories", spec.Name)
			}
			switch spec.HandleUnknown {
			case "", "error", "ignore":
			default:
				return fmt.Errorf("feature %q: unsupported handle_unknown %q", spec.Name, spec.HandleUnknown)
			}
			index := make(map[string]int, len(spec.Categories))
			for j, category := range spec.Categories {
				index[category] = j
			}
			p.categoryIndex[i] = index
			p.width += len(spec.Categories)
		default:
			return fmt.Errorf("feature %q: unsupported kind %q", spec.Name, spec.Kind)
		}
	}
	return nil
}

// Width is the length of encoded vectors.
func (p *Preprocessor) Width() int {
	return p.width
}

// Names returns the raw input columns in order.
func (p *Preprocessor) Names() []string {
	names := make([]string, len(p.Features))
	for i, spec := range p.Features {
		names[i] = spec.Name
	}
	return names
}

// Transform encodes one row. The row must be aligned with Features.
func (p *Preprocessor) Transform(row []interface{}) ([]float64, error) {
	if len(row) != len(p.Features) {
		return nil, fmt.Errorf("expected %d values, got %d", len(p.Features), len(row))
	}
	out := make([]float64, 0, p.width)
	for i, spec := range p.Features {
		value := row[i]
		if value == nil {
			value = spec.Impute
		}
		if value == nil {
			return nil, fmt.Errorf("feature %q: %w", spec.Name, ErrMissingValue)
		}

		switch spec.Kind {
		case KindNumeric:
			v, err := toFloat(value)
			if err != nil {
				return nil, fmt.Errorf("feature %q: %w", spec.Name, err)
			}
			if spec.Scale != 0 {
				v = (v - spec.Mean) / spec.Scale
			}
			out = append(out, v)
		case KindBoolean:
			b, err := toBool(value)
			if err != nil {
				return nil, fmt.Errorf("feature %q: %w", spec.Name, err)
			}
			if b {
				out = append(out, 1)
			} else {
				out = append(out, 0)
			}
		case KindCategorical:
			key := categoryKey(value)
			onehot := make([]float64, len(spec.Categories))
			idx, ok := p.categoryIndex[i][key]
			if ok {
				onehot[idx] = 1
			} else if spec.HandleUnknown != "ignore" {
				return nil, fmt.Errorf("feature %q: unknown category %q", spec.Name, key)
			}
			out = append(out, onehot...)
		}
	}
	return out, nil
}

func toFloat(value interface{}) (float64, error) {
	f, err := parseFloat(value)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) {
		return 0, ErrMissingValue
	}
	if math.IsInf(f, 0) {
		return 0, fmt.Errorf("input contains infinity: %v", value)
	}
	return f, nil
}

func parseFloat(value interface{}) (float64, error) {
	switch v := value.(type) {
	case json.Number:
		f, err := strconv.ParseFloat(v.String(), 64)
		if err != nil {
			return 0, fmt.Errorf("could not convert number to float: %q", v.String())
		}
		return f, nil
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, fmt.Errorf("could not convert string to float: %q", v)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("unsupported numeric value of type %T", value)
	}
}

func toBool(value interface{}) (bool, error) {
	switch v := value.(type) {
	case bool:
		return v, nil
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return false, fmt.Errorf("invalid boolean %q", v)
		}
		return b, nil
	default:
		f, err := toFloat(value)
		if err != nil {
			return false, err
		}
		switch f {
		case 0:
			return false, nil
		case 1:
			return true, nil
		}
		return false, fmt.Errorf("invalid boolean %v", value)
	}
}

// categoryKey renders a raw value the way categories are written in the
// artifact: strings as-is, numbers in their shortest form, booleans as
// True/False.
func categoryKey(value interface{}) string {
	switch v := value.(type) {
	case string:
		return v
	case bool:
		if v {
			return "True"
		}
		return "False"
	case json.Number:
		if f, err := v.Float64(); err == nil {
			return strconv.FormatFloat(f, 'f', -1, 64)
		}
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}
