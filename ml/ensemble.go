package ml

import (
	"errors"
	"fmt"
	"math"
)

// RandomForest averages the leaf distributions of its trees.
type RandomForest struct {
	Trees    []DecisionTree `json:"trees"`
	Classes  int            `json:"n_classes"`
	Features int            `json:"n_features"`
}

func (rf *RandomForest) NumClasses() int { return rf.Classes }

func (rf *RandomForest) NumInputs() int { return rf.Features }

func (rf *RandomForest) PredictProba(features []float64) ([]float64, error) {
	if len(rf.Trees) == 0 {
		return nil, errors.New("forest has no trees")
	}
	sum := make([]float64, rf.Classes)
	for i := range rf.Trees {
		probs, err := rf.Trees[i].PredictProba(features)
		if err != nil {
			return nil, fmt.Errorf("tree %d: %w", i, err)
		}
		for c, p := range probs {
			sum[c] += p
		}
	}
	for c := range sum {
		sum[c] /= float64(len(rf.Trees))
	}
	return sum, nil
}

func (rf *RandomForest) validate() error {
	if len(rf.Trees) == 0 {
		return errors.New("forest has no trees")
	}
	for i := range rf.Trees {
		tree := &rf.Trees[i]
		if tree.Classes == 0 {
			tree.Classes = rf.Classes
		}
		if tree.Features == 0 {
			tree.Features = rf.Features
		}
		if tree.Classes != rf.Classes {
			return fmt.Errorf("tree %d has %d classes, forest has %d", i, tree.Classes, rf.Classes)
		}
		if err := tree.validate(); err != nil {
			return fmt.Errorf("tree %d: %w", i, err)
		}
	}
	return nil
}

// LogisticRegression is a multinomial (softmax) linear model. A single
// coefficient row is read as a binary model scored with the sigmoid.
type LogisticRegression struct {
	Coef      [][]float64 `json:"coef"`
	Intercept []float64   `json:"intercept"`
}

func (lr *LogisticRegression) NumClasses() int {
	if len(lr.Coef) == 1 {
		return 2
	}
	return len(lr.Coef)
}

func (lr *LogisticRegression) NumInputs() int {
	if len(lr.Coef) == 0 {
		return 0
	}
	return len(lr.Coef[0])
}

func (lr *LogisticRegression) PredictProba(features []float64) ([]float64, error) {
	if len(features) != lr.NumInputs() {
		return nil, fmt.Errorf("expected %d inputs, got %d", lr.NumInputs(), len(features))
	}
	scores := make([]float64, len(lr.Coef))
	for c, row := range lr.Coef {
		z := lr.Intercept[c]
		for i, w := range row {
			z += w * features[i]
		}
		scores[c] = z
	}
	if len(scores) == 1 {
		p := 1 / (1 + math.Exp(-scores[0]))
		return []float64{1 - p, p}, nil
	}
	return softmax(scores), nil
}

func (lr *LogisticRegression) validate() error {
	if len(lr.Coef) == 0 {
		return errors.New("logistic regression has no coefficients")
	}
	if len(lr.Intercept) != len(lr.Coef) {
		return fmt.Errorf("intercept has %d entries, coef has %d rows", len(lr.Intercept), len(lr.Coef))
	}
	width := len(lr.Coef[0])
	for i, row := range lr.Coef {
		if len(row) != width {
			return fmt.Errorf("coef row %d has %d entries, want %d", i, len(row), width)
		}
	}
	return nil
}

func softmax(scores []float64) []float64 {
	max := scores[0]
	for _, s := range scores[1:] {
		if s > max {
			max = s
		}
	}
	sum := 0.0
	out := make([]float64, len(scores))
	for i, s := range scores {
		out[i] = math.Exp(s - max)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}
