package ml

import (
	"errors"
	"fmt"
)

type DecisionTree struct {
	Nodes    []TreeNode `json:"nodes"`
	Classes  int        `json:"n_classes"`
	Features int        `json:"n_features"`
}

// TreeNode is one entry of the flattened tree. Value holds per-class sample
// weights and is required on leaves.
type TreeNode struct {
	FeatureIdx int       `json:"feature_idx"`
	Threshold  float64   `json:"threshold"`
	LeftChild  int       `json:"left_child"`
	RightChild int       `json:"right_child"`
	IsLeaf     bool      `json:"is_leaf"`
	Value      []float64 `json:"value,omitempty"`
}

func (dt *DecisionTree) NumClasses() int { return dt.Classes }

func (dt *DecisionTree) NumInputs() int { return dt.Features }

func (dt *DecisionTree) PredictProba(features []float64) ([]float64, error) {
	if len(dt.Nodes) == 0 {
		return nil, errors.New("model not trained")
	}
	idx := 0
	// a well formed tree never visits more nodes than it has
	for steps := 0; steps <= len(dt.Nodes); steps++ {
		node := dt.Nodes[idx]
		if node.IsLeaf {
			return normalize(node.Value, dt.Classes)
		}
		if node.FeatureIdx < 0 || node.FeatureIdx >= len(features) {
			return nil, errors.New("feature index out of range")
		}
		if features[node.FeatureIdx] <= node.Threshold {
			idx = node.LeftChild
		} else {
			idx = node.RightChild
		}
		if idx < 0 || idx >= len(dt.Nodes) {
			return nil, errors.New("invalid tree state")
		}
	}
	return nil, errors.New("invalid tree state: cycle detected")
}

func (dt *DecisionTree) validate() error {
	if len(dt.Nodes) == 0 {
		return errors.New("tree has no nodes")
	}
	if dt.Classes < 2 {
		return fmt.Errorf("tree must have at least 2 classes, got %d", dt.Classes)
	}
	for i, node := range dt.Nodes {
		if node.IsLeaf {
			if len(node.Value) != dt.Classes {
				return fmt.Errorf("leaf %d has %d class weights, want %d", i, len(node.Value), dt.Classes)
			}
			continue
		}
		if node.FeatureIdx < 0 || (dt.Features > 0 && node.FeatureIdx >= dt.Features) {
			return fmt.Errorf("node %d: feature index %d out of range", i, node.FeatureIdx)
		}
		if node.LeftChild <= 0 || node.LeftChild >= len(dt.Nodes) || node.RightChild <= 0 || node.RightChild >= len(dt.Nodes) {
			return fmt.Errorf("node %d: child index out of range", i)
		}
	}
	return nil
}

func normalize(weights []float64, classes int) ([]float64, error) {
	if len(weights) != classes {
		return nil, fmt.Errorf("expected %d class weights, got %d", classes, len(weights))
	}
	total := 0.0
	for _, w := range weights {
		if w < 0 {
			return nil, errors.New("negative class weight")
		}
		total += w
	}
	if total == 0 {
		return nil, errors.New("leaf has no samples")
	}
	probs := make([]float64, len(weights))
	for i, w := range weights {
		probs[i] = w / total
	}
	return probs, nil
}
