package model

import (
	"errors"
	"fmt"
)

// ForestKind distinguishes classification from regression ensembles.
type ForestKind string

const (
	Classifier ForestKind = "classifier"
	Regressor  ForestKind = "regressor"
)

// leaf marks a node without children.
const leaf = -1

// Node is one node of a fitted decision tree. Samples go left when
// x[Feature] <= Threshold.
type Node struct {
	Feature   int       `json:"feature" yaml:"feature"`
	Threshold float64   `json:"threshold" yaml:"threshold"`
	Left      int       `json:"left" yaml:"left"`
	Right     int       `json:"right" yaml:"right"`
	Value     []float64 `json:"value" yaml:"value"`
}

func (n Node) isLeaf() bool {
	return n.Left == leaf
}

// Tree is a fitted decision tree stored as a flat node array rooted at 0.
type Tree struct {
	Nodes []Node `json:"nodes" yaml:"nodes"`
}

// Forest is a random-forest ensemble.
type Forest struct {
	Kind        ForestKind `json:"kind" yaml:"kind"`
	NFeaturesIn int        `json:"n_features_in" yaml:"n_features_in"`
	Classes     []float64  `json:"classes,omitempty" yaml:"classes,omitempty"`
	Trees       []Tree     `json:"trees" yaml:"trees"`
}

// Validate checks the ensemble structure so that prediction cannot index out
// of range or loop.
func (f *Forest) Validate() error {
	if f.Kind == "" {
		f.Kind = Classifier
	}
	if f.Kind != Classifier && f.Kind != Regressor {
		return fmt.Errorf("unknown forest kind %q", f.Kind)
	}
	if f.NFeaturesIn <= 0 {
		return errors.New("forest has no n_features_in")
	}
	if len(f.Trees) == 0 {
		return errors.New("forest has no trees")
	}

	width := 1
	if f.Kind == Classifier {
		if len(f.Classes) < 2 {
			return fmt.Errorf("classifier needs at least 2 classes, has %d", len(f.Classes))
		}
		width = len(f.Classes)
	}

	for t, tree := range f.Trees {
		if len(tree.Nodes) == 0 {
			return fmt.Errorf("tree %d is empty", t)
		}
		for i, node := range tree.Nodes {
			if node.isLeaf() {
				if len(node.Value) != width {
					return fmt.Errorf("tree %d leaf %d has %d values, want %d", t, i, len(node.Value), width)
				}
				continue
			}
			// children always follow their parent, which rules out cycles
			if node.Left <= i || node.Left >= len(tree.Nodes) || node.Right <= i || node.Right >= len(tree.Nodes) {
				return fmt.Errorf("tree %d node %d has invalid children %d/%d", t, i, node.Left, node.Right)
			}
			if node.Feature < 0 || node.Feature >= f.NFeaturesIn {
				return fmt.Errorf("tree %d node %d splits on feature %d of %d", t, i, node.Feature, f.NFeaturesIn)
			}
		}
	}
	return nil
}

// ClassLabels returns the labels the classifier was trained on.
func (f *Forest) ClassLabels() []float64 {
	return f.Classes
}

// Width is the number of features the forest expects.
func (f *Forest) Width() int {
	return f.NFeaturesIn
}

func (f *Forest) checkWidth(x []float64) error {
	if len(x) != f.NFeaturesIn {
		return fmt.Errorf("%w: model expects %d features, got %d", ErrDimension, f.NFeaturesIn, len(x))
	}
	return nil
}

func (t Tree) apply(x []float64) Node {
	node := t.Nodes[0]
	for !node.isLeaf() {
		if x[node.Feature] <= node.Threshold {
			node = t.Nodes[node.Left]
		} else {
			node = t.Nodes[node.Right]
		}
	}
	return node
}

// PredictProba returns the mean class distribution over all trees, ordered
// like Classes.
func (f *Forest) PredictProba(x []float64) ([]float64, error) {
	if f.Kind != Classifier {
		return nil, fmt.Errorf("predict_proba is not available for a %s", f.Kind)
	}
	if err := f.checkWidth(x); err != nil {
		return nil, err
	}

	proba := make([]float64, len(f.Classes))
	for _, tree := range f.Trees {
		value := tree.apply(x).Value
		var total float64
		for _, v := range value {
			total += v
		}
		for i, v := range value {
			if total > 0 {
				proba[i] += v / total
			} else {
				proba[i] += 1 / float64(len(value))
			}
		}
	}

	n := float64(len(f.Trees))
	for i := range proba {
		proba[i] /= n
	}
	return proba, nil
}

// Predict returns the point prediction: the most probable class label for a
// classifier, the mean leaf value for a regressor.
func (f *Forest) Predict(x []float64) (float64, error) {
	if f.Kind == Regressor {
		if err := f.checkWidth(x); err != nil {
			return 0, err
		}
		var sum float64
		for _, tree := range f.Trees {
			sum += tree.apply(x).Value[0]
		}
		return sum / float64(len(f.Trees)), nil
	}

	proba, err := f.PredictProba(x)
	if err != nil {
		return 0, err
	}
	best := 0
	for i, p := range proba {
		if p > proba[best] {
			best = i
		}
	}
	return f.Classes[best], nil
}
