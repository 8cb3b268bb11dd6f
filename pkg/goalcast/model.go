package goalcast

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/richard-senior/goalcast/internal/logger"
)

// treeNode is one node of a regression tree in the dumped ensemble. Leaf
// nodes carry a value; split nodes carry a feature index, a threshold and
// child indices into the tree's node array
type treeNode struct {
	Feature   int     `json:"feature"`
	Threshold float64 `json:"threshold"`
	Left      int     `json:"left"`
	Right     int     `json:"right"`
	Value     float64 `json:"value"`
	Leaf      bool    `json:"leaf"`
}

// boostedTree is one tree of the ensemble, contributing its leaf value to
// the margin of a single class
type boostedTree struct {
	Class int        `json:"class"`
	Nodes []treeNode `json:"nodes"`
}

// classifierDump is the on-disk JSON shape of a trained model, exported by
// the offline training job. Training itself is a black box here
type classifierDump struct {
	Features   []string      `json:"features"`
	NumClasses int           `json:"num_classes"`
	BaseScore  float64       `json:"base_score"`
	Trees      []boostedTree `json:"trees"`
}

// Classifier is a loaded gradient-boosted tree ensemble mapping feature
// vectors to outcome classes 0 (home win), 1 (draw) and 2 (away win)
type Classifier struct {
	featureNames []string
	numClasses   int
	baseScore    float64
	trees        []boostedTree
}

// outcomeLabels maps model classes to user-facing outcome names
var outcomeLabels = []string{"Home Win", "Draw", "Away Win"}

// OutcomeLabel returns the user-facing name of a predicted class
func OutcomeLabel(class int) string {
	if class < 0 || class >= len(outcomeLabels) {
		return "Unknown"
	}
	return outcomeLabels[class]
}

// LoadClassifier reads a model dump and validates its feature contract
// against the shared schema. A dump trained on different features is a
// hard error, not a warning
func LoadClassifier(path string) (*Classifier, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model %s: %w", path, err)
	}

	var dump classifierDump
	if err := json.Unmarshal(data, &dump); err != nil {
		return nil, fmt.Errorf("failed to parse model %s: %w", path, err)
	}

	if len(dump.Features) != FeatureCount {
		return nil, fmt.Errorf("model %s trained on %d features, schema requires %d",
			path, len(dump.Features), FeatureCount)
	}
	for i, name := range dump.Features {
		if name != FeatureNames[i] {
			return nil, fmt.Errorf("model %s feature %d is %q, schema requires %q",
				path, i, name, FeatureNames[i])
		}
	}
	if dump.NumClasses != len(outcomeLabels) {
		return nil, fmt.Errorf("model %s predicts %d classes, expected %d",
			path, dump.NumClasses, len(outcomeLabels))
	}
	if len(dump.Trees) == 0 {
		return nil, fmt.Errorf("model %s contains no trees", path)
	}
	for ti, tree := range dump.Trees {
		if tree.Class < 0 || tree.Class >= dump.NumClasses {
			return nil, fmt.Errorf("model %s tree %d targets class %d of %d",
				path, ti, tree.Class, dump.NumClasses)
		}
		if len(tree.Nodes) == 0 {
			return nil, fmt.Errorf("model %s tree %d is empty", path, ti)
		}
	}

	logger.Info("Loaded model", filepath.Base(path), "with", len(dump.Trees), "trees")
	return &Classifier{
		featureNames: dump.Features,
		numClasses:   dump.NumClasses,
		baseScore:    dump.BaseScore,
		trees:        dump.Trees,
	}, nil
}

// FindModelFile locates the first JSON model dump in the configured models
// directory. No model present is a configuration error
func FindModelFile() (string, error) {
	matches, err := filepath.Glob(filepath.Join(Config.ModelsPath, "*.json"))
	if err != nil {
		return "", fmt.Errorf("failed to list models dir: %w", err)
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("no model file (.json) found in %s", Config.ModelsPath)
	}
	sort.Strings(matches)
	return matches[0], nil
}

// evaluate walks one tree for a feature vector and returns its leaf value
func (t *boostedTree) evaluate(features []float64) float64 {
	i := 0
	for {
		node := t.Nodes[i]
		if node.Leaf {
			return node.Value
		}
		if features[node.Feature] < node.Threshold {
			i = node.Left
		} else {
			i = node.Right
		}
	}
}

// Predict returns the outcome class for a feature vector: per-class margin
// sums across the ensemble, highest margin wins. A vector of the wrong
// dimensionality is rejected, never truncated or padded
func (c *Classifier) Predict(features []float64) (int, error) {
	if len(features) != FeatureCount {
		return 0, fmt.Errorf("got %d features, model requires %d", len(features), FeatureCount)
	}

	margins := make([]float64, c.numClasses)
	for i := range margins {
		margins[i] = c.baseScore
	}
	for i := range c.trees {
		margins[c.trees[i].Class] += c.trees[i].evaluate(features)
	}

	best := 0
	for class := 1; class < len(margins); class++ {
		if margins[class] > margins[best] {
			best = class
		}
	}
	return best, nil
}
