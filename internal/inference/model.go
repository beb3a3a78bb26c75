// Package inference provides the symptom classifier collaborators: a local linear
// model loaded from a JSON export, a remote HTTP inference client, and a two-tier
// prediction cache that wraps either.
package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/zoonotic-report-server/internal/domain"
)

const modelSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["features", "labels", "weights", "bias"],
  "properties": {
    "name": {"type": "string"},
    "version": {"type": "string"},
    "features": {"type": "array", "minItems": 1, "items": {"type": "string", "minLength": 1}},
    "labels": {"type": "array", "minItems": 2, "items": {"type": "string", "minLength": 1}},
    "weights": {"type": "array", "items": {"type": "array", "items": {"type": "number"}}},
    "bias": {"type": "array", "items": {"type": "number"}}
  }
}`

var compiledModelSchema = func() *jsonschema.Schema {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("model.schema.json", strings.NewReader(modelSchema)); err != nil {
		panic(fmt.Sprintf("adding model schema: %v", err))
	}
	return compiler.MustCompile("model.schema.json")
}()

// ModelFile is the JSON export of a trained multinomial logistic model. Weights has
// one row per label and one column per feature.
type ModelFile struct {
	Name     string      `json:"name,omitempty"`
	Version  string      `json:"version,omitempty"`
	Features []string    `json:"features"`
	Labels   []string    `json:"labels"`
	Weights  [][]float64 `json:"weights"`
	Bias     []float64   `json:"bias"`
}

// ModelClassifier scores feature vectors with a softmax over per-label linear
// scores. It is immutable after load and safe for concurrent use.
type ModelClassifier struct {
	model ModelFile
}

// LoadModel reads and validates a model export. The export's feature order must
// equal features exactly.
func LoadModel(path string, features []string) (*ModelClassifier, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading model %s: %w", path, err)
	}
	return ParseModel(data, features)
}

// ParseModel validates raw model JSON against the schema and the expected feature
// layout.
func ParseModel(data []byte, features []string) (*ModelClassifier, error) {
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decoding model: %w", err)
	}
	if err := compiledModelSchema.Validate(doc); err != nil {
		return nil, fmt.Errorf("model does not match schema: %w", err)
	}

	var m ModelFile
	if err := json.NewDecoder(bytes.NewReader(data)).Decode(&m); err != nil {
		return nil, fmt.Errorf("decoding model: %w", err)
	}

	if len(m.Weights) != len(m.Labels) || len(m.Bias) != len(m.Labels) {
		return nil, fmt.Errorf("model has %d labels but %d weight rows and %d biases",
			len(m.Labels), len(m.Weights), len(m.Bias))
	}
	for i, row := range m.Weights {
		if len(row) != len(m.Features) {
			return nil, fmt.Errorf("weight row %d (%s) has %d columns, want %d",
				i, m.Labels[i], len(row), len(m.Features))
		}
	}
	if features != nil {
		if len(features) != len(m.Features) {
			return nil, fmt.Errorf("model expects %d features, service provides %d", len(m.Features), len(features))
		}
		for i := range features {
			if features[i] != m.Features[i] {
				return nil, fmt.Errorf("feature %d: model has %q, service has %q", i, m.Features[i], features[i])
			}
		}
	}

	return &ModelClassifier{model: m}, nil
}

// Classify implements domain.Classifier.
func (c *ModelClassifier) Classify(_ context.Context, features []bool) (*domain.Classification, error) {
	if len(features) != len(c.model.Features) {
		return nil, fmt.Errorf("%w: feature vector has %d entries, model expects %d",
			domain.ErrInvalidInput, len(features), len(c.model.Features))
	}

	scores := make([]float64, len(c.model.Labels))
	maxScore := math.Inf(-1)
	for l := range c.model.Labels {
		s := c.model.Bias[l]
		for i, set := range features {
			if set {
				s += c.model.Weights[l][i]
			}
		}
		scores[l] = s
		if s > maxScore {
			maxScore = s
		}
	}

	var sum float64
	for l := range scores {
		scores[l] = math.Exp(scores[l] - maxScore)
		sum += scores[l]
	}

	out := &domain.Classification{Probabilities: make(map[string]float64, len(scores))}
	best := -1.0
	for l, label := range c.model.Labels {
		p := scores[l] / sum
		out.Probabilities[label] = p
		if p > best {
			best = p
			out.Label = label
		}
	}
	return out, nil
}

// Labels implements domain.Classifier.
func (c *ModelClassifier) Labels() []string {
	return append([]string(nil), c.model.Labels...)
}

// Name returns the model name and version for health reporting.
func (c *ModelClassifier) Name() string {
	if c.model.Version == "" {
		return c.model.Name
	}
	return c.model.Name + "@" + c.model.Version
}
