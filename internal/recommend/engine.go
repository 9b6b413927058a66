package recommend

import (
	"errors"
	"fmt"
	"sort"

	"github.com/spboyer/cropwise/internal/features"
	"github.com/spboyer/cropwise/internal/fertilizer"
)

// Classifier is the inference side of a trained crop model.
type Classifier interface {
	Classes() []string
	PredictProba(v features.Vector) (map[string]float64, error)
}

// CropScore is one class's probability and its position in the ranking.
type CropScore struct {
	Crop        string  `json:"crop"`
	Probability float64 `json:"probability"`
	Rank        int     `json:"rank"`
}

// Recommendation is everything the presentation layer renders for one
// reading.
type Recommendation struct {
	Input      features.Vector   `json:"input"`
	Crop       string            `json:"crop"`
	Confidence float64           `json:"confidence"`
	Ranked     []CropScore       `json:"ranked"`
	Fertilizer fertilizer.Advice `json:"fertilizer"`
	Targets    fertilizer.Source `json:"targets"`
}

// Top returns at most n ranked scores; n <= 0 returns all of them.
func (r *Recommendation) Top(n int) []CropScore {
	if n <= 0 || n >= len(r.Ranked) {
		return r.Ranked
	}
	return r.Ranked[:n]
}

// Engine chains the classifier and the fertilizer advisor.
type Engine struct {
	classifier Classifier
	advisor    *fertilizer.Advisor
}

// NewEngine creates an engine. Both dependencies are used read-only, so an
// Engine is safe for concurrent use.
func NewEngine(classifier Classifier, advisor *fertilizer.Advisor) *Engine {
	return &Engine{classifier: classifier, advisor: advisor}
}

// Recommend classifies v, ranks every crop by probability and advises on
// N, P and K for the winning crop.
func (e *Engine) Recommend(v features.Vector) (*Recommendation, error) {
	if e.classifier == nil || e.advisor == nil {
		return nil, errors.New("recommend: engine is not initialized")
	}
	proba, err := e.classifier.PredictProba(v)
	if err != nil {
		return nil, fmt.Errorf("recommend: %w", err)
	}
	ranked, err := rank(e.classifier.Classes(), proba)
	if err != nil {
		return nil, err
	}

	best := ranked[0]
	return &Recommendation{
		Input:      v,
		Crop:       best.Crop,
		Confidence: best.Probability,
		Ranked:     ranked,
		Fertilizer: e.advisor.Advise(best.Crop, v.N, v.P, v.K),
		Targets:    e.advisor.Source(),
	}, nil
}

// rank orders classes by descending probability. The sort is stable over the
// classifier's class order, so ties resolve the same way Predict does.
func rank(classes []string, proba map[string]float64) ([]CropScore, error) {
	if len(classes) == 0 {
		return nil, errors.New("recommend: classifier has no classes")
	}
	scores := make([]CropScore, len(classes))
	for i, c := range classes {
		p, ok := proba[c]
		if !ok {
			return nil, fmt.Errorf("recommend: no probability for class %q", c)
		}
		scores[i] = CropScore{Crop: c, Probability: p}
	}

	sort.SliceStable(scores, func(a, b int) bool {
		return scores[a].Probability > scores[b].Probability
	})
	for i := range scores {
		scores[i].Rank = i + 1
	}
	return scores, nil
}
