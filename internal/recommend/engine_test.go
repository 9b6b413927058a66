package recommend

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spboyer/cropwise/internal/features"
	"github.com/spboyer/cropwise/internal/fertilizer"
)

type fixedClassifier struct {
	classes []string
	proba   map[string]float64
	err     error
}

func (f fixedClassifier) Classes() []string { return f.classes }

func (f fixedClassifier) PredictProba(features.Vector) (map[string]float64, error) {
	return f.proba, f.err
}

func editorialAdvisor() *fertilizer.Advisor {
	return fertilizer.NewAdvisor(fertilizer.EditorialTable(), fertilizer.SourceEditorial)
}

func TestRecommend_RanksAndAdvises(t *testing.T) {
	clf := fixedClassifier{
		classes: []string{"maize", "rice", "wheat"},
		proba:   map[string]float64{"maize": 0.2, "rice": 0.7, "wheat": 0.1},
	}
	engine := NewEngine(clf, editorialAdvisor())

	v := features.Vector{N: 50, P: 10, K: 10, Temperature: 25, Humidity: 80, PH: 6.5, Rainfall: 200}
	rec, err := engine.Recommend(v)
	require.NoError(t, err)

	assert.Equal(t, "rice", rec.Crop)
	assert.InDelta(t, 0.7, rec.Confidence, 1e-12)
	assert.Equal(t, []CropScore{
		{Crop: "rice", Probability: 0.7, Rank: 1},
		{Crop: "maize", Probability: 0.2, Rank: 2},
		{Crop: "wheat", Probability: 0.1, Rank: 3},
	}, rec.Ranked)
	assert.Equal(t, fertilizer.SourceEditorial, rec.Targets)
	assert.Equal(t, v, rec.Input)
	assert.Equal(t, []string{
		"Add 40 units of Nitrogen (N)",
		"Add 30 units of Phosphorus (P)",
		"Add 30 units of Potassium (K)",
	}, rec.Fertilizer.Recommendations())
}

func TestRecommend_TiesFollowClassOrder(t *testing.T) {
	clf := fixedClassifier{
		classes: []string{"apple", "banana", "cherry"},
		proba:   map[string]float64{"apple": 0.25, "banana": 0.375, "cherry": 0.375},
	}
	rec, err := NewEngine(clf, editorialAdvisor()).Recommend(features.Vector{})
	require.NoError(t, err)

	assert.Equal(t, "banana", rec.Crop)
	assert.Equal(t, "cherry", rec.Ranked[1].Crop)
	assert.Equal(t, "apple", rec.Ranked[2].Crop)
}

func TestRecommend_UnknownCropIsNotAnError(t *testing.T) {
	clf := fixedClassifier{
		classes: []string{"durian"},
		proba:   map[string]float64{"durian": 1},
	}
	rec, err := NewEngine(clf, editorialAdvisor()).Recommend(features.Vector{N: 1, P: 1, K: 1})
	require.NoError(t, err)

	assert.Equal(t, fertilizer.StatusUnknownCrop, rec.Fertilizer.Status)
	assert.Equal(t, []string{fertilizer.UnknownCropMessage}, rec.Fertilizer.Lines())
}

func TestRecommend_Errors(t *testing.T) {
	boom := errors.New("boom")
	tests := []struct {
		name string
		clf  Classifier
		adv  *fertilizer.Advisor
	}{
		{"classifier error", fixedClassifier{classes: []string{"rice"}, err: boom}, editorialAdvisor()},
		{"no classes", fixedClassifier{proba: map[string]float64{}}, editorialAdvisor()},
		{"missing probability", fixedClassifier{classes: []string{"rice"}, proba: map[string]float64{}}, editorialAdvisor()},
		{"nil advisor", fixedClassifier{classes: []string{"rice"}, proba: map[string]float64{"rice": 1}}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := NewEngine(tt.clf, tt.adv).Recommend(features.Vector{})
			require.Error(t, err)
			assert.Nil(t, rec)
		})
	}

	_, err := NewEngine(fixedClassifier{classes: []string{"rice"}, err: boom}, editorialAdvisor()).Recommend(features.Vector{})
	assert.ErrorIs(t, err, boom)
}

func TestRecommendation_Top(t *testing.T) {
	rec := &Recommendation{Ranked: []CropScore{{Crop: "a"}, {Crop: "b"}, {Crop: "c"}}}
	assert.Len(t, rec.Top(0), 3)
	assert.Len(t, rec.Top(2), 2)
	assert.Len(t, rec.Top(10), 3)
	assert.Equal(t, "a", rec.Top(1)[0].Crop)
}
