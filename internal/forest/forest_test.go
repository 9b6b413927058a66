package forest

import (
	"context"
	"encoding/json"
	"math"
	"math/rand"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spboyer/cropwise/internal/dataset"
	"github.com/spboyer/cropwise/internal/features"
)

// cropProfiles are rough centers for three well separated crops.
var cropProfiles = map[string]features.Vector{
	"rice":     {N: 80, P: 48, K: 40, Temperature: 23, Humidity: 82, PH: 6.4, Rainfall: 236},
	"chickpea": {N: 40, P: 68, K: 80, Temperature: 18, Humidity: 17, PH: 7.3, Rainfall: 80},
	"coffee":   {N: 101, P: 29, K: 30, Temperature: 25, Humidity: 59, PH: 6.8, Rainfall: 158},
}

func synthetic(perClass int, seed int64) []dataset.Sample {
	rng := rand.New(rand.NewSource(seed))
	jitter := func(center, spread float64) float64 {
		return math.Max(0, center+(rng.Float64()*2-1)*spread)
	}
	var out []dataset.Sample
	for _, label := range []string{"chickpea", "coffee", "rice"} {
		c := cropProfiles[label]
		for range perClass {
			out = append(out, dataset.Sample{
				Label: label,
				Features: features.Vector{
					N:           jitter(c.N, 10),
					P:           jitter(c.P, 8),
					K:           jitter(c.K, 5),
					Temperature: jitter(c.Temperature, 3),
					Humidity:    jitter(c.Humidity, 4),
					PH:          jitter(c.PH, 0.4),
					Rainfall:    jitter(c.Rainfall, 20),
				},
			})
		}
	}
	return out
}

func smallParams() Params {
	p := DefaultParams()
	p.Trees = 25
	p.Workers = 4
	return p
}

func TestFit_PredictsTrainingProfiles(t *testing.T) {
	f, err := Fit(context.Background(), synthetic(30, 1), smallParams())
	require.NoError(t, err)

	assert.Equal(t, []string{"chickpea", "coffee", "rice"}, f.Classes())
	assert.Equal(t, 25, f.NumTrees())
	assert.Greater(t, f.MaxDepth(), 0)

	for label, center := range cropProfiles {
		got, err := f.Predict(center)
		require.NoError(t, err)
		assert.Equal(t, label, got)
	}
}

func TestPredictProba_Distribution(t *testing.T) {
	f, err := Fit(context.Background(), synthetic(20, 2), smallParams())
	require.NoError(t, err)

	inputs := synthetic(5, 99)
	inputs = append(inputs, dataset.Sample{Features: features.Vector{N: 1000, Humidity: 150, PH: 20}})
	for _, s := range inputs {
		proba, err := f.PredictProba(s.Features)
		require.NoError(t, err)
		require.Len(t, proba, len(f.Classes()))

		sum := 0.0
		for _, c := range f.Classes() {
			p, ok := proba[c]
			require.True(t, ok, "missing class %s", c)
			assert.GreaterOrEqual(t, p, 0.0)
			assert.LessOrEqual(t, p, 1.0)
			sum += p
		}
		assert.InDelta(t, 1.0, sum, 1e-6)

		dist, err := f.Distribution(s.Features)
		require.NoError(t, err)
		pred, err := f.Predict(s.Features)
		require.NoError(t, err)
		assert.Equal(t, f.Classes()[Argmax(dist)], pred)
		for _, p := range dist {
			assert.LessOrEqual(t, p, proba[pred])
		}
	}
}

func TestFit_DeterministicAcrossWorkers(t *testing.T) {
	samples := synthetic(25, 3)
	p1 := smallParams()
	p1.Workers = 1
	p8 := smallParams()
	p8.Workers = 8

	a, err := Fit(context.Background(), samples, p1)
	require.NoError(t, err)
	b, err := Fit(context.Background(), samples, p8)
	require.NoError(t, err)

	for _, s := range synthetic(10, 77) {
		da, err := a.Distribution(s.Features)
		require.NoError(t, err)
		db, err := b.Distribution(s.Features)
		require.NoError(t, err)
		assert.Equal(t, da, db)
	}
}

func TestFit_ReportsProgress(t *testing.T) {
	var mu sync.Mutex
	var seen []int
	p := smallParams()
	_, err := Fit(context.Background(), synthetic(10, 3), p, WithProgress(func(done, total int) {
		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, p.Trees, total)
		seen = append(seen, done)
	}))
	require.NoError(t, err)

	sort.Ints(seen)
	require.Len(t, seen, p.Trees)
	for i, d := range seen {
		assert.Equal(t, i+1, d)
	}
}

func TestFit_SeedChangesTrees(t *testing.T) {
	samples := synthetic(25, 3)
	p := smallParams()
	a, err := Fit(context.Background(), samples, p)
	require.NoError(t, err)
	p.Seed = 7
	b, err := Fit(context.Background(), samples, p)
	require.NoError(t, err)

	ja, err := json.Marshal(a)
	require.NoError(t, err)
	jb, err := json.Marshal(b)
	require.NoError(t, err)
	assert.NotEqual(t, string(ja), string(jb))
}

func TestFit_MaxDepth(t *testing.T) {
	p := smallParams()
	p.MaxDepth = 1
	f, err := Fit(context.Background(), synthetic(20, 4), p)
	require.NoError(t, err)
	assert.LessOrEqual(t, f.MaxDepth(), 1)
}

func TestFit_Errors(t *testing.T) {
	_, err := Fit(context.Background(), nil, smallParams())
	assert.ErrorIs(t, err, dataset.ErrEmptyDataset)

	bad := smallParams()
	bad.Trees = 0
	_, err = Fit(context.Background(), synthetic(2, 1), bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "trees must be >= 1")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Fit(ctx, synthetic(5, 1), smallParams())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFit_SingleClass(t *testing.T) {
	samples := []dataset.Sample{
		{Label: "rice", Features: features.Vector{N: 1}},
		{Label: "rice", Features: features.Vector{N: 2}},
	}
	f, err := Fit(context.Background(), samples, smallParams())
	require.NoError(t, err)

	proba, err := f.PredictProba(features.Vector{N: 50})
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"rice": 1}, proba)
}

func TestPredict_RejectsNonFinite(t *testing.T) {
	f, err := Fit(context.Background(), synthetic(5, 1), smallParams())
	require.NoError(t, err)

	_, err = f.Predict(features.Vector{N: math.NaN()})
	assert.ErrorIs(t, err, features.ErrInvalidInput)
	_, err = f.PredictProba(features.Vector{Rainfall: math.Inf(-1)})
	assert.ErrorIs(t, err, features.ErrInvalidInput)
}

func TestJSONRoundTripPreservesPredictions(t *testing.T) {
	f, err := Fit(context.Background(), synthetic(15, 5), smallParams())
	require.NoError(t, err)

	data, err := json.Marshal(f)
	require.NoError(t, err)

	var loaded Forest
	require.NoError(t, json.Unmarshal(data, &loaded))
	assert.Equal(t, f.Classes(), loaded.Classes())
	assert.Equal(t, f.Params(), loaded.Params())

	for _, s := range synthetic(5, 6) {
		want, err := f.Distribution(s.Features)
		require.NoError(t, err)
		got, err := loaded.Distribution(s.Features)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestUnmarshalJSON_RejectsCorruptTrees(t *testing.T) {
	tests := []struct {
		name string
		json string
		want string
	}{
		{"no classes", `{"classes":[],"trees":[{"nodes":[{"f":-1,"d":[]}]}]}`, "no classes"},
		{"unsorted", `{"classes":["b","a"],"trees":[{"nodes":[{"f":-1,"d":[1,0]}]}]}`, "not sorted"},
		{"no trees", `{"classes":["a"],"trees":[]}`, "no trees"},
		{"bad leaf", `{"classes":["a","b"],"trees":[{"nodes":[{"f":-1,"d":[1]}]}]}`, "leaf has 1 probabilities"},
		{"zero leaf", `{"classes":["a","b"],"trees":[{"nodes":[{"f":-1,"d":[0,0]}]}]}`, "sum to 0"},
		{"negative leaf", `{"classes":["a","b"],"trees":[{"nodes":[{"f":-1,"d":[1.5,-0.5]}]}]}`, "leaf probability -0.5"},
		{"unnormalized leaf", `{"classes":["a","b"],"trees":[{"nodes":[{"f":-1,"d":[0.5,0.2]}]}]}`, "sum to 0.7"},
		{"loop", `{"classes":["a"],"trees":[{"nodes":[{"f":0,"t":1,"l":0,"r":0}]}]}`, "invalid children"},
		{"feature", `{"classes":["a"],"trees":[{"nodes":[{"f":9,"l":1,"r":2},{"f":-1,"d":[1]},{"f":-1,"d":[1]}]}]}`, "feature 9"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var f Forest
			err := json.Unmarshal([]byte(tt.json), &f)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestArgmax(t *testing.T) {
	assert.Equal(t, 0, Argmax([]float64{0.5, 0.5}))
	assert.Equal(t, 2, Argmax([]float64{0.1, 0.2, 0.7}))
	assert.Equal(t, 1, Argmax([]float64{0.2, 0.4, 0.4}))
}

func TestParamsValidate(t *testing.T) {
	assert.NoError(t, DefaultParams().Validate())

	mutate := []func(*Params){
		func(p *Params) { p.MaxDepth = -1 },
		func(p *Params) { p.MinSamplesSplit = 1 },
		func(p *Params) { p.MinSamplesLeaf = 0 },
		func(p *Params) { p.MaxFeatures = 8 },
		func(p *Params) { p.Seed = -1 },
	}
	for _, m := range mutate {
		p := DefaultParams()
		m(&p)
		assert.Error(t, p.Validate())
	}
	assert.Equal(t, 2, DefaultParams().featuresPerSplit())
}
