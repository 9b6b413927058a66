package wizard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spboyer/cropwise/internal/features"
)

func TestFields_FollowFeatureOrder(t *testing.T) {
	require.Len(t, Fields, features.Count)
	for i, f := range Fields {
		assert.Equal(t, features.Names[i], f.Name)
		assert.NotEmpty(t, f.Title)
		assert.NoError(t, validateNumber(f.Placeholder), "placeholder for %s should be numeric", f.Name)
	}
}

func TestPrefill(t *testing.T) {
	values := prefill(map[string]float64{features.Nitrogen: 90, features.PH: 6.5})

	require.Len(t, values, features.Count)
	assert.Equal(t, "90", *values[features.Nitrogen])
	assert.Equal(t, "6.5", *values[features.PH])
	assert.Equal(t, "", *values[features.Rainfall])
}

func TestCollect(t *testing.T) {
	values := prefill(map[string]float64{
		features.Nitrogen:    90,
		features.Phosphorus:  42,
		features.Potassium:   43,
		features.Temperature: 20.88,
		features.Humidity:    82,
		features.PH:          6.5,
		features.Rainfall:    202.94,
	})

	v, err := collect(values)
	require.NoError(t, err)
	assert.Equal(t, features.Vector{N: 90, P: 42, K: 43, Temperature: 20.88, Humidity: 82, PH: 6.5, Rainfall: 202.94}, v)

	*values[features.Humidity] = "humid"
	_, err = collect(values)
	assert.ErrorIs(t, err, features.ErrInvalidInput)
}

func TestValidateNumber(t *testing.T) {
	tests := []struct {
		input   string
		wantErr bool
	}{
		{"42", false},
		{" 6.5 ", false},
		{"-3", false},
		{"", true},
		{"abc", true},
		{"NaN", true},
		{"Inf", true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			err := validateNumber(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
