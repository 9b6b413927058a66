package dataset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const header = "N,P,K,temperature,humidity,ph,rainfall,label\n"

func TestLoad(t *testing.T) {
	path := writeCSV(t, t.TempDir(), "crops.csv", header+
		"90,42,43,20.87,82.00,6.50,202.93,rice\n"+
		"85,58,41,21.77,80.31,7.03,226.65,rice\n"+
		"71,54,16,22.61,63.69,5.74,87.75,maize\n"+
		"61,44,17,26.10,71.57,6.93,102.26,maize\n")

	ds, err := Load(path)
	require.NoError(t, err)
	require.Len(t, ds.Samples, 4)
	assert.Equal(t, "rice", ds.Samples[0].Label)
	assert.Equal(t, 90.0, ds.Samples[0].Features.N)
	assert.Equal(t, 6.93, ds.Samples[3].Features.PH)
	assert.Len(t, ds.Digest, 64)
	assert.Equal(t, []string{"maize", "rice"}, Labels(ds.Samples))
	assert.Equal(t, map[string]int{"maize": 2, "rice": 2}, ClassCounts(ds.Samples))
	assert.NoError(t, CheckStratifiable(ds.Samples))
}

func TestLoad_ColumnOrderIrrelevant(t *testing.T) {
	path := writeCSV(t, t.TempDir(), "crops.csv",
		"label,rainfall,ph,humidity,temperature,K,P,N,notes\n"+
			"rice,200,6.5,82,20,40,40,90,irrigated\n")

	ds, err := Load(path)
	require.NoError(t, err)
	require.Len(t, ds.Samples, 1)
	assert.Equal(t, 90.0, ds.Samples[0].Features.N)
	assert.Equal(t, 200.0, ds.Samples[0].Features.Rainfall)
}

func TestLoad_MissingColumn(t *testing.T) {
	path := writeCSV(t, t.TempDir(), "crops.csv",
		"N,P,K,temperature,humidity,rainfall,label\n90,42,43,20,82,202,rice\n")

	_, err := Load(path)
	require.ErrorIs(t, err, ErrSchema)
	assert.Contains(t, err.Error(), "missing required columns ph")
}

func TestLoad_BadCell(t *testing.T) {
	path := writeCSV(t, t.TempDir(), "crops.csv", header+
		"90,42,43,20,82,6.5,202,rice\n"+
		"90,abc,43,20,82,6.5,202,rice\n")

	_, err := Load(path)
	require.ErrorIs(t, err, ErrSchema)
	assert.Contains(t, err.Error(), "row 3")
}

func TestLoad_OutOfRangeRow(t *testing.T) {
	tests := []struct {
		name string
		row  string
		want string
	}{
		{"negative nitrogen", "-5,42,43,20,82,6.5,202,rice\n", "N must be >= 0"},
		{"negative potassium", "90,42,-1,20,82,6.5,202,rice\n", "K must be >= 0"},
		{"humidity above 100", "90,42,43,20,182,6.5,202,rice\n", "humidity must be within"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeCSV(t, t.TempDir(), "crops.csv", header+
				"90,42,43,20,82,6.5,202,rice\n"+tt.row)

			_, err := Load(path)
			require.ErrorIs(t, err, ErrSchema)
			assert.Contains(t, err.Error(), "row 3")
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad_EmptyLabel(t *testing.T) {
	path := writeCSV(t, t.TempDir(), "crops.csv", header+"90,42,43,20,82,6.5,202, \n")

	_, err := Load(path)
	require.ErrorIs(t, err, ErrSchema)
	assert.Contains(t, err.Error(), "empty label")
}

func TestDigestStable(t *testing.T) {
	dir := t.TempDir()
	content := header + "90,42,43,20,82,6.5,202,rice\n"
	a, err := Load(writeCSV(t, dir, "a.csv", content))
	require.NoError(t, err)
	b, err := Load(writeCSV(t, dir, "b.csv", content))
	require.NoError(t, err)
	c, err := Load(writeCSV(t, dir, "c.csv", content+"91,42,43,20,82,6.5,202,rice\n"))
	require.NoError(t, err)

	assert.Equal(t, a.Digest, b.Digest)
	assert.NotEqual(t, a.Digest, c.Digest)
}

func TestCheckStratifiable(t *testing.T) {
	assert.ErrorIs(t, CheckStratifiable(nil), ErrEmptyDataset)

	samples := []Sample{{Label: "rice"}, {Label: "rice"}, {Label: "durian"}}
	err := CheckStratifiable(samples)
	require.ErrorIs(t, err, ErrEmptyDataset)
	assert.Contains(t, err.Error(), "durian (1)")
}

func TestRequiredColumns(t *testing.T) {
	assert.Equal(t, []string{"N", "P", "K", "temperature", "humidity", "ph", "rainfall", "label"}, RequiredColumns())
}
