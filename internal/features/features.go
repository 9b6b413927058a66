// Package features defines the seven-value input schema shared by training,
// inference, and the fertilizer advisor.
package features

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Column names in canonical order. Datasets must use these names exactly.
const (
	Nitrogen    = "N"
	Phosphorus  = "P"
	Potassium   = "K"
	Temperature = "temperature"
	Humidity    = "humidity"
	PH          = "ph"
	Rainfall    = "rainfall"

	// Label is the dataset column holding the crop name.
	Label = "label"
)

// Count is the number of numeric inputs in a Vector.
const Count = 7

// Names lists the feature columns in the order the classifier consumes them.
var Names = [Count]string{Nitrogen, Phosphorus, Potassium, Temperature, Humidity, PH, Rainfall}

// ErrInvalidInput is returned when a vector is missing a field or holds a
// value that is not a finite number.
var ErrInvalidInput = errors.New("invalid input")

// ErrOutOfRange marks values outside physically sane ranges. The classifier
// accepts them; callers decide whether to warn.
var ErrOutOfRange = errors.New("value out of range")

// Vector is one observation of soil and weather conditions.
type Vector struct {
	N           float64 `json:"N"`
	P           float64 `json:"P"`
	K           float64 `json:"K"`
	Temperature float64 `json:"temperature"`
	Humidity    float64 `json:"humidity"`
	PH          float64 `json:"ph"`
	Rainfall    float64 `json:"rainfall"`
}

// Values returns the vector in Names order.
func (v Vector) Values() [Count]float64 {
	return [Count]float64{v.N, v.P, v.K, v.Temperature, v.Humidity, v.PH, v.Rainfall}
}

// At returns the i-th feature in Names order.
func (v Vector) At(i int) float64 {
	switch i {
	case 0:
		return v.N
	case 1:
		return v.P
	case 2:
		return v.K
	case 3:
		return v.Temperature
	case 4:
		return v.Humidity
	case 5:
		return v.PH
	case 6:
		return v.Rainfall
	}
	panic(fmt.Sprintf("features: index %d out of range", i))
}

// FromValues builds a Vector from exactly Count values in Names order.
func FromValues(values []float64) (Vector, error) {
	if len(values) != Count {
		return Vector{}, fmt.Errorf("%w: expected %d values, got %d", ErrInvalidInput, Count, len(values))
	}
	v := Vector{
		N:           values[0],
		P:           values[1],
		K:           values[2],
		Temperature: values[3],
		Humidity:    values[4],
		PH:          values[5],
		Rainfall:    values[6],
	}
	if err := v.CheckFinite(); err != nil {
		return Vector{}, err
	}
	return v, nil
}

// FromStrings parses a Vector from a column-name to text mapping. Extra keys
// are ignored. Every name in Names must be present and numeric.
func FromStrings(fields map[string]string) (Vector, error) {
	values := make([]float64, Count)
	for i, name := range Names {
		raw, ok := fields[name]
		if !ok {
			return Vector{}, fmt.Errorf("%w: missing field %q", ErrInvalidInput, name)
		}
		f, err := ParseValue(raw)
		if err != nil {
			return Vector{}, fmt.Errorf("%w: field %q: %v", ErrInvalidInput, name, err)
		}
		values[i] = f
	}
	return FromValues(values)
}

// ParseValue parses a single numeric cell, rejecting blanks, NaN and Inf.
func ParseValue(raw string) (float64, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, errors.New("empty value")
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("not a number: %q", s)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("not a finite number: %q", s)
	}
	return f, nil
}

// CheckFinite reports ErrInvalidInput when any field is NaN or infinite.
func (v Vector) CheckFinite() error {
	for i, f := range v.Values() {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("%w: field %q is not a finite number", ErrInvalidInput, Names[i])
		}
	}
	return nil
}

// Validate checks agronomic plausibility: N, P, K, temperature and rainfall
// must be non-negative, humidity within [0, 100] and pH within [0, 14].
// All violations are joined into one error wrapping ErrOutOfRange.
func (v Vector) Validate() error {
	if err := v.CheckFinite(); err != nil {
		return err
	}

	var errs []error
	nonNegative := func(name string, f float64) {
		if f < 0 {
			errs = append(errs, fmt.Errorf("%w: %s must be >= 0, got %g", ErrOutOfRange, name, f))
		}
	}
	between := func(name string, f, lo, hi float64) {
		if f < lo || f > hi {
			errs = append(errs, fmt.Errorf("%w: %s must be within [%g, %g], got %g", ErrOutOfRange, name, lo, hi, f))
		}
	}

	nonNegative(Nitrogen, v.N)
	nonNegative(Phosphorus, v.P)
	nonNegative(Potassium, v.K)
	nonNegative(Temperature, v.Temperature)
	between(Humidity, v.Humidity, 0, 100)
	between(PH, v.PH, 0, 14)
	nonNegative(Rainfall, v.Rainfall)

	return errors.Join(errs...)
}
