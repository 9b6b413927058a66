package training

import (
	"crypto/sha256"
	"encoding/hex"
	"hash"
	"strconv"

	"github.com/spboyer/cropwise/internal/forest"
)

// Fingerprint identifies a training run's inputs: the dataset contents plus
// every setting that changes the fitted model. Worker count is excluded.
func Fingerprint(datasetDigest string, p forest.Params, testSize float64) string {
	h := sha256.New()
	writeField(h, datasetDigest)
	writeField(h, strconv.Itoa(p.Trees))
	writeField(h, strconv.Itoa(p.MaxDepth))
	writeField(h, strconv.Itoa(p.MinSamplesSplit))
	writeField(h, strconv.Itoa(p.MinSamplesLeaf))
	writeField(h, strconv.Itoa(p.MaxFeatures))
	writeField(h, strconv.FormatInt(p.Seed, 10))
	writeField(h, strconv.FormatFloat(testSize, 'g', -1, 64))
	return hex.EncodeToString(h.Sum(nil))
}

// writeField appends s and a null delimiter so adjacent fields cannot
// collide. hash.Hash writes never fail.
func writeField(h hash.Hash, s string) {
	h.Write([]byte(s))
	h.Write([]byte{0})
}
