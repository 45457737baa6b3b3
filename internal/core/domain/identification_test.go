package domain

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTierForBoundaries(t *testing.T) {
	cases := []struct {
		confidence float64
		want       ConfidenceTier
	}{
		{0, TierLow},
		{0.599, TierLow},
		{0.60, TierMedium},
		{0.799, TierMedium},
		{0.80, TierHigh},
		{0.899, TierHigh},
		{0.90, TierConfirmed},
		{1, TierConfirmed},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, TierFor(tc.confidence), "confidence %v", tc.confidence)
	}
}

func TestNewScanCandidateRejectsForeignMetadata(t *testing.T) {
	_, err := NewScanCandidate("c1", "Rolex Submariner", CategoryCard, 80, WatchMetadata{Brand: "Rolex"}, CandidateProvenance{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidInput))

	_, err = NewScanCandidate("c2", "Mystery box", CategoryGeneral, 40, CollectibleMetadata{}, CandidateProvenance{})
	require.Error(t, err)

	_, err = NewScanCandidate("c3", "Rolex Submariner", CategoryWatch, 101, nil, CandidateProvenance{})
	require.Error(t, err)
}

func TestScanCandidateJSONKeepsMetadataVariant(t *testing.T) {
	candidate, err := NewScanCandidate("c1", "2018 Prizm Luka Doncic", CategoryCard, 88,
		CardMetadata{Game: "basketball", Player: "Luka Doncic", Set: "Prizm", Year: 2018, Parallel: "Silver"},
		CandidateProvenance{Stage: StageCandidates, Source: "visual"})
	require.NoError(t, err)

	raw, err := json.Marshal(candidate)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"stage":"candidates"`)

	var decoded ScanCandidate
	require.NoError(t, json.Unmarshal(raw, &decoded))
	meta, ok := decoded.Metadata.(CardMetadata)
	require.True(t, ok, "metadata decoded as %T", decoded.Metadata)
	assert.Equal(t, "Silver", meta.Parallel)
	assert.Equal(t, StageCandidates, decoded.Provenance.Stage)
}

func TestScanCandidateJSONRejectsMetadataOnGeneral(t *testing.T) {
	var decoded ScanCandidate
	err := json.Unmarshal([]byte(`{"id":"x","title":"Lamp","category":"general","confidence":10,"metadata":{"brand":"Rolex"}}`), &decoded)
	require.Error(t, err)
}

func TestObjectTypeCategory(t *testing.T) {
	assert.Equal(t, CategoryCollectible, ObjectToy.Category())
	assert.Equal(t, CategoryGeneral, ObjectSneaker.Category())
	assert.True(t, ObjectHandbag.Valid())
	assert.False(t, ObjectType("spaceship").Valid())
}
