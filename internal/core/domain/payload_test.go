package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPayloadDigest_KeyOrderIndependent(t *testing.T) {
	a := map[string]any{
		"id":     "case-001",
		"name":   "Doe v. State",
		"nested": map[string]any{"x": 1, "y": 2},
	}
	b := map[string]any{
		"nested": map[string]any{"y": 2, "x": 1},
		"name":   "Doe v. State",
		"id":     "case-001",
	}

	digestA, err := PayloadDigest(Canonicalize(a).(map[string]any))
	require.NoError(t, err)
	digestB, err := PayloadDigest(Canonicalize(b).(map[string]any))
	require.NoError(t, err)

	assert.Equal(t, digestA, digestB)
}

func TestPayloadDigest_DiffersOnContent(t *testing.T) {
	a := map[string]any{"id": "case-001", "status": "ongoing"}
	b := map[string]any{"id": "case-001", "status": "closed"}

	digestA, err := PayloadDigest(Canonicalize(a).(map[string]any))
	require.NoError(t, err)
	digestB, err := PayloadDigest(Canonicalize(b).(map[string]any))
	require.NoError(t, err)

	assert.NotEqual(t, digestA, digestB)
}

func TestCanonicalize_Timestamps(t *testing.T) {
	ts := time.Date(2023, 5, 1, 12, 30, 0, 0, time.UTC)

	assert.Equal(t, "2023-05-01T12:30:00Z", Canonicalize(ts))
	assert.Equal(t, "2023-05-01T12:30:00Z", Canonicalize(&ts))

	var nilTS *time.Time
	assert.Nil(t, Canonicalize(nilTS))
}

func TestCanonicalize_NestedStructures(t *testing.T) {
	ts := time.Date(2023, 5, 1, 0, 0, 0, 0, time.UTC)
	input := map[string]any{
		"list":    []any{1, "two", map[string]any{"when": ts}},
		"strings": map[string]string{"a": "b"},
		"scalar":  3.5,
		"flag":    true,
		"missing": nil,
	}

	got, ok := Canonicalize(input).(map[string]any)
	require.True(t, ok)

	assert.Equal(t, []any{1, "two", map[string]any{"when": "2023-05-01T00:00:00Z"}}, got["list"])
	assert.Equal(t, map[string]any{"a": "b"}, got["strings"])
	assert.Equal(t, 3.5, got["scalar"])
	assert.Equal(t, true, got["flag"])
	assert.Nil(t, got["missing"])
}

func TestCanonicalize_StringifiesUnknownTypes(t *testing.T) {
	type opaque struct{ V int }

	got := Canonicalize(map[string]any{"o": opaque{V: 7}})
	assert.Equal(t, map[string]any{"o": "{7}"}, got)
}

func TestNewRawPayload_ComputesDigest(t *testing.T) {
	payload, err := NewRawPayload(
		"run-1", "fixture", ResourceCase, "case-001", "case-001", nil,
		map[string]any{"id": "case-001"},
	)
	require.NoError(t, err)

	assert.Equal(t, "run-1", payload.RunID)
	assert.Equal(t, ResourceCase, payload.ResourceType)
	assert.Len(t, payload.SHA256, 64)
	assert.Equal(t, map[string]any{"id": "case-001"}, payload.Payload)
}
