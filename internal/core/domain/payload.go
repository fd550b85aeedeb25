package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"reflect"
	"time"
)

// ResourceType identifies what kind of source record a raw payload captures.
type ResourceType string

const (
	ResourceCase     ResourceType = "case"
	ResourceDocket   ResourceType = "docket"
	ResourceDocument ResourceType = "document"
)

// RawPayload is an immutable archive row for one source payload. Identity is
// the composite (ResourceType, ResourceID, SHA256): at most one stored copy
// per distinct payload content per resource. Rows are append-only; the
// pipeline never mutates or deletes them.
type RawPayload struct {
	// RunID is the run that first archived this payload version.
	RunID string

	// Source labels which client produced the payload.
	Source string

	ResourceType ResourceType
	ResourceID   string

	// CaseID and DocketID are denormalized for query convenience.
	CaseID   string
	DocketID *string

	// SHA256 is the hex digest of the canonical serialized payload.
	SHA256 string

	// Payload is the JSON-safe canonical form of the source record.
	Payload map[string]any
}

// NewRawPayload canonicalizes and hashes a source payload into an archive row.
func NewRawPayload(
	runID, source string,
	resourceType ResourceType,
	resourceID, caseID string,
	docketID *string,
	payload map[string]any,
) (RawPayload, error) {
	safe, ok := Canonicalize(payload).(map[string]any)
	if !ok {
		safe = map[string]any{}
	}

	digest, err := PayloadDigest(safe)
	if err != nil {
		return RawPayload{}, fmt.Errorf("hashing payload: %w", err)
	}

	return RawPayload{
		RunID:        runID,
		Source:       source,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		CaseID:       caseID,
		DocketID:     docketID,
		SHA256:       digest,
		Payload:      safe,
	}, nil
}

// PayloadDigest serializes a canonical payload deterministically and returns
// its SHA-256 hex digest. encoding/json writes map keys in sorted order and
// no extraneous whitespace, so structurally identical payloads serialize
// identically regardless of key insertion order.
func PayloadDigest(payload map[string]any) (string, error) {
	serialized, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(serialized)
	return hex.EncodeToString(sum[:]), nil
}

// Canonicalize recursively coerces a payload value into JSON-safe primitives:
// mappings become string-keyed maps, sequences become ordered lists,
// timestamps become ISO-8601 strings, scalars pass through, and anything else
// is stringified.
func Canonicalize(value any) any {
	switch v := value.(type) {
	case nil:
		return nil
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, item := range v {
			out[key] = Canonicalize(item)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = Canonicalize(item)
		}
		return out
	case time.Time:
		return v.Format(time.RFC3339)
	case *time.Time:
		if v == nil {
			return nil
		}
		return v.Format(time.RFC3339)
	case string, bool,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64, json.Number:
		return v
	}

	// Generic maps and sequences (e.g., map[string]string from decoded
	// fixtures) are handled reflectively; everything else is stringified.
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Map:
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out[fmt.Sprint(iter.Key().Interface())] = Canonicalize(iter.Value().Interface())
		}
		return out
	case reflect.Slice, reflect.Array:
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = Canonicalize(rv.Index(i).Interface())
		}
		return out
	default:
		return fmt.Sprint(value)
	}
}
