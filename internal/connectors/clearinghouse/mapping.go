package clearinghouse

import (
	"fmt"
	"strconv"
	"time"

	"github.com/custodia-labs/clearinghouse-cli/internal/core/domain"
	"github.com/custodia-labs/clearinghouse-cli/internal/logger"
)

// API field mapping. The full raw object is retained as Metadata so the
// archive preserves fields the normalized schema does not model yet.

func caseFromAPI(raw map[string]any) domain.Case {
	return domain.Case{
		ID:           stringField(raw, "id"),
		Name:         stringField(raw, "name"),
		Court:        stringField(raw, "court"),
		State:        stringField(raw, "state"),
		Status:       stringField(raw, "case_status"),
		LastChecked:  parseTime(stringField(raw, "last_checked_date")),
		DocumentsURL: stringField(raw, "case_documents_url"),
		DocketsURL:   stringField(raw, "case_dockets_url"),
		Metadata:     raw,
	}
}

func docketFromAPI(raw map[string]any, caseID string) domain.Docket {
	return domain.Docket{
		ID:           stringField(raw, "id"),
		CaseID:       caseID,
		DocketNumber: stringField(raw, "docket_number_manual"),
		Court:        stringField(raw, "court"),
		State:        stringField(raw, "state"),
		IsMain:       boolField(raw, "is_main_docket"),
		Metadata:     raw,
	}
}

func documentFromAPI(raw map[string]any, caseID string) domain.Document {
	title := stringField(raw, "title")
	if title == "" {
		title = "Untitled"
	}
	externalURL := stringField(raw, "external_url")
	if externalURL == "" {
		externalURL = stringField(raw, "clearinghouse_link")
	}
	var docketID *string
	if id := stringField(raw, "docket_id"); id != "" {
		docketID = &id
	}
	return domain.Document{
		ID:          stringField(raw, "id"),
		CaseID:      caseID,
		DocketID:    docketID,
		Title:       title,
		Type:        stringField(raw, "document_type"),
		FiledDate:   parseTime(stringField(raw, "date")),
		Court:       stringField(raw, "court"),
		ExternalURL: externalURL,
		TextURL:     stringField(raw, "text_url"),
		HasText:     boolField(raw, "has_text"),
		Metadata:    raw,
	}
}

// stringField stringifies a raw JSON value. The API is loose about types:
// IDs arrive as numbers or strings depending on the endpoint.
func stringField(raw map[string]any, key string) string {
	v, ok := raw[key]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}

func boolField(raw map[string]any, key string) bool {
	b, _ := raw[key].(bool)
	return b
}

// parseTime accepts RFC 3339 timestamps and bare dates. Unparseable values
// are treated as absent; the raw value survives in Metadata.
func parseTime(value string) *time.Time {
	if value == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, value); err == nil {
			utc := t.UTC()
			return &utc
		}
	}
	logger.Debug("unable to parse timestamp value %q", value)
	return nil
}
