package clearinghouse

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"os"
	"sort"
	"time"

	"github.com/custodia-labs/clearinghouse-cli/internal/core/domain"
	"github.com/custodia-labs/clearinghouse-cli/internal/core/ports/driven"
)

var _ driven.SourceClient = (*FixtureClient)(nil)

// FixtureClient serves a static JSON fixture of nested cases, dockets, and
// documents. It backs `ingest fixture` and the pipeline tests; its listing
// semantics mirror the live client (cases ordered by cursor, strict
// updatedAfter filtering).
type FixtureClient struct {
	cases     []domain.Case
	dockets   map[string][]domain.Docket
	documents map[string][]domain.Document
}

type fixtureFile struct {
	Cases []fixtureCase `json:"cases"`
}

// flexID accepts string or numeric JSON ids; real exports mix both.
type flexID string

func (f *flexID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = flexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexID(n.String())
	return nil
}

type fixtureCase struct {
	ID           flexID          `json:"id"`
	Name         string          `json:"name"`
	Court        string          `json:"court"`
	State        string          `json:"state"`
	Jurisdiction string          `json:"jurisdiction"`
	Status       string          `json:"status"`
	UpdatedAt    string          `json:"updated_at"`
	DocumentsURL string          `json:"documents_url"`
	DocketsURL   string          `json:"dockets_url"`
	Metadata     map[string]any  `json:"metadata"`
	Dockets      []fixtureDocket `json:"dockets"`
}

type fixtureDocket struct {
	ID        flexID            `json:"id"`
	Number    string            `json:"number"`
	Court     string            `json:"court"`
	State     string            `json:"state"`
	IsMain    *bool             `json:"is_main"`
	Metadata  map[string]any    `json:"metadata"`
	Documents []fixtureDocument `json:"documents"`
}

type fixtureDocument struct {
	ID           flexID         `json:"id"`
	Title        string         `json:"title"`
	DocumentType string         `json:"document_type"`
	FiledDate    string         `json:"filed_date"`
	Court        string         `json:"court"`
	Text         string         `json:"text"`
	TextURL      string         `json:"text_url"`
	SourceURL    string         `json:"source_url"`
	Metadata     map[string]any `json:"metadata"`
}

// NewFixtureClient loads and indexes a fixture file.
func NewFixtureClient(path string) (*FixtureClient, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture: %w", err)
	}
	var file fixtureFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}

	fc := &FixtureClient{
		dockets:   make(map[string][]domain.Docket),
		documents: make(map[string][]domain.Document),
	}

	for _, fcase := range file.Cases {
		caseID := string(fcase.ID)
		state := fcase.State
		if state == "" {
			state = fcase.Jurisdiction
		}
		documentsURL := fcase.DocumentsURL
		if documentsURL == "" {
			documentsURL = fmt.Sprintf("mock://cases/%s/documents", caseID)
		}
		docketsURL := fcase.DocketsURL
		if docketsURL == "" {
			docketsURL = fmt.Sprintf("mock://cases/%s/dockets", caseID)
		}
		cs := domain.Case{
			ID:           caseID,
			Name:         fcase.Name,
			Court:        fcase.Court,
			State:        state,
			Status:       fcase.Status,
			LastChecked:  parseTime(fcase.UpdatedAt),
			DocumentsURL: documentsURL,
			DocketsURL:   docketsURL,
			Metadata:     metadataOrEmpty(fcase.Metadata),
		}
		fc.cases = append(fc.cases, cs)

		for _, fdocket := range fcase.Dockets {
			docketID := string(fdocket.ID)
			docket := domain.Docket{
				ID:           docketID,
				CaseID:       caseID,
				DocketNumber: fdocket.Number,
				Court:        firstNonEmpty(fdocket.Court, cs.Court),
				State:        firstNonEmpty(fdocket.State, cs.State),
				IsMain:       fdocket.IsMain == nil || *fdocket.IsMain,
				Metadata:     metadataOrEmpty(fdocket.Metadata),
			}
			fc.dockets[caseID] = append(fc.dockets[caseID], docket)

			for _, fdoc := range fdocket.Documents {
				id := docketID
				doc := domain.Document{
					ID:          string(fdoc.ID),
					CaseID:      caseID,
					DocketID:    &id,
					Title:       fdoc.Title,
					Type:        fdoc.DocumentType,
					FiledDate:   parseTime(fdoc.FiledDate),
					Court:       firstNonEmpty(fdoc.Court, docket.Court),
					ExternalURL: fdoc.SourceURL,
					TextURL:     fdoc.TextURL,
					HasText:     fdoc.Text != "",
					Text:        fdoc.Text,
					Metadata:    metadataOrEmpty(fdoc.Metadata),
				}
				fc.documents[caseID] = append(fc.documents[caseID], doc)
			}
		}
	}

	// Cursor order matches the live listing; cursorless cases sort first.
	sort.SliceStable(fc.cases, func(i, j int) bool {
		return cursorOf(fc.cases[i]).Before(cursorOf(fc.cases[j]))
	})
	return fc, nil
}

func cursorOf(cs domain.Case) time.Time {
	if cs.LastChecked == nil {
		return time.Time{}
	}
	return *cs.LastChecked
}

// ListCases yields fixture cases in cursor order. Cases without a cursor
// are always yielded; a case is skipped only when its cursor is at or
// before updatedAfter.
func (c *FixtureClient) ListCases(_ context.Context, updatedAfter *time.Time) iter.Seq2[domain.Case, error] {
	return func(yield func(domain.Case, error) bool) {
		for _, cs := range c.cases {
			if updatedAfter != nil && cs.LastChecked != nil && !cs.LastChecked.After(*updatedAfter) {
				continue
			}
			if !yield(cs, nil) {
				return
			}
		}
	}
}

// ListDockets yields the dockets of a case.
func (c *FixtureClient) ListDockets(_ context.Context, caseID string) iter.Seq2[domain.Docket, error] {
	return func(yield func(domain.Docket, error) bool) {
		for _, docket := range c.dockets[caseID] {
			if !yield(docket, nil) {
				return
			}
		}
	}
}

// ListDocuments yields the documents of a case.
func (c *FixtureClient) ListDocuments(_ context.Context, caseID string) iter.Seq2[domain.Document, error] {
	return func(yield func(domain.Document, error) bool) {
		for _, doc := range c.documents[caseID] {
			if !yield(doc, nil) {
				return
			}
		}
	}
}

// GetDocument returns a single fixture document, or domain.ErrNotFound.
func (c *FixtureClient) GetDocument(_ context.Context, caseID, documentID string) (*domain.Document, error) {
	for _, doc := range c.documents[caseID] {
		if doc.ID == documentID {
			d := doc
			return &d, nil
		}
	}
	return nil, fmt.Errorf("document %s in case %s: %w", documentID, caseID, domain.ErrNotFound)
}

// Close is a no-op; the fixture holds no resources after loading.
func (c *FixtureClient) Close() error { return nil }

func metadataOrEmpty(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
