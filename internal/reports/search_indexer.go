package reports

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"

	"carbon-scribe/mrv/mrv-backend/internal/carbon/calculation"
)

const reportIndexMapping = `{
  "mappings": {
    "properties": {
      "report_id":           {"type": "keyword"},
      "farm_id":             {"type": "keyword"},
      "model_type":          {"type": "keyword"},
      "verification_status": {"type": "keyword"},
      "calculation_date":    {"type": "date"},
      "total_credits":       {"type": "double"},
      "credits_per_year":    {"type": "double"},
      "validation_errors":   {"type": "text"},
      "document_sha256":     {"type": "keyword"}
    }
  }
}`

// SearchIndexer keeps a searchable summary of every report for auditors
type SearchIndexer struct {
	client *elasticsearch.Client
	index  string
}

// NewSearchIndexer creates an indexer writing into index
func NewSearchIndexer(client *elasticsearch.Client, index string) *SearchIndexer {
	return &SearchIndexer{client: client, index: index}
}

// Name returns the sink name
func (s *SearchIndexer) Name() string {
	return "elasticsearch"
}

// EnsureIndex creates the report index with its mapping if it does not exist
func (s *SearchIndexer) EnsureIndex(ctx context.Context) error {
	res, err := s.client.Indices.Exists([]string{s.index}, s.client.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to check index %s: %w", s.index, err)
	}
	res.Body.Close()
	if res.StatusCode == http.StatusOK {
		return nil
	}

	res, err = s.client.Indices.Create(s.index,
		s.client.Indices.Create.WithBody(strings.NewReader(reportIndexMapping)),
		s.client.Indices.Create.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("failed to create index %s: %w", s.index, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("failed to create index %s: %s", s.index, res.String())
	}
	return nil
}

// Store indexes the report summary under its report id
func (s *SearchIndexer) Store(ctx context.Context, report *calculation.VerificationReport) error {
	body, err := json.Marshal(Summarize(report))
	if err != nil {
		return fmt.Errorf("failed to encode report summary: %w", err)
	}

	res, err := s.client.Index(s.index, bytes.NewReader(body),
		s.client.Index.WithDocumentID(report.ReportID.String()),
		s.client.Index.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("failed to index report %s: %w", report.ReportID, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("failed to index report %s: %s", report.ReportID, res.String())
	}
	return nil
}
