// internal/reporting/sink.go
package reporting

import (
	"context"
	"errors"
	"fmt"
	"time"

	"premium-push-workers/internal/access"
	"premium-push-workers/internal/common/logger"
)

type Indexer interface {
	IndexDocument(ctx context.Context, index, id string, doc interface{}) error
}

// document is the indexed shape of a report. Outcomes are flattened so each
// batch can be aggregated without nested queries.
type document struct {
	*access.Report
	Timestamp       time.Time      `json:"@timestamp"`
	HasAccess       bool           `json:"hasAccess"`
	Delivered       int            `json:"delivered"`
	Failed          int            `json:"failed"`
	Skipped         int            `json:"skipped"`
	FailureKinds    map[string]int `json:"failureKinds,omitempty"`
	OrphanedDevices int            `json:"orphanedDevices"`
}

// ElasticsearchSink writes access reports to an index keyed by report ID.
type ElasticsearchSink struct {
	indexer Indexer
	index   string
	logger  logger.Logger
}

func NewElasticsearchSink(indexer Indexer, index string, log logger.Logger) *ElasticsearchSink {
	return &ElasticsearchSink{
		indexer: indexer,
		index:   index,
		logger:  log.WithFields(map[string]interface{}{"component": "report-sink", "index": index}),
	}
}

func (s *ElasticsearchSink) Save(ctx context.Context, report *access.Report) error {
	if report == nil || report.ReportID == "" {
		return errors.New("report without id")
	}

	doc := document{
		Report:          report,
		Timestamp:       report.EvaluatedAt,
		HasAccess:       report.Entitlement.HasAccess,
		OrphanedDevices: report.Linkage.Orphaned,
	}
	if b := report.Dispatch; b != nil {
		doc.Delivered, doc.Failed, doc.Skipped = b.Delivered, b.Failed, b.Skipped
		if len(b.FailuresByKind) > 0 {
			doc.FailureKinds = make(map[string]int, len(b.FailuresByKind))
			for k, n := range b.FailuresByKind {
				doc.FailureKinds[string(k)] = n
			}
		}
	}

	if err := s.indexer.IndexDocument(ctx, s.index, report.ReportID, doc); err != nil {
		return fmt.Errorf("save report %s: %w", report.ReportID, err)
	}
	s.logger.Debug("report saved", map[string]interface{}{"reportId": report.ReportID})
	return nil
}
