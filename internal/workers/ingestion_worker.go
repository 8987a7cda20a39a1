package workers

import (
	"context"
	"fmt"

	"disaster_backend/internal/feeds"
	"disaster_backend/internal/logger"
	"disaster_backend/internal/services"

	"gorm.io/gorm"
)

// IngestionWorker периодически забирает внешнюю ленту и создает из нее отчеты
type IngestionWorker struct {
	db      *gorm.DB
	feed    feeds.Fetcher
	reports services.ReportService
}

func NewIngestionWorker(db *gorm.DB, feed feeds.Fetcher, reports services.ReportService) *IngestionWorker {
	return &IngestionWorker{db: db, feed: feed, reports: reports}
}

func (w *IngestionWorker) Name() string { return "ingestion" }

func (w *IngestionWorker) Run(ctx context.Context) error {
	reports, err := w.feed.Fetch(ctx)
	if err != nil {
		return fmt.Errorf("fetch feed: %w", err)
	}
	if len(reports) == 0 {
		return nil
	}

	result, err := w.reports.IngestReports(withContext(w.db, ctx), reports)
	if err != nil {
		return fmt.Errorf("ingest reports: %w", err)
	}

	logger.Info("Feed ingested",
		"worker", w.Name(),
		"fetched", len(reports),
		"created", len(result.Created),
		"duplicates", result.Duplicates,
		"invalid", result.Invalid,
		"warnings", result.Warnings,
	)
	return nil
}
