package export

import (
	"context"
	"fmt"
	"log"

	"jobwatch-engine/internal/config"
	"jobwatch-engine/internal/domain"
	"jobwatch-engine/internal/events"
	"jobwatch-engine/internal/filter"
	"jobwatch-engine/internal/store"
)

// Service runs one export cycle: snapshot the store, run the exclusion
// pipeline, write the file(s), then clear is_new for the delivered batch.
// is_new is cleared here and only here; the crawl path never touches it.
type Service struct {
	Store    *store.Store
	Exporter *CSVExporter
	Hub      *events.Hub
	Cfg      config.Config
}

type Outcome struct {
	Path           string
	UnfilteredPath string // empty unless export.write_unfiltered
	Result         filter.Result
}

func (s *Service) Run(ctx context.Context) (Outcome, error) {
	var out Outcome

	records, err := s.Store.Query(ctx, store.Criteria{})
	if err != nil {
		return out, fmt.Errorf("export query: %w", err)
	}

	label := s.Cfg.Crawl.Keyword
	if s.Cfg.Crawl.Area != "" {
		if label != "" {
			label += "_"
		}
		label += s.Cfg.Crawl.Area
	}

	// "Before" pass: same pipeline, every stage off.
	if s.Cfg.Export.WriteUnfiltered {
		raw := filter.Apply(records, filter.AllDisabled())
		p, err := s.Exporter.Export(raw.Kept, label+"_raw")
		if err != nil {
			return out, fmt.Errorf("export unfiltered: %w", err)
		}
		out.UnfilteredPath = p
	}

	res := filter.Apply(records, filter.FromConfig(s.Cfg))
	log.Printf("[export] %s", res.Summary())

	path, err := s.Exporter.Export(res.Kept, label)
	if err != nil {
		return out, fmt.Errorf("export write: %w", err)
	}
	out.Path = path
	out.Result = res

	keys := make([]store.RecordKey, 0, len(res.Kept))
	for _, j := range res.Kept {
		keys = append(keys, store.RecordKey{Source: j.Source, JobID: j.JobID})
	}
	if err := s.Store.MarkExported(ctx, keys); err != nil {
		return out, fmt.Errorf("mark exported: %w", err)
	}

	s.Hub.Emit(events.TypeExportDone, map[string]any{
		"path": path, "kept": len(res.Kept), "rejected": len(res.Rejected),
	})
	log.Printf("[export] wrote %s (%d records)", path, len(res.Kept))
	return out, nil
}

// NewSince is a convenience for notification consumers: the still-unexported
// new records.
func (s *Service) NewRecords(ctx context.Context) ([]domain.JobRecord, error) {
	return s.Store.Query(ctx, store.Criteria{OnlyNew: true})
}
