package analytics

import (
	"context"
	"time"

	"afkwarden/internal/storage"
)

type Service struct {
	store *storage.Store
}

func New(store *storage.Store) *Service {
	return &Service{store: store}
}

type Report struct {
	Total  int
	ByKind map[string]int
}

func (s *Service) Report(ctx context.Context, guildID string, since time.Time) (Report, error) {
	records, err := s.store.ListActions(ctx, guildID, since)
	if err != nil {
		return Report{}, err
	}

	report := Report{ByKind: make(map[string]int)}
	for _, rec := range records {
		report.Total++
		report.ByKind[rec.Kind]++
	}
	return report, nil
}
