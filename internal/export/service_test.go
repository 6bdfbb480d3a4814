package export

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobwatch-engine/internal/config"
	"jobwatch-engine/internal/domain"
	"jobwatch-engine/internal/events"
	"jobwatch-engine/internal/store"
)

func newServiceFixture(t *testing.T) (*Service, *store.Store) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "export.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	e := NewCSVExporter(t.TempDir())
	e.now = fixedClock()

	cfg := config.Config{}
	cfg.Filters.EmployeeCountMax = 1000

	return &Service{Store: st, Exporter: e, Hub: events.NewHub(), Cfg: cfg}, st
}

func seed(t *testing.T, st *store.Store, recs ...domain.JobRecord) {
	t.Helper()
	ctx := context.Background()
	for i := range recs {
		recs[i].Normalize()
		_, err := st.Upsert(ctx, &recs[i])
		require.NoError(t, err)
	}
}

func TestServiceRunClearsIsNewForKeptOnly(t *testing.T) {
	svc, st := newServiceFixture(t)
	ctx := context.Background()

	seed(t, st,
		domain.JobRecord{Source: "townwork", JobID: "keep", CompanyName: "残る社", Phone: "03-1234-5678"},
		domain.JobRecord{Source: "townwork", JobID: "big", CompanyName: "巨大社", Phone: "06-9876-5432", EmployeeCount: intp(5000)},
	)

	out, err := svc.Run(ctx)
	require.NoError(t, err)

	assert.FileExists(t, out.Path)
	assert.Empty(t, out.UnfilteredPath)
	require.Len(t, out.Result.Kept, 1)
	assert.Equal(t, "keep", out.Result.Kept[0].JobID)
	require.Len(t, out.Result.Rejected, 1)
	assert.Equal(t, "big", out.Result.Rejected[0].Record.JobID)

	// Only the delivered record loses its new flag; rejected records stay
	// new so a later config change can still pick them up.
	fresh, err := svc.NewRecords(ctx)
	require.NoError(t, err)
	require.Len(t, fresh, 1)
	assert.Equal(t, "big", fresh[0].JobID)
}

func TestServiceRunWritesUnfilteredCopy(t *testing.T) {
	svc, st := newServiceFixture(t)
	svc.Cfg.Export.WriteUnfiltered = true
	ctx := context.Background()

	seed(t, st,
		domain.JobRecord{Source: "townwork", JobID: "a", CompanyName: "A社", EmployeeCount: intp(9999)},
	)

	// Two export calls happen in the same second under the fixed clock, so
	// space them apart for distinct filenames.
	times := []time.Time{
		time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC),
		time.Date(2026, 3, 14, 9, 26, 54, 0, time.UTC),
	}
	svc.Exporter.now = func() time.Time {
		ts := times[0]
		if len(times) > 1 {
			times = times[1:]
		}
		return ts
	}

	out, err := svc.Run(ctx)
	require.NoError(t, err)
	assert.FileExists(t, out.UnfilteredPath)
	assert.FileExists(t, out.Path)
	assert.NotEqual(t, out.Path, out.UnfilteredPath)
	assert.Empty(t, out.Result.Kept, "the filtered pass rejects the oversized company")
}
