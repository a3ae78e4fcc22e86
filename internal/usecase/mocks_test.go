package usecase_test

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/paincake00/geotrack/internal/entity"
	"github.com/paincake00/geotrack/internal/logger"
	"github.com/paincake00/geotrack/internal/prefixcache"
	"github.com/paincake00/geotrack/internal/usecase"
)

// --- Mocks ---

type MockRefs struct {
	mu          sync.Mutex
	Rows        map[entity.RegionKind]map[string]int64
	FindCalls   int
	ExistsCalls int
	Err         error
}

func NewMockRefs() *MockRefs {
	return &MockRefs{Rows: map[entity.RegionKind]map[string]int64{
		entity.RegionCity:    {},
		entity.RegionCountry: {},
	}}
}

func (m *MockRefs) FindReference(ctx context.Context, kind entity.RegionKind, prefixes []string) (*entity.ReferenceMatch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FindCalls++
	if m.Err != nil {
		return nil, m.Err
	}
	var best *entity.ReferenceMatch
	for _, p := range prefixes {
		if id, ok := m.Rows[kind][p]; ok && (best == nil || len(p) > len(best.Geohash)) {
			best = &entity.ReferenceMatch{RegionID: id, Geohash: p}
		}
	}
	return best, nil
}

func (m *MockRefs) PrefixExists(ctx context.Context, kind entity.RegionKind, prefix string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ExistsCalls++
	if m.Err != nil {
		return false, m.Err
	}
	for g := range m.Rows[kind] {
		if strings.HasPrefix(g, prefix) {
			return true, nil
		}
	}
	return false, nil
}

func (m *MockRefs) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.FindCalls + m.ExistsCalls
}

type MockLocations struct {
	Rows        []entity.LocationGeohash
	ByUserCalls int
	Err         error
}

func (m *MockLocations) LocationGeohashes(ctx context.Context) ([]entity.LocationGeohash, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Rows, nil
}

func (m *MockLocations) LocationGeohashesByUser(ctx context.Context, userID int64) ([]entity.LocationGeohash, error) {
	m.ByUserCalls++
	if m.Err != nil {
		return nil, m.Err
	}
	var res []entity.LocationGeohash
	for _, r := range m.Rows {
		if r.UserID == userID {
			res = append(res, r)
		}
	}
	return res, nil
}

type MockFixes struct {
	mu          sync.Mutex
	Fixes       map[int64]*entity.Fix
	Updates     map[int64]entity.Enrichment
	UpdateCalls int
	Err         error
}

func NewMockFixes() *MockFixes {
	return &MockFixes{Fixes: make(map[int64]*entity.Fix), Updates: make(map[int64]entity.Enrichment)}
}

func (m *MockFixes) InsertFix(ctx context.Context, fix *entity.Fix) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	fix.ID = int64(len(m.Fixes) + 1)
	m.Fixes[fix.ID] = fix
	return nil
}

func (m *MockFixes) GetFix(ctx context.Context, id int64) (*entity.Fix, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if f, ok := m.Fixes[id]; ok {
		return f, nil
	}
	return nil, entity.ErrNotFound
}

func (m *MockFixes) LatestFix(ctx context.Context, userID int64) (*entity.Fix, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest *entity.Fix
	for _, f := range m.Fixes {
		if f.UserID == userID && (latest == nil || f.Timestamp.After(latest.Timestamp)) {
			latest = f
		}
	}
	if latest == nil {
		return nil, entity.ErrNotFound
	}
	return latest, nil
}

func (m *MockFixes) UpdateEnrichment(ctx context.Context, id int64, e entity.Enrichment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.UpdateCalls++
	if m.Err != nil {
		return m.Err
	}
	m.Updates[id] = e
	return nil
}

type MockQueue struct {
	Items []entity.PendingWork
}

func (m *MockQueue) Enqueue(item entity.PendingWork) { m.Items = append(m.Items, item) }

type MockBroadcaster struct {
	Published map[string][]interface{}
	Err       error
}

func (m *MockBroadcaster) Publish(ctx context.Context, channel string, payload interface{}) error {
	if m.Err != nil {
		return m.Err
	}
	if m.Published == nil {
		m.Published = make(map[string][]interface{})
	}
	m.Published[channel] = append(m.Published[channel], payload)
	return nil
}

type MockNotifier struct {
	Got []entity.Transition
}

func (m *MockNotifier) Notify(ctx context.Context, t entity.Transition) { m.Got = append(m.Got, t) }

type MockBackfillRepo struct {
	Prefixes []entity.RegionGeohash
	Updated  map[string]int64
	Err      error
}

func (m *MockBackfillRepo) RegionPrefixes(ctx context.Context, kind entity.RegionKind, regionID int64) ([]entity.RegionGeohash, error) {
	var res []entity.RegionGeohash
	for _, p := range m.Prefixes {
		if p.Kind == kind && p.RegionID == regionID {
			res = append(res, p)
		}
	}
	return res, nil
}

func (m *MockBackfillRepo) BackfillRegion(ctx context.Context, row entity.RegionGeohash) (int64, error) {
	if m.Err != nil {
		return 0, m.Err
	}
	return m.Updated[row.Geohash], nil
}

// --- Helpers ---

type fixture struct {
	refs     *MockRefs
	locs     *MockLocations
	fixes    *MockFixes
	notifier *MockNotifier
	resolver *usecase.Resolver
	presence *usecase.PresenceTracker
	service  *usecase.EnrichmentService
}

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newFixture() *fixture {
	f := &fixture{
		refs:     NewMockRefs(),
		locs:     &MockLocations{},
		fixes:    NewMockFixes(),
		notifier: &MockNotifier{},
		presence: usecase.NewPresenceTracker(),
	}
	f.resolver = usecase.NewResolver(
		f.refs, f.locs,
		prefixcache.New[prefixcache.Global]("city"),
		prefixcache.New[prefixcache.Global]("country"),
		prefixcache.New[int64]("location"),
		logger.Discard(),
	)
	f.service = usecase.NewEnrichmentService(f.fixes, f.resolver, f.presence, logger.Discard(), f.notifier)
	f.service.Now = func() time.Time { return fixedNow }
	return f
}

func at(sec int) time.Time {
	return time.Date(2024, 5, 1, 0, 0, sec, 0, time.UTC)
}

func id(v int64) *int64 { return &v }

func fmtID(p *int64) string {
	if p == nil {
		return "<nil>"
	}
	return fmt.Sprint(*p)
}
