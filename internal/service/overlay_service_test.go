package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/d60-Lab/club-overlay/internal/cache"
	"github.com/d60-Lab/club-overlay/internal/catalog"
	"github.com/d60-Lab/club-overlay/internal/model"
	"github.com/d60-Lab/club-overlay/internal/repository"
	"github.com/d60-Lab/club-overlay/internal/testutil"
)

var epoch = time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

func boolPtr(b bool) *bool { return &b }

type fixture struct {
	db        *gorm.DB
	clock     *testutil.Clock
	acks      repository.AcknowledgmentRepository
	inbox     *OverlayService[model.Message]
	checklist *OverlayService[model.ChecklistItem]
	messages  *CatalogService[model.Message]
	items     *CatalogService[model.ChecklistItem]
}

func newFixture(t *testing.T, c *cache.CountCache) *fixture {
	t.Helper()
	db := testutil.NewDB(t)
	clock := testutil.NewClock(epoch)
	acks := repository.NewAcknowledgmentRepository(db)
	msgRepo := repository.NewCatalogRepository[model.Message](db, catalog.Inbox)
	itemRepo := repository.NewCatalogRepository[model.ChecklistItem](db, catalog.Checklist)
	return &fixture{
		db:        db,
		clock:     clock,
		acks:      acks,
		inbox:     NewOverlayService(msgRepo, acks, c, WithClock(clock.Now)),
		checklist: NewOverlayService(itemRepo, acks, c, WithClock(clock.Now)),
		messages:  NewCatalogService(msgRepo, c),
		items:     NewCatalogService(itemRepo, c),
	}
}

func (f *fixture) addItems(t *testing.T, items ...model.ChecklistItem) {
	t.Helper()
	for i := range items {
		require.NoError(t, f.items.Create(context.Background(), &items[i]))
	}
}

func (f *fixture) addMessages(t *testing.T, msgs ...model.Message) {
	t.Helper()
	for i := range msgs {
		require.NoError(t, f.messages.Create(context.Background(), &msgs[i]))
	}
}

func TestChecklistOverlay_CompleteOneOfTwo(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.addItems(t,
		model.ChecklistItem{ID: "B", Label: "Pay dues", SortOrder: 2},
		model.ChecklistItem{ID: "A", Label: "Sign waiver", SortOrder: 1},
	)

	entries, err := f.checklist.ListWithStatus(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "A", entries[0].Item.ID)
	assert.Equal(t, "B", entries[1].Item.ID)
	for _, e := range entries {
		assert.False(t, e.Acknowledged)
		assert.Nil(t, e.AcknowledgedAt)
	}
	n, err := f.checklist.CountUnacknowledged(ctx, "u1")
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	ack, err := f.checklist.Acknowledge(ctx, AckRequest{UserID: "u1", ItemID: "B", Acknowledged: boolPtr(true)})
	require.NoError(t, err)
	assert.True(t, ack.Acknowledged)
	require.NotNil(t, ack.AcknowledgedAt)
	assert.True(t, epoch.Equal(*ack.AcknowledgedAt))

	entries, err = f.checklist.ListWithStatus(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.False(t, entries[0].Acknowledged)
	assert.True(t, entries[1].Acknowledged)
	require.NotNil(t, entries[1].AcknowledgedAt)
	assert.True(t, epoch.Equal(*entries[1].AcknowledgedAt))

	n, err = f.checklist.CountUnacknowledged(ctx, "u1")
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	// other users are unaffected
	n, err = f.checklist.CountUnacknowledged(ctx, "u2")
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
}

func TestInboxOverlay_MarkReadIsIdempotent(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.addMessages(t, model.Message{ID: "m1", Title: "Welcome"})

	first, err := f.inbox.Acknowledge(ctx, AckRequest{UserID: "u1", ItemID: "m1"})
	require.NoError(t, err)
	require.NotNil(t, first.AcknowledgedAt)

	f.clock.Advance(time.Hour)
	second, err := f.inbox.Acknowledge(ctx, AckRequest{UserID: "u1", ItemID: "m1", Acknowledged: boolPtr(true)})
	require.NoError(t, err)
	require.NotNil(t, second.AcknowledgedAt)
	assert.True(t, first.AcknowledgedAt.Equal(*second.AcknowledgedAt), "read_at must keep the first timestamp")
	assert.Equal(t, first.ID, second.ID)

	cnt, err := f.acks.Count(ctx, "u1", catalog.KindMessage, "m1")
	require.NoError(t, err)
	assert.EqualValues(t, 1, cnt)
}

func TestInboxOverlay_RejectsUnread(t *testing.T) {
	f := newFixture(t, nil)
	f.addMessages(t, model.Message{ID: "m1", Title: "Welcome"})

	_, err := f.inbox.Acknowledge(context.Background(), AckRequest{UserID: "u1", ItemID: "m1", Acknowledged: boolPtr(false)})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestChecklistOverlay_ToggleRefreshesTimestamp(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.addItems(t, model.ChecklistItem{ID: "c1", Label: "Attend orientation", SortOrder: 1})

	on, err := f.checklist.Acknowledge(ctx, AckRequest{UserID: "u1", ItemID: "c1", Acknowledged: boolPtr(true)})
	require.NoError(t, err)
	t1 := *on.AcknowledgedAt

	f.clock.Advance(time.Minute)
	off, err := f.checklist.Acknowledge(ctx, AckRequest{UserID: "u1", ItemID: "c1", Acknowledged: boolPtr(false)})
	require.NoError(t, err)
	assert.False(t, off.Acknowledged)
	assert.Nil(t, off.AcknowledgedAt)
	assert.True(t, off.Consistent())

	n, err := f.checklist.CountUnacknowledged(ctx, "u1")
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	f.clock.Advance(time.Minute)
	again, err := f.checklist.Acknowledge(ctx, AckRequest{UserID: "u1", ItemID: "c1", Acknowledged: boolPtr(true)})
	require.NoError(t, err)
	require.NotNil(t, again.AcknowledgedAt)
	assert.True(t, again.AcknowledgedAt.After(t1))

	cnt, err := f.acks.Count(ctx, "u1", catalog.KindChecklist, "c1")
	require.NoError(t, err)
	assert.EqualValues(t, 1, cnt)
}

func TestChecklistOverlay_RequiresFlag(t *testing.T) {
	f := newFixture(t, nil)
	f.addItems(t, model.ChecklistItem{ID: "c1", Label: "x"})

	_, err := f.checklist.Acknowledge(context.Background(), AckRequest{UserID: "u1", ItemID: "c1"})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestAcknowledge_Validation(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	cases := []struct {
		name string
		req  AckRequest
	}{
		{"blank user", AckRequest{UserID: " ", ItemID: "m1"}},
		{"blank item", AckRequest{UserID: "u1", ItemID: ""}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.inbox.Acknowledge(ctx, tc.req)
			assert.ErrorIs(t, err, ErrValidation)
			assert.False(t, Retryable(err))
		})
	}

	_, err := f.inbox.ListWithStatus(ctx, "")
	assert.ErrorIs(t, err, ErrValidation)
	_, err = f.checklist.CountUnacknowledged(ctx, "")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestAcknowledge_UnknownOrInactiveItem(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.addItems(t, model.ChecklistItem{ID: "c1", Label: "x"})

	_, err := f.checklist.Acknowledge(ctx, AckRequest{UserID: "u1", ItemID: "nope", Acknowledged: boolPtr(true)})
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, f.items.Deactivate(ctx, "c1"))
	_, err = f.checklist.Acknowledge(ctx, AckRequest{UserID: "u1", ItemID: "c1", Acknowledged: boolPtr(true)})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.inbox.Acknowledge(ctx, AckRequest{UserID: "u1", ItemID: "nope"})
	assert.ErrorIs(t, err, ErrNotFound)

	cnt, err := f.acks.Count(ctx, "u1", catalog.KindChecklist, "nope")
	require.NoError(t, err)
	assert.Zero(t, cnt)
}

func TestDeactivate_KeepsAcknowledgmentHistory(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.addItems(t,
		model.ChecklistItem{ID: "c1", Label: "x", SortOrder: 1},
		model.ChecklistItem{ID: "c2", Label: "y", SortOrder: 2},
	)
	_, err := f.checklist.Acknowledge(ctx, AckRequest{UserID: "u1", ItemID: "c1", Acknowledged: boolPtr(true)})
	require.NoError(t, err)

	require.NoError(t, f.items.Deactivate(ctx, "c1"))

	entries, err := f.checklist.ListWithStatus(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "c2", entries[0].Item.ID)
	n, err := f.checklist.CountUnacknowledged(ctx, "u1")
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	cnt, err := f.acks.Count(ctx, "u1", catalog.KindChecklist, "c1")
	require.NoError(t, err)
	assert.EqualValues(t, 1, cnt)

	require.NoError(t, f.items.Reactivate(ctx, "c1"))
	entries, err = f.checklist.ListWithStatus(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.True(t, entries[0].Acknowledged)
}

func TestUnknownUserSeesEverythingUnacknowledged(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.addMessages(t,
		model.Message{ID: "m1", Title: "a", CreatedAt: epoch},
		model.Message{ID: "m2", Title: "b", CreatedAt: epoch.Add(time.Minute)},
		model.Message{ID: "m3", Title: "c", CreatedAt: epoch.Add(2 * time.Minute)},
	)

	n, err := f.inbox.CountUnacknowledged(ctx, "never-seen")
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)

	entries, err := f.inbox.ListWithStatus(ctx, "never-seen")
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, []string{"m3", "m2", "m1"}, []string{entries[0].Item.ID, entries[1].Item.ID, entries[2].Item.ID})
}

func TestEmptyCatalog(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	entries, err := f.checklist.ListWithStatus(ctx, "u1")
	require.NoError(t, err)
	assert.NotNil(t, entries)
	assert.Empty(t, entries)

	n, err := f.checklist.CountUnacknowledged(ctx, "u1")
	require.NoError(t, err)
	assert.Zero(t, n)

	written, err := f.checklist.AcknowledgeAll(ctx, "u1")
	require.NoError(t, err)
	assert.Zero(t, written)
}

// The test store runs on one connection, so the writers are serialized at the
// pool and each one after the first takes the ON CONFLICT path. Real
// in-store contention is exercised against postgres by cmd/ackbench.
func TestConcurrentFirstWritesCollapse(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.addMessages(t, model.Message{ID: "m1", Title: "race"})
	f.addItems(t, model.ChecklistItem{ID: "c1", Label: "race"})

	const workers = 16
	var wg sync.WaitGroup
	errs := make(chan error, 2*workers)
	for i := 0; i < workers; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := f.inbox.Acknowledge(ctx, AckRequest{UserID: "u1", ItemID: "m1"})
			errs <- err
		}()
		go func() {
			defer wg.Done()
			_, err := f.checklist.Acknowledge(ctx, AckRequest{UserID: "u1", ItemID: "c1", Acknowledged: boolPtr(true)})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	cnt, err := f.acks.Count(ctx, "u1", catalog.KindMessage, "m1")
	require.NoError(t, err)
	assert.EqualValues(t, 1, cnt)
	cnt, err = f.acks.Count(ctx, "u1", catalog.KindChecklist, "c1")
	require.NoError(t, err)
	assert.EqualValues(t, 1, cnt)
}

func TestGet(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.addMessages(t, model.Message{ID: "m1", Title: "hello"})

	e, err := f.inbox.Get(ctx, "u1", "m1")
	require.NoError(t, err)
	assert.Equal(t, "hello", e.Item.Title)
	assert.False(t, e.Acknowledged)

	_, err = f.inbox.Get(ctx, "u1", "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAcknowledgeAll(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.addMessages(t,
		model.Message{ID: "m1", Title: "a", CreatedAt: epoch},
		model.Message{ID: "m2", Title: "b", CreatedAt: epoch.Add(time.Minute)},
		model.Message{ID: "m3", Title: "c", CreatedAt: epoch.Add(2 * time.Minute)},
	)
	first, err := f.inbox.Acknowledge(ctx, AckRequest{UserID: "u1", ItemID: "m2"})
	require.NoError(t, err)

	f.clock.Advance(time.Hour)
	n, err := f.inbox.AcknowledgeAll(ctx, "u1")
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	count, err := f.inbox.CountUnacknowledged(ctx, "u1")
	require.NoError(t, err)
	assert.Zero(t, count)

	m2, err := f.acks.Find(ctx, "u1", catalog.KindMessage, "m2")
	require.NoError(t, err)
	assert.True(t, first.AcknowledgedAt.Equal(*m2.AcknowledgedAt))

	m1, err := f.acks.Find(ctx, "u1", catalog.KindMessage, "m1")
	require.NoError(t, err)
	assert.True(t, epoch.Add(time.Hour).Equal(*m1.AcknowledgedAt))

	n, err = f.inbox.AcknowledgeAll(ctx, "u1")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestAcknowledgeAll_ChecklistRestoresClearedRows(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.addItems(t,
		model.ChecklistItem{ID: "c1", Label: "x", SortOrder: 1},
		model.ChecklistItem{ID: "c2", Label: "y", SortOrder: 2},
	)
	_, err := f.checklist.Acknowledge(ctx, AckRequest{UserID: "u1", ItemID: "c1", Acknowledged: boolPtr(false)})
	require.NoError(t, err)

	n, err := f.checklist.AcknowledgeAll(ctx, "u1")
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	c1, err := f.acks.Find(ctx, "u1", catalog.KindChecklist, "c1")
	require.NoError(t, err)
	assert.True(t, c1.Acknowledged)
	assert.True(t, c1.Consistent())
}

func TestStoreUnavailable(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.addItems(t, model.ChecklistItem{ID: "c1", Label: "x"})

	sqlDB, err := f.db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	_, err = f.checklist.ListWithStatus(ctx, "u1")
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	assert.True(t, Retryable(err))

	_, err = f.checklist.CountUnacknowledged(ctx, "u1")
	assert.ErrorIs(t, err, ErrStoreUnavailable)

	_, err = f.checklist.Acknowledge(ctx, AckRequest{UserID: "u1", ItemID: "c1", Acknowledged: boolPtr(true)})
	assert.ErrorIs(t, err, ErrStoreUnavailable)
}

func TestCountCache_ServesAndInvalidates(t *testing.T) {
	mr, rdb := testutil.NewRedis(t)
	cc := cache.NewCountCache(rdb, time.Minute)
	f := newFixture(t, cc)
	ctx := context.Background()
	f.addItems(t,
		model.ChecklistItem{ID: "c1", Label: "x", SortOrder: 1},
		model.ChecklistItem{ID: "c2", Label: "y", SortOrder: 2},
	)

	n, err := f.checklist.CountUnacknowledged(ctx, "u1")
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
	n, err = f.checklist.CountUnacknowledged(ctx, "u1")
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
	hits, misses := cc.Counters()
	assert.EqualValues(t, 1, hits)
	assert.EqualValues(t, 1, misses)

	_, err = f.checklist.Acknowledge(ctx, AckRequest{UserID: "u1", ItemID: "c1", Acknowledged: boolPtr(true)})
	require.NoError(t, err)
	n, err = f.checklist.CountUnacknowledged(ctx, "u1")
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	f.addItems(t, model.ChecklistItem{ID: "c3", Label: "z", SortOrder: 3})
	n, err = f.checklist.CountUnacknowledged(ctx, "u1")
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	require.NoError(t, f.items.Deactivate(ctx, "c2"))
	n, err = f.checklist.CountUnacknowledged(ctx, "u1")
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	// Redis going away falls back to the store.
	mr.Close()
	n, err = f.checklist.CountUnacknowledged(ctx, "u1")
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestCatalogService_Create(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	err := f.items.Create(ctx, &model.ChecklistItem{Label: "no id"})
	assert.ErrorIs(t, err, ErrValidation)
	assert.ErrorIs(t, f.items.Create(ctx, nil), ErrValidation)

	require.NoError(t, f.items.Create(ctx, &model.ChecklistItem{ID: "c2", Label: "b", SortOrder: 2}))
	require.NoError(t, f.items.Create(ctx, &model.ChecklistItem{ID: "c1", Label: "a", SortOrder: 1}))
	items, err := f.items.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "c1", items[0].ID)

	assert.ErrorIs(t, f.items.Deactivate(ctx, "missing"), ErrNotFound)
	assert.ErrorIs(t, f.items.Deactivate(ctx, ""), ErrValidation)
}

// gatedCounts holds the first CountUnacknowledged call until release is closed.
// With snapshot set, that call reads the store before it blocks.
type gatedCounts struct {
	repository.CatalogRepository[model.ChecklistItem]
	snapshot bool
	entered  chan struct{}
	release  chan struct{}
	once     sync.Once
}

func newGatedCounts(inner repository.CatalogRepository[model.ChecklistItem], snapshot bool) *gatedCounts {
	return &gatedCounts{CatalogRepository: inner, snapshot: snapshot, entered: make(chan struct{}), release: make(chan struct{})}
}

func (g *gatedCounts) CountUnacknowledged(ctx context.Context, userID string) (int64, error) {
	first := false
	g.once.Do(func() { first = true })
	if !first {
		return g.CatalogRepository.CountUnacknowledged(ctx, userID)
	}
	if g.snapshot {
		n, err := g.CatalogRepository.CountUnacknowledged(ctx, userID)
		close(g.entered)
		<-g.release
		return n, err
	}
	close(g.entered)
	<-g.release
	return g.CatalogRepository.CountUnacknowledged(ctx, userID)
}

func newGatedChecklist(t *testing.T, snapshot bool) (*OverlayService[model.ChecklistItem], *gatedCounts) {
	t.Helper()
	db := testutil.NewDB(t)
	_, rdb := testutil.NewRedis(t)
	cc := cache.NewCountCache(rdb, time.Minute)
	base := repository.NewCatalogRepository[model.ChecklistItem](db, catalog.Checklist)
	items := NewCatalogService(base, cc)
	ctx := context.Background()
	require.NoError(t, items.Create(ctx, &model.ChecklistItem{ID: "A", Label: "a", SortOrder: 1}))
	require.NoError(t, items.Create(ctx, &model.ChecklistItem{ID: "B", Label: "b", SortOrder: 2}))

	gated := newGatedCounts(base, snapshot)
	return NewOverlayService[model.ChecklistItem](gated, repository.NewAcknowledgmentRepository(db), cc), gated
}

func TestCountAfterAcknowledgeIgnoresEarlierFill(t *testing.T) {
	svc, gated := newGatedChecklist(t, true)
	ctx := context.Background()

	earlier := make(chan int64, 1)
	go func() {
		n, _ := svc.CountUnacknowledged(ctx, "u1")
		earlier <- n
	}()
	<-gated.entered

	_, err := svc.Acknowledge(ctx, AckRequest{UserID: "u1", ItemID: "B", Acknowledged: boolPtr(true)})
	require.NoError(t, err)

	n, err := svc.CountUnacknowledged(ctx, "u1")
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	close(gated.release)
	assert.EqualValues(t, 2, <-earlier)

	// the earlier fill was stored under the superseded stamp
	n, err = svc.CountUnacknowledged(ctx, "u1")
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestCountFillSurvivesCancelledCaller(t *testing.T) {
	svc, gated := newGatedChecklist(t, false)

	ctxA, cancelA := context.WithCancel(context.Background())
	defer cancelA()
	errA := make(chan error, 1)
	go func() {
		_, err := svc.CountUnacknowledged(ctxA, "u1")
		errA <- err
	}()
	<-gated.entered

	type result struct {
		n   int64
		err error
	}
	resB := make(chan result, 1)
	go func() {
		n, err := svc.CountUnacknowledged(context.Background(), "u1")
		resB <- result{n, err}
	}()
	// give B time to join the in-flight fill
	time.Sleep(20 * time.Millisecond)

	cancelA()
	assert.ErrorIs(t, <-errA, context.Canceled)

	close(gated.release)
	b := <-resB
	require.NoError(t, b.err)
	assert.EqualValues(t, 2, b.n)
}
