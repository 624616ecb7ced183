package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ashureev/sparkweek/internal/assembly"
	"github.com/ashureev/sparkweek/internal/catalog"
	"github.com/ashureev/sparkweek/internal/domain"
	"github.com/ashureev/sparkweek/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	svc   *Service
	store *store.MemoryStore
	ex    *gatedExtractor
	cat   *catalog.Catalog
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	cat, err := catalog.Default()
	require.NoError(t, err)

	st := store.NewMemory()
	ex := newGatedExtractor(completeProfile())
	svc := NewService(Config{
		Store:     st,
		Catalog:   cat,
		Assembler: assembly.New(cat),
		Relay:     &scriptedRelay{},
		Extractor: ex,
	})
	t.Cleanup(func() {
		select {
		case <-ex.release:
		default:
			close(ex.release)
		}
		svc.Close()
	})
	return &testEnv{svc: svc, store: st, ex: ex, cat: cat}
}

func TestServiceInitWithoutProfileShowsLanding(t *testing.T) {
	env := newTestEnv(t)
	st, err := env.svc.Init(context.Background(), "device")
	require.NoError(t, err)
	assert.Equal(t, State{View: ViewLanding}, st)
}

func TestServiceSkipDiscovery(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	st, err := env.svc.SkipDiscovery(ctx, "device")
	require.NoError(t, err)
	assert.Equal(t, ViewDashboard, st.View)
	require.NotNil(t, st.Profile)
	require.NotNil(t, st.Package)
	assert.Len(t, st.Package.Experiences, 7)
	assert.Equal(t, st.Profile.ID, st.Package.UserID)

	fresh := NewService(Config{Store: env.store, Catalog: env.cat, Assembler: assembly.New(env.cat)})
	restored, err := fresh.Init(ctx, "device")
	require.NoError(t, err)
	assert.Equal(t, ViewDashboard, restored.View)
	assert.Equal(t, st.Profile.ID, restored.Profile.ID)
	assert.Equal(t, st.Package.ID, restored.Package.ID)
}

func TestServiceLogoutIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	first, err := env.svc.SkipDiscovery(ctx, "device")
	require.NoError(t, err)
	_, err = env.svc.Upgrade(ctx, "device")
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		st, err := env.svc.Logout(ctx, "device")
		require.NoError(t, err)
		assert.Equal(t, State{View: ViewLanding}, st)
	}

	st, err := env.svc.Init(ctx, "device")
	require.NoError(t, err)
	assert.Equal(t, State{View: ViewLanding}, st)

	second, err := env.svc.SkipDiscovery(ctx, "device")
	require.NoError(t, err)
	assert.NotEqual(t, first.Profile.ID, second.Profile.ID)
	assert.NotEqual(t, first.Package.ID, second.Package.ID)
	assert.Equal(t, domain.TierFree, second.Profile.Tier)
}

func TestServiceRenewWeekKeepsProfile(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.svc.RenewWeek(ctx, "device")
	assert.True(t, errors.Is(err, ErrNoProfile))

	first, err := env.svc.SkipDiscovery(ctx, "device")
	require.NoError(t, err)
	renewed, err := env.svc.RenewWeek(ctx, "device")
	require.NoError(t, err)

	assert.Equal(t, first.Profile, renewed.Profile)
	assert.NotEqual(t, first.Package.ID, renewed.Package.ID)

	stored, err := env.store.LoadPackage(ctx, "device")
	require.NoError(t, err)
	assert.Equal(t, renewed.Package.ID, stored.ID)
}

func TestServiceRediscoverClearsStore(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.svc.SkipDiscovery(ctx, "device")
	require.NoError(t, err)

	st, d, err := env.svc.Rediscover(ctx, "device", "tab")
	require.NoError(t, err)
	assert.Equal(t, State{View: ViewChat}, st)
	assert.Len(t, d.Transcript(), 1)

	p, err := env.store.LoadProfile(ctx, "device")
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestServiceSelectExperience(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.svc.SelectExperience(ctx, "device", "exp_juggle_001")
	assert.True(t, errors.Is(err, ErrNoProfile))

	_, err = env.svc.SkipDiscovery(ctx, "device")
	require.NoError(t, err)

	_, err = env.svc.SelectExperience(ctx, "device", "exp_missing")
	assert.True(t, errors.Is(err, catalog.ErrNotFound))

	st, err := env.svc.SelectExperience(ctx, "device", "exp_juggle_001")
	require.NoError(t, err)
	assert.Equal(t, ViewExperienceDetail, st.View)
	assert.Equal(t, "exp_juggle_001", st.SelectedExperienceID)

	st, err = env.svc.BackToDashboard(ctx, "device")
	require.NoError(t, err)
	assert.Equal(t, ViewDashboard, st.View)
}

func TestServiceUpgrade(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.svc.Upgrade(ctx, "device")
	assert.True(t, errors.Is(err, ErrNoProfile))

	_, err = env.svc.SkipDiscovery(ctx, "device")
	require.NoError(t, err)
	st, err := env.svc.Upgrade(ctx, "device")
	require.NoError(t, err)
	assert.True(t, st.Profile.IsPremium())

	stored, err := env.store.LoadProfile(ctx, "device")
	require.NoError(t, err)
	assert.Equal(t, domain.TierPremium, stored.Tier)
}

func TestServiceDiscoveryCompletesProfile(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	events, cancel := env.svc.Hub().Subscribe("device")
	defer cancel()

	st, _, err := env.svc.Start(ctx, "device", "tab")
	require.NoError(t, err)
	assert.Equal(t, ViewChat, st.View)

	_, err = env.svc.SendMessage(ctx, "device", "tab", "   ")
	assert.True(t, errors.Is(err, ErrEmptyMessage))

	for i := 0; i < 3; i++ {
		_, err := env.svc.SendMessage(ctx, "device", "tab", "about me")
		require.NoError(t, err)
	}
	close(env.ex.release)

	deadline := time.After(2 * time.Second)
	for {
		select {
		case n := <-events:
			if n.Type != NotifyProfileReady {
				continue
			}
			require.NotNil(t, n.State)
			assert.Equal(t, ViewDashboard, n.State.View)

			snap, err := env.svc.Snapshot(ctx, "device")
			require.NoError(t, err)
			assert.Equal(t, ViewDashboard, snap.View)

			_, err = env.svc.SendMessage(ctx, "device", "tab", "still there?")
			assert.True(t, errors.Is(err, ErrNoDiscovery))
			return
		case <-deadline:
			t.Fatal("no profile_ready notification")
		}
	}
}

func TestServiceStartReplacesTabSession(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, first, err := env.svc.Start(ctx, "device", "tab")
	require.NoError(t, err)
	_, second, err := env.svc.Start(ctx, "device", "tab")
	require.NoError(t, err)

	assert.True(t, first.Closed())
	assert.False(t, second.Closed())

	got, err := env.svc.Discovery("device", "tab")
	require.NoError(t, err)
	assert.Same(t, second, got)
}

func TestServiceSnapshotReflectsExpiredPackage(t *testing.T) {
	cat, err := catalog.Default()
	require.NoError(t, err)
	ctx := context.Background()

	now := time.Now()
	clock := now
	svc := NewService(Config{
		Store:     store.NewMemory(),
		Catalog:   cat,
		Assembler: assembly.New(cat, assembly.WithClock(func() time.Time { return now })),
		Now:       func() time.Time { return clock },
	})
	t.Cleanup(svc.Close)

	st, err := svc.SkipDiscovery(ctx, "device")
	require.NoError(t, err)
	assert.Equal(t, domain.PackageActive, st.Package.Status)

	clock = now.Add(domain.PackageDuration)
	snap, err := svc.Snapshot(ctx, "device")
	require.NoError(t, err)
	require.NotNil(t, snap.Package)
	assert.Equal(t, domain.PackageExpired, snap.Package.Status)
	assert.Equal(t, st.Package.ID, snap.Package.ID)
	assert.Equal(t, domain.PackageActive, st.Package.Status, "earlier snapshots are not mutated")

	selected, err := svc.SelectExperience(ctx, "device", st.Package.Experiences[0])
	require.NoError(t, err)
	assert.Equal(t, domain.PackageExpired, selected.Package.Status)
}

// savingStore blocks SaveProfile until released.
type savingStore struct {
	*store.MemoryStore
	entered chan struct{}
	release chan struct{}
	once    sync.Once
	unblock sync.Once
}

func (s *savingStore) Release() {
	s.unblock.Do(func() { close(s.release) })
}

func (s *savingStore) SaveProfile(ctx context.Context, userID string, p *domain.UserProfile) error {
	s.once.Do(func() { close(s.entered) })
	<-s.release
	return s.MemoryStore.SaveProfile(ctx, userID, p)
}

func TestServiceLogoutWaitsForAcceptedProfile(t *testing.T) {
	cat, err := catalog.Default()
	require.NoError(t, err)
	ctx := context.Background()

	st := &savingStore{
		MemoryStore: store.NewMemory(),
		entered:     make(chan struct{}),
		release:     make(chan struct{}),
	}
	ex := newGatedExtractor(completeProfile())
	close(ex.release)
	svc := NewService(Config{
		Store:     st,
		Catalog:   cat,
		Assembler: assembly.New(cat),
		Relay:     &scriptedRelay{},
		Extractor: ex,
	})
	t.Cleanup(svc.Close)
	t.Cleanup(st.Release)

	_, _, err = svc.Start(ctx, "device", "tab")
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err := svc.SendMessage(ctx, "device", "tab", "about me")
		require.NoError(t, err)
	}

	select {
	case <-st.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("accepted profile was never saved")
	}

	done := make(chan State, 1)
	go func() {
		out, err := svc.Logout(ctx, "device")
		assert.NoError(t, err)
		done <- out
	}()

	select {
	case <-done:
		t.Fatal("logout finished while a profile save was in flight")
	case <-time.After(50 * time.Millisecond):
	}
	st.Release()

	select {
	case out := <-done:
		assert.Equal(t, State{View: ViewLanding}, out)
	case <-time.After(2 * time.Second):
		t.Fatal("logout did not finish")
	}

	p, err := st.LoadProfile(ctx, "device")
	require.NoError(t, err)
	assert.Nil(t, p)
	pkg, err := st.LoadPackage(ctx, "device")
	require.NoError(t, err)
	assert.Nil(t, pkg)
}
