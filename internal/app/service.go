package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ashureev/sparkweek/internal/catalog"
	"github.com/ashureev/sparkweek/internal/domain"
	"github.com/ashureev/sparkweek/internal/profile"
	"github.com/ashureev/sparkweek/internal/store"
	"github.com/ashureev/sparkweek/internal/tier"
	"github.com/samber/lo"
)

var (
	// ErrNoProfile is returned by operations that need a stored profile.
	ErrNoProfile = errors.New("no profile")
	// ErrNoDiscovery is returned when a tab has no open discovery session.
	ErrNoDiscovery = errors.New("no discovery session")
)

// Assembler builds a weekly package for a profile.
type Assembler interface {
	Assemble(p *domain.UserProfile) *domain.WeeklyPackage
}

// Catalog is the read side of the experience catalog the service needs.
type Catalog interface {
	Has(id string) bool
}

// Config wires a Service.
type Config struct {
	Store       store.Store
	Catalog     Catalog
	Assembler   Assembler
	Relay       Conversation
	Extractor   ProfileExtractor
	Hub         *Hub
	MinMessages int
	Now         func() time.Time
}

type sessionKey struct {
	userID    string
	sessionID string
}

// Service applies user actions to per-user state and persists the results.
// State for a user is loaded lazily from the store and cached.
type Service struct {
	cfg Config

	mu          sync.Mutex
	states      map[string]State
	discoveries map[sessionKey]*Discovery
	retired     map[string][]*Discovery
}

// NewService creates a service.
func NewService(cfg Config) *Service {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Hub == nil {
		cfg.Hub = NewHub()
	}
	if cfg.MinMessages <= 0 {
		cfg.MinMessages = profile.DefaultMinMessages
	}
	return &Service{
		cfg:         cfg,
		states:      make(map[string]State),
		discoveries: make(map[sessionKey]*Discovery),
		retired:     make(map[string][]*Discovery),
	}
}

// Hub returns the notification hub.
func (s *Service) Hub() *Hub { return s.cfg.Hub }

// Init reloads a user's state from the store. No stored profile shows the
// landing screen; otherwise the dashboard.
func (s *Service) Init(ctx context.Context, userID string) (State, error) {
	p, err := s.cfg.Store.LoadProfile(ctx, userID)
	if err != nil {
		return State{}, fmt.Errorf("failed to load profile: %w", err)
	}
	var pkg *domain.WeeklyPackage
	if p != nil {
		if pkg, err = s.cfg.Store.LoadPackage(ctx, userID); err != nil {
			return State{}, fmt.Errorf("failed to load package: %w", err)
		}
	}
	return s.apply(userID, Restored{Profile: p, Package: pkg}), nil
}

// Snapshot returns the cached state, loading it on first use.
func (s *Service) Snapshot(ctx context.Context, userID string) (State, error) {
	s.mu.Lock()
	st, ok := s.states[userID]
	if ok {
		st = s.expireLocked(st)
		s.states[userID] = st
	}
	s.mu.Unlock()
	if ok {
		return st, nil
	}
	return s.Init(ctx, userID)
}

// Start opens a fresh discovery chat for the tab.
func (s *Service) Start(ctx context.Context, userID, sessionID string) (State, *Discovery, error) {
	if _, err := s.Snapshot(ctx, userID); err != nil {
		return State{}, nil, err
	}
	d := s.openDiscovery(userID, sessionID)
	return s.apply(userID, Started{}), d, nil
}

// Discovery returns the tab's open discovery session.
func (s *Service) Discovery(userID, sessionID string) (*Discovery, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.discoveries[sessionKey{userID, sessionID}]
	if !ok || d.Closed() {
		return nil, ErrNoDiscovery
	}
	return d, nil
}

// SendMessage sends a discovery chat message for the tab.
func (s *Service) SendMessage(ctx context.Context, userID, sessionID, text string) (domain.Message, error) {
	d, err := s.Discovery(userID, sessionID)
	if err != nil {
		return domain.Message{}, err
	}
	return d.Send(ctx, text)
}

// SkipDiscovery installs the canned profile without a conversation.
func (s *Service) SkipDiscovery(ctx context.Context, userID string) (State, error) {
	s.closeDiscoveries(userID)
	return s.CompleteProfile(ctx, userID, profile.CannedProfile(s.cfg.Now()))
}

// CompleteProfile assembles a package for p, saves both, and shows the
// dashboard.
func (s *Service) CompleteProfile(ctx context.Context, userID string, p *domain.UserProfile) (State, error) {
	pkg := s.cfg.Assembler.Assemble(p)
	if err := s.cfg.Store.SaveProfile(ctx, userID, p); err != nil {
		return State{}, fmt.Errorf("failed to save profile: %w", err)
	}
	if err := s.cfg.Store.SavePackage(ctx, userID, pkg); err != nil {
		return State{}, fmt.Errorf("failed to save package: %w", err)
	}
	st := s.apply(userID, ProfileCompleted{Profile: p, Package: pkg})
	s.cfg.Hub.Publish(userID, Notification{Type: NotifyProfileReady, State: &st})
	slog.Info("Profile completed", "user_id", userID, "profile_id", p.ID, "experiences", len(pkg.Experiences))
	return st, nil
}

// RenewWeek assembles a new package for the existing profile. The profile
// is kept as is.
func (s *Service) RenewWeek(ctx context.Context, userID string) (State, error) {
	st, err := s.Snapshot(ctx, userID)
	if err != nil {
		return State{}, err
	}
	if st.Profile == nil {
		return State{}, ErrNoProfile
	}
	pkg := s.cfg.Assembler.Assemble(st.Profile)
	if err := s.cfg.Store.SavePackage(ctx, userID, pkg); err != nil {
		return State{}, fmt.Errorf("failed to save package: %w", err)
	}
	return s.apply(userID, WeekRenewed{Package: pkg}), nil
}

// Rediscover discards the profile and package and reopens the chat, so the
// next profile is built from a new conversation.
func (s *Service) Rediscover(ctx context.Context, userID, sessionID string) (State, *Discovery, error) {
	s.closeDiscoveries(userID)
	if err := s.cfg.Store.Clear(ctx, userID); err != nil {
		return State{}, nil, fmt.Errorf("failed to clear state: %w", err)
	}
	d := s.openDiscovery(userID, sessionID)
	return s.apply(userID, Rediscovered{}), d, nil
}

// SelectExperience opens an experience that exists in the catalog.
func (s *Service) SelectExperience(ctx context.Context, userID, experienceID string) (State, error) {
	st, err := s.Snapshot(ctx, userID)
	if err != nil {
		return State{}, err
	}
	if st.Profile == nil {
		return State{}, ErrNoProfile
	}
	if !s.cfg.Catalog.Has(experienceID) {
		return State{}, fmt.Errorf("%w: %s", catalog.ErrNotFound, experienceID)
	}
	return s.apply(userID, ExperienceSelected{ID: experienceID}), nil
}

// BackToDashboard leaves the experience view.
func (s *Service) BackToDashboard(ctx context.Context, userID string) (State, error) {
	st, err := s.Snapshot(ctx, userID)
	if err != nil {
		return State{}, err
	}
	if st.Profile == nil {
		return State{}, ErrNoProfile
	}
	return s.apply(userID, BackToDashboard{}), nil
}

// Upgrade moves the user to premium.
func (s *Service) Upgrade(ctx context.Context, userID string) (State, error) {
	p, err := tier.Upgrade(ctx, s.cfg.Store, userID)
	if errors.Is(err, tier.ErrNoProfile) {
		return State{}, ErrNoProfile
	}
	if err != nil {
		return State{}, err
	}
	if _, err := s.Snapshot(ctx, userID); err != nil {
		return State{}, err
	}
	slog.Info("User upgraded", "user_id", userID)
	return s.apply(userID, Upgraded{Profile: p}), nil
}

// Logout clears both stored blobs unconditionally and returns to landing.
func (s *Service) Logout(ctx context.Context, userID string) (State, error) {
	s.closeDiscoveries(userID)
	if err := s.cfg.Store.Clear(ctx, userID); err != nil {
		return State{}, fmt.Errorf("failed to clear state: %w", err)
	}
	return s.apply(userID, LoggedOut{}), nil
}

// Close ends every discovery session and waits for background work.
func (s *Service) Close() {
	s.mu.Lock()
	var all []*Discovery
	for userID, ds := range s.retired {
		all = append(all, ds...)
		delete(s.retired, userID)
	}
	for key, d := range s.discoveries {
		all = append(all, d)
		delete(s.discoveries, key)
	}
	s.mu.Unlock()

	for _, d := range all {
		d.Close()
	}
}

func (s *Service) apply(userID string, e Event) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.expireLocked(Reduce(s.states[userID], e))
	s.states[userID] = st
	return st
}

// expireLocked marks a cached package expired once its window has ended,
// matching what the expiry sweep writes to the store.
func (s *Service) expireLocked(st State) State {
	pkg := st.Package
	if pkg == nil || pkg.Status != domain.PackageActive || !pkg.IsExpired(s.cfg.Now()) {
		return st
	}
	expired := *pkg
	expired.Status = domain.PackageExpired
	st.Package = &expired
	return st
}

func (s *Service) openDiscovery(userID, sessionID string) *Discovery {
	key := sessionKey{userID, sessionID}

	d := NewDiscovery(DiscoveryConfig{
		Relay:       s.cfg.Relay,
		Extractor:   s.cfg.Extractor,
		MinMessages: s.cfg.MinMessages,
		OnTyping: func(on bool) {
			s.cfg.Hub.Publish(userID, Notification{Type: NotifyTyping, SessionID: sessionID, Typing: on})
		},
		OnAccept: func(p *domain.UserProfile) {
			s.retireDiscoveries(userID)
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if _, err := s.CompleteProfile(ctx, userID, p); err != nil {
				slog.Error("Failed to complete profile from discovery", "user_id", userID, "error", err)
			}
		},
	})

	s.mu.Lock()
	prev := s.discoveries[key]
	s.discoveries[key] = d
	s.mu.Unlock()

	if prev != nil {
		prev.Close()
	}
	return d
}

// retireDiscoveries detaches and invalidates a user's sessions without
// waiting. It is safe to call from an accept callback.
func (s *Service) retireDiscoveries(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, d := range s.discoveries {
		if key.userID != userID {
			continue
		}
		d.invalidate()
		s.retired[userID] = append(s.retired[userID], d)
		delete(s.discoveries, key)
	}
	busy := lo.Reject(s.retired[userID], func(d *Discovery, _ int) bool { return d.idle() })
	if len(busy) == 0 {
		delete(s.retired, userID)
		return
	}
	s.retired[userID] = busy
}

// closeDiscoveries detaches a user's sessions, including retired ones that
// may still be saving an accepted profile, and waits for them to stop.
func (s *Service) closeDiscoveries(userID string) {
	s.mu.Lock()
	closing := s.retired[userID]
	delete(s.retired, userID)
	for key, d := range s.discoveries {
		if key.userID == userID {
			closing = append(closing, d)
			delete(s.discoveries, key)
		}
	}
	s.mu.Unlock()

	for _, d := range closing {
		d.Close()
	}
}
