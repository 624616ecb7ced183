package app

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/ashureev/sparkweek/internal/domain"
	"github.com/ashureev/sparkweek/internal/profile"
	"github.com/ashureev/sparkweek/internal/relay"
)

var (
	// ErrEmptyMessage is returned for blank user input. No relay call is made.
	ErrEmptyMessage = errors.New("message is empty")
	// ErrDiscoveryClosed is returned when the discovery session has ended.
	ErrDiscoveryClosed = errors.New("discovery session closed")
)

// Conversation produces free-text replies.
type Conversation interface {
	Converse(ctx context.Context, system string, history []domain.Message, text string) string
}

// ProfileExtractor turns a transcript into a profile when it can.
type ProfileExtractor interface {
	Extract(ctx context.Context, transcript []domain.Message) (*domain.UserProfile, bool)
}

// TaskHandle ties a background extraction to the session that started it.
// Once invalidated, the task's result is dropped.
type TaskHandle struct {
	ctx    context.Context
	cancel context.CancelFunc
	valid  atomic.Bool
}

func newTaskHandle() *TaskHandle {
	ctx, cancel := context.WithCancel(context.Background())
	h := &TaskHandle{ctx: ctx, cancel: cancel}
	h.valid.Store(true)
	return h
}

// Valid reports whether the task's result may still be applied.
func (h *TaskHandle) Valid() bool { return h.valid.Load() }

// Invalidate drops the task's result and cancels its relay call.
func (h *TaskHandle) Invalidate() {
	h.valid.Store(false)
	h.cancel()
}

// DiscoveryConfig wires a discovery session.
type DiscoveryConfig struct {
	Relay       Conversation
	Extractor   ProfileExtractor
	MinMessages int
	// OnAccept receives the first accepted profile. It runs on the extraction
	// goroutine and must not call Close on this session.
	OnAccept func(*domain.UserProfile)
	// OnTyping is called with true before each relay call and false after.
	OnTyping func(bool)
}

// Discovery is one profile-building conversation.
type Discovery struct {
	cfg DiscoveryConfig

	sendMu sync.Mutex // serializes turns

	mu         sync.Mutex
	transcript domain.Transcript
	typing     bool
	closed     bool
	handles    []*TaskHandle

	wg      sync.WaitGroup
	running atomic.Int32
}

// NewDiscovery starts a conversation seeded with the greeting.
func NewDiscovery(cfg DiscoveryConfig) *Discovery {
	if cfg.MinMessages <= 0 {
		cfg.MinMessages = profile.DefaultMinMessages
	}
	return &Discovery{
		cfg: cfg,
		transcript: domain.Transcript{
			domain.NewMessage(domain.RoleAssistant, relay.Greeting, domain.TagNone),
		},
	}
}

// Transcript returns a copy of the conversation so far.
func (d *Discovery) Transcript() domain.Transcript {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.transcript.Clone()
}

// Typing reports whether a reply is being generated.
func (d *Discovery) Typing() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.typing
}

// Closed reports whether the session has ended.
func (d *Discovery) Closed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

// Send appends the user's message, waits for the reply, appends it, and may
// start a background extraction. Blank input is rejected before anything
// else happens.
func (d *Discovery) Send(ctx context.Context, text string) (domain.Message, error) {
	if strings.TrimSpace(text) == "" {
		return domain.Message{}, ErrEmptyMessage
	}

	d.sendMu.Lock()
	defer d.sendMu.Unlock()

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return domain.Message{}, ErrDiscoveryClosed
	}
	history := d.transcript.Clone()
	d.transcript = append(d.transcript, domain.NewMessage(domain.RoleUser, text, domain.TagNone))
	d.mu.Unlock()

	reply := domain.NewMessage(domain.RoleAssistant, d.converse(ctx, history, text), domain.TagNone)

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return domain.Message{}, ErrDiscoveryClosed
	}
	d.transcript = append(d.transcript, reply)
	if profile.ShouldAttemptExtraction(d.transcript, d.cfg.MinMessages) && d.cfg.Extractor != nil {
		d.startExtractionLocked(d.transcript.Clone())
	}
	return reply, nil
}

func (d *Discovery) converse(ctx context.Context, history []domain.Message, text string) string {
	d.setTyping(true)
	defer d.setTyping(false)
	return d.cfg.Relay.Converse(ctx, relay.DiscoveryInstruction, history, text)
}

func (d *Discovery) setTyping(on bool) {
	d.mu.Lock()
	d.typing = on
	d.mu.Unlock()
	if d.cfg.OnTyping != nil {
		d.cfg.OnTyping(on)
	}
}

func (d *Discovery) startExtractionLocked(snapshot []domain.Message) {
	h := newTaskHandle()
	d.handles = append(d.handles, h)
	d.wg.Add(1)
	d.running.Add(1)
	go d.runExtraction(h, snapshot)
}

func (d *Discovery) runExtraction(h *TaskHandle, snapshot []domain.Message) {
	defer d.wg.Done()
	defer d.running.Add(-1)
	defer h.cancel()

	p, ok := d.cfg.Extractor.Extract(h.ctx, snapshot)
	if !ok {
		return
	}

	d.mu.Lock()
	if d.closed || !h.Valid() {
		d.mu.Unlock()
		slog.Debug("Dropping late profile extraction")
		return
	}
	// The first accepted profile ends the conversation.
	d.closed = true
	d.invalidateLocked()
	d.mu.Unlock()

	if d.cfg.OnAccept != nil {
		d.cfg.OnAccept(p)
	}
}

// invalidate ends the session without waiting for background work.
func (d *Discovery) invalidate() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	d.invalidateLocked()
}

func (d *Discovery) invalidateLocked() {
	for _, h := range d.handles {
		h.Invalidate()
	}
	d.handles = nil
}

func (d *Discovery) idle() bool { return d.running.Load() == 0 }

// Close ends the session and waits for background extractions to finish.
// Results that arrive after Close begins are dropped.
func (d *Discovery) Close() {
	d.invalidate()
	d.wg.Wait()
}
