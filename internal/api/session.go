package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/ashureev/sparkweek/internal/app"
	"github.com/ashureev/sparkweek/internal/domain"
	"github.com/ashureev/sparkweek/internal/identity"
	"github.com/ashureev/sparkweek/internal/progression"
	"github.com/ashureev/sparkweek/internal/relay"
	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
)

const sessionWriteTimeout = 5 * time.Second

// Client commands on an experience socket.
const (
	CmdStart        = "start"
	CmdAdvance      = "advance"
	CmdRetreat      = "retreat"
	CmdToggle       = "toggle"
	CmdComplete     = "complete"
	CmdHint         = "hint"
	CmdGuide        = "guide"
	CmdDismissGuide = "dismiss_guide"
	CmdMessage      = "message"
	CmdExit         = "exit"
	CmdPing         = "ping"
)

// Server event types on an experience socket.
const (
	EventState   = "state"
	EventMessage = "message"
	EventTyping  = "typing"
	EventPong    = "pong"
	EventError   = "error"
)

var errGuidancePending = errors.New("a reply is already on its way")

// SessionCommand is a client message on an experience socket.
type SessionCommand struct {
	Type    string           `json:"type"`
	Mode    progression.Mode `json:"mode,omitempty"`
	StepID  string           `json:"step_id,omitempty"`
	Content string           `json:"content,omitempty"`
}

// SessionEvent is a server message on an experience socket.
type SessionEvent struct {
	Type       string                    `json:"type"`
	Command    string                    `json:"command,omitempty"`
	Transition *progression.Transition   `json:"transition,omitempty"`
	Messages   []domain.Message          `json:"messages,omitempty"`
	Attempt    *AttemptView              `json:"attempt,omitempty"`
	Hint       *progression.Hint         `json:"hint,omitempty"`
	Help       *progression.DetailedHelp `json:"help,omitempty"`
	Typing     *bool                     `json:"typing,omitempty"`
	Error      string                    `json:"error,omitempty"`
}

// AttemptView is the client-facing snapshot of an attempt.
type AttemptView struct {
	ExperienceID string              `json:"experience_id"`
	Stage        progression.Stage   `json:"stage"`
	Mode         progression.Mode    `json:"mode,omitempty"`
	Progress     int                 `json:"progress"`
	TotalSteps   int                 `json:"total_steps"`
	StepNumber   int                 `json:"step_number,omitempty"`
	Cursor       *progression.Cursor `json:"cursor,omitempty"`
	Step         *domain.Step        `json:"step,omitempty"`
	Phase        *PhaseView          `json:"phase,omitempty"`
	Completed    []string            `json:"completed_steps,omitempty"`
	CanComplete  bool                `json:"can_complete"`
}

// PhaseView names the phase containing the current step.
type PhaseView struct {
	ID     string `json:"id"`
	Number int    `json:"phase_number"`
	Title  string `json:"title"`
}

func viewOf(a *progression.Attempt) *AttemptView {
	v := &AttemptView{
		ExperienceID: a.Experience().ID,
		Stage:        a.Stage(),
		Mode:         a.Mode(),
		Progress:     a.Progress(),
		TotalSteps:   a.TotalSteps(),
		StepNumber:   a.StepNumber(),
	}
	if c, ok := a.Cursor(); ok {
		v.Cursor = &c
		if step, ok := a.CurrentStep(); ok {
			v.Step = step
		}
		if phase, ok := a.PhaseOf(c.Index); ok {
			v.Phase = &PhaseView{ID: phase.ID, Number: phase.Number, Title: phase.Title}
		}
	}
	if cl, ok := a.Checklist(); ok {
		v.Completed = cl.Completed()
		v.CanComplete = a.CanComplete()
	}
	return v
}

// experienceSession is one socket driving one attempt. The attempt lives only
// as long as the socket.
type experienceSession struct {
	h         *Handler
	conn      *websocket.Conn
	userID    string
	sessionID string

	mu         sync.Mutex
	attempt    *progression.Attempt
	transcript domain.Transcript
	// generation changes whenever the step changes, so guidance replies
	// for a step the user has left are dropped.
	generation int
	pending    bool

	wg sync.WaitGroup
}

// ExperienceSession upgrades GET /ws/experiences/{id} to a WebSocket that
// drives a single progression attempt.
func (h *Handler) ExperienceSession(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	sessionID := identity.SessionIDFromContext(r.Context())

	exp, err := h.catalog.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err, userID)
		return
	}
	if !h.originAllowed(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err, "user_id", userID)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "session ended"); closeErr != nil {
			slog.Debug("Failed to close websocket", "error", closeErr, "user_id", userID)
		}
	}()
	ws.SetReadLimit(h.opts.MaxRequestBodySize)

	ctx, cancel := context.WithCancel(r.Context())
	s := &experienceSession{
		h:         h,
		conn:      ws,
		userID:    userID,
		sessionID: sessionID,
		attempt:   progression.NewAttempt(exp),
	}
	defer func() {
		cancel()
		s.wg.Wait()
	}()

	slog.Info("Experience session opened", "user_id", userID, "session_id", sessionID, "experience_id", exp.ID, "ip", identity.IPFromRequest(r))
	defer slog.Info("Experience session closed", "user_id", userID, "experience_id", exp.ID)

	s.mu.Lock()
	hello := s.stateLocked("")
	s.mu.Unlock()
	s.send(ctx, hello)

	for {
		_, data, err := ws.Read(ctx)
		if err != nil {
			if status := websocket.CloseStatus(err); status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway && ctx.Err() == nil {
				slog.Debug("WebSocket read ended", "error", err, "user_id", userID)
			}
			return
		}

		var cmd SessionCommand
		if err := json.Unmarshal(data, &cmd); err != nil {
			s.send(ctx, SessionEvent{Type: EventError, Error: "invalid command"})
			continue
		}
		s.handle(ctx, cmd)
	}
}

func (s *experienceSession) handle(ctx context.Context, cmd SessionCommand) {
	switch cmd.Type {
	case CmdPing:
		s.send(ctx, SessionEvent{Type: EventPong})
	case CmdStart:
		s.start(ctx, cmd)
	case CmdMessage:
		s.message(ctx, cmd)
	case CmdAdvance, CmdRetreat, CmdToggle, CmdComplete, CmdHint, CmdGuide, CmdDismissGuide, CmdExit:
		s.mu.Lock()
		ev, err := s.navigateLocked(cmd)
		if err != nil {
			ev = s.errorLocked(cmd.Type, err)
		}
		s.mu.Unlock()
		s.send(ctx, ev)
	default:
		s.send(ctx, SessionEvent{Type: EventError, Command: cmd.Type, Error: "unknown command"})
	}
}

// start enters the attempt through the tier gate using the freshest profile,
// so an upgrade made in another tab applies.
func (s *experienceSession) start(ctx context.Context, cmd SessionCommand) {
	st, err := s.h.svc.Snapshot(ctx, s.userID)
	if err == nil && st.Profile == nil {
		err = app.ErrNoProfile
	}

	s.mu.Lock()
	ev := s.startLocked(cmd, st.Profile, err)
	s.mu.Unlock()
	s.send(ctx, ev)
}

func (s *experienceSession) startLocked(cmd SessionCommand, p *domain.UserProfile, err error) SessionEvent {
	if err != nil {
		return s.errorLocked(cmd.Type, err)
	}

	if cmd.Mode == "" {
		_, err = s.h.gate.Enter(s.attempt, p)
	} else {
		err = s.h.gate.EnterMode(s.attempt, p, cmd.Mode)
	}
	if err != nil {
		return s.errorLocked(cmd.Type, err)
	}

	ev := s.stateLocked(cmd.Type)
	ev.Messages = s.enterStepLocked()
	slog.Info("Experience started", "user_id", s.userID, "experience_id", s.attempt.Experience().ID, "mode", s.attempt.Mode())
	return ev
}

// navigateLocked applies a synchronous command to the attempt and narrates
// the result.
func (s *experienceSession) navigateLocked(cmd SessionCommand) (SessionEvent, error) {
	a := s.attempt
	var (
		tr   progression.Transition
		msgs []domain.Message
		err  error
	)

	switch cmd.Type {
	case CmdAdvance:
		wasCompleted := a.Stage() == progression.StageCompleted
		leaving, hadStep := a.CurrentStep()
		if tr, err = a.Advance(); err != nil {
			return SessionEvent{}, err
		}
		if !wasCompleted && hadStep {
			if m, ok := progression.StepDoneMessage(leaving); ok {
				msgs = append(msgs, m)
			}
		}
		if !wasCompleted {
			msgs = append(msgs, s.afterTransitionLocked(tr)...)
		}

	case CmdRetreat:
		if tr, err = a.Retreat(); err != nil {
			return SessionEvent{}, err
		}
		msgs = s.afterTransitionLocked(tr)

	case CmdToggle:
		if _, err = a.Toggle(cmd.StepID); err != nil {
			return SessionEvent{}, err
		}
		tr = progression.Transition{Event: progression.EventNone, Index: -1}

	case CmdComplete:
		wasCompleted := a.Stage() == progression.StageCompleted
		if tr, err = a.Complete(); err != nil {
			return SessionEvent{}, err
		}
		if !wasCompleted {
			msgs = s.afterTransitionLocked(tr)
		}

	case CmdHint:
		hint, err := a.RequestHint()
		if err != nil {
			return SessionEvent{}, err
		}
		ev := s.stateLocked(cmd.Type)
		ev.Hint = &hint
		if hint.Kind == progression.HintText {
			m := progression.HintMessage(hint)
			s.transcript = append(s.transcript, m)
			ev.Messages = []domain.Message{m}
		} else {
			ev.Help = hint.Help
		}
		return ev, nil

	case CmdGuide:
		help, err := a.ShowDetailedGuide()
		if err != nil {
			return SessionEvent{}, err
		}
		ev := s.stateLocked(cmd.Type)
		ev.Help = help
		return ev, nil

	case CmdDismissGuide:
		a.DismissDetailedGuide()
		return s.stateLocked(cmd.Type), nil

	case CmdExit:
		tr = a.Exit()
		msgs = s.afterTransitionLocked(tr)
	}

	ev := s.stateLocked(cmd.Type)
	ev.Transition = &tr
	ev.Messages = msgs
	return ev, nil
}

// afterTransitionLocked resets the step conversation when the step changes
// and returns the narration for where the attempt landed.
func (s *experienceSession) afterTransitionLocked(tr progression.Transition) []domain.Message {
	switch tr.Event {
	case progression.EventStepChanged:
		return s.enterStepLocked()
	case progression.EventCompleted:
		s.resetConversationLocked()
		slog.Info("Experience completed", "user_id", s.userID, "experience_id", s.attempt.Experience().ID)
		if m, ok := progression.CelebrationMessage(s.attempt.Experience()); ok {
			return []domain.Message{m}
		}
	case progression.EventExitedToOverview:
		s.resetConversationLocked()
	}
	return nil
}

// enterStepLocked starts a fresh conversation for the current step and
// returns its introduction.
func (s *experienceSession) enterStepLocked() []domain.Message {
	s.resetConversationLocked()
	step, ok := s.attempt.CurrentStep()
	if !ok {
		return nil
	}
	m, ok := progression.IntroMessage(step)
	if !ok {
		return nil
	}
	s.transcript = append(s.transcript, m)
	return []domain.Message{m}
}

func (s *experienceSession) resetConversationLocked() {
	s.generation++
	s.transcript = nil
}

// message answers a question about the current step. Messages matching a
// struggle trigger get the canned reply; everything else goes to the guide
// in the background.
func (s *experienceSession) message(ctx context.Context, cmd SessionCommand) {
	if strings.TrimSpace(cmd.Content) == "" {
		s.send(ctx, SessionEvent{Type: EventError, Command: cmd.Type, Error: app.ErrEmptyMessage.Error()})
		return
	}

	s.mu.Lock()
	step, err := s.currentMentoredStepLocked()
	if err != nil {
		ev := s.errorLocked(cmd.Type, err)
		s.mu.Unlock()
		s.send(ctx, ev)
		return
	}

	exp := s.attempt.Experience()
	userMsg := domain.NewMessage(domain.RoleUser, cmd.Content, domain.TagNone)

	if struggle, ok := progression.MatchStruggle(exp.Guidance, cmd.Content); ok {
		reply := progression.StruggleReply(struggle, step)
		s.transcript = append(s.transcript, userMsg, reply)
		ev := s.stateLocked(cmd.Type)
		ev.Messages = []domain.Message{reply}
		s.mu.Unlock()
		s.send(ctx, ev)
		return
	}

	if s.pending {
		ev := s.errorLocked(cmd.Type, errGuidancePending)
		s.mu.Unlock()
		s.send(ctx, ev)
		return
	}
	if !s.h.rateLimiter.Allow(s.userID) {
		ev := SessionEvent{Type: EventError, Command: cmd.Type, Error: "rate limit exceeded"}
		s.mu.Unlock()
		s.send(ctx, ev)
		return
	}

	history := s.transcript.Clone()
	s.transcript = append(s.transcript, userMsg)
	cursor, _ := s.attempt.Cursor()
	sc := relay.StepContext{
		Step:      step,
		Persona:   exp.Guidance.Persona,
		Tone:      exp.Guidance.Tone,
		HintLevel: cursor.HintLevel,
	}
	gen := s.generation
	s.pending = true
	s.wg.Add(1)
	s.mu.Unlock()

	on := true
	s.send(ctx, SessionEvent{Type: EventTyping, Typing: &on})

	go func() {
		defer s.wg.Done()
		reply := domain.NewMessage(domain.RoleAssistant, s.h.guide.StepGuidance(ctx, sc, history, cmd.Content), domain.TagNone)

		s.mu.Lock()
		s.pending = false
		current := gen == s.generation && ctx.Err() == nil
		if current {
			s.transcript = append(s.transcript, reply)
		}
		s.mu.Unlock()

		if ctx.Err() != nil {
			return
		}
		if current {
			s.send(ctx, SessionEvent{Type: EventMessage, Command: cmd.Type, Messages: []domain.Message{reply}})
		} else {
			slog.Debug("Dropped guidance for a step the user left", "user_id", s.userID)
		}
		off := false
		s.send(ctx, SessionEvent{Type: EventTyping, Typing: &off})
	}()
}

func (s *experienceSession) currentMentoredStepLocked() (*domain.Step, error) {
	switch s.attempt.Stage() {
	case progression.StageOverview:
		return nil, progression.ErrNotStarted
	case progression.StageCompleted:
		return nil, progression.ErrAlreadyCompleted
	}
	if s.attempt.Mode() != progression.ModeMentored {
		return nil, progression.ErrWrongMode
	}
	step, ok := s.attempt.CurrentStep()
	if !ok {
		return nil, progression.ErrNotStarted
	}
	return step, nil
}

func (s *experienceSession) stateLocked(command string) SessionEvent {
	return SessionEvent{Type: EventState, Command: command, Attempt: viewOf(s.attempt)}
}

func (s *experienceSession) errorLocked(command string, err error) SessionEvent {
	return SessionEvent{Type: EventError, Command: command, Error: err.Error(), Attempt: viewOf(s.attempt)}
}

func (s *experienceSession) send(ctx context.Context, ev SessionEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		slog.Warn("Failed to marshal session event", "error", err)
		return
	}
	ctx, cancel := context.WithTimeout(ctx, sessionWriteTimeout)
	defer cancel()
	if err := s.conn.Write(ctx, websocket.MessageText, data); err != nil {
		slog.Debug("WebSocket write error", "error", err, "user_id", s.userID)
	}
}
