package delivery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"rsvpdash/internal/domain"
	"rsvpdash/internal/observability"
	"rsvpdash/internal/scheduler"
	"rsvpdash/internal/store"
	"rsvpdash/internal/util"
)

type Store interface {
	InsertMessages(ctx context.Context, in store.MessageInsert) ([]domain.Message, error)
	TransitionMessage(ctx context.Context, tr store.MessageTransition) (domain.Message, error)
}

// Simulator creates message records and walks each one through
// sent -> delivered -> (maybe) read on the scheduler. It owns the message
// lifecycle: nothing else should transition messages.
type Simulator struct {
	Store   Store
	Sched   scheduler.Scheduler
	Limiter *rate.Limiter
	Breaker *gobreaker.CircuitBreaker

	DeliveryLatency time.Duration
	ReadLatency     time.Duration
	ReadProbability float64

	// Rand returns values in [0, 1). Defaults to math/rand.
	Rand    func() float64
	BatchID func() string

	sendMu  sync.Mutex
	mu      sync.Mutex
	seq     uint64
	pending map[int64]pendingTransition
}

// pendingTransition is the one simulated transition a message may have
// outstanding. handle is nil until After returns.
type pendingTransition struct {
	seq    uint64
	handle scheduler.Handle
}

const transitionTimeout = 5 * time.Second

// NewBreaker trips after maxFailures consecutive store faults. Rejected
// transitions are not faults: they mean another path already moved the
// message on.
func NewBreaker(maxFailures uint32, timeout time.Duration) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "status-advance",
		MaxRequests: 1,
		Timeout:     timeout,
		ReadyToTrip: func(c gobreaker.Counts) bool { return c.ConsecutiveFailures >= maxFailures },
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, domain.ErrInvalidTransition) || errors.Is(err, domain.ErrNotFound)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
}

// Send creates one sent message per recipient in input order and returns
// them immediately. Delivery is scheduled per message through the limiter,
// so recipient i is never scheduled ahead of recipient i-1.
func (s *Simulator) Send(ctx context.Context, req domain.BulkSendRequest) (domain.SendResult, error) {
	if err := req.Validate(); err != nil {
		return domain.SendResult{}, err
	}
	if req.Type == "" {
		req.Type = domain.MessageInvitation
	}
	batchID := util.NewBatchID()
	if s.BatchID != nil {
		batchID = s.BatchID()
	}

	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	now := s.Sched.Now()
	msgs, err := s.Store.InsertMessages(ctx, store.MessageInsert{
		EventID:    req.EventID,
		BatchID:    batchID,
		Type:       req.Type,
		Recipients: req.Recipients,
		Now:        now,
	})
	if err != nil {
		return domain.SendResult{}, fmt.Errorf("insert messages: %w", err)
	}
	observability.MessagesCreated.WithLabelValues(string(req.Type)).Add(float64(len(msgs)))

	for _, m := range msgs {
		s.scheduleDelivery(m.ID, now)
	}
	slog.Info("bulk send scheduled",
		"batch_id", batchID,
		"event_id", req.EventID,
		"type", req.Type,
		"count", len(msgs),
	)
	return domain.SendResult{BatchID: batchID, Messages: msgs}, nil
}

// Apply records an authoritative status update (e.g. a provider callback).
// Any simulated transition still pending for the message is canceled first.
func (s *Simulator) Apply(ctx context.Context, id int64, to domain.MessageStatus, lastError string) (domain.Message, error) {
	if !to.Valid() || to == domain.StatusSent {
		return domain.Message{}, domain.ValidationError{Field: "status"}
	}
	s.cancelPending(id)
	now := s.Sched.Now()
	if to == domain.StatusRead {
		// callbacks may skip straight to read
		_, err := s.Store.TransitionMessage(ctx, store.MessageTransition{ID: id, To: domain.StatusDelivered, Now: now})
		if err != nil && !errors.Is(err, domain.ErrInvalidTransition) {
			return domain.Message{}, err
		}
	}
	m, err := s.Store.TransitionMessage(ctx, store.MessageTransition{ID: id, To: to, LastError: lastError, Now: now})
	if err != nil {
		observability.StatusTransitions.WithLabelValues(string(to), "rejected").Inc()
		return m, err
	}
	observability.StatusTransitions.WithLabelValues(string(to), "applied").Inc()
	return m, nil
}

// Fail moves a sent message to failed with the given error text.
func (s *Simulator) Fail(ctx context.Context, id int64, errText string) (domain.Message, error) {
	return s.Apply(ctx, id, domain.StatusFailed, errText)
}

// Pending counts messages with a simulated transition still scheduled.
func (s *Simulator) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

func (s *Simulator) scheduleDelivery(id int64, now time.Time) {
	delay := s.DeliveryLatency
	if s.Limiter != nil {
		if r := s.Limiter.ReserveN(now, 1); r.OK() {
			delay += r.DelayFrom(now)
		}
	}
	s.schedule(id, delay, func() {
		if !s.advance(id, domain.StatusDelivered) {
			return
		}
		if s.random() < s.ReadProbability {
			s.schedule(id, s.ReadLatency, func() {
				s.advance(id, domain.StatusRead)
			})
		}
	})
}

// advance applies one simulated transition. Failures are logged and leave
// the message in its last known state.
func (s *Simulator) advance(id int64, to domain.MessageStatus) bool {
	ctx, cancel := context.WithTimeout(context.Background(), transitionTimeout)
	defer cancel()

	call := func() (any, error) {
		return s.Store.TransitionMessage(ctx, store.MessageTransition{ID: id, To: to, Now: s.Sched.Now()})
	}
	var err error
	if s.Breaker == nil {
		_, err = call()
	} else {
		_, err = s.Breaker.Execute(call)
	}

	switch {
	case err == nil:
		observability.StatusTransitions.WithLabelValues(string(to), "simulated").Inc()
		return true
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		observability.StatusTransitions.WithLabelValues(string(to), "breaker_open").Inc()
		slog.Warn("status advance skipped, breaker open", "message_id", id, "status", to)
	case errors.Is(err, domain.ErrInvalidTransition), errors.Is(err, domain.ErrNotFound):
		observability.StatusTransitions.WithLabelValues(string(to), "rejected").Inc()
		slog.Info("status advance rejected", "message_id", id, "status", to, "err", err)
	default:
		observability.StatusTransitions.WithLabelValues(string(to), "error").Inc()
		slog.Error("status advance failed", "message_id", id, "status", to, "err", err)
	}
	return false
}

func (s *Simulator) random() float64 {
	if s.Rand != nil {
		return s.Rand()
	}
	return rand.Float64()
}

// schedule runs fn after d unless the message's transition is canceled or
// replaced first. The entry is registered before the timer exists, so a
// callback that fires before After returns still finds and clears it.
func (s *Simulator) schedule(id int64, d time.Duration, fn func()) {
	s.mu.Lock()
	if s.pending == nil {
		s.pending = make(map[int64]pendingTransition)
	}
	s.seq++
	seq := s.seq
	s.pending[id] = pendingTransition{seq: seq}
	s.mu.Unlock()

	h := s.Sched.After(d, func() {
		if s.claim(id, seq) {
			fn()
		}
	})

	s.mu.Lock()
	if p, ok := s.pending[id]; ok && p.seq == seq {
		p.handle = h
		s.pending[id] = p
	}
	s.mu.Unlock()
}

// claim removes the entry for id if it is still the one numbered seq.
func (s *Simulator) claim(id int64, seq uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pending[id]
	if !ok || p.seq != seq {
		return false
	}
	delete(s.pending, id)
	return true
}

func (s *Simulator) cancelPending(id int64) {
	s.mu.Lock()
	p, ok := s.pending[id]
	delete(s.pending, id)
	s.mu.Unlock()
	if ok && p.handle != nil {
		p.handle.Cancel()
	}
}
