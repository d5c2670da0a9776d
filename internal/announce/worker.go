// Package announce broadcasts weighted-random announcements on a schedule.
package announce

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"sync"

	"github.com/pydawan/pydabot/internal/irc"
	"github.com/pydawan/pydabot/internal/logger"
	"github.com/pydawan/pydabot/internal/metrics"
	"github.com/sirupsen/logrus"
)

var (
	// ErrNoAnnouncementsAvailable is returned when picking from an empty pool
	ErrNoAnnouncementsAvailable = errors.New("no announcements available")
	// ErrInvalidWeight is returned when adding an announcement whose weight is not positive
	ErrInvalidWeight = errors.New("announcement weight must be positive")
)

// Announcement is a message periodically sent to a channel. Weight is relative to
// the other announcements in the pool.
type Announcement struct {
	Channel string
	Message string
	Weight  float64
}

// Validate checks the weight invariant
func (a Announcement) Validate() error {
	if !(a.Weight > 0) || math.IsInf(a.Weight, 1) {
		return fmt.Errorf("%w: %v", ErrInvalidWeight, a.Weight)
	}
	return nil
}

// Worker owns the announcement pool and sends one pick per Run
type Worker struct {
	mu            sync.Mutex
	announcements []Announcement
	random        func() float64

	connMu sync.RWMutex
	conn   irc.Sender
}

// Option configures a Worker
type Option func(*Worker)

// WithRand sets the source of uniform values in [0, 1)
func WithRand(random func() float64) Option {
	return func(w *Worker) {
		w.random = random
	}
}

// NewWorker creates a worker seeded with announcements. Invalid weights are rejected.
func NewWorker(announcements []Announcement, opts ...Option) (*Worker, error) {
	w := &Worker{random: rand.Float64}
	for _, opt := range opts {
		opt(w)
	}
	for _, a := range announcements {
		if err := w.Add(a); err != nil {
			return nil, err
		}
	}
	return w, nil
}

// SetConn sets the connection announcements are sent through. nil detaches it.
func (w *Worker) SetConn(conn irc.Sender) {
	w.connMu.Lock()
	defer w.connMu.Unlock()
	w.conn = conn
}

func (w *Worker) sender() irc.Sender {
	w.connMu.RLock()
	defer w.connMu.RUnlock()
	return w.conn
}

// Add appends an announcement to the pool
func (w *Worker) Add(a Announcement) error {
	if err := a.Validate(); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.announcements = append(w.announcements, a)
	return nil
}

// Remove deletes the first announcement equal to a. It reports whether one was found.
func (w *Worker) Remove(a Announcement) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	for i, existing := range w.announcements {
		if existing == a {
			w.announcements = append(w.announcements[:i], w.announcements[i+1:]...)
			return true
		}
	}
	return false
}

// Clear empties the pool
func (w *Worker) Clear() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.announcements = nil
}

// Announcements returns a copy of the pool in iteration order
func (w *Worker) Announcements() []Announcement {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]Announcement(nil), w.announcements...)
}

// Len returns the pool size
func (w *Worker) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.announcements)
}

// Pick draws one announcement with probability proportional to its weight
func (w *Worker) Pick() (Announcement, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(w.announcements) == 0 {
		return Announcement{}, ErrNoAnnouncementsAvailable
	}

	var total float64
	for _, a := range w.announcements {
		total += a.Weight
	}

	r := w.random() * total
	var cumulative float64
	for _, a := range w.announcements {
		cumulative += a.Weight
		if r < cumulative {
			return a, nil
		}
	}

	// rounding can leave r at or past the final cumulative sum
	return w.announcements[len(w.announcements)-1], nil
}

// Run picks an announcement and sends it. Without a connection the pick is dropped.
func (w *Worker) Run() error {
	a, err := w.Pick()
	if err != nil {
		return err
	}

	conn := w.sender()
	if conn == nil {
		logger.WithField("channel", a.Channel).Debug("announcement-skipped-no-connection")
		return nil
	}

	channel := irc.ChannelOf(a.Channel)
	conn.Privmsg(channel, a.Message)

	logger.WithFields(logrus.Fields{
		"channel": channel,
		"weight":  a.Weight,
	}).Info("announcement-sent")
	metrics.AnnouncementSent(channel)
	return nil
}
