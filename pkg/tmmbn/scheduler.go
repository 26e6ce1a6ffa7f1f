package tmmbn

import (
	"slices"
	"time"
)

// SchedulerConfig configures TMMBN scheduling.
type SchedulerConfig struct {
	// Interval is how often an unchanged, non-empty bounding set is
	// re-announced (default: 5 seconds).
	Interval time.Duration

	// SenderSSRC is the SSRC put in TMMBN packets. It is the SSRC of the
	// media stream the requests were made for.
	SenderSSRC uint32

	// MaxPacketSize bounds the datagram a notification is built into.
	// Default: 1200 bytes.
	MaxPacketSize int
}

// DefaultSchedulerConfig returns default scheduler configuration.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		Interval:      5 * time.Second,
		SenderSSRC:    0,
		MaxPacketSize: 1200,
	}
}

// Scheduler decides when a TMMBN has to go out.
//
// RFC 5104 requires a notification in response to every TMMBR, and whenever
// the bounding set changes. Between those, the set is repeated every Interval
// so a lost notification is eventually repaired.
type Scheduler struct {
	config   SchedulerConfig
	opts     []Option
	lastSent time.Time
	lastSet  []Tuple
	pending  bool
}

// NewScheduler creates a new TMMBN scheduler. opts are applied to every
// TMMBN it builds.
func NewScheduler(config SchedulerConfig, opts ...Option) *Scheduler {
	if config.MaxPacketSize <= 0 {
		config.MaxPacketSize = DefaultSchedulerConfig().MaxPacketSize
	}
	return &Scheduler{
		config: config,
		opts:   opts,
	}
}

// MarkRequest records that a TMMBR arrived; the next check notifies even if
// the set did not change.
func (s *Scheduler) MarkRequest() {
	s.pending = true
}

// ShouldNotify reports whether a TMMBN announcing set should be sent now.
// Returns true if either:
//   - a TMMBR arrived since the last notification
//   - set differs from the last announced set
//   - set is non-empty and Interval has elapsed since the last notification
func (s *Scheduler) ShouldNotify(set []Tuple, now time.Time) bool {
	if s.pending {
		return true
	}
	if !slices.Equal(set, s.lastSet) {
		return true
	}
	if len(set) == 0 {
		return false
	}
	return s.lastSent.IsZero() || now.Sub(s.lastSent) >= s.config.Interval
}

// BuildAndRecord builds the TMMBN for set into a single datagram of at most
// MaxPacketSize bytes and records the send.
func (s *Scheduler) BuildAndRecord(set []Tuple, now time.Time) ([]byte, error) {
	p, err := BuildNotification(s.config.SenderSSRC, set, s.opts...)
	if err != nil {
		return nil, err
	}
	if p.BlockLength() > s.config.MaxPacketSize {
		return nil, ErrPacketTooLarge
	}
	data, err := p.Marshal()
	if err != nil {
		return nil, err
	}

	s.lastSent = now
	s.lastSet = slices.Clone(set)
	s.pending = false
	return data, nil
}

// MaybeNotify combines ShouldNotify and BuildAndRecord.
// Returns (packet, true) if a TMMBN should be sent, (nil, false) otherwise.
func (s *Scheduler) MaybeNotify(set []Tuple, now time.Time) ([]byte, bool, error) {
	if !s.ShouldNotify(set, now) {
		return nil, false, nil
	}

	data, err := s.BuildAndRecord(set, now)
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

// LastSent returns the bounding set of the last notification.
func (s *Scheduler) LastSent() []Tuple {
	return slices.Clone(s.lastSet)
}

// LastSentTime returns when the last notification was built.
// Returns zero time if none has been built yet.
func (s *Scheduler) LastSentTime() time.Time {
	return s.lastSent
}

// Reset clears scheduler state.
func (s *Scheduler) Reset() {
	s.lastSent = time.Time{}
	s.lastSet = nil
	s.pending = false
}
