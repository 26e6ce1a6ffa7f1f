package interceptor

import (
	"cmp"
	"slices"
	"sync"
	"time"

	"github.com/thesyncim/tmmbn/pkg/tmmbn"
)

type request struct {
	tuple   tmmbn.Tuple
	arrival time.Time
}

// localStream is an outgoing stream that may be limited by TMMBR. Each one
// is a media sender of its own, with its own bounding set and notifications.
//
// The RTP writer updates the packet rate on every packet while the notify
// loop reads it, so the stats are guarded by mu. requests and scheduler are
// guarded by the Interceptor's mutex.
type localStream struct {
	ssrc uint32

	mu   sync.Mutex
	rate *tmmbn.PacketRateStats

	requests  map[uint32]request // by owner SSRC
	scheduler *tmmbn.Scheduler
}

func newLocalStream(ssrc uint32, c config) *localStream {
	schedConfig := tmmbn.DefaultSchedulerConfig()
	schedConfig.Interval = c.interval
	schedConfig.SenderSSRC = ssrc
	schedConfig.MaxPacketSize = c.maxPacketSize

	return &localStream{
		ssrc:      ssrc,
		rate:      tmmbn.NewPacketRateStats(tmmbn.DefaultPacketRateConfig()),
		requests:  make(map[uint32]request),
		scheduler: tmmbn.NewScheduler(schedConfig, tmmbn.WithLoggerFactory(c.loggerFactory)),
	}
}

// onPacket records one sent RTP packet.
func (s *localStream) onPacket(now time.Time) {
	s.mu.Lock()
	s.rate.Update(now)
	s.mu.Unlock()
}

// packetRate returns the current packet rate, or 0 while unknown.
func (s *localStream) packetRate(now time.Time) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	pr, ok := s.rate.Rate(now)
	if !ok {
		return 0
	}
	return pr
}

// storeRequest replaces the tuple owner holds for this stream.
func (s *localStream) storeRequest(owner uint32, e tmmbn.RequestEntry, now time.Time) {
	s.requests[owner] = request{
		tuple:   tmmbn.TupleFromRequest(owner, e),
		arrival: now,
	}
	s.scheduler.MarkRequest()
}

// boundingSet drops requests older than timeout and returns the bounding set
// of the rest.
func (s *localStream) boundingSet(now time.Time, timeout time.Duration) []tmmbn.Tuple {
	tuples := getTuples()
	defer putTuples(tuples)

	for owner, r := range s.requests {
		if now.Sub(r.arrival) > timeout {
			delete(s.requests, owner)
			continue
		}
		*tuples = append(*tuples, r.tuple)
	}
	// Map order is random; ties in the bounding set keep the first owner.
	slices.SortFunc(*tuples, compareTuples)
	return tmmbn.BoundingSet(*tuples)
}

func compareTuples(a, b tmmbn.Tuple) int {
	return cmp.Or(
		cmp.Compare(a.BitrateBps, b.BitrateBps),
		cmp.Compare(a.Overhead, b.Overhead),
		cmp.Compare(a.Owner, b.Owner),
	)
}
