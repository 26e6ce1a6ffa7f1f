package tmmbn

import "time"

// PacketRateConfig configures the sliding window packet rate measurement.
type PacketRateConfig struct {
	// WindowSize is the duration of the sliding window.
	// Default: 1 second.
	WindowSize time.Duration
}

// DefaultPacketRateConfig returns default configuration for packet rate stats.
func DefaultPacketRateConfig() PacketRateConfig {
	return PacketRateConfig{
		WindowSize: time.Second,
	}
}

// PacketRateStats tracks how many packets per second a stream sends over a
// sliding window. The rate turns a bounding set into a net media bitrate, see
// MaxNetBitrate.
//
// Usage:
//
//	r := NewPacketRateStats(DefaultPacketRateConfig())
//	r.Update(sendTime)
//	if pr, ok := r.Rate(now); ok {
//	    limit, _ := tmmbn.MaxNetBitrate(set, pr)
//	}
type PacketRateStats struct {
	windowSize time.Duration
	arrivals   []time.Time
}

// NewPacketRateStats creates a packet rate tracker with the given configuration.
func NewPacketRateStats(config PacketRateConfig) *PacketRateStats {
	windowSize := config.WindowSize
	if windowSize <= 0 {
		windowSize = time.Second
	}
	return &PacketRateStats{
		windowSize: windowSize,
		arrivals:   make([]time.Time, 0, 64),
	}
}

// Update records one packet at now. Samples that fell out of the window are
// dropped first.
func (r *PacketRateStats) Update(now time.Time) {
	r.removeExpired(now)
	r.arrivals = append(r.arrivals, now)
}

// Rate returns the packet rate in packets per second.
// Returns (0, false) if:
//   - fewer than 2 packets are in the window
//   - the packets span less than 1ms
//
// Like the byte-rate counterpart, the rate counts every packet in the window
// over the span from the oldest to the newest one.
func (r *PacketRateStats) Rate(now time.Time) (packetsPerSec float64, ok bool) {
	r.removeExpired(now)

	if len(r.arrivals) < 2 {
		return 0, false
	}

	elapsed := r.arrivals[len(r.arrivals)-1].Sub(r.arrivals[0])
	if elapsed < time.Millisecond {
		return 0, false
	}

	return float64(len(r.arrivals)) / elapsed.Seconds(), true
}

// Reset clears all samples.
func (r *PacketRateStats) Reset() {
	r.arrivals = r.arrivals[:0]
}

// removeExpired drops arrivals older than windowSize before now.
func (r *PacketRateStats) removeExpired(now time.Time) {
	cutoff := now.Add(-r.windowSize)

	expired := 0
	for _, t := range r.arrivals {
		if !t.Before(cutoff) {
			break
		}
		expired++
	}
	if expired > 0 {
		r.arrivals = r.arrivals[expired:]
	}
}
