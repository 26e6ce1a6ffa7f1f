package tmmbn

import (
	"math"
	"math/bits"
)

// MaxTupleBitrate is the largest bitrate, in bits per second, a Tuple can
// carry. It is the largest value a TMMBN entry can acknowledge.
const MaxTupleBitrate = uint64(math.MaxUint32) * 1000

// Tuple is one (bitrate, overhead) limit of the RFC 5104 bounding set.
type Tuple struct {
	// Owner is the SSRC of the requester that introduced the tuple.
	Owner uint32

	// BitrateBps is the maximum total media bitrate in bits per second.
	BitrateBps uint64

	// Overhead is the per-packet overhead in bytes included in BitrateBps.
	Overhead uint16
}

// TupleFromRequest converts a TMMBR entry sent by owner into a Tuple. Values
// beyond MaxTupleBitrate are clamped.
func TupleFromRequest(owner uint32, e RequestEntry) Tuple {
	return Tuple{
		Owner:      owner,
		BitrateBps: saturatedValue(e.Bitrate),
		Overhead:   e.Overhead,
	}
}

func saturatedValue(q Quantized) uint64 {
	if q.Mantissa != 0 && int(q.Exponent) > 64-bits.Len32(q.Mantissa) {
		return MaxTupleBitrate
	}
	return min(q.Value(), MaxTupleBitrate)
}

// netBitrate is the media bitrate left by t at packetRate packets/s.
func (t Tuple) netBitrate(packetRate float64) float64 {
	return float64(t.BitrateBps) - 8*float64(t.Overhead)*packetRate
}

// BoundingSet returns the tuples that are the tightest limit for at least one
// packet rate, ordered by increasing overhead.
//
// Each tuple limits the net media rate to BitrateBps - 8*Overhead*packetRate,
// a line in the packet rate. The bounding set is the lower envelope of those
// lines for packetRate >= 0. Identical tuples are reported once, keeping the
// first owner.
//
// A TMMBN carries at most MaxEntries tuples, so the set is cut after the
// MaxEntries tuples with the lowest bitrates. Those are the tightest limits at
// low packet rates; the dropped tail only binds at higher ones.
func BoundingSet(tuples []Tuple) []Tuple {
	if len(tuples) == 0 {
		return nil
	}

	clamped := make([]Tuple, len(tuples))
	for i, t := range tuples {
		t.BitrateBps = min(t.BitrateBps, MaxTupleBitrate)
		clamped[i] = t
	}

	// At packetRate 0 the lowest bitrate wins; among equals the larger
	// overhead stays lowest afterwards.
	cur := clamped[0]
	for _, t := range clamped[1:] {
		if t.BitrateBps < cur.BitrateBps ||
			(t.BitrateBps == cur.BitrateBps && t.Overhead > cur.Overhead) {
			cur = t
		}
	}

	set := []Tuple{cur}
	for {
		var next Tuple
		found := false
		for _, t := range clamped {
			if t.Overhead <= cur.Overhead {
				continue
			}
			if !found || crossesEarlier(cur, t, next) {
				next = t
				found = true
			}
		}
		if !found || len(set) == MaxEntries {
			return set
		}
		set = append(set, next)
		cur = next
	}
}

// crossesEarlier reports whether a intersects cur at a lower packet rate than
// b does. Both have a larger overhead than cur and lie above it at the current
// envelope point. On a tie the steeper line wins.
func crossesEarlier(cur, a, b Tuple) bool {
	// x = (bitrate - cur.bitrate) / (8 * (overhead - cur.overhead)), compared
	// by cross-multiplication. Bitrates are below 2^42 and overheads below
	// 2^9, so the products fit in int64.
	da := int64(a.BitrateBps) - int64(cur.BitrateBps) //nolint:gosec // clamped
	db := int64(b.BitrateBps) - int64(cur.BitrateBps) //nolint:gosec // clamped
	oa := int64(a.Overhead) - int64(cur.Overhead)
	ob := int64(b.Overhead) - int64(cur.Overhead)

	lhs, rhs := da*ob, db*oa
	if lhs != rhs {
		return lhs < rhs
	}
	return a.Overhead > b.Overhead
}

// MaxNetBitrate returns the tightest net media bitrate the set allows at
// packetRate packets per second. ok is false for an empty set, which imposes
// no limit.
func MaxNetBitrate(set []Tuple, packetRate float64) (bitrate uint64, ok bool) {
	if len(set) == 0 {
		return 0, false
	}
	lowest := math.Inf(1)
	for _, t := range set {
		lowest = math.Min(lowest, t.netBitrate(packetRate))
	}
	if lowest <= 0 {
		return 0, true
	}
	return uint64(lowest), true
}

// BuildNotification creates the TMMBN acknowledging set on behalf of
// senderSSRC. Bitrates are rounded up to whole kbit/s so the acknowledged
// limit never falls below the requested one.
func BuildNotification(senderSSRC uint32, set []Tuple, opts ...Option) (*TMMBN, error) {
	p := NewTMMBN(senderSSRC, opts...)
	for _, t := range set {
		kbps := (min(t.BitrateBps, MaxTupleBitrate) + 999) / 1000
		if err := p.AddEntry(t.Owner, uint32(kbps), min(t.Overhead, MaxOverhead)); err != nil { //nolint:gosec // clamped
			return nil, err
		}
	}
	return p, nil
}
