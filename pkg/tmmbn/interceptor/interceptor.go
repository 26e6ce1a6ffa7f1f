package interceptor

import (
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/pion/interceptor"
	"github.com/pion/logging"
	"github.com/pion/rtcp"
	"github.com/pion/rtp"

	"github.com/thesyncim/tmmbn/pkg/tmmbn"
)

// tickInterval is how often the notify loop expires requests and checks the
// schedulers.
const tickInterval = 200 * time.Millisecond

// Interceptor answers TMMBR requests received for local streams with TMMBN
// notifications and reports the resulting bitrate limits. Every local stream
// keeps its own requests and announces its own bounding set, with its SSRC as
// the TMMBN sender.
type Interceptor struct {
	interceptor.NoOp

	config config
	log    logging.LeveledLogger

	mu         sync.Mutex
	streams    map[uint32]*localStream
	rtcpWriter interceptor.RTCPWriter

	closed    chan struct{}
	wg        sync.WaitGroup
	startOnce sync.Once
	closeOnce sync.Once
}

// New creates a standalone Interceptor. Most applications register an
// InterceptorFactory instead.
func New(opts ...FactoryOption) (*Interceptor, error) {
	c, err := newConfig(opts)
	if err != nil {
		return nil, err
	}
	return newInterceptor(c), nil
}

func newInterceptor(c config) *Interceptor {
	return &Interceptor{
		config:  c,
		log:     c.loggerFactory.NewLogger("tmmbn-interceptor"),
		streams: make(map[uint32]*localStream),
		closed:  make(chan struct{}),
	}
}

// Close stops the notify loop.
func (i *Interceptor) Close() error {
	i.closeOnce.Do(func() {
		close(i.closed)
	})
	i.wg.Wait()
	return nil
}

// BindRTCPWriter captures the writer for sending TMMBN packets and starts
// the notify loop.
func (i *Interceptor) BindRTCPWriter(writer interceptor.RTCPWriter) interceptor.RTCPWriter {
	i.mu.Lock()
	i.rtcpWriter = writer
	i.mu.Unlock()

	i.startOnce.Do(func() {
		i.wg.Add(1)
		go i.notifyLoop()
	})

	return writer
}

// BindRTCPReader observes incoming RTCP for TMMBR packets.
func (i *Interceptor) BindRTCPReader(reader interceptor.RTCPReader) interceptor.RTCPReader {
	return interceptor.RTCPReaderFunc(func(b []byte, a interceptor.Attributes) (int, interceptor.Attributes, error) {
		n, attr, err := reader.Read(b, a)
		if err != nil {
			return 0, nil, err
		}

		pkts, err := rtcp.Unmarshal(b[:n])
		if err != nil {
			i.log.Debugf("failed to unmarshal RTCP: %v", err)
			return n, attr, nil
		}
		i.processRTCP(pkts)
		return n, attr, nil
	})
}

// BindLocalStream tracks streams that negotiated "ccm tmmbr" and meters
// their packet rate. Other streams pass through untouched.
func (i *Interceptor) BindLocalStream(info *interceptor.StreamInfo, writer interceptor.RTPWriter) interceptor.RTPWriter {
	if !SupportsTMMBR(info.RTCPFeedback) {
		return writer
	}

	stream := newLocalStream(info.SSRC, i.config)
	i.mu.Lock()
	i.streams[info.SSRC] = stream
	i.mu.Unlock()

	return interceptor.RTPWriterFunc(func(header *rtp.Header, payload []byte, a interceptor.Attributes) (int, error) {
		stream.onPacket(i.config.clock.Now())
		return writer.Write(header, payload, a)
	})
}

// UnbindLocalStream stops tracking a local stream along with the requests
// made for it.
func (i *Interceptor) UnbindLocalStream(info *interceptor.StreamInfo) {
	i.mu.Lock()
	delete(i.streams, info.SSRC)
	i.mu.Unlock()
}

// processRTCP stores the tuples of every TMMBR in pkts and answers them.
func (i *Interceptor) processRTCP(pkts []rtcp.Packet) {
	now := i.config.clock.Now()
	received := false

	for _, pkt := range pkts {
		raw, ok := pkt.(*rtcp.RawPacket)
		if !ok || !tmmbn.IsTMMBR(raw.Header()) {
			continue
		}

		req, err := tmmbn.ParseTMMBR(*raw)
		if err != nil {
			i.log.Warnf("dropping malformed TMMBR: %v", err)
			continue
		}
		if i.storeRequest(req, now) {
			received = true
		}
	}

	if received {
		i.notify(now)
	}
}

// storeRequest hands the entries of req to the local streams they address.
// It reports whether any entry was kept.
func (i *Interceptor) storeRequest(req *tmmbn.Request, now time.Time) bool {
	i.mu.Lock()
	defer i.mu.Unlock()

	kept := false
	for _, e := range req.Entries {
		stream, ok := i.streams[e.MediaSSRC]
		if !ok {
			i.log.Debugf("ignoring TMMBR from %x for unknown ssrc %x", req.SenderSSRC, e.MediaSSRC)
			continue
		}
		stream.storeRequest(req.SenderSSRC, e, now)
		kept = true
	}
	return kept
}

func (i *Interceptor) notifyLoop() {
	defer i.wg.Done()

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-i.closed:
			return
		case <-ticker.C:
			i.notify(i.config.clock.Now())
		}
	}
}

// notification is a TMMBN ready to be written for one local stream.
type notification struct {
	ssrc    uint32
	set     []tmmbn.Tuple
	pkt     rtcp.RawPacket
	limit   uint64
	limited bool
}

// notify expires stale requests and sends a TMMBN for every local stream
// whose scheduler asks for one.
func (i *Interceptor) notify(now time.Time) {
	i.mu.Lock()
	writer := i.rtcpWriter
	if writer == nil {
		// Keep requests pending until there is a way to answer them.
		i.mu.Unlock()
		return
	}

	var out []notification
	for _, ssrc := range slices.Sorted(maps.Keys(i.streams)) {
		stream := i.streams[ssrc]
		set := stream.boundingSet(now, i.config.requestTimeout)

		data, send, err := stream.scheduler.MaybeNotify(set, now)
		if err != nil {
			i.log.Errorf("failed to build TMMBN for ssrc %x: %v", ssrc, err)
			continue
		}
		if !send {
			continue
		}

		n := notification{ssrc: ssrc, set: set, pkt: rtcp.RawPacket(data)}
		n.limit, n.limited = tmmbn.MaxNetBitrate(set, stream.packetRate(now))
		out = append(out, n)
	}
	i.mu.Unlock()

	if len(out) == 0 {
		return
	}

	pkts := make([]rtcp.Packet, len(out))
	for k := range out {
		pkts[k] = &out[k].pkt
	}
	if _, err := writer.Write(pkts, nil); err != nil {
		i.log.Warnf("failed to write TMMBN: %v", err)
	}

	for _, n := range out {
		if i.config.onTMMBN != nil {
			i.config.onTMMBN(n.ssrc, n.set)
		}
		if i.config.onLimit != nil && n.limited {
			i.config.onLimit(n.ssrc, n.limit)
		}
	}
}
