package interceptor

import (
	"errors"
	"time"

	"github.com/pion/interceptor"
	"github.com/pion/logging"

	"github.com/thesyncim/tmmbn/pkg/tmmbn"
	"github.com/thesyncim/tmmbn/pkg/tmmbn/internal/clock"
)

// config is shared by the factory and every interceptor it creates.
type config struct {
	interval       time.Duration
	requestTimeout time.Duration
	maxPacketSize  int
	loggerFactory  logging.LoggerFactory
	onLimit        func(ssrc uint32, bitrate uint64)
	onTMMBN        func(ssrc uint32, set []tmmbn.Tuple)
	clock          clock.Clock
}

func defaultConfig() config {
	sc := tmmbn.DefaultSchedulerConfig()
	return config{
		interval:       sc.Interval,
		requestTimeout: 10 * time.Second,
		maxPacketSize:  sc.MaxPacketSize,
		loggerFactory:  logging.NewDefaultLoggerFactory(),
		clock:          clock.Monotonic{},
	}
}

// FactoryOption configures the InterceptorFactory.
type FactoryOption func(*config) error

// minPacketSize fits a TMMBN carrying MaxEntries entries.
const minPacketSize = 12 + 8*tmmbn.MaxEntries

// WithInterval sets how often an unchanged bounding set is re-announced.
// Default: 5 seconds
func WithInterval(interval time.Duration) FactoryOption {
	return func(c *config) error {
		if interval <= 0 {
			return errors.New("TMMBN interval must be positive")
		}
		c.interval = interval
		return nil
	}
}

// WithRequestTimeout sets how long a TMMBR tuple stays valid without being
// refreshed by its owner.
// Default: 10 seconds
func WithRequestTimeout(timeout time.Duration) FactoryOption {
	return func(c *config) error {
		if timeout <= 0 {
			return errors.New("request timeout must be positive")
		}
		c.requestTimeout = timeout
		return nil
	}
}

// WithMaxPacketSize bounds the datagram a TMMBN is built into. It must hold
// a full notification.
// Default: 1200 bytes
func WithMaxPacketSize(size int) FactoryOption {
	return func(c *config) error {
		if size < minPacketSize || size > tmmbn.MaxPacketSize {
			return errors.New("max packet size out of range")
		}
		c.maxPacketSize = size
		return nil
	}
}

// WithLoggerFactory sets the pion logger factory. The interceptor logs under
// the "tmmbn-interceptor" scope and the packet builder under "tmmbn".
func WithLoggerFactory(f logging.LoggerFactory) FactoryOption {
	return func(c *config) error {
		if f == nil {
			return errors.New("logger factory must not be nil")
		}
		c.loggerFactory = f
		return nil
	}
}

// WithOnLimit sets a callback invoked, after every notification for a local
// stream with a non-empty bounding set, with the highest net media bitrate in
// bits per second that stream may send.
func WithOnLimit(fn func(ssrc uint32, bitrate uint64)) FactoryOption {
	return func(c *config) error {
		c.onLimit = fn
		return nil
	}
}

// WithOnTMMBN sets a callback invoked with the local stream and bounding set
// of every TMMBN written. An empty set means the stream is no longer limited.
func WithOnTMMBN(fn func(ssrc uint32, set []tmmbn.Tuple)) FactoryOption {
	return func(c *config) error {
		c.onTMMBN = fn
		return nil
	}
}

// withClock replaces the time source.
func withClock(clk clock.Clock) FactoryOption {
	return func(c *config) error {
		c.clock = clk
		return nil
	}
}

// InterceptorFactory creates an Interceptor for each PeerConnection.
// Register it with the interceptor registry on the media sender.
type InterceptorFactory struct {
	config config
}

// NewInterceptorFactory creates a new factory for TMMBN interceptors.
//
// Example:
//
//	factory, err := NewInterceptorFactory(
//	    WithInterval(2*time.Second),
//	    WithRequestTimeout(20*time.Second),
//	)
//	if err != nil {
//	    return err
//	}
//	registry.Add(factory)
func NewInterceptorFactory(opts ...FactoryOption) (*InterceptorFactory, error) {
	c, err := newConfig(opts)
	if err != nil {
		return nil, err
	}
	return &InterceptorFactory{config: c}, nil
}

func newConfig(opts []FactoryOption) (config, error) {
	c := defaultConfig()
	for _, opt := range opts {
		if err := opt(&c); err != nil {
			return config{}, err
		}
	}
	return c, nil
}

// NewInterceptor creates a new Interceptor for a PeerConnection.
// This method is called by the interceptor registry when setting up a connection.
func (f *InterceptorFactory) NewInterceptor(_ string) (interceptor.Interceptor, error) {
	return newInterceptor(f.config), nil
}
