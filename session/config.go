package session

import (
	"time"

	"code.hybscloud.com/zlink/proto"
)

// Config carries §6.5's recognized knobs. Construct with NewConfig and
// functional Options, mirroring the teacher's Options/Option idiom
// (framer.Options / framer.Option) rather than a builder type.
type Config struct {
	ZenohId  proto.ZenohId
	HasZenohId bool // false means "generate one at Open time"
	WhatAmI  proto.WhatAmI

	MineLease        time.Duration
	KeepAliveDivisor uint32
	BatchSize        uint16
	Resolution       proto.Resolution
	OpenTimeout      time.Duration

	MaxSubscribers     int
	MaxPendingRequests int
	TxQueueDepth       int
	RxBufSize          int
	TxBufSize          int

	// Compression advertises the compression extension during the
	// handshake (§4.C.1's InitExtras.Compression); it only takes effect
	// once the peer advertises it too (SPEC_FULL §2's s2 wiring).
	Compression bool
}

// Option mutates a Config under construction.
type Option func(*Config)

// defaultConfig holds §6.5's stated defaults for a streamed link; Open
// narrows BatchSize to the datagram default when the link is not
// streamed (NewConfig does not know the link kind yet).
var defaultConfig = Config{
	WhatAmI:            proto.WhatAmIClient,
	MineLease:          15 * time.Second,
	KeepAliveDivisor:   4,
	BatchSize:          65535,
	Resolution:         proto.DefaultResolution,
	OpenTimeout:        10 * time.Second,
	MaxSubscribers:     64,
	MaxPendingRequests: 64,
	TxQueueDepth:       64,
	RxBufSize:          65535,
	TxBufSize:          65535,
}

// DatagramBatchSize is §6.5's default batch_size for non-streamed links.
const DatagramBatchSize = 8192

// NewConfig returns a Config seeded with §6.5's defaults and opts applied
// in order.
func NewConfig(opts ...Option) Config {
	cfg := defaultConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// WithZenohId pins an explicit identity instead of letting Open generate
// a random one.
func WithZenohId(id proto.ZenohId) Option {
	return func(c *Config) {
		c.ZenohId = id
		c.HasZenohId = true
	}
}

// WithWhatAmI overrides the advertised role. §1 scopes this core to
// Client, but the field is still negotiable on the wire (§4.C.1).
func WithWhatAmI(w proto.WhatAmI) Option {
	return func(c *Config) { c.WhatAmI = w }
}

// WithMineLease sets the liveness period advertised to the peer.
func WithMineLease(d time.Duration) Option {
	return func(c *Config) { c.MineLease = d }
}

// WithKeepAliveDivisor sets how often within MineLease a KeepAlive is
// emitted during idle periods.
func WithKeepAliveDivisor(n uint32) Option {
	return func(c *Config) { c.KeepAliveDivisor = n }
}

// WithBatchSize overrides the proposed maximum batch size.
func WithBatchSize(n uint16) Option {
	return func(c *Config) { c.BatchSize = n }
}

// WithResolution overrides the proposed {FrameSN, RequestID} widths.
func WithResolution(r proto.Resolution) Option {
	return func(c *Config) { c.Resolution = r }
}

// WithOpenTimeout bounds the handshake's overall deadline.
func WithOpenTimeout(d time.Duration) Option {
	return func(c *Config) { c.OpenTimeout = d }
}

// WithCompression advertises the compression extension during the
// handshake. Compression is only used once both peers advertise it.
func WithCompression(enabled bool) Option {
	return func(c *Config) { c.Compression = enabled }
}

// WithCapacities overrides every fixed-capacity knob at once (§5 "no heap
// required"); zero leaves the corresponding default untouched.
func WithCapacities(maxSubscribers, maxPendingRequests, txQueueDepth, rxBufSize, txBufSize int) Option {
	return func(c *Config) {
		if maxSubscribers > 0 {
			c.MaxSubscribers = maxSubscribers
		}
		if maxPendingRequests > 0 {
			c.MaxPendingRequests = maxPendingRequests
		}
		if txQueueDepth > 0 {
			c.TxQueueDepth = txQueueDepth
		}
		if rxBufSize > 0 {
			c.RxBufSize = rxBufSize
		}
		if txBufSize > 0 {
			c.TxBufSize = txBufSize
		}
	}
}

// keepAliveInterval is MineLease / KeepAliveDivisor, the cadence an idle
// tx half emits a KeepAlive at (§4.E.2).
func (c Config) keepAliveInterval() time.Duration {
	if c.KeepAliveDivisor == 0 {
		return c.MineLease
	}
	return c.MineLease / time.Duration(c.KeepAliveDivisor)
}
