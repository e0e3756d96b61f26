package endpoint

import "strings"

// Endpoint is a parsed, canonical locator: "<proto>/<addr>[?<meta>][#<cfg>]".
// Protocol and Address are always non-empty; Metadata and Config are empty
// when absent. Parse guarantees the invariants from §3.1 hold for any
// Endpoint it returns.
type Endpoint struct {
	raw      string
	Protocol string
	Address  string
	Metadata string
	Config   string
}

// String returns the original locator string.
func (e Endpoint) String() string { return e.raw }

// Options gates acceptance of the metadata and config sections. Both
// default to rejected, mirroring the constrained core build that has no
// use for either region unless a link explicitly opts in (§6.2).
type Options struct {
	AllowMetadata bool
	AllowConfig   bool
}

// Option configures Options.
type Option func(*Options)

// WithMetadata allows a "?<meta>" section to appear in parsed endpoints.
func WithMetadata() Option { return func(o *Options) { o.AllowMetadata = true } }

// WithConfig allows a "#<cfg>" section to appear in parsed endpoints.
func WithConfig() Option { return func(o *Options) { o.AllowConfig = true } }

// Parse validates and decomposes s into an Endpoint per the grammar and
// invariants in §3.1: proto non-empty, addr non-empty, proto precedes any
// '?' or '#', and when both '?' and '#' appear '?' strictly precedes '#'
// with each section non-empty.
//
// Grounded on EndPoint::try_from in
// commons/zenoh-protocol/src/core/endpoint.rs and its stricter nostd
// sibling in src/protocol/core/endpoint.rs, which additionally rejects any
// metadata/config section outright; this port keeps that strictness as the
// default and exposes WithMetadata/WithConfig to opt back in, per §3.1's
// "acceptance depends on configuration flags of the core".
func Parse(s string, opts ...Option) (Endpoint, error) {
	var o Options
	for _, opt := range opts {
		opt(&o)
	}

	if len(s) > MaxLen {
		return Endpoint{}, ErrCouldNotParseEndpoint
	}

	pidx := strings.IndexByte(s, protoSeparator)
	if pidx < 0 || pidx == 0 || pidx == len(s)-1 {
		return Endpoint{}, ErrNoProtocolSeparator
	}

	midx := strings.IndexByte(s, metaSeparator)
	cidx := strings.IndexByte(s, cfgSeparator)

	switch {
	case midx < 0 && cidx < 0:
		return Endpoint{
			raw:      s,
			Protocol: s[:pidx],
			Address:  s[pidx+1:],
		}, nil

	case midx >= 0 && cidx < 0:
		if midx <= pidx+1 || midx == len(s)-1 {
			return Endpoint{}, ErrCouldNotParseEndpoint
		}
		if !o.AllowMetadata {
			return Endpoint{}, ErrMetadataNotSupported
		}
		return Endpoint{
			raw:      s,
			Protocol: s[:pidx],
			Address:  s[pidx+1 : midx],
			Metadata: s[midx+1:],
		}, nil

	case midx < 0 && cidx >= 0:
		if cidx <= pidx+1 || cidx == len(s)-1 {
			return Endpoint{}, ErrCouldNotParseEndpoint
		}
		if !o.AllowConfig {
			return Endpoint{}, ErrConfigNotSupported
		}
		return Endpoint{
			raw:      s,
			Protocol: s[:pidx],
			Address:  s[pidx+1 : cidx],
			Config:   s[cidx+1:],
		}, nil

	default: // both present
		if midx <= pidx+1 || cidx <= midx || cidx == midx+1 || cidx == len(s)-1 {
			return Endpoint{}, ErrCouldNotParseEndpoint
		}
		if !o.AllowMetadata {
			return Endpoint{}, ErrMetadataNotSupported
		}
		if !o.AllowConfig {
			return Endpoint{}, ErrConfigNotSupported
		}
		return Endpoint{
			raw:      s,
			Protocol: s[:pidx],
			Address:  s[pidx+1 : midx],
			Metadata: s[midx+1 : cidx],
			Config:   s[cidx+1:],
		}, nil
	}
}
