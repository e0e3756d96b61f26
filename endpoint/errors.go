// Package endpoint parses and validates the locator strings used to name
// links: "<proto>/<addr>[?<meta>][#<cfg>]" (§3.1, §6.2).
package endpoint

import "github.com/pkg/errors"

// Endpoint error kinds (§7).
var (
	ErrNoProtocolSeparator  = errors.New("endpoint: missing '/' protocol separator")
	ErrMetadataNotSupported = errors.New("endpoint: metadata section present but not supported")
	ErrConfigNotSupported   = errors.New("endpoint: config section present but not supported")
	ErrCouldNotParseEndpoint = errors.New("endpoint: malformed endpoint string")
)

const (
	protoSeparator = '/'
	metaSeparator  = '?'
	cfgSeparator   = '#'

	// MaxLen bounds the total encoded length, mirroring the u8-length
	// constraint carried by the reference EndPoint::new.
	MaxLen = 255
)
