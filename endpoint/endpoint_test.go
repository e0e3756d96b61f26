package endpoint_test

import (
	"testing"

	"code.hybscloud.com/zlink/endpoint"
)

func TestParsePlain(t *testing.T) {
	e, err := endpoint.Parse("tcp/127.0.0.1:7447")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if e.Protocol != "tcp" || e.Address != "127.0.0.1:7447" {
		t.Fatalf("got protocol=%q address=%q", e.Protocol, e.Address)
	}
	if e.Metadata != "" || e.Config != "" {
		t.Fatalf("expected empty metadata/config, got %q %q", e.Metadata, e.Config)
	}
}

func TestParseMissingProtocolSeparator(t *testing.T) {
	if _, err := endpoint.Parse("tcp127.0.0.1"); err != endpoint.ErrNoProtocolSeparator {
		t.Fatalf("got %v, want ErrNoProtocolSeparator", err)
	}
}

func TestParseEmptyProtocolOrAddress(t *testing.T) {
	cases := []string{"/addr", "proto/"}
	for _, s := range cases {
		if _, err := endpoint.Parse(s); err != endpoint.ErrNoProtocolSeparator {
			t.Errorf("Parse(%q) = %v, want ErrNoProtocolSeparator", s, err)
		}
	}
}

func TestParseMetadataRejectedByDefault(t *testing.T) {
	if _, err := endpoint.Parse("tcp/addr?meta=1"); err != endpoint.ErrMetadataNotSupported {
		t.Fatalf("got %v, want ErrMetadataNotSupported", err)
	}
}

func TestParseMetadataAllowed(t *testing.T) {
	e, err := endpoint.Parse("tcp/addr?meta=1", endpoint.WithMetadata())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if e.Metadata != "meta=1" {
		t.Fatalf("got metadata %q", e.Metadata)
	}
}

func TestParseConfigRejectedByDefault(t *testing.T) {
	if _, err := endpoint.Parse("tcp/addr#cfg=1"); err != endpoint.ErrConfigNotSupported {
		t.Fatalf("got %v, want ErrConfigNotSupported", err)
	}
}

func TestParseMetadataAndConfigOrdering(t *testing.T) {
	e, err := endpoint.Parse("tcp/addr?meta=1#cfg=1", endpoint.WithMetadata(), endpoint.WithConfig())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if e.Metadata != "meta=1" || e.Config != "cfg=1" {
		t.Fatalf("got metadata=%q config=%q", e.Metadata, e.Config)
	}

	// '#' before '?' is malformed regardless of flags.
	if _, err := endpoint.Parse("tcp/addr#cfg=1?meta=1", endpoint.WithMetadata(), endpoint.WithConfig()); err != endpoint.ErrCouldNotParseEndpoint {
		t.Fatalf("got %v, want ErrCouldNotParseEndpoint", err)
	}
}

func TestParseEmptySectionsRejected(t *testing.T) {
	cases := []string{"tcp/addr?", "tcp/addr#", "tcp/addr?#cfg=1"}
	for _, s := range cases {
		if _, err := endpoint.Parse(s, endpoint.WithMetadata(), endpoint.WithConfig()); err != endpoint.ErrCouldNotParseEndpoint {
			t.Errorf("Parse(%q) = %v, want ErrCouldNotParseEndpoint", s, err)
		}
	}
}

func TestParseTooLong(t *testing.T) {
	long := make([]byte, endpoint.MaxLen+10)
	for i := range long {
		long[i] = 'a'
	}
	long[0], long[1] = 't', '/'
	if _, err := endpoint.Parse(string(long)); err != endpoint.ErrCouldNotParseEndpoint {
		t.Fatalf("got %v, want ErrCouldNotParseEndpoint", err)
	}
}
