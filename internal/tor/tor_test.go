package tor

import (
	"errors"
	"strings"
	"testing"
	"time"
)

// Valid v3 addresses derived from fixed public keys. They do not belong to
// any real service.
const (
	// testOnionZeroKey is derived from an all-zero public key.
	testOnionZeroKey = "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaam2dqd.onion"
	// testOnionSeqKey is derived from the key 0, 1, ..., 31.
	testOnionSeqKey = "aaaqeayeaudaocajbifqydiob4ibceqtcqkrmfyydenbwha5dyp3kead.onion"
)

// TestIsValidV3Address tests v3 checksum validation.
func TestIsValidV3Address(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		address string
		want    bool
	}{
		{"zero key", testOnionZeroKey, true},
		{"sequential key", testOnionSeqKey, true},
		{"uppercase", strings.ToUpper(testOnionZeroKey), true},
		{"bad version byte", "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaam2dqe.onion", false},
		{"v2 length", "facebookcorewwwi.onion", false},
		{"too long", strings.Repeat("a", 57) + ".onion", false},
		{"missing suffix", strings.Repeat("a", 56), false},
		{"invalid characters", strings.Repeat("1", 56) + ".onion", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := IsValidV3Address(tt.address); got != tt.want {
				t.Errorf("IsValidV3Address(%q) = %v, want %v", tt.address, got, tt.want)
			}
		})
	}
}

// TestValidateHost tests onion host checks on crawl targets.
func TestValidateHost(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		host string
		want error
	}{
		{"regular host", "example.com", nil},
		{"regular host with port", "example.com:8080", nil},
		{"valid onion", testOnionZeroKey, nil},
		{"valid onion with port", testOnionSeqKey + ":80", nil},
		{"onion subdomain", "docs." + testOnionZeroKey, nil},
		{"v2 onion", "facebookcorewwwi.onion", ErrV2AddressDeprecated},
		{"garbage onion", "not-an-address.onion", ErrInvalidOnionAddress},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if err := ValidateHost(tt.host); !errors.Is(err, tt.want) {
				t.Errorf("ValidateHost(%q) = %v, want %v", tt.host, err, tt.want)
			}
		})
	}
}

// TestIsOnionHost tests onion domain detection.
func TestIsOnionHost(t *testing.T) {
	t.Parallel()

	if !IsOnionHost(testOnionZeroKey + ":8080") {
		t.Error("expected onion host with port to be detected")
	}
	if !IsOnionHost(strings.ToUpper(testOnionZeroKey)) {
		t.Error("expected uppercase onion host to be detected")
	}
	if IsOnionHost("onion.example.com") {
		t.Error("expected regular host not to be detected")
	}
}

// TestDaemon tests the daemon manager without starting Tor.
func TestDaemon(t *testing.T) {
	t.Parallel()

	t.Run("defaults", func(t *testing.T) {
		t.Parallel()

		d := NewDaemon()
		if d.startupTimeout != DefaultStartupTimeout {
			t.Errorf("expected default timeout %v, got %v", DefaultStartupTimeout, d.startupTimeout)
		}
		if d.IsRunning() {
			t.Error("expected daemon not to be running")
		}
		if d.SocksAddr() != "" {
			t.Errorf("expected empty SOCKS address, got %q", d.SocksAddr())
		}
	})

	t.Run("startup timeout option", func(t *testing.T) {
		t.Parallel()

		if d := NewDaemon(WithStartupTimeout(30 * time.Second)); d.startupTimeout != 30*time.Second {
			t.Errorf("expected 30s, got %v", d.startupTimeout)
		}
		if d := NewDaemon(WithStartupTimeout(0)); d.startupTimeout != DefaultStartupTimeout {
			t.Errorf("expected zero to keep the default, got %v", d.startupTimeout)
		}
	})

	t.Run("proxy url requires a running daemon", func(t *testing.T) {
		t.Parallel()

		d := NewDaemon()
		if _, err := d.ProxyURL(); !errors.Is(err, ErrNotRunning) {
			t.Errorf("expected ErrNotRunning, got %v", err)
		}
	})

	t.Run("stop before start", func(t *testing.T) {
		t.Parallel()

		if err := NewDaemon().Stop(); err != nil {
			t.Errorf("expected nil, got %v", err)
		}
	})
}
