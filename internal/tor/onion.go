package tor

import (
	"encoding/base32"
	"errors"
	"net"
	"regexp"
	"strings"

	"golang.org/x/crypto/sha3"
)

// OnionSuffix is the top-level domain of onion services.
const OnionSuffix = ".onion"

// onionV3Version is the version byte at the end of a decoded v3 address.
const onionV3Version = 0x03

var (
	// ErrInvalidOnionAddress is returned for an onion host that is not a
	// valid v3 address.
	ErrInvalidOnionAddress = errors.New("invalid onion address")

	// ErrV2AddressDeprecated is returned for a 16-character v2 address.
	// The Tor network stopped serving them in 2021.
	ErrV2AddressDeprecated = errors.New("v2 onion addresses are no longer reachable")
)

// Onion hosts may carry subdomains ("docs.<56 chars>.onion"); only the last
// label before the suffix is the service address.
var (
	onionV3Label = regexp.MustCompile(`^[a-z2-7]{56}$`)
	onionV2Label = regexp.MustCompile(`^[a-z2-7]{16}$`)
)

// checksumPrefix is hashed in front of the public key in v3 checksums.
var checksumPrefix = []byte(".onion checksum")

// IsOnionHost reports whether host (optionally with a port) is in the
// .onion domain.
func IsOnionHost(host string) bool {
	return strings.HasSuffix(hostname(host), OnionSuffix)
}

// ValidateHost checks an onion host. Hosts outside .onion are always valid.
func ValidateHost(host string) error {
	name := hostname(host)
	if !strings.HasSuffix(name, OnionSuffix) {
		return nil
	}

	labels := strings.Split(strings.TrimSuffix(name, OnionSuffix), ".")
	service := labels[len(labels)-1]

	switch {
	case IsValidV3Address(service + OnionSuffix):
		return nil
	case onionV2Label.MatchString(service):
		return ErrV2AddressDeprecated
	default:
		return ErrInvalidOnionAddress
	}
}

// IsValidV3Address reports whether address is a v3 onion address with a
// correct version byte and checksum.
func IsValidV3Address(address string) bool {
	label, ok := strings.CutSuffix(strings.ToLower(address), OnionSuffix)
	if !ok || !onionV3Label.MatchString(label) {
		return false
	}

	// 32 bytes public key, 2 bytes checksum, 1 byte version.
	decoded, err := base32.StdEncoding.DecodeString(strings.ToUpper(label))
	if err != nil || len(decoded) != 35 {
		return false
	}

	pubkey, checksum, version := decoded[:32], decoded[32:34], decoded[34]
	if version != onionV3Version {
		return false
	}

	want := v3Checksum(pubkey, version)
	return checksum[0] == want[0] && checksum[1] == want[1]
}

// v3Checksum returns the first two bytes of
// SHA3-256(".onion checksum" || pubkey || version).
func v3Checksum(pubkey []byte, version byte) []byte {
	data := make([]byte, 0, len(checksumPrefix)+len(pubkey)+1)
	data = append(data, checksumPrefix...)
	data = append(data, pubkey...)
	data = append(data, version)

	sum := sha3.Sum256(data)
	return sum[:2]
}

// hostname lowercases host and strips a port.
func hostname(host string) string {
	host = strings.ToLower(host)
	if h, _, err := net.SplitHostPort(host); err == nil {
		return h
	}
	return host
}
