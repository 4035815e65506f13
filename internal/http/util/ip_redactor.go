package util

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"net/netip"
	"strings"
)

// IP storage policies.
const (
	IPPolicyNone     = "none"
	IPPolicyTruncate = "truncate"
	IPPolicyHash     = "hash"
)

var (
	ErrMissingSecret = errors.New("ip hash secret is not configured")
	ErrUnknownPolicy = errors.New("unknown ip policy")
)

// IPRedactor rewrites client addresses before they are stored. Truncation
// keeps the /24 of IPv4 and the /48 of IPv6 addresses; hashing replaces the
// address with a keyed HMAC so equal addresses still compare equal.
type IPRedactor struct {
	policy string
	secret []byte
}

// NewIPRedactor validates policy and returns a redactor for it. An empty
// policy means truncate.
func NewIPRedactor(policy string, secret []byte) (*IPRedactor, error) {
	policy = strings.ToLower(strings.TrimSpace(policy))
	if policy == "" {
		policy = IPPolicyTruncate
	}
	switch policy {
	case IPPolicyNone, IPPolicyTruncate:
	case IPPolicyHash:
		if len(secret) == 0 {
			return nil, ErrMissingSecret
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownPolicy, policy)
	}
	return &IPRedactor{policy: policy, secret: secret}, nil
}

// Policy reports the active policy name.
func (r *IPRedactor) Policy() string {
	return r.policy
}

// Redact applies the policy to ip. Unparseable input yields "".
func (r *IPRedactor) Redact(ip string) string {
	addr, err := netip.ParseAddr(strings.TrimSpace(ip))
	if err != nil {
		return ""
	}
	addr = addr.Unmap()

	switch r.policy {
	case IPPolicyNone:
		return addr.String()
	case IPPolicyHash:
		return r.sign(addr)
	default:
		bits := 24
		if addr.Is6() {
			bits = 48
		}
		prefix, err := addr.Prefix(bits)
		if err != nil {
			return ""
		}
		return prefix.Addr().String()
	}
}

func (r *IPRedactor) sign(addr netip.Addr) string {
	mac := hmac.New(sha256.New, r.secret)
	mac.Write(addr.AsSlice())
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil)[:16])
}
