package importer

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// FingerprintFields names the key columns in fingerprint order.
var FingerprintFields = [8]string{
	"sl_no",
	"custodian_code",
	"unlo_code",
	"short_name",
	"custodian_organization",
	"state",
	"site_address",
	"pincode",
}

// Fingerprint identifies a site by its key fields. The zero value means every
// key field was empty and never matches anything.
type Fingerprint string

func (f Fingerprint) IsEmpty() bool { return f == "" }

// Ptr returns nil for the empty fingerprint so it can be stored as NULL.
func (f Fingerprint) Ptr() *string {
	if f.IsEmpty() {
		return nil
	}
	s := string(f)
	return &s
}

const fingerprintSep = "\x1f"

// ComputeFingerprint hashes the key fields after case and whitespace folding.
func ComputeFingerprint(values [8]*string) Fingerprint {
	parts := make([]string, len(values))
	empty := true
	for i, v := range values {
		parts[i] = foldKey(v)
		if parts[i] != "" {
			empty = false
		}
	}
	if empty {
		return ""
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, fingerprintSep)))
	return Fingerprint(hex.EncodeToString(sum[:]))
}

func foldKey(v *string) string {
	if v == nil {
		return ""
	}
	s := strings.ToLower(strings.Join(strings.Fields(*v), " "))
	switch s {
	case "-", "n/a":
		return ""
	}
	return s
}
