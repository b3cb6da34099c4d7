package codesign

import (
	"crypto/sha1"
	"crypto/x509"
	"encoding/hex"
	"fmt"
	"strings"

	gop12 "software.sslmate.com/src/go-pkcs12"
)

// P12Identity is the signing certificate carried by a PKCS#12 bundle.
type P12Identity struct {
	Identity
	TeamID      string
	Certificate *x509.Certificate
}

// IdentityFromP12 decodes a PKCS#12 bundle and returns its certificate's
// identity. The hash is the uppercase SHA-1 fingerprint, the same value
// security find-identity prints, so codesign accepts it as long as the
// bundle has been imported into the keychain.
func IdentityFromP12(p12Data []byte, password string) (*P12Identity, error) {
	if len(p12Data) == 0 {
		return nil, fmt.Errorf("P12 certificate data is required")
	}

	_, cert, _, err := gop12.DecodeChain(p12Data, password)
	if err != nil {
		return nil, fmt.Errorf("failed to decode P12: %w", err)
	}

	return &P12Identity{
		Identity: Identity{
			Index: 1,
			Hash:  CertificateHash(cert),
			Name:  cert.Subject.CommonName,
		},
		TeamID:      extractTeamID(cert),
		Certificate: cert,
	}, nil
}

// CertificateHash returns the SHA-1 fingerprint of cert in uppercase hex.
func CertificateHash(cert *x509.Certificate) string {
	sum := sha1.Sum(cert.Raw)
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}

func extractTeamID(cert *x509.Certificate) string {
	// Team ID is typically in the Organizational Unit field
	for _, ou := range cert.Subject.OrganizationalUnit {
		if len(ou) == 10 && isAlphanumeric(ou) {
			return ou
		}
	}
	return ""
}

// isAlphanumeric checks if a string contains only uppercase letters and digits
func isAlphanumeric(s string) bool {
	for _, r := range s {
		if !((r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')) {
			return false
		}
	}
	return true
}
