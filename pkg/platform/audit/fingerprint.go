package audit

import (
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// Fingerprinter derives stable, keyed digests of identity documents so audit
// consumers can correlate deposits made with the same document without ever
// seeing its number. The key must be persisted; rotating it breaks correlation.
type Fingerprinter struct {
	key []byte
}

// NewFingerprinter validates the key length accepted by keyed BLAKE2b.
func NewFingerprinter(key string) (*Fingerprinter, error) {
	if len(key) < 16 || len(key) > blake2b.Size {
		return nil, fmt.Errorf("audit fingerprint key must be between 16 and %d bytes", blake2b.Size)
	}
	return &Fingerprinter{key: []byte(key)}, nil
}

// Fingerprint returns the hex digest of "<type>:<number>". Document numbers
// are normalized to upper case without spaces first.
func (f *Fingerprinter) Fingerprint(docType, number string) string {
	if f == nil {
		return ""
	}
	h, err := blake2b.New256(f.key)
	if err != nil {
		return ""
	}
	normalized := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(number), " ", ""))
	h.Write([]byte(docType + ":" + normalized))
	return hex.EncodeToString(h.Sum(nil))
}
