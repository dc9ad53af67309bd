package audit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFingerprinter(t *testing.T) {
	f, err := NewFingerprinter("0123456789abcdef0123456789abcdef")
	require.NoError(t, err)

	a := f.Fingerprint("passport", "ab 123456")
	b := f.Fingerprint("passport", "AB123456")
	assert.Equal(t, a, b, "normalization should make equivalent numbers collide")
	assert.Len(t, a, 64)
	assert.NotContains(t, a, "123456")

	assert.NotEqual(t, a, f.Fingerprint("state_id", "AB123456"))

	other, err := NewFingerprinter("fedcba9876543210fedcba9876543210")
	require.NoError(t, err)
	assert.NotEqual(t, a, other.Fingerprint("passport", "AB123456"))
}

func TestNewFingerprinter_KeyLength(t *testing.T) {
	_, err := NewFingerprinter("short")
	assert.Error(t, err)

	_, err = NewFingerprinter(string(make([]byte, 65)))
	assert.Error(t, err)
}

func TestNilFingerprinter(t *testing.T) {
	var f *Fingerprinter
	assert.Empty(t, f.Fingerprint("passport", "X"))
}

func TestAuditEventCategory(t *testing.T) {
	assert.Equal(t, CategoryCompliance, EventDepositCompleted.Category())
	assert.Equal(t, CategorySecurity, EventDepositRateLimited.Category())
	assert.Equal(t, CategoryOperations, AuditEvent("unknown").Category())
}
