package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "cashdesk/pkg/domain-errors"
)

func TestParseDocumentType(t *testing.T) {
	for _, raw := range []string{"drivers_license", "passport", " state_id "} {
		got, err := ParseDocumentType(raw)
		require.NoError(t, err)
		assert.True(t, got.IsValid())
	}

	_, err := ParseDocumentType("PASSPORT")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
}

func TestDocumentRef(t *testing.T) {
	assert.Equal(t, "passport:X99", Document{Type: DocumentPassport, Number: "X99"}.Ref())
}
