package validators

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpirationValidator(t *testing.T) {
	tests := map[string]time.Duration{
		"24h": 24 * time.Hour,
		"7d":  168 * time.Hour,
		"30d": 720 * time.Hour,
	}

	for opt, want := range tests {
		d, err := ExpirationValidator(opt)
		require.NoError(t, err, opt)
		assert.Equal(t, want, d, opt)
	}

	for _, bad := range []string{"", "1h", "24H", "never", "90d"} {
		_, err := ExpirationValidator(bad)
		assert.ErrorIs(t, err, ErrExpirationInvalid, bad)
	}
}

func TestLabelValidator(t *testing.T) {
	ok := strings.Repeat("é", MaxLabelLength)
	long := strings.Repeat("a", MaxLabelLength+1)

	assert.NoError(t, LabelValidator(nil))
	assert.NoError(t, LabelValidator(&ok))
	assert.ErrorIs(t, LabelValidator(&long), ErrLabelTooLong)
}
