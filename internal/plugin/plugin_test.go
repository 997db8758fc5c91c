package plugin

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatFormID(t *testing.T) {
	assert.Equal(t, "000001", FormatFormID(0x000001))
	assert.Equal(t, "ABCDEF", FormatFormID(0xABCDEF))
	// Only the low 24 bits matter; the load-order byte is dropped.
	assert.Equal(t, "012345", FormatFormID(0xFE012345))
	assert.Equal(t, "000000", FormatFormID(0x05000000))
}

func TestDefaultWithoutRegistration(t *testing.T) {
	_, err := Default()
	assert.True(t, errors.Is(err, ErrNoDecoder))
}
