package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVersion_DefaultsToDev(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "dev", Version)
}
