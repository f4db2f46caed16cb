//go:build !release

package assert

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestThat(t *testing.T) {
	t.Parallel()

	assert.NotPanics(t, func() { That(true, "never") })
	assert.PanicsWithValue(t, "bad value 3", func() { That(false, "bad value %d", 3) })
}
