package checkpoint

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestName(t *testing.T) {
	assert.Equal(t, "checkpoint_0_iteration.zip", Name(0, Iteration))
	assert.Equal(t, "checkpoint_12_epoch.zip", Name(12, Epoch))
}

func TestParseName(t *testing.T) {
	n, kind, err := ParseName("checkpoint_12_epoch.zip")
	require.NoError(t, err)
	assert.Equal(t, 12, n)
	assert.Equal(t, Epoch, kind)

	for _, bad := range []string{
		"",
		"CURRENT",
		"checkpoint_1_iteration.tar",
		"checkpoint_x_iteration.zip",
		"checkpoint_-1_iteration.zip",
		"checkpoint_01_iteration.zip",
		"checkpoint_1_step.zip",
		"checkpoint_1.zip",
		"model_1_epoch.zip",
	} {
		t.Run(bad, func(t *testing.T) {
			_, _, err := ParseName(bad)
			assert.ErrorIs(t, err, ErrInvalidName)
		})
	}
}

func TestMethodString(t *testing.T) {
	assert.Equal(t, "store", Store.String())
	assert.Equal(t, "deflate", Deflate.String())
	assert.Equal(t, "zstd", Zstd.String())
	assert.Equal(t, "unknown", Method(7).String())
}
