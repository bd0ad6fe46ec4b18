// ABOUTME: Tests for pairing artifact rendering
// ABOUTME: Verifies data URL shape and PNG payload

package pairing

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender_ProducesPNGDataURL(t *testing.T) {
	url, err := Render("2@abc123,def456")
	require.NoError(t, err)

	require.True(t, strings.HasPrefix(url, "data:image/png;base64,"))

	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(url, "data:image/png;base64,"))
	require.NoError(t, err)
	require.Greater(t, len(raw), 8)
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, raw[:4])
}

func TestRender_EmptyMaterialFails(t *testing.T) {
	_, err := Render("")
	assert.Error(t, err)
}
