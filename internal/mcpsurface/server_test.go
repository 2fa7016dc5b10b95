package mcpsurface

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewRegistersServerWithoutPanicking(t *testing.T) {
	s := testServer(t)
	require.NotNil(t, s.server)
}

func TestJSONResponseWrapsDataAsTextContent(t *testing.T) {
	result, err := jsonResponse(map[string]any{"ok": true})
	require.NoError(t, err)
	require.False(t, result.IsError)
	body := decodeText(t, result)
	require.Equal(t, true, body["ok"])
}

func TestErrorResponseSetsIsError(t *testing.T) {
	result, err := errorResponse("some_op", require.AnError)
	require.NoError(t, err)
	require.True(t, result.IsError)
	body := decodeText(t, result)
	require.Equal(t, "some_op", body["operation"])
}
