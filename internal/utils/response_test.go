package utils

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSuccessResponseEnvelope(t *testing.T) {
	raw, err := json.Marshal(SuccessResponse([]string{"A1"}))
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "OK", decoded["status"])
	assert.Equal(t, []interface{}{"A1"}, decoded["data"])
	assert.NotContains(t, decoded, "pesan")
}

func TestErrorResponseEnvelope(t *testing.T) {
	raw, err := json.Marshal(ErrorResponse("Kursi sudah dipesan", "seat A1 held"))
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "Kursi sudah dipesan", decoded["pesan"])
	assert.Equal(t, "seat A1 held", decoded["error"])
	assert.NotContains(t, decoded, "status")
}
