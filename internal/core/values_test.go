package core

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestScriptErrorFormatsWithoutTrace(t *testing.T) {
	err := NewScriptError("boom", "")
	require.Equal(t, "boom", err.Error())
}

func TestScriptErrorFormatsWithTrace(t *testing.T) {
	err := NewScriptError("boom", "at line 3")
	require.Equal(t, "boom\nat line 3", err.Error())
}

func TestScriptErrorPreservesArbitraryValue(t *testing.T) {
	original := map[string]any{"code": 42}
	err := NewScriptError(original, "")

	require.Equal(t, original, err.Value)
}

func TestValuesPayloadCarriesValsNotErr(t *testing.T) {
	payload := ValuesPayload(Values{1, "two"})
	require.Nil(t, payload.Err)
	require.Equal(t, Values{1, "two"}, payload.Vals)
}

func TestErrorPayloadCarriesErrNotVals(t *testing.T) {
	cause := NewScriptError("nope", "")
	payload := ErrorPayload(cause)
	require.Nil(t, payload.Vals)
	require.ErrorIs(t, payload.Err, cause)
}
