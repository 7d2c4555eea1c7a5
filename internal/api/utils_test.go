package api

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/go-itinerary-rag/internal/types"
)

type chatBody struct {
	Query string `json:"query"`
}

func decode(body string, dst any) error {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", strings.NewReader(body))
	return DecodeJSONBody(httptest.NewRecorder(), req, dst)
}

func TestDecodeJSONBody(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		var dst chatBody
		require.NoError(t, decode(`{"query":"Add lunch"}`, &dst))
		assert.Equal(t, "Add lunch", dst.Query)
	})

	invalid := map[string]struct {
		body string
		msg  string
	}{
		"empty":         {``, "empty body"},
		"truncated":     {`{"query":`, "malformed JSON"},
		"syntax":        {`{"query" "x"}`, "malformed JSON at offset"},
		"wrong type":    {`{"query": 7}`, `field "query" must be string`},
		"unknown field": {`{"query":"x","extra":1}`, `unknown field "extra"`},
		"two values":    {`{"query":"x"}{"query":"y"}`, "single JSON value"},
		"too large":     {`{"query":"` + strings.Repeat("a", maxRequestBodyBytes) + `"}`, "larger than"},
	}
	for name, tc := range invalid {
		t.Run(name, func(t *testing.T) {
			var dst chatBody
			err := decode(tc.body, &dst)
			require.Error(t, err)
			assert.ErrorIs(t, err, types.ErrInvalidRequest)
			assert.Contains(t, err.Error(), tc.msg)
		})
	}

	t.Run("bad target is not a client error", func(t *testing.T) {
		err := decode(`{"query":"x"}`, chatBody{})
		require.Error(t, err)
		assert.False(t, errors.Is(err, types.ErrInvalidRequest))
	})
}
