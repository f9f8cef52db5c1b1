package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRespondErrorMapsWrappedSentinels(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("booking: %w", ErrNotFound), http.StatusNotFound},
		{fmt.Errorf("dup: %w", ErrDuplicate), http.StatusConflict},
		{fmt.Errorf("state: %w", ErrConflict), http.StatusConflict},
		{fmt.Errorf("input: %w", ErrValidation), http.StatusBadRequest},
		{fmt.Errorf("actor: %w", ErrForbidden), http.StatusForbidden},
		{fmt.Errorf("token: %w", ErrUnauthorized), http.StatusUnauthorized},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		rr := httptest.NewRecorder()
		RespondError(rr, tc.err)
		assert.Equal(t, tc.want, rr.Code, tc.err.Error())
		assert.Equal(t, "application/problem+json", rr.Header().Get("Content-Type"))

		var p ProblemDetail
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &p))
		assert.Equal(t, tc.want, p.Status)
	}
}
