package apperrors

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError_IsSurvivesCopies(t *testing.T) {
	withDetails := ErrReportNotFound.WithDetails(map[string]string{"id": "42"})
	wrapped := fmt.Errorf("lookup: %w", withDetails)

	assert.True(t, errors.Is(wrapped, ErrReportNotFound))
	assert.False(t, errors.Is(wrapped, ErrReportResolved))
	assert.Nil(t, ErrReportNotFound.Details, "predefined error must not be mutated")
}

func TestAppError_UnwrapAndAs(t *testing.T) {
	cause := errors.New("connection reset")
	err := fmt.Errorf("save: %w", InternalError(cause))

	appErr, ok := AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, CodeInternalError, appErr.Code)
	assert.ErrorIs(t, err, cause)
}

func TestAppError_MarshalHidesCause(t *testing.T) {
	err := Wrap(errors.New("secret dsn"), CodeConflict, "report", "conflict", http.StatusConflict)
	raw, marshalErr := json.Marshal(err)
	require.NoError(t, marshalErr)
	assert.NotContains(t, string(raw), "secret dsn")
	assert.Contains(t, string(raw), `"code":"CONFLICT"`)
}

func TestHandleError_WritesEnvelope(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"validation", ValidationError(map[string]string{"name": "This field is required"}), http.StatusBadRequest, "VALIDATION_FAILED"},
		{"not found", ErrReportNotFound, http.StatusNotFound, "NOT_FOUND"},
		{"forbidden", ErrResponderNotAssigned, http.StatusForbidden, "FORBIDDEN"},
		{"conflict", ErrReportResolved, http.StatusConflict, "INVALID_STATUS"},
		{"plain error", errors.New("boom"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

			HandleError(c, tc.err)

			assert.Equal(t, tc.status, w.Code)
			var body struct {
				Success bool `json:"success"`
				Error   struct {
					Code string `json:"code"`
				} `json:"error"`
			}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.False(t, body.Success)
			assert.Equal(t, tc.code, body.Error.Code)
		})
	}
}
