package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/loan-query-api/pkg/errors"
)

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestListIncludesCount(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	List(c, []string{"a", "b"}, 7)

	body := decode(t, w)
	require.Equal(t, true, body["success"])
	require.Equal(t, float64(7), body["count"])
}

func TestErrorStatusMapping(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cases := []struct {
		err    error
		status int
	}{
		{appErrors.Clone(appErrors.ErrValidation, "appNo is required"), http.StatusBadRequest},
		{appErrors.ErrNotFound, http.StatusNotFound},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		Error(c, tc.err)
		require.Equal(t, tc.status, w.Code)
		body := decode(t, w)
		require.Equal(t, false, body["success"])
		require.NotEmpty(t, body["error"])
	}
}
