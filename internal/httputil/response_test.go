package httputil

import (
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/pulsesim/internal/monitoring"
)

func TestErrorResponses(t *testing.T) {
	tests := []struct {
		name   string
		write  func(http.ResponseWriter)
		status int
		msg    string
	}{
		{"bad request", func(w http.ResponseWriter) { BadRequest(w, "invalid limit") }, http.StatusBadRequest, "invalid limit"},
		{"not found", func(w http.ResponseWriter) { NotFound(w, "run missing") }, http.StatusNotFound, "run missing"},
		{"internal", func(w http.ResponseWriter) { InternalServerError(w, "database locked") }, http.StatusInternalServerError, "database locked"},
		{"custom", func(w http.ResponseWriter) { WriteJSONError(w, http.StatusConflict, "busy") }, http.StatusConflict, "busy"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			tt.write(rec)

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			var body ErrorBody
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, ErrorBody{Error: tt.msg, Status: tt.status}, body)
		})
	}
}

func TestWriteJSONOK(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteJSONOK(rec, map[string][]float64{"x": {0, 1e-6}})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"x":[0,0.000001]}`, rec.Body.String())
}

func TestWriteJSON_EncodeFailure(t *testing.T) {
	var logged []string
	monitoring.SetLogger(func(format string, v ...interface{}) { logged = append(logged, format) })
	t.Cleanup(func() { monitoring.SetDefault(nil) })

	rec := httptest.NewRecorder()
	WriteJSON(rec, http.StatusOK, math.NaN())

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, logged, 1)
	assert.True(t, strings.HasPrefix(logged[0], "failed to encode"))
}
