package respond

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWriteJSONUnencodablePayloadIsServerError(t *testing.T) {
	rr := httptest.NewRecorder()
	WriteJSON(rr, http.StatusCreated, map[string]time.Time{"start_time": time.Date(10000, time.January, 1, 0, 0, 0, 0, time.UTC)})

	require.Equal(t, http.StatusInternalServerError, rr.Code)
	var problem Problem
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &problem))
	require.Equal(t, TypeServerError, problem.Type)
}

func TestWriteInvalidQuery(t *testing.T) {
	rr := httptest.NewRecorder()
	WriteInvalidQuery(rr, map[string][]string{"limit": {"A positive integer is required."}})

	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	var problem Problem
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &problem))
	require.Equal(t, TypeInvalidRequest, problem.Type)
	require.Equal(t, []string{"A positive integer is required."}, problem.Fields["limit"])
}
