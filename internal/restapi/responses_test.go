package restapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ontime.transit.dev/internal/models"
)

func TestSendResponse(t *testing.T) {
	api := createTestApi(t)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/test", nil)
	api.sendOK(w, r, map[string]string{"test": "data"})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var decoded models.ResponseModel
	require.NoError(t, json.NewDecoder(w.Body).Decode(&decoded))
	assert.Equal(t, http.StatusOK, decoded.Code)
	assert.Equal(t, testNow.UnixMilli(), decoded.CurrentTime)
	assert.Equal(t, map[string]any{"test": "data"}, decoded.Data)
}

func TestSendNotFound(t *testing.T) {
	api := createTestApi(t)

	w := httptest.NewRecorder()
	api.sendNotFound(w, httptest.NewRequest(http.MethodGet, "/missing", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
	var decoded models.ResponseModel
	require.NoError(t, json.NewDecoder(w.Body).Decode(&decoded))
	assert.Equal(t, http.StatusNotFound, decoded.Code)
	assert.Equal(t, "resource not found", decoded.Text)
	assert.Nil(t, decoded.Data)
}

func TestServerErrorResponseHidesDetails(t *testing.T) {
	api := createTestApi(t)

	w := httptest.NewRecorder()
	api.serverErrorResponse(w, httptest.NewRequest(http.MethodGet, "/x", nil), errors.New("disk on fire"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "disk on fire")
}

func TestValidationErrorResponse(t *testing.T) {
	api := createTestApi(t)

	w := httptest.NewRecorder()
	api.validationErrorResponse(w, httptest.NewRequest(http.MethodGet, "/x", nil),
		map[string][]string{"lat": {"lat is required"}})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	var decoded struct {
		Code int `json:"code"`
		Data struct {
			FieldErrors map[string][]string `json:"fieldErrors"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&decoded))
	assert.Equal(t, http.StatusBadRequest, decoded.Code)
	assert.Equal(t, []string{"lat is required"}, decoded.Data.FieldErrors["lat"])
}
