package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	appErrors "github.com/athlosone/athlos-server/pkg/errors"
)

func newTestContext() (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	return c, rec
}

func TestSuccessEnvelope(t *testing.T) {
	c, rec := newTestContext()

	Success(c, http.StatusCreated, gin.H{"id": "abc"})

	require.Equal(t, http.StatusCreated, rec.Code)

	var body Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.True(t, body.Success)
	require.Nil(t, body.Error)
}

func TestErrorEnvelopeFromAppError(t *testing.T) {
	c, rec := newTestContext()

	Error(c, appErrors.ErrAccountExists)

	require.Equal(t, http.StatusConflict, rec.Code)

	var body Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.False(t, body.Success)
	require.NotNil(t, body.Error)
	require.Equal(t, "ACCOUNT_EXISTS", body.Error.Code)
}

func TestErrorEnvelopeFromGenericError(t *testing.T) {
	c, rec := newTestContext()

	Error(c, errors.New("boom"))

	require.Equal(t, http.StatusInternalServerError, rec.Code)

	var body Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, appErrors.ErrInternalServer.Code, body.Error.Code)

	// Internal detail never leaks to clients.
	require.NotContains(t, rec.Body.String(), "boom")
}

func TestErrorNilDefaultsToInternal(t *testing.T) {
	c, rec := newTestContext()

	Error(c, nil)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
}
