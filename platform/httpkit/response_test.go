package httpkit

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"estate_crm_backend/platform/apperr"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serveError(err error) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	HandleError(c, err)
	return rec
}

func TestHandleErrorUsesKindAndCode(t *testing.T) {
	err := fmt.Errorf("decide: %w", apperr.InvalidTransition("request is already approved"))
	rec := serveError(err)

	assert.Equal(t, http.StatusConflict, rec.Code)

	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "request is already approved", body.Error)
	assert.Equal(t, apperr.CodeInvalidTransition, body.ErrorCode)
}

func TestHandleErrorIncludesDetails(t *testing.T) {
	rec := serveError(apperr.Validation("invalid lead").WithDetails(map[string]string{"customerId": "does not exist"}))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"invalid lead","errorCode":"VALIDATION_ERROR","details":{"customerId":"does not exist"}}`, rec.Body.String())
}

func TestHandleErrorHidesUnexpectedCause(t *testing.T) {
	rec := serveError(errors.New("connection reset by peer"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "connection reset")
	assert.Contains(t, rec.Body.String(), apperr.CodeInternal)
}

func TestHandleErrorNil(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	assert.False(t, HandleError(c, nil))
}
