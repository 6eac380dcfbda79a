package respond

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWriteError(t *testing.T) {
	rr := httptest.NewRecorder()
	WriteNotFound(rr, "Contact not found")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"detail":"Contact not found","status":404}`, rr.Body.String())

	rr = httptest.NewRecorder()
	WriteError(rr, http.StatusBadGateway, "")
	assert.JSONEq(t, `{"detail":"Bad Gateway","status":502}`, rr.Body.String())
}

func TestWriteInternalError(t *testing.T) {
	rr := httptest.NewRecorder()
	WriteInternalError(rr)
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.JSONEq(t, `{"detail":"Internal server error","status":500}`, rr.Body.String())
}
