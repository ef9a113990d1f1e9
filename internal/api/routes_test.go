package api

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestRouteRegistration(t *testing.T) {
	gin.SetMode(gin.TestMode)
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	router := SetupRouter(NewHandler(new(MockStore), new(MockQueue), nil, new(MockOAuth), new(MockLoginResolver), logger))

	registered := make(map[string]bool)
	for _, route := range router.Routes() {
		registered[route.Method+" "+route.Path] = true
	}

	for _, want := range []string{
		"GET /status",
		"GET /health",
		"GET /auth/login",
		"GET /auth/callback",
		"POST /api/v1/reports",
		"GET /api/v1/reports/:username/:year",
		"GET /api/v1/reports/:username/:year/status",
		"GET /swagger/*any",
	} {
		assert.True(t, registered[want], "route %s not registered", want)
	}
}

func TestSwaggerDocServed(t *testing.T) {
	gin.SetMode(gin.TestMode)
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	router := SetupRouter(NewHandler(new(MockStore), new(MockQueue), nil, new(MockOAuth), new(MockLoginResolver), logger))

	req := httptest.NewRequest(http.MethodGet, "/swagger/doc.json", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "/api/v1/reports")
}
