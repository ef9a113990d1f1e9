package api

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// @title GitHub Yearly API
// @version 1.0
// @description API for requesting yearly GitHub activity reports
// @contact.name API Support
// @contact.url http://github.com/Kamar-Folarin
// @license.name MIT
// @license.url https://opensource.org/licenses/MIT
// @host localhost:8080
// @BasePath /
// @schemes http https

// SetupRouter configures the API routes
func SetupRouter(h *Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	RegisterRoutes(r, h)
	return r
}

// RegisterRoutes attaches every endpoint to r
func RegisterRoutes(r *gin.Engine, h *Handler) {
	// API documentation
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// @Summary Worker status
	// @Description Counters of the background report workers
	// @Tags system
	// @Produce json
	// @Success 200 {object} jobs.Stats
	// @Router /status [get]
	r.GET("/status", h.Status)

	// @Summary Health check
	// @Tags system
	// @Produce json
	// @Success 200 {object} HealthResponse
	// @Failure 503 {object} HealthResponse
	// @Router /health [get]
	r.GET("/health", h.Health)

	authGroup := r.Group("/auth")
	{
		// @Summary Start GitHub login
		// @Tags auth
		// @Success 302
		// @Router /auth/login [get]
		authGroup.GET("/login", h.Login)

		// @Summary Complete GitHub login
		// @Tags auth
		// @Produce json
		// @Param code query string true "Authorization code"
		// @Param state query string true "OAuth state"
		// @Success 200 {object} LoginResponse
		// @Failure 400 {object} ErrorResponse
		// @Failure 401 {object} ErrorResponse
		// @Router /auth/callback [get]
		authGroup.GET("/callback", h.Callback)
	}

	v1 := r.Group("/api/v1")
	{
		reports := v1.Group("/reports")
		{
			// @Summary Request a yearly report
			// @Tags reports
			// @Accept json
			// @Produce json
			// @Param request body ReportRequestBody true "Report request"
			// @Success 200 {object} RequestStatusResponse
			// @Success 202 {object} RequestStatusResponse
			// @Failure 400 {object} ErrorResponse
			// @Failure 422 {object} RequestStatusResponse
			// @Failure 503 {object} ErrorResponse
			// @Router /api/v1/reports [post]
			reports.POST("", h.RequestReport)

			// @Summary Get a yearly report
			// @Tags reports
			// @Produce json
			// @Param username path string true "GitHub login"
			// @Param year path int true "Year"
			// @Success 200 {object} models.YearlyReport
			// @Success 202 {object} RequestStatusResponse
			// @Failure 404 {object} ErrorResponse
			// @Failure 422 {object} RequestStatusResponse
			// @Router /api/v1/reports/{username}/{year} [get]
			reports.GET("/:username/:year", h.GetReport)

			// @Summary Get report request status
			// @Tags reports
			// @Produce json
			// @Param username path string true "GitHub login"
			// @Param year path int true "Year"
			// @Success 200 {object} RequestStatusResponse
			// @Failure 404 {object} ErrorResponse
			// @Router /api/v1/reports/{username}/{year}/status [get]
			reports.GET("/:username/:year/status", h.GetReportStatus)
		}
	}
}
