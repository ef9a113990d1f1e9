package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/Kamar-Folarin/github-yearly/internal/auth"
	"github.com/Kamar-Folarin/github-yearly/internal/db"
	apperrors "github.com/Kamar-Folarin/github-yearly/internal/errors"
	"github.com/Kamar-Folarin/github-yearly/internal/github"
	"github.com/Kamar-Folarin/github-yearly/internal/jobs"
	"github.com/Kamar-Folarin/github-yearly/internal/models"
)

const stateCookieMaxAge = 600

// JobQueue accepts background jobs
type JobQueue interface {
	Submit(job jobs.Job) error
	Stats() jobs.Stats
}

// JobFactory builds the job that fetches the report of username for year
type JobFactory func(username, token string, year int) jobs.Job

// OAuthProvider runs the authorization code flow
type OAuthProvider interface {
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) (string, error)
}

// LoginResolver resolves the login of a token's owner
type LoginResolver interface {
	AuthenticatedLogin(ctx context.Context, token string) (string, error)
}

type Handler struct {
	store  db.Store
	queue  JobQueue
	newJob JobFactory
	oauth  OAuthProvider
	users  LoginResolver
	logger *logrus.Logger
	now    func() time.Time
}

func NewHandler(store db.Store, queue JobQueue, newJob JobFactory, oauth OAuthProvider, users LoginResolver, logger *logrus.Logger) *Handler {
	return &Handler{
		store:  store,
		queue:  queue,
		newJob: newJob,
		oauth:  oauth,
		users:  users,
		logger: logger,
		now:    time.Now,
	}
}

// Status reports the background worker counters
func (h *Handler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, h.queue.Stats())
}

// Health checks the report store
func (h *Handler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		h.logger.WithError(err).Warn("Health check failed")
		c.JSON(http.StatusServiceUnavailable, HealthResponse{Status: "unavailable", Database: err.Error()})
		return
	}
	c.JSON(http.StatusOK, HealthResponse{Status: "ok", Database: "ok"})
}

// Login redirects to the GitHub authorization page
func (h *Handler) Login(c *gin.Context) {
	state := auth.NewState()
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(auth.StateCookie, state, stateCookieMaxAge, "/", "", false, true)
	c.Redirect(http.StatusFound, h.oauth.AuthURL(state))
}

// Callback completes the OAuth flow and returns the access token with its owner
func (h *Handler) Callback(c *gin.Context) {
	state, err := c.Cookie(auth.StateCookie)
	if err != nil || state == "" || state != c.Query("state") {
		respondWithError(c, http.StatusBadRequest, "Invalid OAuth state")
		return
	}
	c.SetCookie(auth.StateCookie, "", -1, "/", "", false, true)

	code := c.Query("code")
	if code == "" {
		respondWithError(c, http.StatusBadRequest, "Missing authorization code")
		return
	}

	token, err := h.oauth.Exchange(c.Request.Context(), code)
	if err != nil {
		h.logger.WithError(err).Warn("OAuth code exchange failed")
		respondWithAppError(c, apperrors.NewUnauthorizedError("Failed to exchange authorization code", err))
		return
	}

	login, err := h.users.AuthenticatedLogin(c.Request.Context(), token)
	if err != nil {
		if github.IsUnauthorized(err) {
			respondWithAppError(c, apperrors.NewUnauthorizedError("GitHub rejected the access token", err))
			return
		}
		h.logger.WithError(err).Error("Failed to resolve authenticated user")
		respondWithError(c, http.StatusBadGateway, "Failed to resolve GitHub user")
		return
	}

	c.JSON(http.StatusOK, LoginResponse{
		AccessToken: token,
		Username:    login,
		CurrentYear: h.now().Year(),
	})
}

// RequestReport registers a report request and schedules its fetch
func (h *Handler) RequestReport(c *gin.Context) {
	var body ReportRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		respondWithError(c, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	username := normalizeUsername(body.Username)
	if err := h.validateYear(body.Year); err != nil {
		respondWithAppError(c, err)
		return
	}
	if body.Timezone != "" {
		if _, err := time.LoadLocation(body.Timezone); err != nil {
			respondWithError(c, http.StatusBadRequest, fmt.Sprintf("Unknown timezone %q", body.Timezone))
			return
		}
	}

	logger := h.logger.WithFields(logrus.Fields{
		"username": username,
		"year":     body.Year,
	})
	ctx := c.Request.Context()

	created, err := h.store.CreateRequest(ctx, &models.ReportRequest{
		ReportKey: models.ReportKey{Username: username, Year: body.Year},
		Status:    models.RequestPending,
		Timezone:  body.Timezone,
	})
	if err != nil {
		logger.WithError(err).Error("Failed to create report request")
		respondWithError(c, http.StatusInternalServerError, "Failed to create report request")
		return
	}

	if !created {
		req, err := h.store.GetRequest(ctx, username, body.Year)
		if err != nil {
			logger.WithError(err).Error("Failed to load report request")
			respondWithAppError(c, err)
			return
		}
		h.respondWithRequest(c, req)
		return
	}

	if err := h.queue.Submit(h.newJob(username, body.AccessToken, body.Year)); err != nil {
		logger.WithError(err).Warn("Failed to schedule report job")
		if markErr := h.store.MarkRequestFailed(context.WithoutCancel(ctx), username, body.Year, err.Error()); markErr != nil {
			logger.WithError(markErr).Error("Failed to mark request failed")
		}
		respondWithAppError(c, apperrors.NewUnavailableError("Report queue is busy, try again later", err))
		return
	}

	logger.Info("Scheduled report job")
	c.JSON(http.StatusAccepted, RequestStatusResponse{
		Username: username,
		Year:     body.Year,
		Status:   string(models.RequestPending),
	})
}

// GetReport returns a stored report
func (h *Handler) GetReport(c *gin.Context) {
	username, year, ok := h.reportKey(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	report, err := h.store.GetReport(ctx, username, year)
	if err == nil {
		c.Data(http.StatusOK, "application/json; charset=utf-8", report.Report)
		return
	}
	if !apperrors.IsNotFound(err) {
		h.logger.WithError(err).Error("Failed to load report")
		respondWithAppError(c, err)
		return
	}

	req, err := h.store.GetRequest(ctx, username, year)
	if err != nil {
		respondWithAppError(c, err)
		return
	}
	if req.Status == models.RequestCompleted {
		// report row removed behind a completed request
		respondWithError(c, http.StatusNotFound, "Report not found")
		return
	}
	h.respondWithRequest(c, req)
}

// GetReportStatus returns the lifecycle state of a report request
func (h *Handler) GetReportStatus(c *gin.Context) {
	username, year, ok := h.reportKey(c)
	if !ok {
		return
	}

	req, err := h.store.GetRequest(c.Request.Context(), username, year)
	if err != nil {
		respondWithAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, newRequestStatusResponse(req))
}

func (h *Handler) respondWithRequest(c *gin.Context, req *models.ReportRequest) {
	resp := newRequestStatusResponse(req)
	switch req.Status {
	case models.RequestCompleted:
		c.JSON(http.StatusOK, resp)
	case models.RequestFailed:
		c.JSON(http.StatusUnprocessableEntity, resp)
	default:
		c.JSON(http.StatusAccepted, resp)
	}
}

func (h *Handler) reportKey(c *gin.Context) (string, int, bool) {
	username := normalizeUsername(c.Param("username"))
	if username == "" {
		respondWithError(c, http.StatusBadRequest, "Username is required")
		return "", 0, false
	}

	year, err := strconv.Atoi(c.Param("year"))
	if err != nil {
		respondWithError(c, http.StatusBadRequest, "Invalid year parameter")
		return "", 0, false
	}
	if err := h.validateYear(year); err != nil {
		respondWithAppError(c, err)
		return "", 0, false
	}
	return username, year, true
}

func (h *Handler) validateYear(year int) error {
	current := h.now().Year()
	if year < models.FirstReportYear || year > current {
		return apperrors.NewValidationError(
			fmt.Sprintf("year must be between %d and %d", models.FirstReportYear, current), nil)
	}
	return nil
}

func newRequestStatusResponse(req *models.ReportRequest) RequestStatusResponse {
	resp := RequestStatusResponse{
		Username:  req.Username,
		Year:      req.Year,
		Status:    string(req.Status),
		Error:     req.LastError,
		UpdatedAt: req.UpdatedAt,
	}
	if req.Status == models.RequestCompleted {
		resp.ReportURL = fmt.Sprintf("/api/v1/reports/%s/%d", req.Username, req.Year)
	}
	return resp
}

// GitHub logins are case-insensitive
func normalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

func respondWithError(c *gin.Context, code int, message string) {
	c.AbortWithStatusJSON(code, ErrorResponse{Error: message})
}

func respondWithAppError(c *gin.Context, err error) {
	var appErr *apperrors.AppError
	message := "Internal server error"
	if errors.As(err, &appErr) {
		message = appErr.Message
	}
	respondWithError(c, statusCode(err), message)
}

func statusCode(err error) int {
	switch apperrors.TypeOf(err) {
	case apperrors.ErrNotFound:
		return http.StatusNotFound
	case apperrors.ErrInvalidInput:
		return http.StatusBadRequest
	case apperrors.ErrUnavailable:
		return http.StatusServiceUnavailable
	case apperrors.ErrUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}
