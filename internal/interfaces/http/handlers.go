package http

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/expense-approval/internal/application/service"
	"github.com/garyjia/expense-approval/internal/domain/apperr"
	"github.com/garyjia/expense-approval/internal/domain/entity"
	"github.com/garyjia/expense-approval/pkg/utils"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Handlers contains all HTTP request handlers
type Handlers struct {
	deps           Dependencies
	maxUploadBytes int64
	logger         Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(deps Dependencies, maxUploadBytes int64, logger Logger) *Handlers {
	return &Handlers{
		deps:           deps,
		maxUploadBytes: maxUploadBytes,
		logger:         logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Database  string `json:"database"`
	Timestamp string `json:"timestamp"`
}

// RateResponse is a single exchange rate
type RateResponse struct {
	From string  `json:"from"`
	To   string  `json:"to"`
	Rate float64 `json:"rate"`
}

type rateParams struct {
	From string `json:"from" validate:"currency_code"`
	To   string `json:"to" validate:"currency_code"`
}

type ratesParams struct {
	Base       string   `json:"base" validate:"currency_code"`
	Currencies []string `json:"currencies" validate:"dive,currency_code"`
}

// RatesResponse is a base-relative rate table
type RatesResponse struct {
	Base  string             `json:"base"`
	Rates map[string]float64 `json:"rates"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	resp := HealthResponse{
		Status:    "healthy",
		Database:  "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	status := http.StatusOK

	if h.deps.DB != nil {
		if err := h.deps.DB.PingContext(c.Request.Context()); err != nil {
			h.logger.Error("Health check database ping failed", "error", err)
			resp.Status = "unhealthy"
			resp.Database = "unreachable"
			status = http.StatusServiceUnavailable
		}
	}

	c.JSON(status, Response{Success: status == http.StatusOK, Data: resp})
}

// SubmitClaim handles POST /api/claims
func (h *Handlers) SubmitClaim(c *gin.Context) {
	var req service.SubmitClaimInput
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body", err)
		return
	}

	claim, err := h.deps.Submission.Submit(c.Request.Context(), currentUser(c), req)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, Response{Success: true, Data: claim})
}

// ListMyClaims handles GET /api/claims/mine
func (h *Handlers) ListMyClaims(c *gin.Context) {
	claims, err := h.deps.Claims.ListMine(c.Request.Context(), currentUser(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: nonNil(claims)})
}

// ListPendingApprovals handles GET /api/claims/pending-approvals
func (h *Handlers) ListPendingApprovals(c *gin.Context) {
	claims, err := h.deps.Claims.ListPendingApprovals(c.Request.Context(), currentUser(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: nonNil(claims)})
}

// ListClaims handles GET /api/claims?status=
func (h *Handlers) ListClaims(c *gin.Context) {
	status := entity.ClaimStatus(strings.ToLower(strings.TrimSpace(c.Query("status"))))

	claims, err := h.deps.Claims.List(c.Request.Context(), currentUser(c), status)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: nonNil(claims)})
}

// GetClaim handles GET /api/claims/:id
func (h *Handlers) GetClaim(c *gin.Context) {
	id, ok := h.idParam(c, "id")
	if !ok {
		return
	}

	claim, err := h.deps.Claims.Get(c.Request.Context(), currentUser(c), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: claim})
}

// ExportClaims handles GET /api/claims/export
func (h *Handlers) ExportClaims(c *gin.Context) {
	data, err := h.deps.Claims.Export(c.Request.Context(), currentUser(c))
	if err != nil {
		h.respondError(c, err)
		return
	}

	filename := fmt.Sprintf("claims-%s.xlsx", time.Now().UTC().Format("20060102"))
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK, xlsxContentType, data)
}

// Decide handles POST /api/approvals/:claimId/decision
func (h *Handlers) Decide(c *gin.Context) {
	claimID, ok := h.idParam(c, "claimId")
	if !ok {
		return
	}

	var req service.DecisionInput
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body", err)
		return
	}

	outcome, err := h.deps.Decision.Decide(c.Request.Context(), currentUser(c), claimID, req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: outcome})
}

// CreatePolicy handles POST /api/approvals/policies
func (h *Handlers) CreatePolicy(c *gin.Context) {
	var req service.PolicyInput
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body", err)
		return
	}

	p, err := h.deps.Policy.Create(c.Request.Context(), currentUser(c), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, Response{Success: true, Data: p})
}

// ListPolicies handles GET /api/approvals/policies
func (h *Handlers) ListPolicies(c *gin.Context) {
	policies, err := h.deps.Policy.List(c.Request.Context(), currentUser(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: nonNil(policies)})
}

// ActivePolicy handles GET /api/approvals/policies/active. Data is null when
// the company has no policy and the manager default applies.
func (h *Handlers) ActivePolicy(c *gin.Context) {
	p, err := h.deps.Policy.Active(c.Request.Context(), currentUser(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: p})
}

// GetRate handles GET /api/currency/rate/:from/:to
func (h *Handlers) GetRate(c *gin.Context) {
	params := rateParams{
		From: strings.ToUpper(c.Param("from")),
		To:   strings.ToUpper(c.Param("to")),
	}
	if err := utils.ValidateStruct(params); err != nil {
		h.badRequest(c, err.Error(), nil)
		return
	}

	rate, err := h.deps.Gateway.Rate(c.Request.Context(), params.From, params.To)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: RateResponse{From: params.From, To: params.To, Rate: rate}})
}

// GetRates handles GET /api/currency/rates/:base?currencies=A,B
func (h *Handlers) GetRates(c *gin.Context) {
	params := ratesParams{Base: strings.ToUpper(c.Param("base"))}
	for _, code := range strings.Split(c.Query("currencies"), ",") {
		if code = strings.ToUpper(strings.TrimSpace(code)); code != "" {
			params.Currencies = append(params.Currencies, code)
		}
	}
	if err := utils.ValidateStruct(params); err != nil {
		h.badRequest(c, err.Error(), nil)
		return
	}

	rates, err := h.deps.Gateway.Rates(c.Request.Context(), params.Base, params.Currencies)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: RatesResponse{Base: params.Base, Rates: rates}})
}

// ScanReceipt handles POST /api/receipts/scan (multipart field "receipt")
func (h *Handlers) ScanReceipt(c *gin.Context) {
	if h.deps.Scanner == nil {
		c.JSON(http.StatusServiceUnavailable, Response{Success: false, Error: "receipt scanning is not configured"})
		return
	}

	file, err := c.FormFile("receipt")
	if err != nil {
		h.badRequest(c, "receipt file is required", err)
		return
	}
	if h.maxUploadBytes > 0 && file.Size > h.maxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, Response{Success: false, Error: "receipt file is too large"})
		return
	}

	f, err := file.Open()
	if err != nil {
		h.badRequest(c, "unreadable receipt file", err)
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		h.badRequest(c, "unreadable receipt file", err)
		return
	}

	mimeType := http.DetectContentType(data)
	if !strings.HasPrefix(mimeType, "image/") && mimeType != "application/pdf" {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "receipt must be an image or PDF"})
		return
	}

	result, err := h.deps.Scanner.Scan(c.Request.Context(), data, mimeType)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: result})
}

func (h *Handlers) idParam(c *gin.Context, name string) (int64, bool) {
	raw := c.Param(name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		h.badRequest(c, "invalid "+name, err)
		return 0, false
	}
	return id, true
}

func (h *Handlers) badRequest(c *gin.Context, msg string, err error) {
	if err != nil {
		h.logger.Warn("Bad request", "path", c.Request.URL.Path, "error", err)
	}
	c.JSON(http.StatusBadRequest, Response{Success: false, Error: msg})
}

// respondError maps application error kinds onto status codes. Unclassified
// errors are logged and hidden behind a generic 500.
func (h *Handlers) respondError(c *gin.Context, err error) {
	var appErr *apperr.Error
	if !errors.As(err, &appErr) {
		h.logger.Error("Request failed",
			"path", c.Request.URL.Path,
			"request_id", c.GetString(ctxKeyRequestID),
			"error", err)
		c.JSON(http.StatusInternalServerError, Response{Success: false, Error: "internal error"})
		return
	}

	c.JSON(statusFor(appErr.Kind), Response{Success: false, Error: appErr.Error()})
}

func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindForbidden:
		return http.StatusForbidden
	case apperr.KindConflict:
		return http.StatusConflict
	case apperr.KindDependency:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// nonNil keeps empty listings as [] rather than null
func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
