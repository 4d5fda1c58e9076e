package handler

import (
	"strings"

	"settlement-ledger/internal/adapter/http/dto"
	"settlement-ledger/internal/adapter/http/middleware"
	"settlement-ledger/internal/core/domain"
	"settlement-ledger/internal/core/ports"
	"settlement-ledger/pkg/apperror"
	"settlement-ledger/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// AdminHandler handles account administration and the audit trail.
type AdminHandler struct {
	accountSvc ports.AccountService
	auditSvc   ports.AuditService
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(accountSvc ports.AccountService, auditSvc ports.AuditService) *AdminHandler {
	return &AdminHandler{accountSvc: accountSvc, auditSvc: auditSvc}
}

// AuditLogs handles GET /api/v1/admin/audit-logs.
func (h *AdminHandler) AuditLogs(c *gin.Context) {
	var q dto.AuditLogQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	filter := q.Filter()
	if filter.From != nil && filter.To != nil && filter.From.After(*filter.To) {
		response.Error(c, apperror.Validation("from must not be after to"))
		return
	}
	filter.Normalize()

	entries, total, err := h.auditSvc.Query(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	if entries == nil {
		entries = []domain.AuditEntry{}
	}
	response.Paged(c, entries, total, filter.Page, filter.PageSize)
}

// OpenAccount handles POST /api/v1/admin/accounts.
func (h *AdminHandler) OpenAccount(c *gin.Context) {
	var req dto.OpenAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	opening := decimal.Zero
	if req.OpeningBalance != "" {
		d, err := decimal.NewFromString(strings.TrimSpace(req.OpeningBalance))
		if err != nil {
			response.Error(c, apperror.ErrInvalidAmount())
			return
		}
		opening = d
	}

	account, err := h.accountSvc.OpenAccount(c.Request.Context(), ports.OpenAccountRequest{
		Number:         req.AccountNumber,
		HolderName:     req.HolderName,
		Role:           domain.AccountRole(req.Role),
		Credential:     req.Credential,
		OpeningBalance: opening,
		Actor:          middleware.AdminSubject(c),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dto.NewAccountResponse(account))
}

// Deactivate handles POST /api/v1/admin/accounts/:number/deactivate.
func (h *AdminHandler) Deactivate(c *gin.Context) {
	number := c.Param("number")
	if err := h.accountSvc.DeactivateAccount(c.Request.Context(), number, middleware.AdminSubject(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"account_number": number, "active": false})
}

// Consistency handles GET /api/v1/admin/accounts/:number/consistency.
func (h *AdminHandler) Consistency(c *gin.Context) {
	report, err := h.accountSvc.CheckConsistency(c.Request.Context(), c.Param("number"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, report)
}
