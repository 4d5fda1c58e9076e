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

// FeeHandler handles fee quotes and the admin fee schedule.
type FeeHandler struct {
	feeSvc  ports.FeeService
	feeMode domain.FeeMode
}

// NewFeeHandler creates a new FeeHandler quoting splits under mode.
func NewFeeHandler(feeSvc ports.FeeService, mode domain.FeeMode) *FeeHandler {
	return &FeeHandler{feeSvc: feeSvc, feeMode: mode}
}

// Quote handles POST /api/v1/fees/quote. Read-only.
func (h *FeeHandler) Quote(c *gin.Context) {
	var req dto.FeeQuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	amount, err := domain.ParseAmount(req.Amount)
	if err != nil {
		response.Error(c, apperror.ErrInvalidAmount())
		return
	}

	fee := h.feeSvc.CalculateFee(amount)
	response.OK(c, dto.FeeQuoteResponse{
		Amount:  amount,
		Fee:     fee,
		FeeMode: h.feeMode,
		Split:   h.feeMode.SplitFor(amount, fee),
	})
}

// GetSchedule handles GET /api/v1/admin/fee-schedule.
func (h *FeeHandler) GetSchedule(c *gin.Context) {
	response.OK(c, h.feeSvc.Schedule())
}

// UpdateSchedule handles PUT /api/v1/admin/fee-schedule.
func (h *FeeHandler) UpdateSchedule(c *gin.Context) {
	var req dto.UpdateFeeScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	var values [3]decimal.Decimal
	for i, raw := range []string{req.Rate, req.MinimumFee, req.MaximumFee} {
		d, err := decimal.NewFromString(strings.TrimSpace(raw))
		if err != nil {
			response.Error(c, apperror.Validation("fee schedule values must be decimal numbers"))
			return
		}
		values[i] = d
	}
	rate, minFee, maxFee := values[0], values[1], values[2]

	sched, err := h.feeSvc.UpdateFeeRules(c.Request.Context(), rate, minFee, maxFee, middleware.AdminSubject(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, sched)
}
