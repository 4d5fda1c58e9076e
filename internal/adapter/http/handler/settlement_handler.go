package handler

import (
	"settlement-ledger/internal/adapter/http/dto"
	"settlement-ledger/internal/core/ports"
	"settlement-ledger/pkg/apperror"
	"settlement-ledger/pkg/response"

	"github.com/gin-gonic/gin"
)

// SettlementHandler handles settlement endpoints.
type SettlementHandler struct {
	settlementSvc ports.SettlementService
}

// NewSettlementHandler creates a new SettlementHandler.
func NewSettlementHandler(settlementSvc ports.SettlementService) *SettlementHandler {
	return &SettlementHandler{settlementSvc: settlementSvc}
}

// Settle handles POST /api/v1/settlements. A new settlement answers 201,
// a replay of a settled ref answers 200 with the original result.
func (h *SettlementHandler) Settle(c *gin.Context) {
	var req dto.SettleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	result, err := h.settlementSvc.Settle(c.Request.Context(), ports.SettleRequest{
		PaymentRef:         req.PaymentRef,
		PayerAccountNumber: req.PayerAccount,
		PayerCredential:    req.PayerCredential,
		Amount:             req.Amount,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	if result.Replayed {
		response.OK(c, result)
		return
	}
	response.Created(c, result)
}

// Get handles GET /api/v1/settlements/:ref.
func (h *SettlementHandler) Get(c *gin.Context) {
	st, err := h.settlementSvc.GetSettlement(c.Request.Context(), c.Param("ref"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, st)
}
