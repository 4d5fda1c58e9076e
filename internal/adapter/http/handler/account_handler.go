package handler

import (
	"strconv"

	"settlement-ledger/internal/adapter/http/dto"
	"settlement-ledger/internal/core/domain"
	"settlement-ledger/internal/core/ports"
	"settlement-ledger/pkg/apperror"
	"settlement-ledger/pkg/response"

	"github.com/gin-gonic/gin"
)

// AccountHandler handles the read-side account endpoints.
type AccountHandler struct {
	accountSvc ports.AccountService
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(accountSvc ports.AccountService) *AccountHandler {
	return &AccountHandler{accountSvc: accountSvc}
}

// GetBalance handles GET /api/v1/accounts/:number/balance.
func (h *AccountHandler) GetBalance(c *gin.Context) {
	number := c.Param("number")
	balance, err := h.accountSvc.GetBalance(c.Request.Context(), number)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.BalanceResponse{AccountNumber: number, Balance: balance})
}

// ListEntries handles GET /api/v1/accounts/:number/entries, newest first.
func (h *AccountHandler) ListEntries(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	page, pageSize = domain.NormalizePage(page, pageSize)

	entries, total, err := h.accountSvc.ListEntries(c.Request.Context(), c.Param("number"), page, pageSize)
	if err != nil {
		response.Error(c, err)
		return
	}
	if entries == nil {
		entries = []domain.TransactionEntry{}
	}
	response.Paged(c, entries, total, page, pageSize)
}

// Verify handles POST /api/v1/accounts/verify.
func (h *AccountHandler) Verify(c *gin.Context) {
	var req dto.VerifyAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	account, err := h.accountSvc.VerifyAccount(c.Request.Context(), req.AccountNumber, req.Credential)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.VerifyAccountResponse{
		AccountNumber: account.Number,
		HolderName:    account.HolderName,
		Role:          account.Role,
		Verified:      true,
	})
}
