package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/moolah-app/moolah-api/internal/service"
	appErrors "github.com/moolah-app/moolah-api/pkg/errors"
	"github.com/moolah-app/moolah-api/pkg/response"
)

// TransactionHandler exposes the Moolah ledger.
type TransactionHandler struct {
	transactions *service.TransactionService
}

// NewTransactionHandler constructs TransactionHandler.
func NewTransactionHandler(transactions *service.TransactionService) *TransactionHandler {
	return &TransactionHandler{transactions: transactions}
}

// Create godoc
// @Summary Record a manual ledger entry
// @Tags Transactions
// @Accept json
// @Produce json
// @Param payload body service.CreateTransactionRequest true "Entry"
// @Success 201 {object} response.Envelope
// @Router /transactions [post]
func (h *TransactionHandler) Create(c *gin.Context) {
	var req service.CreateTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	entry, err := h.transactions.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, entry)
}

// ListByStudent godoc
// @Summary List a student's ledger history, newest first
// @Tags Transactions
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /transactions/student/{id} [get]
func (h *TransactionHandler) ListByStudent(c *gin.Context) {
	entries, err := h.transactions.ListByStudent(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}
