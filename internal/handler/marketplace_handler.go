package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/moolah-app/moolah-api/internal/service"
	appErrors "github.com/moolah-app/moolah-api/pkg/errors"
	"github.com/moolah-app/moolah-api/pkg/response"
)

// MarketplaceHandler exposes the item catalog and purchases.
type MarketplaceHandler struct {
	marketplace *service.MarketplaceService
}

// NewMarketplaceHandler constructs MarketplaceHandler.
func NewMarketplaceHandler(marketplace *service.MarketplaceService) *MarketplaceHandler {
	return &MarketplaceHandler{marketplace: marketplace}
}

// List godoc
// @Summary List marketplace items
// @Tags Marketplace
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /marketplace [get]
func (h *MarketplaceHandler) List(c *gin.Context) {
	items, err := h.marketplace.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// Create godoc
// @Summary List a new item for sale
// @Tags Marketplace
// @Accept json
// @Produce json
// @Param payload body service.CreateItemRequest true "Item payload"
// @Success 201 {object} response.Envelope
// @Router /marketplace [post]
func (h *MarketplaceHandler) Create(c *gin.Context) {
	var req service.CreateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	item, err := h.marketplace.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, item)
}

// Delete godoc
// @Summary Remove an item from the catalog
// @Tags Marketplace
// @Produce json
// @Param id path string true "Item ID"
// @Success 204
// @Router /marketplace/{id} [delete]
func (h *MarketplaceHandler) Delete(c *gin.Context) {
	if err := h.marketplace.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Purchase godoc
// @Summary Buy an item, deducting its price from the student
// @Tags Marketplace
// @Accept json
// @Produce json
// @Param id path string true "Item ID"
// @Param payload body service.PurchaseRequest true "Buyer"
// @Success 200 {object} response.Envelope
// @Router /marketplace/{id}/purchase [post]
func (h *MarketplaceHandler) Purchase(c *gin.Context) {
	var req service.PurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	// Students may only spend their own balance.
	if claims := claimsFromContext(c); claims != nil && claims.StudentID != "" && claims.StudentID != req.StudentID {
		response.Error(c, appErrors.ErrForbidden)
		return
	}

	result, err := h.marketplace.Purchase(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
