package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/moolah-app/moolah-api/internal/service"
	appErrors "github.com/moolah-app/moolah-api/pkg/errors"
	"github.com/moolah-app/moolah-api/pkg/response"
)

// SeasonImageHandler exposes background image management.
type SeasonImageHandler struct {
	images *service.SeasonImageService
}

// NewSeasonImageHandler constructs SeasonImageHandler.
func NewSeasonImageHandler(images *service.SeasonImageService) *SeasonImageHandler {
	return &SeasonImageHandler{images: images}
}

// Upload godoc
// @Summary Upload a season image
// @Tags SeasonImages
// @Accept multipart/form-data
// @Produce json
// @Param image formData file true "Image file"
// @Success 201 {object} response.Envelope
// @Router /season-images [post]
func (h *SeasonImageHandler) Upload(c *gin.Context) {
	header, err := c.FormFile("image")
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "image file is required"))
		return
	}
	image, err := h.images.Upload(c.Request.Context(), header)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, image)
}

// List godoc
// @Summary List uploaded season images
// @Tags SeasonImages
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /season-images [get]
func (h *SeasonImageHandler) List(c *gin.Context) {
	images, err := h.images.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, images, nil)
}

// SetBackground godoc
// @Summary Make an image the active background
// @Tags SeasonImages
// @Accept json
// @Produce json
// @Param payload body service.SetBackgroundRequest true "Image ID"
// @Success 204
// @Router /season-images/set-background [patch]
func (h *SeasonImageHandler) SetBackground(c *gin.Context) {
	var req service.SetBackgroundRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.ID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "image id is required"))
		return
	}
	if err := h.images.SetBackground(c.Request.Context(), req.ID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Delete godoc
// @Summary Remove an image and queue its file for deletion
// @Tags SeasonImages
// @Produce json
// @Param id path string true "Image ID"
// @Success 204
// @Router /season-images/{id} [delete]
func (h *SeasonImageHandler) Delete(c *gin.Context) {
	if err := h.images.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
