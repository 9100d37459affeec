package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/moolah-app/moolah-api/internal/service"
	appErrors "github.com/moolah-app/moolah-api/pkg/errors"
	"github.com/moolah-app/moolah-api/pkg/response"
)

// LevelConfigHandler exposes the level progression table.
type LevelConfigHandler struct {
	levels *service.LevelConfigService
}

// NewLevelConfigHandler constructs LevelConfigHandler.
func NewLevelConfigHandler(levels *service.LevelConfigService) *LevelConfigHandler {
	return &LevelConfigHandler{levels: levels}
}

// List godoc
// @Summary List level configurations
// @Tags Levels
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /levelConfig [get]
func (h *LevelConfigHandler) List(c *gin.Context) {
	levels, err := h.levels.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, levels, nil)
}

// Upsert godoc
// @Summary Create or replace the configuration for a level
// @Tags Levels
// @Accept json
// @Produce json
// @Param payload body service.UpsertLevelConfigRequest true "Level config"
// @Success 200 {object} response.Envelope
// @Router /levelConfig [post]
func (h *LevelConfigHandler) Upsert(c *gin.Context) {
	var req service.UpsertLevelConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	lc, err := h.levels.Upsert(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, lc, nil)
}

// Delete godoc
// @Summary Remove the configuration for a level
// @Tags Levels
// @Produce json
// @Param level path int true "Level number"
// @Success 204
// @Router /levelConfig/{level} [delete]
func (h *LevelConfigHandler) Delete(c *gin.Context) {
	level, err := strconv.Atoi(c.Param("level"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "level must be a number"))
		return
	}
	if err := h.levels.Delete(c.Request.Context(), level); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
