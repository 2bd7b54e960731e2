package handler

import (
	"net/http"

	"samco-studio/app/middleware"
	"samco-studio/app/model"
	"samco-studio/app/service"

	"github.com/gin-gonic/gin"
)

// HistoryHandler 生成历史处理器
type HistoryHandler struct {
	history *service.HistoryService
	prefs   *service.PreferencesService
}

// NewHistoryHandler 创建历史处理器
func NewHistoryHandler(history *service.HistoryService, prefs *service.PreferencesService) *HistoryHandler {
	return &HistoryHandler{history: history, prefs: prefs}
}

// ListGenerations 按条件查询历史
func (h *HistoryHandler) ListGenerations(c *gin.Context) {
	var filter model.GenerationFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		fail(c, http.StatusBadRequest, "查询参数错误: "+err.Error())
		return
	}
	items, total, err := h.history.List(c.Request.Context(), filter)
	if err != nil {
		failWith(c, err)
		return
	}
	success(c, gin.H{"items": items, "total": total}, "获取成功")
}

// GetGeneration 获取单条历史
func (h *HistoryHandler) GetGeneration(c *gin.Context) {
	g, err := h.history.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		failWith(c, err)
		return
	}
	success(c, g, "获取成功")
}

// DeleteGeneration 删除单条历史
func (h *HistoryHandler) DeleteGeneration(c *gin.Context) {
	if err := h.history.Delete(c.Request.Context(), c.Param("id")); err != nil {
		failWith(c, err)
		return
	}
	success(c, nil, "删除成功")
}

// ClearGenerations 清空历史
func (h *HistoryHandler) ClearGenerations(c *gin.Context) {
	n, err := h.history.DeleteAll(c.Request.Context())
	if err != nil {
		failWith(c, err)
		return
	}
	success(c, gin.H{"deleted": n}, "清空成功")
}

// GetPreferences 获取当前会话偏好
func (h *HistoryHandler) GetPreferences(c *gin.Context) {
	prefs, err := h.prefs.Get(c.Request.Context(), middleware.SessionID(c))
	if err != nil {
		failWith(c, err)
		return
	}
	success(c, prefs, "获取成功")
}

// UpdatePreferences 更新当前会话偏好
func (h *HistoryHandler) UpdatePreferences(c *gin.Context) {
	var req model.PreferencesUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "请求参数错误: "+err.Error())
		return
	}
	prefs, err := h.prefs.Upsert(c.Request.Context(), middleware.SessionID(c), req)
	if err != nil {
		failWith(c, err)
		return
	}
	success(c, prefs, "保存成功")
}
