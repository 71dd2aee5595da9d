package dashboard

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/demesis221/PawRescue/internal/api/respond"
	"github.com/demesis221/PawRescue/internal/service"
)

// Handler exposes the dashboard aggregates.
type Handler struct {
	reports *service.ReportService
}

func NewHandler(reports *service.ReportService) *Handler {
	return &Handler{reports: reports}
}

// Stats handles GET /api/dashboard/stats.
func (h *Handler) Stats(c *gin.Context) {
	stats, err := h.reports.Stats(c.Request.Context())
	if err != nil {
		respond.Error(c, "Failed to fetch dashboard stats", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": stats})
}
