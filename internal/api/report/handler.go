package report

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/demesis221/PawRescue/internal/api/auth"
	"github.com/demesis221/PawRescue/internal/api/respond"
	"github.com/demesis221/PawRescue/internal/model"
	"github.com/demesis221/PawRescue/internal/service"
)

// Handler exposes the report CRUD, lifecycle and realtime endpoints.
type Handler struct {
	reports   *service.ReportService
	lifecycle *service.LifecycleService
	events    *service.Events
	anonLimit *service.AnonReportRateLimit
}

func NewHandler(reports *service.ReportService, lifecycle *service.LifecycleService, events *service.Events, anonLimit *service.AnonReportRateLimit) *Handler {
	return &Handler{
		reports:   reports,
		lifecycle: lifecycle,
		events:    events,
		anonLimit: anonLimit,
	}
}

// Create handles POST /api/reports (multipart form, image optional).
func (h *Handler) Create(c *gin.Context) {
	in := service.NewReportInput{
		AnimalType:   c.PostForm("animalType"),
		Breed:        c.PostForm("breed"),
		Urgency:      c.PostForm("urgency"),
		Description:  c.PostForm("description"),
		Location:     c.PostForm("location"),
		ContactPhone: c.PostForm("contactPhone"),
		Coordinates:  c.PostForm("coordinates"),
		UserID:       c.PostForm("userId"),
	}

	// An authenticated caller owns the report regardless of the form field
	if uid, ok := auth.CurrentUserID(c); ok {
		in.UserID = uid.String()
	} else if in.UserID == "" {
		if !h.anonLimit.Check(c.ClientIP()) {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"success": false,
				"message": "Too many anonymous reports from this address, try again later",
			})
			return
		}
	}

	image, err := c.FormFile("image")
	if err != nil && !errors.Is(err, http.ErrMissingFile) {
		respond.Error(c, "Invalid image upload", &model.ValidationError{Field: "image", Msg: err.Error()})
		return
	}

	created, err := h.reports.Create(c.Request.Context(), in, image)

	var partial *service.PartialFailureError
	if errors.As(err, &partial) {
		// The row exists; hand the client the id so it can retry the attach
		c.JSON(http.StatusCreated, gin.H{
			"success": true,
			"message": "Report submitted successfully",
			"warning": "Image upload failed, retry with POST /api/reports/" + partial.ReportID + "/image",
			"data":    created,
		})
		return
	}
	if err != nil {
		respond.Error(c, "Failed to submit report", err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"message": "Report submitted successfully",
		"data":    created,
	})
}

// List handles GET /api/reports with optional status/urgency/animal_type filters.
func (h *Handler) List(c *gin.Context) {
	filter := model.ReportFilter{
		Status:     c.Query("status"),
		Urgency:    c.Query("urgency"),
		AnimalType: c.Query("animal_type"),
	}

	reports, err := h.reports.List(c.Request.Context(), filter)
	if err != nil {
		respond.Error(c, "Failed to fetch reports", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"count":   len(reports),
		"data":    reports,
	})
}

// Get handles GET /api/reports/:id.
func (h *Handler) Get(c *gin.Context) {
	report, err := h.reports.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respond.Error(c, "Failed to fetch report", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": report})
}

// Update handles PUT /api/reports/:id (partial field update).
func (h *Handler) Update(c *gin.Context) {
	var in model.UpdateReport
	if err := c.ShouldBindJSON(&in); err != nil {
		respond.Error(c, "Invalid update request", &model.ValidationError{Msg: err.Error()})
		return
	}

	report, err := h.reports.Update(c.Request.Context(), c.Param("id"), in)
	if err != nil {
		respond.Error(c, "Failed to update report", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Report updated",
		"data":    report,
	})
}

// UpdateStatus handles PATCH /api/reports/:id/status.
func (h *Handler) UpdateStatus(c *gin.Context) {
	var req model.UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, "Invalid status request", &model.ValidationError{Msg: err.Error()})
		return
	}

	actorID := actorFrom(c, req.UserID)

	report, err := h.lifecycle.UpdateStatus(c.Request.Context(), c.Param("id"), req.Status, actorID, req.Comment)
	if err != nil {
		respond.Error(c, "Failed to update report status", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Report status updated",
		"data":    report,
	})
}

// History handles GET /api/reports/:id/history (the status audit trail).
func (h *Handler) History(c *gin.Context) {
	history, err := h.lifecycle.History(c.Request.Context(), c.Param("id"))
	if err != nil {
		respond.Error(c, "Failed to fetch status history", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"count":   len(history),
		"data":    history,
	})
}

// AttachImage handles POST /api/reports/:id/image, the attach/retry path.
func (h *Handler) AttachImage(c *gin.Context) {
	image, err := c.FormFile("image")
	if err != nil {
		respond.Error(c, "Image file is required", &model.ValidationError{Field: "image", Msg: err.Error()})
		return
	}

	report, err := h.reports.AttachImage(c.Request.Context(), c.Param("id"), image)
	if err != nil {
		respond.Error(c, "Failed to attach image", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Image attached",
		"data":    report,
	})
}

// Delete handles DELETE /api/reports/:id.
func (h *Handler) Delete(c *gin.Context) {
	if err := h.reports.Delete(c.Request.Context(), c.Param("id")); err != nil {
		respond.Error(c, "Failed to delete report", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Report deleted successfully",
	})
}

// Stream handles GET /api/reports/stream: an SSE feed of report change
// events. Clients refetch the list on each event, so dropped events are
// harmless.
func (h *Handler) Stream(c *gin.Context) {
	ch, cancel := h.events.Subscribe()
	defer cancel()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	c.Stream(func(w io.Writer) bool {
		select {
		case <-c.Request.Context().Done():
			return false
		case ev, ok := <-ch:
			if !ok {
				return false
			}
			c.SSEvent("report_change", ev)
			return true
		}
	})
}

func actorFrom(c *gin.Context, bodyUserID string) *uuid.UUID {
	if uid, ok := auth.CurrentUserID(c); ok {
		return &uid
	}
	if bodyUserID != "" {
		if uid, err := uuid.Parse(bodyUserID); err == nil {
			return &uid
		}
	}
	return nil
}
