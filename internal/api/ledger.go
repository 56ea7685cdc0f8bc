package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/fzkn4/gate-security/internal/models"
	"github.com/gin-gonic/gin"
)

// Scan records the next entry or exit of the vehicle behind a scanned code
func (h *Handler) Scan(c *gin.Context) {
	var req models.ScanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}

	event, err := h.service.Scan(c.Request.Context(), currentIdentity(c), req)
	if err != nil {
		writeError(c, h.log, err)
		return
	}

	action := "entered"
	if event.Direction == models.DirectionOut {
		action = "exited"
	}

	c.JSON(http.StatusCreated, models.ScanResponse{
		Status:  "success",
		Message: fmt.Sprintf("Vehicle %s %s", event.Plate, action),
		Entry:   event,
	})
}

func (h *Handler) ListEntries(c *gin.Context) {
	req, err := parseListEventsRequest(c)
	if err != nil {
		writeError(c, h.log, err)
		return
	}

	resp, err := h.service.ListEvents(c.Request.Context(), currentIdentity(c), req)
	if err != nil {
		writeError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *Handler) Stats(c *gin.Context) {
	stats, err := h.service.Stats(c.Request.Context(), currentIdentity(c))
	if err != nil {
		writeError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, models.StatsResponse{Status: "success", Stats: stats})
}

func parseListEventsRequest(c *gin.Context) (models.ListEventsRequest, error) {
	var req models.ListEventsRequest

	for name, dst := range map[string]*int{"page": &req.Page, "per_page": &req.PerPage} {
		raw := c.Query(name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			return req, fmt.Errorf("%w: %s must be an integer", models.ErrInvalidInput, name)
		}
		*dst = n
	}

	if raw := c.Query("type"); raw != "" {
		direction := models.Direction(raw)
		req.Direction = &direction
	}

	vehicleID, err := parseOptionalID(c, "vehicle_id")
	if err != nil {
		return req, err
	}
	req.VehicleID = vehicleID

	return req, nil
}
