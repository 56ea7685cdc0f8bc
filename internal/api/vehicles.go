package api

import (
	"net/http"

	"github.com/fzkn4/gate-security/internal/models"
	"github.com/fzkn4/gate-security/internal/scancode"
	"github.com/gin-gonic/gin"
)

func (h *Handler) CreateVehicle(c *gin.Context) {
	var req models.CreateVehicleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}

	vehicle, png, err := h.service.CreateVehicle(c.Request.Context(), currentIdentity(c), req)
	if err != nil {
		writeError(c, h.log, err)
		return
	}

	c.JSON(http.StatusCreated, models.VehicleResponse{
		Status:  "success",
		Vehicle: vehicle,
		QRCode:  scancode.DataURL(png),
	})
}

func (h *Handler) ListVehicles(c *gin.Context) {
	ownerID, err := parseOptionalID(c, "owner_id")
	if err != nil {
		writeError(c, h.log, err)
		return
	}

	vehicles, err := h.service.ListVehicles(c.Request.Context(), currentIdentity(c), ownerID)
	if err != nil {
		writeError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, models.VehiclesResponse{Status: "success", Vehicles: vehicles})
}

func (h *Handler) GetVehicle(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		writeError(c, h.log, err)
		return
	}

	vehicle, err := h.service.GetVehicle(c.Request.Context(), currentIdentity(c), id)
	if err != nil {
		writeError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, models.VehicleResponse{Status: "success", Vehicle: vehicle})
}

func (h *Handler) UpdateVehicle(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		writeError(c, h.log, err)
		return
	}

	var req models.UpdateVehicleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}

	vehicle, err := h.service.UpdateVehicle(c.Request.Context(), currentIdentity(c), id, req)
	if err != nil {
		writeError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, models.VehicleResponse{Status: "success", Vehicle: vehicle})
}

func (h *Handler) DeleteVehicle(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		writeError(c, h.log, err)
		return
	}

	result, err := h.service.DeleteVehicle(c.Request.Context(), currentIdentity(c), id)
	if err != nil {
		writeError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, models.DeleteResponse{
		Status:  "success",
		Message: "Vehicle deleted",
		Deleted: result,
	})
}

// VehicleCode serves the vehicle's scan code as a PNG image
func (h *Handler) VehicleCode(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		writeError(c, h.log, err)
		return
	}

	png, err := h.service.VehicleCode(c.Request.Context(), currentIdentity(c), id)
	if err != nil {
		writeError(c, h.log, err)
		return
	}

	c.Data(http.StatusOK, "image/png", png)
}
