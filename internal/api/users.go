package api

import (
	"net/http"

	"github.com/fzkn4/gate-security/internal/models"
	"github.com/gin-gonic/gin"
)

func (h *Handler) CreateUser(c *gin.Context) {
	var req models.CreateIdentityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}

	identity, err := h.service.CreateIdentity(c.Request.Context(), currentIdentity(c), req)
	if err != nil {
		writeError(c, h.log, err)
		return
	}

	c.JSON(http.StatusCreated, models.IdentityResponse{Status: "success", User: identity})
}

func (h *Handler) ListUsers(c *gin.Context) {
	identities, err := h.service.ListIdentities(c.Request.Context(), currentIdentity(c))
	if err != nil {
		writeError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, models.IdentitiesResponse{Status: "success", Users: identities})
}

func (h *Handler) GetUser(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		writeError(c, h.log, err)
		return
	}

	identity, err := h.service.GetIdentity(c.Request.Context(), currentIdentity(c), id)
	if err != nil {
		writeError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, models.IdentityResponse{Status: "success", User: identity})
}

func (h *Handler) UpdateUser(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		writeError(c, h.log, err)
		return
	}

	var req models.UpdateIdentityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}

	identity, err := h.service.UpdateIdentity(c.Request.Context(), currentIdentity(c), id, req)
	if err != nil {
		writeError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, models.IdentityResponse{Status: "success", User: identity})
}

func (h *Handler) DeleteUser(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		writeError(c, h.log, err)
		return
	}

	result, err := h.service.DeleteIdentity(c.Request.Context(), currentIdentity(c), id)
	if err != nil {
		writeError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, models.DeleteResponse{
		Status:  "success",
		Message: "User deleted",
		Deleted: result,
	})
}
