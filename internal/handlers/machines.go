package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"fleet_monitor/internal/models"
	"fleet_monitor/internal/service"

	"github.com/gin-gonic/gin"
)

// Common response/status constants to avoid magic strings and typos.
const (
	statusOK = "ok"

	errMachineNotFound = "machine not found"
	errMachineDetails  = "failed to load machine"
	errStatusInvalid   = "invalid 'status': expected running, failed, finished, idle or all"
	errFloorInvalid    = "invalid 'floor': expected an integer"
)

// Centralized error logging and response.
func (h *Handler) logAndJSONError(c *gin.Context, httpCode int, userMsg, logKey string, err error, kv ...interface{}) {
	if h.log != nil && err != nil {
		fields := append([]interface{}{"err", err}, kv...)
		h.log.Errorw(logKey, fields...)
	}
	c.JSON(httpCode, gin.H{"error": userMsg})
}

// @Summary      Health check
// @Tags         system
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /health [get]
func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": statusOK,
	})
}

// @Summary      List machines
// @Description  Current cached view of the fleet, in seed order, optionally narrowed by status and floor.
// @Tags         machines
// @Produce      json
// @Param        status  query     string  false  "running, failed, finished, idle or all"
// @Param        floor   query     int     false  "Floor number"
// @Success      200  {object}  map[string]interface{}  "count, total, machines"
// @Failure      400  {object}  map[string]string
// @Failure      401  {object}  map[string]string
// @Router       /api/v1/machines [get]
// @Security     BearerAuth
func (h *Handler) listMachines(c *gin.Context) {
	var filter service.MachineFilter
	if qs := strings.ToLower(strings.TrimSpace(c.Query("status"))); qs != "" && qs != "all" {
		st := models.MachineStatus(qs)
		if !st.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": errStatusInvalid})
			return
		}
		filter.Status = st
	}
	if qs := strings.TrimSpace(c.Query("floor")); qs != "" {
		floor, err := strconv.Atoi(qs)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": errFloorInvalid})
			return
		}
		filter.Floor = &floor
	}

	all := h.services.Machines.List()
	machines := service.FilterMachines(all, filter)
	c.JSON(http.StatusOK, gin.H{
		"count":    len(machines),
		"total":    len(all),
		"machines": machines,
	})
}

// @Summary      Machine details
// @Description  Upstream details with recent events; falls back to the cache and the local journal when upstream is unreachable.
// @Tags         machines
// @Produce      json
// @Param        id   path      string  true  "Machine id"
// @Success      200  {object}  models.MachineDetails
// @Failure      401  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/machines/{id} [get]
// @Security     BearerAuth
func (h *Handler) getMachine(c *gin.Context) {
	id := c.Param("id")
	details, err := h.services.Machines.Details(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrMachineNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": errMachineNotFound})
			return
		}
		h.logAndJSONError(c, http.StatusInternalServerError, errMachineDetails, "machine_details_failed", err, "machine_id", id)
		return
	}
	c.JSON(http.StatusOK, details)
}
