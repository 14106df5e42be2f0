package parking

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"parking-svc/src/internal/config"
	"parking-svc/src/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/sirupsen/logrus"
)

type Handler interface {
	Admit(c *gin.Context)
	ListAll(c *gin.Context)
	Update(c *gin.Context)
	Remove(c *gin.Context)
	CloseDay(c *gin.Context)
	Occupancy(c *gin.Context)
}

type handler struct {
	config  *config.Configuration
	service Service
}

func NewHandler(cfg *config.Configuration, service Service) Handler {
	return &handler{
		config:  cfg,
		service: service,
	}
}

func (h *handler) requestContext(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), time.Duration(h.config.App.Timeout)*time.Second)
}

func (h *handler) Admit(c *gin.Context) {
	ctx, cancel := h.requestContext(c)
	defer cancel()

	var req AdmitRequest
	if err := decodeStrict(c, &req, false); err != nil {
		h.sendErrorResponse(c, http.StatusBadRequest, "Invalid request", err.Error())
		return
	}

	logrus.WithFields(logrus.Fields{
		"plate":         req.Plate,
		"vehicle_class": req.VehicleClass,
		"spot":          req.AssignedSpot,
		"electric":      req.IsElectricOrHybrid,
	}).Info("Admit request received")

	session, err := h.service.Admit(ctx, &req)
	if err != nil {
		h.handleError(c, err, "Failed to admit vehicle")
		return
	}

	c.JSON(http.StatusCreated, session)
}

func (h *handler) ListAll(c *gin.Context) {
	ctx, cancel := h.requestContext(c)
	defer cancel()

	sessions, err := h.service.ListAll(ctx)
	if err != nil {
		h.handleError(c, err, "Failed to retrieve vehicles")
		return
	}

	c.JSON(http.StatusOK, sessions)
}

func (h *handler) Update(c *gin.Context) {
	ctx, cancel := h.requestContext(c)
	defer cancel()

	id := c.Param("id")
	// An empty body is an empty patch.
	var req UpdateRequest
	if err := decodeStrict(c, &req, true); err != nil {
		h.sendErrorResponse(c, http.StatusBadRequest, "Invalid request", err.Error())
		return
	}

	logrus.WithField("vehicle_id", id).Info("Update request received")

	session, err := h.service.Update(ctx, id, req.ToPatch())
	if err != nil {
		h.handleError(c, err, "Failed to update vehicle")
		return
	}

	c.JSON(http.StatusOK, session)
}

func (h *handler) Remove(c *gin.Context) {
	ctx, cancel := h.requestContext(c)
	defer cancel()

	id := c.Param("id")
	logrus.WithField("vehicle_id", id).Info("Remove request received")

	if err := h.service.Remove(ctx, id); err != nil {
		h.handleError(c, err, "Failed to remove vehicle")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Vehicle removed successfully",
	})
}

func (h *handler) CloseDay(c *gin.Context) {
	ctx, cancel := h.requestContext(c)
	defer cancel()

	logrus.Info("Close day requested")

	report, err := h.service.CloseDay(ctx)
	if err != nil {
		h.handleError(c, err, "Failed to close the day")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":      "Day closed successfully",
		"totalRevenue": report.TotalRevenue,
		"settledCount": report.SettledCount,
		"failures":     report.Failures,
		"closedAt":     report.ClosedAt,
	})
}

func (h *handler) Occupancy(c *gin.Context) {
	ctx, cancel := h.requestContext(c)
	defer cancel()

	occupancy, err := h.service.Occupancy(ctx)
	if err != nil {
		h.handleError(c, err, "Failed to retrieve occupancy")
		return
	}

	c.JSON(http.StatusOK, occupancy)
}

// decodeStrict decodes the JSON body rejecting unknown fields, then runs the
// binding validator. An empty body leaves obj untouched when allowEmpty is set.
func decodeStrict(c *gin.Context, obj any, allowEmpty bool) error {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return fmt.Errorf("failed to read body: %w", err)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		if allowEmpty {
			return nil
		}
		return errors.New("request body is required")
	}

	decoder := json.NewDecoder(bytes.NewReader(body))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(obj); err != nil {
		return err
	}

	return binding.Validator.ValidateStruct(obj)
}

func (h *handler) handleError(c *gin.Context, err error, action string) {
	switch {
	case errors.Is(err, models.ErrCapacityExceeded):
		h.sendErrorResponse(c, http.StatusBadRequest, "No spots available for this vehicle class", err.Error())
	case errors.Is(err, models.ErrValidation),
		errors.Is(err, models.ErrInvalidClass),
		errors.Is(err, models.ErrInvalidSpot),
		errors.Is(err, models.ErrInvalidExitTime):
		h.sendErrorResponse(c, http.StatusBadRequest, "Invalid request", err.Error())
	case errors.Is(err, models.ErrVehicleNotFound):
		h.sendErrorResponse(c, http.StatusNotFound, "Vehicle not found", "No vehicle found with the provided ID")
	case errors.Is(err, models.ErrSpotTaken):
		h.sendErrorResponse(c, http.StatusConflict, "Spot already occupied", err.Error())
	default:
		logrus.WithError(err).Error(action)
		h.sendErrorResponse(c, http.StatusInternalServerError, action, err.Error())
	}
}

func (h *handler) sendErrorResponse(c *gin.Context, statusCode int, error, message string) {
	c.JSON(statusCode, gin.H{
		"error":   error,
		"message": message,
	})
}
