package api

import (
	"errors"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"equipment-pm-backend/internal/alert"
	"equipment-pm-backend/internal/scheduler"
	"equipment-pm-backend/internal/store"
	"equipment-pm-backend/internal/ticket"
)

// Handler holds shared dependencies for API handlers.
type Handler struct {
	store   store.Store
	engine  *alert.Engine
	sched   *scheduler.Service
	tickets *ticket.Manager
	webpush *webpush.Options
	logger  *logrus.Logger
}

// NewHandler creates the API handler set.
func NewHandler(s store.Store, engine *alert.Engine, sched *scheduler.Service, tickets *ticket.Manager, webpushOptions *webpush.Options, logger *logrus.Logger) *Handler {
	if logger == nil {
		logger = logrus.New()
	}
	return &Handler{
		store:   s,
		engine:  engine,
		sched:   sched,
		tickets: tickets,
		webpush: webpushOptions,
		logger:  logger,
	}
}

// writeDomainError maps domain errors to HTTP statuses.
func writeDomainError(c *gin.Context, err error) {
	var verr *ticket.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"error": verr.Error(), "field": verr.Field})
	case errors.Is(err, ticket.ErrRecordNotFound),
		errors.Is(err, ticket.ErrScheduleNotFound),
		errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, ticket.ErrScheduleLocked):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
