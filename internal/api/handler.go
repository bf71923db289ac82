package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/MetroMindsErie/rnbvslive/internal/models"
	"github.com/MetroMindsErie/rnbvslive/internal/payment"
	"github.com/MetroMindsErie/rnbvslive/internal/qr"
	"github.com/MetroMindsErie/rnbvslive/internal/redisclient"
	"github.com/MetroMindsErie/rnbvslive/internal/service"
	"github.com/MetroMindsErie/rnbvslive/internal/store"
	"github.com/MetroMindsErie/rnbvslive/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// orderRefGuardTTL bounds how long a webhook delivery holds the
// per-order-reference lock.
const orderRefGuardTTL = time.Minute

// Handler contains HTTP handlers
type Handler struct {
	purchases   *service.PurchaseService
	redemptions *service.RedemptionService
	store       *store.Store
	redis       *redisclient.Client
	encoder     *qr.Encoder
	provider    payment.Provider
	baseURL     string
	logger      *zap.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(
	purchases *service.PurchaseService,
	redemptions *service.RedemptionService,
	st *store.Store,
	redis *redisclient.Client,
	encoder *qr.Encoder,
	provider payment.Provider,
	baseURL string,
) *Handler {
	return &Handler{
		purchases:   purchases,
		redemptions: redemptions,
		store:       st,
		redis:       redis,
		encoder:     encoder,
		provider:    provider,
		baseURL:     baseURL,
		logger:      util.GetLogger(),
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.POST("/webhooks/payment", h.paymentWebhook)

	v1 := router.Group("/api/v1")
	{
		v1.GET("/events", h.listEvents)
		v1.GET("/events/:id", h.getEvent)
		v1.POST("/events", h.createEvent)
		v1.PUT("/events/:id", h.updateEvent)
		v1.DELETE("/events/:id", h.deleteEvent)

		v1.POST("/tickets/purchase", h.purchaseTickets)
		v1.POST("/tickets/verify", h.verifyTicket)
		v1.GET("/tickets/:id/qr.png", h.ticketQRImage)

		v1.GET("/purchases/:id", h.getPurchase)
		v1.POST("/purchases/:id/refund", h.refundPurchase)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck handles readiness check requests
func (h *Handler) readinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// listEvents returns all events ordered by date
func (h *Handler) listEvents(c *gin.Context) {
	events, err := h.store.ListEvents(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list events"})
		return
	}
	c.JSON(http.StatusOK, events)
}

// getEvent returns a single event
func (h *Handler) getEvent(c *gin.Context) {
	event, err := h.store.GetEventByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, store.ErrEventNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Event not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load event"})
		return
	}
	c.JSON(http.StatusOK, event)
}

type createEventRequest struct {
	Title        string    `json:"title" binding:"required"`
	EventDate    time.Time `json:"event_date" binding:"required"`
	Venue        string    `json:"venue" binding:"required"`
	TicketPrice  string    `json:"ticket_price" binding:"required"`
	TotalTickets int       `json:"total_tickets" binding:"required,min=1"`
}

// createEvent creates an event with its full allocation available
func (h *Handler) createEvent(c *gin.Context) {
	var req createEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	price, err := parsePrice(req.TicketPrice)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid ticket price"})
		return
	}

	event := &models.Event{
		ID:           uuid.New().String(),
		Title:        req.Title,
		EventDate:    req.EventDate,
		Venue:        req.Venue,
		TicketPrice:  price,
		TotalTickets: req.TotalTickets,
	}

	if err := h.store.CreateEvent(c.Request.Context(), event); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create event"})
		return
	}
	c.JSON(http.StatusCreated, event)
}

// updateEvent updates event details (not ticket counts)
func (h *Handler) updateEvent(c *gin.Context) {
	var req createEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	price, err := parsePrice(req.TicketPrice)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid ticket price"})
		return
	}

	event := &models.Event{
		ID:          c.Param("id"),
		Title:       req.Title,
		EventDate:   req.EventDate,
		Venue:       req.Venue,
		TicketPrice: price,
	}

	if err := h.store.UpdateEvent(c.Request.Context(), event); err != nil {
		if errors.Is(err, store.ErrEventNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Event not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update event"})
		return
	}
	c.JSON(http.StatusOK, event)
}

// deleteEvent deletes an event
func (h *Handler) deleteEvent(c *gin.Context) {
	if err := h.store.DeleteEvent(c.Request.Context(), c.Param("id")); err != nil {
		if errors.Is(err, store.ErrEventNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Event not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete event"})
		return
	}
	c.Status(http.StatusNoContent)
}

type purchaseRequest struct {
	EventID  string `json:"event_id" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Phone    string `json:"phone"`
	FullName string `json:"full_name" binding:"required"`
	// Pointer so an absent field defaults to 1 while an explicit
	// zero still reaches quantity validation.
	Quantity *int `json:"quantity"`
}

// purchaseTickets handles the direct (non-processor) purchase path
func (h *Handler) purchaseTickets(c *gin.Context) {
	var req purchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	quantity := 1
	if req.Quantity != nil {
		quantity = *req.Quantity
	}

	result, err := h.purchases.IssueTickets(c.Request.Context(), &service.IssueRequest{
		EventID:  req.EventID,
		FullName: req.FullName,
		Email:    req.Email,
		Phone:    req.Phone,
		Quantity: quantity,
	})
	if err != nil {
		h.writePurchaseError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"purchase":     result.Purchase,
		"tickets":      result.Tickets,
		"redirect_url": fmt.Sprintf("%s/tickets/confirmation?purchase_id=%s", h.baseURL, result.Purchase.ID),
	})
}

func (h *Handler) writePurchaseError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidQuantity):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Quantity must be at least 1"})
	case errors.Is(err, store.ErrEventNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Event not found"})
	case errors.Is(err, store.ErrInsufficientInventory):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Not enough tickets available"})
	default:
		h.logger.Error("Purchase failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process purchase"})
	}
}

type verifyRequest struct {
	QRData string `json:"qr_data"`
}

// verifyTicket handles check-in scans
func (h *Handler) verifyTicket(c *gin.Context) {
	var req verifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"valid": false, "message": "Missing QR data"})
		return
	}

	result, err := h.redemptions.Redeem(c.Request.Context(), req.QRData)
	if err != nil {
		switch {
		case errors.Is(err, qr.ErrMalformedCode):
			c.JSON(http.StatusBadRequest, gin.H{"valid": false, "message": "Invalid QR code format"})
		case errors.Is(err, store.ErrTicketNotFound):
			c.JSON(http.StatusBadRequest, gin.H{"valid": false, "message": "Ticket not found"})
		default:
			h.logger.Error("Redemption failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"valid": false, "message": "Internal server error"})
		}
		return
	}

	status := http.StatusOK
	if !result.Valid {
		status = http.StatusBadRequest
	}
	c.JSON(status, result)
}

// ticketQRImage serves a ticket's QR code as PNG
func (h *Handler) ticketQRImage(c *gin.Context) {
	ticket, err := h.store.GetTicket(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, store.ErrTicketNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Ticket not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load ticket"})
		return
	}

	png, err := h.encoder.Image(ticket.ID, ticket.EventID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to render QR code"})
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}

// getPurchase returns a purchase with its tickets
func (h *Handler) getPurchase(c *gin.Context) {
	result, err := h.purchases.GetPurchase(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, store.ErrPurchaseNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Purchase not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load purchase"})
		return
	}
	c.JSON(http.StatusOK, result)
}

// refundPurchase refunds a purchase and voids its tickets
func (h *Handler) refundPurchase(c *gin.Context) {
	result, err := h.purchases.RefundPurchase(c.Request.Context(), c.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, store.ErrPurchaseNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Purchase not found"})
		case errors.Is(err, store.ErrStatusConflict):
			c.JSON(http.StatusConflict, gin.H{"error": "Purchase is not refundable"})
		default:
			h.logger.Error("Refund failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to refund purchase"})
		}
		return
	}
	c.JSON(http.StatusOK, result)
}

// paymentWebhook handles processor payment confirmations. Issuance is
// keyed by the processor's order reference, so redeliveries return the
// original purchase instead of issuing twice.
func (h *Handler) paymentWebhook(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unreadable body"})
		return
	}

	checkout, err := h.provider.ParseWebhook(body, c.GetHeader(h.provider.SignatureHeader()))
	if err != nil {
		switch {
		case errors.Is(err, payment.ErrIgnoredEvent):
			util.WebhooksReceivedTotal.WithLabelValues("ignored").Inc()
			c.JSON(http.StatusOK, gin.H{"received": true})
		case errors.Is(err, payment.ErrBadSignature):
			util.WebhooksReceivedTotal.WithLabelValues("bad_signature").Inc()
			c.JSON(http.StatusBadRequest, gin.H{"error": "Webhook signature verification failed"})
		default:
			util.WebhooksReceivedTotal.WithLabelValues("malformed").Inc()
			c.JSON(http.StatusBadRequest, gin.H{"error": "Malformed webhook payload"})
		}
		return
	}

	// Serialize concurrent redeliveries of the same confirmation; a
	// loser answers non-2xx so the processor redelivers after the
	// winner has persisted, at which point issuance short-circuits.
	acquired, err := h.redis.AcquireOrderRefGuard(c.Request.Context(), checkout.OrderRef, orderRefGuardTTL)
	if err != nil {
		h.logger.Warn("Order ref guard unavailable", zap.Error(err))
	} else if !acquired {
		c.JSON(http.StatusConflict, gin.H{"error": "Delivery already in progress"})
		return
	} else {
		defer func() {
			if err := h.redis.ReleaseOrderRefGuard(c.Request.Context(), checkout.OrderRef); err != nil {
				h.logger.Warn("Failed to release order ref guard", zap.Error(err))
			}
		}()
	}

	_, err = h.purchases.IssueTickets(c.Request.Context(), &service.IssueRequest{
		EventID:  checkout.EventID,
		FullName: checkout.FullName,
		Email:    checkout.Email,
		Phone:    checkout.Phone,
		Quantity: checkout.Quantity,
		OrderRef: checkout.OrderRef,
	})
	if err != nil {
		util.WebhooksReceivedTotal.WithLabelValues("failed").Inc()
		h.writePurchaseError(c, err)
		return
	}

	util.WebhooksReceivedTotal.WithLabelValues("issued").Inc()
	c.JSON(http.StatusOK, gin.H{"received": true})
}

func parsePrice(raw string) (decimal.Decimal, error) {
	price, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, err
	}
	if price.IsNegative() {
		return decimal.Zero, fmt.Errorf("negative price")
	}
	return price, nil
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
