package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"auction-service/internal/feed"
	"auction-service/internal/models"
	"auction-service/internal/service"
	"auction-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const bidderContextKey = "bidder"

// Handler contains HTTP handlers
type Handler struct {
	auctionService *service.AuctionService
	bidService     *service.BidService
	queryService   *service.QueryService
	watchService   *service.WatchService
	identity       *service.IdentityClient
	hub            *feed.Hub
}

// NewHandler creates a new HTTP handler
func NewHandler(
	auctionService *service.AuctionService,
	bidService *service.BidService,
	queryService *service.QueryService,
	watchService *service.WatchService,
	identity *service.IdentityClient,
	hub *feed.Hub,
) *Handler {
	return &Handler{
		auctionService: auctionService,
		bidService:     bidService,
		queryService:   queryService,
		watchService:   watchService,
		identity:       identity,
		hub:            hub,
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

	v1 := router.Group("/api/v1")
	{
		v1.GET("/auctions", h.listAuctions)
		v1.GET("/auctions/:id", h.getAuction)
		v1.GET("/auctions/:id/events", h.streamEvents)

		authed := v1.Group("", h.authMiddleware())
		{
			authed.POST("/auctions", h.createAuction)
			authed.DELETE("/auctions/:id", h.cancelAuction)
			authed.POST("/auctions/:id/bids", h.placeBid)
			authed.POST("/auctions/:id/watch", h.toggleWatch)
			authed.GET("/bidders/me/watches", h.listWatches)
		}
	}
}

// authMiddleware resolves the bearer token to a bidder and stores it on
// the request context.
func (h *Handler) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")

		bidder, err := h.identity.Resolve(c.Request.Context(), token)
		if err != nil {
			if errors.Is(err, service.ErrBidderNotFound) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
					"error": "Invalid or missing bearer token",
				})
				return
			}
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{
				"error": "Identity lookup unavailable",
			})
			return
		}

		c.Set(bidderContextKey, bidder)
		c.Next()
	}
}

func currentBidder(c *gin.Context) *models.Bidder {
	return c.MustGet(bidderContextKey).(*models.Bidder)
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

// createAuction handles auction creation
func (h *Handler) createAuction(c *gin.Context) {
	var req service.CreateAuctionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	a, err := h.auctionService.CreateAuction(c.Request.Context(), currentBidder(c).ID, &req)
	if err != nil {
		if errors.Is(err, service.ErrInvalidAuction) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to create auction",
		})
		return
	}

	c.JSON(http.StatusCreated, a)
}

// cancelAuction handles auction cancellation
func (h *Handler) cancelAuction(c *gin.Context) {
	err := h.auctionService.CancelAuction(c.Request.Context(), c.Param("id"))
	switch {
	case err == nil:
		c.Status(http.StatusNoContent)
	case errors.Is(err, service.ErrAuctionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Auction not found"})
	case errors.Is(err, service.ErrNotCancellable):
		c.JSON(http.StatusConflict, gin.H{"error": "Auction already finished"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to cancel auction",
		})
	}
}

type placeBidRequest struct {
	Amount int64 `json:"amount" binding:"required,gt=0"`
}

// placeBid handles bid submission. A validation rejection is a successful
// request with accepted=false; only transient failures surface as 5xx so
// clients know a retry may succeed.
func (h *Handler) placeBid(c *gin.Context) {
	var req placeBidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	result, err := h.bidService.PlaceBid(c.Request.Context(), c.Param("id"), currentBidder(c), req.Amount)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrAuctionNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Auction not found"})
		case errors.Is(err, service.ErrConflict), errors.Is(err, service.ErrUnavailable):
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"error":     "Bid could not be processed, please retry",
				"retryable": true,
			})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to place bid",
			})
		}
		return
	}

	if !result.Accepted {
		c.JSON(http.StatusUnprocessableEntity, result)
		return
	}
	c.JSON(http.StatusOK, result)
}

// listAuctions handles auction listing with optional filters
func (h *Handler) listAuctions(c *gin.Context) {
	filter := service.QueryFilter{
		Status: models.Status(c.Query("status")),
		Type:   models.AuctionType(c.Query("type")),
		Query:  c.Query("q"),
	}
	if limitStr := c.Query("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit"})
			return
		}
		filter.Limit = limit
	}

	auctions, err := h.queryService.List(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to list auctions",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"auctions": auctions})
}

// getAuction handles auction detail with bid history
func (h *Handler) getAuction(c *gin.Context) {
	a, bids, err := h.queryService.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, service.ErrAuctionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Auction not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to get auction",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"auction": a,
		"bids":    bids,
	})
}

// toggleWatch handles watch toggling
func (h *Handler) toggleWatch(c *gin.Context) {
	watching, err := h.watchService.Toggle(c.Request.Context(), c.Param("id"), currentBidder(c).ID)
	if err != nil {
		if errors.Is(err, service.ErrAuctionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Auction not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to toggle watch",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"watching": watching})
}

// listWatches returns the calling bidder's watched auctions
func (h *Handler) listWatches(c *gin.Context) {
	auctions, err := h.queryService.ListWatched(c.Request.Context(), currentBidder(c).ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to list watched auctions",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"auctions": auctions})
}

// streamEvents serves the live update feed over SSE. The first event is
// always a snapshot of current state; incremental events follow.
func (h *Handler) streamEvents(c *gin.Context) {
	sub, err := h.hub.Subscribe(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, service.ErrAuctionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Auction not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to subscribe",
		})
		return
	}
	defer h.hub.Unsubscribe(sub)

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	c.Stream(func(w io.Writer) bool {
		select {
		case ev, ok := <-sub.Events():
			if !ok {
				// Dropped by the hub; the client reconnects and gets a
				// fresh snapshot.
				return false
			}
			fmt.Fprintf(w, "id: %s\nevent: %s\ndata: %s\n\n", ev.ID, ev.Type, ev.Data)
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
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
