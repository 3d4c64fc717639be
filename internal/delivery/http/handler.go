package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/ozonscout/backend/internal/domain"
	"go.uber.org/zap"
)

// MaxListedProducts caps the products returned by the search endpoint
const MaxListedProducts = 5

// SearchService is the pipeline the handlers delegate to
type SearchService interface {
	Search(ctx context.Context, productURL string, mode domain.SortMode) (*domain.SearchResult, error)
	ResolveName(ctx context.Context, productURL string) (domain.Identity, error)
}

// Response is the envelope every API endpoint answers with
type Response struct {
	Error   bool    `json:"error"`
	Message *string `json:"message"`
	Results any     `json:"results"`
}

// Handler holds dependencies for HTTP handlers
type Handler struct {
	service SearchService
	logger  *zap.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(service SearchService, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		service: service,
		logger:  logger.Named("http"),
	}
}

// HealthCheck returns the health status of the API
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "ozonscout-backend",
		"version": "1.0.0",
	})
}

// SearchItems runs the pipeline for GET /api/v1/ozon/items/search
func (h *Handler) SearchItems(c *gin.Context) {
	if h.service == nil {
		respondError(c, http.StatusServiceUnavailable, "search service not configured")
		return
	}

	productURL := c.Query("product_url")
	if productURL == "" {
		respondError(c, http.StatusBadRequest, "product_url is required")
		return
	}

	mode, err := domain.ParseSortMode(c.Query("sorting_type"))
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.service.Search(c.Request.Context(), productURL, mode)
	if err != nil {
		h.logger.Error("search failed",
			zap.String("product_url", productURL),
			zap.String("sorting_type", string(mode)),
			zap.Error(err),
		)
		respondError(c, statusFor(err), err.Error())
		return
	}

	message := result.Message
	c.JSON(http.StatusOK, Response{
		Message: &message,
		Results: gin.H{
			"product_url":  productURL,
			"sorting_type": result.SortMode,
			"details":      result.Details.Capped(MaxListedProducts),
		},
	})
}

// ResolveName answers GET /api/v1/ozon/items/name with the canonical product name
func (h *Handler) ResolveName(c *gin.Context) {
	if h.service == nil {
		respondError(c, http.StatusServiceUnavailable, "search service not configured")
		return
	}

	productURL := c.Query("product_url")
	if productURL == "" {
		respondError(c, http.StatusBadRequest, "product_url is required")
		return
	}

	identity, err := h.service.ResolveName(c.Request.Context(), productURL)
	if errors.Is(err, domain.ErrIdentityNotRecognized) {
		message := domain.MessageNameNotRecognized
		c.JSON(http.StatusOK, Response{
			Message: &message,
			Results: gin.H{"product_url": productURL, "product_name": nil},
		})
		return
	}
	if err != nil {
		h.logger.Error("name resolution failed", zap.String("product_url", productURL), zap.Error(err))
		respondError(c, statusFor(err), err.Error())
		return
	}

	c.JSON(http.StatusOK, Response{
		Results: gin.H{
			"product_url":  productURL,
			"product_name": identity.Name,
			"sku":          identity.SKU,
		},
	})
}

// statusFor maps pipeline errors onto HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidRequest), errors.Is(err, domain.ErrInvalidSortMode):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrAuthentication),
		errors.Is(err, domain.ErrRateLimited),
		errors.Is(err, domain.ErrRequestFailed):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, Response{Error: true, Message: &message})
}
