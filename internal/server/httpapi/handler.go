// Package httpapi exposes the key service over HTTP:
//
//	GET  /api/keys?email=<addr>          verified keys of addr, newest first
//	POST /api/keys {email, publicKeyPem} 201 when published, 202 when pending
//	GET|POST /api/keys/verify?token=<t>  confirm a pending key
//	GET  /healthz
//	GET  /metrics
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dmitrijs2005/gophmail/internal/common"
	"github.com/dmitrijs2005/gophmail/internal/logging"
	"github.com/dmitrijs2005/gophmail/internal/server/auth"
	"github.com/dmitrijs2005/gophmail/internal/server/models"
	"github.com/dmitrijs2005/gophmail/internal/server/services"
)

const maxBodySize = 64 << 10

// KeyResponse is the wire form of a stored key.
type KeyResponse struct {
	ID           int64      `json:"id"`
	Email        string     `json:"email"`
	PublicKeyPEM string     `json:"publicKeyPem"`
	Verified     bool       `json:"verified"`
	CreatedAt    time.Time  `json:"createdAt"`
	VerifiedAt   *time.Time `json:"verifiedAt,omitempty"`
}

func toResponse(k *models.PublicKey) KeyResponse {
	r := KeyResponse{
		ID:           k.ID,
		Email:        k.Email,
		PublicKeyPEM: k.PublicKeyPEM,
		Verified:     k.Verified,
		CreatedAt:    k.CreatedAt,
	}
	if !k.VerifiedAt.IsZero() {
		at := k.VerifiedAt
		r.VerifiedAt = &at
	}
	return r
}

type ApiError struct {
	// Code is the HTTP status code
	Code int `json:"code"`
	// Message is the error message
	Message string `json:"message"`
}

func ApiErrorf(c *gin.Context, code int, format string, args ...any) ApiError {
	ar := ApiError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
	c.AbortWithStatusJSON(code, ar)
	return ar
}

// Handler serves the key API.
type Handler struct {
	keys *services.KeyService
	log  logging.Logger
	ping func(context.Context) error
}

// NewHandler builds the routed, instrumented engine. ping backs /healthz
// and may be nil. Request counts are registered on reg.
func NewHandler(keys *services.KeyService, ping func(context.Context) error, reg *prometheus.Registry, log logging.Logger) *gin.Engine {
	h := &Handler{keys: keys, log: log, ping: ping}

	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gophmail",
		Subsystem: "keyserver",
		Name:      "http_requests_total",
		Help:      "HTTP requests by status code and method.",
	}, []string{"code", "method"})
	reg.MustRegister(requests)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), MetricsMiddleware(requests))

	api := router.Group("/api")
	{
		api.GET("/keys", h.lookup)
		api.POST("/keys", h.publish)
		api.GET("/keys/verify", h.verify)
		api.POST("/keys/verify", h.verify)
	}
	router.GET("/healthz", h.health)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	return router
}

// MetricsMiddleware counts finished requests with the labels promhttp's
// counter instrumentation uses.
func MetricsMiddleware(requests *prometheus.CounterVec) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		requests.WithLabelValues(strconv.Itoa(c.Writer.Status()), strings.ToLower(c.Request.Method)).Inc()
	}
}

func (h *Handler) writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, common.ErrValidation), errors.Is(err, auth.ErrInvalidToken):
		status = http.StatusBadRequest
	case errors.Is(err, common.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, auth.ErrTokenExpired):
		status = http.StatusGone
	}

	if status == http.StatusInternalServerError {
		h.log.Error(c.Request.Context(), "request failed", "method", c.Request.Method, "path", c.Request.URL.Path, "err", err)
		ApiErrorf(c, status, "internal error")
		return
	}
	ApiErrorf(c, status, "%s", err.Error())
}

func (h *Handler) lookup(c *gin.Context) {
	keys, err := h.keys.Lookup(c.Request.Context(), c.Query("email"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	out := make([]KeyResponse, 0, len(keys))
	for _, k := range keys {
		out = append(out, toResponse(k))
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) publish(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodySize)

	var req services.PublishRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.writeError(c, common.Validationf("malformed request body: %v", err))
		return
	}

	key, err := h.keys.Publish(c.Request.Context(), req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	status := http.StatusCreated
	if !key.Verified {
		status = http.StatusAccepted
	}
	c.JSON(status, toResponse(key))
}

func (h *Handler) verify(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		h.writeError(c, common.Validationf("token is required"))
		return
	}
	key, err := h.keys.Verify(c.Request.Context(), token)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toResponse(key))
}

func (h *Handler) health(c *gin.Context) {
	if h.ping != nil {
		if err := h.ping(c.Request.Context()); err != nil {
			ApiErrorf(c, http.StatusServiceUnavailable, "database unavailable")
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
