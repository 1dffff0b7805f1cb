package handlers

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kunay1/seal/internal/application/dto"
	"github.com/kunay1/seal/internal/application/service"
	"github.com/kunay1/seal/pkg/constants"
	"github.com/kunay1/seal/pkg/errors"
	"github.com/kunay1/seal/pkg/logger"
)

// KeyHandler serves key release and node information.
type KeyHandler struct {
	app service.KeyAppService
	log logger.Logger
	now func() time.Time
}

// NewKeyHandler creates a new KeyHandler.
func NewKeyHandler(app service.KeyAppService, log logger.Logger) *KeyHandler {
	return &KeyHandler{
		app: app,
		log: log.WithComponent("KeyHandler"),
		now: time.Now,
	}
}

// FetchKey godoc
// @Summary      Fetch key shares
// @Description  Authorizes a signed policy transaction and returns key shares sealed to the request's encryption key.
// @Tags         keys
// @Accept       json
// @Produce      json
// @Param        request  body      dto.FetchKeyRequest  true  "Signed key request"
// @Success      200      {object}  dto.FetchKeyResponse
// @Failure      400      {object}  errors.ErrorResponse
// @Failure      403      {object}  errors.ErrorResponse
// @Failure      429      {object}  errors.ErrorResponse
// @Failure      503      {object}  errors.ErrorResponse
// @Router       /v1/fetch_key [post]
func (h *KeyHandler) FetchKey(c *gin.Context) {
	var req dto.FetchKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, errors.ErrInvalidParameter.WithMessage("request body is malformed").WithCause(err))
		return
	}

	resp, err := h.app.FetchKey(c.Request.Context(), &req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ServiceInfo godoc
// @Summary      Node information
// @Tags         keys
// @Produce      json
// @Success      200  {object}  dto.ServiceInfoResponse
// @Router       /v1/service [get]
func (h *KeyHandler) ServiceInfo(c *gin.Context) {
	c.JSON(http.StatusOK, h.app.ServiceInfo(c.Request.Context()))
}

func (h *KeyHandler) respondError(c *gin.Context, err error) {
	if se, ok := errors.As(err); ok && se.Code() == errors.CodeRateLimited {
		if resetAt, ok := se.Metadata()["reset_at"].(time.Time); ok {
			c.Header(constants.HeaderRetryAfter, retryAfterSeconds(resetAt, h.now()))
		}
	}
	status := errors.HTTPStatusOf(err)
	if status >= http.StatusInternalServerError && !errors.IsRetryable(err) {
		h.log.Error(c.Request.Context(), "Unexpected error serving request", err)
	}
	c.JSON(status, errors.ToErrorResponse(err))
}

func retryAfterSeconds(resetAt, now time.Time) string {
	secs := int(math.Ceil(resetAt.Sub(now).Seconds()))
	if secs < 1 {
		secs = 1
	}
	return strconv.Itoa(secs)
}
