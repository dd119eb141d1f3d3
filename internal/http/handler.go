package http

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"parkmap-service/internal/domain/parking"
	"parkmap-service/internal/service"
)

type Handler struct {
	pipelineService *service.PipelineService
	log             zerolog.Logger
}

func NewHandler(
	pipelineService *service.PipelineService,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		pipelineService: pipelineService,
		log:             log,
	}
}

func (h *Handler) Register(r *gin.Engine, authMiddleware gin.HandlerFunc) {
	// Public endpoints
	public := r.Group("/api/v1")
	{
		public.POST("/images", h.registerImage)
		public.GET("/images", h.listImages)
		public.GET("/sites", h.listSites)
		public.GET("/sites/:id/markers", h.siteMarkers)
		public.GET("/markers", h.allMarkers)
		public.GET("/availability", h.availability)
	}

	// Protected endpoints
	protected := r.Group("/api/v1")
	protected.Use(authMiddleware)
	{
		protected.PUT("/sites/:id", h.configureSite)
		protected.POST("/pipeline/run", h.runPipeline)
	}
}

func (h *Handler) registerImage(c *gin.Context) {
	var payload parking.ImagePayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	upload, err := h.pipelineService.RegisterImage(c.Request.Context(), payload)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"status":    "ok",
		"upload_id": upload.ID,
		"filename":  upload.Filename,
		"location":  upload.Location,
	})
}

func (h *Handler) listImages(c *gin.Context) {
	limit := 50
	if l := c.Query("limit"); l != "" {
		if parsed, err := parseInt(l); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	offset := 0
	if o := c.Query("offset"); o != "" {
		if parsed, err := parseInt(o); err == nil && parsed >= 0 {
			offset = parsed
		}
	}

	uploads, err := h.pipelineService.ListUploads(c.Request.Context(), limit, offset)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(uploads))
}

func (h *Handler) listSites(c *gin.Context) {
	sites, err := h.pipelineService.ListSites(c.Request.Context())
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(sites))
}

func (h *Handler) configureSite(c *gin.Context) {
	var in service.SiteInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	site, err := h.pipelineService.ConfigureSite(c.Request.Context(), c.Param("id"), in)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(site))
}

// siteMarkers serves the per-site marker document as a bare JSON array.
func (h *Handler) siteMarkers(c *gin.Context) {
	views, err := h.pipelineService.SiteMarkers(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, views)
}

func (h *Handler) allMarkers(c *gin.Context) {
	views, err := h.pipelineService.AllMarkers(c.Request.Context())
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, views)
}

func (h *Handler) availability(c *gin.Context) {
	grouped, _ := strconv.ParseBool(strings.TrimSpace(c.Query("group")))

	if grouped {
		groups, err := h.pipelineService.GroupAvailability(c.Request.Context())
		if err != nil {
			h.handleError(c, err)
			return
		}
		c.JSON(http.StatusOK, successResponse(groups))
		return
	}

	areas, err := h.pipelineService.Availability(c.Request.Context())
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse(areas))
}

func (h *Handler) runPipeline(c *gin.Context) {
	result, err := h.pipelineService.RunPending(c.Request.Context())
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(result))
}

func (h *Handler) handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, errorResponse(err.Error()))
	case errors.Is(err, service.ErrRunInProgress):
		c.JSON(http.StatusConflict, errorResponse(err.Error()))
	default:
		h.log.Error().Err(err).Msg("handler error")
		c.JSON(http.StatusInternalServerError, errorResponse("internal error"))
	}
}

func successResponse(data interface{}) gin.H {
	return gin.H{
		"data": data,
	}
}

func errorResponse(message string) gin.H {
	return gin.H{
		"error": message,
	}
}

func parseInt(s string) (int, error) {
	return strconv.Atoi(s)
}
