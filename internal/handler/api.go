package handler

import (
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"profiler-service/internal/models"
	"profiler-service/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const maxUploadBytes = 64 << 20

// Handler handles HTTP requests
type Handler struct {
	profiler *service.Profiler
	logger   *zap.Logger
}

// NewHandler creates a new API handler
func NewHandler(profiler *service.Profiler, logger *zap.Logger) *Handler {
	return &Handler{
		profiler: profiler,
		logger:   logger,
	}
}

type scanRequest struct {
	Subject string `json:"subject" binding:"required"`
}

type documentsRequest struct {
	Paths []string `json:"paths" binding:"required"`
}

type webRequest struct {
	URLs []string `json:"urls" binding:"required"`
}

type socialRequest struct {
	Query string `json:"query"`
}

type turnRequest struct {
	Text string `json:"text" binding:"required"`
}

// RegisterRoutes registers all API routes. The middlewares guard /api/v1.
func (h *Handler) RegisterRoutes(r *gin.Engine, middlewares ...gin.HandlerFunc) {
	api := r.Group("/api/v1", middlewares...)
	{
		api.POST("/subjects/scan", h.Scan)

		// Evidence collection
		api.POST("/evidence/documents", h.CollectDocuments)
		api.POST("/evidence/web", h.CollectWeb)
		api.POST("/evidence/social", h.CollectSocial)
		api.GET("/evidence", h.GetEvidence)
		api.GET("/evidence/counts", h.GetCounts)

		// Profile report
		api.POST("/profile/synthesize", h.Synthesize)
		api.GET("/profile", h.GetProfile)

		// Persona session
		api.POST("/persona/sync", h.SyncPersona)
		api.POST("/persona/turns", h.SendTurn)
		api.GET("/persona", h.GetPersona)

		// Event log
		api.GET("/events", h.GetEvents)
		api.GET("/events/stream", h.StreamEvents)

		// Saved records
		api.GET("/records", h.ListRecords)
		api.POST("/records", h.SaveRecord)
		api.GET("/records/:name", h.LoadRecord)
		api.DELETE("/records/:name", h.DeleteRecord)
	}

	// Health check
	r.GET("/health", h.HealthCheck)
}

// Scan begins a scan for a subject
func (h *Handler) Scan(c *gin.Context) {
	var req scanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rec, err := h.profiler.Scan(c.Request.Context(), req.Subject)
	if err != nil {
		h.fail(c, "scan failed", err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// CollectDocuments dispatches extraction of server-side paths, or extracts
// uploaded files synchronously when the request is multipart.
func (h *Handler) CollectDocuments(c *gin.Context) {
	if c.ContentType() == "multipart/form-data" {
		h.uploadDocuments(c)
		return
	}

	var req documentsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.profiler.DispatchDocuments(req.Paths); err != nil {
		h.fail(c, "failed to start document collection", err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "collecting", "documents": len(req.Paths)})
}

func (h *Handler) uploadDocuments(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadBytes)
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	files := form.File["files"]
	if len(files) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no files uploaded"})
		return
	}

	dir, err := os.MkdirTemp("", "profiler-upload-*")
	if err != nil {
		h.fail(c, "failed to stage uploads", err)
		return
	}
	defer os.RemoveAll(dir)

	paths := make([]string, 0, len(files))
	for i, f := range files {
		// one directory per part so repeated filenames keep their own content
		slot := filepath.Join(dir, strconv.Itoa(i))
		if err := os.Mkdir(slot, 0o700); err != nil {
			h.fail(c, "failed to stage uploads", err)
			return
		}
		dst := filepath.Join(slot, filepath.Base(f.Filename))
		if err := c.SaveUploadedFile(f, dst); err != nil {
			h.fail(c, "failed to stage uploads", err)
			return
		}
		paths = append(paths, dst)
	}

	summary, err := h.profiler.CollectDocuments(c.Request.Context(), paths)
	if err != nil {
		h.fail(c, "document collection failed", err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// CollectWeb dispatches page scrapes
func (h *Handler) CollectWeb(c *gin.Context) {
	var req webRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.profiler.DispatchWeb(req.URLs); err != nil {
		h.fail(c, "failed to start web collection", err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "collecting", "urls": len(req.URLs)})
}

// CollectSocial dispatches the platform search. An empty query searches
// for the subject's name.
func (h *Handler) CollectSocial(c *gin.Context) {
	var req socialRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	if err := h.profiler.DispatchSocial(req.Query); err != nil {
		h.fail(c, "failed to start social search", err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "collecting"})
}

// GetEvidence returns the current evidence snapshot
func (h *Handler) GetEvidence(c *gin.Context) {
	snap := h.profiler.Snapshot()
	items := snap.Items
	if items == nil {
		items = []models.EvidenceItem{}
	}

	resp := gin.H{
		"subject": snap.Subject,
		"items":   items,
		"counts":  snap.Counts(),
	}
	if !snap.ScannedAt.IsZero() {
		resp["scan_timestamp"] = snap.ScannedAt
	}
	c.JSON(http.StatusOK, resp)
}

// GetCounts returns evidence counts by kind
func (h *Handler) GetCounts(c *gin.Context) {
	counts := h.profiler.Counts()
	c.JSON(http.StatusOK, gin.H{
		"documents":    counts.Documents,
		"web_pages":    counts.WebPages,
		"social_media": counts.Social,
		"total":        counts.Total(),
	})
}

// Synthesize requests a narrative report from the model
func (h *Handler) Synthesize(c *gin.Context) {
	report, err := h.profiler.Synthesize(c.Request.Context())
	if err != nil {
		h.fail(c, "synthesis failed", err)
		return
	}
	c.JSON(http.StatusOK, profileResponse(h.profiler.Snapshot().Subject, report))
}

// GetProfile returns the current report, as JSON or with ?format=text as
// the rendered board.
func (h *Handler) GetProfile(c *gin.Context) {
	if c.Query("format") == "text" {
		c.String(http.StatusOK, h.profiler.Board())
		return
	}

	report := h.profiler.Report()
	if report.IsZero() {
		c.JSON(http.StatusNotFound, gin.H{"error": "no profile report yet"})
		return
	}
	c.JSON(http.StatusOK, profileResponse(h.profiler.Snapshot().Subject, report))
}

func profileResponse(subject string, report models.ProfileReport) gin.H {
	resp := gin.H{
		"subject": subject,
		"kind":    report.Kind().String(),
		"origin":  report.Origin,
		"report":  report,
	}
	if !report.GeneratedAt.IsZero() {
		resp["generated_at"] = report.GeneratedAt
	}
	return resp
}

// SyncPersona synchronizes the persona session
func (h *Handler) SyncPersona(c *gin.Context) {
	state, err := h.profiler.Synchronize()
	if err != nil {
		h.fail(c, "persona synchronization failed", err)
		return
	}
	c.JSON(http.StatusOK, state)
}

// SendTurn sends one message to the persona
func (h *Handler) SendTurn(c *gin.Context) {
	var req turnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	reply, err := h.profiler.SendTurn(c.Request.Context(), req.Text)
	if err != nil {
		h.fail(c, "persona turn failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"reply":   reply,
		"history": len(h.profiler.Persona().History),
	})
}

// GetPersona returns the session state
func (h *Handler) GetPersona(c *gin.Context) {
	c.JSON(http.StatusOK, h.profiler.Persona())
}

// GetEvents returns retained events after ?after=N
func (h *Handler) GetEvents(c *gin.Context) {
	after, err := afterParam(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "after must be an integer"})
		return
	}
	entries := h.profiler.Events().Since(after)
	c.JSON(http.StatusOK, gin.H{
		"events": entries,
		"total":  len(entries),
	})
}

// StreamEvents sends retained events after ?after=N and then every new one
// as server-sent events.
func (h *Handler) StreamEvents(c *gin.Context) {
	after, err := afterParam(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "after must be an integer"})
		return
	}

	log := h.profiler.Events()
	ch, cancel := log.Subscribe(64)
	defer cancel()

	// Entries emitted between Since and Subscribe arrive on ch as well;
	// skip anything already sent.
	last := after
	for _, e := range log.Since(after) {
		c.SSEvent("log", e)
		last = e.Seq
	}
	c.Writer.Flush()

	keepAlive := time.NewTicker(15 * time.Second)
	defer keepAlive.Stop()

	c.Stream(func(w io.Writer) bool {
		select {
		case e, ok := <-ch:
			if !ok {
				return false
			}
			if e.Seq > last {
				c.SSEvent("log", e)
				last = e.Seq
			}
			return true
		case <-keepAlive.C:
			c.SSEvent("ping", time.Now().Unix())
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}

func afterParam(c *gin.Context) (int64, error) {
	raw := c.Query("after")
	if raw == "" {
		return 0, nil
	}
	return strconv.ParseInt(raw, 10, 64)
}

// ListRecords returns saved record names
func (h *Handler) ListRecords(c *gin.Context) {
	names, err := h.profiler.ListRecords(c.Request.Context())
	if err != nil {
		h.fail(c, "failed to list records", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"records": names,
		"total":   len(names),
	})
}

// SaveRecord saves the current subject
func (h *Handler) SaveRecord(c *gin.Context) {
	rec, err := h.profiler.SaveRecord(c.Request.Context())
	if err != nil {
		h.fail(c, "failed to save record", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"name": rec.Name, "scan_timestamp": rec.ScanTimestamp})
}

// LoadRecord loads a saved record into the evidence store
func (h *Handler) LoadRecord(c *gin.Context) {
	rec, err := h.profiler.LoadRecord(c.Request.Context(), c.Param("name"))
	if err != nil {
		h.fail(c, "failed to load record", err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// DeleteRecord removes a saved record
func (h *Handler) DeleteRecord(c *gin.Context) {
	if err := h.profiler.DeleteRecord(c.Request.Context(), c.Param("name")); err != nil {
		h.fail(c, "failed to delete record", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// HealthCheck returns service health
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"subject": h.profiler.Snapshot().Subject,
		"persona": h.profiler.Persona().Status,
	})
}

func (h *Handler) fail(c *gin.Context, msg string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error(msg, zap.Error(err))
	} else {
		h.logger.Debug(msg, zap.Error(err))
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrRecordNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrSessionPrecondition),
		errors.Is(err, models.ErrSessionInactive),
		errors.Is(err, service.ErrClosed):
		return http.StatusConflict
	case errors.Is(err, models.ErrSynthesisFailed),
		errors.Is(err, models.ErrTurnFailed):
		return http.StatusBadGateway
	case errors.Is(err, models.ErrModelUnavailable),
		errors.Is(err, models.ErrSourceUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
