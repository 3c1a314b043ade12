package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/himanishpuri/MapVault/pkg/logger"
	"github.com/himanishpuri/MapVault/pkg/mapvault"
	"github.com/himanishpuri/MapVault/pkg/mapvault/format"
	"github.com/himanishpuri/MapVault/pkg/mapvault/ingest"
	"github.com/himanishpuri/MapVault/pkg/mapvault/storage"
)

// maxUpload caps POST /api/maps bodies.
const maxUpload = 64 << 20

// Server encapsulates the HTTP server and its dependencies
type Server struct {
	service mapvault.Service
	config  *ServerConfig
	log     mapvault.Logger
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Addr           string
	Backend        string
	AllowedOrigins []string
}

// NewServer creates a new server instance
func NewServer(service mapvault.Service, config *ServerConfig) *Server {
	return &Server{
		service: service,
		config:  config,
		log:     logger.GetLogger().Named("http"),
	}
}

// respondError writes an error response
func (s *Server) respondError(c *gin.Context, statusCode int, message string) {
	c.AbortWithStatusJSON(statusCode, ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    statusCode,
	})
}

// handleRoot handles GET /
func (s *Server) handleRoot(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service": "MapVault API",
		"version": "1.0.0",
	})
}

// handleHealth handles GET /health
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"backend": s.config.Backend,
		"time":    time.Now().Format(time.RFC3339),
	})
}

// handleListMaps handles GET /api/maps?limit=&offset=
func (s *Server) handleListMaps(c *gin.Context) {
	ctx := c.Request.Context()
	limit := parseInt(c.Query("limit"), 50)
	offset := parseInt(c.Query("offset"), 0)

	ids, err := s.service.Keys(ctx)
	if err != nil {
		s.log.Errorf("Failed to list maps: %v", err)
		s.respondError(c, http.StatusInternalServerError, "Failed to list maps")
		return
	}

	page := paginate(ids, offset, limit)
	out := make([]MapDTO, 0, len(page))
	for _, id := range page {
		rec, err := s.service.Record(ctx, id)
		if err != nil {
			// unreadable records keep their row so the page lines up with Keys
			s.log.Warnf("Listing %s as unavailable: %v", id, err)
			out = append(out, unavailableMapDTO(id, err))
			continue
		}
		out = append(out, toMapDTO(rec))
	}

	c.JSON(http.StatusOK, ListMapsResponse{
		Total:  len(ids),
		Limit:  limit,
		Offset: offset,
		Maps:   out,
	})
}

// handleGetMap handles GET /api/maps/:id
func (s *Server) handleGetMap(c *gin.Context) {
	id := c.Param("id")
	rec, err := s.service.Record(c.Request.Context(), id)
	if err != nil {
		s.respondLookupError(c, id, err)
		return
	}
	if c.Query("notes") == "true" {
		c.JSON(http.StatusOK, rec)
		return
	}
	c.JSON(http.StatusOK, toMapDTO(rec))
}

// handleAudio handles GET /api/maps/:id/audio
func (s *Server) handleAudio(c *gin.Context) {
	s.servePayload(c, storage.KindAudio)
}

// handleCover handles GET /api/maps/:id/cover
func (s *Server) handleCover(c *gin.Context) {
	s.servePayload(c, storage.KindImage)
}

func (s *Server) servePayload(c *gin.Context, kind storage.Kind) {
	id := c.Param("id")
	data, err := s.service.Payload(c.Request.Context(), kind, id)
	if err != nil {
		s.log.Errorf("Failed to read %s for %s: %v", kind, id, err)
		s.respondError(c, http.StatusInternalServerError, fmt.Sprintf("Failed to read %s", kind))
		return
	}
	if len(data) == 0 {
		s.respondError(c, http.StatusNotFound, fmt.Sprintf("Map %s has no %s", id, kind))
		return
	}
	c.Data(http.StatusOK, http.DetectContentType(data), data)
}

// handleExport handles GET /api/maps/:id/export?legacy=true
func (s *Server) handleExport(c *gin.Context) {
	id := c.Param("id")
	legacy := c.Query("legacy") == "true"
	data, err := s.service.Export(c.Request.Context(), id, legacy)
	if err != nil {
		s.respondLookupError(c, id, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s%s"`, id, ingest.MapExtension))
	c.Data(http.StatusOK, "application/octet-stream", data)
}

// handleState handles GET /api/maps/:id/state
func (s *Server) handleState(c *gin.Context) {
	id := c.Param("id")
	sched := s.service.Scheduler()

	resp := StateResponse{
		ID:            id,
		Record:        sched.Records.State(id).String(),
		Cover:         sched.Images.State(id).String(),
		RecordRetries: sched.Records.Attempts(id),
	}
	if err := sched.Records.Failure(id); err != nil {
		resp.RecordError = err.Error()
	}
	if err := sched.Images.Failure(id); err != nil {
		resp.CoverError = err.Error()
	}
	if h, ok := sched.Images.Get(id); ok {
		resp.CoverURL = h.URL
		resp.CoverFormat = h.Format
		resp.CoverWidth = h.Width
		resp.CoverHeight = h.Height
	}
	c.JSON(http.StatusOK, resp)
}

// handleIngest handles POST /api/maps (multipart file upload)
func (s *Server) handleIngest(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Minute)
	defer cancel()

	header, err := c.FormFile("file")
	if err != nil {
		s.respondError(c, http.StatusBadRequest, "file is required")
		return
	}
	if header.Size > maxUpload {
		s.respondError(c, http.StatusRequestEntityTooLarge, fmt.Sprintf("file exceeds %d bytes", maxUpload))
		return
	}
	f, err := header.Open()
	if err != nil {
		s.log.Errorf("Failed to open upload: %v", err)
		s.respondError(c, http.StatusInternalServerError, "Failed to process upload")
		return
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxUpload))
	if err != nil {
		s.log.Errorf("Failed to read upload: %v", err)
		s.respondError(c, http.StatusInternalServerError, "Failed to read uploaded file")
		return
	}

	rec, err := s.service.Ingest(ctx, data, nil)
	if errors.Is(err, format.ErrUnparseableFormat) {
		s.respondError(c, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		s.log.Errorf("Failed to ingest %s: %v", header.Filename, err)
		s.respondError(c, http.StatusInternalServerError, fmt.Sprintf("Failed to ingest map: %v", err))
		return
	}

	s.log.Infof("Ingested %s from %s", rec.ID, header.Filename)
	c.JSON(http.StatusCreated, IngestResponse{
		Message: "Map ingested successfully",
		Map:     toMapDTO(rec),
	})
}

// handleSearch handles GET /api/search?q=
func (s *Server) handleSearch(c *gin.Context) {
	q := c.Query("q")
	ids, err := s.service.Search(c.Request.Context(), q, nil)
	if err != nil {
		if c.Request.Context().Err() != nil {
			return
		}
		s.log.Errorf("Search %q failed: %v", q, err)
		s.respondError(c, http.StatusInternalServerError, "Search failed")
		return
	}
	c.JSON(http.StatusOK, SearchResponse{Query: q, IDs: ids, Count: len(ids)})
}

// handleVisible handles POST /api/visible
func (s *Server) handleVisible(c *gin.Context) {
	var req VisibleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	s.service.Scheduler().SetVisible(req.IDs)
	c.JSON(http.StatusAccepted, gin.H{"visible": len(req.IDs)})
}

// handleCatalogImport handles POST /api/catalog/import
func (s *Server) handleCatalogImport(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Minute)
	defer cancel()

	report, err := s.service.ImportFromCatalog(ctx)
	if errors.Is(err, mapvault.ErrNoCatalog) {
		s.respondError(c, http.StatusServiceUnavailable, err.Error())
		return
	}
	if err != nil {
		s.log.Errorf("Catalog import failed: %v", err)
		s.respondError(c, http.StatusBadGateway, fmt.Sprintf("Catalog import failed: %v", err))
		return
	}

	resp := ImportResponse{
		Imported: make([]string, 0, len(report.Imported)),
		Failed:   make(map[string]string, len(report.Failed)),
	}
	for _, rec := range report.Imported {
		resp.Imported = append(resp.Imported, rec.ID)
	}
	for name, err := range report.Failed {
		resp.Failed[name] = err.Error()
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) respondLookupError(c *gin.Context, id string, err error) {
	if errors.Is(err, mapvault.ErrMapNotFound) {
		s.respondError(c, http.StatusNotFound, fmt.Sprintf("Map %s not found", id))
		return
	}
	s.log.Errorf("Failed to load %s: %v", id, err)
	s.respondError(c, http.StatusInternalServerError, fmt.Sprintf("Failed to load map %s", id))
}

func parseInt(s string, def int) int {
	if strings.TrimSpace(s) == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return def
	}
	return n
}

func paginate(ids []string, offset, limit int) []string {
	if offset >= len(ids) {
		return nil
	}
	end := len(ids)
	if limit > 0 {
		end = min(end, offset+limit)
	}
	return ids[offset:end]
}
