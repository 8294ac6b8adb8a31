// Package api serves a read-only JSON view of the local playlist archive.
package api

import (
	"errors"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pevans/rageplaylists/archive"
	"github.com/pevans/rageplaylists/dates"
	"github.com/pevans/rageplaylists/index"
	"github.com/pevans/rageplaylists/playlists"
	"github.com/pevans/rageplaylists/videos"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const (
	defaultLimit = 50
	maxLimit     = 1000
)

// Server is the HTTP API server.
type Server struct {
	indexPath string
	store     *playlists.Store
	videos    videos.Lookup
	gatherer  prometheus.Gatherer
	logger    *zap.Logger
}

// NewServer creates a server over the index at indexPath and the records in
// store. lookup, gatherer and logger may be nil; without a lookup the videos
// endpoint answers 503 and without a gatherer /metrics is not routed.
func NewServer(indexPath string, store *playlists.Store, lookup videos.Lookup, gatherer prometheus.Gatherer, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		indexPath: indexPath,
		store:     store,
		videos:    lookup,
		gatherer:  gatherer,
		logger:    logger,
	}
}

// SetupRouter configures the Gin router with all routes.
func (s *Server) SetupRouter() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), s.requestLogger())

	router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusOK)
			return
		}

		c.Next()
	})

	router.GET("/health", s.HandleHealth)
	if s.gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))
	}

	api := router.Group("/api/v1")
	api.GET("/playlists", s.HandleListPlaylists)
	api.GET("/playlists/:year/:month/:day", s.HandleGetDay)
	api.GET("/videos", s.HandleVideos)

	return router
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)))
	}
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error code and message.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeError(c *gin.Context, status int, code, message string) {
	c.JSON(status, ErrorResponse{Error: ErrorDetail{Code: code, Message: message}})
}

// HandleHealth handles GET /health.
func (s *Server) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// ListPlaylistsResponse represents the response for GET /api/v1/playlists.
type ListPlaylistsResponse struct {
	Playlists []archive.Entry `json:"playlists"`
	Total     int             `json:"total"`
	Limit     int             `json:"limit"`
	Offset    int             `json:"offset"`
}

// HandleListPlaylists handles GET /api/v1/playlists. Entries come from the
// index, newest first unless sort=date_asc.
func (s *Server) HandleListPlaylists(c *gin.Context) {
	entries := []archive.Entry{}

	idx, err := index.Load(s.indexPath)
	switch {
	case err == nil:
		entries = append(entries, idx.Playlists...)
	case errors.Is(err, index.ErrIndexNotFound), errors.Is(err, index.ErrEmptyIndex):
		// Nothing archived yet.
	default:
		writeError(c, http.StatusInternalServerError, "internal_error", "Failed to load index: "+err.Error())
		return
	}

	if yearParam := c.Query("year"); yearParam != "" {
		year, err := strconv.Atoi(yearParam)
		if err != nil {
			writeError(c, http.StatusBadRequest, "invalid_parameter", "Invalid year parameter")
			return
		}
		entries = filterEntries(entries, func(e archive.Entry) bool { return e.Date.Year == year })
	}

	if monthParam := c.Query("month"); monthParam != "" {
		month, err := strconv.Atoi(monthParam)
		if err != nil || month < 1 || month > 12 {
			writeError(c, http.StatusBadRequest, "invalid_parameter", "Invalid month parameter")
			return
		}
		entries = filterEntries(entries, func(e archive.Entry) bool { return int(e.Date.Month) == month })
	}

	switch c.DefaultQuery("sort", "date_desc") {
	case "date_desc":
		sort.SliceStable(entries, func(i, j int) bool { return entries[j].Date.Before(entries[i].Date) })
	case "date_asc":
		sort.SliceStable(entries, func(i, j int) bool { return entries[i].Date.Before(entries[j].Date) })
	default:
		writeError(c, http.StatusBadRequest, "invalid_parameter", "Invalid sort parameter")
		return
	}

	total := len(entries)

	limit := defaultLimit
	if limitParam := c.Query("limit"); limitParam != "" {
		parsedLimit, err := strconv.Atoi(limitParam)
		if err != nil || parsedLimit < 1 {
			writeError(c, http.StatusBadRequest, "invalid_parameter", "Invalid limit parameter")
			return
		}
		limit = min(parsedLimit, maxLimit)
	}

	offset := 0
	if offsetParam := c.Query("offset"); offsetParam != "" {
		parsedOffset, err := strconv.Atoi(offsetParam)
		if err != nil || parsedOffset < 0 {
			writeError(c, http.StatusBadRequest, "invalid_parameter", "Invalid offset parameter")
			return
		}
		offset = parsedOffset
	}

	c.JSON(http.StatusOK, ListPlaylistsResponse{
		Playlists: paginate(entries, offset, limit),
		Total:     total,
		Limit:     limit,
		Offset:    offset,
	})
}

func filterEntries(entries []archive.Entry, keep func(archive.Entry) bool) []archive.Entry {
	filtered := []archive.Entry{}
	for _, e := range entries {
		if keep(e) {
			filtered = append(filtered, e)
		}
	}
	return filtered
}

func paginate(entries []archive.Entry, offset, limit int) []archive.Entry {
	if offset >= len(entries) {
		return []archive.Entry{}
	}
	end := min(offset+limit, len(entries))
	return entries[offset:end]
}

// DayResponse represents the response for GET
// /api/v1/playlists/{year}/{month}/{day}.
type DayResponse struct {
	Date      dates.Date         `json:"date"`
	Playlists []archive.Playlist `json:"playlists"`
	Errors    []FileError        `json:"errors,omitempty"`
}

// FileError names a record that could not be read.
type FileError struct {
	File    string `json:"file"`
	Message string `json:"message"`
}

// HandleGetDay handles GET /api/v1/playlists/{year}/{month}/{day}.
func (s *Server) HandleGetDay(c *gin.Context) {
	year, yerr := strconv.Atoi(c.Param("year"))
	month, merr := strconv.Atoi(c.Param("month"))
	day, derr := strconv.Atoi(c.Param("day"))
	if yerr != nil || merr != nil || derr != nil {
		writeError(c, http.StatusBadRequest, "invalid_date", "Year, month and day must be numbers")
		return
	}

	date, err := dates.New(year, time.Month(month), day)
	if err != nil {
		writeError(c, http.StatusBadRequest, "invalid_date", err.Error())
		return
	}

	result, err := s.store.ListDay(date)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "internal_error", "Failed to read playlists: "+err.Error())
		return
	}

	if len(result.Playlists) == 0 && len(result.Errors) == 0 {
		writeError(c, http.StatusNotFound, "not_found", "No playlists stored for "+date.String())
		return
	}

	response := DayResponse{Date: date, Playlists: result.Playlists}
	for _, readErr := range result.Errors {
		response.Errors = append(response.Errors, FileError{File: readErr.Filename, Message: readErr.Err.Error()})
	}

	c.JSON(http.StatusOK, response)
}

// VideosResponse represents the response for GET /api/v1/videos.
type VideosResponse struct {
	Query  string         `json:"query"`
	Videos []videos.Video `json:"videos"`
}

// HandleVideos handles GET /api/v1/videos?artist=...&song=...
func (s *Server) HandleVideos(c *gin.Context) {
	if s.videos == nil {
		writeError(c, http.StatusServiceUnavailable, "videos_disabled", "Video lookup is not configured")
		return
	}

	artist := c.Query("artist")
	song := c.Query("song")
	if artist == "" || song == "" {
		writeError(c, http.StatusBadRequest, "invalid_parameter", "Both artist and song are required")
		return
	}

	found, err := s.videos.Lookup(c.Request.Context(), artist, song)
	if err != nil {
		s.logger.Warn("video lookup failed", zap.String("artist", artist), zap.String("song", song), zap.Error(err))
		writeError(c, http.StatusBadGateway, "upstream_error", "Video lookup failed: "+err.Error())
		return
	}
	if found == nil {
		found = []videos.Video{}
	}

	c.JSON(http.StatusOK, VideosResponse{Query: videos.Query(artist, song), Videos: found})
}
