// Package api serves a read-mostly HTTP view of the posting store.
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/spigell/jobradar/internal/posting"
	"github.com/spigell/jobradar/internal/storage"
)

// Store is the storage surface the API exposes.
type Store interface {
	Query(ctx context.Context, f storage.Filter) ([]*posting.Posting, error)
	Get(ctx context.Context, id int64) (*posting.Posting, error)
	Receipts(ctx context.Context, postingID int64) ([]posting.Receipt, error)
	SetUserStatus(ctx context.Context, id int64, status posting.Status, notes *string) error
	Stats(ctx context.Context) (storage.Stats, error)
	Ping(ctx context.Context) error
}

type Handler struct {
	store Store
}

func NewHandler(store Store) *Handler {
	return &Handler{store: store}
}

// PostingDetail is a posting with its notification history.
type PostingDetail struct {
	*posting.Posting
	Receipts []posting.Receipt `json:"receipts"`
}

type statusRequest struct {
	Status string  `json:"status" binding:"required"`
	Notes  *string `json:"notes"`
}

func (h *Handler) ListPostings(c *gin.Context) {
	f := storage.Filter{
		Source: c.Query("source"),
		Group:  c.Query("group"),
	}

	if raw := c.Query("status"); raw != "" {
		status, err := posting.ParseStatus(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		f.Status = status
	}
	if raw := c.Query("min_score"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v < 0 || v > 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "min_score must be a number between 0 and 1"})
			return
		}
		f.MinScore = v
	}
	if raw := c.Query("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		f.Limit = v
	}

	postings, err := h.store.Query(c.Request.Context(), f)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if postings == nil {
		postings = []*posting.Posting{}
	}
	c.JSON(http.StatusOK, postings)
}

func (h *Handler) GetPosting(c *gin.Context) {
	id, ok := postingID(c)
	if !ok {
		return
	}

	p, err := h.store.Get(c.Request.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	receipts, err := h.store.Receipts(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if receipts == nil {
		receipts = []posting.Receipt{}
	}
	c.JSON(http.StatusOK, PostingDetail{Posting: p, Receipts: receipts})
}

func (h *Handler) UpdateStatus(c *gin.Context) {
	id, ok := postingID(c)
	if !ok {
		return
	}

	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	status, err := posting.ParseStatus(req.Status)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err = h.store.SetUserStatus(c.Request.Context(), id, status, req.Notes)
	if errors.Is(err, storage.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "status": status})
}

func (h *Handler) GetStats(c *gin.Context) {
	stats, err := h.store.Stats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *Handler) Health(c *gin.Context) {
	if err := h.store.Ping(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func postingID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid posting id"})
		return 0, false
	}
	return id, true
}
