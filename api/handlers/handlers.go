package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"ai-letter/artifacts"
	"ai-letter/models"
	"ai-letter/pipeline"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// DigestReader is the read side of artifacts.Store.
type DigestReader interface {
	LatestDigest(ctx context.Context) (*models.DigestArtifact, error)
	ListDigests(ctx context.Context, limit int) ([]models.Digest, error)
}

// RunTrigger starts pipeline runs. pipeline.Runner implements it.
type RunTrigger interface {
	Start(ctx context.Context) error
	Status() pipeline.Status
}

// ListDigestsHandler godoc
// @Summary      List digests
// @Description  Published digests, newest first
// @Tags         digests
// @Param        limit  query  int  false  "Max items (<=100)"
// @Produce      json
// @Success      200  {array}  models.Digest
// @Router       /digests [get]
func ListDigestsHandler(store DigestReader) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultListLimit)))
		if err != nil || limit <= 0 {
			limit = defaultListLimit
		}
		if limit > maxListLimit {
			limit = maxListLimit
		}

		items, err := store.ListDigests(c.Request.Context(), limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if items == nil {
			items = []models.Digest{}
		}
		c.JSON(http.StatusOK, items)
	}
}

// LatestDigestHandler godoc
// @Summary      Latest digest
// @Description  The most recent digest; format=text returns the plain-text rendering
// @Tags         digests
// @Param        format  query  string  false  "json | text"
// @Produce      json
// @Success      200  {object}  models.Digest
// @Router       /digests/latest [get]
func LatestDigestHandler(store DigestReader) gin.HandlerFunc {
	return func(c *gin.Context) {
		art, err := store.LatestDigest(c.Request.Context())
		if errors.Is(err, artifacts.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if c.Query("format") == "text" {
			c.String(http.StatusOK, art.Text)
			return
		}
		c.JSON(http.StatusOK, art.Digest)
	}
}

// TriggerRunHandler godoc
// @Summary      Trigger a run
// @Description  Starts one pipeline run in the background; 409 while a run is active
// @Tags         runs
// @Produce      json
// @Success      202  {object}  pipeline.Status
// @Router       /runs [post]
func TriggerRunHandler(runner RunTrigger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := runner.Start(c.Request.Context()); err != nil {
			if errors.Is(err, pipeline.ErrRunInProgress) {
				c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "status": runner.Status()})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusAccepted, runner.Status())
	}
}

// RunStatusHandler returns the runner state.
func RunStatusHandler(runner RunTrigger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, runner.Status())
	}
}
