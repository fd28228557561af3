package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"genimage/internal/models"
	"genimage/internal/service"
)

// imageResponse is the full image. encoding/json writes Buffer as base64.
type imageResponse struct {
	models.ImageInfo
	ContentType string `json:"contentType"`
	Buffer      []byte `json:"buffer"`
}

func newImageResponse(image models.Image) imageResponse {
	return imageResponse{
		ImageInfo:   image.Info(),
		ContentType: image.ContentType,
		Buffer:      image.Buffer,
	}
}

type searchRequest struct {
	Prompt string `json:"prompt"`
}

type reactionRequest struct {
	UserID string `json:"userId"`
}

func (h HandlerSet) RecentImages(c *gin.Context) {
	h.listImages(c, h.ranking.Recent)
}

func (h HandlerSet) PopularImages(c *gin.Context) {
	h.listImages(c, h.ranking.Popular)
}

func (h HandlerSet) RandomImages(c *gin.Context) {
	h.listImages(c, h.ranking.Random)
}

func (h HandlerSet) listImages(c *gin.Context, list func(ctx context.Context, limit int) ([]models.ImageInfo, error)) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			h.writeError(c, &service.ValidationError{Fields: map[string]string{"limit": "numeric"}})
			return
		}
		limit = v
	}

	items, err := list(c.Request.Context(), limit)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

func (h HandlerSet) SearchImages(c *gin.Context) {
	var req searchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badBody(c, err)
		return
	}

	items, err := h.ranking.Search(c.Request.Context(), req.Prompt)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

func (h HandlerSet) CreateImage(c *gin.Context) {
	var req service.CreateImageInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badBody(c, err)
		return
	}

	image, err := h.images.Create(c.Request.Context(), req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.Header("Location", "/api/image/"+image.ID)
	c.JSON(http.StatusCreated, newImageResponse(image))
}

func (h HandlerSet) GetImage(c *gin.Context) {
	image, err := h.images.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newImageResponse(image))
}

func (h HandlerSet) GetImageInfo(c *gin.Context) {
	info, err := h.images.Info(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

func (h HandlerSet) GetImageRaw(c *gin.Context) {
	data, contentType, err := h.images.Raw(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.Header("Cache-Control", "public, max-age="+strconv.Itoa(int((24*time.Hour).Seconds()))+", immutable")
	c.Header("X-Content-Type-Options", "nosniff")
	c.Header("Content-Security-Policy", "default-src 'none'; style-src 'unsafe-inline'; sandbox")
	c.Data(http.StatusOK, contentType, data)
}

// React toggles kind for the body's userId on the image in the path.
func (h HandlerSet) React(kind models.ReactionKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req reactionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badBody(c, err)
			return
		}

		image, err := h.reactions.Toggle(c.Request.Context(), c.Param("id"), req.UserID, kind)
		if err != nil {
			h.writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, image.Info())
	}
}
