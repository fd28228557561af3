package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"genimage/internal/models"
	"genimage/internal/service"
)

type userResponse struct {
	ID             string    `json:"id"`
	FullName       string    `json:"fullName"`
	ImageURL       string    `json:"imageUrl"`
	Username       string    `json:"username"`
	Images         []string  `json:"images"`
	LikedImages    []string  `json:"likedImages"`
	DislikedImages []string  `json:"dislikedImages"`
	CreatedAt      time.Time `json:"createdAt"`
}

func newUserResponse(user models.User) userResponse {
	images := user.Images
	if images == nil {
		images = []string{}
	}
	return userResponse{
		ID:             user.ID,
		FullName:       user.FullName,
		ImageURL:       user.ImageURL,
		Username:       user.Username,
		Images:         images,
		LikedImages:    user.LikedImages.Slice(),
		DislikedImages: user.DislikedImages.Slice(),
		CreatedAt:      user.CreatedAt,
	}
}

func (h HandlerSet) GetUser(c *gin.Context) {
	user, err := h.users.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newUserResponse(user))
}

func (h HandlerSet) CreateUser(c *gin.Context) {
	var req service.CreateUserInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badBody(c, err)
		return
	}

	user, err := h.users.Create(c.Request.Context(), req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newUserResponse(user))
}
