package handlers

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"genimage/internal/config"
	"genimage/internal/models"
	"genimage/internal/service"
)

// Check reports the health of one backing dependency.
type Check func(ctx context.Context) error

type Services struct {
	Images    *service.ImageService
	Ranking   *service.RankingService
	Reactions *service.ReactionService
	Users     *service.UserService
}

type HandlerSet struct {
	log       zerolog.Logger
	cfg       *config.AppConfig
	images    *service.ImageService
	ranking   *service.RankingService
	reactions *service.ReactionService
	users     *service.UserService
	checks    map[string]Check
	gatherer  prometheus.Gatherer
}

func NewHandlerSet(log zerolog.Logger, cfg *config.AppConfig, svc Services, checks map[string]Check, gatherer prometheus.Gatherer) HandlerSet {
	return HandlerSet{
		log:       log,
		cfg:       cfg,
		images:    svc.Images,
		ranking:   svc.Ranking,
		reactions: svc.Reactions,
		users:     svc.Users,
		checks:    checks,
		gatherer:  gatherer,
	}
}

func (h HandlerSet) Register(router *gin.RouterGroup) {
	router.GET("/healthz", h.Health)
	if h.gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{})))
	}

	image := router.Group("/image")
	{
		image.GET("/recent", h.RecentImages)
		image.GET("/popular", h.PopularImages)
		image.GET("/random", h.RandomImages)
		image.POST("/search", h.SearchImages)

		image.POST("", h.CreateImage)
		image.GET("/:id", h.GetImage)
		image.GET("/:id/info", h.GetImageInfo)
		image.GET("/:id/image", h.GetImageRaw)
		image.PATCH("/:id/like", h.React(models.ReactionLike))
		image.PATCH("/:id/dislike", h.React(models.ReactionDislike))
	}

	user := router.Group("/user")
	{
		user.POST("", h.CreateUser)
		user.GET("/:id", h.GetUser)
	}
}
