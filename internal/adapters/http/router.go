package http

import (
	"context"

	"github.com/dkeye/liveroom/internal/adapters/signal"
	"github.com/dkeye/liveroom/internal/adapters/surface"
	"github.com/dkeye/liveroom/internal/app/session"
	"github.com/dkeye/liveroom/internal/config"
	"github.com/dkeye/liveroom/internal/rooms"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// Session is what the UI can do with the running session.
type Session interface {
	Status() session.Status
	ToggleCamera(ctx context.Context) error
	Teardown(ctx context.Context)
}

type Deps struct {
	Session  Session
	Board    *surface.Board
	Rooms    *rooms.Hub
	Feed     *signal.Feed
	Gatherer prometheus.Gatherer
}

func genClientToken() string {
	return uuid.NewString()
}

func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := c.Cookie("ct")
		if token == "" {
			token = genClientToken()
			c.SetCookie("ct", token, 3600*24*7, "/", "", false, true)
		}
		c.Set("client_token", token)
		c.Next()
	}
}

func SetupRouter(ctx context.Context, cfg *config.Config, d Deps) *gin.Engine {
	switch cfg.Mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	r.Use(sessions.Sessions("LiveroomSessions", store))
	r.Use(ClientTokenMiddleware())

	h := &handlers{d: d}
	api := r.Group("/api")
	api.GET("/viewer", h.viewer)

	api.GET("/session", h.status)
	api.POST("/session/camera", h.toggleCamera)
	api.DELETE("/session", h.dismiss)

	api.POST("/surfaces/:side", h.mountSurface)
	api.DELETE("/surfaces/:side", h.unmountSurface)

	api.GET("/rooms", h.listRooms)
	api.GET("/rooms/:id", h.getRoom)

	if d.Feed != nil {
		api.GET("/ws/events", func(c *gin.Context) {
			log.Info().Str("module", "adapters.http").Str("viewer", c.GetString("client_token")).Msg("ws events endpoint hit")
			d.Feed.Handle(ctx, c)
		})
	}
	if d.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	}

	log.Info().Str("module", "adapters.http").Str("mode", cfg.Mode).Msg("router setup")
	return r
}
