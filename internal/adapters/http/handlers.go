package http

import (
	"errors"
	"net/http"

	"github.com/dkeye/liveroom/internal/adapters/surface"
	"github.com/dkeye/liveroom/internal/app/session"
	"github.com/dkeye/liveroom/internal/domain"
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

type handlers struct {
	d Deps
}

type MountResponse struct {
	Side   string               `json:"side"`
	Handle domain.SurfaceHandle `json:"handle"`
}

type RoomResponse struct {
	ID      domain.RoomID   `json:"id"`
	Members []domain.User   `json:"members"`
	Streams []domain.Stream `json:"streams"`
}

// viewer reports the caller's token and how many times this browser asked.
func (h *handlers) viewer(c *gin.Context) {
	s := sessions.Default(c)
	visits, _ := s.Get("visits").(int)
	visits++
	s.Set("visits", visits)
	if err := s.Save(); err != nil {
		log.Warn().Err(err).Str("module", "adapters.http").Msg("save viewer session")
	}
	c.JSON(http.StatusOK, gin.H{"token": c.GetString("client_token"), "visits": visits})
}

func (h *handlers) status(c *gin.Context) {
	c.JSON(http.StatusOK, h.d.Session.Status())
}

func (h *handlers) toggleCamera(c *gin.Context) {
	err := h.d.Session.ToggleCamera(c.Request.Context())
	switch {
	case errors.Is(err, session.ErrEngineNotReady):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusOK, h.d.Session.Status())
	}
}

// dismiss is the screen going away: the session is torn down.
func (h *handlers) dismiss(c *gin.Context) {
	h.d.Session.Teardown(c.Request.Context())
	log.Info().Str("module", "adapters.http").Str("viewer", c.GetString("client_token")).Msg("session dismissed")
	c.JSON(http.StatusOK, h.d.Session.Status())
}

func (h *handlers) mountSurface(c *gin.Context) {
	side := c.Param("side")
	handle, err := h.d.Board.Mount(side, nil)
	if err != nil {
		c.JSON(surfaceErrStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, MountResponse{Side: side, Handle: handle})
}

func (h *handlers) unmountSurface(c *gin.Context) {
	if err := h.d.Board.Unmount(c.Param("side")); err != nil {
		c.JSON(surfaceErrStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

func surfaceErrStatus(err error) int {
	switch {
	case errors.Is(err, surface.ErrUnknownSide):
		return http.StatusNotFound
	case errors.Is(err, surface.ErrAlreadyMounted), errors.Is(err, surface.ErrNotMounted):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (h *handlers) listRooms(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"rooms": h.d.Rooms.List()})
}

func (h *handlers) getRoom(c *gin.Context) {
	room, ok := h.d.Rooms.Get(domain.RoomID(c.Param("id")))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
		return
	}
	c.JSON(http.StatusOK, RoomResponse{
		ID:      room.ID(),
		Members: room.MembersSnapshot(),
		Streams: room.StreamsSnapshot(),
	})
}
