// Package httpapi is the local control plane of the client daemon: the
// same controls the original call UI invokes, exposed as a small JSON API.
package httpapi

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/factime/factime-go/internal/app"
	"github.com/factime/factime-go/internal/config"
	"github.com/factime/factime-go/internal/core"
	"github.com/factime/factime-go/internal/domain"
)

// ClientTokenMiddleware tags the calling UI with a stable token cookie so
// log lines can be correlated across page reloads.
func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := c.Cookie("ct")
		if token == "" {
			token = uuid.NewString()
			c.SetCookie("ct", token, 3600*24*7, "/", "", false, true)
		}
		c.Set("client_token", token)
		c.Next()
	}
}

func SetupRouter(cfg *config.Config, sess *app.Session) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())
	r.Use(ClientTokenMiddleware())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	api := r.Group("/api")

	// GET /api/session — current phase, last error, toggle flags, remote stats.
	api.GET("/session", func(c *gin.Context) {
		c.JSON(http.StatusOK, sessionView(sess))
	})

	// POST /api/session/connect — begin (or supersede) a negotiation cycle.
	api.POST("/session/connect", func(c *gin.Context) {
		var params domain.SessionParams
		if err := c.BindJSON(&params); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid params"})
			return
		}
		if err := params.Validate(); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		log.Info().Str("module", "httpapi").Str("user_id", params.UserID).Str("ct", c.GetString("client_token")).Msg("connect requested")
		// Media acquisition may wait on the platform; don't hold the request.
		go func() {
			if err := sess.Connect(context.Background(), params); err != nil {
				log.Warn().Err(err).Str("module", "httpapi").Msg("connect attempt ended with error")
			}
		}()
		c.JSON(http.StatusAccepted, gin.H{"state": string(domain.StateRequestingMedia)})
	})

	// POST /api/session/disconnect — idempotent teardown.
	api.POST("/session/disconnect", func(c *gin.Context) {
		sess.Disconnect()
		c.Status(http.StatusNoContent)
	})

	// POST /api/session/transcript — send a manual line (optional audio).
	api.POST("/session/transcript", func(c *gin.Context) {
		var req struct {
			Text  string `json:"text"`
			Audio string `json:"audio,omitempty"`
		}
		if err := c.BindJSON(&req); err != nil || req.Text == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid text"})
			return
		}
		if err := sess.SendTranscriptWithAudio(req.Text, req.Audio); err != nil {
			if errors.Is(err, app.ErrNotConnected) {
				c.JSON(http.StatusConflict, gin.H{"error": "session not connected"})
				return
			}
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			return
		}
		c.Status(http.StatusAccepted)
	})

	// POST /api/session/mute {"muted": bool}
	api.POST("/session/mute", func(c *gin.Context) {
		var req struct {
			Muted bool `json:"muted"`
		}
		if err := c.BindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
			return
		}
		sess.SetMuted(req.Muted)
		c.JSON(http.StatusOK, gin.H{"muted": sess.Muted()})
	})

	// POST /api/session/camera {"off": bool}
	api.POST("/session/camera", func(c *gin.Context) {
		var req struct {
			Off bool `json:"off"`
		}
		if err := c.BindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
			return
		}
		sess.SetCameraOff(req.Off)
		c.JSON(http.StatusOK, gin.H{"cameraOff": sess.CameraOff()})
	})

	// GET /api/session/transcripts — ordered conversation log.
	api.GET("/session/transcripts", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"transcripts": sess.Transcripts()})
	})

	return r
}

func sessionView(sess *app.Session) gin.H {
	remote := []core.RemoteTrackStats{}
	if rm := sess.Remote(); rm != nil {
		remote = rm.Tracks()
	}
	return gin.H{
		"state":        string(sess.State()),
		"lastError":    sess.LastError(),
		"muted":        sess.Muted(),
		"cameraOff":    sess.CameraOff(),
		"remoteTracks": remote,
	}
}
