package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/abduss/assetgate/internal/asset"
	"github.com/gin-gonic/gin"
)

const readinessTimeout = 5 * time.Second

func registerHealthRoutes(router *gin.Engine, deps Dependencies) {
	router.GET("/health/live", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.GET("/health/ready", func(c *gin.Context) {
		if deps.AssetService == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "component": "assets"})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), readinessTimeout)
		defer cancel()

		if err := deps.AssetService.Ping(ctx); err != nil {
			reason := "unreachable"
			if errors.Is(err, asset.ErrMissingCredential) {
				reason = "credential not configured"
			}
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":    "degraded",
				"component": deps.AssetService.Backend(),
				"error":     reason,
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{"status": "ok", "component": deps.AssetService.Backend()})
	})
}
