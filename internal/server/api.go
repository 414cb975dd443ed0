// Gin routes, split into two groups:
//   - Control-plane (default 7171): JWT-protected; operator browsing API.
//   - Data-plane    (default 7272): Bearer-token-protected; receives session
//     reports pushed by `armsentry monitor --push`.
package server

import (
	"net/http"
	"time"

	"github.com/ardelt/armsentry/internal/monitor"
	"github.com/gin-gonic/gin"
)

// RegisterControlRoutes wires up the control-plane API on the given engine.
//
//	Public:   POST /api/login, GET /api/health
//	Protected (JWT): session browsing + deletion
func RegisterControlRoutes(r *gin.Engine) {
	api := r.Group("/api")

	// ── Public endpoints ──────────────────────────────────────────────────────
	api.POST("/login", handleLogin)

	api.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "time": time.Now().UTC()})
	})

	// ── JWT-protected endpoints ───────────────────────────────────────────────
	auth := api.Group("/", JWTMiddleware())
	{
		auth.GET("/sessions", handleSessionList)
		auth.GET("/sessions/:id", handleSessionGet)
		auth.GET("/sessions/:id/collisions", handleSessionCollisions)
		auth.DELETE("/sessions/:id", handleSessionDelete)
	}
}

// RegisterDataRoutes wires up the data-plane API on the given engine.
// All routes require a valid bearer collector token.
func RegisterDataRoutes(r *gin.Engine) {
	api := r.Group("/api", CollectorTokenMiddleware())
	{
		api.POST("/reports", handleReportIngest)
	}

	// Data-plane health (no auth — used by load-balancers / probes)
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}

// ── Handlers ──────────────────────────────────────────────────────────────────

// handleLogin accepts username + password and returns a signed JWT.
//
//	POST /api/login
//	Body: { "username": "admin", "password": "..." }
func handleLogin(c *gin.Context) {
	var body struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username and password required"})
		return
	}

	if !checkAdminCredentials(body.Username, body.Password) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	token, err := GenerateJWT(body.Username)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":      token,
		"expires_in": 86400, // seconds
		"type":       "Bearer",
	})
}

// handleSessionList returns all stored sessions, most recent first.
func handleSessionList(c *gin.Context) {
	sessions, err := ListSessions()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": sessions})
}

// handleSessionGet returns one session's summary row by UUID.
func handleSessionGet(c *gin.Context) {
	s, err := GetSession(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": s})
}

// handleSessionCollisions returns a session's collisions in detection order.
func handleSessionCollisions(c *gin.Context) {
	collisions, err := GetCollisions(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": collisions})
}

// handleSessionDelete removes a session and its collisions by UUID.
func handleSessionDelete(c *gin.Context) {
	id := c.Param("id")
	if err := DeleteSession(id); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": id})
}

// handleReportIngest accepts a pushed session report (data-plane only).
func handleReportIngest(c *gin.Context) {
	var rep monitor.Report
	if err := c.ShouldBindJSON(&rep); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	row, err := SaveReport(&rep)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": row.SessionID, "collisions": row.CollisionCount})
}
