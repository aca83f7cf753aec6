// Package server implements the HTTP/WebSocket transport described in
// spec §6: the event-stream upgrade with sync/loop_list on connect, the
// audience ingress, and a REST surface for debates/agents/leaderboard.
// Grounded on internal/server/server.go's gin.Engine setup, CORS
// middleware, and websocket.Upgrader usage, generalized from the
// teacher's single always-on agent conversation to many concurrently
// running Arena debates managed by DebateManager.
package server

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/aragora-project/aragora-go/internal/arena"
	"github.com/aragora-project/aragora-go/internal/auth"
	"github.com/aragora-project/aragora-go/internal/logging"
	"github.com/aragora-project/aragora-go/internal/rating"
	"github.com/aragora-project/aragora-go/internal/streamfabric"
)

// Server is the HTTP/WS transport collaborator tying DebateManager to
// gin's router.
type Server struct {
	router  *gin.Engine
	config  *Config
	auth    *auth.Auth
	manager *DebateManager
	ledger  *rating.Ledger

	upgrader websocket.Upgrader

	rateMu    sync.Mutex
	rateState map[string]*rateWindow
}

type rateWindow struct {
	remaining int
	resetAt   time.Time
}

// DefaultRateLimit is the number of requests allowed per client per
// window before spec §6's `429`/`Retry-After` response kicks in.
const DefaultRateLimit = 120

// RateLimitWindow is the sliding window spec §6's rate-limit headers
// are computed against.
const RateLimitWindow = time.Minute

// NewServer wires the gin engine, middleware, and routes around manager.
func NewServer(manager *DebateManager, ledger *rating.Ledger, authn *auth.Auth, config *Config) *Server {
	if config == nil {
		config = DefaultConfig()
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestIDMiddleware())
	router.Use(LoggingMiddleware())
	router.Use(RecoveryMiddleware())
	router.Use(ErrorHandler())

	srv := &Server{
		router:  router,
		config:  config,
		auth:    authn,
		manager: manager,
		ledger:  ledger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return isAllowedOrigin(r.Header.Get("Origin"), config.AllowedOrigins) },
		},
		rateState: make(map[string]*rateWindow),
	}

	router.Use(srv.corsMiddleware())
	router.Use(srv.rateLimitMiddleware())

	router.GET("/ws/events", srv.handleEventStream)

	api := router.Group("/api")
	api.Use(authn.OptionalAuthMiddleware())
	{
		api.GET("/agents", srv.listAgents)
		api.GET("/debates", srv.listDebates)
		api.GET("/debates/:id", srv.getDebate)
		api.GET("/debates/:id/export", srv.exportDebate)
		api.GET("/leaderboard", srv.getLeaderboard)
		api.GET("/agents/:name/matches", srv.getMatchHistory)

		write := api.Group("")
		write.Use(authn.AuthMiddleware())
		write.POST("/debates", srv.startDebate)
	}

	log.Printf("server initialized with %d agents", len(manager.AgentNames()))
	return srv
}

// isAllowedOrigin reports whether origin is in allowed, mirroring the
// teacher's CORS headers but keyed off spec §6's configured allowlist
// ("CORS origins are a single source of truth across HTTP and WS")
// instead of the teacher's wildcard "*".
func isAllowedOrigin(origin string, allowed []string) bool {
	if origin == "" {
		return true
	}
	if len(allowed) == 0 {
		return true
	}
	for _, a := range allowed {
		if a == "*" || a == origin {
			return true
		}
	}
	return false
}

func (s *Server) corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if isAllowedOrigin(origin, s.config.AllowedOrigins) && origin != "" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		}
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-API-Key, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// rateLimitMiddleware enforces a fixed per-client request budget and
// emits spec §6's rate-limit headers.
func (s *Server) rateLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.ClientIP()
		now := time.Now()

		s.rateMu.Lock()
		w, ok := s.rateState[key]
		if !ok || now.After(w.resetAt) {
			w = &rateWindow{remaining: DefaultRateLimit, resetAt: now.Add(RateLimitWindow)}
			s.rateState[key] = w
		}
		allowed := w.remaining > 0
		if allowed {
			w.remaining--
		}
		remaining := w.remaining
		resetAt := w.resetAt
		s.rateMu.Unlock()

		c.Header("X-RateLimit-Limit", strconv.Itoa(DefaultRateLimit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(resetAt.Unix(), 10))

		if !allowed {
			c.Header("Retry-After", strconv.Itoa(int(time.Until(resetAt).Seconds())))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}

// Run starts the HTTP server on addr.
func (s *Server) Run(addr string) error {
	log.Printf("starting HTTP server on %s", addr)
	return s.router.Run(addr)
}

func (s *Server) listAgents(c *gin.Context) {
	names := s.manager.AgentNames()
	c.JSON(http.StatusOK, gin.H{"agents": names})
}

func (s *Server) startDebate(c *gin.Context) {
	var req struct {
		Task      string   `json:"task" binding:"required"`
		Proposers []string `json:"proposers" binding:"required,min=1"`
		Critics   []string `json:"critics"`
		Judge     string   `json:"judge"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}

	debateID, err := s.manager.StartDebate(StartDebateRequest{
		Task:      req.Task,
		Proposers: req.Proposers,
		Critics:   req.Critics,
		Judge:     req.Judge,
		Protocol:  arena.DefaultProtocol(),
	})
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"debate_id": debateID})
}

func (s *Server) listDebates(c *gin.Context) {
	loops := s.manager.Registry().List()
	params := GetPaginationParams(c)
	SendPaginatedResponse(c, params, loops)
}

func (s *Server) getDebate(c *gin.Context) {
	id := c.Param("id")
	state, ok := s.manager.Cache().Get(id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "debate not found"})
		return
	}
	c.JSON(http.StatusOK, state)
}

// exportDebate serves a completed debate's archived artifact as JSON.
// The csv and html formats are recognised (spec §6: "format ∈ {json,
// csv, html}") but answer 501; no csv or html rendering exists.
func (s *Server) exportDebate(c *gin.Context) {
	format := c.DefaultQuery("format", "json")
	switch format {
	case "json", "csv", "html":
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported export format"})
		return
	}

	if format != "json" {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "only json export is currently supported"})
		return
	}

	if s.manager.archive == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "debate not found"})
		return
	}
	rec, err := s.manager.archive.Get(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "debate not found"})
		return
	}
	c.Data(http.StatusOK, "application/json", rec.Artifact)
}

func (s *Server) getLeaderboard(c *gin.Context) {
	params := GetPaginationParams(c)
	board, err := s.ledger.GetLeaderboard(params.PageSize)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"leaderboard": board})
}

func (s *Server) getMatchHistory(c *gin.Context) {
	params := GetPaginationParams(c)
	history, err := s.ledger.GetMatchHistory(c.Param("name"), params.PageSize)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"matches": history})
}

// downstreamMessage is the client→server WS envelope (spec §6
// "{type ∈ {get_loops, user_vote, user_suggestion}, loop_id, payload}").
type downstreamMessage struct {
	Type    string          `json:"type"`
	LoopID  string          `json:"loop_id"`
	Payload json.RawMessage `json:"payload"`
}

func (s *Server) handleEventStream(c *gin.Context) {
	ws, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logging.Error("websocket upgrade failed", map[string]interface{}{"error": err.Error()})
		return
	}
	defer ws.Close()

	s.manager.RegisterClient(ws)
	defer s.manager.UnregisterClient(ws)

	clientID, err := auth.GenerateRandomKey(16)
	if err != nil {
		logging.Error("client id generation failed", map[string]interface{}{"error": err.Error()})
		return
	}

	ws.SetReadLimit(s.config.WSMaxMessageSize)

	// Send the loop_list and per-active-debate sync frames on connect
	// (spec §6: "On connect, the server sends loop_list and
	// per-active-debate sync frames").
	_ = ws.WriteJSON(streamfabric.StreamEvent{
		Kind:      streamfabric.EventLoopList,
		Data:      s.manager.Registry().List(),
		Timestamp: time.Now(),
	})
	for _, state := range s.manager.Cache().All() {
		_ = ws.WriteJSON(streamfabric.StreamEvent{
			Kind:      streamfabric.EventSync,
			Data:      state,
			Timestamp: time.Now(),
			LoopID:    state.LoopID,
		})
	}

	for {
		var msg downstreamMessage
		if err := ws.ReadJSON(&msg); err != nil {
			return
		}
		s.handleDownstream(ws, clientID, msg)
	}
}

func (s *Server) handleDownstream(ws *websocket.Conn, clientID string, msg downstreamMessage) {
	switch msg.Type {
	case "get_loops":
		_ = ws.WriteJSON(streamfabric.StreamEvent{
			Kind:      streamfabric.EventLoopList,
			Data:      s.manager.Registry().List(),
			Timestamp: time.Now(),
		})
	case "user_vote":
		var payload struct {
			Choice    string `json:"choice"`
			Intensity int    `json:"intensity"`
		}
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			_ = ws.WriteJSON(gin.H{"type": "error", "reason": "invalid payload"})
			return
		}
		s.ingestAudience(ws, clientID, msg.LoopID, streamfabric.AudienceMessage{
			Kind:    streamfabric.AudienceVote,
			LoopID:  msg.LoopID,
			Payload: streamfabric.VotePayload{Choice: payload.Choice, Intensity: payload.Intensity},
		})
	case "user_suggestion":
		var payload struct {
			Text string `json:"text"`
		}
		if err := json.Unmarshal(msg.Payload, &payload); err != nil || len(payload.Text) > 10*1024 {
			_ = ws.WriteJSON(gin.H{"type": "error", "reason": "invalid payload"})
			return
		}
		s.ingestAudience(ws, clientID, msg.LoopID, streamfabric.AudienceMessage{
			Kind:    streamfabric.AudienceSuggestion,
			LoopID:  msg.LoopID,
			Payload: streamfabric.SuggestionPayload{Text: payload.Text},
		})
	default:
		_ = ws.WriteJSON(gin.H{"type": "error", "reason": "unknown message type"})
	}
}

// ingestAudience applies spec §4.7's rate limiting before enqueuing an
// audience message, returning `ack` or `error` to the sender.
func (s *Server) ingestAudience(ws *websocket.Conn, clientID, loopID string, msg streamfabric.AudienceMessage) {
	if !s.manager.Inbox().Allow(clientID) {
		_ = ws.WriteJSON(gin.H{"type": "error", "reason": "rate limited", "loop_id": loopID})
		return
	}
	msg.ClientID = clientID
	msg.Timestamp = time.Now()
	s.manager.Inbox().Put(msg)
	_ = ws.WriteJSON(gin.H{"type": "ack", "loop_id": loopID})
}
