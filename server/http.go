package server

import (
	"errors"
	"io"
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"
	"github.com/go-chi/cors"
	"github.com/wfunc/picword/router"
)

// withCORS wraps the engine so preflight requests are answered before gin
// routing.
func withCORS(h http.Handler, allowedOrigins []string) http.Handler {
	if len(allowedOrigins) == 0 || slices.Contains(allowedOrigins, "*") {
		allowedOrigins = []string{"*"}
	}
	return cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	})(h)
}

func (s *GameServer) newEngine() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", func(c *gin.Context) { c.String(http.StatusOK, "healthy") })
	r.GET("/ws", s.handleWebSocket)

	rooms := r.Group("/rooms")
	rooms.POST("", s.createRoom)
	rooms.GET("/:id", s.getStatus)
	rooms.POST("/:id/join", s.joinRoom)
	rooms.POST("/:id/start", s.startGame)
	rooms.POST("/:id/answers", s.submitAnswer)
	rooms.POST("/:id/advance", s.advanceRound)
	rooms.POST("/:id/leave", s.leaveRoom)
	return r
}

// bind decodes an optional JSON body. An empty body leaves req untouched.
func bind(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil && !errors.Is(err, io.EOF) {
		writeError(c, router.BadRequest("invalid request body: %v", err))
		return false
	}
	return true
}

func writeError(c *gin.Context, err error) {
	e := router.Classify(err)
	c.AbortWithStatusJSON(e.Status, gin.H{"error": e})
}

func reply(c *gin.Context, status int, body interface{}, err error) {
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(status, body)
}

func (s *GameServer) createRoom(c *gin.Context) {
	var req router.CreateRoomRequest
	if !bind(c, &req) {
		return
	}
	resp, err := s.router.CreateRoom(c.Request.Context(), req)
	reply(c, http.StatusCreated, resp, err)
}

func (s *GameServer) joinRoom(c *gin.Context) {
	var req router.JoinRoomRequest
	if !bind(c, &req) {
		return
	}
	req.RoomID = c.Param("id")
	resp, err := s.router.JoinRoom(c.Request.Context(), req)
	reply(c, http.StatusOK, resp, err)
}

func (s *GameServer) startGame(c *gin.Context) {
	var req router.StartGameRequest
	if !bind(c, &req) {
		return
	}
	req.RoomID = c.Param("id")
	resp, err := s.router.StartGame(c.Request.Context(), req)
	reply(c, http.StatusOK, resp, err)
}

func (s *GameServer) submitAnswer(c *gin.Context) {
	var req router.SubmitAnswerRequest
	if !bind(c, &req) {
		return
	}
	req.RoomID = c.Param("id")
	resp, err := s.router.SubmitAnswer(c.Request.Context(), req)
	reply(c, http.StatusOK, resp, err)
}

func (s *GameServer) advanceRound(c *gin.Context) {
	req := router.AdvanceRoundRequest{RoomID: c.Param("id")}
	resp, err := s.router.AdvanceRound(c.Request.Context(), req)
	reply(c, http.StatusOK, resp, err)
}

func (s *GameServer) getStatus(c *gin.Context) {
	req := router.StatusRequest{RoomID: c.Param("id")}
	resp, err := s.router.GetStatus(c.Request.Context(), req)
	reply(c, http.StatusOK, resp, err)
}

func (s *GameServer) leaveRoom(c *gin.Context) {
	var req router.LeaveRoomRequest
	if !bind(c, &req) {
		return
	}
	req.RoomID = c.Param("id")
	resp, err := s.router.LeaveRoom(c.Request.Context(), req)
	reply(c, http.StatusOK, resp, err)
}
