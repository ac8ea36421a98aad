package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/sujalbistaa/allgood/internal/cache"
	"github.com/sujalbistaa/allgood/internal/geo"
	"github.com/sujalbistaa/allgood/internal/models"
	"github.com/sujalbistaa/allgood/internal/service"
	"github.com/sujalbistaa/allgood/internal/ws"
)

// --- Structs for request binding ---
type CreatePostInput struct {
	Type        string     `json:"type" binding:"required"`
	Location    *geo.Point `json:"location" binding:"required"`
	Description string     `json:"description" binding:"required"`
	TimeZone    string     `json:"timeZone"`
}

type ProfileInput struct {
	Username     string `json:"username" binding:"required"`
	AvatarNumber int    `json:"avatarNumber"`
}

type AvatarInput struct {
	AvatarNumber int `json:"avatarNumber"`
}

// --- Responses ---
type SessionResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

type EligibilityResponse struct {
	CanPost bool `json:"canPost"`
}

// --- Handlers ---
type Env struct {
	Svc    *service.Service
	Tokens TokenParser
	Hub    *ws.Hub
	Users  *ws.UserFeed
	Cache  cache.Cache
	Log    *zap.Logger
}

func (e *Env) SignInAnonymously(c *gin.Context) {
	u, token, err := e.Svc.SignInAnonymously(c.Request.Context())
	if err != nil {
		e.writeError(c, "anonymous sign in", err)
		return
	}
	c.JSON(http.StatusCreated, SessionResponse{Token: token, User: u})
}

func (e *Env) GetMe(c *gin.Context) {
	u, err := e.Svc.CurrentUser(c.Request.Context(), currentUserID(c))
	if err != nil {
		e.writeError(c, "get current user", err)
		return
	}
	c.JSON(http.StatusOK, u)
}

func (e *Env) RecordOpen(c *gin.Context) {
	u, err := e.Svc.RecordOpen(c.Request.Context(), currentUserID(c), c.Query("tz"))
	if err != nil {
		e.writeError(c, "record app open", err)
		return
	}
	c.JSON(http.StatusOK, u)
}

func (e *Env) GetEligibility(c *gin.Context) {
	ok, err := e.Svc.Eligibility(c.Request.Context(), currentUserID(c), c.Query("tz"))
	if err != nil {
		e.writeError(c, "check eligibility", err)
		return
	}
	c.JSON(http.StatusOK, EligibilityResponse{CanPost: ok})
}

func (e *Env) SetupProfile(c *gin.Context) {
	var input ProfileInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input: " + err.Error()})
		return
	}
	u, err := e.Svc.SetupProfile(c.Request.Context(), currentUserID(c), input.Username, input.AvatarNumber)
	if err != nil {
		e.writeError(c, "set up profile", err)
		return
	}
	c.JSON(http.StatusOK, u)
}

func (e *Env) UpdateAvatar(c *gin.Context) {
	var input AvatarInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input: " + err.Error()})
		return
	}
	u, err := e.Svc.UpdateAvatar(c.Request.Context(), currentUserID(c), input.AvatarNumber)
	if err != nil {
		e.writeError(c, "update avatar", err)
		return
	}
	c.JSON(http.StatusOK, u)
}

// GetPosts serves the filtered feed. Rendered responses are cached
// briefly per filter combination and dropped whenever a post is created.
func (e *Env) GetPosts(c *gin.Context) {
	q := service.FeedQuery{
		Date:     c.Query("date"),
		Type:     c.Query("type"),
		TimeZone: c.Query("tz"),
	}
	key := strings.Join([]string{"feed", q.Date, q.Type, q.TimeZone}, "|")
	if body, ok := e.Cache.Get(key); ok {
		c.Data(http.StatusOK, "application/json; charset=utf-8", body)
		return
	}

	posts, err := e.Svc.Feed(c.Request.Context(), q)
	if err != nil {
		e.writeError(c, "list posts", err)
		return
	}
	body, err := json.Marshal(posts)
	if err != nil {
		e.writeError(c, "encode posts", err)
		return
	}
	e.Cache.Set(key, body)
	c.Data(http.StatusOK, "application/json; charset=utf-8", body)
}

func (e *Env) GetPost(c *gin.Context) {
	p, err := e.Svc.Post(c.Request.Context(), c.Param("id"))
	if err != nil {
		e.writeError(c, "get post", err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (e *Env) GetUserPosts(c *gin.Context) {
	posts, err := e.Svc.UserPosts(c.Request.Context(), c.Param("id"))
	if err != nil {
		e.writeError(c, "list user posts", err)
		return
	}
	c.JSON(http.StatusOK, posts)
}

func (e *Env) GetLocations(c *gin.Context) {
	locs, err := e.Svc.Locations(c.Request.Context())
	if err != nil {
		e.writeError(c, "list locations", err)
		return
	}
	c.JSON(http.StatusOK, locs)
}

func (e *Env) CreatePost(c *gin.Context) {
	var input CreatePostInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input: " + err.Error()})
		return
	}

	post, err := e.Svc.CreatePost(c.Request.Context(), service.NewPost{
		UserID:      currentUserID(c),
		Type:        input.Type,
		Location:    *input.Location,
		Description: input.Description,
		TimeZone:    input.TimeZone,
	})
	if err != nil {
		e.writeError(c, "create post", err)
		return
	}
	e.Cache.Clear()
	c.JSON(http.StatusCreated, post)
}

// --- WebSocket ---

func (e *Env) ServeWs(c *gin.Context) {
	ws.ServeWs(e.Hub, c.Writer, c.Request)
}

// ServeUserWs streams the caller's user record. Browsers cannot set
// headers on a websocket handshake, so the token may come in the query.
func (e *Env) ServeUserWs(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		token = bearerToken(c.GetHeader("Authorization"))
	}
	uid, err := e.Tokens.Parse(token)
	if err != nil {
		e.writeError(c, "user websocket", err)
		return
	}
	u, err := e.Svc.CurrentUser(c.Request.Context(), uid)
	if err != nil {
		e.writeError(c, "user websocket", err)
		return
	}
	ws.ServeUserWs(e.Users, *u, e.Log, c.Writer, c.Request)
}
