package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/demesis221/PawRescue/internal/api/respond"
	"github.com/demesis221/PawRescue/internal/model"
	"github.com/demesis221/PawRescue/internal/pkg/jwt"
	"github.com/demesis221/PawRescue/internal/service"
)

// Handler exposes the signup/login/identity endpoints.
type Handler struct {
	auth *service.AuthService
}

func NewHandler(auth *service.AuthService) *Handler {
	return &Handler{auth: auth}
}

// Register handles user registration
func (h *Handler) Register(c *gin.Context) {
	var req model.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, "Invalid registration request", &model.ValidationError{Msg: err.Error()})
		return
	}

	tokenResp, err := h.auth.Register(c.Request.Context(), req)
	if err != nil {
		respond.Error(c, "Failed to register", err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"success": true, "data": tokenResp})
}

// Login handles user login
func (h *Handler) Login(c *gin.Context) {
	var req model.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, "Invalid login request", &model.ValidationError{Msg: err.Error()})
		return
	}

	tokenResp, err := h.auth.Login(c.Request.Context(), req)
	if err != nil {
		respond.Error(c, "Failed to log in", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": tokenResp})
}

// Me returns the authenticated user's profile
func (h *Handler) Me(c *gin.Context) {
	userID, ok := CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Not authenticated"})
		return
	}

	profile, err := h.auth.GetProfile(c.Request.Context(), userID)
	if err != nil {
		respond.Error(c, "Failed to fetch profile", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": profile})
}

// AuthRequired validates the bearer token and stores the caller's identity in
// the request context.
func AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Authorization header missing"})
			c.Abort()
			return
		}

		token, err := jwt.ExtractTokenFromHeader(authHeader)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Invalid authorization header format"})
			c.Abort()
			return
		}

		claims, err := jwt.ValidateToken(token)
		if err != nil {
			if err == jwt.ErrExpiredToken {
				c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Token has expired"})
			} else {
				c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Invalid token"})
			}
			c.Abort()
			return
		}

		setIdentity(c, claims)
		c.Next()
	}
}

// AuthOptional stores the caller's identity when a valid bearer token is
// present and lets the request through either way. Report submission accepts
// anonymous callers.
func AuthOptional() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.Next()
			return
		}
		token, err := jwt.ExtractTokenFromHeader(authHeader)
		if err != nil {
			c.Next()
			return
		}
		claims, err := jwt.ValidateToken(token)
		if err != nil {
			c.Next()
			return
		}
		setIdentity(c, claims)
		c.Next()
	}
}

func setIdentity(c *gin.Context, claims *jwt.Claims) {
	c.Set("user_id", claims.UserID)
	c.Set("username", claims.Username)
	c.Set("role", claims.Role)
}

// CurrentUserID returns the authenticated caller's id, if any.
func CurrentUserID(c *gin.Context) (uuid.UUID, bool) {
	v, exists := c.Get("user_id")
	if !exists {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok
}
