package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"label-platform/internal/middleware"
	"label-platform/internal/models"
	"label-platform/internal/store"
)

type UserStore interface {
	Create(ctx context.Context, email, passwordHash, name, role string) (models.User, error)
	GetByEmail(ctx context.Context, email string) (models.User, error)
	GetByID(ctx context.Context, id int64) (models.User, error)
}

// AuthHandler registers and logs in users.
type AuthHandler struct {
	Users     UserStore
	JwtSecret string
	Logger    *zap.Logger
}

func NewAuthHandler(users UserStore, jwtSecret string, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{Users: users, JwtSecret: jwtSecret, Logger: logger}
}

// RegisterRequest defines the JSON struct we expect from the client
type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8,max=72"`
	Name     string `json:"name" binding:"required,max=200"`
}

// Register creates a customer account. Admins are made with the CLI.
func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest

	// 1. Validate the incoming JSON
	if !bindJSON(c, &req) {
		return
	}

	// 2. Hash the password
	passwordHash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		h.Logger.Error("Password hashing error", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error, please try again."})
		return
	}

	// 3. Insert the user; a taken email is a unique violation
	user, err := h.Users.Create(c.Request.Context(), req.Email, string(passwordHash), strings.TrimSpace(req.Name), models.RoleCustomer)
	if errors.Is(err, store.ErrConflict) {
		c.JSON(http.StatusConflict, gin.H{"error": "Email is already in use."})
		return
	}
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "User created successfully.",
		"user":    user,
	})
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// Authenticate checks the credentials and returns the user and a signed
// token. Unknown email and wrong password are the same ErrNotFound.
func (h *AuthHandler) Authenticate(ctx context.Context, email, password string) (models.User, string, error) {
	user, err := h.Users.GetByEmail(ctx, email)
	if err != nil {
		return models.User{}, "", err
	}

	// Compare stored passwordHash with the user entered password
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return models.User{}, "", store.ErrNotFound
	}

	token, err := middleware.IssueToken(h.JwtSecret, user, time.Now())
	if err != nil {
		return models.User{}, "", err
	}
	return user, token, nil
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if !bindJSON(c, &req) {
		return
	}

	user, token, err := h.Authenticate(c.Request.Context(), req.Email, req.Password)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password."})
		return
	}
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Login successful.", "token": token, "user": user})
}

// Me returns the caller's profile.
func (h *AuthHandler) Me(c *gin.Context) {
	identity, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	user, err := h.Users.GetByID(c.Request.Context(), identity.UserID)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, user)
}
