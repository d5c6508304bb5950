package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"user-api/internal/usecase/user"
	pkgerrors "user-api/pkg/errors"
	"user-api/pkg/logger"
)

// UserHandler handles HTTP requests for user operations
type UserHandler struct {
	uc  user.UserUsecase
	log *zap.Logger
}

// NewUserHandler creates a new UserHandler instance
func NewUserHandler(uc user.UserUsecase, log *zap.Logger) *UserHandler {
	return &UserHandler{
		uc:  uc,
		log: log,
	}
}

// UserResponse is the wire representation of a user
type UserResponse struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	DNI  string `json:"dni"`
}

// ErrorResponse represents a non-field error response
type ErrorResponse struct {
	Detail string `json:"detail"`
}

// Error details shared with the router and middleware
const (
	DetailNotFound    = "Not found."
	DetailServerError = "A server error occurred."
)

// CreateUser handles POST /users/
func (h *UserHandler) CreateUser(c *gin.Context) {
	log := logger.WithContext(c.Request.Context(), h.log)

	body, err := c.GetRawData()
	if err != nil {
		log.Warn("Failed to read create user request", zap.Error(err))
		c.JSON(http.StatusBadRequest, ErrorResponse{Detail: "JSON parse error - " + err.Error()})
		return
	}

	req, err := decodeCreateUserRequest(body)
	if err != nil {
		log.Warn("Invalid create user request", zap.Error(err))
		h.handleError(c, err)
		return
	}

	resp, err := h.uc.CreateUser(c.Request.Context(), user.CreateUserRequest{
		Name: req.Name,
		DNI:  req.DNI,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, UserResponse{
		ID:   resp.ID,
		Name: resp.Name,
		DNI:  resp.DNI,
	})
}

// GetUser handles GET /users/:id/
func (h *UserHandler) GetUser(c *gin.Context) {
	idStr := c.Param("id")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		// A non-numeric id cannot name any user.
		logger.WithContext(c.Request.Context(), h.log).Debug("Invalid user ID", zap.String("id", idStr))
		c.JSON(http.StatusNotFound, ErrorResponse{Detail: DetailNotFound})
		return
	}

	resp, err := h.uc.GetUser(c.Request.Context(), user.GetUserRequest{ID: id})
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, UserResponse{
		ID:   resp.ID,
		Name: resp.Name,
		DNI:  resp.DNI,
	})
}

// ListUsers handles GET /users/
func (h *UserHandler) ListUsers(c *gin.Context) {
	resp, err := h.uc.ListUsers(c.Request.Context())
	if err != nil {
		h.handleError(c, err)
		return
	}

	users := make([]UserResponse, len(resp.Users))
	for i, u := range resp.Users {
		users[i] = UserResponse{
			ID:   u.ID,
			Name: u.Name,
			DNI:  u.DNI,
		}
	}

	c.JSON(http.StatusOK, users)
}

// handleError converts usecase errors to appropriate HTTP responses
func (h *UserHandler) handleError(c *gin.Context, err error) {
	log := logger.WithContext(c.Request.Context(), h.log)

	var bodyErr *BodyError
	if errors.As(err, &bodyErr) {
		c.JSON(http.StatusBadRequest, ErrorResponse{Detail: bodyErr.Detail})
		return
	}

	var validationErr *pkgerrors.ValidationError
	if errors.As(err, &validationErr) {
		c.JSON(validationErr.HTTPStatus(), validationErr.Fields)
		return
	}

	var conflictErr *pkgerrors.AlreadyExistsError
	if errors.As(err, &conflictErr) {
		c.JSON(conflictErr.HTTPStatus(), ErrorResponse{Detail: conflictErr.Error()})
		return
	}

	var notFoundErr *pkgerrors.NotFoundError
	if errors.As(err, &notFoundErr) {
		c.JSON(notFoundErr.HTTPStatus(), ErrorResponse{Detail: DetailNotFound})
		return
	}

	log.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
	c.JSON(http.StatusInternalServerError, ErrorResponse{Detail: DetailServerError})
}
