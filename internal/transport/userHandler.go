package transport

import (
	"net/http"

	"github.com/eventpro/booking-api/internal/entity"
	"github.com/eventpro/booking-api/internal/service"
	"github.com/eventpro/booking-api/internal/transport/middleware"

	"github.com/gin-gonic/gin"
)

type UserHandler struct {
	userService service.UserService
}

func NewUserHandler(userService service.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

// GetMe возвращает профиль текущего пользователя
func (h *UserHandler) GetMe(c *gin.Context) {
	user, err := h.userService.GetUser(c.Request.Context(), middleware.CurrentUser(c).ID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, user)
}

// GetAllUsers возвращает всех пользователей (admin)
func (h *UserHandler) GetAllUsers(c *gin.Context) {
	users, err := h.userService.GetAllUsers(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Success: true,
		Message: "Users retrieved successfully",
		Data:    users,
		Meta:    map[string]interface{}{"total": len(users)},
	})
}

type updateRoleRequest struct {
	Role entity.UserRole `json:"role" binding:"required"`
}

// UpdateRole меняет роль пользователя (admin)
func (h *UserHandler) UpdateRole(c *gin.Context) {
	userID := c.Param("id")
	if userID == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Success: false, Error: "invalid user id"})
		return
	}

	var req updateRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Success: false, Error: err.Error()})
		return
	}

	if err := h.userService.UpdateRole(c.Request.Context(), userID, req.Role); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Success: true,
		Message: "User role updated successfully",
		Meta:    map[string]interface{}{"user_id": userID, "role": req.Role},
	})
}
