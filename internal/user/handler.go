package user

import (
	"errors"

	"membership_backend/internal/common"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Handler holds dependencies for user handlers.
type Handler struct {
	service *ServiceImplementation
	logger  *zap.Logger
}

// NewHandler creates a new user handler.
func NewHandler(service *ServiceImplementation, logger *zap.Logger) *Handler {
	return &Handler{service: service, logger: logger.Named("UserHandler")}
}

// RegisterRoutes sets up user routes. Profile routes require authentication;
// management routes additionally require the admin role.
func (h *Handler) RegisterRoutes(router *gin.RouterGroup, authMW, adminRoleMW gin.HandlerFunc) {
	router.GET("/users/me", authMW, h.me)

	adminGroup := router.Group("/admin/users", authMW, adminRoleMW)
	{
		adminGroup.GET("", h.listUsers)
		adminGroup.PATCH("/:id/role", h.updateRole)
		adminGroup.DELETE("/:id", h.deleteUser)
	}
}

func (h *Handler) me(c *gin.Context) {
	userID := common.GetUserIDFromContext(c)
	if userID == uuid.Nil {
		common.RespondWithError(c, common.ErrUnauthorized)
		return
	}

	u, err := h.service.GetUserByID(c.Request.Context(), userID)
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondOK(c, "User profile retrieved.", SharedToResponse(u))
}

func (h *Handler) listUsers(c *gin.Context) {
	page, pageSize := common.GetPaginationParams(c)

	users, total, err := h.service.ListUsers(c.Request.Context(), page, pageSize)
	if err != nil {
		h.logger.Error("Failed to list users", zap.Error(err))
		common.RespondWithError(c, err)
		return
	}

	responses := make([]UserResponse, 0, len(users))
	for i := range users {
		responses = append(responses, ToUserResponse(&users[i]))
	}
	common.RespondPaginated(c, "Users retrieved.", responses, common.NewPagination(total, page, pageSize))
}

func (h *Handler) updateRole(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		common.RespondWithError(c, common.ErrBadRequest.WithDetails("Invalid user ID."))
		return
	}

	var req UpdateRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		var ve validator.ValidationErrors
		if errors.As(err, &ve) {
			common.RespondWithError(c, common.NewValidationAPIError(common.FormatValidationErrors(ve)))
			return
		}
		common.RespondWithError(c, common.ErrBadRequest.WithDetails(err.Error()))
		return
	}

	updated, err := h.service.UpdateRole(c.Request.Context(), id, req.Role)
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondOK(c, "User role updated. Takes effect on the user's next sign-in.", SharedToResponse(updated))
}

func (h *Handler) deleteUser(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		common.RespondWithError(c, common.ErrBadRequest.WithDetails("Invalid user ID."))
		return
	}

	if err := h.service.DeleteUser(c.Request.Context(), id); err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondNoContent(c)
}
