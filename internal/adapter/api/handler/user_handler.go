package handler

import (
	"github.com/labstack/echo/v4"

	"relaychat/internal/adapter/api/middleware"
	"relaychat/internal/usecase"
	"relaychat/pkg/response"
	"relaychat/pkg/utils"
)

type UserHandler struct {
	userUseCase *usecase.UserUseCase
}

func NewUserHandler(userUseCase *usecase.UserUseCase) *UserHandler {
	return &UserHandler{
		userUseCase: userUseCase,
	}
}

// SearchUsers handles GET /users?search=kw
func (h *UserHandler) SearchUsers(c echo.Context) error {
	params := utils.GetPaginationParams(c)

	users, total, err := h.userUseCase.Search(
		c.Request().Context(),
		middleware.UserID(c),
		c.QueryParam("search"),
		params.PageSize,
		params.Offset,
	)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Paginated(c, users, total, params.Page, params.PageSize)
}

func (h *UserHandler) GetProfile(c echo.Context) error {
	user, err := h.userUseCase.GetProfile(c.Request().Context(), middleware.UserID(c))
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, user)
}
