package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/umirovdev/maktab/core/school"
	"github.com/umirovdev/maktab/core/user"
)

type userApi struct {
	svc       user.ServiceInterface
	schoolSvc school.ServiceInterface
}

func registerUserAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc user.ServiceInterface, schoolSvc school.ServiceInterface) {
	api := userApi{
		svc:       svc,
		schoolSvc: schoolSvc,
	}

	ug := g.Group("/users", jwt)
	ug.GET("/me", api.me)
}

// MeResponse is the authenticated account plus, for students, the
// groups they belong to.
type MeResponse struct {
	ID                 string         `json:"id"`
	Username           string         `json:"username"`
	Role               user.Role      `json:"role"`
	FirstName          string         `json:"firstName"`
	LastName           string         `json:"lastName"`
	MustChangePassword bool           `json:"mustChangePassword"`
	Groups             []school.Group `json:"groups"`
}

func (api *userApi) me(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	usr, err := api.svc.GetByID(ctx.Request().Context(), claims.Subject)
	if err != nil {
		return errors.Wrap(err, "finding user by ID")
	}

	groups := []school.Group{}
	if usr.IsStudent() {
		if groups, err = api.schoolSvc.StudentGroups(ctx.Request().Context(), usr.ID); err != nil {
			return errors.Wrap(err, "querying student groups")
		}
		if groups == nil {
			groups = []school.Group{}
		}
	}

	return ctx.JSON(http.StatusOK, MeResponse{
		ID:                 usr.ID,
		Username:           usr.Username,
		Role:               usr.Role,
		FirstName:          usr.FirstName,
		LastName:           usr.LastName,
		MustChangePassword: usr.MustChangePassword,
		Groups:             groups,
	})
}
