package echoapi

import (
	"net/http"

	"github.com/dgrijalva/jwt-go"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/umirovdev/maktab/core"
	"github.com/umirovdev/maktab/core/auth"
	"github.com/umirovdev/maktab/core/user"
)

// claimsContextKey is where the JWT middleware stores the parsed token.
const claimsContextKey = "userToken"

// newJWTMiddleware authenticates requests against the access token
// secret. Refresh tokens are signed with a different secret and are
// rejected here.
func newJWTMiddleware(conf *core.Config) echo.MiddlewareFunc {
	return middleware.JWTWithConfig(middleware.JWTConfig{
		SigningKey:    []byte(conf.Auth.AccessSecret),
		SigningMethod: middleware.AlgorithmHS256,
		ContextKey:    claimsContextKey,
		Claims:        new(auth.AccessClaims),
	})
}

func getContextClaims(ctx echo.Context) (auth.AccessClaims, error) {
	if token, ok := ctx.Get(claimsContextKey).(*jwt.Token); ok {
		if claims, ok := token.Claims.(*auth.AccessClaims); ok {
			return *claims, nil
		}
	}
	return auth.AccessClaims{}, errUnauthorized
}

type authApi struct {
	session  *auth.Session
	validate *validator.Validate
}

func registerAuthAPI(g *echo.Group, jwt echo.MiddlewareFunc, session *auth.Session, validate *validator.Validate) {
	api := authApi{
		session:  session,
		validate: validate,
	}

	ag := g.Group("/auth")

	// un-authed endpoints
	// TODO: rate limit `/login`
	ag.POST("/login", api.login)
	ag.POST("/refresh", api.refresh)
	ag.POST("/logout", api.logout)

	// authed endpoints
	ag.POST("/change-password", api.changePassword, jwt)
}

// Handlers

func (api *authApi) login(ctx echo.Context) error {
	var data LoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LoginRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	res, err := api.session.Login(ctx.Request().Context(), data.Username, data.Password)
	if err != nil {
		return errors.Wrap(err, "logging in")
	}

	return ctx.JSON(http.StatusOK, LoginResponse{
		AccessToken:        res.AccessToken,
		RefreshToken:       res.RefreshToken,
		User:               newUserInfo(res.User),
		MustChangePassword: res.User.MustChangePassword,
	})
}

func (api *authApi) refresh(ctx echo.Context) error {
	var data RefreshRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to RefreshRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	pair, err := api.session.Refresh(ctx.Request().Context(), data.RefreshToken)
	if err != nil {
		return errors.Wrap(err, "refreshing session")
	}

	return ctx.JSON(http.StatusOK, TokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	})
}

func (api *authApi) logout(ctx echo.Context) error {
	var data RefreshRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to RefreshRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	if err := api.session.Logout(ctx.Request().Context(), data.RefreshToken); err != nil {
		return errors.Wrap(err, "logging out")
	}
	return ctx.JSON(http.StatusOK, OkResponse{Ok: true})
}

func (api *authApi) changePassword(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	var data ChangePasswordRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ChangePasswordRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	if err := api.session.ChangePassword(ctx.Request().Context(), claims.Subject, data.OldPassword, data.NewPassword); err != nil {
		return errors.Wrap(err, "changing password")
	}
	return ctx.JSON(http.StatusOK, OkResponse{Ok: true})
}

type (
	LoginRequest struct {
		Username string `json:"username" validate:"required"`
		Password string `json:"password" validate:"required"`
	}

	// UserInfo is the public slice of an account included in auth
	// responses.
	UserInfo struct {
		ID        string    `json:"id"`
		Username  string    `json:"username"`
		Role      user.Role `json:"role"`
		FirstName string    `json:"firstName"`
		LastName  string    `json:"lastName"`
	}

	LoginResponse struct {
		AccessToken        string   `json:"accessToken"`
		RefreshToken       string   `json:"refreshToken"`
		User               UserInfo `json:"user"`
		MustChangePassword bool     `json:"mustChangePassword"`
	}

	RefreshRequest struct {
		RefreshToken string `json:"refreshToken" validate:"required"`
	}

	TokenResponse struct {
		AccessToken  string `json:"accessToken"`
		RefreshToken string `json:"refreshToken"`
	}

	ChangePasswordRequest struct {
		OldPassword string `json:"oldPassword" validate:"required"`
		NewPassword string `json:"newPassword" validate:"required"`
	}

	OkResponse struct {
		Ok bool `json:"ok"`
	}
)

func newUserInfo(usr user.User) UserInfo {
	return UserInfo{
		ID:        usr.ID,
		Username:  usr.Username,
		Role:      usr.Role,
		FirstName: usr.FirstName,
		LastName:  usr.LastName,
	}
}

func (lr *LoginRequest) Validate(validate *validator.Validate) error {
	lr.Username = core.CleanString(lr.Username, true /* lower */)
	return validate.Struct(lr)
}

func (rr *RefreshRequest) Validate(validate *validator.Validate) error {
	rr.RefreshToken = core.CleanString(rr.RefreshToken)
	return validate.Struct(rr)
}

func (cp *ChangePasswordRequest) Validate(validate *validator.Validate) error {
	if err := validate.Struct(cp); err != nil {
		return err
	}
	return user.ValidatePasswordPolicy(cp.NewPassword)
}
