package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/lithammer/shortuuid/v4"

	"github.com/recollecthq/recollect/server/auth"
	"github.com/recollecthq/recollect/store"
)

type signUpRequest struct {
	Email    string `json:"email"`
	Nickname string `json:"nickname"`
	Password string `json:"password"`
}

type logInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	AccessToken string        `json:"access_token"`
	User        *userResponse `json:"user"`
}

type userResponse struct {
	UID      string `json:"uid"`
	Email    string `json:"email"`
	Nickname string `json:"nickname"`
}

// SignUp registers a new user and returns an access token.
func (s *APIV1Service) SignUp(c echo.Context) error {
	ctx := c.Request().Context()
	request := &signUpRequest{}
	if err := c.Bind(request); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request")
	}
	if request.Email == "" || len(request.Password) < 8 {
		return echo.NewHTTPError(http.StatusBadRequest, "email and a password of at least 8 characters are required")
	}

	existing, err := s.Store.GetUser(ctx, &store.FindUser{Email: &request.Email})
	if err != nil {
		return toHTTPError(err)
	}
	if existing != nil {
		return echo.NewHTTPError(http.StatusConflict, "email already registered")
	}

	passwordHash, err := auth.HashPassword(request.Password)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to hash password")
	}
	user, err := s.Store.CreateUser(ctx, &store.User{
		UID:          shortuuid.New(),
		Email:        request.Email,
		Nickname:     request.Nickname,
		PasswordHash: passwordHash,
		RowStatus:    store.Normal,
	})
	if err != nil {
		return toHTTPError(err)
	}

	return s.respondWithToken(c, user)
}

// LogIn authenticates a user by email and password.
func (s *APIV1Service) LogIn(c echo.Context) error {
	ctx := c.Request().Context()
	request := &logInRequest{}
	if err := c.Bind(request); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request")
	}

	user, err := s.Store.GetUser(ctx, &store.FindUser{Email: &request.Email})
	if err != nil {
		return toHTTPError(err)
	}
	if user == nil || auth.ComparePassword(user.PasswordHash, request.Password) != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid credentials")
	}

	return s.respondWithToken(c, user)
}

func (s *APIV1Service) respondWithToken(c echo.Context, user *store.User) error {
	token, err := auth.GenerateToken(user.ID, user.Email, []byte(s.Secret))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to issue token")
	}
	return c.JSON(http.StatusOK, &authResponse{
		AccessToken: token,
		User: &userResponse{
			UID:      user.UID,
			Email:    user.Email,
			Nickname: user.Nickname,
		},
	})
}
