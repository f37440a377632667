package v1

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recollecthq/recollect/internal/profile"
	"github.com/recollecthq/recollect/server/auth"
	"github.com/recollecthq/recollect/store"
	"github.com/recollecthq/recollect/store/storetest"
)

func newTestService() (*APIV1Service, *storetest.Driver) {
	driver := storetest.NewDriver()
	st := store.New(driver, &profile.Profile{Mode: "dev"})
	service := NewAPIV1Service("test-secret", &profile.Profile{Mode: "dev"}, st, nil, nil, nil, nil)
	return service, driver
}

func doJSON(t *testing.T, handler echo.HandlerFunc, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if err := handler(c); err != nil {
		e.HTTPErrorHandler(err, c)
	}
	return rec
}

func TestSignUpAndLogIn(t *testing.T) {
	service, driver := newTestService()

	rec := doJSON(t, service.SignUp, http.MethodPost, "/api/v1/auth/signup",
		`{"email":"dev@example.com","nickname":"dev","password":"correct horse"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "access_token")

	users, err := driver.ListUsers(t.Context(), &store.FindUser{})
	require.NoError(t, err)
	require.Len(t, users, 1)
	// Stored hash is bcrypt, never the plaintext.
	assert.NotEqual(t, "correct horse", users[0].PasswordHash)
	assert.NoError(t, auth.ComparePassword(users[0].PasswordHash, "correct horse"))

	rec = doJSON(t, service.LogIn, http.MethodPost, "/api/v1/auth/login",
		`{"email":"dev@example.com","password":"correct horse"}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, service.LogIn, http.MethodPost, "/api/v1/auth/login",
		`{"email":"dev@example.com","password":"wrong"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSignUpRejectsWeakOrDuplicate(t *testing.T) {
	service, _ := newTestService()

	rec := doJSON(t, service.SignUp, http.MethodPost, "/api/v1/auth/signup",
		`{"email":"dev@example.com","password":"short"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, service.SignUp, http.MethodPost, "/api/v1/auth/signup",
		`{"email":"dev@example.com","password":"correct horse"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, service.SignUp, http.MethodPost, "/api/v1/auth/signup",
		`{"email":"dev@example.com","password":"correct horse"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestAuthMiddleware(t *testing.T) {
	service, _ := newTestService()
	next := func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	}
	handler := service.authMiddleware(next)

	e := echo.New()

	// Missing token.
	req := httptest.NewRequest(http.MethodGet, "/api/v1/agents", nil)
	rec := httptest.NewRecorder()
	err := handler(e.NewContext(req, rec))
	require.Error(t, err)

	// Valid token.
	token, err := auth.GenerateToken(42, "dev@example.com", []byte("test-secret"))
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, "/api/v1/agents", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	rec = httptest.NewRecorder()
	c := e.NewContext(req, rec)
	require.NoError(t, handler(c))
	assert.Equal(t, int32(42), currentUserID(c))

	// Token signed with the wrong secret.
	forged, err := auth.GenerateToken(42, "dev@example.com", []byte("other-secret"))
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, "/api/v1/agents", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+forged)
	rec = httptest.NewRecorder()
	assert.Error(t, handler(e.NewContext(req, rec)))
}
