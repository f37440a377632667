// Package v1 exposes the JSON API: auth, conversation ingestion, hybrid
// retrieval, and conversation comparison.
package v1

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/recollecthq/recollect/internal/profile"
	"github.com/recollecthq/recollect/server/ai"
	"github.com/recollecthq/recollect/server/auth"
	"github.com/recollecthq/recollect/server/compare"
	"github.com/recollecthq/recollect/server/ingest"
	apperr "github.com/recollecthq/recollect/server/internal/errors"
	"github.com/recollecthq/recollect/server/middleware"
	"github.com/recollecthq/recollect/server/retrieval"
	"github.com/recollecthq/recollect/store"
)

const userIDContextKey = "user-id"

// APIV1Service wires the HTTP surface to the capture and retrieval engine.
type APIV1Service struct {
	Secret     string
	Profile    *profile.Profile
	Store      *store.Store
	Merger     *ingest.Merger
	Ranker     *retrieval.Ranker
	Comparator *compare.Comparator
	Manager    *ai.EmbeddingManager

	rateLimiter *middleware.RateLimiter
}

// NewAPIV1Service creates the API service.
func NewAPIV1Service(secret string, profile *profile.Profile, store *store.Store, merger *ingest.Merger, ranker *retrieval.Ranker, comparator *compare.Comparator, manager *ai.EmbeddingManager) *APIV1Service {
	return &APIV1Service{
		Secret:      secret,
		Profile:     profile,
		Store:       store,
		Merger:      merger,
		Ranker:      ranker,
		Comparator:  comparator,
		Manager:     manager,
		rateLimiter: middleware.NewRateLimiter(10, 20),
	}
}

// Register attaches all routes to the echo instance.
func (s *APIV1Service) Register(e *echo.Echo) {
	apiGroup := e.Group("/api/v1")

	apiGroup.POST("/auth/signup", s.SignUp)
	apiGroup.POST("/auth/login", s.LogIn)

	authed := apiGroup.Group("", s.authMiddleware, s.rateLimitMiddleware)
	authed.GET("/agents", s.ListAgents)
	authed.GET("/agents/:id", s.GetAgent)
	authed.GET("/conversations", s.ListConversations)
	authed.POST("/conversations", s.CreateConversation)
	authed.POST("/conversations/batch", s.BatchConversations)
	authed.GET("/conversations/:uid", s.GetConversation)
	authed.PATCH("/conversations/:uid", s.UpdateConversation)
	authed.DELETE("/conversations/:uid", s.DeleteConversation)
	authed.POST("/conversations/compare", s.CompareConversations)
	authed.POST("/search", s.Search)
	authed.POST("/search/hybrid", s.SearchHybrid)
	authed.POST("/search/semantic", s.SearchSemantic)
	authed.POST("/search/keyword", s.SearchKeyword)
}

// authMiddleware requires a valid bearer token and stores the user id on the
// request context.
func (s *APIV1Service) authMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		header := c.Request().Header.Get(echo.HeaderAuthorization)
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, "missing access token")
		}
		claims, err := auth.ParseToken(token, []byte(s.Secret))
		if err != nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid access token")
		}
		c.Set(userIDContextKey, claims.UserID)
		return next(c)
	}
}

func (s *APIV1Service) rateLimitMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		key := c.RealIP()
		if userID, ok := c.Get(userIDContextKey).(int32); ok {
			key = strconv.Itoa(int(userID))
		}
		if err := s.rateLimiter.Check(key); err != nil {
			return toHTTPError(err)
		}
		return next(c)
	}
}

func currentUserID(c echo.Context) int32 {
	userID, _ := c.Get(userIDContextKey).(int32)
	return userID
}

// parsePagination reads optional limit/offset query parameters.
func parsePagination(c echo.Context) (*int, *int, error) {
	var limit, offset *int
	if raw := c.QueryParam("limit"); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value < 1 {
			return nil, nil, echo.NewHTTPError(http.StatusBadRequest, "invalid limit")
		}
		limit = &value
	}
	if raw := c.QueryParam("offset"); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value < 0 {
			return nil, nil, echo.NewHTTPError(http.StatusBadRequest, "invalid offset")
		}
		offset = &value
	}
	return limit, offset, nil
}

// toHTTPError maps typed service errors onto HTTP statuses.
func toHTTPError(err error) error {
	switch apperr.GetCodeFromError(err, apperr.ErrCodeStoreFailure) {
	case apperr.ErrCodeNotFound:
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case apperr.ErrCodeValidationFailed:
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case apperr.ErrCodeUnauthorized:
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	case apperr.ErrCodeRateLimitExceeded:
		return echo.NewHTTPError(http.StatusTooManyRequests, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
