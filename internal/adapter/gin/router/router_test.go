package router

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"

	"user-api/internal/adapter/db/postgres"
	"user-api/internal/adapter/gin/handler"
	"user-api/internal/usecase/user"
)

// UserAPITestSuite exercises the HTTP API against an in-memory database
type UserAPITestSuite struct {
	suite.Suite
	db     *gorm.DB
	router *gin.Engine
	seeded int64
}

func TestUserAPITestSuite(t *testing.T) {
	suite.Run(t, new(UserAPITestSuite))
}

func (s *UserAPITestSuite) SetupTest() {
	gin.SetMode(gin.TestMode)
	t := s.T()
	log := zaptest.NewLogger(t)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	s.Require().NoError(err)
	sqlDB, err := db.DB()
	s.Require().NoError(err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	s.Require().NoError(postgres.Migrate(db))

	repo := postgres.NewUserRepoPG(db, log)
	seed := postgres.UserSchema{Name: "Test1", DNI: "09876543210"}
	s.Require().NoError(db.Create(&seed).Error)
	s.seeded = seed.ID

	health := handler.NewHealthHandler(map[string]handler.Checker{
		"database": sqlDB.PingContext,
	}, time.Second, log)

	s.db = db
	s.router = SetupRouter("/api", handler.NewUserHandler(user.New(repo, log), log), health, nil, log)
}

func (s *UserAPITestSuite) do(method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *UserAPITestSuite) count() int64 {
	var n int64
	s.Require().NoError(s.db.Model(&postgres.UserSchema{}).Count(&n).Error)
	return n
}

func (s *UserAPITestSuite) TestPost() {
	w := s.do(http.MethodPost, "/api/users/", `{"name":"Test2","dni":"09876543211"}`)

	s.Equal(http.StatusCreated, w.Code)
	var payload map[string]any
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &payload))
	s.Equal("Test2", payload["name"])
	s.Equal("09876543211", payload["dni"])
	id, ok := payload["id"].(float64)
	s.True(ok)
	s.Equal(float64(int64(id)), id, "id must be an integer")
	s.Equal(int64(2), s.count())
}

func (s *UserAPITestSuite) TestPost_DuplicateDNI() {
	w := s.do(http.MethodPost, "/api/users/", `{"name":"Test2","dni":"09876543211"}`)
	s.Require().Equal(http.StatusCreated, w.Code)

	w = s.do(http.MethodPost, "/api/users/", `{"name":"Test3","dni":"09876543211"}`)

	s.Equal(http.StatusBadRequest, w.Code)
	s.JSONEq(`{"detail":"User already exists"}`, w.Body.String())
	s.Equal(int64(2), s.count())
}

func (s *UserAPITestSuite) TestPost_DuplicateWinsOverValidation() {
	w := s.do(http.MethodPost, "/api/users/", `{"dni":"09876543210"}`)

	s.Equal(http.StatusBadRequest, w.Code)
	s.JSONEq(`{"detail":"User already exists"}`, w.Body.String())
}

func (s *UserAPITestSuite) TestPost_ValidationError() {
	w := s.do(http.MethodPost, "/api/users/", `{"name":""}`)

	s.Equal(http.StatusBadRequest, w.Code)
	s.JSONEq(`{"name":["This field is required."],"dni":["This field is required."]}`, w.Body.String())
	s.Equal(int64(1), s.count())
}

func (s *UserAPITestSuite) TestPost_NumericDNI() {
	w := s.do(http.MethodPost, "/api/users/", `{"name":"Num","dni":12345}`)

	s.Equal(http.StatusCreated, w.Code)
	var created handler.UserResponse
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &created))
	s.Equal("12345", created.DNI)

	w = s.do(http.MethodPost, "/api/users/", `{"name":"Num","dni":12345}`)

	s.Equal(http.StatusBadRequest, w.Code)
	s.JSONEq(`{"detail":"User already exists"}`, w.Body.String())
	s.Equal(int64(2), s.count())
}

func (s *UserAPITestSuite) TestPost_TrailingDataRejected() {
	w := s.do(http.MethodPost, "/api/users/", `{"name":"x","dni":"1"} garbage`)

	s.Equal(http.StatusBadRequest, w.Code)
	s.Contains(w.Body.String(), "JSON parse error")
	s.Equal(int64(1), s.count())
}

func (s *UserAPITestSuite) TestPost_NameWithDoubleHyphen() {
	w := s.do(http.MethodPost, "/api/users/", `{"name":"Jean--Luc","dni":"555"}`)

	s.Equal(http.StatusCreated, w.Code)
	s.Equal(int64(2), s.count())
}

func (s *UserAPITestSuite) TestPost_ConcurrentDuplicates() {
	const workers = 6
	var wg sync.WaitGroup
	codes := make([]int, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			w := s.do(http.MethodPost, "/api/users/", fmt.Sprintf(`{"name":"Racer %d","dni":"7777"}`, i))
			codes[i] = w.Code
		}(i)
	}
	wg.Wait()

	created := 0
	for _, code := range codes {
		if code == http.StatusCreated {
			created++
		} else {
			s.Equal(http.StatusBadRequest, code)
		}
	}
	s.Equal(1, created)
	s.Equal(int64(2), s.count())
}

func (s *UserAPITestSuite) TestGetList() {
	w := s.do(http.MethodGet, "/api/users/", "")

	s.Equal(http.StatusOK, w.Code)
	var payload []map[string]any
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &payload))
	s.Require().Len(payload, 1)
	s.Equal(float64(s.seeded), payload[0]["id"])
	s.Equal("Test1", payload[0]["name"])
	s.Equal("09876543210", payload[0]["dni"])
}

func (s *UserAPITestSuite) TestGetList_StorageOrder() {
	for _, body := range []string{`{"name":"Zed","dni":"3"}`, `{"name":"Ann","dni":"1"}`} {
		s.Require().Equal(http.StatusCreated, s.do(http.MethodPost, "/api/users/", body).Code)
	}

	w := s.do(http.MethodGet, "/api/users/", "")

	var payload []map[string]any
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &payload))
	s.Require().Len(payload, 3)
	s.Equal([]any{"Test1", "Zed", "Ann"}, []any{payload[0]["name"], payload[1]["name"], payload[2]["name"]})
}

func (s *UserAPITestSuite) TestGet() {
	w := s.do(http.MethodGet, fmt.Sprintf("/api/users/%d/", s.seeded), "")

	s.Equal(http.StatusOK, w.Code)
	s.JSONEq(fmt.Sprintf(`{"id":%d,"name":"Test1","dni":"09876543210"}`, s.seeded), w.Body.String())
}

func (s *UserAPITestSuite) TestGet_NotFound() {
	for _, path := range []string{"/api/users/999/", "/api/users/abc/", "/api/users/0/"} {
		w := s.do(http.MethodGet, path, "")
		s.Equal(http.StatusNotFound, w.Code, path)
		s.JSONEq(`{"detail":"Not found."}`, w.Body.String(), path)
	}
}

func (s *UserAPITestSuite) TestHealth() {
	w := s.do(http.MethodGet, "/api/health/", "")

	s.Equal(http.StatusOK, w.Code)
	s.JSONEq(`{"status":"ok"}`, w.Body.String())
}

func (s *UserAPITestSuite) TestHealth_StoreClosed() {
	sqlDB, err := s.db.DB()
	s.Require().NoError(err)
	s.Require().NoError(sqlDB.Close())

	w := s.do(http.MethodGet, "/api/health/", "")
	s.Equal(http.StatusOK, w.Code)
	s.JSONEq(`{"status":"ok"}`, w.Body.String())

	w = s.do(http.MethodGet, "/api/ready/", "")
	s.Equal(http.StatusServiceUnavailable, w.Code)
}

func (s *UserAPITestSuite) TestRedirectsMissingTrailingSlash() {
	w := s.do(http.MethodGet, "/api/users", "")

	s.Equal(http.StatusMovedPermanently, w.Code)
	s.Equal("/api/users/", w.Header().Get("Location"))
}

func (s *UserAPITestSuite) TestUnsupportedMethod() {
	w := s.do(http.MethodDelete, fmt.Sprintf("/api/users/%d/", s.seeded), "")

	s.Equal(http.StatusMethodNotAllowed, w.Code)
	s.JSONEq(`{"detail":"Method \"DELETE\" not allowed."}`, w.Body.String())
}

func (s *UserAPITestSuite) TestUnknownRoute() {
	w := s.do(http.MethodGet, "/api/accounts/", "")

	s.Equal(http.StatusNotFound, w.Code)
	s.JSONEq(`{"detail":"Not found."}`, w.Body.String())
}

// The walkthrough from an empty store: create, then reject the same dni.
func TestScenario_EmptyStore(t *testing.T) {
	gin.SetMode(gin.TestMode)
	log := zaptest.NewLogger(t)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, postgres.Migrate(db))

	repo := postgres.NewUserRepoPG(db, log)
	r := SetupRouter("", handler.NewUserHandler(user.New(repo, log), log),
		handler.NewHealthHandler(nil, time.Second, log), nil, log)

	post := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/users/", bytes.NewBufferString(`{"name":"Test2","dni":"09876543211"}`))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	w := post()
	require.Equal(t, http.StatusCreated, w.Code)
	var created handler.UserResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Positive(t, created.ID)
	assert.Equal(t, "Test2", created.Name)
	assert.Equal(t, "09876543211", created.DNI)

	users, err := repo.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, users, 1)

	w = post()
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"detail":"User already exists"}`, w.Body.String())

	users, err = repo.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, users, 1)
}
