// Package apitest runs an in-memory tracker API for tests. It speaks the same
// paths, payloads and error bodies as the real server.
package apitest

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"jobtracker/client/internal/models"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	BasePath = "/api"

	timestampLayout = "2006-01-02T15:04:05"
)

// Route names used by Fail, Hits and friends.
const (
	RouteList   = "GET /applications"
	RouteGet    = "GET /applications/{id}"
	RouteCreate = "POST /applications"
	RouteUpdate = "PUT /applications/{id}"
	RouteDelete = "DELETE /applications/{id}"
	RouteStats  = "GET /applications/stats"
	RouteLogin  = "POST /auth/login"
	RouteSignup = "POST /auth/signup"
)

type claims struct {
	UserID int64  `json:"userID"`
	Epoch  int    `json:"epoch"`
	jwt.RegisteredClaims
}

type account struct {
	user     models.User
	password string
}

type failure struct {
	status  int
	message string
}

type Server struct {
	*httptest.Server

	secret []byte

	mu           sync.Mutex
	accounts     map[string]*account
	records      map[models.RecordID]models.ApplicationRecord
	nextUserID   int64
	nextRecordID models.RecordID
	epoch        int
	failures     map[string]failure
	hits         map[string]int
	requestIDs   []string
}

// New starts a server that is closed when the test ends.
func New(t testing.TB) *Server {
	s := &Server{
		secret:     []byte(uuid.NewString()),
		accounts:   make(map[string]*account),
		records:    make(map[models.RecordID]models.ApplicationRecord),
		failures:   make(map[string]failure),
		hits:       make(map[string]int),
		nextUserID: 1,
	}
	s.Server = httptest.NewServer(s.router())
	t.Cleanup(s.Close)
	return s
}

// BaseURL is the value for TRACKER_API_BASE_URL.
func (s *Server) BaseURL() string {
	return s.URL + BasePath
}

func (s *Server) router() chi.Router {
	router := chi.NewRouter()
	router.Use(middleware.Recoverer)

	// Hits are counted before authentication so rejected requests show up.
	router.Route(BasePath, func(r chi.Router) {
		r.With(s.counted(RouteLogin)).Post("/auth/login", s.login)
		r.With(s.counted(RouteSignup)).Post("/auth/signup", s.signup)

		r.With(s.counted(RouteList), s.authMiddleware).Get("/applications", s.list)
		r.With(s.counted(RouteCreate), s.authMiddleware).Post("/applications", s.create)
		r.With(s.counted(RouteStats), s.authMiddleware).Get("/applications/stats", s.stats)
		r.With(s.counted(RouteGet), s.authMiddleware).Get("/applications/{id}", s.get)
		r.With(s.counted(RouteUpdate), s.authMiddleware).Put("/applications/{id}", s.update)
		r.With(s.counted(RouteDelete), s.authMiddleware).Delete("/applications/{id}", s.remove)
	})
	return router
}

// AddUser registers an account directly, bypassing signup.
func (s *Server) AddUser(username, email, password string) models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addUserLocked(username, email, password)
}

func (s *Server) addUserLocked(username, email, password string) models.User {
	user := models.User{
		ID:       s.nextUserID,
		Username: username,
		Email:    email,
		Roles:    []string{"ROLE_USER"},
	}
	s.nextUserID++
	s.accounts[username] = &account{user: user, password: password}
	return user
}

// Token issues a valid bearer token for an existing user.
func (s *Server) Token(username string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.accounts[username]
	if !ok {
		panic(fmt.Sprintf("apitest: unknown user %q", username))
	}
	token, err := s.issueLocked(acc.user.ID)
	if err != nil {
		panic(err)
	}
	return token
}

// Seed stores records owned by username and returns them as the server would.
func (s *Server) Seed(username string, inputs ...models.ApplicationInput) []models.ApplicationRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.accounts[username]
	if !ok {
		panic(fmt.Sprintf("apitest: unknown user %q", username))
	}
	out := make([]models.ApplicationRecord, 0, len(inputs))
	for _, in := range inputs {
		out = append(out, s.insertLocked(acc.user, in))
	}
	return out
}

// Fail makes every call to route answer with status and message until
// ClearFailures is called.
func (s *Server) Fail(route string, status int, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[route] = failure{status: status, message: message}
}

func (s *Server) ClearFailures() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = make(map[string]failure)
}

// ExpireSessions invalidates every token issued so far.
func (s *Server) ExpireSessions() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.epoch++
}

// Hits reports how many requests reached route.
func (s *Server) Hits(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[route]
}

// RequestIDs returns the X-Request-ID header of every request, in order.
func (s *Server) RequestIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.requestIDs))
	copy(out, s.requestIDs)
	return out
}

// counted records a hit on route and answers with the failure set by Fail,
// if any, before authentication runs.
func (s *Server) counted(route string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s.mu.Lock()
			s.hits[route]++
			s.requestIDs = append(s.requestIDs, r.Header.Get("X-Request-ID"))
			f, failing := s.failures[route]
			s.mu.Unlock()

			if failing {
				writeError(w, r, f.status, f.message, nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (s *Server) issueLocked(userID int64) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		UserID: userID,
		Epoch:  s.epoch,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
		},
	})
	return token.SignedString(s.secret)
}

type ctxKey struct{}

func withUser(ctx context.Context, user models.User) context.Context {
	return context.WithValue(ctx, ctxKey{}, user)
}

func userFrom(ctx context.Context) models.User {
	user, _ := ctx.Value(ctxKey{}).(models.User)
	return user
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			writeError(w, r, http.StatusUnauthorized, "Full authentication is required to access this resource", nil)
			return
		}

		c := &claims{}
		token, err := jwt.ParseWithClaims(strings.TrimPrefix(header, "Bearer "), c, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		})
		if err != nil || !token.Valid {
			writeError(w, r, http.StatusUnauthorized, "Invalid or expired token", nil)
			return
		}

		s.mu.Lock()
		var user *models.User
		if c.Epoch == s.epoch {
			for _, acc := range s.accounts {
				if acc.user.ID == c.UserID {
					u := acc.user
					user = &u
					break
				}
			}
		}
		s.mu.Unlock()

		if user == nil {
			writeError(w, r, http.StatusUnauthorized, "Invalid or expired token", nil)
			return
		}
		next.ServeHTTP(w, r.WithContext(withUser(r.Context(), *user)))
	})
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "Malformed request body", nil)
		return
	}

	s.mu.Lock()
	acc, ok := s.accounts[req.Username]
	if !ok || acc.password != req.Password {
		s.mu.Unlock()
		writeError(w, r, http.StatusUnauthorized, "Invalid username or password", nil)
		return
	}
	token, err := s.issueLocked(acc.user.ID)
	user := acc.user
	s.mu.Unlock()
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "An unexpected error occurred", nil)
		return
	}

	// Flat shape, as the real server sends it.
	writeJSON(w, http.StatusOK, models.AuthResponse{
		Token:    token,
		Type:     "Bearer",
		ID:       user.ID,
		Username: user.Username,
		Email:    user.Email,
		Roles:    user.Roles,
	})
}

func (s *Server) signup(w http.ResponseWriter, r *http.Request) {
	var req models.SignupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "Malformed request body", nil)
		return
	}

	fields := map[string]string{}
	if n := len(strings.TrimSpace(req.Username)); n < 3 || n > 20 {
		fields["username"] = "Username must be between 3 and 20 characters"
	}
	if !strings.Contains(req.Email, "@") {
		fields["email"] = "Email should be valid"
	}
	if n := len(req.Password); n < 6 || n > 40 {
		fields["password"] = "Password must be between 6 and 40 characters"
	}
	if len(fields) > 0 {
		writeError(w, r, http.StatusBadRequest, "Invalid input data", fields)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.accounts[req.Username]; taken {
		writeJSON(w, http.StatusBadRequest, models.MessageResponse{Message: "Error: Username is already taken!"})
		return
	}
	for _, acc := range s.accounts {
		if acc.user.Email == req.Email {
			writeJSON(w, http.StatusBadRequest, models.MessageResponse{Message: "Error: Email is already in use!"})
			return
		}
	}
	s.addUserLocked(req.Username, req.Email, req.Password)
	writeJSON(w, http.StatusOK, models.MessageResponse{Message: "User registered successfully!"})
}

func (s *Server) list(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())
	q := r.URL.Query()

	page, err := strconv.Atoi(q.Get("page"))
	if err != nil || page < 0 {
		page = 0
	}
	size, err := strconv.Atoi(q.Get("size"))
	if err != nil || size <= 0 {
		size = models.DefaultPageSize
	}
	keyword := strings.ToLower(strings.TrimSpace(q.Get("keyword")))
	status := models.Status(q.Get("status"))

	s.mu.Lock()
	var matched []models.ApplicationRecord
	for _, rec := range s.records {
		if rec.UserID != user.ID {
			continue
		}
		if status != "" && rec.Status != status {
			continue
		}
		if keyword != "" &&
			!strings.Contains(strings.ToLower(rec.Company), keyword) &&
			!strings.Contains(strings.ToLower(rec.Role), keyword) {
			continue
		}
		matched = append(matched, rec)
	}
	s.mu.Unlock()

	asc := q.Get("direction") == string(models.DirectionAsc)
	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if !a.DateApplied.Equal(b.DateApplied.Time) {
			if asc {
				return a.DateApplied.Before(b.DateApplied.Time)
			}
			return a.DateApplied.After(b.DateApplied.Time)
		}
		if asc {
			return a.ID < b.ID
		}
		return a.ID > b.ID
	})

	total := len(matched)
	totalPages := (total + size - 1) / size
	start := page * size
	if start > total {
		start = total
	}
	end := start + size
	if end > total {
		end = total
	}

	writeJSON(w, http.StatusOK, models.ListPage{
		Content:       append([]models.ApplicationRecord{}, matched[start:end]...),
		TotalPages:    totalPages,
		TotalElements: int64(total),
		Number:        page,
		Size:          size,
	})
}

func (s *Server) get(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.owned(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) create(w http.ResponseWriter, r *http.Request) {
	in, ok := decodeInput(w, r)
	if !ok {
		return
	}
	s.mu.Lock()
	rec := s.insertLocked(userFrom(r.Context()), in)
	s.mu.Unlock()
	writeJSON(w, http.StatusCreated, rec)
}

func (s *Server) update(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.owned(w, r)
	if !ok {
		return
	}
	in, ok := decodeInput(w, r)
	if !ok {
		return
	}

	rec.Company = in.Company
	rec.Role = in.Role
	rec.Status = in.Status
	rec.DateApplied = in.DateApplied
	rec.Notes = in.Notes
	rec.UpdatedAt = time.Now().UTC().Format(timestampLayout)

	s.mu.Lock()
	s.records[rec.ID] = rec
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) remove(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.owned(w, r)
	if !ok {
		return
	}
	s.mu.Lock()
	delete(s.records, rec.ID)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, models.MessageResponse{Message: "Application deleted successfully"})
}

func (s *Server) stats(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())
	var snap models.StatisticsSnapshot

	s.mu.Lock()
	for _, rec := range s.records {
		if rec.UserID != user.ID {
			continue
		}
		snap.Total++
		switch rec.Status {
		case models.StatusApplied:
			snap.Applied++
		case models.StatusInterview:
			snap.Interview++
		case models.StatusOffer:
			snap.Offer++
		case models.StatusRejected:
			snap.Rejected++
		}
	}
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, snap)
}

// owned looks up the {id} record and checks it belongs to the caller.
func (s *Server) owned(w http.ResponseWriter, r *http.Request) (models.ApplicationRecord, bool) {
	id, err := models.ParseRecordID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error(), nil)
		return models.ApplicationRecord{}, false
	}

	s.mu.Lock()
	rec, found := s.records[id]
	s.mu.Unlock()

	if !found {
		writeError(w, r, http.StatusNotFound, fmt.Sprintf("Job application not found with id: %d", id), nil)
		return models.ApplicationRecord{}, false
	}
	if rec.UserID != userFrom(r.Context()).ID {
		writeError(w, r, http.StatusForbidden, "You don't have permission to access this application", nil)
		return models.ApplicationRecord{}, false
	}
	return rec, true
}

func (s *Server) insertLocked(user models.User, in models.ApplicationInput) models.ApplicationRecord {
	s.nextRecordID++
	now := time.Now().UTC().Format(timestampLayout)
	rec := models.ApplicationRecord{
		ID:          s.nextRecordID,
		Company:     in.Company,
		Role:        in.Role,
		Status:      in.Status,
		DateApplied: in.DateApplied,
		Notes:       in.Notes,
		CreatedAt:   now,
		UpdatedAt:   now,
		UserID:      user.ID,
		Username:    user.Username,
	}
	s.records[rec.ID] = rec
	return rec
}

func decodeInput(w http.ResponseWriter, r *http.Request) (models.ApplicationInput, bool) {
	var in models.ApplicationInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, r, http.StatusBadRequest, "Malformed request body", nil)
		return in, false
	}

	fields := map[string]string{}
	if strings.TrimSpace(in.Company) == "" {
		fields["company"] = "Company name is required"
	}
	if strings.TrimSpace(in.Role) == "" {
		fields["role"] = "Role is required"
	}
	if !in.Status.Valid() {
		fields["status"] = "Status is required"
	}
	if in.DateApplied.IsZero() {
		fields["dateApplied"] = "Date applied is required"
	}
	if len(in.Notes) > 1000 {
		fields["notes"] = "Notes must not exceed 1000 characters"
	}
	if len(fields) > 0 {
		writeError(w, r, http.StatusBadRequest, "Invalid input data", fields)
		return in, false
	}
	return in, true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, message string, fields map[string]string) {
	writeJSON(w, status, models.ErrorResponse{
		Status:           status,
		Error:            http.StatusText(status),
		Message:          message,
		ValidationErrors: fields,
		Path:             r.URL.Path,
	})
}
