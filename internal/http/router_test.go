package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"attendance-backend/internal/apperr"
	"attendance-backend/internal/auth"
	"attendance-backend/internal/handlers"
	"attendance-backend/internal/health"
	"attendance-backend/internal/metrics"
	"attendance-backend/internal/middleware"
	"attendance-backend/internal/models"
	"attendance-backend/internal/services"
	"attendance-backend/internal/storage"
	"attendance-backend/internal/timeutil"
)

func TestMain(m *testing.M) {
	if err := timeutil.SetLocation("UTC"); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

type memUsers struct {
	mu    sync.Mutex
	users map[string]models.User
}

func (m *memUsers) Create(_ context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Email == u.Email {
			return apperr.Forbidden("Email already registered")
		}
	}
	m.users[u.ID] = *u
	return nil
}

func (m *memUsers) GetByID(_ context.Context, id string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, apperr.NotFound("User not found")
	}
	return &u, nil
}

func (m *memUsers) GetByEmail(_ context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			u := u
			return &u, nil
		}
	}
	return nil, nil
}

func (m *memUsers) List(_ context.Context) ([]models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.User{}
	for _, u := range m.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *memUsers) SetActive(_ context.Context, id string, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return apperr.NotFound("User not found")
	}
	u.Active = active
	m.users[id] = u
	return nil
}

type memActivities struct {
	mu    sync.Mutex
	items []models.Activity
}

func (m *memActivities) Create(_ context.Context, a *models.Activity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = append(m.items, *a)
	return nil
}

func (m *memActivities) Query(_ context.Context, f models.ActivityFilter, order models.SortOrder) ([]models.Activity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Activity{}
	for _, a := range m.items {
		if f.Matches(a) {
			out = append(out, a)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if order == models.SortDescending {
			return out[i].Timestamp.After(out[j].Timestamp)
		}
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out, nil
}

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

type testServer struct {
	handler    http.Handler
	jwt        *auth.JWTManager
	users      *memUsers
	activities *memActivities
	uploads    string
	db         *pinger
}

var (
	staff = auth.Identity{ID: "u1", Email: "asha@example.com", Name: "Asha", Role: auth.RoleStaff}
	other = auth.Identity{ID: "u2", Email: "ravi@example.com", Name: "Ravi", Role: auth.RoleStaff}
	admin = auth.Identity{ID: "a1", Email: "boss@example.com", Name: "Boss", Role: auth.RoleAdmin}
)

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	return newTestServerWith(t, Options{})
}

// newTestServerWith stores photos in a temp dir served under /photos.
func newTestServerWith(t *testing.T, opts Options) *testServer {
	t.Helper()

	hash, err := auth.HashPassword("secret1")
	if err != nil {
		t.Fatal(err)
	}
	users := &memUsers{users: map[string]models.User{}}
	for _, id := range []auth.Identity{staff, other, admin} {
		users.users[id.ID] = models.User{
			ID: id.ID, Name: id.Name, Email: id.Email, PasswordHash: hash,
			IsAdmin: id.IsAdmin(), Active: true,
		}
	}
	activities := &memActivities{}

	dir := t.TempDir()
	photos, err := storage.NewLocalBackend(dir, "/photos")
	if err != nil {
		t.Fatal(err)
	}

	m := metrics.New()
	jwt := auth.NewJWTManagerWithSecret("test-secret", time.Hour)
	authMiddleware := middleware.NewAuthMiddleware(jwt, "session", users)
	userService := services.NewUserService(users, m)
	db := &pinger{}
	opts.UploadsDir = dir
	opts.UploadsPrefix = photos.PublicPrefix()

	router := NewRouter(Handlers{
		Auth:       handlers.NewAuthHandler(userService, jwt, "session", false),
		Attendance: handlers.NewAttendanceHandler(services.NewAttendanceService(activities, photos, nil, m)),
		Dashboard: handlers.NewDashboardHandler(
			services.NewReportService(activities, users),
			services.NewProfileService(activities, users),
		),
		Users:      handlers.NewUserHandler(userService),
		Health:     handlers.NewHealthHandler(health.NewHealthChecker(db)),
		Metrics:    m,
	}, authMiddleware, opts)
	t.Cleanup(router.Close)

	return &testServer{handler: router, jwt: jwt, users: users, activities: activities, uploads: dir, db: db}
}

func (s *testServer) do(t *testing.T, req *http.Request, as *auth.Identity) *httptest.ResponseRecorder {
	t.Helper()
	if as != nil {
		tok, err := s.jwt.Generate(*as)
		if err != nil {
			t.Fatal(err)
		}
		req.AddCookie(&http.Cookie{Name: "session", Value: tok})
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return body
}

func formRequest(method, target string, values url.Values) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func TestNotFound(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, httptest.NewRequest("GET", "/nope", nil), nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := decode(t, rec)["error"]; got != "Page not found" {
		t.Errorf("error = %v", got)
	}
}

func TestIndexRedirects(t *testing.T) {
	s := newTestServer(t)
	cases := []struct {
		as   *auth.Identity
		want string
	}{
		{nil, "/login"},
		{&staff, "/staff/dashboard"},
		{&admin, "/admin/dashboard"},
	}
	for _, c := range cases {
		rec := s.do(t, httptest.NewRequest("GET", "/", nil), c.as)
		if rec.Code != http.StatusFound || rec.Header().Get("Location") != c.want {
			t.Errorf("as %v: %d %q, want 302 %q", c.as, rec.Code, rec.Header().Get("Location"), c.want)
		}
	}
}

func TestPagesRequireSession(t *testing.T) {
	s := newTestServer(t)
	for _, path := range []string{"/staff/dashboard", "/admin/dashboard", "/profile", "/activity_logs"} {
		rec := s.do(t, httptest.NewRequest("GET", path, nil), nil)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s: status = %d, want 401", path, rec.Code)
		}
	}
}

func TestDashboardRoleRedirects(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, httptest.NewRequest("GET", "/admin/dashboard", nil), &staff)
	if rec.Code != http.StatusFound || rec.Header().Get("Location") != "/staff/dashboard" {
		t.Errorf("staff on admin dashboard: %d %q", rec.Code, rec.Header().Get("Location"))
	}
	rec = s.do(t, httptest.NewRequest("GET", "/staff/dashboard", nil), &admin)
	if rec.Code != http.StatusFound || rec.Header().Get("Location") != "/admin/dashboard" {
		t.Errorf("admin on staff dashboard: %d %q", rec.Code, rec.Header().Get("Location"))
	}
}

func TestLoginSetsSession(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, formRequest("POST", "/login", url.Values{
		"email": {"ASHA@example.com"}, "password": {"secret1"},
	}), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	body := decode(t, rec)
	if body["redirect"] != "/staff/dashboard" {
		t.Errorf("redirect = %v", body["redirect"])
	}

	var session *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == "session" {
			session = c
		}
	}
	if session == nil || session.Value == "" || !session.HttpOnly {
		t.Fatalf("session cookie = %+v", session)
	}

	req := httptest.NewRequest("GET", "/profile", nil)
	req.AddCookie(session)
	rec = s.do(t, req, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("profile with cookie: %d", rec.Code)
	}
}

func TestLoginRejectsBadPassword(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, formRequest("POST", "/login", url.Values{
		"email": {"asha@example.com"}, "password": {"wrong"},
	}), nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := decode(t, rec)["error"]; got != "Invalid credentials" {
		t.Errorf("error = %v", got)
	}
}

func TestRegisterJSON(t *testing.T) {
	s := newTestServer(t)
	body := `{"name":"Meera","email":"meera@example.com","password":"secret1","confirm_password":"secret1"}`
	req := httptest.NewRequest("POST", "/register", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	rec := s.do(t, req, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	user := decode(t, rec)["user"].(map[string]any)
	if user["email"] != "meera@example.com" || user["is_admin"] != false {
		t.Errorf("user = %v", user)
	}
	if _, leaked := user["password_hash"]; leaked {
		t.Error("password hash serialized")
	}
}

func TestLogoutClearsCookie(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, httptest.NewRequest("POST", "/logout", nil), &staff)
	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || cookies[0].MaxAge >= 0 {
		t.Fatalf("cookies = %+v", cookies)
	}
}

func clockInRequest(t *testing.T, photo []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	mw.WriteField("lat", "12.97")
	mw.WriteField("lng", "77.59")
	mw.WriteField("location", "Main gate")
	if photo != nil {
		fw, err := mw.CreateFormFile("photo", "capture.jpg")
		if err != nil {
			t.Fatal(err)
		}
		fw.Write(photo)
	}
	mw.Close()

	req := httptest.NewRequest("POST", "/staff/login", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestClockInWithPhoto(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, clockInRequest(t, []byte("jpeg-bytes")), &staff)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	body := decode(t, rec)
	if body["success"] != true {
		t.Fatalf("body = %v", body)
	}
	activity := body["activity"].(map[string]any)
	if activity["type"] != "login" || activity["location"] != "Main gate" || activity["lat"] != 12.97 {
		t.Errorf("activity = %v", activity)
	}

	photoURL, _ := activity["photo_url"].(string)
	if !strings.HasPrefix(photoURL, "/photos/login_u1_") {
		t.Fatalf("photo_url = %q", photoURL)
	}
	data, err := os.ReadFile(filepath.Join(s.uploads, strings.TrimPrefix(photoURL, "/photos/")))
	if err != nil || string(data) != "jpeg-bytes" {
		t.Fatalf("stored photo = %q, %v", data, err)
	}

	rec = s.do(t, httptest.NewRequest("GET", photoURL, nil), &admin)
	if rec.Code != http.StatusOK || rec.Body.String() != "jpeg-bytes" {
		t.Errorf("serve photo: %d %q", rec.Code, rec.Body.String())
	}

	rec = s.do(t, httptest.NewRequest("GET", "/staff/dashboard", nil), &staff)
	dash := decode(t, rec)
	if dash["has_login"] != true || dash["has_logout"] != false {
		t.Errorf("dashboard = %v", dash)
	}
}

func TestClockInRejectsAdmin(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, clockInRequest(t, nil), &admin)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d", rec.Code)
	}
	if len(s.activities.items) != 0 {
		t.Errorf("activity recorded for admin")
	}
}

func TestActivityLogsRedirectsStaff(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, httptest.NewRequest("GET", "/activity_logs?user=u2&date=2024-03-01", nil), &staff)
	if rec.Code != http.StatusFound {
		t.Fatalf("status = %d", rec.Code)
	}
	want := "/activity_logs?activity_type=all&date=2024-03-01&user=u1"
	if got := rec.Header().Get("Location"); got != want {
		t.Errorf("Location = %q, want %q", got, want)
	}

	rec = s.do(t, httptest.NewRequest("GET", "/activity_logs?user=all", nil), &staff)
	if rec.Code != http.StatusOK {
		t.Fatalf("own log status = %d", rec.Code)
	}
	if got := decode(t, rec)["filter_user"]; got != "u1" {
		t.Errorf("filter_user = %v", got)
	}
}

func TestActivityLogsRejectsBadType(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, httptest.NewRequest("GET", "/activity_logs?activity_type=lunch", nil), &admin)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestAdminDashboardDateDefault(t *testing.T) {
	s := newTestServer(t)
	restore := timeutil.SetClock(func() time.Time { return time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC) })
	defer restore()

	rec := s.do(t, httptest.NewRequest("GET", "/admin/dashboard", nil), &admin)
	if got := decode(t, rec)["filter_date"]; got != "2024-03-01" {
		t.Errorf("default filter_date = %v", got)
	}
	rec = s.do(t, httptest.NewRequest("GET", "/admin/dashboard?date=", nil), &admin)
	if got := decode(t, rec)["filter_date"]; got != "" {
		t.Errorf("empty filter_date = %v", got)
	}
}

func TestAdminUserManagement(t *testing.T) {
	s := newTestServer(t)

	create := func(as *auth.Identity) *httptest.ResponseRecorder {
		return s.do(t, formRequest("POST", "/admin/create_user", url.Values{
			"name": {"New"}, "email": {"new@example.com"}, "password": {"secret1"}, "user_type": {"staff"},
		}), as)
	}
	if rec := create(&staff); rec.Code != http.StatusForbidden {
		t.Errorf("staff create: %d", rec.Code)
	}
	rec := create(&admin)
	if rec.Code != http.StatusCreated {
		t.Fatalf("admin create: %d %s", rec.Code, rec.Body.String())
	}
	user := decode(t, rec)["user"].(map[string]any)
	if user["created_by"] != "a1" {
		t.Errorf("created_by = %v", user["created_by"])
	}

	req := httptest.NewRequest("PATCH", "/admin/users/u2/active", strings.NewReader(`{"active":false}`))
	req.Header.Set("Content-Type", "application/json")
	rec = s.do(t, req, &admin)
	if rec.Code != http.StatusOK {
		t.Fatalf("deactivate: %d %s", rec.Code, rec.Body.String())
	}
	if s.users.users["u2"].Active {
		t.Error("u2 still active")
	}

	rec = s.do(t, formRequest("POST", "/login", url.Values{
		"email": {"ravi@example.com"}, "password": {"secret1"},
	}), nil)
	if rec.Code != http.StatusForbidden {
		t.Errorf("inactive login: %d", rec.Code)
	}
}

func TestStaffUserListIsSelf(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, httptest.NewRequest("GET", "/admin/users", nil), &staff)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	users := decode(t, rec)["users"].([]any)
	if len(users) != 1 || users[0].(map[string]any)["id"] != "u1" {
		t.Errorf("users = %v", users)
	}
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	if rec := s.do(t, httptest.NewRequest("GET", "/health", nil), nil); rec.Code != http.StatusOK {
		t.Errorf("healthy: %d", rec.Code)
	}
	if rec := s.do(t, httptest.NewRequest("GET", "/health/detailed", nil), &staff); rec.Code != http.StatusForbidden {
		t.Errorf("detailed as staff: %d", rec.Code)
	}

	s.db.err = errors.New("connection refused")
	if rec := s.do(t, httptest.NewRequest("GET", "/health", nil), nil); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("unhealthy: %d", rec.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t)
	s.do(t, httptest.NewRequest("GET", "/profile", nil), &staff)

	rec := s.do(t, httptest.NewRequest("GET", "/metrics", nil), nil)
	want := `attendance_http_requests_total{method="GET",route="/profile",status="200"} 1`
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), want) {
		t.Errorf("metrics: %d, missing %s", rec.Code, want)
	}
}

func TestDeactivationEndsExistingSession(t *testing.T) {
	s := newTestServer(t)

	tok, err := s.jwt.Generate(other)
	if err != nil {
		t.Fatal(err)
	}
	session := &http.Cookie{Name: "session", Value: tok}

	req := httptest.NewRequest("PATCH", "/admin/users/u2/active", strings.NewReader(`{"active":false}`))
	req.Header.Set("Content-Type", "application/json")
	if rec := s.do(t, req, &admin); rec.Code != http.StatusOK {
		t.Fatalf("deactivate: %d %s", rec.Code, rec.Body.String())
	}

	req = clockInRequest(t, nil)
	req.AddCookie(session)
	rec := s.do(t, req, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("clock-in with old session: %d %s", rec.Code, rec.Body.String())
	}
	if len(s.activities.items) != 0 {
		t.Fatalf("activity recorded for deactivated user: %+v", s.activities.items)
	}

	req = httptest.NewRequest("GET", "/activity_logs", nil)
	req.AddCookie(session)
	if rec := s.do(t, req, nil); rec.Code != http.StatusUnauthorized {
		t.Errorf("activity log with old session: %d", rec.Code)
	}
}

func TestSessionFollowsStoredRole(t *testing.T) {
	s := newTestServer(t)

	// token minted while u1 was staff; the account is promoted afterwards
	u := s.users.users["u1"]
	u.IsAdmin = true
	s.users.users["u1"] = u

	rec := s.do(t, httptest.NewRequest("GET", "/", nil), &staff)
	if rec.Header().Get("Location") != "/admin/dashboard" {
		t.Errorf("Location = %q", rec.Header().Get("Location"))
	}
}

func TestForceHTTPS(t *testing.T) {
	s := newTestServerWith(t, Options{ForceHTTPS: true})

	rec := s.do(t, httptest.NewRequest("GET", "http://attendance.example.com/profile?x=1", nil), &staff)
	if rec.Code != http.StatusMovedPermanently {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := rec.Header().Get("Location"); got != "https://attendance.example.com/profile?x=1" {
		t.Errorf("Location = %q", got)
	}

	// forwarded proto is ignored unless the proxy is trusted
	req := httptest.NewRequest("GET", "/health", nil)
	req.Header.Set("X-Forwarded-Proto", "https")
	if rec := s.do(t, req, nil); rec.Code != http.StatusMovedPermanently {
		t.Errorf("untrusted forwarded proto: %d", rec.Code)
	}

	trusted := newTestServerWith(t, Options{ForceHTTPS: true, TrustProxy: true})
	req = httptest.NewRequest("GET", "/health", nil)
	req.Header.Set("X-Forwarded-Proto", "https")
	if rec := trusted.do(t, req, nil); rec.Code != http.StatusOK {
		t.Errorf("trusted forwarded proto: %d", rec.Code)
	}
}

func TestUploadsFollowPublicPrefix(t *testing.T) {
	s := newTestServer(t)
	if err := os.WriteFile(filepath.Join(s.uploads, "a.jpg"), []byte("img"), 0o644); err != nil {
		t.Fatal(err)
	}

	if rec := s.do(t, httptest.NewRequest("GET", "/photos/a.jpg", nil), nil); rec.Code != http.StatusOK || rec.Body.String() != "img" {
		t.Errorf("/photos/a.jpg: %d %q", rec.Code, rec.Body.String())
	}
	if rec := s.do(t, httptest.NewRequest("GET", "/uploads/a.jpg", nil), nil); rec.Code != http.StatusNotFound {
		t.Errorf("/uploads/a.jpg: %d", rec.Code)
	}
}
