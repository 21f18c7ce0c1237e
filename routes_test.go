package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"article-gate/config"
	"article-gate/services"
	"article-gate/storage"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open in-memory database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to access sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	store := storage.New(db)
	if err := store.Migrate(); err != nil {
		t.Fatalf("migration failed: %v", err)
	}

	cfg := &config.Config{
		AdminUser:       "admin",
		AdminPassword:   "changeme",
		JWTSecret:       "unit-test-secret",
		SessionCookie:   "article_gate_token",
		TokenTTLMinutes: 60,
	}
	gate := services.NewAuthGate(cfg, zap.NewNop())
	return newRouter(cfg, store, gate, nil, zap.NewNop())
}

func doJSON(t *testing.T, router *gin.Engine, method, path, body string, session *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if session != nil {
		req.AddCookie(session)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func adminSession(t *testing.T, router *gin.Engine) *http.Cookie {
	t.Helper()
	w := doJSON(t, router, http.MethodPost, "/auth", `{"username":"admin","password":"changeme"}`, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("login failed with status %d: %s", w.Code, w.Body.String())
	}
	for _, cookie := range w.Result().Cookies() {
		if cookie.Name == "article_gate_token" {
			return cookie
		}
	}
	t.Fatal("no session cookie in login response")
	return nil
}

func TestWelcomeBanner(t *testing.T) {
	router := newTestRouter(t)

	w := doJSON(t, router, http.MethodGet, "/", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var resp map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if !strings.HasPrefix(resp["ServiceInfo"], "Welcome to ArticleGate Web-app!") {
		t.Errorf("unexpected banner: %q", resp["ServiceInfo"])
	}
}

func TestAuthRejectsBadCredentials(t *testing.T) {
	router := newTestRouter(t)

	cases := []string{
		`{"username":"admin","password":"wrong"}`,
		`{"username":"root","password":"changeme"}`,
	}
	for _, body := range cases {
		w := doJSON(t, router, http.MethodPost, "/auth", body, nil)
		if w.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401 for %s", w.Code, body)
		}
		if len(w.Result().Cookies()) != 0 {
			t.Errorf("cookie set on failed login for %s", body)
		}
	}

	// Fehlende Felder sind ein Validierungsfehler, kein Auth-Fehler
	w := doJSON(t, router, http.MethodPost, "/auth", `{"username":"admin"}`, nil)
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422 for missing password", w.Code)
	}
}

func TestAuthIssuesSessionCookie(t *testing.T) {
	router := newTestRouter(t)

	w := doJSON(t, router, http.MethodPost, "/auth", `{"username":"admin","password":"changeme"}`, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var resp map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if resp["token"] == "" {
		t.Error("expected non-empty token in response")
	}
	cookie := w.Result().Cookies()
	if len(cookie) != 1 || cookie[0].Name != "article_gate_token" || cookie[0].Value == "" {
		t.Errorf("unexpected cookies: %+v", cookie)
	}
}

func TestMutationsRequireSession(t *testing.T) {
	router := newTestRouter(t)

	paths := []struct {
		method string
		path   string
		body   string
	}{
		{http.MethodPost, "/create/org", `{"id":1,"title":"MIT"}`},
		{http.MethodPost, "/alter/org", `{"id":1,"title":"MIT"}`},
		{http.MethodDelete, "/delete/org?id=1", ""},
		{http.MethodPost, "/export", ""},
	}
	for _, tc := range paths {
		w := doJSON(t, router, tc.method, tc.path, tc.body, nil)
		if w.Code != http.StatusUnauthorized {
			t.Errorf("%s %s: status = %d, want 401", tc.method, tc.path, w.Code)
		}
	}

	// Abgelehnte Mutation darf keine Zeile hinterlassen
	w := doJSON(t, router, http.MethodGet, "/org?id=1", "", nil)
	if w.Code != http.StatusOK || strings.TrimSpace(w.Body.String()) != "null" {
		t.Errorf("org fetch after rejected create: status %d body %q", w.Code, w.Body.String())
	}

	// Manipuliertes Cookie zählt wie gar keins
	bad := &http.Cookie{Name: "article_gate_token", Value: "not-a-token"}
	w = doJSON(t, router, http.MethodPost, "/create/org", `{"id":1,"title":"MIT"}`, bad)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("tampered cookie: status = %d, want 401", w.Code)
	}
}

func TestCreateAndFetchRoundtrip(t *testing.T) {
	router := newTestRouter(t)
	session := adminSession(t, router)

	w := doJSON(t, router, http.MethodPost, "/create/org", `{"id":1,"title":"MIT","location":"Cambridge"}`, session)
	if w.Code != http.StatusOK {
		t.Fatalf("create org: status %d: %s", w.Code, w.Body.String())
	}
	w = doJSON(t, router, http.MethodPost, "/create/author", `{"id":1,"name":"Hopper","affiliation_org_id":1}`, session)
	if w.Code != http.StatusOK {
		t.Fatalf("create author: status %d: %s", w.Code, w.Body.String())
	}
	w = doJSON(t, router, http.MethodPost, "/create/article", `{"doi":"10.1000/d1","title":"t","posting_date":"2025-01-01"}`, session)
	if w.Code != http.StatusOK {
		t.Fatalf("create article: status %d: %s", w.Code, w.Body.String())
	}

	w = doJSON(t, router, http.MethodGet, "/org?id=1", "", nil)
	var org map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &org); err != nil {
		t.Fatalf("org response: %v", err)
	}
	if org["title"] != "MIT" || org["location"] != "Cambridge" {
		t.Errorf("org fields not preserved: %v", org)
	}

	w = doJSON(t, router, http.MethodGet, "/article?doi=10.1000%2Fd1", "", nil)
	var article map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &article); err != nil {
		t.Fatalf("article response: %v", err)
	}
	if article["doi"] != "10.1000/d1" || article["posting_date"] != "2025-01-01" {
		t.Errorf("article fields not preserved: %v", article)
	}
}

func TestDuplicateCreateConflicts(t *testing.T) {
	router := newTestRouter(t)
	session := adminSession(t, router)

	body := `{"doi":"10.1000/d1","title":"t","posting_date":"2025-01-01"}`
	if w := doJSON(t, router, http.MethodPost, "/create/article", body, session); w.Code != http.StatusOK {
		t.Fatalf("first create: status %d", w.Code)
	}
	if w := doJSON(t, router, http.MethodPost, "/create/article", body, session); w.Code != http.StatusNotAcceptable {
		t.Errorf("duplicate create: status %d, want 406", w.Code)
	}
}

func TestAuthorWithMissingOrganisationConflicts(t *testing.T) {
	router := newTestRouter(t)
	session := adminSession(t, router)

	w := doJSON(t, router, http.MethodPost, "/create/author", `{"id":1,"name":"Nobody","affiliation_org_id":77}`, session)
	if w.Code != http.StatusNotAcceptable {
		t.Fatalf("status = %d, want 406", w.Code)
	}
	w = doJSON(t, router, http.MethodGet, "/author?id=1", "", nil)
	if strings.TrimSpace(w.Body.String()) != "null" {
		t.Errorf("author row created despite conflict: %s", w.Body.String())
	}
}

func TestOrganisationDeleteLifecycle(t *testing.T) {
	router := newTestRouter(t)
	session := adminSession(t, router)

	doJSON(t, router, http.MethodPost, "/create/org", `{"id":1,"title":"MIT"}`, session)
	doJSON(t, router, http.MethodPost, "/create/author", `{"id":1,"name":"Hopper","affiliation_org_id":1}`, session)

	if w := doJSON(t, router, http.MethodDelete, "/delete/org?id=1", "", session); w.Code != http.StatusNotAcceptable {
		t.Errorf("delete referenced org: status %d, want 406", w.Code)
	}
	if w := doJSON(t, router, http.MethodDelete, "/delete/author?id=1", "", session); w.Code != http.StatusOK {
		t.Errorf("delete author: status %d, want 200", w.Code)
	}
	if w := doJSON(t, router, http.MethodDelete, "/delete/org?id=1", "", session); w.Code != http.StatusOK {
		t.Errorf("delete unreferenced org: status %d, want 200", w.Code)
	}
}

func TestAlterMissingTargetIsNotFound(t *testing.T) {
	router := newTestRouter(t)
	session := adminSession(t, router)

	w := doJSON(t, router, http.MethodPost, "/alter/author", `{"id":42,"name":"Ghost","affiliation_org_id":0}`, session)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
	// Kein Upsert: die Zeile darf nicht nebenbei entstanden sein
	w = doJSON(t, router, http.MethodGet, "/author?id=42", "", nil)
	if strings.TrimSpace(w.Body.String()) != "null" {
		t.Errorf("alter created a row: %s", w.Body.String())
	}
}

func TestAuthorsOfArticleOrderedWithAuthorInfo(t *testing.T) {
	router := newTestRouter(t)
	session := adminSession(t, router)

	doJSON(t, router, http.MethodPost, "/create/org", `{"id":1,"title":"MIT"}`, session)
	doJSON(t, router, http.MethodPost, "/create/author", `{"id":1,"name":"Hopper","affiliation_org_id":1}`, session)
	doJSON(t, router, http.MethodPost, "/create/author", `{"id":2,"name":"Lovelace","affiliation_org_id":1}`, session)
	doJSON(t, router, http.MethodPost, "/create/article", `{"doi":"10.1000/d1","title":"t","posting_date":"2025-01-01"}`, session)
	doJSON(t, router, http.MethodPost, "/create/article_to_author", `{"doi":"10.1000/d1","author_id":2,"place":2}`, session)
	doJSON(t, router, http.MethodPost, "/create/article_to_author", `{"doi":"10.1000/d1","author_id":1,"place":1}`, session)

	w := doJSON(t, router, http.MethodGet, "/authors_of_article?doi=10.1000%2Fd1", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	var placements []struct {
		Place      int `json:"place"`
		AuthorInfo *struct {
			Name string `json:"name"`
		} `json:"author_info"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &placements); err != nil {
		t.Fatalf("invalid response: %v", err)
	}
	if len(placements) != 2 {
		t.Fatalf("got %d placements, want 2", len(placements))
	}
	if placements[0].Place != 1 || placements[1].Place != 2 {
		t.Errorf("not ordered by place: %+v", placements)
	}
	if placements[0].AuthorInfo == nil || placements[0].AuthorInfo.Name != "Hopper" {
		t.Errorf("missing author_info enrichment: %+v", placements[0])
	}
}

func TestBindingAlterAndDeleteByCompositeKey(t *testing.T) {
	router := newTestRouter(t)
	session := adminSession(t, router)

	doJSON(t, router, http.MethodPost, "/create/org", `{"id":1,"title":"MIT"}`, session)
	doJSON(t, router, http.MethodPost, "/create/author", `{"id":1,"name":"Hopper","affiliation_org_id":1}`, session)
	doJSON(t, router, http.MethodPost, "/create/article", `{"doi":"10.1000/d1","title":"t","posting_date":"2025-01-01"}`, session)
	doJSON(t, router, http.MethodPost, "/create/article_to_author", `{"doi":"10.1000/d1","author_id":1,"place":1}`, session)

	w := doJSON(t, router, http.MethodPost, "/alter/article_to_author", `{"doi":"10.1000/d1","author_id":1,"place":4}`, session)
	if w.Code != http.StatusOK {
		t.Fatalf("alter binding: status %d: %s", w.Code, w.Body.String())
	}

	w = doJSON(t, router, http.MethodDelete, "/delete/binding?doi=10.1000%2Fd1&author_id=9", "", session)
	if w.Code != http.StatusNotFound {
		t.Errorf("delete unknown binding: status %d, want 404", w.Code)
	}
	w = doJSON(t, router, http.MethodDelete, "/delete/binding?doi=10.1000%2Fd1&author_id=1", "", session)
	if w.Code != http.StatusOK {
		t.Errorf("delete binding: status %d, want 200", w.Code)
	}
}

func TestFieldValidationReturns422(t *testing.T) {
	router := newTestRouter(t)
	session := adminSession(t, router)

	cases := []struct {
		name   string
		method string
		path   string
		body   string
	}{
		{"missing id param", http.MethodGet, "/author", ""},
		{"non-numeric id param", http.MethodGet, "/org?id=abc", ""},
		{"negative id param", http.MethodGet, "/author?id=-1", ""},
		{"missing doi param", http.MethodGet, "/article", ""},
		{"negative org id", http.MethodPost, "/create/org", `{"id":-1,"title":"MIT"}`},
		{"empty title", http.MethodPost, "/create/org", `{"id":1,"title":""}`},
		{"bad posting date", http.MethodPost, "/create/article", `{"doi":"10.1000/d1","title":"t","posting_date":"2025/01/01"}`},
		{"place below one", http.MethodPost, "/create/article_to_author", `{"doi":"10.1000/d1","author_id":1,"place":0}`},
		{"malformed body", http.MethodPost, "/create/org", `{"id":`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := doJSON(t, router, tc.method, tc.path, tc.body, session)
			if w.Code != http.StatusUnprocessableEntity {
				t.Errorf("status = %d, want 422 (%s)", w.Code, w.Body.String())
			}
		})
	}
}

func TestExportUnconfiguredReturns503(t *testing.T) {
	router := newTestRouter(t)
	session := adminSession(t, router)

	w := doJSON(t, router, http.MethodPost, "/export", "", session)
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", w.Code)
	}
}

func TestArticlesByAuthorListsBindings(t *testing.T) {
	router := newTestRouter(t)
	session := adminSession(t, router)

	doJSON(t, router, http.MethodPost, "/create/org", `{"id":1,"title":"MIT"}`, session)
	doJSON(t, router, http.MethodPost, "/create/author", `{"id":1,"name":"Hopper","affiliation_org_id":1}`, session)
	for i := 1; i <= 2; i++ {
		doJSON(t, router, http.MethodPost, "/create/article",
			fmt.Sprintf(`{"doi":"10.1000/d%d","title":"t","posting_date":"2025-01-01"}`, i), session)
		doJSON(t, router, http.MethodPost, "/create/article_to_author",
			fmt.Sprintf(`{"doi":"10.1000/d%d","author_id":1,"place":1}`, i), session)
	}

	w := doJSON(t, router, http.MethodGet, "/articles_by_author?id=1", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var bindings []map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &bindings); err != nil {
		t.Fatalf("invalid response: %v", err)
	}
	if len(bindings) != 2 {
		t.Errorf("got %d bindings, want 2", len(bindings))
	}
}
