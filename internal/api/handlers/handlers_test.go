// SPDX-License-Identifier: AGPL-3.0-only
package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fluffyriot/vkresender/internal/config"
	"github.com/fluffyriot/vkresender/internal/logging"
	"github.com/fluffyriot/vkresender/internal/reports"
	"github.com/fluffyriot/vkresender/internal/session"
	"github.com/fluffyriot/vkresender/internal/vkapi"
	"github.com/fluffyriot/vkresender/internal/web"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBackend mimics the VK-resender REST API.
type fakeBackend struct {
	mu          sync.Mutex
	token       string
	callbacks   []url.Values
	added       [][]string
	created     []string
	deleted     []string
	addedToColl map[string][]string
	posts       []postCall
	walls       []vkapi.Wall
	collections []vkapi.Collection
}

type postCall struct {
	groupIDs []string
	messages []string
	images   []string
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		token: "tok",
		walls: []vkapi.Wall{
			{ID: 1, Name: "Furry Market", ScreenName: "furmarket"},
			{ID: 2, Name: "Art Trade", ScreenName: "arttrade"},
		},
		collections: []vkapi.Collection{
			{ID: 7, Name: "Weekly", Groups: []vkapi.Wall{{ID: 2, Name: "Art Trade", ScreenName: "arttrade"}}},
		},
		addedToColl: map[string][]string{},
	}
}

func (f *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if r.URL.Path == "/users/callback" {
		q := r.URL.Query()
		f.callbacks = append(f.callbacks, q)
		switch q.Get("code") {
		case "good":
			writeJSON(w, http.StatusOK, map[string]any{"access": f.token})
		case "link":
			writeJSON(w, http.StatusOK, map[string]any{"message": "linked"})
		default:
			writeJSON(w, http.StatusBadRequest, map[string]any{"detail": "invalid code"})
		}
		return
	}

	if r.Header.Get("Authorization") != "Bearer "+f.token || f.token == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"detail": "unauthorized"})
		return
	}

	q := r.URL.Query()
	switch r.URL.Path {
	case "/vk/get_groups":
		writeJSON(w, http.StatusOK, f.walls)
	case "/vk/get_users":
		writeJSON(w, http.StatusOK, []map[string]any{
			{"id": 10, "first_name": "Anna", "last_name": "Petrova", "postCount": 4},
		})
	case "/vk/add_groups":
		f.added = append(f.added, q["group_ids"])
		writeJSON(w, http.StatusOK, map[string]any{})
	case "/vk/collections":
		writeJSON(w, http.StatusOK, f.collections)
	case "/vk/create_collection":
		f.created = append(f.created, q.Get("name"))
		writeJSON(w, http.StatusOK, map[string]any{})
	case "/vk/delete_collection":
		f.deleted = append(f.deleted, q.Get("collection_id"))
		writeJSON(w, http.StatusOK, map[string]any{})
	case "/vk/add_group_to_collection":
		id := q.Get("collection_id")
		f.addedToColl[id] = append(f.addedToColl[id], q["group_ids"]...)
		writeJSON(w, http.StatusOK, map[string]any{})
	case "/vk/wall.post":
		f.handleWallPost(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (f *fakeBackend) handleWallPost(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(10 << 20); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"detail": err.Error()})
		return
	}
	call := postCall{
		groupIDs: r.URL.Query()["group_ids"],
		messages: r.MultipartForm.Value["messages"],
	}
	for _, fh := range r.MultipartForm.File["images"] {
		call.images = append(call.images, fh.Filename)
	}
	f.posts = append(f.posts, call)

	var parts []string
	for _, gid := range call.groupIDs {
		var outcomes []string
		for i := range call.messages {
			if gid == "-2" {
				outcomes = append(outcomes, `{"error": {"error_msg": "Access denied"}}`)
				continue
			}
			outcomes = append(outcomes, fmt.Sprintf(`{"post_id": %d}`, 100+i))
		}
		parts = append(parts, fmt.Sprintf("%q: [%s]", gid, strings.Join(outcomes, ",")))
	}
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"message": {%s}}`, strings.Join(parts, ","))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// browser keeps the session cookie between requests.
type browser struct {
	t       *testing.T
	router  *gin.Engine
	cookies map[string]*http.Cookie
}

func (b *browser) do(req *http.Request) *httptest.ResponseRecorder {
	b.t.Helper()
	for _, c := range b.cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	b.router.ServeHTTP(w, req)
	for _, c := range w.Result().Cookies() {
		if c.MaxAge < 0 {
			delete(b.cookies, c.Name)
			continue
		}
		b.cookies[c.Name] = c
	}
	return w
}

func (b *browser) get(path string) *httptest.ResponseRecorder {
	return b.do(httptest.NewRequest(http.MethodGet, path, nil))
}

func (b *browser) postForm(path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return b.do(req)
}

func (b *browser) postMultipart(path string, fields map[string]string, files map[string][]byte, fileField string) *httptest.ResponseRecorder {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(b.t, mw.WriteField(k, v))
	}
	for name, data := range files {
		fw, err := mw.CreateFormFile(fileField, name)
		require.NoError(b.t, err)
		_, err = fw.Write(data)
		require.NoError(b.t, err)
	}
	require.NoError(b.t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return b.do(req)
}

var stateRe = regexp.MustCompile(`state=([0-9a-f-]{36})`)

// login runs the redirect flow against the fake backend.
func (b *browser) login() {
	b.t.Helper()
	page := b.get("/auth")
	require.Equal(b.t, http.StatusOK, page.Code)

	m := stateRe.FindStringSubmatch(page.Body.String())
	require.Len(b.t, m, 2, "auth page has no state")

	w := b.get("/redirect?code=good&device_id=d1&state=" + m[1])
	require.Equal(b.t, http.StatusFound, w.Code)
	require.Equal(b.t, "/main", w.Header().Get("Location"))
}

type testEnv struct {
	backend *fakeBackend
	reports *reports.Memory
	browser *browser
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	be := newFakeBackend()
	srv := httptest.NewServer(be)
	t.Cleanup(srv.Close)

	cfg := &config.AppConfig{
		BackendURL:    srv.URL,
		SessionSecret: []byte("0123456789abcdef0123456789abcdef"),
		VKAppID:       "52916450",
		VKRedirectURL: "http://localhost:8080/redirect",
		VKScope:       []string{"wall", "groups", "photos"},
		HTTPTimeout:   5 * time.Second,
	}
	store := reports.NewMemory()
	h := NewHandler(nil, vkapi.NewClient(srv.URL, cfg.HTTPTimeout), store, cfg, nil, logging.Discard())

	r := gin.New()
	require.NoError(t, web.Load(r))
	h.RegisterRoutes(r, session.NewStore(cfg.SessionSecret, false))

	return &testEnv{
		backend: be,
		reports: store,
		browser: &browser{t: t, router: r, cookies: map[string]*http.Cookie{}},
	}
}

func TestAuthPage_RendersWidgetConfig(t *testing.T) {
	env := newTestEnv(t)

	w := env.browser.get("/auth")

	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "VKID.Config.init")
	assert.Contains(t, body, "code_challenge_method=S256")
	assert.Regexp(t, stateRe, body)
}

func TestRedirect_ExchangesAndOpensDashboard(t *testing.T) {
	env := newTestEnv(t)
	env.browser.login()

	require.Len(t, env.backend.callbacks, 1)
	cb := env.backend.callbacks[0]
	assert.Equal(t, "good", cb.Get("code"))
	assert.Equal(t, "d1", cb.Get("device_id"))
	assert.NotEmpty(t, cb.Get("state"))
	assert.NotEmpty(t, cb.Get("code_verifier"))

	w := env.browser.get("/main")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Furry Market")
	assert.Contains(t, w.Body.String(), "Weekly")
	assert.Contains(t, w.Body.String(), "Четыре переноса строки подряд")

	// the verifier is single use
	w = env.browser.get("/redirect?code=good&device_id=d1&state=" + cb.Get("state"))
	assert.Equal(t, "/auth", w.Header().Get("Location"))
	assert.Len(t, env.backend.callbacks, 1)
}

func TestRedirect_WithoutVerifierSkipsExchange(t *testing.T) {
	env := newTestEnv(t)

	w := env.browser.get("/redirect?code=good&device_id=d1&state=s1")

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/auth", w.Header().Get("Location"))
	assert.Empty(t, env.backend.callbacks)
}

func TestRedirect_LinkedAccountStaysOnAuth(t *testing.T) {
	env := newTestEnv(t)
	page := env.browser.get("/auth")
	state := stateRe.FindStringSubmatch(page.Body.String())[1]

	w := env.browser.get("/redirect?code=link&device_id=d1&state=" + state)
	assert.Equal(t, "/auth", w.Header().Get("Location"))

	w = env.browser.get("/main")
	assert.Equal(t, http.StatusFound, w.Code)

	w = env.browser.get("/auth")
	assert.Contains(t, w.Body.String(), msgAccountLinked)
}

func TestRedirect_ExchangeErrorShowsDetail(t *testing.T) {
	env := newTestEnv(t)
	page := env.browser.get("/auth")
	state := stateRe.FindStringSubmatch(page.Body.String())[1]

	w := env.browser.get("/redirect?code=bad&device_id=d1&state=" + state)
	assert.Equal(t, "/auth", w.Header().Get("Location"))

	w = env.browser.get("/auth")
	assert.Contains(t, w.Body.String(), "invalid code")
}

func TestWidgetCallback(t *testing.T) {
	env := newTestEnv(t)
	page := env.browser.get("/auth")
	state := stateRe.FindStringSubmatch(page.Body.String())[1]

	req := httptest.NewRequest(http.MethodPost, "/auth/widget",
		strings.NewReader(fmt.Sprintf(`{"code":"good","device_id":"d1","state":%q}`, state)))
	req.Header.Set("Content-Type", "application/json")
	w := env.browser.do(req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"next":"/main","phase":"authorized"}`, w.Body.String())

	req = httptest.NewRequest(http.MethodPost, "/auth/widget", strings.NewReader(`{"error":"popup closed"}`))
	req.Header.Set("Content-Type", "application/json")
	w = env.browser.do(req)

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "/auth", body["next"])
	assert.Equal(t, "failed", body["phase"])
	assert.Contains(t, body["error"], "popup closed")
}

func TestMain_RevokedTokenReturnsToAuth(t *testing.T) {
	env := newTestEnv(t)
	env.browser.login()

	env.backend.mu.Lock()
	env.backend.token = "rotated"
	env.backend.mu.Unlock()

	w := env.browser.get("/main")
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/auth", w.Header().Get("Location"))

	env.backend.mu.Lock()
	env.backend.token = "tok"
	env.backend.mu.Unlock()

	w = env.browser.get("/main")
	assert.Equal(t, "/auth", w.Header().Get("Location"))
}

var reportLinkRe = regexp.MustCompile(`/reports/([0-9a-f-]{36})`)

func TestSendPost_ReportDownload(t *testing.T) {
	env := newTestEnv(t)
	env.browser.login()

	env.browser.postForm("/walls/toggle", url.Values{"id": {"1"}})
	env.browser.postForm("/walls/toggle", url.Values{"id": {"2"}})

	w := env.browser.postMultipart("/posts", map[string]string{"text": "first\r\n\r\n\r\n\r\nsecond"}, nil, "images")
	require.Equal(t, http.StatusFound, w.Code)

	require.Len(t, env.backend.posts, 1)
	call := env.backend.posts[0]
	assert.Equal(t, []string{"-1", "-2"}, call.groupIDs)
	assert.Equal(t, []string{"first", "second"}, call.messages)

	page := env.browser.get("/main")
	m := reportLinkRe.FindStringSubmatch(page.Body.String())
	require.Len(t, m, 2)
	assert.Contains(t, page.Body.String(), msgPostsSent)

	w = env.browser.get("/reports/" + m[1])
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "result.txt")
	assert.Equal(t, strings.Join([]string{
		"https://vk.com/wall-1_100",
		"https://vk.com/wall-1_101",
		"https://vk.com/club-2. Ошибка - Access denied",
		"https://vk.com/club-2. Ошибка - Access denied",
	}, "\n"), w.Body.String())
}

func TestSendPost_ValidationMakesNoCall(t *testing.T) {
	env := newTestEnv(t)
	env.browser.login()

	w := env.browser.postMultipart("/posts", map[string]string{"text": "hello"}, nil, "images")
	assert.Equal(t, http.StatusFound, w.Code)

	env.browser.postForm("/walls/toggle", url.Values{"id": {"1"}})
	env.browser.postMultipart("/posts", map[string]string{"text": "   "}, nil, "images")
	env.browser.postMultipart("/posts", map[string]string{"text": "hi"}, map[string][]byte{"clip.gif": []byte("GIF89a")}, "images")

	assert.Empty(t, env.backend.posts)

	page := env.browser.get("/main").Body.String()
	assert.Contains(t, page, "Выберите хотя бы одну группу")
	assert.Contains(t, page, "Вы забыли ввести сообщение")
	assert.Contains(t, page, "Недопустимый тип файла")
}

func TestSelectAllRespectsFilter(t *testing.T) {
	env := newTestEnv(t)
	env.browser.login()

	env.browser.postForm("/walls/select-all", url.Values{"q": {"market"}})
	env.browser.postMultipart("/posts", map[string]string{"text": "hi"}, nil, "images")

	require.Len(t, env.backend.posts, 1)
	assert.Equal(t, []string{"-1"}, env.backend.posts[0].groupIDs)
}

func TestSelectAll_LargeSelectionReachesPost(t *testing.T) {
	env := newTestEnv(t)

	env.backend.mu.Lock()
	env.backend.walls = nil
	for i := 0; i < 260; i++ {
		env.backend.walls = append(env.backend.walls, vkapi.Wall{
			ID:         220000000 + int64(i),
			Name:       fmt.Sprintf("Wall %d", i),
			ScreenName: fmt.Sprintf("wall%d", i),
		})
	}
	env.backend.mu.Unlock()

	env.browser.login()
	env.browser.postForm("/walls/select-all", nil)
	env.browser.postMultipart("/posts", map[string]string{"text": "hi"}, nil, "images")

	require.Len(t, env.backend.posts, 1)
	groupIDs := env.backend.posts[0].groupIDs
	require.Len(t, groupIDs, 260)
	assert.Equal(t, "-220000000", groupIDs[0])
	assert.Equal(t, "-220000259", groupIDs[259])
}

func TestImportWalls(t *testing.T) {
	env := newTestEnv(t)
	env.browser.login()

	w := env.browser.postMultipart("/walls/import", nil, map[string][]byte{"groups.txt": []byte("\n  \r\n123\r\n456\n")}, "file")
	require.Equal(t, http.StatusFound, w.Code)

	require.Len(t, env.backend.added, 1)
	assert.Equal(t, []string{"123", "456"}, env.backend.added[0])
	assert.Contains(t, env.browser.get("/main").Body.String(), "Импортировано групп: 2")
}

func TestCollections(t *testing.T) {
	env := newTestEnv(t)
	env.browser.login()

	env.browser.postForm("/collections", url.Values{"name": {"   "}})
	assert.Empty(t, env.backend.created)
	assert.Contains(t, env.browser.get("/main").Body.String(), "Введите название коллекции")

	env.browser.postForm("/collections", url.Values{"name": {" Daily "}})
	assert.Equal(t, []string{"Daily"}, env.backend.created)

	// adding without opening the collection first is rejected
	env.browser.postForm("/collections/7/groups", url.Values{"group_ids": {"1"}})
	assert.Empty(t, env.backend.addedToColl)
	assert.Contains(t, env.browser.get("/main").Body.String(), "Не выбрана коллекция")

	env.browser.postForm("/collections/7/open", nil)
	env.browser.postForm("/collections/7/groups", url.Values{"group_ids": {"1", "2"}})
	assert.Equal(t, []string{"1"}, env.backend.addedToColl["7"])

	env.browser.postForm("/collections/7/use", nil)
	env.browser.postMultipart("/posts", map[string]string{"text": "hi"}, nil, "images")
	require.Len(t, env.backend.posts, 1)
	assert.Equal(t, []string{"-2"}, env.backend.posts[0].groupIDs)

	env.browser.postForm("/collections/7/delete", nil)
	assert.Equal(t, []string{"7"}, env.backend.deleted)
}

func TestUsersAPI(t *testing.T) {
	env := newTestEnv(t)

	w := env.browser.get("/api/users")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	env.browser.login()
	w = env.browser.get("/api/users")
	require.Equal(t, http.StatusOK, w.Code)

	body, err := io.ReadAll(w.Body)
	require.NoError(t, err)
	assert.JSONEq(t, `{"accounts":[{"id":10,"name":"Anna Petrova","initials":"AP","post_count":4}],"total_posts":4}`, string(body))
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	w := env.browser.get("/health")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","storage":"memory"}`, w.Body.String())
}

func TestReportDownload_NotFound(t *testing.T) {
	env := newTestEnv(t)
	env.browser.login()

	assert.Equal(t, http.StatusBadRequest, env.browser.get("/reports/nope").Code)
	assert.Equal(t, http.StatusNotFound, env.browser.get("/reports/1b4e28ba-2fa1-11d2-883f-0016d3cca427").Code)
}
