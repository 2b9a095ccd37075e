// SPDX-License-Identifier: AGPL-3.0-only

// Package session keeps the per-operator state of the dashboard: the backend
// token, the one-time authorization verifier, and the wall selection.
package session

import (
	"strconv"
	"strings"
	"sync"

	"github.com/fluffyriot/vkresender/internal/logging"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/memstore"
	"github.com/gin-gonic/gin"
)

const (
	CookieName = "vkresender"

	keyToken            = "access_token"
	keyVerifier         = "code_verifier"
	keyAuthState        = "auth_state"
	keySelected         = "selected_walls"
	keyActiveCollection = "active_collection"
	keyLastReport       = "last_report"
)

// State is everything a request handler may read or change about the
// operator session.
type State interface {
	Token() string
	SetToken(token string)
	ClearToken()

	Verifier() string
	SetVerifier(v string)
	ClearVerifier()

	AuthState() string
	SetAuthState(s string)

	Selected() []int64
	SetSelected(ids []int64)

	ActiveCollection() int64
	SetActiveCollection(id int64)

	LastReport() string
	SetLastReport(id string)

	AddNotice(msg string)
	Notices() []string

	Clear()
}

// NewStore keeps session values in process memory. The cookie only carries
// the signed session id, so a selection of any size fits.
func NewStore(secret []byte, secure bool) sessions.Store {
	store := memstore.NewStore(secret)
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   86400 * 30,
		HttpOnly: true,
		Secure:   secure,
	})
	return store
}

// Middleware loads the session and saves it once per request, right before
// the response is first written.
func Middleware(store sessions.Store, log logging.Logger) gin.HandlerFunc {
	load := sessions.Sessions(CookieName, store)

	return func(c *gin.Context) {
		w := &saveOnWrite{ResponseWriter: c.Writer}
		w.flush = func() {
			if err := sessions.Default(c).Save(); err != nil {
				log.Error(c.Request.Context(), "failed to save session", "path", c.Request.URL.Path, "error", err)
			}
		}
		c.Writer = w

		load(c)
		w.save()
	}
}

type saveOnWrite struct {
	gin.ResponseWriter
	flush func()
	once  sync.Once
}

func (w *saveOnWrite) save() { w.once.Do(w.flush) }

func (w *saveOnWrite) WriteHeader(code int) {
	w.save()
	w.ResponseWriter.WriteHeader(code)
}

func (w *saveOnWrite) WriteHeaderNow() {
	w.save()
	w.ResponseWriter.WriteHeaderNow()
}

func (w *saveOnWrite) Write(b []byte) (int, error) {
	w.save()
	return w.ResponseWriter.Write(b)
}

func (w *saveOnWrite) WriteString(s string) (int, error) {
	w.save()
	return w.ResponseWriter.WriteString(s)
}

// Cookie is the session named by the request cookie. Changes are written
// by Middleware.
type Cookie struct {
	s sessions.Session
}

func FromContext(c *gin.Context) *Cookie {
	return &Cookie{s: sessions.Default(c)}
}

func (c *Cookie) getString(key string) string {
	v, _ := c.s.Get(key).(string)
	return v
}

func (c *Cookie) set(key string, v any) { c.s.Set(key, v) }
func (c *Cookie) remove(key string)     { c.s.Delete(key) }

func (c *Cookie) Token() string { return c.getString(keyToken) }
func (c *Cookie) SetToken(token string) { c.set(keyToken, token) }
func (c *Cookie) ClearToken() { c.remove(keyToken) }

func (c *Cookie) Verifier() string { return c.getString(keyVerifier) }
func (c *Cookie) SetVerifier(v string) { c.set(keyVerifier, v) }
func (c *Cookie) ClearVerifier() { c.remove(keyVerifier) }

func (c *Cookie) AuthState() string { return c.getString(keyAuthState) }
func (c *Cookie) SetAuthState(s string) { c.set(keyAuthState, s) }
func (c *Cookie) Selected() []int64 { return DecodeIDs(c.getString(keySelected)) }
func (c *Cookie) SetSelected(ids []int64) { c.set(keySelected, EncodeIDs(ids)) }

func (c *Cookie) ActiveCollection() int64 {
	id, _ := strconv.ParseInt(c.getString(keyActiveCollection), 10, 64)
	return id
}

func (c *Cookie) SetActiveCollection(id int64) {
	if id == 0 {
		c.remove(keyActiveCollection)
		return
	}
	c.set(keyActiveCollection, strconv.FormatInt(id, 10))
}

func (c *Cookie) LastReport() string { return c.getString(keyLastReport) }
func (c *Cookie) SetLastReport(id string) { c.set(keyLastReport, id) }

func (c *Cookie) AddNotice(msg string) { c.s.AddFlash(msg) }

func (c *Cookie) Notices() []string {
	flashes := c.s.Flashes()
	if len(flashes) == 0 {
		return nil
	}

	out := make([]string, 0, len(flashes))
	for _, f := range flashes {
		if s, ok := f.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func (c *Cookie) Clear() { c.s.Clear() }

// Memory is an in-process State for the CLI and tests.
type Memory struct {
	mu               sync.Mutex
	token            string
	verifier         string
	authState        string
	selected         []int64
	activeCollection int64
	lastReport       string
	notices          []string
}

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Token() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token
}

func (m *Memory) SetToken(token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = token
}

func (m *Memory) ClearToken() { m.SetToken("") }

func (m *Memory) Verifier() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.verifier
}

func (m *Memory) SetVerifier(v string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.verifier = v
}

func (m *Memory) ClearVerifier() { m.SetVerifier("") }

func (m *Memory) AuthState() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.authState
}

func (m *Memory) SetAuthState(s string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.authState = s
}

func (m *Memory) Selected() []int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int64(nil), m.selected...)
}

func (m *Memory) SetSelected(ids []int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.selected = append([]int64(nil), ids...)
}

func (m *Memory) ActiveCollection() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.activeCollection
}

func (m *Memory) SetActiveCollection(id int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.activeCollection = id
}

func (m *Memory) LastReport() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastReport
}

func (m *Memory) SetLastReport(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastReport = id
}

func (m *Memory) AddNotice(msg string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notices = append(m.notices, msg)
}

func (m *Memory) Notices() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.notices
	m.notices = nil
	return out
}

func (m *Memory) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token, m.verifier, m.authState, m.lastReport = "", "", "", ""
	m.selected, m.notices = nil, nil
	m.activeCollection = 0
}

// EncodeIDs stores ids as a comma separated list.
func EncodeIDs(ids []int64) string {
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, strconv.FormatInt(id, 10))
	}
	return strings.Join(parts, ",")
}

// DecodeIDs is the inverse of EncodeIDs; malformed entries are skipped.
func DecodeIDs(s string) []int64 {
	if s == "" {
		return nil
	}
	var ids []int64
	for _, p := range strings.Split(s, ",") {
		id, err := strconv.ParseInt(strings.TrimSpace(p), 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}
