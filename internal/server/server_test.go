package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/lingo-service/internal/auth"
	"github.com/yourusername/lingo-service/internal/chat"
	"github.com/yourusername/lingo-service/internal/config"
	"github.com/yourusername/lingo-service/internal/repository"
	"github.com/yourusername/lingo-service/internal/unread"
)

const avatarPrefix = "https://api.dicebear.com/7.x/personas/svg?seed="

func init() {
	gin.SetMode(gin.TestMode)
}

type stubVerifier struct{}

func (stubVerifier) VerifyWebhook(_, signature []byte) bool {
	return string(signature) == "valid"
}

type testEnv struct {
	handler  http.Handler
	provider *chat.LocalProvider
	store    *repository.BuntStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store, err := repository.NewBuntStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	issuer, err := auth.NewIssuer([]byte("test-secret"), 0)
	require.NoError(t, err)

	provider := chat.NewLocalProvider([]byte("chat-secret"), time.Hour)
	cfg := &config.Config{
		Server: config.ServerConfig{Environment: "development", AllowedOrigins: []string{"http://localhost:5173"}},
		Auth:   config.AuthConfig{JWTSecret: "test-secret", CookieName: "jwt"},
	}

	handler := NewHandler(Deps{
		Config:   cfg,
		Store:    store,
		Issuer:   issuer,
		Chat:     provider,
		Webhooks: stubVerifier{},
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	})

	return &testEnv{handler: handler, provider: provider, store: store}
}

func (e *testEnv) do(t *testing.T, method, path string, body any, cookie *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if cookie != nil {
		req.AddCookie(cookie)
	}
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, req)
	return w
}

func sessionCookie(t *testing.T, w *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range w.Result().Cookies() {
		if c.Name == "jwt" {
			return c
		}
	}
	t.Fatalf("no session cookie in response")
	return nil
}

type userBody struct {
	Success bool `json:"success"`
	User    struct {
		ID               string `json:"_id"`
		Email            string `json:"email"`
		FullName         string `json:"fullName"`
		ProfilePic       string `json:"profilePic"`
		IsOnboarded      bool   `json:"isOnboarded"`
		LearningLanguage string `json:"learningLanguage"`
		PasswordHash     string `json:"passwordHash"`
	} `json:"user"`
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func (e *testEnv) signup(t *testing.T, name, email string) (string, *http.Cookie) {
	t.Helper()
	w := e.do(t, http.MethodPost, "/api/auth/signup", map[string]string{
		"fullName": name, "email": email, "password": "secret1",
	}, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[userBody](t, w).User.ID, sessionCookie(t, w)
}

func TestSignupLoginScenario(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/auth/signup", map[string]string{
		"fullName": "Ann", "email": "ann@x.com", "password": "secret1",
	}, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	body := decode[userBody](t, w)
	assert.True(t, body.Success)
	assert.False(t, body.User.IsOnboarded)
	assert.True(t, strings.HasPrefix(body.User.ProfilePic, avatarPrefix))
	assert.Empty(t, body.User.PasswordHash)
	assert.NotContains(t, w.Body.String(), "secret1")

	cookie := sessionCookie(t, w)
	assert.True(t, cookie.HttpOnly)
	assert.False(t, cookie.Secure)
	assert.Equal(t, http.SameSiteStrictMode, cookie.SameSite)
	assert.Equal(t, int((7 * 24 * time.Hour).Seconds()), cookie.MaxAge)

	identity, ok := env.provider.User(body.User.ID)
	require.True(t, ok, "chat identity registered at signup")
	assert.Equal(t, "Ann", identity.Name)

	w = env.do(t, http.MethodPost, "/api/auth/login", map[string]string{"email": "ann@x.com", "password": "secret1"}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, sessionCookie(t, w).Value)

	wrong := env.do(t, http.MethodPost, "/api/auth/login", map[string]string{"email": "ann@x.com", "password": "wrong"}, nil)
	unknown := env.do(t, http.MethodPost, "/api/auth/login", map[string]string{"email": "bob@x.com", "password": "secret1"}, nil)
	assert.Equal(t, http.StatusUnauthorized, wrong.Code)
	assert.Equal(t, http.StatusUnauthorized, unknown.Code)
	assert.JSONEq(t, wrong.Body.String(), unknown.Body.String())
	assert.Empty(t, wrong.Result().Cookies())
}

func TestSignup_Errors(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/auth/signup", map[string]string{
		"fullName": "Ann", "email": "ann@x.com", "password": "abc",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"code":"validation_error","message":"Password must be at least 6 characters long"}`, w.Body.String())

	w = env.do(t, http.MethodPost, "/api/auth/signup", nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "All fields are required")

	w = env.do(t, http.MethodPost, "/api/auth/signup", map[string]string{
		"fullName": "Ann", "email": "ann@x.com", "password": strings.Repeat("a", 80),
	}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"code":"validation_error","message":"Password must be at most 72 bytes long"}`, w.Body.String())

	env.signup(t, "Ann", "ann@x.com")
	w = env.do(t, http.MethodPost, "/api/auth/signup", map[string]string{
		"fullName": "Other", "email": "ann@x.com", "password": "secret2",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Email already exists, please use another email")
}

func TestOnboardMeLogout(t *testing.T) {
	env := newTestEnv(t)
	_, cookie := env.signup(t, "Ann", "ann@x.com")

	w := env.do(t, http.MethodPost, "/api/auth/onboarding", map[string]string{"fullName": "Ann"}, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(t, http.MethodPost, "/api/auth/onboarding", map[string]string{
		"fullName": "Ann", "nativeLanguage": "english",
	}, cookie)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{
		"code":"validation_error",
		"message":"All fields are required",
		"missingFields":["bio","learningLanguage","location"]
	}`, w.Body.String())

	w = env.do(t, http.MethodPost, "/api/auth/onboarding", map[string]string{
		"fullName": "Ann B", "bio": "hola", "nativeLanguage": "english",
		"learningLanguage": "spanish", "location": "Oslo", "profilePic": "https://example.com/a.png",
	}, cookie)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	onboarded := decode[userBody](t, w)
	assert.True(t, onboarded.User.IsOnboarded)
	assert.Equal(t, "spanish", onboarded.User.LearningLanguage)

	w = env.do(t, http.MethodGet, "/api/auth/me", nil, cookie)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Ann B", decode[userBody](t, w).User.FullName)

	w = env.do(t, http.MethodPost, "/api/auth/logout", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true,"message":"Logged out successfully"}`, w.Body.String())
	cleared := sessionCookie(t, w)
	assert.Empty(t, cleared.Value)
	assert.Less(t, cleared.MaxAge, 0)
}

func TestFriendsAndChatToken(t *testing.T) {
	env := newTestEnv(t)
	_, annCookie := env.signup(t, "Ann", "ann@x.com")
	bobID, bobCookie := env.signup(t, "Bob", "bob@x.com")

	w := env.do(t, http.MethodPost, "/api/friends/request", map[string]string{"targetUserId": bobID}, annCookie)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	requestID := decode[map[string]string](t, w)["requestId"]

	w = env.do(t, http.MethodGet, "/api/friends/pending", nil, bobCookie)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), requestID)

	w = env.do(t, http.MethodPost, "/api/friends/accept", map[string]string{"requestId": requestID}, bobCookie)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = env.do(t, http.MethodGet, "/api/friends", nil, annCookie)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), bobID)

	w = env.do(t, http.MethodGet, "/api/chat/token", nil, annCookie)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, decode[map[string]string](t, w)["token"])

	w = env.do(t, http.MethodGet, "/api/friends", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestWebhookPublishesNewMessages(t *testing.T) {
	env := newTestEnv(t)

	received := make(chan unread.MessageEvent, 1)
	unsubscribe := env.provider.Events().Subscribe("a-b", func(ev unread.MessageEvent) {
		received <- ev
	})
	defer unsubscribe()

	payload := []byte(`{"type":"message.new","channel_id":"a-b","channel_type":"messaging","message":{"id":"m1","user":{"id":"b","name":"Bob"}}}`)

	req := httptest.NewRequest(http.MethodPost, "/api/chat/webhook", bytes.NewReader(payload))
	req.Header.Set("X-Signature", "forged")
	w := httptest.NewRecorder()
	env.handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/chat/webhook", bytes.NewReader(payload))
	req.Header.Set("X-Signature", "valid")
	w = httptest.NewRecorder()
	env.handler.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	select {
	case ev := <-received:
		assert.Equal(t, unread.MessageEvent{ChannelID: "a-b", MessageID: "m1", SenderID: "b", SenderName: "Bob"}, ev)
	case <-time.After(time.Second):
		t.Fatal("webhook event was not published")
	}
}

type push struct {
	Type       string         `json:"type"`
	Counts     map[string]int `json:"counts"`
	FriendID   string         `json:"friendId"`
	SenderName string         `json:"senderName"`
}

func readUntil(t *testing.T, conn *websocket.Conn, match func(push) bool) push {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		var p push
		require.NoError(t, conn.ReadJSON(&p))
		if match(p) {
			return p
		}
	}
}

func TestUnreadWebsocket(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	annID, annCookie := env.signup(t, "Ann", "ann@x.com")
	bobID, bobCookie := env.signup(t, "Bob", "bob@x.com")

	w := env.do(t, http.MethodPost, "/api/friends/request", map[string]string{"targetUserId": annID}, bobCookie)
	require.Equal(t, http.StatusCreated, w.Code)
	requestID := decode[map[string]string](t, w)["requestId"]
	w = env.do(t, http.MethodPost, "/api/friends/accept", map[string]string{"requestId": requestID}, annCookie)
	require.Equal(t, http.StatusOK, w.Code)

	// Two messages arrive before Ann connects
	key := unread.ChannelKey(annID, bobID)
	require.NoError(t, env.provider.Client(bobID).Channel(unread.ChannelType, key, []string{annID, bobID}).Watch(ctx))
	for _, text := range []string{"hola", "que tal"} {
		_, err := env.provider.SendMessage(key, bobID, text)
		require.NoError(t, err)
	}

	srv := httptest.NewServer(env.handler)
	defer srv.Close()

	header := http.Header{}
	header.Set("Cookie", annCookie.Name+"="+annCookie.Value)
	conn, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/api/chat/unread", header)
	require.NoError(t, err)
	defer conn.Close()
	defer resp.Body.Close()

	readUntil(t, conn, func(p push) bool { return p.Type == "counts" && p.Counts[bobID] == 2 })

	_, err = env.provider.SendMessage(key, bobID, "hello?")
	require.NoError(t, err)
	readUntil(t, conn, func(p push) bool { return p.Type == "counts" && p.Counts[bobID] == 3 })

	// Ann's own message is not counted
	_, err = env.provider.SendMessage(key, annID, "hi!")
	require.NoError(t, err)

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "ack", "friendId": bobID}))
	p := readUntil(t, conn, func(p push) bool { return p.Type == "counts" && p.Counts[bobID] != 3 })
	assert.Equal(t, 0, p.Counts[bobID])
}

func TestUnreadWebsocket_RequiresSession(t *testing.T) {
	env := newTestEnv(t)
	srv := httptest.NewServer(env.handler)
	defer srv.Close()

	_, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/api/chat/unread", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
}
