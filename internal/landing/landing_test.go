package landing

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/macworld/concierge/internal/conversation"
	"github.com/macworld/concierge/internal/db"
	"github.com/macworld/concierge/internal/llm"
	"github.com/macworld/concierge/internal/snapshot"
)

type echoGenerator struct {
	mu  sync.Mutex
	err error
}

func (g *echoGenerator) Reply(_ context.Context, msgs []llm.Message) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return "", g.err
	}
	return "Noted: " + msgs[len(msgs)-1].Content, nil
}

type countingNotifier struct {
	mu    sync.Mutex
	leads []conversation.Lead
}

func (n *countingNotifier) Notify(_ context.Context, lead conversation.Lead) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.leads = append(n.leads, lead)
	return nil
}

func (n *countingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.leads)
}

type fixture struct {
	router   chi.Router
	registry *Registry
	gen      *echoGenerator
	notifier *countingNotifier
	store    *snapshot.SQLiteStore
}

func setup(t *testing.T) *fixture {
	t.Helper()
	database, err := db.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	f := &fixture{
		gen:      &echoGenerator{},
		notifier: &countingNotifier{},
		store:    snapshot.NewSQLiteStore(database),
	}
	f.registry = NewRegistry(conversation.DialogueOptions{
		Generator:    f.gen,
		Notifier:     f.notifier,
		Store:        f.store,
		ReplyTimeout: time.Second,
	})
	f.router = chi.NewRouter()
	New(f.registry, nil).RegisterRoutes(f.router)
	return f
}

func (f *fixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestRESTDialogue(t *testing.T) {
	f := setup(t)

	w := f.do(t, http.MethodPost, "/api/chat/sessions", "")
	require.Equal(t, http.StatusCreated, w.Code)
	view := decode[conversation.View](t, w)
	require.NotEmpty(t, view.Key)
	assert.Equal(t, conversation.StepDevice, view.Step)
	require.Len(t, view.Messages, 1)
	assert.Equal(t, conversation.Greeting, view.Messages[0].Content)

	base := "/api/chat/sessions/" + view.Key
	var last messageResponse
	for _, text := range []string{"iPhone 13 screen cracked", "Ada Obi, ada@example.com", "Friday 2pm"} {
		w = f.do(t, http.MethodPost, base+"/messages", `{"content":"`+text+`"}`)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		last = decode[messageResponse](t, w)
		assert.Equal(t, "Noted: "+text, last.Reply)
	}

	assert.True(t, last.Completed)
	assert.Equal(t, conversation.StepComplete, last.Session.Step)
	assert.Equal(t, conversation.StatusSuccess, last.Session.Status.State)
	assert.Equal(t, 1, f.notifier.count())

	// A fresh registry (a restarted server) resumes from the store.
	f2 := NewRegistry(conversation.DialogueOptions{Store: f.store})
	resumed := f2.Get(context.Background(), view.Key).View()
	assert.Equal(t, conversation.StepComplete, resumed.Step)
	assert.Len(t, resumed.Messages, 7)

	w = f.do(t, http.MethodGet, base, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Friday 2pm", decode[conversation.View](t, w).Slots.PreferredTime)

	w = f.do(t, http.MethodPost, base+"/notify", "")
	assert.Equal(t, http.StatusConflict, w.Code)

	w = f.do(t, http.MethodDelete, base, "")
	require.Equal(t, http.StatusOK, w.Code)
	reset := decode[conversation.View](t, w)
	assert.Equal(t, conversation.StepDevice, reset.Step)
	assert.Len(t, reset.Messages, 1)
}

func TestRESTBlankMessageIsIgnored(t *testing.T) {
	f := setup(t)
	view := decode[conversation.View](t, f.do(t, http.MethodPost, "/api/chat/sessions", ""))

	w := f.do(t, http.MethodPost, "/api/chat/sessions/"+view.Key+"/messages", `{"content":"   "}`)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[messageResponse](t, w)
	assert.Empty(t, resp.Reply)
	assert.Len(t, resp.Session.Messages, 1)
}

func TestRESTGeneratorFailure(t *testing.T) {
	f := setup(t)
	view := decode[conversation.View](t, f.do(t, http.MethodPost, "/api/chat/sessions", ""))

	f.gen.err = errors.New("upstream 503")
	w := f.do(t, http.MethodPost, "/api/chat/sessions/"+view.Key+"/messages", `{"content":"iPad"}`)
	require.Equal(t, http.StatusBadGateway, w.Code)
	resp := decode[errorResponse](t, w)
	assert.Equal(t, conversation.MsgRobUnavailable, resp.Message)
	require.NotNil(t, resp.Session)
	assert.Equal(t, conversation.MsgRobUnavailable, resp.Session.ChatError)
	assert.Equal(t, conversation.StepDevice, resp.Session.Step)
	assert.Len(t, resp.Session.Messages, 1)
}

func TestRESTNotifyFillsMissingEmail(t *testing.T) {
	f := setup(t)
	view := decode[conversation.View](t, f.do(t, http.MethodPost, "/api/chat/sessions", ""))
	base := "/api/chat/sessions/" + view.Key

	// The email step takes any text, so reach completion with an empty
	// email by restoring a snapshot that already skipped it.
	s := conversation.NewSession()
	s.Step = conversation.StepTime
	s.Slots = conversation.Slots{Device: "iPad", ContactRaw: "Ada, 0801", ClientName: "Ada", ClientPhone: "0801"}
	data, err := s.Encode()
	require.NoError(t, err)
	require.NoError(t, f.store.Write(context.Background(), view.Key, data, 0))
	f.registry.Get(context.Background(), view.Key).Load(context.Background())

	w := f.do(t, http.MethodPost, base+"/messages", `{"content":"Monday"}`)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[messageResponse](t, w)
	assert.Equal(t, conversation.MsgNeedEmail, resp.Session.Status.Message)
	assert.Equal(t, 0, f.notifier.count())

	w = f.do(t, http.MethodPost, base+"/notify", `{"email":"ada@example.com"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	v := decode[conversation.View](t, w)
	assert.Equal(t, conversation.StatusSuccess, v.Status.State)
	assert.Equal(t, 1, f.notifier.count())
}

func TestRESTRejectsBadKeys(t *testing.T) {
	f := setup(t)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/api/chat/sessions/not-a-uuid", "").Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/api/chat/sessions/x/messages", `{"content":"hi"}`).Code)
	assert.Equal(t, 0, f.registry.Len())
}

func TestIndexPage(t *testing.T) {
	f := setup(t)
	w := f.do(t, http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "/ws/chat")
}

func TestWebSocketChat(t *testing.T) {
	f := setup(t)
	srv := httptest.NewServer(f.router)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/chat"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	read := func() chatResponse {
		t.Helper()
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		var resp chatResponse
		require.NoError(t, conn.ReadJSON(&resp))
		return resp
	}

	require.NoError(t, conn.WriteJSON(chatRequest{Type: "state"}))
	state := read()
	assert.Equal(t, "state", state.Type)
	require.NotEmpty(t, state.SessionID)
	key := state.SessionID

	for _, text := range []string{"MacBook Air battery", "Tunde, tunde@example.com"} {
		require.NoError(t, conn.WriteJSON(chatRequest{Type: "message", SessionID: key, Content: text}))
		resp := read()
		assert.Equal(t, "response", resp.Type)
		assert.Equal(t, "Noted: "+text, resp.Content)
	}

	require.NoError(t, conn.WriteJSON(chatRequest{Type: "message", SessionID: key, Content: "Saturday"}))
	resp := read()
	assert.Equal(t, "response", resp.Type)
	status := read()
	assert.Equal(t, "status", status.Type)
	assert.Equal(t, conversation.MsgSent, status.Content)

	require.NoError(t, conn.WriteJSON(chatRequest{Type: "notify", SessionID: key}))
	errResp := read()
	assert.Equal(t, "error", errResp.Type)
	assert.Equal(t, conversation.ErrAlreadyNotified.Error(), errResp.Content)

	require.NoError(t, conn.WriteJSON(chatRequest{Type: "dance", SessionID: key}))
	assert.Equal(t, "error", read().Type)

	require.NoError(t, conn.WriteJSON(chatRequest{Type: "state", SessionID: "bogus"}))
	assert.Equal(t, "invalid session id", read().Content)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{")))
	assert.Equal(t, "invalid message format", read().Content)
}

func TestRegistrySweep(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	r := NewRegistry(conversation.DialogueOptions{})
	r.now = func() time.Time { return now }

	a := r.Create(context.Background())
	now = now.Add(time.Hour)
	b := r.Create(context.Background())
	assert.Equal(t, 2, r.Len())

	assert.Same(t, a, r.Get(context.Background(), a.Key()))

	now = now.Add(30 * time.Minute)
	assert.Equal(t, 0, r.Sweep(45*time.Minute))

	now = now.Add(time.Hour)
	assert.Equal(t, 2, r.Sweep(45*time.Minute))
	assert.Equal(t, 0, r.Len())
	assert.NotSame(t, b, r.Get(context.Background(), b.Key()))
}

// gatedStore holds the first read of one key until gate is closed.
type gatedStore struct {
	key     string
	gate    chan struct{}
	entered chan struct{}

	mu    sync.Mutex
	reads int
}

func (s *gatedStore) Read(ctx context.Context, key string) ([]byte, error) {
	if key == s.key {
		s.mu.Lock()
		s.reads++
		s.mu.Unlock()
		s.entered <- struct{}{}
		<-s.gate
	}
	return nil, conversation.ErrNotFound
}

func (s *gatedStore) Write(context.Context, string, []byte, time.Duration) error { return nil }
func (s *gatedStore) Clear(context.Context, string) error { return nil }

func TestRegistryLoadsOutsideLock(t *testing.T) {
	store := &gatedStore{key: "slow", gate: make(chan struct{}), entered: make(chan struct{}, 2)}
	r := NewRegistry(conversation.DialogueOptions{Store: store})

	var (
		clockMu sync.Mutex
		now     = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	)
	r.now = func() time.Time {
		clockMu.Lock()
		defer clockMu.Unlock()
		return now
	}

	got := make(chan *conversation.Dialogue, 2)
	for i := 0; i < 2; i++ {
		go func() { got <- r.Get(context.Background(), "slow") }()
	}
	<-store.entered

	other := make(chan *conversation.Dialogue, 1)
	go func() { other <- r.Get(context.Background(), "other") }()
	select {
	case d := <-other:
		assert.Equal(t, "other", d.Key())
	case <-time.After(2 * time.Second):
		t.Fatal("a slow load blocked another key")
	}

	clockMu.Lock()
	now = now.Add(2 * time.Hour)
	clockMu.Unlock()
	assert.Equal(t, 1, r.Sweep(time.Hour), "only the loaded dialogue is swept")
	assert.Equal(t, 1, r.Len())

	close(store.gate)
	a, b := <-got, <-got
	assert.Same(t, a, b)
	assert.Equal(t, conversation.StepDevice, a.View().Step)

	store.mu.Lock()
	defer store.mu.Unlock()
	assert.Equal(t, 1, store.reads)
}
