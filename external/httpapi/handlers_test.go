package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/foxseedlab/tablesession/internal/broadcast"
	"github.com/foxseedlab/tablesession/internal/config"
	"github.com/foxseedlab/tablesession/internal/identity"
	"github.com/foxseedlab/tablesession/internal/repository"
	"github.com/foxseedlab/tablesession/internal/session"
)

const (
	masterToken = "master-token"
	playerToken = "player-token"
)

type stubProvider struct{}

func (stubProvider) Authenticate(_ context.Context, credential string) (identity.Actor, error) {
	switch strings.TrimPrefix(credential, "Bearer ") {
	case masterToken:
		return identity.Actor{UserID: 100, Role: identity.RoleMaster}, nil
	case playerToken:
		return identity.Actor{UserID: 200, Role: identity.RolePlayer}, nil
	default:
		return identity.Actor{}, fmt.Errorf("%w: unknown token", identity.ErrUnauthenticated)
	}
}

type stubLifecycle struct {
	session *repository.Session
	list    []repository.Session
	err     error

	calls      int
	lastID     int64
	lastName   string
	lastCampID int64
	lastActor  identity.Actor
	lastCreds  session.JoinCredentials
}

func (s *stubLifecycle) record(id int64, actor identity.Actor) (*repository.Session, error) {
	s.calls++
	s.lastID = id
	s.lastActor = actor
	if s.err != nil {
		return nil, s.err
	}
	return s.session, nil
}

func (s *stubLifecycle) CreateSession(_ context.Context, name string, campaignID int64, actor identity.Actor) (*repository.Session, error) {
	s.lastName = name
	s.lastCampID = campaignID
	return s.record(0, actor)
}

func (s *stubLifecycle) GetSession(_ context.Context, id int64) (*repository.Session, error) {
	return s.record(id, identity.Actor{})
}

func (s *stubLifecycle) ListSessions(_ context.Context, actor identity.Actor) ([]repository.Session, error) {
	s.calls++
	s.lastActor = actor
	return s.list, s.err
}

func (s *stubLifecycle) JoinSession(_ context.Context, id int64, actor identity.Actor, creds session.JoinCredentials) (*repository.Session, error) {
	s.lastCreds = creds
	return s.record(id, actor)
}

func (s *stubLifecycle) LeaveSession(_ context.Context, id int64, actor identity.Actor) (*repository.Session, error) {
	return s.record(id, actor)
}

func (s *stubLifecycle) StartSession(_ context.Context, id int64, actor identity.Actor) (*repository.Session, error) {
	return s.record(id, actor)
}

func (s *stubLifecycle) EndSession(_ context.Context, id int64, actor identity.Actor) (*repository.Session, error) {
	return s.record(id, actor)
}

type stubDispatcher struct {
	ack       *session.Ack
	err       error
	lastEvent broadcast.Event
}

func (d *stubDispatcher) BroadcastEvent(_ context.Context, sessionID int64, event broadcast.Event, _ identity.Actor) (*session.Ack, error) {
	d.lastEvent = event
	if d.err != nil {
		return nil, d.err
	}
	return d.ack, nil
}

func newTestRouter(lc *stubLifecycle, d *stubDispatcher) *gin.Engine {
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{Env: "development", LiveSendBuffer: 4}
	return NewRouter(cfg, stubProvider{}, lc, d, broadcast.NewHub())
}

func doRequest(t *testing.T, router http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode error body %q: %v", rec.Body.String(), err)
	}
	return body.Error
}

func pendingSession() *repository.Session {
	return &repository.Session{ID: 7, Name: "Night One", CampaignID: 1, MasterID: 100, Status: repository.SessionStatusPending}
}

func TestHealthz_NoAuth(t *testing.T) {
	router := newTestRouter(&stubLifecycle{}, &stubDispatcher{})
	rec := doRequest(t, router, http.MethodGet, "/healthz", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestAPI_RequiresBearer(t *testing.T) {
	lc := &stubLifecycle{}
	router := newTestRouter(lc, &stubDispatcher{})

	rec := doRequest(t, router, http.MethodGet, "/api/sessions", "", "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}
	rec = doRequest(t, router, http.MethodGet, "/api/sessions", "forged", "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad token, got %d", rec.Code)
	}
	if lc.calls != 0 {
		t.Fatalf("expected lifecycle not to be called, got %d calls", lc.calls)
	}
}

func TestCreateSession_Created(t *testing.T) {
	lc := &stubLifecycle{session: pendingSession()}
	router := newTestRouter(lc, &stubDispatcher{})

	rec := doRequest(t, router, http.MethodPost, "/api/sessions", masterToken, `{"name":"Night One","campaign_id":1}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if lc.lastName != "Night One" || lc.lastCampID != 1 || lc.lastActor.UserID != 100 {
		t.Fatalf("unexpected call: name=%q campaign=%d actor=%+v", lc.lastName, lc.lastCampID, lc.lastActor)
	}
	var got sessionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if got.ID != 7 || got.Status != "Pending" || got.ActivePlayers == nil {
		t.Fatalf("unexpected body: %+v", got)
	}
	if strings.Contains(rec.Body.String(), "started_at") {
		t.Fatalf("expected started_at to be omitted: %s", rec.Body.String())
	}
}

func TestCreateSession_MissingCampaign(t *testing.T) {
	lc := &stubLifecycle{session: pendingSession()}
	router := newTestRouter(lc, &stubDispatcher{})

	rec := doRequest(t, router, http.MethodPost, "/api/sessions", masterToken, `{"name":"Night One"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if lc.calls != 0 {
		t.Fatal("expected lifecycle not to be called")
	}
}

func TestListSessions_EmptyIsArray(t *testing.T) {
	router := newTestRouter(&stubLifecycle{}, &stubDispatcher{})
	rec := doRequest(t, router, http.MethodGet, "/api/sessions", playerToken, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if body := strings.TrimSpace(rec.Body.String()); body != "[]" {
		t.Fatalf("expected empty array, got %s", body)
	}
}

func TestJoinSession_OptionalBody(t *testing.T) {
	lc := &stubLifecycle{session: pendingSession()}
	router := newTestRouter(lc, &stubDispatcher{})

	rec := doRequest(t, router, http.MethodPost, "/api/sessions/7/join", playerToken, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if lc.lastID != 7 || lc.lastCreds != (session.JoinCredentials{}) {
		t.Fatalf("unexpected call: id=%d creds=%+v", lc.lastID, lc.lastCreds)
	}

	rec = doRequest(t, router, http.MethodPost, "/api/sessions/7/join", playerToken, `{"join_token":"abc","password":"swordfish"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if lc.lastCreds.JoinToken != "abc" || lc.lastCreds.Password != "swordfish" {
		t.Fatalf("credentials not forwarded: %+v", lc.lastCreds)
	}

	rec = doRequest(t, router, http.MethodPost, "/api/sessions/7/join", playerToken, `{"join_token":`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed body, got %d", rec.Code)
	}
}

func TestSessionIDParam_Invalid(t *testing.T) {
	lc := &stubLifecycle{session: pendingSession()}
	router := newTestRouter(lc, &stubDispatcher{})

	for _, path := range []string{"/api/sessions/abc", "/api/sessions/0", "/api/sessions/-3"} {
		rec := doRequest(t, router, http.MethodGet, path, masterToken, "")
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", path, rec.Code)
		}
	}
	if lc.calls != 0 {
		t.Fatal("expected lifecycle not to be called")
	}
}

func TestErrorMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("%w: session 7", session.ErrNotFound), http.StatusNotFound},
		{fmt.Errorf("%w: not yours", session.ErrUnauthorized), http.StatusUnauthorized},
		{fmt.Errorf("%w: masters only", session.ErrForbidden), http.StatusForbidden},
		{fmt.Errorf("%w: already ended", session.ErrInvalidState), http.StatusBadRequest},
		{fmt.Errorf("%w: bad name", session.ErrInvalidInput), http.StatusBadRequest},
		{fmt.Errorf("%w: already joined", session.ErrConflict), http.StatusConflict},
	}
	for _, tc := range cases {
		t.Run(http.StatusText(tc.want), func(t *testing.T) {
			lc := &stubLifecycle{err: tc.err}
			router := newTestRouter(lc, &stubDispatcher{})
			rec := doRequest(t, router, http.MethodPatch, "/api/sessions/7/start", masterToken, "")
			if rec.Code != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, rec.Code)
			}
			if msg := decodeError(t, rec); msg != tc.err.Error() {
				t.Fatalf("expected message %q, got %q", tc.err.Error(), msg)
			}
		})
	}
}

func TestErrorMapping_InternalHidesMessage(t *testing.T) {
	lc := &stubLifecycle{err: errors.New("load session 7: connection refused")}
	router := newTestRouter(lc, &stubDispatcher{})

	rec := doRequest(t, router, http.MethodPatch, "/api/sessions/7/end", masterToken, "")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if msg := decodeError(t, rec); strings.Contains(msg, "connection refused") {
		t.Fatalf("internal error leaked: %q", msg)
	}
}

func TestBroadcastEvent_Ack(t *testing.T) {
	d := &stubDispatcher{ack: &session.Ack{SessionID: 7, Recipients: 3, Message: "Event broadcast initiated."}}
	router := newTestRouter(&stubLifecycle{}, d)

	rec := doRequest(t, router, http.MethodPost, "/api/sessions/7/event", masterToken, `{"message":"A door creaks open."}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var got eventResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if got.Message != "Event broadcast initiated." || got.Recipients != 3 {
		t.Fatalf("unexpected body: %+v", got)
	}
	if d.lastEvent.Message != "A door creaks open." {
		t.Fatalf("unexpected event: %+v", d.lastEvent)
	}
}

func TestBroadcastEvent_Unauthorized(t *testing.T) {
	d := &stubDispatcher{err: fmt.Errorf("%w: only the session's master can send events", session.ErrUnauthorized)}
	router := newTestRouter(&stubLifecycle{}, d)

	rec := doRequest(t, router, http.MethodPost, "/api/sessions/7/event", playerToken, `{"message":"hi"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}
