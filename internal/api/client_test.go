package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/google/go-cmp/cmp"

	"ctfboard/internal/board"
)

func newTestClient(t *testing.T, h http.Handler, opts Options) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	opts.BaseURL = srv.URL
	c, err := New(opts)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

func TestNewRejectsBadBaseURL(t *testing.T) {
	for _, raw := range []string{"", "ftp://ctf.example", "http://"} {
		if _, err := New(Options{BaseURL: raw}); err == nil {
			t.Fatalf("expected error for %q", raw)
		}
	}
}

func TestListChallengesSendsTokenAndDecodes(t *testing.T) {
	var auth string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		if r.URL.Path != "/api/v1/challenges" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		writeJSON(w, 200, `{"success":true,"data":[
			{"id":1,"name":"Warmup","category":"web","value":100,"type":"standard","solves":4,"solved_by_me":true,"tags":[{"value":"easy"}]},
			{"id":2,"name":"Overflow","category":"pwn","value":200,"tags":["hard"]}
		]}`)
	}), Options{Token: "ctfd_abc"})

	got, err := c.ListChallenges(context.Background())
	if err != nil {
		t.Fatalf("list challenges: %v", err)
	}
	if auth != "Token ctfd_abc" {
		t.Fatalf("expected token auth header, got %q", auth)
	}
	want := []board.Challenge{
		{ID: 1, Name: "Warmup", Category: "web", Value: 100, Type: "standard", SolveCount: 4, SolvedByMe: true, Tags: []string{"easy"}},
		{ID: 2, Name: "Overflow", Category: "pwn", Value: 200, Tags: []string{"hard"}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("challenges (-want +got):\n%s", diff)
	}
}

func TestSessionCookieUsedWithoutToken(t *testing.T) {
	var cookie string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ck, err := r.Cookie("session"); err == nil {
			cookie = ck.Value
		}
		writeJSON(w, 200, `{"success":true,"data":[]}`)
	}), Options{SessionCookie: "s3ss"})

	if _, err := c.ListSolves(context.Background()); err != nil {
		t.Fatalf("list solves: %v", err)
	}
	if cookie != "s3ss" {
		t.Fatalf("expected session cookie, got %q", cookie)
	}
}

func TestListSolvesDecodesChallengeValue(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 200, `{"success":true,"data":[
			{"challenge_id":1,"challenge":{"id":1,"name":"Warmup","value":100,"category":"web"},"date":"2026-10-18T09:30:00.123456+00:00","type":"correct"}
		]}`)
	}), Options{})

	got, err := c.ListSolves(context.Background())
	if err != nil {
		t.Fatalf("list solves: %v", err)
	}
	if len(got) != 1 || got[0].ChallengeID != 1 || got[0].Value != 100 || got[0].Name != "Warmup" {
		t.Fatalf("unexpected solves %+v", got)
	}
	if got[0].Date.IsZero() || got[0].Date.Hour() != 9 {
		t.Fatalf("expected parsed date, got %v", got[0].Date)
	}
}

func TestGetHintLockedAndUnlocked(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/hints/3":
			writeJSON(w, 200, `{"success":true,"data":{"id":3,"challenge":1,"cost":50,"type":"standard","view":"locked"}}`)
		case "/api/v1/hints/4":
			writeJSON(w, 200, `{"success":true,"data":{"id":4,"challenge":1,"cost":0,"content":"look at <a href=\"https://x.test\">x</a>","html":"<p>look</p>"}}`)
		default:
			http.NotFound(w, r)
		}
	}), Options{})

	locked, err := c.GetHint(context.Background(), 3)
	if err != nil {
		t.Fatalf("get hint: %v", err)
	}
	if !locked.Locked || locked.Cost != 50 || locked.ChallengeID != 1 {
		t.Fatalf("expected locked hint with cost, got %+v", locked)
	}
	open, err := c.GetHint(context.Background(), 4)
	if err != nil {
		t.Fatalf("get hint: %v", err)
	}
	if open.Locked || !strings.Contains(open.Content, "https://x.test") {
		t.Fatalf("expected unlocked hint content, got %+v", open)
	}
}

func TestGetChallengeDetail(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 200, `{"success":true,"data":{"id":7,"name":"Pad","category":"crypto","value":300,
			"description":"xor it","connection_info":"nc host 1337","attempts":2,"max_attempts":5,
			"files":["/files/abc/pad.py"],"hints":[{"id":9,"cost":25}],"view":"<a href=\"http://x\">x</a>"}}`)
	}), Options{})

	got, err := c.GetChallenge(context.Background(), 7)
	if err != nil {
		t.Fatalf("get challenge: %v", err)
	}
	if got.ID != 7 || got.ConnectionInfo != "nc host 1337" || got.MaxAttempts != 5 || got.Attempts != 2 {
		t.Fatalf("unexpected detail %+v", got)
	}
	if diff := cmp.Diff([]board.HintSummary{{ID: 9, Cost: 25}}, got.Hints); diff != "" {
		t.Fatalf("hints (-want +got):\n%s", diff)
	}
}

func TestUnlockHintDenied(t *testing.T) {
	var body unlockRequest
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&body)
		writeJSON(w, 400, `{"success":false,"errors":{"score":"You do not have enough points to unlock this hint"}}`)
	}), Options{})

	err := c.UnlockHint(context.Background(), 3)
	if !errors.Is(err, ErrUnlockDenied) {
		t.Fatalf("expected unlock denied, got %v", err)
	}
	if Reason(err) != "You do not have enough points to unlock this hint" {
		t.Fatalf("unexpected reason %q", Reason(err))
	}
	if body.Target != 3 || body.Type != "hints" {
		t.Fatalf("unexpected unlock body %+v", body)
	}
}

func TestSubmitStatuses(t *testing.T) {
	cases := []struct {
		status int
		body   string
		want   board.AttemptStatus
	}{
		{200, `{"success":true,"data":{"status":"correct","message":"Correct"}}`, board.StatusCorrect},
		{200, `{"success":true,"data":{"status":"incorrect","message":"Incorrect"}}`, board.StatusIncorrect},
		{200, `{"success":true,"data":{"status":"already_solved","message":"You already solved this"}}`, board.StatusAlreadySolved},
		{403, `{"success":true,"data":{"status":"paused","message":"CTF is paused"}}`, board.StatusPaused},
		{429, `{"success":true,"data":{"status":"ratelimited","message":"Slow down."}}`, board.StatusRateLimited},
	}
	for _, tc := range cases {
		var got attemptRequest
		c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewDecoder(r.Body).Decode(&got)
			writeJSON(w, tc.status, tc.body)
		}), Options{})
		res, err := c.Submit(context.Background(), 5, "flag{x}")
		if err != nil {
			t.Fatalf("submit (%s): %v", tc.want, err)
		}
		if res.Status != tc.want || res.ChallengeID != 5 || res.Message == "" {
			t.Fatalf("expected %s, got %+v", tc.want, res)
		}
		if got.ChallengeID != 5 || got.Submission != "flag{x}" {
			t.Fatalf("unexpected attempt body %+v", got)
		}
	}
}

func TestSubmitValidationEnvelope(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 400, `{"success":false,"errors":{"submission":"field required"}}`)
	}), Options{})

	_, err := c.Submit(context.Background(), 5, "x")
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	var apiErr *Error
	if !errors.As(err, &apiErr) || apiErr.Fields["submission"] != "field required" {
		t.Fatalf("expected field message, got %+v", apiErr)
	}
}

func TestClassifiesAuthFailures(t *testing.T) {
	unauthorized := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 401, `{"success":false,"message":"token expired"}`)
	}), Options{Token: "old"})
	if _, err := unauthorized.ListChallenges(context.Background()); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}

	redirect := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/login?next=%2Fapi%2Fv1%2Fchallenges", http.StatusFound)
	}), Options{})
	if _, err := redirect.ListChallenges(context.Background()); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected login redirect to be unauthorized, got %v", err)
	}
}

func TestNotFound(t *testing.T) {
	c := newTestClient(t, http.NotFoundHandler(), Options{})
	if _, err := c.GetChallenge(context.Background(), 99); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestServerErrorsTripBreaker(t *testing.T) {
	var hits atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}), Options{})

	for i := 0; i < 5; i++ {
		_, err := c.ListChallenges(context.Background())
		if !errors.Is(err, ErrNetwork) {
			t.Fatalf("call %d: expected network error, got %v", i, err)
		}
	}
	if n := hits.Load(); n != 3 {
		t.Fatalf("expected breaker to stop calls after 3 failures, server saw %d", n)
	}
}

func TestTransportFailureIsNetwork(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := New(Options{BaseURL: url})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	_, err = c.ListSolves(context.Background())
	if !errors.Is(err, ErrNetwork) {
		t.Fatalf("expected network error, got %v", err)
	}
	if Kind(err) != ErrNetwork {
		t.Fatalf("expected network kind, got %v", Kind(err))
	}
	if Kind(errors.New("x")) != nil {
		t.Fatalf("plain errors have no kind")
	}
}
