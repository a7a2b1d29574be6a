package api

import (
	"context"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/starcourier/starcourier/pkg/apperr"
	"github.com/starcourier/starcourier/pkg/models"
	"github.com/starcourier/starcourier/pkg/retry"
	"github.com/starcourier/starcourier/testutil"
)

// noSleep records retry delays without waiting.
type noSleep struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (n *noSleep) sleep(ctx context.Context, d time.Duration) error {
	n.mu.Lock()
	n.delays = append(n.delays, d)
	n.mu.Unlock()
	return ctx.Err()
}

func newTestClient(t *testing.T, baseURL string, opts ...Option) (*Client, *noSleep) {
	t.Helper()
	ns := &noSleep{}
	p := retry.Default()
	p.Sleep = ns.sleep
	all := append([]Option{WithoutLogging(), WithRetry(p)}, opts...)
	return New(baseURL, all...), ns
}

func TestStartGameReturnsDefaults(t *testing.T) {
	gs := testutil.NewGameServer()
	defer gs.Close()
	c, _ := newTestClient(t, gs.BaseURL())

	resp, err := c.StartGame(context.Background(), "player_12345")
	if err != nil {
		t.Fatal(err)
	}
	if resp.Scene.ID != "start" {
		t.Errorf("scene = %q, want start", resp.Scene.ID)
	}
	if resp.Stats[models.StatHealth] != 100 || resp.Stats[models.StatMorale] != 75 {
		t.Errorf("unexpected stats: %v", resp.Stats)
	}
	if resp.Relationships["grisha_romanov"] != 60 {
		t.Errorf("unexpected relationships: %v", resp.Relationships)
	}
}

func TestValidationNeverReachesNetwork(t *testing.T) {
	gs := testutil.NewGameServer()
	defer gs.Close()
	c, ns := newTestClient(t, gs.BaseURL())
	ctx := context.Background()

	tests := []struct {
		name string
		call func() error
	}{
		{"empty player", func() error { _, err := c.StartGame(ctx, ""); return err }},
		{"short player", func() error { _, err := c.StartGame(ctx, "abc"); return err }},
		{"empty scene", func() error { _, err := c.MakeChoice(ctx, "player_12345", "", nil); return err }},
		{"unknown stat", func() error {
			_, err := c.MakeChoice(ctx, "player_12345", "scene_2", models.StatChanges{"luck": 1})
			return err
		}},
		{"stat out of range", func() error {
			_, err := c.MakeChoice(ctx, "player_12345", "scene_2", models.StatChanges{models.StatHealth: -1001})
			return err
		}},
		{"stat NaN", func() error {
			_, err := c.MakeChoice(ctx, "player_12345", "scene_2", models.StatChanges{models.StatHealth: math.NaN()})
			return err
		}},
		{"empty batch", func() error { _, err := c.GetScenesBatch(ctx, nil); return err }},
		{"bad id in batch", func() error { _, err := c.GetCharactersBatch(ctx, []string{"sara_nova", " "}); return err }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			if !apperr.IsKind(err, apperr.KindValidation) {
				t.Errorf("err = %v, want validation", err)
			}
		})
	}

	if gs.Calls(testutil.RouteStart)+gs.Calls(testutil.RouteChoose) != 0 {
		t.Error("validation failure reached the network")
	}
	if len(ns.delays) != 0 {
		t.Errorf("validation failure consumed retries: %v", ns.delays)
	}
}

func TestMakeChoiceAcceptsBoundaryValues(t *testing.T) {
	gs := testutil.NewGameServer()
	defer gs.Close()
	c, _ := newTestClient(t, gs.BaseURL())
	ctx := context.Background()

	if _, err := c.StartGame(ctx, "player_12345"); err != nil {
		t.Fatal(err)
	}
	resp, err := c.MakeChoice(ctx, "player_12345", "scene_2", models.StatChanges{models.StatMoney: 1000, models.StatFuel: -30})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Status != models.StatusSuccess || resp.ChoicesMade != 1 {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestGameOverPassesThrough(t *testing.T) {
	gs := testutil.NewGameServer()
	defer gs.Close()
	c, _ := newTestClient(t, gs.BaseURL())
	ctx := context.Background()

	_, _ = c.StartGame(ctx, "player_12345")
	resp, err := c.MakeChoice(ctx, "player_12345", "scene_3", models.StatChanges{models.StatHealth: -1000})
	if err != nil {
		t.Fatal(err)
	}
	if !resp.GameOver() || resp.Scene != nil {
		t.Errorf("expected game over without scene, got %+v", resp)
	}
}

func TestGetSceneIsCached(t *testing.T) {
	gs := testutil.NewGameServer()
	defer gs.Close()
	c, _ := newTestClient(t, gs.BaseURL())
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		scene, err := c.GetScene(ctx, "start")
		if err != nil {
			t.Fatal(err)
		}
		if scene.ID != "start" {
			t.Errorf("scene = %q", scene.ID)
		}
	}
	if n := gs.Calls(testutil.RouteScene); n != 1 {
		t.Errorf("network calls = %d, want 1", n)
	}
	if c.CacheSize() != 1 {
		t.Errorf("cache size = %d, want 1", c.CacheSize())
	}
	if st := c.CacheStats(); st.Hits != 1 || st.Misses != 1 {
		t.Errorf("stats = %+v", st)
	}
}

func TestMutationsClearCache(t *testing.T) {
	gs := testutil.NewGameServer()
	defer gs.Close()
	c, _ := newTestClient(t, gs.BaseURL())
	ctx := context.Background()

	_, _ = c.GetScene(ctx, "start")
	_, _ = c.GetCharacters(ctx)
	if c.CacheSize() != 2 {
		t.Fatalf("cache size = %d, want 2", c.CacheSize())
	}
	if _, err := c.StartGame(ctx, "player_12345"); err != nil {
		t.Fatal(err)
	}
	if c.CacheSize() != 0 {
		t.Errorf("cache size after start = %d, want 0", c.CacheSize())
	}

	_, _ = c.GetScene(ctx, "start")
	if gs.Calls(testutil.RouteScene) != 2 {
		t.Errorf("expected refetch after clear, calls = %d", gs.Calls(testutil.RouteScene))
	}
}

func TestPlayerStatsNotCached(t *testing.T) {
	gs := testutil.NewGameServer()
	defer gs.Close()
	c, _ := newTestClient(t, gs.BaseURL())
	ctx := context.Background()

	_, _ = c.StartGame(ctx, "player_12345")
	for i := 0; i < 2; i++ {
		if _, err := c.GetPlayerStats(ctx, "player_12345"); err != nil {
			t.Fatal(err)
		}
	}
	if n := gs.Calls(testutil.RouteStats); n != 2 {
		t.Errorf("stats calls = %d, want 2", n)
	}
}

func TestConcurrentReadsCoalesce(t *testing.T) {
	gs := testutil.NewGameServer()
	defer gs.Close()
	hold := make(chan struct{})
	gs.SetHold(hold)
	c, _ := newTestClient(t, gs.BaseURL())

	var wg sync.WaitGroup
	var failures atomic.Int32
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.GetScene(context.Background(), "scene_2"); err != nil {
				failures.Add(1)
			}
		}()
	}

	deadline := time.Now().Add(2 * time.Second)
	for gs.Calls(testutil.RouteScene) == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	time.Sleep(50 * time.Millisecond)
	close(hold)
	wg.Wait()

	if failures.Load() != 0 {
		t.Fatalf("%d readers failed", failures.Load())
	}
	if n := gs.Calls(testutil.RouteScene); n != 1 {
		t.Errorf("network calls = %d, want 1", n)
	}
}

func TestCoalescedReadSurvivesFirstCallerCancel(t *testing.T) {
	gs := testutil.NewGameServer()
	defer gs.Close()
	hold := make(chan struct{})
	gs.SetHold(hold)
	c, _ := newTestClient(t, gs.BaseURL())

	ctx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := c.GetScene(ctx, "start")
		firstErr <- err
	}()

	deadline := time.Now().Add(2 * time.Second)
	for gs.Calls(testutil.RouteScene) == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	secondErr := make(chan error, 1)
	var scene *models.Scene
	go func() {
		var err error
		scene, err = c.GetScene(context.Background(), "start")
		secondErr <- err
	}()
	time.Sleep(50 * time.Millisecond)

	cancel()
	if err := <-firstErr; !apperr.IsKind(err, apperr.KindCanceled) {
		t.Errorf("first caller err = %v, want canceled", err)
	}

	close(hold)
	if err := <-secondErr; err != nil {
		t.Fatalf("second caller err = %v", err)
	}
	if scene == nil || scene.ID != "start" {
		t.Errorf("scene = %+v", scene)
	}
	if n := gs.Calls(testutil.RouteScene); n != 1 {
		t.Errorf("network calls = %d, want 1", n)
	}
}

func TestCanceledRequestIsNotNetworkError(t *testing.T) {
	gs := testutil.NewGameServer()
	defer gs.Close()
	c, _ := newTestClient(t, gs.BaseURL())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.GetPlayerStats(ctx, "player_12345")
	if !apperr.IsKind(err, apperr.KindCanceled) {
		t.Errorf("err = %v, want canceled", err)
	}
	if got := UserMessage(err, "refresh stats"); got != "Request canceled (refresh stats)." {
		t.Errorf("message = %q", got)
	}
}

func TestRetryThenSuccess(t *testing.T) {
	gs := testutil.NewGameServer()
	defer gs.Close()
	c, ns := newTestClient(t, gs.BaseURL())

	gs.FailNext(testutil.RouteHealth, 2, http.StatusServiceUnavailable, `{"detail":"warming up"}`)
	if _, err := c.CheckHealth(context.Background()); err != nil {
		t.Fatal(err)
	}
	if gs.Calls(testutil.RouteHealth) != 3 {
		t.Errorf("calls = %d, want 3", gs.Calls(testutil.RouteHealth))
	}
	want := []time.Duration{time.Second, 2 * time.Second}
	if len(ns.delays) != len(want) {
		t.Fatalf("delays = %v, want %v", ns.delays, want)
	}
	for i := range want {
		if ns.delays[i] != want[i] {
			t.Errorf("delay %d = %v, want %v", i, ns.delays[i], want[i])
		}
	}
}

func TestServerErrorNormalization(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		message string
	}{
		{"error field", http.StatusTooManyRequests, `{"error":"slow down"}`, "slow down"},
		{"string detail", http.StatusNotFound, `{"detail":"scene 'x' not found"}`, "scene 'x' not found"},
		{"structured detail", http.StatusUnprocessableEntity, `{"detail":[{"loc":["body"],"msg":"required"}]}`, `[{"loc":["body"],"msg":"required"}]`},
		{"no body", http.StatusInternalServerError, ``, "Internal Server Error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gs := testutil.NewGameServer()
			defer gs.Close()
			c, _ := newTestClient(t, gs.BaseURL())

			gs.FailNext(testutil.RouteCharacters, retry.DefaultMaxAttempts, tt.status, tt.body)
			_, err := c.GetCharacters(context.Background())

			var e *apperr.Error
			if !errors.As(err, &e) {
				t.Fatalf("err = %v, want *apperr.Error", err)
			}
			if e.Kind != apperr.KindServer || e.Status != tt.status || e.Message != tt.message {
				t.Errorf("got kind=%s status=%d msg=%q", e.Kind, e.Status, e.Message)
			}
			if e.Method != http.MethodGet || !strings.HasSuffix(e.URL, "/api/characters") {
				t.Errorf("got method=%s url=%s", e.Method, e.URL)
			}
			if gs.Calls(testutil.RouteCharacters) != retry.DefaultMaxAttempts {
				t.Errorf("calls = %d, want full budget", gs.Calls(testutil.RouteCharacters))
			}
		})
	}
}

func TestNetworkErrorKind(t *testing.T) {
	gs := testutil.NewGameServer()
	base := gs.BaseURL()
	gs.Close()

	c, ns := newTestClient(t, base)
	_, err := c.GetScene(context.Background(), "start")
	if !apperr.IsKind(err, apperr.KindNetwork) {
		t.Fatalf("err = %v, want network", err)
	}
	if len(ns.delays) != retry.DefaultMaxAttempts-1 {
		t.Errorf("delays = %v", ns.delays)
	}
}

func TestDecodeFailureIsUnknown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	c, _ := newTestClient(t, srv.URL)
	_, err := c.GetCharacter(context.Background(), "sara_nova")
	if !apperr.IsKind(err, apperr.KindUnknown) {
		t.Errorf("err = %v, want unknown", err)
	}
}

func TestBatchRequests(t *testing.T) {
	gs := testutil.NewGameServer()
	defer gs.Close()
	c, _ := newTestClient(t, gs.BaseURL())
	ctx := context.Background()

	chars, err := c.GetCharactersBatch(ctx, []string{"sara_nova", "li_zheng"})
	if err != nil {
		t.Fatal(err)
	}
	if len(chars) != 2 || chars["li_zheng"].Name != "Li Zheng" {
		t.Errorf("unexpected characters: %v", chars)
	}

	scenes, err := c.GetScenesBatch(ctx, []string{"start", "scene_3"})
	if err != nil {
		t.Fatal(err)
	}
	if len(scenes) != 2 {
		t.Errorf("unexpected scenes: %v", scenes)
	}
}

func TestInterceptorsRun(t *testing.T) {
	gs := testutil.NewGameServer()
	defer gs.Close()

	var reqs, resps atomic.Int32
	c, _ := newTestClient(t, gs.BaseURL(),
		WithRequestInterceptor(func(r *http.Request) {
			reqs.Add(1)
			r.Header.Set("X-Client", "starcourier")
		}),
		WithResponseInterceptor(func(_ *http.Request, resp *http.Response, _ []byte) {
			resps.Add(1)
		}),
	)

	_, _ = c.GetScenes(context.Background())
	_, _ = c.GetScenes(context.Background())
	if reqs.Load() != 1 || resps.Load() != 1 {
		t.Errorf("interceptors ran %d/%d times, want 1/1 (second read is cached)", reqs.Load(), resps.Load())
	}
}

func TestWaitForServer(t *testing.T) {
	gs := testutil.NewGameServer()
	defer gs.Close()
	c, ns := newTestClient(t, gs.BaseURL())

	gs.FailNext(testutil.RouteHealth, 2, http.StatusBadGateway, ``)
	if err := c.WaitForServer(context.Background(), 5, 10*time.Millisecond); err != nil {
		t.Fatal(err)
	}
	if gs.Calls(testutil.RouteHealth) != 3 {
		t.Errorf("probes = %d, want 3", gs.Calls(testutil.RouteHealth))
	}
	if len(ns.delays) != 2 || ns.delays[0] != 10*time.Millisecond {
		t.Errorf("delays = %v", ns.delays)
	}
}

func TestWaitForServerUnavailable(t *testing.T) {
	gs := testutil.NewGameServer()
	defer gs.Close()
	c, ns := newTestClient(t, gs.BaseURL())

	gs.FailNext(testutil.RouteHealth, 10, http.StatusBadGateway, ``)
	err := c.WaitForServer(context.Background(), 3, time.Millisecond)
	if !apperr.IsKind(err, apperr.KindUnavailable) {
		t.Fatalf("err = %v, want unavailable", err)
	}
	if gs.Calls(testutil.RouteHealth) != 3 {
		t.Errorf("probes = %d, want 3", gs.Calls(testutil.RouteHealth))
	}
	if len(ns.delays) != 2 {
		t.Errorf("slept %d times, want 2", len(ns.delays))
	}
	if c.IsAvailable(context.Background()) {
		t.Error("expected server to be unavailable while failing")
	}
}

func TestCloudRoundTrip(t *testing.T) {
	gs := testutil.NewGameServer()
	defer gs.Close()
	c, _ := newTestClient(t, gs.BaseURL())
	ctx := context.Background()

	rec := models.SaveRecord{ID: "save-1", Name: "Autosave", PlayerID: "player_12345", CurrentSceneID: "scene_2"}
	if err := c.SaveCloud(ctx, "player_12345", rec); err != nil {
		t.Fatal(err)
	}

	list, err := c.ListCloud(ctx, "player_12345")
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].ID != "save-1" {
		t.Fatalf("unexpected list: %+v", list)
	}

	got, err := c.LoadCloud(ctx, "player_12345", "save-1")
	if err != nil {
		t.Fatal(err)
	}
	if got.CurrentSceneID != "scene_2" {
		t.Errorf("scene = %q", got.CurrentSceneID)
	}

	if err := c.DeleteCloud(ctx, "player_12345", "save-1"); err != nil {
		t.Fatal(err)
	}
	if len(gs.CloudSaves("player_12345")) != 0 {
		t.Error("expected remote save to be deleted")
	}
}

func TestSetBaseURL(t *testing.T) {
	c := New("", WithoutLogging())
	if c.BaseURL() != DefaultBaseURL {
		t.Errorf("base = %q", c.BaseURL())
	}
	c.SetBaseURL("http://example.test/api/")
	if c.BaseURL() != "http://example.test/api" {
		t.Errorf("base = %q", c.BaseURL())
	}
}

func TestUserMessage(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{&apperr.Error{Kind: apperr.KindServer, Status: 404}, "Resource not found (load scene). Please check the server connection."},
		{&apperr.Error{Kind: apperr.KindServer, Status: 429}, "Too many requests (load scene). Please wait a moment."},
		{&apperr.Error{Kind: apperr.KindNetwork}, "Cannot reach the game server (load scene). Please check your connection."},
		{apperr.Validation("player ID is required"), "player ID is required (load scene)"},
	}
	for _, tt := range tests {
		if got := UserMessage(tt.err, "load scene"); got != tt.want {
			t.Errorf("UserMessage(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}
