package remote

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getzep/entitylink/config"
	"github.com/getzep/entitylink/pkg/models"
)

type inferenceServer struct {
	mu        sync.Mutex
	loads     []loadRequest
	nerBodies map[string][]nerRequest
	convBody  []convRequest
	requestID []string
	failLoads atomic.Int32
	status    int
}

func newInferenceServer(t *testing.T) (*inferenceServer, *httptest.Server) {
	s := &inferenceServer{nerBodies: map[string][]nerRequest{}}

	r := chi.NewRouter()
	r.Post("/models/load", func(w http.ResponseWriter, r *http.Request) {
		if s.failLoads.Load() > 0 {
			s.failLoads.Add(-1)
			http.Error(w, "still starting", http.StatusServiceUnavailable)
			return
		}
		var req loadRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if req.Name == "missing" {
			http.Error(w, "no such model", http.StatusNotFound)
			return
		}
		s.mu.Lock()
		s.loads = append(s.loads, req)
		s.mu.Unlock()
		w.WriteHeader(http.StatusOK)
	})
	r.Post("/ner/{model}", func(w http.ResponseWriter, r *http.Request) {
		if s.status != 0 {
			http.Error(w, "model crashed", s.status)
			return
		}
		var req nerRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		s.mu.Lock()
		model := chi.URLParam(r, "model")
		s.nerBodies[model] = append(s.nerBodies[model], req)
		s.requestID = append(s.requestID, r.Header.Get(RequestIDHeader))
		s.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[[0,5,"Obama","Barack_Obama",0.98,0.99,"PER"]]`))
	})
	r.Post("/conv/{model}", func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		var req convRequest
		require.NoError(t, json.Unmarshal(body, &req))
		s.mu.Lock()
		s.convBody = append(s.convBody, req)
		s.mu.Unlock()
		_, _ = w.Write([]byte(`[{"speaker":"USER","utterance":"Who is Obama?","annotations":[]}]`))
	})

	ts := httptest.NewServer(r)
	t.Cleanup(ts.Close)
	return s, ts
}

func testConfig(url string) *config.Config {
	return &config.Config{
		Models: config.ModelsConfig{
			BaseURL:     "/data/rel",
			WikiVersion: "wiki_2019",
			EDModel:     "ed-wiki-2019",
		},
		Backend: config.BackendConfig{URL: url + "/", LoadRetries: 1},
	}
}

func TestLoadModels(t *testing.T) {
	s, ts := newInferenceServer(t)
	client := NewClient(testConfig(ts.URL))
	ctx := context.Background()

	require.NoError(t, client.LoadEDModel(ctx))
	ner, err := client.LoadEntityHandler(ctx, "ner-fast")
	require.NoError(t, err)
	assert.Equal(t, "ner-fast", ner.Model())
	conv, err := client.LoadConversationHandler(ctx, "default")
	require.NoError(t, err)
	assert.Equal(t, "default", conv.Model())

	assert.Equal(t, []loadRequest{
		{Kind: KindED, Name: "ed-wiki-2019", BaseURL: "/data/rel", WikiVersion: "wiki_2019"},
		{Kind: KindNER, Name: "ner-fast", BaseURL: "/data/rel", WikiVersion: "wiki_2019", EDModel: "ed-wiki-2019"},
		{Kind: KindConversation, Name: "default", BaseURL: "/data/rel", WikiVersion: "wiki_2019", EDModel: "ed-wiki-2019"},
	}, s.loads)
}

func TestLoadRetriesWhileServerStarts(t *testing.T) {
	s, ts := newInferenceServer(t)
	s.failLoads.Store(1)
	client := NewClient(testConfig(ts.URL))

	_, err := client.LoadEntityHandler(context.Background(), "ner-fast")
	require.NoError(t, err)
	assert.Len(t, s.loads, 1)
}

func TestLoadFailures(t *testing.T) {
	s, ts := newInferenceServer(t)
	client := NewClient(testConfig(ts.URL))

	h, err := client.LoadEntityHandler(context.Background(), "missing")
	assert.Nil(t, h)
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)
	assert.Equal(t, "no such model", statusErr.Body)

	s.failLoads.Store(5)
	_, err = client.LoadConversationHandler(context.Background(), "default")
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusServiceUnavailable, statusErr.StatusCode)
	assert.Empty(t, s.loads)
}

func TestEntityHandlerGenerateResponse(t *testing.T) {
	s, ts := newInferenceServer(t)
	client := NewClient(testConfig(ts.URL))
	handler := &EntityHandler{client: client, model: "ner-fast-with-lowercase"}

	result, err := handler.GenerateResponse(context.Background(), "Obama was president.", nil)
	require.NoError(t, err)
	assert.JSONEq(t, `[[0,5,"Obama","Barack_Obama",0.98,0.99,"PER"]]`, string(result))

	spans := []models.Span{{Offset: 0, Length: 5}, {Offset: 10, Length: 9}}
	_, err = handler.GenerateResponse(context.Background(), "Obama was president.", spans)
	require.NoError(t, err)

	bodies := s.nerBodies["ner-fast-with-lowercase"]
	require.Len(t, bodies, 2)
	assert.Equal(t, nerRequest{Text: "Obama was president.", Spans: []models.Span{}}, bodies[0])
	assert.Equal(t, nerRequest{Text: "Obama was president.", Spans: spans}, bodies[1])
	for _, id := range s.requestID {
		assert.NotEmpty(t, id)
	}
}

func TestEntityHandlerBackendError(t *testing.T) {
	s, ts := newInferenceServer(t)
	s.status = http.StatusInternalServerError
	client := NewClient(testConfig(ts.URL))
	handler := &EntityHandler{client: client, model: "ner-fast"}

	result, err := handler.GenerateResponse(context.Background(), "Obama", nil)
	assert.Nil(t, result)
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusInternalServerError, statusErr.StatusCode)
	assert.Equal(t, "model crashed", statusErr.Body)
}

func TestConversationHandlerAnnotate(t *testing.T) {
	s, ts := newInferenceServer(t)
	client := NewClient(testConfig(ts.URL))
	handler := &ConversationHandler{client: client, model: "default"}

	turns := []models.Turn{
		{Speaker: "USER", Utterance: "Who is Obama?"},
		{Speaker: "SYSTEM", Utterance: "A politician."},
	}
	result, err := handler.Annotate(context.Background(), turns)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"speaker":"USER","utterance":"Who is Obama?","annotations":[]}]`, string(result))

	require.Len(t, s.convBody, 1)
	assert.Equal(t, turns, s.convBody[0].Turns)
}

func TestIgnoreClientErrorRetryPolicy(t *testing.T) {
	ctx := context.Background()

	retry, err := IgnoreClientErrorRetryPolicy(ctx, &http.Response{StatusCode: http.StatusBadRequest}, nil)
	assert.False(t, retry)
	assert.NoError(t, err)

	retry, _ = IgnoreClientErrorRetryPolicy(ctx, &http.Response{StatusCode: http.StatusServiceUnavailable}, nil)
	assert.True(t, retry)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	retry, err = IgnoreClientErrorRetryPolicy(cancelled, &http.Response{StatusCode: http.StatusServiceUnavailable}, nil)
	assert.False(t, retry)
	assert.ErrorIs(t, err, context.Canceled)
}
