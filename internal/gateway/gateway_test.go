package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ppiankov/claimcheck/internal/model"
	"github.com/ppiankov/claimcheck/internal/upstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	configured bool
	resp       *upstream.Response
	err        error

	calls   int
	agentID string
	payload []byte
	timeout time.Duration
}

func (f *fakeRunner) Configured() bool { return f.configured }

func (f *fakeRunner) Run(_ context.Context, agentID string, body any, timeout time.Duration) (*upstream.Response, error) {
	f.calls++
	f.agentID = agentID
	f.timeout = timeout
	data, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	f.payload = data
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

func jsonResponse(status int, body string) *upstream.Response {
	return &upstream.Response{StatusCode: status, ContentType: "application/json", Body: []byte(body)}
}

func newRouter(runner AgentRunner) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	cfg := model.DefaultConfig().Upstream
	Register(r, Defaults(cfg, runner, nil)...)
	return r
}

func post(r http.Handler, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func errorMessage(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body["error"]
}

func TestGateway_NotConfigured(t *testing.T) {
	runner := &fakeRunner{configured: false}
	r := newRouter(runner)

	bodies := []string{`{"query":"hello"}`, `{}`, `not json`, ``}
	for _, path := range []string{PathExtract, PathVerify, PathSourceCred, PathAssess} {
		for _, body := range bodies {
			t.Run(fmt.Sprintf("%s %q", path, body), func(t *testing.T) {
				w := post(r, path, body)
				assert.Equal(t, http.StatusInternalServerError, w.Code)
				assert.Equal(t, MsgNotConfigured, errorMessage(t, w))
			})
		}
	}
	assert.Zero(t, runner.calls)
}

func TestGateway_Validation(t *testing.T) {
	tests := []struct {
		name string
		path string
		body string
		msg  string
	}{
		{"extract missing", PathExtract, `{}`, "Missing or invalid 'query' in body"},
		{"extract empty", PathExtract, `{"query":""}`, "Missing or invalid 'query' in body"},
		{"extract not string", PathExtract, `{"query":42}`, "Missing or invalid 'query' in body"},
		{"extract not object", PathExtract, `["query"]`, "Missing or invalid 'query' in body"},
		{"extract bad json", PathExtract, `{query`, "Missing or invalid 'query' in body"},
		{"verify no claim", PathVerify, `{"claim_id":1}`, "Missing claim_id or claim"},
		{"verify zero id", PathVerify, `{"claim_id":0,"claim":"x"}`, "Missing claim_id or claim"},
		{"source-cred no domains", PathSourceCred, `{"claim_id":1}`, "Missing claim_id or domains[]"},
		{"source-cred domains not array", PathSourceCred, `{"claim_id":1,"domains":"a.com"}`, "Missing claim_id or domains[]"},
		{"assess no claim or query", PathAssess, `{"claim_id":1}`, "Missing claim_id and claim/query"},
		{"assess no id", PathAssess, `{"claim":"x"}`, "Missing claim_id and claim/query"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &fakeRunner{configured: true}
			w := post(newRouter(runner), tt.path, tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, tt.msg, errorMessage(t, w))
			assert.Zero(t, runner.calls)
		})
	}
}

func TestGateway_ExtractPayload(t *testing.T) {
	runner := &fakeRunner{configured: true, resp: jsonResponse(200, `{"claims":[]}`)}
	w := post(newRouter(runner), PathExtract, `{"query":"The sky is green."}`)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, model.DefaultConfig().Upstream.Agents.Extract, runner.agentID)
	assert.Zero(t, runner.timeout)
	assert.JSONEq(t, `{"query":"The sky is green."}`, string(runner.payload))
}

func TestGateway_VerifyPayload(t *testing.T) {
	runner := &fakeRunner{configured: true, resp: jsonResponse(200, `{}`)}
	w := post(newRouter(runner), PathVerify, `{"claim_id":3,"claim":"Water boils at 50C"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var outer map[string]string
	require.NoError(t, json.Unmarshal(runner.payload, &outer))
	assert.Equal(t, `{"claim_id":3,"claim":"Water boils at 50C","snippets":[]}`, outer["query"])
	assert.Equal(t, 25*time.Second, runner.timeout)
}

func TestGateway_SourceCredPayload(t *testing.T) {
	runner := &fakeRunner{configured: true, resp: jsonResponse(200, `{}`)}
	w := post(newRouter(runner), PathSourceCred, `{"claim_id":"7","domains":["a.com","b.org"]}`)
	require.Equal(t, http.StatusOK, w.Code)

	var outer map[string]string
	require.NoError(t, json.Unmarshal(runner.payload, &outer))
	assert.Equal(t, `{"claim_id":"7","domains":["a.com","b.org"]}`, outer["query"])
}

func TestGateway_AssessPayload(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"query wins", `{"claim_id":1,"claim":"c","query":"Verify claim: c"}`, `{"claim_id":1,"query":"Verify claim: c"}`},
		{"claim fallback", `{"claim_id":1,"claim":"c"}`, `{"claim_id":1,"query":"Verify: c"}`},
		{"non-string query", `{"claim_id":1,"query":5}`, `{"claim_id":1,"query":"5"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &fakeRunner{configured: true, resp: jsonResponse(200, `{}`)}
			w := post(newRouter(runner), PathAssess, tt.body)
			require.Equal(t, http.StatusOK, w.Code)
			assert.JSONEq(t, tt.want, string(runner.payload))
		})
	}
}

func TestGateway_RelayJSONStatus(t *testing.T) {
	runner := &fakeRunner{configured: true, resp: jsonResponse(422, `{"detail":"bad"}`)}
	w := post(newRouter(runner), PathExtract, `{"query":"x"}`)

	assert.Equal(t, 422, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "application/json")
	assert.JSONEq(t, `{"detail":"bad"}`, w.Body.String())
}

func TestGateway_RelayText(t *testing.T) {
	runner := &fakeRunner{configured: true, resp: &upstream.Response{
		StatusCode: 503, ContentType: "text/html", Body: []byte("<h1>down</h1>"),
	}}
	w := post(newRouter(runner), PathExtract, `{"query":"x"}`)

	assert.Equal(t, 503, w.Code)
	assert.Equal(t, "text/html", w.Header().Get("Content-Type"))
	assert.Equal(t, "<h1>down</h1>", w.Body.String())
}

func TestGateway_RelayTextDefaultContentType(t *testing.T) {
	runner := &fakeRunner{configured: true, resp: &upstream.Response{StatusCode: 200, Body: []byte("ok")}}
	w := post(newRouter(runner), PathExtract, `{"query":"x"}`)

	assert.Equal(t, "text/plain", w.Header().Get("Content-Type"))
	assert.Equal(t, "ok", w.Body.String())
}

func TestGateway_InvalidJSONFromUpstream(t *testing.T) {
	runner := &fakeRunner{configured: true, resp: jsonResponse(200, `{"claims":`)}
	w := post(newRouter(runner), PathExtract, `{"query":"x"}`)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, MsgInternalError, errorMessage(t, w))
}

func TestGateway_Timeout(t *testing.T) {
	runner := &fakeRunner{configured: true, err: &upstream.TimeoutError{Agent: "a", Timeout: time.Second}}
	w := post(newRouter(runner), PathVerify, `{"claim_id":1,"claim":"c"}`)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, MsgTimedOut, errorMessage(t, w))
}

func TestGateway_TransportError(t *testing.T) {
	runner := &fakeRunner{configured: true, err: fmt.Errorf("execute request: connection refused")}
	w := post(newRouter(runner), PathAssess, `{"claim_id":1,"claim":"c"}`)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, MsgInternalError, errorMessage(t, w))
}

func TestGateway_WithUpstreamClient(t *testing.T) {
	agent := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/agents/agent-test/run", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"output":{"text":"{\"claims\":[]}"}}`))
	}))
	defer agent.Close()

	client := upstream.NewClient(upstream.Config{BaseURL: agent.URL, APIKey: "k", ProjectID: "p"}, nil, nil)
	gin.SetMode(gin.TestMode)
	r := gin.New()
	Register(r, New(Extract("agent-test", model.AgentTimeouts{}), client, nil))

	w := post(r, PathExtract, `{"query":"x"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"output":{"text":"{\"claims\":[]}"}}`, w.Body.String())
}
