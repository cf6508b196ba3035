package driver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agenthands/adb-query-runner/internal/apperror"
	"github.com/agenthands/adb-query-runner/internal/config"
	"github.com/agenthands/adb-query-runner/internal/logging"
)

type cursorCall struct {
	Method string
	Path   string
	Body   string
	User   string
	Pass   string
}

type fakeArango struct {
	mu        sync.Mutex
	calls     []cursorCall
	responses []func(w http.ResponseWriter)
}

func (f *fakeArango) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	user, pass, _ := r.BasicAuth()

	f.mu.Lock()
	idx := len(f.calls)
	f.calls = append(f.calls, cursorCall{Method: r.Method, Path: r.URL.Path, Body: string(body), User: user, Pass: pass})
	f.mu.Unlock()

	if idx >= len(f.responses) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":true,"errorMessage":"cursor not found"}`))
		return
	}
	f.responses[idx](w)
}

func reply(status int, body string) func(w http.ResponseWriter) {
	return func(w http.ResponseWriter) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}
}

func newTestArango(t *testing.T, fake *fakeArango) *ArangoDriver {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	return NewArangoDriver(config.StoreConfig{
		Endpoint: srv.URL,
		Username: "root",
		Password: "secret",
	}, logging.Discard())
}

func TestArango_DrainsAllBatchesInOrder(t *testing.T) {
	fake := &fakeArango{responses: []func(http.ResponseWriter){
		reply(201, `{"result":[1,2],"hasMore":true,"id":"c1"}`),
		reply(200, `{"result":[3],"hasMore":true,"id":"c1"}`),
		reply(200, `{"result":[4,5],"hasMore":true,"id":"c1"}`),
		reply(200, `{"result":[6],"hasMore":false}`),
	}}
	d := newTestArango(t, fake)

	docs, err := d.ExecuteQuery(context.Background(), "FOR i IN 1..6 RETURN i", nil)
	require.NoError(t, err)

	got := make([]string, 0, len(docs))
	for _, doc := range docs {
		got = append(got, string(doc))
	}
	assert.Equal(t, []string{"1", "2", "3", "4", "5", "6"}, got)

	require.Len(t, fake.calls, 4)
	assert.Equal(t, http.MethodPost, fake.calls[0].Method)
	assert.Equal(t, "/_api/cursor", fake.calls[0].Path)
	for _, c := range fake.calls[1:] {
		assert.Equal(t, http.MethodPut, c.Method)
		assert.Equal(t, "/_api/cursor/c1", c.Path)
	}
	for _, c := range fake.calls {
		assert.Equal(t, "root", c.User)
		assert.Equal(t, "secret", c.Pass)
	}
}

func TestArango_RequestBody(t *testing.T) {
	fake := &fakeArango{responses: []func(http.ResponseWriter){
		reply(201, `{"result":[],"hasMore":false}`),
	}}
	d := newTestArango(t, fake)
	d.BatchSize = 500

	_, err := d.ExecuteQuery(context.Background(), "FOR d IN @@c RETURN d", map[string]any{
		"@c":    "users",
		"limit": json.Number("10"),
	})
	require.NoError(t, err)

	require.Len(t, fake.calls, 1)
	assert.JSONEq(t, `{
		"query": "FOR d IN @@c RETURN d",
		"bindVars": {"@c": "users", "limit": 10},
		"stream": true,
		"batchSize": 500
	}`, fake.calls[0].Body)
}

func TestArango_EmptyBindVarsAndDefaultHasMore(t *testing.T) {
	fake := &fakeArango{responses: []func(http.ResponseWriter){
		reply(201, `{"result":[{"_id":"v/1"}]}`),
	}}
	d := newTestArango(t, fake)

	docs, err := d.ExecuteQuery(context.Background(), "RETURN 1", nil)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.JSONEq(t, `{"_id":"v/1"}`, string(docs[0]))
	assert.Contains(t, fake.calls[0].Body, `"bindVars":{}`)
	assert.NotContains(t, fake.calls[0].Body, "batchSize")
}

func TestArango_EndpointWithTrailingSlash(t *testing.T) {
	fake := &fakeArango{responses: []func(http.ResponseWriter){
		reply(201, `{"result":[],"hasMore":false}`),
	}}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	d := NewArangoDriver(config.StoreConfig{Endpoint: srv.URL + "/"}, nil)
	_, err := d.ExecuteQuery(context.Background(), "RETURN 1", nil)
	require.NoError(t, err)
	assert.Equal(t, "/_api/cursor", fake.calls[0].Path)
}

func TestArango_Failures(t *testing.T) {
	tests := []struct {
		name      string
		responses []func(http.ResponseWriter)
		kind      apperror.Kind
		contains  string
	}{
		{
			name:      "query rejected",
			responses: []func(http.ResponseWriter){reply(400, `{"error":true,"errorNum":1501,"errorMessage":"syntax error, unexpected identifier"}`)},
			kind:      apperror.KindHTTPStatus,
			contains:  "syntax error",
		},
		{
			name:      "unauthorized",
			responses: []func(http.ResponseWriter){reply(401, ``)},
			kind:      apperror.KindHTTPStatus,
		},
		{
			name:      "not json",
			responses: []func(http.ResponseWriter){reply(201, `<html>`)},
			kind:      apperror.KindMalformedResponse,
		},
		{
			name:      "no result",
			responses: []func(http.ResponseWriter){reply(201, `{"hasMore":false}`)},
			kind:      apperror.KindMalformedResponse,
			contains:  "result",
		},
		{
			name:      "result not array",
			responses: []func(http.ResponseWriter){reply(201, `{"result":{"a":1},"hasMore":false}`)},
			kind:      apperror.KindMalformedResponse,
		},
		{
			name:      "hasMore without id",
			responses: []func(http.ResponseWriter){reply(201, `{"result":[1],"hasMore":true}`)},
			kind:      apperror.KindMalformedResponse,
			contains:  "cursor id",
		},
		{
			name:      "hasMore not boolean",
			responses: []func(http.ResponseWriter){reply(201, `{"result":[1],"hasMore":"yes","id":"c"}`)},
			kind:      apperror.KindMalformedResponse,
		},
		{
			name: "continuation without hasMore",
			responses: []func(http.ResponseWriter){
				reply(201, `{"result":[1],"hasMore":true,"id":"c"}`),
				reply(200, `{"result":[2]}`),
			},
			kind:     apperror.KindMalformedResponse,
			contains: "hasMore",
		},
		{
			name: "continuation status",
			responses: []func(http.ResponseWriter){
				reply(201, `{"result":[1],"hasMore":true,"id":"c"}`),
				reply(500, `{"error":true,"errorMessage":"internal"}`),
			},
			kind:     apperror.KindHTTPStatus,
			contains: "internal",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newTestArango(t, &fakeArango{responses: tt.responses})

			docs, err := d.ExecuteQuery(context.Background(), "RETURN 1", nil)
			assert.Nil(t, docs)
			require.Error(t, err)
			assert.Equal(t, tt.kind, apperror.KindOf(err))
			if tt.contains != "" {
				assert.Contains(t, err.Error(), tt.contains)
			}
		})
	}
}

func TestArango_StatusErrorCarriesEndpointAndCode(t *testing.T) {
	d := newTestArango(t, &fakeArango{responses: []func(http.ResponseWriter){
		reply(404, `{"error":true,"errorMessage":"collection or view not found: users"}`),
	}})

	_, err := d.ExecuteQuery(context.Background(), "FOR u IN users RETURN u", nil)

	var ae *apperror.Error
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, 404, ae.Status)
	assert.True(t, strings.HasSuffix(ae.Endpoint, "/_api/cursor"))
	assert.Equal(t, "collection or view not found: users", ae.Message)
}

func TestArango_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	endpoint := srv.URL
	srv.Close()

	d := NewArangoDriver(config.StoreConfig{Endpoint: endpoint}, logging.Discard())
	_, err := d.ExecuteQuery(context.Background(), "RETURN 1", nil)
	assert.Equal(t, apperror.KindTransport, apperror.KindOf(err))
}

func TestArango_ContextCancelled(t *testing.T) {
	d := newTestArango(t, &fakeArango{responses: []func(http.ResponseWriter){
		reply(201, `{"result":[],"hasMore":false}`),
	}})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := d.ExecuteQuery(ctx, "RETURN 1", nil)
	assert.Equal(t, apperror.KindTransport, apperror.KindOf(err))
}

func TestArango_LargeCursor(t *testing.T) {
	const batches = 25
	var responses []func(http.ResponseWriter)
	for i := 0; i < batches; i++ {
		more := i < batches-1
		responses = append(responses, reply(200, fmt.Sprintf(`{"result":[%d,%d],"hasMore":%t,"id":"big"}`, 2*i, 2*i+1, more)))
	}
	d := newTestArango(t, &fakeArango{responses: responses})

	docs, err := d.ExecuteQuery(context.Background(), "RETURN 1", nil)
	require.NoError(t, err)
	require.Len(t, docs, 2*batches)
	for i, doc := range docs {
		assert.Equal(t, fmt.Sprint(i), string(doc))
	}
}
