package driver

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"github.com/agenthands/adb-query-runner/internal/apperror"
	"github.com/agenthands/adb-query-runner/internal/config"
	"github.com/agenthands/adb-query-runner/internal/core/model"
	"github.com/agenthands/adb-query-runner/internal/logging"
	"github.com/agenthands/adb-query-runner/internal/metrics"
)

const arangoStore = "arangodb"

// ArangoDriver drains ArangoDB streaming cursors over the HTTP API.
type ArangoDriver struct {
	Endpoint   string
	Username   string
	Password   string
	BatchSize  int
	HTTPClient *http.Client
	logger     *logrus.Logger
}

func NewArangoDriver(cfg config.StoreConfig, logger *logrus.Logger) *ArangoDriver {
	endpoint := cfg.Endpoint
	if !strings.HasSuffix(endpoint, "/") {
		endpoint += "/"
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &ArangoDriver{
		Endpoint:   endpoint,
		Username:   cfg.Username,
		Password:   cfg.Password,
		BatchSize:  cfg.BatchSize,
		HTTPClient: &http.Client{},
		logger:     logger,
	}
}

type cursorRequest struct {
	Query     string         `json:"query"`
	BindVars  map[string]any `json:"bindVars"`
	Stream    bool           `json:"stream"`
	BatchSize int            `json:"batchSize,omitempty"`
}

type cursorBatch struct {
	results []model.Document
	hasMore bool
	id      string
}

// ExecuteQuery creates a streaming cursor for query and follows it until the
// store reports no more batches. Batches are concatenated in arrival order.
func (d *ArangoDriver) ExecuteQuery(ctx context.Context, query string, bindVars map[string]any) ([]model.Document, error) {
	start := time.Now()
	docs, err := d.drain(ctx, query, bindVars)
	metrics.QueryDuration.WithLabelValues(arangoStore, metrics.Status(err)).Observe(time.Since(start).Seconds())
	return docs, err
}

func (d *ArangoDriver) drain(ctx context.Context, query string, bindVars map[string]any) ([]model.Document, error) {
	log := logging.Entry(ctx, d.logger).WithField("store", arangoStore)

	if bindVars == nil {
		bindVars = map[string]any{}
	}
	payload, err := json.Marshal(cursorRequest{
		Query:     query,
		BindVars:  bindVars,
		Stream:    true,
		BatchSize: d.BatchSize,
	})
	if err != nil {
		return nil, err
	}

	cursorURL := d.Endpoint + "_api/cursor"
	body, err := d.call(ctx, http.MethodPost, cursorURL, payload)
	if err != nil {
		return nil, err
	}
	batch, err := parseCursorBatch(cursorURL, body, true)
	if err != nil {
		return nil, err
	}

	results := batch.results
	batches := 1
	metrics.CursorBatches.WithLabelValues(arangoStore).Inc()
	log.WithFields(logrus.Fields{"batch": batches, "size": len(batch.results), "has_more": batch.hasMore}).Debug("Received cursor batch")

	nextURL := cursorURL + "/" + url.PathEscape(batch.id)
	for batch.hasMore {
		body, err := d.call(ctx, http.MethodPut, nextURL, nil)
		if err != nil {
			return nil, err
		}
		next, err := parseCursorBatch(nextURL, body, false)
		if err != nil {
			return nil, err
		}
		results = append(results, next.results...)
		batch.hasMore = next.hasMore
		batches++
		metrics.CursorBatches.WithLabelValues(arangoStore).Inc()
		log.WithFields(logrus.Fields{"batch": batches, "size": len(next.results), "has_more": next.hasMore}).Debug("Received cursor batch")
	}

	metrics.DocumentsFetched.WithLabelValues(arangoStore).Add(float64(len(results)))
	log.WithFields(logrus.Fields{"batches": batches, "documents": len(results)}).Info("Query completed")
	return results, nil
}

func (d *ArangoDriver) call(ctx context.Context, method, endpoint string, payload []byte) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return nil, apperror.Transport(endpoint, err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.SetBasicAuth(d.Username, d.Password)

	resp, err := d.HTTPClient.Do(req)
	if err != nil {
		return nil, apperror.Transport(endpoint, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperror.Transport(endpoint, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, apperror.HTTPStatus(endpoint, resp.StatusCode, arangoErrorMessage(body))
	}
	return body, nil
}

// arangoErrorMessage extracts errorMessage from an ArangoDB error body,
// falling back to a prefix of the raw body.
func arangoErrorMessage(body []byte) string {
	if msg := gjson.GetBytes(body, "errorMessage"); msg.Type == gjson.String && msg.Str != "" {
		return msg.Str
	}
	text := strings.TrimSpace(string(body))
	if len(text) > 200 {
		text = text[:200]
	}
	return text
}

func parseCursorBatch(endpoint string, body []byte, first bool) (*cursorBatch, error) {
	if !gjson.ValidBytes(body) {
		return nil, apperror.Malformed(endpoint, "response is not valid JSON")
	}
	parsed := gjson.ParseBytes(body)

	result := parsed.Get("result")
	if !result.IsArray() {
		return nil, apperror.Malformed(endpoint, "response has no result array")
	}

	batch := &cursorBatch{}
	hasMore := parsed.Get("hasMore")
	switch {
	case !hasMore.Exists() && first:
		batch.hasMore = false
	case !hasMore.Exists():
		return nil, apperror.Malformed(endpoint, "cursor response has no hasMore flag")
	case hasMore.Type != gjson.True && hasMore.Type != gjson.False:
		return nil, apperror.Malformed(endpoint, "hasMore is not a boolean")
	default:
		batch.hasMore = hasMore.Bool()
	}

	if batch.hasMore && first {
		id := parsed.Get("id")
		if id.Type != gjson.String || id.Str == "" {
			return nil, apperror.Malformed(endpoint, "cursor response has more results but no cursor id")
		}
		batch.id = id.Str
	}

	elements := result.Array()
	batch.results = make([]model.Document, 0, len(elements))
	for _, el := range elements {
		batch.results = append(batch.results, model.Document(el.Raw))
	}
	return batch, nil
}

// Close releases idle connections.
func (d *ArangoDriver) Close(ctx context.Context) error {
	d.HTTPClient.CloseIdleConnections()
	return nil
}
