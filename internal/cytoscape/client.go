// Package cytoscape is a client for the subset of the CyREST API used to
// publish a network: creation, table columns and layout.
package cytoscape

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"github.com/agenthands/adb-query-runner/internal/apperror"
	"github.com/agenthands/adb-query-runner/internal/config"
	"github.com/agenthands/adb-query-runner/internal/core/model"
	"github.com/agenthands/adb-query-runner/internal/logging"
	"github.com/agenthands/adb-query-runner/internal/metrics"
)

type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *logrus.Logger
}

func NewClient(cfg config.CytoscapeConfig, logger *logrus.Logger) *Client {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = config.DefaultCytoscapeTimeout * time.Second
	}
	return NewClientWithHTTP(cfg.BaseURL, &http.Client{Timeout: timeout}, logger)
}

// NewClientWithHTTP builds a client around an existing http.Client.
func NewClientWithHTTP(baseURL string, httpClient *http.Client, logger *logrus.Logger) *Client {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		logger:     logger,
	}
}

// CreateNetwork uploads network and returns the SUID assigned to it.
func (c *Client) CreateNetwork(ctx context.Context, network model.Network) (int64, error) {
	endpoint := c.baseURL + "/networks?format=json"

	body, err := c.do(ctx, "create_network", http.MethodPost, endpoint, network)
	if err != nil {
		return 0, err
	}

	if !gjson.ValidBytes(body) {
		return 0, apperror.Malformed(endpoint, "response is not valid JSON")
	}
	suid := gjson.GetBytes(body, "networkSUID")
	if suid.Type != gjson.Number || strings.ContainsAny(suid.Raw, ".eE") {
		return 0, apperror.Malformed(endpoint, "response has no integer networkSUID")
	}

	logging.Entry(ctx, c.logger).WithFields(logrus.Fields{
		"network_suid": suid.Int(),
		"nodes":        len(network.Elements.Nodes),
		"edges":        len(network.Elements.Edges),
	}).Info("Created network")
	return suid.Int(), nil
}

// CreateColumn adds a typed column to one of the network's default tables.
func (c *Client) CreateColumn(ctx context.Context, networkSUID int64, column model.Column) error {
	endpoint := fmt.Sprintf("%s/networks/%d/tables/%s/columns", c.baseURL, networkSUID, url.PathEscape(string(column.Table)))
	_, err := c.do(ctx, "create_column", http.MethodPost, endpoint, column)
	return err
}

// ApplyLayout runs the named layout algorithm on the network.
func (c *Client) ApplyLayout(ctx context.Context, networkSUID int64, layout string) error {
	endpoint := fmt.Sprintf("%s/networks/%d/layouts/%s", c.baseURL, networkSUID, url.PathEscape(layout))
	_, err := c.do(ctx, "apply_layout", http.MethodPut, endpoint, nil)
	return err
}

func (c *Client) do(ctx context.Context, operation, method, endpoint string, payload any) (body []byte, err error) {
	start := time.Now()
	defer func() {
		metrics.CyRESTCallDuration.WithLabelValues(operation, metrics.Status(err)).Observe(time.Since(start).Seconds())
	}()

	var reqBody io.Reader
	if payload != nil {
		raw, mErr := json.Marshal(payload)
		if mErr != nil {
			return nil, errors.Wrapf(mErr, "failed to encode %s request", operation)
		}
		reqBody = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return nil, apperror.Transport(endpoint, err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperror.Transport(endpoint, err)
	}
	defer resp.Body.Close()

	body, err = io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperror.Transport(endpoint, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		logging.Entry(ctx, c.logger).WithFields(logrus.Fields{
			"operation": operation,
			"status":    resp.StatusCode,
		}).Warn("Visualization service returned an error status")
		return nil, apperror.HTTPStatus(endpoint, resp.StatusCode, errorMessage(body))
	}
	return body, nil
}

// errorMessage pulls the first CyREST error message out of a response body.
func errorMessage(body []byte) string {
	for _, path := range []string{"errors.0.message", "message"} {
		if msg := gjson.GetBytes(body, path); msg.Type == gjson.String && msg.Str != "" {
			return msg.Str
		}
	}
	return ""
}
