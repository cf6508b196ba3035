package driver

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/agenthands/adb-query-runner/internal/apperror"
	"github.com/agenthands/adb-query-runner/internal/config"
	"github.com/agenthands/adb-query-runner/internal/core/model"
	"github.com/agenthands/adb-query-runner/internal/logging"
	"github.com/agenthands/adb-query-runner/internal/metrics"
)

const (
	boltStore = "bolt"

	// nodeCollection is the pseudo collection used to build _id values for
	// Bolt nodes, which have no collection of their own.
	nodeCollection = "nodes"
)

// BoltDriver runs Cypher queries against a Bolt endpoint (Memgraph, Neo4j)
// and reshapes nodes and relationships into ArangoDB-style documents.
type BoltDriver struct {
	Driver   neo4j.DriverWithContext
	endpoint string
	logger   *logrus.Logger
}

func NewBoltDriver(ctx context.Context, cfg config.StoreConfig, logger *logrus.Logger) (*BoltDriver, error) {
	if logger == nil {
		logger = logging.Discard()
	}
	driver, err := neo4j.NewDriverWithContext(cfg.Endpoint, neo4j.BasicAuth(cfg.Username, cfg.Password, ""))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create bolt driver")
	}

	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, apperror.Transport(cfg.Endpoint, err)
	}

	logger.WithField("endpoint", cfg.Endpoint).Info("Connected to bolt store")
	return &BoltDriver{Driver: driver, endpoint: cfg.Endpoint, logger: logger}, nil
}

func (d *BoltDriver) Close(ctx context.Context) error {
	return d.Driver.Close(ctx)
}

func (d *BoltDriver) ExecuteQuery(ctx context.Context, query string, bindVars map[string]any) ([]model.Document, error) {
	start := time.Now()
	docs, err := d.run(ctx, query, bindVars)
	metrics.QueryDuration.WithLabelValues(boltStore, metrics.Status(err)).Observe(time.Since(start).Seconds())
	return docs, err
}

func (d *BoltDriver) run(ctx context.Context, query string, bindVars map[string]any) ([]model.Document, error) {
	result, err := neo4j.ExecuteQuery(ctx, d.Driver, query, boltParams(bindVars), neo4j.EagerResultTransformer)
	if err != nil {
		var neoErr *neo4j.Neo4jError
		if errors.As(err, &neoErr) {
			return nil, apperror.HTTPStatus(d.endpoint, 0, fmt.Sprintf("%s: %s", neoErr.Code, neoErr.Msg))
		}
		return nil, apperror.Transport(d.endpoint, err)
	}

	docs, err := recordsToDocuments(result.Records)
	if err != nil {
		return nil, apperror.Malformed(d.endpoint, err.Error())
	}

	metrics.CursorBatches.WithLabelValues(boltStore).Inc()
	metrics.DocumentsFetched.WithLabelValues(boltStore).Add(float64(len(docs)))
	logging.Entry(ctx, d.logger).WithFields(logrus.Fields{
		"store":     boltStore,
		"records":   len(result.Records),
		"documents": len(docs),
	}).Info("Query completed")
	return docs, nil
}

// boltParams converts bind variables into values the Bolt packer accepts.
// json.Number is sent as an integer when it has no fraction.
func boltParams(bindVars map[string]any) map[string]any {
	params := make(map[string]any, len(bindVars))
	for name, value := range bindVars {
		if n, ok := value.(json.Number); ok {
			if i, err := n.Int64(); err == nil {
				params[name] = i
			} else if f, err := n.Float64(); err == nil {
				params[name] = f
			} else {
				params[name] = n.String()
			}
			continue
		}
		params[name] = value
	}
	return params
}

// recordsToDocuments flattens records into documents. Every node and
// relationship becomes its own document, deduplicated by element id in
// first-seen order. Records holding only plain values become one document
// each: the bare value for single-column records, an object keyed by column
// otherwise.
func recordsToDocuments(records []*neo4j.Record) ([]model.Document, error) {
	c := &boltConverter{seen: mapset.NewThreadUnsafeSet[string]()}

	for _, rec := range records {
		plain := make(map[string]any)
		for i, value := range rec.Values {
			switch v := value.(type) {
			case neo4j.Node:
				c.addNode(v)
			case neo4j.Relationship:
				c.addRelationship(v)
			case neo4j.Path:
				for _, n := range v.Nodes {
					c.addNode(n)
				}
				for _, r := range v.Relationships {
					c.addRelationship(r)
				}
			default:
				plain[rec.Keys[i]] = plainValue(v)
			}
		}

		switch {
		case len(plain) == 0:
		case len(rec.Values) == 1:
			for _, v := range plain {
				c.out = append(c.out, v)
			}
		default:
			c.out = append(c.out, plain)
		}
	}

	docs := make([]model.Document, 0, len(c.out))
	for _, v := range c.out {
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, errors.Wrap(err, "failed to encode record value")
		}
		docs = append(docs, raw)
	}
	return docs, nil
}

type boltConverter struct {
	seen mapset.Set[string]
	out  []any
}

func (c *boltConverter) addNode(n neo4j.Node) {
	if !c.seen.Add("n:" + n.ElementId) {
		return
	}
	c.out = append(c.out, nodeDocument(n))
}

func (c *boltConverter) addRelationship(r neo4j.Relationship) {
	if !c.seen.Add("r:" + r.ElementId) {
		return
	}
	c.out = append(c.out, relationshipDocument(r))
}

func nodeID(elementID string) string {
	return nodeCollection + model.Separator + elementID
}

func nodeDocument(n neo4j.Node) map[string]any {
	doc := make(map[string]any, len(n.Props)+3)
	for k, v := range n.Props {
		doc[k] = plainValue(v)
	}
	doc[model.IDField] = nodeID(n.ElementId)
	doc[model.KeyField] = n.ElementId
	doc["labels"] = n.Labels
	return doc
}

func relationshipDocument(r neo4j.Relationship) map[string]any {
	doc := make(map[string]any, len(r.Props)+4)
	for k, v := range r.Props {
		doc[k] = plainValue(v)
	}
	doc[model.KeyField] = r.ElementId
	doc[model.FromField] = nodeID(r.StartElementId)
	doc[model.ToField] = nodeID(r.EndElementId)
	doc["type"] = r.Type
	return doc
}

// plainValue turns driver values into JSON-encodable ones. Graph entities
// nested in lists or maps are inlined rather than emitted separately.
func plainValue(value any) any {
	switch v := value.(type) {
	case nil, bool, int64, float64, string:
		return v
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = plainValue(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, item := range v {
			out[k] = plainValue(item)
		}
		return out
	case neo4j.Node:
		return nodeDocument(v)
	case neo4j.Relationship:
		return relationshipDocument(v)
	case time.Time:
		return v.Format(time.RFC3339Nano)
	case dbtype.Date:
		return v.Time().Format(time.DateOnly)
	case []byte:
		return v
	case fmt.Stringer:
		return v.String()
	default:
		return v
	}
}
