package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/agenthands/adb-query-runner/internal/apperror"
	"github.com/agenthands/adb-query-runner/internal/config"
	"github.com/agenthands/adb-query-runner/internal/core"
	"github.com/agenthands/adb-query-runner/internal/logging"
)

// Pipeline runs a configured query end to end.
type Pipeline interface {
	Run(ctx context.Context, def config.QueryDefinition, bindVars map[string]any) (*core.Result, error)
}

type Server struct {
	Config   *config.Config
	Pipeline Pipeline
	logger   *logrus.Logger
}

func NewServer(cfg *config.Config, pipeline Pipeline, logger *logrus.Logger) *Server {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Server{
		Config:   cfg,
		Pipeline: pipeline,
		logger:   logger,
	}
}

func (s *Server) SetupRouter() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), RequestIDMiddleware(s.logger), corsMiddleware())

	r.GET("/health", s.Health)
	r.GET("/queries", s.ListQueries)
	r.GET("/queries/:index", s.GetQuery)
	r.POST("/execute/:index", s.Execute)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

type QuerySummary struct {
	Index       int                     `json:"index"`
	Name        string                  `json:"name"`
	Description string                  `json:"description"`
	Parameters  []config.QueryParameter `json:"parameters"`
}

type QueryDetail struct {
	QuerySummary
	Query string `json:"query"`
}

func summarize(index int, def config.QueryDefinition) QuerySummary {
	params := def.Parameters
	if params == nil {
		params = []config.QueryParameter{}
	}
	return QuerySummary{
		Index:       index,
		Name:        def.Name,
		Description: def.Description,
		Parameters:  params,
	}
}

func (s *Server) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) ListQueries(c *gin.Context) {
	queries := make([]QuerySummary, 0, len(s.Config.Queries))
	for i, def := range s.Config.Queries {
		queries = append(queries, summarize(i, def))
	}
	c.JSON(http.StatusOK, gin.H{"queries": queries})
}

func (s *Server) GetQuery(c *gin.Context) {
	index, def, ok := s.lookup(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, QueryDetail{QuerySummary: summarize(index, def), Query: def.Query})
}

// Execute runs the query at :index with the submitted parameter values, sent
// either as a form or as a flat JSON object.
func (s *Server) Execute(c *gin.Context) {
	_, def, ok := s.lookup(c)
	if !ok {
		return
	}

	values, err := parameterValues(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": apperror.Describe(err)})
		return
	}
	bindVars, err := def.BindVars(values)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": apperror.Describe(err)})
		return
	}

	result, err := s.Pipeline.Run(c.Request.Context(), def, bindVars)
	if err != nil {
		logging.Entry(c.Request.Context(), s.logger).WithError(err).WithField("query", def.Name).Error("Failed to execute query")
		c.JSON(http.StatusBadGateway, gin.H{"error": apperror.Describe(err)})
		return
	}

	c.JSON(http.StatusOK, result)
}

func (s *Server) lookup(c *gin.Context) (int, config.QueryDefinition, bool) {
	index, err := strconv.Atoi(c.Param("index"))
	if err == nil {
		if def, ok := s.Config.Query(index); ok {
			return index, def, true
		}
	}
	c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("unknown query %q", c.Param("index"))})
	return 0, config.QueryDefinition{}, false
}

// parameterValues collects raw parameter values from a JSON object body or
// from form/query values. JSON numbers and booleans are kept in their
// literal form so typed conversion happens in one place.
func parameterValues(c *gin.Context) (map[string]string, error) {
	values := make(map[string]string)

	if strings.HasPrefix(c.ContentType(), "application/json") && c.Request.ContentLength != 0 {
		var body map[string]any
		dec := json.NewDecoder(c.Request.Body)
		dec.UseNumber()
		if err := dec.Decode(&body); err != nil {
			return nil, apperror.InvalidParameter("body", "expected a JSON object of parameter values")
		}
		for name, v := range body {
			switch val := v.(type) {
			case string:
				values[name] = val
			case json.Number:
				values[name] = val.String()
			case bool:
				values[name] = strconv.FormatBool(val)
			default:
				return nil, apperror.InvalidParameter(name, "expected a string, number or boolean")
			}
		}
		return values, nil
	}

	if err := c.Request.ParseForm(); err != nil {
		return nil, apperror.InvalidParameter("form", err.Error())
	}
	for name, vs := range c.Request.Form {
		if len(vs) > 0 {
			values[name] = vs[0]
		}
	}
	return values, nil
}
