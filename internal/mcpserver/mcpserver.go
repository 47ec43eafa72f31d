package mcpserver

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/planetaryhealth/phi/pkg/normalize"
	"github.com/planetaryhealth/phi/pkg/pipeline"
	"github.com/planetaryhealth/phi/pkg/supplement"
)

// Server wraps the MCP server and registers the PHI pipeline tools.
type Server struct {
	server       *mcp.Server
	runner       *pipeline.Runner
	normalizer   *normalize.Normalizer
	supplementer *supplement.Engine
}

// Option configures a Server.
type Option func(*Server)

// WithRunner sets the pipeline runner used by score_site and for weight
// profile resolution.
func WithRunner(r *pipeline.Runner) Option {
	return func(s *Server) {
		if r != nil {
			s.runner = r
		}
	}
}

// NewServer creates a new MCP server with all tools and prompts registered.
func NewServer(version string, opts ...Option) *Server {
	if version == "" {
		version = "dev"
	}
	server := mcp.NewServer(
		&mcp.Implementation{
			Name:    "phi",
			Version: version,
		},
		nil,
	)

	s := &Server{
		server:       server,
		normalizer:   normalize.Default(),
		supplementer: supplement.New(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.runner == nil {
		s.runner = pipeline.New()
	}
	s.registerTools()
	s.registerPrompts()
	return s
}

// Run starts the MCP server over stdio transport.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// registerTools adds the pipeline tools to the server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "normalize_metric",
		Description: describeNormalize(),
	}, s.handleNormalizeMetric)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "supplement_metrics",
		Description: describeSupplement(),
	}, s.handleSupplementMetrics)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "build_series",
		Description: describeSeries(),
	}, s.handleBuildSeries)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "aggregate_scores",
		Description: describeAggregate(),
	}, s.handleAggregateScores)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "score_site",
		Description: describeScoreSite(),
	}, s.handleScoreSite)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "describe_catalog",
		Description: describeCatalog(),
	}, s.handleDescribeCatalog)
}
