package server

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/ironsheep/raster2vec/internal/classify"
	"github.com/ironsheep/raster2vec/internal/config"
	"github.com/ironsheep/raster2vec/internal/georef"
	"github.com/ironsheep/raster2vec/internal/imaging"
	"github.com/ironsheep/raster2vec/internal/pipeline"
)

// Version is reported in the initialize handshake.
var Version = "0.1.0"

// Server handles MCP protocol communication
type Server struct {
	cfg        *config.Config
	cache      *imaging.ImageCache
	classifier classify.Classifier
	crs        *georef.CRSTransform
	transform  georef.Affine
	logger     *log.Logger
}

// MCPRequest represents an incoming JSON-RPC request
type MCPRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// MCPResponse represents an outgoing JSON-RPC response
type MCPResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *MCPError   `json:"error,omitempty"`
}

// MCPError represents a JSON-RPC error
type MCPError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// New creates a new MCP server. The classifier artifact named by cfg is
// loaded once here and shared by every tool call. A nil cfg selects the
// defaults; a nil logger discards log output.
func New(cfg *config.Config, logger *log.Logger) (*Server, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	classifier, err := classify.Load(cfg.Classifier.ModelPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load classifier: %w", err)
	}
	crs, err := cfg.CRS()
	if err != nil {
		return nil, fmt.Errorf("failed to set up reprojection: %w", err)
	}
	transform, rms, err := cfg.PixelTransform()
	if err != nil {
		return nil, fmt.Errorf("failed to set up transform: %w", err)
	}
	if cfg.Georef.GCPFile != "" {
		logger.Printf("Fitted transform %v from %s, RMS %.4f", transform, cfg.Georef.GCPFile, rms)
	}

	return &Server{
		cfg:        cfg,
		cache:      imaging.NewImageCache(),
		classifier: classifier,
		crs:        crs,
		transform:  transform,
		logger:     logger,
	}, nil
}

// Run starts the MCP server, reading from stdin and writing to stdout
func (s *Server) Run() error {
	return s.Serve(os.Stdin, os.Stdout)
}

// Serve reads one JSON-RPC request per line from r and writes responses
// to w until r is exhausted.
func (s *Server) Serve(r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	// Increase buffer size for large requests
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)

	encoder := json.NewEncoder(w)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req MCPRequest
		if err := json.Unmarshal(line, &req); err != nil {
			s.logger.Printf("Failed to parse request: %v", err)
			continue
		}

		resp := s.handleRequest(&req)
		if resp != nil {
			if err := encoder.Encode(resp); err != nil {
				s.logger.Printf("Failed to encode response: %v", err)
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scanner error: %w", err)
	}

	return nil
}

// processor builds a pipeline processor over the shared classifier. When
// project is false the output stays in pixel coordinates.
func (s *Server) processor(project bool) (*pipeline.Processor, error) {
	opts := []pipeline.Option{
		pipeline.WithConfig(s.cfg.Extract),
		pipeline.WithWorkers(s.cfg.Pipeline.Workers),
		pipeline.WithLogger(s.logger),
		pipeline.WithVerbose(s.cfg.Debug()),
	}
	if project {
		opts = append(opts, pipeline.WithCRS(s.crs))
	}
	return pipeline.NewProcessor(s.classifier, opts...)
}

// handleRequest routes requests to appropriate handlers
func (s *Server) handleRequest(req *MCPRequest) *MCPResponse {
	switch req.Method {
	case "initialize":
		return s.handleInitialize(req)
	case "notifications/initialized":
		// Client acknowledgment, no response needed
		return nil
	case "tools/list":
		return s.handleToolsList(req)
	case "tools/call":
		return s.handleToolsCall(req)
	case "ping":
		return &MCPResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Result:  map[string]interface{}{},
		}
	default:
		return &MCPResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Error: &MCPError{
				Code:    -32601,
				Message: fmt.Sprintf("Method not found: %s", req.Method),
			},
		}
	}
}

// handleInitialize responds to the initialize request
func (s *Server) handleInitialize(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"protocolVersion": "2024-11-05",
			"capabilities": map[string]interface{}{
				"tools": map[string]interface{}{},
			},
			"serverInfo": map[string]interface{}{
				"name":    "raster2vec-mcp",
				"version": Version,
			},
		},
	}
}
