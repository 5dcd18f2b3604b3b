package mcpbridge

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/vaultbridge/internal/jsonx"
)

// ServerConfig configures a Server.
type ServerConfig struct {
	Logger    *zap.Logger
	Name      string
	Version   string
	Tools     []Tool
	Resources []ResourceDefinition
	ResourceHandlers map[string]ResourceHandler
}

// Server implements the MCP JSON-RPC 2.0 method contract: initialize,
// tools/list, tools/call, resources/list, resources/read, ping, and
// the client notification methods that require no response.
type Server struct {
	logger    *zap.Logger
	name      string
	version   string
	tools     []Tool
	handlers  map[string]ToolHandler
	resources []ResourceDefinition
	resourceHandlers map[string]ResourceHandler
}

// NewServer builds a Server from the given tool and resource set.
func NewServer(cfg ServerConfig) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	name := cfg.Name
	if name == "" {
		name = "vaultbridge"
	}
	version := cfg.Version
	if version == "" {
		version = "0.1.0"
	}

	handlers := make(map[string]ToolHandler, len(cfg.Tools))
	for _, tool := range cfg.Tools {
		handlers[tool.Definition.Name] = tool.Handler
	}

	return &Server{
		logger:           logger,
		name:             name,
		version:          version,
		tools:            cfg.Tools,
		handlers:         handlers,
		resources:        cfg.Resources,
		resourceHandlers: cfg.ResourceHandlers,
	}
}

// HandleRequest dispatches one JSON-RPC request to the matching
// method handler.
func (s *Server) HandleRequest(ctx context.Context, req Request) Response {
	switch req.Method {
	case "initialize":
		return s.reply(req, s.handleInitialize())
	case "initialized", "notifications/initialized", "notifications/cancelled":
		return Response{JSONRPC: "2.0", ID: req.ID}
	case "ping":
		return s.reply(req, map[string]any{"status": "ok"})
	case "tools/list":
		return s.reply(req, s.handleListTools())
	case "tools/call":
		return s.handleToolCall(ctx, req)
	case "resources/list":
		return s.reply(req, s.handleListResources())
	case "resources/read":
		return s.handleReadResource(ctx, req)
	default:
		return s.errorReply(req, codeMethodNotFound, fmt.Sprintf("method not found: %s", req.Method), nil)
	}
}

func (s *Server) reply(req Request, result any) Response {
	return Response{JSONRPC: "2.0", ID: req.ID, Result: result}
}

func (s *Server) errorReply(req Request, code int, message string, data any) Response {
	return Response{JSONRPC: "2.0", ID: req.ID, Error: &ErrorBody{Code: code, Message: message, Data: data}}
}

func (s *Server) handleInitialize() any {
	return map[string]any{
		"protocolVersion": "2024-11-05",
		"capabilities": map[string]any{
			"tools":     map[string]bool{"listChanged": false},
			"resources": map[string]bool{"listChanged": false},
		},
		"serverInfo": map[string]string{"name": s.name, "version": s.version},
	}
}

func (s *Server) handleListTools() listToolsResponse {
	defs := make([]ToolDefinition, 0, len(s.tools))
	for _, tool := range s.tools {
		defs = append(defs, tool.Definition)
	}
	return listToolsResponse{Tools: defs}
}

func (s *Server) handleListResources() listResourcesResponse {
	return listResourcesResponse{Resources: s.resources}
}

func (s *Server) handleToolCall(ctx context.Context, req Request) Response {
	var params callToolParams
	if err := decodeParams(req.Params, &params); err != nil {
		return s.errorReply(req, codeInvalidParams, "invalid params: "+err.Error(), nil)
	}
	if params.Name == "" {
		return s.errorReply(req, codeInvalidParams, "invalid params: missing tool name", nil)
	}

	handler, ok := s.handlers[params.Name]
	if !ok {
		return s.errorReply(req, codeMethodNotFound, fmt.Sprintf("tool not found: %s", params.Name), nil)
	}

	args := normalizeArgs(params.Name, params.Arguments)

	s.logger.Info("tool called", zap.String("tool", params.Name), zap.Int("args", len(args)))

	result, err := handler(ctx, args)
	if err != nil {
		if rpcErr, ok := err.(*RPCError); ok {
			return s.errorReply(req, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		}
		return s.errorReply(req, codeInternalError, fmt.Sprintf("tool execution failed: %v", err), nil)
	}

	return s.reply(req, callToolResponse{
		Content: []map[string]any{{"type": "text", "text": formatResult(result)}},
	})
}

func (s *Server) handleReadResource(ctx context.Context, req Request) Response {
	var params readResourceParams
	if err := decodeParams(req.Params, &params); err != nil {
		return s.errorReply(req, codeInvalidParams, "invalid params: "+err.Error(), nil)
	}

	handler, ok := s.resourceHandlers[params.URI]
	if !ok {
		return s.errorReply(req, codeInvalidParams, fmt.Sprintf("resource not found: %s", params.URI), nil)
	}

	result, err := handler(ctx)
	if err != nil {
		return s.errorReply(req, codeInternalError, err.Error(), nil)
	}

	return s.reply(req, readResourceResponse{
		Contents: []map[string]any{{"uri": params.URI, "mimeType": "application/json", "text": formatResult(result)}},
	})
}

func decodeParams(raw map[string]any, v any) error {
	encoded, err := jsonx.Marshal(raw)
	if err != nil {
		return err
	}
	return jsonx.Unmarshal(encoded, v)
}

func formatResult(result any) string {
	encoded, err := jsonx.Marshal(result)
	if err != nil {
		return fmt.Sprintf("%v", result)
	}
	return string(encoded)
}
