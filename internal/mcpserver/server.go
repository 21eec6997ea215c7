// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes the Ansuz catalog for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/catalogservice"
	"github.com/starford/ansuz/internal/parser"
	"github.com/starford/ansuz/internal/seed"
	"github.com/starford/ansuz/internal/storage"
)

const formatURI = "ansuz://definition-format"

// Server wraps the MCP server with Ansuz tools.
type Server struct {
	mcp      *server.MCPServer
	svc      *catalogservice.Service
	files    storage.Provider
	importer *seed.Importer
}

// New creates a new MCP server with all Ansuz tools registered. Definitions
// written through import_definition land in files and are imported by im,
// so they are owned by the seed creator.
func New(svc *catalogservice.Service, files storage.Provider, im *seed.Importer) *Server {
	s := &Server{svc: svc, files: files, importer: im}

	s.mcp = server.NewMCPServer(
		"Ansuz",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("search_objects",
		mcp.WithDescription("Fuzzy search over object definition names, best match first."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of results (default 20)")),
	), s.searchObjects)

	s.mcp.AddTool(mcp.NewTool("get_object",
		mcp.WithDescription("Read an object definition with its attributes, methods and relationships as JSON."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Object id")),
	), s.getObject)

	s.mcp.AddTool(mcp.NewTool("export_definition",
		mcp.WithDescription("Render an object definition in the YAML definition format."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Object id")),
	), s.exportDefinition)

	s.mcp.AddTool(mcp.NewTool("list_designs",
		mcp.WithDescription("List the object definitions created by a user, most recently updated first."),
		mcp.WithString("user_id", mcp.Required(), mcp.Description("Creator user id")),
	), s.listDesigns)

	s.mcp.AddTool(mcp.NewTool("list_definitions",
		mcp.WithDescription("List the definition files in the seed directory."),
	), s.listDefinitions)

	s.mcp.AddTool(mcp.NewTool("import_definition",
		mcp.WithDescription("Create or update an object from a YAML definition. "+
			"Content MUST follow the definition format. Read the contract first via "+
			"the get_definition_format tool or the "+formatURI+" resource."),
		mcp.WithString("content", mcp.Required(), mcp.Description("YAML definition following the Ansuz definition format")),
		mcp.WithString("path", mcp.Description("File name to store it under (default derived from name and version)")),
	), s.importDefinition)

	s.mcp.AddTool(mcp.NewTool("get_definition_format",
		mcp.WithDescription("Returns the Ansuz object definition format contract. "+
			"Call this before importing definitions to ensure correct structure."),
	), s.getDefinitionFormat)

	s.mcp.AddResource(
		mcp.NewResource(formatURI, "Definition Format Contract",
			mcp.WithResourceDescription("YAML format that all object definition files must follow."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readDefinitionFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func toolError(err error) *mcp.CallToolResult {
	if errors.Is(err, apperr.ErrNotFound) {
		return mcp.NewToolResultError("object not found")
	}
	return mcp.NewToolResultError(err.Error())
}

func (s *Server) searchObjects(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	hits, err := s.svc.Search(ctx, query, req.GetInt("limit", 0))
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(hits)
}

func (s *Server) getObject(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	obj, err := s.svc.GetObject(ctx, id)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(obj)
}

func (s *Server) exportDefinition(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	obj, err := s.svc.GetObject(ctx, id)
	if err != nil {
		return toolError(err), nil
	}
	data, err := parser.Encode(parser.FromObject(obj))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) listDesigns(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID, err := req.RequireString("user_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	list, err := s.svc.ListDesigns(ctx, userID)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(list)
}

func (s *Server) listDefinitions(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	files, err := s.files.List("")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(files) == 0 {
		return mcp.NewToolResultText("no definition files found"), nil
	}
	paths := make([]string, len(files))
	for i, f := range files {
		paths[i] = f.Path
	}
	return mcp.NewToolResultText(strings.Join(paths, "\n")), nil
}

func (s *Server) importDefinition(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	data := []byte(content)
	def, err := parser.Parse(data)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	path := req.GetString("path", "")
	if path == "" {
		path = parser.FileName(def.Name, def.Version)
	}
	if !storage.IsDefinition(path) {
		return mcp.NewToolResultError(fmt.Sprintf("path must end with .yaml: %s", path)), nil
	}

	// Import first so a rejected definition never reaches the directory.
	kind, err := s.importer.ImportFile(ctx, path, data)
	if err != nil {
		return toolError(err), nil
	}
	if err := s.files.Write(path, data); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("%s: %s", kind, path)), nil
}

func (s *Server) getDefinitionFormat(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(DefinitionFormatContract), nil
}

func (s *Server) readDefinitionFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      formatURI,
			MIMEType: "text/markdown",
			Text:     DefinitionFormatContract,
		},
	}, nil
}
