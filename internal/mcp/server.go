package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/gramps-project/grampsindex/internal/config"
	"github.com/gramps-project/grampsindex/internal/docstore"
	"github.com/gramps-project/grampsindex/internal/index"
	"github.com/gramps-project/grampsindex/pkg/version"
)

// Indexers resolves the indexers of a tree. *index.Registry implements it.
type Indexers interface {
	Keyword(tree string) (*index.Indexer, error)
	Semantic(tree string) (*index.Indexer, error)
	SemanticEnabled() bool
}

var _ Indexers = (*index.Registry)(nil)

// Options configures what the assistant may see.
type Options struct {
	// Tree is used when a tool call names no tree.
	Tree string
	// IncludePrivate lets searches and counts use the full collections.
	// Off, the assistant only ever sees public text.
	IncludePrivate bool
	// Now returns the current time; time.Now when nil.
	Now func() time.Time
}

// ToolInfo describes a registered tool.
type ToolInfo struct {
	Name        string
	Description string
}

// Server is the MCP server for the genealogy search indexes.
type Server struct {
	mcp      *mcp.Server
	indexers Indexers
	config   *config.Config
	opts     Options
	logger   *slog.Logger
}

// NewServer creates a server and registers its tools.
func NewServer(indexers Indexers, cfg *config.Config, opts Options) (*Server, error) {
	if indexers == nil {
		return nil, errors.New("indexers are required")
	}
	if cfg == nil {
		cfg = config.NewConfig()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	s := &Server{
		indexers: indexers,
		config:   cfg,
		opts:     opts,
		logger:   slog.Default(),
	}
	s.mcp = mcp.NewServer(&mcp.Implementation{Name: version.Name, Version: version.Version}, nil)
	s.registerTools()
	return s, nil
}

// MCPServer returns the underlying SDK server.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

// ListTools returns the registered tools.
func (s *Server) ListTools() []ToolInfo {
	return []ToolInfo{
		{
			Name: ToolSearch,
			Description: "Search the user's family tree for people, families, events, places, sources " +
				"and notes. Returns the text of the most relevant records. Prefer natural-language queries.",
		},
		{
			Name:        ToolCountDocuments,
			Description: "Count the records in the search index of the family tree.",
		},
		{
			Name:        ToolCurrentDate,
			Description: "Get today's date in ISO format, e.g. to compute ages or time spans.",
		},
	}
}

// CallTool invokes a tool by name with loosely typed arguments.
func (s *Server) CallTool(ctx context.Context, name string, args map[string]any) (any, error) {
	switch name {
	case ToolSearch:
		in := SearchInput{}
		in.Query, _ = args["query"].(string)
		in.Tree, _ = args["tree"].(string)
		if n, ok := args["max_results"].(float64); ok {
			in.MaxResults = int(n)
		}
		return s.search(ctx, in)
	case ToolCountDocuments:
		in := CountInput{}
		in.IncludePrivate, _ = args["include_private"].(bool)
		in.Tree, _ = args["tree"].(string)
		return s.count(ctx, in)
	case ToolCurrentDate:
		return s.currentDate(), nil
	default:
		return nil, NewMethodNotFoundError(name)
	}
}

func (s *Server) tree(requested string) (string, error) {
	tree := strings.TrimSpace(requested)
	if tree == "" {
		tree = s.opts.Tree
	}
	if tree == "" {
		return "", NewInvalidParamsError("tree is required: the server has no default tree")
	}
	return tree, nil
}

// search prefers the semantic index and falls back to keyword search
// when no embedding model is configured.
func (s *Server) search(ctx context.Context, in SearchInput) (*SearchOutput, error) {
	if strings.TrimSpace(in.Query) == "" {
		return nil, NewInvalidParamsError("query cannot be empty or whitespace only")
	}
	tree, err := s.tree(in.Tree)
	if err != nil {
		return nil, err
	}
	hi := s.config.Search.MaxResults
	if hi <= 0 {
		hi = 50
	}
	limit := clampLimit(in.MaxResults, min(DefaultMaxResults, hi), 1, hi)

	var ix *index.Indexer
	if s.indexers.SemanticEnabled() {
		ix, err = s.indexers.Semantic(tree)
	} else {
		ix, err = s.indexers.Keyword(tree)
	}
	if err != nil {
		return nil, MapError(err)
	}

	requestID := uuid.NewString()
	start := time.Now()
	res, err := ix.Search(ctx, index.SearchRequest{
		Query:          in.Query,
		Page:           1,
		PageSize:       limit,
		IncludePrivate: s.opts.IncludePrivate,
		IncludeContent: true,
	})
	if err != nil {
		s.logger.Error("tool_search_failed",
			slog.String("request_id", requestID),
			slog.String("tree", tree),
			slog.String("error", err.Error()))
		return nil, MapError(err)
	}

	text, used := BuildContext(res.Hits, s.config.Search.ContextBudget)
	if used == 0 {
		text = NoResults
	}
	s.logger.Info("tool_search",
		slog.String("request_id", requestID),
		slog.String("tree", tree),
		slog.String("flavour", string(ix.Kind())),
		slog.Int("limit", limit),
		slog.Int("hits", len(res.Hits)),
		slog.Int("used", used),
		slog.Int("chars", len(text)),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()))

	return &SearchOutput{
		Tree:    tree,
		Flavour: string(ix.Kind()),
		Total:   res.Total,
		Used:    used,
		Context: text,
	}, nil
}

func (s *Server) count(ctx context.Context, in CountInput) (*CountOutput, error) {
	if in.IncludePrivate && !s.opts.IncludePrivate {
		return nil, NewInvalidParamsError("private records are not available to this assistant")
	}
	tree, err := s.tree(in.Tree)
	if err != nil {
		return nil, err
	}

	out := &CountOutput{Tree: tree, IncludePrivate: in.IncludePrivate}
	kw, err := s.indexers.Keyword(tree)
	if err != nil {
		return nil, MapError(err)
	}
	if out.Keyword, err = kw.Count(ctx, in.IncludePrivate); err != nil {
		return nil, MapError(err)
	}
	if s.indexers.SemanticEnabled() {
		sem, err := s.indexers.Semantic(tree)
		if err != nil {
			return nil, MapError(err)
		}
		n, err := sem.Count(ctx, in.IncludePrivate)
		if err != nil {
			return nil, MapError(err)
		}
		out.Semantic = &n
	}
	return out, nil
}

func (s *Server) currentDate() *DateOutput {
	return &DateOutput{Date: s.opts.Now().Format(time.DateOnly)}
}

func (s *Server) registerTools() {
	tools := s.ListTools()

	mcp.AddTool(s.mcp, &mcp.Tool{Name: tools[0].Name, Description: tools[0].Description},
		func(ctx context.Context, _ *mcp.CallToolRequest, in SearchInput) (*mcp.CallToolResult, SearchOutput, error) {
			out, err := s.search(ctx, in)
			if err != nil {
				return nil, SearchOutput{}, err
			}
			return textResult(out.Context), *out, nil
		})

	mcp.AddTool(s.mcp, &mcp.Tool{Name: tools[1].Name, Description: tools[1].Description},
		func(ctx context.Context, _ *mcp.CallToolRequest, in CountInput) (*mcp.CallToolResult, CountOutput, error) {
			out, err := s.count(ctx, in)
			if err != nil {
				return nil, CountOutput{}, err
			}
			msg := fmt.Sprintf("%d records in the keyword index of tree %s", out.Keyword, out.Tree)
			if out.Semantic != nil {
				msg += fmt.Sprintf(", %d in the semantic index", *out.Semantic)
			}
			return textResult(msg), *out, nil
		})

	mcp.AddTool(s.mcp, &mcp.Tool{Name: tools[2].Name, Description: tools[2].Description},
		func(context.Context, *mcp.CallToolRequest, DateInput) (*mcp.CallToolResult, DateOutput, error) {
			out := s.currentDate()
			return textResult(out.Date), *out, nil
		})

	s.logger.Debug("mcp_tools_registered", slog.Int("count", len(tools)))
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: text}}}
}

// Serve runs the server on the given transport until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, transport string) error {
	s.logger.Info("mcp_server_starting",
		slog.String("transport", transport),
		slog.String("tree", s.opts.Tree),
		slog.Bool("include_private", s.opts.IncludePrivate),
		slog.String("flavour", string(s.preferredKind())))

	switch transport {
	case "stdio", "":
		err := s.mcp.Run(ctx, &mcp.StdioTransport{})
		if err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error("mcp_server_stopped", slog.String("error", err.Error()))
			return err
		}
		s.logger.Info("mcp_server_stopped")
		return nil
	default:
		return fmt.Errorf("unknown transport: %s (supported: stdio)", transport)
	}
}

func (s *Server) preferredKind() docstore.Kind {
	if s.indexers.SemanticEnabled() {
		return docstore.KindSemantic
	}
	return docstore.KindKeyword
}
