package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/rosterbot/internal/pipeline"
	"github.com/kalambet/rosterbot/internal/roster"
	"github.com/kalambet/rosterbot/internal/storage"
)

const maxMCPLimit = 50

// MCPDeps holds dependencies for the MCP server. Store is optional; when set,
// recommend calls are logged and recent interactions are exposed.
type MCPDeps struct {
	Pipeline *pipeline.Pipeline
	Store    *storage.Store
	Provider string
	Model    string
	Logger   *slog.Logger
}

// NewMCPServer creates an MCP server with the roster tools and resources registered.
func NewMCPServer(deps MCPDeps, version string) *server.MCPServer {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	s := server.NewMCPServer(
		"rosterbot",
		version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("rosterbot answers staffing questions from the employee roster: semantic candidate search, recommendations, and keyword filters."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("find_candidates",
			mcp.WithDescription("Rank employees by semantic similarity to a free-text staffing query. Lower distance is a closer match."),
			mcp.WithString("query", mcp.Description("What kind of person you need"), mcp.Required()),
			mcp.WithNumber("limit", mcp.Description("Maximum number of candidates (default: the server's top_k)")),
		),
		mcpFindCandidates(deps),
	)

	s.AddTool(
		mcp.NewTool("recommend",
			mcp.WithDescription("Retrieve the best matching employees and generate a written recommendation."),
			mcp.WithString("query", mcp.Description("Staffing question"), mcp.Required()),
		),
		mcpRecommend(deps),
	)

	s.AddTool(
		mcp.NewTool("search_employees",
			mcp.WithDescription("Filter the roster by exact skill name (case-insensitive) and/or minimum years of experience."),
			mcp.WithString("skill", mcp.Description("Skill to require, e.g. Python")),
			mcp.WithNumber("min_experience", mcp.Description("Minimum years of experience")),
		),
		mcpSearchEmployees(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"roster://employees",
			"Employee Roster",
			mcp.WithResourceDescription("Every employee record as JSON"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceRoster(deps),
	)

	if deps.Store != nil {
		s.AddResource(
			mcp.NewResource(
				"roster://interactions/recent",
				"Recent Interactions",
				mcp.WithResourceDescription("Last 10 answered queries"),
				mcp.WithMIMEType("application/json"),
			),
			mcpResourceRecent(deps),
		)
	}

	return s
}

type candidateResult struct {
	roster.Employee
	Distance float32 `json:"distance"`
}

func mcpFindCandidates(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := req.RequireString("query")
		if err != nil || query == "" {
			return mcpError("query is required"), nil
		}

		limit := req.GetInt("limit", deps.Pipeline.TopK())
		if limit <= 0 {
			limit = deps.Pipeline.TopK()
		}
		if limit > maxMCPLimit {
			limit = maxMCPLimit
		}

		matches, err := deps.Pipeline.Search(ctx, query, limit)
		if err != nil {
			return mcpError(fmt.Sprintf("search failed: %v", err)), nil
		}

		results := make([]candidateResult, len(matches))
		for i, m := range matches {
			results[i] = candidateResult{Employee: m.Employee, Distance: m.Distance}
		}
		return mcpJSON(results)
	}
}

func mcpRecommend(deps MCPDeps) server.ToolHandlerFunc {
	log := interactionLog{store: deps.Store, provider: deps.Provider, model: deps.Model, logger: deps.Logger}
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := req.RequireString("query")
		if err != nil || query == "" {
			return mcpError("query is required"), nil
		}

		ans, err := deps.Pipeline.Chat(ctx, query)
		if err != nil {
			return mcpError(fmt.Sprintf("recommendation failed: %v", err)), nil
		}
		log.record(query, ans)

		if ans.Degraded {
			return mcpError(ans.Response), nil
		}
		return mcpText(ans.Response), nil
	}
}

func mcpSearchEmployees(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		f := roster.Filter{Skill: req.GetString("skill", "")}
		args := req.GetArguments()
		if _, ok := args["min_experience"]; ok {
			n := req.GetInt("min_experience", 0)
			f.MinExperience = &n
		}
		return mcpJSON(deps.Pipeline.SearchEmployees(f))
	}
}

func mcpResourceRoster(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		b, err := json.Marshal(deps.Pipeline.Employees())
		if err != nil {
			return nil, fmt.Errorf("failed to marshal roster: %w", err)
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpResourceRecent(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		interactions, err := deps.Store.GetRecentInteractions(10)
		if err != nil {
			return nil, fmt.Errorf("failed to get recent interactions: %w", err)
		}

		type interactionSummary struct {
			ID           string `json:"id"`
			CreatedAt    string `json:"created_at"`
			Query        string `json:"query"`
			CandidateIDs []int  `json:"candidate_ids"`
			Degraded     bool   `json:"degraded"`
		}

		summaries := make([]interactionSummary, len(interactions))
		for i, ix := range interactions {
			query := ix.Query
			if utf8.RuneCountInString(query) > 200 {
				runes := []rune(query)
				query = string(runes[:200]) + "..."
			}
			summaries[i] = interactionSummary{
				ID:           ix.ID,
				CreatedAt:    ix.CreatedAt.Format(time.RFC3339),
				Query:        query,
				CandidateIDs: ix.CandidateIDs,
				Degraded:     ix.Degraded,
			}
		}

		b, err := json.Marshal(summaries)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal interactions: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpJSON(v any) (*mcp.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return mcpError(fmt.Sprintf("failed to marshal results: %v", err)), nil
	}
	return mcpText(string(b)), nil
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
