// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes the plan operations as tools via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/vitalplan/internal/apperr"
	"github.com/starford/vitalplan/internal/models"
	"github.com/starford/vitalplan/internal/planservice"
)

// Server wraps the MCP server with the plan tools.
type Server struct {
	mcp *server.MCPServer
	svc *planservice.Service
}

// New creates a new MCP server with all plan tools registered.
func New(svc *planservice.Service, version string) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"vitalplan",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	domainOpt := mcp.WithString("domain", mcp.Required(),
		mcp.Description("Plan domain: nutrition (alias diet) or exercise (alias workout)"))
	ownerOpt := mcp.WithNumber("owner_id", mcp.Required(), mcp.Description("Positive integer id of the plan owner"))

	s.mcp.AddTool(mcp.NewTool("generate_plan",
		mcp.WithDescription("Generate a new 7-day plan for an owner and replace the stored one. "+
			"The stored plan is only replaced when the generated document passes validation."),
		domainOpt,
		ownerOpt,
		mcp.WithString("preferences", mcp.Description("Free-text preferences, e.g. 'vegetarian' or 'knee friendly'")),
	), s.generatePlan)

	s.mcp.AddTool(mcp.NewTool("get_plan",
		mcp.WithDescription("Read the stored 7-day plan of an owner as day -> category -> items JSON."),
		domainOpt,
		ownerOpt,
	), s.getPlan)

	s.mcp.AddTool(mcp.NewTool("delete_plan",
		mcp.WithDescription("Delete the stored plan of an owner. Returns how many items were removed."),
		domainOpt,
		ownerOpt,
	), s.deletePlan)

	s.mcp.AddTool(mcp.NewTool("get_plan_contract",
		mcp.WithDescription("Returns the document shape and prompt used to generate plans of a domain."),
		domainOpt,
	), s.getPlanContract)

	s.mcp.AddTool(mcp.NewTool("list_rejections",
		mcp.WithDescription("List archived generation responses that failed validation, newest first."),
		domainOpt,
		ownerOpt,
	), s.listRejections)

	for _, d := range models.Domains {
		domain := d
		uri := contractURI(domain)
		s.mcp.AddResource(
			mcp.NewResource(uri, fmt.Sprintf("%s plan contract", domain),
				mcp.WithResourceDescription(fmt.Sprintf("Prompt and document shape for %s plans.", domain)),
				mcp.WithMIMEType("text/plain"),
			),
			func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
				return s.readContractResource(domain)
			},
		)
	}

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

func contractURI(d models.Domain) string {
	return "vitalplan://contract/" + string(d)
}

func planArgs(req mcp.CallToolRequest) (int64, models.Domain, error) {
	domain, err := domainArg(req)
	if err != nil {
		return 0, "", err
	}
	raw, err := req.RequireFloat("owner_id")
	if err != nil {
		return 0, "", err
	}
	if raw <= 0 || raw != math.Trunc(raw) {
		return 0, "", fmt.Errorf("owner_id must be a positive integer")
	}
	return int64(raw), domain, nil
}

func domainArg(req mcp.CallToolRequest) (models.Domain, error) {
	name, err := req.RequireString("domain")
	if err != nil {
		return "", err
	}
	return models.ParseDomain(name)
}

// toolError renders err for the calling model, keeping the location of
// validation failures.
func toolError(err error) *mcp.CallToolResult {
	var ge *apperr.GenerationError
	if errors.As(err, &ge) {
		msg := err.Error()
		if ge.Retryable() {
			msg += " (retryable)"
		}
		return mcp.NewToolResultError(msg)
	}
	return mcp.NewToolResultError(err.Error())
}

func jsonResult(v any) *mcp.CallToolResult {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultText(string(out))
}

func (s *Server) generatePlan(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	owner, domain, err := planArgs(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	view, err := s.svc.GeneratePlan(ctx, owner, domain, req.GetString("preferences", ""))
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(view), nil
}

func (s *Server) getPlan(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	owner, domain, err := planArgs(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	view, err := s.svc.GetPlan(ctx, owner, domain)
	if errors.Is(err, apperr.ErrNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf("no %s plan for owner %d", domain, owner)), nil
	}
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(view), nil
}

func (s *Server) deletePlan(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	owner, domain, err := planArgs(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	n, err := s.svc.DeletePlan(ctx, owner, domain)
	if err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("deleted: %d", n)), nil
}

func (s *Server) getPlanContract(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	domain, err := domainArg(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	text, err := s.contractText(domain)
	if err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText(text), nil
}

func (s *Server) listRejections(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	owner, domain, err := planArgs(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	items, err := s.svc.Rejections(ctx, owner, domain)
	if err != nil {
		return toolError(err), nil
	}
	if len(items) == 0 {
		return mcp.NewToolResultText("no rejected responses"), nil
	}
	var b strings.Builder
	for _, it := range items {
		fmt.Fprintf(&b, "%s\t%s\t%d bytes\n", it.CreatedAt.Format("2006-01-02T15:04:05Z07:00"), it.Path, it.Size)
	}
	return mcp.NewToolResultText(strings.TrimSuffix(b.String(), "\n")), nil
}

func (s *Server) contractText(domain models.Domain) (string, error) {
	c, err := s.svc.Contract(domain)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Categories: %s\nDefault preferences: %s\n\nShape:\n%s\n\nPrompt:\n%s",
		strings.Join(c.Categories, ", "), c.DefaultPreference, c.Shape, c.Prompt), nil
}

func (s *Server) readContractResource(domain models.Domain) ([]mcp.ResourceContents, error) {
	text, err := s.contractText(domain)
	if err != nil {
		return nil, err
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      contractURI(domain),
			MIMEType: "text/plain",
			Text:     text,
		},
	}, nil
}
