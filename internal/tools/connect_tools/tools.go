package connect_tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/agenticmail/connectd/internal/server"
	"github.com/agenticmail/connectd/internal/tools/common"
)

// RegisterConnectTools registers the connection flow tools with the MCP
// server, so agents can list the provider catalog and start authorization
// flows on a user's behalf. Completing a flow is never a tool: the second
// leg only happens through the provider redirect to the HTTP callback.
func RegisterConnectTools(s *mcpserver.MCPServer, sc *server.ServerContext) error {
	listProvidersTool := mcp.NewTool("connect_list_providers",
		mcp.WithDescription("List the OAuth providers that skills can connect to, including their default scopes"),
	)

	s.AddTool(listProvidersTool, common.InstrumentedToolHandler("connect_list_providers", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleListProviders(ctx, request, sc)
		}))

	startAuthTool := mcp.NewTool("connect_start_authorization",
		mcp.WithDescription("Start an OAuth authorization flow for a skill. Returns the URL the user must visit to grant access."),
		mcp.WithString("skill_id",
			mcp.Required(),
			mcp.Description("The skill integration to connect (e.g. 'skill-gmail')"),
		),
		mcp.WithString("org_id",
			mcp.Required(),
			mcp.Description("The organization the connection belongs to"),
		),
		mcp.WithString("provider",
			mcp.Required(),
			mcp.Description("The provider id from connect_list_providers (e.g. 'google')"),
		),
		mcp.WithString("redirect_uri",
			mcp.Required(),
			mcp.Description("The callback URL registered with the provider"),
		),
	)

	s.AddTool(startAuthTool, common.InstrumentedToolHandler("connect_start_authorization", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleStartAuthorization(ctx, request, sc)
		}))

	return nil
}

func handleListProviders(_ context.Context, _ mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	defs := sc.Registry().List()

	var b strings.Builder
	b.WriteString(fmt.Sprintf("Available providers (%d):\n\n", len(defs)))
	for _, d := range defs {
		b.WriteString(fmt.Sprintf("- %s (%s)\n", d.ID, d.Name))
		if len(d.DefaultScopes) > 0 {
			b.WriteString(fmt.Sprintf("  default scopes: %s\n", strings.Join(d.DefaultScopes, ", ")))
		}
		if d.SupportsPKCE {
			b.WriteString("  PKCE: supported\n")
		}
	}

	return mcp.NewToolResultText(b.String()), nil
}

func handleStartAuthorization(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	stringArg := func(name string) string {
		v, _ := args[name].(string)
		return v
	}

	skillID := stringArg("skill_id")
	orgID := stringArg("org_id")
	providerID := stringArg("provider")
	redirectURI := stringArg("redirect_uri")

	if skillID == "" || orgID == "" || providerID == "" || redirectURI == "" {
		return mcp.NewToolResultError("skill_id, org_id, provider, and redirect_uri are all required"), nil
	}

	authURL, err := sc.Flows().StartAuthorization(ctx, skillID, orgID, providerID, redirectURI)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to start authorization for provider %s: %v", providerID, err)), nil
	}

	result := fmt.Sprintf(`Authorization flow started for skill %q (provider: %s).

Have the user visit this URL to grant access:

   %s

After the user approves, the provider redirects to the callback URL and the connection completes automatically.`,
		skillID, providerID, authURL)

	return mcp.NewToolResultText(result), nil
}
