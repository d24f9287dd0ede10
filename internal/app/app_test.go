package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/tally/internal/common"
	"github.com/bobmcallan/tally/internal/models"
	"github.com/bobmcallan/tally/internal/storage"
)

// newTestApp wires an App onto a temp-dir store without config file
// resolution. No Gemini key is configured, so Narrative stays nil.
func newTestApp(t *testing.T) *App {
	t.Helper()

	// Ambient keys would wire a live Gemini client.
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("TALLY_GEMINI_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "")

	cfg := common.NewDefaultConfig()
	cfg.Storage.Path = t.TempDir()
	cfg.Logging.Level = "error"

	logger := common.NewSilentLogger()
	manager, err := storage.NewManager(logger, cfg)
	require.NoError(t, err)

	a, err := build(cfg, logger, manager)
	require.NoError(t, err)
	a.StartupTime = time.Now()
	t.Cleanup(a.Close)
	return a
}

// newInProcessClient connects an mcp-go in-process client to the given
// MCP server and completes the initialization handshake.
func newInProcessClient(t *testing.T, mcpServer *server.MCPServer) *client.Client {
	t.Helper()

	c, err := client.NewInProcessClient(mcpServer)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, c.Start(ctx))

	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcp.Implementation{
		Name:    "test-client",
		Version: "1.0.0",
	}
	_, err = c.Initialize(ctx, initReq)
	require.NoError(t, err)

	t.Cleanup(func() { c.Close() })
	return c
}

func callTool(t *testing.T, c *client.Client, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	result, err := c.CallTool(ctx, req)
	require.NoError(t, err)
	require.NotEmpty(t, result.Content)
	return result
}

func textContent(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	tc, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content")
	return tc.Text
}

func TestBuildInitializesCore(t *testing.T) {
	a := newTestApp(t)

	assert.NotNil(t, a.Config)
	assert.NotNil(t, a.Logger)
	assert.NotNil(t, a.Storage)
	assert.NotNil(t, a.Cache)
	assert.NotNil(t, a.Provider)
	assert.NotNil(t, a.Research)
	assert.NotNil(t, a.MCPServer)
	assert.Nil(t, a.Narrative, "narrative client should stay nil without an API key")
	assert.NotNil(t, a.MCPHandler())
}

func TestMCPServerExposesTools(t *testing.T) {
	a := newTestApp(t)
	c := newInProcessClient(t, a.MCPServer)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	tools, err := c.ListTools(ctx, mcp.ListToolsRequest{})
	require.NoError(t, err)

	names := make(map[string]bool, len(tools.Tools))
	for _, tool := range tools.Tools {
		names[tool.Name] = true
	}
	for _, want := range []string{
		"get_version",
		"list_tickers",
		"get_scorecard",
		"get_fundamental_analysis",
		"get_technical_analysis",
		"get_earnings",
		"get_macro_risk",
		"get_company_overview",
		"get_news",
	} {
		assert.True(t, names[want], "missing tool %s", want)
	}
}

func TestGetVersionTool(t *testing.T) {
	a := newTestApp(t)
	c := newInProcessClient(t, a.MCPServer)

	result := callTool(t, c, "get_version", nil)
	assert.False(t, result.IsError)
	text := textContent(t, result)
	assert.Contains(t, text, "Tally Server")
	assert.Contains(t, text, "Version:")
}

func TestListTickersToolAfterIngest(t *testing.T) {
	a := newTestApp(t)

	pe := 18.0
	record := &models.CompanyRecord{
		Ticker: "bhp",
		Profile: &models.CompanyProfile{
			Ticker: "BHP",
			Name:   "BHP Group",
			Sector: "Materials",
		},
		Fundamentals: &models.RawFundamentals{
			Ticker:  "BHP",
			PERatio: &pe,
		},
	}
	require.NoError(t, a.Research.IngestRecord(context.Background(), record))

	c := newInProcessClient(t, a.MCPServer)
	result := callTool(t, c, "list_tickers", nil)
	assert.False(t, result.IsError)
	assert.Contains(t, textContent(t, result), "BHP")
}

func TestScorecardToolUnknownTicker(t *testing.T) {
	a := newTestApp(t)
	c := newInProcessClient(t, a.MCPServer)

	result := callTool(t, c, "get_scorecard", map[string]any{"ticker": "NOPE"})
	assert.True(t, result.IsError)
	assert.Contains(t, textContent(t, result), "not found")
}

func TestScorecardToolMissingTicker(t *testing.T) {
	a := newTestApp(t)
	c := newInProcessClient(t, a.MCPServer)

	result := callTool(t, c, "get_scorecard", map[string]any{})
	assert.True(t, result.IsError)
	assert.Contains(t, textContent(t, result), "ticker parameter is required")
}

func TestMacroRiskToolWithoutClient(t *testing.T) {
	a := newTestApp(t)

	record := &models.CompanyRecord{
		Ticker:  "BHP",
		Profile: &models.CompanyProfile{Ticker: "BHP", Name: "BHP Group"},
	}
	require.NoError(t, a.Research.IngestRecord(context.Background(), record))

	c := newInProcessClient(t, a.MCPServer)
	result := callTool(t, c, "get_macro_risk", map[string]any{"ticker": "BHP"})
	assert.True(t, result.IsError)
	assert.Contains(t, textContent(t, result), "narrative")
}

func TestNewAppLoadsConfigFile(t *testing.T) {
	configPath := writeTestConfig(t)

	a, err := NewApp(configPath)
	require.NoError(t, err)
	defer a.Close()

	assert.Equal(t, "error", a.Config.Logging.Level)
	assert.False(t, a.StartupTime.IsZero())
}

func writeTestConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	config := `
environment = "test"

[storage]
path = "` + filepath.Join(dir, "data") + `"

[logging]
level = "error"
format = "console"
`
	configPath := filepath.Join(dir, "tally.toml")
	require.NoError(t, os.WriteFile(configPath, []byte(config), 0644))
	return configPath
}
