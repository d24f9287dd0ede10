package app

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/bobmcallan/tally/internal/common"
	"github.com/bobmcallan/tally/internal/interfaces"
	"github.com/bobmcallan/tally/internal/models"
)

// registerTools registers all MCP tools on the App's MCPServer.
func (a *App) registerTools() {
	s := a.MCPServer
	rs := a.Research
	logger := a.Logger

	s.AddTool(createGetVersionTool(), handleGetVersion())
	s.AddTool(createListTickersTool(), handleListTickers(rs, logger))
	s.AddTool(createGetScorecardTool(), handleGetScorecard(rs, logger))
	s.AddTool(createGetFundamentalAnalysisTool(), handleGetFundamentalAnalysis(rs, logger))
	s.AddTool(createGetTechnicalAnalysisTool(), handleGetTechnicalAnalysis(rs, logger))
	s.AddTool(createGetEarningsTool(), handleGetEarnings(rs, logger))
	s.AddTool(createGetMacroRiskTool(), handleGetMacroRisk(rs, logger))
	s.AddTool(createGetCompanyOverviewTool(), handleGetCompanyOverview(rs, logger))
	s.AddTool(createGetNewsTool(), handleGetNews(rs, logger))
}

// --- Tool definitions ---

// createGetVersionTool returns the get_version tool definition
func createGetVersionTool() mcp.Tool {
	return mcp.NewTool("get_version",
		mcp.WithDescription("Get the Tally server version and status. Use this to verify connectivity."),
	)
}

// createListTickersTool returns the list_tickers tool definition
func createListTickersTool() mcp.Tool {
	return mcp.NewTool("list_tickers",
		mcp.WithDescription("List all tickers with stored company records available for analysis."),
	)
}

// createGetScorecardTool returns the get_scorecard tool definition
func createGetScorecardTool() mcp.Tool {
	return mcp.NewTool("get_scorecard",
		mcp.WithDescription("Build the composite scorecard for a stock: fundamental score blended with multi-timeframe technical consensus, grade, signal, and swing-trade assessment."),
		mcp.WithString("ticker",
			mcp.Required(),
			mcp.Description("Stock ticker (e.g., 'BHP', 'AAPL')"),
		),
	)
}

// createGetFundamentalAnalysisTool returns the get_fundamental_analysis tool definition
func createGetFundamentalAnalysisTool() mcp.Tool {
	return mcp.NewTool("get_fundamental_analysis",
		mcp.WithDescription("Score a stock's valuation, growth, financial health, and profitability against sector benchmarks. ETFs have no fundamental analysis."),
		mcp.WithString("ticker",
			mcp.Required(),
			mcp.Description("Stock ticker"),
		),
	)
}

// createGetTechnicalAnalysisTool returns the get_technical_analysis tool definition
func createGetTechnicalAnalysisTool() mcp.Tool {
	return mcp.NewTool("get_technical_analysis",
		mcp.WithDescription("Score one timeframe of price history: moving averages, MACD, RSI, support/resistance, volume, and chart patterns."),
		mcp.WithString("ticker",
			mcp.Required(),
			mcp.Description("Stock ticker"),
		),
		mcp.WithString("timeframe",
			mcp.Description("Bar interval: hourly, daily, or weekly (default: daily)"),
		),
	)
}

// createGetEarningsTool returns the get_earnings tool definition
func createGetEarningsTool() mcp.Tool {
	return mcp.NewTool("get_earnings",
		mcp.WithDescription("Get up to eight de-accumulated standalone quarters, newest first, with QoQ and YoY changes and operating margins."),
		mcp.WithString("ticker",
			mcp.Required(),
			mcp.Description("Stock ticker"),
		),
	)
}

// createGetMacroRiskTool returns the get_macro_risk tool definition
func createGetMacroRiskTool() mcp.Tool {
	return mcp.NewTool("get_macro_risk",
		mcp.WithDescription("Get the AI macro-risk assessment for a stock: tailwinds, headwinds, and a summary of the macro environment."),
		mcp.WithString("ticker",
			mcp.Required(),
			mcp.Description("Stock ticker"),
		),
	)
}

// createGetCompanyOverviewTool returns the get_company_overview tool definition
func createGetCompanyOverviewTool() mcp.Tool {
	return mcp.NewTool("get_company_overview",
		mcp.WithDescription("Get the company profile plus headline analysis state: key ratios, latest scorecard, and stored data counts."),
		mcp.WithString("ticker",
			mcp.Required(),
			mcp.Description("Stock ticker"),
		),
	)
}

// createGetNewsTool returns the get_news tool definition
func createGetNewsTool() mcp.Tool {
	return mcp.NewTool("get_news",
		mcp.WithDescription("Get stored news items for a stock, newest first."),
		mcp.WithString("ticker",
			mcp.Required(),
			mcp.Description("Stock ticker"),
		),
	)
}

// --- Tool handlers ---

// handleGetVersion implements the get_version tool
func handleGetVersion() server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		result := fmt.Sprintf("Tally Server\nVersion: %s\nBuild: %s\nCommit: %s\nStatus: OK",
			common.GetVersion(), common.GetBuild(), common.GetGitCommit())
		return textResult(result), nil
	}
}

// handleListTickers implements the list_tickers tool
func handleListTickers(rs interfaces.ResearchService, logger *common.Logger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		tickers, err := rs.ListTickers(ctx)
		if err != nil {
			logger.Error().Err(err).Msg("List tickers failed")
			return errorResult(fmt.Sprintf("Error: %v", err)), nil
		}
		return jsonResult(map[string]interface{}{"tickers": tickers, "count": len(tickers)})
	}
}

// handleGetScorecard implements the get_scorecard tool
func handleGetScorecard(rs interfaces.ResearchService, logger *common.Logger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ticker, err := request.RequireString("ticker")
		if err != nil || ticker == "" {
			return errorResult("Error: ticker parameter is required"), nil
		}

		card, err := rs.GetScorecard(ctx, ticker)
		if err != nil {
			logger.Error().Err(err).Str("ticker", ticker).Msg("Scorecard failed")
			return errorResult(fmt.Sprintf("Scorecard error: %v", err)), nil
		}
		return jsonResult(card)
	}
}

// handleGetFundamentalAnalysis implements the get_fundamental_analysis tool
func handleGetFundamentalAnalysis(rs interfaces.ResearchService, logger *common.Logger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ticker, err := request.RequireString("ticker")
		if err != nil || ticker == "" {
			return errorResult("Error: ticker parameter is required"), nil
		}

		analysis, err := rs.GetFundamentalAnalysis(ctx, ticker)
		if err != nil {
			logger.Error().Err(err).Str("ticker", ticker).Msg("Fundamental analysis failed")
			return errorResult(fmt.Sprintf("Fundamental analysis error: %v", err)), nil
		}
		if analysis == nil {
			return textResult("No fundamental analysis: this ticker is an ETF and is scored technically only."), nil
		}
		return jsonResult(analysis)
	}
}

// handleGetTechnicalAnalysis implements the get_technical_analysis tool
func handleGetTechnicalAnalysis(rs interfaces.ResearchService, logger *common.Logger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ticker, err := request.RequireString("ticker")
		if err != nil || ticker == "" {
			return errorResult("Error: ticker parameter is required"), nil
		}

		timeframe := models.Timeframe(request.GetString("timeframe", string(models.TimeframeDaily)))
		analysis, err := rs.GetTechnicalAnalysis(ctx, ticker, timeframe)
		if err != nil {
			logger.Error().Err(err).Str("ticker", ticker).Str("timeframe", string(timeframe)).Msg("Technical analysis failed")
			return errorResult(fmt.Sprintf("Technical analysis error: %v", err)), nil
		}
		return jsonResult(analysis)
	}
}

// handleGetEarnings implements the get_earnings tool
func handleGetEarnings(rs interfaces.ResearchService, logger *common.Logger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ticker, err := request.RequireString("ticker")
		if err != nil || ticker == "" {
			return errorResult("Error: ticker parameter is required"), nil
		}

		summary, err := rs.GetEarnings(ctx, ticker)
		if err != nil {
			logger.Error().Err(err).Str("ticker", ticker).Msg("Earnings summary failed")
			return errorResult(fmt.Sprintf("Earnings error: %v", err)), nil
		}
		return jsonResult(summary)
	}
}

// handleGetMacroRisk implements the get_macro_risk tool
func handleGetMacroRisk(rs interfaces.ResearchService, logger *common.Logger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ticker, err := request.RequireString("ticker")
		if err != nil || ticker == "" {
			return errorResult("Error: ticker parameter is required"), nil
		}

		assessment, err := rs.GetMacroRisk(ctx, ticker)
		if err != nil {
			logger.Error().Err(err).Str("ticker", ticker).Msg("Macro risk assessment failed")
			return errorResult(fmt.Sprintf("Macro risk error: %v", err)), nil
		}
		return jsonResult(assessment)
	}
}

// handleGetCompanyOverview implements the get_company_overview tool
func handleGetCompanyOverview(rs interfaces.ResearchService, logger *common.Logger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ticker, err := request.RequireString("ticker")
		if err != nil || ticker == "" {
			return errorResult("Error: ticker parameter is required"), nil
		}

		overview, err := rs.GetCompanyOverview(ctx, ticker)
		if err != nil {
			logger.Error().Err(err).Str("ticker", ticker).Msg("Company overview failed")
			return errorResult(fmt.Sprintf("Overview error: %v", err)), nil
		}
		return jsonResult(overview)
	}
}

// handleGetNews implements the get_news tool
func handleGetNews(rs interfaces.ResearchService, logger *common.Logger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ticker, err := request.RequireString("ticker")
		if err != nil || ticker == "" {
			return errorResult("Error: ticker parameter is required"), nil
		}

		news, err := rs.GetNews(ctx, ticker)
		if err != nil {
			logger.Error().Err(err).Str("ticker", ticker).Msg("News lookup failed")
			return errorResult(fmt.Sprintf("News error: %v", err)), nil
		}
		return jsonResult(map[string]interface{}{"ticker": ticker, "news": news, "count": len(news)})
	}
}

// --- Result helpers ---

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(text),
		},
	}
}

func errorResult(message string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(message),
		},
		IsError: true,
	}
}

// jsonResult marshals a payload as indented JSON text content.
func jsonResult(v interface{}) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errorResult(fmt.Sprintf("Error encoding result: %v", err)), nil
	}
	return textResult(string(data)), nil
}
