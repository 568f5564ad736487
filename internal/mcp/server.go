// Package mcp exposes the synchronized board to agents over the Model
// Context Protocol. Tools operate on the live stores, so an agent sees
// the same reconciled state a user would.
package mcp

import (
	"log/slog"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/boardsync/boardsync/internal/app"
)

const serverInstructions = `Boardsync bridges this session to a live project board.
Call select_project before task operations; task tools act on the selected
project. State is kept in sync with other clients in real time, so reads
reflect remote changes without polling.`

// Config contains server configuration.
type Config struct {
	App    *app.App
	Logger *slog.Logger
}

// NewServer creates and configures an MCP server with all tools and
// middleware.
func NewServer(cfg Config) *sdkmcp.Server {
	server := sdkmcp.NewServer(&sdkmcp.Implementation{
		Name:    "boardsync",
		Version: "0.1.0",
	}, &sdkmcp.ServerOptions{
		Instructions: serverInstructions,
		Logger:       cfg.Logger,
	})

	server.AddReceivingMiddleware(trafficLoggingMiddleware(cfg.Logger, "inbound"))
	server.AddSendingMiddleware(trafficLoggingMiddleware(cfg.Logger, "outbound"))

	registerTools(server, cfg.App)

	return server
}
