// PicoClaw - Ultra-lightweight personal AI agent
// Inspired by and based on nanobot: https://github.com/HKUDS/nanobot
// License: MIT
//
// Copyright (c) 2026 PicoClaw contributors

package tools

// RegisterCoreTools registers the always-available tool set: filesystem,
// shell, editing, and web fetch/search bound to the given workspace.
// Message, spawn, memory, and cron tools are registered separately by
// their owning packages since they need collaborators RegisterCoreTools
// doesn't have (message bus, subagent manager, memory store, cron service).
func RegisterCoreTools(registry *ToolRegistry, workspace string, webSearchAPIKey string, webSearchMaxResults int) {
	registry.Register(&ReadFileTool{})
	registry.Register(&WriteFileTool{})
	registry.Register(&ListDirTool{})
	registry.Register(NewEditFileTool(workspace))
	registry.Register(NewExecTool(workspace))
	registry.Register(NewWebFetchTool(0))
	registry.Register(NewWebSearchTool(webSearchAPIKey, webSearchMaxResults))
}
