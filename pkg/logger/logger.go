// PicoClaw - Ultra-lightweight personal AI agent
// Inspired by and based on nanobot: https://github.com/HKUDS/nanobot
// License: MIT
//
// Copyright (c) 2026 PicoClaw contributors

// Package logger provides component-tagged structured logging used
// throughout the gateway: every call site names the subsystem it is
// logging from ("agent", "telegram", "cron", ...) so operators can grep
// a single log stream by component.
package logger

import (
	"log/slog"
	"os"
	"sync"
)

var (
	mu      sync.Mutex
	handler slog.Handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})
	base    *slog.Logger = slog.New(handler)
)

// SetLevel adjusts the minimum level emitted. Useful for --logs/-v CLI flags.
func SetLevel(level slog.Level) {
	mu.Lock()
	defer mu.Unlock()
	handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	base = slog.New(handler)
}

func logger() *slog.Logger {
	mu.Lock()
	defer mu.Unlock()
	return base
}

func fieldArgs(fields map[string]interface{}) []any {
	if len(fields) == 0 {
		return nil
	}
	args := make([]any, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, k, v)
	}
	return args
}

// DebugC logs a bare debug message tagged with component.
func DebugC(component, msg string) {
	logger().Debug(msg, "component", component)
}

// DebugCF logs a debug message with structured fields.
func DebugCF(component, msg string, fields map[string]interface{}) {
	args := append([]any{"component", component}, fieldArgs(fields)...)
	logger().Debug(msg, args...)
}

// InfoC logs a bare info message tagged with component.
func InfoC(component, msg string) {
	logger().Info(msg, "component", component)
}

// InfoCF logs an info message with structured fields.
func InfoCF(component, msg string, fields map[string]interface{}) {
	args := append([]any{"component", component}, fieldArgs(fields)...)
	logger().Info(msg, args...)
}

// WarnC logs a bare warning message tagged with component.
func WarnC(component, msg string) {
	logger().Warn(msg, "component", component)
}

// WarnCF logs a warning message with structured fields.
func WarnCF(component, msg string, fields map[string]interface{}) {
	args := append([]any{"component", component}, fieldArgs(fields)...)
	logger().Warn(msg, args...)
}

// ErrorC logs a bare error message tagged with component.
func ErrorC(component, msg string) {
	logger().Error(msg, "component", component)
}

// ErrorCF logs an error message with structured fields.
func ErrorCF(component, msg string, fields map[string]interface{}) {
	args := append([]any{"component", component}, fieldArgs(fields)...)
	logger().Error(msg, args...)
}
