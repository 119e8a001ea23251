// Package model defines the provider-agnostic abstractions and concrete
// helpers for interacting with language models.
//
// Core goals:
//   - Unify streaming and non-streaming generation behind a single interface
//   - Normalize tool call representation (ToolDefinition, core.ToolCall)
//   - Keep request/response shapes minimal and transport independent
//   - Facilitate lightweight mocking for tests (MockModel)
//
// Providers (model/openai, model/anthropic) implement the Model interface so
// agents remain decoupled from vendor SDKs. WithRateLimit throttles any Model.
package model
