// Package handlers implements the councilflow HTTP handlers: conversation
// CRUD, message deliberation (plain and websocket-streamed), the model
// catalog, council composition, and health endpoints.
package handlers
