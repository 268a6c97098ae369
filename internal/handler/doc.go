// Package handler implements the fabricviz HTTP API.
//
// All routes are read-only views of the runtime except POST /api/snapshots,
// which feeds a snapshot through the same path as the streaming sources.
//
// # Response Format
//
// Success responses return JSON (or DOT/SVG for the export routes). Error
// responses return JSON with {error, details} structure.
//
// # Server-Sent Events
//
// The /events endpoint streams topology change events and throttled frame
// events so a browser can redraw without polling.
package handler
