// Package domain defines the core types for the fabricviz topology visualizer.
//
// This package contains the entities and value objects shared by the store,
// the layout simulation, and the presenter.
//
// # Core Types
//
// Router represents one fabric router (a node in the drawing). Its position is
// owned by the layout simulation once the router has been attached to it.
//
// Link represents a connection between two routers. Endpoints are router ids,
// always resolved by lookup at use time, never by position in a collection.
//
// Snapshot is one authoritative membership update received from the fabric.
// An absent aspect means "no update"; a present aspect, even an empty one, is
// the complete membership for that aspect.
//
// Frame is the immutable per-tick view of positions handed to renderers.
//
// # Design Principles
//
// - No database or transport dependencies
// - Identity by id everywhere
// - Value types for anything that crosses a goroutine boundary
package domain
