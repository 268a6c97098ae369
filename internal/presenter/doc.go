// Package presenter binds topology entities to visual handles.
//
// Every tick the Presenter walks the current routers and links and runs an
// enter/update/exit pass against the handles it holds. Handles are keyed by
// entity id for nodes and links alike, so reordering the store never hands a
// visual to a different entity.
//
// Scene is the retained Surface used by the service: it keeps one entry per
// handle and publishes immutable frames for HTTP and SSE readers.
package presenter
