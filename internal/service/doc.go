// Package service applies fabric snapshots to the topology.
//
// The Reconciler is the single entry point for incoming snapshots. For each
// message it reconciles routers, then links against the post-router state,
// forwards any metrics payload to telemetry, and asks the layout to re-seed
// when anything structural changed.
//
// # Event System
//
// The Reconciler publishes router and link added/removed events on an
// EventBus. The SSE hub subscribes to the bus so browsers can follow topology
// changes without polling.
package service
