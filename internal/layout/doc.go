// Package layout implements the continuously running force simulation that
// positions routers.
//
// # Forces
//
// Three forces act on every step, each scaled by the simulation temperature
// (alpha):
//
//   - many-body repulsion between every pair of routers
//   - a weak centering pull of the centroid toward the middle of the view
//   - a spring on every link toward a fixed rest distance
//
// # Warm starts
//
// SetTopology swaps the working collections without touching positions:
// routers that were already simulated keep their position and velocity, new
// routers start wherever the store spawned them. Restart re-injects full
// energy so the drawing re-converges after a structural change.
//
// Engine wraps a Simulation with the re-seed protocol used by the reconciler
// and the per-tick callbacks used by the presenter.
package layout
