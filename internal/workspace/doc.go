// Package workspace provides per-worker scratch arrays for matrix algorithms.
//
// A Workspace bundles three buffers:
//
//   - Mark: int64 stamps plus a round counter. An index is marked in the current
//     round iff its stamp equals the counter, so starting a new round is O(1);
//     the array is physically cleared only when the counter would overflow.
//   - Flag: a bitset grown on demand. Algorithms must leave it fully cleared on
//     every exit path.
//   - Work: an untyped byte buffer sized per call.
//
// Workspaces are never shared between goroutines. Pool hands one out per worker
// and checks the clear invariant on the way in and out.
package workspace
