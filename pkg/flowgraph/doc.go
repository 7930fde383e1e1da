/*
Package flowgraph validates flow graphs structurally.

Validate is a pure function over the graph value: no I/O, no side effects.
Dangling references and a missing start node are hard errors; unreachable
nodes are warnings only, so authors can keep disconnected drafts.
*/
package flowgraph
