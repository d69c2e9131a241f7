// Package operator implements the pull-based relational operator
// pipeline: Select, Project, Sort, HashJoin, StarJoin, Union, and
// SortedUpdate, each an Iterator that pulls extents from one or more
// upstream Iterators and hands back its own output extents one batch
// at a time.
//
// Grounded on the module classes in
// _examples/original_source/src/server/data-series-server.cpp
// (SelectModule, ProjectModule, HashJoinModule, StarJoinModule,
// UnionModule, SortedUpdateModule, SortModule) and on
// internal/gvalue for the underlying typed-value and field machinery.
// Every operator accumulates output rows into a single growing extent
// and flushes it once it passes maxExtentBytes, the same 96KiB
// threshold the original uses throughout.
package operator
