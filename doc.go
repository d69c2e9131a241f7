/*
Package extentstore implements a columnar trace-storage engine: typed
record batches ("extents") are packed into a self-describing, compressed,
chained-checksum file format, and read back through a composable pipeline
of pull-based relational operators (select, project, sort, hash-join,
star-join, union, sorted-update, and a min/max-indexed scan).

# Usage

Callers build an ExtentType, register it with a type library, and open a
sink (internal/pipeline) to write extents, or a reader (internal/dsfile)
to stream them back. The server package resolves named tables to files
under a working directory and orchestrates operator trees built from
those tables.

# Concurrency

A sink runs a bounded multi-producer/fixed-worker/single-writer pipeline:
producers may call WriteExtent concurrently, but the file's on-disk order
always matches submission order regardless of how compression completes.
Operator pipelines are single-threaded and pull-based; an Iterator is not
safe for concurrent use by multiple goroutines.

# Compatibility

The on-disk format is self-describing: a reader needs only the file path
to locate the type library, the index extent, and the tail.
*/
package extentstore
