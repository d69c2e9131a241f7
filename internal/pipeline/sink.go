// Package pipeline implements the write path's producer/compressor/writer
// pipeline: a bounded work queue feeding a configurable pool of compressor
// workers and exactly one writer goroutine, serializing admission order
// onto disk order regardless of which worker finishes compressing first.
//
// Grounded on the sync.Cond coordination idiom in write_controller.go's
// stallCond and db/background.go's pauseCond: one mutex per Sink guards
// every piece of shared state (the queue, bytesInProgress, keepGoing, the
// writer's chain), and three condition variables multiplex distinct wakeup
// reasons over it, the same way those two files use a single mutex with a
// dedicated sync.Cond for their one blocking condition each.
package pipeline

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/aalhour/extentstore/internal/codec"
	"github.com/aalhour/extentstore/internal/compression"
	"github.com/aalhour/extentstore/internal/dschecksum"
	"github.com/aalhour/extentstore/internal/dsfile"
	"github.com/aalhour/extentstore/internal/extent"
	"github.com/aalhour/extentstore/internal/logging"
	"github.com/aalhour/extentstore/internal/typeregistry"
	"github.com/aalhour/extentstore/vfs"
)

// OnWriteFunc is called once per extent, immediately after it is written to
// disk, while the sink's single writer-turn lock is held. Rotate is only
// valid to call from inside this callback.
type OnWriteFunc func(offset int64, e *extent.Extent)

// SinkOptions configures a Sink.
type SinkOptions struct {
	// NumCompressors is the number of compressor worker goroutines. 0
	// means compression runs inline on the caller's WriteExtent goroutine,
	// with no separate worker pool.
	NumCompressors int
	// MaxBytesInProgress bounds admission: WriteExtent blocks while the
	// sum of queued extents' raw byte sizes would exceed this.
	MaxBytesInProgress int64
	// PackOptions configures compression and checksums for every extent
	// this sink writes. PreviousChain is ignored: the writer tracks the
	// running chain itself via dsfile.Writer.
	PackOptions codec.PackOptions
	// OnWrite, if set, is called after each extent is durably queued for
	// its bytes to be on disk (see OnWriteFunc).
	OnWrite OnWriteFunc
	// Logger receives diagnostic output. Defaults to a WARN-level logger
	// writing to stderr.
	Logger logging.Logger
}

// DefaultSinkOptions returns one compressor per CPU, a 64MiB in-flight
// budget, and the codec's full allowed-mode default.
func DefaultSinkOptions() SinkOptions {
	return SinkOptions{
		NumCompressors:     runtime.NumCPU(),
		MaxBytesInProgress: 64 << 20,
		PackOptions: codec.PackOptions{
			AllowedModes:      compression.AllModes,
			Level:             6,
			ChecksumAlgorithm: dschecksum.AlgorithmAdler32,
		},
		Logger: logging.OrDefault(nil),
	}
}

// workItem tracks one extent moving through the queue, per §4.3: admitted
// with in_progress=false and compressed=nil, claimed by exactly one
// compressor, then written by the writer once compressed.
type workItem struct {
	e           *extent.Extent
	statsTarget *Stats
	size        int64

	inProgress  bool
	compressed  *codec.CompressedBody
	compressErr error
}

func (w *workItem) ready() bool { return !w.inProgress && (w.compressed != nil || w.compressErr != nil) }

// Sink drives the write pipeline for one open dsfile.Writer. Construct with
// NewSink; submit extents with WriteExtent; finish with Close.
type Sink struct {
	mu                 sync.Mutex
	availableQueueCond *sync.Cond
	availableWorkCond  *sync.Cond
	availableWriteCond *sync.Cond

	writer *dsfile.Writer
	opts   SinkOptions
	stats  *Stats

	queue           []*workItem
	bytesInProgress int64
	keepGoing       bool

	inWriterCallback bool

	workersDone sync.WaitGroup
	writerDone  sync.WaitGroup
}

// NewSink creates path via dsfile.Create and starts the pipeline's
// compressor and writer goroutines (skipping the compressor pool entirely
// when opts.NumCompressors is 0).
func NewSink(fsys vfs.FS, path string, lib *typeregistry.Library, writerOpts dsfile.WriterOptions, opts SinkOptions) (*Sink, error) {
	w, err := dsfile.Create(fsys, path, lib, writerOpts)
	if err != nil {
		return nil, err
	}
	if opts.Logger == nil {
		opts.Logger = logging.OrDefault(nil)
	}
	s := &Sink{
		writer:    w,
		opts:      opts,
		stats:     NewStats(),
		keepGoing: true,
	}
	s.availableQueueCond = sync.NewCond(&s.mu)
	s.availableWorkCond = sync.NewCond(&s.mu)
	s.availableWriteCond = sync.NewCond(&s.mu)

	for i := 0; i < opts.NumCompressors; i++ {
		s.workersDone.Add(1)
		go s.compressorLoop()
	}
	s.writerDone.Add(1)
	go s.writerLoop()
	return s, nil
}

// Stats returns the sink's own aggregate counters, updated on every write
// regardless of whether the caller also passed a per-call Stats.
func (s *Sink) Stats() *Stats { return s.stats }

func extentSize(e *extent.Extent) int64 { return int64(len(e.Fixed) + len(e.Variable)) }

// WriteExtent admits e to the pipeline. It blocks while the pipeline is
// saturated (bytesInProgress at the configured budget, or the queue at
// 2×NumCompressors deep), per §4.3. If stats is non-nil, it additionally
// receives this extent's compression outcome once written.
func (s *Sink) WriteExtent(e *extent.Extent, stats *Stats) error {
	s.mu.Lock()
	maxQueue := 2 * s.opts.NumCompressors
	if maxQueue == 0 {
		maxQueue = 2
	}
	for s.keepGoing && (s.bytesInProgress >= s.opts.MaxBytesInProgress || len(s.queue) >= maxQueue) {
		s.availableQueueCond.Wait()
	}
	if !s.keepGoing {
		s.mu.Unlock()
		return ErrClosed
	}
	item := &workItem{e: e, statsTarget: stats, size: extentSize(e)}
	s.queue = append(s.queue, item)
	s.bytesInProgress += item.size
	inline := s.opts.NumCompressors == 0
	s.mu.Unlock()

	if inline {
		s.compress(item)
	} else {
		s.availableWorkCond.Broadcast()
	}
	return nil
}

// compress runs the CPU-bound half of packing item outside the lock, then
// stores the result and wakes the writer. Shared by compressorLoop and the
// inline (NumCompressors==0) path.
func (s *Sink) compress(item *workItem) {
	body, err := codec.CompressBody(item.e, s.opts.PackOptions)

	s.mu.Lock()
	item.compressed = body
	item.compressErr = err
	item.inProgress = false
	s.availableWriteCond.Signal()
	s.mu.Unlock()
}

// compressorLoop picks the first queued item that is neither in progress
// nor already compressed, claims it, and compresses it outside the lock.
func (s *Sink) compressorLoop() {
	defer s.workersDone.Done()
	for {
		s.mu.Lock()
		var item *workItem
		for s.keepGoing {
			item = s.firstPending()
			if item != nil {
				break
			}
			s.availableWorkCond.Wait()
		}
		if item == nil {
			s.mu.Unlock()
			return
		}
		item.inProgress = true
		s.mu.Unlock()

		s.compress(item)
	}
}

// firstPending returns the first queued item with in_progress=false and
// compressed=nil, or nil. Called with s.mu held.
func (s *Sink) firstPending() *workItem {
	for _, item := range s.queue {
		if !item.inProgress && item.compressed == nil && item.compressErr == nil {
			return item
		}
	}
	return nil
}

// writerLoop writes the queue head once it is ready (compressed, not in
// progress), updates the chained checksum and index in memory, invokes the
// optional user callback, and pops it — exactly the step described in
// §4.3's writer bullet.
func (s *Sink) writerLoop() {
	defer s.writerDone.Done()
	for {
		s.mu.Lock()
		for s.keepGoing && (len(s.queue) == 0 || !s.queue[0].ready()) {
			s.availableWriteCond.Wait()
		}
		if len(s.queue) == 0 || !s.queue[0].ready() {
			s.mu.Unlock()
			return
		}
		head := s.queue[0]

		if head.compressErr != nil {
			s.opts.Logger.Errorf("pipeline: dropping extent after compress error: %v", head.compressErr)
			s.queue = s.queue[1:]
			s.bytesInProgress -= head.size
			s.availableQueueCond.Broadcast()
			s.mu.Unlock()
			continue
		}

		packed, offset, err := s.writer.AssembleCompressedExtent(head.compressed)
		if err != nil {
			s.opts.Logger.Errorf("pipeline: assemble header: %v", err)
			s.queue = s.queue[1:]
			s.bytesInProgress -= head.size
			s.availableQueueCond.Broadcast()
			s.mu.Unlock()
			continue
		}
		// Release the lock across the I/O-bound write syscall, per §4.3.
		s.mu.Unlock()
		writeErr := s.writer.WriteBytes(packed)

		s.mu.Lock()
		if writeErr != nil {
			s.opts.Logger.Errorf("pipeline: write extent at %d: %v", offset, writeErr)
		} else {
			s.stats.record(head.compressed, s.opts.PackOptions.ChecksumAlgorithm)
			if head.statsTarget != nil {
				head.statsTarget.record(head.compressed, s.opts.PackOptions.ChecksumAlgorithm)
			}
			if s.opts.OnWrite != nil {
				s.inWriterCallback = true
				s.opts.OnWrite(offset, head.e)
				s.inWriterCallback = false
			}
		}
		s.queue = s.queue[1:]
		s.bytesInProgress -= head.size
		s.availableQueueCond.Broadcast()
		s.mu.Unlock()
	}
}

// FlushPending blocks until the queue is empty.
func (s *Sink) FlushPending() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for len(s.queue) > 0 {
		s.availableQueueCond.Wait()
	}
}

// Close flushes every pending extent, stops the compressor and writer
// goroutines, and finalizes the underlying file (index extent, tail,
// optional fsync).
func (s *Sink) Close(fsync bool) error {
	s.FlushPending()

	s.mu.Lock()
	s.keepGoing = false
	s.availableQueueCond.Broadcast()
	s.availableWorkCond.Broadcast()
	s.availableWriteCond.Broadcast()
	s.mu.Unlock()

	s.workersDone.Wait()
	s.writerDone.Wait()

	return s.writer.Close(fsync)
}

// Rotate finalizes the current file and opens a new one, per §4.3's
// rotate contract: it must only be called from inside the OnWrite
// callback, which runs on the writer goroutine while holding the sink's
// lock, so it can safely replace s.writer without taking s.mu itself (the
// caller already holds it) and without draining the queue — items already
// compressed and waiting behind the current write continue straight into
// the new file.
func (s *Sink) Rotate(newPath string, lib *typeregistry.Library, fsync bool) error {
	if !s.inWriterCallback {
		return ErrRotateOutsideCallback
	}
	newWriter, err := s.writer.Rotate(newPath, lib, fsync)
	if err != nil {
		return fmt.Errorf("pipeline: rotate: %w", err)
	}
	s.writer = newWriter
	return nil
}
