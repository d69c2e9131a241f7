// Package server resolves named tables to files under a working
// directory and orchestrates operator trees over them: the request/
// response surface described in spec §6, grounded on
// data-series-server.cpp's DataSeriesServerHandler. The Thrift
// transport that exposed that handler over the network is out of
// scope per spec §1 — this package is the in-process handler a
// transport layer would wrap, with one Go method per verb.
package server

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/aalhour/extentstore/internal/codec"
	"github.com/aalhour/extentstore/internal/compression"
	"github.com/aalhour/extentstore/internal/dschecksum"
	"github.com/aalhour/extentstore/internal/dsfile"
	"github.com/aalhour/extentstore/internal/logging"
	"github.com/aalhour/extentstore/internal/operator"
	"github.com/aalhour/extentstore/internal/pipeline"
	"github.com/aalhour/extentstore/internal/typeregistry"
	"github.com/aalhour/extentstore/vfs"
)

// tableInfo mirrors DataSeriesServerHandler::TableInfo: the type that
// table's backing file holds, plus the last time it was written.
// dependsOn is recorded but not otherwise enforced by this port — the
// original keeps it for diagnostics only.
type tableInfo struct {
	extentType *typeregistry.ExtentType
	dependsOn  []string
	lastUpdate time.Time
}

// Handler is the table-name-resolving orchestration layer. The zero
// value is not usable; construct with New.
type Handler struct {
	workingDir string
	fsys       vfs.FS
	logger     logging.Logger

	mu     sync.RWMutex
	tables map[string]*tableInfo
}

// Options configures a Handler.
type Options struct {
	// WorkingDir is the directory table names resolve into. Created on
	// New if it does not already exist.
	WorkingDir string
	// FS is the filesystem implementation to use. Defaults to
	// vfs.Default().
	FS vfs.FS
	// Logger receives handler diagnostics. Defaults to a WARN-level
	// logger writing to stderr.
	Logger logging.Logger
}

// New creates (if necessary) opts.WorkingDir and returns a Handler
// rooted there, mirroring setupWorkingDirectory's create-if-absent,
// error-if-not-a-directory behavior.
func New(opts Options) (*Handler, error) {
	fsys := opts.FS
	if fsys == nil {
		fsys = vfs.Default()
	}
	if opts.WorkingDir == "" {
		return nil, requestError("working directory must not be empty")
	}
	if !fsys.Exists(opts.WorkingDir) {
		if err := fsys.MkdirAll(opts.WorkingDir, 0o777); err != nil {
			return nil, fmt.Errorf("server: create working directory %s: %w", opts.WorkingDir, err)
		}
	}
	return &Handler{
		workingDir: opts.WorkingDir,
		fsys:       fsys,
		logger:     logging.OrDefault(opts.Logger),
		tables:     make(map[string]*tableInfo),
	}, nil
}

// Ping is a liveness no-op.
func (h *Handler) Ping() {
	h.logger.Infof("%sping", logging.NSServer)
}

// Shutdown logs the request. Unlike data-series-server.cpp's shutdown,
// which calls exit(0) directly, terminating the process is left to the
// embedding program: a library has no business calling os.Exit out
// from under its caller.
func (h *Handler) Shutdown() {
	h.logger.Infof("%sshutdown requested", logging.NSServer)
}

// HasTable reports whether tableName is known to this handler.
func (h *Handler) HasTable(tableName string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.tables[tableName]
	return ok
}

func (h *Handler) getTableInfo(tableName string) (*tableInfo, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ti, ok := h.tables[tableName]
	if !ok {
		return nil, invalidTableName(tableName, "table missing")
	}
	return ti, nil
}

func (h *Handler) updateTableInfo(tableName string, t *typeregistry.ExtentType, dependsOn ...string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.tables[tableName] = &tableInfo{extentType: t, dependsOn: dependsOn, lastUpdate: time.Now()}
}

// tableToPath resolves tableName to its backing file path, verifying
// the name first. prefix defaults to "ds." like tableToPath's own
// default, and is overridden to "tmp." by sortedUpdateTable's
// write-to-temp-then-rename discipline.
func (h *Handler) tableToPath(tableName, prefix string) (string, error) {
	if err := verifyTableName(tableName); err != nil {
		return "", err
	}
	if prefix == "" {
		prefix = "ds."
	}
	return filepath.Join(h.workingDir, prefix+tableName), nil
}

func (h *Handler) sinkWriterOptions() dsfile.WriterOptions {
	return dsfile.WriterOptions{
		AllowedCompressModes: compression.AllModes,
		CompressionLevel:     6,
		ChecksumAlgorithm:    dschecksum.AlgorithmAdler32,
	}
}

func (h *Handler) sinkPipelineOptions() pipeline.SinkOptions {
	opts := pipeline.DefaultSinkOptions()
	opts.Logger = h.logger
	return opts
}

func (h *Handler) readerOptions() dsfile.ReaderOptions {
	return dsfile.DefaultReaderOptions()
}

// packOptions mirrors the checksum/compression settings every sink this
// handler opens shares, for callers (like codec-level helpers) that
// need it directly rather than through pipeline.SinkOptions.
func (h *Handler) packOptions() codec.PackOptions {
	return codec.PackOptions{
		AllowedModes:      compression.AllModes,
		Level:             6,
		ChecksumAlgorithm: dschecksum.AlgorithmAdler32,
	}
}

// drainToTable pulls every extent from src and writes it to a freshly
// created file at path, registering a single-type library from the
// first extent's type (TeeModule::firstExtent). If src produces no
// extents at all, the type is taken from src's own OutputType(), if it
// exposes one, else from fallbackType — mirroring
// TeeModule::completeProcessing's "no rows" branch, which still writes
// an (empty) library extent. Returns the type written.
func (h *Handler) drainToTable(path string, src operator.Iterator, fallbackType *typeregistry.ExtentType) (*typeregistry.ExtentType, error) {
	var sink *pipeline.Sink
	var outType *typeregistry.ExtentType

	for {
		e, err := src.GetExtent()
		if err != nil {
			if err == operator.ErrNoMoreExtents {
				break
			}
			if sink != nil {
				_ = sink.Close(false)
			}
			return nil, err
		}
		if sink == nil {
			outType = e.Type
			lib := typeregistry.NewLibrary()
			if regErr := lib.Register(outType); regErr != nil {
				return nil, regErr
			}
			sink, err = pipeline.NewSink(h.fsys, path, lib, h.sinkWriterOptions(), h.sinkPipelineOptions())
			if err != nil {
				return nil, err
			}
		}
		if err := sink.WriteExtent(e, nil); err != nil {
			return nil, err
		}
	}

	if sink == nil {
		if to, ok := src.(interface{ OutputType() *typeregistry.ExtentType }); ok {
			outType = to.OutputType()
		}
		if outType == nil {
			outType = fallbackType
		}
		if outType == nil {
			return nil, requestError("query produced no rows and no output type could be determined")
		}
		lib := typeregistry.NewLibrary()
		if err := lib.Register(outType); err != nil {
			return nil, err
		}
		emptySink, err := pipeline.NewSink(h.fsys, path, lib, h.sinkWriterOptions(), h.sinkPipelineOptions())
		if err != nil {
			return nil, err
		}
		if err := emptySink.Close(false); err != nil {
			return nil, err
		}
		return outType, nil
	}

	if err := sink.Close(false); err != nil {
		return nil, err
	}
	return outType, nil
}

// openTable resolves tableName to its TableInfo and an operator.Iterator
// streaming its backing file, the common prelude shared by every verb
// that reads an existing table (TypeIndexModule::addSource).
func (h *Handler) openTable(tableName string) (*tableInfo, operator.Iterator, error) {
	ti, err := h.getTableInfo(tableName)
	if err != nil {
		return nil, nil, err
	}
	path, err := h.tableToPath(tableName, "")
	if err != nil {
		return nil, nil, err
	}
	src, err := openTableSource(h.fsys, path, ti.extentType.Name, h.readerOptions())
	if err != nil {
		return nil, nil, err
	}
	return ti, src, nil
}
