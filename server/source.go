package server

import (
	"errors"
	"fmt"

	"github.com/aalhour/extentstore/internal/dsfile"
	"github.com/aalhour/extentstore/internal/extent"
	"github.com/aalhour/extentstore/internal/operator"
	"github.com/aalhour/extentstore/vfs"
)

// fileReaderSource adapts one open dsfile.Reader to operator.Iterator,
// translating dsfile's own end-of-stream sentinel to the operator
// package's, and checking every extent's type name against the table's
// recorded type the way TypeIndexModule filters by type name.
type fileReaderSource struct {
	r        *dsfile.Reader
	typeName string
}

func (s *fileReaderSource) GetExtent() (*extent.Extent, error) {
	for {
		e, err := s.r.NextExtent()
		if err != nil {
			if errors.Is(err, dsfile.ErrNoMoreExtents) {
				return nil, operator.ErrNoMoreExtents
			}
			return nil, err
		}
		if e.Type.Name != s.typeName {
			continue
		}
		return e, nil
	}
}

func (s *fileReaderSource) Close() error { return s.r.Close() }

// multiFileSource reads every data extent of typeName out of a sequence
// of files in order, one dsfile.Reader at a time, mirroring
// TypeIndexModule's addSource-then-stream-them-all-in-order behavior
// (used by importDataSeriesFiles and, through it, mergeTables).
type multiFileSource struct {
	fsys       vfs.FS
	paths      []string
	typeName   string
	readerOpts dsfile.ReaderOptions

	idx int
	cur *fileReaderSource
}

func newMultiFileSource(fsys vfs.FS, paths []string, typeName string, readerOpts dsfile.ReaderOptions) *multiFileSource {
	return &multiFileSource{fsys: fsys, paths: paths, typeName: typeName, readerOpts: readerOpts}
}

func (s *multiFileSource) GetExtent() (*extent.Extent, error) {
	for {
		if s.cur == nil {
			if s.idx >= len(s.paths) {
				return nil, operator.ErrNoMoreExtents
			}
			r, err := dsfile.Open(s.fsys, s.paths[s.idx], s.readerOpts)
			if err != nil {
				return nil, fmt.Errorf("server: open %s: %w", s.paths[s.idx], err)
			}
			s.idx++
			s.cur = &fileReaderSource{r: r, typeName: s.typeName}
		}
		e, err := s.cur.GetExtent()
		if err != nil {
			if errors.Is(err, operator.ErrNoMoreExtents) {
				_ = s.cur.Close()
				s.cur = nil
				continue
			}
			return nil, err
		}
		return e, nil
	}
}

// openTableSource opens table's backing file for reading, yielding only
// its extents of type typeName.
func openTableSource(fsys vfs.FS, path string, typeName string, readerOpts dsfile.ReaderOptions) (*fileReaderSource, error) {
	r, err := dsfile.Open(fsys, path, readerOpts)
	if err != nil {
		return nil, fmt.Errorf("server: open %s: %w", path, err)
	}
	return &fileReaderSource{r: r, typeName: typeName}, nil
}
