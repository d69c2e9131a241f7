package server

import (
	"fmt"

	"github.com/aalhour/extentstore/internal/dsfile"
	"github.com/aalhour/extentstore/internal/extent"
	"github.com/aalhour/extentstore/internal/gvalue"
	"github.com/aalhour/extentstore/internal/operator"
	"github.com/aalhour/extentstore/internal/pipeline"
	"github.com/aalhour/extentstore/internal/typeregistry"
)

// importExtentBytes is the same output-extent flush threshold every
// relational operator uses (§4.5's "≈96 KiB"), applied here to
// ImportData's hand-assembled rows.
const importExtentBytes = 96 * 1024

// ImportDataSeriesFiles reads every extent of type extentTypeName out
// of sourcePaths, in order, and writes them to destTable. Grounded on
// DataSeriesServerHandler::importDataSeriesFiles (TypeIndexModule feeding
// a TeeModule).
func (h *Handler) ImportDataSeriesFiles(sourcePaths []string, extentTypeName, destTable string) error {
	if err := verifyTableName(destTable); err != nil {
		return err
	}
	if extentTypeName == "" {
		return requestError("extent type empty")
	}
	path, err := h.tableToPath(destTable, "")
	if err != nil {
		return err
	}
	src := newMultiFileSource(h.fsys, sourcePaths, extentTypeName, h.readerOptions())
	outType, err := h.drainToTable(path, src, nil)
	if err != nil {
		return err
	}
	h.updateTableInfo(destTable, outType)
	return nil
}

// ImportCSVFiles is not implemented: converting CSV to the store's
// binary format is the csv2ds command-line utility's job, which §1
// places out of scope as an external collaborator forked as a
// subprocess in data-series-server.cpp. The verb is kept on the
// handler's surface so a caller can detect it is unsupported rather
// than missing entirely.
func (h *Handler) ImportCSVFiles(sourcePaths []string, xmlDesc, destTable, fieldSeparator, commentPrefix string) error {
	return ErrExternalToolNotConfigured
}

// ImportSQLTable is not implemented, for the same reason as
// ImportCSVFiles: sql2ds is an out-of-scope external collaborator.
func (h *Handler) ImportSQLTable(dsn, srcTable, destTable string) error {
	return ErrExternalToolNotConfigured
}

// ImportData appends xmlDesc-typed rows directly to destTable (creating
// it if absent), each row a slice of field values rendered as text.
// Grounded on DataSeriesServerHandler::importData, which builds an
// OutputModule over literal field values instead of reading them from
// another DataSeriesModule.
func (h *Handler) ImportData(destTable, xmlDesc string, rows [][]string) error {
	if err := verifyTableName(destTable); err != nil {
		return err
	}
	t, err := typeregistry.ParseExtentType([]byte(xmlDesc))
	if err != nil {
		return fmt.Errorf("server: importData: %w", err)
	}

	lib := typeregistry.NewLibrary()
	if err := lib.Register(t); err != nil {
		return err
	}
	path, err := h.tableToPath(destTable, "")
	if err != nil {
		return err
	}
	sink, err := pipeline.NewSink(h.fsys, path, lib, h.sinkWriterOptions(), h.sinkPipelineOptions())
	if err != nil {
		return err
	}

	series := gvalue.NewSeries(t)
	fields := make([]*gvalue.Field, len(t.Fields))
	for i, f := range t.Fields {
		gf, ferr := gvalue.NewField(series, f.Name)
		if ferr != nil {
			_ = sink.Close(false)
			return ferr
		}
		fields[i] = gf
	}

	ext := extent.New(t)
	series.SetExtent(ext)
	for _, row := range rows {
		if len(row) != len(fields) {
			_ = sink.Close(false)
			return requestError("incorrect number of fields")
		}
		series.NewRecord()
		for i, cell := range row {
			v, perr := gvalue.ParseString(t.Fields[i].Type, cell)
			if perr != nil {
				_ = sink.Close(false)
				return perr
			}
			if serr := fields[i].Set(v); serr != nil {
				_ = sink.Close(false)
				return serr
			}
		}
		if len(ext.Fixed)+len(ext.Variable) > importExtentBytes {
			if werr := sink.WriteExtent(ext, nil); werr != nil {
				_ = sink.Close(false)
				return werr
			}
			ext = extent.New(t)
			series.SetExtent(ext)
		}
	}
	if ext.NRecords() > 0 {
		if werr := sink.WriteExtent(ext, nil); werr != nil {
			_ = sink.Close(false)
			return werr
		}
	}
	if err := sink.Close(false); err != nil {
		return err
	}
	h.updateTableInfo(destTable, t)
	return nil
}

// MergeTables concatenates sourceTables (which must all share one
// extent type) into destTable. Grounded on
// DataSeriesServerHandler::mergeTables, which validates the shared type
// then delegates to importDataSeriesFiles.
func (h *Handler) MergeTables(sourceTables []string, destTable string) error {
	if len(sourceTables) == 0 {
		return requestError("missing source tables")
	}
	if err := verifyTableName(destTable); err != nil {
		return err
	}

	var typeName string
	paths := make([]string, 0, len(sourceTables))
	for _, table := range sourceTables {
		if table == destTable {
			return invalidTableName(table, "duplicated with destination table")
		}
		ti, err := h.getTableInfo(table)
		if err != nil {
			return invalidTableName(table, "table not present")
		}
		if typeName == "" {
			typeName = ti.extentType.Name
		} else if typeName != ti.extentType.Name {
			return invalidTableName(table, fmt.Sprintf("extent type %q does not match earlier table types of %q",
				ti.extentType.Name, typeName))
		}
		path, err := h.tableToPath(table, "")
		if err != nil {
			return err
		}
		paths = append(paths, path)
	}
	return h.ImportDataSeriesFiles(paths, typeName, destTable)
}

// GetTableData returns up to maxRows rows of sourceTable, optionally
// filtered by whereExpr, plus a MoreRows flag when rows remain beyond
// the cap. Grounded on DataSeriesServerHandler::getTableData.
func (h *Handler) GetTableData(sourceTable string, maxRows int, whereExpr string) (*TableData, error) {
	if err := verifyTableName(sourceTable); err != nil {
		return nil, err
	}
	if maxRows <= 0 {
		return nil, requestError("max_rows must be > 0")
	}
	_, src, err := h.openTable(sourceTable)
	if err != nil {
		return nil, err
	}
	var it operator.Iterator = src
	if whereExpr != "" {
		it = operator.NewSelect(src, whereExpr)
	}
	return collectTableData(it, maxRows)
}

// HashJoin equi-joins aTable (fully buffered, bounded by maxARows) against
// bTable (streamed), writing outTable. Grounded on
// DataSeriesServerHandler::hashJoin.
func (h *Handler) HashJoin(aTable, bTable, outTable string, eqColumns, keepColumns map[string]string, maxARows int) error {
	_, aSrc, err := h.openTable(aTable)
	if err != nil {
		return err
	}
	_, bSrc, err := h.openTable(bTable)
	if err != nil {
		return err
	}
	if err := verifyTableName(outTable); err != nil {
		return err
	}
	hj := operator.NewHashJoin(aSrc, bSrc, maxARows, eqColumns, keepColumns)
	path, err := h.tableToPath(outTable, "")
	if err != nil {
		return err
	}
	outType, err := h.drainToTable(path, hj, nil)
	if err != nil {
		return err
	}
	h.updateTableInfo(outTable, outType)
	return nil
}

// Dimension names one star-join dimension table by its server-resolved
// source table rather than an already-open Iterator, the server-level
// counterpart to operator.Dimension. Each dimension gets its own freshly
// opened reader, even when two of them name the same SourceTable, since
// operator.StarJoin drains every Dimension's Source when loading it.
type Dimension struct {
	Name         string
	SourceTable  string
	KeyColumns   []string
	ValueColumns []string
}

// StarJoin streams factTable, enriching each row from dimensions as
// described by joins, writing outTable. Grounded on
// DataSeriesServerHandler::starJoin.
func (h *Handler) StarJoin(factTable string, dimensions []Dimension, outTable string, factColumns map[string]string, joins []operator.DimensionJoin, missPolicy operator.MissPolicy) error {
	_, factSrc, err := h.openTable(factTable)
	if err != nil {
		return err
	}
	if err := verifyTableName(outTable); err != nil {
		return err
	}

	opDims := make([]operator.Dimension, 0, len(dimensions))
	for _, dim := range dimensions {
		_, src, derr := h.openTable(dim.SourceTable)
		if derr != nil {
			return derr
		}
		opDims = append(opDims, operator.Dimension{
			Name: dim.Name, Source: src, KeyColumns: dim.KeyColumns, ValueColumns: dim.ValueColumns,
		})
	}

	sj := operator.NewStarJoin(factSrc, opDims, factColumns, joins, missPolicy)
	path, err := h.tableToPath(outTable, "")
	if err != nil {
		return err
	}
	outType, err := h.drainToTable(path, sj, nil)
	if err != nil {
		return err
	}
	h.updateTableInfo(outTable, outType)
	return nil
}

// SelectRows writes the rows of inTable matching whereExpr to outTable.
// Grounded on DataSeriesServerHandler::selectRows.
func (h *Handler) SelectRows(inTable, outTable, whereExpr string) error {
	ti, src, err := h.openTable(inTable)
	if err != nil {
		return err
	}
	if err := verifyTableName(outTable); err != nil {
		return err
	}
	sel := operator.NewSelect(src, whereExpr)
	path, err := h.tableToPath(outTable, "")
	if err != nil {
		return err
	}
	outType, err := h.drainToTable(path, sel, ti.extentType)
	if err != nil {
		return err
	}
	h.updateTableInfo(outTable, outType)
	return nil
}

// ProjectTable writes inTable's keepColumns to outTable, in inTable's
// declaration order. Grounded on DataSeriesServerHandler::projectTable.
func (h *Handler) ProjectTable(inTable, outTable string, keepColumns []string) error {
	_, src, err := h.openTable(inTable)
	if err != nil {
		return err
	}
	if err := verifyTableName(outTable); err != nil {
		return err
	}
	proj := operator.NewProject(src, keepColumns)
	path, err := h.tableToPath(outTable, "")
	if err != nil {
		return err
	}
	outType, err := h.drainToTable(path, proj, nil)
	if err != nil {
		return err
	}
	h.updateTableInfo(outTable, outType)
	return nil
}

// createSortedUpdateBase creates an empty baseTable with updateInfo's
// type minus updateColumn, mirroring
// DataSeriesServerHandler::createTable, which materializes a base table
// on first use of sortedUpdateTable against a base that does not yet
// exist.
func (h *Handler) createSortedUpdateBase(tableName string, updateType *typeregistry.ExtentType, updateColumn string) (*typeregistry.ExtentType, error) {
	fields := make([]typeregistry.Field, 0, len(updateType.Fields))
	for _, f := range updateType.Fields {
		if f.Name == updateColumn {
			continue
		}
		fields = append(fields, typeregistry.Field{
			Name: f.Name, Type: f.Type, Nullable: f.Nullable,
			PackRelative: f.PackRelative, PackUnique: f.PackUnique, PackScale: f.PackScale,
		})
	}
	t, err := buildExtentType(updateType.Namespace, tableName, updateType.VersionMajor, updateType.VersionMinor, fields)
	if err != nil {
		return nil, err
	}
	lib := typeregistry.NewLibrary()
	if err := lib.Register(t); err != nil {
		return nil, err
	}
	path, err := h.tableToPath(tableName, "")
	if err != nil {
		return nil, err
	}
	w, err := dsfile.Create(h.fsys, path, lib, h.sinkWriterOptions())
	if err != nil {
		return nil, err
	}
	if err := w.Close(false); err != nil {
		return nil, err
	}
	h.updateTableInfo(tableName, t)
	return t, nil
}

// SortedUpdateTable merges updateFrom into baseTable in place (creating
// baseTable first if it does not yet exist), writing the result through
// a temp file renamed over baseTable on success. Grounded on
// DataSeriesServerHandler::sortedUpdateTable.
func (h *Handler) SortedUpdateTable(baseTable, updateFrom, updateColumn string, primaryKey []string) error {
	if err := verifyTableName(baseTable); err != nil {
		return err
	}
	updateInfo, updateSrc, err := h.openTable(updateFrom)
	if err != nil {
		return err
	}

	baseInfo, err := h.getTableInfo(baseTable)
	if err != nil {
		baseType, cerr := h.createSortedUpdateBase(baseTable, updateInfo.extentType, updateColumn)
		if cerr != nil {
			return cerr
		}
		baseInfo = &tableInfo{extentType: baseType}
	}

	basePath, err := h.tableToPath(baseTable, "")
	if err != nil {
		return err
	}
	baseSrc, err := openTableSource(h.fsys, basePath, baseInfo.extentType.Name, h.readerOptions())
	if err != nil {
		return err
	}

	su := operator.NewSortedUpdate(baseSrc, updateSrc, primaryKey, updateColumn, operator.DefaultSortedUpdateOptions())
	tmpPath, err := h.tableToPath(baseTable, "tmp.")
	if err != nil {
		return err
	}
	outType, err := h.drainToTable(tmpPath, su, baseInfo.extentType)
	if err != nil {
		return err
	}
	if err := h.fsys.Rename(tmpPath, basePath); err != nil {
		return fmt.Errorf("server: sortedUpdateTable: rename %s -> %s: %w", tmpPath, basePath, err)
	}
	h.updateTableInfo(baseTable, outType)
	return nil
}

// UnionTable is one input to UnionTables: its server-resolved table name
// plus the column-rename map Union applies to its rows.
type UnionTable struct {
	TableName     string
	RenameColumns map[string]string
}

// UnionTables merges inTables by orderColumns into outTable, tie-broken
// by input order. Grounded on DataSeriesServerHandler::unionTables.
func (h *Handler) UnionTables(inTables []UnionTable, orderColumns []string, outTable string) error {
	sources := make([]operator.UnionSource, 0, len(inTables))
	for _, in := range inTables {
		_, src, err := h.openTable(in.TableName)
		if err != nil {
			return err
		}
		sources = append(sources, operator.UnionSource{Source: src, ExtractValues: in.RenameColumns})
	}
	if err := verifyTableName(outTable); err != nil {
		return err
	}
	u := operator.NewUnion(sources, orderColumns)
	path, err := h.tableToPath(outTable, "")
	if err != nil {
		return err
	}
	outType, err := h.drainToTable(path, u, nil)
	if err != nil {
		return err
	}
	h.updateTableInfo(outTable, outType)
	return nil
}

// SortTable writes inTable's rows ordered by by to outTable. Grounded
// on DataSeriesServerHandler::sortTable.
func (h *Handler) SortTable(inTable, outTable string, by []operator.SortColumn) error {
	_, src, err := h.openTable(inTable)
	if err != nil {
		return err
	}
	if err := verifyTableName(outTable); err != nil {
		return err
	}
	sorter := operator.NewSort(src, by)
	path, err := h.tableToPath(outTable, "")
	if err != nil {
		return err
	}
	outType, err := h.drainToTable(path, sorter, nil)
	if err != nil {
		return err
	}
	h.updateTableInfo(outTable, outType)
	return nil
}
