// Package worksheet wraps excelize workbooks behind the narrow surface the
// formula engine and the domain processors work against: cell and formula
// access by (column, row), used-range queries, and workbook lifecycle.
package worksheet

// Sheet is a single worksheet handle. Rows are 1-indexed, columns are
// addressed by their Excel letter ("A", "BJ").
type Sheet interface {
	// Name returns the sheet name as it appears in the workbook.
	Name() string
	// CellValue returns the cached/displayed value of a cell ("" if empty).
	CellValue(column string, row int) (string, error)
	// CellFormula returns the formula text of a cell exactly as stored
	// ("" if the cell holds no formula).
	CellFormula(column string, row int) (string, error)
	// SetCellFormula writes formula text into a cell.
	SetCellFormula(column string, row int, formula string) error
	// SetCellValue writes a literal value into a cell.
	SetCellValue(column string, row int, value interface{}) error
	// UsedRange returns the extent of the populated region as a
	// (column count, row count) pair. An empty sheet reports (0, 0).
	UsedRange() (maxCol, maxRow int, err error)
}

// Resolver looks up sibling sheets in the same workbook, used when a formula
// carries an explicit sheet qualifier.
type Resolver interface {
	Sheet(name string) (Sheet, error)
}
