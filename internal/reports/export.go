package reports

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/xuri/excelize/v2"
)

// SalesSheet names the worksheet written by WriteXLSX.
const SalesSheet = "Sales"

// ExportHeader is the fixed column order of sales exports.
var ExportHeader = []string{"product", "flavor", "quantity", "revenue", "cost", "profit"}

func exportRow(row ProductSales) []string {
	return []string{
		row.Product,
		row.Flavor,
		strconv.Itoa(row.Quantity),
		row.Revenue.StringFixed(2),
		row.Cost.StringFixed(2),
		row.Profit.StringFixed(2),
	}
}

// WriteCSV writes the header and one line per product flavor.
func WriteCSV(w io.Writer, rows []ProductSales) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(ExportHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, row := range rows {
		if err := writer.Write(exportRow(row)); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteXLSX writes the same table as WriteCSV into a workbook with a single Sales sheet.
func WriteXLSX(w io.Writer, rows []ProductSales) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SalesSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	header := make([]any, len(ExportHeader))
	for i, h := range ExportHeader {
		header[i] = h
	}
	if err := f.SetSheetRow(SalesSheet, "A1", &header); err != nil {
		return fmt.Errorf("write xlsx header: %w", err)
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		values := []any{
			row.Product,
			row.Flavor,
			row.Quantity,
			row.Revenue.InexactFloat64(),
			row.Cost.InexactFloat64(),
			row.Profit.InexactFloat64(),
		}
		if err := f.SetSheetRow(SalesSheet, cell, &values); err != nil {
			return fmt.Errorf("write xlsx row: %w", err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write xlsx: %w", err)
	}
	return nil
}
