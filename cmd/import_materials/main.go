package main

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"gorm.io/gorm"

	"bizview/internal/config"
	"bizview/internal/db"
	"bizview/internal/stock"
	"bizview/models"
)

// columnAliases maps folded header names to raw material fields.
var columnAliases = map[string]string{
	"description":    "description",
	"descricao":      "description",
	"name":           "description",
	"nome":           "description",
	"material":       "description",
	"unit":           "unit",
	"unidade":        "unit",
	"un":             "unit",
	"cost per unit":  "cost_per_unit",
	"cost":           "cost_per_unit",
	"custo":          "cost_per_unit",
	"custo unitario": "cost_per_unit",
	"quantity":       "quantity",
	"quantidade":     "quantity",
	"qtd":            "quantity",
	"estoque":        "quantity",
	"min stock":      "min_stock",
	"estoque minimo": "min_stock",
	"minimo":         "min_stock",
	"supplier":       "supplier",
	"fornecedor":     "supplier",
	"code":           "code",
	"codigo":         "code",
	"sku":            "code",
}

type options struct {
	path     string
	owner    string
	encoding string
	sheet    string
}

func main() {
	var opts options
	flag.StringVar(&opts.owner, "owner", os.Getenv("BIZVIEW_IMPORT_OWNER_EMAIL"), "email of the account that owns the imported materials (defaults to the first user)")
	flag.StringVar(&opts.encoding, "encoding", "utf-8", "CSV text encoding: utf-8, windows-1252 or iso-8859-1")
	flag.StringVar(&opts.sheet, "sheet", "", "XLSX sheet to read (defaults to the first sheet)")
	flag.Parse()

	opts.path = "materials.csv"
	if flag.NArg() > 0 {
		opts.path = flag.Arg(0)
	}

	if err := run(opts); err != nil {
		fmt.Fprintf(os.Stderr, "import failed: %v\n", err)
		os.Exit(1)
	}
}

func run(opts options) error {
	if strings.TrimSpace(opts.path) == "" {
		return fmt.Errorf("input path must not be empty")
	}

	if _, err := os.Stat(opts.path); err != nil {
		return fmt.Errorf("locate input: %w", err)
	}

	records, err := readRecords(opts)
	if err != nil {
		return fmt.Errorf("read %s: %w", filepath.Base(opts.path), err)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	database, err := db.Initialize(cfg.Database)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}

	if err := db.AutoMigrate(database); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}

	ownerID, err := resolveImportOwner(database, opts.owner)
	if err != nil {
		return fmt.Errorf("resolve owner: %w", err)
	}

	created, updated, err := importMaterials(context.Background(), database, ownerID, records)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "Imported %d raw materials from %s (%d new, %d updated)\n",
		created+updated, filepath.Base(opts.path), created, updated)
	return nil
}

func resolveImportOwner(database *gorm.DB, email string) (uint, error) {
	if database == nil {
		return 0, fmt.Errorf("database handle is nil")
	}

	ctx := context.Background()
	email = strings.ToLower(strings.TrimSpace(email))
	var user models.User
	if email != "" {
		if err := database.WithContext(ctx).Where("lower(email) = ?", email).First(&user).Error; err != nil {
			return 0, fmt.Errorf("find owner by email %q: %w", email, err)
		}
		return user.ID, nil
	}

	if err := database.WithContext(ctx).Order("id asc").First(&user).Error; err != nil {
		return 0, fmt.Errorf("find default owner: %w", err)
	}
	return user.ID, nil
}

// importMaterials upserts every record for the account, matching by code first and then by
// case-insensitive description. Products whose recipes use a changed material get their cost refreshed.
func importMaterials(ctx context.Context, database *gorm.DB, accountID uint, records []map[string]string) (created, updated int, err error) {
	for idx, record := range records {
		material, err := buildRawMaterial(record)
		if err != nil {
			return created, updated, fmt.Errorf("record %d: %w", idx+1, err)
		}
		material.AccountID = accountID

		isNew := false
		if err := database.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var existing models.RawMaterial
			found := false

			if material.Code != "" {
				err := tx.Where("account_id = ? AND code = ?", accountID, material.Code).First(&existing).Error
				if err == nil {
					found = true
				} else if !errors.Is(err, gorm.ErrRecordNotFound) {
					return fmt.Errorf("find raw material by code %q: %w", material.Code, err)
				}
			}

			if !found {
				err := tx.Where("account_id = ? AND lower(description) = ?", accountID, strings.ToLower(material.Description)).
					First(&existing).Error
				if err == nil {
					found = true
				} else if !errors.Is(err, gorm.ErrRecordNotFound) {
					return fmt.Errorf("find raw material %q: %w", material.Description, err)
				}
			}

			if !found {
				isNew = true
				if err := tx.Create(&material).Error; err != nil {
					return fmt.Errorf("create raw material %q: %w", material.Description, err)
				}
				return nil
			}

			previousCost := existing.CostPerUnit
			updates := map[string]any{
				"description":   material.Description,
				"unit":          material.Unit,
				"cost_per_unit": material.CostPerUnit,
				"quantity":      material.Quantity,
				"min_stock":     material.MinStock,
			}
			if material.Supplier != "" {
				updates["supplier"] = material.Supplier
			}
			if material.Code != "" {
				updates["code"] = material.Code
			}
			if err := tx.Model(&existing).Updates(updates).Error; err != nil {
				return fmt.Errorf("update raw material %q: %w", material.Description, err)
			}

			if !previousCost.Equal(material.CostPerUnit) {
				return stock.RefreshProductCosts(tx, accountID, existing.ID)
			}
			return nil
		}); err != nil {
			return created, updated, fmt.Errorf("record %d (%s): %w", idx+1, material.Description, err)
		}

		if isNew {
			created++
		} else {
			updated++
		}
	}
	return created, updated, nil
}

func buildRawMaterial(row map[string]string) (models.RawMaterial, error) {
	material := models.RawMaterial{
		Description: strings.Join(strings.Fields(row["description"]), " "),
		Unit:        strings.ToLower(strings.TrimSpace(row["unit"])),
		Supplier:    strings.TrimSpace(row["supplier"]),
		Code:        strings.TrimSpace(row["code"]),
	}
	if material.Description == "" {
		return material, fmt.Errorf("description is required")
	}
	if material.Unit == "" {
		return material, fmt.Errorf("unit is required for %q", material.Description)
	}

	cost, err := parseDecimal(row["cost_per_unit"])
	if err != nil {
		return material, fmt.Errorf("cost of %q: %w", material.Description, err)
	}
	if cost.IsNegative() {
		return material, fmt.Errorf("cost of %q must not be negative", material.Description)
	}
	material.CostPerUnit = cost.Round(4)

	if material.Quantity, err = parseQuantity(row["quantity"]); err != nil {
		return material, fmt.Errorf("quantity of %q: %w", material.Description, err)
	}
	if material.MinStock, err = parseQuantity(row["min_stock"]); err != nil {
		return material, fmt.Errorf("minimum stock of %q: %w", material.Description, err)
	}
	return material, nil
}

// parseDecimal accepts both "1234.5" and the Brazilian "1.234,50" forms, with an optional R$ prefix.
func parseDecimal(value string) (decimal.Decimal, error) {
	value = strings.TrimSpace(value)
	value = strings.TrimSpace(strings.TrimPrefix(value, "R$"))
	value = strings.ReplaceAll(value, " ", "")
	if value == "" {
		return decimal.Zero, nil
	}

	comma := strings.LastIndex(value, ",")
	dot := strings.LastIndex(value, ".")
	switch {
	case comma >= 0 && dot >= 0 && comma > dot:
		value = strings.ReplaceAll(value, ".", "")
		value = strings.Replace(value, ",", ".", 1)
	case comma >= 0 && dot >= 0:
		value = strings.ReplaceAll(value, ",", "")
	case comma >= 0:
		value = strings.Replace(value, ",", ".", 1)
	}

	return decimal.NewFromString(value)
}

func parseQuantity(value string) (float64, error) {
	parsed, err := parseDecimal(value)
	if err != nil {
		return 0, err
	}
	if parsed.IsNegative() {
		return 0, fmt.Errorf("must not be negative")
	}
	quantity, _ := parsed.Float64()
	return quantity, nil
}

func readRecords(opts options) ([]map[string]string, error) {
	switch strings.ToLower(filepath.Ext(opts.path)) {
	case ".xlsx", ".xlsm":
		return readXLSX(opts.path, opts.sheet)
	default:
		dec, err := textDecoder(opts.encoding)
		if err != nil {
			return nil, err
		}
		file, err := os.Open(opts.path)
		if err != nil {
			return nil, err
		}
		defer file.Close()
		return readCSV(transform.NewReader(file, dec.NewDecoder()))
	}
}

func textDecoder(name string) (encoding.Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "utf-8", "utf8":
		return encoding.Nop, nil
	case "windows-1252", "cp1252":
		return charmap.Windows1252, nil
	case "iso-8859-1", "latin1":
		return charmap.ISO8859_1, nil
	default:
		return nil, fmt.Errorf("unsupported encoding %q", name)
	}
}

func readCSV(r io.Reader) ([]map[string]string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = detectDelimiter(data)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}
	return mapRows(rows)
}

// detectDelimiter picks ';' when the header uses it, as spreadsheet exports in pt-BR locales do.
func detectDelimiter(data []byte) rune {
	header, _, _ := bytes.Cut(data, []byte("\n"))
	if bytes.Count(header, []byte(";")) > bytes.Count(header, []byte(",")) {
		return ';'
	}
	return ','
}

func readXLSX(path, sheet string) ([]map[string]string, error) {
	book, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer book.Close()

	if sheet == "" {
		sheets := book.GetSheetList()
		if len(sheets) == 0 {
			return nil, errors.New("workbook has no sheets")
		}
		sheet = sheets[0]
	}

	rows, err := book.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	return mapRows(rows)
}

func mapRows(rows [][]string) ([]map[string]string, error) {
	if len(rows) == 0 {
		return nil, errors.New("input is empty")
	}

	header := make([]string, len(rows[0]))
	known := false
	for idx, name := range rows[0] {
		if field, ok := columnAliases[foldHeader(name)]; ok {
			header[idx] = field
			known = true
		}
	}
	if !known {
		return nil, errors.New("header row has no recognised columns")
	}

	records := make([]map[string]string, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if blankRow(row) {
			continue
		}
		record := make(map[string]string, len(header))
		for idx, field := range header {
			if field == "" || idx >= len(row) {
				continue
			}
			record[field] = strings.TrimSpace(row[idx])
		}
		records = append(records, record)
	}
	return records, nil
}

func blankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// foldHeader lowercases a column name and strips accents so "Descrição" matches "descricao".
func foldHeader(name string) string {
	name = strings.TrimPrefix(name, "\ufeff")
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, name)
	if err != nil {
		folded = name
	}
	folded = strings.ToLower(folded)
	folded = strings.NewReplacer("_", " ", "-", " ").Replace(folded)
	return strings.Join(strings.Fields(folded), " ")
}
