package importer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"storefront/internal/domain"
	"storefront/internal/logging"
)

type ProductWriter interface {
	UpsertByName(ctx context.Context, p domain.Product) (*domain.Product, error)
}

type CategoryWriter interface {
	Upsert(ctx context.Context, c domain.Category) (*domain.Category, error)
}

// CSVImporter reads catalog CSV files and inserts or refreshes products.
// The header row names the columns; name, price and category are required,
// description, stock, image, special_offer and offer_expires_at are optional.
type CSVImporter struct {
	reader     *csv.Reader
	products   ProductWriter
	categories CategoryWriter
	logger     *zap.Logger
	seen       map[string]int64
}

func NewCSVImporter(r io.Reader, products ProductWriter, categories CategoryWriter, logger *zap.Logger) *CSVImporter {
	csvr := csv.NewReader(r)
	csvr.FieldsPerRecord = -1 // rows may have trailing commas
	csvr.TrimLeadingSpace = true
	return &CSVImporter{
		reader:     csvr,
		products:   products,
		categories: categories,
		logger:     logging.OrNop(logger).Named("importer"),
		seen:       map[string]int64{},
	}
}

type csvRow struct {
	Name           string
	Description    string
	Price          decimal.Decimal
	Stock          int
	Category       string
	Image          string
	SpecialOffer   bool
	OfferExpiresAt *time.Time
}

// Run parses every row and upserts its product. It stops at the first bad
// row and reports how many products were written before it.
func (i *CSVImporter) Run(ctx context.Context) (int, error) {
	headers, err := i.reader.Read()
	if err != nil {
		return 0, fmt.Errorf("read headers: %w", err)
	}
	index := headerIndex(headers)
	for _, required := range []string{"name", "price", "category"} {
		if _, ok := index[required]; !ok {
			return 0, fmt.Errorf("missing %q column", required)
		}
	}

	imported := 0
	for line := 2; ; line++ {
		record, err := i.reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return imported, fmt.Errorf("read row: %w", err)
		}
		if blank(record) {
			continue
		}

		row, err := parseRow(record, index)
		if err != nil {
			return imported, fmt.Errorf("line %d: %w", line, err)
		}
		if err := i.save(ctx, row); err != nil {
			return imported, fmt.Errorf("line %d: %w", line, err)
		}
		imported++
	}

	i.logger.Info("import finished", zap.Int("products", imported), zap.Int("categories", len(i.seen)))
	return imported, nil
}

func (i *CSVImporter) save(ctx context.Context, row *csvRow) error {
	categoryID, err := i.category(ctx, row.Category)
	if err != nil {
		return err
	}
	_, err = i.products.UpsertByName(ctx, domain.Product{
		Name:           row.Name,
		Description:    row.Description,
		Price:          row.Price,
		Stock:          row.Stock,
		Image:          row.Image,
		CategoryID:     categoryID,
		IsSpecialOffer: row.SpecialOffer,
		OfferExpiresAt: row.OfferExpiresAt,
	})
	if err != nil {
		return fmt.Errorf("upsert product %q: %w", row.Name, err)
	}
	return nil
}

// category upserts each category once per run.
func (i *CSVImporter) category(ctx context.Context, name string) (int64, error) {
	slug := Slugify(name)
	if id, ok := i.seen[slug]; ok {
		return id, nil
	}
	c, err := i.categories.Upsert(ctx, domain.Category{Name: name, Slug: slug})
	if err != nil {
		return 0, fmt.Errorf("upsert category %q: %w", name, err)
	}
	i.seen[slug] = c.ID
	return c.ID, nil
}

func headerIndex(headers []string) map[string]int {
	idx := make(map[string]int, len(headers))
	for i, h := range headers {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	return idx
}

func parseRow(record []string, index map[string]int) (*csvRow, error) {
	row := &csvRow{
		Name:        pick(record, index, "name"),
		Description: pick(record, index, "description"),
		Category:    pick(record, index, "category"),
		Image:       pick(record, index, "image"),
	}
	if row.Name == "" {
		return nil, errors.New("name is required")
	}
	if row.Category == "" {
		return nil, errors.New("category is required")
	}

	price, err := decimal.NewFromString(pick(record, index, "price"))
	if err != nil || price.IsNegative() {
		return nil, fmt.Errorf("invalid price %q", pick(record, index, "price"))
	}
	row.Price = price.Round(2)

	if raw := pick(record, index, "stock"); raw != "" {
		stock, err := strconv.Atoi(raw)
		if err != nil || stock < 0 {
			return nil, fmt.Errorf("invalid stock %q", raw)
		}
		row.Stock = stock
	}
	if raw := pick(record, index, "special_offer"); raw != "" {
		offer, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid special_offer %q", raw)
		}
		row.SpecialOffer = offer
	}
	if raw := pick(record, index, "offer_expires_at"); raw != "" {
		expires, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			expires, err = time.Parse(time.DateOnly, raw)
		}
		if err != nil {
			return nil, fmt.Errorf("invalid offer_expires_at %q", raw)
		}
		row.OfferExpiresAt = &expires
	}
	return row, nil
}

func pick(record []string, index map[string]int, key string) string {
	pos, ok := index[key]
	if !ok || pos >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[pos])
}

func blank(record []string) bool {
	for _, f := range record {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

// Slugify lower-cases s and joins its alphanumeric runs with dashes, so
// "Home & Garden" becomes "home-garden".
func Slugify(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			if dash && b.Len() > 0 {
				b.WriteByte('-')
			}
			b.WriteRune(r)
			dash = false
		default:
			dash = true
		}
	}
	return b.String()
}
