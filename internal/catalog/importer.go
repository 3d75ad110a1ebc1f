package catalog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"chatcommerce/internal/domain"
)

// ImportProductsCSV reads a commerce catalog export. The id column may be
// named id or retailer_id, the name column name or title; price accepts plain
// decimals or "760.00 INR". Rows without an id are skipped.
func ImportProductsCSV(r io.Reader) ([]domain.Product, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1 // exports often carry trailing commas

	headers, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read headers: %w", err)
	}
	index := headerIndex(headers)

	var (
		products []domain.Product
		line     = 1
	)
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return products, fmt.Errorf("read row: %w", err)
		}
		line++

		id := pick(record, index, "id", "retailer_id")
		if id == "" {
			continue
		}
		name := pick(record, index, "name", "title")
		price, err := parsePrice(pick(record, index, "price"))
		if err != nil || name == "" || price <= 0 {
			return products, fmt.Errorf("invalid product row %d for id %q", line, id)
		}
		products = append(products, domain.Product{ID: id, Name: name, Price: price})
	}
	return products, nil
}

func parsePrice(raw string) (int64, error) {
	fields := strings.Fields(raw)
	if len(fields) == 0 {
		return 0, fmt.Errorf("price required")
	}
	major, err := strconv.ParseFloat(strings.ReplaceAll(fields[0], ",", ""), 64)
	if err != nil {
		return 0, err
	}
	return domain.ToMinor(major), nil
}

func headerIndex(headers []string) map[string]int {
	idx := make(map[string]int, len(headers))
	for i, h := range headers {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	return idx
}

func pick(record []string, index map[string]int, keys ...string) string {
	for _, key := range keys {
		pos, ok := index[key]
		if !ok || pos >= len(record) {
			continue
		}
		if v := strings.TrimSpace(record[pos]); v != "" {
			return v
		}
	}
	return ""
}
