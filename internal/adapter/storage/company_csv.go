// internal/adapter/storage/company_csv.go

package storage

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"strings"

	"buzztrack/internal/domain/company"
)

// CSVCompanyLoader loads the company reference list from a CSV file. The
// file carries a name,ticker,aliases header; aliases within a row are
// separated by semicolons.
type CSVCompanyLoader struct {
	Path string
}

// NewCSVCompanyLoader creates a new CSV company loader
func NewCSVCompanyLoader(path string) *CSVCompanyLoader {
	return &CSVCompanyLoader{Path: path}
}

// Load reads and parses the CSV file. Rows pass through as-is; the registry
// build is responsible for rejecting bad records.
func (l *CSVCompanyLoader) Load(ctx context.Context) ([]company.Company, error) {
	f, err := os.Open(l.Path)
	if err != nil {
		return nil, fmt.Errorf("error opening company file: %w", err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("error parsing company file %s: %w", l.Path, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("company file %s is empty", l.Path)
	}

	header := records[0]
	if len(header) != 3 || strings.ToLower(header[0]) != "name" {
		return nil, fmt.Errorf("company file %s: expected name,ticker,aliases header", l.Path)
	}

	companies := make([]company.Company, 0, len(records)-1)
	for _, row := range records[1:] {
		c := company.Company{
			Name:   strings.TrimSpace(row[0]),
			Ticker: strings.TrimSpace(row[1]),
		}
		for _, alias := range strings.Split(row[2], ";") {
			if alias = strings.TrimSpace(alias); alias != "" {
				c.Aliases = append(c.Aliases, alias)
			}
		}
		companies = append(companies, c)
	}

	return companies, nil
}
