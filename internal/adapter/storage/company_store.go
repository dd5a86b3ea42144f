// internal/adapter/storage/company_store.go

package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"

	"buzztrack/internal/domain/company"
)

// CompanyStore loads the company reference list from Postgres
type CompanyStore struct {
	db *pgxpool.Pool
}

// NewCompanyStore creates a new company store
func NewCompanyStore(db *pgxpool.Pool) *CompanyStore {
	return &CompanyStore{
		db: db,
	}
}

// Load retrieves every company in the reference list. Validation of the
// records happens in the registry build, not here.
func (s *CompanyStore) Load(ctx context.Context) ([]company.Company, error) {
	query := `
		SELECT name, ticker, aliases
		FROM companies
		ORDER BY name
	`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("error executing query: %w", err)
	}
	defer rows.Close()

	var companies []company.Company
	for rows.Next() {
		var c company.Company
		var ticker *string

		if err := rows.Scan(&c.Name, &ticker, &c.Aliases); err != nil {
			return nil, fmt.Errorf("error scanning company: %w", err)
		}
		if ticker != nil {
			c.Ticker = *ticker
		}

		companies = append(companies, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating companies: %w", err)
	}

	return companies, nil
}
