// internal/domain/company/model.go

package company

// Company is one entry in the reference list of tracked companies
type Company struct {
	// Name is the canonical display name and the unique identity key
	Name string

	// Ticker is the exchange symbol, empty when the company is unlisted
	Ticker string

	// Aliases are alternative spellings matched in addition to the name
	Aliases []string
}
