package model

import "database/sql/driver"

// Provider identifies which external payment system sent an event.
// Providers differ only in configuration (secret, tolerance), never in
// verification algorithm, so this is a plain tagged value.
type Provider string

const (
	ProviderStripe Provider = "stripe"
	ProviderToss   Provider = "toss"
)

// Scan implements sql.Scanner interface
func (p *Provider) Scan(src interface{}) error {
	switch v := src.(type) {
	case string:
		*p = Provider(v)
	case []byte:
		*p = Provider(v)
	default:
		*p = ""
	}
	return nil
}

// Value implements driver.Valuer interface
func (p Provider) Value() (driver.Value, error) {
	return string(p), nil
}

func (p Provider) String() string {
	return string(p)
}
