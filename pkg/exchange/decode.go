package exchange

import (
	"encoding/json"
	"errors"

	"github.com/shopspring/decimal"
)

const excerptLen = 120

// DecodeJSON unmarshals raw into v, converting any failure into a
// DecodeError that names the expected shape and the offending field.
func DecodeJSON(raw []byte, typeName string, v any) error {
	if err := json.Unmarshal(raw, v); err != nil {
		path := ""
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			path = typeErr.Field
		}
		return &DecodeError{Type: typeName, Path: path, Excerpt: excerpt(raw), Err: err}
	}
	return nil
}

// ParseDecimal parses a decimal string from the wire. Prices and
// quantities travel as strings; going through float64 would corrupt them.
func ParseDecimal(s, path string, raw []byte, typeName string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, &DecodeError{Type: typeName, Path: path, Excerpt: excerpt(raw), Err: err}
	}
	return d, nil
}

func excerpt(raw []byte) string {
	if len(raw) > excerptLen {
		return string(raw[:excerptLen]) + "..."
	}
	return string(raw)
}
