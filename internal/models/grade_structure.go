package models

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Decimal is a decimal number kept in its textual form. JSON input may be a number or a string.
type Decimal string

// UnmarshalJSON accepts 10, 10.5, "10" and "10.5".
func (d *Decimal) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*d = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*d = Decimal(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("decimal: %w", err)
	}
	*d = Decimal(n.String())
	return nil
}

// Float parses the decimal. ok is false for empty, malformed, NaN or infinite values.
func (d Decimal) Float() (float64, bool) {
	return ParseDecimal(string(d))
}

// ParseDecimal parses a decimal string into a finite float64.
func ParseDecimal(raw string) (float64, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// GradeComposition is one weighted component of a grade structure.
type GradeComposition struct {
	Name    string  `json:"name"`
	Percent Decimal `json:"percent"`
	IsFinal bool    `json:"is_final"`
}

// GradeStructure is a classroom rubric. It is stored as jsonb on the classroom row.
type GradeStructure struct {
	Total        Decimal            `json:"total"`
	Compositions []GradeComposition `json:"compositions"`
}

// Composition looks a composition up by name.
func (g *GradeStructure) Composition(name string) (GradeComposition, bool) {
	if g == nil {
		return GradeComposition{}, false
	}
	for _, comp := range g.Compositions {
		if comp.Name == name {
			return comp, true
		}
	}
	return GradeComposition{}, false
}

// Names returns composition names in rubric order.
func (g *GradeStructure) Names() []string {
	if g == nil {
		return nil
	}
	names := make([]string, 0, len(g.Compositions))
	for _, comp := range g.Compositions {
		names = append(names, comp.Name)
	}
	return names
}

// Value implements driver.Valuer.
func (g GradeStructure) Value() (driver.Value, error) {
	return json.Marshal(g)
}

// Scan implements sql.Scanner.
func (g *GradeStructure) Scan(src interface{}) error {
	return scanJSON(src, g)
}

func scanJSON(src interface{}, dest interface{}) error {
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, dest)
	case string:
		return json.Unmarshal([]byte(v), dest)
	case nil:
		return nil
	default:
		return errors.New("unsupported jsonb source type")
	}
}
