package service

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/noah-isme/classroom-grading-api/internal/models"
	appErrors "github.com/noah-isme/classroom-grading-api/pkg/errors"
)

// ValidateGradeStructure checks a proposed rubric. The percent sum must be exactly 100.
func ValidateGradeStructure(structure *models.GradeStructure) error {
	if structure == nil {
		return appErrors.Clone(appErrors.ErrValidation, "grade structure is required")
	}
	total, ok := structure.Total.Float()
	if !ok || total < 1 {
		return appErrors.Clone(appErrors.ErrInvalidTotal, "")
	}

	seen := make(map[string]struct{}, len(structure.Compositions))
	sum := 0.0
	for _, comp := range structure.Compositions {
		name := strings.TrimSpace(comp.Name)
		if name == "" {
			return appErrors.Clone(appErrors.ErrValidation, "composition name is required")
		}
		percent, ok := comp.Percent.Float()
		if !ok || percent < 1 {
			return appErrors.Clone(appErrors.ErrInvalidPercent, fmt.Sprintf("composition %q percent must be a number greater than or equal to 1", name))
		}
		if _, dup := seen[name]; dup {
			return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("duplicate composition %q", name))
		}
		seen[name] = struct{}{}
		sum += percent
	}
	// float noise only; 99.9 still fails
	if math.Abs(sum-100) > 1e-9 {
		return appErrors.Clone(appErrors.ErrPercentMismatch, "")
	}
	return nil
}

// ValidateGradeValue requires 0 <= value <= total.
func ValidateGradeValue(value string, total models.Decimal) error {
	max, ok := total.Float()
	if !ok {
		return appErrors.Clone(appErrors.ErrInvalidTotal, "")
	}
	v, ok := models.ParseDecimal(value)
	if !ok {
		return appErrors.Clone(appErrors.ErrValidation, "grade must be a number")
	}
	if v < 0 || v > max {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("grade must be between 0 and %s", total))
	}
	return nil
}

// CalculateTotal computes the weighted total of grades against a rubric, formatted to two decimals.
// Unknown compositions and unparsable values contribute nothing.
func CalculateTotal(grades []models.Grade, structure *models.GradeStructure) string {
	if structure == nil || len(grades) == 0 {
		return models.ZeroTotal
	}
	weights := make(map[string]float64, len(structure.Compositions))
	for _, comp := range structure.Compositions {
		if percent, ok := comp.Percent.Float(); ok {
			weights[comp.Name] = percent
		}
	}
	sum := 0.0
	for _, grade := range grades {
		weight, ok := weights[grade.Name]
		if !ok {
			continue
		}
		value, ok := models.ParseDecimal(grade.Value)
		if !ok {
			continue
		}
		sum += value * weight / 100
	}
	return formatTotal(sum)
}

func formatTotal(v float64) string {
	rounded := math.RoundToEven(v*100) / 100
	if rounded == 0 {
		rounded = 0 // drop negative zero
	}
	return strconv.FormatFloat(rounded, 'f', 2, 64)
}

// RecomputeTotal returns the fresh total and whether it differs from the cached one.
func RecomputeTotal(entry *models.StudentListEntry, structure *models.GradeStructure) (string, bool) {
	total := CalculateTotal(entry.Grades, structure)
	return total, total != entry.Total
}

// RemovedCompositions lists, sorted, the composition names present in prev but absent from next.
func RemovedCompositions(prev, next *models.GradeStructure) []string {
	if prev == nil {
		return nil
	}
	keep := make(map[string]struct{})
	for _, name := range next.Names() {
		keep[name] = struct{}{}
	}
	var removed []string
	for _, name := range prev.Names() {
		if _, ok := keep[name]; !ok {
			removed = append(removed, name)
		}
	}
	sort.Strings(removed)
	return removed
}

// FinalFlagChanges describes compositions whose isFinal flag flipped between two rubrics.
// Compositions new in next are not reported.
type FinalFlagChanges struct {
	Finalized   []string
	Unfinalized []string
}

// DiffFinalFlags compares isFinal flags of compositions present in both rubrics.
func DiffFinalFlags(prev, next *models.GradeStructure) FinalFlagChanges {
	var changes FinalFlagChanges
	if prev == nil || next == nil {
		return changes
	}
	for _, comp := range next.Compositions {
		old, ok := prev.Composition(comp.Name)
		if !ok || old.IsFinal == comp.IsFinal {
			continue
		}
		if comp.IsFinal {
			changes.Finalized = append(changes.Finalized, comp.Name)
		} else {
			changes.Unfinalized = append(changes.Unfinalized, comp.Name)
		}
	}
	return changes
}

func normalizeStructure(structure *models.GradeStructure) *models.GradeStructure {
	if structure == nil {
		return nil
	}
	out := &models.GradeStructure{Total: models.Decimal(strings.TrimSpace(string(structure.Total)))}
	out.Compositions = make([]models.GradeComposition, 0, len(structure.Compositions))
	for _, comp := range structure.Compositions {
		comp.Name = strings.TrimSpace(comp.Name)
		comp.Percent = models.Decimal(strings.TrimSpace(string(comp.Percent)))
		out.Compositions = append(out.Compositions, comp)
	}
	return out
}
