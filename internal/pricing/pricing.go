// Package pricing holds the pure price and page-selection arithmetic for
// print jobs. Everything here is deterministic and side-effect free.
package pricing

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"printdesk/backend/internal/domain"
)

// Business constants, in the smallest currency unit. Color runs on a
// separate per-page rate rather than a multiplier so the shop can retune
// either side independently.
const (
	RateBlackAndWhiteCents int64 = 200
	RateColorCents         int64 = 1200

	// DoubleSidedMultiplier scales the per-page cost for duplex jobs.
	// The shop runs it as a discount; a surcharge (>1) is equally valid.
	DoubleSidedMultiplier = 0.90

	// PlatformFeeCents is added once per job, independent of pages or copies.
	PlatformFeeCents int64 = 100

	MinCopies = 1
	MaxCopies = 100

	// PagesAll selects the whole document.
	PagesAll = "all"
)

// ValidationError reports a malformed or out-of-range user input. It is
// always recoverable: the caller surfaces Message next to the offending
// control.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func invalid(field string, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// CountPages resolves a page-selection expression against a document of
// totalPages pages and returns how many sheets one copy selects.
// Accepted tokens are single page numbers ("7") and inclusive ranges
// ("2-5"), comma separated. "all" selects the whole document.
func CountPages(expression string, totalPages int) (int, error) {
	expr := strings.TrimSpace(expression)
	if expr == "" {
		return 0, invalid("pages", "page selection is empty")
	}
	if expr == PagesAll {
		return totalPages, nil
	}

	count := 0
	for _, raw := range strings.Split(expr, ",") {
		token := strings.TrimSpace(raw)
		if token == "" {
			return 0, invalid("pages", "empty page token")
		}

		if left, right, found := strings.Cut(token, "-"); found {
			start, okStart := parsePageNumber(left)
			end, okEnd := parsePageNumber(right)
			if !okStart || !okEnd {
				return 0, invalid("pages", "invalid page format %q", token)
			}
			if start < 1 || end > totalPages {
				return 0, invalid("pages", "range %q outside 1-%d", token, totalPages)
			}
			if start > end {
				return 0, invalid("pages", "range %q runs backwards", token)
			}
			count += end - start + 1
			continue
		}

		page, ok := parsePageNumber(token)
		if !ok {
			return 0, invalid("pages", "invalid page format %q", token)
		}
		if page < 1 || page > totalPages {
			return 0, invalid("pages", "page %d outside 1-%d", page, totalPages)
		}
		count++
	}
	return count, nil
}

// parsePageNumber accepts plain decimal digits only, so tokens with signs,
// spaces, or extra dashes are rejected rather than silently coerced.
func parsePageNumber(raw string) (int, bool) {
	if raw == "" {
		return 0, false
	}
	for _, r := range raw {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return n, true
}

// ValidateRecipe checks a recipe against its document without pricing it.
// All problems are reported, not just the first.
func ValidateRecipe(recipe domain.PrintRecipe, totalPages int) []error {
	var errs []error
	if recipe.Copies < MinCopies || recipe.Copies > MaxCopies {
		errs = append(errs, invalid("copies", "must be between %d and %d", MinCopies, MaxCopies))
	}
	switch recipe.ColorMode {
	case domain.ColorModeBlackAndWhite, domain.ColorModeColor:
	default:
		errs = append(errs, invalid("color_mode", "unknown color mode %q", recipe.ColorMode))
	}
	switch recipe.Sides {
	case domain.SidesSingle, domain.SidesDouble:
	default:
		errs = append(errs, invalid("sides", "unknown sides option %q", recipe.Sides))
	}
	if _, err := CountPages(recipe.Pages, totalPages); err != nil {
		errs = append(errs, err)
	}
	return errs
}

// ComputePriceCents prices one job: per-page rate by color mode, times
// selected pages, times copies, times the sides multiplier, rounded
// half-away-from-zero to the nearest cent, plus the flat platform fee.
// The result is always non-negative.
func ComputePriceCents(recipe domain.PrintRecipe, totalPages int) (int64, error) {
	if errs := ValidateRecipe(recipe, totalPages); len(errs) > 0 {
		return 0, errs[0]
	}

	pageCount, err := CountPages(recipe.Pages, totalPages)
	if err != nil {
		return 0, err
	}

	rate := RateBlackAndWhiteCents
	if recipe.ColorMode == domain.ColorModeColor {
		rate = RateColorCents
	}
	multiplier := 1.0
	if recipe.Sides == domain.SidesDouble {
		multiplier = DoubleSidedMultiplier
	}

	printingCost := int64(math.Round(float64(rate) * float64(pageCount) * float64(recipe.Copies) * multiplier))
	return printingCost + PlatformFeeCents, nil
}
