package domain

import "strings"

type Category string

const (
	CategorySedan     Category = "Sedan"
	CategoryHatchback Category = "Hatchback"
	CategorySUV       Category = "SUV"
	CategoryPrimeSUV  Category = "Prime_SUV"
)

// Categories lists the bookable vehicle tiers in display order.
var Categories = []Category{
	CategorySedan,
	CategoryHatchback,
	CategorySUV,
	CategoryPrimeSUV,
}

var seatingCapacity = map[Category]int{
	CategorySedan:     4,
	CategoryHatchback: 4,
	CategorySUV:       6,
	CategoryPrimeSUV:  7,
}

// ParseCategory accepts the canonical names plus the "Prime SUV" spelling
// used by the web client.
func ParseCategory(s string) (Category, error) {
	normalized := strings.ReplaceAll(strings.TrimSpace(s), " ", "_")
	for _, c := range Categories {
		if strings.EqualFold(normalized, string(c)) {
			return c, nil
		}
	}

	return "", NewError(CodeInvalidCategory, "vehicle type must be one of Sedan, Hatchback, SUV, Prime_SUV", nil)
}

func (c Category) Valid() bool {
	_, ok := seatingCapacity[c]
	return ok
}

func (c Category) SeatingCapacity() int {
	return seatingCapacity[c]
}
