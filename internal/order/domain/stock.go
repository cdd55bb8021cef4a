package domain

import (
	"fmt"
	"sort"
	"strings"
)

// Slot is one stock counter: a flat product or a single variant.
type Slot struct {
	ProductID string
	VariantID string
	Requested int64
	Available int64
}

func (s Slot) Key() string {
	if s.VariantID == "" {
		return "p:" + s.ProductID
	}
	return "v:" + s.VariantID
}

// MatchVariant picks the variant whose color and size equal the item's,
// ignoring case and surrounding space.
func MatchVariant(variants []Variant, color, size string) (Variant, bool) {
	color = strings.TrimSpace(color)
	size = strings.TrimSpace(size)
	for _, v := range variants {
		if strings.EqualFold(strings.TrimSpace(v.Color), color) && strings.EqualFold(strings.TrimSpace(v.Size), size) {
			return v, true
		}
	}
	return Variant{}, false
}

// Verify checks every slot before anything is decremented.
func Verify(slots map[string]*Slot) error {
	for _, key := range SortedKeys(slots) {
		s := slots[key]
		if s.Available < s.Requested {
			return fmt.Errorf("%w: product %s variant %q wants %d has %d", ErrInsufficientStock, s.ProductID, s.VariantID, s.Requested, s.Available)
		}
	}
	return nil
}

// SortedKeys gives a stable decrement order so concurrent settlements lock
// rows in the same sequence.
func SortedKeys(slots map[string]*Slot) []string {
	keys := make([]string, 0, len(slots))
	for k := range slots {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
