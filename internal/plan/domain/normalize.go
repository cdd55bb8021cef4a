package domain

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	DefaultDurationDays    = 30
	DefaultTier            = "custom"
	DefaultMaxOfflineHours = 168

	minDevices      = 1
	minBranches     = 1
	minOfflineHours = 24
	minMembers      = 0

	// a century; larger catalog values are treated as typos
	maxDurationDays = 36500
)

var moduleKeys = []string{"modulosPlan", "modulos", "modules", "features"}

// Normalize folds every known catalog shape into a Plan. It is pure.
func Normalize(id string, raw map[string]any, defaultDurationDays int) Plan {
	if defaultDurationDays <= 0 {
		defaultDurationDays = DefaultDurationDays
	}

	name := firstString(raw, "nombre", "name")
	if name == "" {
		name = id
	}
	tier := firstString(raw, "tier")
	if tier == "" {
		tier = DefaultTier
	}

	duration := defaultDurationDays
	if v, ok := firstNumber(raw, "duracion", "duracionDias", "durationDays"); ok && isFinite(v) && v >= 1 {
		duration = int(math.Floor(math.Min(v, maxDurationDays)))
	}

	var priceCents int64
	if v, ok := firstNumber(raw, "precio", "price"); ok && isFinite(v) && v > 0 {
		priceCents = decimal.NewFromFloat(v).Shift(2).Round(0).IntPart()
	}

	maxUsers := 0
	if v, ok := firstNumber(raw, "maxUsuarios", "maxUsers"); ok && isFinite(v) && v > 0 {
		maxUsers = floorAt(v, 0)
	}

	return Plan{
		ID:           id,
		Name:         name,
		Tier:         tier,
		DurationDays: duration,
		PriceCents:   priceCents,
		MaxUsers:     maxUsers,
		Modules:      NormalizeModules(raw),
		Limits:       NormalizeLimits(raw),
	}
}

// NormalizeModules merges array and map module encodings. Later keys win.
func NormalizeModules(raw map[string]any) map[string]bool {
	out := map[string]bool{}
	for _, key := range moduleKeys {
		switch v := raw[key].(type) {
		case []any:
			for _, item := range v {
				name := strings.TrimSpace(toString(item))
				if name != "" {
					out[name] = true
				}
			}
		case []string:
			for _, item := range v {
				if name := strings.TrimSpace(item); name != "" {
					out[name] = true
				}
			}
		case map[string]any:
			for name, val := range v {
				if name != "" {
					out[name] = truthy(val)
				}
			}
		case map[string]bool:
			for name, val := range v {
				if name != "" {
					out[name] = val
				}
			}
		}
	}
	if _, ok := out["reports"]; !ok {
		out["reports"] = false
	}
	return out
}

// NormalizeLimits resolves limits.X, then X, then legacy aliases, and applies
// floors. NormalizeLimits(map{"limits": l.Map()}) == l for any normalized l.
func NormalizeLimits(raw map[string]any) Limits {
	nested, _ := raw["limits"].(map[string]any)

	lookup := func(def float64, keys ...string) float64 {
		for _, key := range keys {
			if v, ok := numberAt(nested, key); ok {
				return v
			}
		}
		for _, key := range keys {
			if v, ok := numberAt(raw, key); ok {
				return v
			}
		}
		return def
	}

	members := lookup(minMembers, "maxMembers")
	if _, ok := numberAt(nested, "maxMembers"); !ok {
		if _, ok := numberAt(raw, "maxMembers"); !ok {
			members = lookup(minMembers, "maxUsuarios")
		}
	}

	return ClampLimits(
		members,
		lookup(minDevices, "maxDevices"),
		lookup(minBranches, "maxBranches"),
		lookup(DefaultMaxOfflineHours, "maxOfflineHours"),
	)
}

// ClampLimits applies floors; non-finite values collapse to the floor.
func ClampLimits(members, devices, branches, offlineHours float64) Limits {
	return Limits{
		MaxMembers:      floorAt(members, minMembers),
		MaxDevices:      floorAt(devices, minDevices),
		MaxBranches:     floorAt(branches, minBranches),
		MaxOfflineHours: floorAt(offlineHours, minOfflineHours),
	}
}

func floorAt(v float64, min int) int {
	if !isFinite(v) || v < float64(min) {
		return min
	}
	if v > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(math.Floor(v))
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func firstString(raw map[string]any, keys ...string) string {
	for _, key := range keys {
		if s := strings.TrimSpace(toString(raw[key])); s != "" {
			return s
		}
	}
	return ""
}

func firstNumber(raw map[string]any, keys ...string) (float64, bool) {
	for _, key := range keys {
		if v, ok := numberAt(raw, key); ok {
			return v, true
		}
	}
	return 0, false
}

// numberAt reports a value as present when it is set and not null, even if it
// does not parse; unparseable values come back as NaN so the floor applies.
func numberAt(raw map[string]any, key string) (float64, bool) {
	if raw == nil {
		return 0, false
	}
	v, ok := raw[key]
	if !ok || v == nil {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return math.NaN(), true
		}
		return f, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return math.NaN(), true
		}
		return f, true
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	default:
		return math.NaN(), true
	}
}

func toString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case nil:
		return ""
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case json.Number:
		return s.String()
	default:
		return ""
	}
}

func truthy(v any) bool {
	switch b := v.(type) {
	case nil:
		return false
	case bool:
		return b
	case float64:
		return b != 0 && !math.IsNaN(b)
	case int:
		return b != 0
	case json.Number:
		f, err := b.Float64()
		return err != nil || f != 0
	case string:
		return b != ""
	default:
		return true
	}
}
