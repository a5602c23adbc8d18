package naming

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// tokenRe matches template tokens: {key}, {key[sub]} and {key:0>N} padding.
var tokenRe = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_]*)(?:\[([A-Za-z_][A-Za-z0-9_]*)\])?(?::0>(\d+))?\}`)

// MissingTokensError reports template tokens that had no value in the fill
// data. Destination validation treats this as a per-representation failure.
type MissingTokensError struct {
	Template string
	Tokens   []string
}

func (e *MissingTokensError) Error() string {
	return fmt.Sprintf("template %q has unresolved tokens: %s", e.Template, strings.Join(e.Tokens, ", "))
}

// Fill resolves every token in the template against the supplied data.
// Nested values are addressed as {key[sub]}; integer values accept a
// {key:0>N} zero-padding width. All unresolved tokens are reported together.
func Fill(template string, data map[string]any) (string, error) {
	var missing []string
	result := tokenRe.ReplaceAllStringFunc(template, func(token string) string {
		match := tokenRe.FindStringSubmatch(token)
		key, sub, padding := match[1], match[2], match[3]

		value, ok := lookup(data, key, sub)
		if !ok {
			name := key
			if sub != "" {
				name = key + "[" + sub + "]"
			}
			missing = append(missing, name)
			return token
		}
		return formatValue(value, padding)
	})
	if len(missing) > 0 {
		return "", &MissingTokensError{Template: template, Tokens: missing}
	}
	return result, nil
}

func lookup(data map[string]any, key, sub string) (any, bool) {
	value, ok := data[key]
	if !ok || value == nil {
		return nil, false
	}
	if sub == "" {
		return value, true
	}
	switch nested := value.(type) {
	case map[string]any:
		inner, ok := nested[sub]
		return inner, ok && inner != nil
	case map[string]string:
		inner, ok := nested[sub]
		return inner, ok
	default:
		return nil, false
	}
}

func formatValue(value any, padding string) string {
	if padding != "" {
		width, _ := strconv.Atoi(padding)
		switch v := value.(type) {
		case int:
			return fmt.Sprintf("%0*d", width, v)
		case int64:
			return fmt.Sprintf("%0*d", width, v)
		case string:
			if n, err := strconv.Atoi(v); err == nil {
				return fmt.Sprintf("%0*d", width, n)
			}
		}
	}
	switch v := value.(type) {
	case string:
		return v
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

// DatetimeData returns the date tokens available to delivery templates.
func DatetimeData(now time.Time) map[string]any {
	return map[string]any{
		"yyyy": now.Format("2006"),
		"mm":   now.Format("01"),
		"dd":   now.Format("02"),
		"HH":   now.Format("15"),
		"MM":   now.Format("04"),
		"SS":   now.Format("05"),
	}
}

// MergeData overlays maps left to right into a fresh fill context.
func MergeData(maps ...map[string]any) map[string]any {
	out := make(map[string]any)
	for _, m := range maps {
		for k, v := range m {
			out[k] = v
		}
	}
	return out
}
