package soap

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// dateTimeLayout is the ISO 8601 form used by TR-064 datetime values.
const dateTimeLayout = "2006-01-02T15:04:05"

// xmlEscaper covers the five XML entities. Ampersand first so already
// replaced entities are not escaped twice.
var xmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&apos;",
)

// Decode converts a raw response string to a Go value according to the
// SOAP datatype name. Unknown datatypes pass through unchanged; that keeps
// the engine forward compatible with vendor types. A payload that does not
// match a known datatype (a non-numeric ui4, a boolean that is neither "1"
// nor "0") returns an error; the call engine surfaces the raw string in
// that case instead of failing the whole call.
func Decode(value, dataType string) (any, error) {
	switch dataType {
	case "boolean":
		// AVM documents boolean strictly as 1 or 0.
		switch value {
		case "1":
			return true, nil
		case "0":
			return false, nil
		}
		return nil, fmt.Errorf("value %q does not match \"1\" or \"0\"", value)
	case "i4", "ui1", "ui2", "ui4":
		// Range stays unchecked, the router is the source of truth.
		n, err := strconv.Atoi(value)
		if err != nil {
			return nil, fmt.Errorf("value %q is not an integer", value)
		}
		return n, nil
	case "datetime":
		ts, err := time.Parse(dateTimeLayout, value)
		if err != nil {
			return nil, fmt.Errorf("value %q does not match ISO 8601", value)
		}
		return ts, nil
	case "uuid":
		// Strip the "uuid:" prefix.
		parts := strings.Split(value, ":")
		return parts[len(parts)-1], nil
	default:
		return value, nil
	}
}

// Encode renders a Go value as the string placed into a request argument
// element. Booleans become "1"/"0", nil becomes "0", strings are
// XML-entity escaped. Any other type falls back to its fmt representation.
func Encode(value any) string {
	switch v := value.(type) {
	case nil:
		return "0"
	case bool:
		if v {
			return "1"
		}
		return "0"
	case string:
		return xmlEscaper.Replace(v)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case uint:
		return strconv.FormatUint(uint64(v), 10)
	case uint64:
		return strconv.FormatUint(v, 10)
	case time.Time:
		return v.Format(dateTimeLayout)
	default:
		return xmlEscaper.Replace(fmt.Sprintf("%v", v))
	}
}
