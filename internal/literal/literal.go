// Package literal renders Go values as inline Postgres literals for
// standalone scripts.
package literal

import (
	"database/sql/driver"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Null is the SQL null literal.
const Null = "NULL"

// Quote single-quotes s, doubling embedded single quotes.
func Quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// Encode converts one decoded column value into SQL literal text.
//
// Text is quoted, numbers and booleans are written in canonical form, bytea
// becomes a '\x..' hex literal and arrays/objects are serialized to quoted
// JSON for json/jsonb columns.
func Encode(v any) string {
	switch x := v.(type) {
	case nil:
		return Null
	case string:
		return Quote(x)
	case bool:
		return strconv.FormatBool(x)
	case int:
		return strconv.FormatInt(int64(x), 10)
	case int8:
		return strconv.FormatInt(int64(x), 10)
	case int16:
		return strconv.FormatInt(int64(x), 10)
	case int32:
		return strconv.FormatInt(int64(x), 10)
	case int64:
		return strconv.FormatInt(x, 10)
	case uint:
		return strconv.FormatUint(uint64(x), 10)
	case uint8:
		return strconv.FormatUint(uint64(x), 10)
	case uint16:
		return strconv.FormatUint(uint64(x), 10)
	case uint32:
		return strconv.FormatUint(uint64(x), 10)
	case uint64:
		return strconv.FormatUint(x, 10)
	case float32:
		return formatFloat(float64(x), 32)
	case float64:
		return formatFloat(x, 64)
	case []byte:
		return `'\x` + hex.EncodeToString(x) + "'"
	case time.Time:
		return Quote(x.Format(time.RFC3339Nano))
	case [16]byte:
		return Quote(uuid.UUID(x).String())
	case uuid.UUID:
		return Quote(x.String())
	case json.RawMessage:
		return Quote(string(x))
	case driver.Valuer:
		return encodeValuer(x)
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer:
		if rv.IsNil() {
			return Null
		}
		return Encode(rv.Elem().Interface())
	case reflect.Map, reflect.Slice, reflect.Array, reflect.Struct:
		if b, err := json.Marshal(v); err == nil {
			return Quote(string(b))
		}
	}

	if s, ok := v.(fmt.Stringer); ok {
		return Quote(s.String())
	}
	return Quote(fmt.Sprint(v))
}

// Row renders one tuple as "(v1, v2, ...)".
func Row(values []any) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = Encode(v)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// formatFloat keeps non-finite values quoted so Postgres parses them as
// 'NaN' / 'Infinity'.
func formatFloat(f float64, bits int) string {
	switch {
	case math.IsNaN(f):
		return "'NaN'"
	case math.IsInf(f, 1):
		return "'Infinity'"
	case math.IsInf(f, -1):
		return "'-Infinity'"
	}
	return strconv.FormatFloat(f, 'g', -1, bits)
}

func encodeValuer(v driver.Valuer) string {
	if rv := reflect.ValueOf(v); rv.Kind() == reflect.Pointer && rv.IsNil() {
		return Null
	}
	dv, err := v.Value()
	if err != nil {
		return Quote(fmt.Sprint(v))
	}
	if _, loop := dv.(driver.Valuer); loop {
		return Quote(fmt.Sprint(dv))
	}
	return Encode(dv)
}
