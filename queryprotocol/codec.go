package queryprotocol

import (
	"encoding/json"
	"strconv"
	"strings"
)

// escaper applies the ServerQuery escape table. The backslash entry is
// listed first; strings.Replacer matches at each position in a single pass,
// so inserted backslashes are never escaped twice.
var escaper = strings.NewReplacer(
	`\`, `\\`,
	"/", `\/`,
	"|", `\p`,
	"\n", `\n`,
	"\r", `\r`,
	"\t", `\t`,
	"\v", `\v`,
	"\f", `\f`,
	" ", `\s`,
)

// Escape encodes raw for transmission in a ServerQuery key, value, option
// or command name.
func Escape(raw string) string {
	return escaper.Replace(raw)
}

// Unescape decodes a ServerQuery-escaped string. Unknown escape sequences
// and a trailing lone backslash are kept verbatim.
func Unescape(raw string) string {
	if !strings.Contains(raw, `\`) {
		return raw
	}

	var result strings.Builder
	result.Grow(len(raw))
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		if c != '\\' || i+1 == len(raw) {
			result.WriteByte(c)
			continue
		}
		i++
		switch raw[i] {
		case 's':
			result.WriteByte(' ')
		case 'p':
			result.WriteByte('|')
		case 'n':
			result.WriteByte('\n')
		case 'f':
			result.WriteByte('\f')
		case 'r':
			result.WriteByte('\r')
		case 't':
			result.WriteByte('\t')
		case 'v':
			result.WriteByte('\v')
		case '/':
			result.WriteByte('/')
		case '\\':
			result.WriteByte('\\')
		default:
			result.WriteByte('\\')
			result.WriteByte(raw[i])
		}
	}
	return result.String()
}

// Value is a single parsed field value. Values that are canonical decimal
// integers are held as integers; everything else is a string.
type Value struct {
	str   string
	num   int64
	isInt bool
}

// StringValue returns a string Value without integer coercion.
func StringValue(s string) Value {
	return Value{str: s}
}

// IntValue returns an integer Value.
func IntValue(n int64) Value {
	return Value{str: strconv.FormatInt(n, 10), num: n, isInt: true}
}

// parseValue coerces s to an integer only if re-rendering the integer gives
// back exactly s, so "01", "+1", "-0" and overflowing numbers stay strings.
func parseValue(s string) Value {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || strconv.FormatInt(n, 10) != s {
		return StringValue(s)
	}
	return IntValue(n)
}

// IsInt reports whether the value was coerced to an integer.
func (v Value) IsInt() bool {
	return v.isInt
}

// Int returns the integer value and whether the value is an integer.
func (v Value) Int() (int64, bool) {
	return v.num, v.isInt
}

// String returns the decoded text of the value.
func (v Value) String() string {
	return v.str
}

// MarshalJSON encodes integers as JSON numbers and everything else as
// strings.
func (v Value) MarshalJSON() ([]byte, error) {
	if v.isInt {
		return []byte(v.str), nil
	}
	return json.Marshal(v.str)
}

// Record is one "|"-delimited group of key=value tokens.
type Record map[string]Value

// Get returns the string form of key, or "" if it is absent.
func (r Record) Get(key string) string {
	return r[key].String()
}

// Int returns the integer value of key and whether it is present as an
// integer.
func (r Record) Int(key string) (int64, bool) {
	v, ok := r[key]
	if !ok {
		return 0, false
	}
	return v.Int()
}

// Has reports whether key is present, including flag-style keys with no
// value.
func (r Record) Has(key string) bool {
	_, ok := r[key]
	return ok
}

// Response is the parsed form of one protocol line: null (no records), a
// single record, or an ordered list of records. Use IsNull, Single and
// Records to tell them apart.
type Response struct {
	records []Record
}

// NewResponse wraps records as a Response.
func NewResponse(records ...Record) Response {
	return Response{records: records}
}

// IsNull reports whether the response holds no records.
func (r Response) IsNull() bool {
	return len(r.records) == 0
}

// Single returns the only record when the response has exactly one.
func (r Response) Single() (Record, bool) {
	if len(r.records) != 1 {
		return nil, false
	}
	return r.records[0], true
}

// IsList reports whether the response holds more than one record.
func (r Response) IsList() bool {
	return len(r.records) > 1
}

// Records returns every record in order. It is nil for a null response.
func (r Response) Records() []Record {
	return r.records
}

// First returns the first record, or nil for a null response.
func (r Response) First() Record {
	if len(r.records) == 0 {
		return nil
	}
	return r.records[0]
}

// Len returns the number of records.
func (r Response) Len() int {
	return len(r.records)
}

// MarshalJSON encodes the response as null, an object or an array.
func (r Response) MarshalJSON() ([]byte, error) {
	switch len(r.records) {
	case 0:
		return []byte("null"), nil
	case 1:
		return json.Marshal(r.records[0])
	default:
		return json.Marshal(r.records)
	}
}

// ParseLine parses one raw protocol line into records. It has no side
// effects.
func ParseLine(raw string) Response {
	if raw == "" {
		return Response{}
	}

	parts := strings.Split(raw, RecordSeparator)
	records := make([]Record, 0, len(parts))
	for _, part := range parts {
		records = append(records, parseRecord(part))
	}
	return Response{records: records}
}

func parseRecord(raw string) Record {
	record := make(Record)
	for _, token := range strings.Split(raw, " ") {
		if token == "" {
			continue
		}
		key, value, found := strings.Cut(token, "=")
		if !found {
			record[Unescape(token)] = StringValue("")
			continue
		}
		record[Unescape(key)] = parseValue(Unescape(value))
	}
	return record
}
