package filter

import (
	"strings"
	"time"

	"github.com/joeblew999/plat-layers/internal/style"
)

// dateLayout is used for dates given as epoch milliseconds.
const dateLayout = "2006-01-02 15:04:05"

// literals formats values for the fields of one compile call and collects
// warnings for fields without metadata.
type literals struct {
	fields   style.Fields
	warned   map[string]bool
	warnings []error
}

func newLiterals(fields style.Fields) *literals {
	return &literals{fields: fields, warned: map[string]bool{}}
}

// format writes v as a literal for field: date 'V' for date fields, 'V' for
// string fields and the bare value for everything else.
func (l *literals) format(field string, v style.FieldValue) string {
	meta, ok := l.fields.Lookup(field)
	if !ok {
		if !l.warned[field] {
			l.warned[field] = true
			l.warnings = append(l.warnings, &UnknownFieldKindError{Field: field})
		}
		return v.Text()
	}
	switch meta.Kind {
	case style.DateField:
		return "date " + quote(dateText(v))
	case style.StringField:
		return quote(v.Text())
	}
	return v.Text()
}

func dateText(v style.FieldValue) string {
	if v.Kind == style.NumValue {
		return time.UnixMilli(int64(v.Num)).UTC().Format(dateLayout)
	}
	return v.Str
}

func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
