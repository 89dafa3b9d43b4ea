package claims

import (
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
)

// verifiedAtLayout renders verification times with millisecond precision.
const verifiedAtLayout = "2006-01-02T15:04:05.000Z07:00"

func formatVerifiedAt(t time.Time) string {
	return t.UTC().Format(verifiedAtLayout)
}

// decodeParams decodes string parameters into a struct tagged with
// `mapstructure`. Blank values count as absent. Integer fields accept only
// base-10 strings; anything else yields a MalformedClaimError naming the field.
func decodeParams(params map[string]string, out any) error {
	cleaned := make(map[string]any, len(params))
	for k, v := range params {
		if v = strings.TrimSpace(v); v != "" {
			cleaned[k] = v
		}
	}

	if field := firstBadInteger(cleaned, out); field != "" {
		return &MalformedClaimError{Field: field, Reason: "is not an integer"}
	}

	d, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		DecodeHook:       strictIntHook,
	})
	if err != nil {
		return err
	}
	if err := d.Decode(cleaned); err != nil {
		return &MalformedClaimError{Reason: err.Error()}
	}
	return nil
}

func strictIntHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if from.Kind() != reflect.String || !isInt(to) {
		return data, nil
	}
	return strconv.ParseInt(data.(string), 10, 64)
}

func isInt(t reflect.Type) bool {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return true
	}
	return false
}

// firstBadInteger returns the tag of the first integer field whose value is
// present but not a base-10 integer.
func firstBadInteger(params map[string]any, out any) string {
	t := reflect.TypeOf(out)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !isInt(f.Type) {
			continue
		}
		name, _, _ := strings.Cut(f.Tag.Get("mapstructure"), ",")
		if name == "" {
			name = f.Name
		}
		v, ok := params[name]
		if !ok {
			continue
		}
		if _, err := strconv.ParseInt(v.(string), 10, 64); err != nil {
			return name
		}
	}
	return ""
}
