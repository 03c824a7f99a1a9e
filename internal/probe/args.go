package probe

import (
	"encoding"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
)

// DecodeArgs decodes a loosely typed argument map (from YAML or command line
// flags) into target, a pointer to a check type's Config struct. Unknown keys
// are rejected.
func DecodeArgs(args map[string]any, target any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		Result:           target,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			secondsToDurationHook,
			mapstructure.StringToTimeDurationHookFunc(),
			stringToListHook,
			textUnmarshalerHook,
		),
	})
	if err != nil {
		return fmt.Errorf("creating decoder: %w", err)
	}
	if err := decoder.Decode(args); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}

var (
	stringsType         = reflect.TypeOf([]string(nil))
	durationType        = reflect.TypeOf(time.Duration(0))
	textUnmarshalerType = reflect.TypeOf((*encoding.TextUnmarshaler)(nil)).Elem()
)

// secondsToDurationHook reads bare numbers, and strings holding one, as
// seconds, so "timeout: 30" in a config file means thirty seconds rather than
// thirty nanoseconds.
func secondsToDurationHook(from, to reflect.Type, data any) (any, error) {
	if to != durationType {
		return data, nil
	}
	switch from.Kind() {
	case reflect.String:
		if seconds, err := strconv.ParseFloat(strings.TrimSpace(reflect.ValueOf(data).String()), 64); err == nil {
			return time.Duration(seconds * float64(time.Second)), nil
		}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		seconds, _ := Numeric(data)
		return time.Duration(seconds * float64(time.Second)), nil
	}
	return data, nil
}

// stringToListHook splits comma separated strings into trimmed, non-empty
// list entries.
func stringToListHook(from, to reflect.Type, data any) (any, error) {
	if from.Kind() != reflect.String || to != stringsType {
		return data, nil
	}
	var out []string
	for _, part := range strings.Split(reflect.ValueOf(data).String(), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out, nil
}

// textUnmarshalerHook feeds strings and numbers to types implementing
// encoding.TextUnmarshaler, such as threshold ranges.
func textUnmarshalerHook(from, to reflect.Type, data any) (any, error) {
	if !reflect.PointerTo(to).Implements(textUnmarshalerType) {
		return data, nil
	}
	switch from.Kind() {
	case reflect.String, reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
	default:
		return data, nil
	}
	value := reflect.New(to)
	if err := value.Interface().(encoding.TextUnmarshaler).UnmarshalText([]byte(fmt.Sprint(data))); err != nil {
		return nil, err
	}
	return value.Elem().Interface(), nil
}
