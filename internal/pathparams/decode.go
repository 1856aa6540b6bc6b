// Package pathparams decodes gin route params into typed records and
// classifies every way that can fail.
//
// Decode accepts a pointer to a struct (fields matched by `uri` tag, the same
// tag gin's binding uses), a map with string keys, a slice or array for
// positional params, or a single scalar. The target is only written once every
// value has decoded.
package pathparams

import (
	"encoding"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
)

const tagName = "uri"

// ParamsUnmarshaler lets a target take over decoding. A plain error returned
// from UnmarshalParams is reported as KindMessage.
type ParamsUnmarshaler interface {
	UnmarshalParams(params gin.Params) error
}

var textUnmarshalerType = reflect.TypeOf((*encoding.TextUnmarshaler)(nil)).Elem()

func Decode(params gin.Params, dst any) error {
	rv := reflect.ValueOf(dst)
	if !rv.IsValid() || rv.Kind() != reflect.Pointer || rv.IsNil() {
		return &Rejection{Kind: KindUnsupportedType, ExpectedType: fmt.Sprintf("%T", dst)}
	}
	if len(params) == 0 {
		return &Rejection{Kind: KindMissingPathParams}
	}
	for _, p := range params {
		if !utf8.ValidString(p.Value) {
			return &Rejection{Kind: KindInvalidUTF8InPathParam, Key: p.Key}
		}
	}

	target := rv.Elem()
	tmp := reflect.New(target.Type())
	if u, ok := tmp.Interface().(ParamsUnmarshaler); ok {
		if err := u.UnmarshalParams(params); err != nil {
			var rej *Rejection
			if errors.As(err, &rej) {
				return rej
			}
			return &Rejection{Kind: KindMessage, Err: err}
		}
		target.Set(tmp.Elem())
		return nil
	}
	if err := decodeValue(params, tmp.Elem()); err != nil {
		return err
	}
	target.Set(tmp.Elem())
	return nil
}

func decodeValue(params gin.Params, v reflect.Value) error {
	t := v.Type()
	if isScalar(t) {
		if len(params) != 1 {
			return wrongCount(1, len(params))
		}
		if err := setScalar(v, params[0].Value); err != nil {
			return &Rejection{Kind: KindParseError, Value: params[0].Value, ExpectedType: t.String(), Err: err}
		}
		return nil
	}

	switch t.Kind() {
	case reflect.Struct:
		return decodeStruct(params, v)
	case reflect.Map:
		return decodeMap(params, v)
	case reflect.Slice:
		if !isScalar(t.Elem()) {
			return unsupported(t)
		}
		v.Set(reflect.MakeSlice(t, len(params), len(params)))
		return decodePositional(params, v)
	case reflect.Array:
		if !isScalar(t.Elem()) {
			return unsupported(t)
		}
		if t.Len() != len(params) {
			return wrongCount(t.Len(), len(params))
		}
		return decodePositional(params, v)
	default:
		return unsupported(t)
	}
}

type pathField struct {
	name  string
	index int
}

func decodeStruct(params gin.Params, v reflect.Value) error {
	t := v.Type()
	fields := make([]pathField, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}
		name := sf.Name
		if tag, ok := sf.Tag.Lookup(tagName); ok {
			tag, _, _ = strings.Cut(tag, ",")
			if tag == "-" {
				continue
			}
			if tag != "" {
				name = tag
			}
		}
		if !isScalar(sf.Type) {
			return unsupported(sf.Type)
		}
		fields = append(fields, pathField{name: name, index: i})
	}
	if len(fields) != len(params) {
		return wrongCount(len(fields), len(params))
	}

	for _, f := range fields {
		raw, ok := params.Get(f.name)
		if !ok {
			return &Rejection{Kind: KindMissingPathParams, Key: f.name}
		}
		fv := v.Field(f.index)
		if err := setScalar(fv, raw); err != nil {
			return &Rejection{Kind: KindParseErrorAtKey, Key: f.name, Value: raw, ExpectedType: fv.Type().String(), Err: err}
		}
	}
	return nil
}

func decodeMap(params gin.Params, v reflect.Value) error {
	t := v.Type()
	if t.Key().Kind() != reflect.String || !isScalar(t.Elem()) {
		return unsupported(t)
	}
	m := reflect.MakeMapWithSize(t, len(params))
	for _, p := range params {
		ev := reflect.New(t.Elem()).Elem()
		if err := setScalar(ev, p.Value); err != nil {
			return &Rejection{Kind: KindParseErrorAtKey, Key: p.Key, Value: p.Value, ExpectedType: t.Elem().String(), Err: err}
		}
		m.SetMapIndex(reflect.ValueOf(p.Key).Convert(t.Key()), ev)
	}
	v.Set(m)
	return nil
}

func decodePositional(params gin.Params, v reflect.Value) error {
	for i, p := range params {
		ev := v.Index(i)
		if err := setScalar(ev, p.Value); err != nil {
			return &Rejection{Kind: KindParseErrorAtIndex, Index: i, Value: p.Value, ExpectedType: ev.Type().String(), Err: err}
		}
	}
	return nil
}

func isScalar(t reflect.Type) bool {
	if reflect.PointerTo(t).Implements(textUnmarshalerType) {
		return true
	}
	switch t.Kind() {
	case reflect.String, reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	default:
		return false
	}
}

// setScalar requires v to be addressable when its type is a TextUnmarshaler.
func setScalar(v reflect.Value, s string) error {
	if v.CanAddr() {
		if u, ok := v.Addr().Interface().(encoding.TextUnmarshaler); ok {
			return u.UnmarshalText([]byte(s))
		}
	}
	switch v.Kind() {
	case reflect.String:
		v.SetString(s)
	case reflect.Bool:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return err
		}
		v.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(s, 10, v.Type().Bits())
		if err != nil {
			return err
		}
		v.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(s, 10, v.Type().Bits())
		if err != nil {
			return err
		}
		v.SetUint(n)
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(s, v.Type().Bits())
		if err != nil {
			return err
		}
		v.SetFloat(f)
	default:
		return fmt.Errorf("unsupported kind %s", v.Kind())
	}
	return nil
}

func wrongCount(expected, got int) *Rejection {
	return &Rejection{Kind: KindWrongNumberOfParameters, Expected: expected, Got: got}
}

func unsupported(t reflect.Type) *Rejection {
	return &Rejection{Kind: KindUnsupportedType, ExpectedType: t.String()}
}
