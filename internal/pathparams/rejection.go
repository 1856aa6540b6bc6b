package pathparams

import (
	"fmt"
	"strconv"
)

// Kind tags the reason a set of path params could not be decoded.
type Kind int

const (
	KindUnknown Kind = iota
	KindWrongNumberOfParameters
	KindParseErrorAtKey
	KindParseErrorAtIndex
	KindParseError
	KindInvalidUTF8InPathParam
	KindUnsupportedType
	KindMessage
	KindMissingPathParams
)

// Class separates rejections caused by the caller from those caused by the
// server's own route or type configuration.
type Class string

const (
	ClassClient Class = "client"
	ClassServer Class = "server"
)

func (k Kind) String() string {
	switch k {
	case KindWrongNumberOfParameters:
		return "wrong_number_of_parameters"
	case KindParseErrorAtKey:
		return "parse_error_at_key"
	case KindParseErrorAtIndex:
		return "parse_error_at_index"
	case KindParseError:
		return "parse_error"
	case KindInvalidUTF8InPathParam:
		return "invalid_utf8_in_path_param"
	case KindUnsupportedType:
		return "unsupported_type"
	case KindMessage:
		return "message"
	case KindMissingPathParams:
		return "missing_path_params"
	default:
		return "unknown"
	}
}

func (k Kind) Class() Class {
	switch k {
	case KindParseErrorAtKey, KindParseErrorAtIndex, KindParseError, KindInvalidUTF8InPathParam, KindMessage:
		return ClassClient
	default:
		return ClassServer
	}
}

// Rejection is returned by Decode. Only the fields relevant to Kind are set.
type Rejection struct {
	Kind Kind

	Key          string
	Index        int
	Value        string
	ExpectedType string

	// Expected and Got are parameter counts for KindWrongNumberOfParameters.
	Expected int
	Got      int

	Err error
}

func (r *Rejection) Error() string {
	if r == nil {
		return ""
	}
	switch r.Kind {
	case KindWrongNumberOfParameters:
		return fmt.Sprintf("Wrong number of path arguments for `Path`. Expected %d but got %d", r.Expected, r.Got)
	case KindParseErrorAtKey:
		return fmt.Sprintf("Cannot parse `%s` with value `%s` to a `%s`", r.Key, r.Value, r.ExpectedType)
	case KindParseErrorAtIndex:
		return fmt.Sprintf("Cannot parse value at index %d with value `%s` to a `%s`", r.Index, r.Value, r.ExpectedType)
	case KindParseError:
		return fmt.Sprintf("Cannot parse `%s` to a `%s`", r.Value, r.ExpectedType)
	case KindInvalidUTF8InPathParam:
		return fmt.Sprintf("Invalid UTF-8 in `%s`", r.Key)
	case KindUnsupportedType:
		return fmt.Sprintf("Unsupported type `%s`", r.ExpectedType)
	case KindMissingPathParams:
		if r.Key != "" {
			return fmt.Sprintf("Missing path parameter `%s` for matched route", r.Key)
		}
		return "No paths parameters found for matched route"
	case KindMessage:
		if r.Err != nil {
			return r.Err.Error()
		}
		return "invalid path parameters"
	default:
		if r.Err != nil {
			return "Unhandled path rejection: " + r.Err.Error()
		}
		return "Unhandled path rejection"
	}
}

func (r *Rejection) Unwrap() error {
	if r == nil {
		return nil
	}
	return r.Err
}

// Location is the key or index the rejection points at, if any.
func (r *Rejection) Location() (string, bool) {
	if r == nil {
		return "", false
	}
	switch r.Kind {
	case KindParseErrorAtKey, KindInvalidUTF8InPathParam:
		return r.Key, true
	case KindParseErrorAtIndex:
		return strconv.Itoa(r.Index), true
	default:
		return "", false
	}
}
