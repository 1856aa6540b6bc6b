package modversion

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/mercurialworld/pochamoe-api/internal/logx"
)

const (
	tagModName   = "modname"
	tagBSVersion = "bsversion"

	MsgInvalidModName   = "Must be valid mod name"
	MsgInvalidBSVersion = "Must be valid Beat Saber version"
)

// ModParams is the decoded form of /v1/version/:mod_name/:bs_version.
type ModParams struct {
	ModName   string `uri:"mod_name" validate:"modname"`
	BSVersion string `uri:"bs_version" validate:"bsversion"`
}

// Registry decides which mod names are accepted. Implementations must be
// safe for concurrent use.
type Registry interface {
	Allows(name string) bool
}

// RegistryFunc adapts a plain function to Registry.
type RegistryFunc func(name string) bool

func (f RegistryFunc) Allows(name string) bool { return f(name) }

// FoldName lowercases ASCII letters only, so non-ASCII code points such as
// the Kelvin sign never fold onto an allowed name.
func FoldName(name string) string {
	for i := 0; i < len(name); i++ {
		if c := name[i]; 'A' <= c && c <= 'Z' {
			b := []byte(name)
			for j := i; j < len(b); j++ {
				if 'A' <= b[j] && b[j] <= 'Z' {
					b[j] += 'a' - 'A'
				}
			}
			return string(b)
		}
	}
	return name
}

// StaticRegistry returns a Registry accepting names case-insensitively.
func StaticRegistry(names ...string) Registry {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[FoldName(strings.TrimSpace(n))] = struct{}{}
	}
	return RegistryFunc(func(name string) bool {
		if name == "" {
			return false
		}
		_, ok := set[FoldName(name)]
		return ok
	})
}

type Violation struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Violations is the aggregated result of a failed validation, ordered by
// field declaration.
type Violations []Violation

func (vs Violations) Error() string { return vs.String() }

// String renders one "field: message" per line.
func (vs Violations) String() string {
	lines := make([]string, 0, len(vs))
	for _, v := range vs {
		lines = append(lines, v.Field+": "+v.Message)
	}
	return strings.Join(lines, "\n")
}

type Validator struct {
	validate *validator.Validate
	mode     VersionMode
}

func NewValidator(reg Registry, mode VersionMode) (*Validator, error) {
	if reg == nil {
		return nil, errors.New("modversion: nil registry")
	}
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("uri"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})
	if err := v.RegisterValidation(tagModName, func(fl validator.FieldLevel) bool {
		name := fl.Field().String()
		logx.Debugf("mod name: %s", name)
		return name != "" && reg.Allows(name)
	}); err != nil {
		return nil, err
	}
	if err := v.RegisterValidation(tagBSVersion, func(fl validator.FieldLevel) bool {
		return MatchVersion(mode, fl.Field().String())
	}); err != nil {
		return nil, err
	}
	return &Validator{validate: v, mode: mode}, nil
}

func (v *Validator) Mode() VersionMode { return v.mode }

// Validate runs every rule on p. It returns nil, Violations, or an error when
// the validator itself is misused.
func (v *Validator) Validate(p ModParams) error {
	err := v.validate.Struct(p)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	out := make(Violations, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		out = append(out, Violation{Field: fe.Field(), Message: messageFor(fe)})
	}
	return out
}

func messageFor(fe validator.FieldError) string {
	switch fe.Tag() {
	case tagModName:
		return MsgInvalidModName
	case tagBSVersion:
		return MsgInvalidBSVersion
	default:
		return fe.Error()
	}
}
