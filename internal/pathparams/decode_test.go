package pathparams

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

type modParams struct {
	ModName   string `uri:"mod_name"`
	BSVersion string `uri:"bs_version"`
}

func params(kv ...string) gin.Params {
	out := make(gin.Params, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		out = append(out, gin.Param{Key: kv[i], Value: kv[i+1]})
	}
	return out
}

func requireKind(t *testing.T, err error, want Kind) *Rejection {
	t.Helper()
	require.Error(t, err)
	var rej *Rejection
	require.True(t, errors.As(err, &rej), "expected *Rejection, got %T", err)
	require.Equal(t, want, rej.Kind, "rejection=%v", rej)
	return rej
}

func TestDecode_Struct(t *testing.T) {
	var got modParams
	err := Decode(params("mod_name", "DumbRequestManager", "bs_version", "1.2.3"), &got)
	require.NoError(t, err)
	require.Equal(t, modParams{ModName: "DumbRequestManager", BSVersion: "1.2.3"}, got)
}

func TestDecode_StructOrderIndependent(t *testing.T) {
	var got modParams
	err := Decode(params("bs_version", "1.2.3", "mod_name", "x"), &got)
	require.NoError(t, err)
	require.Equal(t, "x", got.ModName)
	require.Equal(t, "1.2.3", got.BSVersion)
}

func TestDecode_MissingPathParams(t *testing.T) {
	var got modParams
	requireKind(t, Decode(nil, &got), KindMissingPathParams)
}

func TestDecode_WrongNumberOfParameters(t *testing.T) {
	var got modParams
	rej := requireKind(t, Decode(params("mod_name", "x"), &got), KindWrongNumberOfParameters)
	require.Equal(t, 2, rej.Expected)
	require.Equal(t, 1, rej.Got)
	require.Equal(t, modParams{}, got, "target must stay untouched")
}

func TestDecode_ParseErrorAtKeyLeavesTargetUntouched(t *testing.T) {
	type typed struct {
		Name  string `uri:"name"`
		Count int    `uri:"count"`
	}
	got := typed{Name: "before"}
	rej := requireKind(t, Decode(params("name", "after", "count", "abc"), &got), KindParseErrorAtKey)
	require.Equal(t, "count", rej.Key)
	require.Equal(t, "abc", rej.Value)
	require.Equal(t, "int", rej.ExpectedType)
	require.Equal(t, typed{Name: "before"}, got)
}

func TestDecode_MissingKeyIsServerError(t *testing.T) {
	var got modParams
	rej := requireKind(t, Decode(params("mod_name", "x", "version", "1.2.3"), &got), KindMissingPathParams)
	require.Equal(t, "bs_version", rej.Key)
	require.Equal(t, "Missing path parameter `bs_version` for matched route", rej.Error())
	require.Equal(t, modParams{}, got)

	apiErr := Classify(rej)
	require.Equal(t, http.StatusInternalServerError, apiErr.Status)
	require.Nil(t, apiErr.Location)
	require.Equal(t, ClassServer, rej.Kind.Class())
}

func TestDecode_InvalidUTF8(t *testing.T) {
	var got modParams
	rej := requireKind(t, Decode(params("mod_name", "\xff\xfe", "bs_version", "1.2.3"), &got), KindInvalidUTF8InPathParam)
	require.Equal(t, "mod_name", rej.Key)
}

func TestDecode_Positional(t *testing.T) {
	t.Run("slice", func(t *testing.T) {
		var got []string
		require.NoError(t, Decode(params("a", "x", "b", "y"), &got))
		require.Equal(t, []string{"x", "y"}, got)
	})

	t.Run("array", func(t *testing.T) {
		var got [2]uint16
		require.NoError(t, Decode(params("a", "1", "b", "2"), &got))
		require.Equal(t, [2]uint16{1, 2}, got)
	})

	t.Run("array length mismatch", func(t *testing.T) {
		var got [3]string
		requireKind(t, Decode(params("a", "1", "b", "2"), &got), KindWrongNumberOfParameters)
	})

	t.Run("parse error at index", func(t *testing.T) {
		var got []int
		rej := requireKind(t, Decode(params("a", "1", "b", "two"), &got), KindParseErrorAtIndex)
		require.Equal(t, 1, rej.Index)
		require.Nil(t, got)
	})
}

func TestDecode_Scalar(t *testing.T) {
	var n int64
	require.NoError(t, Decode(params("id", "42"), &n))
	require.Equal(t, int64(42), n)

	var b bool
	rej := requireKind(t, Decode(params("flag", "maybe"), &b), KindParseError)
	_, hasLoc := rej.Location()
	require.False(t, hasLoc)

	var s string
	requireKind(t, Decode(params("a", "1", "b", "2"), &s), KindWrongNumberOfParameters)
}

func TestDecode_Map(t *testing.T) {
	var got map[string]string
	require.NoError(t, Decode(params("mod_name", "x", "bs_version", "1.2.3"), &got))
	require.Equal(t, map[string]string{"mod_name": "x", "bs_version": "1.2.3"}, got)

	var bad map[int]string
	requireKind(t, Decode(params("a", "1"), &bad), KindUnsupportedType)
}

func TestDecode_UnsupportedType(t *testing.T) {
	t.Run("non-pointer target", func(t *testing.T) {
		requireKind(t, Decode(params("a", "1"), modParams{}), KindUnsupportedType)
	})

	t.Run("nil target", func(t *testing.T) {
		requireKind(t, Decode(params("a", "1"), nil), KindUnsupportedType)
	})

	t.Run("struct with chan field", func(t *testing.T) {
		var got struct {
			C chan int `uri:"c"`
		}
		requireKind(t, Decode(params("c", "1"), &got), KindUnsupportedType)
	})

	t.Run("slice of structs", func(t *testing.T) {
		var got []modParams
		requireKind(t, Decode(params("a", "1"), &got), KindUnsupportedType)
	})
}

type upperName struct{ v string }

func (u *upperName) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		return errors.New("empty")
	}
	u.v = strings.ToUpper(string(b))
	return nil
}

func TestDecode_TextUnmarshalerField(t *testing.T) {
	var got struct {
		Name upperName `uri:"name"`
	}
	require.NoError(t, Decode(params("name", "abc"), &got))
	require.Equal(t, "ABC", got.Name.v)

	rej := requireKind(t, Decode(params("name", ""), &got), KindParseErrorAtKey)
	require.Equal(t, "name", rej.Key)
}

type customParams struct {
	joined string
}

func (p *customParams) UnmarshalParams(ps gin.Params) error {
	if len(ps) > 2 {
		return fmt.Errorf("too many segments: %d", len(ps))
	}
	parts := make([]string, 0, len(ps))
	for _, x := range ps {
		parts = append(parts, x.Value)
	}
	p.joined = strings.Join(parts, "/")
	return nil
}

func TestDecode_ParamsUnmarshaler(t *testing.T) {
	var got customParams
	require.NoError(t, Decode(params("a", "x", "b", "y"), &got))
	require.Equal(t, "x/y", got.joined)

	rej := requireKind(t, Decode(params("a", "1", "b", "2", "c", "3"), &got), KindMessage)
	require.Equal(t, "too many segments: 3", rej.Error())
}
