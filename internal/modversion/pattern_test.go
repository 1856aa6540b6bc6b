package modversion

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMatchVersion(t *testing.T) {
	cases := []struct {
		in     string
		strict bool
		suffix bool
	}{
		{"1.2.3", true, true},
		{"1.29.1_4", true, true},
		{"10.20.30_0", true, true},
		{"1.2", false, false},
		{"1.2.3_", false, false},
		{"1.2.3.4", false, true},
		{"v1.2.3", false, true},
		{"garbage1.2.3", false, true},
		{"1.2.3-beta", false, false},
		{"1.2.3\n", false, false},
		{"", false, false},
		{"not-a-version", false, false},
	}
	for _, tc := range cases {
		require.Equal(t, tc.strict, MatchVersion(VersionStrict, tc.in), "strict %q", tc.in)
		require.Equal(t, tc.suffix, MatchVersion(VersionSuffix, tc.in), "suffix %q", tc.in)
	}
}

func TestMatchVersion_UnknownModeIsStrict(t *testing.T) {
	require.False(t, MatchVersion(VersionMode("weird"), "x1.2.3"))
	require.True(t, MatchVersion(VersionMode("weird"), "1.2.3"))
}

func TestMatchVersion_Concurrent(t *testing.T) {
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				if !MatchVersion(VersionStrict, "1.2.3_4") {
					t.Error("expected match")
					return
				}
			}
		}()
	}
	wg.Wait()
}

func TestParseVersionMode(t *testing.T) {
	m, err := ParseVersionMode("")
	require.NoError(t, err)
	require.Equal(t, VersionStrict, m)

	m, err = ParseVersionMode(" SUFFIX ")
	require.NoError(t, err)
	require.Equal(t, VersionSuffix, m)

	_, err = ParseVersionMode("loose")
	require.Error(t, err)
}
