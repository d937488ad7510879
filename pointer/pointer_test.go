package pointer_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.jacobcolvin.com/foundry/pointer"
)

func TestValid(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		ptr  string
		want bool
	}{
		"empty is root":      {ptr: "", want: true},
		"simple":             {ptr: "/a/b", want: true},
		"escapes":            {ptr: "/a~0b/c~1d", want: true},
		"missing slash":      {ptr: "a/b", want: false},
		"dangling tilde":     {ptr: "/a~", want: false},
		"bad escape":         {ptr: "/a~2", want: false},
		"slash only segment": {ptr: "/", want: true},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tc.want, pointer.Valid(tc.ptr))
		})
	}
}

func TestEscapeRoundTrip(t *testing.T) {
	t.Parallel()

	for _, token := range []string{"plain", "a/b", "a~b", "~/", ""} {
		assert.Equal(t, token, pointer.Unescape(pointer.Escape(token)))
	}
}

func TestJoin(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "/properties/a~1b", pointer.Join("/properties", "a/b"))
}

func TestMapBidirectional(t *testing.T) {
	t.Parallel()

	m := pointer.NewMap()
	require.NoError(t, m.MapCanonToOrig("/properties/a", "/defs/a"))
	require.NoError(t, m.MapCanonToOrig("/properties/b", "/defs/a"))

	o, ok := m.ToOriginal("/properties/a")
	require.True(t, ok)
	assert.Equal(t, "/defs/a", o)

	// Reverse list is sorted.
	assert.Equal(t, []string{"/properties/a", "/properties/b"}, m.ToCanonical("/defs/a"))
}

func TestMapOverwriteRemovesStaleBackLink(t *testing.T) {
	t.Parallel()

	m := pointer.NewMap()
	require.NoError(t, m.MapCanonToOrig("/c", "/old"))
	require.NoError(t, m.MapCanonToOrig("/c", "/new"))

	assert.Empty(t, m.ToCanonical("/old"))
	assert.Equal(t, []string{"/c"}, m.ToCanonical("/new"))
}

func TestMapRejectsMalformed(t *testing.T) {
	t.Parallel()

	m := pointer.NewMap()

	err := m.MapCanonToOrig("bad", "/ok")
	require.ErrorIs(t, err, pointer.ErrMalformed)

	err = m.MapCanonToOrig("/ok", "bad~2")
	require.ErrorIs(t, err, pointer.ErrMalformed)
}

func TestToOriginalByWalk(t *testing.T) {
	t.Parallel()

	m := pointer.NewMap()
	require.NoError(t, m.MapCanonToOrig("/properties/a", "/a"))

	// Exact hit.
	o, err := m.ToOriginalByWalk("/properties/a")
	require.NoError(t, err)
	assert.Equal(t, "/a", o)

	// Trailing segments are trimmed until a mapping is found.
	o, err = m.ToOriginalByWalk("/properties/a/items/0")
	require.NoError(t, err)
	assert.Equal(t, "/a", o)

	// Nothing mapped on the way to the root.
	_, err = m.ToOriginalByWalk("/")
	require.ErrorIs(t, err, pointer.ErrNotMapped)

	_, err = m.ToOriginalByWalk("/unmapped/path")
	require.ErrorIs(t, err, pointer.ErrNotMapped)
}
