package format_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.jacobcolvin.com/foundry/format"
	"go.jacobcolvin.com/foundry/randx"
)

func TestRegistryBuiltins(t *testing.T) {
	t.Parallel()

	r := format.NewRegistry()

	assert.Equal(t, []string{"date", "date-time", "email", "ipv4", "uuid"}, r.Names())
	assert.True(t, r.Supports("uuid"))
	assert.False(t, r.Supports("hostname"))

	_, err := r.Lookup("hostname")
	require.ErrorIs(t, err, format.ErrUnsupported)
}

func TestBuiltinsGenerateValid(t *testing.T) {
	t.Parallel()

	r := format.NewRegistry()

	for _, name := range r.Names() {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			p, err := r.Lookup(name)
			require.NoError(t, err)

			rng := randx.New(42, "/format/"+name)

			for range 20 {
				v, err := p.Generate(rng)
				require.NoError(t, err)
				assert.True(t, p.Validate(v), "generated %q fails own validation", v)
			}

			// Examples validate too.
			for _, ex := range p.Examples() {
				assert.True(t, p.Validate(ex), "example %q fails validation", ex)
			}
		})
	}
}

func TestGenerateDeterministic(t *testing.T) {
	t.Parallel()

	r := format.NewRegistry()
	p, err := r.Lookup("uuid")
	require.NoError(t, err)

	a, err := p.Generate(randx.New(7, "/id"))
	require.NoError(t, err)

	b, err := p.Generate(randx.New(7, "/id"))
	require.NoError(t, err)

	assert.Equal(t, a, b)
}

func TestRegisterReplaces(t *testing.T) {
	t.Parallel()

	r := format.NewEmptyRegistry()
	assert.Empty(t, r.Names())

	r.Register(staticPlugin{name: "color", value: "red"})
	require.True(t, r.Supports("color"))

	p, err := r.Lookup("color")
	require.NoError(t, err)

	v, err := p.Generate(randx.New(1, "/"))
	require.NoError(t, err)
	assert.Equal(t, "red", v)
}

type staticPlugin struct {
	name  string
	value string
}

func (p staticPlugin) Name() string { return p.name }

func (p staticPlugin) Generate(*randx.XorShift32) (string, error) { return p.value, nil }

func (p staticPlugin) Validate(v string) bool { return v == p.value }

func (p staticPlugin) Examples() []string { return []string{p.value} }
