package stringtest_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"go.jacobcolvin.com/foundry/stringtest"
)

func TestJoinLF(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "a\nb\nc", stringtest.JoinLF("a", "b", "c"))
	assert.Equal(t, "only", stringtest.JoinLF("only"))
	assert.Empty(t, stringtest.JoinLF())
}

func TestLines(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{"a", "b"}, stringtest.Lines("a\nb\n"))
	assert.Equal(t, []string{"a", "b"}, stringtest.Lines("a\r\nb\r\n"))
	assert.Empty(t, stringtest.Lines("\n\n"))
}
