package predicate

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmitWritesExecutableScript(t *testing.T) {
	dir := t.TempDir()
	path, err := Emit(dir, Params{
		SeedPath:            "seed.c",
		CandidateBasename:   "init_1.c",
		CompilerPath:        "cc",
		OptFlag:              "-O2",
		IncludePath:          "/usr/include/csmith",
		IterationArchiveDir: dir,
	})
	require.NoError(t, err)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.NotZero(t, info.Mode()&0o111, "script should be executable")

	contents, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(contents)
	assert.Contains(t, text, "./tmp.o")
	assert.Contains(t, text, "init_1.c")
	assert.Contains(t, text, "interesting_")
	assert.Contains(t, text, "500")
}
