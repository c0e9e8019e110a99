package chunk

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const goSource = `package demo

import "fmt"

// Greet prints a greeting.
func Greet(name string) {
	fmt.Println("hello", name)
	fmt.Println("welcome")
}

func tiny() {}

func Sum(values []int) int {
	total := 0
	for _, v := range values {
		total += v
	}
	return total
}
`

func TestSemanticChunkingGo(t *testing.T) {
	c := NewChunkerWithOptions(Options{MinLines: 3, TargetLines: 100, MaxLines: 400})
	defer c.Close()

	chunks, err := c.Chunk(context.Background(), goSource, "go", "demo/greet.go")
	require.NoError(t, err)

	// tiny() spans one line and is filtered by MinLines.
	require.Len(t, chunks, 2)

	assert.Equal(t, TypeFunction, chunks[0].ChunkType)
	assert.Equal(t, "Greet", chunks[0].Name)
	assert.Contains(t, chunks[0].Content, "fmt.Println")

	assert.Equal(t, "Sum", chunks[1].Name)
	assert.Less(t, chunks[0].StartLine, chunks[1].StartLine, "chunks sorted by start line")

	for _, ch := range chunks {
		assert.GreaterOrEqual(t, ch.Lines(), 3)
		assert.LessOrEqual(t, ch.StartLine, ch.EndLine)
	}
}

func TestSemanticChunkingPython(t *testing.T) {
	src := "def add(a, b):\n    total = a + b\n    return total\n"

	c := NewChunker()
	defer c.Close()

	chunks, err := c.Chunk(context.Background(), src, "python", "math.py")
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "add", chunks[0].Name)
	assert.Equal(t, TypeFunction, chunks[0].ChunkType)
	assert.Equal(t, 1, chunks[0].StartLine)
	assert.Equal(t, 3, chunks[0].EndLine)
}

func TestModuleFallbackWhenNoFunctionQualifies(t *testing.T) {
	src := "package demo\n\nconst Answer = 42\n"

	c := NewChunker()
	defer c.Close()

	chunks, err := c.Chunk(context.Background(), src, "go", "pkg/answer.go")
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, TypeModule, chunks[0].ChunkType)
	assert.Equal(t, "answer.go", chunks[0].Name)
	assert.Equal(t, 1, chunks[0].StartLine)
	assert.Equal(t, 3, chunks[0].EndLine)
	assert.Equal(t, src, chunks[0].Content)
}

func TestChunkEmptyFile(t *testing.T) {
	c := NewChunker()
	defer c.Close()

	chunks, err := c.Chunk(context.Background(), "", "go", "empty.go")
	require.NoError(t, err)
	assert.Empty(t, chunks)

	assert.Empty(t, c.ChunkLines("", "empty.txt"))
}

func TestChunkUnsupportedLanguageFails(t *testing.T) {
	c := NewChunker()
	defer c.Close()

	_, err := c.Chunk(context.Background(), "some content", "cobol", "legacy.cbl")
	require.Error(t, err)

	var parseErr *ParseFailedError
	require.ErrorAs(t, err, &parseErr)
	assert.Equal(t, "legacy.cbl", parseErr.Path)
}

func TestChunkLinesTilesExactly(t *testing.T) {
	tests := []struct {
		name        string
		lineCount   int
		targetLines int
		wantChunks  int
	}{
		{"exact multiple", 100, 25, 4},
		{"remainder", 10, 3, 4},
		{"single window", 5, 100, 1},
		{"one line", 1, 10, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var b strings.Builder
			for i := 0; i < tt.lineCount; i++ {
				b.WriteString("line\n")
			}

			c := NewChunkerWithOptions(Options{MinLines: 3, TargetLines: tt.targetLines, MaxLines: 400})
			defer c.Close()

			chunks := c.ChunkLines(b.String(), "data/big.txt")
			require.Len(t, chunks, tt.wantChunks)

			// Ranges tile 1..=L with no gaps or overlaps.
			next := 1
			for _, ch := range chunks {
				assert.Equal(t, next, ch.StartLine)
				assert.Equal(t, TypeBlock, ch.ChunkType)
				next = ch.EndLine + 1
			}
			assert.Equal(t, tt.lineCount+1, next)

			// Only the first chunk carries the file name.
			assert.Equal(t, "big.txt", chunks[0].Name)
			for _, ch := range chunks[1:] {
				assert.Empty(t, ch.Name)
			}
		})
	}
}

func TestLargeFunctionStaysWhole(t *testing.T) {
	var b strings.Builder
	b.WriteString("package demo\n\nfunc Huge() {\n")
	for i := 0; i < 600; i++ {
		b.WriteString("\t_ = 1\n")
	}
	b.WriteString("}\n")

	c := NewChunkerWithOptions(Options{MinLines: 3, TargetLines: 100, MaxLines: 400})
	defer c.Close()

	chunks, err := c.Chunk(context.Background(), b.String(), "go", "huge.go")
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Greater(t, chunks[0].Lines(), 400, "oversized function is emitted as a single chunk")
}

func TestRegistryExtensionLookup(t *testing.T) {
	r := DefaultRegistry()
	assert.Equal(t, "go", r.LanguageForExtension(".go"))
	assert.Equal(t, "go", r.LanguageForExtension("go"))
	assert.Equal(t, "typescript", r.LanguageForExtension(".ts"))
	assert.Equal(t, "", r.LanguageForExtension(".xyz"))
}
