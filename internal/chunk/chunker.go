package chunk

import (
	"context"
	"path/filepath"
	"sort"
	"strings"
)

// Chunker splits source files into ParsedChunks. The semantic strategy
// parses the file and emits one chunk per function; the line-based strategy
// partitions the file into fixed windows.
type Chunker struct {
	parser   *Parser
	registry *LanguageRegistry
	options  Options
}

// NewChunker creates a chunker with default options.
func NewChunker() *Chunker {
	return NewChunkerWithOptions(DefaultOptions())
}

// NewChunkerWithOptions creates a chunker with custom options.
func NewChunkerWithOptions(opts Options) *Chunker {
	if opts.MinLines == 0 {
		opts.MinLines = DefaultOptions().MinLines
	}
	if opts.TargetLines == 0 {
		opts.TargetLines = DefaultOptions().TargetLines
	}
	if opts.MaxLines == 0 {
		opts.MaxLines = DefaultOptions().MaxLines
	}

	registry := DefaultRegistry()
	return &Chunker{
		parser:   NewParserWithRegistry(registry),
		registry: registry,
		options:  opts,
	}
}

// Options returns the active chunking configuration.
func (c *Chunker) Options() Options {
	return c.options
}

// Close releases parser resources.
func (c *Chunker) Close() {
	if c.parser != nil {
		c.parser.Close()
	}
}

// Registry returns the language registry backing this chunker.
func (c *Chunker) Registry() *LanguageRegistry {
	return c.registry
}

// Chunk splits a file semantically: one chunk per function whose line span
// is at least MinLines, sorted by start line. When no function qualifies the
// whole file becomes a single module chunk named after the file. Very large
// functions are emitted whole; splitting mid-function loses semantics.
//
// Returns ParseFailedError when the parser yields no root; callers fall
// back to ChunkLines.
func (c *Chunker) Chunk(ctx context.Context, content, language, path string) ([]ParsedChunk, error) {
	lines := splitLines(content)
	if len(lines) == 0 {
		return []ParsedChunk{}, nil
	}

	if _, supported := c.registry.GetByName(language); !supported {
		return nil, &ParseFailedError{Path: path, Reason: "unsupported language: " + language}
	}

	tree, err := c.parser.Parse(ctx, []byte(content), language)
	if err != nil {
		return nil, &ParseFailedError{Path: path, Reason: err.Error()}
	}

	chunks := c.functionChunks(tree, language)
	if len(chunks) == 0 {
		return []ParsedChunk{{
			Content:   content,
			StartLine: 1,
			EndLine:   len(lines),
			ChunkType: TypeModule,
			Name:      filepath.Base(path),
		}}, nil
	}

	sort.Slice(chunks, func(i, j int) bool {
		return chunks[i].StartLine < chunks[j].StartLine
	})
	return chunks, nil
}

// functionChunks finds function nodes and converts qualifying ones.
func (c *Chunker) functionChunks(tree *Tree, language string) []ParsedChunk {
	config, ok := c.registry.GetByName(language)
	if !ok {
		return nil
	}

	functionTypes := make(map[string]struct{}, len(config.FunctionTypes))
	for _, t := range config.FunctionTypes {
		functionTypes[t] = struct{}{}
	}

	var chunks []ParsedChunk
	tree.Root.Walk(func(n *Node) bool {
		if _, isFunc := functionTypes[n.Type]; !isFunc {
			return true
		}

		start := int(n.StartPoint.Row) + 1
		end := int(n.EndPoint.Row) + 1
		if end-start+1 < c.options.MinLines {
			return false
		}

		chunks = append(chunks, ParsedChunk{
			Content:   n.GetContent(tree.Source),
			StartLine: start,
			EndLine:   end,
			ChunkType: TypeFunction,
			Name:      c.extractName(n, tree.Source),
		})
		// Nested functions stay inside their parent chunk.
		return false
	})

	return chunks
}

// extractName pulls the declared identifier out of a function node.
func (c *Chunker) extractName(n *Node, source []byte) string {
	for _, child := range n.Children {
		if strings.Contains(child.Type, "identifier") {
			return child.GetContent(source)
		}
	}
	// Go methods name the receiver first; search one level deeper.
	if id := n.FindDescendantByType("field_identifier"); id != nil {
		return id.GetContent(source)
	}
	if id := n.FindDescendantByType("identifier"); id != nil {
		return id.GetContent(source)
	}
	return ""
}

// ChunkLines partitions a file into consecutive windows of TargetLines.
// Each chunk is of type block; only the first carries the file name. The
// windows tile the file's line range exactly.
func (c *Chunker) ChunkLines(content, path string) []ParsedChunk {
	lines := splitLines(content)
	if len(lines) == 0 {
		return []ParsedChunk{}
	}

	target := c.options.TargetLines
	chunks := make([]ParsedChunk, 0, (len(lines)+target-1)/target)

	for start := 0; start < len(lines); start += target {
		end := start + target
		if end > len(lines) {
			end = len(lines)
		}

		chunk := ParsedChunk{
			Content:   strings.Join(lines[start:end], "\n"),
			StartLine: start + 1,
			EndLine:   end,
			ChunkType: TypeBlock,
		}
		if start == 0 {
			chunk.Name = filepath.Base(path)
		}
		chunks = append(chunks, chunk)
	}

	return chunks
}

// splitLines splits content into lines, treating a trailing newline as a
// terminator rather than an extra empty line.
func splitLines(content string) []string {
	if content == "" {
		return nil
	}
	lines := strings.Split(content, "\n")
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}
