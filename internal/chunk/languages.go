package chunk

import (
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// LanguageConfig holds the node types that define chunk boundaries for one
// language.
type LanguageConfig struct {
	Name       string
	Extensions []string

	// Node types that indicate function declarations.
	FunctionTypes []string

	// Node types that indicate class/struct definitions.
	ClassTypes []string

	// Node type carrying the symbol name, when the grammar names one.
	NameField string
}

// LanguageRegistry maps languages and extensions to their configurations.
type LanguageRegistry struct {
	mu          sync.RWMutex
	configs     map[string]*LanguageConfig
	extToLang   map[string]string
	tsLanguages map[string]*sitter.Language
}

// DefaultRegistry returns a registry with the built-in language set.
func DefaultRegistry() *LanguageRegistry {
	r := &LanguageRegistry{
		configs:     make(map[string]*LanguageConfig),
		extToLang:   make(map[string]string),
		tsLanguages: make(map[string]*sitter.Language),
	}

	r.register(&LanguageConfig{
		Name:          "go",
		Extensions:    []string{".go"},
		FunctionTypes: []string{"function_declaration", "method_declaration"},
		ClassTypes:    []string{"type_declaration"},
		NameField:     "identifier",
	}, golang.GetLanguage())

	r.register(&LanguageConfig{
		Name:          "python",
		Extensions:    []string{".py"},
		FunctionTypes: []string{"function_definition"},
		ClassTypes:    []string{"class_definition"},
		NameField:     "identifier",
	}, python.GetLanguage())

	r.register(&LanguageConfig{
		Name:          "javascript",
		Extensions:    []string{".js", ".jsx", ".mjs"},
		FunctionTypes: []string{"function_declaration", "method_definition", "generator_function_declaration"},
		ClassTypes:    []string{"class_declaration"},
		NameField:     "identifier",
	}, javascript.GetLanguage())

	r.register(&LanguageConfig{
		Name:          "typescript",
		Extensions:    []string{".ts", ".mts"},
		FunctionTypes: []string{"function_declaration", "method_definition", "generator_function_declaration"},
		ClassTypes:    []string{"class_declaration"},
		NameField:     "identifier",
	}, typescript.GetLanguage())

	r.register(&LanguageConfig{
		Name:          "tsx",
		Extensions:    []string{".tsx"},
		FunctionTypes: []string{"function_declaration", "method_definition"},
		ClassTypes:    []string{"class_declaration"},
		NameField:     "identifier",
	}, tsx.GetLanguage())

	return r
}

func (r *LanguageRegistry) register(cfg *LanguageConfig, lang *sitter.Language) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.configs[cfg.Name] = cfg
	r.tsLanguages[cfg.Name] = lang
	for _, ext := range cfg.Extensions {
		r.extToLang[ext] = cfg.Name
	}
}

// GetByName returns the language configuration by name.
func (r *LanguageRegistry) GetByName(name string) (*LanguageConfig, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cfg, ok := r.configs[name]
	return cfg, ok
}

// GetByExtension returns the language configuration for a file extension.
func (r *LanguageRegistry) GetByExtension(ext string) (*LanguageConfig, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ext = strings.ToLower(ext)
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}

	name, ok := r.extToLang[ext]
	if !ok {
		return nil, false
	}
	cfg, ok := r.configs[name]
	return cfg, ok
}

// LanguageForExtension returns the language name for an extension, or empty.
func (r *LanguageRegistry) LanguageForExtension(ext string) string {
	cfg, ok := r.GetByExtension(ext)
	if !ok {
		return ""
	}
	return cfg.Name
}

// GetTreeSitterLanguage returns the tree-sitter language for a language name.
func (r *LanguageRegistry) GetTreeSitterLanguage(name string) (*sitter.Language, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	lang, ok := r.tsLanguages[name]
	return lang, ok
}

// SupportedExtensions returns all supported file extensions.
func (r *LanguageRegistry) SupportedExtensions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	exts := make([]string, 0, len(r.extToLang))
	for ext := range r.extToLang {
		exts = append(exts, ext)
	}
	return exts
}
