package parser

import (
	"path/filepath"
	"strings"
)

// Language is a grammar the region extractor can parse.
type Language int

const (
	LanguageTypeScript Language = iota
	LanguageJavaScript
	LanguageUnknown
)

func (l Language) String() string {
	switch l {
	case LanguageTypeScript:
		return "typescript"
	case LanguageJavaScript:
		return "javascript"
	default:
		return "unknown"
	}
}

// DetectLanguage maps a file extension to a Language.
// .tsx files report LanguageTypeScript; use IsTSXFile to pick the JSX grammar.
func DetectLanguage(filePath string) Language {
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".ts", ".mts", ".cts", ".tsx":
		return LanguageTypeScript
	case ".js", ".jsx", ".mjs", ".cjs":
		return LanguageJavaScript
	default:
		return LanguageUnknown
	}
}

// IsTSXFile reports whether filePath needs the TSX grammar.
func IsTSXFile(filePath string) bool {
	return strings.ToLower(filepath.Ext(filePath)) == ".tsx"
}

// Supported reports whether syntax-aware regions are available for filePath.
func Supported(filePath string) bool {
	return DetectLanguage(filePath) != LanguageUnknown
}
