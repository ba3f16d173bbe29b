package marker

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed languages.yaml
var languagesYAML []byte

// Style describes how comments are written in one language: either a
// line-comment prefix or a block-comment pair.
type Style struct {
	Line       string   `yaml:"line"`
	BlockStart string   `yaml:"block_start"`
	BlockEnd   string   `yaml:"block_end"`
	Extensions []string `yaml:"extensions"`
}

// DefaultStyle is used for unrecognized languages.
var DefaultStyle = Style{Line: "//"}

var (
	stylesByLanguage map[string]Style
	languageByExt    map[string]string
)

func init() {
	var table struct {
		Languages map[string]Style `yaml:"languages"`
	}
	if err := yaml.Unmarshal(languagesYAML, &table); err != nil {
		// The table is embedded at build time; a parse failure is a
		// packaging bug, not a runtime condition.
		panic(fmt.Sprintf("marker: parse embedded language table: %v", err))
	}
	stylesByLanguage = table.Languages
	languageByExt = make(map[string]string)
	for lang, style := range stylesByLanguage {
		for _, ext := range style.Extensions {
			languageByExt[ext] = lang
		}
	}
}

// StyleFor returns the comment style for a language identifier, falling
// back to a line-comment prefix for unrecognized languages.
func StyleFor(languageID string) Style {
	if s, ok := stylesByLanguage[strings.ToLower(languageID)]; ok {
		return s
	}
	return DefaultStyle
}

// LanguageForExt maps a file extension (including the dot) to a language
// identifier, or "" when unknown.
func LanguageForExt(ext string) string {
	return languageByExt[strings.ToLower(ext)]
}
