package prioritize

import (
	"slices"
	"strings"

	"github.com/dotcommander/architect/internal/domain/blueprint"
)

// Rule weights. Entry points and configuration dominate because they decide
// the most about everything downstream.
const (
	WeightEntryPoint = 30
	WeightConfig     = 25
	WeightComponent  = 20
	WeightModel      = 18
	WeightAPI        = 15
	WeightUtility    = 10
	WeightSource     = 8
	WeightMarkup     = 5
	WeightDocs       = 2
)

var (
	entryPointMarkers = []string{"index", "main", "app"}
	componentMarkers  = []string{"component", "service", "controller"}
	modelMarkers      = []string{"model", "schema", "entity"}
	apiMarkers        = []string{"api", "route", "endpoint"}
	utilityMarkers    = []string{"util", "helper", "common"}

	envMarker = ".env"

	configExtensions = []string{".json", ".yaml", ".yml", ".toml", ".ini", ".conf", ".cfg", ".xml", ".properties"}
	sourceExtensions = []string{".js", ".jsx", ".ts", ".tsx", ".py", ".go", ".java", ".rb", ".rs", ".cs", ".cpp", ".c", ".h", ".php", ".kt", ".swift", ".scala"}
	markupExtensions = []string{".html", ".htm", ".css", ".scss", ".sass", ".less", ".vue", ".svelte"}
	docsExtensions   = []string{".md", ".mdx", ".txt", ".rst", ".adoc"}
)

// Score is the additive importance of a file. Every rule is an independent
// case-insensitive check, so one file can collect several weights.
func Score(f blueprint.FileDescriptor) int {
	name := strings.ToLower(f.Name)
	dir := strings.ToLower(f.Path)
	ext := extension(name)

	score := 0
	if containsAny(name, entryPointMarkers) {
		score += WeightEntryPoint
	}
	if strings.Contains(name, "config") || slices.Contains(configExtensions, ext) || strings.Contains(name, envMarker) {
		score += WeightConfig
	}
	if containsAny(dir, componentMarkers) {
		score += WeightComponent
	}
	if containsAny(dir, modelMarkers) {
		score += WeightModel
	}
	if containsAny(dir, apiMarkers) {
		score += WeightAPI
	}
	if containsAny(dir, utilityMarkers) {
		score += WeightUtility
	}
	switch {
	case slices.Contains(sourceExtensions, ext):
		score += WeightSource
	case slices.Contains(markupExtensions, ext):
		score += WeightMarkup
	case slices.Contains(docsExtensions, ext):
		score += WeightDocs
	}
	return score
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}
