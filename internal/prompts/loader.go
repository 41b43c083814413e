// Package prompts holds the embedded model instructions. Each *.json file maps
// prompt keys to template text with {{.Name}} placeholders.
package prompts

import (
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"sync"
)

//go:embed *.json
var promptFiles embed.FS

// loadAll parses every embedded prompt file once
var loadAll = sync.OnceValues(func() (map[string]map[string]string, error) {
	entries, err := fs.Glob(promptFiles, "*.json")
	if err != nil {
		return nil, err
	}

	files := make(map[string]map[string]string, len(entries))
	for _, name := range entries {
		data, err := promptFiles.ReadFile(name)
		if err != nil {
			return nil, fmt.Errorf("failed to read prompt file %s: %w", name, err)
		}
		var templates map[string]string
		if err := json.Unmarshal(data, &templates); err != nil {
			return nil, fmt.Errorf("failed to parse prompt file %s: %w", name, err)
		}
		files[name] = templates
	}
	return files, nil
})

// Get returns the template stored under key in the named prompt file.
func Get(filename, key string) (string, error) {
	files, err := loadAll()
	if err != nil {
		return "", err
	}

	templates, ok := files[filename]
	if !ok {
		return "", fmt.Errorf("prompt file %s is not embedded", filename)
	}
	text, ok := templates[key]
	if !ok {
		return "", fmt.Errorf("prompt key %q not found in %s", key, filename)
	}
	return text, nil
}

// MustGet is Get for templates the binary cannot run without.
func MustGet(filename, key string) string {
	text, err := Get(filename, key)
	if err != nil {
		panic(fmt.Sprintf("failed to load prompt: %v", err))
	}
	return text
}

// Format substitutes {{.Key}} placeholders from data in a single pass, so
// placeholders inside substituted values (user-supplied contract text, say)
// are left untouched. Placeholders without a value stay as they are.
func Format(template string, data map[string]string) string {
	keys := make([]string, 0, len(data))
	for key := range data {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys)*2)
	for _, key := range keys {
		pairs = append(pairs, "{{."+key+"}}", data[key])
	}
	return strings.NewReplacer(pairs...).Replace(template)
}
