package agent

import (
	"io/ioutil"
	"log"
	"path/filepath"
	"sort"
	"strings"
)

// defaultSystemPrompt keeps the agent usable when no prompts directory has
// been set up.
const defaultSystemPrompt = `You are a web browsing assistant. You control a real browser through four tools:
browser_navigate opens a URL, browser_observe lists the interactive elements on the current page,
browser_act performs one natural-language action (click, type, press), and browser_extract pulls
structured data off the page given an instruction and a field schema.

Work step by step: navigate first, observe when unsure what the page offers, act one interaction
at a time, and extract once the data you need is on screen. Report what you found in plain language.`

type PromptManager struct {
	Directory string
}

func NewPromptManager(dir string) *PromptManager {
	return &PromptManager{Directory: dir}
}

// GetSystemPrompt assembles the system prompt from the .md files in the
// prompts directory. A missing or empty directory falls back to the built-in
// default so the agent always has instructions.
func (pm *PromptManager) GetSystemPrompt() (string, error) {
	files, err := ioutil.ReadDir(pm.Directory)
	if err != nil {
		return defaultSystemPrompt, nil
	}

	var contents []string

	// Sort files to ensure deterministic prompt order:
	// identity, browsing rules, safety, then user additions.
	order := map[string]int{
		"identity.md": 1,
		"browsing.md": 2,
		"safety.md":   3,
		"user.md":     4,
	}

	sort.Slice(files, func(i, j int) bool {
		oi, okI := order[files[i].Name()]
		oj, okJ := order[files[j].Name()]
		if okI && okJ {
			return oi < oj
		}
		if okI {
			return true
		}
		if okJ {
			return false
		}
		return files[i].Name() < files[j].Name()
	})

	for _, f := range files {
		if !f.IsDir() && strings.HasSuffix(f.Name(), ".md") {
			path := filepath.Join(pm.Directory, f.Name())
			data, err := ioutil.ReadFile(path)
			if err != nil {
				log.Printf("Warning: Failed to read prompt file %s: %v", path, err)
				continue
			}
			contents = append(contents, string(data))
		}
	}

	if len(contents) == 0 {
		return defaultSystemPrompt, nil
	}

	return strings.Join(contents, "\n\n---\n\n"), nil
}
