package chromium

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"regexp"
	"strings"

	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
	"github.com/rahul/browsekit/pkg/browser"
	"github.com/tmc/langchaingo/llms"
)

// actChoice is one resolved interaction: which observed candidate, how to
// interact with it, and the value for fill-style interactions.
type actChoice struct {
	Index  int    `json:"index"`
	Method string `json:"method"`
	Value  string `json:"value,omitempty"`
}

// Act interprets a natural-language action against the current page.
//
// "Nothing on the page matches" and "the element refused the interaction"
// are soft failures reported through ActResult.Success; only faults in
// observing or driving the browser itself are errors.
func (s *Session) Act(ctx context.Context, args browser.ActArgs) (*browser.ActResult, error) {
	action := strings.TrimSpace(args.Action)
	if action == "" {
		return &browser.ActResult{Success: false, Message: "no action provided"}, nil
	}

	candidates, err := s.Observe(ctx, browser.ObserveArgs{})
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return &browser.ActResult{Success: false, Message: "no interactive elements found on the current page"}, nil
	}

	var choice *actChoice
	if s.model != nil {
		choice, err = s.chooseWithModel(ctx, action, candidates)
		if err != nil {
			log.Printf("chromium: model selection failed, using heuristic match: %v", err)
			choice = chooseHeuristically(action, candidates)
		}
	} else {
		choice = chooseHeuristically(action, candidates)
	}

	if choice == nil {
		return &browser.ActResult{
			Success: false,
			Message: fmt.Sprintf("no element on the page matches %q", action),
		}, nil
	}

	target := candidates[choice.Index]
	switch choice.Method {
	case "fill":
		if err := s.run(
			chromedp.Clear(target.Selector, chromedp.ByQuery),
			chromedp.SendKeys(target.Selector, choice.Value, chromedp.ByQuery),
		); err != nil {
			return &browser.ActResult{
				Success: false,
				Message: fmt.Sprintf("could not type into %s: %v", target.Description, err),
			}, nil
		}
		return &browser.ActResult{
			Success: true,
			Message: fmt.Sprintf("typed %q into %s", choice.Value, target.Description),
		}, nil

	case "press":
		key := choice.Value
		if key == "" || strings.EqualFold(key, "enter") || strings.EqualFold(key, "return") {
			key = kb.Enter
		}
		if err := s.run(chromedp.SendKeys(target.Selector, key, chromedp.ByQuery)); err != nil {
			return &browser.ActResult{
				Success: false,
				Message: fmt.Sprintf("could not press key on %s: %v", target.Description, err),
			}, nil
		}
		return &browser.ActResult{
			Success: true,
			Message: fmt.Sprintf("pressed key on %s", target.Description),
		}, nil

	default: // click
		if err := s.run(chromedp.Click(target.Selector, chromedp.ByQuery)); err != nil {
			return &browser.ActResult{
				Success: false,
				Message: fmt.Sprintf("could not click %s: %v", target.Description, err),
			}, nil
		}
		return &browser.ActResult{
			Success: true,
			Message: fmt.Sprintf("clicked %s", target.Description),
		}, nil
	}
}

func (s *Session) chooseWithModel(ctx context.Context, action string, candidates []browser.Action) (*actChoice, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "You control a web browser. The interactive elements on the current page are:\n")
	for i, a := range candidates {
		fmt.Fprintf(&b, "%d. [%s] %s (%s)\n", i, a.Method, a.Description, a.Selector)
	}
	fmt.Fprintf(&b, "\nRequested action: %s\n", action)
	fmt.Fprintf(&b, `Reply with a single JSON object: {"index": <element number>, "method": "click"|"fill"|"press", "value": "<text to type, if filling>"}. Use {"index": -1} if no element fits.`+"\n")

	reply, err := llms.GenerateFromSinglePrompt(ctx, s.model, b.String())
	if err != nil {
		return nil, err
	}

	var choice actChoice
	if err := json.Unmarshal([]byte(stripFences(reply)), &choice); err != nil {
		return nil, fmt.Errorf("unparseable model reply: %v", err)
	}
	if choice.Index < 0 {
		return nil, nil
	}
	if choice.Index >= len(candidates) {
		return nil, fmt.Errorf("model chose element %d of %d", choice.Index, len(candidates))
	}
	if choice.Method == "" {
		choice.Method = candidates[choice.Index].Method
	}
	return &choice, nil
}

var fillVerbs = map[string]bool{
	"type": true, "fill": true, "enter": true, "write": true, "input": true, "set": true,
}

var clickVerbs = map[string]bool{
	"click": true, "press": true, "tap": true, "select": true, "choose": true,
	"open": true, "submit": true, "check": true, "toggle": true, "follow": true,
}

var quotedRe = regexp.MustCompile(`"([^"]*)"|'([^']*)'`)

// chooseHeuristically resolves an action without a model: the leading verb
// decides the method, a quoted string (or the words before "into"/"in")
// becomes the fill value, and the remaining words are matched against the
// candidate descriptions.
func chooseHeuristically(action string, candidates []browser.Action) *actChoice {
	words := strings.Fields(strings.ToLower(action))
	if len(words) == 0 {
		return nil
	}

	method := "click"
	verb := strings.Trim(words[0], ".,!")
	if fillVerbs[verb] {
		method = "fill"
	} else if !clickVerbs[verb] {
		verb = "" // no recognized verb, match on everything
	}

	rest := action
	if verb != "" {
		rest = strings.TrimSpace(action[len(verb):])
	}

	value := ""
	target := rest
	if method == "fill" {
		if m := quotedRe.FindStringSubmatch(rest); m != nil {
			if m[1] != "" {
				value = m[1]
			} else {
				value = m[2]
			}
			target = strings.TrimSpace(strings.Replace(rest, m[0], "", 1))
		} else if idx := strings.Index(strings.ToLower(rest), " into "); idx >= 0 {
			value = strings.TrimSpace(rest[:idx])
			target = strings.TrimSpace(rest[idx+len(" into "):])
		} else if idx := strings.Index(strings.ToLower(rest), " in "); idx >= 0 {
			value = strings.TrimSpace(rest[:idx])
			target = strings.TrimSpace(rest[idx+len(" in "):])
		}
	}

	tokens := tokenize(target)
	best := -1
	bestScore := 0
	for i, a := range candidates {
		score := overlap(tokens, tokenize(a.Description+" "+a.Selector))
		if score == 0 {
			continue
		}
		// Prefer candidates whose natural method agrees with the verb.
		if a.Method == method {
			score++
		}
		if score > bestScore {
			best = i
			bestScore = score
		}
	}

	if best < 0 {
		return nil
	}
	return &actChoice{Index: best, Method: method, Value: value}
}

var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "on": true, "in": true, "into": true,
	"to": true, "of": true, "for": true, "with": true, "and": true, "or": true,
}

// tokenize lowercases, splits on anything non-alphanumeric (so selectors
// like "#login-btn" break into comparable words) and drops stop words.
func tokenize(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9')
	})

	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) < 2 || stopWords[f] {
			continue
		}
		out = append(out, f)
	}
	return out
}

func overlap(want, have []string) int {
	set := make(map[string]bool, len(have))
	for _, h := range have {
		set[h] = true
	}
	score := 0
	for _, w := range want {
		if set[w] {
			score++
		}
	}
	return score
}

// stripFences removes a markdown code fence around a model reply and trims
// to the outermost JSON value.
func stripFences(reply string) string {
	reply = strings.TrimSpace(reply)
	if strings.HasPrefix(reply, "```") {
		reply = strings.TrimPrefix(reply, "```json")
		reply = strings.TrimPrefix(reply, "```")
		if idx := strings.LastIndex(reply, "```"); idx >= 0 {
			reply = reply[:idx]
		}
		reply = strings.TrimSpace(reply)
	}

	start := strings.IndexAny(reply, "{[")
	if start < 0 {
		return reply
	}
	var end int
	if reply[start] == '{' {
		end = strings.LastIndex(reply, "}")
	} else {
		end = strings.LastIndex(reply, "]")
	}
	if end <= start {
		return reply
	}
	return reply[start : end+1]
}

// parseIndexList decodes a model reply holding a JSON array of candidate
// indices, dropping anything out of range or repeated.
func parseIndexList(reply string, limit int) ([]int, error) {
	var raw []int
	if err := json.Unmarshal([]byte(stripFences(reply)), &raw); err != nil {
		return nil, fmt.Errorf("unparseable index list: %v", err)
	}

	seen := make(map[int]bool, len(raw))
	out := make([]int, 0, len(raw))
	for _, i := range raw {
		if i < 0 || i >= limit || seen[i] {
			continue
		}
		seen[i] = true
		out = append(out, i)
	}
	return out, nil
}
