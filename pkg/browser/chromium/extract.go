package chromium

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"sort"
	"strings"

	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/chromedp"
	readability "github.com/go-shiori/go-readability"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rahul/browsekit/pkg/browser"
	"github.com/tmc/langchaingo/llms"
)

// Content above this length is truncated before it reaches the model.
const maxContentLength = 50000

// Extract pulls structured data off the current page: readable text is
// distilled from the DOM, the model fills the schema's fields from it, and
// the validator checks the shape before anything is returned. With caching
// enabled, a fresh cached result for the same page, instruction and schema
// skips the model round trip.
func (s *Session) Extract(ctx context.Context, args browser.ExtractArgs) (map[string]any, error) {
	if args.Schema == nil {
		return nil, fmt.Errorf("a compiled schema is required")
	}

	pageURL, err := s.currentURL()
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		payload, ok, err := s.cache.Get(pageURL, args.Instruction, args.Schema.Fingerprint())
		if err != nil {
			log.Printf("chromium: cache lookup failed: %v", err)
		} else if ok {
			var data map[string]any
			if err := json.Unmarshal([]byte(payload), &data); err == nil {
				if out, err := args.Schema.Validate(data); err == nil {
					return out, nil
				}
			}
			// A stale or malformed row falls through to a fresh extraction.
		}
	}

	if s.model == nil {
		return nil, fmt.Errorf("extraction requires a language model: configure one with WithModel or set OPENAI_API_KEY")
	}

	content, err := s.pageText(pageURL)
	if err != nil {
		return nil, err
	}

	reply, err := llms.GenerateFromSinglePrompt(ctx, s.model, buildExtractPrompt(args.Instruction, args.Schema.Schema(), content))
	if err != nil {
		return nil, fmt.Errorf("extraction failed: %v", err)
	}

	var data map[string]any
	if err := json.Unmarshal([]byte(stripFences(reply)), &data); err != nil {
		return nil, fmt.Errorf("model returned unparseable extraction: %v", err)
	}

	out, err := args.Schema.Validate(data)
	if err != nil {
		return nil, fmt.Errorf("extraction did not match schema: %v", err)
	}

	if s.cache != nil {
		if payload, err := json.Marshal(out); err == nil {
			if err := s.cache.Put(pageURL, args.Instruction, args.Schema.Fingerprint(), string(payload)); err != nil {
				log.Printf("chromium: cache store failed: %v", err)
			}
		}
	}

	return out, nil
}

// pageText snapshots the DOM and distills it to readable, sanitized text.
func (s *Session) pageText(pageURL string) (string, error) {
	var html string
	err := s.run(chromedp.ActionFunc(func(ctx context.Context) error {
		node, err := dom.GetDocument().Do(ctx)
		if err != nil {
			return err
		}
		html, err = dom.GetOuterHTML().WithNodeID(node.NodeID).Do(ctx)
		return err
	}))
	if err != nil {
		return "", fmt.Errorf("failed to read page content: %v", err)
	}

	policy := bluemonday.StrictPolicy()

	parsedURL, perr := url.Parse(pageURL)
	if perr != nil {
		parsedURL = &url.URL{}
	}

	article, err := readability.FromReader(strings.NewReader(html), parsedURL)
	var content string
	if err != nil {
		// Readability gives up on some pages (empty bodies, frames);
		// sanitized raw markup still carries the text.
		content = policy.Sanitize(html)
	} else {
		content = policy.Sanitize(article.TextContent)
		if article.Title != "" {
			content = fmt.Sprintf("TITLE: %s\n\n%s", article.Title, content)
		}
	}

	if len(content) > maxContentLength {
		content = content[:maxContentLength] + "\n... (content truncated) ..."
	}
	return content, nil
}

func buildExtractPrompt(instruction string, schema browser.Schema, content string) string {
	fields := make([]string, 0, len(schema))
	for name := range schema {
		fields = append(fields, name)
	}
	sort.Strings(fields)

	var b strings.Builder
	fmt.Fprintf(&b, "Extract data from the web page content below.\n\n")
	fmt.Fprintf(&b, "Instruction: %s\n\n", instruction)
	fmt.Fprintf(&b, "Respond with a single JSON object holding exactly these fields:\n")
	for _, name := range fields {
		fmt.Fprintf(&b, "- %s (%s)\n", name, schema[name])
	}
	fmt.Fprintf(&b, "\nRespond with the JSON object only, no prose.\n")
	fmt.Fprintf(&b, "\n-- PAGE CONTENT --\n%s", content)
	return b.String()
}
