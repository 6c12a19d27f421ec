package chromium

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/chromedp/chromedp"
	"github.com/rahul/browsekit/pkg/browser"
	"github.com/tmc/langchaingo/llms"
)

// observeJS enumerates the page's interactive elements into action
// descriptors. Selectors prefer ids, then form names, then a short
// nth-of-type path; descriptions prefer visible text over aria metadata.
const observeJS = `
(() => {
	const selectorFor = (el) => {
		if (el.id) return '#' + CSS.escape(el.id);
		if (el.name && el.form) return el.tagName.toLowerCase() + '[name="' + el.name + '"]';
		const parts = [];
		let node = el;
		while (node && node.nodeType === Node.ELEMENT_NODE && parts.length < 5) {
			let part = node.tagName.toLowerCase();
			if (node.id) {
				parts.unshift('#' + CSS.escape(node.id));
				break;
			}
			const parent = node.parentElement;
			if (parent) {
				const siblings = Array.from(parent.children).filter(c => c.tagName === node.tagName);
				if (siblings.length > 1) part += ':nth-of-type(' + (siblings.indexOf(node) + 1) + ')';
			}
			parts.unshift(part);
			node = parent;
		}
		return parts.join(' > ');
	};
	const describe = (el) => {
		const text = (el.innerText || el.value || '').trim().replace(/\s+/g, ' ').slice(0, 80);
		return text
			|| el.getAttribute('aria-label')
			|| el.getAttribute('placeholder')
			|| el.getAttribute('title')
			|| el.getAttribute('name')
			|| el.tagName.toLowerCase();
	};
	const methodFor = (el) => {
		const tag = el.tagName.toLowerCase();
		if (tag === 'input') {
			const type = (el.getAttribute('type') || 'text').toLowerCase();
			return ['button', 'submit', 'reset', 'checkbox', 'radio'].includes(type) ? 'click' : 'fill';
		}
		if (tag === 'textarea' || tag === 'select') return 'fill';
		return 'click';
	};
	const visible = (el) => {
		const r = el.getBoundingClientRect();
		return r.width > 0 && r.height > 0;
	};
	const nodes = document.querySelectorAll('a[href], button, input, textarea, select, [role="button"], [onclick]');
	const out = [];
	for (const el of nodes) {
		if (!visible(el)) continue;
		out.push({ selector: selectorFor(el), description: describe(el), method: methodFor(el) });
		if (out.length >= 80) break;
	}
	return out;
})()`

// Observe lists the possible actions on the current page. With a nil
// instruction the full candidate list is returned; with one, the list is
// narrowed by the model when available, by keyword overlap otherwise.
func (s *Session) Observe(ctx context.Context, args browser.ObserveArgs) ([]browser.Action, error) {
	var actions []browser.Action
	if err := s.run(chromedp.Evaluate(observeJS, &actions)); err != nil {
		return nil, fmt.Errorf("observation failed: %v", err)
	}

	if args.Instruction == nil || len(actions) == 0 {
		return actions, nil
	}

	if s.model != nil {
		ranked, err := s.rankWithModel(ctx, *args.Instruction, actions)
		if err == nil {
			return ranked, nil
		}
		log.Printf("chromium: model ranking failed, using keyword match: %v", err)
	}

	return keywordFilter(*args.Instruction, actions), nil
}

func (s *Session) rankWithModel(ctx context.Context, instruction string, actions []browser.Action) ([]browser.Action, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "You are looking at a web page. The interactive elements on it are:\n")
	for i, a := range actions {
		fmt.Fprintf(&b, "%d. [%s] %s (%s)\n", i, a.Method, a.Description, a.Selector)
	}
	fmt.Fprintf(&b, "\nInstruction: %s\n", instruction)
	fmt.Fprintf(&b, "Reply with a JSON array holding the numbers of the elements relevant to the instruction, most relevant first. Reply with [] if none apply.\n")

	reply, err := llms.GenerateFromSinglePrompt(ctx, s.model, b.String())
	if err != nil {
		return nil, err
	}

	indices, err := parseIndexList(reply, len(actions))
	if err != nil {
		return nil, err
	}

	ranked := make([]browser.Action, 0, len(indices))
	for _, i := range indices {
		ranked = append(ranked, actions[i])
	}
	return ranked, nil
}

// keywordFilter scores candidates by token overlap with the instruction and
// keeps the ones that match at all. With no match the full list comes back,
// so the caller still sees the page.
func keywordFilter(instruction string, actions []browser.Action) []browser.Action {
	tokens := tokenize(instruction)
	if len(tokens) == 0 {
		return actions
	}

	type scored struct {
		action browser.Action
		score  int
	}

	var matches []scored
	for _, a := range actions {
		score := overlap(tokens, tokenize(a.Description+" "+a.Selector))
		if score > 0 {
			matches = append(matches, scored{action: a, score: score})
		}
	}

	if len(matches) == 0 {
		return actions
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].score > matches[j].score
	})

	out := make([]browser.Action, 0, len(matches))
	for _, m := range matches {
		out = append(out, m.action)
	}
	return out
}
