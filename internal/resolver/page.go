package resolver

import (
	"context"
	"fmt"

	"github.com/go-rod/rod"

	"github.com/browserlet/browserlet/internal/bsl"
)

// interactiveSelector is the coarsest enumeration, used by the broad scan
// when the hint set carries no role or type to query directly by.
const interactiveSelector = "a, button, input, select, textarea, [onclick], [role='button'], [role='link'], [tabindex]"

// rodSource is the production source, backed by a live rod page.
type rodSource struct {
	page *rod.Page
}

// NewRodSource builds a source for the cascade to resolve against a live
// page. Resolve builds one per call.
func NewRodSource(page *rod.Page) *rodSource {
	return &rodSource{page: page}
}

func (s *rodSource) url() string {
	info, err := s.page.Info()
	if err != nil || info == nil {
		return ""
	}
	return info.URL
}

func (s *rodSource) exactAnchor(ctx context.Context, hints []bsl.Hint) ([]scoredCandidate, error) {
	var selectors []string
	for _, h := range hints {
		switch h.Type {
		case bsl.HintDataAttribute:
			selectors = append(selectors, fmt.Sprintf("[%s=%q]", h.Named.Name, h.Named.Value))
		case bsl.HintID:
			selectors = append(selectors, fmt.Sprintf("#%s", cssEscape(h.Value)))
		case bsl.HintName:
			selectors = append(selectors, fmt.Sprintf("[name=%q]", h.Value))
		case bsl.HintRole:
			selectors = append(selectors, fmt.Sprintf("[role=%q]", h.Value))
		}
	}
	var out []scoredCandidate
	for _, sel := range selectors {
		els, err := s.page.Context(ctx).Elements(sel)
		if err != nil {
			continue // an invalid/no-match selector is not a resolution error
		}
		cands, err := extractAll(els)
		if err != nil {
			return nil, err
		}
		out = append(out, cands...)
	}
	return dedupe(out), nil
}

func (s *rodSource) broadScan(ctx context.Context, hints []bsl.Hint) ([]scoredCandidate, error) {
	sel := coarsestSelector(hints)
	els, err := s.page.Context(ctx).Elements(sel)
	if err != nil {
		return nil, fmt.Errorf("resolver: broad scan query %q: %w", sel, err)
	}
	return extractAll(els)
}

func (s *rodSource) structuralBoost(ctx context.Context, cands []scoredCandidate) ([]scoredCandidate, error) {
	out := make([]scoredCandidate, len(cands))
	copy(out, cands)
	for i := range out {
		re, ok := out[i].elem.(rodElement)
		if !ok {
			continue
		}
		ctxInfo, err := structuralContext(re.el)
		if err != nil {
			continue // best-effort: missing structural context just scores 0 on those hints
		}
		out[i].Candidate.StructuralContext = ctxInfo
		nearby, err := nearbyText(re.el)
		if err == nil {
			out[i].layout.NearbyTexts = nearby
		}
	}
	return out, nil
}

func (s *rodSource) fallback(ctx context.Context, selector string) ([]scoredCandidate, error) {
	els, err := s.page.Context(ctx).Elements(selector)
	if err != nil {
		return nil, nil // an invalid selector yields zero matches, not an error
	}
	return extractAll(els)
}

// landmarkHTML walks the page's ARIA/sectioning landmarks looking for one
// whose visible text or markup contains any hint value, returning its
// outer HTML; falls back to <body>'s outer HTML when none matches or
// hints is empty.
func (s *rodSource) landmarkHTML(ctx context.Context, hints []bsl.Hint) (string, error) {
	res, err := s.page.Context(ctx).Eval(`(values) => {
		const sel = "[role='navigation'],[role='main'],[role='banner'],[role='contentinfo'],[role='complementary'],[role='search'],nav,main,header,footer,aside,section,form,fieldset";
		const landmarks = Array.from(document.querySelectorAll(sel));
		for (const l of landmarks) {
			const html = l.outerHTML || '';
			const text = l.innerText || '';
			if (values.some(v => v && (text.includes(v) || html.includes(v)))) {
				return html;
			}
		}
		return document.body ? document.body.outerHTML : '';
	}`, hintValues(hints))
	if err != nil {
		return "", err
	}
	return res.Value.String(), nil
}

// coarsestSelector picks the narrowest CSS selector the hint set supports,
// falling back to any interactive element.
func coarsestSelector(hints []bsl.Hint) string {
	for _, h := range hints {
		if h.Type == bsl.HintRole && h.Value != "" {
			return fmt.Sprintf("[role=%q]", h.Value)
		}
	}
	for _, h := range hints {
		if h.Type == bsl.HintTypeAttr && h.Value != "" {
			return fmt.Sprintf("[type=%q]", h.Value)
		}
	}
	return interactiveSelector
}

func extractAll(els rod.Elements) ([]scoredCandidate, error) {
	out := make([]scoredCandidate, 0, len(els))
	for _, el := range els {
		c, layout, err := extractOne(el)
		if err != nil {
			continue // a detached/stale element is skipped, not fatal
		}
		out = append(out, scoredCandidate{
			Candidate: c,
			layout:    layout,
			elem:      rodElement{el: el},
		})
	}
	return out, nil
}

func extractOne(el *rod.Element) (Candidate, layoutInfo, error) {
	tagRes, err := el.Eval(`() => this.tagName.toLowerCase()`)
	if err != nil {
		return Candidate{}, layoutInfo{}, err
	}
	textRes, err := el.Eval(`() => (this.innerText || this.value || this.getAttribute('alt') || '').trim()`)
	if err != nil {
		return Candidate{}, layoutInfo{}, err
	}
	attrs, err := elementAttributes(el)
	if err != nil {
		attrs = map[string]string{}
	}

	c := Candidate{
		Tag:         tagRes.Value.String(),
		VisibleText: truncateText(textRes.Value.String()),
		Attributes:  attrs,
	}

	var layout layoutInfo
	if shape, err := el.Shape(); err == nil && shape != nil && len(shape.Quads) > 0 {
		q := shape.Quads[0]
		layout.X = (q[0] + q[2] + q[4] + q[6]) / 4
		layout.Y = (q[1] + q[3] + q[5] + q[7]) / 4
		layout.Width = q[2] - q[0]
		layout.Height = q[5] - q[1]
		layout.HasPosition = true
	}
	if idx, err := el.Eval(`() => {
		const siblings = this.parentElement ? Array.from(this.parentElement.children) : [];
		return {row: siblings.indexOf(this), col: siblings.indexOf(this)};
	}`); err == nil {
		layout.RowIndex = int(idx.Value.Get("row").Int())
		layout.ColIndex = int(idx.Value.Get("col").Int())
	}

	return c, layout, nil
}

func elementAttributes(el *rod.Element) (map[string]string, error) {
	res, err := el.Eval(`() => {
		const out = {};
		for (const a of this.attributes) { out[a.name] = a.value; }
		return out;
	}`)
	if err != nil {
		return nil, err
	}
	attrs := map[string]string{}
	m := res.Value.Map()
	for k, v := range m {
		attrs[k] = v.String()
	}
	return attrs, nil
}

// structuralContext walks the DOM for the nearest enclosing fieldset,
// associated label, ARIA landmark, and preceding section heading.
func structuralContext(el *rod.Element) (StructuralContext, error) {
	res, err := el.Eval(`() => {
		function closest(node, pred) {
			let n = node;
			while (n) { if (pred(n)) return n; n = n.parentElement; }
			return null;
		}
		const fieldset = closest(this, n => n.tagName === 'FIELDSET');
		const legend = fieldset ? fieldset.querySelector('legend') : null;

		let label = '';
		if (this.id) {
			const l = document.querySelector('label[for=' + JSON.stringify(this.id) + ']');
			if (l) label = l.innerText;
		}
		if (!label) {
			const labelledby = this.getAttribute('aria-labelledby');
			if (labelledby) {
				const l = document.getElementById(labelledby);
				if (l) label = l.innerText;
			}
		}
		if (!label) {
			const parentLabel = closest(this, n => n.tagName === 'LABEL');
			if (parentLabel) label = parentLabel.innerText;
		}

		const landmarkNode = closest(this, n => {
			const role = n.getAttribute && n.getAttribute('role');
			return role === 'navigation' || role === 'main' || role === 'banner' ||
				role === 'contentinfo' || role === 'complementary' || role === 'search' ||
				['NAV', 'MAIN', 'HEADER', 'FOOTER', 'ASIDE'].includes(n.tagName);
		});
		const landmark = landmarkNode ? (landmarkNode.getAttribute('role') || landmarkNode.tagName.toLowerCase()) : '';

		let heading = '';
		let n = this;
		while (n) {
			let sib = n.previousElementSibling;
			while (sib) {
				if (/^H[1-6]$/.test(sib.tagName)) { heading = sib.innerText; break; }
				sib = sib.previousElementSibling;
			}
			if (heading) break;
			n = n.parentElement;
		}

		return {
			fieldset_legend: legend ? legend.innerText : '',
			associated_label: label,
			landmark: landmark,
			section_heading: heading,
		};
	}`)
	if err != nil {
		return StructuralContext{}, err
	}
	v := res.Value
	return StructuralContext{
		FieldsetLegend:  v.Get("fieldset_legend").String(),
		AssociatedLabel: v.Get("associated_label").String(),
		Landmark:        v.Get("landmark").String(),
		SectionHeading:  v.Get("section_heading").String(),
	}, nil
}

// nearbyText collects visible text nodes within the near_label search
// radius, for position-aware near_label matching.
func nearbyText(el *rod.Element) ([]string, error) {
	res, err := el.Eval(fmt.Sprintf(`() => {
		const rect = this.getBoundingClientRect();
		const cx = rect.left + rect.width / 2, cy = rect.top + rect.height / 2;
		const radius = %f;
		const texts = [];
		const all = document.querySelectorAll('label, span, div, p, td, th, legend');
		for (const n of all) {
			if (n.contains(this) || this.contains(n)) continue;
			const r = n.getBoundingClientRect();
			const nx = r.left + r.width / 2, ny = r.top + r.height / 2;
			const d = Math.hypot(nx - cx, ny - cy);
			if (d <= radius) {
				const t = (n.innerText || '').trim();
				if (t && t.length < 200) texts.push(t);
			}
			if (texts.length >= 10) break;
		}
		return texts;
	}`, nearLabelRadiusPx))
	if err != nil {
		return nil, err
	}
	arr := res.Value.Arr()
	out := make([]string, 0, len(arr))
	for _, v := range arr {
		out = append(out, v.String())
	}
	return out, nil
}

// cssEscape escapes a CSS identifier value for use in an attribute-free
// #id selector. rod/proto's CSS.escape equivalent is not exposed, so this
// handles the characters BSL-authored ids realistically contain.
func cssEscape(id string) string {
	out := make([]byte, 0, len(id))
	for i := 0; i < len(id); i++ {
		c := id[i]
		switch {
		case c == ' ' || c == '#' || c == '.' || c == ':' || c == '[' || c == ']':
			out = append(out, '\\', c)
		default:
			out = append(out, c)
		}
	}
	return string(out)
}

// dedupe removes candidates that resolved to the same element across
// multiple exact-anchor selectors (e.g. id and name both set).
func dedupe(cands []scoredCandidate) []scoredCandidate {
	seen := map[string]bool{}
	out := make([]scoredCandidate, 0, len(cands))
	for _, c := range cands {
		re, ok := c.elem.(rodElement)
		if !ok {
			out = append(out, c)
			continue
		}
		key := string(re.el.Object.ObjectID)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, c)
	}
	return out
}
