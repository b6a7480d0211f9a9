// Package executor runs a resolved BSL step's action against a live
// rod element/page: the ten action contracts the Runner drives, each
// honoring its step (or global) timeout.
package executor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"github.com/browserlet/browserlet/internal/bsl"
)

// Input is everything one action execution needs.
type Input struct {
	Page       *rod.Page
	Element    *rod.Element // nil for navigate and bare screenshot
	Step       bsl.Step
	Value      string // post-substitution
	ScriptName string
	OutputDir  string
}

// Result carries what an action produced, if anything, for the Runner to
// fold into the extracted-variables map.
type Result struct {
	Output         any
	ScreenshotPath string
}

// Execute runs in.Step.Action against in, bounded by timeout.
func Execute(ctx context.Context, timeout time.Duration, in Input) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	switch in.Step.Action {
	case bsl.ActionNavigate:
		return Result{}, navigate(ctx, in)
	case bsl.ActionClick:
		return Result{}, click(ctx, in)
	case bsl.ActionType:
		return Result{}, typeText(ctx, in)
	case bsl.ActionSelect:
		return Result{}, selectOption(ctx, in)
	case bsl.ActionWaitFor:
		return Result{}, waitFor(ctx, in)
	case bsl.ActionHover:
		return Result{}, hover(ctx, in)
	case bsl.ActionScroll:
		return Result{}, scroll(ctx, in)
	case bsl.ActionExtract:
		return extract(ctx, in)
	case bsl.ActionTableExtract:
		return tableExtract(ctx, in)
	case bsl.ActionScreenshot:
		return screenshot(ctx, in)
	default:
		return Result{}, fmt.Errorf("executor: unknown action %q", in.Step.Action)
	}
}

func navigate(ctx context.Context, in Input) error {
	page := in.Page.Context(ctx)
	if err := page.Navigate(in.Value); err != nil {
		return fmt.Errorf("navigate to %q: %w", in.Value, err)
	}
	if err := page.WaitLoad(); err != nil {
		return fmt.Errorf("navigate to %q: wait load: %w", in.Value, err)
	}
	return nil
}

func click(ctx context.Context, in Input) error {
	el := in.Element.Context(ctx)
	if err := el.ScrollIntoView(); err != nil {
		return fmt.Errorf("click: scroll into view: %w", err)
	}
	if visible, err := el.Visible(); err != nil || !visible {
		return fmt.Errorf("click: element not visible after resolve")
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("click: %w", err)
	}
	return nil
}

func typeText(ctx context.Context, in Input) error {
	el := in.Element.Context(ctx)
	editable, err := el.Editable()
	if err != nil {
		return fmt.Errorf("type: check editable: %w", err)
	}
	if !editable {
		return fmt.Errorf("type: element is not editable")
	}
	if err := el.Focus(); err != nil {
		return fmt.Errorf("type: focus: %w", err)
	}
	if err := el.SelectAllText(); err != nil {
		return fmt.Errorf("type: select existing text: %w", err)
	}
	if err := el.Input(in.Value); err != nil {
		return fmt.Errorf("type: input: %w", err)
	}
	return nil
}

func selectOption(ctx context.Context, in Input) error {
	el := in.Element.Context(ctx)
	if err := el.Select([]string{in.Value}, true, rod.SelectorTypeText); err == nil {
		return nil
	}
	if err := el.Select([]string{in.Value}, true, rod.SelectorTypeValue); err != nil {
		return fmt.Errorf("select: no option with text or value %q: %w", in.Value, err)
	}
	return nil
}

func waitFor(ctx context.Context, in Input) error {
	el := in.Element.Context(ctx)
	mode := strings.ToLower(strings.TrimSpace(in.Value))
	switch mode {
	case "hidden":
		if err := el.WaitInvisible(); err != nil {
			return fmt.Errorf("wait_for hidden: %w", err)
		}
	case "present":
		// Resolution already proved the element exists in the DOM.
		return nil
	default:
		if err := el.WaitVisible(); err != nil {
			return fmt.Errorf("wait_for visible: %w", err)
		}
	}
	return nil
}

func hover(ctx context.Context, in Input) error {
	if err := in.Element.Context(ctx).Hover(); err != nil {
		return fmt.Errorf("hover: %w", err)
	}
	return nil
}

func scroll(ctx context.Context, in Input) error {
	if err := in.Element.Context(ctx).ScrollIntoView(); err != nil {
		return fmt.Errorf("scroll: %w", err)
	}
	return nil
}

func extract(ctx context.Context, in Input) (Result, error) {
	res, err := in.Element.Context(ctx).Eval(`() => (this.innerText || this.value || '').trim()`)
	if err != nil {
		return Result{}, fmt.Errorf("extract: read text: %w", err)
	}
	var transformName bsl.TransformName
	if in.Step.Output != nil {
		transformName = in.Step.Output.Transform
	}
	value, err := applyTransform(transformName, res.Value.String())
	if err != nil {
		return Result{}, fmt.Errorf("extract: %w", err)
	}
	return Result{Output: value}, nil
}

func tableExtract(ctx context.Context, in Input) (Result, error) {
	res, err := in.Element.Context(ctx).Eval(`() => {
		const table = this.tagName === 'TABLE' ? this : this.querySelector('table');
		if (!table) return [];
		const headerRow = table.querySelector('thead tr') || table.querySelector('tr');
		const headers = headerRow ? Array.from(headerRow.querySelectorAll('th,td')).map(c => c.innerText.trim()) : [];
		const bodyRows = Array.from(table.querySelectorAll('tbody tr'));
		const rows = bodyRows.length > 0 ? bodyRows : Array.from(table.querySelectorAll('tr')).slice(1);
		return rows.map(r => {
			const cells = Array.from(r.querySelectorAll('td,th')).map(c => c.innerText.trim());
			const record = {};
			headers.forEach((h, i) => { record[h || ('col_' + i)] = i < cells.length ? cells[i] : null; });
			return record;
		});
	}`)
	if err != nil {
		return Result{}, fmt.Errorf("table_extract: %w", err)
	}
	var rows []any
	for _, row := range res.Value.Arr() {
		record := map[string]any{}
		for k, v := range row.Map() {
			if v.Nil() {
				record[k] = nil
			} else {
				record[k] = v.Str()
			}
		}
		rows = append(rows, record)
	}
	return Result{Output: rows}, nil
}

func screenshot(ctx context.Context, in Input) (Result, error) {
	var data []byte
	var err error
	if in.Element != nil {
		data, err = in.Element.Context(ctx).Screenshot(proto.PageCaptureScreenshotFormatPng, 0)
	} else {
		data, err = in.Page.Context(ctx).Screenshot(true, &proto.PageCaptureScreenshot{
			Format: proto.PageCaptureScreenshotFormatPng,
		})
	}
	if err != nil {
		return Result{}, fmt.Errorf("screenshot: capture: %w", err)
	}

	path := in.Value
	if path == "" {
		path = filepath.Join(in.OutputDir, synthesizeScreenshotName(in.ScriptName, in.Step.EffectiveID()))
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return Result{}, fmt.Errorf("screenshot: mkdir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return Result{}, fmt.Errorf("screenshot: write %s: %w", path, err)
	}
	return Result{ScreenshotPath: path}, nil
}

func synthesizeScreenshotName(script, stepID string) string {
	ts := strconv.FormatInt(time.Now().UnixMilli(), 10)
	return fmt.Sprintf("%s_%s_%s.png", sanitize(script), sanitize(stepID), ts)
}

func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, s)
}
