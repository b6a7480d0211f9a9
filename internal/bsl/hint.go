package bsl

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// HintType is the closed set of semantic hint kinds a Step target may carry.
// Weights are process-wide constants — no hint type is scored outside this table.
type HintType string

const (
	HintDataAttribute       HintType = "data_attribute"
	HintRole                HintType = "role"
	HintTypeAttr            HintType = "type"
	HintAriaLabel           HintType = "aria_label"
	HintName                HintType = "name"
	HintID                  HintType = "id"
	HintTextContains        HintType = "text_contains"
	HintPlaceholderContains HintType = "placeholder_contains"
	HintFieldsetContext     HintType = "fieldset_context"
	HintAssociatedLabel     HintType = "associated_label"
	HintLandmarkContext     HintType = "landmark_context"
	HintSectionContext      HintType = "section_context"
	HintNearLabel           HintType = "near_label"
	HintPositionContext     HintType = "position_context"
	HintClassContains       HintType = "class_contains"
)

// hintWeights is the published weight table. It is the single source
// of truth for scoring; Weight returns (0, false) for anything not listed here.
var hintWeights = map[HintType]float64{
	HintDataAttribute:       1.00,
	HintRole:                1.00,
	HintTypeAttr:            1.00,
	HintAriaLabel:           0.90,
	HintName:                0.90,
	HintID:                  0.85,
	HintTextContains:        0.80,
	HintPlaceholderContains: 0.70,
	HintFieldsetContext:     0.70,
	HintAssociatedLabel:     0.70,
	HintLandmarkContext:     0.65,
	HintSectionContext:      0.60,
	HintNearLabel:           0.60,
	HintPositionContext:     0.55,
	HintClassContains:       0.50,
}

// identifierClass is the subset of hint types eligible for stage-1 exact anchoring.
var identifierClass = map[HintType]bool{
	HintDataAttribute: true,
	HintID:            true,
	HintName:          true,
	HintRole:          true,
}

// Weight returns the fixed weight for a hint type, or (0, false) if t is
// not a member of the closed table.
func Weight(t HintType) (float64, bool) {
	w, ok := hintWeights[t]
	return w, ok
}

// IsIdentifierClass reports whether t belongs to the stage-1 "identifier-class"
// subset: data_attribute, id, name, role.
func IsIdentifierClass(t HintType) bool {
	return identifierClass[t]
}

// NamedValue is the {name, value} form used by data_attribute hints.
type NamedValue struct {
	Name  string `yaml:"name"`
	Value string `yaml:"value"`
}

// Hint is one weighted predicate describing an element. Value holds either
// a bare string or a NamedValue, depending on Type.
type Hint struct {
	Type  HintType
	Value string
	Named NamedValue
}

// IsNamed reports whether this hint's Value is the {name, value} form.
func (h Hint) IsNamed() bool {
	return h.Type == HintDataAttribute
}

type hintYAML struct {
	Type  HintType  `yaml:"type"`
	Value yaml.Node `yaml:"value"`
}

// UnmarshalYAML decodes a Hint, routing data_attribute's compound value
// through NamedValue and everything else through a plain string.
func (h *Hint) UnmarshalYAML(value *yaml.Node) error {
	var raw hintYAML
	if err := value.Decode(&raw); err != nil {
		return err
	}
	if _, ok := hintWeights[raw.Type]; !ok {
		return fmt.Errorf("bsl: unknown hint type %q", raw.Type)
	}
	h.Type = raw.Type
	if raw.Type == HintDataAttribute {
		var nv NamedValue
		if err := raw.Value.Decode(&nv); err != nil {
			return fmt.Errorf("bsl: data_attribute hint requires {name, value}: %w", err)
		}
		h.Named = nv
		return nil
	}
	var s string
	if err := raw.Value.Decode(&s); err != nil {
		return fmt.Errorf("bsl: hint %q requires a string value: %w", raw.Type, err)
	}
	h.Value = s
	return nil
}

// MarshalYAML re-emits a Hint in its on-disk shape.
func (h Hint) MarshalYAML() (interface{}, error) {
	if h.Type == HintDataAttribute {
		return map[string]interface{}{"type": h.Type, "value": h.Named}, nil
	}
	return map[string]interface{}{"type": h.Type, "value": h.Value}, nil
}
