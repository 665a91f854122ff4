// Package scene implements the pure transforms over scene documents:
// variable extraction, binding seeding, value substitution, and
// whole-document rescaling.
package scene

import "github.com/bannerforge/api/internal/model"

// ExtractVariables walks every element of the document (recursing into
// groups) and returns the distinct dynamic binding names in first-seen
// order. A document with no elements or no bound elements yields an empty
// slice, not an error.
func ExtractVariables(doc *model.SceneDocument) []string {
	vars := []string{}
	if doc == nil {
		return vars
	}
	seen := make(map[string]bool)
	walkElements(doc.Elements, func(el *model.Element) {
		if el.Binding == nil || !el.Binding.IsDynamic || el.Binding.VariableName == "" {
			return
		}
		if !seen[el.Binding.VariableName] {
			seen[el.Binding.VariableName] = true
			vars = append(vars, el.Binding.VariableName)
		}
	})
	return vars
}

// SeedBindings fills in missing bindings on text elements whose content
// carries a {{name}} placeholder. An explicit binding is authoritative and
// is never overwritten by detection; the pattern only seeds the annotation
// when none exists yet. The document is modified in place and returned.
func SeedBindings(doc *model.SceneDocument) *model.SceneDocument {
	if doc == nil {
		return nil
	}
	walkElements(doc.Elements, func(el *model.Element) {
		if el.Kind != model.KindText || el.Binding != nil {
			return
		}
		if name := model.DetectPlaceholder(el.Text); name != "" {
			el.Binding = &model.Binding{VariableName: name, IsDynamic: true}
		}
	})
	return doc
}

// Substitute returns a deep copy of the document with every bound element's
// content replaced by the mapped value. Elements whose variable is absent
// from the mapping keep their placeholder content; that is not an error.
func Substitute(doc *model.SceneDocument, values map[string]string) *model.SceneDocument {
	out := doc.Clone()
	walkElements(out.Elements, func(el *model.Element) {
		if el.Binding == nil || !el.Binding.IsDynamic || el.Binding.VariableName == "" {
			return
		}
		v, ok := values[el.Binding.VariableName]
		if !ok {
			return
		}
		switch el.Kind {
		case model.KindText:
			el.Text = v
		case model.KindImage, model.KindSVG:
			el.Src = v
		case model.KindCircleFrame:
			el.ImageSrc = v
			el.HasImage = v != ""
		}
	})
	return out
}

func walkElements(els []model.Element, fn func(*model.Element)) {
	for i := range els {
		fn(&els[i])
		if len(els[i].Children) > 0 {
			walkElements(els[i].Children, fn)
		}
	}
}
