package model

import "regexp"

// Element kinds
type ElementKind string

const (
	KindText        ElementKind = "text"
	KindRect        ElementKind = "rect"
	KindEllipse     ElementKind = "ellipse"
	KindImage       ElementKind = "image"
	KindSVG         ElementKind = "svg"
	KindGroup       ElementKind = "group"
	KindCircleFrame ElementKind = "circleFrame"
)

// Text alignment
type TextAlign string

const (
	AlignLeft   TextAlign = "left"
	AlignCenter TextAlign = "center"
	AlignRight  TextAlign = "right"
)

// SceneDocument is the serialized template: canvas dimensions plus a flat
// list of elements painted in order (later elements over earlier ones).
type SceneDocument struct {
	Width           int       `json:"width" validate:"required,min=1"`
	Height          int       `json:"height" validate:"required,min=1"`
	BackgroundColor string    `json:"backgroundColor,omitempty"`
	Elements        []Element `json:"elements"`
}

// Binding marks an element as a substitution target for a named variable.
type Binding struct {
	VariableName string `json:"variableName"`
	IsDynamic    bool   `json:"isDynamic"`
}

// ClipRegion describes the visible window of a clipped image, expressed
// relative to the center of the object it clips so it can be recomputed
// without re-deriving the host transform.
type ClipRegion struct {
	Shape   string  `json:"shape"` // "circle"
	Radius  float64 `json:"radius"`
	OffsetX float64 `json:"offsetX"`
	OffsetY float64 `json:"offsetY"`
}

// Shadow is a drop-shadow descriptor for text elements.
type Shadow struct {
	Color   string  `json:"color"`
	Blur    float64 `json:"blur"`
	OffsetX float64 `json:"offsetX"`
	OffsetY float64 `json:"offsetY"`
}

// Element is the closed tagged union over all scene element kinds. Kind
// selects which of the optional payload fields are meaningful.
type Element struct {
	ID       string      `json:"id"`
	Kind     ElementKind `json:"kind"`
	X        float64     `json:"x"`
	Y        float64     `json:"y"`
	Width    float64     `json:"width"`
	Height   float64     `json:"height"`
	Rotation float64     `json:"rotation,omitempty"`
	Opacity  float64     `json:"opacity"`

	Binding *Binding `json:"binding,omitempty"`

	// text
	Text           string    `json:"text,omitempty"`
	FontFamily     string    `json:"fontFamily,omitempty"`
	FontSize       float64   `json:"fontSize,omitempty"`
	FontWeight     string    `json:"fontWeight,omitempty"`
	FontStyle      string    `json:"fontStyle,omitempty"`
	Fill           string    `json:"fill,omitempty"`
	Align          TextAlign `json:"align,omitempty"`
	LetterSpacing  float64   `json:"letterSpacing,omitempty"`
	LineHeight     float64   `json:"lineHeight,omitempty"`
	Stroke         string    `json:"stroke,omitempty"`
	StrokeWidth    float64   `json:"strokeWidth,omitempty"`
	Shadow         *Shadow   `json:"shadow,omitempty"`
	BackgroundFill string    `json:"backgroundFill,omitempty"`

	// rect
	CornerRadius float64 `json:"cornerRadius,omitempty"`

	// image / svg
	Src  string      `json:"src,omitempty"`
	Clip *ClipRegion `json:"clip,omitempty"`

	// circleFrame
	Radius        float64 `json:"radius,omitempty"`
	HasImage      bool    `json:"hasImage,omitempty"`
	ImageSrc      string  `json:"imageSrc,omitempty"`
	NaturalWidth  float64 `json:"naturalWidth,omitempty"`
	NaturalHeight float64 `json:"naturalHeight,omitempty"`
	Scale         float64 `json:"scale,omitempty"`
	OffsetX       float64 `json:"offsetX,omitempty"`
	OffsetY       float64 `json:"offsetY,omitempty"`

	// group
	Children []Element `json:"children,omitempty"`
}

// Clone deep-copies the document. Renders substitute into a clone so a
// shared template document is never mutated.
func (d *SceneDocument) Clone() *SceneDocument {
	out := &SceneDocument{
		Width:           d.Width,
		Height:          d.Height,
		BackgroundColor: d.BackgroundColor,
	}
	if d.Elements != nil {
		out.Elements = cloneElements(d.Elements)
	}
	return out
}

func cloneElements(els []Element) []Element {
	out := make([]Element, len(els))
	for i, el := range els {
		out[i] = el
		if el.Binding != nil {
			b := *el.Binding
			out[i].Binding = &b
		}
		if el.Clip != nil {
			c := *el.Clip
			out[i].Clip = &c
		}
		if el.Shadow != nil {
			s := *el.Shadow
			out[i].Shadow = &s
		}
		if el.Children != nil {
			out[i].Children = cloneElements(el.Children)
		}
	}
	return out
}

var placeholderRe = regexp.MustCompile(`\{\{\s*([a-zA-Z_][a-zA-Z0-9_]*)\s*\}\}`)

// DetectPlaceholder returns the first {{name}} placeholder in a text
// content string, or "" if none is present.
func DetectPlaceholder(text string) string {
	m := placeholderRe.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return m[1]
}
