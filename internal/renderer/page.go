package renderer

import (
	"fmt"
	"html"
	"html/template"
	"net/url"
	"sort"
	"strings"

	"github.com/bannerforge/api/internal/geometry"
	"github.com/bannerforge/api/internal/model"
)

// pageTemplate is the shell around the compiled element markup. The inline
// script is the readiness barrier: it waits for every declared font to
// finish loading, then applies copy-fitting to overflowing fixed-width text,
// and only then raises the flag the harness polls before capture.
var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
{{- range .FontLinks }}
<link rel="stylesheet" href="{{ . }}">
{{- end }}
<style>
* { margin: 0; padding: 0; box-sizing: border-box; }
html, body { width: {{ .Width }}px; height: {{ .Height }}px; overflow: hidden; }
body { background: {{ .Background }}; position: relative; }
.el { position: absolute; }
.el > .txt { display: inline-block; white-space: pre-wrap; }
</style>
</head>
<body>
{{ .Body }}
<script>
(async function () {
  try { await document.fonts.ready; } catch (e) {}
  document.querySelectorAll('[data-fit-width]').forEach(function (el) {
    var max = parseFloat(el.dataset.fitWidth);
    var span = el.querySelector('.txt');
    if (!span || !(max > 0)) return;
    var w = span.getBoundingClientRect().width;
    if (w > max) {
      var s = max / w;
      span.style.transformOrigin = el.dataset.fitOrigin || 'left top';
      span.style.transform = 'scale(' + s + ')';
    }
  });
  window.__renderReady = true;
})();
</script>
</body>
</html>
`))

type pageData struct {
	Width      int
	Height     int
	Background string
	FontLinks  []string
	Body       template.HTML
}

// BuildPage compiles a scene document into a self-contained HTML page.
// Substitution is expected to have happened already (the document passed in
// is a per-render clone).
func BuildPage(doc *model.SceneDocument) (string, error) {
	if doc.Width <= 0 || doc.Height <= 0 {
		return "", fmt.Errorf("invalid document dimensions %dx%d", doc.Width, doc.Height)
	}

	bg := doc.BackgroundColor
	if bg == "" {
		bg = "#ffffff"
	}

	var body strings.Builder
	for i := range doc.Elements {
		writeElement(&body, &doc.Elements[i])
	}

	var out strings.Builder
	err := pageTemplate.Execute(&out, pageData{
		Width:      doc.Width,
		Height:     doc.Height,
		Background: safeColor(bg),
		FontLinks:  fontLinks(doc),
		Body:       template.HTML(body.String()),
	})
	if err != nil {
		return "", fmt.Errorf("failed to execute page template: %w", err)
	}
	return out.String(), nil
}

func writeElement(b *strings.Builder, el *model.Element) {
	switch el.Kind {
	case model.KindText:
		writeText(b, el)
	case model.KindRect:
		writeRect(b, el)
	case model.KindEllipse:
		writeEllipse(b, el)
	case model.KindImage:
		writeImage(b, el)
	case model.KindSVG:
		writeSVG(b, el)
	case model.KindCircleFrame:
		writeCircleFrame(b, el)
	case model.KindGroup:
		writeGroup(b, el)
	}
}

// baseStyle emits the placement properties shared by every element kind.
func baseStyle(el *model.Element) string {
	var s strings.Builder
	fmt.Fprintf(&s, "left:%gpx;top:%gpx;width:%gpx;height:%gpx;", el.X, el.Y, el.Width, el.Height)
	opacity := el.Opacity
	if opacity <= 0 || opacity > 1 {
		opacity = 1
	}
	if opacity != 1 {
		fmt.Fprintf(&s, "opacity:%g;", opacity)
	}
	if el.Rotation != 0 {
		fmt.Fprintf(&s, "transform:rotate(%gdeg);transform-origin:center center;", el.Rotation)
	}
	return s.String()
}

func writeText(b *strings.Builder, el *model.Element) {
	style := baseStyle(el)
	var s strings.Builder
	s.WriteString(style)
	if el.FontFamily != "" {
		fmt.Fprintf(&s, "font-family:'%s',sans-serif;", safeColor(el.FontFamily))
	}
	if el.FontSize > 0 {
		fmt.Fprintf(&s, "font-size:%gpx;", el.FontSize)
	}
	if el.FontWeight != "" {
		fmt.Fprintf(&s, "font-weight:%s;", safeToken(el.FontWeight))
	}
	if el.FontStyle != "" {
		fmt.Fprintf(&s, "font-style:%s;", safeToken(el.FontStyle))
	}
	if el.Fill != "" {
		fmt.Fprintf(&s, "color:%s;", safeColor(el.Fill))
	}
	if el.Align != "" {
		fmt.Fprintf(&s, "text-align:%s;", safeToken(string(el.Align)))
	}
	if el.LetterSpacing != 0 {
		fmt.Fprintf(&s, "letter-spacing:%gpx;", el.LetterSpacing)
	}
	if el.LineHeight > 0 {
		fmt.Fprintf(&s, "line-height:%g;", el.LineHeight)
	}
	if el.Stroke != "" && el.StrokeWidth > 0 {
		fmt.Fprintf(&s, "-webkit-text-stroke:%gpx %s;", el.StrokeWidth, safeColor(el.Stroke))
	}
	if el.Shadow != nil {
		fmt.Fprintf(&s, "text-shadow:%gpx %gpx %gpx %s;",
			el.Shadow.OffsetX, el.Shadow.OffsetY, el.Shadow.Blur, safeColor(el.Shadow.Color))
	}
	if el.BackgroundFill != "" {
		fmt.Fprintf(&s, "background:%s;", safeColor(el.BackgroundFill))
	}

	// Copy-fit contract: the authored width is a hard bound. Overflow is
	// resolved by uniform shrink of the inner span, re-centered when the
	// element is center-aligned.
	fit := ""
	if el.Width > 0 {
		origin := "left top"
		if el.Align == model.AlignCenter {
			origin = "center top"
		}
		fit = fmt.Sprintf(` data-fit-width="%g" data-fit-origin="%s"`, el.Width, origin)
	}

	fmt.Fprintf(b, `<div class="el" style="%s"%s><span class="txt">%s</span></div>`,
		s.String(), fit, html.EscapeString(el.Text))
	b.WriteString("\n")
}

func writeRect(b *strings.Builder, el *model.Element) {
	var s strings.Builder
	s.WriteString(baseStyle(el))
	if el.Fill != "" {
		fmt.Fprintf(&s, "background:%s;", safeColor(el.Fill))
	}
	if el.Stroke != "" && el.StrokeWidth > 0 {
		fmt.Fprintf(&s, "border:%gpx solid %s;", el.StrokeWidth, safeColor(el.Stroke))
	}
	if el.CornerRadius > 0 {
		fmt.Fprintf(&s, "border-radius:%gpx;", el.CornerRadius)
	}
	fmt.Fprintf(b, `<div class="el" style="%s"></div>`, s.String())
	b.WriteString("\n")
}

func writeEllipse(b *strings.Builder, el *model.Element) {
	var s strings.Builder
	s.WriteString(baseStyle(el))
	s.WriteString("border-radius:50%;")
	if el.Fill != "" {
		fmt.Fprintf(&s, "background:%s;", safeColor(el.Fill))
	}
	if el.Stroke != "" && el.StrokeWidth > 0 {
		fmt.Fprintf(&s, "border:%gpx solid %s;", el.StrokeWidth, safeColor(el.Stroke))
	}
	fmt.Fprintf(b, `<div class="el" style="%s"></div>`, s.String())
	b.WriteString("\n")
}

func writeImage(b *strings.Builder, el *model.Element) {
	var s strings.Builder
	s.WriteString(baseStyle(el))
	s.WriteString("overflow:hidden;")
	if el.Clip != nil && el.Clip.Shape == "circle" {
		// Clip regions are stored center-relative; the window moves opposite
		// the image pan.
		cx, cy := geometry.ClipOffset(el.Clip.OffsetX, el.Clip.OffsetY)
		fmt.Fprintf(&s, "clip-path:circle(%gpx at calc(50%% + %gpx) calc(50%% + %gpx));",
			el.Clip.Radius, cx, cy)
	}
	fmt.Fprintf(b, `<div class="el" style="%s"><img src="%s" style="width:100%%;height:100%%;object-fit:cover;" alt=""></div>`,
		s.String(), html.EscapeString(el.Src))
	b.WriteString("\n")
}

func writeSVG(b *strings.Builder, el *model.Element) {
	var s strings.Builder
	s.WriteString(baseStyle(el))
	if el.Fill != "" {
		fmt.Fprintf(&s, "color:%s;", safeColor(el.Fill))
	}
	if strings.HasPrefix(strings.TrimSpace(el.Src), "<svg") {
		// Inline icon markup produced by the editor's icon picker.
		fmt.Fprintf(b, `<div class="el" style="%s">%s</div>`, s.String(), el.Src)
	} else {
		fmt.Fprintf(b, `<div class="el" style="%s"><img src="%s" style="width:100%%;height:100%%;" alt=""></div>`,
			s.String(), html.EscapeString(el.Src))
	}
	b.WriteString("\n")
}

func writeCircleFrame(b *strings.Builder, el *model.Element) {
	d := el.Width
	if d <= 0 {
		d = el.Radius * 2
	}

	var s strings.Builder
	fmt.Fprintf(&s, "left:%gpx;top:%gpx;width:%gpx;height:%gpx;", el.X, el.Y, d, d)
	s.WriteString("border-radius:50%;overflow:hidden;")
	if el.Rotation != 0 {
		fmt.Fprintf(&s, "transform:rotate(%gdeg);transform-origin:center center;", el.Rotation)
	}
	if el.Opacity > 0 && el.Opacity < 1 {
		fmt.Fprintf(&s, "opacity:%g;", el.Opacity)
	}

	if !el.HasImage || el.ImageSrc == "" || el.NaturalWidth <= 0 || el.NaturalHeight <= 0 {
		s.WriteString("background:#e0e0e0;")
		fmt.Fprintf(b, `<div class="el" style="%s"></div>`, s.String())
		b.WriteString("\n")
		return
	}

	// The held image is placed in a coordinate space centered on the frame;
	// its scale can never drop below the cover scale or the frame
	// background would show through.
	scale := geometry.ClampToCover(el.Scale, d, el.NaturalWidth, el.NaturalHeight)
	imgW := el.NaturalWidth * scale
	imgH := el.NaturalHeight * scale
	left := d/2 + el.OffsetX - imgW/2
	top := d/2 + el.OffsetY - imgH/2

	fmt.Fprintf(b, `<div class="el" style="%s"><img src="%s" style="position:absolute;left:%gpx;top:%gpx;width:%gpx;height:%gpx;" alt=""></div>`,
		s.String(), html.EscapeString(el.ImageSrc), left, top, imgW, imgH)
	b.WriteString("\n")
}

func writeGroup(b *strings.Builder, el *model.Element) {
	fmt.Fprintf(b, `<div class="el" style="%s">`, baseStyle(el))
	b.WriteString("\n")
	for i := range el.Children {
		writeElement(b, &el.Children[i])
	}
	b.WriteString("</div>\n")
}

// fontLinks collects the distinct font families referenced by text elements
// and produces Google Fonts stylesheet URLs with display=block, so the page
// never paints with fallback metrics before the readiness barrier.
func fontLinks(doc *model.SceneDocument) []string {
	families := make(map[string]bool)
	var collect func(els []model.Element)
	collect = func(els []model.Element) {
		for i := range els {
			if els[i].Kind == model.KindText && els[i].FontFamily != "" {
				families[els[i].FontFamily] = true
			}
			if len(els[i].Children) > 0 {
				collect(els[i].Children)
			}
		}
	}
	collect(doc.Elements)

	names := make([]string, 0, len(families))
	for f := range families {
		names = append(names, f)
	}
	sort.Strings(names)

	links := make([]string, 0, len(names))
	for _, f := range names {
		q := url.QueryEscape(f)
		links = append(links,
			fmt.Sprintf("https://fonts.googleapis.com/css2?family=%s:ital,wght@0,400;0,700;1,400&display=block", q))
	}
	return links
}

// safeColor passes through CSS color values while stripping characters that
// could break out of a style attribute.
func safeColor(v string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '"', '\'', ';', '<', '>', '{', '}':
			return -1
		}
		return r
	}, v)
}

// safeToken keeps single CSS keywords (font weights, alignments) clean.
func safeToken(v string) string {
	return strings.Map(func(r rune) rune {
		if r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '-' {
			return r
		}
		return -1
	}, v)
}
