package scene

import "github.com/bannerforge/api/internal/model"

// RescaleDocument returns a copy of the document resized to the new canvas
// dimensions, with every element's position and size scaled proportionally
// per axis. Font sizes, frame radii, and uniform scales follow the smaller
// axis factor so text and circular frames keep their aspect.
func RescaleDocument(doc *model.SceneDocument, newWidth, newHeight int) *model.SceneDocument {
	out := doc.Clone()
	if doc.Width <= 0 || doc.Height <= 0 || newWidth <= 0 || newHeight <= 0 {
		return out
	}

	sx := float64(newWidth) / float64(doc.Width)
	sy := float64(newHeight) / float64(doc.Height)
	su := sx
	if sy < sx {
		su = sy
	}

	out.Width = newWidth
	out.Height = newHeight
	rescaleElements(out.Elements, sx, sy, su)
	return out
}

func rescaleElements(els []model.Element, sx, sy, su float64) {
	for i := range els {
		el := &els[i]
		el.X *= sx
		el.Y *= sy
		el.Width *= sx
		el.Height *= sy

		if el.FontSize > 0 {
			el.FontSize *= su
		}
		if el.LetterSpacing != 0 {
			el.LetterSpacing *= su
		}
		if el.StrokeWidth > 0 {
			el.StrokeWidth *= su
		}
		if el.CornerRadius > 0 {
			el.CornerRadius *= su
		}
		if el.Radius > 0 {
			el.Radius *= su
		}
		if el.Kind == model.KindCircleFrame {
			if el.Scale > 0 {
				el.Scale *= su
			}
			el.OffsetX *= su
			el.OffsetY *= su
		}
		if el.Clip != nil {
			el.Clip.Radius *= su
			el.Clip.OffsetX *= su
			el.Clip.OffsetY *= su
		}
		if el.Shadow != nil {
			el.Shadow.Blur *= su
			el.Shadow.OffsetX *= su
			el.Shadow.OffsetY *= su
		}
		if len(el.Children) > 0 {
			rescaleElements(el.Children, sx, sy, su)
		}
	}
}
