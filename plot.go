package invase

import (
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette/moreland"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/goml-jp/invase/pkg/errors"
)

// importanceGrid adapts an [instances × features] matrix to plotter.GridXYZ:
// features run along x, instances along y.
type importanceGrid struct {
	m *mat.Dense
}

func (g importanceGrid) Dims() (c, r int) {
	r, c = g.m.Dims()
	return c, r
}

func (g importanceGrid) Z(c, r int) float64 { return g.m.At(r, c) }
func (g importanceGrid) X(c int) float64    { return float64(c) }
func (g importanceGrid) Y(r int) float64    { return float64(r) }

// SaveHeatmap renders one horizon slice of an importance tensor as a heatmap
// image at path. The image format follows the path extension (png, pdf, svg
// and the other formats gonum/plot supports).
func SaveHeatmap(t *ImportanceTensor, horizon int, path string) error {
	slice, err := t.HorizonSlice(horizon)
	if err != nil {
		return err
	}

	pal := moreland.SmoothBlueRed().Palette(255)
	hm := plotter.NewHeatMap(importanceGrid{m: slice}, pal)

	p := plot.New()
	p.Title.Text = "Feature importance"
	p.X.Label.Text = "feature"
	p.Y.Label.Text = "instance"
	p.Add(hm)

	if err := p.Save(6*vg.Inch, 4*vg.Inch, path); err != nil {
		return errors.Wrap(err, "SaveHeatmap")
	}
	return nil
}
