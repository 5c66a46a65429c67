package training

import (
	"image/color"

	"github.com/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// History collects epoch results for plotting.
type History struct {
	Epochs []EpochResult
}

// Add appends one epoch.
func (h *History) Add(r EpochResult) {
	h.Epochs = append(h.Epochs, r)
}

func (h *History) series(metric func(Metrics) float64) (train, valid plotter.XYs) {
	for _, e := range h.Epochs {
		x := float64(e.Epoch)
		train = append(train, plotter.XY{X: x, Y: metric(e.Train)})
		if e.Valid != nil {
			valid = append(valid, plotter.XY{X: x, Y: metric(*e.Valid)})
		}
	}
	return train, valid
}

// SaveLossPlot renders train and validation loss per epoch to outPath.
// The image format follows the file extension (.png, .svg, .pdf).
func (h *History) SaveLossPlot(outPath string) error {
	train, valid := h.series(func(m Metrics) float64 { return m.Loss })
	return savePlot(outPath, "Loss", train, valid)
}

// SaveAccuracyPlot renders train and validation accuracy per epoch.
func (h *History) SaveAccuracyPlot(outPath string) error {
	train, valid := h.series(func(m Metrics) float64 { return m.Accuracy })
	return savePlot(outPath, "Accuracy (%)", train, valid)
}

func savePlot(outPath, yLabel string, train, valid plotter.XYs) error {
	if len(train) == 0 {
		return errors.New("no epochs to plot")
	}
	p := plot.New()
	p.Title.Text = yLabel + " per epoch"
	p.X.Label.Text = "epoch"
	p.Y.Label.Text = yLabel

	tl, err := plotter.NewLine(train)
	if err != nil {
		return errors.Wrap(err, "train line")
	}
	tl.Color = color.RGBA{R: 20, G: 80, B: 200, A: 255}
	tl.Width = vg.Points(1.2)
	p.Add(tl)
	p.Legend.Add("train", tl)

	if len(valid) > 0 {
		vl, err := plotter.NewLine(valid)
		if err != nil {
			return errors.Wrap(err, "valid line")
		}
		vl.Color = color.RGBA{R: 200, G: 30, B: 30, A: 255}
		vl.Width = vg.Points(1.2)
		vl.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
		p.Add(vl)
		p.Legend.Add("valid", vl)
	}
	p.Add(plotter.NewGrid())

	if err := p.Save(6*vg.Inch, 4*vg.Inch, outPath); err != nil {
		return errors.Wrapf(err, "failed to save plot %s", outPath)
	}
	return nil
}
