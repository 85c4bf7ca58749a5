// Package chart renders the two-panel EWMAC chart of one instrument to PNG.
package chart

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"TrendSentinel/internal/model"
	"TrendSentinel/internal/series"
	"TrendSentinel/internal/strategy"
)

// Forecast levels drawn as reference lines on the forecast panel.
const (
	BuyThreshold  = 10.0
	SellThreshold = -10.0
)

var (
	colorFast = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	colorSlow = color.RGBA{R: 255, G: 127, B: 14, A: 255}
	colorFcst = color.RGBA{B: 255, A: 255}
	colorBuy  = color.RGBA{G: 128, A: 255}
	colorSell = color.RGBA{R: 255, A: 255}
	dashed    = []vg.Length{vg.Points(6), vg.Points(3)}
)

// Renderer writes one PNG per instrument into Dir. Each render holds a full
// raster of Width x Height at DPI (about 39 MB at 18x6 inches and 300 DPI),
// so renders are serialised whatever the worker count.
type Renderer struct {
	Dir    string
	DPI    int
	Width  vg.Length
	Height vg.Length

	mu sync.Mutex
}

// NewRenderer returns a renderer producing 18x6 inch images.
func NewRenderer(dir string, dpi int) *Renderer {
	if dpi <= 0 {
		dpi = 300
	}
	return &Renderer{Dir: dir, DPI: dpi, Width: 18 * vg.Inch, Height: 6 * vg.Inch}
}

// Filename returns the file name used for symbol.
func Filename(symbol string) string {
	safe := strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r == os.PathSeparator {
			return '_'
		}
		return r
	}, symbol)
	return fmt.Sprintf("EWMAC_%s.png", safe)
}

// Render draws prices and the pipeline result and returns the written path.
func (r *Renderer) Render(prices model.PriceSeries, res *strategy.Result) (string, error) {
	left, err := pricePanel(prices, res)
	if err != nil {
		return "", fmt.Errorf("price panel: %w", err)
	}
	right, err := forecastPanel(prices, res)
	if err != nil {
		return "", fmt.Errorf("forecast panel: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	img := vgimg.NewWith(vgimg.UseWH(r.Width, r.Height), vgimg.UseDPI(r.DPI))
	dc := draw.New(img)
	tiles := draw.Tiles{
		Rows:      1,
		Cols:      2,
		PadX:      vg.Millimeter * 8,
		PadTop:    vg.Millimeter * 2,
		PadBottom: vg.Millimeter * 2,
		PadLeft:   vg.Millimeter * 2,
		PadRight:  vg.Millimeter * 4,
	}
	plots := [][]*plot.Plot{{left, right}}
	canvases := plot.Align(plots, tiles, dc)
	left.Draw(canvases[0][0])
	right.Draw(canvases[0][1])

	if err := os.MkdirAll(r.Dir, 0o755); err != nil {
		return "", fmt.Errorf("create chart dir: %w", err)
	}
	path := filepath.Join(r.Dir, Filename(prices.Symbol))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create chart file: %w", err)
	}
	if _, err := (vgimg.PngCanvas{Canvas: img}).WriteTo(f); err != nil {
		f.Close()
		return "", fmt.Errorf("encode png: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close chart file: %w", err)
	}
	return path, nil
}

func newPanel(title, ylabel string, prices model.PriceSeries) *plot.Plot {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Date"
	p.Y.Label.Text = ylabel
	p.X.Tick.Marker = plot.TimeTicks{Format: "2006-01-02"}
	p.X.Min = float64(prices.Points[0].Time.Unix())
	p.X.Max = float64(prices.Last().Time.Unix())
	p.Legend.Top = true
	p.Legend.Left = true
	p.Add(plotter.NewGrid())
	return p
}

func pricePanel(prices model.PriceSeries, res *strategy.Result) (*plot.Plot, error) {
	p := newPanel(fmt.Sprintf("EWMAC Crossover\n%s", prices.Symbol), "Price", prices)

	layers := []struct {
		label  string
		xys    plotter.XYs
		color  color.Color
		dashes []vg.Length
	}{
		{"Price", points(res.Price), color.Black, nil},
		{fmt.Sprintf("Fast EWMA (%d)", res.Config.FastSpan), points(res.Fast), colorFast, dashed},
		{fmt.Sprintf("Slow EWMA (%d)", res.Config.SlowSpan), points(res.Slow), colorSlow, dashed},
	}
	for _, l := range layers {
		if len(l.xys) == 0 {
			continue
		}
		line, err := plotter.NewLine(l.xys)
		if err != nil {
			return nil, err
		}
		line.LineStyle.Color = l.color
		line.LineStyle.Dashes = l.dashes
		p.Add(line)
		p.Legend.Add(l.label, line)
	}
	return p, nil
}

func forecastPanel(prices model.PriceSeries, res *strategy.Result) (*plot.Plot, error) {
	p := newPanel("Capped EWMAC Forecast Signal", "Forecast Value", prices)
	cfg := res.Config
	pad := (cfg.CapMax - cfg.CapMin) * 0.05
	p.Y.Min = min(cfg.CapMin, SellThreshold) - pad
	p.Y.Max = max(cfg.CapMax, BuyThreshold) + pad

	if xys := points(res.Capped); len(xys) > 0 {
		line, err := plotter.NewLine(xys)
		if err != nil {
			return nil, err
		}
		line.LineStyle.Color = colorFcst
		p.Add(line)
		p.Legend.Add("Capped Forecast Signal", line)
	}

	buy := plotter.NewFunction(func(float64) float64 { return BuyThreshold })
	buy.LineStyle.Color = colorBuy
	buy.LineStyle.Dashes = dashed
	sell := plotter.NewFunction(func(float64) float64 { return SellThreshold })
	sell.LineStyle.Color = colorSell
	sell.LineStyle.Dashes = dashed
	p.Add(buy, sell)
	p.Legend.Add("Buy Threshold", buy)
	p.Legend.Add("Sell Threshold", sell)
	return p, nil
}

// points keeps the defined values of s; missing points are not drawn.
func points(s series.Series) plotter.XYs {
	xys := make(plotter.XYs, 0, s.Len())
	for i := 0; i < s.Len(); i++ {
		if y, ok := s.At(i).Get(); ok {
			xys = append(xys, plotter.XY{X: float64(s.Index[i].Unix()), Y: y})
		}
	}
	return xys
}
