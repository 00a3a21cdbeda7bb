package announce

import (
	"bytes"
	"fmt"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

const (
	cardWidth  = 800
	cardHeight = 400
	CardFile   = "result.png"
)

var (
	cardBackground = drawing.ColorFromHex("2b2d31")
	cardText       = drawing.ColorFromHex("f2f3f5")
	cardWin        = drawing.ColorFromHex("3ba55c")
	cardLose       = drawing.ColorFromHex("ed4245")
)

type CardEntry struct {
	Label     string
	EloChange int
	Won       bool
}

// Card is the data drawn on a result image.
type Card struct {
	GameID     int64
	ServerName string
	InviteLink string
	Entries    []CardEntry
}

func (c Card) title() string {
	title := fmt.Sprintf("Game #%d", c.GameID)
	if c.ServerName != "" {
		title = c.ServerName + " | " + title
	}
	return title
}

// RenderResultCard draws one bar per participant with their ELO change. A card
// with no rating movement (casual games) renders the roster as text instead.
func RenderResultCard(c Card) ([]byte, error) {
	lo, hi := 0, 0
	for _, e := range c.Entries {
		lo = min(lo, e.EloChange)
		hi = max(hi, e.EloChange)
	}
	if lo == hi {
		return renderTextCard(c)
	}

	bars := make([]chart.Value, 0, len(c.Entries))
	for _, e := range c.Entries {
		fill := cardLose
		if e.Won {
			fill = cardWin
		}
		bars = append(bars, chart.Value{
			Label: fmt.Sprintf("%s (%+d)", e.Label, e.EloChange),
			Value: float64(e.EloChange),
			Style: chart.Style{FillColor: fill, StrokeColor: fill},
		})
	}

	pad := float64(hi-lo) * 0.1
	graph := chart.BarChart{
		Title:      c.title(),
		TitleStyle: chart.Style{FontColor: cardText},
		Width:      cardWidth,
		Height:     cardHeight,
		BarWidth:   max(20, (cardWidth-100)/max(1, len(bars))-10),
		Background: chart.Style{
			FillColor: cardBackground,
			Padding:   chart.Box{Top: 50, Left: 20, Right: 20, Bottom: 20},
		},
		Canvas:       chart.Style{FillColor: cardBackground},
		UseBaseValue: true,
		BaseValue:    0,
		XAxis:        chart.Style{FontColor: cardText, FontSize: 8},
		YAxis: chart.YAxis{
			Style: chart.Style{FontColor: cardText},
			Range: &chart.ContinuousRange{Min: float64(lo) - pad, Max: float64(hi) + pad},
		},
		Bars: bars,
	}
	if c.InviteLink != "" {
		graph.Elements = append(graph.Elements, footer(c.InviteLink))
	}

	buffer := bytes.NewBuffer([]byte{})
	if err := graph.Render(chart.PNG, buffer); err != nil {
		return nil, fmt.Errorf("failed to render result card: %w", err)
	}
	return buffer.Bytes(), nil
}

// renderTextCard draws straight onto a renderer: a chart without series
// refuses to render.
func renderTextCard(c Card) ([]byte, error) {
	lines := []string{c.title()}
	for _, e := range c.Entries {
		outcome := "lost"
		if e.Won {
			outcome = "won"
		}
		lines = append(lines, fmt.Sprintf("%s %s", e.Label, outcome))
	}
	height := max(cardHeight/2, 60+24*len(lines))

	r, err := chart.PNG(cardWidth, height)
	if err != nil {
		return nil, fmt.Errorf("failed to create renderer: %w", err)
	}
	font, err := chart.GetDefaultFont()
	if err != nil {
		return nil, fmt.Errorf("failed to load font: %w", err)
	}
	r.SetFont(font)

	box := chart.Box{Top: 0, Left: 0, Right: cardWidth, Bottom: height}
	chart.Draw.Box(r, box, chart.Style{FillColor: cardBackground, StrokeColor: cardBackground})

	r.SetFontColor(cardText)
	r.SetFontSize(14.0)
	y := 40
	for _, line := range lines {
		tb := r.MeasureText(line)
		r.Text(line, (box.Width()-tb.Width())/2, y)
		y += 24
	}
	if c.InviteLink != "" {
		footer(c.InviteLink)(r, box, chart.Style{})
	}

	buffer := bytes.NewBuffer([]byte{})
	if err := r.Save(buffer); err != nil {
		return nil, fmt.Errorf("failed to render result card: %w", err)
	}
	return buffer.Bytes(), nil
}

func footer(text string) chart.Renderable {
	return func(r chart.Renderer, cb chart.Box, _ chart.Style) {
		r.SetFontColor(cardText)
		r.SetFontSize(9.0)
		tb := r.MeasureText(text)
		r.Text(text, cb.Width()-tb.Width()-10, cb.Height()-8)
	}
}
