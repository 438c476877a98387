package output

import (
	"fmt"
	"html"
	"io"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/vsinha/shopfloor/pkg/domain/entities"
)

// minBar is the length given to steps without a duration estimate
const minBar = 15 * time.Minute

// GanttChart lays a job's steps out on a time axis. Started and completed
// steps use their recorded times; the rest are projected cohort by cohort
// from their estimated durations.
type GanttChart struct {
	Width        int
	Height       int
	MarginLeft   int
	MarginTop    int
	MarginRight  int
	MarginBottom int
	RowHeight    int
	StartTime    time.Time
	EndTime      time.Time
	Title        string
	Bars         []GanttBar
}

// GanttBar is one step on the chart
type GanttBar struct {
	Step      entities.Step
	Start     time.Time
	End       time.Time
	Projected bool
	X         int
	Width     int
	Color     string
}

// NewGanttChart builds the chart for steps as of now
func NewGanttChart(title string, steps []entities.Step, now time.Time) *GanttChart {
	gc := &GanttChart{
		Width:        1200,
		MarginLeft:   220,
		MarginTop:    60,
		MarginRight:  60,
		MarginBottom: 60,
		RowHeight:    30,
		Title:        title,
	}

	ordered := make([]entities.Step, 0, len(steps))
	for _, s := range steps {
		if s.Status != entities.StepCanceled {
			ordered = append(ordered, s)
		}
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].OrderIndex != ordered[j].OrderIndex {
			return ordered[i].OrderIndex < ordered[j].OrderIndex
		}
		return ordered[i].ID < ordered[j].ID
	})
	gc.Height = len(ordered)*gc.RowHeight + gc.MarginTop + gc.MarginBottom + 30
	if len(ordered) == 0 {
		return gc
	}

	cursor := now
	for _, s := range ordered {
		if s.StartedAt != nil && s.StartedAt.Before(cursor) {
			cursor = *s.StartedAt
		}
	}

	for i := 0; i < len(ordered); {
		j := i
		cohortEnd := cursor
		for ; j < len(ordered) && ordered[j].OrderIndex == ordered[i].OrderIndex; j++ {
			bar := projectBar(ordered[j], cursor, now)
			if bar.End.After(cohortEnd) {
				cohortEnd = bar.End
			}
			gc.Bars = append(gc.Bars, bar)
		}
		cursor = cohortEnd
		i = j
	}

	gc.StartTime, gc.EndTime = gc.Bars[0].Start, gc.Bars[0].End
	for _, b := range gc.Bars {
		if b.Start.Before(gc.StartTime) {
			gc.StartTime = b.Start
		}
		if b.End.After(gc.EndTime) {
			gc.EndTime = b.End
		}
	}
	if !gc.EndTime.After(gc.StartTime) {
		gc.EndTime = gc.StartTime.Add(minBar)
	}
	padding := gc.EndTime.Sub(gc.StartTime) / 20
	gc.StartTime = gc.StartTime.Add(-padding)
	gc.EndTime = gc.EndTime.Add(padding)

	chartWidth := gc.Width - gc.MarginLeft - gc.MarginRight
	total := float64(gc.EndTime.Sub(gc.StartTime))
	for i := range gc.Bars {
		b := &gc.Bars[i]
		b.X = gc.MarginLeft + int(float64(b.Start.Sub(gc.StartTime))/total*float64(chartWidth))
		b.Width = int(float64(b.End.Sub(b.Start)) / total * float64(chartWidth))
		if b.Width < 2 {
			b.Width = 2
		}
	}
	return gc
}

func projectBar(s entities.Step, cohortStart, now time.Time) GanttBar {
	estimate := time.Duration(s.EstimatedDuration) * time.Minute
	if estimate <= 0 {
		estimate = minBar
	}
	bar := GanttBar{Step: s, Start: cohortStart, Color: statusColor(s.Status)}
	switch {
	case s.StartedAt != nil && s.CompletedAt != nil:
		bar.Start, bar.End = *s.StartedAt, *s.CompletedAt
	case s.StartedAt != nil:
		bar.Start = *s.StartedAt
		bar.End = bar.Start.Add(estimate)
		if now.After(bar.End) {
			bar.End = now
		}
	default:
		bar.End = bar.Start.Add(estimate)
		bar.Projected = true
	}
	return bar
}

// RenderGantt writes the steps of a job as an SVG timeline
func RenderGantt(title string, steps []entities.Step, now time.Time, w io.Writer) error {
	svg := NewGanttChart(title, steps, now).GenerateSVG()
	if _, err := io.WriteString(w, svg); err != nil {
		return errors.Wrap(err, "write SVG")
	}
	return nil
}

// GenerateSVG creates an SVG representation of the chart
func (gc *GanttChart) GenerateSVG() string {
	if len(gc.Bars) == 0 {
		return gc.generateEmptyChart()
	}

	var svg strings.Builder
	fmt.Fprintf(&svg, `<svg width="%d" height="%d" xmlns="http://www.w3.org/2000/svg">`, gc.Width, gc.Height)
	svg.WriteString(`<defs><style>`)
	svg.WriteString(`.step-label { font-family: Arial, sans-serif; font-size: 12px; fill: #333; }`)
	svg.WriteString(`.time-label { font-family: Arial, sans-serif; font-size: 10px; fill: #666; }`)
	svg.WriteString(`.title { font-family: Arial, sans-serif; font-size: 16px; font-weight: bold; fill: #333; }`)
	svg.WriteString(`.grid-line { stroke: #e0e0e0; stroke-width: 1; }`)
	svg.WriteString(`.step-bar { stroke: #333; stroke-width: 1; }`)
	svg.WriteString(`.projected { fill-opacity: 0.45; stroke-dasharray: 4 2; }`)
	svg.WriteString(`</style></defs>`)
	fmt.Fprintf(&svg, `<rect width="%d" height="%d" fill="white"/>`, gc.Width, gc.Height)
	fmt.Fprintf(&svg, `<text x="%d" y="30" class="title" text-anchor="middle">%s</text>`, gc.Width/2, html.EscapeString(gc.Title))

	gc.drawTimeAxis(&svg)
	for i, bar := range gc.Bars {
		gc.drawRow(&svg, bar, gc.MarginTop+i*gc.RowHeight)
	}
	gc.drawLegend(&svg)

	svg.WriteString(`</svg>`)
	return svg.String()
}

// axisInterval picks hourly, daily or weekly ticks
func (gc *GanttChart) axisInterval() (time.Duration, string) {
	hours := math.Ceil(gc.EndTime.Sub(gc.StartTime).Hours())
	switch {
	case hours <= 36:
		return time.Hour, "15:04"
	case hours <= 24*45:
		return 24 * time.Hour, "Jan 2"
	default:
		return 7 * 24 * time.Hour, "Jan 2"
	}
}

func (gc *GanttChart) drawTimeAxis(svg *strings.Builder) {
	chartWidth := gc.Width - gc.MarginLeft - gc.MarginRight
	total := float64(gc.EndTime.Sub(gc.StartTime))
	gridBottom := gc.MarginTop + len(gc.Bars)*gc.RowHeight
	interval, layout := gc.axisInterval()

	for t := gc.StartTime.Truncate(interval); t.Before(gc.EndTime); t = t.Add(interval) {
		x := gc.MarginLeft + int(float64(t.Sub(gc.StartTime))/total*float64(chartWidth))
		if x < gc.MarginLeft || x > gc.Width-gc.MarginRight {
			continue
		}
		fmt.Fprintf(svg, `<line x1="%d" y1="%d" x2="%d" y2="%d" class="grid-line"/>`, x, gc.MarginTop, x, gridBottom)
		fmt.Fprintf(svg, `<text x="%d" y="%d" class="time-label" text-anchor="middle">%s</text>`,
			x, gridBottom+15, t.Format(layout))
	}
	fmt.Fprintf(svg, `<line x1="%d" y1="%d" x2="%d" y2="%d" class="grid-line"/>`,
		gc.MarginLeft, gridBottom, gc.Width-gc.MarginRight, gridBottom)
}

func (gc *GanttChart) drawRow(svg *strings.Builder, bar GanttBar, y int) {
	s := bar.Step
	label := fmt.Sprintf("%d. %s", s.OrderIndex, dashIfEmpty(s.ProcessName))
	fmt.Fprintf(svg, `<text x="%d" y="%d" class="step-label" text-anchor="end">%s</text>`,
		gc.MarginLeft-15, y+gc.RowHeight/2+4, html.EscapeString(truncate(label, 30)))
	fmt.Fprintf(svg, `<line x1="%d" y1="%d" x2="%d" y2="%d" class="grid-line"/>`,
		gc.MarginLeft, y+gc.RowHeight, gc.Width-gc.MarginRight, y+gc.RowHeight)

	class := "step-bar"
	if bar.Projected {
		class += " projected"
	}
	fmt.Fprintf(svg, `<rect x="%d" y="%d" width="%d" height="%d" fill="%s" class="%s">`,
		bar.X, y+3, bar.Width, gc.RowHeight-6, bar.Color, class)
	fmt.Fprintf(svg, `<title>%s</title></rect>`, html.EscapeString(fmt.Sprintf("%s %s: %s, %s to %s",
		s.ID, s.ProcessName, s.Status, bar.Start.Format("2006-01-02 15:04"), bar.End.Format("2006-01-02 15:04"))))
}

func (gc *GanttChart) drawLegend(svg *strings.Builder) {
	legendX := gc.Width - gc.MarginRight - 160
	items := []entities.StepStatus{
		entities.StepCompleted, entities.StepInProgress, entities.StepBlocked, entities.StepReady, entities.StepPending,
	}
	for i, status := range items {
		itemY := 12 + i*12
		fmt.Fprintf(svg, `<rect x="%d" y="%d" width="12" height="8" fill="%s"/>`, legendX, itemY, statusColor(status))
		fmt.Fprintf(svg, `<text x="%d" y="%d" class="time-label">%s</text>`, legendX+18, itemY+8, status)
	}
}

func statusColor(status entities.StepStatus) string {
	switch status {
	case entities.StepCompleted:
		return "#4CAF50"
	case entities.StepInProgress:
		return "#2196F3"
	case entities.StepBlocked:
		return "#F44336"
	case entities.StepReady:
		return "#FF9800"
	default:
		return "#9E9E9E"
	}
}

func dashIfEmpty(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

func (gc *GanttChart) generateEmptyChart() string {
	return fmt.Sprintf(`<svg width="%d" height="%d" xmlns="http://www.w3.org/2000/svg">
	<rect width="%d" height="%d" fill="white"/>
	<text x="%d" y="%d" class="title" text-anchor="middle">No steps planned</text>
	<style>.title { font-family: Arial, sans-serif; font-size: 16px; fill: #666; }</style>
</svg>`, gc.Width, gc.Height, gc.Width, gc.Height, gc.Width/2, gc.Height/2)
}
