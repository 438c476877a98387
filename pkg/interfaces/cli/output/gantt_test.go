package output

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vsinha/shopfloor/pkg/domain/entities"
)

func TestGanttChart_ProjectsCohorts(t *testing.T) {
	started := generated.Add(-2 * time.Hour)
	done := generated.Add(-time.Hour)
	steps := []entities.Step{
		{ID: "D", OrderIndex: 3, ProcessName: "pack", Status: entities.StepPending, EstimatedDuration: 30},
		{ID: "A", OrderIndex: 1, ProcessName: "print", Status: entities.StepCompleted, StartedAt: &started, CompletedAt: &done},
		{ID: "B", OrderIndex: 2, ProcessName: "laminate", Status: entities.StepReady, EstimatedDuration: 60},
		{ID: "C", OrderIndex: 2, ProcessName: "cut", Status: entities.StepReady, EstimatedDuration: 120},
		{ID: "X", OrderIndex: 2, ProcessName: "varnish", Status: entities.StepCanceled},
	}

	gc := NewGanttChart("JOB-001", steps, generated)
	require.Len(t, gc.Bars, 4)
	assert.Equal(t, []string{"A", "B", "C", "D"}, []string{gc.Bars[0].Step.ID, gc.Bars[1].Step.ID, gc.Bars[2].Step.ID, gc.Bars[3].Step.ID})

	assert.Equal(t, started, gc.Bars[0].Start)
	assert.False(t, gc.Bars[0].Projected)
	// the second cohort is projected from the end of the first
	assert.Equal(t, done, gc.Bars[1].Start)
	assert.Equal(t, done, gc.Bars[2].Start)
	// the third waits for the slowest step of the second
	assert.Equal(t, done.Add(2*time.Hour), gc.Bars[3].Start)
	assert.True(t, gc.Bars[3].Projected)
	assert.Greater(t, gc.Bars[2].Width, gc.Bars[1].Width)
}

func TestRenderGantt(t *testing.T) {
	var buf bytes.Buffer
	steps := []entities.Step{{ID: "A", OrderIndex: 1, ProcessName: "print & fold", Status: entities.StepInProgress}}
	started := generated.Add(-time.Hour)
	steps[0].StartedAt = &started

	require.NoError(t, RenderGantt("Job <1>", steps, generated, &buf))
	svg := buf.String()
	assert.True(t, strings.HasPrefix(svg, "<svg"))
	assert.Contains(t, svg, "Job &lt;1&gt;")
	assert.Contains(t, svg, "1. print &amp; fold")
	assert.Contains(t, svg, statusColor(entities.StepInProgress))

	buf.Reset()
	require.NoError(t, RenderGantt("empty", nil, generated, &buf))
	assert.Contains(t, buf.String(), "No steps planned")
}
