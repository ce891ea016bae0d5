package render

import (
	"bytes"
	"testing"

	"github.com/neuroscan/neuroscan-go/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngMagic = []byte{0x89, 'P', 'N', 'G'}

func TestPNGRendererScoresAndRadar(t *testing.T) {
	r := NewPNGRenderer(480, 320)
	scores := []float64{0.05, 0.923, 0.02, 0.007}

	bars, err := r.RenderScoreChart(model.Labels, scores)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(bars.Bytes(), pngMagic))
	assert.Equal(t, "image/png", bars.ContentType())

	radar, err := r.RenderRadar(model.Labels, scores)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(radar.Bytes(), pngMagic))

	held := radar.Bytes()
	radar.Destroy()
	assert.Empty(t, radar.Bytes())
	assert.True(t, bytes.HasPrefix(held, pngMagic))
}

func TestPNGRendererRejectsDegenerateInput(t *testing.T) {
	r := NewPNGRenderer(480, 320)

	_, err := r.RenderScoreChart(model.Labels, nil)
	assert.Error(t, err)

	_, err = r.RenderRadar(model.Labels, []float64{0.5, 0.5})
	assert.Error(t, err)

	_, err = r.RenderTrainingCurves(model.TrainingHistory{Accuracy: []float64{0.5}})
	assert.Error(t, err)
}

func TestPNGRendererTrainingCurves(t *testing.T) {
	r := NewPNGRenderer(480, 320)
	visuals, err := r.RenderTrainingCurves(model.TrainingHistory{
		Accuracy:    []float64{0.55, 0.72, 0.86},
		ValAccuracy: []float64{0.50, 0.68, 0.80},
		Loss:        []float64{1.10, 0.70, 0.40},
		ValLoss:     []float64{1.20, 0.80, 0.55},
	})
	require.NoError(t, err)
	require.Len(t, visuals, 2)
	assert.Equal(t, "accuracy", visuals[0].Name())
	assert.Equal(t, "loss", visuals[1].Name())
	for _, v := range visuals {
		assert.True(t, bytes.HasPrefix(v.Bytes(), pngMagic))
	}
}
