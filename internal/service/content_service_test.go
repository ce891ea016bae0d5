package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/neuroscan/neuroscan-go/internal/cache"
	"github.com/neuroscan/neuroscan-go/internal/client"
	"github.com/neuroscan/neuroscan-go/internal/model"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeContentBackend struct {
	mu    sync.Mutex
	calls map[string]int
	fail  bool
}

func (f *fakeContentBackend) hit(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = map[string]int{}
	}
	f.calls[name]++
}

func (f *fakeContentBackend) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeContentBackend) Stats(ctx context.Context) (*model.TrainingStats, error) {
	f.hit("stats")
	if f.fail {
		return nil, &client.APIError{Path: "/stats", StatusCode: 404, Detail: "Training history not found"}
	}
	return &model.TrainingStats{
		History: model.TrainingHistory{Accuracy: []float64{0.5, 0.9}, ValAccuracy: []float64{0.4, 0.8}, Loss: []float64{1, 0.2}, ValLoss: []float64{1.1, 0.3}},
		Summary: model.TrainingSummary{Epochs: 2},
	}, nil
}

func (f *fakeContentBackend) ModelInfo(ctx context.Context) (*model.ModelInfo, error) {
	f.hit("model-info")
	return &model.ModelInfo{Name: "BrainTumorCNN", Params: "1,234,567", Layers: []model.LayerInfo{{Type: "Conv2D", OutputShape: "(None, 148, 148, 32)"}}}, nil
}

func (f *fakeContentBackend) EducationalContent(ctx context.Context) (*model.EducationalContent, error) {
	f.hit("educational-content")
	return &model.EducationalContent{
		TumorTypes: map[string]model.TumorInfo{"glioma": {Name: "Glioma Tumour"}},
		FAQs:       []model.FAQ{{Question: "Q?", Answer: "A."}},
	}, nil
}

func TestContentServiceCachesInMemory(t *testing.T) {
	backend := &fakeContentBackend{}
	svc := NewContentService(backend, cache.NewMemoryCache(), time.Minute, zap.NewNop())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		stats, err := svc.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, stats.Summary.Epochs)
	}
	assert.Equal(t, 1, backend.count("stats"))

	info, err := svc.ModelInfo(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.FlexString("(None, 148, 148, 32)"), info.Layers[0].OutputShape)

	svc.Invalidate(ctx)
	_, err = svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, backend.count("stats"))
}

func TestContentServiceWithRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	rc := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rc.Close() })

	backend := &fakeContentBackend{}
	svc := NewContentService(backend, cache.NewRedisCache(rc, "neuroscan:content:"), time.Minute, zap.NewNop())
	ctx := context.Background()

	edu, err := svc.EducationalContent(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Glioma Tumour", edu.TumorTypes["glioma"].Name)
	assert.True(t, mr.Exists("neuroscan:content:educational-content"))

	_, err = svc.EducationalContent(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, backend.count("educational-content"))

	mr.FastForward(2 * time.Minute)
	_, err = svc.EducationalContent(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, backend.count("educational-content"))
}

func TestContentServiceErrorsAreNotCached(t *testing.T) {
	backend := &fakeContentBackend{fail: true}
	svc := NewContentService(backend, cache.NewMemoryCache(), time.Minute, zap.NewNop())
	ctx := context.Background()

	_, err := svc.Stats(ctx)
	require.Error(t, err)
	assert.Equal(t, "Training history not found", client.UserMessage(err, "x"))

	backend.fail = false
	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Len(t, stats.History.Accuracy, 2)
}
