package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/neuroscan/neuroscan-go/internal/cache"
	"github.com/neuroscan/neuroscan-go/internal/model"
	"go.uber.org/zap"
)

const (
	keyStats       = "stats"
	keyModelInfo   = "model-info"
	keyEducational = "educational-content"
)

// ContentBackend 只读内容接口
type ContentBackend interface {
	Stats(ctx context.Context) (*model.TrainingStats, error)
	ModelInfo(ctx context.Context) (*model.ModelInfo, error)
	EducationalContent(ctx context.Context) (*model.EducationalContent, error)
}

// ContentService 训练历史、模型信息和科普内容，带缓存
type ContentService struct {
	backend ContentBackend
	cache   cache.Cache
	ttl     time.Duration
	logger  *zap.Logger
}

// NewContentService 创建内容服务
func NewContentService(backend ContentBackend, c cache.Cache, ttl time.Duration, logger *zap.Logger) *ContentService {
	return &ContentService{backend: backend, cache: c, ttl: ttl, logger: logger}
}

// Stats 训练历史
func (s *ContentService) Stats(ctx context.Context) (*model.TrainingStats, error) {
	var out model.TrainingStats
	err := s.cached(ctx, keyStats, &out, func() (interface{}, error) {
		return s.backend.Stats(ctx)
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// ModelInfo 模型结构信息
func (s *ContentService) ModelInfo(ctx context.Context) (*model.ModelInfo, error) {
	var out model.ModelInfo
	err := s.cached(ctx, keyModelInfo, &out, func() (interface{}, error) {
		return s.backend.ModelInfo(ctx)
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// EducationalContent 科普内容
func (s *ContentService) EducationalContent(ctx context.Context) (*model.EducationalContent, error) {
	var out model.EducationalContent
	err := s.cached(ctx, keyEducational, &out, func() (interface{}, error) {
		return s.backend.EducationalContent(ctx)
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Invalidate 清空全部内容缓存
func (s *ContentService) Invalidate(ctx context.Context) {
	for _, key := range []string{keyStats, keyModelInfo, keyEducational} {
		if err := s.cache.Delete(ctx, key); err != nil {
			s.logger.Warn("删除内容缓存失败", zap.String("key", key), zap.Error(err))
		}
	}
}

// cached 先查缓存，未命中再请求后端并回写。缓存故障只记录日志
func (s *ContentService) cached(ctx context.Context, key string, out interface{}, load func() (interface{}, error)) error {
	if data, ok, err := s.cache.Get(ctx, key); err != nil {
		s.logger.Warn("读取内容缓存失败", zap.String("key", key), zap.Error(err))
	} else if ok {
		if err := json.Unmarshal(data, out); err == nil {
			s.logger.Debug("内容缓存命中", zap.String("key", key))
			return nil
		}
		s.logger.Warn("内容缓存数据损坏", zap.String("key", key))
	}

	v, err := load()
	if err != nil {
		s.logger.Error("加载内容失败", zap.String("key", key), zap.Error(err))
		return err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return err
	}
	if err := s.cache.Set(ctx, key, data, s.ttl); err != nil {
		s.logger.Warn("写入内容缓存失败", zap.String("key", key), zap.Error(err))
	}
	return nil
}
