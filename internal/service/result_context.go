package service

import (
	"sync"

	"github.com/neuroscan/neuroscan-go/internal/model"
)

// ResultContext 当前会话最近一次成功的分类结果，整体替换，不做合并
type ResultContext struct {
	mu     sync.RWMutex
	result *model.ScanResult
}

// Set 用新结果整体替换
func (c *ResultContext) Set(res model.ScanResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.result = res.Clone()
}

// Current 返回当前结果的副本，为空时返回 nil
func (c *ResultContext) Current() *model.ScanResult {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.result.Clone()
}

// Empty 是否尚无结果
func (c *ResultContext) Empty() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.result == nil
}
