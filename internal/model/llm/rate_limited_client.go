// Copyright 2026 fanjia1024
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package llm

import (
	"context"
	"time"

	"map-assistant/pkg/metrics"
)

// RateLimitedClient 包装任意 LLM Client，在真实调用前后执行限流控制
type RateLimitedClient struct {
	inner       Client
	rateLimiter *LLMRateLimiter
}

// NewRateLimitedClient 创建带限流的 LLM 客户端。rateLimiter 为 nil 时退化为直接调用
func NewRateLimitedClient(inner Client, rateLimiter *LLMRateLimiter) *RateLimitedClient {
	return &RateLimitedClient{inner: inner, rateLimiter: rateLimiter}
}

// Complete 实现 Client.Complete，调用前后执行限流
func (c *RateLimitedClient) Complete(ctx context.Context, messages []Message, options CompleteOptions) (Completion, error) {
	if c.rateLimiter != nil {
		provider := c.inner.Provider()
		start := time.Now()
		if err := c.rateLimiter.Wait(ctx, provider); err != nil {
			return Completion{}, err
		}
		waited := time.Since(start)
		if waited > 100*time.Millisecond {
			metrics.RateLimitWaitSeconds.WithLabelValues("llm", provider).Observe(waited.Seconds())
		}
		defer c.rateLimiter.Release(provider)
	}

	return c.inner.Complete(ctx, messages, options)
}

// Model 实现 Client.Model
func (c *RateLimitedClient) Model() string {
	return c.inner.Model()
}

// Provider 实现 Client.Provider
func (c *RateLimitedClient) Provider() string {
	return c.inner.Provider()
}

// HasCredential 实现 Client.HasCredential
func (c *RateLimitedClient) HasCredential() bool {
	return c.inner.HasCredential()
}
