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

package amap

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

// DefaultBaseURL 高德 Web 服务默认地址
const DefaultBaseURL = "https://restapi.amap.com"

// Client 高德 Web 服务客户端，三个工具共用一个 key 与 HTTP 连接
type Client struct {
	apiKey  string
	baseURL string
	client  *resty.Client
}

// Config 客户端配置
type Config struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration // <=0 时默认 10s
}

// NewClient 创建高德客户端。key 缺失不在这里报错，由工具执行时降级为错误负载
func NewClient(cfg Config) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	client := resty.New()
	client.SetTimeout(timeout)

	return &Client{
		apiKey:  cfg.APIKey,
		baseURL: baseURL,
		client:  client,
	}
}

// HasKey 是否配置了访问凭据
func (c *Client) HasKey() bool {
	return c.apiKey != ""
}

// get 发起一次 GET 请求，params 不含 key（由这里统一附加），返回原始响应体
func (c *Client) get(ctx context.Context, path string, params map[string]string) ([]byte, error) {
	req := c.client.R().
		SetContext(ctx).
		SetQueryParam("key", c.apiKey)
	for k, v := range params {
		if v != "" {
			req.SetQueryParam(k, v)
		}
	}

	response, err := req.Get(c.baseURL + path)
	if err != nil {
		return nil, fmt.Errorf("调用高德 API failed: %w", err)
	}
	if response.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("高德 API 返回错误: %s", response.String())
	}
	return response.Body(), nil
}
