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

	"map-assistant/internal/tool"
)

// SearchPOITool 实现 amap.search_poi：关键字检索兴趣点
type SearchPOITool struct {
	client *Client
}

// NewSearchPOITool 创建 POI 检索工具
func NewSearchPOITool(client *Client) *SearchPOITool {
	return &SearchPOITool{client: client}
}

// Name 实现 tool.Tool
func (t *SearchPOITool) Name() tool.Name { return tool.NameSearchPOI }

// Description 实现 tool.Tool
func (t *SearchPOITool) Description() string {
	return "按关键字搜索兴趣点（餐厅、景点、商场等）。传入 keywords，可选 city、types。"
}

// Schema 实现 tool.Tool
func (t *SearchPOITool) Schema() tool.Schema {
	return tool.Schema{
		Type:        "object",
		Description: "POI 检索参数",
		Properties: map[string]tool.SchemaProperty{
			"keywords": {Type: "string", Description: "检索关键字，如 '咖啡馆'"},
			"city":     {Type: "string", Description: "检索城市或区域（可选）"},
			"types":    {Type: "string", Description: "POI 类型编码（可选）"},
		},
		Required: []string{"keywords"},
	}
}

// Execute 实现 tool.Tool
func (t *SearchPOITool) Execute(ctx context.Context, input map[string]any) (tool.Result, error) {
	keywords, _ := input["keywords"].(string)
	if keywords == "" {
		return tool.ErrorPayload("missing_argument", "keywords 不能为空"), nil
	}
	if !t.client.HasKey() {
		return tool.ErrorPayload("missing_credential", "未配置高德 API key，请设置 amap.api_key"), nil
	}

	city, _ := input["city"].(string)
	types, _ := input["types"].(string)
	body, err := t.client.get(ctx, "/v3/place/text", map[string]string{
		"keywords": keywords,
		"city":     city,
		"types":    types,
	})
	if err != nil {
		return tool.ErrorPayload("backend_error", err.Error()), nil
	}

	return tool.Result{Content: string(body)}, nil
}
