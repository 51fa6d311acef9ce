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
	"encoding/json"

	"map-assistant/internal/tool"
)

// GeocodeTool 实现 amap.geocode：地址文本 -> 经纬度
type GeocodeTool struct {
	client *Client
}

// NewGeocodeTool 创建地理编码工具
func NewGeocodeTool(client *Client) *GeocodeTool {
	return &GeocodeTool{client: client}
}

// Name 实现 tool.Tool
func (t *GeocodeTool) Name() tool.Name { return tool.NameGeocode }

// Description 实现 tool.Tool
func (t *GeocodeTool) Description() string {
	return "将地址文本转换为经纬度坐标。传入 address，可选 city 缩小范围。"
}

// Schema 实现 tool.Tool
func (t *GeocodeTool) Schema() tool.Schema {
	return tool.Schema{
		Type:        "object",
		Description: "地理编码参数",
		Properties: map[string]tool.SchemaProperty{
			"address": {Type: "string", Description: "结构化地址，如 '北京市朝阳区阜通东大街6号'"},
			"city":    {Type: "string", Description: "指定查询的城市（可选）"},
		},
		Required: []string{"address"},
	}
}

// geocodeResponse 高德地理编码响应中本工具关心的字段
type geocodeResponse struct {
	Status   string `json:"status"`
	Info     string `json:"info"`
	Geocodes []struct {
		Location         string `json:"location"`
		FormattedAddress string `json:"formatted_address"`
		Province         string `json:"province"`
		City             string `json:"city"`
	} `json:"geocodes"`
}

// Execute 实现 tool.Tool
func (t *GeocodeTool) Execute(ctx context.Context, input map[string]any) (tool.Result, error) {
	address, _ := input["address"].(string)
	if address == "" {
		return tool.ErrorPayload("missing_argument", "address 不能为空"), nil
	}
	if !t.client.HasKey() {
		return tool.ErrorPayload("missing_credential", "未配置高德 API key，请设置 amap.api_key"), nil
	}

	city, _ := input["city"].(string)
	body, err := t.client.get(ctx, "/v3/geocode/geo", map[string]string{
		"address": address,
		"city":    city,
	})
	if err != nil {
		return tool.ErrorPayload("backend_error", err.Error()), nil
	}

	var parsed geocodeResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return tool.ErrorPayload("backend_error", "高德响应无法解析: "+err.Error()), nil
	}
	if parsed.Status != "1" || len(parsed.Geocodes) == 0 {
		return tool.ErrorPayload("no_result", "地址未能解析到坐标: "+address), nil
	}

	// 原样透传 provider JSON，由模型自行取用
	return tool.Result{Content: string(body)}, nil
}

// resolve 供路径规划复用：取第一个解析结果的经纬度
func (t *GeocodeTool) resolve(ctx context.Context, address string) (string, error) {
	result, err := t.Execute(ctx, map[string]any{"address": address})
	if err != nil {
		return "", err
	}
	if result.Err != "" {
		return "", errResolve(result.Err)
	}
	var parsed geocodeResponse
	if err := json.Unmarshal([]byte(result.Content), &parsed); err != nil {
		return "", err
	}
	if len(parsed.Geocodes) == 0 || parsed.Geocodes[0].Location == "" {
		return "", errResolve("地址未能解析到坐标: " + address)
	}
	return parsed.Geocodes[0].Location, nil
}

// errResolve 路径规划端点解析失败
type errResolve string

func (e errResolve) Error() string { return string(e) }
