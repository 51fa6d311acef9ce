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
	"errors"
	"regexp"

	"map-assistant/internal/tool"
)

// coordPattern 高德经纬度格式 "lon,lat"，匹配则跳过地理编码步骤
var coordPattern = regexp.MustCompile(`^-?\d+(\.\d+)?,-?\d+(\.\d+)?$`)

// ResolvedEndpoint 路径规划端点：原始文本与解析后的坐标
type ResolvedEndpoint struct {
	Raw      string
	Location string
}

// RouteTool 实现 amap.plan_route：两步流水线，先把非坐标端点地理编码，再请求路径
type RouteTool struct {
	client  *Client
	geocode *GeocodeTool
}

// NewRouteTool 创建路径规划工具，复用已有的地理编码工具做端点解析
func NewRouteTool(client *Client, geocode *GeocodeTool) *RouteTool {
	return &RouteTool{client: client, geocode: geocode}
}

// Name 实现 tool.Tool
func (t *RouteTool) Name() tool.Name { return tool.NamePlanRoute }

// Description 实现 tool.Tool
func (t *RouteTool) Description() string {
	return "规划两地之间的出行路线。传入 origin、destination（地址文本或 '经度,纬度'），可选 mode（driving|walking，默认 driving）。"
}

// Schema 实现 tool.Tool
func (t *RouteTool) Schema() tool.Schema {
	return tool.Schema{
		Type:        "object",
		Description: "路径规划参数",
		Properties: map[string]tool.SchemaProperty{
			"origin":      {Type: "string", Description: "起点，地址文本或 '经度,纬度'"},
			"destination": {Type: "string", Description: "终点，地址文本或 '经度,纬度'"},
			"mode":        {Type: "string", Description: "出行方式 driving 或 walking（可选）"},
		},
		Required: []string{"origin", "destination"},
	}
}

// Execute 实现 tool.Tool
func (t *RouteTool) Execute(ctx context.Context, input map[string]any) (tool.Result, error) {
	origin, _ := input["origin"].(string)
	destination, _ := input["destination"].(string)
	if origin == "" || destination == "" {
		return tool.ErrorPayload("missing_argument", "origin 和 destination 不能为空"), nil
	}
	if !t.client.HasKey() {
		return tool.ErrorPayload("missing_credential", "未配置高德 API key，请设置 amap.api_key"), nil
	}

	mode := "driving"
	if m, _ := input["mode"].(string); m == "walking" {
		mode = "walking"
	}

	// 第一步：端点解析。任一端点失败即短路，不再发起路径请求
	from, err := t.resolveEndpoint(ctx, origin)
	if err != nil {
		return endpointError("起点", origin, err), nil
	}
	to, err := t.resolveEndpoint(ctx, destination)
	if err != nil {
		return endpointError("终点", destination, err), nil
	}

	// 第二步：路径请求
	body, err := t.client.get(ctx, "/v3/direction/"+mode, map[string]string{
		"origin":      from.Location,
		"destination": to.Location,
	})
	if err != nil {
		return tool.ErrorPayload("backend_error", err.Error()), nil
	}

	return tool.Result{Content: string(body)}, nil
}

// resolveEndpoint 坐标文本直接使用，其余走地理编码
func (t *RouteTool) resolveEndpoint(ctx context.Context, raw string) (ResolvedEndpoint, error) {
	if coordPattern.MatchString(raw) {
		return ResolvedEndpoint{Raw: raw, Location: raw}, nil
	}
	location, err := t.geocode.resolve(ctx, raw)
	if err != nil {
		return ResolvedEndpoint{}, err
	}
	return ResolvedEndpoint{Raw: raw, Location: location}, nil
}

// endpointError 端点解析失败的错误负载
func endpointError(which, raw string, err error) tool.Result {
	var resolveErr errResolve
	code := "backend_error"
	if errors.As(err, &resolveErr) {
		code = "endpoint_unresolved"
	}
	return tool.ErrorPayload(code, which+" '"+raw+"' 解析失败: "+err.Error())
}
