package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// =============================================================================
// Client — 物料分类服务客户端
// 分类结果写回RFQ行项后不再重算，服务端只做存储
// =============================================================================

// Result 分类结果
type Result struct {
	Category      string  `json:"category"`
	MajorCategory string  `json:"major_category"`
	MinorCategory string  `json:"minor_category"`
	Source        string  `json:"source"` // ai/rule/manual
	Score         float64 `json:"score"`
}

// Client 分类服务客户端
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient 创建分类服务客户端
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Classify 对单条物料做分类
func (c *Client) Classify(ctx context.Context, name, spec, remark string) (*Result, error) {
	reqBody := map[string]string{
		"name":   name,
		"spec":   spec,
		"remark": remark,
	}
	bodyBytes, _ := json.Marshal(reqBody)

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/api/v1/classify", bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("创建分类请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("请求分类服务失败: %w", err)
	}
	defer resp.Body.Close()

	var result struct {
		Code int     `json:"code"`
		Msg  string  `json:"msg"`
		Data *Result `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("解析分类响应失败: %w", err)
	}
	if result.Code != 0 || result.Data == nil {
		return nil, fmt.Errorf("分类服务错误[%d]: %s", result.Code, result.Msg)
	}

	return result.Data, nil
}
