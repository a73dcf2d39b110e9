package inventory

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// =============================================================================
// Client — 库存系统客户端
// 收货后推送入库增量。调用方不因库存系统不可用阻塞或回滚本地收货事实，
// 超时与不可达由调用方分类处理。
// =============================================================================

// ErrTimeout 库存系统调用超时
var ErrTimeout = errors.New("inventory system timeout")

// ErrUnreachable 库存系统不可达（连接失败等网络层错误）
var ErrUnreachable = errors.New("inventory system unreachable")

// StockInLine 入库行
type StockInLine struct {
	MaterialCode  string  `json:"material_code"`
	QuantityDelta float64 `json:"quantity_delta"`
	TxType        string  `json:"tx_type"` // 固定为IN
	Reference     string  `json:"reference"`
}

// Client 库存系统客户端
type Client struct {
	baseURL    string
	apiKey     string
	timeout    time.Duration
	httpClient *http.Client
}

// NewClient 创建库存系统客户端
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		timeout: timeout,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// PushStockIn 批量推送入库增量
// 超时返回ErrTimeout供调用方区分，其余失败原样返回
func (c *Client) PushStockIn(ctx context.Context, lines []StockInLine) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	bodyBytes, _ := json.Marshal(map[string]interface{}{"transactions": lines})

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/api/v1/stock/transactions", bytes.NewReader(bodyBytes))
	if err != nil {
		return fmt.Errorf("创建入库请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Api-Key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return ErrTimeout
		}
		return fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	var result struct {
		Code int    `json:"code"`
		Msg  string `json:"msg"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("解析入库响应失败: %w", err)
	}
	if result.Code != 0 {
		return fmt.Errorf("库存系统错误[%d]: %s", result.Code, result.Msg)
	}

	return nil
}
