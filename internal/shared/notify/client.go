package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// =============================================================================
// Client — 企业消息通道客户端
// 提供token管理和消息发送，token采用提前刷新策略，不等到过期才换
// =============================================================================

// Client 消息通道客户端
type Client struct {
	baseURL     string
	appID       string       // 应用ID
	appSecret   string       // 应用密钥
	tokenCache  string       // 缓存的access_token
	tokenExpire time.Time    // token过期时间
	mu          sync.RWMutex // 保护token缓存的读写锁
	httpClient  *http.Client // HTTP客户端
}

// NewClient 创建消息通道客户端实例
func NewClient(baseURL, appID, appSecret string) *Client {
	return &Client{
		baseURL:   baseURL,
		appID:     appID,
		appSecret: appSecret,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// getAccessToken 获取访问令牌
// 双重检查锁定缓存token，提前60秒刷新避免临界过期
func (c *Client) getAccessToken(ctx context.Context) (string, error) {
	c.mu.RLock()
	if c.tokenCache != "" && time.Now().Before(c.tokenExpire) {
		token := c.tokenCache
		c.mu.RUnlock()
		return token, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()

	// 其他goroutine可能已经刷新
	if c.tokenCache != "" && time.Now().Before(c.tokenExpire) {
		return c.tokenCache, nil
	}

	reqBody := map[string]string{
		"app_id":     c.appID,
		"app_secret": c.appSecret,
	}
	bodyBytes, _ := json.Marshal(reqBody)

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/api/v1/auth/token", bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("创建token请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("请求消息通道token失败: %w", err)
	}
	defer resp.Body.Close()

	var result struct {
		Code        int    `json:"code"`
		Msg         string `json:"msg"`
		AccessToken string `json:"access_token"`
		Expire      int    `json:"expire"` // 过期时间（秒）
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("解析token响应失败: %w", err)
	}
	if result.Code != 0 {
		return "", fmt.Errorf("消息通道token错误[%d]: %s", result.Code, result.Msg)
	}

	c.tokenCache = result.AccessToken
	c.tokenExpire = time.Now().Add(time.Duration(result.Expire-60) * time.Second)

	return result.AccessToken, nil
}

// QuoteInviteMessage 询价邀请消息
type QuoteInviteMessage struct {
	RFQCode      string     `json:"rfq_code"`
	ItemCount    int        `json:"item_count"`
	Deadline     *time.Time `json:"deadline,omitempty"`
	ContactEmail string     `json:"contact_email,omitempty"`
}

// SendQuoteInvite 向供应商发送询价邀请
// 任何非成功响应视为可重试错误，由调度器负责退避
func (c *Client) SendQuoteInvite(ctx context.Context, recipient string, msg *QuoteInviteMessage) error {
	token, err := c.getAccessToken(ctx)
	if err != nil {
		return fmt.Errorf("获取访问令牌失败: %w", err)
	}

	payload := map[string]interface{}{
		"recipient": recipient,
		"template":  "rfq_invite",
		"content":   msg,
	}
	bodyBytes, _ := json.Marshal(payload)

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/api/v1/messages/send", bytes.NewReader(bodyBytes))
	if err != nil {
		return fmt.Errorf("创建发送请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("发送询价通知失败: %w", err)
	}
	defer resp.Body.Close()

	var result struct {
		Code int    `json:"code"`
		Msg  string `json:"msg"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("解析发送响应失败: %w", err)
	}
	if result.Code != 0 {
		return fmt.Errorf("消息通道错误[%d]: %s", result.Code, result.Msg)
	}

	return nil
}
