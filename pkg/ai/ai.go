package ai

import (
	"context"
	"fmt"
	"strings"

	"lyrics-panel/pkg/ai/gemini"
	"lyrics-panel/pkg/ai/openai"
)

// AiInterface 单轮文本生成，用于翻译回退、罗马音和歌曲信息提取
type AiInterface interface {
	Name() string
	HandleText(ctx context.Context, msg string) (string, error)
}

// New 根据模块名创建客户端："gemini" 使用 Gemini，其他值作为 OpenAI 兼容接口的模型名
func New(moduleName, apiKey, baseURL string) (AiInterface, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("ai api key is empty")
	}
	if moduleName == "" || strings.EqualFold(moduleName, "gemini") {
		g, err := gemini.NewGemini(apiKey, "")
		if err != nil {
			return nil, err
		}
		return g, nil
	}
	return openai.NewOpenAi(apiKey, moduleName, baseURL), nil
}

// Trim 去掉模型回复里常见的 markdown 代码块包裹
func Trim(reply string) string {
	s := strings.TrimSpace(reply)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		if i := strings.IndexByte(s, '\n'); i >= 0 {
			s = s[i+1:]
		}
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return strings.TrimSpace(s)
}
