package translate

import (
	"context"
	"fmt"

	"lyrics-panel/pkg/ai"
)

// LLM translates through a chat model.
type LLM struct {
	client ai.AiInterface
}

func NewLLM(client ai.AiInterface) *LLM {
	return &LLM{client: client}
}

func (l *LLM) Name() string {
	return "LLM(" + l.client.Name() + ")"
}

func formatTranslatePrompt(text, source, target string) string {
	return fmt.Sprintf(`请把下面的歌词从 %s 翻译成 %s（%s）。逐行翻译，保持行数和换行完全一致，只输出译文，不要任何解释或markdown格式。歌词：
%s`, source, LanguageName(target), target, text)
}

func (l *LLM) Translate(ctx context.Context, text, source, target string) (string, error) {
	reply, err := l.client.HandleText(ctx, formatTranslatePrompt(text, source, target))
	if err != nil {
		return "", err
	}
	return ai.Trim(reply), nil
}
