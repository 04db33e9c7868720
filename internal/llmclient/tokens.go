package llmclient

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

var (
	tokenizerCache   = make(map[string]*tiktoken.Tiktoken)
	tokenizerCacheMu sync.RWMutex
)

// tokensPerMessage is OpenAI's documented per-message chat overhead,
// consistent across the GPT-4 family.
const tokensPerMessage = 3

func getTokenizer(model string) (*tiktoken.Tiktoken, error) {
	tokenizerCacheMu.RLock()
	if tkm, ok := tokenizerCache[model]; ok {
		tokenizerCacheMu.RUnlock()
		return tkm, nil
	}
	tokenizerCacheMu.RUnlock()

	tokenizerCacheMu.Lock()
	defer tokenizerCacheMu.Unlock()
	if tkm, ok := tokenizerCache[model]; ok {
		return tkm, nil
	}

	tkm, err := tiktoken.EncodingForModel(model)
	if err != nil {
		tkm, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return nil, err
		}
	}
	tokenizerCache[model] = tkm
	return tkm, nil
}

// EstimateTokens counts tokens across a message list for the named
// model, falling back to cl100k_base for unrecognized models.
// internal/msggen does not call it; its max_tokens/temperature come
// from the use-case table alone.
func EstimateTokens(model string, messages []Message) (int, error) {
	tkm, err := getTokenizer(model)
	if err != nil {
		return 0, err
	}
	total := 0
	for _, m := range messages {
		total += tokensPerMessage
		total += len(tkm.Encode(string(m.Role), nil, nil))
		total += len(tkm.Encode(m.Text, nil, nil))
	}
	total += 3 // reply is primed with the assistant turn marker
	return total, nil
}

// EstimateSingleText counts tokens for one string, used when sizing a
// fallback template or a single prompt fragment.
func EstimateSingleText(model, text string) (int, error) {
	tkm, err := getTokenizer(model)
	if err != nil {
		return 0, err
	}
	return len(tkm.Encode(text, nil, nil)), nil
}
