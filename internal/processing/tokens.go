package processing

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
	"go.uber.org/zap"
)

// TokenCounter counts model tokens in a piece of text.
type TokenCounter interface {
	Count(text string) int
}

// CountAll sums the token counts of texts.
func CountAll(c TokenCounter, texts []string) int {
	total := 0
	for _, t := range texts {
		total += c.Count(t)
	}
	return total
}

// Approx estimates four characters per token.
type Approx struct{}

func (Approx) Count(text string) int {
	n := length(text)
	return (n + 3) / 4
}

// fallbackEncoding is used for deployment names tiktoken does not know,
// which is the norm for Azure. It is the gpt-4o family encoding.
const fallbackEncoding = "o200k_base"

// Tiktoken counts with the BPE encoding of a model. The encoding is loaded
// lazily; if it cannot be loaded the counter falls back to Approx.
type Tiktoken struct {
	model  string
	logger *zap.Logger

	once sync.Once
	enc  *tiktoken.Tiktoken
}

func NewTiktoken(model string, logger *zap.Logger) *Tiktoken {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tiktoken{model: model, logger: logger}
}

func (t *Tiktoken) load() {
	enc, err := tiktoken.EncodingForModel(t.model)
	if err != nil {
		enc, err = tiktoken.GetEncoding(fallbackEncoding)
	}
	if err != nil {
		t.logger.Warn("tokenizer unavailable, estimating token counts",
			zap.String("model", t.model), zap.Error(err))
		return
	}
	t.enc = enc
}

func (t *Tiktoken) Count(text string) int {
	t.once.Do(t.load)
	if t.enc == nil {
		return Approx{}.Count(text)
	}
	return len(t.enc.Encode(text, nil, nil))
}
