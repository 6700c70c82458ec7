package oracle

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"recibo/internal/config"
	"recibo/internal/constants"
	"recibo/internal/logger"
	"recibo/pkg/circuitbreaker"
	"recibo/pkg/errors"
	"recibo/pkg/metrics"
)

// Verdict is the oracle's structured answer. MatchedName is non-empty only
// when Approved is true.
type Verdict struct {
	Approved    bool
	MatchedName string
}

const systemPromptTemplate = `Você é um sistema que analisa comprovantes bancários.
Responda APENAS um JSON válido com a seguinte estrutura:
{"aprovado": boolean, "nomeEncontrado": "string ou null", "valor": "string ou null"}.
Valor correto esperado: %s.
Procure um dos nomes passados no array.`

const userPromptTemplate = `Analise a imagem (fornecida em data URI). Procure o valor e um nome da lista: [%s].
Retorne SOMENTE JSON.`

// completer is the transport seam: real traffic goes through openai-go,
// tests stub it.
type completer interface {
	complete(ctx context.Context, system, user, imageDataURI string) (string, error)
}

// Client sends receipt images to the vision oracle and parses its verdict.
// A transport or parse failure is never the same thing as "not approved".
type Client struct {
	completer      completer
	breaker        *circuitbreaker.Wrapper
	expectedAmount string
	logger         logger.Logger
}

func NewClient(cfg config.OracleConfig, breaker *circuitbreaker.Wrapper, log logger.Logger) *Client {
	return &Client{
		completer:      newOpenAICompleter(cfg),
		breaker:        breaker,
		expectedAmount: cfg.ExpectedAmount,
		logger:         log,
	}
}

// Verify asks the oracle whether the image is a valid receipt for the
// expected amount naming one of candidateNames. The candidate set must not
// be empty; the coordinator guarantees that before spending an oracle call.
func (c *Client) Verify(ctx context.Context, image []byte, candidateNames []string) (Verdict, error) {
	if len(candidateNames) == 0 {
		return Verdict{}, errors.ErrValidation.WithDetail("message", "candidate name set must not be empty")
	}

	system := fmt.Sprintf(systemPromptTemplate, c.expectedAmount)
	user := fmt.Sprintf(userPromptTemplate, strings.Join(candidateNames, ", "))
	dataURI := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(image)

	start := time.Now()
	content, err := c.completeThroughBreaker(ctx, system, user, dataURI)
	if err != nil {
		metrics.ObserveOracleDuration(time.Since(start), "transport_error")
		return Verdict{}, errors.Wrap(err, errors.ErrOracleTransport)
	}

	verdict, err := parseVerdict(content)
	if err != nil {
		metrics.ObserveOracleDuration(time.Since(start), "unparsable")
		c.logger.WarnwCtx(ctx, "Oracle response was not parsable", "response_prefix", prefix(content, 200))
		return Verdict{}, err
	}

	metrics.ObserveOracleDuration(time.Since(start), "success")
	return verdict, nil
}

func (c *Client) completeThroughBreaker(ctx context.Context, system, user, dataURI string) (string, error) {
	if c.breaker == nil {
		return c.completer.complete(ctx, system, user, dataURI)
	}

	result, err := c.breaker.ExecuteWithContext(ctx, func() (interface{}, error) {
		return c.completer.complete(ctx, system, user, dataURI)
	})
	c.breaker.RecordRequest(err == nil)
	if err != nil {
		return "", err
	}
	return result.(string), nil
}

func prefix(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

type openAICompleter struct {
	client    openai.Client
	model     string
	maxTokens int64
}

func newOpenAICompleter(cfg config.OracleConfig) *openAICompleter {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}

	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = constants.DefaultOracleTimeout
	}
	opts = append(opts, option.WithRequestTimeout(timeout))

	model := cfg.Model
	if model == "" {
		model = constants.DefaultOracleModel
	}

	maxTokens := int64(cfg.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = constants.DefaultOracleMaxTokens
	}

	return &openAICompleter{
		client:    openai.NewClient(opts...),
		model:     model,
		maxTokens: maxTokens,
	}
}

func (o *openAICompleter) complete(ctx context.Context, system, user, imageDataURI string) (string, error) {
	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(o.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage([]openai.ChatCompletionContentPartUnionParam{
				openai.TextContentPart(user),
				openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{URL: imageDataURI}),
			}),
		},
		MaxTokens:   openai.Int(o.maxTokens),
		Temperature: openai.Float(0),
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}

	return resp.Choices[0].Message.Content, nil
}
