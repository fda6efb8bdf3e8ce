package translator

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// defaultMaxTokens caps completions when the engine config sets no limit.
const defaultMaxTokens = 4000

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model              string             `json:"model"`
	Messages           []chatMessage      `json:"messages"`
	Temperature        float64            `json:"temperature"`
	MaxTokens          int                `json:"max_tokens,omitempty"`
	ResponseFormat     *responseFormat    `json:"response_format,omitempty"`
	TranslationOptions *translationOption `json:"translation_options,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type translationOption struct {
	SourceLang string `json:"source_lang"`
	TargetLang string `json:"target_lang"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// promptFunc builds the message list for one batch.
type promptFunc func(cfg Config, texts []string, src, tgt string, opts Options) []chatMessage

// ChatAdapter speaks the OpenAI-compatible chat completions protocol. The
// engines using it differ only in prompt, defaults and extra headers.
type ChatAdapter struct {
	name    string
	cfg     Config
	prompt  promptFunc
	headers map[string]string
	sender  *httpSender
}

func newChatAdapter(cfg Config, client *http.Client, prompt promptFunc, headers map[string]string) *ChatAdapter {
	return &ChatAdapter{
		name:    cfg.Name,
		cfg:     cfg,
		prompt:  prompt,
		headers: headers,
		sender:  newHTTPSender(cfg.Name, cfg, client),
	}
}

// NewDeepSeek returns the deepseek adapter. In JSON mode the model is asked
// for a JSON object and batches are larger.
func NewDeepSeek(cfg Config, client *http.Client) *ChatAdapter {
	return newChatAdapter(cfg, client, deepseekPrompt, nil)
}

// NewKimi returns the kimi adapter.
func NewKimi(cfg Config, client *http.Client) *ChatAdapter {
	return newChatAdapter(cfg, client, systemArrayPrompt, nil)
}

// NewQwenPlus returns the qwen_plus adapter, which honours style options.
func NewQwenPlus(cfg Config, client *http.Client) *ChatAdapter {
	return newChatAdapter(cfg, client, styledArrayPrompt, nil)
}

// NewChatGPT returns the chatgpt adapter.
func NewChatGPT(cfg Config, client *http.Client) *ChatAdapter {
	return newChatAdapter(cfg, client, systemArrayPrompt, nil)
}

// NewOpenRouter returns the openrouter adapter.
func NewOpenRouter(cfg Config, client *http.Client) *ChatAdapter {
	return newChatAdapter(cfg, client, styledArrayPrompt, map[string]string{
		"HTTP-Referer": "https://doctran.local",
		"X-Title":      "doctran",
	})
}

func (a *ChatAdapter) Name() string   { return a.name }
func (a *ChatAdapter) Config() Config { return a.cfg }

func (a *ChatAdapter) BuildPayload(texts []string, srcLang, tgtLang string, opts Options) (*Payload, error) {
	if a.cfg.APIKey == "" {
		return nil, fmt.Errorf("%s: %w: API key not configured", a.name, ErrMissingCredentials)
	}

	req := chatRequest{
		Model:       a.cfg.Model,
		Messages:    a.prompt(a.cfg, texts, srcLang, tgtLang, opts),
		Temperature: a.cfg.Temperature,
		MaxTokens:   a.cfg.MaxTokens,
	}
	if req.MaxTokens <= 0 {
		req.MaxTokens = defaultMaxTokens
	}
	if a.cfg.JSONMode {
		req.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	h := http.Header{}
	h.Set("Content-Type", "application/json")
	h.Set("Authorization", "Bearer "+a.cfg.APIKey)
	for k, v := range a.headers {
		h.Set(k, v)
	}

	return &Payload{
		Texts:   texts,
		SrcLang: srcLang,
		TgtLang: tgtLang,
		URL:     a.cfg.APIURL,
		Header:  h,
		Body:    body,
	}, nil
}

func (a *ChatAdapter) Send(ctx context.Context, p *Payload) (*Response, error) {
	resp, err := a.sender.send(ctx, p)
	if err != nil {
		return nil, err
	}
	var cr chatResponse
	if err := json.Unmarshal(resp.Body, &cr); err == nil {
		resp.Tokens = cr.Usage.TotalTokens
		if resp.Tokens == 0 {
			resp.Tokens = cr.Usage.PromptTokens + cr.Usage.CompletionTokens
		}
	}
	return resp, nil
}

func (a *ChatAdapter) Parse(resp *Response, expected int) ([]string, error) {
	content, err := chatContent(resp.Body)
	if err != nil {
		return nil, err
	}
	return parseContent(content, expected)
}

func chatContent(body []byte) (string, error) {
	var cr chatResponse
	if err := json.Unmarshal(body, &cr); err != nil {
		return "", fmt.Errorf("%w: decode body: %v", ErrMalformedResponse, err)
	}
	if len(cr.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices", ErrMalformedResponse)
	}
	return cr.Choices[0].Message.Content, nil
}

func displayLang(lang string) string {
	if lang == "" || strings.EqualFold(lang, "auto") {
		return "the detected language"
	}
	return lang
}

func jsonArray(texts []string) string {
	b, _ := json.Marshal(texts)
	return string(b)
}

func deepseekPrompt(cfg Config, texts []string, src, tgt string, _ Options) []chatMessage {
	if !cfg.JSONMode {
		var sb strings.Builder
		fmt.Fprintf(&sb, "Translate the following texts from %s to %s. Return only the translations, one per line, in the same order:\n\n", displayLang(src), tgt)
		for i, t := range texts {
			fmt.Fprintf(&sb, "%d. %s\n", i+1, strings.ReplaceAll(t, "\n", " "))
		}
		return []chatMessage{{Role: "user", Content: sb.String()}}
	}

	prompt := fmt.Sprintf(`Please translate the following texts from %s to %s.

Input texts:
%s

Return ONLY a JSON object of the form {"translations": ["...", "..."]} holding exactly %d translations in the same order as the input. Do not include explanations or markdown.`,
		displayLang(src), tgt, jsonArray(texts), len(texts))
	return []chatMessage{{Role: "user", Content: prompt}}
}

func systemArrayPrompt(_ Config, texts []string, src, tgt string, _ Options) []chatMessage {
	system := fmt.Sprintf("You are a professional translation engine. Translate the following texts from %s to %s.\n"+
		"Return ONLY a valid JSON array of strings with the translations in order.\n"+
		`Example: ["translation1", "translation2", ...]`, displayLang(src), tgt)
	return []chatMessage{
		{Role: "system", Content: system},
		{Role: "user", Content: "Texts to translate:\n" + jsonArray(texts)},
	}
}

func styledArrayPrompt(_ Config, texts []string, _, tgt string, opts Options) []chatMessage {
	parts := []string{
		"You are a professional translation engine.",
		fmt.Sprintf("Translate each item strictly into %s regardless of the detected language.", tgt),
		"Preserve the item order and formatting markers, including tokens like __TRANS_TERM_0__ and [PH0].",
		"Return ONLY a valid JSON array of strings with exactly the same number of items as the input array.",
		"Do not include any keys, labels, comments, or extra text outside the JSON array.",
	}
	if p := strings.TrimSpace(opts.StylePreset); p != "" {
		parts = append(parts, fmt.Sprintf("Writing style preset: %s.", p))
	}
	if s := strings.TrimSpace(opts.StyleInstruction); s != "" {
		parts = append(parts, fmt.Sprintf("Additional style instruction: %s.", s))
	}

	user := "Here is the input array (JSON):\n" + jsonArray(texts) +
		fmt.Sprintf("\nReturn ONLY the translated JSON array of length %d.", len(texts))
	return []chatMessage{
		{Role: "system", Content: strings.Join(parts, " ")},
		{Role: "user", Content: user},
	}
}
