package translator

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"google.golang.org/api/option"
)

// OverrideSource supplies persisted per-engine overrides. It is implemented
// by the store.
type OverrideSource interface {
	EngineOverride(ctx context.Context, name string) (json.RawMessage, bool, error)
}

// envSpec is the environment view of a Config. Fields use split_words so
// every key carries the engine prefix, e.g. DEEPSEEK_API_KEY.
type envSpec struct {
	APIUrl             string  `split_words:"true"`
	APIKey             string  `split_words:"true"`
	AppID              string  `split_words:"true"`
	AppSecret          string  `split_words:"true"`
	CredentialsFile    string  `split_words:"true"`
	Model              string  `split_words:"true"`
	MaxWorkers         int     `split_words:"true"`
	BatchSize          int     `split_words:"true"`
	JSONBatchSize      int     `split_words:"true"`
	MaxBatchChars      int     `split_words:"true"`
	Timeout            float64 `split_words:"true"` // seconds
	RetryMax           int     `split_words:"true"`
	RequestDelay       float64 `split_words:"true"` // seconds
	Sequential         bool    `split_words:"true"`
	UseJSONFormat      bool    `split_words:"true"`
	Temperature        float64 `split_words:"true"`
	MaxTokens          int     `split_words:"true"`
	JoinSingleOverflow bool    `split_words:"true"`
}

func specFrom(c Config) envSpec {
	return envSpec{
		APIUrl:             c.APIURL,
		APIKey:             c.APIKey,
		AppID:              c.AppID,
		AppSecret:          c.AppSecret,
		CredentialsFile:    c.CredentialsFile,
		Model:              c.Model,
		MaxWorkers:         c.MaxWorkers,
		BatchSize:          c.BatchSize,
		JSONBatchSize:      c.JSONBatchSize,
		MaxBatchChars:      c.MaxBatchChars,
		Timeout:            c.Timeout.Seconds(),
		RetryMax:           c.RetryMax,
		RequestDelay:       c.RequestDelay.Seconds(),
		Sequential:         c.Sequential,
		UseJSONFormat:      c.JSONMode,
		Temperature:        c.Temperature,
		MaxTokens:          c.MaxTokens,
		JoinSingleOverflow: c.JoinSingleOverflow,
	}
}

func (s envSpec) config(name string) Config {
	return Config{
		Name:               name,
		APIURL:             s.APIUrl,
		APIKey:             strings.TrimSpace(s.APIKey),
		AppID:              strings.TrimSpace(s.AppID),
		AppSecret:          strings.TrimSpace(s.AppSecret),
		CredentialsFile:    s.CredentialsFile,
		Model:              s.Model,
		MaxWorkers:         s.MaxWorkers,
		BatchSize:          s.BatchSize,
		JSONBatchSize:      s.JSONBatchSize,
		MaxBatchChars:      s.MaxBatchChars,
		Timeout:            time.Duration(s.Timeout * float64(time.Second)),
		RetryMax:           s.RetryMax,
		RequestDelay:       time.Duration(s.RequestDelay * float64(time.Second)),
		Sequential:         s.Sequential,
		JSONMode:           s.UseJSONFormat,
		Temperature:        s.Temperature,
		MaxTokens:          s.MaxTokens,
		JoinSingleOverflow: s.JoinSingleOverflow,
	}
}

type engineSpec struct {
	prefix string
	// keyFallbacks are extra environment variables consulted for the API
	// key when the prefixed one is unset.
	keyFallbacks []string
	defaults     Config
	hasCreds     func(Config) bool
	build        func(r *Registry, cfg Config) Adapter
}

func hasAPIKey(c Config) bool { return c.APIKey != "" }

const (
	dashscopeURL = "https://dashscope.aliyuncs.com/compatible-mode/v1/chat/completions"
	minute       = time.Minute
)

var engines = map[string]engineSpec{
	"deepseek": {
		prefix: "DEEPSEEK",
		defaults: Config{
			APIURL: "https://api.deepseek.com/v1/chat/completions", Model: "deepseek-chat",
			MaxWorkers: 10, BatchSize: 20, JSONBatchSize: 50, JSONMode: true,
			Timeout: minute, RetryMax: 3,
		},
		hasCreds: hasAPIKey,
		build:    func(r *Registry, c Config) Adapter { return NewDeepSeek(c, r.client) },
	},
	"kimi": {
		prefix: "KIMI",
		defaults: Config{
			APIURL: "https://api.moonshot.cn/v1/chat/completions", Model: "moonshot-v1-8k",
			MaxWorkers: 1, BatchSize: 8, Sequential: true, RequestDelay: time.Second,
			Timeout: minute, RetryMax: 3, Temperature: 0.1,
		},
		hasCreds: hasAPIKey,
		build:    func(r *Registry, c Config) Adapter { return NewKimi(c, r.client) },
	},
	"qwen_plus": {
		prefix:       "QWEN_PLUS",
		keyFallbacks: []string{"DASHSCOPE_API_KEY", "QWEN3_API_KEY"},
		defaults: Config{
			APIURL: dashscopeURL, Model: "qwen-plus",
			MaxWorkers: 10, BatchSize: 30, RequestDelay: 50 * time.Millisecond,
			Timeout: minute, RetryMax: 3,
		},
		hasCreds: hasAPIKey,
		build:    func(r *Registry, c Config) Adapter { return NewQwenPlus(c, r.client) },
	},
	"chatgpt": {
		prefix: "CHATGPT",
		defaults: Config{
			APIURL: "https://api.openai.com/v1/chat/completions", Model: "gpt-4o",
			MaxWorkers: 5, BatchSize: 20, Timeout: minute, RetryMax: 3,
		},
		hasCreds: hasAPIKey,
		build:    func(r *Registry, c Config) Adapter { return NewChatGPT(c, r.client) },
	},
	"openrouter": {
		prefix: "OPENROUTER",
		defaults: Config{
			APIURL: "https://openrouter.ai/api/v1/chat/completions", Model: "google/gemini-2.0-flash-exp:free",
			MaxWorkers: 5, BatchSize: 20, Timeout: 2 * minute, RetryMax: 3,
		},
		hasCreds: hasAPIKey,
		build:    func(r *Registry, c Config) Adapter { return NewOpenRouter(c, r.client) },
	},
	"qwen3": {
		prefix:       "QWEN3",
		keyFallbacks: []string{"DASHSCOPE_API_KEY"},
		defaults: Config{
			APIURL: dashscopeURL, Model: "qwen-mt-turbo",
			MaxWorkers: 1, BatchSize: 1, Sequential: true, RequestDelay: 100 * time.Millisecond,
			Timeout: minute, RetryMax: 3,
		},
		hasCreds: hasAPIKey,
		build:    func(r *Registry, c Config) Adapter { return NewQwen3(c, r.client) },
	},
	"tencent": {
		prefix: "TENCENT",
		defaults: Config{
			APIURL:     "https://tmt.tencentcloudapi.com",
			MaxWorkers: 5, BatchSize: 50, Timeout: minute, RetryMax: 3,
		},
		hasCreds: hasAPIKey,
		build:    func(r *Registry, c Config) Adapter { return NewTencent(c, r.client) },
	},
	"youdao": {
		prefix: "YOUDAO",
		defaults: Config{
			APIURL:     "https://openapi.youdao.com/api",
			MaxWorkers: 3, BatchSize: 5, MaxBatchChars: 1000, Timeout: minute, RetryMax: 3,
		},
		hasCreds: func(c Config) bool { return c.AppID != "" && c.AppSecret != "" },
		build:    func(r *Registry, c Config) Adapter { return NewYoudao(c, r.client) },
	},
	"google": {
		prefix: "GOOGLE",
		defaults: Config{
			MaxWorkers: 5, BatchSize: 50, Timeout: minute, RetryMax: 3,
		},
		hasCreds: func(c Config) bool {
			return c.APIKey != "" || c.CredentialsFile != "" || os.Getenv("GOOGLE_APPLICATION_CREDENTIALS") != ""
		},
		build: func(r *Registry, c Config) Adapter {
			if c.CredentialsFile == "" {
				c.CredentialsFile = os.Getenv("GOOGLE_APPLICATION_CREDENTIALS")
			}
			return NewGoogle(c, r.googleOpts...)
		},
	},
	"ollama": {
		prefix: "OLLAMA",
		defaults: Config{
			APIURL: "http://localhost:11434", Model: "llama3.2",
			MaxWorkers: 2, BatchSize: 10, Timeout: 2 * minute, RetryMax: 2,
		},
		hasCreds: func(Config) bool { return true },
		build:    func(r *Registry, c Config) Adapter { return NewOllama(c, r.client) },
	},
}

var aliases = map[string]string{
	"openai":  "chatgpt",
	"qwen":    "qwen3",
	"qwen_mt": "qwen3",
}

// NormalizeName lower-cases name, maps "-" to "_" and resolves aliases.
func NormalizeName(name string) string {
	n := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), "-", "_")
	if canonical, ok := aliases[n]; ok {
		return canonical
	}
	return n
}

// Registry resolves engine names to freshly configured adapters. Nothing
// is cached: every call sees the current environment and overrides.
type Registry struct {
	overrides  OverrideSource
	client     *http.Client
	googleOpts []option.ClientOption
}

// RegistryOption customises a Registry.
type RegistryOption func(*Registry)

// WithHTTPClient sets the client used by HTTP adapters.
func WithHTTPClient(c *http.Client) RegistryOption {
	return func(r *Registry) { r.client = c }
}

// WithGoogleOptions passes client options to the google adapter.
func WithGoogleOptions(opts ...option.ClientOption) RegistryOption {
	return func(r *Registry) { r.googleOpts = opts }
}

// NewRegistry returns a Registry. overrides may be nil.
func NewRegistry(overrides OverrideSource, opts ...RegistryOption) *Registry {
	r := &Registry{overrides: overrides, client: &http.Client{}}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Names returns every known engine in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(engines))
	for n := range engines {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Config returns the merged configuration for name: compiled-in defaults,
// then the environment, then the persisted override.
func (r *Registry) Config(ctx context.Context, name string) (Config, error) {
	n := NormalizeName(name)
	spec, ok := engines[n]
	if !ok {
		return Config{}, fmt.Errorf("%w: %q", ErrUnknownEngine, name)
	}

	env := specFrom(spec.defaults)
	if err := envconfig.Process(spec.prefix, &env); err != nil {
		return Config{}, fmt.Errorf("read %s environment: %w", n, err)
	}
	cfg := env.config(n)
	if cfg.APIKey == "" {
		for _, key := range spec.keyFallbacks {
			if v := strings.TrimSpace(os.Getenv(key)); v != "" {
				cfg.APIKey = v
				break
			}
		}
	}

	if r.overrides != nil {
		raw, found, err := r.overrides.EngineOverride(ctx, n)
		if err != nil {
			return Config{}, fmt.Errorf("load %s override: %w", n, err)
		}
		if found {
			m, err := ValidateOverride(raw)
			if err != nil {
				return Config{}, fmt.Errorf("%s override: %w", n, err)
			}
			if err := applyOverride(&cfg, m); err != nil {
				return Config{}, fmt.Errorf("%s override: %w", n, err)
			}
		}
	}
	return cfg, nil
}

// Resolve builds an adapter for name from a freshly merged Config.
func (r *Registry) Resolve(ctx context.Context, name string) (Adapter, error) {
	cfg, err := r.Config(ctx, name)
	if err != nil {
		return nil, err
	}
	return engines[cfg.Name].build(r, cfg), nil
}

// Available lists the engines whose credentials are configured, sorted.
func (r *Registry) Available(ctx context.Context) []string {
	var out []string
	for _, n := range r.Names() {
		cfg, err := r.Config(ctx, n)
		if err != nil {
			continue
		}
		if engines[n].hasCreds(cfg) {
			out = append(out, n)
		}
	}
	return out
}

// DefaultEngine prefers deepseek when it is usable, otherwise the first
// available engine, otherwise deepseek.
func (r *Registry) DefaultEngine(ctx context.Context) string {
	avail := r.Available(ctx)
	for _, n := range avail {
		if n == "deepseek" {
			return n
		}
	}
	if len(avail) > 0 {
		return avail[0]
	}
	return "deepseek"
}
