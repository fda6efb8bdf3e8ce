package translator

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// youdaoLanguages maps request codes to Youdao's codes. Unlisted codes are
// passed through.
var youdaoLanguages = map[string]string{
	"en":      "eng",
	"ja":      "jpn",
	"zh":      "zh-CHS",
	"zh-cn":   "zh-CHS",
	"zh-hans": "zh-CHS",
	"zh-tw":   "zh-CHT",
	"zh-hant": "zh-CHT",
	"auto":    "zh-CHS",
}

// youdaoPairs is the fixed set of directions the account supports.
var youdaoPairs = map[[2]string]bool{
	{"zh-CHS", "eng"}:    true,
	{"eng", "zh-CHS"}:    true,
	{"zh-CHT", "eng"}:    true,
	{"eng", "zh-CHT"}:    true,
	{"zh-CHS", "zh-CHT"}: true,
	{"zh-CHT", "zh-CHS"}: true,
}

func youdaoLanguage(code string) string {
	if mapped, ok := youdaoLanguages[strings.ToLower(strings.TrimSpace(code))]; ok {
		return mapped
	}
	return code
}

// youdaoTruncate is the input digest of the v3 signature.
func youdaoTruncate(q string) string {
	r := []rune(q)
	if len(r) <= 20 {
		return q
	}
	return string(r[:10]) + strconv.Itoa(len(r)) + string(r[len(r)-10:])
}

// YoudaoAdapter posts a signed form with one q field per text.
type YoudaoAdapter struct {
	cfg    Config
	sender *httpSender
	now    func() time.Time
	salt   func() string
}

func NewYoudao(cfg Config, client *http.Client) *YoudaoAdapter {
	return &YoudaoAdapter{
		cfg:    cfg,
		sender: newHTTPSender(cfg.Name, cfg, client),
		now:    time.Now,
		salt:   func() string { return uuid.NewString() },
	}
}

func (a *YoudaoAdapter) Name() string   { return a.cfg.Name }
func (a *YoudaoAdapter) Config() Config { return a.cfg }

// CheckPair fails fast for directions outside the supported set.
func (a *YoudaoAdapter) CheckPair(srcLang, tgtLang string) error {
	from, to := youdaoLanguage(srcLang), youdaoLanguage(tgtLang)
	if !youdaoPairs[[2]string{from, to}] {
		return &UnsupportedPairError{Engine: a.cfg.Name, Source: srcLang, Target: tgtLang}
	}
	return nil
}

func (a *YoudaoAdapter) sign(input, salt, curtime string) string {
	sum := sha256.Sum256([]byte(a.cfg.AppID + youdaoTruncate(input) + salt + curtime + a.cfg.AppSecret))
	return hex.EncodeToString(sum[:])
}

func (a *YoudaoAdapter) BuildPayload(texts []string, srcLang, tgtLang string, _ Options) (*Payload, error) {
	if err := a.CheckPair(srcLang, tgtLang); err != nil {
		return nil, err
	}
	if a.cfg.AppID == "" || a.cfg.AppSecret == "" {
		return nil, fmt.Errorf("%s: %w: app id and secret not configured", a.cfg.Name, ErrMissingCredentials)
	}

	salt := a.salt()
	curtime := strconv.FormatInt(a.now().Unix(), 10)

	form := url.Values{}
	form.Set("from", youdaoLanguage(srcLang))
	form.Set("to", youdaoLanguage(tgtLang))
	form.Set("appKey", a.cfg.AppID)
	form.Set("salt", salt)
	form.Set("sign", a.sign(strings.Join(texts, ""), salt, curtime))
	form.Set("signType", "v3")
	form.Set("curtime", curtime)
	for _, t := range texts {
		form.Add("q", t)
	}

	h := http.Header{}
	h.Set("Content-Type", "application/x-www-form-urlencoded")
	return &Payload{
		Texts:   texts,
		SrcLang: srcLang,
		TgtLang: tgtLang,
		URL:     a.cfg.APIURL,
		Header:  h,
		Body:    []byte(form.Encode()),
	}, nil
}

func (a *YoudaoAdapter) Send(ctx context.Context, p *Payload) (*Response, error) {
	return a.sender.send(ctx, p)
}

type youdaoResponse struct {
	ErrorCode        string          `json:"errorCode"`
	Msg              string          `json:"msg"`
	Translation      json.RawMessage `json:"translation"`
	TranslateResults []struct {
		Translation string `json:"translation"`
	} `json:"translateResults"`
}

func (a *YoudaoAdapter) Parse(resp *Response, expected int) ([]string, error) {
	var yr youdaoResponse
	if err := json.Unmarshal(resp.Body, &yr); err != nil {
		return nil, fmt.Errorf("%w: decode body: %v", ErrMalformedResponse, err)
	}
	if yr.ErrorCode != "" && yr.ErrorCode != "0" {
		msg := yr.Msg
		if msg == "" {
			msg = "error code " + yr.ErrorCode
		}
		return nil, &ProviderError{
			Engine:     a.cfg.Name,
			StatusCode: resp.StatusCode,
			Attempts:   resp.Attempts,
			Err:        fmt.Errorf("youdao error %s: %s", yr.ErrorCode, msg),
		}
	}

	if len(yr.TranslateResults) > 0 {
		out := make([]string, len(yr.TranslateResults))
		for i, r := range yr.TranslateResults {
			out[i] = r.Translation
		}
		return out, nil
	}

	if len(yr.Translation) == 0 {
		return nil, fmt.Errorf("%w: no translation field", ErrMalformedResponse)
	}
	var list []string
	if err := json.Unmarshal(yr.Translation, &list); err == nil {
		return list, nil
	}
	var single string
	if err := json.Unmarshal(yr.Translation, &single); err == nil {
		return []string{single}, nil
	}
	var nested [][]string
	if err := json.Unmarshal(yr.Translation, &nested); err == nil {
		out := make([]string, len(nested))
		for i, n := range nested {
			if len(n) > 0 {
				out[i] = n[0]
			}
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: unexpected translation field", ErrMalformedResponse)
}
