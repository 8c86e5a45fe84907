package tts

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strconv"
	"sync"
	"time"

	"app/pkg/tools"
)

const ProviderGoogle = "google"

const settingsCategoryGoogle = "google"

type GoogleConfig struct {
	URL string `yaml:"url"`
}

// SettingsSource hands out the opaque per-provider settings blob. The
// google backend reads its API key from it at call time, so credentials
// can be rotated without a restart.
type SettingsSource interface {
	Settings(ctx context.Context, category string) (map[string]string, error)
}

// GoogleClient talks to the Google Cloud Text-to-Speech REST API.
type GoogleClient struct {
	cfg        *GoogleConfig
	httpClient HTTPClient
	settings   SettingsSource
	logger     *slog.Logger

	langMu    sync.Mutex
	langCache []string
}

var _ Provider = (*GoogleClient)(nil)

func NewGoogleClient(httpClient HTTPClient, cfg *GoogleConfig, settings SettingsSource, logger *slog.Logger) *GoogleClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	baseURL := cfg.URL
	if baseURL == "" {
		baseURL = "https://texttospeech.googleapis.com/v1"
	}

	return &GoogleClient{
		cfg:        &GoogleConfig{URL: baseURL},
		httpClient: httpClient,
		settings:   settings,
		logger:     logger,
	}
}

type googleVoice struct {
	Name          string   `json:"name"`
	LanguageCodes []string `json:"languageCodes"`
}

type googleVoicesResp struct {
	Voices []googleVoice `json:"voices"`
}

type googleSynthReq struct {
	Input struct {
		Text string `json:"text"`
	} `json:"input"`
	Voice struct {
		Name         string `json:"name"`
		LanguageCode string `json:"languageCode"`
	} `json:"voice"`
	AudioConfig struct {
		AudioEncoding   string `json:"audioEncoding"`
		SampleRateHertz int    `json:"sampleRateHertz"`
	} `json:"audioConfig"`
}

type googleSynthResp struct {
	AudioContent string `json:"audioContent"`
}

func (c *GoogleClient) Voices(ctx context.Context, language string) []string {
	voices, err := c.listVoices(ctx, language)
	if err != nil || len(voices) == 0 {
		c.logger.Error("failed to list google voices, serving fallback", "err", err)

		return []string{"en-US-Standard-A"}
	}

	names := make([]string, 0, len(voices))
	for _, v := range voices {
		names = append(names, v.Name)
	}

	sort.Strings(names)

	return names
}

func (c *GoogleClient) Languages(ctx context.Context) []string {
	c.langMu.Lock()
	defer c.langMu.Unlock()

	if c.langCache != nil {
		return c.langCache
	}

	voices, err := c.listVoices(ctx, "")
	if err != nil || len(voices) == 0 {
		c.logger.Error("failed to list google languages, serving fallback", "err", err)

		return []string{"en-US"}
	}

	seen := map[string]struct{}{}
	langs := []string{}

	for _, v := range voices {
		for _, code := range v.LanguageCodes {
			if _, ok := seen[code]; ok {
				continue
			}

			seen[code] = struct{}{}
			langs = append(langs, code)
		}
	}

	sort.Strings(langs)

	c.langCache = langs

	return langs
}

func (c *GoogleClient) Synthesize(ctx context.Context, req *SynthesisRequest) error {
	key, err := c.apiKey(ctx)
	if err != nil {
		return err
	}

	start := time.Now()

	synthReq := &googleSynthReq{}
	synthReq.Input.Text = req.Text
	synthReq.Voice.Name = req.Voice
	synthReq.Voice.LanguageCode = req.Language
	synthReq.AudioConfig.AudioEncoding = "LINEAR16"
	synthReq.AudioConfig.SampleRateHertz = 24000

	data, err := json.Marshal(synthReq)
	if err != nil {
		return fmt.Errorf("failed to marshal synthesis request: %w", err)
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL+"/text:synthesize?key="+url.QueryEscape(key), bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	request.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(request)
	if err != nil {
		metrics.SynthErrors.WithLabelValues(ProviderGoogle, "network").Inc()

		return fmt.Errorf("failed to call google tts: %w", err)
	}
	defer tools.DrainAndClose(resp.Body)

	respData, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read body: %w", err)
	}

	if resp.StatusCode > 299 {
		metrics.SynthErrors.WithLabelValues(ProviderGoogle, strconv.Itoa(resp.StatusCode)).Inc()

		return fmt.Errorf("google tts status code %d, err - %s", resp.StatusCode, string(respData))
	}

	var synthResp googleSynthResp
	if err := json.Unmarshal(respData, &synthResp); err != nil {
		return fmt.Errorf("failed to unmarshal google tts response: %w", err)
	}

	audioBytes, err := base64.StdEncoding.DecodeString(synthResp.AudioContent)
	if err != nil {
		return fmt.Errorf("failed to decode audio content: %w", err)
	}

	if err := os.WriteFile(req.OutputPath, audioBytes, 0644); err != nil {
		return fmt.Errorf("failed to write audio file: %w", err)
	}

	metrics.SynthQueryTime.WithLabelValues(ProviderGoogle).Observe(time.Since(start).Seconds())

	return nil
}

func (c *GoogleClient) listVoices(ctx context.Context, language string) ([]googleVoice, error) {
	key, err := c.apiKey(ctx)
	if err != nil {
		return nil, err
	}

	reqURL := c.cfg.URL + "/voices?key=" + url.QueryEscape(key)
	if language != "" {
		reqURL += "&languageCode=" + url.QueryEscape(language)
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(request)
	if err != nil {
		return nil, fmt.Errorf("failed to call google tts: %w", err)
	}
	defer tools.DrainAndClose(resp.Body)

	respData, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}

	if resp.StatusCode > 299 {
		return nil, fmt.Errorf("google tts status code %d, err - %s", resp.StatusCode, string(respData))
	}

	var voicesResp googleVoicesResp
	if err := json.Unmarshal(respData, &voicesResp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal voices response: %w", err)
	}

	return voicesResp.Voices, nil
}

func (c *GoogleClient) apiKey(ctx context.Context) (string, error) {
	settings, err := c.settings.Settings(ctx, settingsCategoryGoogle)
	if err != nil {
		return "", fmt.Errorf("failed to read google settings: %w", err)
	}

	key := settings["api_key"]
	if key == "" {
		return "", fmt.Errorf("google api key is not configured")
	}

	return key, nil
}
