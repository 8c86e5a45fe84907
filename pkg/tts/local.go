package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"app/pkg/tools"
)

const ProviderLocal = "local"

type LocalConfig struct {
	URL string `yaml:"url"`

	// FallbackVoices is served when the model server cannot be reached.
	FallbackVoices []string `yaml:"fallback_voices"`
}

// LocalClient talks to a locally hosted XTTS inference server.
type LocalClient struct {
	cfg        *LocalConfig
	httpClient HTTPClient
	logger     *slog.Logger

	langOnce sync.Once
	langs    []string
}

var _ Provider = (*LocalClient)(nil)

func NewLocalClient(httpClient HTTPClient, cfg *LocalConfig, logger *slog.Logger) *LocalClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &LocalClient{
		cfg:        cfg,
		httpClient: httpClient,
		logger:     logger,
	}
}

type localSpeakersResp struct {
	Speakers []string `json:"speakers"`
}

type localLanguagesResp struct {
	Languages []string `json:"languages"`
}

type localSynthReq struct {
	Text     string `json:"text"`
	Speaker  string `json:"speaker"`
	Language string `json:"language"`
	UseCuda  bool   `json:"use_cuda"`
}

func (c *LocalClient) Voices(ctx context.Context, language string) []string {
	url := c.cfg.URL + "/speakers"
	if language != "" {
		url += "?language=" + language
	}

	var resp localSpeakersResp
	if err := c.getJSON(ctx, url, &resp); err != nil || len(resp.Speakers) == 0 {
		c.logger.Error("failed to list local voices, serving fallback", "err", err)

		return c.fallbackVoices()
	}

	return resp.Speakers
}

func (c *LocalClient) Languages(ctx context.Context) []string {
	c.langOnce.Do(func() {
		var resp localLanguagesResp
		if err := c.getJSON(ctx, c.cfg.URL+"/languages", &resp); err != nil || len(resp.Languages) == 0 {
			c.logger.Error("failed to list local languages, serving fallback", "err", err)

			c.langs = []string{"en"}

			return
		}

		c.langs = resp.Languages
	})

	return c.langs
}

func (c *LocalClient) Synthesize(ctx context.Context, req *SynthesisRequest) error {
	start := time.Now()

	data, err := json.Marshal(&localSynthReq{
		Text:     req.Text,
		Speaker:  req.Voice,
		Language: req.Language,
		UseCuda:  req.Accelerate,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal synthesis request: %w", err)
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL+"/tts", bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	request.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(request)
	if err != nil {
		metrics.SynthErrors.WithLabelValues(ProviderLocal, "network").Inc()

		return fmt.Errorf("failed to post to tts server: %w", err)
	}
	defer tools.DrainAndClose(resp.Body)

	respData, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read body: %w", err)
	}

	if resp.StatusCode > 299 {
		metrics.SynthErrors.WithLabelValues(ProviderLocal, strconv.Itoa(resp.StatusCode)).Inc()

		return fmt.Errorf("tts server status code %d, err - %s", resp.StatusCode, string(respData))
	}

	if err := os.WriteFile(req.OutputPath, respData, 0644); err != nil {
		return fmt.Errorf("failed to write audio file: %w", err)
	}

	metrics.SynthQueryTime.WithLabelValues(ProviderLocal).Observe(time.Since(start).Seconds())

	return nil
}

func (c *LocalClient) fallbackVoices() []string {
	if len(c.cfg.FallbackVoices) != 0 {
		return c.cfg.FallbackVoices
	}

	return []string{"default"}
}

func (c *LocalClient) getJSON(ctx context.Context, url string, out any) error {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(request)
	if err != nil {
		return fmt.Errorf("failed to call tts server: %w", err)
	}
	defer tools.DrainAndClose(resp.Body)

	respData, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read body: %w", err)
	}

	if resp.StatusCode > 299 {
		return fmt.Errorf("tts server status code %d, err - %s", resp.StatusCode, string(respData))
	}

	if err := json.Unmarshal(respData, out); err != nil {
		return fmt.Errorf("failed to unmarshal tts server response: %w", err)
	}

	return nil
}
