// Package services provides external catalog integrations.
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Seeker220/letswatch/metrics"
	"github.com/Seeker220/letswatch/models"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
)

// ClientOptions configures the HTTP behaviour shared by the catalog clients
type ClientOptions struct {
	HTTPClient *http.Client
	// Retries is the number of extra attempts after a 429, a 5xx or a
	// network error.
	Retries uint64
	Logger  logrus.FieldLogger
}

// StatusError reports a non-2xx response from a provider
type StatusError struct {
	Provider   string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s API returned status %d", e.Provider, e.StatusCode)
}

// Unwrap classifies every status error as a provider failure
func (e *StatusError) Unwrap() error {
	return models.ErrProvider
}

type apiClient struct {
	provider   string
	httpClient *http.Client
	retries    uint64
	logger     logrus.FieldLogger
}

func newAPIClient(provider string, opts ClientOptions) *apiClient {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &apiClient{
		provider:   provider,
		httpClient: httpClient,
		retries:    opts.Retries,
		logger:     logger.WithField("provider", provider),
	}
}

// doRequest sends a request and decodes a JSON response into result.
// Transient failures are retried with exponential backoff.
func (c *apiClient) doRequest(ctx context.Context, method, fullURL string, body interface{}, headers map[string]string, result interface{}) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
	}

	start := time.Now()
	attempt := func() error {
		var reqBody io.Reader
		if payload != nil {
			reqBody = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, fullURL, reqBody)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
		}
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return fmt.Errorf("request failed: %w", err)
		}
		defer func() {
			if err := resp.Body.Close(); err != nil {
				c.logger.WithError(err).Warn("Failed to close response body")
			}
		}()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			_, _ = io.Copy(io.Discard, resp.Body)
			statusErr := &StatusError{Provider: c.provider, StatusCode: resp.StatusCode}
			if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
				return statusErr
			}
			return backoff.Permanent(statusErr)
		}

		if result == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return backoff.Permanent(fmt.Errorf("%w: failed to decode %s response: %v", models.ErrProvider, c.provider, err))
		}
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 100 * time.Millisecond
	policy.MaxInterval = 2 * time.Second
	err := backoff.Retry(attempt, backoff.WithContext(backoff.WithMaxRetries(policy, c.retries), ctx))

	outcome := metrics.OutcomeOK
	switch {
	case err == nil:
	case errors.Is(err, context.DeadlineExceeded):
		outcome = metrics.OutcomeTimeout
	default:
		outcome = metrics.OutcomeError
	}
	metrics.ObserveProvider(c.provider, outcome, time.Since(start))

	if err != nil {
		c.logger.WithFields(logrus.Fields{
			"method": method,
			"error":  err,
		}).Debug("Provider request failed")
		if errors.Is(err, models.ErrProvider) {
			return err
		}
		return fmt.Errorf("%w: %s: %w", models.ErrProvider, c.provider, err)
	}
	return nil
}
