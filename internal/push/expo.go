// internal/push/expo.go
package push

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	commonhttp "premium-push-workers/internal/common/http"
	"premium-push-workers/internal/common/logger"
	"premium-push-workers/internal/linkage"
)

const (
	ProviderExpo       = "expo"
	DefaultExpoPushURL = "https://exp.host/--/api/v2/push/send"
)

type expoMessage struct {
	To       string            `json:"to"`
	Title    string            `json:"title,omitempty"`
	Body     string            `json:"body"`
	Data     map[string]string `json:"data,omitempty"`
	Sound    string            `json:"sound,omitempty"`
	Priority string            `json:"priority,omitempty"`
}

type expoResponse struct {
	Data   []expoTicket `json:"data"`
	Errors []struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"errors,omitempty"`
}

type expoTicket struct {
	Status  string `json:"status"` // "ok" or "error"
	ID      string `json:"id"`
	Message string `json:"message,omitempty"`
	Details struct {
		Error string `json:"error,omitempty"`
	} `json:"details,omitempty"`
}

// ExpoSender delivers through the Expo push API.
type ExpoSender struct {
	client      *commonhttp.Client
	url         string
	accessToken string
	logger      logger.Logger
}

func NewExpoSender(client *commonhttp.Client, url, accessToken string, log logger.Logger) *ExpoSender {
	if url == "" {
		url = DefaultExpoPushURL
	}
	return &ExpoSender{
		client:      client,
		url:         url,
		accessToken: accessToken,
		logger:      log.WithFields(map[string]interface{}{"provider": ProviderExpo}),
	}
}

func (s *ExpoSender) Name() string { return ProviderExpo }

func IsExpoToken(token string) bool {
	return strings.HasPrefix(token, "ExponentPushToken[") || strings.HasPrefix(token, "ExpoPushToken[")
}

func (s *ExpoSender) ValidToken(token string) bool { return IsExpoToken(token) }

func (s *ExpoSender) Send(ctx context.Context, token string, payload Payload) error {
	if !IsExpoToken(token) {
		return NewDeliveryError(ProviderExpo, KindInvalidToken, fmt.Errorf("not an expo push token"))
	}

	headers := map[string]string{}
	if s.accessToken != "" {
		headers["Authorization"] = "Bearer " + s.accessToken
	}

	status, body, err := s.client.PostJSON(ctx, s.url, headers, []expoMessage{{
		To:       token,
		Title:    payload.Title,
		Body:     payload.Body,
		Data:     payload.Data,
		Sound:    "default",
		Priority: "high",
	}})
	if err != nil {
		if k := KindOf(err); k == KindTimeout || k == KindCancelled {
			return NewDeliveryError(ProviderExpo, k, err)
		}
		return NewDeliveryError(ProviderExpo, KindUnavailable, err)
	}

	if status != http.StatusOK {
		kind := classifyExpoStatus(status)
		s.logger.Debug("expo api error", map[string]interface{}{
			"status": status,
			"kind":   string(kind),
			"body":   string(body),
		})
		return NewDeliveryError(ProviderExpo, kind, fmt.Errorf("expo api error: status=%d", status))
	}

	var resp expoResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return NewDeliveryError(ProviderExpo, KindProviderError, fmt.Errorf("parse response: %w", err))
	}
	if len(resp.Errors) > 0 {
		return NewDeliveryError(ProviderExpo, KindProviderError,
			fmt.Errorf("%s: %s", resp.Errors[0].Code, resp.Errors[0].Message))
	}
	if len(resp.Data) == 0 {
		return NewDeliveryError(ProviderExpo, KindProviderError, fmt.Errorf("empty ticket list"))
	}

	ticket := resp.Data[0]
	if ticket.Status != "ok" {
		kind := classifyExpoTicket(ticket.Details.Error)
		s.logger.Debug("expo ticket rejected", map[string]interface{}{
			"token": linkage.TokenPreview(token),
			"kind":  string(kind),
			"error": ticket.Details.Error,
		})
		return NewDeliveryError(ProviderExpo, kind, fmt.Errorf("%s (%s)", ticket.Message, ticket.Details.Error))
	}

	s.logger.Debug("expo message accepted", map[string]interface{}{
		"token":    linkage.TokenPreview(token),
		"ticketId": ticket.ID,
	})
	return nil
}

func classifyExpoStatus(status int) Kind {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return KindAuthConfiguration
	case status == http.StatusTooManyRequests:
		return KindQuotaExceeded
	case status >= 500:
		return KindUnavailable
	default:
		return KindProviderError
	}
}

func classifyExpoTicket(code string) Kind {
	switch code {
	case "DeviceNotRegistered":
		return KindUnregistered
	case "InvalidCredentials":
		return KindAuthConfiguration
	case "MessageRateExceeded":
		return KindQuotaExceeded
	default:
		return KindProviderError
	}
}
