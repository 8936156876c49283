// internal/push/sns.go
package push

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"premium-push-workers/internal/common/logger"
	"premium-push-workers/internal/linkage"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/smithy-go"
)

const ProviderSNS = "sns"

type snsPublisher interface {
	Publish(ctx context.Context, input *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SNSSender publishes to SNS mobile platform endpoints. The device token
// stored for SNS devices is the platform endpoint ARN.
type SNSSender struct {
	client snsPublisher
	logger logger.Logger
}

func NewSNSSender(client snsPublisher, log logger.Logger) *SNSSender {
	return &SNSSender{
		client: client,
		logger: log.WithFields(map[string]interface{}{"provider": ProviderSNS}),
	}
}

func (s *SNSSender) Name() string { return ProviderSNS }

func (s *SNSSender) Send(ctx context.Context, token string, payload Payload) error {
	message, err := snsMessage(payload)
	if err != nil {
		return NewDeliveryError(ProviderSNS, KindProviderError, err)
	}

	out, err := s.client.Publish(ctx, &sns.PublishInput{
		TargetArn:        aws.String(token),
		Message:          aws.String(message),
		MessageStructure: aws.String("json"),
	})
	if err != nil {
		kind := classifySNS(err)
		s.logger.Debug("sns publish failed", map[string]interface{}{
			"endpoint": linkage.TokenPreview(token),
			"kind":     string(kind),
			"error":    err.Error(),
		})
		return NewDeliveryError(ProviderSNS, kind, err)
	}

	s.logger.Debug("sns message accepted", map[string]interface{}{
		"endpoint":  linkage.TokenPreview(token),
		"messageId": aws.ToString(out.MessageId),
	})
	return nil
}

// snsMessage builds the per-platform JSON envelope SNS expects when
// MessageStructure is "json".
func snsMessage(payload Payload) (string, error) {
	gcm, err := json.Marshal(map[string]interface{}{
		"notification": map[string]string{"title": payload.Title, "body": payload.Body},
		"data":         payload.Data,
	})
	if err != nil {
		return "", fmt.Errorf("marshal gcm payload: %w", err)
	}

	aps := map[string]interface{}{
		"aps": map[string]interface{}{
			"alert": map[string]string{"title": payload.Title, "body": payload.Body},
			"sound": "default",
		},
	}
	for k, v := range payload.Data {
		if k != "aps" {
			aps[k] = v
		}
	}
	apns, err := json.Marshal(aps)
	if err != nil {
		return "", fmt.Errorf("marshal apns payload: %w", err)
	}

	envelope, err := json.Marshal(map[string]string{
		"default":      payload.Body,
		"GCM":          string(gcm),
		"APNS":         string(apns),
		"APNS_SANDBOX": string(apns),
	})
	if err != nil {
		return "", fmt.Errorf("marshal sns envelope: %w", err)
	}
	return string(envelope), nil
}

func classifySNS(err error) Kind {
	if k := KindOf(err); k == KindTimeout || k == KindCancelled {
		return k
	}

	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return KindProviderError
	}

	switch apiErr.ErrorCode() {
	case "AuthorizationError", "InvalidClientTokenId", "UnrecognizedClientException",
		"SignatureDoesNotMatch", "PlatformApplicationDisabled", "KMSAccessDenied":
		return KindAuthConfiguration
	case "EndpointDisabled", "NotFound":
		return KindUnregistered
	case "InvalidParameter", "InvalidParameterValue":
		return KindInvalidToken
	case "Throttled", "Throttling", "ThrottlingException":
		return KindQuotaExceeded
	case "InternalError", "InternalFailure", "ServiceUnavailable":
		return KindUnavailable
	}

	if apiErr.ErrorFault() == smithy.FaultServer {
		return KindUnavailable
	}
	return KindProviderError
}
