// internal/push/fcm.go
package push

import (
	"context"
	"fmt"
	"strings"

	"premium-push-workers/internal/common/logger"
	"premium-push-workers/internal/linkage"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"
)

const ProviderFCM = "fcm"

// fcmMessenger is the part of *messaging.Client we use.
type fcmMessenger interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

type FCMSender struct {
	client fcmMessenger
	logger logger.Logger
}

// NewFCMSender builds a Firebase messaging client from service-account
// fields. The private key may carry literal "\n" sequences as found in .env
// files.
func NewFCMSender(ctx context.Context, projectID, clientEmail, privateKey string, log logger.Logger) (*FCMSender, error) {
	privateKey = strings.ReplaceAll(privateKey, "\\n", "\n")

	credsJSON := fmt.Sprintf(`{
		"type": "service_account",
		"project_id": %q,
		"private_key": %q,
		"client_email": %q,
		"token_uri": "https://oauth2.googleapis.com/token"
	}`, projectID, privateKey, clientEmail)

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID}, option.WithCredentialsJSON([]byte(credsJSON)))
	if err != nil {
		return nil, fmt.Errorf("initialize firebase app: %w", err)
	}

	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("get messaging client: %w", err)
	}

	log.Info("fcm sender initialized", map[string]interface{}{"projectId": projectID})
	return newFCMSender(client, log), nil
}

func newFCMSender(client fcmMessenger, log logger.Logger) *FCMSender {
	return &FCMSender{
		client: client,
		logger: log.WithFields(map[string]interface{}{"provider": ProviderFCM}),
	}
}

func (s *FCMSender) Name() string { return ProviderFCM }

func (s *FCMSender) Send(ctx context.Context, token string, payload Payload) error {
	id, err := s.client.Send(ctx, fcmMessage(token, payload))
	if err != nil {
		kind := classifyFCM(err)
		s.logger.Debug("fcm send failed", map[string]interface{}{
			"token": linkage.TokenPreview(token),
			"kind":  string(kind),
			"error": err.Error(),
		})
		return NewDeliveryError(ProviderFCM, kind, err)
	}

	s.logger.Debug("fcm message accepted", map[string]interface{}{
		"token":     linkage.TokenPreview(token),
		"messageId": id,
	})
	return nil
}

func fcmMessage(token string, payload Payload) *messaging.Message {
	return &messaging.Message{
		Token: token,
		Notification: &messaging.Notification{
			Title: payload.Title,
			Body:  payload.Body,
		},
		Data: payload.Data,
		Android: &messaging.AndroidConfig{
			Priority: "high",
			Notification: &messaging.AndroidNotification{
				Sound: "default",
			},
		},
		APNS: &messaging.APNSConfig{
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{Sound: "default"},
			},
		},
	}
}

func classifyFCM(err error) Kind {
	switch {
	case messaging.IsThirdPartyAuthError(err), messaging.IsSenderIDMismatch(err):
		return KindAuthConfiguration
	case messaging.IsUnregistered(err):
		return KindUnregistered
	case messaging.IsInvalidArgument(err):
		return KindInvalidToken
	case messaging.IsQuotaExceeded(err):
		return KindQuotaExceeded
	case messaging.IsUnavailable(err), messaging.IsInternal(err):
		return KindUnavailable
	}
	if k := KindOf(err); k == KindTimeout || k == KindCancelled {
		return k
	}
	return KindProviderError
}
