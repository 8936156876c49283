// internal/push/provider.go
package push

import (
	"context"
	"fmt"
	"time"

	awsc "premium-push-workers/internal/common/aws"
	"premium-push-workers/internal/common/config"
	commonhttp "premium-push-workers/internal/common/http"
	"premium-push-workers/internal/common/logger"
)

// New builds the sender selected by cfg.Provider. timeout bounds the HTTP
// client used by providers that talk plain HTTP.
func New(ctx context.Context, cfg config.PushConfig, timeout time.Duration, log logger.Logger) (Sender, error) {
	switch cfg.Provider {
	case ProviderFCM, "":
		return NewFCMSender(ctx, cfg.FCM.ProjectID, cfg.FCM.ClientEmail, cfg.FCM.PrivateKey, log)
	case ProviderSNS:
		client, err := awsc.NewSNSClient(ctx, cfg.SNS.Region)
		if err != nil {
			return nil, fmt.Errorf("create sns client: %w", err)
		}
		return NewSNSSender(client, log), nil
	case ProviderExpo:
		return NewExpoSender(commonhttp.NewClient(timeout), cfg.Expo.URL, cfg.Expo.AccessToken, log), nil
	default:
		return nil, fmt.Errorf("unsupported push provider %q", cfg.Provider)
	}
}
