package push

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	commonhttp "premium-push-workers/internal/common/http"
	"premium-push-workers/internal/common/logger"

	"firebase.google.com/go/v4/messaging"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const expoToken = "ExponentPushToken[abcdefghijklmnopqrstuv]"

// ==========================
// Kind / KindOf
// ==========================

func TestKind_Retryable(t *testing.T) {
	retryable := map[Kind]bool{
		KindInvalidToken:      false,
		KindAuthConfiguration: false,
		KindTimeout:           true,
		KindUnregistered:      false,
		KindQuotaExceeded:     true,
		KindUnavailable:       true,
		KindProviderError:     false,
		KindCancelled:         false,
	}
	for kind, expected := range retryable {
		assert.Equal(t, expected, kind.Retryable(), string(kind))
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected Kind
	}{
		{"nil", nil, ""},
		{"deadline", fmt.Errorf("send: %w", context.DeadlineExceeded), KindTimeout},
		{"cancelled", context.Canceled, KindCancelled},
		{"classified", NewDeliveryError("fcm", KindAuthConfiguration, errors.New("third-party-auth-error")), KindAuthConfiguration},
		{"wrapped classified", fmt.Errorf("x: %w", NewDeliveryError("sns", KindUnregistered, nil)), KindUnregistered},
		{"deadline beats classification", NewDeliveryError("expo", KindUnavailable, context.DeadlineExceeded), KindTimeout},
		{"unknown", errors.New("boom"), KindProviderError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, KindOf(tt.err))
		})
	}
}

// ==========================
// FCM
// ==========================

type fakeMessenger struct {
	last *messaging.Message
	err  error
}

func (f *fakeMessenger) Send(_ context.Context, m *messaging.Message) (string, error) {
	f.last = m
	if f.err != nil {
		return "", f.err
	}
	return "projects/p/messages/1", nil
}

func TestFCMSender_Send(t *testing.T) {
	fake := &fakeMessenger{}
	s := newFCMSender(fake, logger.NewTestLogger(t))

	err := s.Send(context.Background(), "fcm-token-1", Payload{Title: "Hi", Body: "There", Data: map[string]string{"k": "v"}})
	require.NoError(t, err)

	require.NotNil(t, fake.last)
	assert.Equal(t, "fcm-token-1", fake.last.Token)
	assert.Equal(t, "Hi", fake.last.Notification.Title)
	assert.Equal(t, "There", fake.last.Notification.Body)
	assert.Equal(t, "v", fake.last.Data["k"])
	assert.Equal(t, "high", fake.last.Android.Priority)
	assert.Equal(t, ProviderFCM, s.Name())
}

func TestFCMSender_UnclassifiedErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected Kind
	}{
		{"plain error", errors.New("unexpected"), KindProviderError},
		{"deadline", context.DeadlineExceeded, KindTimeout},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newFCMSender(&fakeMessenger{err: tt.err}, logger.NewTestLogger(t))
			err := s.Send(context.Background(), "tok", Payload{Body: "b"})
			require.Error(t, err)
			assert.Equal(t, tt.expected, KindOf(err))

			var de *DeliveryError
			require.True(t, errors.As(err, &de))
			assert.Equal(t, ProviderFCM, de.Provider)
		})
	}
}

// ==========================
// SNS
// ==========================

type fakePublisher struct {
	input *sns.PublishInput
	err   error
}

func (f *fakePublisher) Publish(_ context.Context, in *sns.PublishInput, _ ...func(*sns.Options)) (*sns.PublishOutput, error) {
	f.input = in
	if f.err != nil {
		return nil, f.err
	}
	return &sns.PublishOutput{MessageId: aws.String("m-1")}, nil
}

func TestSNSSender_Send(t *testing.T) {
	fake := &fakePublisher{}
	s := NewSNSSender(fake, logger.NewTestLogger(t))

	arn := "arn:aws:sns:us-east-1:123:endpoint/GCM/app/abc"
	require.NoError(t, s.Send(context.Background(), arn, Payload{Title: "T", Body: "B"}))

	assert.Equal(t, arn, aws.ToString(fake.input.TargetArn))
	assert.Equal(t, "json", aws.ToString(fake.input.MessageStructure))

	var envelope map[string]string
	require.NoError(t, json.Unmarshal([]byte(aws.ToString(fake.input.Message)), &envelope))
	assert.Equal(t, "B", envelope["default"])
	assert.Contains(t, envelope["GCM"], `"title":"T"`)
	assert.Contains(t, envelope["APNS"], `"sound":"default"`)
}

func TestSNSSender_Classification(t *testing.T) {
	tests := []struct {
		code     string
		fault    smithy.ErrorFault
		expected Kind
	}{
		{"AuthorizationError", smithy.FaultClient, KindAuthConfiguration},
		{"InvalidClientTokenId", smithy.FaultClient, KindAuthConfiguration},
		{"PlatformApplicationDisabled", smithy.FaultClient, KindAuthConfiguration},
		{"EndpointDisabled", smithy.FaultClient, KindUnregistered},
		{"InvalidParameter", smithy.FaultClient, KindInvalidToken},
		{"Throttled", smithy.FaultClient, KindQuotaExceeded},
		{"InternalError", smithy.FaultServer, KindUnavailable},
		{"SomethingNew", smithy.FaultServer, KindUnavailable},
		{"SomethingElse", smithy.FaultClient, KindProviderError},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			fake := &fakePublisher{err: &smithy.GenericAPIError{Code: tt.code, Message: "x", Fault: tt.fault}}
			err := NewSNSSender(fake, logger.NewNoOpLogger()).Send(context.Background(), "arn", Payload{})
			assert.Equal(t, tt.expected, KindOf(err))
		})
	}
}

// ==========================
// Expo
// ==========================

func expoServer(t *testing.T, handler http.HandlerFunc) (*ExpoSender, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewExpoSender(commonhttp.NewClient(5*time.Second), srv.URL, "secret", logger.NewTestLogger(t)), srv
}

func TestExpoSender_Delivered(t *testing.T) {
	s, _ := expoServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		var msgs []expoMessage
		require.NoError(t, json.NewDecoder(r.Body).Decode(&msgs))
		require.Len(t, msgs, 1)
		assert.Equal(t, expoToken, msgs[0].To)
		assert.Equal(t, "Body", msgs[0].Body)
		_, _ = w.Write([]byte(`{"data":[{"status":"ok","id":"ticket-1"}]}`))
	})

	require.NoError(t, s.Send(context.Background(), expoToken, Payload{Title: "T", Body: "Body"}))
}

func TestExpoSender_Failures(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		expected Kind
	}{
		{"device not registered", 200, `{"data":[{"status":"error","message":"gone","details":{"error":"DeviceNotRegistered"}}]}`, KindUnregistered},
		{"invalid credentials", 200, `{"data":[{"status":"error","details":{"error":"InvalidCredentials"}}]}`, KindAuthConfiguration},
		{"rate exceeded", 200, `{"data":[{"status":"error","details":{"error":"MessageRateExceeded"}}]}`, KindQuotaExceeded},
		{"unauthorized", 401, `{}`, KindAuthConfiguration},
		{"too many requests", 429, `{}`, KindQuotaExceeded},
		{"server error", 503, `{}`, KindUnavailable},
		{"request errors", 200, `{"errors":[{"code":"VALIDATION_ERROR","message":"bad"}]}`, KindProviderError},
		{"garbage", 200, `not-json`, KindProviderError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := expoServer(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})
			err := s.Send(context.Background(), expoToken, Payload{Body: "b"})
			require.Error(t, err)
			assert.Equal(t, tt.expected, KindOf(err))
		})
	}
}

func TestExpoSender_RejectsForeignTokenWithoutCalling(t *testing.T) {
	var calls int32
	s, _ := expoServer(t, func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
	})
	err := s.Send(context.Background(), "fcm-style-token", Payload{Body: "b"})
	assert.Equal(t, KindInvalidToken, KindOf(err))
	assert.Zero(t, atomic.LoadInt32(&calls))

	var v TokenValidator = s
	assert.False(t, v.ValidToken("fcm-style-token"))
	assert.True(t, v.ValidToken("ExponentPushToken[abc]"))
}

func TestExpoSender_ContextDeadline(t *testing.T) {
	s, _ := expoServer(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := s.Send(ctx, expoToken, Payload{Body: "b"})
	assert.Equal(t, KindTimeout, KindOf(err))
}
