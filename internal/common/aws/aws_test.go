package aws

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSES struct {
	input *ses.SendEmailInput
	err   error
}

func (f *fakeSES) SendEmail(_ context.Context, in *ses.SendEmailInput, _ ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	f.input = in
	if f.err != nil {
		return nil, f.err
	}
	return &ses.SendEmailOutput{MessageId: aws.String("msg-1")}, nil
}

func TestSESClient_SendText(t *testing.T) {
	fake := &fakeSES{}
	c := &SESClient{client: fake}

	id, err := c.SendText(context.Background(), "ops@example.com", "oncall@example.com", "subject", "body")
	require.NoError(t, err)
	assert.Equal(t, "msg-1", id)

	assert.Equal(t, "ops@example.com", aws.ToString(fake.input.Source))
	assert.Equal(t, []string{"oncall@example.com"}, fake.input.Destination.ToAddresses)
	assert.Equal(t, "subject", aws.ToString(fake.input.Message.Subject.Data))
	assert.Equal(t, "body", aws.ToString(fake.input.Message.Body.Text.Data))
}

func TestSESClient_SendTextError(t *testing.T) {
	c := &SESClient{client: &fakeSES{err: errors.New("MessageRejected")}}
	_, err := c.SendText(context.Background(), "a", "b", "s", "b")
	assert.ErrorContains(t, err, "MessageRejected")
}
