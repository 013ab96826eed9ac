package notify_service

import (
	"context"
	"fmt"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/serisow/vibeveed/pipeline_type"
)

const SMSNotifierName = "sms"

type messageCreator interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
}

type TwilioCredentials struct {
	AccountSid string
	AuthToken  string
	FromNumber string
	ToNumber   string
}

// SMSNotifier texts the final video URL, or the failure reason, through Twilio.
type SMSNotifier struct {
	client     messageCreator
	fromNumber string
	toNumber   string
}

func NewSMSNotifier(credentials TwilioCredentials) *SMSNotifier {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: credentials.AccountSid,
		Password: credentials.AuthToken,
	})
	return &SMSNotifier{
		client:     client.Api,
		fromNumber: credentials.FromNumber,
		toNumber:   credentials.ToNumber,
	}
}

func (s *SMSNotifier) Name() string {
	return SMSNotifierName
}

func (s *SMSNotifier) Notify(_ context.Context, result *pipeline_type.ProcessingResult) error {
	body := smsBody(result)
	params := &twilioApi.CreateMessageParams{
		To:   &s.toNumber,
		From: &s.fromNumber,
		Body: &body,
	}

	if _, err := s.client.CreateMessage(params); err != nil {
		return fmt.Errorf("failed to send SMS: %w", err)
	}
	return nil
}

func smsBody(result *pipeline_type.ProcessingResult) string {
	if result.Status == pipeline_type.StatusFailed {
		return fmt.Sprintf("Video for %s failed: %s", result.ImageName, pipeline_type.Deref(result.Error))
	}
	if result.FinalVideoURL != nil {
		return fmt.Sprintf("Your video for %s is ready: %s", result.ImageName, *result.FinalVideoURL)
	}
	return fmt.Sprintf("Processing of %s finished", result.ImageName)
}
