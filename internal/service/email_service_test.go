package service

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSES struct {
	inputs []*sesv2.SendEmailInput
	err    error
}

func (f *fakeSES) SendEmail(ctx context.Context, in *sesv2.SendEmailInput, _ ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	f.inputs = append(f.inputs, in)
	if f.err != nil {
		return nil, f.err
	}
	return &sesv2.SendEmailOutput{MessageId: aws.String("msg-1")}, nil
}

func TestEmailServiceDisabledWithoutSender(t *testing.T) {
	s, err := NewEmailService(context.Background(), "us-east-1", "", "FamilyHub", "http://localhost", false)
	require.NoError(t, err)
	assert.False(t, s.IsEnabled())
	assert.NoError(t, s.SendFamilyInvitation(context.Background(), "gran@example.com", "Smiths", "Una"))
}

func TestSendFamilyInvitation(t *testing.T) {
	ses := &fakeSES{}
	s := &EmailService{client: ses, fromEmail: "noreply@example.com", fromName: "FamilyHub", appBaseURL: "https://hub.example.com", enabled: true}

	require.NoError(t, s.SendFamilyInvitation(context.Background(), "gran@example.com", "Smiths", "Una"))
	require.Len(t, ses.inputs, 1)

	in := ses.inputs[0]
	assert.Equal(t, "FamilyHub <noreply@example.com>", *in.FromEmailAddress)
	assert.Equal(t, []string{"gran@example.com"}, in.Destination.ToAddresses)
	assert.Contains(t, *in.Content.Simple.Subject.Data, "Smiths")
	assert.Contains(t, *in.Content.Simple.Body.Text.Data, "https://hub.example.com/invitations")
}

func TestSendFamilyInvitationEscapesHTML(t *testing.T) {
	ses := &fakeSES{}
	s := &EmailService{client: ses, fromEmail: "noreply@example.com", enabled: true}

	require.NoError(t, s.SendFamilyInvitation(context.Background(), "a@example.com", "<script>", "Una"))
	assert.NotContains(t, *ses.inputs[0].Content.Simple.Body.Html.Data, "<script>")
}

func TestSendFamilyInvitationWrapsSESError(t *testing.T) {
	boom := errors.New("throttled")
	s := &EmailService{client: &fakeSES{err: boom}, fromEmail: "noreply@example.com", enabled: true}

	err := s.SendFamilyInvitation(context.Background(), "a@example.com", "Smiths", "Una")
	assert.ErrorIs(t, err, boom)
}
