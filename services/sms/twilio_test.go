package smssvc

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/quizmaster/backend/tests"
)

type fakeCreator struct {
	err    error
	panics bool
	params []*twilioApi.CreateMessageParams
}

func (f *fakeCreator) CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error) {
	if f.panics {
		panic("nil transport")
	}
	f.params = append(f.params, params)
	if f.err != nil {
		return nil, f.err
	}
	return &twilioApi.ApiV2010Message{}, nil
}

func TestNewTwilioSender_notConfigured(t *testing.T) {
	s := NewTwilioSender(testutil.Config(t), &testutil.Logger{})
	res := s.SendSMS(context.Background(), "+15550001", "hi")
	assert.False(t, res.OK)
	assert.Equal(t, ErrNotConfigured, res.Err)
}

func TestTwilioSender_SendSMS(t *testing.T) {
	tests := []struct {
		name    string
		phone   string
		creator *fakeCreator
		wantOK  bool
		wantErr string
	}{
		{name: "delivered", phone: " +15550001 ", creator: &fakeCreator{}, wantOK: true},
		{name: "empty phone", phone: "  ", creator: &fakeCreator{}, wantErr: "phone number is empty"},
		{name: "api error", phone: "+15550001", creator: &fakeCreator{err: errors.New("invalid number")}, wantErr: "sending sms to +15550001: invalid number"},
		{name: "api panic", phone: "+15550001", creator: &fakeCreator{panics: true}, wantErr: "twilio client panicked: nil transport"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &TwilioSender{api: tt.creator, from: "+15559999", logger: &testutil.Logger{}}
			res := s.SendSMS(context.Background(), tt.phone, "Hi Ann, 2 quizzes today")

			assert.Equal(t, tt.wantOK, res.OK)
			if tt.wantErr != "" {
				assert.EqualError(t, res.Err, tt.wantErr)
				return
			}
			assert.NoError(t, res.Err)
			if assert.Len(t, tt.creator.params, 1) {
				p := tt.creator.params[0]
				assert.Equal(t, "+15550001", *p.To)
				assert.Equal(t, "+15559999", *p.From)
				assert.Equal(t, "Hi Ann, 2 quizzes today", *p.Body)
			}
		})
	}
}

func TestTwilioSender_SendSMS_cancelled(t *testing.T) {
	creator := &fakeCreator{}
	s := &TwilioSender{api: creator, logger: &testutil.Logger{}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := s.SendSMS(ctx, "+15550001", "hi")
	assert.False(t, res.OK)
	assert.Empty(t, creator.params)
}
