package core

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mailCounter struct{ sent []*EmailMessage }

func (m *mailCounter) SendMessages(msgs ...*EmailMessage) { m.sent = append(m.sent, msgs...) }

func TestEmailMessage_Render(t *testing.T) {
	tests := []struct {
		name     string
		msg      EmailMessage
		wantText []string
		wantHTML bool
	}{
		{
			name:     "plain body",
			msg:      EmailMessage{BodyStr: "Hello"},
			wantText: []string{"Hello"},
		},
		{
			name: "appraisal reviewed",
			msg: EmailMessage{TemplateName: "appraisal_reviewed", TemplateData: map[string]interface{}{
				"TeacherName": "Jane Doe", "Term": "Term 1", "Year": 2024, "Score": 88,
				"PromotionStatus": "Promotable", "Comments": "Great term.",
			}},
			wantText: []string{"Hello Jane Doe", "Term 1 2024", "88%", "Promotable", "Great term.", "http://localhost:5173"},
			wantHTML: true,
		},
		{
			name: "appraisal submitted",
			msg: EmailMessage{TemplateName: "appraisal_submitted", TemplateData: map[string]interface{}{
				"RecipientName": "Grace Wanjiru", "TeacherName": "Jane Doe", "TeacherID": "user-1", "Term": "Term 1", "Year": 2024,
			}},
			wantText: []string{"Grace Wanjiru", "Jane Doe"},
			wantHTML: true,
		},
		{
			name: "password reset",
			msg: EmailMessage{TemplateName: "password_reset", TemplateData: map[string]interface{}{
				"Name": "Jane Doe", "UID": "dXNlci0x", "Token": "tok-en",
			}},
			wantText: []string{"Jane Doe", "dXNlci0x", "tok-en"},
			wantHTML: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.msg
			require.NoError(t, msg.Render("http://localhost:5173"))
			assert.True(t, msg.HasContent())
			for _, s := range tt.wantText {
				assert.Contains(t, msg.TextContent, s)
			}
			assert.Equal(t, tt.wantHTML, msg.HTMLContent != "")
		})
	}

	t.Run("missing data", func(t *testing.T) {
		msg := EmailMessage{TemplateName: "password_reset", TemplateData: map[string]interface{}{"Name": "Jane"}}
		assert.Error(t, msg.Render(""))
	})
	t.Run("unknown template", func(t *testing.T) {
		msg := EmailMessage{TemplateName: "nope"}
		require.NoError(t, msg.Render(""))
		assert.False(t, msg.HasContent())
	})
}

func TestMailQueue(t *testing.T) {
	svc := new(mailCounter)
	msg := &EmailMessage{Subject: "hi"}

	QueueOrSend(context.Background(), svc, msg)
	assert.Len(t, svc.sent, 1, "no queue: sent right away")

	ctx, q := WithMailQueue(context.Background())
	QueueOrSend(ctx, svc, msg, msg)
	QueueOrSend(ctx, svc)
	assert.Len(t, svc.sent, 1)
	q.Flush(svc)
	assert.Len(t, svc.sent, 3)
	q.Flush(svc)
	assert.Len(t, svc.sent, 3, "flushing empties the queue")

	QueueOrSend(ctx, svc, msg)
	q.Discard()
	q.Flush(svc)
	assert.Len(t, svc.sent, 3)
}
