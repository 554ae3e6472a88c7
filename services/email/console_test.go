package emailsvc

import (
	"net/mail"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/elimu/core"
)

func TestConsoleServiceMock_SendMessages(t *testing.T) {
	conf := &core.Config{AppName: "Elimu", DefaultFromEmail: "noreply@elimu.test", FrontendBaseURL: "https://elimu.test"}
	svc := NewConsoleServiceMock(conf)
	jane := []mail.Address{{Name: "Jane Doe", Address: "jane@school.ac.ke"}}

	svc.SendMessages(
		&core.EmailMessage{
			To:           jane,
			Subject:      "Your appraisal has been reviewed",
			TemplateName: "appraisal_reviewed",
			TemplateData: map[string]interface{}{
				"TeacherName":     "Jane Doe",
				"Term":            "Term 1",
				"Year":            2024,
				"Score":           88,
				"PromotionStatus": "Promotable",
				"Comments":        "Strong term.",
			},
		},
		&core.EmailMessage{To: jane, Subject: "Plain", BodyStr: "Hello"},
		&core.EmailMessage{Subject: "Nobody", BodyStr: "lost"},                          // no recipients
		&core.EmailMessage{To: jane, Subject: "Broken", TemplateName: "appraisal_reviewed"}, // missing data
	)

	sent := svc.SentMessages()
	require.Len(t, sent, 2)

	assert.Contains(t, sent[0].TextContent, "Appraisal score: 88%")
	assert.Contains(t, sent[0].TextContent, "Supervisor comments: Strong term.")
	assert.True(t, strings.Contains(sent[0].HTMLContent, "https://elimu.test"))

	assert.Equal(t, "Hello", sent[1].TextContent)
	assert.Empty(t, sent[1].HTMLContent)

	body, err := svc.format(sent[0])
	require.NoError(t, err)
	assert.Contains(t, body, "Subject: [Elimu] Your appraisal has been reviewed")
	assert.Contains(t, body, `To: "Jane Doe" <jane@school.ac.ke>`)
}
