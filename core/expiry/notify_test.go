package expiry_test

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/maktaba/core"
	"github.com/trezcool/maktaba/core/expiry"
	emailsvc "github.com/trezcool/maktaba/services/email"
	"github.com/trezcool/maktaba/tests"
)

func TestNewReportNotifier_withoutAdminEmail(t *testing.T) {
	conf := &core.Config{AppName: "Maktaba"}
	n := expiry.NewReportNotifier(emailsvc.NewConsoleServiceMock(conf, &testutil.Logger{}), "", &testutil.Logger{})
	assert.Nil(t, n)
	assert.NotPanics(t, func() { n.Notify(expiry.Result{ProcessedCount: 1}) })
}

func TestReportNotifier_Notify(t *testing.T) {
	logger := &testutil.Logger{}
	core.ParseEmailTemplates(logger, true)
	emailsvc.ResetSentMessages()
	t.Cleanup(emailsvc.ResetSentMessages)

	conf := &core.Config{AppName: "Maktaba"}
	n := expiry.NewReportNotifier(emailsvc.NewConsoleServiceMock(conf, logger), "admin@maktaba.test", logger)
	require.NotNil(t, n)

	n.Notify(expiry.Result{
		Date:           d("2024-02-20"),
		ProcessedCount: 2,
		Students: []expiry.Candidate{
			{StudentID: "s1", StudentName: "Asha", PaymentID: "p1", PeriodEnd: d("2024-01-31")},
			{StudentID: "s2", StudentName: "Meena", PaymentID: "p2", PeriodEnd: d("2024-01-15")},
		},
	})

	assert.Empty(t, logger.Messages("error"))
	require.Len(t, emailsvc.SentMessages, 1)
	msg := emailsvc.SentMessages[0]
	assert.Equal(t, "admin@maktaba.test", msg.To[0].Address)
	assert.Equal(t, "2 student(s) removed after the grace period", msg.Subject)
	assert.Contains(t, msg.TextContent, "Expiration sweep of 2024-02-20: 2 student(s) removed")
	assert.Contains(t, msg.TextContent, "- Meena (last period ended 2024-01-15)")
	assert.Contains(t, msg.HTMLContent, "Asha")

	require.Len(t, msg.Attachments, 1)
	at := msg.Attachments[0]
	assert.Equal(t, "expired-2024-02-20.csv", at.Filename)
	assert.Equal(t, "text/csv", at.ContentType)
	csv, err := base64.StdEncoding.DecodeString(at.Content.String())
	require.NoError(t, err)
	assert.Equal(t, "student_id,student_name,last_period_end\ns1,Asha,2024-01-31\ns2,Meena,2024-01-15\n", string(csv))
}
