package expiry

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"net/mail"

	"github.com/trezcool/maktaba/core"
)

const reportTemplate = "expiration_report"

// ReportNotifier emails the sweep report (with a CSV of the expired students) to the library admin.
type ReportNotifier struct {
	mailSvc core.EmailService
	to      mail.Address
	logger  core.Logger
}

// NewReportNotifier returns nil when no admin email is configured.
func NewReportNotifier(mailSvc core.EmailService, adminEmail string, logger core.Logger) *ReportNotifier {
	if adminEmail == "" || mailSvc == nil {
		return nil
	}
	return &ReportNotifier{
		mailSvc: mailSvc,
		to:      mail.Address{Address: adminEmail},
		logger:  logger,
	}
}

func (n *ReportNotifier) Notify(res Result) {
	if n == nil {
		return
	}
	msg := &core.EmailMessage{
		To:           []mail.Address{n.to},
		Subject:      fmt.Sprintf("%d student(s) removed after the grace period", res.ProcessedCount),
		TemplateName: reportTemplate,
		TemplateData: res,
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write([]string{"student_id", "student_name", "last_period_end"})
	for _, c := range res.Students {
		_ = w.Write([]string{c.StudentID, c.StudentName, c.PeriodEnd.String()})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		n.logger.Error(fmt.Sprintf("writing expiration report csv: %v", err), err)
	} else if err = msg.Attach(&buf, "expired-"+res.Date.String()+".csv", "text/csv"); err != nil {
		n.logger.Error(fmt.Sprintf("attaching expiration report csv: %v", err), err)
	}

	n.mailSvc.SendMessages(msg)
}
