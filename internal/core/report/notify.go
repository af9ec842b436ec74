package report

import (
	"context"
	"errors"
	"fmt"
	"strings"

	awsclients "hajj-assistant/internal/common/aws"
	apperrors "hajj-assistant/internal/common/errors"
	"hajj-assistant/internal/common/logger"
	"hajj-assistant/internal/core/validate"
	"hajj-assistant/internal/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	sestypes "github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	snstypes "github.com/aws/aws-sdk-go-v2/service/sns/types"
)

// Notifier announces a filed report. Failures never undo the filing.
type Notifier struct {
	sns       awsclients.SNSAPI
	topicARN  string
	ses       awsclients.SESAPI
	fromEmail string
	logger    logger.Logger
}

// NewNotifier builds a notifier. A nil client disables that channel.
func NewNotifier(snsClient awsclients.SNSAPI, topicARN string, sesClient awsclients.SESAPI, fromEmail string, log logger.Logger) *Notifier {
	return &Notifier{
		sns:       snsClient,
		topicARN:  topicARN,
		ses:       sesClient,
		fromEmail: fromEmail,
		logger:    log.With(map[string]interface{}{"component": "report-notifier"}),
	}
}

// Notify alerts operators over SNS and, when the reporter left an email
// address, acknowledges the report over SES.
func (n *Notifier) Notify(ctx context.Context, r models.Report) error {
	var errs []error
	if n.sns != nil && n.topicARN != "" {
		if err := n.alert(ctx, r); err != nil {
			errs = append(errs, apperrors.NewNotificationSendFailedError("sns", err))
		}
	}
	if n.ses != nil && n.fromEmail != "" {
		if email, kind := validate.Contact(r.Contact); kind == validate.ContactEmail {
			if err := n.acknowledge(ctx, r, email); err != nil {
				errs = append(errs, apperrors.NewNotificationSendFailedError("ses", err))
			}
		}
	}
	if err := errors.Join(errs...); err != nil {
		n.logger.Warn("report notification failed", map[string]interface{}{
			"referenceId": r.ReferenceID,
			"error":       err.Error(),
		})
		return err
	}
	return nil
}

func (n *Notifier) alert(ctx context.Context, r models.Report) error {
	status := string(r.Authorization)
	if status == "" {
		status = "unmatched"
	}
	var lines []string
	lines = append(lines, fmt.Sprintf("Reference: %s", r.ReferenceID))
	lines = append(lines, fmt.Sprintf("Agency: %s", r.AgencyName))
	lines = append(lines, fmt.Sprintf("City: %s", r.City))
	lines = append(lines, fmt.Sprintf("Registry status: %s", status))
	lines = append(lines, fmt.Sprintf("Submitted: %s", r.SubmittedAt.Format("2006-01-02 15:04 MST")))
	lines = append(lines, "", r.Details)

	_, err := n.sns.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(n.topicARN),
		Subject:  aws.String("Hajj fraud report " + r.ReferenceID),
		Message:  aws.String(strings.Join(lines, "\n")),
		MessageAttributes: map[string]snstypes.MessageAttributeValue{
			"authorization": {DataType: aws.String("String"), StringValue: aws.String(status)},
		},
	})
	return err
}

var acknowledgements = map[models.Language]struct{ subject, body string }{
	models.LanguageEnglish: {
		subject: "Your report %s was received",
		body:    "Thank you for reporting %s. Your reference is %s. Keep it for any follow-up.",
	},
	models.LanguageArabic: {
		subject: "تم استلام بلاغك %s",
		body:    "شكراً لإبلاغك عن %s. رقم المرجع الخاص بك هو %s. احتفظ به للمتابعة.",
	},
	models.LanguageUrdu: {
		subject: "آپ کی رپورٹ %s موصول ہو گئی",
		body:    "%s کی رپورٹ کرنے کا شکریہ۔ آپ کا حوالہ نمبر %s ہے۔ اسے آئندہ کے لیے محفوظ رکھیں۔",
	},
}

func (n *Notifier) acknowledge(ctx context.Context, r models.Report, email string) error {
	msg, ok := acknowledgements[r.Language]
	if !ok {
		msg = acknowledgements[models.LanguageEnglish]
	}
	_, err := n.ses.SendEmail(ctx, &ses.SendEmailInput{
		Source:      aws.String(n.fromEmail),
		Destination: &sestypes.Destination{ToAddresses: []string{email}},
		Message: &sestypes.Message{
			Subject: &sestypes.Content{Data: aws.String(fmt.Sprintf(msg.subject, r.ReferenceID)), Charset: aws.String("UTF-8")},
			Body: &sestypes.Body{
				Text: &sestypes.Content{Data: aws.String(fmt.Sprintf(msg.body, r.AgencyName, r.ReferenceID)), Charset: aws.String("UTF-8")},
			},
		},
	})
	return err
}
