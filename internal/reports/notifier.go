package reports

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
	"go.uber.org/zap"

	"carbon-scribe/mrv/mrv-backend/internal/carbon/calculation"
)

// Publisher is the SNS operation the notifier needs
type Publisher interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// Notifier announces reports that are ready for third-party verification
type Notifier struct {
	publisher Publisher
	topicARN  string
	logger    *zap.Logger
}

// NewNotifier creates a notifier publishing to topicARN
func NewNotifier(publisher Publisher, topicARN string, logger *zap.Logger) *Notifier {
	return &Notifier{publisher: publisher, topicARN: topicARN, logger: logger}
}

// NotifyReady publishes a summary of the report. Pending reports are skipped.
func (n *Notifier) NotifyReady(ctx context.Context, report *calculation.VerificationReport) error {
	if !report.IsReady() {
		return nil
	}

	summary := Summarize(report)
	message, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to encode notification: %w", err)
	}

	out, err := n.publisher.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(n.topicARN),
		Subject:  aws.String("Carbon report ready for verification"),
		Message:  aws.String(string(message)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"farm_id": {
				DataType:    aws.String("String"),
				StringValue: aws.String(report.FarmID),
			},
			"model_type": {
				DataType:    aws.String("String"),
				StringValue: aws.String(string(report.ModelType)),
			},
			"document_sha256": {
				DataType:    aws.String("String"),
				StringValue: aws.String(summary.DocumentSHA256),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to publish report %s: %w", report.ReportID, err)
	}

	n.logger.Info("Published verification notification",
		zap.String("farm_id", report.FarmID),
		zap.String("report_id", report.ReportID.String()),
		zap.String("message_id", aws.ToString(out.MessageId)))
	return nil
}
