package lambda

import (
	"context"
	"fmt"
	"io"
	"iter"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	cwltypes "github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs/types"
	"github.com/rs/zerolog"
)

// CloudWatchAPI is the subset of the CloudWatch Logs client used by LogReader.
type CloudWatchAPI interface {
	DescribeLogStreams(ctx context.Context, params *cloudwatchlogs.DescribeLogStreamsInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.DescribeLogStreamsOutput, error)
	GetLogEvents(ctx context.Context, params *cloudwatchlogs.GetLogEventsInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.GetLogEventsOutput, error)
}

// LogEvent is a single log line of an instance.
type LogEvent struct {
	Timestamp time.Time
	Message   string
}

// LogReader reads instance logs from CloudWatch Logs.
type LogReader struct {
	client CloudWatchAPI
	logger zerolog.Logger
}

// NewLogReader creates a log reader.
func NewLogReader(client CloudWatchAPI, logger zerolog.Logger) *LogReader {
	return &LogReader{client: client, logger: logger}
}

// LogGroupName returns the log group Lambda writes to for a function.
func LogGroupName(name string) string {
	return fmt.Sprintf("/aws/lambda/%s", name)
}

// Events yields the events of the most recent log stream of an instance.
// With tail > 0 only the last tail events are returned, otherwise the whole
// stream is read from the start, page by page.
func (r *LogReader) Events(ctx context.Context, name string, tail int32) iter.Seq2[LogEvent, error] {
	return func(yield func(LogEvent, error) bool) {
		logGroupName := LogGroupName(name)
		streams, err := r.client.DescribeLogStreams(ctx, &cloudwatchlogs.DescribeLogStreamsInput{
			LogGroupName: aws.String(logGroupName),
			OrderBy:      cwltypes.OrderByLastEventTime,
			Descending:   aws.Bool(true),
			Limit:        aws.Int32(1),
		})
		if err != nil {
			yield(LogEvent{}, mapAWSError(err, "read logs of", name))
			return
		}
		if len(streams.LogStreams) == 0 {
			r.logger.Debug().Str("logGroup", logGroupName).Msg("no log streams")
			return
		}

		input := &cloudwatchlogs.GetLogEventsInput{
			LogGroupName:  aws.String(logGroupName),
			LogStreamName: streams.LogStreams[0].LogStreamName,
			StartFromHead: aws.Bool(tail <= 0),
		}
		if tail > 0 {
			input.Limit = aws.Int32(tail)
		}

		for {
			result, err := r.client.GetLogEvents(ctx, input)
			if err != nil {
				yield(LogEvent{}, mapAWSError(err, "read logs of", name))
				return
			}
			for _, event := range result.Events {
				if event.Message == nil {
					continue
				}
				if !yield(LogEvent{
					Timestamp: time.UnixMilli(aws.ToInt64(event.Timestamp)).UTC(),
					Message:   strings.TrimSuffix(*event.Message, "\n"),
				}, nil) {
					return
				}
			}
			// the forward token repeats once the end of the stream is reached
			next := aws.ToString(result.NextForwardToken)
			if tail > 0 || len(result.Events) == 0 || next == "" || next == aws.ToString(input.NextToken) {
				return
			}
			input.NextToken = aws.String(next)
		}
	}
}

// WriteLogEvent writes one event as a line, optionally prefixed by its
// timestamp.
func WriteLogEvent(w io.Writer, event LogEvent, timestamps bool) error {
	line := event.Message + "\n"
	if timestamps {
		line = event.Timestamp.Format(time.RFC3339Nano) + " " + line
	}
	_, err := io.WriteString(w, line)
	return err
}
