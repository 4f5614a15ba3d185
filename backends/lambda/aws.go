package lambda

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	lambdatypes "github.com/aws/aws-sdk-go-v2/service/lambda/types"
	"github.com/rs/zerolog"
)

// AWSClients holds the SDK clients of one region.
type AWSClients struct {
	Lambda     *lambda.Client
	CloudWatch *cloudwatchlogs.Client
}

// NewAWSClients loads the default credential chain for cfg.Region. With an
// endpoint URL both clients target it with static credentials, which is how
// the simulator is reached.
func NewAWSClients(ctx context.Context, cfg Config) (*AWSClients, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	var endpoint *string
	if cfg.EndpointURL != "" {
		endpoint = aws.String(cfg.EndpointURL)
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider("lemma", "lemma", ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return &AWSClients{
		Lambda:     lambda.NewFromConfig(awsCfg, func(o *lambda.Options) { o.BaseEndpoint = endpoint }),
		CloudWatch: cloudwatchlogs.NewFromConfig(awsCfg, func(o *cloudwatchlogs.Options) { o.BaseEndpoint = endpoint }),
	}, nil
}

// Platform returns the lifecycle platform backed by the Lambda client.
func (c *AWSClients) Platform() *AWSPlatform {
	return NewAWSPlatform(c.Lambda)
}

// Logs returns a reader over the instances' CloudWatch log groups.
func (c *AWSClients) Logs(logger zerolog.Logger) *LogReader {
	return NewLogReader(c.CloudWatch, logger)
}

// AWSPlatform implements Platform on the Lambda API.
type AWSPlatform struct {
	client *lambda.Client
}

// NewAWSPlatform wraps a Lambda client.
func NewAWSPlatform(client *lambda.Client) *AWSPlatform {
	return &AWSPlatform{client: client}
}

func (p *AWSPlatform) CreateFunction(ctx context.Context, def FunctionDefinition) error {
	_, err := p.client.CreateFunction(ctx, &lambda.CreateFunctionInput{
		FunctionName: aws.String(def.Name),
		Role:         aws.String(def.Role),
		PackageType:  lambdatypes.PackageTypeImage,
		Code: &lambdatypes.FunctionCode{
			ImageUri: aws.String(def.Image),
		},
		Timeout:    aws.Int32(def.Timeout),
		MemorySize: aws.Int32(def.MemoryMB),
		EphemeralStorage: &lambdatypes.EphemeralStorage{
			Size: aws.Int32(def.StorageMB),
		},
		Publish: true,
		Environment: &lambdatypes.Environment{
			Variables: def.Env,
		},
		Architectures: []lambdatypes.Architecture{lambdatypes.ArchitectureX8664},
		LoggingConfig: &lambdatypes.LoggingConfig{
			LogFormat:           lambdatypes.LogFormatJson,
			ApplicationLogLevel: lambdatypes.ApplicationLogLevelTrace,
			SystemLogLevel:      lambdatypes.SystemLogLevelDebug,
		},
		Tags: def.Tags,
	})
	return mapAWSError(err, "create", def.Name)
}

func (p *AWSPlatform) GetFunction(ctx context.Context, name string) (FunctionStatus, error) {
	out, err := p.client.GetFunction(ctx, &lambda.GetFunctionInput{
		FunctionName: aws.String(name),
	})
	if err != nil {
		return FunctionStatus{}, mapAWSError(err, "get", name)
	}
	if out.Configuration == nil {
		return FunctionStatus{}, fmt.Errorf("get %s: response has no configuration", name)
	}
	return FunctionStatus{
		State:  string(out.Configuration.State),
		Reason: aws.ToString(out.Configuration.StateReason),
	}, nil
}

func (p *AWSPlatform) DeleteFunction(ctx context.Context, name string) error {
	_, err := p.client.DeleteFunction(ctx, &lambda.DeleteFunctionInput{
		FunctionName: aws.String(name),
	})
	return mapAWSError(err, "delete", name)
}

func (p *AWSPlatform) CreateFunctionURL(ctx context.Context, name string) (string, error) {
	out, err := p.client.CreateFunctionUrlConfig(ctx, &lambda.CreateFunctionUrlConfigInput{
		FunctionName: aws.String(name),
		AuthType:     lambdatypes.FunctionUrlAuthTypeNone,
		InvokeMode:   lambdatypes.InvokeModeResponseStream,
	})
	if err != nil {
		return "", mapAWSError(err, "create url for", name)
	}
	return aws.ToString(out.FunctionUrl), nil
}

func (p *AWSPlatform) AddPermission(ctx context.Context, name string, perm Permission) error {
	input := &lambda.AddPermissionInput{
		FunctionName:        aws.String(name),
		StatementId:         aws.String(perm.StatementID),
		Action:              aws.String(perm.Action),
		Principal:           aws.String(perm.Principal),
		FunctionUrlAuthType: lambdatypes.FunctionUrlAuthType(perm.FunctionURLAuthType),
	}
	if perm.InvokedViaFunctionURL {
		input.InvokedViaFunctionUrl = aws.Bool(true)
	}
	_, err := p.client.AddPermission(ctx, input)
	return mapAWSError(err, "add permission to", name)
}

func (p *AWSPlatform) ListFunctions(ctx context.Context, marker string) (FunctionPage, error) {
	input := &lambda.ListFunctionsInput{}
	if marker != "" {
		input.Marker = aws.String(marker)
	}
	out, err := p.client.ListFunctions(ctx, input)
	if err != nil {
		return FunctionPage{}, mapAWSError(err, "list", "functions")
	}
	page := FunctionPage{
		Names:      make([]string, 0, len(out.Functions)),
		NextMarker: aws.ToString(out.NextMarker),
	}
	for _, fn := range out.Functions {
		page.Names = append(page.Names, aws.ToString(fn.FunctionName))
	}
	return page, nil
}
