package config

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/credentials/stscreds"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

// AWS loads the AWS configuration for the DynamoDB backend from the
// default chain, with the configured region, static credentials and
// assumed role applied.
func (c Config) AWS(ctx context.Context) (aws.Config, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if c.DynamoDB.Region != "" {
		opts = append(opts, awsconfig.WithRegion(c.DynamoDB.Region))
	}
	if c.DynamoDB.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(c.DynamoDB.AccessKeyID, c.DynamoDB.SecretAccessKey, ""),
		))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("load aws config: %w", err)
	}

	if c.DynamoDB.AssumeRoleARN != "" {
		provider := stscreds.NewAssumeRoleProvider(sts.NewFromConfig(cfg), c.DynamoDB.AssumeRoleARN,
			func(o *stscreds.AssumeRoleOptions) {
				o.RoleSessionName = "registers"
			})
		cfg.Credentials = aws.NewCredentialsCache(provider)
	}
	return cfg, nil
}

// DynamoDBClient returns a client for the configured endpoint.
func (c Config) DynamoDBClient(ctx context.Context) (*dynamodb.Client, error) {
	cfg, err := c.AWS(ctx)
	if err != nil {
		return nil, err
	}
	return dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
		if c.DynamoDB.Endpoint != "" {
			o.BaseEndpoint = aws.String(c.DynamoDB.Endpoint)
		}
	}), nil
}
