// Package awsprovider implements the provider capability on AWS with the
// SDK v2: STS for role assumption and identity, Cost Explorer for billing,
// EC2 and RDS for regional inventory, and S3 for buckets.
package awsprovider

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/costexplorer"
	cetypes "github.com/aws/aws-sdk-go-v2/service/costexplorer/types"
	"github.com/aws/aws-sdk-go-v2/service/sts"

	"github.com/tbourn/go-spend-reconciler/internal/provider"
)

// sessionDuration is the lifetime of assumed-role credentials.
const sessionDuration = 15 * time.Minute

// costMetric is the Cost Explorer metric read for snapshots.
const costMetric = "UnblendedCost"

// Provider talks to AWS. The base config carries the application's own
// identity and is only used directly for AssumeRole.
type Provider struct {
	base aws.Config
	home string
}

var (
	_ provider.CredentialBroker  = (*Provider)(nil)
	_ provider.CloudDataProvider = (*Provider)(nil)
)

// New loads the default AWS configuration for homeRegion.
func New(ctx context.Context, homeRegion string) (*Provider, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(homeRegion))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return &Provider{base: cfg, home: homeRegion}, nil
}

// NewFromConfig wraps an already loaded configuration.
func NewFromConfig(cfg aws.Config) *Provider {
	return &Provider{base: cfg, home: cfg.Region}
}

// scoped returns a config that signs with creds in region.
func (p *Provider) scoped(creds provider.Credentials, region string) aws.Config {
	c := p.base.Copy()
	c.Region = region
	c.Credentials = aws.NewCredentialsCache(credentials.NewStaticCredentialsProvider(
		creds.AccessKeyID, creds.SecretAccessKey, creds.SessionToken,
	))
	return c
}

// AssumeRole exchanges the role reference for 15-minute credentials.
func (p *Provider) AssumeRole(ctx context.Context, roleARN, externalID, sessionName string) (provider.Credentials, error) {
	out, err := sts.NewFromConfig(p.base).AssumeRole(ctx, &sts.AssumeRoleInput{
		RoleArn:         aws.String(roleARN),
		ExternalId:      aws.String(externalID),
		RoleSessionName: aws.String(sessionName),
		DurationSeconds: aws.Int32(int32(sessionDuration / time.Second)),
	})
	if err != nil {
		return provider.Credentials{}, fmt.Errorf("assume role: %w", err)
	}
	if out.Credentials == nil {
		return provider.Credentials{}, errors.New("assume role: no credentials returned")
	}
	return provider.Credentials{
		AccessKeyID:     aws.ToString(out.Credentials.AccessKeyId),
		SecretAccessKey: aws.ToString(out.Credentials.SecretAccessKey),
		SessionToken:    aws.ToString(out.Credentials.SessionToken),
		Expires:         aws.ToTime(out.Credentials.Expiration),
	}, nil
}

// AccountIdentity returns the AWS account id behind creds.
func (p *Provider) AccountIdentity(ctx context.Context, creds provider.Credentials) (string, error) {
	out, err := sts.NewFromConfig(p.scoped(creds, p.home)).GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return "", fmt.Errorf("get caller identity: %w", err)
	}
	return aws.ToString(out.Account), nil
}

// CostsByService returns unblended cost grouped by SERVICE for [start, end),
// summed over every returned time bucket and page.
func (p *Provider) CostsByService(ctx context.Context, creds provider.Credentials, start, end time.Time) (*provider.CostReport, error) {
	client := costexplorer.NewFromConfig(p.scoped(creds, p.home))

	in := &costexplorer.GetCostAndUsageInput{
		TimePeriod: &cetypes.DateInterval{
			Start: aws.String(start.Format("2006-01-02")),
			End:   aws.String(end.Format("2006-01-02")),
		},
		Granularity: cetypes.GranularityMonthly,
		Metrics:     []string{costMetric},
		GroupBy: []cetypes.GroupDefinition{
			{
				Type: cetypes.GroupDefinitionTypeDimension,
				Key:  aws.String("SERVICE"),
			},
		},
	}

	report := &provider.CostReport{}
	index := map[string]int{}
	for {
		out, err := client.GetCostAndUsage(ctx, in)
		if err != nil {
			return nil, fmt.Errorf("get cost and usage: %w", err)
		}
		for _, byTime := range out.ResultsByTime {
			for _, g := range byTime.Groups {
				if len(g.Keys) == 0 {
					continue
				}
				m, ok := g.Metrics[costMetric]
				if !ok || m.Amount == nil {
					continue
				}
				amount, err := strconv.ParseFloat(aws.ToString(m.Amount), 64)
				if err != nil {
					return nil, fmt.Errorf("parse amount for %q: %w", g.Keys[0], err)
				}
				if report.Currency == "" && m.Unit != nil {
					report.Currency = aws.ToString(m.Unit)
				}
				name := g.Keys[0]
				if i, seen := index[name]; seen {
					report.Services[i].Amount += amount
					continue
				}
				index[name] = len(report.Services)
				report.Services = append(report.Services, provider.ServiceCost{Name: name, Amount: amount})
			}
		}
		if out.NextPageToken == nil || aws.ToString(out.NextPageToken) == "" {
			break
		}
		in.NextPageToken = out.NextPageToken
	}
	return report, nil
}
