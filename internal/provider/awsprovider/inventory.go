package awsprovider

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/aws-sdk-go-v2/service/rds"
	rdstypes "github.com/aws/aws-sdk-go-v2/service/rds/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/tbourn/go-spend-reconciler/internal/domain"
	"github.com/tbourn/go-spend-reconciler/internal/provider"
)

// globalRegion is where account-wide APIs (region listing, S3 buckets) are
// called, and the location reported for buckets without a constraint.
const globalRegion = "us-east-1"

// Regions lists regions enabled for the account.
func (p *Provider) Regions(ctx context.Context, creds provider.Credentials) ([]string, error) {
	out, err := ec2.NewFromConfig(p.scoped(creds, globalRegion)).DescribeRegions(ctx, &ec2.DescribeRegionsInput{
		AllRegions: aws.Bool(false),
	})
	if err != nil {
		return nil, fmt.Errorf("describe regions: %w", err)
	}
	regions := make([]string, 0, len(out.Regions))
	for _, r := range out.Regions {
		if name := aws.ToString(r.RegionName); name != "" {
			regions = append(regions, name)
		}
	}
	return regions, nil
}

// ScanRegion discovers EC2 instances, EBS volumes, Elastic IPs and RDS
// instances in region. The four discoveries run concurrently; any failure
// fails the region.
func (p *Provider) ScanRegion(ctx context.Context, creds provider.Credentials, region string) ([]provider.Resource, error) {
	cfg := p.scoped(creds, region)
	ec2c := ec2.NewFromConfig(cfg)
	rdsc := rds.NewFromConfig(cfg)

	var (
		mu  sync.Mutex
		out []provider.Resource
	)
	collect := func(rs []provider.Resource) {
		mu.Lock()
		out = append(out, rs...)
		mu.Unlock()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rs, err := ec2Instances(gctx, ec2c, region)
		collect(rs)
		return err
	})
	g.Go(func() error {
		rs, err := ebsVolumes(gctx, ec2c, region)
		collect(rs)
		return err
	})
	g.Go(func() error {
		rs, err := elasticIPs(gctx, ec2c, region)
		collect(rs)
		return err
	})
	g.Go(func() error {
		rs, err := rdsInstances(gctx, rdsc, region)
		collect(rs)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func ec2Instances(ctx context.Context, c *ec2.Client, region string) ([]provider.Resource, error) {
	var out []provider.Resource
	pg := ec2.NewDescribeInstancesPaginator(c, &ec2.DescribeInstancesInput{})
	for pg.HasMorePages() {
		page, err := pg.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("describe instances: %w", err)
		}
		for _, res := range page.Reservations {
			for _, in := range res.Instances {
				state := ""
				if in.State != nil {
					state = string(in.State.Name)
				}
				out = append(out, provider.Resource{
					Service:    domain.ServiceEC2,
					ResourceID: aws.ToString(in.InstanceId),
					Region:     region,
					State:      state,
					Tags:       ec2Tags(in.Tags),
					Details: map[string]any{
						"instanceType": string(in.InstanceType),
						"launchTime":   formatTime(in.LaunchTime),
					},
				})
			}
		}
	}
	return out, nil
}

func ebsVolumes(ctx context.Context, c *ec2.Client, region string) ([]provider.Resource, error) {
	var out []provider.Resource
	pg := ec2.NewDescribeVolumesPaginator(c, &ec2.DescribeVolumesInput{})
	for pg.HasMorePages() {
		page, err := pg.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("describe volumes: %w", err)
		}
		for _, v := range page.Volumes {
			out = append(out, provider.Resource{
				Service:    domain.ServiceEBS,
				ResourceID: aws.ToString(v.VolumeId),
				Region:     region,
				State:      string(v.State),
				Tags:       ec2Tags(v.Tags),
				Details: map[string]any{
					"size":       aws.ToInt32(v.Size),
					"type":       string(v.VolumeType),
					"createTime": formatTime(v.CreateTime),
				},
			})
		}
	}
	return out, nil
}

func elasticIPs(ctx context.Context, c *ec2.Client, region string) ([]provider.Resource, error) {
	resp, err := c.DescribeAddresses(ctx, &ec2.DescribeAddressesInput{})
	if err != nil {
		return nil, fmt.Errorf("describe addresses: %w", err)
	}
	out := make([]provider.Resource, 0, len(resp.Addresses))
	for _, a := range resp.Addresses {
		state := "unassociated"
		if a.AssociationId != nil {
			state = "associated"
		}
		out = append(out, provider.Resource{
			Service:    domain.ServiceEIP,
			ResourceID: aws.ToString(a.AllocationId),
			Region:     region,
			State:      state,
			Tags:       ec2Tags(a.Tags),
			Details: map[string]any{
				"publicIp": aws.ToString(a.PublicIp),
				"domain":   string(a.Domain),
			},
		})
	}
	return out, nil
}

func rdsInstances(ctx context.Context, c *rds.Client, region string) ([]provider.Resource, error) {
	var out []provider.Resource
	pg := rds.NewDescribeDBInstancesPaginator(c, &rds.DescribeDBInstancesInput{})
	for pg.HasMorePages() {
		page, err := pg.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("describe db instances: %w", err)
		}
		for _, db := range page.DBInstances {
			out = append(out, provider.Resource{
				Service:    domain.ServiceRDS,
				ResourceID: aws.ToString(db.DBInstanceIdentifier),
				Region:     region,
				State:      aws.ToString(db.DBInstanceStatus),
				Tags:       rdsTags(db.TagList),
				Details: map[string]any{
					"engine":        aws.ToString(db.Engine),
					"instanceClass": aws.ToString(db.DBInstanceClass),
				},
			})
		}
	}
	return out, nil
}

// ScanGlobal lists S3 buckets and resolves each bucket's region. A bucket
// whose location cannot be read is reported in globalRegion.
func (p *Provider) ScanGlobal(ctx context.Context, creds provider.Credentials) ([]provider.Resource, error) {
	c := s3.NewFromConfig(p.scoped(creds, globalRegion))
	resp, err := c.ListBuckets(ctx, &s3.ListBucketsInput{})
	if err != nil {
		return nil, fmt.Errorf("list buckets: %w", err)
	}

	out := make([]provider.Resource, len(resp.Buckets))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for i, b := range resp.Buckets {
		name := aws.ToString(b.Name)
		created := formatTime(b.CreationDate)
		g.Go(func() error {
			location := globalRegion
			loc, err := c.GetBucketLocation(gctx, &s3.GetBucketLocationInput{Bucket: aws.String(name)})
			if err != nil {
				zerolog.Ctx(ctx).Warn().Err(err).Str("bucket", name).
					Msg("bucket location unavailable, defaulting")
			} else if lc := string(loc.LocationConstraint); lc != "" {
				location = lc
			}
			out[i] = provider.Resource{
				Service:    domain.ServiceS3,
				ResourceID: name,
				Region:     location,
				State:      "available",
				Tags:       []domain.Tag{},
				Details:    map[string]any{"creationDate": created},
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func ec2Tags(in []ec2types.Tag) []domain.Tag {
	out := make([]domain.Tag, 0, len(in))
	for _, t := range in {
		out = append(out, domain.Tag{Key: aws.ToString(t.Key), Value: aws.ToString(t.Value)})
	}
	return out
}

func rdsTags(in []rdstypes.Tag) []domain.Tag {
	out := make([]domain.Tag, 0, len(in))
	for _, t := range in {
		out = append(out, domain.Tag{Key: aws.ToString(t.Key), Value: aws.ToString(t.Value)})
	}
	return out
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
