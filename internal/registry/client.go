package registry

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/aws/aws-sdk-go-v2/service/rds"
	"github.com/aws/aws-sdk-go-v2/service/sts"

	"github.com/yairfalse/aurora-snapshot-copier/internal/cache"
	"github.com/yairfalse/aurora-snapshot-copier/internal/errors"
	"github.com/yairfalse/aurora-snapshot-copier/internal/logger"
)

// RDSClientInterface defines the RDS client methods we use
type RDSClientInterface interface {
	DescribeDBClusterSnapshots(ctx context.Context, params *rds.DescribeDBClusterSnapshotsInput, optFns ...func(*rds.Options)) (*rds.DescribeDBClusterSnapshotsOutput, error)
	CopyDBClusterSnapshot(ctx context.Context, params *rds.CopyDBClusterSnapshotInput, optFns ...func(*rds.Options)) (*rds.CopyDBClusterSnapshotOutput, error)
	AddTagsToResource(ctx context.Context, params *rds.AddTagsToResourceInput, optFns ...func(*rds.Options)) (*rds.AddTagsToResourceOutput, error)
	RemoveTagsFromResource(ctx context.Context, params *rds.RemoveTagsFromResourceInput, optFns ...func(*rds.Options)) (*rds.RemoveTagsFromResourceOutput, error)
	DeleteDBClusterSnapshot(ctx context.Context, params *rds.DeleteDBClusterSnapshotInput, optFns ...func(*rds.Options)) (*rds.DeleteDBClusterSnapshotOutput, error)
}

// KMSClientInterface defines the KMS client methods we use
type KMSClientInterface interface {
	ListAliases(ctx context.Context, params *kms.ListAliasesInput, optFns ...func(*kms.Options)) (*kms.ListAliasesOutput, error)
}

// STSClientInterface defines the STS client methods we use
type STSClientInterface interface {
	GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
}

// ClientConfig holds configuration for AWS client creation
type ClientConfig struct {
	Region     string
	Profile    string
	MaxRetries int
	Timeout    time.Duration
}

// LoadAWSConfig loads the shared AWS configuration with retry and timeout settings
func LoadAWSConfig(ctx context.Context, clientConfig ClientConfig) (aws.Config, error) {
	if clientConfig.MaxRetries == 0 {
		clientConfig.MaxRetries = 3
	}
	if clientConfig.Timeout == 0 {
		clientConfig.Timeout = 30 * time.Second
	}

	var opts []func(*config.LoadOptions) error

	if clientConfig.Profile != "" {
		opts = append(opts, config.WithSharedConfigProfile(clientConfig.Profile))
	}

	if clientConfig.Region != "" {
		opts = append(opts, config.WithRegion(clientConfig.Region))
	}

	opts = append(opts, config.WithRetryer(func() aws.Retryer {
		return retry.AddWithMaxAttempts(retry.NewStandard(), clientConfig.MaxRetries)
	}))

	opts = append(opts, config.WithHTTPClient(awshttp.NewBuildableClient().WithTimeout(clientConfig.Timeout)))

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return cfg, nil
}

// DefaultKeyCacheTTL bounds how long a resolved default key id is reused
const DefaultKeyCacheTTL = time.Hour

// Provider hands out a Registry per region
type Provider interface {
	ForRegion(region string) (*Registry, error)
}

// ClientProvider builds and caches SDK-backed registries per region
type ClientProvider struct {
	cfg  aws.Config
	log  logger.Logger
	keys *cache.TTLCache[string]

	mu         sync.Mutex
	registries map[string]*Registry
}

// NewClientProvider creates a provider sharing cfg across regions
func NewClientProvider(cfg aws.Config, log logger.Logger) *ClientProvider {
	if log == nil {
		log = logger.Nop()
	}
	return &ClientProvider{
		cfg:        cfg,
		log:        log,
		keys:       cache.New[string](DefaultKeyCacheTTL),
		registries: make(map[string]*Registry),
	}
}

// ForRegion returns the registry for region, creating its clients on first use
func (p *ClientProvider) ForRegion(region string) (*Registry, error) {
	if region == "" {
		return nil, errors.Configuration("region is required")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if r, ok := p.registries[region]; ok {
		return r, nil
	}

	rdsClient := rds.NewFromConfig(p.cfg, func(o *rds.Options) {
		o.Region = region
	})
	kmsClient := kms.NewFromConfig(p.cfg, func(o *kms.Options) {
		o.Region = region
	})

	r := New(region, rdsClient, kmsClient, p.log).WithKeyCache(p.keys)
	p.registries[region] = r
	return r, nil
}

// Region returns the region of the shared configuration
func (p *ClientProvider) Region() string {
	return p.cfg.Region
}

// ValidateCredentials tests AWS credentials by making a simple API call
func (p *ClientProvider) ValidateCredentials(ctx context.Context) (string, error) {
	if err := validateAWSCredentials(ctx, p.cfg); err != nil {
		return "", err
	}
	return CallerIdentity(ctx, sts.NewFromConfig(p.cfg))
}

// CallerIdentity returns the ARN of the calling principal
func CallerIdentity(ctx context.Context, client STSClientInterface) (string, error) {
	result, err := client.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return "", errors.AWSCredentialsError(err)
	}

	if result.Account == nil || result.Arn == nil {
		return "", errors.New(errors.ErrorTypeAuthentication, "received invalid identity information from AWS")
	}

	return *result.Arn, nil
}

// StaticProvider serves a fixed set of registries, keyed by region
type StaticProvider map[string]*Registry

// ForRegion returns the registry configured for region
func (p StaticProvider) ForRegion(region string) (*Registry, error) {
	r, ok := p[region]
	if !ok {
		return nil, errors.Configuration("no registry configured for region %q", region)
	}
	return r, nil
}

// validateAWSCredentials checks that credentials can be retrieved and are current
func validateAWSCredentials(ctx context.Context, cfg aws.Config) error {
	if cfg.Credentials == nil {
		return errors.AWSCredentialsError(fmt.Errorf("no credential provider configured"))
	}

	creds, err := cfg.Credentials.Retrieve(ctx)
	if err != nil {
		return enhanceCredentialError(err)
	}

	if creds.AccessKeyID == "" {
		return errors.AWSCredentialsError(fmt.Errorf("AWS Access Key ID is empty"))
	}

	if creds.SecretAccessKey == "" {
		return errors.AWSCredentialsError(fmt.Errorf("AWS Secret Access Key is empty"))
	}

	if !creds.Expires.IsZero() && time.Now().After(creds.Expires) {
		return errors.AWSCredentialsError(fmt.Errorf("ExpiredToken: credentials expired at %v", creds.Expires))
	}

	return nil
}

// enhanceCredentialError adds a hint about where credentials are looked up
func enhanceCredentialError(err error) error {
	copierErr := errors.AWSCredentialsError(err)
	if os.Getenv("AWS_ACCESS_KEY_ID") == "" && os.Getenv("AWS_PROFILE") == "" {
		copierErr.WithCause("no AWS credentials configured in the environment")
	}
	return copierErr
}
