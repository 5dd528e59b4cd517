package adapter

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/google/uuid"
	"github.com/juju/clock"
	"github.com/juju/retry"
	"golang.org/x/crypto/ssh"
)

// EC2Options matches spec.md 6's recognised EC2 option set, forwarded
// verbatim into the RunInstances call; Overseer does not interpret them.
type EC2Options struct {
	Prefix           string
	AMI              string
	InstanceType     string
	Spot             bool
	Subnet           string
	Region           string
	KeyName          string
	SecurityGroupIDs []string

	// SSH reachability probe settings, used by Connect.
	SSHUser           string
	SSHPort           int
	SSHPrivateKeyPath string
}

// EC2 is the non-trivial reference adapter (spec.md 9): it provisions
// through the AWS SDK, optionally requests spot capacity, and waits for SSH
// reachability before declaring a node connected.
type EC2 struct {
	opts   EC2Options
	client *ec2.Client
	clock  clock.Clock
}

// NewEC2 loads AWS credentials/config for opts.Region and builds an EC2
// client.
func NewEC2(ctx context.Context, opts EC2Options) (*EC2, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(opts.Region))
	if err != nil {
		return nil, fmt.Errorf("adapter: ec2: load aws config: %w", err)
	}
	return &EC2{opts: opts, client: ec2.NewFromConfig(cfg), clock: clock.WallClock}, nil
}

func (a *EC2) Spawn(ctx context.Context) (Spawned, error) {
	name := fmt.Sprintf("%s-%s", a.opts.Prefix, uuid.NewString())

	input := &ec2.RunInstancesInput{
		ImageId:          aws.String(a.opts.AMI),
		InstanceType:     ec2types.InstanceType(a.opts.InstanceType),
		MinCount:         aws.Int32(1),
		MaxCount:         aws.Int32(1),
		SubnetId:         aws.String(a.opts.Subnet),
		SecurityGroupIds: a.opts.SecurityGroupIDs,
		TagSpecifications: []ec2types.TagSpecification{{
			ResourceType: ec2types.ResourceTypeInstance,
			Tags: []ec2types.Tag{
				{Key: aws.String("Name"), Value: aws.String(name)},
				{Key: aws.String("overseer:managed"), Value: aws.String("true")},
			},
		}},
	}
	if a.opts.KeyName != "" {
		input.KeyName = aws.String(a.opts.KeyName)
	}
	if a.opts.Spot {
		input.InstanceMarketOptions = &ec2types.InstanceMarketOptionsRequest{
			MarketType: ec2types.MarketTypeSpot,
		}
	}

	out, err := a.client.RunInstances(ctx, input)
	if err != nil {
		return Spawned{}, fmt.Errorf("adapter: ec2: run instances: %w", err)
	}
	if len(out.Instances) == 0 {
		return Spawned{}, errors.New("adapter: ec2: run instances returned no instances")
	}

	return Spawned{Name: name, Handle: aws.ToString(out.Instances[0].InstanceId)}, nil
}

func (a *EC2) Terminate(ctx context.Context, handle string) error {
	_, err := a.client.TerminateInstances(ctx, &ec2.TerminateInstancesInput{
		InstanceIds: []string{handle},
	})
	if err != nil {
		var apiErr *ec2types.InvalidInstanceIDNotFound
		if errors.As(err, &apiErr) {
			return nil
		}
		return fmt.Errorf("adapter: ec2: terminate %s: %w", handle, err)
	}
	return nil
}

func (a *EC2) Connect(ctx context.Context, handle string) error {
	out, err := a.client.DescribeInstances(ctx, &ec2.DescribeInstancesInput{
		InstanceIds: []string{handle},
	})
	if err != nil {
		return fmt.Errorf("adapter: ec2: describe instances %s: %w", handle, err)
	}

	var addr string
	for _, r := range out.Reservations {
		for _, inst := range r.Instances {
			if inst.PublicIpAddress != nil {
				addr = aws.ToString(inst.PublicIpAddress)
			}
		}
	}
	if addr == "" {
		return fmt.Errorf("adapter: ec2: instance %s has no public address yet", handle)
	}

	return a.probeSSH(ctx, addr)
}

// probeSSH dials the instance's SSH port purely to confirm reachability; it
// never authenticates to run a command, and retries with backoff because a
// freshly booted instance's sshd takes a few seconds to come up.
func (a *EC2) probeSSH(ctx context.Context, addr string) error {
	port := a.opts.SSHPort
	if port == 0 {
		port = 22
	}

	clientConfig := &ssh.ClientConfig{
		User:            a.opts.SSHUser,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(), //nolint:gosec // reachability probe only, see DESIGN.md
		Timeout:         5 * time.Second,
	}
	if a.opts.SSHPrivateKeyPath != "" {
		key, err := os.ReadFile(a.opts.SSHPrivateKeyPath)
		if err != nil {
			return fmt.Errorf("adapter: ec2: read ssh key: %w", err)
		}
		signer, err := ssh.ParsePrivateKey(key)
		if err != nil {
			return fmt.Errorf("adapter: ec2: parse ssh key: %w", err)
		}
		clientConfig.Auth = []ssh.AuthMethod{ssh.PublicKeys(signer)}
	}

	return retry.Call(retry.CallArgs{
		Func: func() error {
			client, err := ssh.Dial("tcp", net.JoinHostPort(addr, strconv.Itoa(port)), clientConfig)
			if err != nil {
				return err
			}
			return client.Close()
		},
		Attempts:      3,
		Delay:         time.Second,
		BackoffFactor: 2,
		Clock:         a.clock,
		Stop:          ctx.Done(),
	})
}
