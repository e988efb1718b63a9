package nomad

import (
	"context"
	"math/rand"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/ec2"
	"github.com/aws/aws-sdk-go/service/ec2/ec2iface"
	"github.com/pkg/errors"
)

// Tags used to find servers, unless told otherwise.
const (
	DefaultNomadTagName   = "nomad_class"
	DefaultNomadTagValue  = "nomad-server"
	DefaultConsulTagName  = "role"
	DefaultConsulTagValue = "consul-server"
)

// Discover picks one of the EC2 instances tagged tagName=tagValue at
// random, and returns its private IP address.
func Discover(ctx context.Context, svc ec2iface.EC2API, tagName, tagValue string) (string, error) {
	out, err := svc.DescribeInstancesWithContext(ctx, &ec2.DescribeInstancesInput{
		Filters: []*ec2.Filter{{
			Name:   aws.String("tag:" + tagName),
			Values: []*string{aws.String(tagValue)},
		}},
	})
	if err != nil {
		return "", errors.Wrapf(err, "describing instances with tag %s=%s", tagName, tagValue)
	}

	var addrs []string
	for _, r := range out.Reservations {
		for _, i := range r.Instances {
			if ip := aws.StringValue(i.PrivateIpAddress); ip != "" {
				addrs = append(addrs, ip)
			}
		}
	}
	if len(addrs) == 0 {
		return "", errors.Errorf("no instances found with tag %s=%s", tagName, tagValue)
	}
	return addrs[rand.Intn(len(addrs))], nil
}

// Endpoint makes the URL of an agent from its address and port.
func Endpoint(addr, port string) string {
	return "http://" + addr + ":" + port
}
