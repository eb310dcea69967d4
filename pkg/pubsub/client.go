package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/ayurkart/storefront-backend/pkg/config"
	"github.com/ayurkart/storefront-backend/pkg/logger"
)

var (
	errProjectIDRequired = errors.New("gcp project id is required")
	errNoTopics          = errors.New("pubsub topic name is required")
	errClosed            = errors.New("pubsub client not initialized")
)

// Client publishes order events. Publishers are created lazily per topic and
// reused until Close, which flushes pending messages.
type Client struct {
	client  *pubsub.Client
	project string
	topics  []string

	mu         sync.Mutex
	publishers map[string]*pubsub.Publisher
}

// NewClient connects to Pub/Sub and fails fast when a configured topic is missing.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.PubSubConfig, logg *logger.Logger) (*Client, error) {
	project := strings.TrimSpace(gcp.ProjectID)
	if project == "" {
		return nil, errProjectIDRequired
	}
	topics := configuredTopics(cfg)
	if len(topics) == 0 {
		return nil, errNoTopics
	}

	ps, err := pubsub.NewClient(ctx, project, credentialOptions(gcp)...)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	c := &Client{
		client:     ps,
		project:    project,
		topics:     topics,
		publishers: map[string]*pubsub.Publisher{},
	}
	if err := c.Ping(ctx); err != nil {
		_ = ps.Close()
		return nil, err
	}

	if logg != nil {
		logg.Info(logg.WithField(ctx, "topics", topics), "pubsub client initialized")
	}
	return c, nil
}

func credentialOptions(gcp config.GCPConfig) []option.ClientOption {
	if raw := strings.TrimSpace(gcp.CredentialsJSON); raw != "" {
		return []option.ClientOption{option.WithCredentialsJSON([]byte(raw))}
	}
	if path := strings.TrimSpace(gcp.ApplicationCredentials); path != "" {
		return []option.ClientOption{option.WithCredentialsFile(path)}
	}
	return nil
}

func configuredTopics(cfg config.PubSubConfig) []string {
	var out []string
	if name := strings.TrimSpace(cfg.OrdersTopic); name != "" {
		out = append(out, name)
	}
	return out
}

// Ping checks that every configured topic is reachable.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.client == nil {
		return errClosed
	}
	for _, name := range c.topics {
		_, err := c.client.TopicAdminClient.GetTopic(ctx, &pubsubpb.GetTopicRequest{Topic: resourceName(c.project, name)})
		switch {
		case err == nil:
		case status.Code(err) == codes.NotFound:
			return fmt.Errorf("topic %q does not exist", name)
		default:
			return fmt.Errorf("checking topic %q: %w", name, err)
		}
	}
	return nil
}

// Publish sends msg to topic and blocks until the server acknowledges it.
// Errors keep their gRPC status so callers can tell permanent failures apart.
func (c *Client) Publish(ctx context.Context, topic string, msg *pubsub.Message) (string, error) {
	p, err := c.publisher(topic)
	if err != nil {
		return "", err
	}
	return p.Publish(ctx, msg).Get(ctx)
}

func (c *Client) publisher(topic string) (*pubsub.Publisher, error) {
	if c == nil || c.client == nil {
		return nil, errClosed
	}
	name := resourceName(c.project, topic)
	if name == "" {
		return nil, fmt.Errorf("topic %q not configured", topic)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := c.publishers[name]; ok {
		return p, nil
	}
	p := c.client.Publisher(name)
	c.publishers[name] = p
	return p, nil
}

// Close flushes every cached publisher and releases the client.
func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	c.mu.Lock()
	for name, p := range c.publishers {
		p.Stop()
		delete(c.publishers, name)
	}
	c.mu.Unlock()
	return c.client.Close()
}

// resourceName expands a short topic id to projects/<p>/topics/<id>; full
// resource names pass through untouched.
func resourceName(project, topic string) string {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return ""
	}
	if strings.HasPrefix(topic, "projects/") && strings.Contains(topic, "/topics/") {
		return topic
	}
	project = strings.TrimSpace(project)
	if project == "" {
		return ""
	}
	return "projects/" + project + "/topics/" + topic
}
