package client

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dmitrijs2005/orcafacil/internal/models"
	"github.com/dmitrijs2005/orcafacil/internal/timex"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	SyncServiceName = "orcafacil.sync.v1.SyncService"

	pushMethod = "/" + SyncServiceName + "/Push"
	pullMethod = "/" + SyncServiceName + "/Pull"
	pingMethod = "/" + SyncServiceName + "/Ping"

	authorizationHeader = "authorization"
)

// syncRPC is the stub of the sync service; every method carries a Struct
// holding the same JSON document as the HTTP protocol.
type syncRPC interface {
	Push(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	Pull(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	Ping(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
}

type syncRPCClient struct {
	cc grpc.ClientConnInterface
}

func (c *syncRPCClient) invoke(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *syncRPCClient) Push(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, pushMethod, in, opts...)
}

func (c *syncRPCClient) Pull(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, pullMethod, in, opts...)
}

func (c *syncRPCClient) Ping(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, pingMethod, in, opts...)
}

type GRPCOptions struct {
	Target      string
	APIKey      string
	AccessToken string
	// DialOptions are appended to the defaults (insecure transport and the
	// credentials interceptor).
	DialOptions []grpc.DialOption
}

type GRPCClient struct {
	conn        *grpc.ClientConn
	client      syncRPC
	apiKey      string
	accessToken string
}

func NewGRPCClient(opts GRPCOptions) (*GRPCClient, error) {
	c := &GRPCClient{apiKey: opts.APIKey, accessToken: opts.AccessToken}

	dial := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(c.credentialsInterceptor),
	}, opts.DialOptions...)

	conn, err := grpc.NewClient(opts.Target, dial...)
	if err != nil {
		return nil, fmt.Errorf("failed to create grpc client: %w", err)
	}
	c.conn = conn
	c.client = &syncRPCClient{cc: conn}
	return c, nil
}

func withCredentials(ctx context.Context, apiKey, token string) context.Context {
	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	if md == nil {
		md = metadata.MD{}
	}
	if apiKey != "" {
		md.Set(apiKeyHeader, apiKey)
	}
	if token != "" {
		md.Set(authorizationHeader, "Bearer "+token)
	}
	return metadata.NewOutgoingContext(ctx, md)
}

func (c *GRPCClient) credentialsInterceptor(
	ctx context.Context,
	method string,
	req, reply any,
	cc *grpc.ClientConn,
	invoker grpc.UnaryInvoker,
	opts ...grpc.CallOption,
) error {
	return invoker(withCredentials(ctx, c.apiKey, c.accessToken), method, req, reply, cc, opts...)
}

func (c *GRPCClient) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

func (c *GRPCClient) Ping(ctx context.Context) error {
	resp, err := c.client.Ping(ctx, &structpb.Struct{})
	if err != nil {
		return c.mapError(err)
	}
	if s := resp.GetFields()["status"].GetStringValue(); s != "OK" {
		return fmt.Errorf("%w: status %q", ErrUnavailable, s)
	}
	return nil
}

func (c *GRPCClient) Push(ctx context.Context, batch *models.Batch) error {
	req, err := toStruct(encodeBatch(batch))
	if err != nil {
		return fmt.Errorf("failed to encode push batch: %w", err)
	}
	if _, err := c.client.Push(ctx, req); err != nil {
		return c.mapError(err)
	}
	return nil
}

func (c *GRPCClient) Pull(ctx context.Context, ownerID string, since time.Time) (*models.Batch, error) {
	req, err := structpb.NewStruct(map[string]any{
		"owner_id": ownerID,
		"since":    timex.FormatISO(since),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode pull request: %w", err)
	}

	resp, err := c.client.Pull(ctx, req)
	if err != nil {
		return nil, c.mapError(err)
	}

	var w wireBatch
	if err := fromStruct(resp, &w); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadResponse, err)
	}
	return decodeBatch(w, ownerID), nil
}

func (c *GRPCClient) mapError(err error) error {
	if err == nil {
		return nil
	}
	st, _ := status.FromError(err)
	switch st.Code() {
	case codes.Unauthenticated, codes.PermissionDenied:
		return fmt.Errorf("%w: %s", ErrUnauthorized, st.Message())
	case codes.Unavailable, codes.DeadlineExceeded, codes.Canceled, codes.ResourceExhausted:
		return fmt.Errorf("%w: %s", ErrUnavailable, st.Message())
	case codes.InvalidArgument, codes.Internal, codes.Unimplemented, codes.DataLoss:
		return fmt.Errorf("%w: %s", ErrBadResponse, st.Message())
	default:
		return fmt.Errorf("rpc error: %w", err)
	}
}

// toStruct and fromStruct convert between wire documents and Struct through
// their JSON form.
func toStruct(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	s := &structpb.Struct{}
	if err := protojson.Unmarshal(raw, s); err != nil {
		return nil, err
	}
	return s, nil
}

func fromStruct(s *structpb.Struct, v any) error {
	raw, err := protojson.Marshal(s)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}
