package remote

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/banshee-data/pulsesim/internal/evaluator"
)

var _ evaluator.Evaluator = (*Client)(nil)

// Client is an evaluator.Evaluator backed by a remote Server.
type Client struct {
	conn *grpc.ClientConn
}

// Dial connects to target. Without options the connection is insecure,
// which suits a loopback or lab-network evaluator.
func Dial(target string, opts ...grpc.DialOption) (*Client, error) {
	if len(opts) == 0 {
		opts = []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	}
	opts = append(opts, grpc.WithDefaultCallOptions(
		grpc.MaxCallRecvMsgSize(maxMsgSize),
		grpc.MaxCallSendMsgSize(maxMsgSize),
	))
	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, fmt.Errorf("dial evaluator %s: %w", target, err)
	}
	return &Client{conn: conn}, nil
}

// Evaluate implements evaluator.Evaluator.
func (c *Client) Evaluate(ctx context.Context, req evaluator.Request) (map[string]float64, error) {
	in, err := encodeRequest(req)
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, evaluateMethod, in, out); err != nil {
		return nil, fmt.Errorf("remote evaluate: %w", err)
	}
	return decodeResponse(out)
}

// Close releases the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}
