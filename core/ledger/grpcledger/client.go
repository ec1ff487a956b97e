// Package grpcledger carries the ledger.Client interface over gRPC, so the
// record service can run against a remote ledger daemon.
package grpcledger

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"

	"patientledger/core/ledger"
)

// Client implements ledger.Client over a Ledger gRPC service.
type Client struct {
	cc     *grpc.ClientConn
	client LedgerClient

	// Timeout applies per RPC when non-zero.
	Timeout time.Duration
}

type DialOptions struct {
	// Timeout applies to the initial dial when non-zero.
	Timeout time.Duration

	// MaxMsgBytes sets both send/recv max sizes when non-zero.
	MaxMsgBytes int
}

func Dial(target string, opts DialOptions) (*Client, error) {
	dialOpts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	}
	if opts.MaxMsgBytes > 0 {
		dialOpts = append(dialOpts,
			grpc.WithDefaultCallOptions(
				grpc.MaxCallRecvMsgSize(opts.MaxMsgBytes),
				grpc.MaxCallSendMsgSize(opts.MaxMsgBytes),
			),
		)
	}

	ctx := context.Background()
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	cc, err := grpc.DialContext(ctx, target, dialOpts...)
	if err != nil {
		return nil, mapRPC(err)
	}
	return NewClient(cc), nil
}

// NewClient wraps an established connection.
func NewClient(cc *grpc.ClientConn) *Client {
	return &Client{cc: cc, client: NewLedgerClient(cc)}
}

func (c *Client) Close() error {
	if c == nil || c.cc == nil {
		return nil
	}
	return c.cc.Close()
}

func (c *Client) ctx(parent context.Context) (context.Context, context.CancelFunc) {
	if c.Timeout <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, c.Timeout)
}

func (c *Client) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ledger.ValidateKey(key); err != nil {
		return nil, false, err
	}
	ctx, cancel := c.ctx(ctx)
	defer cancel()

	reply, err := c.client.Get(ctx, newRequest(key, nil, nil))
	if err != nil {
		return nil, false, mapRPC(err)
	}
	if !reply.GetFields()[fFound].GetBoolValue() {
		return nil, false, nil
	}
	v, err := bytesField(reply, fValue)
	if err != nil {
		return nil, false, err
	}
	if v == nil {
		v = []byte{}
	}
	return v, true, nil
}

func (c *Client) Put(ctx context.Context, key string, value []byte) (ledger.Receipt, error) {
	return c.write(ctx, key, func(ctx context.Context) (ledger.Receipt, error) {
		return c.call(ctx, c.client.Put, newRequest(key, value, nil))
	})
}

func (c *Client) PutIfAbsent(ctx context.Context, key string, value []byte) (ledger.Receipt, error) {
	return c.write(ctx, key, func(ctx context.Context) (ledger.Receipt, error) {
		return c.call(ctx, c.client.PutIfAbsent, newRequest(key, value, nil))
	})
}

func (c *Client) CompareAndSwap(ctx context.Context, key string, expected, value []byte) (ledger.Receipt, error) {
	if expected == nil {
		expected = []byte{}
	}
	return c.write(ctx, key, func(ctx context.Context) (ledger.Receipt, error) {
		return c.call(ctx, c.client.CompareAndSwap, newRequest(key, value, expected))
	})
}

func (c *Client) Delete(ctx context.Context, key string) (ledger.Receipt, error) {
	return c.write(ctx, key, func(ctx context.Context) (ledger.Receipt, error) {
		return c.call(ctx, c.client.Delete, newRequest(key, nil, nil))
	})
}

func (c *Client) History(ctx context.Context, key string) ([]ledger.Entry, error) {
	if err := ledger.ValidateKey(key); err != nil {
		return nil, err
	}
	ctx, cancel := c.ctx(ctx)
	defer cancel()

	reply, err := c.client.History(ctx, newRequest(key, nil, nil))
	if err != nil {
		return nil, mapRPC(err)
	}
	return decodeEntries(reply)
}

func (c *Client) write(ctx context.Context, key string, fn func(context.Context) (ledger.Receipt, error)) (ledger.Receipt, error) {
	if err := ledger.ValidateKey(key); err != nil {
		return ledger.Receipt{}, err
	}
	ctx, cancel := c.ctx(ctx)
	defer cancel()
	return fn(ctx)
}

type rpc func(context.Context, *structpb.Struct, ...grpc.CallOption) (*structpb.Struct, error)

func (c *Client) call(ctx context.Context, method rpc, in *structpb.Struct) (ledger.Receipt, error) {
	reply, err := method(ctx, in)
	if err != nil {
		return ledger.Receipt{}, mapRPC(err)
	}
	return decodeReceipt(reply)
}

var (
	_ ledger.Client        = (*Client)(nil)
	_ ledger.HistoryReader = (*Client)(nil)
)
