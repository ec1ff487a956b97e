package grpcledger

import (
	"context"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"patientledger/core/ledger"
)

// Server exposes a ledger.Client over the Ledger gRPC service.
type Server struct {
	UnimplementedLedgerServer
	Ledger ledger.Client
}

func (s *Server) ready() error {
	if s == nil || s.Ledger == nil {
		return status.Error(codes.FailedPrecondition, "missing ledger")
	}
	return nil
}

func (s *Server) Get(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	v, found, err := s.Ledger.Get(ctx, str(in, fKey))
	if err != nil {
		return nil, mapErr(err)
	}
	return encodeGet(v, found), nil
}

func (s *Server) Put(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return s.write(ctx, in, func(key string, value, _ []byte) (ledger.Receipt, error) {
		return s.Ledger.Put(ctx, key, value)
	})
}

func (s *Server) PutIfAbsent(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return s.write(ctx, in, func(key string, value, _ []byte) (ledger.Receipt, error) {
		return s.Ledger.PutIfAbsent(ctx, key, value)
	})
}

func (s *Server) CompareAndSwap(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return s.write(ctx, in, func(key string, value, expected []byte) (ledger.Receipt, error) {
		return s.Ledger.CompareAndSwap(ctx, key, expected, value)
	})
}

func (s *Server) Delete(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return s.write(ctx, in, func(key string, _, _ []byte) (ledger.Receipt, error) {
		return s.Ledger.Delete(ctx, key)
	})
}

func (s *Server) History(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	hr, ok := s.Ledger.(ledger.HistoryReader)
	if !ok {
		return nil, status.Error(codes.Unimplemented, "ledger keeps no journal")
	}
	entries, err := hr.History(ctx, str(in, fKey))
	if err != nil {
		return nil, mapErr(err)
	}
	return encodeEntries(entries), nil
}

func (s *Server) write(ctx context.Context, in *structpb.Struct, fn func(key string, value, expected []byte) (ledger.Receipt, error)) (*structpb.Struct, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	value, err := bytesField(in, fValue)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	expected, err := bytesField(in, fExpected)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	rcpt, err := fn(str(in, fKey), value, expected)
	if err != nil {
		return nil, mapErr(err)
	}
	return encodeReceipt(rcpt), nil
}
