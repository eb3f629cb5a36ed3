package server

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/devghori1264/prodmon/internal/models"
)

// Client calls the Dashboard gRPC service.
type Client struct {
	conn *grpc.ClientConn
}

// BoardView is the decoded GetBoard reply.
type BoardView struct {
	Board
	Remaining string `json:"remaining"`
}

// Dial connects to addr without TLS. Extra options are appended.
func Dial(addr string, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return &Client{conn: conn}, nil
}

func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) Ping(ctx context.Context) (string, error) {
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, fullMethod("Ping"), &emptypb.Empty{}, out); err != nil {
		return "", err
	}
	return out.GetFields()["msg"].GetStringValue(), nil
}

func (c *Client) Board(ctx context.Context) (BoardView, error) {
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, fullMethod("GetBoard"), &emptypb.Empty{}, out); err != nil {
		return BoardView{}, err
	}
	var view BoardView
	if err := fromStruct(out, &view); err != nil {
		return BoardView{}, err
	}
	return view, nil
}

func (c *Client) RequestRepair(ctx context.Context, machineID int) (models.RepairTicket, error) {
	in, err := structpb.NewStruct(map[string]any{"machineId": machineID})
	if err != nil {
		return models.RepairTicket{}, err
	}
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, fullMethod("RequestRepair"), in, out); err != nil {
		return models.RepairTicket{}, err
	}
	var t models.RepairTicket
	err = fromStruct(out, &t)
	return t, err
}

func (c *Client) AdvanceTicket(ctx context.Context, ticketID string) (models.RepairTicket, bool, error) {
	in, err := structpb.NewStruct(map[string]any{"ticketId": ticketID})
	if err != nil {
		return models.RepairTicket{}, false, err
	}
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, fullMethod("AdvanceTicket"), in, out); err != nil {
		return models.RepairTicket{}, false, err
	}
	var reply struct {
		Ticket   models.RepairTicket `json:"ticket"`
		Resolved bool                `json:"resolved"`
	}
	err = fromStruct(out, &reply)
	return reply.Ticket, reply.Resolved, err
}
