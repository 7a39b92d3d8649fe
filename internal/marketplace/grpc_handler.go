package marketplace

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Oniqq60/task_marketplace/internal/dto"
	"github.com/Oniqq60/task_marketplace/internal/lifecycle"
	"github.com/Oniqq60/task_marketplace/internal/principal"
	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/encoding"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

const (
	grpcServiceName = "marketplace.v1.Marketplace"
	// CodecName is the content-subtype the marketplace service speaks.
	CodecName = "json"
)

type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (jsonCodec) Name() string                       { return CodecName }

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

// MarketplaceServer is the gRPC face of MarketplaceService. Messages are the
// dto payloads carried as JSON.
type MarketplaceServer interface {
	ListTasks(ctx context.Context, req *dto.ListTasksRequest) (*dto.ListTasksResponse, error)
	GetTask(ctx context.Context, req *dto.GetTaskRequest) (*dto.TaskResponse, error)
	CreateTask(ctx context.Context, req *dto.CreateTaskRequest) (*dto.TaskResponse, error)
	SubmitBid(ctx context.Context, req *dto.SubmitBidCall) (*dto.TaskResponse, error)
	DecideBid(ctx context.Context, req *dto.DecideBidCall) (*dto.TaskResponse, error)
	ChangeStatus(ctx context.Context, req *dto.ChangeStatusCall) (*dto.TaskResponse, error)
}

var MarketplaceServiceDesc = grpc.ServiceDesc{
	ServiceName: grpcServiceName,
	HandlerType: (*MarketplaceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ListTasks", Handler: unaryHandler("ListTasks", MarketplaceServer.ListTasks)},
		{MethodName: "GetTask", Handler: unaryHandler("GetTask", MarketplaceServer.GetTask)},
		{MethodName: "CreateTask", Handler: unaryHandler("CreateTask", MarketplaceServer.CreateTask)},
		{MethodName: "SubmitBid", Handler: unaryHandler("SubmitBid", MarketplaceServer.SubmitBid)},
		{MethodName: "DecideBid", Handler: unaryHandler("DecideBid", MarketplaceServer.DecideBid)},
		{MethodName: "ChangeStatus", Handler: unaryHandler("ChangeStatus", MarketplaceServer.ChangeStatus)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "marketplace/v1/marketplace",
}

func RegisterMarketplaceServer(s grpc.ServiceRegistrar, srv MarketplaceServer) {
	s.RegisterService(&MarketplaceServiceDesc, srv)
}

func unaryHandler[Req, Resp any](method string, call func(MarketplaceServer, context.Context, *Req) (*Resp, error)) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	fullMethod := "/" + grpcServiceName + "/" + method
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(MarketplaceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(MarketplaceServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// TokenVerifier resolves a raw bearer token.
type TokenVerifier interface {
	Verify(ctx context.Context, raw string) (principal.Principal, error)
}

type GrpcHandler struct {
	service  MarketplaceService
	verifier TokenVerifier
	logger   *slog.Logger
}

func NewGrpcHandler(service MarketplaceService, verifier TokenVerifier, logger *slog.Logger) *GrpcHandler {
	return &GrpcHandler{
		service:  service,
		verifier: verifier,
		logger:   logger,
	}
}

func (h *GrpcHandler) ListTasks(ctx context.Context, _ *dto.ListTasksRequest) (*dto.ListTasksResponse, error) {
	tasks, err := h.service.ListOpenTasks(ctx)
	if err != nil {
		return nil, h.toStatus("ListTasks", err)
	}
	return &dto.ListTasksResponse{Tasks: toTaskSummaries(tasks)}, nil
}

func (h *GrpcHandler) GetTask(ctx context.Context, req *dto.GetTaskRequest) (*dto.TaskResponse, error) {
	taskID, err := parseID(req.TaskID, "task")
	if err != nil {
		return nil, h.toStatus("GetTask", err)
	}
	task, err := h.service.GetTask(ctx, taskID)
	if err != nil {
		return nil, h.toStatus("GetTask", err)
	}
	return taskReply(task), nil
}

func (h *GrpcHandler) CreateTask(ctx context.Context, req *dto.CreateTaskRequest) (*dto.TaskResponse, error) {
	p, err := h.principal(ctx)
	if err != nil {
		return nil, h.toStatus("CreateTask", err)
	}
	task, err := h.service.CreateTask(ctx, p, TaskInput{
		Title:       req.Title,
		Description: req.Description,
		Budget:      req.Budget,
		Category:    req.Category,
		Location:    req.Location,
	})
	if err != nil {
		return nil, h.toStatus("CreateTask", err)
	}
	return taskReply(task), nil
}

func (h *GrpcHandler) SubmitBid(ctx context.Context, req *dto.SubmitBidCall) (*dto.TaskResponse, error) {
	p, err := h.principal(ctx)
	if err != nil {
		return nil, h.toStatus("SubmitBid", err)
	}
	taskID, err := parseID(req.TaskID, "task")
	if err != nil {
		return nil, h.toStatus("SubmitBid", err)
	}
	task, err := h.service.SubmitBid(ctx, p, taskID, BidInput{Amount: req.Amount, Message: req.Message})
	if err != nil {
		return nil, h.toStatus("SubmitBid", err)
	}
	return taskReply(task), nil
}

func (h *GrpcHandler) DecideBid(ctx context.Context, req *dto.DecideBidCall) (*dto.TaskResponse, error) {
	p, err := h.principal(ctx)
	if err != nil {
		return nil, h.toStatus("DecideBid", err)
	}
	taskID, err := parseID(req.TaskID, "task")
	if err != nil {
		return nil, h.toStatus("DecideBid", err)
	}
	bidID, err := parseID(req.BidID, "bid")
	if err != nil {
		return nil, h.toStatus("DecideBid", err)
	}
	task, err := h.service.DecideBid(ctx, p, taskID, bidID, req.Action)
	if err != nil {
		return nil, h.toStatus("DecideBid", err)
	}
	return taskReply(task), nil
}

func (h *GrpcHandler) ChangeStatus(ctx context.Context, req *dto.ChangeStatusCall) (*dto.TaskResponse, error) {
	p, err := h.principal(ctx)
	if err != nil {
		return nil, h.toStatus("ChangeStatus", err)
	}
	taskID, err := parseID(req.TaskID, "task")
	if err != nil {
		return nil, h.toStatus("ChangeStatus", err)
	}
	task, err := h.service.ChangeStatus(ctx, p, taskID, req.Status)
	if err != nil {
		return nil, h.toStatus("ChangeStatus", err)
	}
	return taskReply(task), nil
}

// principal reads the bearer token from the "authorization" metadata key.
func (h *GrpcHandler) principal(ctx context.Context) (principal.Principal, error) {
	md, _ := metadata.FromIncomingContext(ctx)
	values := md.Get("authorization")
	if len(values) == 0 {
		return principal.Principal{}, principal.ErrUnauthenticated
	}
	raw, err := principal.ExtractBearerToken(values[0])
	if err != nil {
		raw = values[0]
	}
	return h.verifier.Verify(ctx, raw)
}

func (h *GrpcHandler) toStatus(method string, err error) error {
	if errors.Is(err, principal.ErrUnauthenticated) {
		return status.Error(codes.Unauthenticated, "sign in required")
	}
	switch lifecycle.Kind(err) {
	case lifecycle.ErrUnauthorized:
		return status.Error(codes.Unauthenticated, err.Error())
	case lifecycle.ErrForbidden:
		return status.Error(codes.PermissionDenied, err.Error())
	case lifecycle.ErrInvalidState:
		return status.Error(codes.FailedPrecondition, err.Error())
	case lifecycle.ErrValidation:
		return status.Error(codes.InvalidArgument, err.Error())
	case lifecycle.ErrNotFound:
		return status.Error(codes.NotFound, err.Error())
	}
	h.logger.Error("grpc call failed", "method", method, "error", err)
	return status.Error(codes.Internal, "internal server error")
}

func taskReply(t Task) *dto.TaskResponse {
	resp := toTaskResponse(t)
	return &resp
}

func parseID(raw, entity string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %s", lifecycle.ErrNotFound, entity)
	}
	return id, nil
}

// MarketplaceClient calls a remote MarketplaceServer.
type MarketplaceClient struct {
	cc grpc.ClientConnInterface
}

func NewMarketplaceClient(cc grpc.ClientConnInterface) *MarketplaceClient {
	return &MarketplaceClient{cc: cc}
}

func (c *MarketplaceClient) ListTasks(ctx context.Context, req *dto.ListTasksRequest, opts ...grpc.CallOption) (*dto.ListTasksResponse, error) {
	out := new(dto.ListTasksResponse)
	return out, c.invoke(ctx, "ListTasks", req, out, opts)
}

func (c *MarketplaceClient) GetTask(ctx context.Context, req *dto.GetTaskRequest, opts ...grpc.CallOption) (*dto.TaskResponse, error) {
	out := new(dto.TaskResponse)
	return out, c.invoke(ctx, "GetTask", req, out, opts)
}

func (c *MarketplaceClient) CreateTask(ctx context.Context, req *dto.CreateTaskRequest, opts ...grpc.CallOption) (*dto.TaskResponse, error) {
	out := new(dto.TaskResponse)
	return out, c.invoke(ctx, "CreateTask", req, out, opts)
}

func (c *MarketplaceClient) SubmitBid(ctx context.Context, req *dto.SubmitBidCall, opts ...grpc.CallOption) (*dto.TaskResponse, error) {
	out := new(dto.TaskResponse)
	return out, c.invoke(ctx, "SubmitBid", req, out, opts)
}

func (c *MarketplaceClient) DecideBid(ctx context.Context, req *dto.DecideBidCall, opts ...grpc.CallOption) (*dto.TaskResponse, error) {
	out := new(dto.TaskResponse)
	return out, c.invoke(ctx, "DecideBid", req, out, opts)
}

func (c *MarketplaceClient) ChangeStatus(ctx context.Context, req *dto.ChangeStatusCall, opts ...grpc.CallOption) (*dto.TaskResponse, error) {
	out := new(dto.TaskResponse)
	return out, c.invoke(ctx, "ChangeStatus", req, out, opts)
}

func (c *MarketplaceClient) invoke(ctx context.Context, method string, in, out any, opts []grpc.CallOption) error {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	return c.cc.Invoke(ctx, "/"+grpcServiceName+"/"+method, in, out, opts...)
}
