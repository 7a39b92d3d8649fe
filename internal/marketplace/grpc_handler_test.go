package marketplace

import (
	"context"
	"net"
	"testing"

	"github.com/Oniqq60/task_marketplace/internal/dto"
	"github.com/Oniqq60/task_marketplace/internal/lifecycle"
	"github.com/Oniqq60/task_marketplace/internal/principal"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

func newGrpcClient(t *testing.T) *MarketplaceClient {
	t.Helper()
	verifier, err := principal.NewVerifier(testSecret, nil)
	require.NoError(t, err)
	env := newTestEnv(t, lifecycle.CancelPermissive)

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	RegisterMarketplaceServer(srv, NewGrpcHandler(env.svc, verifier, discardLogger()))
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return NewMarketplaceClient(conn)
}

func as(t *testing.T, p principal.Principal) context.Context {
	return metadata.AppendToOutgoingContext(context.Background(), "authorization", "Bearer "+token(t, p))
}

func TestGrpc_Lifecycle(t *testing.T) {
	client := newGrpcClient(t)
	c := newPrincipal("Carol", principal.RoleClient)
	u := newPrincipal("Uma", principal.RoleTasker)

	created, err := client.CreateTask(as(t, c), &dto.CreateTaskRequest{
		Title:       "Walk the dog",
		Description: "Twice a day for a week",
		Budget:      90,
		Category:    "Pet Care",
		Location:    "Oslo",
	})
	require.NoError(t, err)
	assert.Equal(t, "PENDING", created.Status)

	listed, err := client.ListTasks(context.Background(), &dto.ListTasksRequest{})
	require.NoError(t, err)
	require.Len(t, listed.Tasks, 1)
	assert.Equal(t, "Carol", listed.Tasks[0].Client.Name)

	withBid, err := client.SubmitBid(as(t, u), &dto.SubmitBidCall{
		TaskID:           created.ID,
		SubmitBidRequest: dto.SubmitBidRequest{Amount: 85, Message: "I love dogs"},
	})
	require.NoError(t, err)
	require.Len(t, withBid.Bids, 1)

	accepted, err := client.DecideBid(as(t, c), &dto.DecideBidCall{
		TaskID:           created.ID,
		BidID:            withBid.Bids[0].ID,
		DecideBidRequest: dto.DecideBidRequest{Action: "accept"},
	})
	require.NoError(t, err)
	assert.Equal(t, "ACCEPTED", accepted.Status)

	started, err := client.ChangeStatus(as(t, u), &dto.ChangeStatusCall{
		TaskID:              created.ID,
		ChangeStatusRequest: dto.ChangeStatusRequest{Status: "IN_PROGRESS"},
	})
	require.NoError(t, err)
	assert.Equal(t, "IN_PROGRESS", started.Status)

	got, err := client.GetTask(context.Background(), &dto.GetTaskRequest{TaskID: created.ID})
	require.NoError(t, err)
	assert.Equal(t, "IN_PROGRESS", got.Status)
	assert.Equal(t, "ACCEPTED", got.Bids[0].Status)
}

func TestGrpc_ErrorCodes(t *testing.T) {
	client := newGrpcClient(t)
	c := newPrincipal("Carol", principal.RoleClient)
	u := newPrincipal("Uma", principal.RoleTasker)

	created, err := client.CreateTask(as(t, c), &dto.CreateTaskRequest{
		Title: "Mow lawn", Description: "Small garden", Budget: 30, Category: "Gardening", Location: "Gent",
	})
	require.NoError(t, err)

	_, err = client.CreateTask(context.Background(), &dto.CreateTaskRequest{})
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	_, err = client.GetTask(context.Background(), &dto.GetTaskRequest{TaskID: uuid.NewString()})
	assert.Equal(t, codes.NotFound, status.Code(err))

	_, err = client.GetTask(context.Background(), &dto.GetTaskRequest{TaskID: "nope"})
	assert.Equal(t, codes.NotFound, status.Code(err))

	_, err = client.SubmitBid(as(t, u), &dto.SubmitBidCall{TaskID: created.ID})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = client.SubmitBid(as(t, c), &dto.SubmitBidCall{
		TaskID:           created.ID,
		SubmitBidRequest: dto.SubmitBidRequest{Amount: 10, Message: "own"},
	})
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))

	_, err = client.ChangeStatus(as(t, u), &dto.ChangeStatusCall{
		TaskID:              created.ID,
		ChangeStatusRequest: dto.ChangeStatusRequest{Status: "CANCELLED"},
	})
	assert.Equal(t, codes.PermissionDenied, status.Code(err))
}
