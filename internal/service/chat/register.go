package chat

import (
	"context"

	"google.golang.org/grpc"

	"github.com/oggyb/muzz-connect/internal/app"
	"github.com/oggyb/muzz-connect/internal/server"
)

const ServiceName = "chat.v1.ChatService"

// ChatServer is the gRPC surface of the Chat service.
type ChatServer interface {
	SendMessage(context.Context, *SendMessageRequest) (*MessageView, error)
	GetMessages(context.Context, *GetMessagesRequest) (*GetMessagesResponse, error)
	GetConversations(context.Context, *GetConversationsRequest) (*GetConversationsResponse, error)
}

var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ChatServer)(nil),
	Methods: []grpc.MethodDesc{
		server.UnaryMethod(ServiceName, "SendMessage", (*Service).SendMessage),
		server.UnaryMethod(ServiceName, "GetMessages", (*Service).GetMessages),
		server.UnaryMethod(ServiceName, "GetConversations", (*Service).GetConversations),
	},
	Streams: []grpc.StreamDesc{},
}

// Registrar ties the Chat service into the gRPC server
type Registrar struct {
	appCtx *app.AppContext
}

// NewRegistrar creates a new Registrar for the Chat service
func NewRegistrar(appCtx *app.AppContext) *Registrar {
	return &Registrar{appCtx: appCtx}
}

// Register attaches the Chat service implementation to the gRPC server
func (r *Registrar) Register(s *grpc.Server) {
	s.RegisterService(&ServiceDesc, NewChatService(r.appCtx))
}

func (r *Registrar) ServiceName() string { return ServiceName }
