package match

import (
	"context"

	"google.golang.org/grpc"

	"github.com/oggyb/muzz-connect/internal/app"
	"github.com/oggyb/muzz-connect/internal/server"
)

const ServiceName = "match.v1.MatchService"

// MatchServer is the gRPC surface of the Match service.
type MatchServer interface {
	Like(context.Context, *LikeRequest) (*LikeResponse, error)
	Pass(context.Context, *PassRequest) (*PassResponse, error)
	ListLikedYou(context.Context, *ListLikedYouRequest) (*ListLikedYouResponse, error)
	CountLikedYou(context.Context, *CountLikedYouRequest) (*CountLikedYouResponse, error)
}

var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*MatchServer)(nil),
	Methods: []grpc.MethodDesc{
		server.UnaryMethod(ServiceName, "Like", (*Service).Like),
		server.UnaryMethod(ServiceName, "Pass", (*Service).Pass),
		server.UnaryMethod(ServiceName, "ListLikedYou", (*Service).ListLikedYou),
		server.UnaryMethod(ServiceName, "CountLikedYou", (*Service).CountLikedYou),
	},
	Streams: []grpc.StreamDesc{},
}

// Registrar ties the Match service into the gRPC server
type Registrar struct {
	appCtx *app.AppContext
}

// NewRegistrar creates a new Registrar for the Match service
func NewRegistrar(appCtx *app.AppContext) *Registrar {
	return &Registrar{appCtx: appCtx}
}

// Register attaches the Match service implementation to the gRPC server
func (r *Registrar) Register(s *grpc.Server) {
	s.RegisterService(&ServiceDesc, NewMatchService(r.appCtx))
}

func (r *Registrar) ServiceName() string { return ServiceName }
