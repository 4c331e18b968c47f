package discovery

import (
	"context"

	"google.golang.org/grpc"

	"github.com/oggyb/muzz-connect/internal/app"
	"github.com/oggyb/muzz-connect/internal/server"
)

const ServiceName = "discovery.v1.DiscoveryService"

// DiscoveryServer is the gRPC surface of the Discovery service.
type DiscoveryServer interface {
	Discover(context.Context, *DiscoverRequest) (*DiscoverResponse, error)
}

var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*DiscoveryServer)(nil),
	Methods: []grpc.MethodDesc{
		server.UnaryMethod(ServiceName, "Discover", (*Service).Discover),
	},
	Streams: []grpc.StreamDesc{},
}

// Registrar ties the Discovery service into the gRPC server
type Registrar struct {
	appCtx *app.AppContext
}

// NewRegistrar creates a new Registrar for the Discovery service
func NewRegistrar(appCtx *app.AppContext) *Registrar {
	return &Registrar{appCtx: appCtx}
}

// Register attaches the Discovery service implementation to the gRPC server
func (r *Registrar) Register(s *grpc.Server) {
	s.RegisterService(&ServiceDesc, NewDiscoveryService(r.appCtx))
}

func (r *Registrar) ServiceName() string { return ServiceName }
