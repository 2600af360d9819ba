package grpc

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
)

// ServiceName is the name health clients ask about; the empty name asks
// about the server as a whole.
const ServiceName = "partner.engine.v1.PartnerEngine"

type Readiness interface {
	Ready(ctx context.Context) error
}

type PartnerInternalServer struct {
	grpc_health_v1.UnimplementedHealthServer
	readiness     Readiness
	watchInterval time.Duration
}

func NewPartnerInternalServer(readiness Readiness) *PartnerInternalServer {
	return &PartnerInternalServer{readiness: readiness, watchInterval: 5 * time.Second}
}

func Register(server grpc.ServiceRegistrar, svc *PartnerInternalServer) {
	grpc_health_v1.RegisterHealthServer(server, svc)
}

func (s *PartnerInternalServer) status(ctx context.Context) grpc_health_v1.HealthCheckResponse_ServingStatus {
	if s.readiness == nil {
		return grpc_health_v1.HealthCheckResponse_SERVING
	}
	checkCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := s.readiness.Ready(checkCtx); err != nil {
		return grpc_health_v1.HealthCheckResponse_NOT_SERVING
	}
	return grpc_health_v1.HealthCheckResponse_SERVING
}

func known(name string) bool { return name == "" || name == ServiceName }

func (s *PartnerInternalServer) Check(ctx context.Context, req *grpc_health_v1.HealthCheckRequest) (*grpc_health_v1.HealthCheckResponse, error) {
	if !known(req.GetService()) {
		return nil, status.Errorf(codes.NotFound, "unknown service %q", req.GetService())
	}
	return &grpc_health_v1.HealthCheckResponse{Status: s.status(ctx)}, nil
}

// Watch sends the current status and then every change until the client
// goes away.
func (s *PartnerInternalServer) Watch(req *grpc_health_v1.HealthCheckRequest, stream grpc_health_v1.Health_WatchServer) error {
	ctx := stream.Context()
	if !known(req.GetService()) {
		return stream.Send(&grpc_health_v1.HealthCheckResponse{Status: grpc_health_v1.HealthCheckResponse_SERVICE_UNKNOWN})
	}
	last := grpc_health_v1.HealthCheckResponse_UNKNOWN
	ticker := time.NewTicker(s.watchInterval)
	defer ticker.Stop()
	for {
		if current := s.status(ctx); current != last {
			if err := stream.Send(&grpc_health_v1.HealthCheckResponse{Status: current}); err != nil {
				return err
			}
			last = current
		}
		select {
		case <-ctx.Done():
			return status.FromContextError(ctx.Err()).Err()
		case <-ticker.C:
		}
	}
}
