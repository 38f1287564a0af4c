// Package grpcserver exposes the certificate gRPC API. The service is described by a
// hand-written ServiceDesc whose messages are google.protobuf.Struct values.
package grpcserver

import (
	"context"
	"errors"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/and161185/eventcert/internal/convert"
	"github.com/and161185/eventcert/internal/errs"
	"github.com/and161185/eventcert/internal/model"
	"github.com/and161185/eventcert/internal/service"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "eventcert.v1.Certificates"

// FullMethod returns "/eventcert.v1.Certificates/<name>".
func FullMethod(name string) string { return "/" + ServiceName + "/" + name }

// MethodVerify is the only method callable without a bearer token.
var MethodVerify = FullMethod("VerifyCertificate")

// CertificatesServer is implemented by Server.
type CertificatesServer interface {
	IssueCertificate(context.Context, *structpb.Struct) (*structpb.Struct, error)
	IssueEventCertificates(context.Context, *structpb.Struct) (*structpb.Struct, error)
	VerifyCertificate(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CreateTemplate(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListTemplates(context.Context, *structpb.Struct) (*structpb.Struct, error)
	DeleteTemplate(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListEventCertificates(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListMyCertificates(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type unaryCall func(CertificatesServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unary(name string, call unaryCall) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, ic grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			s := srv.(CertificatesServer)
			if ic == nil {
				return call(s, ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(name)}
			return ic(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(s, ctx, req.(*structpb.Struct))
			})
		},
	}
}

// ServiceDesc describes eventcert.v1.Certificates for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*CertificatesServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("IssueCertificate", CertificatesServer.IssueCertificate),
		unary("IssueEventCertificates", CertificatesServer.IssueEventCertificates),
		unary("VerifyCertificate", CertificatesServer.VerifyCertificate),
		unary("CreateTemplate", CertificatesServer.CreateTemplate),
		unary("ListTemplates", CertificatesServer.ListTemplates),
		unary("DeleteTemplate", CertificatesServer.DeleteTemplate),
		unary("ListEventCertificates", CertificatesServer.ListEventCertificates),
		unary("ListMyCertificates", CertificatesServer.ListMyCertificates),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "eventcert/v1/certificates.proto",
}

// Register attaches srv to s.
func Register(s grpc.ServiceRegistrar, srv CertificatesServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// Server wires services into gRPC handlers.
type Server struct {
	certs     service.CertificateService
	templates service.TemplateService
	verifier  service.Verifier
}

var _ CertificatesServer = (*Server)(nil)

// New constructs a gRPC server with injected services.
func New(certs service.CertificateService, templates service.TemplateService, verifier service.Verifier) *Server {
	return &Server{certs: certs, templates: templates, verifier: verifier}
}

// toStatus maps domain sentinels to gRPC codes.
func toStatus(op string, err error) error {
	var code codes.Code
	switch {
	case errors.Is(err, errs.ErrValidation):
		code = codes.InvalidArgument
	case errors.Is(err, errs.ErrUnauthorized):
		code = codes.Unauthenticated
	case errors.Is(err, errs.ErrForbidden):
		code = codes.PermissionDenied
	case errors.Is(err, errs.ErrNotFound):
		code = codes.NotFound
	case errors.Is(err, errs.ErrNotEligible):
		code = codes.FailedPrecondition
	case errors.Is(err, errs.ErrRender):
		code = codes.Unavailable
	case errors.Is(err, errs.ErrRateLimited):
		code = codes.ResourceExhausted
	case errors.Is(err, errs.ErrAlreadyExists):
		code = codes.AlreadyExists
	case errors.Is(err, context.DeadlineExceeded):
		code = codes.DeadlineExceeded
	case errors.Is(err, context.Canceled):
		code = codes.Canceled
	default:
		return status.Errorf(codes.Internal, "%s: %v", op, err)
	}
	return status.Error(code, err.Error())
}

func reply(m map[string]any) (*structpb.Struct, error) {
	out, err := convert.ToStruct(m)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode: %v", err)
	}
	return out, nil
}

func actor(ctx context.Context) (model.Actor, error) {
	a, ok := ActorFromCtx(ctx)
	if !ok {
		return model.Actor{}, status.Error(codes.Unauthenticated, "no auth")
	}
	return a, nil
}

func remoteIP(ctx context.Context) string {
	p, ok := peer.FromContext(ctx)
	if !ok || p.Addr == nil {
		return ""
	}
	host, _, err := net.SplitHostPort(p.Addr.String())
	if err != nil {
		return p.Addr.String()
	}
	return host
}

// --- Certificates ---

// IssueCertificate issues (or returns) the certificate of one registration.
func (s *Server) IssueCertificate(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	a, err := actor(ctx)
	if err != nil {
		return nil, err
	}
	var req convert.IssueCertificateRequest
	if err = convert.Decode(in, &req); err != nil {
		return nil, toStatus("issue", err)
	}
	c, err := s.certs.Issue(ctx, a, req.Model())
	if err != nil {
		return nil, toStatus("issue", err)
	}
	return reply(convert.Certificate(*c))
}

// IssueEventCertificates runs bulk issuance for an event.
func (s *Server) IssueEventCertificates(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	a, err := actor(ctx)
	if err != nil {
		return nil, err
	}
	var req convert.IssueEventCertificatesRequest
	if err = convert.Decode(in, &req); err != nil {
		return nil, toStatus("bulk issue", err)
	}
	res, err := s.certs.IssueForEvent(ctx, a, req.Model())
	if err != nil {
		return nil, toStatus("bulk issue", err)
	}
	return reply(convert.BulkResult(res))
}

// VerifyCertificate is public; lookups are throttled per peer address.
func (s *Server) VerifyCertificate(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req convert.VerifyCertificateRequest
	if err := convert.Decode(in, &req); err != nil {
		return nil, toStatus("verify", err)
	}
	v, _, err := s.verifier.VerifyFrom(ctx, remoteIP(ctx), req.Token)
	if err != nil {
		return nil, toStatus("verify", err)
	}
	return reply(convert.Verification(v))
}

// ListEventCertificates lists an event's certificates for its managers.
func (s *Server) ListEventCertificates(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	a, err := actor(ctx)
	if err != nil {
		return nil, err
	}
	var req convert.ListEventCertificatesRequest
	if err = convert.Decode(in, &req); err != nil {
		return nil, toStatus("list event certificates", err)
	}
	list, err := s.certs.ListForEvent(ctx, a, convert.UUID(req.EventID))
	if err != nil {
		return nil, toStatus("list event certificates", err)
	}
	return reply(convert.Items("certificates", list, convert.CertificateView))
}

// ListMyCertificates lists the caller's own certificates.
func (s *Server) ListMyCertificates(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	a, err := actor(ctx)
	if err != nil {
		return nil, err
	}
	var req convert.ListMyCertificatesRequest
	if err = convert.Decode(in, &req); err != nil {
		return nil, toStatus("list my certificates", err)
	}
	list, err := s.certs.ListForUser(ctx, a)
	if err != nil {
		return nil, toStatus("list my certificates", err)
	}
	return reply(convert.Items("certificates", list, convert.CertificateView))
}

// --- Templates ---

// CreateTemplate uploads an HTML template for a society.
func (s *Server) CreateTemplate(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	a, err := actor(ctx)
	if err != nil {
		return nil, err
	}
	var req convert.CreateTemplateRequest
	if err = convert.Decode(in, &req); err != nil {
		return nil, toStatus("create template", err)
	}
	t, err := s.templates.Create(ctx, a, convert.UUID(req.SocietyID), req.Name, req.HTML)
	if err != nil {
		return nil, toStatus("create template", err)
	}
	return reply(convert.Template(*t))
}

// ListTemplates lists a society's templates.
func (s *Server) ListTemplates(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	a, err := actor(ctx)
	if err != nil {
		return nil, err
	}
	var req convert.ListTemplatesRequest
	if err = convert.Decode(in, &req); err != nil {
		return nil, toStatus("list templates", err)
	}
	list, err := s.templates.List(ctx, a, convert.UUID(req.SocietyID))
	if err != nil {
		return nil, toStatus("list templates", err)
	}
	return reply(convert.Items("templates", list, convert.Template))
}

// DeleteTemplate removes a society's template.
func (s *Server) DeleteTemplate(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	a, err := actor(ctx)
	if err != nil {
		return nil, err
	}
	var req convert.DeleteTemplateRequest
	if err = convert.Decode(in, &req); err != nil {
		return nil, toStatus("delete template", err)
	}
	if err = s.templates.Delete(ctx, a, convert.UUID(req.SocietyID), convert.UUID(req.TemplateID)); err != nil {
		return nil, toStatus("delete template", err)
	}
	return reply(map[string]any{})
}
