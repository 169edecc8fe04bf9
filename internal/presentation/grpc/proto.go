package grpc

// proto.go holds the service descriptor for loanbook.v1.LoanBookService, written in the
// shape protoc-gen-go-grpc emits. Messages travel with the JSON codec registered in
// json_codec.go.

import (
	"context"

	grpclib "google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "loanbook.v1.LoanBookService"

// LoanBookServiceServer is the server API for LoanBookService.
type LoanBookServiceServer interface {
	CreateLoan(context.Context, *CreateLoanRequest) (*LoanResponse, error)
	UpdateLoanTerms(context.Context, *UpdateLoanTermsRequest) (*LoanResponse, error)
	SetInstallmentPaid(context.Context, *SetInstallmentPaidRequest) (*SetInstallmentPaidResponse, error)
	DeleteLoan(context.Context, *DeleteLoanRequest) (*DeleteLoanResponse, error)
	GetLoan(context.Context, *GetLoanRequest) (*LoanResponse, error)
	ListLoans(context.Context, *ListLoansRequest) (*ListLoansResponse, error)
	DueInstallments(context.Context, *DueInstallmentsRequest) (*DueInstallmentsResponse, error)
	PreviewSchedule(context.Context, *PreviewScheduleRequest) (*PreviewScheduleResponse, error)
	GenerateStatement(context.Context, *GenerateStatementRequest) (*StatementResponse, error)
	SendStatement(context.Context, *SendStatementRequest) (*SendStatementResponse, error)
	RunReminderSweep(context.Context, *RunReminderSweepRequest) (*RunReminderSweepResponse, error)
	mustEmbedUnimplementedLoanBookServiceServer()
}

// UnimplementedLoanBookServiceServer provides forward-compatible default implementations.
type UnimplementedLoanBookServiceServer struct{}

func (UnimplementedLoanBookServiceServer) CreateLoan(context.Context, *CreateLoanRequest) (*LoanResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method CreateLoan not implemented")
}
func (UnimplementedLoanBookServiceServer) UpdateLoanTerms(context.Context, *UpdateLoanTermsRequest) (*LoanResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method UpdateLoanTerms not implemented")
}
func (UnimplementedLoanBookServiceServer) SetInstallmentPaid(context.Context, *SetInstallmentPaidRequest) (*SetInstallmentPaidResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method SetInstallmentPaid not implemented")
}
func (UnimplementedLoanBookServiceServer) DeleteLoan(context.Context, *DeleteLoanRequest) (*DeleteLoanResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method DeleteLoan not implemented")
}
func (UnimplementedLoanBookServiceServer) GetLoan(context.Context, *GetLoanRequest) (*LoanResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method GetLoan not implemented")
}
func (UnimplementedLoanBookServiceServer) ListLoans(context.Context, *ListLoansRequest) (*ListLoansResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method ListLoans not implemented")
}
func (UnimplementedLoanBookServiceServer) DueInstallments(context.Context, *DueInstallmentsRequest) (*DueInstallmentsResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method DueInstallments not implemented")
}
func (UnimplementedLoanBookServiceServer) PreviewSchedule(context.Context, *PreviewScheduleRequest) (*PreviewScheduleResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method PreviewSchedule not implemented")
}
func (UnimplementedLoanBookServiceServer) GenerateStatement(context.Context, *GenerateStatementRequest) (*StatementResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method GenerateStatement not implemented")
}
func (UnimplementedLoanBookServiceServer) SendStatement(context.Context, *SendStatementRequest) (*SendStatementResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method SendStatement not implemented")
}
func (UnimplementedLoanBookServiceServer) RunReminderSweep(context.Context, *RunReminderSweepRequest) (*RunReminderSweepResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method RunReminderSweep not implemented")
}
func (UnimplementedLoanBookServiceServer) mustEmbedUnimplementedLoanBookServiceServer() {}

// RegisterLoanBookServiceServer registers the LoanBookServiceServer with the gRPC server.
func RegisterLoanBookServiceServer(s grpclib.ServiceRegistrar, srv LoanBookServiceServer) {
	s.RegisterService(&_LoanBookService_serviceDesc, srv) //nolint:revive // gRPC handler registration
}

//nolint:revive // gRPC handler registration
var _LoanBookService_serviceDesc = grpclib.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*LoanBookServiceServer)(nil),
	Methods: []grpclib.MethodDesc{
		{MethodName: "CreateLoan", Handler: _LoanBookService_CreateLoan_Handler},
		{MethodName: "UpdateLoanTerms", Handler: _LoanBookService_UpdateLoanTerms_Handler},
		{MethodName: "SetInstallmentPaid", Handler: _LoanBookService_SetInstallmentPaid_Handler},
		{MethodName: "DeleteLoan", Handler: _LoanBookService_DeleteLoan_Handler},
		{MethodName: "GetLoan", Handler: _LoanBookService_GetLoan_Handler},
		{MethodName: "ListLoans", Handler: _LoanBookService_ListLoans_Handler},
		{MethodName: "DueInstallments", Handler: _LoanBookService_DueInstallments_Handler},
		{MethodName: "PreviewSchedule", Handler: _LoanBookService_PreviewSchedule_Handler},
		{MethodName: "GenerateStatement", Handler: _LoanBookService_GenerateStatement_Handler},
		{MethodName: "SendStatement", Handler: _LoanBookService_SendStatement_Handler},
		{MethodName: "RunReminderSweep", Handler: _LoanBookService_RunReminderSweep_Handler},
	},
	Streams:  []grpclib.StreamDesc{},
	Metadata: "loanbook/v1/loanbook.proto",
}

//nolint:revive,errcheck // gRPC handler registration
func _LoanBookService_CreateLoan_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpclib.UnaryServerInterceptor) (interface{}, error) {
	in := new(CreateLoanRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(LoanBookServiceServer).CreateLoan(ctx, in)
	}
	info := &grpclib.UnaryServerInfo{
		Server:     srv,
		FullMethod: "/" + ServiceName + "/CreateLoan",
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(LoanBookServiceServer).CreateLoan(ctx, req.(*CreateLoanRequest))
	}
	return interceptor(ctx, in, info, handler)
}

//nolint:revive,errcheck // gRPC handler registration
func _LoanBookService_UpdateLoanTerms_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpclib.UnaryServerInterceptor) (interface{}, error) {
	in := new(UpdateLoanTermsRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(LoanBookServiceServer).UpdateLoanTerms(ctx, in)
	}
	info := &grpclib.UnaryServerInfo{
		Server:     srv,
		FullMethod: "/" + ServiceName + "/UpdateLoanTerms",
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(LoanBookServiceServer).UpdateLoanTerms(ctx, req.(*UpdateLoanTermsRequest))
	}
	return interceptor(ctx, in, info, handler)
}

//nolint:revive,errcheck // gRPC handler registration
func _LoanBookService_SetInstallmentPaid_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpclib.UnaryServerInterceptor) (interface{}, error) {
	in := new(SetInstallmentPaidRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(LoanBookServiceServer).SetInstallmentPaid(ctx, in)
	}
	info := &grpclib.UnaryServerInfo{
		Server:     srv,
		FullMethod: "/" + ServiceName + "/SetInstallmentPaid",
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(LoanBookServiceServer).SetInstallmentPaid(ctx, req.(*SetInstallmentPaidRequest))
	}
	return interceptor(ctx, in, info, handler)
}

//nolint:revive,errcheck // gRPC handler registration
func _LoanBookService_DeleteLoan_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpclib.UnaryServerInterceptor) (interface{}, error) {
	in := new(DeleteLoanRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(LoanBookServiceServer).DeleteLoan(ctx, in)
	}
	info := &grpclib.UnaryServerInfo{
		Server:     srv,
		FullMethod: "/" + ServiceName + "/DeleteLoan",
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(LoanBookServiceServer).DeleteLoan(ctx, req.(*DeleteLoanRequest))
	}
	return interceptor(ctx, in, info, handler)
}

//nolint:revive,errcheck // gRPC handler registration
func _LoanBookService_GetLoan_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpclib.UnaryServerInterceptor) (interface{}, error) {
	in := new(GetLoanRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(LoanBookServiceServer).GetLoan(ctx, in)
	}
	info := &grpclib.UnaryServerInfo{
		Server:     srv,
		FullMethod: "/" + ServiceName + "/GetLoan",
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(LoanBookServiceServer).GetLoan(ctx, req.(*GetLoanRequest))
	}
	return interceptor(ctx, in, info, handler)
}

//nolint:revive,errcheck // gRPC handler registration
func _LoanBookService_ListLoans_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpclib.UnaryServerInterceptor) (interface{}, error) {
	in := new(ListLoansRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(LoanBookServiceServer).ListLoans(ctx, in)
	}
	info := &grpclib.UnaryServerInfo{
		Server:     srv,
		FullMethod: "/" + ServiceName + "/ListLoans",
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(LoanBookServiceServer).ListLoans(ctx, req.(*ListLoansRequest))
	}
	return interceptor(ctx, in, info, handler)
}

//nolint:revive,errcheck // gRPC handler registration
func _LoanBookService_DueInstallments_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpclib.UnaryServerInterceptor) (interface{}, error) {
	in := new(DueInstallmentsRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(LoanBookServiceServer).DueInstallments(ctx, in)
	}
	info := &grpclib.UnaryServerInfo{
		Server:     srv,
		FullMethod: "/" + ServiceName + "/DueInstallments",
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(LoanBookServiceServer).DueInstallments(ctx, req.(*DueInstallmentsRequest))
	}
	return interceptor(ctx, in, info, handler)
}

//nolint:revive,errcheck // gRPC handler registration
func _LoanBookService_PreviewSchedule_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpclib.UnaryServerInterceptor) (interface{}, error) {
	in := new(PreviewScheduleRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(LoanBookServiceServer).PreviewSchedule(ctx, in)
	}
	info := &grpclib.UnaryServerInfo{
		Server:     srv,
		FullMethod: "/" + ServiceName + "/PreviewSchedule",
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(LoanBookServiceServer).PreviewSchedule(ctx, req.(*PreviewScheduleRequest))
	}
	return interceptor(ctx, in, info, handler)
}

//nolint:revive,errcheck // gRPC handler registration
func _LoanBookService_GenerateStatement_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpclib.UnaryServerInterceptor) (interface{}, error) {
	in := new(GenerateStatementRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(LoanBookServiceServer).GenerateStatement(ctx, in)
	}
	info := &grpclib.UnaryServerInfo{
		Server:     srv,
		FullMethod: "/" + ServiceName + "/GenerateStatement",
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(LoanBookServiceServer).GenerateStatement(ctx, req.(*GenerateStatementRequest))
	}
	return interceptor(ctx, in, info, handler)
}

//nolint:revive,errcheck // gRPC handler registration
func _LoanBookService_SendStatement_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpclib.UnaryServerInterceptor) (interface{}, error) {
	in := new(SendStatementRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(LoanBookServiceServer).SendStatement(ctx, in)
	}
	info := &grpclib.UnaryServerInfo{
		Server:     srv,
		FullMethod: "/" + ServiceName + "/SendStatement",
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(LoanBookServiceServer).SendStatement(ctx, req.(*SendStatementRequest))
	}
	return interceptor(ctx, in, info, handler)
}

//nolint:revive,errcheck // gRPC handler registration
func _LoanBookService_RunReminderSweep_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpclib.UnaryServerInterceptor) (interface{}, error) {
	in := new(RunReminderSweepRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(LoanBookServiceServer).RunReminderSweep(ctx, in)
	}
	info := &grpclib.UnaryServerInfo{
		Server:     srv,
		FullMethod: "/" + ServiceName + "/RunReminderSweep",
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(LoanBookServiceServer).RunReminderSweep(ctx, req.(*RunReminderSweepRequest))
	}
	return interceptor(ctx, in, info, handler)
}
