package client

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/dmitrijs2005/saveme/internal/autodelete"
	"github.com/dmitrijs2005/saveme/internal/common"
	"github.com/dmitrijs2005/saveme/internal/drive"
	"github.com/dmitrijs2005/saveme/internal/filex"
	"github.com/dmitrijs2005/saveme/internal/models"
	pb "github.com/dmitrijs2005/saveme/internal/proto"
	"github.com/dmitrijs2005/saveme/internal/services"
	"github.com/dmitrijs2005/saveme/internal/sharing"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

var _ services.Vault = (*GRPCClient)(nil)

type GRPCClient struct {
	endpointURL string
	conn        *grpc.ClientConn

	mu          sync.RWMutex
	accessToken string
}

func withAccessToken(ctx context.Context, token string) context.Context {
	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	if md == nil {
		md = metadata.MD{}
	}
	md.Delete(common.AccessTokenHeaderName)
	md.Set(common.AccessTokenHeaderName, token)

	return metadata.NewOutgoingContext(ctx, md)
}

func (s *GRPCClient) token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accessToken
}

func (s *GRPCClient) setToken(t string) {
	s.mu.Lock()
	s.accessToken = t
	s.mu.Unlock()
}

func (s *GRPCClient) accessTokenInterceptor(
	ctx context.Context,
	method string,
	req, reply interface{},
	cc *grpc.ClientConn,
	invoker grpc.UnaryInvoker,
	opts ...grpc.CallOption,
) error {

	if token := s.token(); token != "" {
		ctx = withAccessToken(ctx, token)
	}

	err := invoker(ctx, method, req, reply, cc, opts...)

	// an expired token ends the session
	if st, ok := status.FromError(err); ok && st.Code() == codes.Unauthenticated &&
		st.Message() == common.ErrTokenExpired.Error() {
		s.setToken("")
	}
	return err
}

// NewGRPCClient connects lazily to endpointURL. Extra dial options are
// appended after the defaults.
func NewGRPCClient(endpointURL string, opts ...grpc.DialOption) (*GRPCClient, error) {
	c := &GRPCClient{endpointURL: endpointURL}

	dial := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(c.accessTokenInterceptor),
		grpc.WithDefaultCallOptions(
			grpc.MaxCallRecvMsgSize(pb.MaxMessageSize),
			grpc.MaxCallSendMsgSize(pb.MaxMessageSize),
		),
	}, opts...)

	conn, err := grpc.NewClient(endpointURL, dial...)
	if err != nil {
		return nil, err
	}
	c.conn = conn
	return c, nil
}

func (s *GRPCClient) call(ctx context.Context, method string, req, resp any) error {
	in, err := pb.Encode(req)
	if err != nil {
		return err
	}
	out := new(structpb.Struct)
	if err := s.conn.Invoke(ctx, pb.FullMethod(method), in, out); err != nil {
		return s.mapError(err)
	}
	if resp == nil {
		return nil
	}
	return pb.Decode(out, resp)
}

func (s *GRPCClient) mapError(err error) error {
	if err == nil {
		return nil
	}
	st, _ := status.FromError(err)
	switch st.Code() {
	case codes.Unavailable, codes.DeadlineExceeded:
		return ErrUnavailable
	default:
		return pb.ErrorFromStatus(err)
	}
}

func (s *GRPCClient) Ping(ctx context.Context) error {
	var resp pb.PingResponse
	if err := s.call(ctx, pb.MethodPing, pb.Empty{}, &resp); err != nil {
		return err
	}
	if resp.Status != "OK" {
		return ErrUnavailable
	}
	return nil
}

func (s *GRPCClient) Setup(ctx context.Context, userID, passcode string) error {
	return s.call(ctx, pb.MethodRegister, pb.Credentials{UserID: userID, Passcode: passcode}, nil)
}

func (s *GRPCClient) Unlock(ctx context.Context, userID, passcode string) error {
	var resp pb.LoginResponse
	if err := s.call(ctx, pb.MethodLogin, pb.Credentials{UserID: userID, Passcode: passcode}, &resp); err != nil {
		return err
	}
	s.setToken(resp.AccessToken)
	return nil
}

func (s *GRPCClient) Lock(ctx context.Context, userID string) error {
	if s.token() == "" {
		return nil
	}
	defer s.setToken("")
	err := s.call(ctx, pb.MethodLock, pb.UserRequest{UserID: userID}, nil)
	if errors.Is(err, common.ErrorUnauthorized) {
		return nil
	}
	return err
}

// SessionExpired treats a missing or rejected token as an expired session.
func (s *GRPCClient) SessionExpired(ctx context.Context, userID string) (bool, error) {
	if s.token() == "" {
		return true, nil
	}
	var resp pb.SessionResponse
	err := s.call(ctx, pb.MethodSessionExpired, pb.UserRequest{UserID: userID}, &resp)
	if errors.Is(err, common.ErrorUnauthorized) {
		s.setToken("")
		return true, nil
	}
	if err != nil {
		return false, err
	}
	if resp.Expired {
		s.setToken("")
	}
	return resp.Expired, nil
}

func (s *GRPCClient) AddFile(ctx context.Context, nf drive.NewFile) (*models.SecureFile, error) {
	content, err := os.ReadFile(nf.SourcePath)
	if err != nil {
		return nil, fmt.Errorf("read source: %w", err)
	}
	defer common.WipeByteArray(content)

	var f models.SecureFile
	err = s.call(ctx, pb.MethodAddFile, pb.AddFileRequest{
		UserID:          nf.OwnerID,
		Name:            filepath.Base(nf.SourcePath),
		Content:         content,
		Type:            nf.Type,
		Width:           nf.Width,
		Height:          nf.Height,
		DurationMs:      nf.DurationMs,
		Received:        nf.Received,
		OriginalOwnerID: nf.OriginalOwnerID,
	}, &f)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func (s *GRPCClient) ListFiles(ctx context.Context, userID string) ([]models.SecureFile, error) {
	var resp pb.FilesResponse
	if err := s.call(ctx, pb.MethodListFiles, pb.UserRequest{UserID: userID}, &resp); err != nil {
		return nil, err
	}
	return resp.Items, nil
}

func (s *GRPCClient) DeleteFile(ctx context.Context, userID, fileID string) error {
	return s.call(ctx, pb.MethodDeleteFile, pb.FileRequest{UserID: userID, FileID: fileID}, nil)
}

func (s *GRPCClient) RevealFile(ctx context.Context, userID, fileID, dst string) error {
	var resp pb.ContentResponse
	if err := s.call(ctx, pb.MethodRevealFile, pb.FileRequest{UserID: userID, FileID: fileID}, &resp); err != nil {
		return err
	}
	defer common.WipeByteArray(resp.Content)
	return filex.WriteFileAtomic(dst, resp.Content)
}

func (s *GRPCClient) Share(ctx context.Context, userID, fileID string, recipients []string) ([]sharing.Grant, error) {
	var resp pb.ShareResponse
	err := s.call(ctx, pb.MethodShare, pb.ShareRequest{UserID: userID, FileID: fileID, Recipients: recipients}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.Grants, nil
}

func (s *GRPCClient) Inbox(ctx context.Context, userID string) ([]models.SharedContent, error) {
	var resp pb.SharesResponse
	if err := s.call(ctx, pb.MethodInbox, pb.UserRequest{UserID: userID}, &resp); err != nil {
		return nil, err
	}
	return resp.Items, nil
}

func (s *GRPCClient) Sent(ctx context.Context, userID string) ([]models.SharedContent, error) {
	var resp pb.SharesResponse
	if err := s.call(ctx, pb.MethodSent, pb.UserRequest{UserID: userID}, &resp); err != nil {
		return nil, err
	}
	return resp.Items, nil
}

func (s *GRPCClient) View(ctx context.Context, userID, recordID, dst string) (*models.SharedContent, error) {
	var resp pb.ViewResponse
	req := pb.ViewRequest{UserID: userID, RecordID: recordID, WithContent: dst != ""}
	if err := s.call(ctx, pb.MethodView, req, &resp); err != nil {
		return nil, err
	}
	if dst != "" {
		defer common.WipeByteArray(resp.Content)
		if err := filex.WriteFileAtomic(dst, resp.Content); err != nil {
			return nil, err
		}
	}
	return &resp.Record, nil
}

func (s *GRPCClient) DeleteShare(ctx context.Context, userID, recordID string) error {
	return s.call(ctx, pb.MethodDeleteShare, pb.RecordRequest{UserID: userID, RecordID: recordID}, nil)
}

func (s *GRPCClient) AccessLog(ctx context.Context, userID string, limit int) ([]models.AccessLogEntry, error) {
	var resp pb.AccessLogResponse
	if err := s.call(ctx, pb.MethodAccessLog, pb.AccessLogRequest{UserID: userID, Limit: limit}, &resp); err != nil {
		return nil, err
	}
	return resp.Items, nil
}

func (s *GRPCClient) Sweep(ctx context.Context) (*autodelete.Result, error) {
	var resp pb.SweepResponse
	if err := s.call(ctx, pb.MethodSweep, pb.Empty{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (s *GRPCClient) Wipe(ctx context.Context) error {
	return s.call(ctx, pb.MethodWipe, pb.Empty{}, nil)
}

func (s *GRPCClient) Export(ctx context.Context, userID, passphrase string, upload bool) (*services.ExportResult, error) {
	var resp pb.ExportResponse
	req := pb.ExportRequest{UserID: userID, Passphrase: passphrase, Upload: upload}
	if err := s.call(ctx, pb.MethodExport, req, &resp); err != nil {
		return nil, err
	}
	return &services.ExportResult{Data: resp.Data, ContentType: resp.ContentType, ObjectKey: resp.ObjectKey}, nil
}

func (s *GRPCClient) Close() error {
	return s.conn.Close()
}
