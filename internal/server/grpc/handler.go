package grpc

import (
	"context"
	"os"
	"path/filepath"

	"github.com/dmitrijs2005/saveme/internal/drive"
	"github.com/dmitrijs2005/saveme/internal/filex"
	pb "github.com/dmitrijs2005/saveme/internal/proto"
	"github.com/dmitrijs2005/saveme/internal/server/auth"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// caller returns the token's user. A user id named in the request must be
// the same one.
func caller(ctx context.Context, requested string) (string, error) {
	userID, ok := UserIDFromContext(ctx)
	if !ok {
		return "", status.Error(codes.Unauthenticated, "unauthenticated")
	}
	if requested != "" && requested != userID {
		return "", status.Error(codes.PermissionDenied, "user id does not match token")
	}
	return userID, nil
}

// staged runs fn with a private scratch directory that is removed afterwards.
func (s *Server) staged(fn func(dir string) error) error {
	dir, err := os.MkdirTemp(s.tmpDir, "saveme-*")
	if err != nil {
		return err
	}
	defer os.RemoveAll(dir)
	return fn(dir)
}

func (s *Server) ping(ctx context.Context, req *pb.Empty) (any, error) {
	return pb.PingResponse{Status: "OK"}, nil
}

func (s *Server) register(ctx context.Context, req *pb.Credentials) (any, error) {

	s.logger.Info(ctx, "Registration request", "user_id", req.UserID)

	if err := s.vault.Setup(ctx, req.UserID, req.Passcode); err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "Registered", "user_id", req.UserID)
	return pb.Empty{}, nil
}

func (s *Server) login(ctx context.Context, req *pb.Credentials) (any, error) {

	if !s.limiter.Allow(req.UserID) {
		return nil, status.Error(codes.ResourceExhausted, "too many login attempts")
	}

	if err := s.vault.Unlock(ctx, req.UserID, req.Passcode); err != nil {
		return nil, err
	}

	token, err := auth.GenerateToken(req.UserID, s.jwtSecret, s.tokenTTL)
	if err != nil {
		return nil, err
	}

	return pb.LoginResponse{AccessToken: token}, nil
}

func (s *Server) lock(ctx context.Context, req *pb.UserRequest) (any, error) {
	userID, err := caller(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	return pb.Empty{}, s.vault.Lock(ctx, userID)
}

func (s *Server) sessionExpired(ctx context.Context, req *pb.UserRequest) (any, error) {
	userID, err := caller(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	expired, err := s.vault.SessionExpired(ctx, userID)
	if err != nil {
		return nil, err
	}
	return pb.SessionResponse{Expired: expired}, nil
}

func (s *Server) addFile(ctx context.Context, req *pb.AddFileRequest) (any, error) {
	userID, err := caller(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	if len(req.Content) == 0 {
		return nil, status.Error(codes.InvalidArgument, "empty content")
	}

	var out any
	err = s.staged(func(dir string) error {
		// the extension is kept for type inference
		src := filepath.Join(dir, "upload"+filepath.Ext(filepath.Base(req.Name)))
		if err := filex.WriteFileAtomic(src, req.Content); err != nil {
			return err
		}
		f, err := s.vault.AddFile(ctx, drive.NewFile{
			OwnerID:         userID,
			SourcePath:      src,
			Type:            req.Type,
			Width:           req.Width,
			Height:          req.Height,
			DurationMs:      req.DurationMs,
			Received:        req.Received,
			OriginalOwnerID: req.OriginalOwnerID,
		})
		if err != nil {
			return err
		}
		out = f
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Server) listFiles(ctx context.Context, req *pb.UserRequest) (any, error) {
	userID, err := caller(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	files, err := s.vault.ListFiles(ctx, userID)
	if err != nil {
		return nil, err
	}
	return pb.FilesResponse{Items: files}, nil
}

func (s *Server) deleteFile(ctx context.Context, req *pb.FileRequest) (any, error) {
	userID, err := caller(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	return pb.Empty{}, s.vault.DeleteFile(ctx, userID, req.FileID)
}

func (s *Server) revealFile(ctx context.Context, req *pb.FileRequest) (any, error) {
	userID, err := caller(ctx, req.UserID)
	if err != nil {
		return nil, err
	}

	var content []byte
	err = s.staged(func(dir string) error {
		dst := filepath.Join(dir, "reveal")
		if err := s.vault.RevealFile(ctx, userID, req.FileID, dst); err != nil {
			return err
		}
		b, err := os.ReadFile(dst)
		content = b
		return err
	})
	if err != nil {
		return nil, err
	}
	return pb.ContentResponse{Content: content}, nil
}

func (s *Server) share(ctx context.Context, req *pb.ShareRequest) (any, error) {
	userID, err := caller(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	grants, err := s.vault.Share(ctx, userID, req.FileID, req.Recipients)
	if err != nil {
		return nil, err
	}
	return pb.ShareResponse{Grants: grants}, nil
}

func (s *Server) inbox(ctx context.Context, req *pb.UserRequest) (any, error) {
	userID, err := caller(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	items, err := s.vault.Inbox(ctx, userID)
	if err != nil {
		return nil, err
	}
	return pb.SharesResponse{Items: items}, nil
}

func (s *Server) sent(ctx context.Context, req *pb.UserRequest) (any, error) {
	userID, err := caller(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	items, err := s.vault.Sent(ctx, userID)
	if err != nil {
		return nil, err
	}
	return pb.SharesResponse{Items: items}, nil
}

func (s *Server) view(ctx context.Context, req *pb.ViewRequest) (any, error) {
	userID, err := caller(ctx, req.UserID)
	if err != nil {
		return nil, err
	}

	var resp pb.ViewResponse
	err = s.staged(func(dir string) error {
		dst := ""
		if req.WithContent {
			dst = filepath.Join(dir, "view")
		}
		rec, err := s.vault.View(ctx, userID, req.RecordID, dst)
		if err != nil {
			return err
		}
		resp.Record = *rec
		if dst != "" {
			resp.Content, err = os.ReadFile(dst)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (s *Server) deleteShare(ctx context.Context, req *pb.RecordRequest) (any, error) {
	userID, err := caller(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	return pb.Empty{}, s.vault.DeleteShare(ctx, userID, req.RecordID)
}

func (s *Server) accessLog(ctx context.Context, req *pb.AccessLogRequest) (any, error) {
	userID, err := caller(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	items, err := s.vault.AccessLog(ctx, userID, req.Limit)
	if err != nil {
		return nil, err
	}
	return pb.AccessLogResponse{Items: items}, nil
}

func (s *Server) sweep(ctx context.Context, req *pb.Empty) (any, error) {
	if _, err := caller(ctx, ""); err != nil {
		return nil, err
	}
	res, err := s.vault.Sweep(ctx)
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (s *Server) wipe(ctx context.Context, req *pb.Empty) (any, error) {
	userID, err := caller(ctx, "")
	if err != nil {
		return nil, err
	}
	if !s.allowWipe {
		return nil, status.Error(codes.PermissionDenied, "remote wipe is disabled")
	}
	s.logger.Warn(ctx, "wipe requested", "user_id", userID)
	return pb.Empty{}, s.vault.Wipe(ctx)
}

func (s *Server) export(ctx context.Context, req *pb.ExportRequest) (any, error) {
	userID, err := caller(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	res, err := s.vault.Export(ctx, userID, req.Passphrase, req.Upload)
	if err != nil {
		return nil, err
	}
	return pb.ExportResponse{Data: res.Data, ContentType: res.ContentType, ObjectKey: res.ObjectKey}, nil
}
