package api

import (
	"context"
	"encoding/json"
	"log/slog"

	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"

	"github.com/victornm/codexa/internal/auth"
	"github.com/victornm/codexa/internal/errors"
	"github.com/victornm/codexa/internal/registration"
	"github.com/victornm/codexa/internal/score"
)

// QuizService messages travel as JSON under the "json" content subtype.
const codecName = "json"

type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (jsonCodec) Name() string                       { return codecName }

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

type (
	GetQuizRequest struct {
		QuizID int64 `json:"quiz_id"`
	}

	GetQuizResponse struct {
		Quiz Quiz `json:"quiz"`
	}

	SubmitQuizRequest struct {
		QuizID  int64    `json:"quiz_id"`
		UserID  int64    `json:"user_id,omitempty"`
		Answers []Answer `json:"answers"`
	}

	SubmitQuizResponse struct {
		Score          int  `json:"score"`
		Answered       int  `json:"answered"`
		TotalQuestions int  `json:"total_questions"`
		Resubmitted    bool `json:"resubmitted"`
	}

	GetLeaderboardRequest struct {
		QuizID int64 `json:"quiz_id"`
	}

	GetLeaderboardResponse struct {
		Leaderboard Leaderboard `json:"leaderboard"`
	}
)

type QuizServiceServer interface {
	GetQuiz(ctx context.Context, req *GetQuizRequest) (*GetQuizResponse, error)
	SubmitQuiz(ctx context.Context, req *SubmitQuizRequest) (*SubmitQuizResponse, error)
	GetLeaderboard(ctx context.Context, req *GetLeaderboardRequest) (*GetLeaderboardResponse, error)
}

const quizServiceName = "codexa.v1.QuizService"

var quizServiceDesc = grpc.ServiceDesc{
	ServiceName: quizServiceName,
	HandlerType: (*QuizServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetQuiz", Handler: unaryHandler("GetQuiz", QuizServiceServer.GetQuiz)},
		{MethodName: "SubmitQuiz", Handler: unaryHandler("SubmitQuiz", QuizServiceServer.SubmitQuiz)},
		{MethodName: "GetLeaderboard", Handler: unaryHandler("GetLeaderboard", QuizServiceServer.GetLeaderboard)},
	},
}

func unaryHandler[Req, Resp any](method string, call func(QuizServiceServer, context.Context, *Req) (*Resp, error)) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	fullMethod := "/" + quizServiceName + "/" + method

	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}

		handler := func(ctx context.Context, req any) (any, error) {
			resp, err := call(srv.(QuizServiceServer), ctx, req.(*Req))
			if err != nil {
				return nil, grpcError(ctx, fullMethod, err)
			}
			return resp, nil
		}

		if interceptor == nil {
			return handler(ctx, in)
		}

		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		return interceptor(ctx, in, info, handler)
	}
}

// grpcError converts err to a coded error. Errors without a code are logged and reported as Internal
// with no detail.
func grpcError(ctx context.Context, method string, err error) error {
	e := errors.Convert(err)
	if e.Code == errors.CodeInternal {
		slog.ErrorContext(ctx, "api: rpc failed", "method", method, "error", err)
	}

	return e
}

func (a *API) GetQuiz(ctx context.Context, req *GetQuizRequest) (*GetQuizResponse, error) {
	claims, _ := auth.FromContext(ctx)
	author := claims.Can(auth.CapabilityAuthor)

	q, err := a.gate.CheckEligibility(ctx, registration.EligibilityRequest{
		QuizID:  req.QuizID,
		Preview: author,
	})
	if err != nil {
		return nil, err
	}

	return &GetQuizResponse{Quiz: quizView(q, author)}, nil
}

func (a *API) SubmitQuiz(ctx context.Context, req *SubmitQuizRequest) (*SubmitQuizResponse, error) {
	claims, err := auth.Authorize(ctx, auth.CapabilityParticipate)
	if err != nil {
		return nil, err
	}

	userID, err := claims.ActingAs(req.UserID)
	if err != nil {
		return nil, err
	}

	answers, err := parseAnswers(req.Answers)
	if err != nil {
		return nil, err
	}

	resp, err := a.ss.SubmitQuiz(ctx, score.SubmitQuizRequest{
		QuizID:  req.QuizID,
		UserID:  userID,
		Answers: answers,
	})
	if err != nil {
		return nil, err
	}

	return &SubmitQuizResponse{
		Score:          resp.Result.Score,
		Answered:       resp.Result.Answered,
		TotalQuestions: resp.Result.TotalQuestions,
		Resubmitted:    resp.Resubmitted,
	}, nil
}

func (a *API) GetLeaderboard(ctx context.Context, req *GetLeaderboardRequest) (*GetLeaderboardResponse, error) {
	l, err := a.ls.GetLeaderboard(ctx, req.QuizID)
	if err != nil {
		return nil, err
	}

	return &GetLeaderboardResponse{Leaderboard: leaderboardView(l)}, nil
}

// QuizClient calls a remote QuizService.
type QuizClient struct {
	cc grpc.ClientConnInterface
}

func NewQuizClient(cc grpc.ClientConnInterface) *QuizClient {
	return &QuizClient{cc: cc}
}

func (c *QuizClient) GetQuiz(ctx context.Context, in *GetQuizRequest, opts ...grpc.CallOption) (*GetQuizResponse, error) {
	out := new(GetQuizResponse)
	if err := c.invoke(ctx, "GetQuiz", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *QuizClient) SubmitQuiz(ctx context.Context, in *SubmitQuizRequest, opts ...grpc.CallOption) (*SubmitQuizResponse, error) {
	out := new(SubmitQuizResponse)
	if err := c.invoke(ctx, "SubmitQuiz", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *QuizClient) GetLeaderboard(ctx context.Context, in *GetLeaderboardRequest, opts ...grpc.CallOption) (*GetLeaderboardResponse, error) {
	out := new(GetLeaderboardResponse)
	if err := c.invoke(ctx, "GetLeaderboard", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *QuizClient) invoke(ctx context.Context, method string, in, out any, opts []grpc.CallOption) error {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(codecName)}, opts...)
	return c.cc.Invoke(ctx, "/"+quizServiceName+"/"+method, in, out, opts...)
}
