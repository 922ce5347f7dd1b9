package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/victornm/codexa/internal/auth"
	"github.com/victornm/codexa/internal/domain"
	"github.com/victornm/codexa/internal/errors"
	"github.com/victornm/codexa/internal/quiz"
	"github.com/victornm/codexa/internal/registration"
	"github.com/victornm/codexa/internal/score"
)

// RegisterRoutes mounts the quiz endpoints under /quiz. Callers are expected to have installed the
// auth middleware so that claims, when present, are on the request context.
func (a *API) RegisterRoutes(r gin.IRouter) {
	g := r.Group("/quiz")

	g.POST("/quizzes", a.createQuiz)
	g.GET("/quizzes", a.listQuizzes)
	g.GET("/quizzes/:id", a.getQuiz)
	g.POST("/quizzes/:id/questions", a.addQuestion)
	g.POST("/quizzes/:id/publish", a.publishQuiz)
	g.POST("/quizzes/:id/register", a.register)
	g.POST("/quizzes/:id/check", a.checkRegistration)
	g.POST("/quizzes/:id/join", a.join)
	g.GET("/quizzes/:id/status", a.status)
	g.GET("/quizzes/:id/attempt", a.attempt)
	g.POST("/quizzes/:id/submit", a.submit)
	g.GET("/quizzes/:id/results", a.results)
	g.GET("/quizzes/:id/leaderboard", a.leaderboard)
	g.GET("/quizzes/:id/leaderboard/live", a.liveLeaderboard)
}

type createQuizRequest struct {
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	Instructions string    `json:"instructions"`
	StartTime    time.Time `json:"start_time"`
	EndTime      time.Time `json:"end_time"`
	CreatedBy    int64     `json:"created_by"`
}

func (a *API) createQuiz(c *gin.Context) {
	ctx := c.Request.Context()

	claims, err := auth.Authorize(ctx, auth.CapabilityAuthor)
	if err != nil {
		renderError(c, err)
		return
	}

	var req createQuizRequest
	if !bindJSON(c, &req) {
		return
	}

	author, err := claims.ActingAs(req.CreatedBy)
	if err != nil {
		renderError(c, err)
		return
	}

	q, err := a.qb.CreateQuiz(ctx, quiz.CreateQuizRequest{
		Name:         req.Name,
		Description:  req.Description,
		Instructions: req.Instructions,
		StartTime:    req.StartTime,
		EndTime:      req.EndTime,
		CreatedBy:    author,
	})
	if err != nil {
		renderError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "Quiz created", "quiz": quizView(q, true)})
}

type addQuestionRequest struct {
	Question string `json:"question"`
	Marks    int    `json:"marks"`
	Options  []struct {
		Text      string `json:"text"`
		IsCorrect bool   `json:"isCorrect"`
	} `json:"options"`
}

func (a *API) addQuestion(c *gin.Context) {
	ctx := c.Request.Context()

	if _, err := auth.Authorize(ctx, auth.CapabilityAuthor); err != nil {
		renderError(c, err)
		return
	}

	quizID, ok := quizIDParam(c)
	if !ok {
		return
	}

	var req addQuestionRequest
	if !bindJSON(c, &req) {
		return
	}

	opts := make([]quiz.Option, 0, len(req.Options))
	for _, o := range req.Options {
		opts = append(opts, quiz.Option{Text: o.Text, IsCorrect: o.IsCorrect})
	}

	q, err := a.qb.AddQuestion(ctx, quiz.AddQuestionRequest{
		QuizID:  quizID,
		Text:    req.Question,
		Marks:   req.Marks,
		Options: opts,
	})
	if err != nil {
		renderError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "Question added", "question": questionView(q, true)})
}

func (a *API) publishQuiz(c *gin.Context) {
	ctx := c.Request.Context()

	if _, err := auth.Authorize(ctx, auth.CapabilityAuthor); err != nil {
		renderError(c, err)
		return
	}

	quizID, ok := quizIDParam(c)
	if !ok {
		return
	}

	q, err := a.qb.PublishQuiz(ctx, quizID)
	if err != nil {
		renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Quiz published successfully", "quiz": quizView(q, true)})
}

func (a *API) listQuizzes(c *gin.Context) {
	qs, err := a.qb.ListPublishedQuizzes(c.Request.Context())
	if err != nil {
		renderError(c, err)
		return
	}

	views := make([]Quiz, 0, len(qs))
	for i := range qs {
		v := quizView(&qs[i], false)
		v.Questions = nil
		views = append(views, v)
	}

	c.JSON(http.StatusOK, views)
}

func (a *API) getQuiz(c *gin.Context) {
	ctx := c.Request.Context()

	quizID, ok := quizIDParam(c)
	if !ok {
		return
	}

	claims, _ := auth.FromContext(ctx)
	author := claims.Can(auth.CapabilityAuthor)

	q, err := a.gate.CheckEligibility(ctx, registration.EligibilityRequest{
		QuizID:  quizID,
		Preview: author,
	})
	if err != nil {
		renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, quizView(q, author))
}

type participantRequest struct {
	UserID int64 `json:"user_id"`
}

func (a *API) register(c *gin.Context) {
	quizID, userID, ok := a.participant(c)
	if !ok {
		return
	}

	resp, err := a.gate.Register(c.Request.Context(), quizID, userID)
	if err != nil {
		renderError(c, err)
		return
	}

	msg := "Registration successful"
	if resp.AlreadyRegistered {
		msg = "Already registered"
	}

	c.JSON(http.StatusOK, gin.H{"registered": true, "message": msg})
}

func (a *API) checkRegistration(c *gin.Context) {
	quizID, userID, ok := a.participant(c)
	if !ok {
		return
	}

	registered, err := a.gate.IsRegistered(c.Request.Context(), quizID, userID)
	if err != nil {
		renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"registered": registered})
}

func (a *API) join(c *gin.Context) {
	quizID, userID, ok := a.participant(c)
	if !ok {
		return
	}

	registered, err := a.gate.IsRegistered(c.Request.Context(), quizID, userID)
	if err != nil {
		renderError(c, err)
		return
	}

	if !registered {
		c.JSON(http.StatusOK, gin.H{"joined": false, "message": "NOT_REGISTERED"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"joined": true})
}

func (a *API) status(c *gin.Context) {
	quizID, ok := quizIDParam(c)
	if !ok {
		return
	}

	st, err := a.gate.Status(c.Request.Context(), quizID)
	if err != nil {
		renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": st})
}

func (a *API) attempt(c *gin.Context) {
	ctx := c.Request.Context()

	claims, err := auth.Authorize(ctx, auth.CapabilityParticipate)
	if err != nil {
		renderError(c, err)
		return
	}

	quizID, ok := quizIDParam(c)
	if !ok {
		return
	}

	q, err := a.gate.OpenAttempt(ctx, quizID, claims.UserID)
	if err != nil {
		renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "questions": questionViews(q.Questions, false)})
}

type submitRequest struct {
	UserID  int64    `json:"user_id"`
	Answers []Answer `json:"answers"`
}

func (a *API) submit(c *gin.Context) {
	ctx := c.Request.Context()

	claims, err := auth.Authorize(ctx, auth.CapabilityParticipate)
	if err != nil {
		renderError(c, err)
		return
	}

	quizID, ok := quizIDParam(c)
	if !ok {
		return
	}

	var req submitRequest
	if !bindJSON(c, &req) {
		return
	}

	userID, err := claims.ActingAs(req.UserID)
	if err != nil {
		renderError(c, err)
		return
	}

	answers, err := parseAnswers(req.Answers)
	if err != nil {
		renderError(c, err)
		return
	}

	resp, err := a.ss.SubmitQuiz(ctx, score.SubmitQuizRequest{
		QuizID:  quizID,
		UserID:  userID,
		Answers: answers,
	})
	if err != nil {
		renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":         "Quiz submitted",
		"score":           resp.Result.Score,
		"answered":        resp.Result.Answered,
		"total_questions": resp.Result.TotalQuestions,
		"resubmitted":     resp.Resubmitted,
	})
}

func (a *API) results(c *gin.Context) {
	quizID, ok := quizIDParam(c)
	if !ok {
		return
	}

	standings, err := a.ss.ListResults(c.Request.Context(), quizID)
	if err != nil {
		renderError(c, err)
		return
	}

	views := make([]Standing, 0, len(standings))
	for _, st := range standings {
		views = append(views, Standing(st))
	}

	c.JSON(http.StatusOK, views)
}

func (a *API) leaderboard(c *gin.Context) {
	quizID, ok := quizIDParam(c)
	if !ok {
		return
	}

	l, err := a.ls.GetLeaderboard(c.Request.Context(), quizID)
	if err != nil {
		renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"leaderboard": leaderboardView(l).Entries})
}

// participant resolves the quiz and the user a registration call acts for.
func (a *API) participant(c *gin.Context) (quizID, userID int64, ok bool) {
	claims, err := auth.Authorize(c.Request.Context(), auth.CapabilityParticipate)
	if err != nil {
		renderError(c, err)
		return 0, 0, false
	}

	if quizID, ok = quizIDParam(c); !ok {
		return 0, 0, false
	}

	var req participantRequest
	if c.Request.ContentLength != 0 && !bindJSON(c, &req) {
		return 0, 0, false
	}

	userID, err = claims.ActingAs(req.UserID)
	if err != nil {
		renderError(c, err)
		return 0, 0, false
	}

	return quizID, userID, true
}

func parseAnswers(in []Answer) ([]domain.Answer, error) {
	answers := make([]domain.Answer, 0, len(in))
	for i, a := range in {
		l, ok := domain.ParseLetter(a.SelectedOption)
		if !ok {
			return nil, errors.InvalidArgument("invalid answers[%d].selected_option: %q", i, a.SelectedOption)
		}

		answers = append(answers, domain.Answer{QuestionID: a.QuestionID, SelectedOption: l})
	}

	return answers, nil
}

func quizIDParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		renderError(c, errors.InvalidArgument("invalid quiz id: %q", c.Param("id")))
		return 0, false
	}

	return id, true
}

func bindJSON(c *gin.Context, v any) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		renderError(c, errors.New(errors.CodeInvalidArgument,
			errors.WithMessagef("invalid request body: %s", strings.TrimSpace(err.Error())),
			errors.WithCause(err)))
		return false
	}

	return true
}

// renderError writes err as JSON. Errors without a code are logged and reported as Internal with
// no detail.
func renderError(c *gin.Context, err error) {
	e := errors.Convert(err)
	if e.Code == errors.CodeInternal {
		slog.ErrorContext(c.Request.Context(), "api: request failed",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"error", err,
		)
	}

	c.AbortWithStatusJSON(e.HTTPStatusCode(), e)
}
