package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-proctor/internal/middleware"
	"github.com/stemsi/exstem-proctor/internal/model"
	"github.com/stemsi/exstem-proctor/internal/response"
	"github.com/stemsi/exstem-proctor/internal/service"
)

// StudentPortalHandler handles the REST side of taking an exam: the set
// selection screen, the instructions hop and result lookups.
type StudentPortalHandler struct {
	sessions   *service.SessionService
	access     *service.AccessService
	loader     *service.LoaderService
	unlock     *service.UnlockService
	continuity *service.ContinuityService
	tokens     *service.ChainTokenService
	results    *service.ResultService
	now        func() time.Time
	log        zerolog.Logger
}

// NewStudentPortalHandler creates a new StudentPortalHandler.
func NewStudentPortalHandler(
	sessions *service.SessionService,
	access *service.AccessService,
	loader *service.LoaderService,
	unlock *service.UnlockService,
	continuity *service.ContinuityService,
	tokens *service.ChainTokenService,
	results *service.ResultService,
	log zerolog.Logger,
) *StudentPortalHandler {
	return &StudentPortalHandler{
		sessions:   sessions,
		access:     access,
		loader:     loader,
		unlock:     unlock,
		continuity: continuity,
		tokens:     tokens,
		results:    results,
		now:        time.Now,
		log:        log.With().Str("component", "student_portal_handler").Logger(),
	}
}

// ListSets godoc
// GET /api/v1/student/exams/:exam_id/sets
// Returns every set of the exam with its lock state.
func (h *StudentPortalHandler) ListSets(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	examID, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	exam, err := h.sessions.GetExam(c.Request.Context(), examID)
	if err != nil {
		failWith(c, err, "")
		return
	}
	if err := h.access.Verify(c.Request.Context(), claims.UserID, examID); err != nil {
		failWith(c, err, service.PurchasePath(examID))
		return
	}

	sets, err := h.unlock.ListSets(c.Request.Context(), claims.UserID, examID, h.now())
	if err != nil {
		h.log.Error().Err(err).Str("exam_id", examID.String()).Msg("Failed to list sets")
		failWith(c, err, "")
		return
	}
	if !exam.IsChain() {
		// Standalone sets never lock.
		for i := range sets {
			sets[i].Decision.Locked = false
			sets[i].Decision.Message = ""
			sets[i].Decision.UnlockAt = nil
		}
	}

	response.Success(c, http.StatusOK, gin.H{"exam": exam, "sets": sets})
}

// GetInstructions godoc
// GET /api/v1/student/exams/:exam_id/sets/:set_id/instructions?chain_token=...
// Rebuilds the chain position from the backend and issues the chain token
// carried into the session.
func (h *StudentPortalHandler) GetInstructions(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	examID, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}
	setID, err := uuid.Parse(c.Param("set_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	ctx := c.Request.Context()
	exam, err := h.sessions.GetExam(ctx, examID)
	if err != nil {
		failWith(c, err, "")
		return
	}
	if err := h.access.Verify(ctx, claims.UserID, examID); err != nil {
		failWith(c, err, service.PurchasePath(examID))
		return
	}

	set, err := h.loader.GetSet(ctx, setID)
	if err != nil {
		failWith(c, err, "")
		return
	}
	if set.ParentExamID != examID {
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		return
	}

	out := model.InstructionsResponse{Set: *set}
	if exam.IsChain() {
		pos, err := h.continuity.ResolveWithToken(ctx, claims.UserID, examID, setID, c.Query("chain_token"))
		if err != nil {
			failWith(c, err, "")
			return
		}
		decision, err := h.unlock.Evaluate(ctx, claims.UserID, examID, pos.SetNumber, h.now())
		if err != nil {
			failWith(c, err, "")
			return
		}
		out.Position = pos
		out.Decision = decision

		if !decision.Locked {
			token, err := h.tokens.Issue(claims.UserID, *pos)
			if err != nil {
				h.log.Warn().Err(err).Msg("Failed to issue chain token")
			}
			out.ChainToken = token
		}
	}

	response.Success(c, http.StatusOK, out)
}

// GetChainResult godoc
// GET /api/v1/student/exams/:exam_id/result
// Aggregates the student's results over every set of a chain.
func (h *StudentPortalHandler) GetChainResult(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	examID, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	def, err := h.continuity.Definition(c.Request.Context(), examID)
	if err != nil {
		failWith(c, err, "")
		return
	}

	res, err := h.results.ChainResult(c.Request.Context(), claims.UserID, examID, def.ChainLength)
	if err != nil {
		failWith(c, err, "")
		return
	}
	response.Success(c, http.StatusOK, res)
}

// GetSetResult godoc
// GET /api/v1/student/results/:set_id
// Returns the stored result of one set, used when the result view is
// reloaded without navigation state.
func (h *StudentPortalHandler) GetSetResult(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	setID, err := uuid.Parse(c.Param("set_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	rec, err := h.results.SetResult(c.Request.Context(), claims.UserID, setID)
	if err != nil {
		failWith(c, err, "")
		return
	}
	response.Success(c, http.StatusOK, gin.H{
		"result": rec,
		"state": model.NavigationState{
			Score:     rec.Score,
			TimeTaken: rec.TimeTaken,
			Total:     rec.TotalQuestions,
		},
	})
}
