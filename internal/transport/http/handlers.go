package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"studyhub-contest-service/internal/app"
	"studyhub-contest-service/internal/domain"
)

// respondDomainError maps the error taxonomy onto stable HTTP codes.
func respondDomainError(w http.ResponseWriter, err error) {
	var insufficient *domain.InsufficientQuestionsError
	var validation *domain.ValidationError

	switch {
	case errors.As(err, &insufficient):
		respondError(w, http.StatusBadRequest, "insufficient_questions", insufficient.Error())
	case errors.As(err, &validation):
		respondError(w, http.StatusBadRequest, "validation_error", validation.Message)
	case errors.Is(err, domain.ErrContestNotFound),
		errors.Is(err, domain.ErrAttemptNotFound),
		errors.Is(err, domain.ErrRegistrationNotFound):
		respondError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, domain.ErrQuestionNotFound):
		respondError(w, http.StatusNotFound, "question_not_found", err.Error())
	case errors.Is(err, domain.ErrContestEnded):
		respondError(w, http.StatusBadRequest, "contest_ended", err.Error())
	case errors.Is(err, domain.ErrContestNotStarted),
		errors.Is(err, domain.ErrRegistrationClosed),
		errors.Is(err, domain.ErrAlreadyRegistered),
		errors.Is(err, domain.ErrNotRegistered),
		errors.Is(err, domain.ErrAttemptCompleted),
		errors.Is(err, domain.ErrContestLocked):
		respondError(w, http.StatusBadRequest, "invalid_state", err.Error())
	default:
		respondError(w, http.StatusInternalServerError, "internal", "internal server error")
	}
}

func (s *Server) handleListContests(w http.ResponseWriter, r *http.Request) {
	contests, err := s.service.ListContests(r.Context())
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"contests": contests})
}

func (s *Server) handleGetContest(w http.ResponseWriter, r *http.Request) {
	contest, err := s.service.GetContest(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, contest)
}

type createContestRequest struct {
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	Difficulty    string    `json:"difficulty"`
	Topics        []string  `json:"topics"`
	Subjects      []string  `json:"subjects"`
	Eligibility   string    `json:"eligibility"`
	StartTime     time.Time `json:"startTime"`
	EndTime       time.Time `json:"endTime"`
	QuestionCount int       `json:"questionCount"`
}

func (s *Server) handleCreateContest(w http.ResponseWriter, r *http.Request) {
	var req createContestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "validation_error", "invalid request body")
		return
	}
	generated, err := s.service.CreateContest(r.Context(), app.GenerateSpec{
		Title:         req.Title,
		Description:   req.Description,
		Difficulty:    domain.Difficulty(req.Difficulty),
		Topics:        req.Topics,
		Subjects:      req.Subjects,
		Eligibility:   req.Eligibility,
		StartTime:     req.StartTime,
		EndTime:       req.EndTime,
		QuestionCount: req.QuestionCount,
		CreatedBy:     userFrom(r),
	})
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]interface{}{
		"contest":      generated.Contest,
		"questions":    generated.Questions,
		"totalPoints":  generated.TotalPoints,
		"passingScore": generated.PassingScore,
	})
}

type updateContestRequest struct {
	Title       *string    `json:"title"`
	Description *string    `json:"description"`
	Topics      []string   `json:"topics"`
	Eligibility *string    `json:"eligibility"`
	StartTime   *time.Time `json:"startTime"`
	EndTime     *time.Time `json:"endTime"`
}

func (s *Server) handleUpdateContest(w http.ResponseWriter, r *http.Request) {
	var req updateContestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "validation_error", "invalid request body")
		return
	}
	contest, err := s.service.UpdateContest(r.Context(), chi.URLParam(r, "id"), userFrom(r), app.ContestUpdate{
		Title:       req.Title,
		Description: req.Description,
		Topics:      req.Topics,
		Eligibility: req.Eligibility,
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
	})
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, contest)
}

func (s *Server) handleRemoveAssignment(w http.ResponseWriter, r *http.Request) {
	err := s.service.RemoveAssignment(r.Context(), chi.URLParam(r, "id"), userFrom(r), chi.URLParam(r, "assignmentID"))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "question removed"})
}

type registerRequest struct {
	IsVirtual bool `json:"isVirtual"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "validation_error", "invalid request body")
			return
		}
	}
	if err := s.service.Register(r.Context(), chi.URLParam(r, "id"), userFrom(r), req.IsVirtual); err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "registered for contest"})
}

func (s *Server) handleUnregister(w http.ResponseWriter, r *http.Request) {
	if err := s.service.Unregister(r.Context(), chi.URLParam(r, "id"), userFrom(r)); err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "registration removed"})
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	result, err := s.service.StartAttempt(r.Context(), chi.URLParam(r, "id"), userFrom(r))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

type answerRequest struct {
	QuestionID string `json:"questionId"`
	Answer     *int   `json:"answer"`
}

func (s *Server) handleSaveAnswer(w http.ResponseWriter, r *http.Request) {
	var req answerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "validation_error", "invalid request body")
		return
	}
	if req.QuestionID == "" || req.Answer == nil {
		respondError(w, http.StatusBadRequest, "validation_error", "questionId and answer are required")
		return
	}
	timeRemaining, err := s.service.SaveAnswer(r.Context(), chi.URLParam(r, "attemptID"), userFrom(r), req.QuestionID, *req.Answer)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"timeRemaining": timeRemaining})
}

type submitRequest struct {
	TimeSpent    *int `json:"timeSpent"`
	IsAutoSubmit bool `json:"isAutoSubmit"`
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "validation_error", "invalid request body")
			return
		}
	}
	result, err := s.service.Submit(r.Context(), chi.URLParam(r, "attemptID"), userFrom(r), req.TimeSpent, req.IsAutoSubmit)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	results, err := s.service.Results(r.Context(), chi.URLParam(r, "attemptID"), userFrom(r))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, results)
}

func (s *Server) handleRankings(w http.ResponseWriter, r *http.Request) {
	leaderboard, err := s.service.Rankings(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, leaderboard)
}

func (s *Server) handleAutoSubmitExpired(w http.ResponseWriter, r *http.Request) {
	submitted, err := s.service.SweepExpired(r.Context())
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]int{"submittedAttempts": submitted})
}
