package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/xuri/excelize/v2"

	"github.com/classcode-io/activity-service/internal/cache"
	"github.com/classcode-io/activity-service/internal/events"
	"github.com/classcode-io/activity-service/internal/models"
	"github.com/classcode-io/activity-service/internal/repositories"
	"github.com/classcode-io/activity-service/internal/scoring"
	"github.com/classcode-io/activity-service/internal/utils"
	"github.com/classcode-io/activity-service/internal/validator"
)

type submissionService struct {
	repo           repositories.Repository
	cache          *cache.CacheManager
	eventPublisher events.EventPublisher
	logger         *slog.Logger
	validator      *validator.Validator
	clock          utils.Clock
}

func NewSubmissionService(repo repositories.Repository, cacheManager *cache.CacheManager, eventPublisher events.EventPublisher, logger *slog.Logger, validator *validator.Validator, clock utils.Clock) SubmissionService {
	return &submissionService{
		repo:           repo,
		cache:          cacheManager,
		eventPublisher: eventPublisher,
		logger:         logger,
		validator:      validator,
		clock:          clock,
	}
}

// Finalize turns the student's draft into an immutable attempt. The whole
// state machine runs inside one transaction: the attempt counter increment,
// the per-item submission inserts, the policy selection, the pivot update,
// the rank recompute and the draft delete all commit or roll back together.
// The pivot row is read under a row lock, so two finalize calls for the same
// student serialize and receive distinct attempt numbers.
func (s *submissionService) Finalize(ctx context.Context, activityID, studentID uint, req *FinalizeSubmissionRequest) (*FinalizeResponse, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	activity, err := s.repo.Activity().GetByIDWithItems(ctx, nil, activityID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrActivityNotFound
		}
		return nil, fmt.Errorf("failed to load activity: %w", err)
	}

	enrolled, err := s.repo.Roster().IsEnrolled(ctx, nil, activity.ClassID, studentID)
	if err != nil {
		return nil, fmt.Errorf("failed to check enrollment: %w", err)
	}
	if !enrolled {
		return nil, ErrNotEnrolled
	}

	now := s.clock.Now()
	if !activity.IsOpen(now) {
		return nil, ErrActivityNotOpen
	}

	// Reject unknown items before touching any state.
	for _, sub := range req.Submissions {
		if _, ok := activityItemPoints(activity, sub.ItemID); !ok {
			return nil, ErrItemNotFound
		}
	}

	owner := models.OwnerRef{Kind: models.OwnerStudent, ID: studentID}
	var response *FinalizeResponse

	err = s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		summary, err := txRepo.Summary().GetForUpdate(ctx, nil, activityID, studentID)
		if err != nil {
			if !repositories.IsNotFoundError(err) {
				return fmt.Errorf("failed to lock summary: %w", err)
			}
			summary = &models.StudentActivitySummary{
				ActivityID: activityID,
				StudentID:  studentID,
			}
			if err := txRepo.Summary().Create(ctx, nil, summary); err != nil {
				// Two first attempts racing: neither locked read saw a row,
				// the loser trips the unique index.
				if repositories.IsDuplicateKeyError(err) {
					return ErrConcurrencyConflict
				}
				return fmt.Errorf("failed to create summary: %w", err)
			}
		}

		if activity.MaxAttempts > 0 && summary.AttemptsTaken >= activity.MaxAttempts {
			return ErrAttemptLimitExceeded
		}
		attemptNo := summary.AttemptsTaken + 1

		// Run counters come from the persisted draft, never the client.
		runCounts := map[uint]int{}
		draft, err := txRepo.Progress().Get(ctx, nil, activityID, owner)
		switch {
		case err == nil:
			if stored := draft.DraftCheckCodeRuns.Data(); stored != nil {
				runCounts = stored
			}
		case !repositories.IsNotFoundError(err):
			return fmt.Errorf("failed to load draft: %w", err)
		}

		submissions := make([]*models.Submission, 0, len(req.Submissions))
		for _, sub := range req.Submissions {
			basePoints, _ := activityItemPoints(activity, sub.ItemID)
			score := scoring.ApplyRunPenalty(
				sub.TestCaseScore,
				basePoints,
				runCounts[sub.ItemID],
				activity.CheckCodeDeduction,
				activity.MaxCheckCodeRuns,
				activity.CheckCodeRestriction,
			)
			submissions = append(submissions, &models.Submission{
				ActivityID:     activityID,
				StudentID:      studentID,
				ItemID:         sub.ItemID,
				AttemptNo:      attemptNo,
				CodeSubmission: jsonOrNil(sub.CodeSubmission),
				Score:          score,
				ItemTimeSpent:  sub.ItemTimeSpent,
				CheckCodeRuns:  runCounts[sub.ItemID],
				SubmittedAt:    now,
			})
		}
		if err := txRepo.Submission().CreateBatch(ctx, nil, submissions); err != nil {
			return fmt.Errorf("failed to store submissions: %w", err)
		}

		totals, err := txRepo.Submission().AttemptTotals(ctx, nil, activityID, studentID)
		if err != nil {
			return fmt.Errorf("failed to aggregate attempts: %w", err)
		}
		final, err := scoring.SelectFinal(attemptSummaries(totals), scoring.Policy(activity.FinalScorePolicy))
		if err != nil {
			return fmt.Errorf("failed to select final attempt: %w", err)
		}

		finalTime := final.TotalTimeSpent
		// A client-supplied overall time only wins when the policy keeps the
		// attempt it was measured for.
		if req.OverallTimeSpent != nil &&
			activity.FinalScorePolicy == models.PolicyLastAttempt &&
			final.AttemptNo == attemptNo {
			finalTime = *req.OverallTimeSpent
		}

		summary.AttemptsTaken = attemptNo
		summary.FinalScore = final.TotalScore
		summary.FinalTimeSpent = finalTime
		if err := txRepo.Summary().Update(ctx, nil, summary); err != nil {
			return fmt.Errorf("failed to update summary: %w", err)
		}

		ranks, err := s.recomputeRanks(ctx, txRepo, activity)
		if err != nil {
			return err
		}

		if err := txRepo.Progress().Delete(ctx, nil, activityID, owner); err != nil && !repositories.IsNotFoundError(err) {
			return fmt.Errorf("failed to delete draft: %w", err)
		}

		attemptsLeft := 0
		if activity.MaxAttempts > 0 {
			attemptsLeft = activity.MaxAttempts - attemptNo
		}
		response = &FinalizeResponse{
			AttemptNo:      attemptNo,
			FinalScore:     final.TotalScore,
			FinalTimeSpent: finalTime,
			Rank:           ranks[studentID],
			AttemptsLeft:   attemptsLeft,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		s.cache.InvalidateLeaderboard(ctx, activityID)
		safeCacheDelete(ctx, s.cache.Draft, draftCacheKey(activityID, owner))
	}

	s.publishEvent(ctx, events.ActivityEvent{
		Type:       events.EventSubmissionFinalized,
		ActivityID: activity.ID,
		ClassID:    activity.ClassID,
		Title:      activity.Title,
		Recipient:  models.OwnerRef{Kind: models.OwnerTeacher, ID: activity.TeacherID},
		OccurredAt: now,
		AttemptNo:  response.AttemptNo,
		FinalScore: response.FinalScore,
	})

	s.logger.Info("Submission finalized",
		"activity_id", activityID,
		"student_id", studentID,
		"attempt_no", response.AttemptNo,
		"final_score", response.FinalScore,
		"rank", response.Rank)
	return response, nil
}

// RecomputeFinalResults regrades the whole activity from the stored
// submissions in a single pass: one grouped aggregation query, one policy
// selection per student, one rank walk. Running it twice in a row is a
// no-op.
func (s *submissionService) RecomputeFinalResults(ctx context.Context, activityID, requesterID uint) error {
	activity, err := s.repo.Activity().GetByID(ctx, nil, activityID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrActivityNotFound
		}
		return fmt.Errorf("failed to load activity: %w", err)
	}
	if activity.TeacherID != requesterID {
		return NewPermissionError(requesterID, "activity", "recompute", "not the owning teacher")
	}

	err = s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		rows, err := txRepo.Submission().AttemptTotalsByActivity(ctx, nil, activityID)
		if err != nil {
			return fmt.Errorf("failed to aggregate submissions: %w", err)
		}

		byStudent := make(map[uint][]scoring.AttemptSummary)
		order := make([]uint, 0)
		for _, row := range rows {
			if _, seen := byStudent[row.StudentID]; !seen {
				order = append(order, row.StudentID)
			}
			byStudent[row.StudentID] = append(byStudent[row.StudentID], scoring.AttemptSummary{
				AttemptNo:      row.AttemptNo,
				TotalScore:     row.TotalScore,
				TotalTimeSpent: row.TotalTimeSpent,
				ItemCount:      row.ItemCount,
			})
		}

		for _, studentID := range order {
			final, err := scoring.SelectFinal(byStudent[studentID], scoring.Policy(activity.FinalScorePolicy))
			if err != nil {
				return fmt.Errorf("failed to select final attempt for student %d: %w", studentID, err)
			}
			summary, err := txRepo.Summary().Get(ctx, nil, activityID, studentID)
			if err != nil {
				if !repositories.IsNotFoundError(err) {
					return fmt.Errorf("failed to load summary: %w", err)
				}
				summary = &models.StudentActivitySummary{
					ActivityID:    activityID,
					StudentID:     studentID,
					AttemptsTaken: len(byStudent[studentID]),
				}
				if err := txRepo.Summary().Create(ctx, nil, summary); err != nil {
					return fmt.Errorf("failed to create summary: %w", err)
				}
			}
			summary.FinalScore = final.TotalScore
			summary.FinalTimeSpent = final.TotalTimeSpent
			if err := txRepo.Summary().Update(ctx, nil, summary); err != nil {
				return fmt.Errorf("failed to update summary: %w", err)
			}
		}

		_, err = s.recomputeRanks(ctx, txRepo, activity)
		return err
	})
	if err != nil {
		return err
	}

	if s.cache != nil {
		s.cache.InvalidateLeaderboard(ctx, activityID)
	}
	s.logger.Info("Final results recomputed", "activity_id", activityID)
	return nil
}

func (s *submissionService) Leaderboard(ctx context.Context, activityID uint) (*LeaderboardResponse, error) {
	activity, err := s.repo.Activity().GetByID(ctx, nil, activityID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrActivityNotFound
		}
		return nil, fmt.Errorf("failed to load activity: %w", err)
	}

	fetch := func() (interface{}, error) {
		return s.repo.Roster().LeaderboardRows(ctx, nil, activityID, activity.ClassID)
	}

	var rows []repositories.LeaderboardRow
	if s.cache != nil {
		err = s.cache.Leaderboard.CacheOrExecute(ctx, fmt.Sprintf("activity:%d", activityID), &rows,
			cache.LeaderboardCacheConfig.TTL, fetch)
	} else {
		rows, err = s.repo.Roster().LeaderboardRows(ctx, nil, activityID, activity.ClassID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load leaderboard: %w", err)
	}

	return &LeaderboardResponse{
		ActivityID: activityID,
		Rows:       rows,
		Total:      len(rows),
	}, nil
}

// ExportLeaderboard renders the current standings to a spreadsheet for the
// owning teacher. Returns the file bytes and a suggested filename.
func (s *submissionService) ExportLeaderboard(ctx context.Context, activityID, requesterID uint) ([]byte, string, error) {
	activity, err := s.repo.Activity().GetByID(ctx, nil, activityID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, "", ErrActivityNotFound
		}
		return nil, "", fmt.Errorf("failed to load activity: %w", err)
	}
	if activity.TeacherID != requesterID {
		return nil, "", NewPermissionError(requesterID, "leaderboard", "export", "not the owning teacher")
	}

	board, err := s.Leaderboard(ctx, activityID)
	if err != nil {
		return nil, "", err
	}

	f := excelize.NewFile()
	defer f.Close()

	sheet := "Leaderboard"
	f.SetSheetName("Sheet1", sheet)
	headers := []string{"Rank", "Lastname", "Firstname", "Score", "Time Spent (s)", "Attempts"}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, header)
	}
	for i, row := range board.Rows {
		values := []interface{}{row.Rank, row.Lastname, row.Firstname, row.FinalScore, row.FinalTimeSpent, row.AttemptsTaken}
		for j, value := range values {
			cell, _ := excelize.CoordinatesToCellName(j+1, i+2)
			f.SetCellValue(sheet, cell, value)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, "", fmt.Errorf("failed to render spreadsheet: %w", err)
	}
	filename := fmt.Sprintf("leaderboard_activity_%d.xlsx", activityID)
	return buf.Bytes(), filename, nil
}

func (s *submissionService) AttemptHistory(ctx context.Context, activityID, studentID uint) (*AttemptHistoryResponse, error) {
	if _, err := s.repo.Activity().GetByID(ctx, nil, activityID); err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrActivityNotFound
		}
		return nil, fmt.Errorf("failed to load activity: %w", err)
	}

	submissions, err := s.repo.Submission().ListByStudent(ctx, nil, activityID, studentID)
	if err != nil {
		return nil, fmt.Errorf("failed to load submissions: %w", err)
	}
	results := make([]scoring.ItemResult, 0, len(submissions))
	for _, sub := range submissions {
		results = append(results, scoring.ItemResult{
			AttemptNo:     sub.AttemptNo,
			Score:         sub.Score,
			ItemTimeSpent: sub.ItemTimeSpent,
		})
	}

	history := &AttemptHistoryResponse{
		ActivityID: activityID,
		StudentID:  studentID,
	}
	for _, summary := range scoring.AggregateAttempts(results) {
		history.Attempts = append(history.Attempts, AttemptSummaryResponse(summary))
	}

	summary, err := s.repo.Summary().Get(ctx, nil, activityID, studentID)
	if err == nil {
		history.FinalScore = summary.FinalScore
		history.Rank = summary.Rank
	} else if !repositories.IsNotFoundError(err) {
		return nil, fmt.Errorf("failed to load summary: %w", err)
	}
	return history, nil
}

func (s *submissionService) ListSubmissions(ctx context.Context, activityID, requesterID uint, filters repositories.SubmissionFilters) (*SubmissionListResponse, error) {
	activity, err := s.repo.Activity().GetByID(ctx, nil, activityID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrActivityNotFound
		}
		return nil, fmt.Errorf("failed to load activity: %w", err)
	}

	// Students only ever see their own rows.
	if activity.TeacherID != requesterID {
		filters.StudentID = &requesterID
	}

	submissions, total, err := s.repo.Submission().ListByActivity(ctx, nil, activityID, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list submissions: %w", err)
	}
	return &SubmissionListResponse{Submissions: submissions, Total: total}, nil
}

func (s *submissionService) UpdateSubmission(ctx context.Context, submissionID, studentID uint, req *UpdateSubmissionRequest) (*models.Submission, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	submission, err := s.repo.Submission().GetByID(ctx, nil, submissionID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrSubmissionNotFound
		}
		return nil, fmt.Errorf("failed to load submission: %w", err)
	}
	if submission.StudentID != studentID {
		return nil, NewPermissionError(studentID, "submission", "update", "not the owner")
	}

	if req.CodeSubmission != nil {
		submission.CodeSubmission = jsonOrNil(req.CodeSubmission)
	}
	if req.ItemTimeSpent != nil {
		submission.ItemTimeSpent = *req.ItemTimeSpent
	}
	if err := s.repo.Submission().Update(ctx, nil, submission); err != nil {
		return nil, fmt.Errorf("failed to update submission: %w", err)
	}
	return submission, nil
}

func (s *submissionService) DeleteSubmission(ctx context.Context, submissionID, studentID uint) error {
	submission, err := s.repo.Submission().GetByID(ctx, nil, submissionID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrSubmissionNotFound
		}
		return fmt.Errorf("failed to load submission: %w", err)
	}
	if submission.StudentID != studentID {
		return NewPermissionError(studentID, "submission", "delete", "not the owner")
	}
	return s.repo.Submission().Delete(ctx, nil, submissionID)
}

// recomputeRanks rebuilds the whole standings for the activity from the
// enrolled roster and writes the positions back to the pivot rows. Students
// with stale pivots who left the class are skipped entirely.
func (s *submissionService) recomputeRanks(ctx context.Context, txRepo repositories.Repository, activity *models.Activity) (map[uint]int, error) {
	enrolledIDs, err := txRepo.Roster().EnrolledStudentIDs(ctx, nil, activity.ClassID)
	if err != nil {
		return nil, fmt.Errorf("failed to load roster: %w", err)
	}
	enrolled := make(map[uint]bool, len(enrolledIDs))
	for _, id := range enrolledIDs {
		enrolled[id] = true
	}

	summaries, err := txRepo.Summary().ListByActivity(ctx, nil, activity.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load summaries: %w", err)
	}

	studentIDs := make([]uint, 0, len(summaries))
	for _, summary := range summaries {
		if enrolled[summary.StudentID] {
			studentIDs = append(studentIDs, summary.StudentID)
		}
	}
	users, err := txRepo.User().GetByIDs(ctx, nil, studentIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load students: %w", err)
	}
	names := make(map[uint]*models.User, len(users))
	for _, user := range users {
		names[user.ID] = user
	}

	entries := make([]scoring.RankEntry, 0, len(studentIDs))
	for _, summary := range summaries {
		if !enrolled[summary.StudentID] {
			continue
		}
		entry := scoring.RankEntry{
			StudentID: summary.StudentID,
			Score:     summary.FinalScore,
			TimeSpent: summary.FinalTimeSpent,
		}
		if user, ok := names[summary.StudentID]; ok {
			entry.Lastname = user.Lastname
			entry.Firstname = user.Firstname
		}
		entries = append(entries, entry)
	}

	ranks := make(map[uint]int, len(entries))
	for _, ranked := range scoring.Rank(entries) {
		ranks[ranked.StudentID] = ranked.Rank
	}
	if err := txRepo.Summary().UpdateRanks(ctx, nil, activity.ID, ranks); err != nil {
		return nil, fmt.Errorf("failed to write ranks: %w", err)
	}
	return ranks, nil
}

func (s *submissionService) publishEvent(ctx context.Context, event events.ActivityEvent) {
	if s.eventPublisher == nil {
		return
	}
	if err := s.eventPublisher.Publish(ctx, event); err != nil {
		s.logger.Error("Failed to publish event",
			"event_type", event.Type,
			"activity_id", event.ActivityID,
			"error", err)
	}
}

func attemptSummaries(totals []repositories.AttemptTotals) []scoring.AttemptSummary {
	summaries := make([]scoring.AttemptSummary, 0, len(totals))
	for _, t := range totals {
		summaries = append(summaries, scoring.AttemptSummary{
			AttemptNo:      t.AttemptNo,
			TotalScore:     t.TotalScore,
			TotalTimeSpent: t.TotalTimeSpent,
			ItemCount:      t.ItemCount,
		})
	}
	return summaries
}
