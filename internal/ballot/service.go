package ballot

import (
	"context"
	"log"
	"math"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"hostel-allocation-backend/internal/apperr"
	"hostel-allocation-backend/internal/model"
	"hostel-allocation-backend/internal/store"
)

// weightSumTolerance is the allowed deviation of the three weights from 1.0.
const weightSumTolerance = 0.001

// Notifier is told about confirmed allocations so students can be pushed a
// notification. Implementations must not block.
type Notifier interface {
	AllocationConfirmed(studentID string)
}

// Service is the ballot engine's entry point: configuration, runs,
// approval/reversal, and bulk auto-assignment.
type Service struct {
	store    store.Store
	notifier Notifier
	validate *validator.Validate
	now      func() time.Time
	rng      *rand.Rand

	// One lock per session id. Two runs for the same session must never race
	// on the same room capacity.
	locks sync.Map
}

// NewService creates the ballot service. notifier may be nil.
func NewService(st store.Store, notifier Notifier) *Service {
	return &Service{
		store:    st,
		notifier: notifier,
		validate: validator.New(),
		now:      func() time.Time { return time.Now().UTC() },
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// ConfigParams carries the admin-supplied ballot configuration.
type ConfigParams struct {
	PaymentWeight     float64 `json:"payment_weight" validate:"gte=0,lte=1"`
	CategoryWeight    float64 `json:"category_weight" validate:"gte=0,lte=1"`
	LevelWeight       float64 `json:"level_weight" validate:"gte=0,lte=1"`
	FreshStudentScore float64 `json:"fresh_student_score" validate:"gte=0"`
	FinalYearScore    float64 `json:"final_year_score" validate:"gte=0"`
	Level300Score     float64 `json:"level_300_score" validate:"gte=0"`
	Level200Score     float64 `json:"level_200_score" validate:"gte=0"`
}

// Configure validates and upserts the scoring configuration for a session.
// The three weights must sum to 1.0 within tolerance.
func (s *Service) Configure(ctx context.Context, sessionID, actorID string, params ConfigParams) (*model.BallotConfig, error) {
	if err := s.validate.Struct(params); err != nil {
		return nil, apperr.Validation(err.Error())
	}
	sum := params.PaymentWeight + params.CategoryWeight + params.LevelWeight
	if math.Abs(sum-1.0) > weightSumTolerance {
		return nil, apperr.Validation("ballot weights must sum to 1.0")
	}

	if _, err := s.store.SessionByID(ctx, sessionID); err != nil {
		return nil, err
	}

	cfg := &model.BallotConfig{
		SessionID:         sessionID,
		PaymentWeight:     params.PaymentWeight,
		CategoryWeight:    params.CategoryWeight,
		LevelWeight:       params.LevelWeight,
		FreshStudentScore: params.FreshStudentScore,
		FinalYearScore:    params.FinalYearScore,
		Level300Score:     params.Level300Score,
		Level200Score:     params.Level200Score,
		CreatedBy:         actorID,
	}
	if err := s.store.UpsertBallotConfig(ctx, cfg); err != nil {
		return nil, err
	}

	s.store.Audit(ctx, &actorID, "ballot_configured", "ballot_config", cfg.ID, params, "")
	return cfg, nil
}

// RunResult is the outcome of one ballot run.
type RunResult struct {
	Run         *model.BallotRun
	Assignments []Assignment
	Failures    []Failure
}

// Run executes the ballot for a session: snapshot the config (creating a
// default one if absent), score and sort the verified pool, match candidates
// to rooms, persist the run record, and auto-approve it.
func (s *Service) Run(ctx context.Context, sessionID, actorID string) (*RunResult, error) {
	session, err := s.store.SessionByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	mu := s.sessionLock(session.ID)
	if !mu.TryLock() {
		return nil, apperr.Conflict(apperr.CodeBallotInProgress, "a ballot run is already in progress for this session")
	}
	defer mu.Unlock()

	cfg, err := s.store.BallotConfigFor(ctx, session.ID)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		cfg = &model.BallotConfig{
			SessionID:         session.ID,
			PaymentWeight:     DefaultWeights.Payment,
			CategoryWeight:    DefaultWeights.Category,
			LevelWeight:       DefaultWeights.Level,
			FreshStudentScore: DefaultWeights.FreshStudentScore,
			FinalYearScore:    DefaultWeights.FinalYearScore,
			Level300Score:     DefaultWeights.Level300Score,
			Level200Score:     DefaultWeights.Level200Score,
			CreatedBy:         actorID,
		}
		if err := s.store.UpsertBallotConfig(ctx, cfg); err != nil {
			return nil, err
		}
		log.Printf("ballot: no configuration for session %s, created defaults", session.ID)
	}
	weights := WeightsFromConfig(cfg)

	pool, err := s.store.BallotPool(ctx, session.ID)
	if err != nil {
		return nil, err
	}

	totalApps, totalVerified, err := s.store.ApplicationCounts(ctx, session.ID)
	if err != nil {
		return nil, err
	}

	indexes, totalSpaces, err := s.buildIndexes(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now()
	candidates := make([]Candidate, 0, len(pool))
	for i := range pool {
		app := pool[i]
		candidates = append(candidates, Candidate{
			Student:     app.Student,
			Application: &pool[i],
			Score:       PriorityScore(app.Student.Level, app.PaymentVerifiedAt, weights, now),
		})
	}
	sortCandidates(candidates)

	run := &model.BallotRun{
		SessionID:                 session.ID,
		ConfigID:                  cfg.ID,
		SnapshotPaymentWeight:     cfg.PaymentWeight,
		SnapshotCategoryWeight:    cfg.CategoryWeight,
		SnapshotLevelWeight:       cfg.LevelWeight,
		SnapshotFreshStudentScore: cfg.FreshStudentScore,
		SnapshotFinalYearScore:    cfg.FinalYearScore,
		SnapshotLevel300Score:     cfg.Level300Score,
		SnapshotLevel200Score:     cfg.Level200Score,
		TotalApplicants:           int(totalApps),
		TotalVerified:             int(totalVerified),
		TotalSpaces:               totalSpaces,
		Status:                    model.RunStatusRunning,
		RunAt:                     now,
		RunBy:                     actorID,
	}
	if err := s.store.CreateBallotRun(ctx, run); err != nil {
		return nil, err
	}

	matcher := &Matcher{
		Indexes: indexes,
		Mode:    ModePriorityBased,
		Rng:     s.rng,
		Committer: &runCommitter{
			store:     s.store,
			sessionID: session.ID,
			runID:     run.ID,
			actorID:   actorID,
		},
	}
	assignments, failures := matcher.Match(ctx, candidates)

	// Candidates the matcher could not place stay in the pool for the next
	// run, recorded as not_allocated against this one.
	scoreByStudent := make(map[string]float64, len(candidates))
	appByStudent := make(map[string]*model.HostelApplication, len(candidates))
	for _, c := range candidates {
		scoreByStudent[c.Student.ID] = c.Score
		appByStudent[c.Student.ID] = c.Application
	}
	for _, f := range failures {
		if f.Code == apperr.CodeAlreadyAllocated {
			continue
		}
		app := appByStudent[f.StudentID]
		if app == nil {
			continue
		}
		if err := s.store.MarkNotAllocated(ctx, app.ID, run.ID, scoreByStudent[f.StudentID]); err != nil {
			log.Printf("ballot: failed to mark application %s not allocated: %v", app.ID, err)
		}
	}

	run.TotalAllocated = len(assignments)
	run.TotalUnallocated = len(failures)
	run.Status = model.RunStatusCompleted
	if err := s.store.FinalizeBallotRun(ctx, run); err != nil {
		return nil, err
	}

	// Policy: runs are auto-approved. The approve/reject endpoint remains
	// for operator-driven reversal.
	if err := s.store.ApproveBallotRun(ctx, run, actorID, s.now()); err != nil {
		return nil, err
	}

	s.store.Audit(ctx, &actorID, "ballot_run", "ballot_run", run.ID, map[string]any{
		"allocated":   run.TotalAllocated,
		"unallocated": run.TotalUnallocated,
		"spaces":      run.TotalSpaces,
	}, "")
	s.notifyAll(assignments)

	return &RunResult{Run: run, Assignments: assignments, Failures: failures}, nil
}

// Approve finalizes (approved=true) or reverses (approved=false) a run.
func (s *Service) Approve(ctx context.Context, runID, actorID string, approved bool) (*model.BallotRun, error) {
	run, err := s.store.BallotRunByID(ctx, runID)
	if err != nil {
		return nil, err
	}
	if run.Status == model.RunStatusApproved && approved {
		return nil, apperr.Conflict(apperr.CodeBallotAlreadyApproved, "ballot already approved")
	}

	if approved {
		if err := s.store.ApproveBallotRun(ctx, run, actorID, s.now()); err != nil {
			return nil, err
		}
		s.store.Audit(ctx, &actorID, "ballot_approved", "ballot_run", run.ID, nil, "")
	} else {
		if err := s.store.ReverseBallotRun(ctx, run); err != nil {
			return nil, err
		}
		s.store.Audit(ctx, &actorID, "ballot_rejected", "ballot_run", run.ID, nil, "")
	}
	return run, nil
}

// BulkResult is the outcome of a bulk auto-assignment.
type BulkResult struct {
	AllocatedCount int          `json:"allocated_count"`
	FailedCount    int          `json:"failed_count"`
	Allocations    []Assignment `json:"allocations"`
	FailedStudents []Failure    `json:"failed_students"`
}

// BulkAssign places an explicit list of students. sessionID may be empty, in
// which case the active session is used. In priority mode, students with a
// verified application are scored by the standard formula and the rest
// randomly; in random mode everyone is shuffled.
func (s *Service) BulkAssign(ctx context.Context, actorID string, studentIDs []string, sessionID string, mode Mode) (*BulkResult, error) {
	var session *model.AcademicSession
	var err error
	if sessionID != "" {
		session, err = s.store.SessionByID(ctx, sessionID)
	} else {
		session, err = s.store.ActiveSession(ctx)
	}
	if err != nil {
		return nil, err
	}

	mu := s.sessionLock(session.ID)
	if !mu.TryLock() {
		return nil, apperr.Conflict(apperr.CodeBallotInProgress, "a ballot run is already in progress for this session")
	}
	defer mu.Unlock()

	students, err := s.store.StudentsByIDs(ctx, studentIDs)
	if err != nil {
		return nil, err
	}
	if len(students) == 0 {
		return nil, apperr.Validation("no valid students found")
	}

	apps, err := s.store.ApplicationsForStudents(ctx, session.ID, studentIDs)
	if err != nil {
		return nil, err
	}
	appByStudent := make(map[string]*model.HostelApplication, len(apps))
	for i := range apps {
		appByStudent[apps[i].StudentID] = &apps[i]
	}

	now := s.now()
	candidates := make([]Candidate, 0, len(students))
	for _, st := range students {
		app := appByStudent[st.ID]
		var score float64
		if mode == ModePriorityBased && app != nil {
			score = PriorityScore(st.Level, app.PaymentVerifiedAt, DefaultWeights, now)
		} else {
			score = RandomScore(s.rng)
		}
		candidates = append(candidates, Candidate{Student: st, Application: app, Score: score})
	}
	sortCandidates(candidates)

	indexes, _, err := s.buildIndexes(ctx)
	if err != nil {
		return nil, err
	}

	matcher := &Matcher{
		Indexes:               indexes,
		Mode:                  mode,
		Rng:                   s.rng,
		Committer:             &bulkCommitter{store: s.store, sessionID: session.ID, actorID: actorID},
		ChoiceFallbackReasons: true,
	}
	assignments, failures := matcher.Match(ctx, candidates)

	s.store.Audit(ctx, &actorID, "bulk_auto_assign", "allocation", "", map[string]any{
		"allocated_count": len(assignments),
		"failed_count":    len(failures),
		"mode":            mode,
	}, "")
	s.notifyAll(assignments)

	return &BulkResult{
		AllocatedCount: len(assignments),
		FailedCount:    len(failures),
		Allocations:    assignments,
		FailedStudents: failures,
	}, nil
}

func (s *Service) sessionLock(sessionID string) *sync.Mutex {
	mu, _ := s.locks.LoadOrStore(sessionID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// buildIndexes reads the availability snapshot for both genders and returns
// the total number of free beds.
func (s *Service) buildIndexes(ctx context.Context) (map[model.Gender]*Index, int, error) {
	indexes := make(map[model.Gender]*Index, 2)
	total := 0
	for _, g := range []model.Gender{model.GenderMale, model.GenderFemale} {
		rooms, err := s.store.AvailableRooms(ctx, g)
		if err != nil {
			return nil, 0, err
		}
		ix := NewIndex(rooms)
		indexes[g] = ix
		total += ix.FreeBeds()
	}
	return indexes, total, nil
}

func (s *Service) notifyAll(assignments []Assignment) {
	if s.notifier == nil {
		return
	}
	for _, a := range assignments {
		s.notifier.AllocationConfirmed(a.StudentID)
	}
}

// sortCandidates orders by score descending, breaking ties by earlier
// payment verification and then student id so equal scores still produce a
// reproducible order.
func sortCandidates(candidates []Candidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		vi, vj := verifiedAtOf(candidates[i]), verifiedAtOf(candidates[j])
		switch {
		case vi != nil && vj != nil && !vi.Equal(*vj):
			return vi.Before(*vj)
		case vi != nil && vj == nil:
			return true
		case vi == nil && vj != nil:
			return false
		}
		return candidates[i].Student.ID < candidates[j].Student.ID
	})
}

func verifiedAtOf(c Candidate) *time.Time {
	if c.Application == nil {
		return nil
	}
	return c.Application.PaymentVerifiedAt
}

// runCommitter persists ballot-run matches: allocations of type ballot, with
// the application advanced to balloted pending run approval.
type runCommitter struct {
	store     store.Store
	sessionID string
	runID     string
	actorID   string
}

func (c *runCommitter) HasLiveAllocation(ctx context.Context, studentID string) (bool, error) {
	return c.store.HasLiveAllocation(ctx, studentID, c.sessionID)
}

func (c *runCommitter) Commit(ctx context.Context, cand Candidate, asg Assignment) error {
	alloc := &model.Allocation{
		StudentID:      cand.Student.ID,
		HostelID:       asg.HostelID,
		RoomID:         asg.RoomID,
		SessionID:      c.sessionID,
		BedSpaceNumber: asg.BedNumber,
		AllocationType: model.AllocTypeBallot,
		AllocatedBy:    &c.actorID,
		Status:         model.AllocStatusActive,
	}
	var update *store.ApplicationUpdate
	if cand.Application != nil {
		alloc.ApplicationID = &cand.Application.ID
		score := cand.Score
		update = &store.ApplicationUpdate{
			ID:          cand.Application.ID,
			Status:      model.AppStatusBalloted,
			Score:       &score,
			BallotRunID: &c.runID,
		}
	}
	return c.store.CommitAssignment(ctx, alloc, update)
}

// bulkCommitter persists bulk auto-assign matches: manual-type allocations
// with the application moved straight to allocated.
type bulkCommitter struct {
	store     store.Store
	sessionID string
	actorID   string
}

func (c *bulkCommitter) HasLiveAllocation(ctx context.Context, studentID string) (bool, error) {
	return c.store.HasLiveAllocation(ctx, studentID, c.sessionID)
}

func (c *bulkCommitter) Commit(ctx context.Context, cand Candidate, asg Assignment) error {
	alloc := &model.Allocation{
		StudentID:      cand.Student.ID,
		HostelID:       asg.HostelID,
		RoomID:         asg.RoomID,
		SessionID:      c.sessionID,
		BedSpaceNumber: asg.BedNumber,
		AllocationType: model.AllocTypeManual,
		AllocatedBy:    &c.actorID,
		Reason:         "Bulk auto-assign",
		Status:         model.AllocStatusActive,
	}
	var update *store.ApplicationUpdate
	if cand.Application != nil {
		alloc.ApplicationID = &cand.Application.ID
		score := cand.Score
		update = &store.ApplicationUpdate{
			ID:     cand.Application.ID,
			Status: model.AppStatusAllocated,
			Score:  &score,
		}
	}
	return c.store.CommitAssignment(ctx, alloc, update)
}
