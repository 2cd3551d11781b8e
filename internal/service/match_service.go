package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rallyhub/rallyhub-backend/internal/models"
	"github.com/rallyhub/rallyhub-backend/internal/repository"
	"go.uber.org/zap"
)

// Actor 요청 주체
type Actor struct {
	UserID         string
	IdempotencyKey string
}

// MatchState 한 액터 관점에서 트랜지션 평가에 필요한 스냅샷
type MatchState struct {
	Match        *models.Match
	Participants []models.Participant
	Partnership  *models.Partnership
}

// MatchView 매치 상세 화면
type MatchView struct {
	Match        *models.Match        `json:"match"`
	Participants []models.Participant `json:"participants"`
	Partnership  *models.Partnership  `json:"partnership,omitempty"`
	Status       ResolvedStatus       `json:"status"`
	Roles        RoleFacts            `json:"roles"`
	Permissions  Decision             `json:"permissions"`
	Countdown    *Countdown           `json:"countdown,omitempty"`
}

type MatchServiceConfig struct {
	Store        MatchStore
	Partnerships PartnershipLookup
	Directory    ParticipantDirectory
	Events       EventPublisher
	Locker       MatchLocker
	Idempotency  IdempotencyGuard
	Scheduler    ApprovalScheduler
	Clock        Clock

	Location             *time.Location
	DefaultMatchDuration time.Duration
	ApprovalWindow       time.Duration

	Logger *zap.Logger
}

// MatchService 매치 결과 판정 워크플로 진입점.
// 모든 변경은 매치 락 → 로드 → 규칙 평가 → 버전 검사 쓰기 → 이벤트 발행 순서로 처리된다.
type MatchService struct {
	store        MatchStore
	partnerships PartnershipLookup
	directory    ParticipantDirectory
	events       EventPublisher
	locker       MatchLocker
	idempotency  IdempotencyGuard
	scheduler    ApprovalScheduler
	clock        Clock

	resolver *StatusResolver
	guard    *CancellationGuard
	engine   *PermissionEngine
	workflow *ResultWorkflow
	walkover *WalkoverHandler

	approvalWindow time.Duration
	logger         *zap.Logger
}

func NewMatchService(cfg MatchServiceConfig) *MatchService {
	if cfg.Clock == nil {
		cfg.Clock = SystemClock
	}
	if cfg.Locker == nil {
		cfg.Locker = NewLocalMatchLocker()
	}
	if cfg.Events == nil {
		cfg.Events = noopPublisher{}
	}
	if cfg.ApprovalWindow <= 0 {
		cfg.ApprovalWindow = AutoApprovalWindow
	}
	if cfg.Logger == nil {
		cfg.Logger, _ = zap.NewProduction()
	}

	resolver := NewStatusResolver(cfg.Location, cfg.DefaultMatchDuration)
	guard := NewCancellationGuard(resolver)

	return &MatchService{
		store:          cfg.Store,
		partnerships:   cfg.Partnerships,
		directory:      cfg.Directory,
		events:         cfg.Events,
		locker:         cfg.Locker,
		idempotency:    cfg.Idempotency,
		scheduler:      cfg.Scheduler,
		clock:          cfg.Clock,
		resolver:       resolver,
		guard:          guard,
		engine:         NewPermissionEngine(resolver, guard),
		workflow:       NewResultWorkflow(resolver, guard, cfg.ApprovalWindow),
		walkover:       NewWalkoverHandler(),
		approvalWindow: cfg.ApprovalWindow,
		logger:         cfg.Logger,
	}
}

// CreateMatch 매치 생성. 생성자는 team1에 수락 상태로 앉고, 복식이면 조 파트너가 초대된다.
func (s *MatchService) CreateMatch(ctx context.Context, creatorID string, req models.CreateMatchRequest) (*models.Match, []models.Participant, error) {
	if !req.MatchType.Valid() {
		return nil, nil, ErrInvalidMatchType
	}
	if req.MatchDate.IsZero() {
		return nil, nil, ErrMissingMatchDate
	}

	now := s.clock.Now()
	match := &models.Match{
		ID:                uuid.New().String(),
		MatchType:         req.MatchType,
		CreatedByID:       creatorID,
		SeasonID:          req.SeasonID,
		Status:            models.MatchStatusScheduled,
		IsFriendly:        req.IsFriendly,
		GenderRestriction: req.GenderRestriction,
		SkillLevels:       req.SkillLevels,
		MatchDate:         timePtr(req.MatchDate),
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	participants := []models.Participant{{
		MatchID:          match.ID,
		UserID:           creatorID,
		Team:             models.Team1,
		InvitationStatus: models.InvitationAccepted,
		Role:             models.ParticipantRoleCreator,
		JoinedAt:         now,
	}}

	if match.MatchType == models.MatchTypeDoubles {
		partnership, err := s.partnershipOf(ctx, match, creatorID)
		if err != nil {
			return nil, nil, err
		}
		switch {
		case partnership != nil:
			participants = append(participants, models.Participant{
				MatchID:          match.ID,
				UserID:           partnership.Teammate(creatorID),
				Team:             models.Team1,
				InvitationStatus: models.InvitationPending,
				Role:             models.ParticipantRolePartner,
				JoinedAt:         now,
			})
		case !match.IsFriendly:
			return nil, nil, ErrPartnershipMissing
		}
	}

	if err := s.store.CreateMatch(ctx, match, participants); err != nil {
		return nil, nil, fmt.Errorf("failed to create match: %w", err)
	}

	s.logger.Info("Match created",
		zap.String("matchId", match.ID),
		zap.String("matchType", string(match.MatchType)),
		zap.String("createdBy", creatorID))
	s.publish(ctx, models.EventMatchUpdated, match, participants, creatorID)

	return match, participants, nil
}

// GetMatchState 액터 기준 매치, 참가자, 조 정보 조회
func (s *MatchService) GetMatchState(ctx context.Context, matchID, actorID string) (*MatchState, error) {
	return s.load(ctx, matchID, actorID)
}

// GetMatchView 정규 상태, 역할, 허용 액션, 자동 확정 카운트다운을 포함한 상세 조회
func (s *MatchService) GetMatchView(ctx context.Context, matchID, actorID string) (*MatchView, error) {
	st, err := s.load(ctx, matchID, actorID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	fill := ComputeFill(st.Match.MatchType, st.Participants)

	return &MatchView{
		Match:        st.Match,
		Participants: s.withProfiles(ctx, st.Participants),
		Partnership:  st.Partnership,
		Status:       s.resolver.Resolve(st.Match, fill, now),
		Roles:        ResolveRoles(st.Match, st.Participants, st.Partnership, actorID),
		Permissions:  s.engine.AvailableActions(st.Match, st.Participants, st.Partnership, actorID, now),
		Countdown:    s.workflow.Countdown(st.Match, now),
	}, nil
}

// Join 열린 자리에 참가. 복식에서 조 파트너가 있으면 같은 팀에 함께 앉고 파트너는 초대 대기 상태가 된다.
func (s *MatchService) Join(ctx context.Context, matchID string, actor Actor, req models.JoinMatchRequest) ([]models.Participant, error) {
	return s.seat(ctx, "join", matchID, actor, models.EventMatchParticipantJoined,
		func(st *MatchState, now time.Time) ([]models.Participant, error) {
			return s.planJoin(st, actor.UserID, req.PartnerID, now)
		})
}

// AcceptInvitation 대기 중인 초대 수락
func (s *MatchService) AcceptInvitation(ctx context.Context, matchID string, actor Actor) ([]models.Participant, error) {
	return s.seat(ctx, "accept_invitation", matchID, actor, models.EventMatchUpdated,
		func(st *MatchState, now time.Time) ([]models.Participant, error) {
			return respondToInvitation(st, actor.UserID, models.InvitationAccepted)
		})
}

// DeclineInvitation 대기 중인 초대 거절. 자리는 다시 열린다.
func (s *MatchService) DeclineInvitation(ctx context.Context, matchID string, actor Actor) ([]models.Participant, error) {
	return s.seat(ctx, "decline_invitation", matchID, actor, models.EventMatchUpdated,
		func(st *MatchState, now time.Time) ([]models.Participant, error) {
			return respondToInvitation(st, actor.UserID, models.InvitationDeclined)
		})
}

// SubmitResult 점수 제출
func (s *MatchService) SubmitResult(ctx context.Context, matchID string, actor Actor, req models.SubmitResultRequest) (*models.Match, error) {
	score := Score{Team1: req.Team1Score, Team2: req.Team2Score}
	if err := score.validate(); err != nil {
		return nil, err
	}
	flags := SubmitFlags{IsUnfinished: req.IsUnfinished, IsCasualPlay: req.IsCasualPlay}

	return s.apply(ctx, "submit_result", matchID, actor, func(tc TransitionContext) (*models.Match, error) {
		return s.workflow.Submit(tc, score, flags)
	})
}

// ReviewResult 상대측 확인 또는 분쟁 제기
func (s *MatchService) ReviewResult(ctx context.Context, matchID string, actor Actor, decision models.ReviewDecision) (*models.Match, error) {
	var review func(TransitionContext) (*models.Match, error)
	switch decision {
	case models.ReviewConfirm:
		review = s.workflow.Confirm
	case models.ReviewDispute:
		review = s.workflow.Dispute
	default:
		return nil, ErrUnknownDecision
	}

	return s.apply(ctx, "review_result:"+string(decision), matchID, actor, review)
}

// RequestWalkover 기권승 기록
func (s *MatchService) RequestWalkover(ctx context.Context, matchID string, actor Actor, req models.WalkoverRequest) (*models.Match, error) {
	if !req.Reason.Valid() {
		return nil, ErrUnknownWalkoverReason
	}

	return s.apply(ctx, "walkover", matchID, actor, func(tc TransitionContext) (*models.Match, error) {
		return s.walkover.Record(tc, req.DefaultingUserID, req.Reason, req.ReasonDetail)
	})
}

// Cancel 예정된 매치 취소
func (s *MatchService) Cancel(ctx context.Context, matchID string, actor Actor, req models.CancelMatchRequest) (*models.Match, error) {
	return s.apply(ctx, "cancel", matchID, actor, func(tc TransitionContext) (*models.Match, error) {
		return s.workflow.Cancel(tc, req.Reason, req.Comment)
	})
}

// VoidMatch 관리자 무효 처리. 권한 확인은 호출 측 (관리자 미들웨어) 책임.
func (s *MatchService) VoidMatch(ctx context.Context, matchID, adminID string, req models.VoidMatchRequest) (*models.Match, error) {
	return s.apply(ctx, "void", matchID, Actor{UserID: adminID}, func(tc TransitionContext) (*models.Match, error) {
		return s.workflow.Void(tc.Match, adminID, req.Reason, tc.Now)
	})
}

// EvaluateAutoApproval 시스템 트리거. 승인 창이 지난 미검토 결과를 확정한다.
// 이미 종료됐거나, 분쟁 중이거나, 아직 기한 전이면 아무것도 바꾸지 않고 현재 매치를 돌려준다.
func (s *MatchService) EvaluateAutoApproval(ctx context.Context, matchID string, now time.Time) (*models.Match, bool, error) {
	release, err := s.locker.Lock(ctx, matchID)
	if err != nil {
		return nil, false, err
	}
	defer release()

	st, err := s.load(ctx, matchID, "")
	if err != nil {
		return nil, false, err
	}

	next, err := s.workflow.AutoApprove(st.Match, now)
	if err != nil {
		if errors.Is(err, ErrInvalidState) || errors.Is(err, ErrPreconditionFailed) {
			s.logger.Debug("Auto-approval skipped",
				zap.String("matchId", matchID),
				zap.String("reason", ErrorCode(err)))
			return st.Match, false, nil
		}
		return nil, false, err
	}

	if err := s.store.UpdateMatch(ctx, next); err != nil {
		if errors.Is(err, repository.ErrVersionConflict) {
			return nil, false, ErrStaleVersion
		}
		return nil, false, fmt.Errorf("failed to update match: %w", err)
	}

	s.logger.Info("Match result auto-approved",
		zap.String("matchId", matchID),
		zap.Int("version", next.Version))
	s.publish(ctx, models.EventMatchUpdated, next, st.Participants, "")

	return next, true, nil
}

// DueForAutoApproval 승인 창이 지난 결과 대기 매치 ID (DB 기준 재조정용)
func (s *MatchService) DueForAutoApproval(ctx context.Context, now time.Time, limit int) ([]string, error) {
	return s.store.ListDueForAutoApproval(ctx, now.Add(-s.approvalWindow), limit)
}

// apply 매치 레코드를 바꾸는 트랜지션 공통 경로
func (s *MatchService) apply(
	ctx context.Context,
	op, matchID string,
	actor Actor,
	transition func(tc TransitionContext) (*models.Match, error),
) (*models.Match, error) {
	key, err := s.claim(ctx, op, matchID, actor)
	if err != nil {
		return nil, err
	}

	release, err := s.locker.Lock(ctx, matchID)
	if err != nil {
		s.unclaim(ctx, key)
		return nil, err
	}
	defer release()

	st, err := s.load(ctx, matchID, actor.UserID)
	if err != nil {
		s.unclaim(ctx, key)
		return nil, err
	}

	next, err := transition(TransitionContext{
		Match:        st.Match,
		Participants: st.Participants,
		Partnership:  st.Partnership,
		ActorID:      actor.UserID,
		Now:          s.clock.Now(),
	})
	if err != nil {
		s.unclaim(ctx, key)
		s.logger.Info("Match transition rejected",
			zap.String("op", op),
			zap.String("matchId", matchID),
			zap.String("actorId", actor.UserID),
			zap.String("reason", ErrorCode(err)))
		return nil, err
	}

	if err := s.store.UpdateMatch(ctx, next); err != nil {
		s.unclaim(ctx, key)
		if errors.Is(err, repository.ErrVersionConflict) {
			return nil, ErrStaleVersion
		}
		return nil, fmt.Errorf("failed to update match: %w", err)
	}

	s.logger.Info("Match transition applied",
		zap.String("op", op),
		zap.String("matchId", matchID),
		zap.String("actorId", actor.UserID),
		zap.String("from", string(StateOf(st.Match))),
		zap.String("to", string(StateOf(next))),
		zap.Int("version", next.Version))

	s.publish(ctx, models.EventMatchUpdated, next, st.Participants, actor.UserID)
	s.scheduleApproval(ctx, next)

	return next, nil
}

// seat 참가자 레코드를 바꾸는 공통 경로. 매치 버전도 함께 올라간다.
func (s *MatchService) seat(
	ctx context.Context,
	op, matchID string,
	actor Actor,
	eventType models.MatchEventType,
	plan func(st *MatchState, now time.Time) ([]models.Participant, error),
) ([]models.Participant, error) {
	key, err := s.claim(ctx, op, matchID, actor)
	if err != nil {
		return nil, err
	}

	release, err := s.locker.Lock(ctx, matchID)
	if err != nil {
		s.unclaim(ctx, key)
		return nil, err
	}
	defer release()

	st, err := s.load(ctx, matchID, actor.UserID)
	if err != nil {
		s.unclaim(ctx, key)
		return nil, err
	}

	now := s.clock.Now()
	changed, err := plan(st, now)
	if err != nil {
		s.unclaim(ctx, key)
		s.logger.Info("Participant change rejected",
			zap.String("op", op),
			zap.String("matchId", matchID),
			zap.String("actorId", actor.UserID),
			zap.String("reason", ErrorCode(err)))
		return nil, err
	}

	next := st.Match.Clone()
	next.UpdatedAt = now
	if err := s.store.SaveParticipants(ctx, next, changed); err != nil {
		s.unclaim(ctx, key)
		if errors.Is(err, repository.ErrVersionConflict) {
			return nil, ErrStaleVersion
		}
		return nil, fmt.Errorf("failed to save participants: %w", err)
	}

	participants := mergeParticipants(st.Participants, changed)
	s.logger.Info("Participants updated",
		zap.String("op", op),
		zap.String("matchId", matchID),
		zap.String("actorId", actor.UserID),
		zap.Int("changed", len(changed)),
		zap.Int("version", next.Version))
	s.publish(ctx, eventType, next, participants, actor.UserID)

	return participants, nil
}

func (s *MatchService) planJoin(st *MatchState, actorID string, partnerID *string, now time.Time) ([]models.Participant, error) {
	m := st.Match
	if Canonical(m.Status) != models.MatchStatusScheduled {
		return nil, ErrNotScheduled
	}
	if s.resolver.TimeReached(m, now) {
		return nil, ErrJoinClosed
	}
	if p, ok := findParticipant(st.Participants, actorID); ok && p.InvitationStatus != models.InvitationDeclined {
		return nil, ErrAlreadyJoined
	}
	if !JoinEligible(m, st.Partnership) {
		return nil, ErrPartnershipMissing
	}

	seatActor := func(team models.Team) models.Participant {
		return models.Participant{
			MatchID:          m.ID,
			UserID:           actorID,
			Team:             team,
			InvitationStatus: models.InvitationAccepted,
			Role:             models.ParticipantRolePlayer,
			JoinedAt:         now,
		}
	}

	if m.MatchType != models.MatchTypeDoubles {
		if partnerID != nil {
			return nil, ErrInvalidPartner
		}
		team, ok := teamWithRoom(m.MatchType, st.Participants, 1)
		if !ok {
			return nil, ErrMatchFull
		}
		return []models.Participant{seatActor(team)}, nil
	}

	// 친선 매치는 시즌 조와 무관하게 파트너를 고를 수 있다
	partner := ""
	switch {
	case partnerID != nil && m.IsFriendly:
		partner = *partnerID
	case st.Partnership != nil && st.Partnership.IsActive:
		partner = st.Partnership.Teammate(actorID)
		if partnerID != nil && *partnerID != partner {
			return nil, ErrInvalidPartner
		}
	case partnerID != nil:
		partner = *partnerID
	}
	if partner == actorID {
		return nil, ErrInvalidPartner
	}

	if partner == "" {
		team, ok := teamWithRoom(m.MatchType, st.Participants, 1)
		if !ok {
			return nil, ErrMatchFull
		}
		return []models.Participant{seatActor(team)}, nil
	}

	// 파트너가 먼저 앉아 있으면 그 팀에 합류
	if p, ok := findParticipant(st.Participants, partner); ok && p.Seated() {
		if !teamHasRoom(m.MatchType, st.Participants, p.Team) {
			return nil, ErrMatchFull
		}
		return []models.Participant{seatActor(p.Team)}, nil
	}

	team, ok := teamWithRoom(m.MatchType, st.Participants, 2)
	if !ok {
		return nil, ErrMatchFull
	}
	return []models.Participant{
		seatActor(team),
		{
			MatchID:          m.ID,
			UserID:           partner,
			Team:             team,
			InvitationStatus: models.InvitationPending,
			Role:             models.ParticipantRolePartner,
			JoinedAt:         now,
		},
	}, nil
}

func respondToInvitation(st *MatchState, actorID string, status models.InvitationStatus) ([]models.Participant, error) {
	if StateOf(st.Match).Terminal() {
		return nil, ErrMatchTerminal
	}
	p, ok := findParticipant(st.Participants, actorID)
	if !ok || p.InvitationStatus != models.InvitationPending {
		return nil, ErrNoPendingInvitation
	}
	p.InvitationStatus = status
	return []models.Participant{p}, nil
}

func teamHasRoom(matchType models.MatchType, participants []models.Participant, team models.Team) bool {
	seated := 0
	for _, p := range participants {
		if p.Seated() && p.Team == team {
			seated++
		}
	}
	return seated < matchType.RequiredSlots()/2
}

func mergeParticipants(current, changed []models.Participant) []models.Participant {
	merged := make([]models.Participant, 0, len(current)+len(changed))
	replaced := make(map[string]bool, len(changed))
	for _, c := range changed {
		replaced[c.UserID] = true
	}
	for _, p := range current {
		if !replaced[p.UserID] {
			merged = append(merged, p)
		}
	}
	return append(merged, changed...)
}

func (s *MatchService) load(ctx context.Context, matchID, actorID string) (*MatchState, error) {
	match, err := s.store.GetMatch(ctx, matchID)
	if err != nil {
		return nil, fmt.Errorf("failed to get match: %w", err)
	}
	if match == nil {
		return nil, ErrMatchNotFound
	}

	participants, err := s.store.ListParticipants(ctx, matchID)
	if err != nil {
		return nil, fmt.Errorf("failed to list participants: %w", err)
	}

	partnership, err := s.partnershipOf(ctx, match, actorID)
	if err != nil {
		return nil, err
	}

	return &MatchState{
		Match:        match,
		Participants: participants,
		Partnership:  partnership,
	}, nil
}

// partnershipOf 복식 시즌 매치에서 액터의 활성 조
func (s *MatchService) partnershipOf(ctx context.Context, match *models.Match, actorID string) (*models.Partnership, error) {
	if s.partnerships == nil || actorID == "" || match.MatchType != models.MatchTypeDoubles || match.SeasonID == nil {
		return nil, nil
	}
	partnership, err := s.partnerships.FindActivePartnership(ctx, *match.SeasonID, actorID)
	if err != nil {
		return nil, fmt.Errorf("failed to find partnership: %w", err)
	}
	if partnership == nil || !partnership.IsActive {
		return nil, nil
	}
	return partnership, nil
}

func (s *MatchService) withProfiles(ctx context.Context, participants []models.Participant) []models.Participant {
	out := make([]models.Participant, len(participants))
	copy(out, participants)
	if s.directory == nil || len(out) == 0 {
		return out
	}

	ids := make([]string, 0, len(out))
	for _, p := range out {
		ids = append(ids, p.UserID)
	}
	profiles, err := s.directory.LookupProfiles(ctx, ids)
	if err != nil {
		s.logger.Warn("Failed to load participant profiles", zap.Error(err))
		return out
	}
	for i := range out {
		if profile, ok := profiles[out[i].UserID]; ok {
			profile := profile
			out[i].Profile = &profile
		}
	}
	return out
}

// claim 멱등 키 선점. 키가 없거나 저장소 장애면 상태 기반 중복 감지에 맡긴다.
func (s *MatchService) claim(ctx context.Context, op, matchID string, actor Actor) (string, error) {
	if s.idempotency == nil || actor.IdempotencyKey == "" {
		return "", nil
	}
	key := fmt.Sprintf("%s:%s:%s:%s", op, matchID, actor.UserID, actor.IdempotencyKey)
	ok, err := s.idempotency.Claim(ctx, key)
	if err != nil {
		s.logger.Warn("Idempotency check unavailable",
			zap.String("matchId", matchID),
			zap.Error(err))
		return "", nil
	}
	if !ok {
		return "", ErrAlreadyProcessed
	}
	return key, nil
}

// unclaim 실패한 요청은 같은 키로 재시도할 수 있어야 한다
func (s *MatchService) unclaim(ctx context.Context, key string) {
	if key == "" {
		return
	}
	if err := s.idempotency.Release(ctx, key); err != nil {
		s.logger.Warn("Failed to release idempotency key", zap.String("key", key), zap.Error(err))
	}
}

func (s *MatchService) publish(ctx context.Context, eventType models.MatchEventType, match *models.Match, participants []models.Participant, actorID string) {
	event := models.MatchEvent{
		Type:         eventType,
		MatchID:      match.ID,
		Status:       match.Status,
		ActorID:      actorID,
		RecipientIDs: recipients(match, participants),
		Version:      match.Version,
		OccurredAt:   s.clock.Now(),
	}
	if err := s.events.PublishMatchEvent(ctx, event); err != nil {
		s.logger.Warn("Failed to publish match event",
			zap.String("matchId", match.ID),
			zap.String("type", string(eventType)),
			zap.Error(err))
	}
}

// scheduleApproval 결과 대기 상태에 들어간 매치의 자동 확정 예약
func (s *MatchService) scheduleApproval(ctx context.Context, match *models.Match) {
	if s.scheduler == nil || StateOf(match) != StateAwaitingConfirmation || !match.HasResult() {
		return
	}
	dueAt := match.ResultSubmittedAt.Add(s.approvalWindow)
	if err := s.scheduler.Schedule(ctx, match.ID, dueAt); err != nil {
		// 스윕의 DB 재조정이 놓친 예약을 다시 잡는다
		s.logger.Warn("Failed to schedule auto-approval",
			zap.String("matchId", match.ID),
			zap.Error(err))
	}
}

func recipients(match *models.Match, participants []models.Participant) []string {
	seen := map[string]bool{}
	ids := make([]string, 0, len(participants)+1)
	add := func(id string) {
		if id != "" && !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	add(match.CreatedByID)
	for _, p := range participants {
		if p.InvitationStatus != models.InvitationDeclined {
			add(p.UserID)
		}
	}
	return ids
}
