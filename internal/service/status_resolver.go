package service

import (
	"strconv"
	"strings"
	"time"

	"github.com/rallyhub/rallyhub-backend/internal/models"
)

const (
	legacyDateLayout = "Jan 2, 2006"
	legacyTimeLayout = "3:04 PM"

	DefaultMatchDuration = 90 * time.Minute
)

// TimePhase 표시 전용 시간 단계. 권한 판단에는 절대 사용하지 않는다.
type TimePhase string

const (
	PhaseScheduled  TimePhase = "scheduled"
	PhaseInProgress TimePhase = "in_progress"
	PhaseTimePassed TimePhase = "time_passed"
)

type Availability string

const (
	AvailabilityOpen               Availability = "open"
	AvailabilityAwaitingAcceptance Availability = "awaiting_acceptance"
	AvailabilityReady              Availability = "ready"
)

// FillState 슬롯 충원 상태
type FillState struct {
	Required int
	Seated   int
	Accepted int
}

// ComputeFill 참가자 목록에서 충원 상태 계산
func ComputeFill(matchType models.MatchType, participants []models.Participant) FillState {
	fill := FillState{Required: matchType.RequiredSlots()}
	for _, p := range participants {
		if !p.Seated() {
			continue
		}
		fill.Seated++
		if p.InvitationStatus == models.InvitationAccepted {
			fill.Accepted++
		}
	}
	return fill
}

func (f FillState) AllFilled() bool {
	return f.Seated >= f.Required
}

func (f FillState) AllAccepted() bool {
	return f.Seated > 0 && f.Accepted == f.Seated
}

func (f FillState) OpenSlots() int {
	if f.Seated >= f.Required {
		return 0
	}
	return f.Required - f.Seated
}

// ResolvedStatus 매치의 정규 상태
type ResolvedStatus struct {
	Status       models.MatchStatus `json:"status"`
	State        WorkflowState      `json:"state"`
	Phase        TimePhase          `json:"phase,omitempty"`
	Availability Availability       `json:"availability,omitempty"`
	Terminal     bool               `json:"terminal"`
}

// StatusResolver 저장된 상태, 시각, 충원 상태로부터 정규 상태를 계산하는 유일한 지점
type StatusResolver struct {
	location        *time.Location
	defaultDuration time.Duration
}

func NewStatusResolver(location *time.Location, defaultDuration time.Duration) *StatusResolver {
	if location == nil {
		location = time.UTC
	}
	if defaultDuration <= 0 {
		defaultDuration = DefaultMatchDuration
	}
	return &StatusResolver{
		location:        location,
		defaultDuration: defaultDuration,
	}
}

// Canonical FINISHED를 COMPLETED로 정규화
func Canonical(status models.MatchStatus) models.MatchStatus {
	if status == models.MatchStatusFinished {
		return models.MatchStatusCompleted
	}
	return status
}

// Resolve 정규 상태 계산.
// 서버가 보고한 종료 상태는 로컬에서 계산한 시간 기반 상태보다 항상 우선한다.
func (r *StatusResolver) Resolve(match *models.Match, fill FillState, now time.Time) ResolvedStatus {
	status := Canonical(match.Status)
	resolved := ResolvedStatus{
		Status:   status,
		State:    StateOf(match),
		Terminal: status.IsTerminal(),
	}
	if status != models.MatchStatusScheduled {
		return resolved
	}

	resolved.Phase = r.Phase(match, now)
	switch {
	case !fill.AllFilled():
		resolved.Availability = AvailabilityOpen
	case !fill.AllAccepted():
		resolved.Availability = AvailabilityAwaitingAcceptance
	default:
		resolved.Availability = AvailabilityReady
	}
	return resolved
}

// Phase 표시용 시간 단계
func (r *StatusResolver) Phase(match *models.Match, now time.Time) TimePhase {
	start, ok := r.StartTime(match)
	if !ok || now.Before(start) {
		return PhaseScheduled
	}
	if now.Before(start.Add(r.Duration(match))) {
		return PhaseInProgress
	}
	return PhaseTimePassed
}

// TimeReached 시작 시각 도달 여부. 시작 시각을 알 수 없으면 false (fail safe).
func (r *StatusResolver) TimeReached(match *models.Match, now time.Time) bool {
	start, ok := r.StartTime(match)
	if !ok {
		return false
	}
	return !now.Before(start)
}

// StartTime matchDate 우선, 없으면 구버전 date/time 문자열 파싱
func (r *StatusResolver) StartTime(match *models.Match) (time.Time, bool) {
	if match.MatchDate != nil && !match.MatchDate.IsZero() {
		return *match.MatchDate, true
	}
	if match.Date == nil || match.Time == nil {
		return time.Time{}, false
	}
	return ParseLegacyDateTime(*match.Date, *match.Time, r.location)
}

// Duration 구버전 duration 문자열이 있으면 사용, 아니면 기본값
func (r *StatusResolver) Duration(match *models.Match) time.Duration {
	if match.Duration != nil {
		if d, ok := parseLegacyDuration(*match.Duration); ok {
			return d
		}
	}
	return r.defaultDuration
}

// ParseLegacyDateTime "Mon DD, YYYY" + "H:MM AM/PM" 형식을 로컬 시각으로 변환
func ParseLegacyDateTime(date, clock string, location *time.Location) (time.Time, bool) {
	d, err := time.Parse(legacyDateLayout, strings.TrimSpace(date))
	if err != nil {
		return time.Time{}, false
	}
	t, err := time.Parse(legacyTimeLayout, strings.ToUpper(strings.TrimSpace(clock)))
	if err != nil {
		return time.Time{}, false
	}
	return time.Date(d.Year(), d.Month(), d.Day(), t.Hour(), t.Minute(), 0, 0, location), true
}

// parseLegacyDuration "90", "90 min", "1.5 hours", "2h" 등
func parseLegacyDuration(s string) (time.Duration, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return 0, false
	}
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return d, true
	}

	fields := strings.Fields(s)
	value, err := strconv.ParseFloat(fields[0], 64)
	if err != nil || value <= 0 {
		return 0, false
	}
	unit := time.Minute
	if len(fields) > 1 && strings.HasPrefix(fields[1], "h") {
		unit = time.Hour
	}
	return time.Duration(value * float64(unit)), true
}
