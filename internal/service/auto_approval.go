package service

import "time"

// AutoApprovalWindow 검토 없이 결과가 자동 확정되기까지의 시간
const AutoApprovalWindow = 24 * time.Hour

// Countdown 자동 확정까지 남은 시간 (표시용)
type Countdown struct {
	Hours   int  `json:"hours"`
	Minutes int  `json:"minutes"`
	Expired bool `json:"expired"`
}

// CountdownFor 클라이언트 표시용 계산. 실제 자동 확정은 서버 스윕에서 같은 규칙으로 평가한다.
func CountdownFor(resultSubmittedAt, now time.Time) Countdown {
	return countdownWithin(resultSubmittedAt, now, AutoApprovalWindow)
}

func countdownWithin(resultSubmittedAt, now time.Time, window time.Duration) Countdown {
	elapsed := now.Sub(resultSubmittedAt)
	if elapsed >= window {
		return Countdown{Expired: true}
	}
	remaining := window - elapsed
	return Countdown{
		Hours:   int(remaining / time.Hour),
		Minutes: int((remaining % time.Hour) / time.Minute),
	}
}

// approvalDue 자동 확정 시각 도달 여부
func approvalDue(resultSubmittedAt, now time.Time, window time.Duration) bool {
	return now.Sub(resultSubmittedAt) >= window
}
