package service

import "github.com/rallyhub/rallyhub-backend/internal/models"

// RoleFacts 한 액터와 매치의 관계
type RoleFacts struct {
	IsParticipant        bool        `json:"isParticipant"`
	IsCreator            bool        `json:"isCreator"`
	IsCaptain            bool        `json:"isCaptain"`
	IsPartner            bool        `json:"isPartner"`
	IsResultSubmitter    bool        `json:"isResultSubmitter"`
	CanReviewResult      bool        `json:"canReviewResult"`
	HasPendingInvitation bool        `json:"hasPendingInvitation"`
	Team                 models.Team `json:"team,omitempty"`
}

// ResolveRoles partnership은 액터 자신의 조 (단식이면 nil)
func ResolveRoles(match *models.Match, participants []models.Participant, partnership *models.Partnership, actorID string) RoleFacts {
	facts := RoleFacts{
		IsCreator: actorID != "" && actorID == match.CreatedByID,
	}

	actor, ok := findParticipant(participants, actorID)
	if ok && actor.InvitationStatus != models.InvitationDeclined {
		facts.IsParticipant = true
		facts.Team = actor.Team
		facts.HasPendingInvitation = actor.InvitationStatus == models.InvitationPending
	}

	doubles := match.MatchType == models.MatchTypeDoubles
	if doubles && partnership != nil {
		facts.IsCaptain = actorID == partnership.CaptainID
		facts.IsPartner = actorID == partnership.PartnerID
	}

	facts.IsResultSubmitter = isSubmitterSide(match, participants, partnership, actorID)

	facts.CanReviewResult = facts.IsParticipant &&
		match.HasResult() &&
		!facts.IsResultSubmitter &&
		(!doubles || facts.IsCaptain)

	return facts
}

// isSubmitterSide 제출자 본인이거나, 복식에서 제출자의 파트너
func isSubmitterSide(match *models.Match, participants []models.Participant, partnership *models.Partnership, actorID string) bool {
	if match.ResultSubmittedByID == nil || actorID == "" {
		return false
	}
	submitterID := *match.ResultSubmittedByID
	if submitterID == actorID {
		return true
	}
	if match.MatchType != models.MatchTypeDoubles {
		return false
	}

	if partnership != nil && partnership.Includes(actorID) && partnership.Includes(submitterID) {
		return true
	}

	// 조 정보가 없는 친선 복식은 같은 팀이면 제출자 측으로 본다
	actor, ok := findParticipant(participants, actorID)
	if !ok || actor.Team == models.TeamUnassigned {
		return false
	}
	submitter, ok := findParticipant(participants, submitterID)
	return ok && submitter.Team == actor.Team
}

func findParticipant(participants []models.Participant, userID string) (models.Participant, bool) {
	if userID == "" {
		return models.Participant{}, false
	}
	for _, p := range participants {
		if p.UserID == userID {
			return p, true
		}
	}
	return models.Participant{}, false
}

// PartnershipFor 복식 매치에서 액터가 속한 조 선택
func PartnershipFor(partnerships []*models.Partnership, actorID string) *models.Partnership {
	for _, p := range partnerships {
		if p.Includes(actorID) {
			return p
		}
	}
	return nil
}
