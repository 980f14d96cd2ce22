package service

import "github.com/noah-isme/classroom-grading-api/internal/models"

// dedupeRecipients keeps first occurrences and drops empty ids.
func dedupeRecipients(ids []string, exclude ...string) []string {
	skip := make(map[string]struct{}, len(ids)+len(exclude))
	for _, id := range exclude {
		if id != "" {
			skip[id] = struct{}{}
		}
	}
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := skip[id]; ok {
			continue
		}
		skip[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func membersWithRole(members []models.Membership, role models.ClassroomRole) []string {
	ids := make([]string, 0, len(members))
	for _, m := range members {
		if m.Role == role {
			ids = append(ids, m.UserID)
		}
	}
	return ids
}

// ReviewCreatedRecipients is the host plus every teacher, without the actor.
func ReviewCreatedRecipients(classroom *models.Classroom, members []models.Membership, actorID string) []string {
	ids := append([]string{classroom.HostID}, membersWithRole(members, models.ClassroomRoleTeacher)...)
	return dedupeRecipients(ids, actorID)
}

// StudentRecipients is every student member.
func StudentRecipients(members []models.Membership) []string {
	return dedupeRecipients(membersWithRole(members, models.ClassroomRoleStudent))
}

// AllMemberRecipients is the host plus every member.
func AllMemberRecipients(classroom *models.Classroom, members []models.Membership) []string {
	ids := []string{classroom.HostID}
	for _, m := range members {
		ids = append(ids, m.UserID)
	}
	return dedupeRecipients(ids)
}

// CommentRecipients is the host, the teachers and the review's student, without the commenter.
// studentUserID may be empty when the roster id has no account.
func CommentRecipients(classroom *models.Classroom, members []models.Membership, studentUserID, actorID string) []string {
	ids := append([]string{classroom.HostID}, membersWithRole(members, models.ClassroomRoleTeacher)...)
	ids = append(ids, studentUserID)
	return dedupeRecipients(ids, actorID)
}

// memberByStudentID finds the membership carrying the given roster id.
func memberByStudentID(members []models.Membership, studentID string) *models.Membership {
	for i := range members {
		if members[i].StudentIDValue() == studentID && studentID != "" {
			return &members[i]
		}
	}
	return nil
}
