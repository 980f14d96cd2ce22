package handler

import (
	"context"

	"github.com/noah-isme/classroom-grading-api/internal/dto"
	"github.com/noah-isme/classroom-grading-api/internal/models"
	"github.com/noah-isme/classroom-grading-api/internal/service"
)

type classroomServiceMock struct {
	classroom   *models.Classroom
	classrooms  []models.Classroom
	members     []models.Member
	membership  *models.Membership
	pagination  *models.Pagination
	err         error
	lastActor   service.Actor
	lastID      string
	lastUserID  string
	lastActive  *bool
	lastCreate  dto.CreateClassroomRequest
	lastList    dto.ListClassroomsRequest
	lastRubric  *models.GradeStructure
	lastStudent dto.UpdateStudentIDRequest
	calls       []string
}

func (m *classroomServiceMock) record(name string, actor service.Actor, id string) {
	m.calls = append(m.calls, name)
	m.lastActor = actor
	m.lastID = id
}

func (m *classroomServiceMock) Create(_ context.Context, actor service.Actor, req dto.CreateClassroomRequest) (*models.Classroom, error) {
	m.record("Create", actor, "")
	m.lastCreate = req
	return m.classroom, m.err
}

func (m *classroomServiceMock) Get(_ context.Context, actor service.Actor, id string) (*models.Classroom, error) {
	m.record("Get", actor, id)
	return m.classroom, m.err
}

func (m *classroomServiceMock) ListMine(_ context.Context, actor service.Actor) ([]models.Classroom, error) {
	m.record("ListMine", actor, "")
	return m.classrooms, m.err
}

func (m *classroomServiceMock) ListAll(_ context.Context, actor service.Actor, req dto.ListClassroomsRequest) ([]models.Classroom, *models.Pagination, error) {
	m.record("ListAll", actor, "")
	m.lastList = req
	return m.classrooms, m.pagination, m.err
}

func (m *classroomServiceMock) UpdateInfo(_ context.Context, actor service.Actor, id string, _ dto.UpdateClassroomRequest) (*models.Classroom, error) {
	m.record("UpdateInfo", actor, id)
	return m.classroom, m.err
}

func (m *classroomServiceMock) SetActive(_ context.Context, actor service.Actor, id string, active bool) (*models.Classroom, error) {
	m.record("SetActive", actor, id)
	m.lastActive = &active
	return m.classroom, m.err
}

func (m *classroomServiceMock) ListMembers(_ context.Context, actor service.Actor, id string) ([]models.Member, error) {
	m.record("ListMembers", actor, id)
	return m.members, m.err
}

func (m *classroomServiceMock) KickMember(_ context.Context, actor service.Actor, id, userID string) error {
	m.record("KickMember", actor, id)
	m.lastUserID = userID
	return m.err
}

func (m *classroomServiceMock) Leave(_ context.Context, actor service.Actor, id string) error {
	m.record("Leave", actor, id)
	return m.err
}

func (m *classroomServiceMock) UpdateStudentID(_ context.Context, actor service.Actor, id string, req dto.UpdateStudentIDRequest) (*models.Membership, error) {
	m.record("UpdateStudentID", actor, id)
	m.lastStudent = req
	return m.membership, m.err
}

func (m *classroomServiceMock) UpdateGradeStructure(_ context.Context, actor service.Actor, id string, structure *models.GradeStructure) (*models.Classroom, error) {
	m.record("UpdateGradeStructure", actor, id)
	m.lastRubric = structure
	return m.classroom, m.err
}

func (m *classroomServiceMock) DeleteGradeStructure(_ context.Context, actor service.Actor, id string) error {
	m.record("DeleteGradeStructure", actor, id)
	return m.err
}

type rosterServiceMock struct {
	entries       []models.StudentListEntry
	entry         *models.StudentListEntry
	result        *dto.UploadResult
	file          *dto.ExportFile
	err           error
	lastRows      [][]string
	lastGradeName string
	lastStudentID string
	lastFormat    dto.ExportFormat
	lastValue     string
	calls         []string
}

func (m *rosterServiceMock) ListRoster(context.Context, service.Actor, string) ([]models.StudentListEntry, error) {
	m.calls = append(m.calls, "ListRoster")
	return m.entries, m.err
}

func (m *rosterServiceMock) GetEntry(_ context.Context, _ service.Actor, _ string, studentID string) (*models.StudentListEntry, error) {
	m.calls = append(m.calls, "GetEntry")
	m.lastStudentID = studentID
	return m.entry, m.err
}

func (m *rosterServiceMock) UploadRoster(_ context.Context, _ service.Actor, _ string, rows [][]string) (*dto.UploadResult, error) {
	m.calls = append(m.calls, "UploadRoster")
	m.lastRows = rows
	return m.result, m.err
}

func (m *rosterServiceMock) UploadGrades(_ context.Context, _ service.Actor, _ string, gradeName string, rows [][]string) (*dto.UploadResult, error) {
	m.calls = append(m.calls, "UploadGrades")
	m.lastGradeName = gradeName
	m.lastRows = rows
	return m.result, m.err
}

func (m *rosterServiceMock) UpdateGrade(_ context.Context, _ service.Actor, _ string, studentID, gradeName string, req dto.UpdateGradeRequest) (*models.StudentListEntry, error) {
	m.calls = append(m.calls, "UpdateGrade")
	m.lastStudentID = studentID
	m.lastGradeName = gradeName
	m.lastValue = req.Value
	return m.entry, m.err
}

func (m *rosterServiceMock) Export(_ context.Context, _ service.Actor, _ string, format dto.ExportFormat) (*dto.ExportFile, error) {
	m.calls = append(m.calls, "Export")
	m.lastFormat = format
	return m.file, m.err
}

type gradeReviewServiceMock struct {
	review       *models.GradeReview
	reviews      []models.GradeReview
	created      bool
	err          error
	lastReviewID string
	lastList     dto.ListGradeReviewsRequest
	lastFinalize dto.FinalizeGradeReviewRequest
	calls        []string
}

func (m *gradeReviewServiceMock) Create(context.Context, service.Actor, string, dto.CreateGradeReviewRequest) (*models.GradeReview, bool, error) {
	m.calls = append(m.calls, "Create")
	return m.review, m.created, m.err
}

func (m *gradeReviewServiceMock) List(_ context.Context, _ service.Actor, _ string, req dto.ListGradeReviewsRequest) ([]models.GradeReview, error) {
	m.calls = append(m.calls, "List")
	m.lastList = req
	return m.reviews, m.err
}

func (m *gradeReviewServiceMock) Get(_ context.Context, _ service.Actor, _ string, reviewID string) (*models.GradeReview, error) {
	m.calls = append(m.calls, "Get")
	m.lastReviewID = reviewID
	return m.review, m.err
}

func (m *gradeReviewServiceMock) Finalize(_ context.Context, _ service.Actor, _ string, reviewID string, req dto.FinalizeGradeReviewRequest) (*models.GradeReview, error) {
	m.calls = append(m.calls, "Finalize")
	m.lastReviewID = reviewID
	m.lastFinalize = req
	return m.review, m.err
}

type commentServiceMock struct {
	comment       *models.CommentOnReview
	comments      []models.CommentOnReview
	err           error
	lastCommentID string
	lastText      string
	calls         []string
}

func (m *commentServiceMock) List(context.Context, service.Actor, string, string) ([]models.CommentOnReview, error) {
	m.calls = append(m.calls, "List")
	return m.comments, m.err
}

func (m *commentServiceMock) Create(_ context.Context, _ service.Actor, _, _ string, req dto.CommentRequest) (*models.CommentOnReview, error) {
	m.calls = append(m.calls, "Create")
	m.lastText = req.Comment
	return m.comment, m.err
}

func (m *commentServiceMock) Update(_ context.Context, _ service.Actor, _, _, commentID string, req dto.CommentRequest) (*models.CommentOnReview, error) {
	m.calls = append(m.calls, "Update")
	m.lastCommentID = commentID
	m.lastText = req.Comment
	return m.comment, m.err
}

type invitationServiceMock struct {
	result     *dto.SendInvitationsResult
	membership *models.Membership
	err        error
	lastSend   dto.SendInvitationsRequest
	lastAccept dto.AcceptInvitationRequest
}

func (m *invitationServiceMock) Send(_ context.Context, _ service.Actor, _ string, req dto.SendInvitationsRequest) (*dto.SendInvitationsResult, error) {
	m.lastSend = req
	return m.result, m.err
}

func (m *invitationServiceMock) Accept(_ context.Context, _ service.Actor, _ string, req dto.AcceptInvitationRequest) (*models.Membership, error) {
	m.lastAccept = req
	return m.membership, m.err
}

type notificationServiceMock struct {
	page      *service.NotificationPage
	updated   int64
	err       error
	lastReq   dto.ListNotificationsRequest
	lastID    string
	lastActor service.Actor
}

func (m *notificationServiceMock) List(_ context.Context, actor service.Actor, req dto.ListNotificationsRequest) (*service.NotificationPage, error) {
	m.lastActor = actor
	m.lastReq = req
	return m.page, m.err
}

func (m *notificationServiceMock) MarkRead(_ context.Context, actor service.Actor, id string) error {
	m.lastActor = actor
	m.lastID = id
	return m.err
}

func (m *notificationServiceMock) MarkAllRead(_ context.Context, actor service.Actor) (int64, error) {
	m.lastActor = actor
	return m.updated, m.err
}
