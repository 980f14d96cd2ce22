package service

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"

	"github.com/noah-isme/classroom-grading-api/internal/models"
	"github.com/noah-isme/classroom-grading-api/internal/repository"
)

// memClassroom is an in-memory store shared by the service fakes below.
type memClassroom struct {
	mu          sync.Mutex
	seq         int
	classrooms  map[string]*models.Classroom
	memberships []models.Membership
	entries     []*models.StudentListEntry
	reviews     []*models.GradeReview
	comments    []*models.CommentOnReview

	createErr   error
	createCalls int
	failOn      string
}

func newMemClassroom() *memClassroom {
	return &memClassroom{classrooms: map[string]*models.Classroom{}}
}

func (m *memClassroom) nextID(prefix string) string {
	m.seq++
	return fmt.Sprintf("%s-%d", prefix, m.seq)
}

func (m *memClassroom) fail(op string) error {
	if m.failOn == op {
		return fmt.Errorf("%s failed", op)
	}
	return nil
}

func cloneStructure(s *models.GradeStructure) *models.GradeStructure {
	if s == nil {
		return nil
	}
	out := *s
	out.Compositions = append([]models.GradeComposition(nil), s.Compositions...)
	return &out
}

func cloneEntry(e *models.StudentListEntry) models.StudentListEntry {
	out := *e
	out.Grades = append([]models.Grade(nil), e.Grades...)
	return out
}

// seedClassroom adds an active classroom hosted by hostID.
func (m *memClassroom) seedClassroom(id, hostID string, structure *models.GradeStructure) *models.Classroom {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := &models.Classroom{ID: id, Name: "Algebra " + id, Code: "code-" + id, HostID: hostID, Active: true, GradeStructure: structure}
	m.classrooms[id] = c
	return c
}

func (m *memClassroom) seedMember(classroomID, userID string, role models.ClassroomRole, studentID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	membership := models.Membership{ID: m.nextID("mem"), ClassroomID: classroomID, UserID: userID, Role: role}
	if studentID != "" {
		sid := studentID
		membership.StudentID = &sid
	}
	m.memberships = append(m.memberships, membership)
}

func (m *memClassroom) seedEntry(classroomID, studentID, total string, grades map[string]string) *models.StudentListEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry := &models.StudentListEntry{ID: m.nextID("entry"), ClassroomID: classroomID, StudentID: studentID, FullName: "Student " + studentID, Total: total}
	names := make([]string, 0, len(grades))
	for name := range grades {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		entry.Grades = append(entry.Grades, models.Grade{ID: m.nextID("grade"), StudentListID: entry.ID, Name: name, Value: grades[name]})
	}
	m.entries = append(m.entries, entry)
	return entry
}

func (m *memClassroom) entry(classroomID, studentID string) *models.StudentListEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.entries {
		if e.ClassroomID == classroomID && e.StudentID == studentID {
			out := cloneEntry(e)
			return &out
		}
	}
	return nil
}

func (m *memClassroom) classroom(id string) *models.Classroom {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.classrooms[id]
}

func (m *memClassroom) review(id string) *models.GradeReview {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.reviews {
		if r.ID == id {
			out := *r
			return &out
		}
	}
	return nil
}

// classroomStore

func (m *memClassroom) FindByID(ctx context.Context, id string) (*models.Classroom, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.classrooms[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	out := *c
	out.GradeStructure = cloneStructure(c.GradeStructure)
	return &out, nil
}

func (m *memClassroom) ListForUser(ctx context.Context, userID string) ([]models.Classroom, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Classroom
	for _, c := range m.classrooms {
		if c.HostID == userID {
			out = append(out, *c)
			continue
		}
		for _, mem := range m.memberships {
			if mem.ClassroomID == c.ID && mem.UserID == userID {
				out = append(out, *c)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memClassroom) List(ctx context.Context, filter models.ClassroomFilter) ([]models.Classroom, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Classroom
	for _, c := range m.classrooms {
		if filter.Active != nil && c.Active != *filter.Active {
			continue
		}
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, len(out), nil
}

func (m *memClassroom) Create(ctx context.Context, classroom *models.Classroom) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createCalls++
	if m.createErr != nil {
		err := m.createErr
		m.createErr = nil
		return err
	}
	classroom.ID = m.nextID("class")
	stored := *classroom
	m.classrooms[classroom.ID] = &stored
	return nil
}

func (m *memClassroom) UpdateInfo(ctx context.Context, classroom *models.Classroom) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.classrooms[classroom.ID]
	if !ok {
		return sql.ErrNoRows
	}
	c.Name, c.Description, c.Section, c.Subject, c.Room = classroom.Name, classroom.Description, classroom.Section, classroom.Subject, classroom.Room
	return nil
}

func (m *memClassroom) SetActive(ctx context.Context, id string, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.classrooms[id]
	if !ok {
		return sql.ErrNoRows
	}
	c.Active = active
	return nil
}

// memMemberships exposes the membership half of memClassroom. Find and FindByID
// collide on the classroom store, so memberships get their own receiver.
type memMemberships struct{ *memClassroom }

func (m memMemberships) Find(ctx context.Context, classroomID, userID string) (*models.Membership, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, mem := range m.memberships {
		if mem.ClassroomID == classroomID && mem.UserID == userID {
			out := mem
			return &out, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m memMemberships) FindByStudentID(ctx context.Context, classroomID, studentID string) (*models.Membership, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, mem := range m.memberships {
		if mem.ClassroomID == classroomID && mem.StudentIDValue() == studentID {
			out := mem
			return &out, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m memMemberships) ListByClassroom(ctx context.Context, classroomID string, roles ...models.ClassroomRole) ([]models.Membership, error) {
	if err := m.fail("ListByClassroom"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Membership
	for _, mem := range m.memberships {
		if mem.ClassroomID != classroomID {
			continue
		}
		if len(roles) > 0 {
			match := false
			for _, role := range roles {
				match = match || mem.Role == role
			}
			if !match {
				continue
			}
		}
		out = append(out, mem)
	}
	return out, nil
}

func (m memMemberships) ListMembers(ctx context.Context, classroomID string) ([]models.Member, error) {
	members, err := m.ListByClassroom(ctx, classroomID)
	if err != nil {
		return nil, err
	}
	out := make([]models.Member, 0, len(members))
	for _, mem := range members {
		out = append(out, models.Member{Membership: mem, Email: mem.UserID + "@school.test", FullName: "User " + mem.UserID})
	}
	return out, nil
}

func (m memMemberships) Create(ctx context.Context, membership *models.Membership) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, mem := range m.memberships {
		if mem.ClassroomID == membership.ClassroomID && mem.UserID == membership.UserID {
			return fmt.Errorf("duplicate membership")
		}
	}
	membership.ID = m.nextID("mem")
	m.memberships = append(m.memberships, *membership)
	return nil
}

func (m memMemberships) Delete(ctx context.Context, classroomID, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, mem := range m.memberships {
		if mem.ClassroomID == classroomID && mem.UserID == userID {
			m.memberships = append(m.memberships[:i], m.memberships[i+1:]...)
			return nil
		}
	}
	return sql.ErrNoRows
}

func (m memMemberships) UpdateStudentID(ctx context.Context, id string, studentID *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.memberships {
		if m.memberships[i].ID == id {
			m.memberships[i].StudentID = studentID
			return nil
		}
	}
	return sql.ErrNoRows
}

// memGradebook is the gradebook view of memClassroom. InTx restores a snapshot when fn fails.
type memGradebook struct{ *memClassroom }

var _ gradebookStore = memGradebook{}

func (g memGradebook) InTx(ctx context.Context, fn func(ctx context.Context, tx repository.Gradebook) error) error {
	g.mu.Lock()
	entries := make([]*models.StudentListEntry, 0, len(g.entries))
	for _, e := range g.entries {
		c := cloneEntry(e)
		entries = append(entries, &c)
	}
	reviews := make([]*models.GradeReview, 0, len(g.reviews))
	for _, r := range g.reviews {
		c := *r
		reviews = append(reviews, &c)
	}
	structures := map[string]*models.GradeStructure{}
	for id, c := range g.classrooms {
		structures[id] = cloneStructure(c.GradeStructure)
	}
	g.mu.Unlock()

	if err := fn(ctx, g); err != nil {
		g.mu.Lock()
		g.entries, g.reviews = entries, reviews
		for id, s := range structures {
			g.classrooms[id].GradeStructure = s
		}
		g.mu.Unlock()
		return err
	}
	return nil
}

func (g memGradebook) ListRoster(ctx context.Context, classroomID string) ([]models.StudentListEntry, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []models.StudentListEntry
	for _, e := range g.entries {
		if e.ClassroomID == classroomID {
			out = append(out, cloneEntry(e))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StudentID < out[j].StudentID })
	return out, nil
}

func (g memGradebook) FindEntry(ctx context.Context, classroomID, studentID string) (*models.StudentListEntry, error) {
	if e := g.entry(classroomID, studentID); e != nil {
		return e, nil
	}
	return nil, sql.ErrNoRows
}

func (g memGradebook) UpsertEntry(ctx context.Context, entry *models.StudentListEntry) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, e := range g.entries {
		if e.ClassroomID == entry.ClassroomID && e.StudentID == entry.StudentID {
			e.FullName = entry.FullName
			entry.ID, entry.Total = e.ID, e.Total
			return nil
		}
	}
	entry.ID = g.nextID("entry")
	if entry.Total == "" {
		entry.Total = models.ZeroTotal
	}
	stored := cloneEntry(entry)
	g.entries = append(g.entries, &stored)
	return nil
}

func (g memGradebook) UpsertGrade(ctx context.Context, grade *models.Grade) error {
	if err := g.fail("UpsertGrade"); err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, e := range g.entries {
		if e.ID != grade.StudentListID {
			continue
		}
		for i := range e.Grades {
			if e.Grades[i].Name == grade.Name {
				e.Grades[i].Value = grade.Value
				grade.ID = e.Grades[i].ID
				return nil
			}
		}
		grade.ID = g.nextID("grade")
		e.Grades = append(e.Grades, *grade)
		return nil
	}
	return fmt.Errorf("no roster entry %s", grade.StudentListID)
}

func (g memGradebook) UpdateTotal(ctx context.Context, entryID, total string) error {
	if err := g.fail("UpdateTotal"); err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, e := range g.entries {
		if e.ID == entryID {
			e.Total = total
			return nil
		}
	}
	return sql.ErrNoRows
}

func (g memGradebook) DeleteGradesByNames(ctx context.Context, classroomID string, names []string) (int64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	drop := map[string]struct{}{}
	for _, n := range names {
		drop[n] = struct{}{}
	}
	var deleted int64
	for _, e := range g.entries {
		if e.ClassroomID != classroomID {
			continue
		}
		kept := e.Grades[:0]
		for _, grade := range e.Grades {
			if _, ok := drop[grade.Name]; ok {
				deleted++
				continue
			}
			kept = append(kept, grade)
		}
		e.Grades = kept
	}
	return deleted, nil
}

func (g memGradebook) ResetTotals(ctx context.Context, classroomID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, e := range g.entries {
		if e.ClassroomID == classroomID {
			e.Total = models.ZeroTotal
		}
	}
	return nil
}

func (g memGradebook) UpdateGradeStructure(ctx context.Context, classroomID string, structure *models.GradeStructure) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	c, ok := g.classrooms[classroomID]
	if !ok {
		return sql.ErrNoRows
	}
	c.GradeStructure = cloneStructure(structure)
	return nil
}

func (g memGradebook) FinalizeReviewsByComposition(ctx context.Context, classroomID, name string) (int64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	var n int64
	for _, r := range g.reviews {
		if r.ClassroomID == classroomID && r.CurrentGrade.Name == name && r.Status != models.ReviewStatusFinal {
			r.Status = models.ReviewStatusFinal
			n++
		}
	}
	return n, nil
}

func (g memGradebook) FinalizeReview(ctx context.Context, reviewID string, expected models.GradeEntry) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, r := range g.reviews {
		if r.ID == reviewID {
			r.Status = models.ReviewStatusFinal
			r.ExpectedGrade = expected
			return nil
		}
	}
	return sql.ErrNoRows
}

// memReviews is the review view of memClassroom.
type memReviews struct{ *memClassroom }

func (r memReviews) FindByID(ctx context.Context, classroomID, id string) (*models.GradeReview, error) {
	if review := r.review(id); review != nil && review.ClassroomID == classroomID {
		return review, nil
	}
	return nil, sql.ErrNoRows
}

func (r memReviews) List(ctx context.Context, filter models.GradeReviewFilter) ([]models.GradeReview, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.GradeReview
	for _, review := range r.reviews {
		if review.ClassroomID != filter.ClassroomID {
			continue
		}
		if filter.StudentID != "" && review.StudentID != filter.StudentID {
			continue
		}
		if filter.CompositionName != "" && review.CurrentGrade.Name != filter.CompositionName {
			continue
		}
		if len(filter.Statuses) > 0 {
			match := false
			for _, s := range filter.Statuses {
				match = match || review.Status == s
			}
			if !match {
				continue
			}
		}
		out = append(out, *review)
	}
	return out, nil
}

func (r memReviews) Create(ctx context.Context, review *models.GradeReview) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	review.ID = r.nextID("review")
	if review.Status == "" {
		review.Status = models.ReviewStatusPending
	}
	stored := *review
	r.reviews = append(r.reviews, &stored)
	return nil
}

func (r memReviews) Advance(ctx context.Context, id string, from, to models.ReviewStatus) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, review := range r.reviews {
		if review.ID == id && review.Status == from {
			review.Status = to
			return true, nil
		}
	}
	return false, nil
}

// memComments is the comment view of memClassroom.
type memComments struct{ *memClassroom }

func (c memComments) ListByReview(ctx context.Context, reviewID string) ([]models.CommentOnReview, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []models.CommentOnReview
	for _, comment := range c.comments {
		if comment.GradeReviewID == reviewID {
			out = append(out, *comment)
		}
	}
	return out, nil
}

func (c memComments) FindByID(ctx context.Context, reviewID, id string) (*models.CommentOnReview, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, comment := range c.comments {
		if comment.GradeReviewID == reviewID && comment.ID == id {
			out := *comment
			return &out, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (c memComments) Create(ctx context.Context, comment *models.CommentOnReview) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	comment.ID = c.nextID("comment")
	stored := *comment
	c.comments = append(c.comments, &stored)
	return nil
}

func (c memComments) UpdateText(ctx context.Context, comment *models.CommentOnReview) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, stored := range c.comments {
		if stored.ID == comment.ID {
			stored.Comment = comment.Comment
			return nil
		}
	}
	return sql.ErrNoRows
}

type notifyCall struct {
	recipients []string
	content    string
	link       string
}

type recordingNotifier struct {
	mu    sync.Mutex
	calls []notifyCall
}

func (n *recordingNotifier) Notify(ctx context.Context, recipients []string, content, link string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, notifyCall{recipients: append([]string(nil), recipients...), content: content, link: link})
}

// deliveredTo counts notifications addressed to userID.
func (n *recordingNotifier) deliveredTo(userID string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	count := 0
	for _, call := range n.calls {
		for _, r := range call.recipients {
			if r == userID {
				count++
			}
		}
	}
	return count
}
