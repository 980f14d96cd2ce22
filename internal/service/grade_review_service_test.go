package service

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/classroom-grading-api/internal/dto"
	"github.com/noah-isme/classroom-grading-api/internal/models"
	appErrors "github.com/noah-isme/classroom-grading-api/pkg/errors"
)

func newTestGradeReviewService(mem *memClassroom) (*GradeReviewService, *recordingNotifier, *MetricsService) {
	notifier := &recordingNotifier{}
	metrics := NewMetricsService(nil)
	svc := NewGradeReviewService(mem, memMemberships{mem}, memReviews{mem}, memGradebook{mem}, notifier, metrics, nil, nil)
	return svc, notifier, metrics
}

func TestGradeReviewLifecycleEndToEnd(t *testing.T) {
	mem := newClassroomWorld(halfAndHalf())
	mem.seedEntry("c1", "S1", "3.00", map[string]string{"midterm": "6"})
	svc, notifier, metrics := newTestGradeReviewService(mem)
	ctx := context.Background()

	review, created, err := svc.Create(ctx, studentActor, "c1", dto.CreateGradeReviewRequest{GradeName: "midterm", ExpectedValue: "8", Explanation: "question 3 was marked wrong"})
	require.NoError(t, err)
	require.True(t, created)
	assert.Equal(t, models.ReviewStatusPending, review.Status)
	assert.Equal(t, models.GradeEntry{Name: "midterm", Grade: "6"}, review.CurrentGrade)
	assert.Equal(t, models.GradeEntry{Name: "midterm", Grade: "8"}, review.ExpectedGrade)
	require.Len(t, notifier.calls, 1)
	assert.ElementsMatch(t, []string{"host", "teacher"}, notifier.calls[0].recipients)
	assert.Equal(t, "/classrooms/c1/tab-review-grade/"+review.ID, notifier.calls[0].link)

	opened, err := svc.Get(ctx, teacherActor, "c1", review.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReviewStatusProcessing, opened.Status)
	assert.Equal(t, models.ReviewStatusProcessing, mem.review(review.ID).Status)

	finalized, err := svc.Finalize(ctx, teacherActor, "c1", review.ID, dto.FinalizeGradeReviewRequest{Value: "7"})
	require.NoError(t, err)
	assert.Equal(t, models.ReviewStatusFinal, finalized.Status)
	assert.Equal(t, models.ReviewStatusFinal, mem.review(review.ID).Status)

	entry := mem.entry("c1", "S1")
	require.Len(t, entry.Grades, 1)
	assert.Equal(t, "7", entry.Grades[0].Value)
	assert.Equal(t, "3.50", entry.Total)
	assert.Equal(t, 1, notifier.deliveredTo(studentActor.UserID))

	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.reviewTransitions.WithLabelValues(string(models.ReviewStatusPending))))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.reviewTransitions.WithLabelValues(string(models.ReviewStatusProcessing))))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.reviewTransitions.WithLabelValues(string(models.ReviewStatusFinal))))

	_, err = svc.Finalize(ctx, teacherActor, "c1", review.ID, dto.FinalizeGradeReviewRequest{Value: "9"})
	assertCode(t, err, appErrors.ErrAlreadyFinal)
}

func TestGradeReviewCreateReturnsOpenReview(t *testing.T) {
	mem := newClassroomWorld(halfAndHalf())
	mem.seedEntry("c1", "S1", "3.00", map[string]string{"midterm": "6"})
	svc, notifier, _ := newTestGradeReviewService(mem)
	ctx := context.Background()
	req := dto.CreateGradeReviewRequest{GradeName: "midterm", ExpectedValue: "8"}

	first, created, err := svc.Create(ctx, studentActor, "c1", req)
	require.NoError(t, err)
	require.True(t, created)

	again, created, err := svc.Create(ctx, studentActor, "c1", req)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, again.ID)
	assert.Len(t, notifier.calls, 1)
}

func TestGradeReviewCreateAfterFinal(t *testing.T) {
	mem := newClassroomWorld(halfAndHalf())
	mem.seedEntry("c1", "S1", "3.00", map[string]string{"midterm": "6"})
	svc, _, _ := newTestGradeReviewService(mem)
	ctx := context.Background()
	req := dto.CreateGradeReviewRequest{GradeName: "midterm", ExpectedValue: "8"}

	first, created, err := svc.Create(ctx, studentActor, "c1", req)
	require.NoError(t, err)
	require.True(t, created)
	_, err = svc.Finalize(ctx, teacherActor, "c1", first.ID, dto.FinalizeGradeReviewRequest{Value: "7"})
	require.NoError(t, err)
	require.False(t, mem.classroom("c1").GradeStructure.Compositions[0].IsFinal)

	_, created, err = svc.Create(ctx, studentActor, "c1", req)
	assertCode(t, err, appErrors.ErrAlreadyFinal)
	assert.False(t, created)

	open := 0
	for _, r := range mem.reviews {
		if r.Status != models.ReviewStatusFinal {
			open++
		}
	}
	assert.Zero(t, open)
}

func TestGradeReviewCreateAfterForcedFinal(t *testing.T) {
	mem := newClassroomWorld(halfAndHalf())
	mem.seedEntry("c1", "S1", "3.00", map[string]string{"midterm": "6"})
	mem.reviews = append(mem.reviews, &models.GradeReview{ID: "old", ClassroomID: "c1", StudentID: "S1",
		CurrentGrade: models.GradeEntry{Name: "midterm", Grade: "5"}, Status: models.ReviewStatusFinal})
	svc, notifier, _ := newTestGradeReviewService(mem)

	_, _, err := svc.Create(context.Background(), studentActor, "c1", dto.CreateGradeReviewRequest{GradeName: "midterm", ExpectedValue: "8"})
	assertCode(t, err, appErrors.ErrAlreadyFinal)
	assert.Len(t, mem.reviews, 1)
	assert.Empty(t, notifier.calls)
}

func TestGradeReviewCreateRejects(t *testing.T) {
	ctx := context.Background()

	t.Run("teachers cannot open reviews", func(t *testing.T) {
		svc, _, _ := newTestGradeReviewService(newClassroomWorld(halfAndHalf()))
		_, _, err := svc.Create(ctx, teacherActor, "c1", dto.CreateGradeReviewRequest{GradeName: "midterm", ExpectedValue: "8"})
		assertCode(t, err, appErrors.ErrNoPermission)
	})

	t.Run("no grade structure", func(t *testing.T) {
		svc, _, _ := newTestGradeReviewService(newClassroomWorld(nil))
		_, _, err := svc.Create(ctx, studentActor, "c1", dto.CreateGradeReviewRequest{GradeName: "midterm", ExpectedValue: "8"})
		assertCode(t, err, appErrors.ErrStructureMissing)
	})

	t.Run("student without roster id", func(t *testing.T) {
		mem := newClassroomWorld(halfAndHalf())
		mem.seedMember("c1", "newcomer", models.ClassroomRoleStudent, "")
		svc, _, _ := newTestGradeReviewService(mem)
		_, _, err := svc.Create(ctx, Actor{UserID: "newcomer"}, "c1", dto.CreateGradeReviewRequest{GradeName: "midterm", ExpectedValue: "8"})
		assertCode(t, err, appErrors.ErrStudentIDRequired)
	})

	t.Run("unknown composition", func(t *testing.T) {
		svc, _, _ := newTestGradeReviewService(newClassroomWorld(halfAndHalf()))
		_, _, err := svc.Create(ctx, studentActor, "c1", dto.CreateGradeReviewRequest{GradeName: "quiz", ExpectedValue: "8"})
		assertCode(t, err, appErrors.ErrNotFound)
	})

	t.Run("expected value above total", func(t *testing.T) {
		svc, _, _ := newTestGradeReviewService(newClassroomWorld(halfAndHalf()))
		_, _, err := svc.Create(ctx, studentActor, "c1", dto.CreateGradeReviewRequest{GradeName: "midterm", ExpectedValue: "11"})
		assertCode(t, err, appErrors.ErrValidation)
	})

	t.Run("grade not entered", func(t *testing.T) {
		mem := newClassroomWorld(halfAndHalf())
		mem.seedEntry("c1", "S1", "0.00", nil)
		svc, _, _ := newTestGradeReviewService(mem)
		_, _, err := svc.Create(ctx, studentActor, "c1", dto.CreateGradeReviewRequest{GradeName: "midterm", ExpectedValue: "8"})
		assertCode(t, err, appErrors.ErrNotFound)
	})

	t.Run("locked classroom", func(t *testing.T) {
		mem := newClassroomWorld(halfAndHalf())
		mem.seedEntry("c1", "S1", "3.00", map[string]string{"midterm": "6"})
		mem.classroom("c1").Active = false
		svc, _, _ := newTestGradeReviewService(mem)
		_, _, err := svc.Create(ctx, studentActor, "c1", dto.CreateGradeReviewRequest{GradeName: "midterm", ExpectedValue: "8"})
		assertCode(t, err, appErrors.ErrClassroomLocked)
	})
}

func TestGradeReviewListAndGetScoping(t *testing.T) {
	mem := newClassroomWorld(halfAndHalf())
	mem.reviews = append(mem.reviews,
		&models.GradeReview{ID: "r1", ClassroomID: "c1", StudentID: "S1", CurrentGrade: models.GradeEntry{Name: "midterm"}, Status: models.ReviewStatusPending},
		&models.GradeReview{ID: "r2", ClassroomID: "c1", StudentID: "S2", CurrentGrade: models.GradeEntry{Name: "final"}, Status: models.ReviewStatusFinal},
	)
	svc, _, _ := newTestGradeReviewService(mem)
	ctx := context.Background()

	own, err := svc.List(ctx, studentActor, "c1", dto.ListGradeReviewsRequest{})
	require.NoError(t, err)
	require.Len(t, own, 1)
	assert.Equal(t, "r1", own[0].ID)

	all, err := svc.List(ctx, teacherActor, "c1", dto.ListGradeReviewsRequest{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	final, err := svc.List(ctx, hostActor, "c1", dto.ListGradeReviewsRequest{Status: models.ReviewStatusFinal})
	require.NoError(t, err)
	require.Len(t, final, 1)
	assert.Equal(t, "r2", final[0].ID)

	_, err = svc.List(ctx, hostActor, "c1", dto.ListGradeReviewsRequest{Status: "OPEN"})
	assertCode(t, err, appErrors.ErrValidation)

	_, err = svc.List(ctx, outsider, "c1", dto.ListGradeReviewsRequest{})
	assertCode(t, err, appErrors.ErrNoPermission)

	_, err = svc.Get(ctx, studentActor, "c1", "r2")
	assertCode(t, err, appErrors.ErrNotFound)

	viewed, err := svc.Get(ctx, studentActor, "c1", "r1")
	require.NoError(t, err)
	assert.Equal(t, models.ReviewStatusPending, viewed.Status, "a student viewing does not open the review")

	viewed, err = svc.Get(ctx, adminActor, "c1", "r1")
	require.NoError(t, err)
	assert.Equal(t, models.ReviewStatusPending, viewed.Status, "only classroom staff open a review")
}

func TestGradeReviewFinalizeRejects(t *testing.T) {
	mem := newClassroomWorld(halfAndHalf())
	mem.seedEntry("c1", "S1", "3.00", map[string]string{"midterm": "6"})
	mem.reviews = append(mem.reviews, &models.GradeReview{ID: "r1", ClassroomID: "c1", StudentID: "S1",
		CurrentGrade: models.GradeEntry{Name: "midterm", Grade: "6"}, Status: models.ReviewStatusProcessing})
	svc, _, _ := newTestGradeReviewService(mem)
	ctx := context.Background()

	_, err := svc.Finalize(ctx, studentActor, "c1", "r1", dto.FinalizeGradeReviewRequest{Value: "9"})
	assertCode(t, err, appErrors.ErrNoPermission)

	_, err = svc.Finalize(ctx, teacherActor, "c1", "r1", dto.FinalizeGradeReviewRequest{Value: "12"})
	assertCode(t, err, appErrors.ErrValidation)

	_, err = svc.Finalize(ctx, teacherActor, "c1", "missing", dto.FinalizeGradeReviewRequest{Value: "9"})
	assertCode(t, err, appErrors.ErrNotFound)

	mem.failOn = "UpsertGrade"
	_, err = svc.Finalize(ctx, teacherActor, "c1", "r1", dto.FinalizeGradeReviewRequest{Value: "9"})
	assertCode(t, err, appErrors.ErrInternal)
	assert.Equal(t, models.ReviewStatusProcessing, mem.review("r1").Status)
	assert.Equal(t, "6", mem.entry("c1", "S1").Grades[0].Value)
}

func TestGradeReviewOpenMovesToProcessingOnce(t *testing.T) {
	mem := newClassroomWorld(halfAndHalf())
	mem.seedEntry("c1", "S1", "3.00", map[string]string{"midterm": "6"})
	mem.reviews = append(mem.reviews, &models.GradeReview{ID: "r1", ClassroomID: "c1", StudentID: "S1",
		CurrentGrade: models.GradeEntry{Name: "midterm", Grade: "6"}, Status: models.ReviewStatusPending})
	svc, _, metrics := newTestGradeReviewService(mem)
	ctx := context.Background()

	for _, actor := range []Actor{teacherActor, hostActor, teacherActor} {
		review, err := svc.Get(ctx, actor, "c1", "r1")
		require.NoError(t, err)
		assert.Equal(t, models.ReviewStatusProcessing, review.Status)
	}

	assert.Equal(t, models.ReviewStatusProcessing, mem.review("r1").Status)
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.reviewTransitions.WithLabelValues(string(models.ReviewStatusProcessing))))
}

func TestGradeReviewFinalizeWithoutRubric(t *testing.T) {
	mem := newClassroomWorld(halfAndHalf())
	mem.seedEntry("c1", "S1", "3.00", map[string]string{"midterm": "6"})
	mem.reviews = append(mem.reviews, &models.GradeReview{ID: "r1", ClassroomID: "c1", StudentID: "S1",
		CurrentGrade: models.GradeEntry{Name: "midterm", Grade: "6"}, Status: models.ReviewStatusProcessing})
	mem.classroom("c1").GradeStructure = nil
	svc, notifier, _ := newTestGradeReviewService(mem)

	_, err := svc.Finalize(context.Background(), teacherActor, "c1", "r1", dto.FinalizeGradeReviewRequest{Value: "9"})
	assertCode(t, err, appErrors.ErrStructureMissing)
	assert.Equal(t, models.ReviewStatusProcessing, mem.review("r1").Status)
	assert.Empty(t, notifier.calls)
}
