package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/classroom-grading-api/internal/models"
	internalmiddleware "github.com/noah-isme/classroom-grading-api/internal/middleware"
)

// Handlers groups every HTTP handler mounted by RegisterRoutes.
type Handlers struct {
	Classrooms    *ClassroomHandler
	Roster        *RosterHandler
	Reviews       *ReviewHandler
	Invitations   *InvitationHandler
	Notifications *NotificationHandler
	Realtime      *RealtimeHandler
	Metrics       *MetricsHandler
}

// RegisterRoutes mounts probes at the root and the API under prefix. auth guards every API route.
func RegisterRoutes(r gin.IRouter, prefix string, auth gin.HandlerFunc, h Handlers) {
	if h.Metrics != nil {
		r.GET("/health", h.Metrics.Health)
		r.GET("/ready", h.Metrics.Ready)
		r.GET("/metrics", h.Metrics.Prometheus)
	}

	api := r.Group(prefix)
	api.Use(auth)

	classrooms := api.Group("/classrooms")
	classrooms.POST("", h.Classrooms.Create)
	classrooms.GET("", h.Classrooms.ListMine)

	classroom := classrooms.Group("/:id")
	classroom.GET("", h.Classrooms.Get)
	classroom.PATCH("", h.Classrooms.UpdateInfo)
	classroom.PUT("/active", h.Classrooms.SetActive)
	classroom.GET("/members", h.Classrooms.ListMembers)
	classroom.DELETE("/members/:userId", h.Classrooms.KickMember)
	classroom.POST("/leave", h.Classrooms.Leave)
	classroom.PUT("/student-id", h.Classrooms.UpdateStudentID)
	classroom.PUT("/grade-structure", h.Classrooms.UpdateGradeStructure)
	classroom.DELETE("/grade-structure", h.Classrooms.DeleteGradeStructure)

	classroom.POST("/invitations", h.Invitations.Send)
	classroom.POST("/join", h.Invitations.Accept)

	classroom.GET("/students", h.Roster.ListRoster)
	classroom.POST("/students/upload", h.Roster.UploadRoster)
	classroom.GET("/students/:studentId", h.Roster.GetEntry)
	classroom.PUT("/students/:studentId/grades/:gradeName", h.Roster.UpdateGrade)
	classroom.POST("/grades/upload", h.Roster.UploadGrades)
	classroom.GET("/gradebook/export", h.Roster.Export)

	classroom.POST("/reviews", h.Reviews.Create)
	classroom.GET("/reviews", h.Reviews.List)
	classroom.GET("/reviews/:reviewId", h.Reviews.Get)
	classroom.POST("/reviews/:reviewId/finalize", h.Reviews.Finalize)
	classroom.GET("/reviews/:reviewId/comments", h.Reviews.ListComments)
	classroom.POST("/reviews/:reviewId/comments", h.Reviews.CreateComment)
	classroom.PATCH("/reviews/:reviewId/comments/:commentId", h.Reviews.UpdateComment)

	notifications := api.Group("/notifications")
	notifications.GET("", h.Notifications.List)
	notifications.PATCH("/:id/read", h.Notifications.MarkRead)
	notifications.POST("/read-all", h.Notifications.MarkAllRead)

	api.GET("/realtime/stream", h.Realtime.Stream)

	admin := api.Group("/admin", internalmiddleware.RequirePlatformRole(models.PlatformRoleAdmin))
	admin.GET("/classrooms", h.Classrooms.ListAll)
}
