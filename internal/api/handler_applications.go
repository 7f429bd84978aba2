package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"hostel-allocation-backend/internal/apperr"
	"hostel-allocation-backend/internal/ballot"
	"hostel-allocation-backend/internal/model"
)

type applyRequest struct {
	StudentID            string  `json:"student_id" binding:"required"`
	FirstChoiceHostelID  string  `json:"first_choice_hostel_id" binding:"required"`
	SecondChoiceHostelID *string `json:"second_choice_hostel_id"`
	ThirdChoiceHostelID  *string `json:"third_choice_hostel_id"`
	ReceiptReference     string  `json:"receipt_reference"`
}

// Apply handles POST /api/applications. All eligibility rules are checked
// before anything is written.
func (h *Handler) Apply(c *gin.Context) {
	var req applyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	student, err := h.store.StudentByID(ctx, req.StudentID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	session, err := h.store.ActiveSession(ctx)
	if err != nil {
		abortWithError(c, err)
		return
	}

	choices := []string{req.FirstChoiceHostelID}
	for _, id := range []*string{req.SecondChoiceHostelID, req.ThirdChoiceHostelID} {
		if id != nil && *id != "" {
			choices = append(choices, *id)
		}
	}

	checker := ballot.Checker{Store: h.store}
	if err := checker.Check(ctx, student, session, choices, time.Now().UTC()); err != nil {
		abortWithError(c, err)
		return
	}

	app := &model.HostelApplication{
		StudentID:            student.ID,
		SessionID:            session.ID,
		FirstChoiceHostelID:  &req.FirstChoiceHostelID,
		SecondChoiceHostelID: req.SecondChoiceHostelID,
		ThirdChoiceHostelID:  req.ThirdChoiceHostelID,
		ReceiptReference:     req.ReceiptReference,
		Status:               model.AppStatusPending,
	}
	if err := h.store.CreateApplication(ctx, app); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, app)
}

// MyApplication handles GET /api/students/:student_id/application and
// returns the student's application for the active session, 404 if none.
func (h *Handler) MyApplication(c *gin.Context) {
	ctx := c.Request.Context()
	session, err := h.store.ActiveSession(ctx)
	if err != nil {
		abortWithError(c, err)
		return
	}
	app, err := h.store.ApplicationFor(ctx, c.Param("student_id"), session.ID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	if app == nil {
		abortWithError(c, apperr.NotFound(apperr.CodeApplicationNotFound, "no application for the current session"))
		return
	}
	c.JSON(http.StatusOK, app)
}

// ListApplications handles GET /api/admin/applications with optional
// session_id and status filters.
func (h *Handler) ListApplications(c *gin.Context) {
	ctx := c.Request.Context()
	sessionID := c.Query("session_id")
	if sessionID == "" {
		session, err := h.store.ActiveSession(ctx)
		if err != nil {
			abortWithError(c, err)
			return
		}
		sessionID = session.ID
	}

	q := h.store.DB().WithContext(ctx).
		Preload("Student").
		Where("session_id = ?", sessionID).
		Order("application_date ASC")
	if status := c.Query("status"); status != "" {
		q = q.Where("status = ?", status)
	}

	var apps []model.HostelApplication
	if err := q.Find(&apps).Error; err != nil {
		abortWithError(c, apperr.DB("failed to fetch applications", err))
		return
	}
	c.JSON(http.StatusOK, apps)
}

type verifyPaymentRequest struct {
	ReceiptReference string `json:"receipt_reference"`
}

// VerifyPayment handles POST /api/admin/applications/:application_id/verify-payment.
// The verification timestamp feeds the payment component of the priority
// score, so it is recorded once and never overwritten.
func (h *Handler) VerifyPayment(c *gin.Context) {
	var req verifyPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	var app model.HostelApplication
	if err := h.store.DB().WithContext(ctx).
		First(&app, "id = ?", c.Param("application_id")).Error; err != nil {
		abortWithError(c, apperr.NotFound(apperr.CodeApplicationNotFound, "application not found"))
		return
	}
	if app.PaymentVerified {
		abortWithError(c, apperr.Conflict(apperr.CodePaymentAlreadyVerified, "payment already verified"))
		return
	}

	actor := actorID(c)
	now := time.Now().UTC()
	updates := map[string]any{
		"payment_verified":    true,
		"payment_verified_by": actor,
		"payment_verified_at": now,
		"status":              model.AppStatusPaymentVerified,
	}
	if req.ReceiptReference != "" {
		updates["receipt_reference"] = req.ReceiptReference
	}
	if err := h.store.DB().WithContext(ctx).
		Model(&app).Updates(updates).Error; err != nil {
		abortWithError(c, apperr.DB("failed to verify payment", err))
		return
	}

	h.store.Audit(ctx, &actor, "payment_verified", "application", app.ID,
		gin.H{"receipt_reference": app.ReceiptReference}, "")
	c.JSON(http.StatusOK, app)
}

// UnverifyPayment handles DELETE /api/admin/applications/:application_id/verify-payment.
// It undoes a mistaken verification and drops the application back to
// pending. Refused once the application has entered a ballot.
func (h *Handler) UnverifyPayment(c *gin.Context) {
	ctx := c.Request.Context()
	var app model.HostelApplication
	if err := h.store.DB().WithContext(ctx).
		First(&app, "id = ?", c.Param("application_id")).Error; err != nil {
		abortWithError(c, apperr.NotFound(apperr.CodeApplicationNotFound, "application not found"))
		return
	}
	if !app.PaymentVerified {
		abortWithError(c, apperr.BadRequest(apperr.CodeValidation, "payment is not verified"))
		return
	}
	if app.Status != model.AppStatusPaymentVerified {
		abortWithError(c, apperr.Conflict(apperr.CodeConflict, "application has already been balloted"))
		return
	}

	if err := h.store.DB().WithContext(ctx).Model(&app).Updates(map[string]any{
		"payment_verified":    false,
		"payment_verified_by": nil,
		"payment_verified_at": nil,
		"status":              model.AppStatusPending,
	}).Error; err != nil {
		abortWithError(c, apperr.DB("failed to unverify payment", err))
		return
	}

	actor := actorID(c)
	h.store.Audit(ctx, &actor, "payment_unverified", "application", app.ID, nil, "")
	c.JSON(http.StatusOK, app)
}

// StudentStatus handles GET /api/students/:student_id/status and summarizes
// where the student stands in the current cycle. The status is derived from
// storage each time, never cached on the student row.
func (h *Handler) StudentStatus(c *gin.Context) {
	ctx := c.Request.Context()
	studentID := c.Param("student_id")

	student, err := h.store.StudentByID(ctx, studentID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	session, err := h.store.ActiveSession(ctx)
	if err != nil {
		abortWithError(c, err)
		return
	}
	app, err := h.store.ApplicationFor(ctx, studentID, session.ID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	live, err := h.store.HasLiveAllocation(ctx, studentID, session.ID)
	if err != nil {
		abortWithError(c, err)
		return
	}

	status := "not_applied"
	switch {
	case live:
		status = "allocated"
	case app != nil:
		status = string(app.Status)
	}

	c.JSON(http.StatusOK, gin.H{
		"student":        student,
		"session":        session,
		"application":    app,
		"status":         status,
		"window_open":    session.ApplicationWindowOpen(time.Now().UTC()),
		"has_allocation": live,
	})
}
