package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"hostel-allocation-backend/internal/apperr"
	"hostel-allocation-backend/internal/model"
	"hostel-allocation-backend/internal/parse"
)

type studentRequest struct {
	MatricNumber string       `json:"matric_number" binding:"required"`
	FirstName    string       `json:"first_name" binding:"required"`
	LastName     string       `json:"last_name" binding:"required"`
	Gender       model.Gender `json:"gender" binding:"required,oneof=male female"`
	Level        int          `json:"level" binding:"required,oneof=100 200 300 400"`
	Department   string       `json:"department"`
	IsEligible   *bool        `json:"is_eligible"`
	IsActive     *bool        `json:"is_active"`
}

// CreateStudent handles POST /api/admin/students. Student records are
// provisioned here; identity is managed upstream.
func CreateStudent(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req studentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		matric, err := parse.Normalize(req.MatricNumber)
		if err != nil {
			abortWithError(c, apperr.BadRequest(apperr.CodeValidation, "invalid matric number format"))
			return
		}

		student := model.Student{
			MatricNumber: matric,
			FirstName:    req.FirstName,
			LastName:     req.LastName,
			Gender:       req.Gender,
			Level:        req.Level,
			Department:   req.Department,
			IsEligible:   true,
			IsActive:     true,
		}
		if req.IsEligible != nil {
			student.IsEligible = *req.IsEligible
		}
		if req.IsActive != nil {
			student.IsActive = *req.IsActive
		}
		if err := db.Create(&student).Error; err != nil {
			abortWithError(c, apperr.DB("failed to create student", err))
			return
		}
		c.JSON(http.StatusCreated, student)
	}
}

// ListStudents handles GET /api/admin/students with optional gender, level
// and matric_number filters.
func ListStudents(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		q := db.Order("matric_number ASC")
		if gender := c.Query("gender"); gender != "" {
			q = q.Where("gender = ?", gender)
		}
		if level := c.Query("level"); level != "" {
			q = q.Where("level = ?", level)
		}
		if matric := c.Query("matric_number"); matric != "" {
			q = q.Where("matric_number = ?", matric)
		}

		var students []model.Student
		if err := q.Find(&students).Error; err != nil {
			abortWithError(c, apperr.DB("failed to fetch students", err))
			return
		}
		c.JSON(http.StatusOK, students)
	}
}

type studentFlagsRequest struct {
	IsEligible *bool `json:"is_eligible"`
	IsActive   *bool `json:"is_active"`
}

// UpdateStudentFlags handles PATCH /api/admin/students/:student_id and
// toggles the eligibility switches the allocation engine reads.
func UpdateStudentFlags(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req studentFlagsRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		updates := map[string]any{}
		if req.IsEligible != nil {
			updates["is_eligible"] = *req.IsEligible
		}
		if req.IsActive != nil {
			updates["is_active"] = *req.IsActive
		}
		if len(updates) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "no fields to update"})
			return
		}

		res := db.Model(&model.Student{}).Where("id = ?", c.Param("student_id")).Updates(updates)
		if res.Error != nil {
			abortWithError(c, apperr.DB("failed to update student", res.Error))
			return
		}
		if res.RowsAffected == 0 {
			abortWithError(c, apperr.NotFound(apperr.CodeStudentNotFound, "student not found"))
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "updated"})
	}
}
