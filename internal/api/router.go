package api

import (
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"hostel-allocation-backend/config"
	"hostel-allocation-backend/internal/ballot"
	"hostel-allocation-backend/internal/mw"
	"hostel-allocation-backend/internal/store"
)

// NewRouter creates and configures a new Gin router.
func NewRouter(s store.Store, svc *ballot.Service, cfg *config.ServerConfig, webpushOptions *webpush.Options) *gin.Engine {
	r := gin.Default()

	db := s.DB()
	handler := NewHandler(s, svc, webpushOptions)

	rateLimiter := mw.RateLimiter(rate.Limit(cfg.RateLimitPerSec), cfg.RateLimitBurst)

	// Cache for the public read endpoints; write paths bypass it.
	cacheTTL := time.Duration(cfg.CacheTTLSeconds) * time.Second
	cacheStore := cache.New(cacheTTL, 2*cacheTTL)
	caching := mw.Cache(cacheStore, cacheTTL)

	api := r.Group("/api")
	api.Use(rateLimiter)
	{
		// Public reads
		api.GET("/hostels", caching, ListHostels(db))
		api.GET("/hostels/:hostel_id", caching, GetHostel(db))

		// Student surface
		api.POST("/applications", handler.Apply)
		api.GET("/students/:student_id/application", handler.MyApplication)
		api.GET("/students/:student_id/status", handler.StudentStatus)
		api.GET("/students/:student_id/allocation", handler.MyAllocation)

		// Web push
		api.GET("/push/vapid-public-key", handler.VAPIDPublicKey)
		api.POST("/push/subscribe", Subscribe(db))
		api.POST("/push/unsubscribe", Unsubscribe(db))
	}

	admin := api.Group("/admin")
	{
		admin.GET("/sessions", ListSessions(db))
		admin.POST("/sessions", handler.CreateSession)
		admin.PUT("/sessions/:session_id", handler.UpdateSession)

		admin.POST("/students", CreateStudent(db))
		admin.GET("/students", ListStudents(db))
		admin.PATCH("/students/:student_id", UpdateStudentFlags(db))

		admin.POST("/hostels", CreateHostel(db))
		admin.PUT("/hostels/:hostel_id", UpdateHostel(db))
		admin.DELETE("/hostels/:hostel_id", DeleteHostel(db))
		admin.POST("/hostels/:hostel_id/rooms", CreateRoom(db))
		admin.PUT("/rooms/:room_id", UpdateRoom(db))
		admin.DELETE("/rooms/:room_id", DeleteRoom(db))
		admin.GET("/rooms/:room_id/occupants", RoomOccupants(db))

		admin.GET("/applications", handler.ListApplications)
		admin.POST("/applications/:application_id/verify-payment", handler.VerifyPayment)
		admin.DELETE("/applications/:application_id/verify-payment", handler.UnverifyPayment)

		admin.GET("/sessions/:session_id/ballot-config", handler.GetBallotConfig)
		admin.PUT("/sessions/:session_id/ballot-config", handler.PutBallotConfig)
		admin.POST("/sessions/:session_id/ballot/run", handler.RunBallot)
		admin.GET("/sessions/:session_id/ballot-runs", handler.BallotHistory)
		admin.POST("/ballot-runs/:run_id/approve", handler.ApproveBallot)

		admin.GET("/allocations", handler.ListAllocations)
		admin.POST("/allocations", handler.ManualAllocate)
		admin.POST("/allocations/bulk-assign", handler.BulkAssign)

		admin.GET("/stats", caching, handler.DashboardStats)
	}

	warden := api.Group("/warden")
	{
		warden.POST("/allocations/:allocation_id/check-in", handler.CheckIn)
		warden.POST("/allocations/:allocation_id/check-out", handler.CheckOut)
	}

	return r
}
