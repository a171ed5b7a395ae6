package routes

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/AnshRaj112/safezone-backend/internal/handlers"
	"github.com/AnshRaj112/safezone-backend/internal/middleware"
	"github.com/AnshRaj112/safezone-backend/internal/models"
)

// Deps wires the HTTP surface to its services. Accounts is nil when tokens
// come from a hosted auth server; Uploader is nil without Cloudinary.
type Deps struct {
	Log              *zap.Logger
	AllowedOrigins   []string
	Production       bool
	TrustProxy       bool
	Auth             *middleware.Auth
	EmergencyLimiter middleware.Limiter
	Accounts         handlers.Accounts
	Mood             handlers.MoodStore
	Emergency        handlers.EmergencyTrigger
	AI               handlers.ChatAssistant
	Rooms            handlers.Rooms
	Hub              handlers.Hub
	Uploader         handlers.AvatarUploader
	Profiles         handlers.AvatarStore
}

// NewRouter builds the router. ctx bounds the limiter cleanup goroutines.
func NewRouter(ctx context.Context, d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestLogger(d.Log, d.TrustProxy))
	r.Use(middleware.Recoverer)
	r.Use(middleware.CORS(d.AllowedOrigins))
	if d.Production {
		for _, mw := range middleware.ProductionSecurity(ctx, d.TrustProxy) {
			r.Use(mw)
		}
	}

	r.Get("/health", handlers.Health)

	auth := d.Auth
	mood := handlers.NewMoodHandler(d.Mood)
	emergency := handlers.NewEmergencyHandler(d.Emergency)
	ai := handlers.NewAIHandler(d.AI)
	rooms := handlers.NewRoomHandler(d.Rooms)
	realtime := handlers.NewRealtimeHandler(d.Rooms, d.Hub, d.AllowedOrigins, d.Log)
	upload := handlers.NewUploadHandler(d.Uploader, d.Profiles)

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			if d.Accounts != nil {
				accounts := handlers.NewAuthHandler(d.Accounts)
				r.Group(func(r chi.Router) {
					r.Use(middleware.LoginRateLimit(ctx, d.TrustProxy))
					r.With(middleware.ValidateBody[models.SignupRequest]()).Post("/signup", accounts.Signup)
					r.With(middleware.ValidateBody[models.SigninRequest]()).Post("/signin", accounts.Signin)
				})
			}
			r.With(auth.Require).Get("/me", handlers.NewAuthHandler(d.Accounts).Me)
		})

		r.Route("/mood", func(r chi.Router) {
			r.Use(auth.Require)
			r.With(middleware.ValidateBody[models.MoodRequest]()).Post("/", mood.Create)
			r.Get("/history", mood.History)
		})

		r.Route("/emergency", func(r chi.Router) {
			r.With(
				auth.Require,
				middleware.RateLimit(d.EmergencyLimiter, "emergency", middleware.UserOrIPKey(d.TrustProxy), handlers.EmergencyTooManyMessage),
				middleware.ValidateBody[models.TriggerRequest](),
			).Post("/trigger", emergency.Trigger)
		})

		r.Route("/ai", func(r chi.Router) {
			r.Use(auth.Optional)
			r.With(middleware.ValidateBody[models.ChatRequest]()).Post("/chat", ai.Chat)
			r.Get("/grounding", ai.Grounding)
		})

		r.With(auth.Require, middleware.ValidateBody[models.AvailabilityRequest]()).
			Put("/peer/availability", rooms.SetAvailability)
		r.With(auth.Require).Post("/rooms/{roomID}/close", rooms.Close)
		r.With(auth.Require).Post("/profile/avatar", upload.Avatar)
	})

	r.Route("/ws", func(r chi.Router) {
		r.Use(auth.RequireWS)
		r.Get("/rooms/{roomID}", realtime.Room)
		r.Get("/notifications", realtime.Notifications)
	})

	return r
}
