package server

import (
	"context"
	"errors"
	"log"
	"time"

	"geoflow/internal/collector"
	"geoflow/internal/config"
	"geoflow/internal/delivery"
	"geoflow/internal/identity"
	"geoflow/internal/provider"
	"geoflow/internal/sampler"
	"geoflow/internal/session"
	"geoflow/internal/status"
	"geoflow/internal/store"
	"geoflow/internal/stream"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"
)

// Server is the agent's local control and status surface. It drives the
// tracking lifecycle over HTTP and streams live samples over websocket;
// it renders nothing.
type Server struct {
	App      *fiber.App
	Cfg      config.Config
	Session  *session.State
	Sink     *status.Sink
	Store    *store.Store
	Registry *identity.Registry
	Sampler  *sampler.Sampler
	Stream   *stream.Hub
}

func NewServer(cfg config.Config, rdb *redis.Client, prov provider.Provider, perms provider.Permissions) *Server {
	app := fiber.New()
	app.Use(recover.New())
	app.Use(logger.New())

	st := store.New(rdb)
	sess := session.NewState()
	sink := status.NewSink()
	client := collector.NewClient(cfg.CollectorURL)
	hub := stream.NewHub(rdb)
	pipeline := delivery.NewPipeline(client, st, sink, hub)

	opts := provider.Options{
		HighAccuracy: cfg.HighAccuracy,
		Timeout:      time.Duration(cfg.WatchTimeoutMS) * time.Millisecond,
		MaxCacheAge:  time.Duration(cfg.MaxCacheAgeMS) * time.Millisecond,
		Interval:     time.Duration(cfg.SampleIntervalMS) * time.Millisecond,
	}

	s := &Server{
		App:      app,
		Cfg:      cfg,
		Session:  sess,
		Sink:     sink,
		Store:    st,
		Registry: identity.NewRegistry(client, st, sess, sink),
		Sampler:  sampler.New(prov, perms, sess, st, sink, pipeline, opts),
		Stream:   hub,
	}

	s.restoreIdentity()
	registerRoutes(s)
	sink.Publish("agent ready", status.System)
	return s
}

// restoreIdentity reloads a previously accepted identity from the durable
// slot, so a restarted agent keeps its name and counter.
func (s *Server) restoreIdentity() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	id, err := s.Store.CurrentIdentity(ctx)
	if err != nil || id == "" {
		return
	}
	count, err := s.Store.SessionCount(ctx, id)
	if err != nil {
		count = 0
	}
	if err := s.Session.SetIdentity(id, count); err != nil {
		log.Printf("identity restore skipped: %v", err)
		return
	}
	s.Sink.Publish("restored identity "+id, status.System)
}

func registerRoutes(s *Server) {
	s.App.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	s.App.Post("/identity", func(c *fiber.Ctx) error {
		var req struct {
			Candidate string `json:"candidate"`
		}
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		id, err := s.Registry.Submit(c.Context(), req.Candidate)
		if err != nil {
			return identityError(err)
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"identity":      id,
			"session_count": s.Session.SessionCount(),
		})
	})

	s.App.Post("/tracking/start", func(c *fiber.Ctx) error {
		if err := s.Sampler.Start(c.Context()); err != nil {
			return stateError(err)
		}
		return c.JSON(fiber.Map{
			"state":         s.Session.Tracking().String(),
			"session_count": s.Session.SessionCount(),
		})
	})

	s.App.Post("/tracking/stop", func(c *fiber.Ctx) error {
		if err := s.Sampler.Stop(); err != nil {
			return stateError(err)
		}
		return c.JSON(fiber.Map{"state": s.Session.Tracking().String()})
	})

	s.App.Get("/status", func(c *fiber.Ctx) error {
		resp := fiber.Map{
			"state":         s.Session.Tracking().String(),
			"identity":      s.Session.Identity(),
			"session_count": s.Session.SessionCount(),
			"distance_m":    s.Sampler.DistanceM(),
			"current":       s.Sink.Current(),
		}
		if last, ok := s.Sampler.Last(); ok {
			resp["last_sample"] = last
		}
		return c.JSON(resp)
	})

	s.App.Get("/log", func(c *fiber.Ctx) error {
		return c.JSON(s.Sink.Log())
	})

	s.App.Put("/config/interval", func(c *fiber.Ctx) error {
		var req struct {
			IntervalMS int `json:"interval_ms"`
		}
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if req.IntervalMS <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, "interval_ms must be positive")
		}
		if err := s.Store.SetSampleInterval(c.Context(), time.Duration(req.IntervalMS)*time.Millisecond); err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(fiber.Map{"interval_ms": req.IntervalMS})
	})

	stream.RegisterRoutes(s.App.Group("/stream"), s.Stream)
}

func identityError(err error) error {
	var invalid *identity.InvalidFormatError
	if errors.As(err, &invalid) {
		return fiber.NewError(fiber.StatusBadRequest, invalid.Error())
	}
	var taken *identity.AlreadyTakenError
	if errors.As(err, &taken) {
		return fiber.NewError(fiber.StatusConflict, taken.Error())
	}
	if errors.Is(err, session.ErrIdentitySet) {
		return fiber.NewError(fiber.StatusConflict, err.Error())
	}
	return fiber.NewError(fiber.StatusInternalServerError, err.Error())
}

func stateError(err error) error {
	switch {
	case errors.Is(err, session.ErrNotInitialized),
		errors.Is(err, session.ErrAlreadyActive),
		errors.Is(err, session.ErrNotActive):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	case errors.Is(err, sampler.ErrPermissionDenied):
		return fiber.NewError(fiber.StatusForbidden, err.Error())
	}
	return fiber.NewError(fiber.StatusInternalServerError, err.Error())
}
