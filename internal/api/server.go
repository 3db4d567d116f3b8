package api

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/vytor/studyflash/internal/services"
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type Server struct {
	Scheduler   services.ReviewScheduler
	Importer    services.ImportService
	Stats       services.StatsService
	DB          Pinger
	BatchSize   int
	CORSOrigins []string
	// Now defaults to time.Now.
	Now func() time.Time

	validate *validator.Validate
}

func (s *Server) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Server) requestValidator() *validator.Validate {
	if s.validate == nil {
		s.validate = validator.New()
	}
	return s.validate
}
