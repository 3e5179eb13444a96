package internal

import (
	"github.com/h3nryswan/video-transcoder/config"
	"github.com/h3nryswan/video-transcoder/internal/ledger"
	"github.com/h3nryswan/video-transcoder/internal/registry"
	"github.com/h3nryswan/video-transcoder/internal/service"
	"github.com/h3nryswan/video-transcoder/pkg/security"
	"github.com/h3nryswan/video-transcoder/pkg/validators"
)

// Deps is what every HTTP handler gets access to
type Deps struct {
	Config       *config.Config
	Files        *registry.Registry
	Jobs         *ledger.Ledger
	Orchestrator *service.Orchestrator
	Encoder      service.Encoder
	Argon        *security.ArgonHash
	Validator    validators.VideoValidator
}
