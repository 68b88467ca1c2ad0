package provider

import (
	"log/slog"

	"github.com/latticerun/host/claims"
	"github.com/latticerun/host/hostinfo"
	"github.com/latticerun/host/lattice"
	"github.com/latticerun/host/registry"
)

// Dependencies are the shared, process-wide collaborators every Provider
// Instance needs. One Dependencies value is constructed by the Host
// Supervisor and handed to every instance the Provider Supervisor creates —
// mirroring the teacher's single shared ProcessManager.Config wiring.
type Dependencies struct {
	Tables  *registry.Tables
	Client  lattice.Client
	Encoder *lattice.Encoder
	Claims  *claims.Store
	Refmaps *claims.RefmapStore
	Links   hostinfo.LinkDefinitionLookup
	Logger  *slog.Logger
}

// StartRequest carries everything the Provider Supervisor's start_provider
// operation needs beyond what Dependencies already supplies.
type StartRequest struct {
	ExecutablePath string
	Claims         claims.Claims
	LinkName       string
	ContractID     string
	ImageRef       string
	ConfigJSON     string
	Annotations    map[string]string
}
