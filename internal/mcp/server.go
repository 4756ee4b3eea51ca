// Package mcp exposes the apartment inventory tools over the Model
// Context Protocol, so external agents can query availability, pet
// policies, and pricing against the same catalog the chat assistant uses.
package mcp

import (
	"github.com/mark3labs/mcp-go/server"

	"renterchat/internal/catalog"
	"renterchat/internal/logging"
)

// New creates the MCP server with the three leasing tools registered.
func New(name, version string, store *catalog.Store) *server.MCPServer {
	s := server.NewMCPServer(
		name,
		version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(instructions()),
	)

	availability := NewAvailabilityTool(store)
	s.AddTool(availability.Definition(), availability.Handle)

	petPolicy := NewPetPolicyTool(store)
	s.AddTool(petPolicy.Definition(), petPolicy.Handle)

	pricing := NewPricingTool(store)
	s.AddTool(pricing.Definition(), pricing.Handle)

	logging.Server("mcp server %s %s: 3 tools registered", name, version)
	return s
}

// ServeStdio blocks serving the MCP protocol over stdin/stdout.
func ServeStdio(s *server.MCPServer) error {
	return server.ServeStdio(s)
}

func instructions() string {
	return `Apartment leasing inventory tools.

Use check_availability to find open units by community and bedroom count,
check_pet_policy to look up pet rules (free-form pet phrasings are resolved
to the nearest known type), and get_pricing for a full quote on a specific
unit and move-in date, including any running specials.`
}
