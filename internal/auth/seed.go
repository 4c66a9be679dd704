package auth

import (
	"context"
	"errors"
	"fmt"
)

// DemoUsers are the bootstrap accounts, one per role, so the system is
// usable without a separate provisioning step.
var DemoUsers = []NewUser{
	{
		Username:     "admin",
		Password:     "admin123",
		Role:         RoleAdmin,
		Name:         "System Administrator",
		Email:        "admin@crisis-mgmt.local",
		Phone:        "555-0100",
		Organization: "Crisis Management HQ",
	},
	{
		Username:     "dispatcher1",
		Password:     "dispatch123",
		Role:         RoleDispatcher,
		Name:         "Sarah Johnson",
		Email:        "sarah.j@dispatch.local",
		Phone:        "555-0101",
		Organization: "Central Dispatch",
	},
	{
		Username:     "hospital1",
		Password:     "hospital123",
		Role:         RoleHospitalWorker,
		Name:         "Dr. Michael Chen",
		Email:        "mchen@central-medical.local",
		Phone:        "555-0102",
		Organization: "Central Medical Center",
	},
	{
		Username:     "responder1",
		Password:     "respond123",
		Role:         RoleFirstResponder,
		Name:         "Officer James Martinez",
		Email:        "jmartinez@firstresponse.local",
		Phone:        "555-0103",
		Organization: "Fire Department Unit Alpha",
	},
	{
		Username:     "user1",
		Password:     "user123",
		Role:         RoleUser,
		Name:         "Emily Rodriguez",
		Email:        "emily.r@example.com",
		Phone:        "555-0104",
	},
}

// SeedDemoUsers provisions the demo accounts. Idempotent: accounts that
// already exist are skipped, enforced by the username/email uniqueness
// invariant rather than a separate existence check.
func (s *Service) SeedDemoUsers(ctx context.Context) error {
	for _, nu := range DemoUsers {
		if _, err := s.CreateUser(ctx, nu); err != nil {
			if errors.Is(err, ErrConflict) {
				continue
			}
			return fmt.Errorf("seed user %s: %w", nu.Username, err)
		}
	}
	return nil
}
